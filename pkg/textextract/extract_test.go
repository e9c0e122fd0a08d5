package textextract

import (
	"archive/zip"
	"bytes"
	"strings"
	"testing"
)

func TestResolveType(t *testing.T) {
	const docxMIME = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

	tests := []struct {
		name        string
		contentType string
		filename    string
		want        string
		ok          bool
	}{
		{"declared pdf", "application/pdf", "resume.pdf", "application/pdf", true},
		{"octet-stream with pdf extension", "application/octet-stream", "cv.pdf", "application/pdf", true},
		{"no content type, docx extension", "", "CV.DOCX", docxMIME, true},
		{"declared docx", docxMIME, "resume", docxMIME, true},
		{"plain text", "text/plain", "notes", "text/plain", true},
		{"txt extension only", "", "resume.txt", "text/plain", true},
		{"unsupported both ways", "image/png", "photo.png", "", false},
		{"nothing to go on", "", "resume", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ResolveType(tt.contentType, tt.filename)
			if ok != tt.ok || got != tt.want {
				t.Fatalf("ResolveType(%q, %q) = %q, %v; want %q, %v",
					tt.contentType, tt.filename, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestSupported(t *testing.T) {
	for _, ft := range []string{"pdf", ".pdf", "application/pdf", "DOCX", "txt", "text/plain"} {
		if !Supported(ft) {
			t.Fatalf("Supported(%q) = false", ft)
		}
	}
	for _, ft := range []string{"", "png", "image/png", "application/octet-stream"} {
		if Supported(ft) {
			t.Fatalf("Supported(%q) = true", ft)
		}
	}
}

func TestExtractTXT(t *testing.T) {
	data := []byte("  Senior Go engineer.\nLed the payments team.\n")
	got, err := Extract(bytes.NewReader(data), int64(len(data)), "text/plain")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if got != "Senior Go engineer.\nLed the payments team." {
		t.Fatalf("text = %q", got)
	}
}

func TestExtractDOCX(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	f, err := zw.Create("word/document.xml")
	if err != nil {
		t.Fatal(err)
	}
	f.Write([]byte(`<w:document><w:body><w:p><w:r><w:t>Built a voice pipeline</w:t></w:r></w:p></w:body></w:document>`))
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}

	got, err := Extract(bytes.NewReader(buf.Bytes()), int64(buf.Len()), "docx")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if !strings.Contains(got, "Built a voice pipeline") {
		t.Fatalf("text = %q", got)
	}
}

func TestExtractUnsupportedType(t *testing.T) {
	if _, err := Extract(bytes.NewReader(nil), 0, "image/png"); err == nil {
		t.Fatal("unsupported type accepted")
	}
}
