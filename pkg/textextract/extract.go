// Package textextract pulls plain text out of uploaded resume files.
package textextract

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

// Extract returns the plain text of a resume file. The type hint accepts
// an extension or a MIME type; PDF, DOCX and plain text are supported.
func Extract(data io.ReaderAt, size int64, fileType string) (string, error) {
	switch normalizeType(fileType) {
	case "pdf":
		return extractPDF(data, size)
	case "docx":
		return extractDOCX(data, size)
	case "txt":
		return extractTXT(data, size)
	default:
		return "", fmt.Errorf("unsupported resume type: %s", fileType)
	}
}

// Supported reports whether a file of the given type can be extracted.
func Supported(fileType string) bool {
	return normalizeType(fileType) != ""
}

// ResolveType returns the canonical MIME type for an upload, preferring
// the declared Content-Type and falling back to the filename extension.
// Browsers and curl routinely send application/octet-stream for files
// whose extension identifies them perfectly well.
func ResolveType(contentType, filename string) (string, bool) {
	if t := normalizeType(contentType); t != "" {
		return mimeFor(t), true
	}
	if t := normalizeType(filepath.Ext(filename)); t != "" {
		return mimeFor(t), true
	}
	return "", false
}

func mimeFor(normalized string) string {
	switch normalized {
	case "pdf":
		return "application/pdf"
	case "docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	default:
		return "text/plain"
	}
}

func normalizeType(fileType string) string {
	switch strings.ToLower(strings.TrimPrefix(fileType, ".")) {
	case "pdf", "application/pdf":
		return "pdf"
	case "docx", "application/vnd.openxmlformats-officedocument.wordprocessingml.document":
		return "docx"
	case "txt", "text/plain":
		return "txt"
	}
	return ""
}

func extractPDF(data io.ReaderAt, size int64) (string, error) {
	reader, err := pdf.NewReader(data, size)
	if err != nil {
		return "", fmt.Errorf("open PDF: %w", err)
	}

	var buf strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		// Pages that fail to render are skipped rather than failing the
		// whole resume; scanned pages often have no text layer at all.
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		buf.WriteString(text)
		buf.WriteString("\n")
	}
	return buf.String(), nil
}

// A DOCX file is a zip archive; the body text lives in word/document.xml.
func extractDOCX(data io.ReaderAt, size int64) (string, error) {
	reader, err := zip.NewReader(data, size)
	if err != nil {
		return "", fmt.Errorf("open DOCX: %w", err)
	}

	for _, f := range reader.File {
		if filepath.Base(f.Name) != "document.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", fmt.Errorf("open document.xml: %w", err)
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return "", fmt.Errorf("read document.xml: %w", err)
		}
		return stripXMLTags(string(content)), nil
	}
	return "", fmt.Errorf("document.xml missing from DOCX archive")
}

func extractTXT(data io.ReaderAt, size int64) (string, error) {
	buf := make([]byte, size)
	if _, err := data.ReadAt(buf, 0); err != nil && err != io.EOF {
		return "", fmt.Errorf("read TXT: %w", err)
	}
	return string(bytes.TrimSpace(buf)), nil
}

func stripXMLTags(s string) string {
	var out strings.Builder
	inTag := false
	for _, r := range s {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
			out.WriteRune(' ')
		case !inTag:
			out.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(out.String()), " ")
}
