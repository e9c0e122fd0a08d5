package chunker

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestSplitShortTextSingleChunk(t *testing.T) {
	chunks := Split("one short resume line", 200)
	if len(chunks) != 1 || chunks[0] != "one short resume line" {
		t.Fatalf("chunks = %v", chunks)
	}
}

func TestSplitRespectsSizeBound(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 50; i++ {
		b.WriteString("Led migration of a payments service to event sourcing. ")
	}
	chunks := Split(b.String(), 200)

	if len(chunks) < 2 {
		t.Fatalf("long text produced %d chunks", len(chunks))
	}
	for i, c := range chunks {
		if utf8.RuneCountInString(c) > 200 {
			t.Fatalf("chunk %d has %d runes", i, utf8.RuneCountInString(c))
		}
	}
}

func TestSplitPrefersParagraphBoundaries(t *testing.T) {
	para1 := strings.Repeat("alpha ", 20)
	para2 := strings.Repeat("beta ", 20)
	text := strings.TrimSpace(para1) + "\n\n" + strings.TrimSpace(para2)

	chunks := Split(text, 150)
	if len(chunks) != 2 {
		t.Fatalf("chunks = %d, want 2: %v", len(chunks), chunks)
	}
	if strings.Contains(chunks[0], "beta") || strings.Contains(chunks[1], "alpha") {
		t.Fatalf("paragraphs mixed across chunks: %v", chunks)
	}
}

func TestSplitDropsWhitespacePieces(t *testing.T) {
	chunks := Split("first\n\n   \n\nsecond", 100)
	for _, c := range chunks {
		if strings.TrimSpace(c) == "" {
			t.Fatalf("whitespace-only chunk survived: %q", c)
		}
	}
}

func TestSplitHandlesUnbrokenText(t *testing.T) {
	text := strings.Repeat("x", 950)
	chunks := Split(text, 400)
	total := 0
	for i, c := range chunks {
		if utf8.RuneCountInString(c) > 400 {
			t.Fatalf("chunk %d over size", i)
		}
		total += utf8.RuneCountInString(c)
	}
	if total != 950 {
		t.Fatalf("lost characters: got %d of 950", total)
	}
}

func TestSplitTinySizeFallsBackToDefault(t *testing.T) {
	text := strings.Repeat("word ", 300)
	chunks := Split(text, 10)
	for i, c := range chunks {
		if utf8.RuneCountInString(c) > DefaultChunkSize {
			t.Fatalf("chunk %d exceeds default size", i)
		}
	}
}
