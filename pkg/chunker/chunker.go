// Package chunker splits extracted resume text into embedding-sized
// pieces along natural boundaries.
package chunker

import (
	"strings"
	"unicode/utf8"
)

const (
	DefaultChunkSize = 800
	MinChunkSize     = 100
)

// separators in preference order; paragraph breaks beat line breaks beat
// sentence ends beat raw spaces.
var separators = []string{"\n\n", "\n", ". ", " "}

// Split breaks text into chunks of at most size runes, splitting at the
// coarsest boundary that keeps pieces under the limit. Whitespace-only
// pieces are dropped.
func Split(text string, size int) []string {
	if size < MinChunkSize {
		size = DefaultChunkSize
	}

	var chunks []string
	for _, piece := range split(text, separators, size) {
		piece = strings.TrimSpace(piece)
		if piece != "" {
			chunks = append(chunks, piece)
		}
	}
	return chunks
}

func split(text string, seps []string, size int) []string {
	if utf8.RuneCountInString(text) <= size {
		return []string{text}
	}

	if len(seps) == 0 {
		var out []string
		runes := []rune(text)
		for i := 0; i < len(runes); i += size {
			end := i + size
			if end > len(runes) {
				end = len(runes)
			}
			out = append(out, string(runes[i:end]))
		}
		return out
	}

	sep := seps[0]
	var out []string
	var current strings.Builder

	for _, part := range strings.Split(text, sep) {
		if current.Len() > 0 && utf8.RuneCountInString(current.String())+utf8.RuneCountInString(sep+part) > size {
			out = append(out, split(current.String(), seps[1:], size)...)
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteString(sep)
		}
		current.WriteString(part)
	}
	if current.Len() > 0 {
		out = append(out, split(current.String(), seps[1:], size)...)
	}
	return out
}
