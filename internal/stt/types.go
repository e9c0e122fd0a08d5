package stt

import "context"

// Request holds one utterance to transcribe. Audio is an opaque container
// (webm/ogg/wav/mp3); providers sniff or are told via Filename.
type Request struct {
	Audio    []byte
	Filename string
	Language string
}

// Word is a single recognized word with millisecond offsets into the clip.
type Word struct {
	Word       string  `json:"word"`
	StartMs    int64   `json:"start_ms"`
	EndMs      int64   `json:"end_ms"`
	Confidence float64 `json:"confidence,omitempty"`
}

// Result holds the transcription output. Words may be empty when the
// backend does not return word-level offsets; callers must not assume
// timings are present.
type Result struct {
	Text       string  `json:"text"`
	Words      []Word  `json:"words"`
	Confidence float64 `json:"confidence"`
	DurationMs int64   `json:"duration_ms"`
}

// Provider is the interface for speech-to-text backends.
type Provider interface {
	Transcribe(ctx context.Context, req Request) (*Result, error)
	Name() string
}
