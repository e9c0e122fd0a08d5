package tts

import "context"

// Request holds the parameters for one synthesis call.
type Request struct {
	Input string  `json:"input"`
	Voice string  `json:"voice,omitempty"`
	Speed float64 `json:"speed,omitempty"`
	Model string  `json:"model,omitempty"`
}

// Result holds the generated audio and its content type.
type Result struct {
	Audio       []byte
	ContentType string // "audio/mpeg" for both hosted backends
}

// Provider is the interface for text-to-speech backends.
type Provider interface {
	Synthesize(ctx context.Context, req Request) (*Result, error)
	Name() string
}
