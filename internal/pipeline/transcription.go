package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/VParka/fast-interview-sub002/internal/stt"
)

// TranscriptionStage turns a captured audio clip into text with word-level
// timing, failing over from the primary STT provider to the fallback.
type TranscriptionStage struct {
	invoker  *Invoker
	primary  stt.Provider
	fallback stt.Provider
	timeout  time.Duration
}

func NewTranscriptionStage(inv *Invoker, primary, fallback stt.Provider, timeout time.Duration) *TranscriptionStage {
	return &TranscriptionStage{
		invoker:  inv,
		primary:  primary,
		fallback: fallback,
		timeout:  timeout,
	}
}

// Run transcribes the request audio. A zero-length buffer fails with
// ErrEmptyAudio before any provider is contacted. The word timing slice is
// always non-nil, even when the winning provider returned no offsets.
func (s *TranscriptionStage) Run(ctx context.Context, req *Request) (*Transcription, []ProviderAttempt, error) {
	if len(req.Audio) == 0 {
		return nil, nil, ErrEmptyAudio
	}

	sttReq := stt.Request{
		Audio:    req.Audio,
		Filename: req.AudioName,
		Language: req.Language,
	}

	validate := func(r *stt.Result) error {
		if r == nil || r.Text == "" {
			return fmt.Errorf("empty transcript")
		}
		return nil
	}

	winner := ""
	result, attempts, err := Invoke(ctx, s.invoker, StageTranscription,
		Call[*stt.Result]{
			Provider: s.primary.Name(),
			Do: func(ctx context.Context) (*stt.Result, error) {
				r, err := s.primary.Transcribe(ctx, sttReq)
				if err == nil {
					winner = s.primary.Name()
				}
				return r, err
			},
			Validate: validate,
		},
		Call[*stt.Result]{
			Provider: s.fallback.Name(),
			Do: func(ctx context.Context) (*stt.Result, error) {
				r, err := s.fallback.Transcribe(ctx, sttReq)
				if err == nil {
					winner = s.fallback.Name()
				}
				return r, err
			},
			Validate: validate,
		},
		s.timeout,
	)
	if err != nil {
		return nil, attempts, err
	}

	words := result.Words
	if words == nil {
		words = []stt.Word{}
	}

	return &Transcription{
		Text:       result.Text,
		Words:      words,
		Confidence: result.Confidence,
		DurationMs: result.DurationMs,
		Provider:   winner,
	}, attempts, nil
}
