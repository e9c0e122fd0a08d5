package pipeline

import (
	"errors"
	"fmt"
)

// Stage names, also used as telemetry labels.
const (
	StageTranscription = "transcription"
	StageGeneration    = "generation"
	StageSynthesis     = "synthesis"
)

// Stable error codes surfaced to clients on the event stream.
const (
	CodeSTTFailed = "STT_FAILED"
	CodeLLMFailed = "LLM_FAILED"
	CodeTTSFailed = "TTS_FAILED"
	CodeInternal  = "INTERNAL"
)

// ErrEmptyAudio is returned before any provider call when the submitted
// audio buffer has zero length.
var ErrEmptyAudio = errors.New("audio buffer is empty")

// ErrNoReply means generation succeeded at the transport level but no
// speakable text could be recovered from any provider's payload.
var ErrNoReply = errors.New("no usable reply from any language model")

// ExhaustedError means both the primary and the fallback provider failed
// for a stage. It carries every attempt made so callers can log and
// surface a stage-specific error code.
type ExhaustedError struct {
	Stage    string
	Attempts []ProviderAttempt
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("all providers exhausted for stage %s (%d attempts)", e.Stage, len(e.Attempts))
}

// Code maps the failed stage to its stable client-facing error code.
func (e *ExhaustedError) Code() string {
	switch e.Stage {
	case StageTranscription:
		return CodeSTTFailed
	case StageGeneration:
		return CodeLLMFailed
	case StageSynthesis:
		return CodeTTSFailed
	}
	return CodeInternal
}

// SchemaError means a structured LLM payload failed validation. It is
// recovered locally by free-text extraction and never reaches the client
// unless extraction also yields nothing.
type SchemaError struct {
	Missing []string
	Cause   error
}

func (e *SchemaError) Error() string {
	if len(e.Missing) > 0 {
		return fmt.Sprintf("structured reply missing required fields: %v", e.Missing)
	}
	return fmt.Sprintf("structured reply invalid: %v", e.Cause)
}

func (e *SchemaError) Unwrap() error { return e.Cause }

// ErrorCode resolves the stable code for any pipeline error.
func ErrorCode(err error) string {
	var ex *ExhaustedError
	if errors.As(err, &ex) {
		return ex.Code()
	}
	if errors.Is(err, ErrEmptyAudio) {
		return CodeSTTFailed
	}
	if errors.Is(err, ErrNoReply) {
		return CodeLLMFailed
	}
	return CodeInternal
}
