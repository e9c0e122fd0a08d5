package telemetry

import "testing"

func TestPGSinkRecordAfterClose(t *testing.T) {
	// A run finishing during shutdown records into a closed sink; the
	// sample is dropped, never a panic.
	s := NewPGSink(nil)
	s.Close()
	s.Record("synthesis", "openai-tts", OutcomeSuccess, 42)
}

func TestPGSinkCloseIdempotent(t *testing.T) {
	s := NewPGSink(nil)
	s.Close()
	s.Close()
}
