package models

import (
	"time"

	"github.com/google/uuid"
)

// VoiceMetrics is the per-answer speech analysis computed off the
// critical path from the word timings the transcription provider returns.
type VoiceMetrics struct {
	ID             uuid.UUID `json:"id" db:"id"`
	SessionID      uuid.UUID `json:"session_id" db:"session_id"`
	RunID          uuid.UUID `json:"run_id" db:"run_id"`
	WordCount      int       `json:"word_count" db:"word_count"`
	WordsPerMinute float64   `json:"words_per_minute" db:"words_per_minute"`
	FillerCount    int       `json:"filler_count" db:"filler_count"`
	FillerRate     float64   `json:"filler_rate" db:"filler_rate"`
	SilenceRatio   float64   `json:"silence_ratio" db:"silence_ratio"`
	LongestPauseMs int64     `json:"longest_pause_ms" db:"longest_pause_ms"`
	DurationMs     int64     `json:"duration_ms" db:"duration_ms"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}
