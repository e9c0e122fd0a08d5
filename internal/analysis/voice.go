// Package analysis derives speech-delivery metrics from the word timings
// a transcription provider returns alongside the text.
package analysis

import (
	"strings"

	"github.com/VParka/fast-interview-sub002/internal/models"
	"github.com/VParka/fast-interview-sub002/internal/stt"
)

// fillers are matched case-insensitively against individual words after
// stripping trailing punctuation.
var fillers = map[string]bool{
	"um":        true,
	"uh":        true,
	"er":        true,
	"ah":        true,
	"like":      true,
	"basically": true,
	"actually":  true,
	"literally": true,
	"kinda":     true,
	"sorta":     true,
	"y'know":    true,
}

// pauseThresholdMs is the inter-word gap counted as silence rather than
// normal articulation spacing.
const pauseThresholdMs = 500

// Analyze computes delivery metrics for one answer. A zero duration or an
// empty word list yields zeroed metrics rather than an error; some
// providers omit word timings and the caller still persists the row.
func Analyze(words []stt.Word, durationMs int64) models.VoiceMetrics {
	m := models.VoiceMetrics{
		WordCount:  len(words),
		DurationMs: durationMs,
	}
	if len(words) == 0 || durationMs <= 0 {
		return m
	}

	minutes := float64(durationMs) / 60000.0
	m.WordsPerMinute = float64(len(words)) / minutes

	for _, w := range words {
		if isFiller(w.Word) {
			m.FillerCount++
		}
	}
	m.FillerRate = float64(m.FillerCount) / float64(len(words))

	var silenceMs int64
	for i := 1; i < len(words); i++ {
		gap := words[i].StartMs - words[i-1].EndMs
		if gap > m.LongestPauseMs {
			m.LongestPauseMs = gap
		}
		if gap >= pauseThresholdMs {
			silenceMs += gap
		}
	}
	// Leading silence before the first word counts too.
	if lead := words[0].StartMs; lead >= pauseThresholdMs {
		silenceMs += lead
		if lead > m.LongestPauseMs {
			m.LongestPauseMs = lead
		}
	}
	m.SilenceRatio = float64(silenceMs) / float64(durationMs)
	if m.SilenceRatio > 1 {
		m.SilenceRatio = 1
	}

	return m
}

func isFiller(word string) bool {
	w := strings.ToLower(strings.TrimRight(word, ".,!?;:"))
	return fillers[w]
}
