package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/VParka/fast-interview-sub002/internal/analysis"
	"github.com/VParka/fast-interview-sub002/internal/queue"
	"github.com/VParka/fast-interview-sub002/internal/session"
)

// AnalysisWorker computes delivery metrics from the word timings captured
// during transcription.
type AnalysisWorker struct {
	sessions *session.Store
}

func NewAnalysisWorker(sessions *session.Store) *AnalysisWorker {
	return &AnalysisWorker{sessions: sessions}
}

func (w *AnalysisWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload queue.VoiceAnalysisPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	sessionID, err := uuid.Parse(payload.SessionID)
	if err != nil {
		return fmt.Errorf("parse session ID: %w", err)
	}
	runID, err := uuid.Parse(payload.RunID)
	if err != nil {
		return fmt.Errorf("parse run ID: %w", err)
	}

	metrics := analysis.Analyze(payload.Words, payload.DurationMs)
	metrics.SessionID = sessionID
	metrics.RunID = runID

	if err := w.sessions.SaveVoiceMetrics(ctx, &metrics); err != nil {
		return fmt.Errorf("save voice metrics: %w", err)
	}

	slog.Info("voice analysis stored",
		"session_id", sessionID,
		"run_id", runID,
		"wpm", metrics.WordsPerMinute,
		"filler_rate", metrics.FillerRate,
	)
	return nil
}
