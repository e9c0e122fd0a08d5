package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/VParka/fast-interview-sub002/internal/queue"
	"github.com/VParka/fast-interview-sub002/internal/retrieval"
)

// ResumeWorker runs resume ingestion end to end: download, extract,
// chunk, embed, index.
type ResumeWorker struct {
	ingester *retrieval.Ingester
}

func NewResumeWorker(ingester *retrieval.Ingester) *ResumeWorker {
	return &ResumeWorker{ingester: ingester}
}

func (w *ResumeWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload queue.ResumeIngestPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	resumeID, err := uuid.Parse(payload.ResumeID)
	if err != nil {
		return fmt.Errorf("parse resume ID: %w", err)
	}
	userID, err := uuid.Parse(payload.UserID)
	if err != nil {
		return fmt.Errorf("parse user ID: %w", err)
	}

	slog.Info("ingesting resume", "resume_id", resumeID)
	if err := w.ingester.Ingest(ctx, resumeID, userID); err != nil {
		return fmt.Errorf("ingest resume: %w", err)
	}
	return nil
}
