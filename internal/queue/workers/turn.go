package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/VParka/fast-interview-sub002/internal/models"
	"github.com/VParka/fast-interview-sub002/internal/queue"
	"github.com/VParka/fast-interview-sub002/internal/session"
)

// TurnWorker writes a finished turn into conversation history. Failed
// runs still persist whatever half of the turn exists so the candidate's
// words are never lost.
type TurnWorker struct {
	sessions *session.Store
}

func NewTurnWorker(sessions *session.Store) *TurnWorker {
	return &TurnWorker{sessions: sessions}
}

func (w *TurnWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload queue.TurnPersistPayload
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

	var msgs []models.Message
	if payload.Transcript != "" {
		msgs = append(msgs, models.Message{
			SessionID: sessionID,
			RunID:     runID,
			Role:      models.RoleCandidate,
			Content:   payload.Transcript,
		})
	}
	if payload.ReplyText != "" {
		msgs = append(msgs, models.Message{
			SessionID:  sessionID,
			RunID:      runID,
			Role:       models.RoleInterviewer,
			Content:    payload.ReplyText,
			AudioURL:   payload.AudioURL,
			Provider:   payload.Provider,
			Evaluation: payload.Evaluation,
		})
	}
	if len(msgs) == 0 {
		slog.Warn("turn persist with nothing to store", "run_id", runID)
		return nil
	}

	if err := w.sessions.AppendTurn(ctx, sessionID, msgs); err != nil {
		return fmt.Errorf("append turn: %w", err)
	}

	slog.Info("turn persisted", "session_id", sessionID, "run_id", runID, "messages", len(msgs))
	return nil
}
