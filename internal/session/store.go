// Package session persists interview sessions and their turn history.
package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/VParka/fast-interview-sub002/internal/models"
)

var ErrNotFound = errors.New("session not found")

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func (s *Store) Create(ctx context.Context, sess *models.Session) error {
	if sess.ID == uuid.Nil {
		sess.ID = uuid.New()
	}
	if sess.Status == "" {
		sess.Status = models.SessionActive
	}

	err := s.db.QueryRow(ctx,
		`INSERT INTO sessions (id, user_id, persona_id, position, industry, difficulty, voice, resume_id, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING created_at, updated_at`,
		sess.ID, sess.UserID, sess.PersonaID, sess.Position, sess.Industry,
		sess.Difficulty, sess.Voice, sess.ResumeID, sess.Status,
	).Scan(&sess.CreatedAt, &sess.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id, userID uuid.UUID) (*models.Session, error) {
	var sess models.Session
	err := s.db.QueryRow(ctx,
		`SELECT id, user_id, persona_id, position, industry, difficulty, voice, resume_id, status, turn_count, created_at, updated_at
		 FROM sessions WHERE id = $1 AND user_id = $2`,
		id, userID,
	).Scan(&sess.ID, &sess.UserID, &sess.PersonaID, &sess.Position, &sess.Industry,
		&sess.Difficulty, &sess.Voice, &sess.ResumeID, &sess.Status, &sess.TurnCount,
		&sess.CreatedAt, &sess.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return &sess, nil
}

func (s *Store) List(ctx context.Context, userID uuid.UUID, limit int) ([]models.Session, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	rows, err := s.db.Query(ctx,
		`SELECT id, user_id, persona_id, position, industry, difficulty, voice, resume_id, status, turn_count, created_at, updated_at
		 FROM sessions WHERE user_id = $1
		 ORDER BY created_at DESC LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []models.Session
	for rows.Next() {
		var sess models.Session
		if err := rows.Scan(&sess.ID, &sess.UserID, &sess.PersonaID, &sess.Position, &sess.Industry,
			&sess.Difficulty, &sess.Voice, &sess.ResumeID, &sess.Status, &sess.TurnCount,
			&sess.CreatedAt, &sess.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

func (s *Store) UpdateStatus(ctx context.Context, id uuid.UUID, status models.SessionStatus) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE sessions SET status = $2, updated_at = now() WHERE id = $1`,
		id, status,
	)
	if err != nil {
		return fmt.Errorf("update session status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// AppendTurn stores both halves of one turn atomically and bumps the
// session's turn counter. Replaying a run ID is a no-op so queue retries
// never duplicate history.
func (s *Store) AppendTurn(ctx context.Context, sessionID uuid.UUID, msgs []models.Message) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	inserted := false
	for _, m := range msgs {
		if m.ID == uuid.Nil {
			m.ID = uuid.New()
		}
		tag, err := tx.Exec(ctx,
			`INSERT INTO messages (id, session_id, run_id, role, content, audio_url, provider, evaluation)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			 ON CONFLICT (run_id, role) DO NOTHING`,
			m.ID, sessionID, m.RunID, m.Role, m.Content, m.AudioURL, m.Provider, m.Evaluation,
		)
		if err != nil {
			return fmt.Errorf("insert message: %w", err)
		}
		if tag.RowsAffected() > 0 {
			inserted = true
		}
	}

	if inserted {
		if _, err := tx.Exec(ctx,
			`UPDATE sessions SET turn_count = turn_count + 1, updated_at = now() WHERE id = $1`,
			sessionID,
		); err != nil {
			return fmt.Errorf("bump turn count: %w", err)
		}
	}
	return tx.Commit(ctx)
}

// RecentMessages returns the newest messages in chronological order,
// ready to be replayed as conversation history.
func (s *Store) RecentMessages(ctx context.Context, sessionID uuid.UUID, limit int) ([]models.Message, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(ctx,
		`SELECT id, session_id, run_id, role, content, audio_url, provider, evaluation, created_at
		 FROM (
		     SELECT id, session_id, run_id, role, content, audio_url, provider, evaluation, created_at
		     FROM messages WHERE session_id = $1
		     ORDER BY created_at DESC LIMIT $2
		 ) recent
		 ORDER BY created_at ASC`,
		sessionID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("recent messages: %w", err)
	}
	defer rows.Close()

	var msgs []models.Message
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.ID, &m.SessionID, &m.RunID, &m.Role, &m.Content,
			&m.AudioURL, &m.Provider, &m.Evaluation, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

func (s *Store) SaveVoiceMetrics(ctx context.Context, m *models.VoiceMetrics) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	_, err := s.db.Exec(ctx,
		`INSERT INTO voice_metrics (id, session_id, run_id, word_count, words_per_minute, filler_count, filler_rate, silence_ratio, longest_pause_ms, duration_ms)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (run_id) DO NOTHING`,
		m.ID, m.SessionID, m.RunID, m.WordCount, m.WordsPerMinute,
		m.FillerCount, m.FillerRate, m.SilenceRatio, m.LongestPauseMs, m.DurationMs,
	)
	if err != nil {
		return fmt.Errorf("save voice metrics: %w", err)
	}
	return nil
}

func (s *Store) VoiceMetricsForSession(ctx context.Context, sessionID uuid.UUID) ([]models.VoiceMetrics, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, session_id, run_id, word_count, words_per_minute, filler_count, filler_rate, silence_ratio, longest_pause_ms, duration_ms, created_at
		 FROM voice_metrics WHERE session_id = $1 ORDER BY created_at ASC`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("voice metrics: %w", err)
	}
	defer rows.Close()

	var out []models.VoiceMetrics
	for rows.Next() {
		var m models.VoiceMetrics
		if err := rows.Scan(&m.ID, &m.SessionID, &m.RunID, &m.WordCount, &m.WordsPerMinute,
			&m.FillerCount, &m.FillerRate, &m.SilenceRatio, &m.LongestPauseMs, &m.DurationMs, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan voice metrics: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
