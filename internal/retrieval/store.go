// Package retrieval grounds interview questions on the candidate's
// resume: uploaded resumes are chunked and embedded, and each turn can
// pull the chunks most relevant to the current exchange.
package retrieval

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/VParka/fast-interview-sub002/internal/models"
)

var ErrNotFound = errors.New("resume not found")

// Chunk is one embedded slice of a resume.
type Chunk struct {
	ID         uuid.UUID
	ResumeID   uuid.UUID
	UserID     uuid.UUID
	ChunkIndex int
	Content    string
	Embedding  []float32
}

// Match is one similarity-search hit.
type Match struct {
	ChunkID    uuid.UUID
	ResumeID   uuid.UUID
	ChunkIndex int
	Content    string
	Score      float64
}

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func (s *Store) CreateResume(ctx context.Context, r *models.Resume) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if r.Status == "" {
		r.Status = models.ResumePending
	}
	err := s.db.QueryRow(ctx,
		`INSERT INTO resumes (id, user_id, filename, content_type, storage_path, status)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING created_at, updated_at`,
		r.ID, r.UserID, r.Filename, r.ContentType, r.StoragePath, r.Status,
	).Scan(&r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create resume: %w", err)
	}
	return nil
}

func (s *Store) GetResume(ctx context.Context, id, userID uuid.UUID) (*models.Resume, error) {
	var r models.Resume
	err := s.db.QueryRow(ctx,
		`SELECT id, user_id, filename, content_type, storage_path, status, chunk_count, error, created_at, updated_at
		 FROM resumes WHERE id = $1 AND user_id = $2`,
		id, userID,
	).Scan(&r.ID, &r.UserID, &r.Filename, &r.ContentType, &r.StoragePath,
		&r.Status, &r.ChunkCount, &r.Error, &r.CreatedAt, &r.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get resume: %w", err)
	}
	return &r, nil
}

func (s *Store) MarkReady(ctx context.Context, id uuid.UUID, chunkCount int) error {
	_, err := s.db.Exec(ctx,
		`UPDATE resumes SET status = $2, chunk_count = $3, error = '', updated_at = now() WHERE id = $1`,
		id, models.ResumeReady, chunkCount,
	)
	if err != nil {
		return fmt.Errorf("mark resume ready: %w", err)
	}
	return nil
}

func (s *Store) MarkFailed(ctx context.Context, id uuid.UUID, cause string) error {
	_, err := s.db.Exec(ctx,
		`UPDATE resumes SET status = $2, error = $3, updated_at = now() WHERE id = $1`,
		id, models.ResumeFailed, cause,
	)
	if err != nil {
		return fmt.Errorf("mark resume failed: %w", err)
	}
	return nil
}

// ReplaceChunks swaps a resume's chunks wholesale; re-ingesting the same
// resume never leaves stale embeddings behind.
func (s *Store) ReplaceChunks(ctx context.Context, resumeID uuid.UUID, chunks []Chunk) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM resume_chunks WHERE resume_id = $1`, resumeID); err != nil {
		return fmt.Errorf("clear chunks: %w", err)
	}

	for _, c := range chunks {
		id := c.ID
		if id == uuid.Nil {
			id = uuid.New()
		}
		_, err := tx.Exec(ctx,
			`INSERT INTO resume_chunks (id, resume_id, user_id, chunk_index, content, embedding)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			id, resumeID, c.UserID, c.ChunkIndex, c.Content, pgvector.NewVector(c.Embedding),
		)
		if err != nil {
			return fmt.Errorf("insert chunk %d: %w", c.ChunkIndex, err)
		}
	}
	return tx.Commit(ctx)
}

// SimilaritySearch returns the resume chunks closest to the query vector
// by cosine distance, best first.
func (s *Store) SimilaritySearch(ctx context.Context, resumeID uuid.UUID, query []float32, topK int) ([]Match, error) {
	if topK <= 0 {
		topK = 3
	}
	embedding := pgvector.NewVector(query)

	rows, err := s.db.Query(ctx,
		`SELECT id, resume_id, chunk_index, content, 1 - (embedding <=> $1) AS score
		 FROM resume_chunks
		 WHERE resume_id = $2
		 ORDER BY embedding <=> $1
		 LIMIT $3`,
		embedding, resumeID, topK,
	)
	if err != nil {
		return nil, fmt.Errorf("similarity search: %w", err)
	}
	defer rows.Close()

	var matches []Match
	for rows.Next() {
		var m Match
		if err := rows.Scan(&m.ChunkID, &m.ResumeID, &m.ChunkIndex, &m.Content, &m.Score); err != nil {
			return nil, fmt.Errorf("scan match: %w", err)
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}
