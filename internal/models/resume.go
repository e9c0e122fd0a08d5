package models

import (
	"time"

	"github.com/google/uuid"
)

type ResumeStatus string

const (
	ResumePending ResumeStatus = "pending"
	ResumeReady   ResumeStatus = "ready"
	ResumeFailed  ResumeStatus = "failed"
)

// Resume is an uploaded candidate resume, chunked and embedded so turns
// can be grounded on the candidate's actual background.
type Resume struct {
	ID          uuid.UUID    `json:"id" db:"id"`
	UserID      uuid.UUID    `json:"user_id" db:"user_id"`
	Filename    string       `json:"filename" db:"filename"`
	ContentType string       `json:"content_type" db:"content_type"`
	StoragePath string       `json:"storage_path" db:"storage_path"`
	Status      ResumeStatus `json:"status" db:"status"`
	ChunkCount  int          `json:"chunk_count" db:"chunk_count"`
	Error       string       `json:"error,omitempty" db:"error"`
	CreatedAt   time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at" db:"updated_at"`
}
