package models

import (
	"time"

	"github.com/google/uuid"
)

type SessionStatus string

const (
	SessionActive    SessionStatus = "active"
	SessionCompleted SessionStatus = "completed"
	SessionAbandoned SessionStatus = "abandoned"
)

// Session is one mock-interview conversation.
type Session struct {
	ID         uuid.UUID     `json:"id" db:"id"`
	UserID     uuid.UUID     `json:"user_id" db:"user_id"`
	PersonaID  string        `json:"persona_id" db:"persona_id"`
	Position   string        `json:"position" db:"position"`
	Industry   string        `json:"industry,omitempty" db:"industry"`
	Difficulty string        `json:"difficulty" db:"difficulty"`
	Voice      string        `json:"voice,omitempty" db:"voice"`
	ResumeID   *uuid.UUID    `json:"resume_id,omitempty" db:"resume_id"`
	Status     SessionStatus `json:"status" db:"status"`
	TurnCount  int           `json:"turn_count" db:"turn_count"`
	CreatedAt  time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time     `json:"updated_at" db:"updated_at"`
}

type MessageRole string

const (
	RoleCandidate   MessageRole = "candidate"
	RoleInterviewer MessageRole = "interviewer"
)

// Message is one persisted turn half: either the candidate's transcribed
// answer or the interviewer's reply.
type Message struct {
	ID         uuid.UUID   `json:"id" db:"id"`
	SessionID  uuid.UUID   `json:"session_id" db:"session_id"`
	RunID      uuid.UUID   `json:"run_id" db:"run_id"`
	Role       MessageRole `json:"role" db:"role"`
	Content    string      `json:"content" db:"content"`
	AudioURL   string      `json:"audio_url,omitempty" db:"audio_url"`
	Provider   string      `json:"provider,omitempty" db:"provider"`
	Evaluation []byte      `json:"evaluation,omitempty" db:"evaluation"`
	CreatedAt  time.Time   `json:"created_at" db:"created_at"`
}
