package queue

import "github.com/VParka/fast-interview-sub002/internal/stt"

const (
	TypeTurnPersist   = "interview:persist_turn"
	TypeVoiceAnalysis = "interview:voice_analysis"
	TypeResumeIngest  = "resume:ingest"
)

// TurnPersistPayload carries everything needed to write one completed (or
// partially completed) turn into history. The run ID keys idempotency on
// retry.
type TurnPersistPayload struct {
	SessionID  string `json:"session_id"`
	RunID      string `json:"run_id"`
	UserID     string `json:"user_id"`
	Transcript string `json:"transcript,omitempty"`
	ReplyText  string `json:"reply_text,omitempty"`
	AudioURL   string `json:"audio_url,omitempty"`
	Provider   string `json:"provider,omitempty"`
	Evaluation []byte `json:"evaluation,omitempty"`
}

type VoiceAnalysisPayload struct {
	SessionID  string     `json:"session_id"`
	RunID      string     `json:"run_id"`
	Words      []stt.Word `json:"words"`
	DurationMs int64      `json:"duration_ms"`
}

type ResumeIngestPayload struct {
	ResumeID string `json:"resume_id"`
	UserID   string `json:"user_id"`
}
