package pipeline

import (
	"time"

	"github.com/google/uuid"

	"github.com/VParka/fast-interview-sub002/internal/stt"
)

// Turn is one prior exchange item in the conversation, oldest-first.
type Turn struct {
	Role    string `json:"role"` // user, assistant
	Content string `json:"content"`
}

// Request is the immutable input to one pipeline run. It is built by the
// HTTP handler, owned by the orchestrator for the run's lifetime, and
// discarded when the run completes.
type Request struct {
	RunID     uuid.UUID
	SessionID uuid.UUID
	UserID    uuid.UUID

	Audio     []byte
	AudioName string
	Language  string

	PersonaID  string
	Position   string
	Industry   string
	Difficulty string

	// History holds the most recent prior turns, oldest-first. The
	// generation stage bounds it further to its configured window.
	History []Turn

	// RetrievalContext is optional résumé context resolved before the run;
	// empty means none was available.
	RetrievalContext string

	// FirstTurn marks the synthetic opening of an interview: there is no
	// audio to transcribe and the persona asks its opening question.
	FirstTurn bool

	// Structured requests the schema-constrained evaluation payload from
	// the LLM instead of free text.
	Structured bool

	// Streamed selects token streaming for the generation stage.
	Streamed bool

	Voice    string
	Speed    float64
	TTSModel string
}

// ProviderAttempt records one invocation of one provider for one stage.
// Attempts live only for the duration of a run; they feed failover
// decisions and latency telemetry.
type ProviderAttempt struct {
	Stage      string    `json:"stage"`
	Provider   string    `json:"provider"`
	StartedAt  time.Time `json:"started_at"`
	DurationMs int64     `json:"duration_ms"`
	OK         bool      `json:"ok"`
	Err        string    `json:"error,omitempty"`
}

// Transcription is the output of the transcription stage. Immutable after
// creation; consumed by generation and by voice analysis.
type Transcription struct {
	Text       string     `json:"text"`
	Words      []stt.Word `json:"words"`
	Confidence float64    `json:"confidence"`
	DurationMs int64      `json:"duration_ms"`
	Provider   string     `json:"provider"`
}

// Evaluation carries the structured interviewer judgement of an answer.
// Scores are 0-100.
type Evaluation struct {
	Relevance int `json:"relevance"`
	Clarity   int `json:"clarity"`
	Depth     int `json:"depth"`
}

// Reply is the output of the generation stage.
type Reply struct {
	Text              string      `json:"text"`
	Evaluation        *Evaluation `json:"evaluation,omitempty"`
	InnerThought      string      `json:"inner_thought,omitempty"`
	FollowUpIntent    bool        `json:"follow_up_intent"`
	SuggestedFollowUp string      `json:"suggested_follow_up,omitempty"`
	Provider          string      `json:"provider"`
	Model             string      `json:"model"`
	LatencyMs         int64       `json:"latency_ms"`
	// Truncated is set when the stream budget expired and the reply was
	// finalized with partial content.
	Truncated bool `json:"truncated,omitempty"`
}

// Audio is the output of the synthesis stage. For a fixed (text, voice,
// speed, model) tuple the bytes are content-addressed: a second run with
// identical inputs is served from cache.
type Audio struct {
	Data        []byte `json:"-"`
	ContentType string `json:"content_type"`
	Provider    string `json:"provider"`
	CacheHit    bool   `json:"cache_hit"`
	PublicURL   string `json:"public_url,omitempty"`
}

// Result aggregates whatever a run produced, including partial output from
// runs that failed mid-way. Callers use it for persistence and analysis
// after the stream has terminated.
type Result struct {
	RunID         uuid.UUID
	Transcription *Transcription
	Reply         *Reply
	Audio         *Audio
	Attempts      []ProviderAttempt
	State         State
	Err           error
}
