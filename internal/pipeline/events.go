package pipeline

import "time"

// State is the orchestrator's position in the run state machine.
type State string

const (
	StateStarted      State = "started"
	StateTranscribing State = "transcribing"
	StateGenerating   State = "generating"
	StateSynthesizing State = "synthesizing"
	StateCompleted    State = "completed"
	StateFailed       State = "failed"
)

// EventType enumerates the event vocabulary of the outgoing stream.
type EventType string

const (
	EventStart      EventType = "start"
	EventTranscript EventType = "transcript"
	EventChunk      EventType = "chunk"
	EventWarning    EventType = "warning"
	EventHeartbeat  EventType = "heartbeat"
	EventAudio      EventType = "audio"
	EventComplete   EventType = "complete"
	EventError      EventType = "error"
	EventDone       EventType = "done"
)

// Event is one typed item on the outgoing stream. Events are strictly
// ordered: start precedes every chunk, chunks precede the terminal
// complete/error, and done is always last and emitted exactly once.
type Event struct {
	Type EventType `json:"event"`
	ID   string    `json:"id,omitempty"`
	Data any       `json:"data"`
}

type StartData struct {
	Model     string `json:"model"`
	PersonaID string `json:"personaId"`
	Timestamp int64  `json:"timestamp"`
}

type TranscriptData struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence,omitempty"`
	DurationMs int64   `json:"durationMs"`
	Provider   string  `json:"provider"`
}

type ChunkData struct {
	Content      string `json:"content"`
	Index        int    `json:"index"`
	FinishReason string `json:"finishReason,omitempty"`
}

type WarningData struct {
	Message   string `json:"message"`
	ElapsedMs int64  `json:"elapsedMs"`
}

type HeartbeatData struct {
	Timestamp int64 `json:"timestamp"`
}

type AudioData struct {
	ContentType string `json:"contentType"`
	CacheHit    bool   `json:"cacheHit"`
	URL         string `json:"url,omitempty"`
	// Audio carries the base64 payload when no public URL is available.
	Audio     string `json:"audio,omitempty"`
	SizeBytes int    `json:"sizeBytes"`
	Provider  string `json:"provider"`
}

type CompleteData struct {
	FullText   string      `json:"fullText"`
	LatencyMs  int64       `json:"latencyMs"`
	ChunkCount int         `json:"chunkCount"`
	Evaluation *Evaluation `json:"evaluation,omitempty"`
}

type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type DoneData struct {
	Timestamp int64 `json:"timestamp"`
}

// Sink consumes ordered events for one run. Send returns an error when the
// consumer is gone; the orchestrator then stops scheduling further stages.
type Sink interface {
	Send(ev Event) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ev Event) error

func (f SinkFunc) Send(ev Event) error { return f(ev) }

func now() int64 { return time.Now().UnixMilli() }
