package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/VParka/fast-interview-sub002/internal/llm"
	"github.com/VParka/fast-interview-sub002/internal/persona"
)

type fakeLLM struct {
	name      string
	content   string
	err       error
	stream    []llm.StreamChunk
	streamErr error
	// hang keeps the stream open after the scripted chunks, simulating a
	// provider that stops sending without closing the connection.
	hang    bool
	lastReq llm.ChatRequest
	calls   int
}

func (f *fakeLLM) Name() string { return f.name }

func (f *fakeLLM) ChatCompletion(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	f.calls++
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	return &llm.ChatResponse{Provider: f.name, Model: req.Model, Content: f.content}, nil
}

func (f *fakeLLM) ChatCompletionStream(ctx context.Context, req llm.ChatRequest) (<-chan llm.StreamChunk, error) {
	f.calls++
	f.lastReq = req
	if f.streamErr != nil {
		return nil, f.streamErr
	}
	ch := make(chan llm.StreamChunk)
	go func() {
		defer close(ch)
		for _, c := range f.stream {
			select {
			case ch <- c:
			case <-ctx.Done():
				return
			}
		}
		if f.hang {
			<-ctx.Done()
		}
	}()
	return ch, nil
}

func (f *fakeLLM) GenerateEmbedding(context.Context, llm.EmbeddingRequest) (*llm.EmbeddingResponse, error) {
	return nil, errors.New("not supported")
}

func testGenerationStage(t *testing.T, primary, fallback *fakeLLM, cfg GenerationConfig) *GenerationStage {
	t.Helper()
	personas, err := persona.NewRegistry("")
	if err != nil {
		t.Fatalf("load personas: %v", err)
	}
	if cfg.PrimaryModel == "" {
		cfg.PrimaryModel = "model-a"
	}
	if cfg.FallbackModel == "" {
		cfg.FallbackModel = "model-b"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = time.Second
	}
	return NewGenerationStage(NewInvoker(nil), primary, fallback, personas, cfg)
}

func TestGenerationStructuredReply(t *testing.T) {
	primary := &fakeLLM{name: "openai", content: `{
		"question": "Why did you choose Go for that service?",
		"evaluation": {"relevance": 82, "clarity": 74, "depth": 61},
		"follow_up_intent": true,
		"inner_thought": "solid but shallow"
	}`}
	stage := testGenerationStage(t, primary, &fakeLLM{name: "anthropic"}, GenerationConfig{})

	reply, _, err := stage.Run(context.Background(), &Request{Structured: true}, "I built it in Go")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply.Text != "Why did you choose Go for that service?" {
		t.Fatalf("text = %q", reply.Text)
	}
	if reply.Evaluation == nil || reply.Evaluation.Relevance != 82 {
		t.Fatalf("evaluation = %+v", reply.Evaluation)
	}
	if !reply.FollowUpIntent {
		t.Fatal("follow_up_intent lost")
	}
	if !primary.lastReq.JSONMode {
		t.Fatal("primary should be asked for JSON mode")
	}
}

func TestGenerationSchemaFailureExtractsFreeText(t *testing.T) {
	// Valid JSON, but the required evaluation block is missing: the
	// question must still be spoken and no partial structure kept.
	primary := &fakeLLM{name: "openai", content: "```json\n" + `{"question": "What was the hardest bug?"}` + "\n```"}
	stage := testGenerationStage(t, primary, &fakeLLM{name: "anthropic"}, GenerationConfig{})

	reply, _, err := stage.Run(context.Background(), &Request{Structured: true}, "answer")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply.Text != "What was the hardest bug?" {
		t.Fatalf("text = %q", reply.Text)
	}
	if reply.Evaluation != nil {
		t.Fatalf("partial structured data kept: %+v", reply.Evaluation)
	}
}

func TestGenerationUnparseablePayloadSpokenRaw(t *testing.T) {
	primary := &fakeLLM{name: "openai", content: "```\nJust tell me more about the project.\n```"}
	stage := testGenerationStage(t, primary, &fakeLLM{name: "anthropic"}, GenerationConfig{})

	reply, _, err := stage.Run(context.Background(), &Request{Structured: true}, "answer")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply.Text != "Just tell me more about the project." {
		t.Fatalf("text = %q", reply.Text)
	}
}

func TestGenerationFallbackGetsPlainPrompt(t *testing.T) {
	primary := &fakeLLM{name: "openai", err: errors.New("down")}
	fallback := &fakeLLM{name: "anthropic", content: "Walk me through your last project."}
	stage := testGenerationStage(t, primary, fallback, GenerationConfig{})

	reply, attempts, err := stage.Run(context.Background(), &Request{Structured: true}, "answer")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply.Provider != "anthropic" {
		t.Fatalf("provider = %s", reply.Provider)
	}
	if len(attempts) != 2 {
		t.Fatalf("got %d attempts, want 2", len(attempts))
	}
	if fallback.lastReq.JSONMode {
		t.Fatal("fallback must not be asked for JSON mode")
	}
	for _, m := range fallback.lastReq.Messages {
		if strings.Contains(m.Content, "valid JSON object") {
			t.Fatal("schema instructions leaked into the fallback prompt")
		}
	}
}

func TestGenerationHistoryBounded(t *testing.T) {
	primary := &fakeLLM{name: "openai", content: "Next question."}
	stage := testGenerationStage(t, primary, &fakeLLM{name: "anthropic"}, GenerationConfig{HistoryTurns: 2})

	var history []Turn
	for i := 0; i < 10; i++ {
		history = append(history,
			Turn{Role: "assistant", Content: "q"},
			Turn{Role: "user", Content: "a"},
		)
	}
	req := &Request{History: history}
	if _, _, err := stage.Run(context.Background(), req, "latest answer"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// system + 2*HistoryTurns history + current utterance
	if got := len(primary.lastReq.Messages); got != 6 {
		t.Fatalf("got %d messages, want 6", got)
	}
	last := primary.lastReq.Messages[len(primary.lastReq.Messages)-1]
	if last.Role != "user" || last.Content != "latest answer" {
		t.Fatalf("last message = %+v", last)
	}
}

func TestGenerationFirstTurnUsesOpeningMarker(t *testing.T) {
	primary := &fakeLLM{name: "openai", content: "Welcome! Tell me about yourself."}
	stage := testGenerationStage(t, primary, &fakeLLM{name: "anthropic"}, GenerationConfig{})

	if _, _, err := stage.Run(context.Background(), &Request{FirstTurn: true}, ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	last := primary.lastReq.Messages[len(primary.lastReq.Messages)-1]
	if last.Content != openingMarker {
		t.Fatalf("opening utterance = %q", last.Content)
	}
}

func TestGenerationBothProvidersFail(t *testing.T) {
	primary := &fakeLLM{name: "openai", err: errors.New("down")}
	fallback := &fakeLLM{name: "anthropic", content: "   "}
	stage := testGenerationStage(t, primary, fallback, GenerationConfig{})

	_, _, err := stage.Run(context.Background(), &Request{}, "answer")
	var ex *ExhaustedError
	if !errors.As(err, &ex) {
		t.Fatalf("want ExhaustedError, got %v", err)
	}
	if ex.Code() != CodeLLMFailed {
		t.Fatalf("code = %s", ex.Code())
	}
}

func collectEvents(events *[]Event) func(Event) error {
	return func(ev Event) error {
		*events = append(*events, ev)
		return nil
	}
}

func TestRunStreamEmitsChunks(t *testing.T) {
	primary := &fakeLLM{name: "openai", stream: []llm.StreamChunk{
		{Content: "Why "},
		{Content: "Go?"},
		{Done: true, FinishReason: "stop"},
	}}
	stage := testGenerationStage(t, primary, &fakeLLM{name: "anthropic"}, GenerationConfig{
		MaxStreamDuration: time.Minute,
	})

	var events []Event
	reply, attempts, err := stage.RunStream(context.Background(), &Request{Streamed: true}, "answer", collectEvents(&events))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply.Text != "Why Go?" {
		t.Fatalf("text = %q", reply.Text)
	}
	if reply.Truncated {
		t.Fatal("clean stream marked truncated")
	}
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2 chunks", len(events))
	}
	for i, ev := range events {
		if ev.Type != EventChunk {
			t.Fatalf("event %d type = %s", i, ev.Type)
		}
		if ev.Data.(ChunkData).Index != i {
			t.Fatalf("chunk %d has index %d", i, ev.Data.(ChunkData).Index)
		}
	}
	if len(attempts) != 1 || !attempts[0].OK {
		t.Fatalf("attempts = %+v", attempts)
	}
}

func TestRunStreamFailsOverBeforeFirstToken(t *testing.T) {
	primary := &fakeLLM{name: "openai", streamErr: errors.New("connect refused")}
	fallback := &fakeLLM{name: "anthropic", stream: []llm.StreamChunk{
		{Content: "Tell me more."},
		{Done: true},
	}}
	stage := testGenerationStage(t, primary, fallback, GenerationConfig{MaxStreamDuration: time.Minute})

	var events []Event
	reply, attempts, err := stage.RunStream(context.Background(), &Request{}, "answer", collectEvents(&events))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply.Provider != "anthropic" {
		t.Fatalf("provider = %s", reply.Provider)
	}
	if len(attempts) != 2 {
		t.Fatalf("got %d attempts, want 2", len(attempts))
	}
}

func TestRunStreamMidStreamErrorTruncates(t *testing.T) {
	primary := &fakeLLM{name: "openai", stream: []llm.StreamChunk{
		{Content: "So tell me about "},
		{Error: errors.New("connection reset")},
	}}
	fallback := &fakeLLM{name: "anthropic"}
	stage := testGenerationStage(t, primary, fallback, GenerationConfig{MaxStreamDuration: time.Minute})

	var events []Event
	reply, _, err := stage.RunStream(context.Background(), &Request{}, "answer", collectEvents(&events))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reply.Truncated {
		t.Fatal("mid-stream failure must truncate, not fail over")
	}
	if reply.Text != "So tell me about " {
		t.Fatalf("text = %q", reply.Text)
	}
	if fallback.calls != 0 {
		t.Fatal("fallback ran after the stage was committed to the primary")
	}

	sawWarning := false
	for _, ev := range events {
		if ev.Type == EventWarning {
			sawWarning = true
		}
	}
	if !sawWarning {
		t.Fatal("no warning emitted for the truncation")
	}
}

func TestRunStreamBudgetTruncates(t *testing.T) {
	// The stream sends one token and then stalls past the budget.
	primary := &fakeLLM{name: "openai", hang: true, stream: []llm.StreamChunk{
		{Content: "Opening words"},
	}}
	stage := testGenerationStage(t, primary, &fakeLLM{name: "anthropic"}, GenerationConfig{
		MaxStreamDuration: 50 * time.Millisecond,
		HeartbeatInterval: time.Minute,
	})

	var events []Event
	reply, _, err := stage.RunStream(context.Background(), &Request{}, "answer", collectEvents(&events))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reply.Truncated {
		t.Fatal("budget expiry must mark the reply truncated")
	}
	if reply.Text != "Opening words" {
		t.Fatalf("text = %q", reply.Text)
	}

	last := events[len(events)-1]
	if last.Type != EventWarning {
		t.Fatalf("last event = %s, want warning", last.Type)
	}
}

func TestRunStreamRunContextExpiryTruncates(t *testing.T) {
	// The overall run deadline, not the stream budget, expires mid-stream.
	primary := &fakeLLM{name: "openai", hang: true, stream: []llm.StreamChunk{
		{Content: "Partial thought"},
	}}
	stage := testGenerationStage(t, primary, &fakeLLM{name: "anthropic"}, GenerationConfig{
		MaxStreamDuration: time.Minute,
		HeartbeatInterval: time.Minute,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	var events []Event
	reply, _, err := stage.RunStream(ctx, &Request{}, "answer", collectEvents(&events))
	if err != nil {
		t.Fatalf("partial reply must not surface as error, got %v", err)
	}
	if !reply.Truncated {
		t.Fatal("deadline expiry must mark the reply truncated")
	}
	if reply.Text != "Partial thought" {
		t.Fatalf("text = %q", reply.Text)
	}

	sawWarning := false
	for _, ev := range events {
		if ev.Type == EventWarning {
			sawWarning = true
		}
	}
	if !sawWarning {
		t.Fatal("no warning emitted before finalizing the partial reply")
	}
}

func TestRunStreamBothProvidersFail(t *testing.T) {
	primary := &fakeLLM{name: "openai", streamErr: errors.New("down")}
	fallback := &fakeLLM{name: "anthropic", stream: []llm.StreamChunk{
		{Error: errors.New("overloaded")},
	}}
	stage := testGenerationStage(t, primary, fallback, GenerationConfig{MaxStreamDuration: time.Minute})

	var events []Event
	_, attempts, err := stage.RunStream(context.Background(), &Request{}, "answer", collectEvents(&events))
	var ex *ExhaustedError
	if !errors.As(err, &ex) {
		t.Fatalf("want ExhaustedError, got %v", err)
	}
	if len(attempts) != 2 {
		t.Fatalf("got %d attempts, want 2", len(attempts))
	}
	for _, ev := range events {
		if ev.Type == EventChunk {
			t.Fatal("chunks emitted although no provider produced a token")
		}
	}
}
