package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/VParka/fast-interview-sub002/internal/llm"
	"github.com/VParka/fast-interview-sub002/internal/persona"
	"github.com/VParka/fast-interview-sub002/internal/prompt"
)

// openingMarker stands in for the candidate's utterance on the first turn,
// when there is nothing to transcribe yet.
const openingMarker = "[interview started — greet the candidate briefly and ask your first question]"

const schemaInstructions = `Respond with ONLY a valid JSON object of this shape:
{
  "question": "<your spoken reply to the candidate — required>",
  "evaluation": {"relevance": <0-100>, "clarity": <0-100>, "depth": <0-100>},
  "follow_up_intent": <true|false>,
  "inner_thought": "<optional private assessment>",
  "suggested_follow_up": "<optional next question>"
}
No markdown, no text outside the JSON object.`

// GenerationConfig bounds one generation run.
type GenerationConfig struct {
	PrimaryModel      string
	FallbackModel     string
	MaxTokens         int
	HistoryTurns      int
	Timeout           time.Duration
	MaxStreamDuration time.Duration
	HeartbeatInterval time.Duration
}

// GenerationStage produces the interviewer's next reply from the
// transcribed answer, the persona profile, and the conversation history.
type GenerationStage struct {
	invoker  *Invoker
	primary  llm.Provider
	fallback llm.Provider
	personas *persona.Registry
	cfg      GenerationConfig
}

func NewGenerationStage(inv *Invoker, primary, fallback llm.Provider, personas *persona.Registry, cfg GenerationConfig) *GenerationStage {
	if cfg.HistoryTurns <= 0 {
		cfg.HistoryTurns = 10
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 512
	}
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = 5 * time.Second
	}
	return &GenerationStage{
		invoker:  inv,
		primary:  primary,
		fallback: fallback,
		personas: personas,
		cfg:      cfg,
	}
}

// Run executes full-response mode: one failover sequence over the two LLM
// providers. In structured mode the primary is asked for the JSON
// evaluation payload; a payload that fails validation is recovered by
// free-text extraction rather than trusted partially.
func (s *GenerationStage) Run(ctx context.Context, req *Request, transcript string) (*Reply, []ProviderAttempt, error) {
	msgs := s.buildMessages(req, transcript)

	primaryMsgs := msgs
	if req.Structured {
		primaryMsgs = withSchemaInstructions(msgs)
	}

	validate := func(r *llm.ChatResponse) error {
		if r == nil || strings.TrimSpace(r.Content) == "" {
			return fmt.Errorf("empty completion")
		}
		return nil
	}

	resp, attempts, err := Invoke(ctx, s.invoker, StageGeneration,
		Call[*llm.ChatResponse]{
			Provider: s.primary.Name(),
			Do: func(ctx context.Context) (*llm.ChatResponse, error) {
				return s.primary.ChatCompletion(ctx, llm.ChatRequest{
					Model:     s.cfg.PrimaryModel,
					Messages:  primaryMsgs,
					MaxTokens: s.cfg.MaxTokens,
					JSONMode:  req.Structured,
				})
			},
			Validate: validate,
		},
		Call[*llm.ChatResponse]{
			Provider: s.fallback.Name(),
			Do: func(ctx context.Context) (*llm.ChatResponse, error) {
				return s.fallback.ChatCompletion(ctx, llm.ChatRequest{
					Model:     s.cfg.FallbackModel,
					Messages:  msgs,
					MaxTokens: s.cfg.MaxTokens,
				})
			},
			Validate: validate,
		},
		s.cfg.Timeout,
	)
	if err != nil {
		return nil, attempts, err
	}

	reply := s.interpret(resp, req.Structured)
	if strings.TrimSpace(reply.Text) == "" {
		return nil, attempts, ErrNoReply
	}
	return reply, attempts, nil
}

// RunStream executes streaming mode. Tokens come from the primary provider
// only: a failure before the first emitted token fails over to the
// fallback stream, but once a token has reached the client the stage is
// committed to that provider and a mid-stream outage surfaces as a
// truncated reply. Exceeding the stream budget emits a warning and
// truncates gracefully.
func (s *GenerationStage) RunStream(ctx context.Context, req *Request, transcript string, emit func(Event) error) (*Reply, []ProviderAttempt, error) {
	msgs := s.buildMessages(req, transcript)

	var attempts []ProviderAttempt

	type candidate struct {
		provider llm.Provider
		model    string
	}
	candidates := []candidate{
		{s.primary, s.cfg.PrimaryModel},
		{s.fallback, s.cfg.FallbackModel},
	}

	start := time.Now()
	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var budget <-chan time.Time
	if s.cfg.MaxStreamDuration > 0 {
		timer := time.NewTimer(s.cfg.MaxStreamDuration)
		defer timer.Stop()
		budget = timer.C
	}

	heartbeat := time.NewTicker(s.cfg.HeartbeatInterval)
	defer heartbeat.Stop()

	var full strings.Builder
	chunkIndex := 0
	lastToken := time.Now()

	finalize := func(c candidate, truncated bool, attemptStart time.Time, attemptErr error) (*Reply, []ProviderAttempt, error) {
		attempt := ProviderAttempt{
			Stage:      StageGeneration,
			Provider:   c.provider.Name(),
			StartedAt:  attemptStart,
			DurationMs: time.Since(attemptStart).Milliseconds(),
			OK:         attemptErr == nil,
		}
		if attemptErr != nil {
			attempt.Err = attemptErr.Error()
		}
		attempts = append(attempts, attempt)
		s.invoker.Report(StageGeneration, attempt)

		if full.Len() == 0 {
			if attemptErr != nil {
				return nil, attempts, &ExhaustedError{Stage: StageGeneration, Attempts: attempts}
			}
			return nil, attempts, ErrNoReply
		}
		return &Reply{
			Text:      full.String(),
			Provider:  c.provider.Name(),
			Model:     c.model,
			LatencyMs: time.Since(start).Milliseconds(),
			Truncated: truncated,
		}, attempts, nil
	}

providerLoop:
	for _, c := range candidates {
		attemptStart := time.Now()

		ch, err := c.provider.ChatCompletionStream(streamCtx, llm.ChatRequest{
			Model:     c.model,
			Messages:  msgs,
			MaxTokens: s.cfg.MaxTokens,
		})
		if err != nil {
			attempt := ProviderAttempt{
				Stage:      StageGeneration,
				Provider:   c.provider.Name(),
				StartedAt:  attemptStart,
				DurationMs: time.Since(attemptStart).Milliseconds(),
				Err:        err.Error(),
			}
			attempts = append(attempts, attempt)
			s.invoker.Report(StageGeneration, attempt)
			slog.Warn("stream open failed", "provider", c.provider.Name(), "error", err)
			continue
		}

		// budgetWarning tells the client the reply is being cut short.
		// Nothing emitted yet means nothing to cut; the expiry then
		// propagates as a failure instead.
		budgetWarning := func() {
			if full.Len() > 0 {
				_ = emit(Event{Type: EventWarning, Data: WarningData{
					Message:   "run budget exhausted, finalizing partial reply",
					ElapsedMs: time.Since(start).Milliseconds(),
				}})
			}
		}

		committed := false
		for {
			select {
			case chunk, ok := <-ch:
				if !ok {
					// Providers also close the stream when the context is
					// cancelled; that is budget expiry, not a clean finish.
					if ctx.Err() != nil {
						budgetWarning()
						return finalize(c, true, attemptStart, ctx.Err())
					}
					return finalize(c, false, attemptStart, nil)
				}
				if chunk.Error != nil {
					if !committed {
						// No token has reached the client yet; the
						// next provider gets its turn.
						attempt := ProviderAttempt{
							Stage:      StageGeneration,
							Provider:   c.provider.Name(),
							StartedAt:  attemptStart,
							DurationMs: time.Since(attemptStart).Milliseconds(),
							Err:        chunk.Error.Error(),
						}
						attempts = append(attempts, attempt)
						s.invoker.Report(StageGeneration, attempt)
						continue providerLoop
					}
					slog.Warn("stream failed mid-reply, truncating",
						"provider", c.provider.Name(), "error", chunk.Error)
					_ = emit(Event{Type: EventWarning, Data: WarningData{
						Message:   "generation interrupted, finalizing partial reply",
						ElapsedMs: time.Since(start).Milliseconds(),
					}})
					return finalize(c, true, attemptStart, nil)
				}
				if chunk.Content != "" {
					committed = true
					lastToken = time.Now()
					full.WriteString(chunk.Content)
					if err := emit(Event{Type: EventChunk, Data: ChunkData{
						Content:      chunk.Content,
						Index:        chunkIndex,
						FinishReason: chunk.FinishReason,
					}}); err != nil {
						// Client is gone; stop consuming and hand the
						// partial text back for persistence.
						cancel()
						return finalize(c, true, attemptStart, nil)
					}
					chunkIndex++
				}
				if chunk.Done {
					return finalize(c, false, attemptStart, nil)
				}

			case <-budget:
				_ = emit(Event{Type: EventWarning, Data: WarningData{
					Message:   "maximum stream duration reached, truncating reply",
					ElapsedMs: time.Since(start).Milliseconds(),
				}})
				cancel()
				return finalize(c, true, attemptStart, nil)

			case <-heartbeat.C:
				if time.Since(lastToken) >= s.cfg.HeartbeatInterval {
					_ = emit(Event{Type: EventHeartbeat, Data: HeartbeatData{Timestamp: now()}})
				}

			case <-ctx.Done():
				budgetWarning()
				return finalize(c, true, attemptStart, ctx.Err())
			}
		}
	}

	return nil, attempts, &ExhaustedError{Stage: StageGeneration, Attempts: attempts}
}

// buildMessages assembles the persona-conditioned prompt: rendered system
// template, optional résumé context, bounded history, then the current
// utterance (or the opening marker on the first turn).
func (s *GenerationStage) buildMessages(req *Request, transcript string) []llm.Message {
	p, err := s.personas.Get(req.PersonaID)
	if err != nil {
		slog.Warn("unknown persona, using default", "persona_id", req.PersonaID)
		p = s.personas.Default()
	}

	difficulty := req.Difficulty
	if difficulty == "" {
		difficulty = "standard"
	}
	position := req.Position
	if position == "" {
		position = "general"
	}
	industry := req.Industry
	if industry == "" {
		industry = "technology"
	}

	system := prompt.RenderLenient(p.SystemPrompt, map[string]string{
		"name":       p.Name,
		"role":       p.Role,
		"position":   position,
		"industry":   industry,
		"difficulty": difficulty,
	})
	if p.Personality != "" {
		system += "\nYour demeanor: " + p.Personality
	}
	if req.RetrievalContext != "" {
		system += "\n\nBackground from the candidate's résumé:\n" + req.RetrievalContext
	}

	msgs := []llm.Message{{Role: "system", Content: system}}

	history := req.History
	if max := s.cfg.HistoryTurns * 2; len(history) > max {
		history = history[len(history)-max:]
	}
	for _, t := range history {
		msgs = append(msgs, llm.Message{Role: t.Role, Content: t.Content})
	}

	utterance := transcript
	if req.FirstTurn || utterance == "" {
		utterance = openingMarker
	}
	return append(msgs, llm.Message{Role: "user", Content: utterance})
}

func withSchemaInstructions(msgs []llm.Message) []llm.Message {
	out := make([]llm.Message, len(msgs))
	copy(out, msgs)
	if len(out) > 0 && out[0].Role == "system" {
		out[0].Content += "\n\n" + schemaInstructions
	}
	return out
}

// interpret converts the raw completion into a Reply. Structured payloads
// are validated strictly; anything that fails validation is demoted to
// free-text extraction and no partial structured data is kept.
func (s *GenerationStage) interpret(resp *llm.ChatResponse, structured bool) *Reply {
	reply := &Reply{
		Provider:  resp.Provider,
		Model:     resp.Model,
		LatencyMs: resp.LatencyMs,
	}

	if structured {
		parsed, err := parseStructured(resp.Content)
		if err == nil {
			parsed.Provider = resp.Provider
			parsed.Model = resp.Model
			parsed.LatencyMs = resp.LatencyMs
			return parsed
		}
		slog.Warn("structured reply rejected, extracting free text", "error", err)
	}

	reply.Text = extractFreeText(resp.Content)
	return reply
}

type structuredPayload struct {
	Question          string      `json:"question"`
	Evaluation        *Evaluation `json:"evaluation"`
	FollowUpIntent    *bool       `json:"follow_up_intent"`
	InnerThought      string      `json:"inner_thought"`
	SuggestedFollowUp string      `json:"suggested_follow_up"`
}

// parseStructured validates the schema: question, evaluation with all
// three scores, and follow_up_intent are required.
func parseStructured(content string) (*Reply, error) {
	cleaned := stripCodeFence(content)

	var p structuredPayload
	if err := json.Unmarshal([]byte(cleaned), &p); err != nil {
		return nil, &SchemaError{Cause: err}
	}

	var missing []string
	if strings.TrimSpace(p.Question) == "" {
		missing = append(missing, "question")
	}
	if p.Evaluation == nil {
		missing = append(missing, "evaluation")
	}
	if p.FollowUpIntent == nil {
		missing = append(missing, "follow_up_intent")
	}
	if len(missing) > 0 {
		return nil, &SchemaError{Missing: missing}
	}

	return &Reply{
		Text:              p.Question,
		Evaluation:        p.Evaluation,
		InnerThought:      p.InnerThought,
		FollowUpIntent:    *p.FollowUpIntent,
		SuggestedFollowUp: p.SuggestedFollowUp,
	}, nil
}

// extractFreeText recovers a speakable reply from a payload that failed
// schema validation: a parseable question field if one exists, otherwise
// the raw text with fences stripped.
func extractFreeText(content string) string {
	cleaned := stripCodeFence(content)

	var partial map[string]any
	if err := json.Unmarshal([]byte(cleaned), &partial); err == nil {
		if q, ok := partial["question"].(string); ok && strings.TrimSpace(q) != "" {
			return strings.TrimSpace(q)
		}
	}
	return strings.TrimSpace(cleaned)
}

func stripCodeFence(content string) string {
	c := strings.TrimSpace(content)
	c = strings.TrimPrefix(c, "```json")
	c = strings.TrimPrefix(c, "```")
	c = strings.TrimSuffix(c, "```")
	return strings.TrimSpace(c)
}
