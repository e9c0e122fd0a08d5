package pipeline

import (
	"context"
	"encoding/base64"
	"log/slog"
	"strconv"
	"sync"
	"time"
)

// synthesisGrace bounds the detached synthesis window used when the run
// budget was already spent by generation.
const synthesisGrace = 10 * time.Second

// OrchestratorConfig bounds one run.
type OrchestratorConfig struct {
	// RunBudget is the hard wall-clock limit for a whole run. It must be
	// larger than the sum of per-stage timeouts so one full failover
	// sequence per stage still fits.
	RunBudget         time.Duration
	HeartbeatInterval time.Duration
}

// Orchestrator sequences the three stages for one utterance and relays
// progress to the client as ordered events. Stage order is fixed:
// transcription strictly precedes generation strictly precedes synthesis,
// because each stage's output is the next stage's input.
type Orchestrator struct {
	transcription *TranscriptionStage
	generation    *GenerationStage
	synthesis     *SynthesisStage
	cfg           OrchestratorConfig
}

func NewOrchestrator(t *TranscriptionStage, g *GenerationStage, s *SynthesisStage, cfg OrchestratorConfig) *Orchestrator {
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = 5 * time.Second
	}
	return &Orchestrator{
		transcription: t,
		generation:    g,
		synthesis:     s,
		cfg:           cfg,
	}
}

// Run processes one request to its terminal event. Whatever happens, the
// stream receives exactly one `done`, preceded by at most one of
// `complete` or `error`. The returned Result carries partial output for
// persistence even when the run failed or the client disconnected.
func (o *Orchestrator) Run(clientCtx context.Context, req *Request, sink Sink) *Result {
	result := &Result{RunID: req.RunID, State: StateStarted}
	start := time.Now()

	guard := newGuardedSink(sink)
	defer guard.sendDone()

	// Provider calls survive a client disconnect: in-flight work is
	// allowed to finish so cache and history state stay consistent. The
	// disconnect is observed between stages instead.
	runCtx := context.WithoutCancel(clientCtx)
	if o.cfg.RunBudget > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(runCtx, o.cfg.RunBudget)
		defer cancel()
	}

	stopMonitor := o.startHeartbeatMonitor(guard)
	defer stopMonitor()

	guard.send(Event{Type: EventStart, Data: StartData{
		Model:     o.generation.cfg.PrimaryModel,
		PersonaID: req.PersonaID,
		Timestamp: now(),
	}})

	// Transcribing. The first turn has no candidate audio; the persona
	// opens the interview.
	var transcript string
	if !req.FirstTurn {
		result.State = StateTranscribing
		tr, attempts, err := o.transcription.Run(runCtx, req)
		result.Attempts = append(result.Attempts, attempts...)
		if err != nil {
			return o.fail(result, guard, err)
		}
		result.Transcription = tr
		transcript = tr.Text

		guard.send(Event{Type: EventTranscript, Data: TranscriptData{
			Text:       tr.Text,
			Confidence: tr.Confidence,
			DurationMs: tr.DurationMs,
			Provider:   tr.Provider,
		}})
	}

	if o.aborted(clientCtx, guard) {
		result.State = StateFailed
		result.Err = context.Canceled
		return result
	}

	// Generating.
	result.State = StateGenerating
	var reply *Reply
	var attempts []ProviderAttempt
	var err error
	if req.Streamed {
		reply, attempts, err = o.generation.RunStream(runCtx, req, transcript, guard.emit)
	} else {
		reply, attempts, err = o.generation.Run(runCtx, req, transcript)
	}
	result.Attempts = append(result.Attempts, attempts...)
	if err != nil {
		return o.fail(result, guard, err)
	}
	result.Reply = reply

	if o.aborted(clientCtx, guard) {
		result.State = StateFailed
		result.Err = context.Canceled
		return result
	}

	// Synthesizing. In non-streaming mode this starts as soon as the full
	// reply text is known; no client acknowledgment is awaited.
	result.State = StateSynthesizing
	synthCtx := runCtx
	budgetSpent := runCtx.Err() != nil
	if budgetSpent {
		// Generation spent the whole run budget finalizing a truncated
		// reply. Synthesis gets a short detached window so the client
		// still hears the partial text instead of an error.
		var cancel context.CancelFunc
		synthCtx, cancel = context.WithTimeout(context.WithoutCancel(runCtx), synthesisGrace)
		defer cancel()
	}
	audio, attempts, err := o.synthesis.Run(synthCtx, req, reply.Text)
	result.Attempts = append(result.Attempts, attempts...)
	switch {
	case err == nil:
		result.Audio = audio
		guard.send(Event{Type: EventAudio, Data: audioData(audio)})
	case budgetSpent:
		// A budget-expired run still completes with text only; the client
		// was already warned about the truncation.
		slog.Warn("synthesis abandoned after run budget expiry",
			"run_id", result.RunID, "error", err)
	default:
		return o.fail(result, guard, err)
	}

	guard.send(Event{Type: EventComplete, Data: CompleteData{
		FullText:   reply.Text,
		LatencyMs:  time.Since(start).Milliseconds(),
		ChunkCount: guard.chunkCount(),
		Evaluation: reply.Evaluation,
	}})

	result.State = StateCompleted
	return result
}

func (o *Orchestrator) fail(result *Result, guard *guardedSink, err error) *Result {
	result.State = StateFailed
	result.Err = err

	code := ErrorCode(err)
	slog.Error("pipeline run failed", "run_id", result.RunID, "code", code, "error", err)

	guard.send(Event{Type: EventError, Data: ErrorData{
		Code:    code,
		Message: clientMessage(code),
	}})
	return result
}

// aborted reports whether the client is gone; the orchestrator then stops
// scheduling further stages.
func (o *Orchestrator) aborted(clientCtx context.Context, guard *guardedSink) bool {
	if clientCtx.Err() != nil || guard.disconnected() {
		slog.Info("client disconnected, abandoning remaining stages")
		return true
	}
	return false
}

// startHeartbeatMonitor keeps the transport alive during quiet stretches
// (a slow STT call, an LLM thinking in full-response mode). It stops
// firing as soon as any other event updates the send clock.
func (o *Orchestrator) startHeartbeatMonitor(guard *guardedSink) func() {
	stop := make(chan struct{})
	go func() {
		ticker := time.NewTicker(o.cfg.HeartbeatInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if guard.idleFor() >= o.cfg.HeartbeatInterval {
					guard.send(Event{Type: EventHeartbeat, Data: HeartbeatData{Timestamp: now()}})
				}
			}
		}
	}()
	var once sync.Once
	return func() { once.Do(func() { close(stop) }) }
}

// clientMessage keeps raw provider errors off the wire; clients get the
// stable code plus a short human-readable line.
func clientMessage(code string) string {
	switch code {
	case CodeSTTFailed:
		return "we could not transcribe your answer, please try again"
	case CodeLLMFailed:
		return "the interviewer could not form a reply, please try again"
	case CodeTTSFailed:
		return "the spoken reply could not be generated"
	}
	return "an internal error interrupted the interview turn"
}

func audioData(a *Audio) AudioData {
	d := AudioData{
		ContentType: a.ContentType,
		CacheHit:    a.CacheHit,
		URL:         a.PublicURL,
		SizeBytes:   len(a.Data),
		Provider:    a.Provider,
	}
	if a.PublicURL == "" {
		d.Audio = base64.StdEncoding.EncodeToString(a.Data)
	}
	return d
}

// guardedSink serializes event emission, assigns sequence IDs, remembers
// client disconnects, counts chunks, and enforces the exactly-one-done
// terminal guarantee.
type guardedSink struct {
	mu       sync.Mutex
	sink     Sink
	seq      int
	chunks   int
	lastSent time.Time
	gone     bool
	closed   bool
}

func newGuardedSink(sink Sink) *guardedSink {
	return &guardedSink{sink: sink, lastSent: time.Now()}
}

func (g *guardedSink) send(ev Event) {
	_ = g.emit(ev)
}

// emit sends one event in order. After `done` nothing else goes out.
func (g *guardedSink) emit(ev Event) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return nil
	}
	if g.gone {
		return context.Canceled
	}

	g.seq++
	ev.ID = strconv.Itoa(g.seq)
	if ev.Type == EventChunk {
		g.chunks++
	}

	if err := g.sink.Send(ev); err != nil {
		g.gone = true
		return err
	}
	g.lastSent = time.Now()

	if ev.Type == EventDone {
		g.closed = true
	}
	return nil
}

func (g *guardedSink) sendDone() {
	g.mu.Lock()
	gone := g.gone
	g.mu.Unlock()
	if gone {
		// Nobody is listening, but the guarantee is per-stream, and the
		// stream is already torn down.
		return
	}
	g.send(Event{Type: EventDone, Data: DoneData{Timestamp: now()}})
}

func (g *guardedSink) disconnected() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.gone
}

func (g *guardedSink) chunkCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.chunks
}

func (g *guardedSink) idleFor() time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()
	return time.Since(g.lastSent)
}
