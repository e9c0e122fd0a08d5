package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/VParka/fast-interview-sub002/internal/telemetry"
)

// Call binds a provider name to the work of invoking it once. Validate,
// when set, rejects payloads that arrived without error but are unusable
// (empty transcript, zero-byte audio); a rejection counts as a failure and
// triggers failover exactly like an error would.
type Call[T any] struct {
	Provider string
	Do       func(ctx context.Context) (T, error)
	Validate func(T) error
}

// Invoker executes the per-stage failover policy: try the primary, and on
// any failure (error, timeout, invalid payload) immediately try the
// fallback. There is no retry of the same provider and no backoff; the
// latency budget of a live interview turn forbids both. Provider order is
// always primary-then-fallback, never randomized.
type Invoker struct {
	sink telemetry.Sink
}

func NewInvoker(sink telemetry.Sink) *Invoker {
	if sink == nil {
		sink = telemetry.NopSink{}
	}
	return &Invoker{sink: sink}
}

// Report forwards an attempt made outside Invoke (streaming mode manages
// its own provider loop) to the telemetry sink.
func (inv *Invoker) Report(stage string, a ProviderAttempt) {
	inv.sink.Record(stage, a.Provider, outcomeOf(a), a.DurationMs)
}

// Invoke runs the failover sequence for one stage. Every attempt, success
// or failure, is returned and reported to the telemetry sink. When both
// calls fail the returned error is an *ExhaustedError carrying both
// attempts.
func Invoke[T any](ctx context.Context, inv *Invoker, stage string, primary, fallback Call[T], timeout time.Duration) (T, []ProviderAttempt, error) {
	var zero T
	attempts := make([]ProviderAttempt, 0, 2)

	for _, call := range []Call[T]{primary, fallback} {
		if call.Do == nil {
			continue
		}

		res, attempt, err := runAttempt(ctx, stage, call, timeout)
		attempts = append(attempts, attempt)
		inv.sink.Record(stage, call.Provider, outcomeOf(attempt), attempt.DurationMs)

		if err == nil {
			return res, attempts, nil
		}
		slog.Warn("provider attempt failed",
			"stage", stage,
			"provider", call.Provider,
			"duration_ms", attempt.DurationMs,
			"error", err,
		)

		// Run cancellation is not a provider fault; do not burn the
		// fallback on a dead run.
		if ctx.Err() != nil {
			return zero, attempts, ctx.Err()
		}
	}

	return zero, attempts, &ExhaustedError{Stage: stage, Attempts: attempts}
}

func runAttempt[T any](ctx context.Context, stage string, call Call[T], timeout time.Duration) (T, ProviderAttempt, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	res, err := call.Do(attemptCtx)
	if err == nil && call.Validate != nil {
		err = call.Validate(res)
	}

	attempt := ProviderAttempt{
		Stage:      stage,
		Provider:   call.Provider,
		StartedAt:  start,
		DurationMs: time.Since(start).Milliseconds(),
		OK:         err == nil,
	}
	if err != nil {
		attempt.Err = err.Error()
	}
	return res, attempt, err
}

func outcomeOf(a ProviderAttempt) telemetry.Outcome {
	if a.OK {
		return telemetry.OutcomeSuccess
	}
	return telemetry.OutcomeFailure
}
