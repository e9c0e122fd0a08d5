package telemetry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Outcome classifies one provider attempt.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// Sink receives per-attempt latency measurements. Implementations must
// never block the caller; the pipeline records attempts on its critical path.
type Sink interface {
	Record(stage, provider string, outcome Outcome, durationMs int64)
}

// NopSink discards all measurements.
type NopSink struct{}

func (NopSink) Record(string, string, Outcome, int64) {}

type sample struct {
	stage      string
	provider   string
	outcome    Outcome
	durationMs int64
	at         time.Time
}

// PGSink buffers samples in a channel and drains them to Postgres from a
// single background goroutine. When the buffer is full the sample is
// dropped and counted; telemetry loss is preferable to pipeline latency.
type PGSink struct {
	db      *pgxpool.Pool
	samples chan sample
	done    chan struct{}
	mu      sync.Mutex
	closed  bool
}

func NewPGSink(db *pgxpool.Pool) *PGSink {
	s := &PGSink{
		db:      db,
		samples: make(chan sample, 1024),
		done:    make(chan struct{}),
	}
	go s.drain()
	return s
}

// Record drops the sample silently once the sink is closed; runs that
// outlive shutdown must not panic on a closed channel.
func (s *PGSink) Record(stage, provider string, outcome Outcome, durationMs int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.samples <- sample{stage: stage, provider: provider, outcome: outcome, durationMs: durationMs, at: time.Now()}:
	default:
		slog.Warn("telemetry buffer full, dropping sample", "stage", stage, "provider", provider)
	}
}

// Close stops the drain goroutine after flushing buffered samples. It is
// idempotent.
func (s *PGSink) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.samples)
	s.mu.Unlock()
	<-s.done
}

func (s *PGSink) drain() {
	defer close(s.done)
	for smp := range s.samples {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_, err := s.db.Exec(ctx,
			`INSERT INTO provider_latency (stage, provider, outcome, duration_ms, recorded_at)
			 VALUES ($1, $2, $3, $4, $5)`,
			smp.stage, smp.provider, string(smp.outcome), smp.durationMs, smp.at,
		)
		cancel()
		if err != nil {
			slog.Warn("telemetry insert failed", "error", err)
		}
	}
}
