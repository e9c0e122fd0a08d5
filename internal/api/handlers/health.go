package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// readyCheckTimeout bounds each dependency probe so a hung store cannot
// stall the readiness endpoint.
const readyCheckTimeout = 2 * time.Second

type HealthHandler struct {
	db    *pgxpool.Pool
	redis *redis.Client
}

func NewHealthHandler(db *pgxpool.Pool, rdb *redis.Client) *HealthHandler {
	return &HealthHandler{db: db, redis: rdb}
}

// Healthz answers as long as the process is up; it takes no dependencies.
func (h *HealthHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type readyCheck struct {
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
	LatencyMs int64  `json:"latency_ms"`
}

// Readyz verifies the backing stores an interview turn needs: Postgres for
// sessions and history, redis for the durable audio cache and the queue.
func (h *HealthHandler) Readyz(w http.ResponseWriter, r *http.Request) {
	checks := map[string]readyCheck{}
	ready := true

	if h.db != nil {
		c := probe(r.Context(), func(ctx context.Context) error { return h.db.Ping(ctx) })
		checks["postgres"] = c
		ready = ready && c.Error == ""
	}
	if h.redis != nil {
		c := probe(r.Context(), func(ctx context.Context) error { return h.redis.Ping(ctx).Err() })
		checks["redis"] = c
		ready = ready && c.Error == ""
	}

	status := http.StatusOK
	overall := "ready"
	if !ready {
		status = http.StatusServiceUnavailable
		overall = "degraded"
	}
	writeJSON(w, status, map[string]any{"status": overall, "checks": checks})
}

func probe(ctx context.Context, ping func(context.Context) error) readyCheck {
	ctx, cancel := context.WithTimeout(ctx, readyCheckTimeout)
	defer cancel()

	start := time.Now()
	c := readyCheck{Status: "ok"}
	if err := ping(ctx); err != nil {
		c.Status = "unhealthy"
		c.Error = err.Error()
	}
	c.LatencyMs = time.Since(start).Milliseconds()
	return c
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
