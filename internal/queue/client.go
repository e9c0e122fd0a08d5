// Package queue moves post-turn work off the event-stream critical path:
// history writes, voice analysis and resume ingestion all run on workers.
package queue

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/VParka/fast-interview-sub002/internal/config"
)

type Client struct {
	client *asynq.Client
}

func NewClient(cfg config.RedisConfig) *Client {
	return &Client{
		client: asynq.NewClient(asynq.RedisClientOpt{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		}),
	}
}

func (c *Client) Close() error {
	return c.client.Close()
}

func (c *Client) EnqueueTurnPersist(payload TurnPersistPayload) error {
	return c.enqueue(TypeTurnPersist, payload, asynq.MaxRetry(5), asynq.Timeout(30*time.Second))
}

func (c *Client) EnqueueVoiceAnalysis(payload VoiceAnalysisPayload) error {
	return c.enqueue(TypeVoiceAnalysis, payload, asynq.MaxRetry(3), asynq.Timeout(30*time.Second))
}

func (c *Client) EnqueueResumeIngest(payload ResumeIngestPayload) error {
	return c.enqueue(TypeResumeIngest, payload, asynq.MaxRetry(3), asynq.Timeout(5*time.Minute))
}

func (c *Client) enqueue(taskType string, payload interface{}, opts ...asynq.Option) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	task := asynq.NewTask(taskType, data)
	_, err = c.client.Enqueue(task, opts...)
	if err != nil {
		return fmt.Errorf("enqueue %s: %w", taskType, err)
	}
	return nil
}
