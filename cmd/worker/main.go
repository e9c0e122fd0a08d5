package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"

	"github.com/VParka/fast-interview-sub002/internal/config"
	"github.com/VParka/fast-interview-sub002/internal/database"
	"github.com/VParka/fast-interview-sub002/internal/llm"
	"github.com/VParka/fast-interview-sub002/internal/queue"
	"github.com/VParka/fast-interview-sub002/internal/queue/workers"
	"github.com/VParka/fast-interview-sub002/internal/retrieval"
	"github.com/VParka/fast-interview-sub002/internal/session"
	"github.com/VParka/fast-interview-sub002/internal/storage"
)

func main() {
	godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	db, err := database.NewPool(ctx, cfg.Database)
	if err != nil {
		slog.Error("database unavailable", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := database.RunMigrations(ctx, db); err != nil {
		slog.Error("migrations failed", "error", err)
		os.Exit(1)
	}

	sessions := session.NewStore(db)
	resumes := retrieval.NewStore(db)
	blobs := storage.NewSupabaseStore(cfg.Storage.SupabaseURL, cfg.Storage.SupabaseKey)
	embedder := llm.NewOpenAIProvider(cfg.LLM.OpenAIKey)
	ingester := retrieval.NewIngester(resumes, blobs, embedder, cfg.Storage.AudioBucket, cfg.Retrieval.EmbeddingModel)

	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				"default": 1,
			},
		},
	)

	mux := asynq.NewServeMux()
	mux.Handle(queue.TypeTurnPersist, asynq.HandlerFunc(workers.NewTurnWorker(sessions).ProcessTask))
	mux.Handle(queue.TypeVoiceAnalysis, asynq.HandlerFunc(workers.NewAnalysisWorker(sessions).ProcessTask))
	mux.Handle(queue.TypeResumeIngest, asynq.HandlerFunc(workers.NewResumeWorker(ingester).ProcessTask))

	slog.Info("starting worker", "concurrency", 10)
	if err := srv.Run(mux); err != nil {
		slog.Error("worker error", "error", err)
		os.Exit(1)
	}
}
