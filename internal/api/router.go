package api

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/VParka/fast-interview-sub002/internal/api/handlers"
	"github.com/VParka/fast-interview-sub002/internal/api/middleware"
	"github.com/VParka/fast-interview-sub002/internal/auth"
	"github.com/VParka/fast-interview-sub002/internal/config"
	"github.com/VParka/fast-interview-sub002/internal/llm"
	"github.com/VParka/fast-interview-sub002/internal/persona"
	"github.com/VParka/fast-interview-sub002/internal/pipeline"
	"github.com/VParka/fast-interview-sub002/internal/queue"
	"github.com/VParka/fast-interview-sub002/internal/retrieval"
	"github.com/VParka/fast-interview-sub002/internal/session"
	"github.com/VParka/fast-interview-sub002/internal/storage"
	"github.com/VParka/fast-interview-sub002/internal/stt"
	"github.com/VParka/fast-interview-sub002/internal/synthcache"
	"github.com/VParka/fast-interview-sub002/internal/telemetry"
	"github.com/VParka/fast-interview-sub002/internal/tts"
)

type Router struct {
	mux   *chi.Mux
	db    *pgxpool.Pool
	redis *redis.Client
	cfg   *config.Config
	jwt   *auth.JWTMiddleware
}

func NewRouter(db *pgxpool.Pool, rdb *redis.Client, cfg *config.Config) *Router {
	return &Router{
		mux:   chi.NewRouter(),
		db:    db,
		redis: rdb,
		cfg:   cfg,
		jwt:   auth.NewJWTMiddleware(cfg.Auth.JWTSecret),
	}
}

func (rt *Router) Setup() (http.Handler, error) {
	r := rt.mux

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS([]string{"*"}))

	rl := middleware.NewRateLimiter(50, 100)
	r.Use(rl.Limit)

	health := handlers.NewHealthHandler(rt.db, rt.redis)
	r.Get("/healthz", health.Healthz)
	r.Get("/readyz", health.Readyz)

	personas, err := persona.NewRegistry(rt.cfg.Pipeline.PersonaFile)
	if err != nil {
		return nil, fmt.Errorf("load personas: %w", err)
	}

	orch, embedder := rt.buildPipeline(personas)

	blobs := storage.NewSupabaseStore(rt.cfg.Storage.SupabaseURL, rt.cfg.Storage.SupabaseKey)
	sessions := session.NewStore(rt.db)
	resumes := retrieval.NewStore(rt.db)
	resumeCtx := retrieval.NewContextProvider(resumes, embedder, rt.cfg.Retrieval.EmbeddingModel, rt.cfg.Retrieval.TopK)
	queueClient := queue.NewClient(rt.cfg.Redis)

	interviewH := handlers.NewInterviewHandler(orch, sessions, resumeCtx, queueClient, rt.cfg.Pipeline.HistoryTurns)
	sessionH := handlers.NewSessionHandler(sessions, personas)
	resumeH := handlers.NewResumeHandler(resumes, blobs, queueClient, rt.cfg.Storage.AudioBucket)
	personaH := handlers.NewPersonaHandler(personas)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(rt.jwt.Authenticate)

		r.Get("/personas", personaH.List)

		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", sessionH.Create)
			r.Get("/", sessionH.List)
			r.Get("/{sessionID}", sessionH.Get)
			r.Get("/{sessionID}/messages", sessionH.Messages)
			r.Get("/{sessionID}/metrics", sessionH.Metrics)
			r.Post("/{sessionID}/complete", sessionH.Complete)
		})

		r.Post("/interviews/{sessionID}/turn", interviewH.Turn)

		r.Route("/resumes", func(r chi.Router) {
			r.Post("/", resumeH.Upload)
			r.Get("/{id}", resumeH.Get)
		})
	})

	return r, nil
}

// buildPipeline wires the three stages, both providers per stage and the
// audio cache. The embedding provider is shared with retrieval.
func (rt *Router) buildPipeline(personas *persona.Registry) (*pipeline.Orchestrator, llm.Provider) {
	cfg := rt.cfg
	invoker := pipeline.NewInvoker(telemetry.NewPGSink(rt.db))

	transcription := pipeline.NewTranscriptionStage(invoker,
		stt.NewWhisper(stt.WhisperConfig{
			APIKey:  cfg.STT.OpenAIKey,
			BaseURL: cfg.STT.OpenAIBaseURL,
			Model:   cfg.STT.OpenAIModel,
		}),
		stt.NewDeepgram(stt.DeepgramConfig{
			APIKey:  cfg.STT.DeepgramKey,
			BaseURL: cfg.STT.DeepgramBaseURL,
			Model:   cfg.STT.DeepgramModel,
		}),
		cfg.Pipeline.STTTimeout,
	)

	openAI := llm.NewOpenAIProvider(cfg.LLM.OpenAIKey)
	generation := pipeline.NewGenerationStage(invoker,
		openAI,
		llm.NewAnthropicProvider(cfg.LLM.AnthropicKey),
		personas,
		pipeline.GenerationConfig{
			PrimaryModel:      cfg.LLM.PrimaryModel,
			FallbackModel:     cfg.LLM.FallbackModel,
			HistoryTurns:      cfg.Pipeline.HistoryTurns,
			Timeout:           cfg.Pipeline.LLMTimeout,
			MaxStreamDuration: cfg.Pipeline.MaxStreamDuration,
			HeartbeatInterval: cfg.Pipeline.HeartbeatInterval,
		},
	)

	audioCache := synthcache.New(cfg.Pipeline.CacheCapacity,
		synthcache.NewRedisStore(rt.redis, cfg.Pipeline.CacheTTL))
	blobs := storage.NewSupabaseStore(cfg.Storage.SupabaseURL, cfg.Storage.SupabaseKey)

	synthesis := pipeline.NewSynthesisStage(invoker,
		tts.NewOpenAI(tts.OpenAIConfig{
			APIKey:  cfg.TTS.OpenAIKey,
			BaseURL: cfg.TTS.OpenAIBaseURL,
			Model:   cfg.TTS.OpenAIModel,
		}),
		tts.NewElevenLabs(tts.ElevenLabsConfig{
			APIKey:  cfg.TTS.ElevenLabsKey,
			BaseURL: cfg.TTS.ElevenLabsBaseURL,
		}),
		audioCache,
		blobs,
		pipeline.SynthesisConfig{
			DefaultVoice:  cfg.TTS.DefaultVoice,
			FallbackVoice: cfg.TTS.ElevenLabsVoice,
			DefaultSpeed:  cfg.TTS.DefaultSpeed,
			DefaultModel:  cfg.TTS.OpenAIModel,
			Timeout:       cfg.Pipeline.TTSTimeout,
			AudioBucket:   cfg.Storage.AudioBucket,
		},
	)

	orch := pipeline.NewOrchestrator(transcription, generation, synthesis, pipeline.OrchestratorConfig{
		RunBudget:         cfg.Pipeline.RunBudget,
		HeartbeatInterval: cfg.Pipeline.HeartbeatInterval,
	})
	return orch, openAI
}
