package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Auth      AuthConfig
	LLM       LLMConfig
	STT       STTConfig
	TTS       TTSConfig
	Storage   StorageConfig
	Pipeline  PipelineConfig
	Retrieval RetrievalConfig
}

type ServerConfig struct {
	Host string
	Port int
}

type DatabaseConfig struct {
	URL      string
	MaxConns int
	MinConns int
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type AuthConfig struct {
	JWTSecret string
}

type LLMConfig struct {
	OpenAIKey     string
	AnthropicKey  string
	PrimaryModel  string
	FallbackModel string
}

type STTConfig struct {
	OpenAIKey       string
	OpenAIBaseURL   string
	OpenAIModel     string
	DeepgramKey     string
	DeepgramBaseURL string
	DeepgramModel   string
}

type TTSConfig struct {
	OpenAIKey         string
	OpenAIBaseURL     string
	OpenAIModel       string
	ElevenLabsKey     string
	ElevenLabsBaseURL string
	ElevenLabsVoice   string
	DefaultVoice      string
	DefaultSpeed      float64
}

type StorageConfig struct {
	SupabaseURL string
	SupabaseKey string
	AudioBucket string
}

// PipelineConfig carries the timing budget for one interview turn.
// The run budget must exceed the sum of per-stage timeouts so that a full
// failover sequence in every stage still fits inside one run.
type PipelineConfig struct {
	STTTimeout        time.Duration
	LLMTimeout        time.Duration
	TTSTimeout        time.Duration
	RunBudget         time.Duration
	MaxStreamDuration time.Duration
	HeartbeatInterval time.Duration
	HistoryTurns      int
	CacheCapacity     int
	CacheTTL          time.Duration
	PersonaFile       string
}

type RetrievalConfig struct {
	EmbeddingModel string
	TopK           int
	MinScore       float64
}

func Load() (*Config, error) {
	port, err := getEnvInt("SERVER_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_PORT: %w", err)
	}

	maxConns, err := getEnvInt("DB_MAX_CONNS", 20)
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MAX_CONNS: %w", err)
	}

	minConns, err := getEnvInt("DB_MIN_CONNS", 5)
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MIN_CONNS: %w", err)
	}

	redisDB, err := getEnvInt("REDIS_DB", 0)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	historyTurns, err := getEnvInt("PIPELINE_HISTORY_TURNS", 10)
	if err != nil {
		return nil, fmt.Errorf("invalid PIPELINE_HISTORY_TURNS: %w", err)
	}

	cacheCap, err := getEnvInt("TTS_CACHE_CAPACITY", 256)
	if err != nil {
		return nil, fmt.Errorf("invalid TTS_CACHE_CAPACITY: %w", err)
	}

	topK, err := getEnvInt("RETRIEVAL_TOP_K", 4)
	if err != nil {
		return nil, fmt.Errorf("invalid RETRIEVAL_TOP_K: %w", err)
	}

	speed, err := getEnvFloat("TTS_DEFAULT_SPEED", 1.0)
	if err != nil {
		return nil, fmt.Errorf("invalid TTS_DEFAULT_SPEED: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
			Port: port,
		},
		Database: DatabaseConfig{
			URL:      getEnv("DATABASE_URL", ""),
			MaxConns: maxConns,
			MinConns: minConns,
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
		},
		LLM: LLMConfig{
			OpenAIKey:     getEnv("OPENAI_API_KEY", ""),
			AnthropicKey:  getEnv("ANTHROPIC_API_KEY", ""),
			PrimaryModel:  getEnv("LLM_PRIMARY_MODEL", "gpt-4o"),
			FallbackModel: getEnv("LLM_FALLBACK_MODEL", "claude-3-haiku-20240307"),
		},
		STT: STTConfig{
			OpenAIKey:       getEnv("OPENAI_API_KEY", ""),
			OpenAIBaseURL:   getEnv("STT_OPENAI_BASE_URL", ""),
			OpenAIModel:     getEnv("STT_OPENAI_MODEL", ""),
			DeepgramKey:     getEnv("DEEPGRAM_API_KEY", ""),
			DeepgramBaseURL: getEnv("STT_DEEPGRAM_BASE_URL", ""),
			DeepgramModel:   getEnv("STT_DEEPGRAM_MODEL", ""),
		},
		TTS: TTSConfig{
			OpenAIKey:         getEnv("OPENAI_API_KEY", ""),
			OpenAIBaseURL:     getEnv("TTS_OPENAI_BASE_URL", ""),
			OpenAIModel:       getEnv("TTS_OPENAI_MODEL", ""),
			ElevenLabsKey:     getEnv("ELEVENLABS_API_KEY", ""),
			ElevenLabsBaseURL: getEnv("TTS_ELEVENLABS_BASE_URL", ""),
			ElevenLabsVoice:   getEnv("TTS_ELEVENLABS_VOICE", "21m00Tcm4TlvDq8ikWAM"),
			DefaultVoice:      getEnv("TTS_DEFAULT_VOICE", "alloy"),
			DefaultSpeed:      speed,
		},
		Storage: StorageConfig{
			SupabaseURL: getEnv("SUPABASE_URL", ""),
			SupabaseKey: getEnv("SUPABASE_SERVICE_KEY", ""),
			AudioBucket: getEnv("AUDIO_BUCKET", "interview-audio"),
		},
		Pipeline: PipelineConfig{
			STTTimeout:        getEnvDuration("PIPELINE_STT_TIMEOUT", 6*time.Second),
			LLMTimeout:        getEnvDuration("PIPELINE_LLM_TIMEOUT", 12*time.Second),
			TTSTimeout:        getEnvDuration("PIPELINE_TTS_TIMEOUT", 8*time.Second),
			RunBudget:         getEnvDuration("PIPELINE_RUN_BUDGET", 55*time.Second),
			MaxStreamDuration: getEnvDuration("PIPELINE_MAX_STREAM_DURATION", 30*time.Second),
			HeartbeatInterval: getEnvDuration("PIPELINE_HEARTBEAT_INTERVAL", 5*time.Second),
			HistoryTurns:      historyTurns,
			CacheCapacity:     cacheCap,
			CacheTTL:          getEnvDuration("TTS_CACHE_TTL", 7*24*time.Hour),
			PersonaFile:       getEnv("PERSONA_FILE", ""),
		},
		Retrieval: RetrievalConfig{
			EmbeddingModel: getEnv("RETRIEVAL_EMBEDDING_MODEL", "text-embedding-3-small"),
			TopK:           topK,
			MinScore:       0.3,
		},
	}

	return cfg, nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func (c *Config) Validate() error {
	var missing []string
	if c.LLM.OpenAIKey == "" {
		missing = append(missing, "OPENAI_API_KEY")
	}
	if c.Auth.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required env vars: %s", strings.Join(missing, ", "))
	}

	stageSum := c.Pipeline.STTTimeout + c.Pipeline.LLMTimeout + c.Pipeline.TTSTimeout
	if c.Pipeline.RunBudget <= stageSum {
		return fmt.Errorf("PIPELINE_RUN_BUDGET (%s) must exceed the sum of stage timeouts (%s)",
			c.Pipeline.RunBudget, stageSum)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.Atoi(v)
}

func getEnvFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.ParseFloat(v, 64)
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
