package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/VParka/fast-interview-sub002/internal/storage"
	"github.com/VParka/fast-interview-sub002/internal/synthcache"
	"github.com/VParka/fast-interview-sub002/internal/tts"
)

// SynthesisConfig carries the voice defaults and the per-provider timeout.
// FallbackVoice is the fallback vendor's equivalent of the default voice:
// voice names are vendor-specific, so the fallback provider cannot be
// handed the primary's voice and be expected to succeed.
type SynthesisConfig struct {
	DefaultVoice  string
	FallbackVoice string
	DefaultSpeed  float64
	DefaultModel  string
	Timeout       time.Duration
	AudioBucket   string
}

// SynthesisStage converts reply text to audio, consulting the two-tier
// cache before any provider is contacted and failing over between the two
// TTS providers on a miss.
type SynthesisStage struct {
	invoker  *Invoker
	primary  tts.Provider
	fallback tts.Provider
	cache    *synthcache.Cache
	blobs    storage.BlobStore
	cfg      SynthesisConfig
}

func NewSynthesisStage(inv *Invoker, primary, fallback tts.Provider, cache *synthcache.Cache, blobs storage.BlobStore, cfg SynthesisConfig) *SynthesisStage {
	if cfg.DefaultSpeed <= 0 {
		cfg.DefaultSpeed = 1.0
	}
	return &SynthesisStage{
		invoker:  inv,
		primary:  primary,
		fallback: fallback,
		cache:    cache,
		blobs:    blobs,
		cfg:      cfg,
	}
}

// Run synthesizes text. Two calls with the same (text, voice, speed,
// model) tuple hit the cache on the second call and return byte-identical
// audio.
func (s *SynthesisStage) Run(ctx context.Context, req *Request, text string) (*Audio, []ProviderAttempt, error) {
	voice := req.Voice
	if voice == "" {
		voice = s.cfg.DefaultVoice
	}
	speed := req.Speed
	if speed <= 0 {
		speed = s.cfg.DefaultSpeed
	}
	model := req.TTSModel
	if model == "" {
		model = s.cfg.DefaultModel
	}

	key := synthcache.Key(text, voice, speed, model)

	if entry, ok := s.cache.Lookup(ctx, key); ok {
		return &Audio{
			Data:        entry.Audio,
			ContentType: entry.ContentType,
			CacheHit:    true,
			PublicURL:   s.publicURL(key),
		}, nil, nil
	}

	ttsReq := tts.Request{Input: text, Voice: voice, Speed: speed, Model: model}

	// The cache stays addressed by the logical voice; only the provider
	// call is remapped into the fallback vendor's voice namespace.
	fallbackReq := ttsReq
	if s.cfg.FallbackVoice != "" {
		fallbackReq.Voice = s.cfg.FallbackVoice
	}

	validate := func(r *tts.Result) error {
		if r == nil || len(r.Audio) == 0 {
			return fmt.Errorf("empty audio payload")
		}
		return nil
	}

	winner := ""
	result, attempts, err := Invoke(ctx, s.invoker, StageSynthesis,
		Call[*tts.Result]{
			Provider: s.primary.Name(),
			Do: func(ctx context.Context) (*tts.Result, error) {
				r, err := s.primary.Synthesize(ctx, ttsReq)
				if err == nil {
					winner = s.primary.Name()
				}
				return r, err
			},
			Validate: validate,
		},
		Call[*tts.Result]{
			Provider: s.fallback.Name(),
			Do: func(ctx context.Context) (*tts.Result, error) {
				r, err := s.fallback.Synthesize(ctx, fallbackReq)
				if err == nil {
					winner = s.fallback.Name()
				}
				return r, err
			},
			Validate: validate,
		},
		s.cfg.Timeout,
	)
	if err != nil {
		return nil, attempts, err
	}

	entry := &synthcache.Entry{
		Audio:       result.Audio,
		ContentType: result.ContentType,
		CreatedAt:   time.Now(),
	}
	s.cache.Store(ctx, key, entry)
	s.uploadAsync(ctx, key, result)

	return &Audio{
		Data:        result.Audio,
		ContentType: result.ContentType,
		Provider:    winner,
		PublicURL:   s.publicURL(key),
	}, attempts, nil
}

// uploadAsync pushes the audio blob to object storage off the critical
// path so clients can replay it by URL later.
func (s *SynthesisStage) uploadAsync(ctx context.Context, key string, result *tts.Result) {
	if s.blobs == nil {
		return
	}
	bgCtx := context.WithoutCancel(ctx)
	go func() {
		uploadCtx, cancel := context.WithTimeout(bgCtx, 30*time.Second)
		defer cancel()
		if err := s.blobs.Upload(uploadCtx, s.cfg.AudioBucket, blobPath(key), result.Audio, result.ContentType); err != nil {
			slog.Warn("audio blob upload failed", "key", key, "error", err)
		}
	}()
}

func (s *SynthesisStage) publicURL(key string) string {
	if s.blobs == nil {
		return ""
	}
	return s.blobs.PublicURL(s.cfg.AudioBucket, blobPath(key))
}

func blobPath(key string) string { return key + ".mp3" }
