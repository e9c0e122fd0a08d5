package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ElevenLabsConfig holds configuration for the ElevenLabs TTS backend.
type ElevenLabsConfig struct {
	APIKey  string
	BaseURL string // default: "https://api.elevenlabs.io/v1"
	Model   string // default: "eleven_turbo_v2_5"
}

// ElevenLabs synthesizes speech using the ElevenLabs text-to-speech API.
// The voice in the request is an ElevenLabs voice ID, addressed in the URL
// rather than the payload.
type ElevenLabs struct {
	cfg        ElevenLabsConfig
	httpClient *http.Client
}

// NewElevenLabs creates an ElevenLabs TTS provider with sensible defaults applied.
func NewElevenLabs(cfg ElevenLabsConfig) *ElevenLabs {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.elevenlabs.io/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "eleven_turbo_v2_5"
	}
	return &ElevenLabs{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

func (e *ElevenLabs) Name() string { return "elevenlabs" }

// Synthesize converts text to audio and returns the audio bytes as MP3.
func (e *ElevenLabs) Synthesize(ctx context.Context, req Request) (*Result, error) {
	if req.Voice == "" {
		return nil, fmt.Errorf("elevenlabs requires a voice id")
	}
	model := req.Model
	if model == "" {
		model = e.cfg.Model
	}

	payload := map[string]any{
		"text":     req.Input,
		"model_id": model,
		"voice_settings": map[string]any{
			"stability":        0.5,
			"similarity_boost": 0.75,
		},
	}
	if req.Speed > 0 && req.Speed != 1.0 {
		payload["voice_settings"].(map[string]any)["speed"] = req.Speed
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	endpoint := fmt.Sprintf("%s/text-to-speech/%s", e.cfg.BaseURL, req.Voice)
	httpReq, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "audio/mpeg")
	httpReq.Header.Set("xi-api-key", e.cfg.APIKey)

	resp, err := e.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("elevenlabs failed (status %d): %s", resp.StatusCode, string(respBody))
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read audio: %w", err)
	}

	return &Result{
		Audio:       audio,
		ContentType: "audio/mpeg",
	}, nil
}
