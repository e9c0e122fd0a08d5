package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"
)

// WhisperConfig holds configuration for the OpenAI Whisper STT backend.
type WhisperConfig struct {
	APIKey  string
	BaseURL string // default: "https://api.openai.com/v1"
	Model   string // default: "whisper-1"
}

// Whisper transcribes audio using OpenAI's Whisper API (or a compatible
// endpoint such as whisper.cpp's server).
type Whisper struct {
	cfg        WhisperConfig
	httpClient *http.Client
}

// NewWhisper creates a Whisper provider with sensible defaults applied.
func NewWhisper(cfg WhisperConfig) *Whisper {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "whisper-1"
	}
	return &Whisper{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

func (w *Whisper) Name() string { return "openai-whisper" }

// Transcribe uploads the audio buffer as multipart form data and requests
// verbose JSON with word-level timestamps.
func (w *Whisper) Transcribe(ctx context.Context, req Request) (*Result, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	filename := req.Filename
	if filename == "" {
		filename = "audio.webm"
	}

	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err = fw.Write(req.Audio); err != nil {
		return nil, fmt.Errorf("write audio data: %w", err)
	}

	_ = mw.WriteField("model", w.cfg.Model)
	_ = mw.WriteField("response_format", "verbose_json")
	_ = mw.WriteField("timestamp_granularities[]", "word")
	if req.Language != "" {
		_ = mw.WriteField("language", req.Language)
	}

	if err = mw.Close(); err != nil {
		return nil, fmt.Errorf("close multipart writer: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", w.cfg.BaseURL+"/audio/transcriptions", &body)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", mw.FormDataContentType())
	if w.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+w.cfg.APIKey)
	}

	resp, err := w.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("transcription request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("transcription failed (status %d): %s", resp.StatusCode, string(respBody))
	}

	var apiResp struct {
		Text     string  `json:"text"`
		Duration float64 `json:"duration"`
		Words    []struct {
			Word  string  `json:"word"`
			Start float64 `json:"start"`
			End   float64 `json:"end"`
		} `json:"words"`
	}
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}

	words := make([]Word, 0, len(apiResp.Words))
	for _, wd := range apiResp.Words {
		words = append(words, Word{
			Word:    wd.Word,
			StartMs: int64(wd.Start * 1000),
			EndMs:   int64(wd.End * 1000),
		})
	}

	return &Result{
		Text:       apiResp.Text,
		Words:      words,
		DurationMs: int64(apiResp.Duration * 1000),
	}, nil
}
