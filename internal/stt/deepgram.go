package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// DeepgramConfig holds configuration for the Deepgram prerecorded STT backend.
type DeepgramConfig struct {
	APIKey  string
	BaseURL string // default: "https://api.deepgram.com"
	Model   string // default: "nova-2"
}

// Deepgram transcribes audio using Deepgram's prerecorded REST API.
type Deepgram struct {
	cfg        DeepgramConfig
	httpClient *http.Client
}

// NewDeepgram creates a Deepgram provider with sensible defaults applied.
func NewDeepgram(cfg DeepgramConfig) *Deepgram {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.deepgram.com"
	}
	if cfg.Model == "" {
		cfg.Model = "nova-2"
	}
	return &Deepgram{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

func (d *Deepgram) Name() string { return "deepgram" }

// Transcribe posts the raw audio bytes to /v1/listen. Deepgram sniffs the
// container format, so no multipart envelope is needed.
func (d *Deepgram) Transcribe(ctx context.Context, req Request) (*Result, error) {
	q := url.Values{}
	q.Set("model", d.cfg.Model)
	q.Set("punctuate", "true")
	q.Set("smart_format", "true")
	if req.Language != "" {
		q.Set("language", req.Language)
	}

	endpoint := d.cfg.BaseURL + "/v1/listen?" + q.Encode()
	httpReq, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewReader(req.Audio))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Authorization", "Token "+d.cfg.APIKey)
	httpReq.Header.Set("Content-Type", "application/octet-stream")

	resp, err := d.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("deepgram request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("deepgram failed (status %d): %s", resp.StatusCode, string(respBody))
	}

	var apiResp struct {
		Metadata struct {
			Duration float64 `json:"duration"`
		} `json:"metadata"`
		Results struct {
			Channels []struct {
				Alternatives []struct {
					Transcript string  `json:"transcript"`
					Confidence float64 `json:"confidence"`
					Words      []struct {
						Word       string  `json:"word"`
						Start      float64 `json:"start"`
						End        float64 `json:"end"`
						Confidence float64 `json:"confidence"`
					} `json:"words"`
				} `json:"alternatives"`
			} `json:"channels"`
		} `json:"results"`
	}
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}

	if len(apiResp.Results.Channels) == 0 || len(apiResp.Results.Channels[0].Alternatives) == 0 {
		return nil, fmt.Errorf("deepgram returned no alternatives")
	}

	alt := apiResp.Results.Channels[0].Alternatives[0]
	words := make([]Word, 0, len(alt.Words))
	for _, wd := range alt.Words {
		words = append(words, Word{
			Word:       wd.Word,
			StartMs:    int64(wd.Start * 1000),
			EndMs:      int64(wd.End * 1000),
			Confidence: wd.Confidence,
		})
	}

	return &Result{
		Text:       alt.Transcript,
		Words:      words,
		Confidence: alt.Confidence,
		DurationMs: int64(apiResp.Metadata.Duration * 1000),
	}, nil
}
