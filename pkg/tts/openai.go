package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
)

// OpenAICompatibleProvider calls an OpenAI-speech-API-shaped endpoint
// (OpenAI itself, or a self-hosted server exposing the same contract). No
// OpenAI SDK is declared in the dependency set this pipeline is built
// against, so the request is issued directly over net/http.
type OpenAICompatibleProvider struct {
	APIKey     string
	BaseURL    string // defaults to https://api.openai.com/v1
	Model      string // defaults to tts-1
	HTTPClient *http.Client
}

func (p *OpenAICompatibleProvider) Name() string { return "openai" }

type openAISpeechRequest struct {
	Model          string  `json:"model"`
	Voice          string  `json:"voice"`
	Input          string  `json:"input"`
	Speed          float64 `json:"speed"`
	ResponseFormat string  `json:"response_format"`
}

func (p *OpenAICompatibleProvider) Synthesize(ctx context.Context, text, voiceName string, speed float64, outputPath string) error {
	baseURL := p.BaseURL
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	model := p.Model
	if model == "" {
		model = "tts-1"
	}

	body, err := json.Marshal(openAISpeechRequest{
		Model:          model,
		Voice:          voiceName,
		Input:          text,
		Speed:          speed,
		ResponseFormat: "mp3",
	})
	if err != nil {
		return fmt.Errorf("encode speech request: %w", err)
	}

	url := strings.TrimRight(baseURL, "/") + "/audio/speech"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build speech request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.APIKey)
	}

	client := p.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("call speech endpoint: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("speech endpoint returned %d: %s", resp.StatusCode, string(detail))
	}

	out, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("create audio file: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, resp.Body); err != nil {
		return fmt.Errorf("write audio file: %w", err)
	}

	// Minimum-size enforcement (§4.5.1 step 4) happens once, in
	// pkg/tts.ProduceChunkAudio, against the configured threshold rather
	// than here per-provider.
	return nil
}
