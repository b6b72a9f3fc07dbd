// Package llm provides text-generation drivers for the synthesis stage.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"

	"github.com/polyrag/polyrag/pkg/models"
)

// OllamaDriver implements GenerationDriver against Ollama's local
// completion API (/api/generate). Transient failures are retried with
// exponential backoff; client errors (4xx) are not.
type OllamaDriver struct {
	endpoint      string // e.g. http://localhost:11434
	model         string
	maxRetries    uint64
	retryInterval time.Duration
	client        *http.Client
}

// OllamaOption configures the Ollama driver.
type OllamaOption func(*OllamaDriver)

// WithTimeout sets the per-request HTTP timeout.
func WithTimeout(d time.Duration) OllamaOption {
	return func(o *OllamaDriver) { o.client.Timeout = d }
}

// WithMaxRetries sets how many times a failed generate call is retried.
func WithMaxRetries(n int) OllamaOption {
	return func(o *OllamaDriver) {
		if n >= 0 {
			o.maxRetries = uint64(n)
		}
	}
}

// WithRetryInterval sets the initial backoff interval between retries.
func WithRetryInterval(d time.Duration) OllamaOption {
	return func(o *OllamaDriver) { o.retryInterval = d }
}

// NewOllamaDriver creates an Ollama generation driver.
func NewOllamaDriver(endpoint, model string, opts ...OllamaOption) *OllamaDriver {
	if endpoint == "" {
		endpoint = "http://localhost:11434"
	}

	d := &OllamaDriver{
		endpoint:      endpoint,
		model:         model,
		maxRetries:    3,
		retryInterval: 2 * time.Second,
		client:        &http.Client{Timeout: 120 * time.Second},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *OllamaDriver) Kind() string  { return "ollama" }
func (d *OllamaDriver) Model() string { return d.model }

type ollamaGenerateRequest struct {
	Model   string                `json:"model"`
	Prompt  string                `json:"prompt"`
	Stream  bool                  `json:"stream"`
	Options ollamaGenerateOptions `json:"options"`
}

type ollamaGenerateOptions struct {
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"top_p"`
	NumPredict  int     `json:"num_predict"`
}

type ollamaGenerateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// Generate returns the completion for prompt, retrying transient errors.
func (d *OllamaDriver) Generate(ctx context.Context, prompt string, opts models.GenerateOptions) (string, error) {
	body, err := json.Marshal(ollamaGenerateRequest{
		Model:  d.model,
		Prompt: prompt,
		Stream: false,
		Options: ollamaGenerateOptions{
			Temperature: opts.Temperature,
			TopP:        opts.TopP,
			NumPredict:  opts.MaxTokens,
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	var completion string
	attempt := 0
	op := func() error {
		attempt++
		text, err := d.generateOnce(ctx, body)
		if err != nil {
			log.Warn().Err(err).Int("attempt", attempt).Str("model", d.model).Msg("ollama generate failed")
			return err
		}
		completion = text
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = d.retryInterval
	bo.MaxInterval = 10 * time.Second

	if err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(bo, d.maxRetries), ctx)); err != nil {
		return "", fmt.Errorf("ollama generate: %w", err)
	}
	return completion, nil
}

func (d *OllamaDriver) generateOnce(ctx context.Context, body []byte) (string, error) {
	url := d.endpoint + "/api/generate"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", backoff.Permanent(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("ollama generate API returned %d: %s", resp.StatusCode, string(respBody))
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return "", backoff.Permanent(err)
		}
		return "", err
	}

	var result ollamaGenerateResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("unmarshal response: %w", err)
	}
	return result.Response, nil
}

type ollamaTagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// ListModels returns the model names available on the Ollama server.
func (d *OllamaDriver) ListModels(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.endpoint+"/api/tags", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ollama tags API returned %d", resp.StatusCode)
	}

	var result ollamaTagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}

	names := make([]string, 0, len(result.Models))
	for _, m := range result.Models {
		names = append(names, m.Name)
	}
	return names, nil
}

// HealthCheck verifies the Ollama server is reachable.
func (d *OllamaDriver) HealthCheck(ctx context.Context) error {
	_, err := d.ListModels(ctx)
	return err
}
