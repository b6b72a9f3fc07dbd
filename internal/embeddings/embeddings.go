// Package embeddings provides embedding drivers for query and document
// vectorization. Ships: Ollama (nomic-embed-text, mxbai-embed-large) and
// OpenAI (text-embedding-3-small/large).
package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/polyrag/polyrag/internal/config"
	"github.com/polyrag/polyrag/pkg/contracts"
)

// NewFromConfig builds the embedding driver named by cfg.Driver.
func NewFromConfig(cfg config.EmbeddingConfig) (contracts.EmbeddingDriver, error) {
	switch cfg.Driver {
	case "ollama":
		return NewOllamaDriver(cfg.Endpoint, cfg.Model, WithOllamaBatchSize(cfg.BatchSize)), nil
	case "openai":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("openai embedding driver requires an API key")
		}
		opts := []OpenAIOption{WithOpenAIBatchSize(cfg.BatchSize)}
		if cfg.Endpoint != "" {
			opts = append(opts, WithOpenAIEndpoint(cfg.Endpoint))
		}
		return NewOpenAIDriver(cfg.APIKey, cfg.Model, opts...), nil
	default:
		return nil, fmt.Errorf("unknown embedding driver: %s", cfg.Driver)
	}
}

// postJSON sends body to url with the given headers and decodes the JSON
// response into out. Non-2xx statuses are returned as errors carrying the
// response body.
func postJSON(ctx context.Context, client *http.Client, url string, headers map[string]string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s returned %d: %s", url, resp.StatusCode, string(respBody))
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}
