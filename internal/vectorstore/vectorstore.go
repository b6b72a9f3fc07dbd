// Package vectorstore provides vector store drivers for document search.
// Ships: embedded (in-memory, dev and small corpora), qdrant, pgvector.
package vectorstore

import (
	"context"
	"fmt"
	"math"

	"github.com/polyrag/polyrag/internal/config"
	"github.com/polyrag/polyrag/pkg/contracts"
)

// NewFromConfig builds the vector store driver named by cfg.Driver.
func NewFromConfig(ctx context.Context, cfg config.VectorStoreConfig) (contracts.VectorStoreDriver, error) {
	switch cfg.Driver {
	case "embedded":
		return NewEmbeddedStore(), nil
	case "qdrant":
		return NewQdrantStore(ctx, QdrantConfig{
			URL:        cfg.QdrantURL,
			APIKey:     cfg.QdrantAPIKey,
			Collection: cfg.Collection,
			Dimensions: cfg.Dimensions,
		})
	case "pgvector":
		if cfg.PostgresURL == "" {
			return nil, fmt.Errorf("pgvector driver requires a postgres URL")
		}
		return NewPgvectorStore(ctx, cfg.PostgresURL, cfg.Dimensions)
	default:
		return nil, fmt.Errorf("unknown vector store driver: %s", cfg.Driver)
	}
}

func cosineSimilarity(a, b []float64) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
