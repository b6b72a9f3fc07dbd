package vectorstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/polyrag/polyrag/pkg/models"
)

// DefaultMaxVectors caps the embedded store at 50K chunks. Larger corpora
// belong in qdrant or pgvector.
const DefaultMaxVectors = 50_000

// EmbeddedStore is an in-memory vector store using brute-force cosine
// similarity. Suitable for development and small document sets.
type EmbeddedStore struct {
	mu         sync.RWMutex
	docs       map[string]*models.VectorDoc
	maxVectors int
}

// EmbeddedOption configures the embedded store.
type EmbeddedOption func(*EmbeddedStore)

// WithMaxVectors sets the maximum number of stored chunks.
func WithMaxVectors(max int) EmbeddedOption {
	return func(s *EmbeddedStore) { s.maxVectors = max }
}

// NewEmbeddedStore creates an in-memory vector store.
func NewEmbeddedStore(opts ...EmbeddedOption) *EmbeddedStore {
	s := &EmbeddedStore{
		docs:       make(map[string]*models.VectorDoc),
		maxVectors: DefaultMaxVectors,
	}
	for _, opt := range opts {
		opt(s)
	}
	log.Info().Int("max_vectors", s.maxVectors).Msg("Embedded vector store initialized")
	return s
}

func (s *EmbeddedStore) Kind() string { return "embedded" }

func (s *EmbeddedStore) Upsert(_ context.Context, docs []models.VectorDoc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	newCount := 0
	for _, d := range docs {
		if _, exists := s.docs[d.ID]; !exists {
			newCount++
		}
	}
	total := len(s.docs) + newCount
	if total > s.maxVectors {
		return fmt.Errorf("embedded vector store capacity exceeded: %d > %d (switch to qdrant or pgvector)", total, s.maxVectors)
	}

	now := time.Now()
	for _, d := range docs {
		cp := d
		if cp.ID == "" {
			cp.ID = uuid.NewString()
		}
		if cp.CreatedAt.IsZero() {
			cp.CreatedAt = now
		}
		s.docs[cp.ID] = &cp
	}
	return nil
}

func (s *EmbeddedStore) Search(_ context.Context, vector []float64, topK int, filter map[string]string) ([]models.SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	type scored struct {
		doc   *models.VectorDoc
		score float64
	}
	var candidates []scored

	for _, d := range s.docs {
		if len(d.Vector) != len(vector) {
			continue
		}
		match := true
		for fk, fv := range filter {
			if d.Metadata[fk] != fv {
				match = false
				break
			}
		}
		if !match {
			continue
		}
		candidates = append(candidates, scored{doc: d, score: cosineSimilarity(vector, d.Vector)})
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})

	if topK > len(candidates) {
		topK = len(candidates)
	}
	results := make([]models.SearchResult, topK)
	for i := 0; i < topK; i++ {
		results[i] = models.SearchResult{Doc: *candidates[i].doc, Score: candidates[i].score}
	}
	return results, nil
}

func (s *EmbeddedStore) Delete(_ context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		delete(s.docs, id)
	}
	return nil
}

func (s *EmbeddedStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs), nil
}

func (s *EmbeddedStore) HealthCheck(_ context.Context) error {
	return nil // in-memory, always healthy
}
