package store

import (
	"context"
	"sort"
	"sync"

	"github.com/polyrag/polyrag/pkg/models"
)

// MemoryStore is an in-memory DocumentStore. Good for development and
// tests; records do not survive a restart.
type MemoryStore struct {
	mu     sync.RWMutex
	docs   map[string]models.DocumentInfo
	chunks map[string][]string
}

// NewMemoryStore creates an empty in-memory document store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs:   make(map[string]models.DocumentInfo),
		chunks: make(map[string][]string),
	}
}

func (s *MemoryStore) Add(_ context.Context, doc models.DocumentInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[doc.DocumentID] = doc
	return nil
}

func (s *MemoryStore) List(_ context.Context) ([]models.DocumentInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	docs := make([]models.DocumentInfo, 0, len(s.docs))
	for _, d := range s.docs {
		docs = append(docs, d)
	}
	sort.Slice(docs, func(i, j int) bool {
		return docs[i].IngestionDate.After(docs[j].IngestionDate)
	})
	return docs, nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (models.DocumentInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.docs[id]
	if !ok {
		return models.DocumentInfo{}, ErrNotFound
	}
	return doc, nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.docs[id]; !ok {
		return ErrNotFound
	}
	delete(s.docs, id)
	delete(s.chunks, id)
	return nil
}

func (s *MemoryStore) ChunkIDs(_ context.Context, id string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.docs[id]; !ok {
		return nil, ErrNotFound
	}
	ids := make([]string, len(s.chunks[id]))
	copy(ids, s.chunks[id])
	return ids, nil
}

func (s *MemoryStore) SetChunkIDs(_ context.Context, id string, chunkIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.docs[id]; !ok {
		return ErrNotFound
	}
	ids := make([]string, len(chunkIDs))
	copy(ids, chunkIDs)
	s.chunks[id] = ids
	return nil
}
