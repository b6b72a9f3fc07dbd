package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polyrag/polyrag/internal/store"
	"github.com/polyrag/polyrag/pkg/models"
)

func record(id string, age time.Duration) models.DocumentInfo {
	return models.DocumentInfo{
		DocumentID:    id,
		FileName:      id + ".txt",
		FileType:      "txt",
		Language:      "en",
		ChunksCount:   3,
		IngestionDate: time.Now().Add(-age),
	}
}

func TestMemoryStoreAddGetDelete(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.Add(ctx, record("d1", 0)))

	got, err := s.Get(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, "d1.txt", got.FileName)

	require.NoError(t, s.Delete(ctx, "d1"))
	_, err = s.Get(ctx, "d1")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.ErrorIs(t, s.Delete(ctx, "d1"), store.ErrNotFound)
}

func TestMemoryStoreListNewestFirst(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.Add(ctx, record("old", 2*time.Hour)))
	require.NoError(t, s.Add(ctx, record("new", 0)))
	require.NoError(t, s.Add(ctx, record("mid", time.Hour)))

	docs, err := s.List(ctx)
	require.NoError(t, err)

	require.Len(t, docs, 3)
	assert.Equal(t, "new", docs[0].DocumentID)
	assert.Equal(t, "mid", docs[1].DocumentID)
	assert.Equal(t, "old", docs[2].DocumentID)
}

func TestMemoryStoreChunkIDs(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.Add(ctx, record("d1", 0)))
	require.NoError(t, s.SetChunkIDs(ctx, "d1", []string{"c1", "c2"}))

	ids, err := s.ChunkIDs(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, []string{"c1", "c2"}, ids)

	_, err = s.ChunkIDs(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.ErrorIs(t, s.SetChunkIDs(ctx, "missing", nil), store.ErrNotFound)

	// Deleting the document drops its chunk list too.
	require.NoError(t, s.Delete(ctx, "d1"))
	_, err = s.ChunkIDs(ctx, "d1")
	assert.ErrorIs(t, err, store.ErrNotFound)
}
