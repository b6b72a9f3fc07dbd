// Package store tracks ingested document metadata. The vector store holds
// chunks; this store holds the per-document bookkeeping behind the
// documents API.
package store

import (
	"context"
	"errors"

	"github.com/polyrag/polyrag/pkg/models"
)

// ErrNotFound is returned when a document ID is unknown.
var ErrNotFound = errors.New("document not found")

// DocumentStore persists ingested document records.
type DocumentStore interface {
	// Add inserts or replaces a document record by ID.
	Add(ctx context.Context, doc models.DocumentInfo) error

	// List returns all records, most recently ingested first.
	List(ctx context.Context) ([]models.DocumentInfo, error)

	// Get returns the record for id, or ErrNotFound.
	Get(ctx context.Context, id string) (models.DocumentInfo, error)

	// Delete removes the record for id, or returns ErrNotFound.
	Delete(ctx context.Context, id string) error

	// ChunkIDs returns the vector store chunk IDs belonging to id.
	ChunkIDs(ctx context.Context, id string) ([]string, error)

	// SetChunkIDs records the chunk IDs created for id.
	SetChunkIDs(ctx context.Context, id string, chunkIDs []string) error
}
