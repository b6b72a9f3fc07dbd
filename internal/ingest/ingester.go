package ingest

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/polyrag/polyrag/internal/config"
	"github.com/polyrag/polyrag/internal/store"
	"github.com/polyrag/polyrag/pkg/contracts"
	"github.com/polyrag/polyrag/pkg/models"
)

// embedWorkers bounds concurrent embedding batches per ingest call.
const embedWorkers = 4

// Ingester handles document ingestion end to end and records the result
// in the document store.
type Ingester struct {
	embeddings contracts.EmbeddingDriver
	vectorDB   contracts.VectorStoreDriver
	detector   contracts.LanguageDetector
	docs       store.DocumentStore
	chunker    *Chunker
	cfg        config.IngestConfig
}

// NewIngester creates a document ingester.
func NewIngester(
	emb contracts.EmbeddingDriver,
	vs contracts.VectorStoreDriver,
	det contracts.LanguageDetector,
	docs store.DocumentStore,
	cfg config.IngestConfig,
) *Ingester {
	return &Ingester{
		embeddings: emb,
		vectorDB:   vs,
		detector:   det,
		docs:       docs,
		chunker:    NewChunker(cfg.ChunkSize, cfg.ChunkOverlap),
		cfg:        cfg,
	}
}

// IngestFile processes one uploaded file. language may be empty, in which
// case it is detected from the extracted text.
func (ing *Ingester) IngestFile(ctx context.Context, filename string, data []byte, language string) (*models.IngestResponse, error) {
	start := time.Now()

	ft := fileType(filename)
	if !slices.Contains(ing.cfg.SupportedFileTypes, ft) {
		return nil, fmt.Errorf("%w: %q (supported: %v)", ErrUnsupportedFileType, ft, ing.cfg.SupportedFileTypes)
	}
	if maxBytes := ing.cfg.MaxFileSizeMB * 1024 * 1024; len(data) > maxBytes {
		return nil, fmt.Errorf("%w: %d bytes (max %d MB)", ErrFileTooLarge, len(data), ing.cfg.MaxFileSizeMB)
	}

	text, err := ExtractText(filename, data)
	if err != nil {
		return nil, fmt.Errorf("extract text: %w", err)
	}

	if language == "" {
		language, _ = ing.detector.Detect(text)
	}

	chunks := ing.chunker.Split(text)
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w in %q", ErrNoContent, filename)
	}

	vectors, err := ing.embedChunks(ctx, chunks)
	if err != nil {
		return nil, err
	}

	docID := uuid.NewString()
	now := time.Now()
	total := strconv.Itoa(len(chunks))

	vdocs := make([]models.VectorDoc, len(chunks))
	chunkIDs := make([]string, len(chunks))
	for i, chunk := range chunks {
		id := uuid.NewString()
		chunkIDs[i] = id
		vdocs[i] = models.VectorDoc{
			ID:      id,
			Content: chunk,
			Metadata: map[string]string{
				"source":            filename,
				"file_type":         ft,
				"language":          language,
				"chunk_index":       strconv.Itoa(i),
				"total_chunks":      total,
				"original_filename": filename,
				"document_id":       docID,
				"timestamp":         now.Format(time.RFC3339),
			},
			Vector:    vectors[i],
			CreatedAt: now,
		}
	}

	if err := ing.vectorDB.Upsert(ctx, vdocs); err != nil {
		return nil, fmt.Errorf("upsert vectors: %w", err)
	}

	info := models.DocumentInfo{
		DocumentID:    docID,
		FileName:      filename,
		FileType:      ft,
		Language:      language,
		ChunksCount:   len(chunks),
		IngestionDate: now,
		FileSizeBytes: len(data),
	}
	if err := ing.docs.Add(ctx, info); err != nil {
		return nil, fmt.Errorf("record document: %w", err)
	}
	if err := ing.docs.SetChunkIDs(ctx, docID, chunkIDs); err != nil {
		return nil, fmt.Errorf("record chunk ids: %w", err)
	}

	log.Info().
		Str("document_id", docID).
		Str("file", filename).
		Str("language", language).
		Int("chunks", len(chunks)).
		Dur("elapsed", time.Since(start)).
		Msg("Document ingested")

	return &models.IngestResponse{
		DocumentID:    docID,
		FileName:      filename,
		ChunksCreated: len(chunks),
		Language:      language,
		Status:        "success",
		Message:       fmt.Sprintf("ingested %d chunks", len(chunks)),
	}, nil
}

// DeleteDocument removes a document's chunks from the vector store and
// its record from the document store.
func (ing *Ingester) DeleteDocument(ctx context.Context, docID string) error {
	chunkIDs, err := ing.docs.ChunkIDs(ctx, docID)
	if err != nil {
		return err
	}
	if err := ing.vectorDB.Delete(ctx, chunkIDs); err != nil {
		return fmt.Errorf("delete vectors: %w", err)
	}
	return ing.docs.Delete(ctx, docID)
}

// embedChunks embeds all chunks in driver-sized batches, a few batches in
// flight at a time. Vector order matches chunk order.
func (ing *Ingester) embedChunks(ctx context.Context, chunks []string) ([][]float64, error) {
	batchSize := ing.embeddings.MaxBatchSize()
	vectors := make([][]float64, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(embedWorkers)

	for i := 0; i < len(chunks); i += batchSize {
		start, end := i, min(i+batchSize, len(chunks))
		g.Go(func() error {
			batch, err := ing.embeddings.Embed(gctx, chunks[start:end])
			if err != nil {
				return fmt.Errorf("embed batch %d-%d: %w", start, end, err)
			}
			if len(batch) != end-start {
				return fmt.Errorf("embed batch %d-%d: expected %d vectors, got %d", start, end, end-start, len(batch))
			}
			copy(vectors[start:end], batch)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return vectors, nil
}
