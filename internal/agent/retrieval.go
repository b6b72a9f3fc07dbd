package agent

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/polyrag/polyrag/pkg/contracts"
	"github.com/polyrag/polyrag/pkg/models"
)

// Retrieval turns a query into supporting document candidates by
// embedding it and searching the vector store. Hits keep the store's
// rank order; no re-ranking and no retry happens at this layer.
type Retrieval struct {
	tracker
	embeddings contracts.EmbeddingDriver
	search     contracts.VectorStoreDriver
}

// NewRetrieval creates the retrieval stage.
func NewRetrieval(emb contracts.EmbeddingDriver, search contracts.VectorStoreDriver) *Retrieval {
	return &Retrieval{
		tracker:    newTracker(string(models.StageRetrieval)),
		embeddings: emb,
		search:     search,
	}
}

// Process embeds the query and searches for supporting chunks. Any
// collaborator error is returned as-is; retry belongs to the driver.
func (s *Retrieval) Process(ctx context.Context, msg models.Message) (models.RetrievalResult, error) {
	s.begin("retrieving_documents")

	in, err := content[models.RetrievalInput](msg, models.StageRetrieval)
	if err != nil {
		s.fail()
		return models.RetrievalResult{}, err
	}

	vectors, err := s.embeddings.Embed(ctx, []string{in.Query})
	if err != nil {
		s.fail()
		return models.RetrievalResult{}, fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) == 0 {
		s.fail()
		return models.RetrievalResult{}, fmt.Errorf("no embedding returned for query")
	}

	filter := map[string]string{}
	if in.Language != "" {
		filter["language"] = in.Language
	}

	searchStart := time.Now()
	hits, err := s.search.Search(ctx, vectors[0], in.TopK, filter)
	if err != nil {
		s.fail()
		return models.RetrievalResult{}, fmt.Errorf("search documents: %w", err)
	}
	elapsed := elapsedMS(searchStart)

	documents := make([]models.DocumentChunk, len(hits))
	for i, hit := range hits {
		documents[i] = chunkFromHit(hit)
	}

	s.done()
	log.Info().
		Int("documents", len(documents)).
		Float64("elapsed_ms", elapsed).
		Msg("documents retrieved")

	return models.RetrievalResult{
		Documents:    documents,
		Query:        in.Query,
		Language:     in.Language,
		ElapsedMS:    elapsed,
		TotalResults: len(documents),
	}, nil
}

// chunkFromHit rebuilds a DocumentChunk from a raw search hit, filling
// missing metadata fields with documented defaults.
func chunkFromHit(hit models.SearchResult) models.DocumentChunk {
	meta := hit.Doc.Metadata

	chunk := models.DocumentChunk{
		ID:      hit.Doc.ID,
		Content: hit.Doc.Content,
		Metadata: models.ChunkMetadata{
			Source:           metaStr(meta, "source", "unknown"),
			FileType:         metaStr(meta, "file_type", "unknown"),
			Language:         metaStr(meta, "language", "en"),
			ChunkIndex:       metaInt(meta, "chunk_index", 0),
			TotalChunks:      metaInt(meta, "total_chunks", 1),
			Timestamp:        time.Now().UTC(),
			OriginalFilename: meta["original_filename"],
		},
	}
	if page, ok := meta["page_number"]; ok {
		if n, err := strconv.Atoi(page); err == nil {
			chunk.Metadata.PageNumber = &n
		}
	}
	return chunk
}

func metaStr(meta map[string]string, key, fallback string) string {
	if v, ok := meta[key]; ok && v != "" {
		return v
	}
	return fallback
}

func metaInt(meta map[string]string, key string, fallback int) int {
	if v, ok := meta[key]; ok {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
