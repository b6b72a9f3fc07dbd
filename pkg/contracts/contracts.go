// Package contracts defines the collaborator interfaces consumed by the
// PolyRAG pipeline core.
//
// The pipeline depends only on these interfaces; concrete drivers live in
// internal/ and are wired together once at process start (pkg/server).
// Swapping a driver — or substituting a test double — is a single line
// change in the wiring code, never a change to a stage.
package contracts

import (
	"context"

	"github.com/polyrag/polyrag/pkg/models"
)

// ── Embedding service ───────────────────────────────────────

// EmbeddingDriver turns text into fixed-length vectors. Batch order is
// preserved: vector i corresponds to texts[i].
type EmbeddingDriver interface {
	// Kind returns the driver identifier (e.g. "ollama", "openai").
	Kind() string

	// Dimensions returns the vector length this driver produces.
	Dimensions() int

	// MaxBatchSize returns the max texts per Embed call.
	MaxBatchSize() int

	// Embed generates one vector per input text.
	Embed(ctx context.Context, texts []string) ([][]float64, error)

	// HealthCheck verifies the backing service is reachable.
	HealthCheck(ctx context.Context) error
}

// ── Search service ──────────────────────────────────────────

// VectorStoreDriver stores and searches embedding vectors. Search returns
// hits best-first and may return fewer than topK.
type VectorStoreDriver interface {
	// Kind returns the driver identifier (e.g. "embedded", "qdrant").
	Kind() string

	// Upsert inserts or replaces documents by ID.
	Upsert(ctx context.Context, docs []models.VectorDoc) error

	// Search returns the topK nearest documents to vector, best-first.
	// filter entries are exact-match metadata constraints (e.g. language).
	Search(ctx context.Context, vector []float64, topK int, filter map[string]string) ([]models.SearchResult, error)

	// Delete removes documents by ID. Unknown IDs are ignored.
	Delete(ctx context.Context, ids []string) error

	// Count returns the number of stored documents.
	Count(ctx context.Context) (int, error)

	// HealthCheck verifies the backing store is reachable.
	HealthCheck(ctx context.Context) error
}

// ── Generation service ──────────────────────────────────────

// GenerationDriver produces text from a prompt. The call is synchronous;
// the driver owns its own retry/backoff policy.
type GenerationDriver interface {
	// Kind returns the driver identifier (e.g. "ollama").
	Kind() string

	// Model returns the model name requests are sent to.
	Model() string

	// Generate returns the completion for prompt.
	Generate(ctx context.Context, prompt string, opts models.GenerateOptions) (string, error)

	// HealthCheck verifies the backing service is reachable.
	HealthCheck(ctx context.Context) error
}

// ── Language detector ───────────────────────────────────────

// LanguageDetector guesses the language of a text. Implementations fall
// back to a configured default when confidence is low or the text is too
// short; Detect never fails.
type LanguageDetector interface {
	Detect(text string) (code string, confidence float64)
}

// ── Pipeline (exposed to the HTTP layer) ────────────────────

// PipelineService is the surface the API layer consumes. No collaborator
// types leak across this boundary — inputs and outputs are plain data.
type PipelineService interface {
	// RunPipeline executes one routing→retrieval→synthesis→validation run.
	// Failures are reported in the result, never as a panic or error.
	RunPipeline(ctx context.Context, req models.PipelineRequest) *models.PipelineResult

	// Statuses returns current snapshots for all stages in pipeline order.
	// Side-effect-free.
	Statuses() []models.AgentStatus
}
