// Package models defines the data contracts shared across the PolyRAG
// query pipeline: stage messages, stage results, document shapes, and the
// request/response types exposed over HTTP.
package models

import (
	"time"
)

// ── Stages ────────────────────────────────────────────────────

// StageKind identifies one of the four pipeline stages.
type StageKind string

const (
	StageRouting    StageKind = "routing"
	StageRetrieval  StageKind = "retrieval"
	StageSynthesis  StageKind = "synthesis"
	StageValidation StageKind = "validation"
)

// AgentState is the lifecycle status of a stage instance.
type AgentState string

const (
	StateIdle       AgentState = "idle"
	StateProcessing AgentState = "processing"
	StateError      AgentState = "error"
)

// AgentStatus is an immutable snapshot of a stage instance's bookkeeping.
// Counters persist for the lifetime of the instance, across pipeline runs.
type AgentStatus struct {
	Name           string     `json:"name"`
	Status         AgentState `json:"status"`
	CurrentTask    string     `json:"current_task,omitempty"`
	LastUpdate     time.Time  `json:"last_update"`
	ProcessedCount int        `json:"processed_count"`
	ErrorCount     int        `json:"error_count"`
}

// Message is the envelope passed to a stage. Content carries the
// stage-specific input; each stage asserts the concrete type at its
// boundary rather than trusting the sender.
type Message struct {
	Sender   string    `json:"sender"`
	Receiver string    `json:"receiver"`
	Kind     StageKind `json:"stage_kind"`
	Content  any       `json:"content"`
	SentAt   time.Time `json:"timestamp"`
}

// NewMessage builds a message envelope with the send time stamped.
func NewMessage(sender, receiver string, kind StageKind, content any) Message {
	return Message{
		Sender:   sender,
		Receiver: receiver,
		Kind:     kind,
		Content:  content,
		SentAt:   time.Now().UTC(),
	}
}

// ── Stage inputs ──────────────────────────────────────────────

// RoutingInput is the routing stage's message content.
type RoutingInput struct {
	Query    string `json:"query"`
	Language string `json:"language,omitempty"` // empty triggers detection
	TopK     int    `json:"top_k"`
}

// RetrievalInput is the retrieval stage's message content.
type RetrievalInput struct {
	Query    string `json:"query"`
	Language string `json:"language"`
	TopK     int    `json:"top_k"`
}

// SynthesisInput is the synthesis stage's message content. Documents are
// the plain content/metadata shape, stripped of embeddings.
type SynthesisInput struct {
	Query     string     `json:"query"`
	Language  string     `json:"language"`
	Documents []Document `json:"documents"`
}

// ValidationInput is the validation stage's message content.
type ValidationInput struct {
	Query     string     `json:"query"`
	Response  string     `json:"response"`
	Documents []Document `json:"documents"`
}

// ── Routing ───────────────────────────────────────────────────

// QueryType classifies the user's intent.
type QueryType string

const (
	QueryFactual       QueryType = "factual"
	QueryExplanatory   QueryType = "explanatory"
	QuerySummarization QueryType = "summarization"
	QueryGeneral       QueryType = "general"
)

// RoutingDecision is the routing stage's output.
type RoutingDecision struct {
	QueryType          QueryType   `json:"query_type"`
	StageOrder         []StageKind `json:"target_stage_order"`
	Priority           int         `json:"priority"`
	RequiresRetrieval  bool        `json:"requires_retrieval"`
	RequiresValidation bool        `json:"requires_validation"`
	Language           string      `json:"language"`
}

// ── Documents ─────────────────────────────────────────────────

// ChunkMetadata describes where a chunk came from. Fields absent in the
// search backend's payload are filled with documented defaults:
// file_type "unknown", language "en", chunk_index 0, total_chunks 1.
type ChunkMetadata struct {
	Source           string    `json:"source"`
	FileType         string    `json:"file_type"`
	Language         string    `json:"language"`
	ChunkIndex       int       `json:"chunk_index"`
	TotalChunks      int       `json:"total_chunks"`
	PageNumber       *int      `json:"page_number,omitempty"`
	Timestamp        time.Time `json:"timestamp"`
	OriginalFilename string    `json:"original_filename,omitempty"`
}

// DocumentChunk is a bounded slice of a source document as stored in the
// vector index. Produced at ingestion; read-only for the pipeline.
type DocumentChunk struct {
	ID        string        `json:"id"`
	Content   string        `json:"content"`
	Metadata  ChunkMetadata `json:"metadata"`
	Embedding []float64     `json:"embedding,omitempty"`
}

// Document is the plain content/metadata shape handed to synthesis and
// validation — a DocumentChunk with the embedding dropped.
type Document struct {
	ID       string        `json:"id"`
	Content  string        `json:"content"`
	Metadata ChunkMetadata `json:"metadata"`
}

// Plain converts a chunk to its embedding-free shape.
func (c DocumentChunk) Plain() Document {
	return Document{ID: c.ID, Content: c.Content, Metadata: c.Metadata}
}

// ── Vector store ──────────────────────────────────────────────

// VectorDoc is a document as stored in a vector store driver. Metadata is
// a flat string map; numeric fields are stringified by the ingester and
// parsed back (with defaults) by the retrieval stage.
type VectorDoc struct {
	ID        string            `json:"id"`
	Content   string            `json:"content"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Vector    []float64         `json:"vector"`
	CreatedAt time.Time         `json:"created_at"`
}

// SearchResult is a single ranked hit from a vector store driver.
type SearchResult struct {
	Doc   VectorDoc `json:"doc"`
	Score float64   `json:"score"`
}

// ── Stage results ─────────────────────────────────────────────

// RetrievalResult is the retrieval stage's output. Documents keep the
// driver's rank order; the stage does not re-rank.
type RetrievalResult struct {
	Documents    []DocumentChunk `json:"documents"`
	Query        string          `json:"query"`
	Language     string          `json:"language"`
	ElapsedMS    float64         `json:"elapsed_ms"`
	TotalResults int             `json:"total_results"`
}

// SynthesisResult is the synthesis stage's output. Confidence is a pure
// function of retrieved-document count, not of generated-text quality.
type SynthesisResult struct {
	Response   string   `json:"response"`
	Sources    []string `json:"sources"`
	Confidence float64  `json:"confidence"`
	ElapsedMS  float64  `json:"elapsed_ms"`
}

// Issue codes emitted by the validation stage.
const (
	IssueResponseTooShort           = "response_too_short"
	IssueResponseIndicatesInability = "response_indicates_inability"
	IssueNoSourceDocuments          = "no_source_documents"
	IssueInsufficientSourceOverlap  = "insufficient_source_overlap"
)

// ValidationResult is the validation stage's output.
// Invariant: IsValid == (len(Issues) == 0).
type ValidationResult struct {
	IsValid     bool     `json:"is_valid"`
	Confidence  float64  `json:"confidence"`
	Issues      []string `json:"issues"`
	Suggestions []string `json:"suggestions"`
	ElapsedMS   float64  `json:"elapsed_ms"`
}

// ── Pipeline ──────────────────────────────────────────────────

// PipelineRequest is the orchestrator's input.
type PipelineRequest struct {
	Query             string `json:"query"`
	Language          string `json:"language,omitempty"`
	TopK              int    `json:"top_k"`
	IncludeValidation bool   `json:"include_validation"`
}

// PipelineResult is the orchestrator's output. On failure, Error is set
// and AgentStates holds the snapshots collected up to the abort point.
type PipelineResult struct {
	Success     bool                   `json:"success"`
	Response    string                 `json:"response,omitempty"`
	Sources     []string               `json:"sources,omitempty"`
	Confidence  float64                `json:"confidence"`
	Validation  *ValidationResult      `json:"validation,omitempty"`
	ElapsedMS   float64                `json:"elapsed_ms"`
	AgentStates map[string]AgentStatus `json:"agent_states"`
	Language    string                 `json:"language,omitempty"`
	Error       string                 `json:"error,omitempty"`
}

// GenerateOptions are sampling parameters for the generation collaborator.
type GenerateOptions struct {
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"top_p"`
	MaxTokens   int     `json:"max_tokens"`
}

// ── HTTP API ──────────────────────────────────────────────────

// QueryRequest is the body of POST /api/v1/query.
type QueryRequest struct {
	Query    string `json:"query"`
	Language string `json:"language,omitempty"`
	TopK     int    `json:"top_k,omitempty"`
}

// QueryResponse is the body returned by POST /api/v1/query.
type QueryResponse struct {
	Query       string                 `json:"query"`
	Language    string                 `json:"language"`
	Response    string                 `json:"response"`
	Sources     []string               `json:"sources"`
	Confidence  float64                `json:"confidence"`
	Validation  *ValidationResult      `json:"validation,omitempty"`
	ElapsedMS   float64                `json:"processing_time_ms"`
	AgentStates map[string]AgentStatus `json:"agent_states,omitempty"`
}

// IngestResponse is the body returned by POST /api/v1/ingest.
type IngestResponse struct {
	DocumentID    string `json:"document_id"`
	FileName      string `json:"file_name"`
	ChunksCreated int    `json:"chunks_created"`
	Language      string `json:"language"`
	Status        string `json:"status"`
	Message       string `json:"message"`
}

// DocumentInfo describes an ingested document.
type DocumentInfo struct {
	DocumentID    string    `json:"document_id"`
	FileName      string    `json:"file_name"`
	FileType      string    `json:"file_type"`
	Language      string    `json:"language"`
	ChunksCount   int       `json:"chunks_count"`
	IngestionDate time.Time `json:"ingestion_date"`
	FileSizeBytes int       `json:"file_size_bytes"`
}

// DocumentListResponse is the body returned by GET /api/v1/documents.
type DocumentListResponse struct {
	Documents  []DocumentInfo `json:"documents"`
	TotalCount int            `json:"total_count"`
}

// AgentsStatusResponse is the body returned by GET /api/v1/agents/status.
type AgentsStatusResponse struct {
	Agents        []AgentStatus `json:"agents"`
	OverallStatus string        `json:"overall_status"`
	Timestamp     time.Time     `json:"timestamp"`
}

// ServiceHealth is one collaborator's entry in the health response.
type ServiceHealth struct {
	Status string            `json:"status"`
	Detail map[string]string `json:"detail,omitempty"`
}

// HealthResponse is the body returned by GET /health.
type HealthResponse struct {
	Status    string                   `json:"status"`
	Timestamp time.Time                `json:"timestamp"`
	Services  map[string]ServiceHealth `json:"services"`
	Version   string                   `json:"version"`
}
