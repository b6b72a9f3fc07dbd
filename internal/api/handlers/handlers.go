// Package handlers implements the HTTP handlers for the PolyRAG API.
package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/polyrag/polyrag/internal/config"
	"github.com/polyrag/polyrag/internal/ingest"
	"github.com/polyrag/polyrag/internal/store"
	"github.com/polyrag/polyrag/pkg/contracts"
	"github.com/polyrag/polyrag/pkg/models"
)

// Handlers holds all handler dependencies.
type Handlers struct {
	Pipeline   contracts.PipelineService
	Ingester   *ingest.Ingester
	Documents  store.DocumentStore
	Embeddings contracts.EmbeddingDriver
	VectorDB   contracts.VectorStoreDriver
	LLM        contracts.GenerationDriver
	Config     *config.Config
}

// New creates a Handlers instance with all dependencies.
func New(
	pipeline contracts.PipelineService,
	ing *ingest.Ingester,
	docs store.DocumentStore,
	emb contracts.EmbeddingDriver,
	vs contracts.VectorStoreDriver,
	llm contracts.GenerationDriver,
	cfg *config.Config,
) *Handlers {
	return &Handlers{
		Pipeline:   pipeline,
		Ingester:   ing,
		Documents:  docs,
		Embeddings: emb,
		VectorDB:   vs,
		LLM:        llm,
		Config:     cfg,
	}
}

// Query runs the full pipeline for one question.
func (h *Handlers) Query(w http.ResponseWriter, r *http.Request) {
	var req models.QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		respondError(w, http.StatusBadRequest, "query must not be empty")
		return
	}
	if req.Language != "" && !h.Config.Language.IsSupported(req.Language) {
		respondError(w, http.StatusBadRequest, "unsupported language: "+req.Language)
		return
	}

	result := h.Pipeline.RunPipeline(r.Context(), models.PipelineRequest{
		Query:             req.Query,
		Language:          req.Language,
		TopK:              req.TopK,
		IncludeValidation: h.Config.Pipeline.EnableValidation,
	})
	if !result.Success {
		log.Error().Str("error", result.Error).Msg("pipeline run failed")
		respondError(w, http.StatusInternalServerError, result.Error)
		return
	}

	respondJSON(w, http.StatusOK, models.QueryResponse{
		Query:       req.Query,
		Language:    result.Language,
		Response:    result.Response,
		Sources:     result.Sources,
		Confidence:  result.Confidence,
		Validation:  result.Validation,
		ElapsedMS:   result.ElapsedMS,
		AgentStates: result.AgentStates,
	})
}

// Ingest accepts a multipart file upload and indexes it.
func (h *Handlers) Ingest(w http.ResponseWriter, r *http.Request) {
	maxBytes := int64(h.Config.Ingest.MaxFileSizeMB) * 1024 * 1024
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		respondError(w, http.StatusBadRequest, "invalid multipart form: "+err.Error())
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		respondError(w, http.StatusBadRequest, "read upload: "+err.Error())
		return
	}

	language := r.FormValue("language")
	if language != "" && !h.Config.Language.IsSupported(language) {
		respondError(w, http.StatusBadRequest, "unsupported language: "+language)
		return
	}

	resp, err := h.Ingester.IngestFile(r.Context(), header.Filename, data, language)
	switch {
	case err == nil:
		respondJSON(w, http.StatusOK, resp)
	case errors.Is(err, ingest.ErrUnsupportedFileType),
		errors.Is(err, ingest.ErrFileTooLarge),
		errors.Is(err, ingest.ErrNoContent):
		respondError(w, http.StatusBadRequest, err.Error())
	default:
		log.Error().Err(err).Str("file", header.Filename).Msg("ingest failed")
		respondError(w, http.StatusInternalServerError, err.Error())
	}
}

// ListDocuments returns all ingested document records.
func (h *Handlers) ListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := h.Documents.List(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if docs == nil {
		docs = []models.DocumentInfo{}
	}
	respondJSON(w, http.StatusOK, models.DocumentListResponse{
		Documents:  docs,
		TotalCount: len(docs),
	})
}

// DeleteDocument removes a document and its chunks.
func (h *Handlers) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	docID := chi.URLParam(r, "documentID")

	err := h.Ingester.DeleteDocument(r.Context(), docID)
	switch {
	case err == nil:
		respondJSON(w, http.StatusOK, map[string]string{
			"document_id": docID,
			"status":      "deleted",
		})
	case errors.Is(err, store.ErrNotFound):
		respondError(w, http.StatusNotFound, "document not found: "+docID)
	default:
		respondError(w, http.StatusInternalServerError, err.Error())
	}
}

// AgentsStatus returns the pipeline stage snapshots.
func (h *Handlers) AgentsStatus(w http.ResponseWriter, r *http.Request) {
	agents := h.Pipeline.Statuses()

	overall := "healthy"
	for _, a := range agents {
		if a.Status == models.StateError {
			overall = "degraded"
			break
		}
	}

	respondJSON(w, http.StatusOK, models.AgentsStatusResponse{
		Agents:        agents,
		OverallStatus: overall,
		Timestamp:     time.Now().UTC(),
	})
}

// Health pings every collaborator and reports per-service status.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	services := map[string]models.ServiceHealth{
		"embeddings":   serviceHealth(h.Embeddings.HealthCheck(ctx), map[string]string{"driver": h.Embeddings.Kind()}),
		"vector_store": serviceHealth(h.VectorDB.HealthCheck(ctx), map[string]string{"driver": h.VectorDB.Kind()}),
		"llm":          serviceHealth(h.LLM.HealthCheck(ctx), map[string]string{"driver": h.LLM.Kind(), "model": h.LLM.Model()}),
	}

	overall := "healthy"
	status := http.StatusOK
	for _, s := range services {
		if s.Status != "healthy" {
			overall = "degraded"
			status = http.StatusServiceUnavailable
			break
		}
	}

	respondJSON(w, status, models.HealthResponse{
		Status:    overall,
		Timestamp: time.Now().UTC(),
		Services:  services,
		Version:   h.Config.Version,
	})
}

func serviceHealth(err error, detail map[string]string) models.ServiceHealth {
	if err != nil {
		detail["error"] = err.Error()
		return models.ServiceHealth{Status: "unhealthy", Detail: detail}
	}
	return models.ServiceHealth{Status: "healthy", Detail: detail}
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
