package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polyrag/polyrag/internal/api"
	"github.com/polyrag/polyrag/internal/api/handlers"
	"github.com/polyrag/polyrag/internal/config"
	"github.com/polyrag/polyrag/internal/ingest"
	"github.com/polyrag/polyrag/internal/store"
	"github.com/polyrag/polyrag/pkg/models"
)

// fakePipeline returns a canned result and records the last request.
type fakePipeline struct {
	result   *models.PipelineResult
	statuses []models.AgentStatus
	lastReq  models.PipelineRequest
}

func (p *fakePipeline) RunPipeline(_ context.Context, req models.PipelineRequest) *models.PipelineResult {
	p.lastReq = req
	return p.result
}

func (p *fakePipeline) Statuses() []models.AgentStatus { return p.statuses }

type fakeEmbedder struct{ err error }

func (e *fakeEmbedder) Kind() string      { return "fake" }
func (e *fakeEmbedder) Dimensions() int   { return 2 }
func (e *fakeEmbedder) MaxBatchSize() int { return 8 }

func (e *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float64, error) {
	if e.err != nil {
		return nil, e.err
	}
	vectors := make([][]float64, len(texts))
	for i := range texts {
		vectors[i] = []float64{1, 0}
	}
	return vectors, nil
}

func (e *fakeEmbedder) HealthCheck(context.Context) error { return e.err }

type fakeVectorStore struct{ err error }

func (s *fakeVectorStore) Kind() string { return "fake" }
func (s *fakeVectorStore) Upsert(context.Context, []models.VectorDoc) error {
	return s.err
}
func (s *fakeVectorStore) Search(context.Context, []float64, int, map[string]string) ([]models.SearchResult, error) {
	return nil, nil
}
func (s *fakeVectorStore) Delete(context.Context, []string) error { return s.err }
func (s *fakeVectorStore) Count(context.Context) (int, error)     { return 0, nil }
func (s *fakeVectorStore) HealthCheck(context.Context) error      { return s.err }

type fakeLLM struct{ err error }

func (l *fakeLLM) Kind() string  { return "fake" }
func (l *fakeLLM) Model() string { return "fake-model" }
func (l *fakeLLM) Generate(context.Context, string, models.GenerateOptions) (string, error) {
	return "", l.err
}
func (l *fakeLLM) HealthCheck(context.Context) error { return l.err }

type fakeDetector struct{}

func (fakeDetector) Detect(string) (string, float64) { return "en", 0.95 }

type testEnv struct {
	router   http.Handler
	pipeline *fakePipeline
	docs     *store.MemoryStore
	llm      *fakeLLM
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	cfg := config.Load()
	pipeline := &fakePipeline{
		result: &models.PipelineResult{
			Success:    true,
			Response:   "an answer",
			Sources:    []string{"doc.txt"},
			Confidence: 0.6,
			Language:   "en",
			ElapsedMS:  12.5,
		},
		statuses: []models.AgentStatus{
			{Name: "routing", Status: models.StateIdle},
			{Name: "retrieval", Status: models.StateIdle},
			{Name: "synthesis", Status: models.StateIdle},
			{Name: "validation", Status: models.StateIdle},
		},
	}
	docs := store.NewMemoryStore()
	emb := &fakeEmbedder{}
	vs := &fakeVectorStore{}
	llm := &fakeLLM{}
	ing := ingest.NewIngester(emb, vs, fakeDetector{}, docs, cfg.Ingest)

	h := handlers.New(pipeline, ing, docs, emb, vs, llm, cfg)
	return &testEnv{
		router:   api.NewRouter(cfg, h),
		pipeline: pipeline,
		docs:     docs,
		llm:      llm,
	}
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestQueryEndpoint(t *testing.T) {
	env := newTestEnv(t)

	rec := doJSON(t, env.router, http.MethodPost, "/api/v1/query", models.QueryRequest{
		Query:    "What is AI?",
		Language: "en",
		TopK:     3,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp models.QueryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "What is AI?", resp.Query)
	assert.Equal(t, "an answer", resp.Response)
	assert.Equal(t, []string{"doc.txt"}, resp.Sources)
	assert.InDelta(t, 0.6, resp.Confidence, 1e-9)

	assert.Equal(t, 3, env.pipeline.lastReq.TopK)
	assert.True(t, env.pipeline.lastReq.IncludeValidation) // on by default
}

func TestQueryEndpointRejectsEmptyQuery(t *testing.T) {
	env := newTestEnv(t)

	rec := doJSON(t, env.router, http.MethodPost, "/api/v1/query", models.QueryRequest{Query: "   "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestQueryEndpointRejectsUnsupportedLanguage(t *testing.T) {
	env := newTestEnv(t)

	rec := doJSON(t, env.router, http.MethodPost, "/api/v1/query", models.QueryRequest{
		Query:    "What is AI?",
		Language: "xx",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "unsupported language")
}

func TestQueryEndpointPipelineFailure(t *testing.T) {
	env := newTestEnv(t)
	env.pipeline.result = &models.PipelineResult{Success: false, Error: "retrieval failed: search unavailable"}

	rec := doJSON(t, env.router, http.MethodPost, "/api/v1/query", models.QueryRequest{Query: "What is AI?"})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "search unavailable")
}

func uploadRequest(t *testing.T, filename, content, language string) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	if language != "" {
		require.NoError(t, mw.WriteField("language", language))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/ingest", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestIngestEndpoint(t *testing.T) {
	env := newTestEnv(t)

	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, uploadRequest(t, "notes.txt", "some note content", "en"))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp models.IngestResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "success", resp.Status)
	assert.Equal(t, "notes.txt", resp.FileName)
	assert.Equal(t, 1, resp.ChunksCreated)
	assert.NotEmpty(t, resp.DocumentID)
}

func TestIngestEndpointRejectsUnsupportedType(t *testing.T) {
	env := newTestEnv(t)

	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, uploadRequest(t, "slides.pdf", "%PDF", "en"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "unsupported file type")
}

func TestIngestEndpointMissingFile(t *testing.T) {
	env := newTestEnv(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("language", "en"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/ingest", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "missing file field")
}

func TestDocumentsListAndDelete(t *testing.T) {
	env := newTestEnv(t)

	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, uploadRequest(t, "notes.txt", "some note content", "en"))
	require.Equal(t, http.StatusOK, rec.Code)

	var ingested models.IngestResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ingested))

	rec = doJSON(t, env.router, http.MethodGet, "/api/v1/documents/", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var list models.DocumentListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Equal(t, 1, list.TotalCount)
	assert.Equal(t, "notes.txt", list.Documents[0].FileName)

	rec = doJSON(t, env.router, http.MethodDelete, "/api/v1/documents/"+ingested.DocumentID, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, env.router, http.MethodDelete, "/api/v1/documents/"+ingested.DocumentID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAgentsStatusEndpoint(t *testing.T) {
	env := newTestEnv(t)

	rec := doJSON(t, env.router, http.MethodGet, "/api/v1/agents/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp models.AgentsStatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.OverallStatus)
	assert.Len(t, resp.Agents, 4)

	// A stage stuck in error degrades the overall status.
	env.pipeline.statuses[1].Status = models.StateError
	rec = doJSON(t, env.router, http.MethodGet, "/api/v1/agents/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "degraded", resp.OverallStatus)
}

func TestHealthEndpoint(t *testing.T) {
	env := newTestEnv(t)

	rec := doJSON(t, env.router, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp models.HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, "healthy", resp.Services["llm"].Status)
	assert.Equal(t, "fake-model", resp.Services["llm"].Detail["model"])
}

func TestHealthEndpointDegraded(t *testing.T) {
	env := newTestEnv(t)
	env.llm.err = errors.New("connection refused")

	rec := doJSON(t, env.router, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "unhealthy")
}

func TestVersionEndpoint(t *testing.T) {
	env := newTestEnv(t)

	rec := doJSON(t, env.router, http.MethodGet, "/version", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "polyrag")
}
