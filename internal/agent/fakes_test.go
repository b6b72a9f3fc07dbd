package agent_test

import (
	"context"

	"github.com/polyrag/polyrag/internal/agent"
	"github.com/polyrag/polyrag/pkg/models"
)

// fakeDetector returns a fixed detection result and records calls.
type fakeDetector struct {
	code       string
	confidence float64
	calls      int
}

func (d *fakeDetector) Detect(text string) (string, float64) {
	d.calls++
	return d.code, d.confidence
}

// fakeEmbedder returns a fixed vector per input text.
type fakeEmbedder struct {
	err   error
	calls int
}

func (e *fakeEmbedder) Kind() string      { return "fake" }
func (e *fakeEmbedder) Dimensions() int   { return 3 }
func (e *fakeEmbedder) MaxBatchSize() int { return 32 }

func (e *fakeEmbedder) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	vectors := make([][]float64, len(texts))
	for i := range texts {
		vectors[i] = []float64{0.1, 0.2, 0.3}
	}
	return vectors, nil
}

func (e *fakeEmbedder) HealthCheck(ctx context.Context) error { return e.err }

// fakeSearcher returns canned hits and records the last search call.
type fakeSearcher struct {
	hits []models.SearchResult
	err  error

	lastTopK   int
	lastFilter map[string]string
}

func (s *fakeSearcher) Kind() string { return "fake" }

func (s *fakeSearcher) Search(ctx context.Context, vector []float64, topK int, filter map[string]string) ([]models.SearchResult, error) {
	s.lastTopK = topK
	s.lastFilter = filter
	if s.err != nil {
		return nil, s.err
	}
	return s.hits, nil
}

func (s *fakeSearcher) Upsert(ctx context.Context, docs []models.VectorDoc) error { return nil }
func (s *fakeSearcher) Delete(ctx context.Context, ids []string) error            { return nil }
func (s *fakeSearcher) Count(ctx context.Context) (int, error)                    { return len(s.hits), nil }
func (s *fakeSearcher) HealthCheck(ctx context.Context) error                     { return s.err }

// fakeLLM returns a fixed completion and records the last prompt. A
// panicMsg makes Generate panic, to exercise the orchestrator's
// boundary recovery.
type fakeLLM struct {
	response   string
	err        error
	panicMsg   string
	lastPrompt string
}

func (l *fakeLLM) Kind() string  { return "fake" }
func (l *fakeLLM) Model() string { return "fake-model" }

func (l *fakeLLM) Generate(ctx context.Context, prompt string, opts models.GenerateOptions) (string, error) {
	l.lastPrompt = prompt
	if l.panicMsg != "" {
		panic(l.panicMsg)
	}
	if l.err != nil {
		return "", l.err
	}
	return l.response, nil
}

func (l *fakeLLM) HealthCheck(ctx context.Context) error { return l.err }

// hit builds a search result with content and metadata.
func hit(id, content string, metadata map[string]string) models.SearchResult {
	return models.SearchResult{
		Doc:   models.VectorDoc{ID: id, Content: content, Metadata: metadata},
		Score: 0.9,
	}
}

// doc builds a plain document with content and source.
func doc(id, content, source string) models.Document {
	return models.Document{
		ID:       id,
		Content:  content,
		Metadata: models.ChunkMetadata{Source: source},
	}
}

// newTestOrchestrator wires stages over the given fakes.
func newTestOrchestrator(det *fakeDetector, emb *fakeEmbedder, search *fakeSearcher, llm *fakeLLM) *agent.Orchestrator {
	return agent.NewOrchestrator(
		agent.NewRouting(det),
		agent.NewRetrieval(emb, search),
		agent.NewSynthesis(llm, models.GenerateOptions{Temperature: 0.7, TopP: 0.9, MaxTokens: 256}),
		agent.NewValidation(),
	)
}
