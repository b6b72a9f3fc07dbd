package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/polyrag/polyrag/internal/language"
	"github.com/polyrag/polyrag/pkg/contracts"
	"github.com/polyrag/polyrag/pkg/models"
)

// Synthesis turns retrieved documents and a query into a grounded answer.
type Synthesis struct {
	tracker
	llm  contracts.GenerationDriver
	opts models.GenerateOptions
}

// NewSynthesis creates the synthesis stage. opts are the sampling
// parameters forwarded on every generation call.
func NewSynthesis(llm contracts.GenerationDriver, opts models.GenerateOptions) *Synthesis {
	return &Synthesis{
		tracker: newTracker(string(models.StageSynthesis)),
		llm:     llm,
		opts:    opts,
	}
}

// Process builds a context-grounded prompt, calls the generation
// collaborator synchronously, and derives sources and confidence.
func (s *Synthesis) Process(ctx context.Context, msg models.Message) (models.SynthesisResult, error) {
	s.begin("synthesizing_response")
	start := time.Now()

	in, err := content[models.SynthesisInput](msg, models.StageSynthesis)
	if err != nil {
		s.fail()
		return models.SynthesisResult{}, err
	}

	prompt := buildPrompt(in.Query, buildContext(in.Documents), in.Language)

	response, err := s.llm.Generate(ctx, prompt, s.opts)
	if err != nil {
		s.fail()
		return models.SynthesisResult{}, fmt.Errorf("generate response: %w", err)
	}

	result := models.SynthesisResult{
		Response:   response,
		Sources:    extractSources(in.Documents),
		Confidence: synthesisConfidence(len(in.Documents)),
		ElapsedMS:  elapsedMS(start),
	}

	s.done()
	log.Info().
		Int("documents", len(in.Documents)).
		Int("response_chars", len(response)).
		Float64("confidence", result.Confidence).
		Msg("response synthesized")

	return result, nil
}

// buildContext concatenates document contents under ordinal labels,
// preserving input order.
func buildContext(docs []models.Document) string {
	parts := make([]string, len(docs))
	for i, doc := range docs {
		parts[i] = fmt.Sprintf("[Document %d]\n%s", i+1, doc.Content)
	}
	return strings.Join(parts, "\n\n")
}

func buildPrompt(query, context, lang string) string {
	return fmt.Sprintf(`You are a helpful assistant. Answer the following question based on the provided context.
Answer in %s.

Context:
%s

Question: %s

Answer:`, language.DisplayName(lang), context, query)
}

// extractSources returns distinct source identifiers in first-seen order.
func extractSources(docs []models.Document) []string {
	seen := make(map[string]bool, len(docs))
	var sources []string
	for _, doc := range docs {
		source := doc.Metadata.Source
		if source == "" {
			source = "Unknown"
		}
		if !seen[source] {
			seen[source] = true
			sources = append(sources, source)
		}
	}
	return sources
}

// synthesisConfidence is a pure function of retrieved-document count:
// min(n/5, 1.0). Zero documents yields zero confidence.
func synthesisConfidence(n int) float64 {
	if n <= 0 {
		return 0.0
	}
	c := float64(n) / 5.0
	if c > 1.0 {
		return 1.0
	}
	return c
}
