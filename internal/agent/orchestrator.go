package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/polyrag/polyrag/pkg/models"
)

// DefaultTopK is used when a pipeline request does not set top_k.
const DefaultTopK = 5

// Orchestrator sequences the four stages into one pipeline run. It is
// the only component that invokes multiple stages; stage outputs flow
// forward as complete, immutable values.
type Orchestrator struct {
	routing    *Routing
	retrieval  *Retrieval
	synthesis  *Synthesis
	validation *Validation

	defaultTopK int
}

// OrchestratorOption configures the orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithDefaultTopK overrides the top_k applied to requests that omit it.
func WithDefaultTopK(k int) OrchestratorOption {
	return func(o *Orchestrator) {
		if k > 0 {
			o.defaultTopK = k
		}
	}
}

// NewOrchestrator wires the four stage instances into a pipeline.
func NewOrchestrator(routing *Routing, retrieval *Retrieval, synthesis *Synthesis, validation *Validation, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		routing:     routing,
		retrieval:   retrieval,
		synthesis:   synthesis,
		validation:  validation,
		defaultTopK: DefaultTopK,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// RunPipeline executes routing → retrieval → synthesis → optional
// validation. Failures never escape as panics or errors: a mandatory
// stage failing aborts the run with the agent states collected so far,
// and anything escaping a stage's own handling is recovered here and
// converted to the same failure shape.
func (o *Orchestrator) RunPipeline(ctx context.Context, req models.PipelineRequest) (result *models.PipelineResult) {
	start := time.Now()
	states := map[string]models.AgentStatus{}

	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("pipeline panicked")
			result = failure(fmt.Sprintf("pipeline panic: %v", r), states)
		}
	}()

	topK := req.TopK
	if topK <= 0 {
		topK = o.defaultTopK
	}

	log.Info().Str("query", truncate(req.Query, 100)).Msg("processing query")

	// Step 1: routing.
	decision, err := o.routing.Process(ctx, models.NewMessage(
		"user", string(models.StageRouting), models.StageRouting,
		models.RoutingInput{Query: req.Query, Language: req.Language, TopK: topK},
	))
	states[string(models.StageRouting)] = o.routing.Status()
	if err != nil {
		log.Error().Err(err).Msg("routing stage failed")
		return failure(err.Error(), states)
	}

	// Step 2: retrieval.
	retrieved, err := o.retrieval.Process(ctx, models.NewMessage(
		string(models.StageRouting), string(models.StageRetrieval), models.StageRetrieval,
		models.RetrievalInput{Query: req.Query, Language: decision.Language, TopK: topK},
	))
	states[string(models.StageRetrieval)] = o.retrieval.Status()
	if err != nil {
		log.Error().Err(err).Msg("retrieval stage failed")
		return failure(err.Error(), states)
	}

	// Strip embeddings before handing documents downstream.
	documents := make([]models.Document, len(retrieved.Documents))
	for i, chunk := range retrieved.Documents {
		documents[i] = chunk.Plain()
	}

	// Step 3: synthesis.
	synthesized, err := o.synthesis.Process(ctx, models.NewMessage(
		string(models.StageRetrieval), string(models.StageSynthesis), models.StageSynthesis,
		models.SynthesisInput{Query: req.Query, Language: decision.Language, Documents: documents},
	))
	states[string(models.StageSynthesis)] = o.synthesis.Status()
	if err != nil {
		log.Error().Err(err).Msg("synthesis stage failed")
		return failure(err.Error(), states)
	}

	// Step 4: validation — optional; its failure does not abort the run.
	var validation *models.ValidationResult
	if req.IncludeValidation && decision.RequiresValidation {
		validated, err := o.validation.Process(ctx, models.NewMessage(
			string(models.StageSynthesis), string(models.StageValidation), models.StageValidation,
			models.ValidationInput{Query: req.Query, Response: synthesized.Response, Documents: documents},
		))
		states[string(models.StageValidation)] = o.validation.Status()
		if err != nil {
			log.Warn().Err(err).Msg("validation stage failed, omitting validation output")
		} else {
			validation = &validated
		}
	}

	elapsed := elapsedMS(start)
	log.Info().Float64("elapsed_ms", elapsed).Msg("query processed")

	return &models.PipelineResult{
		Success:     true,
		Response:    synthesized.Response,
		Sources:     synthesized.Sources,
		Confidence:  synthesized.Confidence,
		Validation:  validation,
		ElapsedMS:   elapsed,
		AgentStates: states,
		Language:    decision.Language,
	}
}

// Statuses returns current snapshots for all four stages in pipeline
// order. Side-effect-free: consecutive calls with no intervening run
// return identical snapshots.
func (o *Orchestrator) Statuses() []models.AgentStatus {
	return []models.AgentStatus{
		o.routing.Status(),
		o.retrieval.Status(),
		o.synthesis.Status(),
		o.validation.Status(),
	}
}

func failure(errMsg string, states map[string]models.AgentStatus) *models.PipelineResult {
	return &models.PipelineResult{
		Success:     false,
		Error:       errMsg,
		AgentStates: states,
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
