package agent_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polyrag/polyrag/internal/agent"
	"github.com/polyrag/polyrag/pkg/models"
)

func routeMsg(in models.RoutingInput) models.Message {
	return models.NewMessage("user", "routing", models.StageRouting, in)
}

func TestRoutingQueryTypes(t *testing.T) {
	tests := []struct {
		query string
		want  models.QueryType
	}{
		{"What is AI?", models.QueryFactual},
		{"which planet is largest", models.QueryFactual},
		{"WHO invented the telephone", models.QueryFactual},
		{"where is the Louvre", models.QueryFactual},
		{"Explain photosynthesis", models.QueryExplanatory},
		{"describe the water cycle", models.QueryExplanatory},
		{"Summarize this report", models.QuerySummarization},
		{"give me a brief overview", models.QuerySummarization},
		{"Tell me about the Renaissance", models.QueryGeneral},
		// Factual markers win over explanatory ones: ordered first-match.
		{"What happened and how did it end?", models.QueryFactual},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			s := agent.NewRouting(&fakeDetector{code: "en"})
			decision, err := s.Process(context.Background(), routeMsg(models.RoutingInput{Query: tt.query, Language: "en", TopK: 5}))
			require.NoError(t, err)
			assert.Equal(t, tt.want, decision.QueryType)
		})
	}
}

func TestRoutingDecisionFields(t *testing.T) {
	s := agent.NewRouting(&fakeDetector{code: "en"})

	decision, err := s.Process(context.Background(), routeMsg(models.RoutingInput{Query: "What is AI?", Language: "en", TopK: 5}))
	require.NoError(t, err)

	assert.Equal(t, 1, decision.Priority)
	assert.True(t, decision.RequiresRetrieval)
	assert.True(t, decision.RequiresValidation)
	assert.Equal(t, []models.StageKind{models.StageRetrieval, models.StageSynthesis, models.StageValidation}, decision.StageOrder)
	assert.Equal(t, "en", decision.Language)
}

func TestRoutingValidationGateFollowsQueryType(t *testing.T) {
	tests := []struct {
		query        string
		wantValidate bool
	}{
		{"What is AI?", true},
		{"Explain recursion", true},
		{"Summarize the minutes", false},
		{"Tell me a story", false},
	}

	for _, tt := range tests {
		s := agent.NewRouting(&fakeDetector{code: "en"})
		decision, err := s.Process(context.Background(), routeMsg(models.RoutingInput{Query: tt.query, Language: "en", TopK: 5}))
		require.NoError(t, err)

		assert.Equal(t, tt.wantValidate, decision.RequiresValidation, "query %q", tt.query)
		wantStages := []models.StageKind{models.StageRetrieval, models.StageSynthesis}
		if tt.wantValidate {
			wantStages = append(wantStages, models.StageValidation)
		}
		assert.Equal(t, wantStages, decision.StageOrder, "query %q", tt.query)
	}
}

func TestRoutingDetectsLanguageWhenAbsent(t *testing.T) {
	det := &fakeDetector{code: "es", confidence: 0.9}
	s := agent.NewRouting(det)

	decision, err := s.Process(context.Background(), routeMsg(models.RoutingInput{Query: "¿Qué es la inteligencia artificial? what", TopK: 5}))
	require.NoError(t, err)

	assert.Equal(t, "es", decision.Language)
	assert.Equal(t, 1, det.calls)
}

func TestRoutingSkipsDetectionWhenLanguageGiven(t *testing.T) {
	det := &fakeDetector{code: "es"}
	s := agent.NewRouting(det)

	decision, err := s.Process(context.Background(), routeMsg(models.RoutingInput{Query: "What is AI?", Language: "fr", TopK: 5}))
	require.NoError(t, err)

	assert.Equal(t, "fr", decision.Language)
	assert.Zero(t, det.calls)
}

func TestRoutingRejectsWrongContent(t *testing.T) {
	s := agent.NewRouting(&fakeDetector{code: "en"})

	_, err := s.Process(context.Background(), models.NewMessage("user", "routing", models.StageRouting, "not a routing input"))
	require.Error(t, err)

	status := s.Status()
	assert.Equal(t, models.StateError, status.Status)
	assert.Equal(t, 1, status.ErrorCount)
}

func TestRoutingStatusLifecycle(t *testing.T) {
	s := agent.NewRouting(&fakeDetector{code: "en"})

	before := s.Status()
	assert.Equal(t, models.StateIdle, before.Status)
	assert.Zero(t, before.ProcessedCount)

	_, err := s.Process(context.Background(), routeMsg(models.RoutingInput{Query: "What is AI?", Language: "en", TopK: 5}))
	require.NoError(t, err)

	after := s.Status()
	assert.Equal(t, models.StateIdle, after.Status)
	assert.Equal(t, 1, after.ProcessedCount)
	assert.Zero(t, after.ErrorCount)
	assert.Empty(t, after.CurrentTask)
}
