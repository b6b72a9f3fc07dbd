package agent_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polyrag/polyrag/internal/agent"
	"github.com/polyrag/polyrag/pkg/models"
)

func synthMsg(in models.SynthesisInput) models.Message {
	return models.NewMessage("retrieval", "synthesis", models.StageSynthesis, in)
}

func newSynthesis(llm *fakeLLM) *agent.Synthesis {
	return agent.NewSynthesis(llm, models.GenerateOptions{Temperature: 0.7, TopP: 0.9, MaxTokens: 256})
}

func TestSynthesisConfidenceIsDocumentCountRatio(t *testing.T) {
	tests := []struct {
		docs int
		want float64
	}{
		{0, 0.0},
		{1, 0.2},
		{3, 0.6},
		{5, 1.0},
		{10, 1.0},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d documents", tt.docs), func(t *testing.T) {
			docs := make([]models.Document, tt.docs)
			for i := range docs {
				docs[i] = doc(fmt.Sprintf("c%d", i), "content", "src")
			}
			s := newSynthesis(&fakeLLM{response: "an answer"})

			result, err := s.Process(context.Background(), synthMsg(models.SynthesisInput{Query: "q", Language: "en", Documents: docs}))
			require.NoError(t, err)
			assert.InDelta(t, tt.want, result.Confidence, 1e-9)
		})
	}
}

func TestSynthesisSourcesDistinctFirstSeen(t *testing.T) {
	docs := []models.Document{
		doc("c1", "a", "report.txt"),
		doc("c2", "b", "notes.md"),
		doc("c3", "c", "report.txt"),
		doc("c4", "d", ""),
	}
	s := newSynthesis(&fakeLLM{response: "an answer"})

	result, err := s.Process(context.Background(), synthMsg(models.SynthesisInput{Query: "q", Language: "en", Documents: docs}))
	require.NoError(t, err)

	assert.Equal(t, []string{"report.txt", "notes.md", "Unknown"}, result.Sources)
}

func TestSynthesisPromptEmbedsContextAndLanguage(t *testing.T) {
	llm := &fakeLLM{response: "una respuesta"}
	s := newSynthesis(llm)

	docs := []models.Document{
		doc("c1", "primer fragmento", "a.txt"),
		doc("c2", "segundo fragmento", "b.txt"),
	}
	_, err := s.Process(context.Background(), synthMsg(models.SynthesisInput{Query: "¿Qué es esto?", Language: "es", Documents: docs}))
	require.NoError(t, err)

	assert.Contains(t, llm.lastPrompt, "Answer in Spanish.")
	assert.Contains(t, llm.lastPrompt, "[Document 1]\nprimer fragmento")
	assert.Contains(t, llm.lastPrompt, "[Document 2]\nsegundo fragmento")
	assert.Contains(t, llm.lastPrompt, "Question: ¿Qué es esto?")
}

func TestSynthesisUnknownLanguageFallsBackToEnglish(t *testing.T) {
	llm := &fakeLLM{response: "an answer"}
	s := newSynthesis(llm)

	_, err := s.Process(context.Background(), synthMsg(models.SynthesisInput{Query: "q", Language: "xx", Documents: nil}))
	require.NoError(t, err)

	assert.Contains(t, llm.lastPrompt, "Answer in English.")
}

func TestSynthesisGenerationFailure(t *testing.T) {
	s := newSynthesis(&fakeLLM{err: errors.New("model offline")})

	_, err := s.Process(context.Background(), synthMsg(models.SynthesisInput{Query: "q", Language: "en"}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "generate response")

	status := s.Status()
	assert.Equal(t, models.StateError, status.Status)
	assert.Equal(t, 1, status.ErrorCount)
}
