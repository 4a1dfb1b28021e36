package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ansab-Sultan/DocQuery-AI/models"
)

func TestSynthesizePromptContainsContextAndQuestion(t *testing.T) {
	gen := &fakeGenerator{respond: func(string) (string, error) {
		return "The sky is blue.", nil
	}}
	synth := NewAnswerSynthesizer(gen)

	hits := []ScoredChunk{
		{Chunk: models.ContentChunk{Text: "the sky is blue on a clear day", SourceFile: "weather.pdf", Page: 3}, Score: 0.9},
		{Chunk: models.ContentChunk{Text: "rain clouds are grey", SourceFile: "weather.pdf", Page: 4}, Score: 0.5},
	}
	answer, err := synth.Synthesize(context.Background(), "What color is the sky?", hits, nil)
	require.NoError(t, err)
	assert.Equal(t, "The sky is blue.", answer)

	prompt := gen.lastPrompt()
	assert.Contains(t, prompt, "the sky is blue on a clear day")
	assert.Contains(t, prompt, "rain clouds are grey")
	assert.Contains(t, prompt, "weather.pdf, page 3")
	assert.Contains(t, prompt, "What color is the sky?")
	assert.Contains(t, prompt, "DocQuery AI")
}

func TestSynthesizeIncludesHistory(t *testing.T) {
	gen := &fakeGenerator{}
	synth := NewAnswerSynthesizer(gen)

	history := []models.ConversationTurn{
		{Role: models.RoleUser, Content: "tell me about paris"},
		{Role: models.RoleAssistant, Content: "Paris is the capital of France."},
	}
	_, err := synth.Synthesize(context.Background(), "what about its population?", nil, history)
	require.NoError(t, err)

	prompt := gen.lastPrompt()
	assert.Contains(t, prompt, "Paris is the capital of France.")
	assert.Contains(t, prompt, "user: tell me about paris")
}

func TestSynthesizeEmptyContextStillAsks(t *testing.T) {
	gen := &fakeGenerator{respond: func(string) (string, error) {
		return "I don't know based on the provided documents.", nil
	}}
	synth := NewAnswerSynthesizer(gen)

	answer, err := synth.Synthesize(context.Background(), "Who wrote this?", nil, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, answer)
	assert.Contains(t, gen.lastPrompt(), "no relevant context")
}

func TestSynthesizeModelFailure(t *testing.T) {
	gen := &fakeGenerator{respond: func(string) (string, error) {
		return "", errors.New("overloaded")
	}}
	synth := NewAnswerSynthesizer(gen)

	_, err := synth.Synthesize(context.Background(), "question", nil, nil)
	assert.ErrorIs(t, err, ErrSynthesisFailed)
}

func TestSynthesizeEmptyCompletion(t *testing.T) {
	gen := &fakeGenerator{respond: func(string) (string, error) {
		return "  \n ", nil
	}}
	synth := NewAnswerSynthesizer(gen)

	_, err := synth.Synthesize(context.Background(), "question", nil, nil)
	assert.ErrorIs(t, err, ErrSynthesisFailed)
}
