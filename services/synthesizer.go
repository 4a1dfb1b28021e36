package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/Ansab-Sultan/DocQuery-AI/models"
)

const answerPromptHeader = `You are DocQuery AI, an assistant for question-answering tasks over the user's uploaded documents. Use the following pieces of retrieved context to answer the question. If you don't know the answer from the context, say that you don't know. Keep the answer concise and grounded in the context.`

// AnswerSynthesizer produces the grounded answer from the retrieved context
// and the conversation so far.
type AnswerSynthesizer struct {
	generator Generator
}

func NewAnswerSynthesizer(generator Generator) *AnswerSynthesizer {
	return &AnswerSynthesizer{generator: generator}
}

// Synthesize answers the question from the retrieved chunks. An empty
// context set is not an error; the model is asked anyway and will say it
// does not know.
func (as *AnswerSynthesizer) Synthesize(ctx context.Context, question string, hits []ScoredChunk, history []models.ConversationTurn) (string, error) {
	var sb strings.Builder
	sb.WriteString(answerPromptHeader)

	sb.WriteString("\n\nContext:\n")
	if len(hits) == 0 {
		sb.WriteString("(no relevant context was found in the uploaded documents)\n")
	}
	for i, hit := range hits {
		sb.WriteString(fmt.Sprintf("[%d] (%s", i+1, hit.Chunk.SourceFile))
		if hit.Chunk.Page > 0 {
			sb.WriteString(fmt.Sprintf(", page %d", hit.Chunk.Page))
		}
		sb.WriteString(")\n")
		sb.WriteString(hit.Chunk.Text)
		sb.WriteString("\n\n")
	}

	if len(history) > 0 {
		sb.WriteString("Chat history:\n")
		for _, turn := range history {
			sb.WriteString(string(turn.Role))
			sb.WriteString(": ")
			sb.WriteString(turn.Content)
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}

	sb.WriteString("Question: ")
	sb.WriteString(question)
	sb.WriteString("\n\nAnswer:")

	answer, err := as.generator.Generate(ctx, sb.String())
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSynthesisFailed, err)
	}

	answer = strings.TrimSpace(answer)
	if answer == "" {
		return "", fmt.Errorf("%w: model returned no text", ErrSynthesisFailed)
	}
	return answer, nil
}
