package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/Ansab-Sultan/DocQuery-AI/models"
)

const rewritePromptHeader = `Given a chat history and the latest user question which might reference context in the chat history, formulate a standalone question which can be understood without the chat history. Do NOT answer the question, just reformulate it if needed and otherwise return it as is.`

// QueryRewriter turns a follow-up question into a standalone one using the
// conversation so far, so retrieval works on pronouns and elliptical
// questions ("what about its population?").
type QueryRewriter struct {
	generator Generator
}

func NewQueryRewriter(generator Generator) *QueryRewriter {
	return &QueryRewriter{generator: generator}
}

// Rewrite returns the question reformulated against history. With no history
// the question is already standalone and is returned unchanged without a
// model call.
func (qr *QueryRewriter) Rewrite(ctx context.Context, question string, history []models.ConversationTurn) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", ErrEmptyQuestion
	}
	if len(history) == 0 {
		return question, nil
	}

	var sb strings.Builder
	sb.WriteString(rewritePromptHeader)
	sb.WriteString("\n\nChat history:\n")
	for _, turn := range history {
		sb.WriteString(string(turn.Role))
		sb.WriteString(": ")
		sb.WriteString(turn.Content)
		sb.WriteString("\n")
	}
	sb.WriteString("\nLatest question: ")
	sb.WriteString(question)
	sb.WriteString("\n\nStandalone question:")

	rewritten, err := qr.generator.Generate(ctx, sb.String())
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrRewriteFailed, err)
	}

	rewritten = strings.TrimSpace(rewritten)
	if rewritten == "" {
		return "", fmt.Errorf("%w: model returned empty reformulation", ErrRewriteFailed)
	}
	return rewritten, nil
}
