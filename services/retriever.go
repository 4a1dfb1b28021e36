package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/Ansab-Sultan/DocQuery-AI/internal/logger"
	"github.com/Ansab-Sultan/DocQuery-AI/models"
)

// Retriever is the history-aware retrieval stage: rewrite the question
// against the conversation, embed it, and pull the closest chunks from the
// session index.
type Retriever struct {
	rewriter *QueryRewriter
	embedder Embedder
	topK     int
}

func NewRetriever(rewriter *QueryRewriter, embedder Embedder, topK int) *Retriever {
	if topK <= 0 {
		topK = 5
	}
	return &Retriever{rewriter: rewriter, embedder: embedder, topK: topK}
}

// Retrieve returns the topK chunks for the question, plus the standalone
// form of the question that was actually searched. A failed rewrite is not
// fatal: retrieval falls back to the raw question.
func (r *Retriever) Retrieve(ctx context.Context, index *VectorIndex, question string, history []models.ConversationTurn) ([]ScoredChunk, string, error) {
	standalone, err := r.rewriter.Rewrite(ctx, question, history)
	if err != nil {
		if errors.Is(err, ErrEmptyQuestion) {
			return nil, "", err
		}
		logger.Warn("query rewrite failed, searching with raw question", "error", err)
		standalone = question
	}

	embedding, err := r.embedder.Embed(ctx, standalone)
	if err != nil {
		return nil, standalone, fmt.Errorf("embedding question: %w", err)
	}

	hits, err := index.Query(embedding, r.topK)
	if err != nil {
		return nil, standalone, fmt.Errorf("searching index: %w", err)
	}
	return hits, standalone, nil
}
