package services

import "context"

// Embedder maps text to fixed-dimension vectors. Implemented by ai.Client;
// tests substitute deterministic fakes.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Generator produces a completion for a fully-assembled prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}
