package services

import (
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/Ansab-Sultan/DocQuery-AI/models"
)

// VectorIndex is an in-memory store of chunk embeddings searched by cosine
// similarity. A fresh index is built per ingestion and swapped into the
// session atomically, so writes only happen before the index is published;
// the RWMutex still guards against misuse.
type VectorIndex struct {
	mu      sync.RWMutex
	dim     int
	vectors [][]float32
	chunks  []models.ContentChunk
}

// ScoredChunk is a retrieval hit with its cosine similarity score.
type ScoredChunk struct {
	Chunk models.ContentChunk
	Score float64
}

func NewVectorIndex() *VectorIndex {
	return &VectorIndex{}
}

// Insert adds one chunk and its embedding. The first insert fixes the index
// dimensionality; later inserts must match it.
func (vi *VectorIndex) Insert(chunk models.ContentChunk, embedding []float32) error {
	if len(embedding) == 0 {
		return fmt.Errorf("%w: empty embedding for chunk %s", ErrDimensionMismatch, chunk.ChunkID)
	}

	vi.mu.Lock()
	defer vi.mu.Unlock()

	if vi.dim == 0 {
		vi.dim = len(embedding)
	} else if len(embedding) != vi.dim {
		return fmt.Errorf("%w: got %d dimensions, index has %d", ErrDimensionMismatch, len(embedding), vi.dim)
	}

	vec := make([]float32, len(embedding))
	copy(vec, embedding)
	vi.vectors = append(vi.vectors, vec)
	vi.chunks = append(vi.chunks, chunk)
	return nil
}

// Query returns the topK chunks most similar to the query embedding,
// ordered by descending cosine similarity.
func (vi *VectorIndex) Query(embedding []float32, topK int) ([]ScoredChunk, error) {
	vi.mu.RLock()
	defer vi.mu.RUnlock()

	if len(vi.vectors) == 0 {
		return nil, ErrEmptyIndex
	}
	if len(embedding) != vi.dim {
		return nil, fmt.Errorf("%w: query has %d dimensions, index has %d", ErrDimensionMismatch, len(embedding), vi.dim)
	}
	if topK <= 0 {
		topK = 1
	}

	scored := make([]ScoredChunk, len(vi.vectors))
	for i, vec := range vi.vectors {
		scored[i] = ScoredChunk{Chunk: vi.chunks[i], Score: cosineSimilarity(embedding, vec)}
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	if topK > len(scored) {
		topK = len(scored)
	}
	return scored[:topK], nil
}

// Len reports the number of indexed chunks.
func (vi *VectorIndex) Len() int {
	vi.mu.RLock()
	defer vi.mu.RUnlock()
	return len(vi.chunks)
}

// Dimension reports the embedding dimensionality, 0 while empty.
func (vi *VectorIndex) Dimension() int {
	vi.mu.RLock()
	defer vi.mu.RUnlock()
	return vi.dim
}

func cosineSimilarity(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
