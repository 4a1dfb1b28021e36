package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ansab-Sultan/DocQuery-AI/models"
)

func TestVectorIndexInsertAndQuery(t *testing.T) {
	index := NewVectorIndex()

	require.NoError(t, index.Insert(models.ContentChunk{ChunkID: "a", Text: "alpha"}, []float32{1, 0, 0}))
	require.NoError(t, index.Insert(models.ContentChunk{ChunkID: "b", Text: "beta"}, []float32{0, 1, 0}))
	require.NoError(t, index.Insert(models.ContentChunk{ChunkID: "c", Text: "gamma"}, []float32{0.9, 0.1, 0}))

	assert.Equal(t, 3, index.Len())
	assert.Equal(t, 3, index.Dimension())

	hits, err := index.Query([]float32{1, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "a", hits[0].Chunk.ChunkID)
	assert.Equal(t, "c", hits[1].Chunk.ChunkID)
	assert.Greater(t, hits[0].Score, hits[1].Score)
}

func TestVectorIndexQueryTopKClamped(t *testing.T) {
	index := NewVectorIndex()
	require.NoError(t, index.Insert(models.ContentChunk{ChunkID: "a"}, []float32{1, 0}))

	hits, err := index.Query([]float32{1, 0}, 5)
	require.NoError(t, err)
	assert.Len(t, hits, 1)
}

func TestVectorIndexEmptyQueryFails(t *testing.T) {
	index := NewVectorIndex()
	_, err := index.Query([]float32{1, 0}, 5)
	assert.ErrorIs(t, err, ErrEmptyIndex)
}

func TestVectorIndexDimensionMismatch(t *testing.T) {
	index := NewVectorIndex()
	require.NoError(t, index.Insert(models.ContentChunk{ChunkID: "a"}, []float32{1, 0, 0}))

	err := index.Insert(models.ContentChunk{ChunkID: "b"}, []float32{1, 0})
	assert.ErrorIs(t, err, ErrDimensionMismatch)

	_, err = index.Query([]float32{1, 0}, 1)
	assert.ErrorIs(t, err, ErrDimensionMismatch)

	err = index.Insert(models.ContentChunk{ChunkID: "c"}, nil)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestVectorIndexCopiesEmbedding(t *testing.T) {
	index := NewVectorIndex()
	vec := []float32{1, 0}
	require.NoError(t, index.Insert(models.ContentChunk{ChunkID: "a"}, vec))

	// Mutating the caller's slice must not affect stored vectors.
	vec[0] = 0
	vec[1] = 1

	hits, err := index.Query([]float32{1, 0}, 1)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, hits[0].Score, 1e-9)
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, cosineSimilarity([]float32{1, 2, 3}, []float32{2, 4, 6}), 1e-9)
	assert.InDelta(t, 0.0, cosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.InDelta(t, -1.0, cosineSimilarity([]float32{1, 0}, []float32{-1, 0}), 1e-9)
	assert.Equal(t, 0.0, cosineSimilarity([]float32{0, 0}, []float32{1, 1}))
}
