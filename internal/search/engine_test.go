package search

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reef-research/backend/internal/storage/models"
)

type fakeEmbedder struct {
	embedding []float32
	err       error
	calls     int
}

func (f *fakeEmbedder) GenerateEmbedding(_ context.Context, _ string) ([]float32, error) {
	f.calls++
	return f.embedding, f.err
}

type fakeSearcher struct {
	results []models.Paper
	err     error
	gotTopK int
	gotVec  []float32
}

func (f *fakeSearcher) Search(_ context.Context, queryEmbedding []float32, topK int) ([]models.Paper, error) {
	f.gotVec = queryEmbedding
	f.gotTopK = topK
	return f.results, f.err
}

func TestSearchWithoutCache(t *testing.T) {
	embedder := &fakeEmbedder{embedding: []float32{0.5, 0.5}}
	searcher := &fakeSearcher{results: []models.Paper{
		{ArxivID: "2401.00001", Title: "Hit", Similarity: 0.93},
	}}

	engine := NewEngine(embedder, searcher, nil)
	out, err := engine.Search(context.Background(), "query abstract", 7)
	require.NoError(t, err)

	require.Len(t, out, 1)
	assert.Equal(t, "2401.00001", out[0].ArxivID)
	assert.Equal(t, 7, searcher.gotTopK)
	assert.Equal(t, []float32{0.5, 0.5}, searcher.gotVec)
	assert.Equal(t, 1, embedder.calls)
}

func TestSearchEmbeddingFailure(t *testing.T) {
	embedder := &fakeEmbedder{err: errors.New("rate limited")}
	engine := NewEngine(embedder, &fakeSearcher{}, nil)

	_, err := engine.Search(context.Background(), "abstract", 5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to embed abstract")
}

func TestSearchVectorFailure(t *testing.T) {
	embedder := &fakeEmbedder{embedding: []float32{1}}
	searcher := &fakeSearcher{err: errors.New("collection not loaded")}
	engine := NewEngine(embedder, searcher, nil)

	_, err := engine.Search(context.Background(), "abstract", 5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "vector search failed")
}

func TestSearchDeterministicForSameInput(t *testing.T) {
	embedder := &fakeEmbedder{embedding: []float32{0.1}}
	searcher := &fakeSearcher{results: []models.Paper{
		{ArxivID: "a", Similarity: 0.9},
		{ArxivID: "b", Similarity: 0.8},
	}}
	engine := NewEngine(embedder, searcher, nil)

	first, err := engine.Search(context.Background(), "same abstract", 2)
	require.NoError(t, err)
	second, err := engine.Search(context.Background(), "same abstract", 2)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}
