package search

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	rediscache "github.com/reef-research/backend/internal/cache/redis"
	"github.com/reef-research/backend/internal/metrics"
	"github.com/reef-research/backend/internal/storage/models"
	"github.com/reef-research/backend/pkg/logger"
	"github.com/reef-research/backend/pkg/utils"
)

const (
	searchCacheTTL    = 30 * time.Minute
	embeddingCacheTTL = 24 * time.Hour
)

type Embedder interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
}

type VectorSearcher interface {
	Search(ctx context.Context, queryEmbedding []float32, topK int) ([]models.Paper, error)
}

// Engine runs semantic paper search: embed the abstract, look up nearest
// neighbours, cache both layers. Repeating a search over unchanged data
// returns the identical ranked list.
type Engine struct {
	embedder Embedder
	vectorDB VectorSearcher
	cache    *rediscache.Client
}

// NewEngine builds a search engine. cache may be nil; every lookup then
// goes to the embedding service and vector store directly.
func NewEngine(embedder Embedder, vectorDB VectorSearcher, cache *rediscache.Client) *Engine {
	return &Engine{
		embedder: embedder,
		vectorDB: vectorDB,
		cache:    cache,
	}
}

func (e *Engine) Search(ctx context.Context, abstract string, topK int) ([]models.Paper, error) {
	abstractHash := utils.HashString(abstract)

	if e.cache != nil {
		var cached []models.Paper
		hit, err := e.cache.GetSearch(ctx, abstractHash, &cached)
		if err != nil {
			logger.Warn("Search cache lookup failed", zap.Error(err))
		}
		if hit {
			metrics.CacheHits.WithLabelValues("search").Inc()
			return cached, nil
		}
		metrics.CacheMisses.WithLabelValues("search").Inc()
	}

	embedding, err := e.embedFor(ctx, abstract, abstractHash)
	if err != nil {
		return nil, fmt.Errorf("failed to embed abstract: %w", err)
	}

	results, err := e.vectorDB.Search(ctx, embedding, topK)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}

	metrics.SearchResultsCount.Observe(float64(len(results)))

	if e.cache != nil {
		if err := e.cache.SetSearch(ctx, abstractHash, results, searchCacheTTL); err != nil {
			logger.Warn("Failed to cache search result", zap.Error(err))
		}
	}

	logger.Info("Semantic search completed",
		zap.String("abstract_hash", abstractHash),
		zap.Int("results", len(results)),
	)

	return results, nil
}

func (e *Engine) embedFor(ctx context.Context, text, textHash string) ([]float32, error) {
	if e.cache != nil {
		embedding, hit, err := e.cache.GetEmbedding(ctx, textHash)
		if err != nil {
			logger.Warn("Embedding cache lookup failed", zap.Error(err))
		}
		if hit {
			metrics.CacheHits.WithLabelValues("embedding").Inc()
			return embedding, nil
		}
		metrics.CacheMisses.WithLabelValues("embedding").Inc()
	}

	embedding, err := e.embedder.GenerateEmbedding(ctx, text)
	if err != nil {
		return nil, err
	}

	if e.cache != nil {
		if err := e.cache.SetEmbedding(ctx, textHash, embedding, embeddingCacheTTL); err != nil {
			logger.Warn("Failed to cache embedding", zap.Error(err))
		}
	}

	return embedding, nil
}
