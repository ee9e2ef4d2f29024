// Package pipeline sequences multi-paper claim extraction. Papers are
// processed one at a time so the upstream APIs are never hammered, and a
// single paper's failure never aborts the batch.
package pipeline

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/reef-research/backend/internal/metrics"
	"github.com/reef-research/backend/internal/papers"
	"github.com/reef-research/backend/internal/storage/models"
	"github.com/reef-research/backend/pkg/logger"
)

// SourceFetcher retrieves one paper's source material.
type SourceFetcher interface {
	FetchSource(ctx context.Context, arxivID string) (*papers.Source, error)
}

// Extractor turns source text into a structured analysis.
type Extractor interface {
	ExtractClaims(ctx context.Context, arxivID, sourceText string) (*models.PaperAnalysis, error)
}

// ItemError is one failed paper in a batch.
type ItemError struct {
	ArxivID string `json:"arxiv_id"`
	Error   string `json:"error"`
}

// BatchResult always satisfies len(Papers)+len(Errors) == number of
// requested ids.
type BatchResult struct {
	Papers []models.PaperAnalysis `json:"papers"`
	Errors []ItemError            `json:"errors,omitempty"`
}

// Progress is invoked before each paper is processed. stage is "fetch" or
// "extract".
type Progress func(stage, arxivID string, index, total int)

type Orchestrator struct {
	fetcher   SourceFetcher
	extractor Extractor
}

func NewOrchestrator(fetcher SourceFetcher, extractor Extractor) *Orchestrator {
	return &Orchestrator{
		fetcher:   fetcher,
		extractor: extractor,
	}
}

// ProcessBatch extracts claims from each paper in order. Failures are
// recorded per item and the loop continues; the caller always gets whatever
// succeeded. A cancelled context fails the remaining items.
func (o *Orchestrator) ProcessBatch(ctx context.Context, arxivIDs []string, progress Progress) BatchResult {
	result := BatchResult{
		Papers: make([]models.PaperAnalysis, 0, len(arxivIDs)),
	}

	total := len(arxivIDs)
	for i, id := range arxivIDs {
		if err := ctx.Err(); err != nil {
			result.Errors = append(result.Errors, ItemError{ArxivID: id, Error: err.Error()})
			continue
		}

		analysis, err := o.processOne(ctx, id, i, total, progress)
		if err != nil {
			logger.Warn("Paper failed in batch",
				zap.String("arxiv_id", id),
				zap.Error(err),
			)
			metrics.PipelinePapersFailed.Inc()
			result.Errors = append(result.Errors, ItemError{ArxivID: id, Error: err.Error()})
			continue
		}

		metrics.PipelinePapersProcessed.Inc()
		result.Papers = append(result.Papers, *analysis)
	}

	logger.Info("Batch extraction finished",
		zap.Int("requested", total),
		zap.Int("succeeded", len(result.Papers)),
		zap.Int("failed", len(result.Errors)),
	)

	return result
}

func (o *Orchestrator) processOne(ctx context.Context, arxivID string, index, total int, progress Progress) (*models.PaperAnalysis, error) {
	if !papers.ValidID(arxivID) {
		return nil, fmt.Errorf("invalid arXiv id: %q", arxivID)
	}

	if progress != nil {
		progress("fetch", arxivID, index, total)
	}

	src, err := o.fetcher.FetchSource(ctx, arxivID)
	if err != nil {
		return nil, err
	}

	if progress != nil {
		progress("extract", arxivID, index, total)
	}

	return o.extractor.ExtractClaims(ctx, arxivID, src.Text)
}
