// Package ingestion bulk-loads arXiv metadata into the search corpus:
// page through a category, clean the abstracts, embed them, and insert
// into the vector store and the metadata table.
package ingestion

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/jdkato/prose/v2"
	"go.uber.org/zap"

	"github.com/reef-research/backend/internal/metrics"
	"github.com/reef-research/backend/internal/storage/models"
	"github.com/reef-research/backend/internal/vector/milvus"
	"github.com/reef-research/backend/pkg/logger"
)

// Abstracts longer than this are cut back to the last full sentence that
// fits, so the embedding input never ends mid-thought.
const maxEmbedChars = 6000

type CategoryLister interface {
	ListCategory(ctx context.Context, category string, start, maxResults int) ([]models.Paper, error)
}

type BatchEmbedder interface {
	GenerateBatchEmbeddings(ctx context.Context, texts []string) ([][]float32, error)
}

type VectorInserter interface {
	Insert(ctx context.Context, papers []milvus.PaperVector) error
}

type PaperStore interface {
	UpsertPaper(ctx context.Context, paper *models.Paper) error
}

type Ingestor struct {
	arxiv    CategoryLister
	embedder BatchEmbedder
	vectorDB VectorInserter
	db       PaperStore
	pageSize int
}

func NewIngestor(arxiv CategoryLister, embedder BatchEmbedder, vectorDB VectorInserter, db PaperStore, pageSize int) *Ingestor {
	if pageSize <= 0 {
		pageSize = 100
	}
	return &Ingestor{
		arxiv:    arxiv,
		embedder: embedder,
		vectorDB: vectorDB,
		db:       db,
		pageSize: pageSize,
	}
}

// IngestCategory fetches up to max recent papers from one arXiv category
// and loads them into the corpus. Returns the number ingested.
func (in *Ingestor) IngestCategory(ctx context.Context, category string, max int) (int, error) {
	if max <= 0 {
		max = in.pageSize
	}

	logger.Info("Starting category ingestion",
		zap.String("category", category),
		zap.Int("max", max),
	)

	total := 0
	for start := 0; start < max; start += in.pageSize {
		pageSize := in.pageSize
		if start+pageSize > max {
			pageSize = max - start
		}

		page, err := in.arxiv.ListCategory(ctx, category, start, pageSize)
		if err != nil {
			return total, fmt.Errorf("failed to list category page at %d: %w", start, err)
		}
		if len(page) == 0 {
			break
		}

		n, err := in.ingestPage(ctx, page)
		total += n
		if err != nil {
			return total, err
		}
	}

	logger.Info("Category ingestion finished",
		zap.String("category", category),
		zap.Int("ingested", total),
	)

	return total, nil
}

func (in *Ingestor) ingestPage(ctx context.Context, page []models.Paper) (int, error) {
	texts := make([]string, len(page))
	for i := range page {
		page[i].Abstract = CleanAbstract(page[i].Abstract)
		texts[i] = page[i].Title + "\n\n" + TruncateAtSentence(page[i].Abstract, maxEmbedChars)
	}

	embeddings, err := in.embedder.GenerateBatchEmbeddings(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("failed to embed page: %w", err)
	}
	if len(embeddings) != len(page) {
		return 0, fmt.Errorf("embedding count mismatch: got %d, expected %d", len(embeddings), len(page))
	}

	vectors := make([]milvus.PaperVector, len(page))
	for i, p := range page {
		vectors[i] = milvus.PaperVector{
			ArxivID:     p.ArxivID,
			Embedding:   embeddings[i],
			Title:       p.Title,
			Abstract:    p.Abstract,
			Authors:     p.Authors,
			PublishDate: p.PublishDate,
			DOI:         p.DOI,
			JournalRef:  p.JournalRef,
		}

		if err := in.db.UpsertPaper(ctx, &page[i]); err != nil {
			logger.Warn("Failed to store paper metadata",
				zap.String("arxiv_id", p.ArxivID),
				zap.Error(err),
			)
		}
	}

	if err := in.vectorDB.Insert(ctx, vectors); err != nil {
		return 0, fmt.Errorf("failed to insert vectors: %w", err)
	}

	metrics.PapersIngested.Add(float64(len(page)))

	return len(page), nil
}

// CleanAbstract strips the HTML fragments and TeX line noise that arXiv
// abstracts sometimes carry.
func CleanAbstract(abstract string) string {
	if strings.ContainsAny(abstract, "<>") {
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(abstract))
		if err == nil {
			abstract = doc.Text()
		}
	}

	abstract = strings.ReplaceAll(abstract, "\n", " ")
	abstract = strings.Join(strings.Fields(abstract), " ")

	return strings.TrimSpace(abstract)
}

// TruncateAtSentence cuts text to at most maxChars, ending on a sentence
// boundary when one can be found.
func TruncateAtSentence(text string, maxChars int) string {
	if len(text) <= maxChars {
		return text
	}

	doc, err := prose.NewDocument(text, prose.WithTagging(false), prose.WithExtraction(false))
	if err != nil {
		return text[:maxChars]
	}

	var b strings.Builder
	for _, s := range doc.Sentences() {
		if b.Len()+len(s.Text)+1 > maxChars {
			break
		}
		if b.Len() > 0 {
			b.WriteString(" ")
		}
		b.WriteString(s.Text)
	}

	if b.Len() == 0 {
		return text[:maxChars]
	}
	return b.String()
}
