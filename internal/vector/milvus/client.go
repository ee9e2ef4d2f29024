package milvus

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"go.uber.org/zap"

	"github.com/reef-research/backend/internal/storage/models"
	"github.com/reef-research/backend/pkg/logger"
)

type Client struct {
	client         client.Client
	collectionName string
	vectorDim      int
}

// PaperVector is one paper ready for insertion: arXiv metadata plus the
// abstract's embedding.
type PaperVector struct {
	ArxivID     string
	Embedding   []float32
	Title       string
	Abstract    string
	Authors     []string
	PublishDate string
	DOI         string
	JournalRef  string
}

func NewClient(endpoint, apiKey, collectionName string, vectorDim int) (*Client, error) {
	c, err := client.NewGrpcClient(context.Background(), endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create milvus client: %w", err)
	}

	logger.Info("Milvus client initialized",
		zap.String("endpoint", endpoint),
		zap.String("collection", collectionName),
	)

	return &Client{
		client:         c,
		collectionName: collectionName,
		vectorDim:      vectorDim,
	}, nil
}

func (m *Client) Close() error {
	return m.client.Close()
}

func (m *Client) EnsureCollection(ctx context.Context) error {
	has, err := m.client.HasCollection(ctx, m.collectionName)
	if err != nil {
		return fmt.Errorf("failed to check collection: %w", err)
	}

	if has {
		logger.Info("Collection already exists", zap.String("collection", m.collectionName))
		return nil
	}

	schema := &entity.Schema{
		CollectionName: m.collectionName,
		Description:    "arXiv paper abstract embeddings",
		Fields: []*entity.Field{
			{
				Name:       "arxiv_id",
				DataType:   entity.FieldTypeVarChar,
				PrimaryKey: true,
				AutoID:     false,
				TypeParams: map[string]string{"max_length": "32"},
			},
			{
				Name:       "embedding",
				DataType:   entity.FieldTypeFloatVector,
				TypeParams: map[string]string{"dim": fmt.Sprintf("%d", m.vectorDim)},
			},
			{
				Name:       "title",
				DataType:   entity.FieldTypeVarChar,
				TypeParams: map[string]string{"max_length": "512"},
			},
			{
				Name:       "abstract",
				DataType:   entity.FieldTypeVarChar,
				TypeParams: map[string]string{"max_length": "8192"},
			},
			{
				Name:       "authors",
				DataType:   entity.FieldTypeVarChar,
				TypeParams: map[string]string{"max_length": "2048"},
			},
			{
				Name:       "publish_date",
				DataType:   entity.FieldTypeVarChar,
				TypeParams: map[string]string{"max_length": "32"},
			},
			{
				Name:       "doi",
				DataType:   entity.FieldTypeVarChar,
				TypeParams: map[string]string{"max_length": "128"},
			},
			{
				Name:       "journal_ref",
				DataType:   entity.FieldTypeVarChar,
				TypeParams: map[string]string{"max_length": "256"},
			},
		},
	}

	if err := m.client.CreateCollection(ctx, schema, entity.DefaultShardNumber); err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	idx, err := newEmbeddingIndex()
	if err != nil {
		return fmt.Errorf("failed to build index: %w", err)
	}
	if err := m.client.CreateIndex(ctx, m.collectionName, "embedding", idx, false); err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}

	if err := m.client.LoadCollection(ctx, m.collectionName, false); err != nil {
		return fmt.Errorf("failed to load collection: %w", err)
	}

	logger.Info("Collection created and loaded", zap.String("collection", m.collectionName))

	return nil
}

func (m *Client) Insert(ctx context.Context, papers []PaperVector) error {
	if len(papers) == 0 {
		return nil
	}

	ids := make([]string, len(papers))
	embeddings := make([][]float32, len(papers))
	titles := make([]string, len(papers))
	abstracts := make([]string, len(papers))
	authors := make([]string, len(papers))
	dates := make([]string, len(papers))
	dois := make([]string, len(papers))
	journalRefs := make([]string, len(papers))

	for i, p := range papers {
		ids[i] = p.ArxivID
		embeddings[i] = p.Embedding
		titles[i] = p.Title
		abstracts[i] = p.Abstract
		authorsJSON, _ := json.Marshal(p.Authors)
		authors[i] = string(authorsJSON)
		dates[i] = p.PublishDate
		dois[i] = p.DOI
		journalRefs[i] = p.JournalRef
	}

	_, err := m.client.Insert(
		ctx,
		m.collectionName,
		"",
		entity.NewColumnVarChar("arxiv_id", ids),
		entity.NewColumnFloatVector("embedding", m.vectorDim, embeddings),
		entity.NewColumnVarChar("title", titles),
		entity.NewColumnVarChar("abstract", abstracts),
		entity.NewColumnVarChar("authors", authors),
		entity.NewColumnVarChar("publish_date", dates),
		entity.NewColumnVarChar("doi", dois),
		entity.NewColumnVarChar("journal_ref", journalRefs),
	)
	if err != nil {
		return fmt.Errorf("failed to insert papers: %w", err)
	}

	if err := m.client.Flush(ctx, m.collectionName, false); err != nil {
		return fmt.Errorf("failed to flush: %w", err)
	}

	logger.Info("Papers inserted into vector DB", zap.Int("count", len(papers)))

	return nil
}

// Search returns the topK most similar papers for a query embedding.
// Embeddings are unit-normalized so inner product equals cosine similarity;
// the score is clamped into [0,1].
func (m *Client) Search(ctx context.Context, queryEmbedding []float32, topK int) ([]models.Paper, error) {
	sp, err := newSearchParam()
	if err != nil {
		return nil, fmt.Errorf("failed to build search params: %w", err)
	}

	searchResult, err := m.client.Search(
		ctx,
		m.collectionName,
		[]string{},
		"",
		[]string{"arxiv_id", "title", "abstract", "authors", "publish_date", "doi", "journal_ref"},
		[]entity.Vector{entity.FloatVector(queryEmbedding)},
		"embedding",
		entity.IP,
		topK,
		sp,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}

	results := make([]models.Paper, 0)
	for _, sr := range searchResult {
		for i := 0; i < sr.ResultCount; i++ {
			paper := models.Paper{
				Similarity: clampSimilarity(float64(sr.Scores[i])),
			}

			if v, err := sr.Fields.GetColumn("arxiv_id").Get(i); err == nil {
				paper.ArxivID, _ = v.(string)
			}
			if v, err := sr.Fields.GetColumn("title").Get(i); err == nil {
				paper.Title, _ = v.(string)
			}
			if v, err := sr.Fields.GetColumn("abstract").Get(i); err == nil {
				paper.Abstract, _ = v.(string)
			}
			if v, err := sr.Fields.GetColumn("authors").Get(i); err == nil {
				if s, ok := v.(string); ok {
					if err := json.Unmarshal([]byte(s), &paper.Authors); err != nil {
						logger.Warn("Malformed authors column",
							zap.String("arxiv_id", paper.ArxivID),
							zap.Error(err),
						)
					}
				}
			}
			if v, err := sr.Fields.GetColumn("publish_date").Get(i); err == nil {
				paper.PublishDate, _ = v.(string)
			}
			if v, err := sr.Fields.GetColumn("doi").Get(i); err == nil {
				paper.DOI, _ = v.(string)
			}
			if v, err := sr.Fields.GetColumn("journal_ref").Get(i); err == nil {
				paper.JournalRef, _ = v.(string)
			}

			results = append(results, paper)
		}
	}

	logger.Info("Vector search completed",
		zap.Int("topK", topK),
		zap.Int("results", len(results)),
	)

	return results, nil
}

// IVF_FLAT with inner product; embeddings are unit-normalized upstream.
func newEmbeddingIndex() (entity.Index, error) {
	return entity.NewIndexIvfFlat(entity.IP, 1024)
}

func newSearchParam() (entity.SearchParam, error) {
	return entity.NewIndexIvfFlatSearchParam(16)
}

func clampSimilarity(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}
