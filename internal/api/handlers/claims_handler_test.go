package handlers

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reef-research/backend/internal/papers"
	"github.com/reef-research/backend/internal/pipeline"
	"github.com/reef-research/backend/internal/storage/models"
)

type fakeFetcher struct {
	failOn map[string]error
	calls  []string
}

func (f *fakeFetcher) FetchSource(_ context.Context, arxivID string) (*papers.Source, error) {
	f.calls = append(f.calls, arxivID)
	if err, ok := f.failOn[arxivID]; ok {
		return nil, err
	}
	return &papers.Source{ArxivID: arxivID, Text: "text"}, nil
}

type fakeExtractor struct{}

func (fakeExtractor) ExtractClaims(_ context.Context, arxivID, _ string) (*models.PaperAnalysis, error) {
	return &models.PaperAnalysis{ArxivID: arxivID, Claims: []string{"a claim"}}, nil
}

func claimsApp(fetcher *fakeFetcher) *fiber.App {
	h := NewClaimsHandler(pipeline.NewOrchestrator(fetcher, fakeExtractor{}))

	app := fiber.New()
	app.Post("/extract-claims", h.HandleExtractClaims)
	return app
}

func TestExtractClaimsSuccess(t *testing.T) {
	app := claimsApp(&fakeFetcher{})

	resp, body := postJSON(t, app, "/extract-claims", map[string]interface{}{
		"arxiv_ids": []string{"2401.00001", "2401.00002"},
		"user_id":   "u1",
	})

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["papers"].([]interface{}), 2)
	_, hasErrors := body["errors"]
	assert.False(t, hasErrors)
}

func TestExtractClaimsPartialFailureIs200(t *testing.T) {
	app := claimsApp(&fakeFetcher{failOn: map[string]error{
		"2401.00002": errors.New("not on arXiv"),
	}})

	resp, body := postJSON(t, app, "/extract-claims", map[string]interface{}{
		"arxiv_ids": []string{"2401.00001", "2401.00002"},
	})

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["papers"].([]interface{}), 1)

	errs := body["errors"].([]interface{})
	require.Len(t, errs, 1)
	first := errs[0].(map[string]interface{})
	assert.Equal(t, "2401.00002", first["arxiv_id"])
	assert.Contains(t, first["error"], "not on arXiv")
}

func TestExtractClaimsEmptyBatch(t *testing.T) {
	app := claimsApp(&fakeFetcher{})

	resp, _ := postJSON(t, app, "/extract-claims", map[string]interface{}{
		"arxiv_ids": []string{},
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestExtractClaimsBatchTooLarge(t *testing.T) {
	app := claimsApp(&fakeFetcher{})

	ids := make([]string, maxBatchSize+1)
	for i := range ids {
		ids[i] = "2401.00001"
	}

	resp, body := postJSON(t, app, "/extract-claims", map[string]interface{}{
		"arxiv_ids": ids,
	})

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Too many papers in one batch", body["error"])
}
