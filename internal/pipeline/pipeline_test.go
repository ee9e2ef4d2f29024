package pipeline

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reef-research/backend/internal/papers"
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
	return &papers.Source{
		ArxivID: arxivID,
		Title:   "Title of " + arxivID,
		Text:    "full text of " + arxivID,
	}, nil
}

type fakeExtractor struct {
	failOn map[string]error
}

func (f *fakeExtractor) ExtractClaims(_ context.Context, arxivID, sourceText string) (*models.PaperAnalysis, error) {
	if err, ok := f.failOn[arxivID]; ok {
		return nil, err
	}
	return &models.PaperAnalysis{
		ArxivID: arxivID,
		Claims:  []string{"claim from " + sourceText},
	}, nil
}

func TestProcessBatchAllSucceed(t *testing.T) {
	o := NewOrchestrator(&fakeFetcher{}, &fakeExtractor{})

	ids := []string{"2401.00001", "2401.00002", "2401.00003"}
	result := o.ProcessBatch(context.Background(), ids, nil)

	require.Len(t, result.Papers, 3)
	assert.Empty(t, result.Errors)
	for i, id := range ids {
		assert.Equal(t, id, result.Papers[i].ArxivID)
	}
}

func TestProcessBatchContinuesPastFailures(t *testing.T) {
	fetcher := &fakeFetcher{failOn: map[string]error{
		"2401.00002": errors.New("upstream 404"),
	}}
	extractor := &fakeExtractor{failOn: map[string]error{
		"2401.00003": errors.New("model returned garbage"),
	}}
	o := NewOrchestrator(fetcher, extractor)

	ids := []string{"2401.00001", "2401.00002", "2401.00003", "2401.00004"}
	result := o.ProcessBatch(context.Background(), ids, nil)

	assert.Len(t, result.Papers, 2)
	assert.Len(t, result.Errors, 2)
	assert.Equal(t, len(ids), len(result.Papers)+len(result.Errors))

	assert.Equal(t, "2401.00002", result.Errors[0].ArxivID)
	assert.Contains(t, result.Errors[0].Error, "upstream 404")
	assert.Equal(t, "2401.00003", result.Errors[1].ArxivID)

	// Every id after the failed ones was still fetched.
	assert.Equal(t, ids, fetcher.calls)
}

func TestProcessBatchRejectsInvalidID(t *testing.T) {
	fetcher := &fakeFetcher{}
	o := NewOrchestrator(fetcher, &fakeExtractor{})

	result := o.ProcessBatch(context.Background(), []string{"not-an-id", "2401.00001"}, nil)

	require.Len(t, result.Errors, 1)
	assert.Equal(t, "not-an-id", result.Errors[0].ArxivID)
	assert.Contains(t, result.Errors[0].Error, "invalid arXiv id")
	require.Len(t, result.Papers, 1)

	// The invalid id never reached the fetcher.
	assert.Equal(t, []string{"2401.00001"}, fetcher.calls)
}

func TestProcessBatchCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	o := NewOrchestrator(&fakeFetcher{}, &fakeExtractor{})
	result := o.ProcessBatch(ctx, []string{"2401.00001", "2401.00002"}, nil)

	assert.Empty(t, result.Papers)
	require.Len(t, result.Errors, 2)
	for _, e := range result.Errors {
		assert.Contains(t, e.Error, context.Canceled.Error())
	}
}

func TestProcessBatchReportsProgress(t *testing.T) {
	o := NewOrchestrator(&fakeFetcher{}, &fakeExtractor{})

	var events []string
	progress := func(stage, arxivID string, index, total int) {
		events = append(events, fmt.Sprintf("%s:%s:%d/%d", stage, arxivID, index, total))
	}

	o.ProcessBatch(context.Background(), []string{"2401.00001", "2401.00002"}, progress)

	assert.Equal(t, []string{
		"fetch:2401.00001:0/2",
		"extract:2401.00001:0/2",
		"fetch:2401.00002:1/2",
		"extract:2401.00002:1/2",
	}, events)
}

func TestProcessBatchEmpty(t *testing.T) {
	o := NewOrchestrator(&fakeFetcher{}, &fakeExtractor{})

	result := o.ProcessBatch(context.Background(), nil, nil)
	assert.Empty(t, result.Papers)
	assert.Empty(t, result.Errors)
}
