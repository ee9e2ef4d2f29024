package milvus

import (
	"testing"

	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddingIndexConfiguration(t *testing.T) {
	idx, err := newEmbeddingIndex()
	require.NoError(t, err)

	assert.Equal(t, entity.IvfFlat, idx.IndexType())

	params := idx.Params()
	assert.Equal(t, string(entity.IP), params["metric_type"])
	assert.Contains(t, params["params"], "1024")
}

func TestSearchParamConfiguration(t *testing.T) {
	sp, err := newSearchParam()
	require.NoError(t, err)

	assert.Equal(t, 16, sp.Params()["nprobe"])
}

func TestClampSimilarity(t *testing.T) {
	assert.Equal(t, 0.0, clampSimilarity(-0.2))
	assert.Equal(t, 0.5, clampSimilarity(0.5))
	assert.Equal(t, 1.0, clampSimilarity(1.3))
}
