package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCosineSimilarity(t *testing.T) {
	sim, err := CosineSimilarity([]float32{1, 0}, []float32{1, 0})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, sim, 1e-6)

	sim, err = CosineSimilarity([]float32{1, 0}, []float32{0, 1})
	require.NoError(t, err)
	assert.InDelta(t, 0.0, sim, 1e-6)

	sim, err = CosineSimilarity([]float32{0, 0}, []float32{1, 1})
	require.NoError(t, err)
	assert.Zero(t, sim)

	_, err = CosineSimilarity(nil, []float32{1})
	assert.Error(t, err)

	_, err = CosineSimilarity([]float32{1, 2}, []float32{1})
	assert.Error(t, err)
}

func TestHashEmbedding(t *testing.T) {
	a := HashEmbedding("Dijkstra shortest path", 256)
	b := HashEmbedding("dijkstra, SHORTEST path!", 256)
	require.Len(t, a, 256)
	assert.Equal(t, a, b, "case and punctuation are ignored")

	sim, err := CosineSimilarity(a, HashEmbedding("shortest path", 256))
	require.NoError(t, err)
	assert.Greater(t, sim, float32(0.3))

	empty := HashEmbedding("", 8)
	assert.Equal(t, make([]float32, 8), empty)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", Truncate("abc", 5))
	assert.Equal(t, "ab", Truncate("abc", 2))
	assert.Equal(t, "hé", Truncate("héllo", 2))
	assert.Equal(t, "", Truncate("abc", 0))
}
