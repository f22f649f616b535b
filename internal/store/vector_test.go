package store

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func unitVector(dim, hot int) []float32 {
	v := make([]float32, dim)
	v[hot%dim] = 1
	return v
}

func TestVectorIndex_AddAndSearch_FindsSelf(t *testing.T) {
	idx, err := NewVectorIndex(4)
	require.NoError(t, err)

	require.NoError(t, idx.Add([]string{"a", "b", "c"}, [][]float32{
		unitVector(4, 0),
		unitVector(4, 1),
		unitVector(4, 2),
	}))

	results, err := idx.Search(unitVector(4, 1), 1)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "b", results[0].ChunkID)
}

func TestVectorIndex_DimensionMismatch_Errors(t *testing.T) {
	idx, err := NewVectorIndex(4)
	require.NoError(t, err)

	err = idx.Add([]string{"a"}, [][]float32{{1, 2, 3}})
	assert.ErrorAs(t, err, &ErrDimensionMismatch{})
}

func TestVectorIndex_Replace_OrphansOldKey(t *testing.T) {
	idx, err := NewVectorIndex(4)
	require.NoError(t, err)

	require.NoError(t, idx.Add([]string{"a"}, [][]float32{unitVector(4, 0)}))
	require.NoError(t, idx.Add([]string{"a"}, [][]float32{unitVector(4, 1)}))

	assert.Equal(t, 1, idx.Count())
	assert.True(t, idx.Contains("a"))
}

func TestVectorIndex_Delete(t *testing.T) {
	idx, err := NewVectorIndex(4)
	require.NoError(t, err)
	require.NoError(t, idx.Add([]string{"a", "b"}, [][]float32{unitVector(4, 0), unitVector(4, 1)}))

	idx.Delete([]string{"a"})

	assert.False(t, idx.Contains("a"))
	assert.Equal(t, 1, idx.Count())
}

// Scenario S3: 1500 chunks of 768-dim vectors; maybe_build_ann_index
// produces an index of size 1500; a search for a known vector returns that
// vector's chunk id with similarity >= 0.999.
func TestStore_ScenarioS3_ANNIndexSizeAndSelfSimilarity(t *testing.T) {
	s := New()
	const n = 1500
	const dim = 768

	for i := 0; i < n; i++ {
		vec := make([]float32, dim)
		vec[i%dim] = 1
		// n > dim, so i and i+dim share a hot index; a second component that
		// grows with i/dim keeps every vector distinct.
		vec[(i+1)%dim] = 0.1 * float32(1+i/dim)
		id :=fmt.Sprintf("chunk-%d", i)
		s.AddChunk(mkEmbeddedChunk(id, vec))
	}

	require.NoError(t, s.MaybeBuildANNIndex())
	require.True(t, s.HasANNIndex())
	assert.Equal(t, n, s.ann.Count())

	target := 42
	vec := make([]float32, dim)
	vec[target%dim] = 1
	vec[(target+1)%dim] = 0.1

	results, ok := s.ANNSearch(vec, 1)
	require.True(t, ok)
	require.NotEmpty(t, results)
	assert.Equal(t, fmt.Sprintf("chunk-%d", target), results[0].ChunkID)
	assert.GreaterOrEqual(t, results[0].Similarity, float32(0.999))
}
