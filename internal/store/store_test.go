package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RandomsUsernames/sgrep/internal/chunk"
)

func mkChunk(id, path, content string) *chunk.Chunk {
	return &chunk.Chunk{ID: id, FilePath: path, Content: content, Kind: chunk.KindCode}
}

func mkEmbeddedChunk(id string, embedding []float32) *chunk.Chunk {
	return &chunk.Chunk{ID: id, Kind: chunk.KindCode, Embedding: embedding}
}

func TestStore_AddFileAddChunk_IdempotentOverwrite(t *testing.T) {
	s := New()
	s.AddChunk(mkChunk("c1", "a.go", "foo bar"))
	s.AddFile(&IndexedFile{Path: "a.go", ContentHash: "h1", ChunkIDs: []string{"c1"}, IndexedAt: time.Now()})

	s.AddChunk(mkChunk("c1", "a.go", "foo bar baz"))
	c, ok := s.Chunk("c1")
	require.True(t, ok)
	assert.Equal(t, "foo bar baz", c.Content)
	assert.Equal(t, 1, s.DocCount())
}

func TestStore_RemoveFile_RemovesOwnedChunks(t *testing.T) {
	s := New()
	s.AddChunk(mkChunk("c1", "a.go", "one"))
	s.AddChunk(mkChunk("c2", "a.go", "two"))
	s.AddChunk(mkChunk("c3", "b.go", "three"))
	s.AddFile(&IndexedFile{Path: "a.go", ChunkIDs: []string{"c1", "c2"}})
	s.AddFile(&IndexedFile{Path: "b.go", ChunkIDs: []string{"c3"}})

	s.RemoveFile("a.go")

	_, ok := s.Chunk("c1")
	assert.False(t, ok)
	_, ok = s.Chunk("c2")
	assert.False(t, ok)
	c3, ok := s.Chunk("c3")
	assert.True(t, ok)
	assert.NotNil(t, c3)
	assert.Equal(t, 1, s.DocCount())
}

func TestStore_RemoveFile_UnknownPathIsNoop(t *testing.T) {
	s := New()
	s.AddChunk(mkChunk("c1", "a.go", "one"))
	s.AddFile(&IndexedFile{Path: "a.go", ChunkIDs: []string{"c1"}})

	s.RemoveFile("missing.go")

	assert.Equal(t, 1, s.DocCount())
}

func TestStore_FileNeedsUpdate(t *testing.T) {
	s := New()
	assert.True(t, s.FileNeedsUpdate("a.go", "h1"), "absent path needs update")

	s.AddFile(&IndexedFile{Path: "a.go", ContentHash: "h1"})
	assert.False(t, s.FileNeedsUpdate("a.go", "h1"))
	assert.True(t, s.FileNeedsUpdate("a.go", "h2"))
}

// Invariant: union(file.chunks) == keys(store.chunks) after any sequence of
// add_file/add_chunk/remove_file operations.
func TestStore_Invariant_OrphanFreedom(t *testing.T) {
	s := New()
	s.AddChunk(mkChunk("c1", "a.go", "one"))
	s.AddChunk(mkChunk("c2", "a.go", "two"))
	s.AddFile(&IndexedFile{Path: "a.go", ChunkIDs: []string{"c1", "c2"}})

	s.AddChunk(mkChunk("c3", "b.go", "three"))
	s.AddFile(&IndexedFile{Path: "b.go", ChunkIDs: []string{"c3"}})

	s.RemoveFile("a.go")
	s.AddChunk(mkChunk("c4", "a.go", "one redux"))
	s.AddFile(&IndexedFile{Path: "a.go", ChunkIDs: []string{"c4"}})

	owned := make(map[string]bool)
	for _, path := range []string{"a.go", "b.go"} {
		f, ok := s.File(path)
		require.True(t, ok)
		for _, id := range f.ChunkIDs {
			owned[id] = true
		}
	}

	chunks := s.Chunks()
	assert.Len(t, chunks, len(owned))
	for _, c := range chunks {
		assert.True(t, owned[c.ID], "chunk %s must be owned by some file", c.ID)
	}
	assert.Equal(t, len(chunks), s.DocCount())
}

func TestStore_UpdateBM25Stats_SetsDocCount(t *testing.T) {
	s := New()
	s.AddChunk(mkChunk("c1", "a.go", "foo bar"))
	s.AddChunk(mkChunk("c2", "b.go", "bar baz"))

	s.UpdateBM25Stats()

	assert.Equal(t, 2, s.DocCount())
	idf := s.IDF()
	assert.Contains(t, idf, "foo")
	assert.Contains(t, idf, "bar")
	assert.Contains(t, idf, "baz")
}

func TestStore_MaybeBuildANNIndex_BelowThresholdDoesNothing(t *testing.T) {
	s := New()
	s.AddChunk(&chunk.Chunk{ID: "c1", Embedding: []float32{1, 0, 0}})

	require.NoError(t, s.MaybeBuildANNIndex())
	assert.False(t, s.HasANNIndex())

	_, ok := s.ANNSearch([]float32{1, 0, 0}, 5)
	assert.False(t, ok, "below threshold, caller must fall back to exhaustive scoring")
}

func TestStore_MaybeBuildANNIndex_AtThresholdBuilds(t *testing.T) {
	s := New()
	s.annThreshold = 3
	for i := 0; i < 3; i++ {
		id := string(rune('a' + i))
		vec := make([]float32, 4)
		vec[i%4] = 1
		s.AddChunk(&chunk.Chunk{ID: id, Embedding: vec})
	}

	require.NoError(t, s.MaybeBuildANNIndex())
	assert.True(t, s.HasANNIndex())

	results, ok := s.ANNSearch([]float32{1, 0, 0, 0}, 1)
	require.True(t, ok)
	require.NotEmpty(t, results)
}
