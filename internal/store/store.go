package store

import (
	"github.com/RandomsUsernames/sgrep/internal/chunk"
)

// AddFile inserts or overwrites a file record by path.
func (s *Store) AddFile(f *IndexedFile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *f
	cp.ChunkIDs = append([]string(nil), f.ChunkIDs...)
	s.files[f.Path] = &cp
}

// AddChunk inserts or overwrites a chunk by id.
func (s *Store) AddChunk(c *chunk.Chunk) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks[c.ID] = c
	s.docCount = len(s.chunks)
}

// RemoveFile deletes the file record at path along with every chunk it owns.
// No-op if the path isn't tracked.
func (s *Store) RemoveFile(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.files[path]
	if !ok {
		return
	}
	for _, id := range f.ChunkIDs {
		delete(s.chunks, id)
	}
	delete(s.files, path)
	s.docCount = len(s.chunks)
}

// FileNeedsUpdate reports whether path is absent from the store or its
// stored content hash differs from newHash.
func (s *Store) FileNeedsUpdate(path, newHash string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.files[path]
	if !ok {
		return true
	}
	return f.ContentHash != newHash
}

// File returns the IndexedFile at path, if any.
func (s *Store) File(path string) (*IndexedFile, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.files[path]
	return f, ok
}

// Chunk returns the chunk with the given id, if any.
func (s *Store) Chunk(id string) (*chunk.Chunk, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.chunks[id]
	return c, ok
}

// Chunks returns every chunk currently held by the store. The returned slice
// is a snapshot; mutating it does not affect the store.
func (s *Store) Chunks() []*chunk.Chunk {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*chunk.Chunk, 0, len(s.chunks))
	for _, c := range s.chunks {
		out = append(out, c)
	}
	return out
}

// DocCount returns the number of chunks currently tracked.
func (s *Store) DocCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.docCount
}

// AvgChunkLength returns the mean byte length of chunk content across the
// store, or defaultLen if the store holds no chunks.
func (s *Store) AvgChunkLength(defaultLen float64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.chunks) == 0 {
		return defaultLen
	}
	var total int
	for _, c := range s.chunks {
		total += len(c.Content)
	}
	return float64(total) / float64(len(s.chunks))
}

// IDF returns the current term->idf table. Callers must not mutate it.
func (s *Store) IDF() map[string]float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.idf
}

// HasANNIndex reports whether an ANN index has been constructed.
func (s *Store) HasANNIndex() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ann != nil
}

// MaybeBuildANNIndex builds the ANN structure from current chunks with
// non-empty embeddings, if population is at or above the threshold and no
// index exists yet. No-op otherwise.
func (s *Store) MaybeBuildANNIndex() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ann != nil {
		return nil
	}
	if len(s.chunks) < s.annThreshold {
		return nil
	}

	var dim int
	ids := make([]string, 0, len(s.chunks))
	vecs := make([][]float32, 0, len(s.chunks))
	for id, c := range s.chunks {
		if len(c.Embedding) == 0 {
			continue
		}
		if dim == 0 {
			dim = len(c.Embedding)
		}
		ids = append(ids, id)
		vecs = append(vecs, c.Embedding)
	}
	if len(ids) == 0 {
		return nil
	}

	idx, err := NewVectorIndex(dim)
	if err != nil {
		return err
	}
	if err := idx.Add(ids, vecs); err != nil {
		return err
	}
	s.ann = idx
	s.annDimension = dim
	return nil
}

// RebuildANNIndex discards and reconstructs the ANN index unconditionally,
// used after a bulk mutation (e.g. embedding model change) that would leave
// a stale ANN index coherent in shape but wrong in content.
func (s *Store) RebuildANNIndex() error {
	s.mu.Lock()
	s.ann = nil
	s.mu.Unlock()
	return s.MaybeBuildANNIndex()
}

// ANNSearch delegates to the ANN index if present and populated. The second
// return value is false ("None") when no ANN index exists, signaling the
// caller to fall back to exhaustive scoring.
func (s *Store) ANNSearch(query []float32, k int) ([]VectorResult, bool) {
	s.mu.Lock()
	idx := s.ann
	s.mu.Unlock()
	if idx == nil || idx.Count() == 0 {
		return nil, false
	}
	results, err := idx.Search(query, k)
	if err != nil {
		return nil, false
	}
	return results, true
}

// UpdateBM25Stats recomputes the term->idf table from the current chunk set
// and sets doc_count. Must be called before persistence whenever chunks
// changed.
func (s *Store) UpdateBM25Stats() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.idf = computeIDF(s.chunks)
	s.docCount = len(s.chunks)
}

// annFileName is the ANN graph's on-disk name relative to a store's
// directory, matching spec.md's "<name>.usearch" artifact.
func annFileName(name string) string { return name + ".usearch" }

// SaveANN persists the ANN index, if one has been built. A missing ANN
// index is not an error: it is reconstructible from the store's chunks via
// MaybeBuildANNIndex.
func (s *Store) SaveANN(dir, name string) error {
	s.mu.Lock()
	ann := s.ann
	s.mu.Unlock()
	if ann == nil {
		return nil
	}
	return ann.Save(dir + "/" + annFileName(name))
}

// LoadANN loads a previously persisted ANN index. Failure to load (missing
// or corrupt file) is treated as cache loss: the caller should fall back to
// MaybeBuildANNIndex rather than treat it as fatal.
func (s *Store) LoadANN(dir, name string) error {
	idx, err := LoadVectorIndex(dir + "/" + annFileName(name))
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.ann = idx
	s.annDimension = idx.Dimension()
	s.mu.Unlock()
	return nil
}
