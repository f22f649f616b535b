// Package store is the persistence layer: it owns chunks, per-file metadata,
// the BM25 idf table, and the ANN index, and persists them to disk.
package store

import (
	"fmt"
	"sync"
	"time"

	"github.com/RandomsUsernames/sgrep/internal/chunk"
)

// DefaultANNThreshold is the live-chunk population at or above which the ANN
// index is built; below it, search falls back to exhaustive scoring.
const DefaultANNThreshold = 1000

// IndexedFile is the per-file record tracked by a Store.
type IndexedFile struct {
	Path        string    // project-relative, slash-separated path as the scanner reports it; not absolute
	ContentHash string    // full hex SHA-256 of UTF-8 content bytes
	ChunkIDs    []string  // ordered list of chunk ids this file owns
	IndexedAt   time.Time // ISO-8601 timestamp of last indexing
}

// Store is the aggregate root owning every chunk and file record, the BM25
// idf table, and (optionally) an ANN index over embedded chunks.
//
// Mutations (AddFile, AddChunk, RemoveFile) are serialized under mu so that
// the orphan-freedom and doc-count invariants hold after any sequence of
// calls; search is expected to run only once indexing has finished writing.
type Store struct {
	mu sync.Mutex

	files  map[string]*IndexedFile
	chunks map[string]*chunk.Chunk

	idf      map[string]float64
	docCount int

	ann          *VectorIndex
	annThreshold int
	annDimension int
}

// New creates an empty Store with the default ANN threshold.
func New() *Store {
	return &Store{
		files:        make(map[string]*IndexedFile),
		chunks:       make(map[string]*chunk.Chunk),
		idf:          make(map[string]float64),
		annThreshold: DefaultANNThreshold,
	}
}

// ErrDimensionMismatch indicates a chunk embedding's dimension doesn't match
// the dimension already established for this store's ANN index.
type ErrDimensionMismatch struct {
	Expected int
	Got      int
}

func (e ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Got)
}
