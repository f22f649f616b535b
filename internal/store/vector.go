package store

import (
	"bufio"
	"encoding/gob"
	"fmt"
	"math"
	"os"
	"sync"

	"github.com/coder/hnsw"
)

// annConnectivity, annConstructionExpansion, and annSearchExpansion are the
// reference HNSW parameters (spec graph connectivity 16, construction
// expansion 128, search expansion 64). coder/hnsw exposes connectivity (M)
// and search-time expansion (EfSearch) directly; it has no separate
// construction-expansion knob, so annConstructionExpansion is neither passed
// to the graph nor persisted.
const (
	annConnectivity          = 16
	annConstructionExpansion = 128
	annSearchExpansion       = 64
)

// VectorIndex is a bidirectional mapping between chunk ids and opaque
// integer keys, plus an ANN structure over F32 cosine space. It is owned by
// a Store and is a reconstructible cache: losing its persisted form is a
// performance regression, never a correctness bug.
type VectorIndex struct {
	mu    sync.RWMutex
	graph *hnsw.Graph[uint64]

	dimension int
	idToKey   map[string]uint64
	keyToID   map[uint64]string
	nextKey   uint64
}

// vectorIndexMeta is the persisted form of a VectorIndex's id mappings.
type vectorIndexMeta struct {
	Dimension int
	IDToKey   map[string]uint64
	NextKey   uint64
}

// NewVectorIndex creates a VectorIndex over vectors of the given dimension.
func NewVectorIndex(dimension int) (*VectorIndex, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("vector index dimension must be positive, got %d", dimension)
	}
	graph := hnsw.NewGraph[uint64]()
	graph.Distance = hnsw.CosineDistance
	graph.M = annConnectivity
	graph.EfSearch = annSearchExpansion
	graph.Ml = 0.25

	return &VectorIndex{
		graph:     graph,
		dimension: dimension,
		idToKey:   make(map[string]uint64),
		keyToID:   make(map[uint64]string),
	}, nil
}

// Dimension returns the vector dimension this index was constructed for.
func (v *VectorIndex) Dimension() int { return v.dimension }

// Add inserts or replaces vectors by chunk id. Replacing an id uses lazy
// deletion (orphan the old key) rather than removing the node from the
// graph, since coder/hnsw cannot safely delete an arbitrary node.
func (v *VectorIndex) Add(ids []string, vectors [][]float32) error {
	if len(ids) != len(vectors) {
		return fmt.Errorf("ids and vectors length mismatch: %d vs %d", len(ids), len(vectors))
	}
	v.mu.Lock()
	defer v.mu.Unlock()

	for _, vec := range vectors {
		if len(vec) != v.dimension {
			return ErrDimensionMismatch{Expected: v.dimension, Got: len(vec)}
		}
	}

	for i, id := range ids {
		if oldKey, ok := v.idToKey[id]; ok {
			delete(v.keyToID, oldKey)
		}
		key := v.nextKey
		v.nextKey++

		vec := make([]float32, len(vectors[i]))
		copy(vec, vectors[i])
		normalizeInPlace(vec)

		v.graph.Add(hnsw.MakeNode(key, vec))
		v.idToKey[id] = key
		v.keyToID[key] = id
	}
	return nil
}

// Delete removes ids from the mapping (lazy deletion; nodes remain in the
// graph but are no longer reachable by id).
func (v *VectorIndex) Delete(ids []string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, id := range ids {
		if key, ok := v.idToKey[id]; ok {
			delete(v.keyToID, key)
			delete(v.idToKey, id)
		}
	}
}

// VectorResult is one hit from a VectorIndex search.
type VectorResult struct {
	ChunkID    string
	Similarity float32 // 1 - distance
}

// Search returns up to k nearest neighbors of query. Similarity is
// approximate; callers recompute exact cosine at scoring time.
func (v *VectorIndex) Search(query []float32, k int) ([]VectorResult, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	if len(query) != v.dimension {
		return nil, ErrDimensionMismatch{Expected: v.dimension, Got: len(query)}
	}
	if v.graph.Len() == 0 {
		return nil, nil
	}

	q := make([]float32, len(query))
	copy(q, query)
	normalizeInPlace(q)

	nodes := v.graph.Search(q, k)
	results := make([]VectorResult, 0, len(nodes))
	for _, node := range nodes {
		id, ok := v.keyToID[node.Key]
		if !ok {
			continue
		}
		distance := v.graph.Distance(q, node.Value)
		results = append(results, VectorResult{
			ChunkID:    id,
			Similarity: 1 - distance,
		})
	}
	return results, nil
}

// Count returns the number of ids currently mapped (excludes orphaned keys).
func (v *VectorIndex) Count() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.idToKey)
}

// Contains reports whether id is present.
func (v *VectorIndex) Contains(id string) bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	_, ok := v.idToKey[id]
	return ok
}

// Save persists the ANN graph and id mappings to path (graph) and
// path+".meta" (mappings), atomically via temp file + rename.
func (v *VectorIndex) Save(path string) error {
	v.mu.RLock()
	defer v.mu.RUnlock()

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create ann file: %w", err)
	}
	if err := v.graph.Export(f); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("export graph: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close ann file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename ann file: %w", err)
	}

	return v.saveMeta(path + ".meta")
}

func (v *VectorIndex) saveMeta(path string) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create ann meta file: %w", err)
	}
	meta := vectorIndexMeta{Dimension: v.dimension, IDToKey: v.idToKey, NextKey: v.nextKey}
	if err := gob.NewEncoder(f).Encode(meta); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("encode ann meta: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close ann meta file: %w", err)
	}
	return os.Rename(tmp, path)
}

// LoadVectorIndex loads a VectorIndex previously written by Save. Callers
// should treat a load failure as cache loss, not a fatal error: the index
// can be rebuilt from the owning Store's chunks.
func LoadVectorIndex(path string) (*VectorIndex, error) {
	metaFile, err := os.Open(path + ".meta")
	if err != nil {
		return nil, fmt.Errorf("open ann meta file: %w", err)
	}
	defer metaFile.Close()

	var meta vectorIndexMeta
	if err := gob.NewDecoder(metaFile).Decode(&meta); err != nil {
		return nil, fmt.Errorf("decode ann meta: %w", err)
	}

	graphFile, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open ann file: %w", err)
	}
	defer graphFile.Close()

	graph := hnsw.NewGraph[uint64]()
	graph.Distance = hnsw.CosineDistance
	graph.M = annConnectivity
	graph.EfSearch = annSearchExpansion
	graph.Ml = 0.25
	if err := graph.Import(bufio.NewReader(graphFile)); err != nil {
		return nil, fmt.Errorf("import graph: %w", err)
	}

	keyToID := make(map[uint64]string, len(meta.IDToKey))
	for id, key := range meta.IDToKey {
		keyToID[key] = id
	}

	return &VectorIndex{
		graph:     graph,
		dimension: meta.Dimension,
		idToKey:   meta.IDToKey,
		keyToID:   keyToID,
		nextKey:   meta.NextKey,
	}, nil
}

func normalizeInPlace(v []float32) {
	var sumSquares float64
	for _, x := range v {
		sumSquares += float64(x) * float64(x)
	}
	if sumSquares == 0 {
		return
	}
	inv := float32(1.0 / math.Sqrt(sumSquares))
	for i := range v {
		v[i] *= inv
	}
}
