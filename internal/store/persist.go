package store

import (
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/RandomsUsernames/sgrep/internal/chunk"
)

// binaryExt and jsonExt name the two on-disk forms for a store named
// "<name>": "<name>.store.bin" (primary) and "<name>.store.json" (legacy,
// read-only fallback, one-way migration to the binary form).
const (
	binaryExt = ".store.bin"
	jsonExt   = ".store.json"
)

// storeBlob is the serializable shape of a Store's durable state:
// {files, chunks, bm25_idf, doc_count}.
type storeBlob struct {
	Files    map[string]*IndexedFile
	Chunks   map[string]*chunk.Chunk
	BM25IDF  map[string]float64
	DocCount int
}

func (s *Store) blob() storeBlob {
	s.mu.Lock()
	defer s.mu.Unlock()
	return storeBlob{
		Files:    s.files,
		Chunks:   s.chunks,
		BM25IDF:  s.idf,
		DocCount: s.docCount,
	}
}

func (s *Store) restore(b storeBlob) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b.Files == nil {
		b.Files = make(map[string]*IndexedFile)
	}
	if b.Chunks == nil {
		b.Chunks = make(map[string]*chunk.Chunk)
	}
	if b.BM25IDF == nil {
		b.BM25IDF = make(map[string]float64)
	}
	s.files = b.Files
	s.chunks = b.Chunks
	s.idf = b.BM25IDF
	s.docCount = b.DocCount
}

// Save writes the binary primary form of the store at dir/<name>.store.bin,
// atomically via a temp file + rename. Callers should call UpdateBM25Stats
// first if chunks changed.
func (s *Store) Save(dir, name string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create store directory: %w", err)
	}
	path := filepath.Join(dir, name+binaryExt)
	tmp := path + ".tmp"

	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create store file: %w", err)
	}
	if err := gob.NewEncoder(f).Encode(s.blob()); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("encode store: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close store file: %w", err)
	}
	return os.Rename(tmp, path)
}

// Load reads the binary primary form at dir/<name>.store.bin. If it's
// missing, Load falls back to migrating the legacy JSON form (dir/<name>.
// store.json) if present. A corrupt binary blob with no usable backup
// degrades to a fresh empty store per spec.md's Serialization error policy.
func (s *Store) Load(dir, name string) error {
	path := filepath.Join(dir, name+binaryExt)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s.loadLegacyJSON(dir, name)
		}
		return fmt.Errorf("open store file: %w", err)
	}
	defer f.Close()

	var b storeBlob
	if err := gob.NewDecoder(f).Decode(&b); err != nil {
		if _, jsonErr := os.Stat(filepath.Join(dir, name+jsonExt)); jsonErr == nil {
			return s.loadLegacyJSON(dir, name)
		}
		s.restore(storeBlob{})
		return nil
	}
	s.restore(b)
	return nil
}

// jsonStoreBlob is the legacy textual persistence shape. It mirrors
// storeBlob field-for-field; kept as a distinct type so the binary format
// can evolve independently of the read-only legacy reader.
type jsonStoreBlob struct {
	Files    map[string]*IndexedFile `json:"files"`
	Chunks   map[string]*chunk.Chunk `json:"chunks"`
	BM25IDF  map[string]float64      `json:"bm25_idf"`
	DocCount int                     `json:"doc_count"`
}

func (s *Store) loadLegacyJSON(dir, name string) error {
	path := filepath.Join(dir, name+jsonExt)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			s.restore(storeBlob{})
			return nil
		}
		return fmt.Errorf("read legacy store file: %w", err)
	}

	var jb jsonStoreBlob
	if err := json.Unmarshal(data, &jb); err != nil {
		return fmt.Errorf("decode legacy store file: %w", err)
	}

	s.restore(storeBlob{
		Files:    jb.Files,
		Chunks:   jb.Chunks,
		BM25IDF:  jb.BM25IDF,
		DocCount: jb.DocCount,
	})
	return nil
}

// ArtifactPaths returns every on-disk path a store named "<name>" under dir
// may occupy: the binary store, the legacy JSON store, and the ANN index's
// graph + metadata files. Used by cleanup tooling that needs to remove a
// store's full artifact family without duplicating its file-naming rules.
func ArtifactPaths(dir, name string) []string {
	ann := filepath.Join(dir, annFileName(name))
	return []string{
		filepath.Join(dir, name+binaryExt),
		filepath.Join(dir, name+jsonExt),
		ann,
		ann + ".meta",
	}
}

// MigrateJSONToBinary performs the one-way migration from the legacy
// textual form to the binary primary form: it loads dir/<name>.store.json
// (if present) and writes dir/<name>.store.bin. The JSON file is left in
// place as a read-only fallback.
func MigrateJSONToBinary(dir, name string) error {
	s := New()
	if err := s.loadLegacyJSON(dir, name); err != nil {
		return err
	}
	s.UpdateBM25Stats()
	return s.Save(dir, name)
}

// SaveJSON writes the legacy textual form. Used for debugging and by tests
// exercising the migration path; not produced by normal indexing runs.
func (s *Store) SaveJSON(dir, name string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create store directory: %w", err)
	}
	b := s.blob()
	data, err := json.MarshalIndent(jsonStoreBlob{
		Files:    b.Files,
		Chunks:   b.Chunks,
		BM25IDF:  b.BM25IDF,
		DocCount: b.DocCount,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode legacy store: %w", err)
	}
	return os.WriteFile(filepath.Join(dir, name+jsonExt), data, 0o644)
}
