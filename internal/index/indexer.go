// Package index orchestrates a single indexing run: scan a directory,
// chunk the files whose content changed, embed the resulting chunks in
// batches, and swap them into a Store, per spec.md §4.8.
package index

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/RandomsUsernames/sgrep/internal/chunk"
	"github.com/RandomsUsernames/sgrep/internal/embed"
	amerr "github.com/RandomsUsernames/sgrep/internal/errors"
	"github.com/RandomsUsernames/sgrep/internal/scanner"
	"github.com/RandomsUsernames/sgrep/internal/store"
)

// Tier trades indexing cost against search quality (spec.md §4.8).
type Tier string

const (
	TierFast     Tier = "fast"     // chunk + store only, no embeddings
	TierBalanced Tier = "balanced" // chunk + embed with the standard encoder
	TierQuality  Tier = "quality"  // chunk + embed with the highest-fidelity configuration
)

// DefaultBatchSize mirrors embed.DefaultBatchSize; kept local so callers
// don't need to import embed just to read a constant.
const DefaultBatchSize = embed.DefaultBatchSize

// Options configures a single Run call.
type Options struct {
	// RootDir is the project root to scan.
	RootDir string

	// Tier selects Fast/Balanced/Quality. It is copied into the Report, and
	// TierQuality also fills per-token embeddings when the engine supports
	// them; whether pooled embeddings happen at all is decided by the engine
	// passed to New.
	Tier Tier

	// Force reindexes every scanned file, ignoring content-hash matches.
	Force bool

	// Workers bounds the chunking worker pool. 0 means runtime.NumCPU().
	Workers int

	// BatchSize bounds a single Embed call. 0 means DefaultBatchSize.
	BatchSize int

	// ExcludePatterns are additional gitignore-syntax patterns passed to
	// the Scanner.
	ExcludePatterns []string

	// MaxFileSize caps individual scanned file size in bytes.
	MaxFileSize int64
}

// Report summarizes the outcome of a Run, per spec.md §4.8's reporting
// contract: (total_files, indexed_files, skipped_files, total_chunks,
// duration_ms, tier).
type Report struct {
	TotalFiles   int
	IndexedFiles int
	SkippedFiles int
	TotalChunks  int
	DurationMS   int64
	Tier         Tier
}

// Indexer orchestrates Scan -> Chunk (parallel) -> Embed (batched) -> Store
// for a single project root.
type Indexer struct {
	scanner *scanner.Scanner
	chunker chunk.Chunker
	engine  embed.Engine // nil selects the Fast tier: chunks get empty embeddings
	st      *store.Store
}

// New creates an Indexer writing into st, chunking with chunker, and
// embedding with engine. A nil engine means the Fast tier: every chunk is
// stored with an empty embedding and only BM25 search is available.
func New(st *store.Store, chunker chunk.Chunker, engine embed.Engine) *Indexer {
	sc, err := scanner.New()
	if err != nil {
		// scanner.New only fails constructing its internal LRU cache with a
		// non-positive size, which never happens with the package default.
		panic(err)
	}
	return &Indexer{scanner: sc, chunker: chunker, engine: engine, st: st}
}

// fileChunks pairs a scanned file with the chunks produced from it, kept
// together so the atomic per-file swap step can find each file's chunk IDs.
type fileChunks struct {
	path    string
	hash    string
	chunks  []*chunk.Chunk
}

// Run executes one indexing pass: scan, hash-filter (unless Force), chunk
// selected files in parallel, embed all resulting chunks in batches,
// atomically swap each file's chunks into the store, recompute BM25
// statistics, and return a Report. Persistence to disk is the caller's
// responsibility (Store.Save), matching spec.md's separation of the Store's
// in-memory invariants from its on-disk form.
func (ix *Indexer) Run(ctx context.Context, opts Options) (*Report, error) {
	start := time.Now()

	scanned, err := ix.scanner.Scan(&scanner.ScanOptions{
		RootDir:         opts.RootDir,
		ExcludePatterns: opts.ExcludePatterns,
		MaxFileSize:     opts.MaxFileSize,
	})
	if err != nil {
		return nil, err
	}

	report := &Report{TotalFiles: len(scanned), Tier: opts.Tier}

	selected := make([]scanner.ScannedFile, 0, len(scanned))
	for _, f := range scanned {
		hash := contentHash(f.Content)
		if !opts.Force && !ix.st.FileNeedsUpdate(f.Path, hash) {
			report.SkippedFiles++
			continue
		}
		selected = append(selected, f)
	}

	fileResults, warnCount := ix.chunkFiles(ctx, selected, opts)
	report.SkippedFiles += warnCount

	var allChunks []*chunk.Chunk
	for _, fr := range fileResults {
		allChunks = append(allChunks, fr.chunks...)
	}

	if ix.engine != nil && len(allChunks) > 0 {
		if err := ix.embedBatches(ctx, allChunks, opts); err != nil {
			return nil, err
		}
	}

	now := time.Now()
	for _, fr := range fileResults {
		if len(fr.chunks) == 0 {
			continue
		}
		ix.st.RemoveFile(fr.path)
		ids := make([]string, 0, len(fr.chunks))
		for _, c := range fr.chunks {
			ix.st.AddChunk(c)
			ids = append(ids, c.ID)
		}
		ix.st.AddFile(&store.IndexedFile{
			Path:        fr.path,
			ContentHash: fr.hash,
			ChunkIDs:    ids,
			IndexedAt:   now,
		})
		report.IndexedFiles++
		report.TotalChunks += len(fr.chunks)
	}

	ix.st.UpdateBM25Stats()
	if err := ix.st.MaybeBuildANNIndex(); err != nil {
		return nil, amerr.InvariantError("failed to build ANN index after indexing", err)
	}

	report.DurationMS = time.Since(start).Milliseconds()
	return report, nil
}

// chunkFiles chunks selected files concurrently, bounded by opts.Workers
// (default runtime.NumCPU()), dropping files whose chunker returns no
// chunks (spec.md §4.8 step 2). Errors chunking a single file are recorded
// as a skip rather than aborting the whole run, matching the Scanner's own
// per-file resilience policy.
func (ix *Indexer) chunkFiles(ctx context.Context, files []scanner.ScannedFile, opts Options) ([]fileChunks, int) {
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	results := make([]fileChunks, len(files))
	var skipped int
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, f := range files {
		i, f := i, f
		g.Go(func() error {
			chunks, err := ix.chunker.Chunk(gctx, &chunk.FileInput{
				Path:     f.Path,
				Content:  f.Content,
				Language: f.Language,
			})
			if err != nil || len(chunks) == 0 {
				mu.Lock()
				skipped++
				mu.Unlock()
				return nil
			}
			results[i] = fileChunks{path: f.Path, hash: contentHash(f.Content), chunks: chunks}
			return nil
		})
	}
	// chunkFiles never returns an error from g.Wait(): individual failures
	// degrade to a skip, and gctx cancellation only ever originates from
	// ctx itself, which callers observe via Run's own ctx.
	_ = g.Wait()

	out := make([]fileChunks, 0, len(results))
	for _, r := range results {
		if r.path == "" {
			continue
		}
		out = append(out, r)
	}
	return out, skipped
}

// embedBatches generates embeddings for chunks in batches of opts.BatchSize
// (default DefaultBatchSize), writing each vector back into the
// corresponding Chunk in place. A failed batch gets empty embeddings rather
// than aborting the run, per spec.md §4.8/§7's partial-failure policy; a
// cancelled ctx stops the run before the next batch and returns its error.
// Batches run sequentially: the local embedder is stateful and confined to
// one caller at a time (spec.md §5).
func (ix *Indexer) embedBatches(ctx context.Context, chunks []*chunk.Chunk, opts Options) error {
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	for start := 0; start < len(chunks); start += batchSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := start + batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Content
		}

		vectors, err := ix.engine.Embed(ctx, texts)
		if err != nil {
			for _, c := range batch {
				c.Embedding = nil
			}
			continue
		}
		for i, c := range batch {
			if i < len(vectors) {
				c.Embedding = vectors[i]
			}
		}

		if opts.Tier == TierQuality {
			if te, ok := embed.TokenEmbedderOf(ix.engine); ok {
				ix.embedTokens(ctx, batch, te)
			}
		}
	}
	return nil
}

// embedTokens populates TokenEmbeddings for the Quality tier's chunks
// when the configured engine exposes per-token hidden states (the local
// transformer encoders, directly or behind a FusionEngine), feeding the
// HybridSearcher's late-interaction scoring. A per-chunk failure leaves
// TokenEmbeddings nil rather than aborting the batch, mirroring
// embedBatches' pooled-vector failure policy.
func (ix *Indexer) embedTokens(ctx context.Context, batch []*chunk.Chunk, te embed.TokenEmbedder) {
	for _, c := range batch {
		tokens, err := te.EmbedTokens(ctx, c.Content)
		if err != nil {
			continue
		}
		c.TokenEmbeddings = tokens
	}
}

// contentHash is the full hex SHA-256 of content, matching spec.md §6's
// file-hash contract.
func contentHash(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}
