package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/RandomsUsernames/sgrep/internal/chunk"
	"github.com/RandomsUsernames/sgrep/internal/codemap"
	"github.com/RandomsUsernames/sgrep/internal/config"
	"github.com/RandomsUsernames/sgrep/internal/embed"
	"github.com/RandomsUsernames/sgrep/internal/index"
	"github.com/RandomsUsernames/sgrep/internal/store"
)

func newIndexCmd() *cobra.Command {
	var (
		fast, balanced, quality bool
		force                   bool
		storeFlag               string
		threads                 int
		batchSize               int
	)

	cmd := &cobra.Command{
		Use:   "index [path]",
		Short: "Index a directory for hybrid search",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "."
			if len(args) > 0 {
				path = args[0]
			}

			tier, err := resolveTier(fast, balanced, quality)
			if err != nil {
				return err
			}

			return runIndex(cmd.Context(), cmd, path, tier, force, storeFlag, threads, batchSize)
		},
	}

	cmd.Flags().BoolVar(&fast, "fast", false, "Fast tier: chunk and store only, no embeddings")
	cmd.Flags().BoolVar(&balanced, "balanced", false, "Balanced tier: embed with the standard encoder (default)")
	cmd.Flags().BoolVar(&quality, "quality", false, "Quality tier: embed with the highest-fidelity configuration")
	cmd.Flags().BoolVar(&force, "force", false, "Reindex every file, ignoring content-hash matches")
	cmd.Flags().StringVar(&storeFlag, "store", "", "Store name (default: config store.name, or \"default\")")
	cmd.Flags().IntVar(&threads, "threads", 0, "Chunking worker count (0 = runtime.NumCPU())")
	cmd.Flags().IntVar(&batchSize, "batch-size", 0, "Embedding batch size (0 = config default)")

	return cmd
}

func resolveTier(fast, balanced, quality bool) (index.Tier, error) {
	count := 0
	for _, b := range []bool{fast, balanced, quality} {
		if b {
			count++
		}
	}
	if count > 1 {
		return "", fmt.Errorf("only one of --fast, --balanced, --quality may be given")
	}
	switch {
	case fast:
		return index.TierFast, nil
	case quality:
		return index.TierQuality, nil
	default:
		return index.TierBalanced, nil
	}
}

func runIndex(ctx context.Context, cmd *cobra.Command, path string, tier index.Tier, force bool, storeFlag string, threads, batchSize int) error {
	root, err := projectRoot()
	if err != nil {
		return err
	}
	cfg := loadConfig(root)

	dir := storeDir(root, cfg)
	name := storeName(cfg, storeFlag)

	st := store.New()
	if err := st.Load(dir, name); err != nil {
		return fmt.Errorf("failed to load existing store: %w", err)
	}
	_ = st.LoadANN(dir, name) // cache miss is never fatal

	engine, closeEngine, err := engineForTier(ctx, cfg, tier)
	if err != nil {
		return err
	}
	if closeEngine != nil {
		defer func() { _ = closeEngine() }()
	}

	chunker := chunk.NewCodeChunker()
	defer chunker.Close()

	ix := index.New(st, chunker, engine)

	if batchSize <= 0 {
		batchSize = cfg.Embeddings.BatchSize
	}
	opts := index.Options{
		RootDir:         path,
		Tier:            tier,
		Force:           force,
		Workers:         threads,
		BatchSize:       batchSize,
		ExcludePatterns: cfg.Paths.Exclude,
		MaxFileSize:     cfg.Indexing.MaxFileSize,
	}

	report, err := ix.Run(ctx, opts)
	if err != nil {
		return fmt.Errorf("indexing failed: %w", err)
	}

	if err := st.Save(dir, name); err != nil {
		return fmt.Errorf("failed to save store: %w", err)
	}
	if err := st.SaveANN(dir, name); err != nil {
		return fmt.Errorf("failed to save ANN index: %w", err)
	}

	m := codemap.Build(st)
	if err := m.Save(dir); err != nil {
		return fmt.Errorf("failed to save codemap: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(),
		"Indexed %d/%d files (%d skipped), %d chunks, tier=%s, %dms\n",
		report.IndexedFiles, report.TotalFiles, report.SkippedFiles, report.TotalChunks, report.Tier, report.DurationMS)
	return nil
}

// engineForTier constructs the EmbeddingEngine the Fast/Balanced/Quality
// tier implies. Fast needs no engine at all (nil: chunks keep empty
// embeddings). The returned close func is nil when engine is nil.
func engineForTier(ctx context.Context, cfg *config.Config, tier index.Tier) (embed.Engine, func() error, error) {
	if tier == index.TierFast {
		return nil, nil, nil
	}

	embedCfg := cfg.Embeddings
	switch tier {
	case index.TierQuality:
		embedCfg.Provider = config.ProviderFusion
	default:
		embedCfg.Provider = config.ProviderStandard
	}

	engine, err := embed.NewEngine(ctx, embedCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}
	return engine, engine.Close, nil
}
