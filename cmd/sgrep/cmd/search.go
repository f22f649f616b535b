package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/RandomsUsernames/sgrep/internal/config"
	"github.com/RandomsUsernames/sgrep/internal/embed"
	"github.com/RandomsUsernames/sgrep/internal/search"
	"github.com/RandomsUsernames/sgrep/internal/store"
)

func newSearchCmd() *cobra.Command {
	var (
		max         int
		extension   string
		language    string
		rerank      bool
		code        bool
		storeFlag   string
		lateInterop bool
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search an indexed repository",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd.Context(), cmd, args[0], searchParams{
				max:       max,
				extension: extension,
				language:  language,
				rerank:    rerank,
				code:      code,
				storeFlag: storeFlag,
				lateInter: lateInterop,
			})
		},
	}

	cmd.Flags().IntVar(&max, "max", 10, "Maximum number of results")
	cmd.Flags().StringVar(&extension, "type", "", "Restrict to files with this extension, e.g. .go")
	cmd.Flags().StringVar(&language, "lang", "", "Restrict to this detected language")
	cmd.Flags().BoolVar(&rerank, "rerank", false, "Rerank candidates with the reranker fallback chain")
	cmd.Flags().BoolVar(&code, "code", false, "Embed the query with the code-optimized (rotary) encoder instead of the standard one")
	cmd.Flags().BoolVar(&lateInterop, "late-interaction", false, "Enable token-level max-sim scoring")
	cmd.Flags().StringVar(&storeFlag, "store", "", "Store name (default: config store.name, or \"default\")")

	return cmd
}

type searchParams struct {
	max       int
	extension string
	language  string
	rerank    bool
	code      bool
	storeFlag string
	lateInter bool
}

func runSearch(ctx context.Context, cmd *cobra.Command, query string, p searchParams) error {
	root, err := projectRoot()
	if err != nil {
		return err
	}
	cfg := loadConfig(root)

	dir := storeDir(root, cfg)
	name := storeName(cfg, p.storeFlag)

	st := store.New()
	if err := st.Load(dir, name); err != nil {
		return fmt.Errorf("failed to load store: %w", err)
	}
	_ = st.LoadANN(dir, name)

	embedCfg := cfg.Embeddings
	if p.code {
		embedCfg.Provider = config.ProviderRotary
	} else if embedCfg.Provider == "" || embedCfg.Provider == config.ProviderStatic {
		embedCfg.Provider = config.ProviderStandard
	}

	engine, err := embed.NewEngine(ctx, embedCfg)
	if err != nil {
		return fmt.Errorf("failed to initialize query embedder: %w", err)
	}
	defer engine.Close()

	searcher := search.New(st, engine)

	k := p.max
	if k <= 0 {
		k = 10
	}
	searchK := k
	if p.rerank {
		searchK = 3 * k
	}

	results, err := searcher.Search(ctx, query, search.Options{
		K:               searchK,
		ExtensionFilter: p.extension,
		LanguageFilter:  p.language,
		LateInteraction: p.lateInter,
	})
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if p.rerank {
		chain, err := search.NewChain(cfg.Rerank)
		if err != nil {
			return fmt.Errorf("failed to build reranker chain: %w", err)
		}
		results = chain.Rerank(ctx, query, results, k)
	} else if len(results) > k {
		results = results[:k]
	}

	printResults(cmd, results)
	return nil
}

func printResults(cmd *cobra.Command, results []search.Result) {
	out := cmd.OutOrStdout()
	if len(results) == 0 {
		fmt.Fprintln(out, "No results.")
		return
	}
	for i, r := range results {
		fmt.Fprintf(out, "%d. %s:%d-%d  score=%.4f\n", i+1, r.Chunk.FilePath, r.Chunk.StartLine, r.Chunk.EndLine, r.Score)
	}
}
