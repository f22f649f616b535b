package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/RandomsUsernames/sgrep/internal/codemap"
	"github.com/RandomsUsernames/sgrep/internal/store"
)

func newStatusCmd() *cobra.Command {
	var (
		listFiles bool
		overview  bool
		storeFlag string
	)

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show indexed store statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd, listFiles, overview, storeFlag)
		},
	}

	cmd.Flags().BoolVar(&listFiles, "files", false, "List every indexed file path")
	cmd.Flags().BoolVar(&overview, "overview", false, "Print a compact per-file symbol overview from the codemap")
	cmd.Flags().StringVar(&storeFlag, "store", "", "Store name (default: config store.name, or \"default\")")

	return cmd
}

func runStatus(cmd *cobra.Command, listFiles, overview bool, storeFlag string) error {
	root, err := projectRoot()
	if err != nil {
		return err
	}
	cfg := loadConfig(root)

	dir := storeDir(root, cfg)
	name := storeName(cfg, storeFlag)

	st := store.New()
	if err := st.Load(dir, name); err != nil {
		return fmt.Errorf("failed to load store: %w", err)
	}
	hasANN := st.LoadANN(dir, name) == nil && st.HasANNIndex()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "store:       %s\n", name)
	fmt.Fprintf(out, "location:    %s\n", dir)
	fmt.Fprintf(out, "documents:   %d\n", st.DocCount())
	fmt.Fprintf(out, "chunks:      %d\n", len(st.Chunks()))
	fmt.Fprintf(out, "ann index:   %v\n", hasANN)

	m, mapErr := codemap.Load(dir)
	if mapErr == nil {
		fmt.Fprintf(out, "codemap:     %d symbols across %d files\n", len(m.Symbols), len(m.Files))
	} else {
		fmt.Fprintf(out, "codemap:     not built\n")
	}

	if overview && mapErr == nil {
		fmt.Fprintln(out, "\noverview:")
		fmt.Fprint(out, m.Overview())
	}

	if listFiles {
		paths := make([]string, 0)
		seen := map[string]bool{}
		for _, c := range st.Chunks() {
			if !seen[c.FilePath] {
				seen[c.FilePath] = true
				paths = append(paths, c.FilePath)
			}
		}
		sort.Strings(paths)
		fmt.Fprintln(out, "\nfiles:")
		for _, p := range paths {
			fmt.Fprintf(out, "  %s\n", p)
		}
	}

	return nil
}
