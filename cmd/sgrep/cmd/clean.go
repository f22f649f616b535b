package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/RandomsUsernames/sgrep/internal/store"
)

func newCleanCmd() *cobra.Command {
	var (
		all       bool
		list      bool
		storeFlag string
	)

	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove on-disk store and codemap artifacts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClean(cmd, all, list, storeFlag)
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Remove every artifact in the store directory, not just one store's")
	cmd.Flags().BoolVar(&list, "list", false, "List artifacts that would be removed, without removing them")
	cmd.Flags().StringVar(&storeFlag, "store", "", "Store name (default: config store.name, or \"default\")")

	return cmd
}

func runClean(cmd *cobra.Command, all, list bool, storeFlag string) error {
	root, err := projectRoot()
	if err != nil {
		return err
	}
	cfg := loadConfig(root)
	dir := storeDir(root, cfg)

	var paths []string
	if all {
		entries, err := os.ReadDir(dir)
		if err != nil {
			if os.IsNotExist(err) {
				fmt.Fprintln(cmd.OutOrStdout(), "nothing to clean")
				return nil
			}
			return fmt.Errorf("failed to read store directory: %w", err)
		}
		for _, e := range entries {
			if !e.IsDir() {
				paths = append(paths, filepath.Join(dir, e.Name()))
			}
		}
	} else {
		name := storeName(cfg, storeFlag)
		paths = append(paths, store.ArtifactPaths(dir, name)...)
		paths = append(paths, codemapPath(dir))
	}

	out := cmd.OutOrStdout()
	removed := 0
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if list {
			fmt.Fprintln(out, p)
			continue
		}
		if err := os.Remove(p); err != nil {
			return fmt.Errorf("failed to remove %s: %w", p, err)
		}
		removed++
	}

	if !list {
		fmt.Fprintf(out, "removed %d artifact(s)\n", removed)
	}
	return nil
}

func codemapPath(dir string) string {
	return filepath.Join(dir, "map.json")
}
