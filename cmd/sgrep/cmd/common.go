package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/RandomsUsernames/sgrep/internal/config"
)

// projectRoot resolves the project root for the current working directory,
// matching spec.md §6's project-local artifact layout.
func projectRoot() (string, error) {
	wd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to resolve working directory: %w", err)
	}
	return config.FindProjectRoot(wd), nil
}

// storeDir returns the directory a project's store artifacts live under:
// cfg.Store.Dir if set, otherwise "<root>/.sgrep".
func storeDir(root string, cfg *config.Config) string {
	if cfg.Store.Dir != "" {
		return cfg.Store.Dir
	}
	return filepath.Join(root, config.DefaultConfigDirName)
}

// storeName returns the store family name: the --store flag if given,
// otherwise cfg.Store.Name.
func storeName(cfg *config.Config, flagName string) string {
	if flagName != "" {
		return flagName
	}
	if cfg.Store.Name != "" {
		return cfg.Store.Name
	}
	return "default"
}

// loadConfig loads the layered config for root, falling back to built-in
// defaults if no config file is present or parseable.
func loadConfig(root string) *config.Config {
	cfg, err := config.Load(root)
	if err != nil {
		return config.NewConfig()
	}
	return cfg
}
