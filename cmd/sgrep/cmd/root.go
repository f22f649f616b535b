// Package cmd provides the sgrep CLI commands: index, search, status, and
// clean, per spec.md §6's minimal canonical verb set.
package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/RandomsUsernames/sgrep/internal/logging"
	"github.com/RandomsUsernames/sgrep/pkg/version"
)

var (
	debugMode      bool
	loggingCleanup func()
)

// NewRootCmd creates the root sgrep command.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "sgrep",
		Short:   "Semantic code search over a local repository",
		Version: version.Version,
		Long: `sgrep indexes a repository into chunks with dense embeddings and
BM25 statistics, then answers natural-language queries with hybrid
(vector + lexical) search, ranked and optionally reranked.`,
		SilenceUsage:      true,
		PersistentPreRunE: startDebugLogging,
		PersistentPostRun: stopDebugLogging,
	}
	cmd.SetVersionTemplate("sgrep version {{.Version}}\n")
	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging to ~/.sgrep/logs/")

	cmd.AddCommand(newIndexCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newCleanCmd())

	return cmd
}

// startDebugLogging wires --debug to file-based structured logging, leaving
// the default logger untouched (stderr-only) otherwise.
func startDebugLogging(_ *cobra.Command, _ []string) error {
	if !debugMode {
		return nil
	}
	logger, cleanup, err := logging.Setup(logging.DebugConfig())
	if err != nil {
		return err
	}
	loggingCleanup = cleanup
	slog.SetDefault(logger)
	slog.Info("debug logging enabled", slog.String("log_file", logging.DefaultLogPath()))
	return nil
}

func stopDebugLogging(_ *cobra.Command, _ []string) {
	if loggingCleanup != nil {
		loggingCleanup()
	}
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}
