// Package cli implements the Cobra command hierarchy for the smart-tree
// CLI. The root command defined here is the entry point for all
// subcommands and handles cross-cutting concerns like logging
// initialization and error handling; its only responsibility toward the
// core is translating flags into a ScanRequest and an encoder choice.
package cli

import (
	"errors"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/smarttree/smarttree/internal/config"
	"github.com/smarttree/smarttree/internal/stree"
)

var (
	verboseFlag bool
	quietFlag   bool
)

var rootCmd = &cobra.Command{
	Use:   "stree",
	Short: "Visualize directories for humans and models.",
	Long: `Smart Tree scans a directory once and projects the result into the
representation you ask for: classic tree art, fixed-width hex, statistics,
digests, JSON/CSV/TSV, Markdown and Mermaid reports, or the binary quantum
stream. The same engine backs a JSON-RPC tool server for AI assistants and
an optional live filesystem monitor.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := config.ResolveLogLevel(verboseFlag, quietFlag)
		format := config.ResolveLogFormat()
		if os.Getenv(config.EnvDisableLogging) == "1" {
			config.SetupLoggingWithWriter(level, format, io.Discard)
			return nil
		}
		config.SetupLogging(level, format)

		slog.Debug("logging initialized", "level", level, "format", format)
		return nil
	},
	// When no subcommand is given, delegate to the scan command.
	RunE: func(cmd *cobra.Command, args []string) error {
		return runScan(cmd, args)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "debug logging to stderr")
	rootCmd.PersistentFlags().BoolVarP(&quietFlag, "quiet", "q", false, "errors only")

	bindScanFlags(rootCmd)
	rootCmd.RegisterFlagCompletionFunc("encoder", completeEncoder)
}

// Execute runs the root command and returns an appropriate exit code.
// If the error is a *stree.Error, its mapped exit code is used. Generic
// errors return 1.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		slog.Error(err.Error())
		return extractExitCode(err)
	}
	return int(stree.ExitSuccess)
}

// extractExitCode determines the process exit code from an error.
func extractExitCode(err error) int {
	if err == nil {
		return int(stree.ExitSuccess)
	}
	var streeErr *stree.Error
	if errors.As(err, &streeErr) {
		if streeErr.Hint != "" {
			slog.Info("hint: " + streeErr.Hint)
		}
		return streeErr.ExitCode()
	}
	return int(stree.ExitError)
}

// RootCmd returns the root cobra.Command for use in testing and subcommand
// registration.
func RootCmd() *cobra.Command {
	return rootCmd
}

// resolveDaemonConfig loads the layered configuration for commands that
// consult the feature gate.
func resolveDaemonConfig() (*config.DaemonConfig, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	resolved, err := config.Resolve(config.ResolveOptions{TargetDir: cwd})
	if err != nil {
		return nil, err
	}
	return resolved.Config, nil
}
