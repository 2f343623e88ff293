package cli

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/smarttree/smarttree/internal/config"
)

// configCmd prints the resolved daemon configuration with per-key source
// attribution, mirroring what the feature_status tool reports over RPC.
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the resolved configuration and where each value came from",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

func init() {
	rootCmd.AddCommand(configCmd)
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return err
	}
	resolved, err := config.Resolve(config.ResolveOptions{TargetDir: cwd})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	cfg := resolved.Config

	fmt.Fprintf(out, "compliance:              %s\n", orNone(string(cfg.Compliance)))
	fmt.Fprintf(out, "strict:                  %t\n", cfg.Strict)
	fmt.Fprintf(out, "privacy_mode:            %t\n", cfg.PrivacyMode)
	fmt.Fprintf(out, "disable_mcp:             %t\n", cfg.DisableMCP)
	fmt.Fprintf(out, "max_tokens_per_response: %d\n", cfg.MaxTokensPerResponse)
	if len(cfg.AllowedPaths) > 0 {
		fmt.Fprintf(out, "allowed_paths:           %v\n", cfg.AllowedPaths)
	}
	if len(cfg.BlockedPaths) > 0 {
		fmt.Fprintf(out, "blocked_paths:           %v\n", cfg.BlockedPaths)
	}

	if len(resolved.Sources) > 0 {
		fmt.Fprintln(out, "\nsources:")
		keys := make([]string, 0, len(resolved.Sources))
		for k := range resolved.Sources {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(out, "  %-28s %s\n", k, resolved.Sources[k])
		}
	}
	return nil
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}
