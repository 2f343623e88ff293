package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/smarttree/smarttree/internal/mcpserver"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the JSON-RPC tool server over stdin/stdout",
	Long: `Start the long-lived tool server. Requests arrive as one JSON object
per line on stdin; responses leave the same way on stdout. All logging goes
to stderr. Feature flags, compliance presets, and path gates come from the
layered configuration (env > local > user > system > defaults).`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := resolveDaemonConfig()
	if err != nil {
		return err
	}
	server := mcpserver.New(cfg)
	return server.Serve(cmd.Context(), os.Stdin, os.Stdout)
}
