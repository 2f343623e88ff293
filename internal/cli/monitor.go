package cli

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/smarttree/smarttree/internal/monitor"
	"github.com/smarttree/smarttree/internal/stree"
)

var monitorAddr string

var monitorCmd = &cobra.Command{
	Use:   "monitor [directory]",
	Short: "Watch a directory and serve live change batches over SSE",
	Long: `Watch one root recursively and expose a local HTTP server with:

  /events  text/event-stream change batches (250-500 ms coalescing)
  /tree    JSON snapshot of the current tree
  /stats   monitor counters`,
	Args: cobra.MaximumNArgs(1),
	RunE: runMonitor,
}

func init() {
	monitorCmd.Flags().StringVar(&monitorAddr, "addr", "127.0.0.1:8420", "listen address")
	rootCmd.AddCommand(monitorCmd)
}

func runMonitor(cmd *cobra.Command, args []string) error {
	cfg, err := resolveDaemonConfig()
	if err != nil {
		return err
	}
	if !cfg.IsFeatureEnabled("live_monitor") {
		return stree.New(stree.CodeFeatureDisabled, "live monitor is disabled", nil).
			WithHint("a configuration without a compliance preset that excludes live_monitor",
				"check feature flags with the feature_status tool", "")
	}

	root := "."
	if len(args) > 0 {
		root = args[0]
	}

	m, err := monitor.New(root)
	if err != nil {
		return err
	}

	srv := &http.Server{Addr: monitorAddr, Handler: m.Handler()}
	slog.Info("monitor listening", "addr", monitorAddr, "root", m.Root())

	g, ctx := errgroup.WithContext(cmd.Context())
	g.Go(func() error { return m.Run(ctx) })
	g.Go(func() error {
		err := srv.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-ctx.Done()
		return srv.Close()
	})
	return g.Wait()
}
