package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/smarttree/smarttree/internal/pipeline"
	"github.com/smarttree/smarttree/internal/tokencount"
)

var (
	tokenReportTokenizer string
	tokenReportBudget    int
)

// tokenReportCmd renders a scan with the active encoder and reports how
// many LLM tokens the output would consume against an optional budget.
var tokenReportCmd = &cobra.Command{
	Use:   "token-report [directory]",
	Short: "Count the tokens a rendered scan would cost",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runTokenReport,
}

func init() {
	tokenReportCmd.Flags().StringVar(&tokenReportTokenizer, "tokenizer", "", "tokenizer encoding: cl100k_base, o200k_base, none")
	tokenReportCmd.Flags().IntVar(&tokenReportBudget, "budget", 0, "token budget (0 = unlimited)")
	rootCmd.AddCommand(tokenReportCmd)
}

func runTokenReport(cmd *cobra.Command, args []string) error {
	root := "."
	if len(args) > 0 {
		root = args[0]
	}

	req, err := buildRequest(root)
	if err != nil {
		return err
	}

	res, err := pipeline.Run(cmd.Context(), req, pipeline.RunOptions{})
	if err != nil {
		return err
	}

	tok, err := tokencount.NewTokenizer(tokenReportTokenizer)
	if err != nil {
		return err
	}

	report := tokencount.NewBudgetReport(string(res.Output), tok, tokenReportBudget, res.Stats)
	fmt.Fprint(cmd.OutOrStdout(), report.Format())
	return nil
}
