// This file implements the token-budget report: given a rendered encoder
// output and the Statistics gathered during the scan, it counts tokens and
// reports how much of a caller-specified budget that output would consume.
package tokencount

import (
	"fmt"
	"sort"
	"strings"

	"github.com/smarttree/smarttree/internal/scanmodel"
)

// BudgetReport summarizes token usage for a single rendered scan output
// against an optional budget.
type BudgetReport struct {
	TokenizerName string
	TotalTokens   int
	Budget        int // 0 means unlimited

	// ByExtension breaks the file count down per extension, reusing the
	// Statistics the scanner already collected rather than re-tokenizing
	// per file.
	ByExtension []scanmodel.ExtCount
}

// NewBudgetReport counts tokens in rendered with tok and pairs the result
// with stats's extension histogram.
func NewBudgetReport(rendered string, tok Tokenizer, budget int, stats scanmodel.Statistics) *BudgetReport {
	return &BudgetReport{
		TokenizerName: tok.Name(),
		TotalTokens:   tok.Count(rendered),
		Budget:        budget,
		ByExtension:   stats.Extensions,
	}
}

// ExceedsBudget reports whether TotalTokens is over Budget. Always false
// when Budget is 0 (unlimited).
func (r *BudgetReport) ExceedsBudget() bool {
	return r.Budget > 0 && r.TotalTokens > r.Budget
}

// Format renders the report as plain text suitable for printing to stderr,
// following the same box-drawing-separator convention used elsewhere in
// the CLI's diagnostic output.
func (r *BudgetReport) Format() string {
	var sb strings.Builder

	title := fmt.Sprintf("Token Report (%s)", r.TokenizerName)
	sb.WriteString(title + "\n")
	sb.WriteString(strings.Repeat("─", len(title)+2) + "\n")
	fmt.Fprintf(&sb, "Total tokens: %s\n", formatInt(r.TotalTokens))

	if r.Budget > 0 {
		pct := int(float64(r.TotalTokens) / float64(r.Budget) * 100)
		fmt.Fprintf(&sb, "Budget:       %s (%d%% used)\n", formatInt(r.Budget), pct)
		if r.ExceedsBudget() {
			sb.WriteString("Status:       OVER BUDGET\n")
		}
	} else {
		sb.WriteString("Budget:       unlimited\n")
	}

	if len(r.ByExtension) > 0 {
		sb.WriteString("\nBy extension:\n")
		exts := append([]scanmodel.ExtCount(nil), r.ByExtension...)
		sort.Slice(exts, func(i, j int) bool { return exts[i].Count > exts[j].Count })
		for _, e := range exts {
			label := e.Ext
			if label == "" {
				label = "(no extension)"
			}
			fmt.Fprintf(&sb, "  .%-12s %s files\n", label, formatInt(e.Count))
		}
	}

	return sb.String()
}

// formatInt adds thousands separators for readability in report output.
func formatInt(n int) string {
	s := fmt.Sprintf("%d", n)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	var out []byte
	for i, c := range []byte(s) {
		if i > 0 && (len(s)-i)%3 == 0 {
			out = append(out, ',')
		}
		out = append(out, c)
	}
	if neg {
		return "-" + string(out)
	}
	return string(out)
}
