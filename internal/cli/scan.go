package cli

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/smarttree/smarttree/internal/config"
	"github.com/smarttree/smarttree/internal/encode"
	"github.com/smarttree/smarttree/internal/pipeline"
	"github.com/smarttree/smarttree/internal/scanmodel"
	"github.com/smarttree/smarttree/internal/stree"
)

// scanFlags holds the flag set shared by the root command and the explicit
// scan subcommand.
type scanFlags struct {
	encoder     string
	maxDepth    int
	showHidden  bool
	showIgnored bool
	noIgnores   bool
	extensions  []string
	namePattern string
	nameRegex   bool
	minSize     string
	maxSize     string
	newerThan   string
	olderThan   string
	kinds       []string
	search      string
	searchRegex bool
	lineContent bool
	maxMatches  int
	streaming   bool
	followLinks bool
	sortByName  bool
	pathMode    string
	maxEntries  int
	output      string
}

var scanOpts scanFlags

var scanCmd = &cobra.Command{
	Use:   "scan [directory]",
	Short: "Scan a directory and render it with the selected encoder",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runScan,
}

func init() {
	bindScanFlags(scanCmd)
	scanCmd.RegisterFlagCompletionFunc("encoder", completeEncoder)
	rootCmd.AddCommand(scanCmd)
}

func bindScanFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVarP(&scanOpts.encoder, "encoder", "e", "", "output encoder (default classic; ai under AI_TOOLS=1)")
	f.IntVarP(&scanOpts.maxDepth, "depth", "d", 0, "max recursion depth (0 = unlimited)")
	f.BoolVarP(&scanOpts.showHidden, "hidden", "a", false, "include dot entries")
	f.BoolVar(&scanOpts.showIgnored, "show-ignored", false, "render ignored directories as marker leaves")
	f.BoolVar(&scanOpts.noIgnores, "no-ignores", false, "disable built-in and user ignore files")
	f.StringSliceVar(&scanOpts.extensions, "ext", nil, "only these extensions (repeatable)")
	f.StringVar(&scanOpts.namePattern, "name", "", "glob on entry names")
	f.BoolVar(&scanOpts.nameRegex, "name-regex", false, "treat --name as a regular expression")
	f.StringVar(&scanOpts.minSize, "min-size", "", "minimum file size (e.g. 10k, 4M)")
	f.StringVar(&scanOpts.maxSize, "max-size", "", "maximum file size")
	f.StringVar(&scanOpts.newerThan, "newer-than", "", "only entries modified on/after this date (YYYY-MM-DD)")
	f.StringVar(&scanOpts.olderThan, "older-than", "", "only entries modified on/before this date (YYYY-MM-DD)")
	f.StringSliceVar(&scanOpts.kinds, "type", nil, "entry kinds: dir, file, symlink (repeatable)")
	f.StringVarP(&scanOpts.search, "search", "s", "", "search file contents for a keyword")
	f.BoolVar(&scanOpts.searchRegex, "search-regex", false, "treat --search as a regular expression")
	f.BoolVar(&scanOpts.lineContent, "line-content", false, "capture matching line text")
	f.IntVar(&scanOpts.maxMatches, "max-matches", 0, "per-file search match cap")
	f.BoolVar(&scanOpts.streaming, "stream", false, "stream events instead of buffering the tree")
	f.BoolVar(&scanOpts.followLinks, "follow-symlinks", false, "descend into symlinked directories (cycle-guarded)")
	f.BoolVar(&scanOpts.sortByName, "sort-name", false, "sort all children by name instead of dirs-first")
	f.StringVar(&scanOpts.pathMode, "paths", "name", "path display: name, relative, absolute")
	f.IntVar(&scanOpts.maxEntries, "max-entries", 0, "override the entry safety cap")
	f.StringVarP(&scanOpts.output, "output", "o", "", "write output to a file instead of stdout")
}

func completeEncoder(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
	return encode.Names(), cobra.ShellCompDirectiveNoFileComp
}

// runScan translates flags into a ScanRequest, runs the pipeline, and
// writes the encoded output.
func runScan(cmd *cobra.Command, args []string) error {
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

	if scanOpts.output != "" {
		return os.WriteFile(scanOpts.output, res.Output, 0o644)
	}

	if os.Getenv(config.EnvAITools) == "1" && os.Getenv(config.EnvAIStrict) != "1" {
		banner := lipgloss.NewStyle().Bold(true).Render(
			fmt.Sprintf("smart-tree %s F:%d D:%d", req.Encoder, res.Stats.FileCount, res.Stats.DirCount))
		fmt.Fprintln(cmd.ErrOrStderr(), banner)
	}

	_, err = cmd.OutOrStdout().Write(res.Output)
	return err
}

// buildRequest is the flag-to-ScanRequest translation.
func buildRequest(root string) (scanmodel.ScanRequest, error) {
	req := scanmodel.ScanRequest{
		Root:              root,
		MaxDepth:          scanOpts.maxDepth,
		Encoder:           defaultEncoder(scanOpts.encoder),
		Streaming:         scanOpts.streaming,
		FollowSymlinkDirs: scanOpts.followLinks,
		MaxEntries:        scanOpts.maxEntries,
		AIStrict:          os.Getenv(config.EnvAIStrict) == "1",
	}

	if scanOpts.sortByName {
		req.Sort = scanmodel.SortNameAscending
	}

	switch scanOpts.pathMode {
	case "name", "":
		req.PathDisplay = scanmodel.PathName
	case "relative":
		req.PathDisplay = scanmodel.PathRelative
	case "absolute":
		req.PathDisplay = scanmodel.PathAbsolute
	default:
		return req, stree.New(stree.CodeInvalidParams, "unknown --paths mode "+scanOpts.pathMode, nil).
			WithHint("name, relative, or absolute", "pick a path display mode", "--paths relative")
	}

	req.Filter = scanmodel.FilterSpec{
		NamePattern:   scanOpts.namePattern,
		NameIsRegex:   scanOpts.nameRegex,
		Extensions:    scanOpts.extensions,
		ShowHidden:    scanOpts.showHidden,
		ShowIgnored:   scanOpts.showIgnored,
		IgnoreBuiltin: scanOpts.noIgnores,
		IgnoreUser:    scanOpts.noIgnores,
	}

	var err error
	if req.Filter.Size, err = parseSizeRange(scanOpts.minSize, scanOpts.maxSize); err != nil {
		return req, err
	}
	if req.Filter.MTime, err = parseDateRange(scanOpts.newerThan, scanOpts.olderThan); err != nil {
		return req, err
	}
	if req.Filter.Kinds, err = parseKinds(scanOpts.kinds); err != nil {
		return req, err
	}

	if scanOpts.search != "" {
		req.Search = &scanmodel.SearchSpec{
			Pattern:            scanOpts.search,
			Regex:              scanOpts.searchRegex,
			IncludeLineContent: scanOpts.lineContent,
			MaxMatchesPerFile:  scanOpts.maxMatches,
		}
	}
	return req, nil
}

// defaultEncoder applies the AI_TOOLS=1 default switch.
func defaultEncoder(flag string) string {
	if flag != "" {
		return flag
	}
	if os.Getenv(config.EnvAITools) == "1" {
		return "ai"
	}
	return "classic"
}

// parseSizeRange parses human size specs like 10k or 4M into bytes.
func parseSizeRange(minSpec, maxSpec string) (scanmodel.SizeRange, error) {
	var r scanmodel.SizeRange
	var err error
	if minSpec != "" {
		if r.Min, err = parseSize(minSpec); err != nil {
			return r, err
		}
	}
	if maxSpec != "" {
		if r.Max, err = parseSize(maxSpec); err != nil {
			return r, err
		}
	}
	return r, nil
}

var sizeSuffixes = map[byte]int64{'k': 1 << 10, 'm': 1 << 20, 'g': 1 << 30, 't': 1 << 40}

func parseSize(spec string) (int64, error) {
	s := strings.ToLower(strings.TrimSpace(spec))
	mult := int64(1)
	if len(s) > 0 {
		if m, ok := sizeSuffixes[s[len(s)-1]]; ok {
			mult = m
			s = s[:len(s)-1]
		}
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n < 0 {
		return 0, stree.New(stree.CodeInvalidSizeSpec, "invalid size spec "+spec, err).
			WithHint("a number with an optional k/M/G/T suffix", "sizes are bytes by default", "--min-size 10k")
	}
	return n * mult, nil
}

// parseDateRange parses YYYY-MM-DD bounds into an inclusive epoch range.
func parseDateRange(newer, older string) (scanmodel.TimeRange, error) {
	var r scanmodel.TimeRange
	if newer != "" {
		t, err := time.Parse("2006-01-02", newer)
		if err != nil {
			return r, stree.New(stree.CodeInvalidDateSpec, "invalid date "+newer, err).
				WithHint("YYYY-MM-DD", "dates are calendar days, midnight UTC", "--newer-than 2025-01-31")
		}
		r.Min = t.Unix()
	}
	if older != "" {
		t, err := time.Parse("2006-01-02", older)
		if err != nil {
			return r, stree.New(stree.CodeInvalidDateSpec, "invalid date "+older, err).
				WithHint("YYYY-MM-DD", "dates are calendar days, midnight UTC", "--older-than 2025-06-30")
		}
		// Inclusive upper bound: end of that calendar day.
		r.Max = t.Add(24*time.Hour - time.Second).Unix()
	}
	return r, nil
}

func parseKinds(kinds []string) ([]scanmodel.EntryKind, error) {
	var out []scanmodel.EntryKind
	for _, k := range kinds {
		switch strings.ToLower(k) {
		case "dir", "d":
			out = append(out, scanmodel.KindDir)
		case "file", "f":
			out = append(out, scanmodel.KindFile)
		case "symlink", "l":
			out = append(out, scanmodel.KindSymlink)
		default:
			return nil, stree.New(stree.CodeInvalidParams, "unknown entry kind "+k, nil).
				WithHint("dir, file, or symlink", "repeat --type for multiple kinds", "--type file --type symlink")
		}
	}
	return out, nil
}
