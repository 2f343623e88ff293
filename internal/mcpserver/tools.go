package mcpserver

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/smarttree/smarttree/internal/config"
	"github.com/smarttree/smarttree/internal/pipeline"
	"github.com/smarttree/smarttree/internal/relations"
	"github.com/smarttree/smarttree/internal/scanmodel"
	"github.com/smarttree/smarttree/internal/scanner"
	"github.com/smarttree/smarttree/internal/stree"
	"github.com/smarttree/smarttree/internal/tokencount"
)

// buildRegistry wires the fixed tool set.
func buildRegistry() registry {
	var r registry

	r.add(tool{
		desc: toolDescriptor{
			Name:             "overview",
			Description:      "Render a depth-limited classic tree of a directory.",
			HumanDescription: "🌳 Quick tree overview",
			InputSchema:      scanArgsSchema(nil),
			Lane:             LaneExplore,
		},
		handler: func(ctx context.Context, s *Server, args json.RawMessage) (*toolOutput, error) {
			return s.runScanTool(ctx, args, "classic", func(req *scanmodel.ScanRequest) {
				if req.MaxDepth == 0 {
					req.MaxDepth = 3
				}
			})
		},
	})

	r.add(tool{
		desc: toolDescriptor{
			Name:             "analyze",
			Description:      "Full AI-oriented analysis: project context, hex body, statistics.",
			HumanDescription: "🔬 Deep analysis for AI consumption",
			InputSchema:      scanArgsSchema(nil),
			Lane:             LaneAnalyze,
		},
		handler: func(ctx context.Context, s *Server, args json.RawMessage) (*toolOutput, error) {
			return s.runScanTool(ctx, args, "ai", nil)
		},
	})

	r.add(tool{
		desc: toolDescriptor{
			Name:        "find",
			Description: "List paths matching a name pattern; sorted, paginated with limit and cursor.",
			InputSchema: scanArgsSchema(map[string]*jsonschema.Schema{
				"limit":  intProp("maximum paths per page"),
				"cursor": stringProp("opaque continuation token from a previous page"),
			}),
			Lane: LaneExplore,
		},
		handler: handleFind,
	})

	r.add(tool{
		desc: toolDescriptor{
			Name:        "search",
			Description: "Search file contents for a keyword or regex; reports per-file matches.",
			InputSchema: scanArgsSchema(map[string]*jsonschema.Schema{
				"keyword":      stringProp("literal keyword or regex with regex=true"),
				"line_content": boolProp("capture matching line text"),
				"max_matches":  intProp("per-file match cap"),
			}, "path", "keyword"),
			Lane: LaneExplore,
		},
		feature: "content_search",
		handler: handleSearch,
	})

	r.add(tool{
		desc: toolDescriptor{
			Name:        "statistics",
			Description: "Aggregate counts, extension histogram, largest files, and mtime range.",
			InputSchema: scanArgsSchema(nil),
			Lane:        LaneAnalyze,
		},
		handler: func(ctx context.Context, s *Server, args json.RawMessage) (*toolOutput, error) {
			return s.runScanTool(ctx, args, "stats", nil)
		},
	})

	r.add(tool{
		desc: toolDescriptor{
			Name:        "digest",
			Description: "One-line stable digest of a directory: hash plus headline counters.",
			InputSchema: scanArgsSchema(nil),
			Lane:        LaneAnalyze,
		},
		handler: func(ctx context.Context, s *Server, args json.RawMessage) (*toolOutput, error) {
			return s.runScanTool(ctx, args, "digest", nil)
		},
	})

	r.add(tool{
		desc: toolDescriptor{
			Name:        "semantic",
			Description: "Quantum-semantic encoding: symbol importance scores over the quantum stream.",
			InputSchema: scanArgsSchema(nil),
			Lane:        LaneAnalyze,
		},
		handler: func(ctx context.Context, s *Server, args json.RawMessage) (*toolOutput, error) {
			return s.runScanTool(ctx, args, "semantic", nil)
		},
	})

	r.add(tool{
		desc: toolDescriptor{
			Name:        "relations",
			Description: "File dependency graph: imports, calls, types, tests; optional focus and kind filter.",
			InputSchema: scanArgsSchema(map[string]*jsonschema.Schema{
				"focus": stringProp("restrict to edges touching this file (root-relative)"),
				"kinds": {Type: "array", Items: enumProp("relation kind", "imports", "calls", "types", "tests")},
			}),
			Lane: LaneAnalyze,
		},
		feature: "relations",
		handler: handleRelations,
	})

	r.add(tool{
		desc: toolDescriptor{
			Name:        "token_report",
			Description: "Token count of a rendered scan against an optional budget.",
			InputSchema: scanArgsSchema(map[string]*jsonschema.Schema{
				"tokenizer": enumProp("tokenizer encoding", "cl100k_base", "o200k_base", "none"),
				"budget":    intProp("token budget; 0 means unlimited"),
			}),
			Lane: LaneAnalyze,
		},
		handler: handleTokenReport,
	})

	r.add(tool{
		desc: toolDescriptor{
			Name:        "feature_status",
			Description: "Report resolved feature flags, compliance preset, and path gates.",
			InputSchema: objectSchema(nil, map[string]*jsonschema.Schema{}),
			Lane:        LaneExplore,
		},
		handler: handleFeatureStatus,
	})

	r.add(tool{
		desc: toolDescriptor{
			Name:        "edit",
			Description: "AST-aware single-file edits: get_functions, insert_function, remove_function, smart_edit, create_file.",
			InputSchema: editSchema(),
			Lane:        LaneAct,
		},
		feature: "edit_tools",
		handler: handleEdit,
	})

	return r
}

// toScanRequest translates common tool arguments into a ScanRequest and
// applies the path gate.
func (s *Server) toScanRequest(args *scanArgs, encoder string) (scanmodel.ScanRequest, error) {
	if args.Path == "" {
		return scanmodel.ScanRequest{}, stree.New(stree.CodeInvalidParams, "path is required", nil).
			WithHint("a directory path", "pass the directory to scan", `{"path":"/srv/app"}`)
	}
	if err := s.cfg.CheckPath(args.Path); err != nil {
		return scanmodel.ScanRequest{}, err
	}

	req := scanmodel.ScanRequest{
		Root:     args.Path,
		MaxDepth: args.MaxDepth,
		Encoder:  encoder,
		AIStrict: s.cfg.Strict,
	}
	req.Filter.ShowHidden = args.ShowHidden
	req.Filter.ShowIgnored = args.ShowIgnored
	req.Filter.IgnoreBuiltin = args.NoIgnores
	req.Filter.IgnoreUser = args.NoIgnores
	req.Filter.Extensions = args.Extensions
	req.Filter.NamePattern = args.NamePattern
	req.Filter.NameIsRegex = args.Regex
	return req, nil
}

// runScanTool is the shared scan-pipeline handler body.
func (s *Server) runScanTool(ctx context.Context, raw json.RawMessage, encoder string, tweak func(*scanmodel.ScanRequest)) (*toolOutput, error) {
	args, err := decodeArgs[scanArgs](raw)
	if err != nil {
		return nil, err
	}
	req, err := s.toScanRequest(args, encoder)
	if err != nil {
		return nil, err
	}
	if tweak != nil {
		tweak(&req)
	}

	res, err := pipeline.Run(ctx, req, pipeline.RunOptions{Mode: scanner.ModeToolServer})
	if err != nil {
		return nil, err
	}
	return &toolOutput{
		Text:        string(res.Output),
		DirDigest:   res.Digest[:16],
		Fingerprint: res.Fingerprint,
		NextBestCalls: []string{
			fmt.Sprintf(`{"name":"statistics","arguments":{"path":%q}}`, args.Path),
		},
	}, nil
}

// handleFind lists matching paths with limit/cursor pagination. The cursor
// is the base64 offset into the sorted path list.
func handleFind(ctx context.Context, s *Server, raw json.RawMessage) (*toolOutput, error) {
	args, err := decodeArgs[scanArgs](raw)
	if err != nil {
		return nil, err
	}
	req, err := s.toScanRequest(args, "hex")
	if err != nil {
		return nil, err
	}

	res, err := pipeline.Run(ctx, req, pipeline.RunOptions{Mode: scanner.ModeToolServer, KeepEvents: true})
	if err != nil {
		return nil, err
	}

	var paths []string
	for _, ev := range res.Events {
		if ev.Kind == scanmodel.EventFile && !ev.Node.IgnoredMarker {
			paths = append(paths, relTo(req.Root, ev.Node.AbsPath))
		}
	}
	sort.Strings(paths)

	offset := 0
	if args.Cursor != "" {
		decoded, err := base64.StdEncoding.DecodeString(args.Cursor)
		if err != nil {
			return nil, stree.New(stree.CodeInvalidParams, "malformed cursor", err).
				WithHint("the cursor value returned by the previous page", "cursors are opaque", "")
		}
		if n, err := strconv.Atoi(string(decoded)); err == nil && n >= 0 {
			offset = n
		}
	}

	limit := args.Limit
	if limit <= 0 {
		limit = 100
	}
	if offset > len(paths) {
		offset = len(paths)
	}
	end := offset + limit
	if end > len(paths) {
		end = len(paths)
	}

	var sb strings.Builder
	for _, p := range paths[offset:end] {
		sb.WriteString(p)
		sb.WriteByte('\n')
	}
	out := &toolOutput{
		Text:        sb.String(),
		DirDigest:   res.Digest[:16],
		Fingerprint: res.Fingerprint,
	}
	if end < len(paths) {
		cursor := base64.StdEncoding.EncodeToString([]byte(strconv.Itoa(end)))
		out.Text += fmt.Sprintf("[next cursor: %s]\n", cursor)
		out.NextBestCalls = []string{
			fmt.Sprintf(`{"name":"find","arguments":{"path":%q,"cursor":%q}}`, args.Path, cursor),
		}
	}
	return out, nil
}

// handleSearch runs content search and renders path:line:col hits.
func handleSearch(ctx context.Context, s *Server, raw json.RawMessage) (*toolOutput, error) {
	args, err := decodeArgs[scanArgs](raw)
	if err != nil {
		return nil, err
	}
	if args.Keyword == "" {
		return nil, stree.New(stree.CodeInvalidParams, "keyword is required", nil).
			WithHint("a keyword or regex", "pass the pattern to search for", `{"path":".","keyword":"TODO"}`)
	}
	req, err := s.toScanRequest(args, "hex")
	if err != nil {
		return nil, err
	}
	req.Search = &scanmodel.SearchSpec{
		Pattern:            args.Keyword,
		Regex:              args.Regex,
		MaxMatchesPerFile:  args.MaxMatches,
		IncludeLineContent: args.LineContent,
		HardFilter:         true,
	}

	res, err := pipeline.Run(ctx, req, pipeline.RunOptions{Mode: scanner.ModeToolServer, KeepEvents: true})
	if err != nil {
		return nil, err
	}

	var sb strings.Builder
	for _, ev := range res.Events {
		if ev.Kind != scanmodel.EventFile || len(ev.Node.Matches) == 0 {
			continue
		}
		rel := relTo(req.Root, ev.Node.AbsPath)
		for _, m := range ev.Node.Matches {
			fmt.Fprintf(&sb, "%s:%d:%d", rel, m.Line, m.Column)
			if m.LineContent != "" {
				fmt.Fprintf(&sb, ": %s", m.LineContent)
				if m.Truncated {
					sb.WriteString("…")
				}
			}
			sb.WriteByte('\n')
		}
	}
	fmt.Fprintf(&sb, "[%d matches]\n", res.Stats.SearchHits)

	return &toolOutput{
		Text:        sb.String(),
		DirDigest:   res.Digest[:16],
		Fingerprint: res.Fingerprint,
	}, nil
}

// handleRelations builds the dependency graph with focus/kind filters.
func handleRelations(ctx context.Context, s *Server, raw json.RawMessage) (*toolOutput, error) {
	args, err := decodeArgs[scanArgs](raw)
	if err != nil {
		return nil, err
	}
	req, err := s.toScanRequest(args, "hex")
	if err != nil {
		return nil, err
	}

	res, err := pipeline.Run(ctx, req, pipeline.RunOptions{Mode: scanner.ModeToolServer, KeepEvents: true})
	if err != nil {
		return nil, err
	}

	var files []string
	for _, ev := range res.Events {
		if ev.Kind == scanmodel.EventFile && ev.Node.Kind == scanmodel.KindFile {
			files = append(files, relTo(req.Root, ev.Node.AbsPath))
		}
	}

	var kinds []relations.Kind
	for _, k := range args.Kinds {
		kinds = append(kinds, relations.Kind(k))
	}

	graph := relations.Build(absRoot(req.Root), relations.GoFilesOf(files))
	text := relations.Render(graph, relations.RenderOptions{
		Focus:   args.Focus,
		Kinds:   kinds,
		Mermaid: !s.cfg.Strict,
	})

	return &toolOutput{
		Text:        text,
		DirDigest:   res.Digest[:16],
		Fingerprint: res.Fingerprint,
	}, nil
}

// handleTokenReport renders the scan with the AI encoder and reports its
// token cost.
func handleTokenReport(ctx context.Context, s *Server, raw json.RawMessage) (*toolOutput, error) {
	args, err := decodeArgs[scanArgs](raw)
	if err != nil {
		return nil, err
	}
	req, err := s.toScanRequest(args, "ai")
	if err != nil {
		return nil, err
	}

	res, err := pipeline.Run(ctx, req, pipeline.RunOptions{Mode: scanner.ModeToolServer})
	if err != nil {
		return nil, err
	}

	tok, err := tokencount.NewTokenizer(args.Tokenizer)
	if err != nil {
		return nil, stree.New(stree.CodeInvalidParams, err.Error(), nil).
			WithHint("cl100k_base, o200k_base, or none", "pick a supported tokenizer", `{"tokenizer":"cl100k_base"}`)
	}
	report := tokencount.NewBudgetReport(string(res.Output), tok, args.Budget, res.Stats)

	return &toolOutput{
		Text:        report.Format(),
		DirDigest:   res.Digest[:16],
		Fingerprint: res.Fingerprint,
	}, nil
}

// handleFeatureStatus reports the resolved gate state.
func handleFeatureStatus(_ context.Context, s *Server, _ json.RawMessage) (*toolOutput, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "compliance: %s\n", presetLabel(s.cfg))
	fmt.Fprintf(&sb, "strict: %t\n", s.cfg.Strict)
	fmt.Fprintf(&sb, "privacy_mode: %t\n", s.cfg.PrivacyMode)

	features := []string{"edit_tools", "content_search", "relations", "live_monitor"}
	for _, f := range features {
		fmt.Fprintf(&sb, "feature %s: %t\n", f, s.cfg.IsFeatureEnabled(f))
	}
	if len(s.cfg.AllowedPaths) > 0 {
		fmt.Fprintf(&sb, "allowed_paths: %s\n", strings.Join(s.cfg.AllowedPaths, ", "))
	}
	if len(s.cfg.BlockedPaths) > 0 {
		fmt.Fprintf(&sb, "blocked_paths: %s\n", strings.Join(s.cfg.BlockedPaths, ", "))
	}
	saved, tokens := s.comp.SavedStats()
	fmt.Fprintf(&sb, "compression_saved_bytes: %d\ncompression_saved_tokens: %d\n", saved, tokens)

	return &toolOutput{Text: sb.String()}, nil
}

func presetLabel(cfg *config.DaemonConfig) string {
	if cfg.Compliance == config.PresetNone {
		return "none"
	}
	return string(cfg.Compliance)
}

// relTo renders path relative to root with forward slashes, falling back
// to the input on failure.
func relTo(root, path string) string {
	abs := absRoot(root)
	rel, err := filepath.Rel(abs, path)
	if err != nil {
		return path
	}
	return strings.ReplaceAll(rel, string(filepath.Separator), "/")
}

func absRoot(root string) string {
	abs, err := filepath.Abs(root)
	if err != nil {
		return root
	}
	return abs
}
