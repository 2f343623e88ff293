// Package pipeline is the central orchestrator: it resolves a ScanRequest
// into a compiled filter and ignore chain, drives the scanner into the
// selected encoder, and hands the encoded bytes back with the digest and
// statistics gathered along the way. The CLI and the tool server both call
// through here so request semantics stay identical across entry points.
package pipeline

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/smarttree/smarttree/internal/digest"
	"github.com/smarttree/smarttree/internal/encode"
	"github.com/smarttree/smarttree/internal/filter"
	"github.com/smarttree/smarttree/internal/ignore"
	"github.com/smarttree/smarttree/internal/scanmodel"
	"github.com/smarttree/smarttree/internal/scanner"
)

// Result bundles one completed scan-and-encode run.
type Result struct {
	Output []byte

	// Digest is the canonical-tuple hash of the emitted stream (full hex).
	Digest string

	// Fingerprint is the request's args_fingerprint.
	Fingerprint string

	Stats   scanmodel.Statistics
	Project scanmodel.ProjectContext

	// Events is retained only when KeepEvents was set on Run's options.
	Events []scanmodel.ScanEvent
}

// RunOptions tune a pipeline invocation beyond the request itself.
type RunOptions struct {
	// Mode selects the scanner's safety-cap profile.
	Mode scanner.InvocationMode

	// KeepEvents retains the raw event slice on the Result for callers
	// that post-process beyond the encoded bytes (e.g. find, search and
	// relations tool calls).
	KeepEvents bool
}

// Run executes the full scan pipeline for req.
func Run(ctx context.Context, req scanmodel.ScanRequest, opts RunOptions) (*Result, error) {
	logger := slog.Default().With("component", "pipeline")

	filterSet, err := filter.Compile(req.Filter)
	if err != nil {
		return nil, err
	}

	ignorer, err := buildIgnorer(req)
	if err != nil {
		return nil, err
	}

	mode := opts.Mode
	if mode == scanner.ModeDirect && underHome(req.Root) {
		mode = scanner.ModeHomeDir
	}

	s, err := scanner.New(req, filterSet, ignorer, mode)
	if err != nil {
		return nil, err
	}

	root, err := filepath.Abs(req.Root)
	if err != nil {
		return nil, err
	}

	project := scanner.DetectProject(root)
	encOpts := encode.Options{Request: req, Root: root, Project: &project}
	enc, err := encode.New(req.Encoder, encOpts)
	if err != nil {
		return nil, err
	}

	hasher := digest.NewHasher()
	result := &Result{
		Fingerprint: digest.Fingerprint(req),
		Project:     project,
	}

	consume := func(ev scanmodel.ScanEvent) error {
		hasher.Consume(ev)
		if ev.Kind == scanmodel.EventSummary {
			result.Stats = ev.Stats
		}
		if opts.KeepEvents {
			result.Events = append(result.Events, ev)
		}
		return enc.Consume(ev)
	}

	if req.Streaming && !encode.NeedsBuffered(req.Encoder) {
		events, errc := s.Stream(ctx)
		for ev := range events {
			if err := consume(ev); err != nil {
				return nil, err
			}
		}
		if err := <-errc; err != nil {
			return nil, err
		}
	} else {
		events, err := s.Scan(ctx)
		if err != nil {
			return nil, err
		}
		for _, ev := range events {
			if err := consume(ev); err != nil {
				return nil, err
			}
		}
	}

	out, err := enc.Finalize()
	if err != nil {
		return nil, err
	}
	result.Output = out
	result.Digest = hasher.Sum()

	logger.Debug("scan complete",
		"root", req.Root,
		"encoder", req.Encoder,
		"files", result.Stats.FileCount,
		"dirs", result.Stats.DirCount,
		"bytes", len(out),
	)
	return result, nil
}

// buildIgnorer assembles the composite ignore chain the request asks for:
// built-in set, .gitignore hierarchy, and .streeignore hierarchy.
func buildIgnorer(req scanmodel.ScanRequest) (scanner.SourceIgnorer, error) {
	var builtin, gitign, streeign ignore.Ignorer

	if !req.Filter.IgnoreBuiltin {
		builtin = ignore.NewBuiltinMatcher()
	}
	if !req.Filter.IgnoreUser {
		root, err := filepath.Abs(req.Root)
		if err != nil {
			return nil, err
		}
		if m, err := ignore.NewGitignoreMatcher(root); err == nil {
			gitign = m
		}
		if m, err := ignore.NewStreeignoreMatcher(root); err == nil {
			streeign = m
		}
	}
	return ignore.NewCompositeIgnorer(builtin, gitign, streeign), nil
}

// underHome reports whether root sits inside the invoking user's home
// directory, which selects the tighter default safety cap.
func underHome(root string) bool {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return false
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(home, abs)
	if err != nil {
		return false
	}
	return rel == "." || (len(rel) > 0 && rel[0] != '.')
}
