// Package scanner implements the directory-traversal engine: a
// depth-first walk that emits a stream of scanmodel.ScanEvent values
// bracketed EnterDir/ExitDir, with safety caps, symlink cycle detection,
// and optional content search attached to File events.
package scanner

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"
	"syscall"

	"github.com/smarttree/smarttree/internal/filter"
	"github.com/smarttree/smarttree/internal/ignore"
	"github.com/smarttree/smarttree/internal/scanmodel"
	"github.com/smarttree/smarttree/internal/search"
	"github.com/smarttree/smarttree/internal/stree"
)

// Ignorer is the subset of ignore.CompositeIgnorer the scanner depends on,
// letting callers pass a plain ignore.Ignorer when source attribution isn't
// needed.
type Ignorer interface {
	IsIgnored(path string, isDir bool) bool
}

// SourceIgnorer additionally reports which ignore source matched, used to
// tag FileNode.IgnoredMarker leaves.
type SourceIgnorer interface {
	Ignorer
	Decide(path string, isDir bool) (ignore.Source, bool)
}

// Scanner walks a single root according to a compiled request.
type Scanner struct {
	root    string
	req     scanmodel.ScanRequest
	filter  *filter.FilterSet
	ignorer SourceIgnorer
	mode    InvocationMode
	logger  *slog.Logger
	cycles  *cycleDetector
	matcher *search.Matcher

	emitted atomic.Int64
	cap     int
}

// New constructs a Scanner. filterSet may be nil (no predicates beyond
// ignore/hidden handling); ignorer may be nil (nothing is ignored).
func New(req scanmodel.ScanRequest, filterSet *filter.FilterSet, ignorer SourceIgnorer, mode InvocationMode) (*Scanner, error) {
	root, err := filepath.Abs(req.Root)
	if err != nil {
		return nil, stree.New(stree.CodeInvalidPath, "cannot resolve scan root", err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, stree.New(stree.CodeInvalidPath, "scan root does not exist", err)
	}
	if !info.IsDir() {
		return nil, stree.New(stree.CodeInvalidPath, "scan root is not a directory", nil).
			WithHint("a directory path", "pass the containing directory instead", root)
	}

	var m *search.Matcher
	if req.Search != nil {
		m, err = search.Compile(*req.Search)
		if err != nil {
			return nil, err
		}
	}

	return &Scanner{
		root:    root,
		req:     req,
		filter:  filterSet,
		ignorer: ignorer,
		mode:    mode,
		logger:  slog.Default().With("component", "scanner"),
		cycles:  newCycleDetector(),
		matcher: m,
		cap:     CapFor(mode, req.MaxEntries),
	}, nil
}

// Scan walks the tree and returns the full event slice (buffered mode).
// Callers that set req.Streaming should use Stream instead.
func (s *Scanner) Scan(ctx context.Context) ([]scanmodel.ScanEvent, error) {
	var events []scanmodel.ScanEvent
	err := s.walk(ctx, func(ev scanmodel.ScanEvent) error {
		events = append(events, ev)
		return nil
	})
	return events, err
}

// Stream walks the tree on a background goroutine, sending events to the
// returned channel. The channel is closed when the walk completes, whether
// by exhaustion, ctx cancellation, or error; any terminal error is sent as
// the final value read from the returned error channel.
func (s *Scanner) Stream(ctx context.Context) (<-chan scanmodel.ScanEvent, <-chan error) {
	events := make(chan scanmodel.ScanEvent, 64)
	errc := make(chan error, 1)

	go func() {
		defer close(events)
		defer close(errc)
		err := s.walk(ctx, func(ev scanmodel.ScanEvent) error {
			select {
			case events <- ev:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
		if err != nil {
			errc <- err
		}
	}()

	return events, errc
}

// walk runs the depth-first traversal, invoking emit for every event in
// document order. It stops early (returning the underlying error) on
// context cancellation or once the entry cap is exceeded.
func (s *Scanner) walk(ctx context.Context, emit func(scanmodel.ScanEvent) error) error {
	stats := scanmodel.Statistics{}
	extCounts := map[string]int{}
	var largest []scanmodel.SizedEntry

	rootNode := scanmodel.FileNode{AbsPath: s.root, Depth: 0, Kind: scanmodel.KindDir}
	if err := emit(scanmodel.ScanEvent{Kind: scanmodel.EventEnterDir, Node: rootNode}); err != nil {
		return err
	}
	stats.DirCount++ // the root itself counts

	var walkDir func(dir string, depth int) error
	walkDir = func(dir string, depth int) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if s.req.MaxDepth > 0 && depth >= s.req.MaxDepth {
			return nil
		}
		if s.req.FollowSymlinkDirs {
			// Every entered directory counts as visited so a symlink back
			// into the walked tree trips the detector on first sight.
			if real, _, err := s.cycles.resolve(dir); err == nil {
				s.cycles.markVisited(real)
			}
		}

		entries, err := os.ReadDir(dir)
		if err != nil {
			rel := s.relPath(dir)
			s.logger.Debug("directory unreadable", "path", rel, "error", err)
			return emit(scanmodel.ScanEvent{
				Kind:   scanmodel.EventInaccessibleDir,
				Path:   rel,
				Reason: classifyReadErr(err),
			})
		}

		sortEntries(entries, s.req.Sort)

		for _, de := range entries {
			if ctx.Err() != nil {
				return ctx.Err()
			}

			full := filepath.Join(dir, de.Name())
			rel := s.relPath(full)

			info, infoErr := de.Info()
			node := scanmodel.FileNode{
				AbsPath: full,
				Depth:   depth + 1,
			}
			if infoErr != nil {
				node.Inaccessible = true
			} else {
				node.Size = info.Size()
				node.MTime = info.ModTime().Unix()
				node.Perm = uint32(info.Mode().Perm())
				populatePlatformMeta(&node, info)
			}

			isDir := de.IsDir()
			isSymlink := de.Type()&os.ModeSymlink != 0

			switch {
			case isSymlink:
				node.Kind = scanmodel.KindSymlink
				if target, err := os.Readlink(full); err == nil {
					node.SymlinkTarget = target
				}
			case isDir:
				node.Kind = scanmodel.KindDir
			case info != nil && info.Mode().IsRegular():
				node.Kind = scanmodel.KindFile
			default:
				node.Kind = scanmodel.KindOther
			}

			ignored := false
			var ignoreSrc ignore.Source
			if s.ignorer != nil {
				ignoreSrc, ignored = s.ignorer.Decide(rel, isDir)
			}

			decision := filter.Include
			if s.filter != nil {
				decision = s.filter.Decide(rel, de.Name(), node, ignored, s.req.Filter.ShowIgnored)
			} else if ignored {
				if s.req.Filter.ShowIgnored {
					decision = filter.IncludeAsIgnoredMarker
				} else {
					decision = filter.Exclude
				}
			}
			if decision == filter.Exclude {
				continue
			}
			if decision == filter.IncludeAsIgnoredMarker {
				node.IgnoredMarker = true
				node.IgnoreSource = string(ignoreSrc)
			}

			// A symlink that points at a directory participates in the
			// dir-descend path only when the request opted in; otherwise
			// it is emitted as a leaf with its target metadata.
			dirLike := node.Kind == scanmodel.KindDir
			if isSymlink && s.req.FollowSymlinkDirs {
				if ti, statErr := os.Stat(full); statErr == nil && ti.IsDir() {
					dirLike = true
				}
			}

			switch {
			case dirLike:
				if node.IgnoredMarker {
					if err := s.emitCounted(emit, scanmodel.ScanEvent{Kind: scanmodel.EventFile, Node: node}); err != nil {
						return err
					}
					stats.DirCount++
					continue
				}

				descend := true
				if isSymlink {
					descend = s.req.FollowSymlinkDirs
					if descend {
						real, loop, err := s.cycles.resolve(full)
						switch {
						case loop:
							if err := s.emitCounted(emit, scanmodel.ScanEvent{
								Kind:   scanmodel.EventInaccessibleDir,
								Path:   rel,
								Reason: "symlink-cycle",
							}); err != nil {
								return err
							}
							continue
						case err != nil:
							descend = false
						default:
							s.cycles.markVisited(real)
						}
					}
				}

				if err := s.emitCounted(emit, scanmodel.ScanEvent{Kind: scanmodel.EventEnterDir, Node: node}); err != nil {
					return err
				}
				stats.DirCount++

				if descend {
					if err := walkDir(full, depth+1); err != nil {
						return err
					}
				}

				if err := emit(scanmodel.ScanEvent{Kind: scanmodel.EventExitDir, Path: rel}); err != nil {
					return err
				}

			default:
				if s.matcher != nil && node.Kind == scanmodel.KindFile && !node.Inaccessible {
					matches, searchErr := s.matcher.Search(full)
					if searchErr == nil {
						node.Matches = matches
						if s.matcher.HardFilter() && len(matches) == 0 {
							continue
						}
						stats.SearchHits += len(matches)
					}
				}

				if err := s.emitCounted(emit, scanmodel.ScanEvent{Kind: scanmodel.EventFile, Node: node}); err != nil {
					return err
				}

				if node.Kind == scanmodel.KindFile {
					stats.FileCount++
					stats.TotalBytes += node.Size
					ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(de.Name()), "."))
					if ext != "" {
						extCounts[ext]++
					}
					largest = trackLargest(largest, scanmodel.SizedEntry{Path: rel, Size: node.Size}, 10)
					if stats.MTimeMin == 0 || node.MTime < stats.MTimeMin {
						stats.MTimeMin = node.MTime
					}
					if node.MTime > stats.MTimeMax {
						stats.MTimeMax = node.MTime
					}
				}
			}
		}
		return nil
	}

	if err := walkDir(s.root, 0); err != nil {
		if err == errCapExceeded {
			stats.Extensions = sortedExtCounts(extCounts)
			stats.LargestN = largest
			_ = emit(scanmodel.ScanEvent{Kind: scanmodel.EventSummary, Stats: stats})
			return stree.New(stree.CodeCapExceeded, "entry cap exceeded", nil).
				WithHint("a smaller MaxDepth, a narrower FilterSpec, or an explicit MaxEntries", "scope the request before retrying", "set MaxDepth to limit recursion")
		}
		return err
	}

	if err := emit(scanmodel.ScanEvent{Kind: scanmodel.EventExitDir, Path: "."}); err != nil {
		return err
	}

	stats.Extensions = sortedExtCounts(extCounts)
	stats.LargestN = largest
	return emit(scanmodel.ScanEvent{Kind: scanmodel.EventSummary, Stats: stats})
}

var errCapExceeded = stree.New(stree.CodeCapExceeded, "entry cap exceeded", nil)

// emitCounted increments the emitted-entry counter and enforces the
// invocation mode's safety cap before forwarding to emit.
func (s *Scanner) emitCounted(emit func(scanmodel.ScanEvent) error, ev scanmodel.ScanEvent) error {
	if n := s.emitted.Add(1); n > int64(s.cap) {
		return errCapExceeded
	}
	return emit(ev)
}

func (s *Scanner) relPath(p string) string {
	rel, err := filepath.Rel(s.root, p)
	if err != nil {
		return p
	}
	return filepath.ToSlash(rel)
}

// classifyReadErr maps a directory-read failure to a short machine-usable
// reason string.
func classifyReadErr(err error) string {
	if os.IsPermission(err) {
		return "permission-denied"
	}
	if os.IsNotExist(err) {
		return "not-found"
	}
	if errors.Is(err, syscall.ENAMETOOLONG) {
		return "path-too-long"
	}
	return "unreadable"
}

// sortEntries orders dir entries deterministically per policy, in place.
func sortEntries(entries []fs.DirEntry, policy scanmodel.SortPolicy) {
	switch policy {
	case scanmodel.SortNameAscending:
		sort.Slice(entries, func(i, j int) bool {
			return entries[i].Name() < entries[j].Name()
		})
	default: // SortDirsFirst
		sort.Slice(entries, func(i, j int) bool {
			a, b := entries[i], entries[j]
			if a.IsDir() != b.IsDir() {
				return a.IsDir()
			}
			return a.Name() < b.Name()
		})
	}
}

// trackLargest maintains a size-descending top-n slice.
func trackLargest(cur []scanmodel.SizedEntry, candidate scanmodel.SizedEntry, n int) []scanmodel.SizedEntry {
	cur = append(cur, candidate)
	sort.Slice(cur, func(i, j int) bool { return cur[i].Size > cur[j].Size })
	if len(cur) > n {
		cur = cur[:n]
	}
	return cur
}

func sortedExtCounts(m map[string]int) []scanmodel.ExtCount {
	out := make([]scanmodel.ExtCount, 0, len(m))
	for ext, count := range m {
		out = append(out, scanmodel.ExtCount{Ext: ext, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Ext < out[j].Ext
	})
	return out
}
