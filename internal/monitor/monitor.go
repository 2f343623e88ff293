// Package monitor implements the optional live monitor: a recursive
// fsnotify watch over one root, coalesced into timed batches and exposed
// over a local HTTP server as an SSE event stream plus snapshot and stats
// endpoints.
package monitor

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/sync/errgroup"
)

const (
	// batchWindow is the coalescing window for change events.
	batchWindow = 300 * time.Millisecond

	// keepaliveInterval paces SSE comment frames on quiet streams.
	keepaliveInterval = 30 * time.Second

	// queueHighWater bounds the pending batch; past it, non-structural
	// events are dropped oldest-first. Creates and deletes always survive.
	queueHighWater = 4096
)

// ChangeKind classifies a filesystem notification.
type ChangeKind string

const (
	ChangeCreate ChangeKind = "create"
	ChangeWrite  ChangeKind = "write"
	ChangeRemove ChangeKind = "remove"
	ChangeRename ChangeKind = "rename"
	ChangeChmod  ChangeKind = "chmod"
)

// structural reports whether a change alters the tree shape; structural
// events are never dropped under backpressure.
func (k ChangeKind) structural() bool {
	return k == ChangeCreate || k == ChangeRemove || k == ChangeRename
}

// Change is one coalesced filesystem event.
type Change struct {
	Kind ChangeKind `json:"kind"`
	Path string     `json:"path"`
	TS   int64      `json:"ts"` // unix millis, monotonic per stream
}

// Stats counts monitor activity since start.
type Stats struct {
	Root         string `json:"root"`
	WatchedDirs  int    `json:"watched_dirs"`
	EventsSeen   int64  `json:"events_seen"`
	EventsSent   int64  `json:"events_sent"`
	Dropped      int64  `json:"dropped"`
	BatchesSent  int64  `json:"batches_sent"`
	StartedAtMS  int64  `json:"started_at_ms"`
	Subscribers  int    `json:"subscribers"`
}

// Monitor owns one watcher task and one batching task.
type Monitor struct {
	root    string
	watcher *fsnotify.Watcher
	logger  *slog.Logger

	mu      sync.Mutex
	pending []Change
	subs    map[chan []Change]struct{}
	stats   Stats
}

// New builds a Monitor rooted at root (must be a directory) and registers
// the initial recursive watch set.
func New(root string) (*Monitor, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	m := &Monitor{
		root:    abs,
		watcher: watcher,
		logger:  slog.Default().With("component", "monitor"),
		subs:    make(map[chan []Change]struct{}),
	}
	m.stats.Root = abs
	m.stats.StartedAtMS = time.Now().UnixMilli()

	if err := m.addRecursive(abs); err != nil {
		watcher.Close()
		return nil, err
	}
	return m, nil
}

// addRecursive registers root and every directory below it. Unreadable
// subtrees are skipped, matching the scanner's fold-and-continue policy.
func (m *Monitor) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			return filepath.SkipDir
		}
		if !d.IsDir() {
			return nil
		}
		if err := m.watcher.Add(path); err != nil {
			m.logger.Debug("watch add failed", "path", path, "error", err)
			return nil
		}
		m.mu.Lock()
		m.stats.WatchedDirs++
		m.mu.Unlock()
		return nil
	})
}

// Run drives the watcher and batching tasks until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return m.watchLoop(ctx) })
	g.Go(func() error { return m.batchLoop(ctx) })
	err := g.Wait()
	m.watcher.Close()
	if err == context.Canceled {
		return nil
	}
	return err
}

// watchLoop translates fsnotify events into pending changes and extends
// the watch set when directories appear.
func (m *Monitor) watchLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-m.watcher.Events:
			if !ok {
				return nil
			}
			change := Change{Path: ev.Name, TS: time.Now().UnixMilli()}
			switch {
			case ev.Op.Has(fsnotify.Create):
				change.Kind = ChangeCreate
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					m.addRecursive(ev.Name)
				}
			case ev.Op.Has(fsnotify.Remove):
				change.Kind = ChangeRemove
			case ev.Op.Has(fsnotify.Rename):
				change.Kind = ChangeRename
			case ev.Op.Has(fsnotify.Write):
				change.Kind = ChangeWrite
			case ev.Op.Has(fsnotify.Chmod):
				change.Kind = ChangeChmod
			default:
				continue
			}
			m.enqueue(change)

		case err, ok := <-m.watcher.Errors:
			if !ok {
				return nil
			}
			m.logger.Warn("watcher error", "error", err)
		}
	}
}

// enqueue appends a change, applying the backpressure policy at the high
// water mark.
func (m *Monitor) enqueue(change Change) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stats.EventsSeen++
	if len(m.pending) >= queueHighWater {
		if dropped := m.dropOldestNonStructural(); !dropped && !change.Kind.structural() {
			m.stats.Dropped++
			return
		}
	}
	m.pending = append(m.pending, change)
}

// dropOldestNonStructural removes the first write/chmod entry; creates,
// removes, and renames are never sacrificed.
func (m *Monitor) dropOldestNonStructural() bool {
	for i, c := range m.pending {
		if !c.Kind.structural() {
			m.pending = append(m.pending[:i], m.pending[i+1:]...)
			m.stats.Dropped++
			return true
		}
	}
	return false
}

// batchLoop flushes pending changes to subscribers on the coalescing
// window.
func (m *Monitor) batchLoop(ctx context.Context) error {
	ticker := time.NewTicker(batchWindow)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			m.flush()
		}
	}
}

func (m *Monitor) flush() {
	m.mu.Lock()
	if len(m.pending) == 0 {
		m.mu.Unlock()
		return
	}
	batch := m.pending
	m.pending = nil
	m.stats.BatchesSent++
	m.stats.EventsSent += int64(len(batch))
	subs := make([]chan []Change, 0, len(m.subs))
	for ch := range m.subs {
		subs = append(subs, ch)
	}
	m.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- batch:
		default:
			// Slow subscriber: skip this batch for it rather than block
			// the batching task.
		}
	}
}

// Subscribe registers an SSE consumer. The returned cancel function must
// be called when the consumer goes away.
func (m *Monitor) Subscribe() (<-chan []Change, func()) {
	ch := make(chan []Change, 16)
	m.mu.Lock()
	m.subs[ch] = struct{}{}
	m.stats.Subscribers = len(m.subs)
	m.mu.Unlock()

	return ch, func() {
		m.mu.Lock()
		delete(m.subs, ch)
		m.stats.Subscribers = len(m.subs)
		m.mu.Unlock()
	}
}

// Stats returns a snapshot of the counters.
func (m *Monitor) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.stats
	s.Subscribers = len(m.subs)
	return s
}

// Root returns the watched root.
func (m *Monitor) Root() string { return m.root }
