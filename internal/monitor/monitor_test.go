package monitor

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startMonitor(t *testing.T, root string) *Monitor {
	t.Helper()
	m, err := New(root)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return m
}

func TestMonitorBatchesChanges(t *testing.T) {
	root := t.TempDir()
	m := startMonitor(t, root)

	batches, cancel := m.Subscribe()
	defer cancel()

	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("x"), 0o644))

	select {
	case batch := <-batches:
		require.NotEmpty(t, batch)
		assert.Equal(t, ChangeCreate, batch[0].Kind)
		assert.Contains(t, batch[0].Path, "a.txt")
	case <-time.After(3 * time.Second):
		t.Fatal("no batch within the coalescing window")
	}
}

func TestMonitorWatchesNewDirectories(t *testing.T) {
	root := t.TempDir()
	m := startMonitor(t, root)

	batches, cancel := m.Subscribe()
	defer cancel()

	sub := filepath.Join(root, "sub")
	require.NoError(t, os.Mkdir(sub, 0o755))

	// Give the watcher a moment to register the new directory, then touch
	// a file inside it.
	time.Sleep(500 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(sub, "inner.txt"), []byte("y"), 0o644))

	deadline := time.After(3 * time.Second)
	for {
		select {
		case batch := <-batches:
			for _, c := range batch {
				if filepath.Base(c.Path) == "inner.txt" {
					return
				}
			}
		case <-deadline:
			t.Fatal("change inside new directory never observed")
		}
	}
}

func TestBackpressureNeverDropsStructural(t *testing.T) {
	m := &Monitor{subs: map[chan []Change]struct{}{}}

	for i := 0; i < queueHighWater; i++ {
		m.enqueue(Change{Kind: ChangeWrite, Path: "w"})
	}
	m.enqueue(Change{Kind: ChangeCreate, Path: "c"})
	m.enqueue(Change{Kind: ChangeRemove, Path: "r"})

	stats := m.Stats()
	assert.Positive(t, stats.Dropped)

	var creates, removes int
	for _, c := range m.pending {
		switch c.Kind {
		case ChangeCreate:
			creates++
		case ChangeRemove:
			removes++
		}
	}
	assert.Equal(t, 1, creates)
	assert.Equal(t, 1, removes)
}

func TestStatsEndpoint(t *testing.T) {
	root := t.TempDir()
	m := startMonitor(t, root)

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL + "/stats")
	require.NoError(t, err)
	defer resp.Body.Close()

	var stats Stats
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stats))
	assert.Equal(t, m.Root(), stats.Root)
	assert.GreaterOrEqual(t, stats.WatchedDirs, 1)
}

func TestTreeSnapshotEndpoint(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "file.go"), []byte("package x\n"), 0o644))
	m := startMonitor(t, root)

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL + "/tree")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, 200, resp.StatusCode)

	var tree map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&tree))
	assert.Equal(t, "dir", tree["type"])
}
