package digest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smarttree/smarttree/internal/scanmodel"
)

func node(path string, kind scanmodel.EntryKind, size int64) scanmodel.FileNode {
	return scanmodel.FileNode{AbsPath: path, Kind: kind, Size: size, MTime: 1700000000, Perm: 0o644}
}

func TestHasherStableAcrossRuns(t *testing.T) {
	events := []scanmodel.ScanEvent{
		{Kind: scanmodel.EventEnterDir, Node: node("/r", scanmodel.KindDir, 0)},
		{Kind: scanmodel.EventFile, Node: node("/r/a.go", scanmodel.KindFile, 10)},
		{Kind: scanmodel.EventExitDir, Path: "."},
	}

	h1 := NewHasher()
	h2 := NewHasher()
	for _, ev := range events {
		h1.Consume(ev)
		h2.Consume(ev)
	}

	assert.Equal(t, h1.Sum(), h2.Sum())
	assert.Len(t, h1.Short(), 16)
}

func TestHasherSensitiveToNodeTuple(t *testing.T) {
	base := NewHasher()
	base.Add(node("/r/a.go", scanmodel.KindFile, 10))

	changedSize := NewHasher()
	changedSize.Add(node("/r/a.go", scanmodel.KindFile, 11))
	assert.NotEqual(t, base.Sum(), changedSize.Sum())

	changedName := NewHasher()
	changedName.Add(node("/r/b.go", scanmodel.KindFile, 10))
	assert.NotEqual(t, base.Sum(), changedName.Sum())
}

func TestHasherIgnoresNonNodeEvents(t *testing.T) {
	h1 := NewHasher()
	h1.Consume(scanmodel.ScanEvent{Kind: scanmodel.EventFile, Node: node("/r/a", scanmodel.KindFile, 1)})

	h2 := NewHasher()
	h2.Consume(scanmodel.ScanEvent{Kind: scanmodel.EventFile, Node: node("/r/a", scanmodel.KindFile, 1)})
	h2.Consume(scanmodel.ScanEvent{Kind: scanmodel.EventExitDir, Path: "."})
	h2.Consume(scanmodel.ScanEvent{Kind: scanmodel.EventInaccessibleDir, Path: "x", Reason: "permission-denied"})
	h2.Consume(scanmodel.ScanEvent{Kind: scanmodel.EventSummary, Stats: scanmodel.Statistics{FileCount: 1}})

	assert.Equal(t, h1.Sum(), h2.Sum())
}

func TestFingerprintDeterministicAndDistinct(t *testing.T) {
	a := scanmodel.ScanRequest{Root: "/tmp/x", Encoder: "hex", MaxDepth: 3}
	b := a
	assert.Equal(t, Fingerprint(a), Fingerprint(b))

	b.MaxDepth = 4
	assert.NotEqual(t, Fingerprint(a), Fingerprint(b))

	c := a
	c.Search = &scanmodel.SearchSpec{Pattern: "todo"}
	assert.NotEqual(t, Fingerprint(a), Fingerprint(c))
	assert.Len(t, Fingerprint(a), 16)
}

func TestCachePutGetRoundTrip(t *testing.T) {
	cache, err := NewCache(t.TempDir(), 0, 0)
	require.NoError(t, err)

	entry := CacheEntry{
		Fingerprint: "abc123",
		Digest:      "deadbeefdeadbeef",
		RootMTime:   42,
		CreatedAt:   time.Now(),
		Payload:     []byte("HASH: deadbeefdeadbeef F:1 D:1"),
	}
	require.NoError(t, cache.Put(entry))

	got := cache.Get("abc123", 42)
	require.NotNil(t, got)
	assert.Equal(t, entry.Digest, got.Digest)
	assert.Equal(t, entry.Payload, got.Payload)
}

func TestCacheInvalidatedByMTime(t *testing.T) {
	cache, err := NewCache(t.TempDir(), 0, 0)
	require.NoError(t, err)

	require.NoError(t, cache.Put(CacheEntry{Fingerprint: "fp", Digest: "d", RootMTime: 1, CreatedAt: time.Now()}))
	assert.Nil(t, cache.Get("fp", 2), "stale mtime must miss")
	assert.Nil(t, cache.Get("fp", 1), "stale entry must have been evicted")
}

func TestCacheTTLExpiry(t *testing.T) {
	cache, err := NewCache(t.TempDir(), 0, time.Millisecond)
	require.NoError(t, err)

	require.NoError(t, cache.Put(CacheEntry{Fingerprint: "fp", Digest: "d", RootMTime: 1, CreatedAt: time.Now().Add(-time.Second)}))
	assert.Nil(t, cache.Get("fp", 1))
}

func TestCacheLRUEviction(t *testing.T) {
	cache, err := NewCache(t.TempDir(), 300, 0)
	require.NoError(t, err)

	payload := make([]byte, 100)
	require.NoError(t, cache.Put(CacheEntry{Fingerprint: "old", Digest: "d", RootMTime: 1, CreatedAt: time.Now(), Payload: payload}))
	require.NoError(t, cache.Put(CacheEntry{Fingerprint: "new", Digest: "d", RootMTime: 1, CreatedAt: time.Now(), Payload: payload}))

	assert.Nil(t, cache.Get("old", 1), "oldest entry evicted when over byte budget")
	assert.NotNil(t, cache.Get("new", 1))
}

func TestCacheReloadsIndexFromDisk(t *testing.T) {
	dir := t.TempDir()
	cache, err := NewCache(dir, 0, 0)
	require.NoError(t, err)
	require.NoError(t, cache.Put(CacheEntry{Fingerprint: "persist", Digest: "d", RootMTime: 7, CreatedAt: time.Now()}))

	reopened, err := NewCache(dir, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, reopened.Len())
	assert.NotNil(t, reopened.Get("persist", 7))
}
