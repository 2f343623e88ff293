package digest

import (
	"container/list"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// CacheEntry is one persisted digest-cache record.
type CacheEntry struct {
	Fingerprint string    `json:"fingerprint"`
	Digest      string    `json:"digest"`
	RootMTime   int64     `json:"root_mtime"`
	CreatedAt   time.Time `json:"created_at"`
	Bytes       int64     `json:"bytes"`
	Payload     []byte    `json:"payload,omitempty"`
}

// Cache is an on-disk digest cache keyed by args_fingerprint, with TTL
// expiry and byte-bounded LRU eviction. One JSON file per entry under dir;
// the in-memory index orders entries by recency.
type Cache struct {
	mu       sync.Mutex
	dir      string
	ttl      time.Duration
	maxBytes int64

	order *list.List               // front = most recent
	index map[string]*list.Element // fingerprint -> element
	total int64
	log   *slog.Logger
}

type cacheSlot struct {
	fingerprint string
	bytes       int64
}

// NewCache opens (creating if necessary) a cache directory. A zero
// maxBytes selects 64 MiB; a zero ttl selects 24 hours.
func NewCache(dir string, maxBytes int64, ttl time.Duration) (*Cache, error) {
	if maxBytes <= 0 {
		maxBytes = 64 << 20
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	c := &Cache{
		dir:      dir,
		ttl:      ttl,
		maxBytes: maxBytes,
		order:    list.New(),
		index:    make(map[string]*list.Element),
		log:      slog.Default().With("component", "digest-cache"),
	}
	c.load()
	return c, nil
}

// load rebuilds the recency index from the files already on disk, oldest
// first so surviving entries end up in mtime order.
func (c *Cache) load() {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return
	}
	type onDisk struct {
		name  string
		mtime time.Time
		size  int64
	}
	var found []onDisk
	for _, de := range entries {
		if de.IsDir() || filepath.Ext(de.Name()) != ".json" {
			continue
		}
		info, err := de.Info()
		if err != nil {
			continue
		}
		found = append(found, onDisk{de.Name(), info.ModTime(), info.Size()})
	}
	for i := range found {
		for j := i + 1; j < len(found); j++ {
			if found[j].mtime.Before(found[i].mtime) {
				found[i], found[j] = found[j], found[i]
			}
		}
	}
	for _, f := range found {
		fp := f.name[:len(f.name)-len(".json")]
		el := c.order.PushFront(cacheSlot{fingerprint: fp, bytes: f.size})
		c.index[fp] = el
		c.total += f.size
	}
}

func (c *Cache) path(fingerprint string) string {
	return filepath.Join(c.dir, fingerprint+".json")
}

// Get returns the cached entry for fingerprint, or nil when absent,
// expired, or stale against rootMTime (the current mtime of the scan
// root). Stale and expired entries are removed as a side effect.
func (c *Cache) Get(fingerprint string, rootMTime int64) *CacheEntry {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.index[fingerprint]
	if !ok {
		return nil
	}

	data, err := os.ReadFile(c.path(fingerprint))
	if err != nil {
		c.evictLocked(el)
		return nil
	}
	var entry CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		c.evictLocked(el)
		return nil
	}

	if time.Since(entry.CreatedAt) > c.ttl || entry.RootMTime != rootMTime {
		c.evictLocked(el)
		return nil
	}

	c.order.MoveToFront(el)
	return &entry
}

// Put stores an entry, evicting least-recently-used records until the byte
// budget holds.
func (c *Cache) Put(entry CacheEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.index[entry.Fingerprint]; ok {
		c.evictLocked(el)
	}

	if err := os.WriteFile(c.path(entry.Fingerprint), data, 0o644); err != nil {
		return err
	}

	el := c.order.PushFront(cacheSlot{fingerprint: entry.Fingerprint, bytes: int64(len(data))})
	c.index[entry.Fingerprint] = el
	c.total += int64(len(data))

	for c.total > c.maxBytes && c.order.Len() > 1 {
		c.evictLocked(c.order.Back())
	}
	return nil
}

// evictLocked removes one slot from the index and its file from disk.
func (c *Cache) evictLocked(el *list.Element) {
	slot := el.Value.(cacheSlot)
	c.order.Remove(el)
	delete(c.index, slot.fingerprint)
	c.total -= slot.bytes
	if err := os.Remove(c.path(slot.fingerprint)); err != nil && !os.IsNotExist(err) {
		c.log.Debug("cache eviction failed", "fingerprint", slot.fingerprint, "error", err)
	}
}

// Len reports the number of indexed entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
