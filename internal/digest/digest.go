// Package digest implements the stable-hash outputs of a scan: the
// SHA-256 digest over canonical per-node tuples, the xxh3 args
// fingerprint used as a cache key, the on-disk digest cache with LRU
// eviction, and the persisted per-directory summary artifact.
package digest

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"hash"

	"github.com/smarttree/smarttree/internal/scanmodel"
)

// Hasher accumulates canonical per-entry tuples from an event stream and
// produces the stable scan digest. Excluded entries never reach the hasher
// because they never reach the event stream.
type Hasher struct {
	h hash.Hash
}

// NewHasher returns an empty Hasher.
func NewHasher() *Hasher {
	return &Hasher{h: sha256.New()}
}

// Add folds one emitted node into the digest. The canonical tuple is
// (depth, kind, name, size, perms, mtime), every integer in network byte
// order, the name as raw bytes preceded by its big-endian length.
func (d *Hasher) Add(node scanmodel.FileNode) {
	var buf [8]byte

	binary.BigEndian.PutUint32(buf[:4], uint32(node.Depth))
	d.h.Write(buf[:4])

	buf[0] = byte(node.Kind)
	d.h.Write(buf[:1])

	name := node.Name()
	binary.BigEndian.PutUint32(buf[:4], uint32(len(name)))
	d.h.Write(buf[:4])
	d.h.Write([]byte(name))

	binary.BigEndian.PutUint64(buf[:8], uint64(node.Size))
	d.h.Write(buf[:8])

	binary.BigEndian.PutUint32(buf[:4], node.Perm)
	d.h.Write(buf[:4])

	binary.BigEndian.PutUint64(buf[:8], uint64(node.MTime))
	d.h.Write(buf[:8])
}

// Consume folds the node-bearing events of a stream into the digest.
// ExitDir, InaccessibleDir, and Summary events carry no canonical tuple.
func (d *Hasher) Consume(ev scanmodel.ScanEvent) {
	switch ev.Kind {
	case scanmodel.EventEnterDir, scanmodel.EventFile:
		d.Add(ev.Node)
	}
}

// Sum returns the full 64-hex-character digest.
func (d *Hasher) Sum() string {
	return hex.EncodeToString(d.h.Sum(nil))
}

// Short returns the 16-hex-character truncated digest used by the Digest
// encoder's one-line output.
func (d *Hasher) Short() string {
	return d.Sum()[:16]
}
