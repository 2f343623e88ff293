package encode

import (
	"bytes"
	"fmt"

	"github.com/smarttree/smarttree/internal/scanmodel"
)

// hexEncoder emits one fixed-width line per node: depth, permission bits,
// uid/gid, size, mtime, kind tag, name. No indentation; the format is
// diffable and cheap for models to consume.
type hexEncoder struct {
	opts Options
	out  bytes.Buffer
}

// NewHex returns the fixed-width hex encoder.
func NewHex(opts Options) Encoder {
	return &hexEncoder{opts: opts}
}

func (e *hexEncoder) Consume(ev scanmodel.ScanEvent) error {
	switch ev.Kind {
	case scanmodel.EventEnterDir, scanmodel.EventFile:
		e.out.WriteString(hexLine(ev.Node, e.opts.displayPath(ev.Node)))
	case scanmodel.EventInaccessibleDir:
		fmt.Fprintf(&e.out, "%x 000 0000 0000 00000000 00000000 d %s [%s]\n",
			depthDigit(0), ev.Path, ev.Reason)
	}
	return nil
}

func (e *hexEncoder) Finalize() ([]byte, error) {
	return e.out.Bytes(), nil
}

// hexLine renders the canonical hex row for a node. Depth is a single hex
// digit capped at 0xF.
func hexLine(node scanmodel.FileNode, name string) string {
	return fmt.Sprintf("%x %03x %04x %04x %08x %08x %c %s\n",
		depthDigit(node.Depth),
		node.Perm&0xFFF,
		node.UID&0xFFFF,
		node.GID&0xFFFF,
		uint32(node.Size),
		uint32(node.MTime),
		node.Kind.Tag(),
		name,
	)
}

func depthDigit(depth int) int {
	if depth > 0xF {
		return 0xF
	}
	return depth
}
