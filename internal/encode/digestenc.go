package encode

import (
	"fmt"
	"strings"

	"github.com/smarttree/smarttree/internal/digest"
	"github.com/smarttree/smarttree/internal/scanmodel"
)

// digestTopExtensions bounds the extension buckets on the digest line.
const digestTopExtensions = 5

// digestEncoder folds the stream into the one-line digest: the truncated
// canonical-tuple hash plus headline counters. Stable across runs for
// identical inputs as long as filters and sort order are fixed.
type digestEncoder struct {
	hasher *digest.Hasher
	stats  scanmodel.Statistics
}

// NewDigest returns the digest encoder.
func NewDigest(Options) Encoder {
	return &digestEncoder{hasher: digest.NewHasher()}
}

func (e *digestEncoder) Consume(ev scanmodel.ScanEvent) error {
	e.hasher.Consume(ev)
	if ev.Kind == scanmodel.EventSummary {
		e.stats = ev.Stats
	}
	return nil
}

func (e *digestEncoder) Finalize() ([]byte, error) {
	var types []string
	for i, ec := range e.stats.Extensions {
		if i >= digestTopExtensions {
			break
		}
		types = append(types, fmt.Sprintf("%s:%d", ec.Ext, ec.Count))
	}
	suffix := ""
	if len(types) > 0 {
		suffix = " " + strings.Join(types, ",")
	}
	line := fmt.Sprintf("HASH: %s F:%d D:%d S:%d TYPES:%s\n",
		e.hasher.Short(), e.stats.FileCount, e.stats.DirCount, e.stats.TotalBytes, suffix)
	return []byte(line), nil
}
