package encode

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/smarttree/smarttree/internal/scanmodel"
)

// statsTopExtensions bounds the per-extension histogram; the remainder is
// folded into a tail bucket.
const statsTopExtensions = 10

// statsEncoder aggregates the trailing Summary event into the statistics
// report. All counting happens in the scanner; this encoder only renders.
type statsEncoder struct {
	opts  Options
	stats scanmodel.Statistics
	seen  bool
}

// NewStats returns the statistics encoder.
func NewStats(opts Options) Encoder {
	return &statsEncoder{opts: opts}
}

func (e *statsEncoder) Consume(ev scanmodel.ScanEvent) error {
	if ev.Kind == scanmodel.EventSummary {
		e.stats = ev.Stats
		e.seen = true
	}
	return nil
}

func (e *statsEncoder) Finalize() ([]byte, error) {
	var out bytes.Buffer
	s := e.stats

	fmt.Fprintf(&out, "F:%d D:%d S:%d (%s)\n", s.FileCount, s.DirCount, s.TotalBytes, humanSize(s.TotalBytes))
	fmt.Fprintf(&out, "TYPES:%s\n", formatExtensions(s.Extensions, statsTopExtensions))

	if len(s.LargestN) > 0 {
		out.WriteString("LARGEST:\n")
		for _, entry := range s.LargestN {
			fmt.Fprintf(&out, "  %10s  %s\n", humanSize(entry.Size), entry.Path)
		}
	}
	if s.MTimeMin != 0 || s.MTimeMax != 0 {
		fmt.Fprintf(&out, "MTIME: %08x..%08x\n", uint32(s.MTimeMin), uint32(s.MTimeMax))
	}
	if s.SearchHits > 0 {
		fmt.Fprintf(&out, "SEARCH: %d\n", s.SearchHits)
	}

	// Hex mirror of the headline counters for machine parsing.
	fmt.Fprintf(&out, "HEX: F:%x D:%x S:%x\n", s.FileCount, s.DirCount, s.TotalBytes)
	return out.Bytes(), nil
}

// formatExtensions renders " ext:count ..." for the top-N extensions plus a
// tail bucket, or the empty string when there are none.
func formatExtensions(exts []scanmodel.ExtCount, topN int) string {
	if len(exts) == 0 {
		return ""
	}
	var parts []string
	tail := 0
	for i, ec := range exts {
		if i < topN {
			parts = append(parts, fmt.Sprintf("%s:%d", ec.Ext, ec.Count))
		} else {
			tail += ec.Count
		}
	}
	if tail > 0 {
		parts = append(parts, fmt.Sprintf("other:%d", tail))
	}
	return " " + strings.Join(parts, " ")
}
