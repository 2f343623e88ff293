package encode

import (
	"bytes"
	"fmt"

	"github.com/smarttree/smarttree/internal/scanmodel"
)

// markdownEncoder renders the full report: classic tree in a code fence,
// statistics, the largest-files table, and a Mermaid pie of the extension
// histogram. It needs the buffered stream because the tables are derived
// after the tree section is rendered.
type markdownEncoder struct {
	opts  Options
	tree  Encoder
	stats scanmodel.Statistics
}

// NewMarkdown returns the Markdown report encoder.
func NewMarkdown(opts Options) Encoder {
	return &markdownEncoder{opts: opts, tree: NewClassic(opts)}
}

func (e *markdownEncoder) Consume(ev scanmodel.ScanEvent) error {
	if ev.Kind == scanmodel.EventSummary {
		e.stats = ev.Stats
	}
	return e.tree.Consume(ev)
}

func (e *markdownEncoder) Finalize() ([]byte, error) {
	var out bytes.Buffer

	fmt.Fprintf(&out, "# %s\n\n", e.opts.Root)

	out.WriteString("## Tree\n\n```\n")
	tree, err := e.tree.Finalize()
	if err != nil {
		return nil, err
	}
	out.Write(tree)
	out.WriteString("```\n\n")

	s := e.stats
	out.WriteString("## Statistics\n\n")
	out.WriteString("| Metric | Value |\n|---|---|\n")
	fmt.Fprintf(&out, "| Files | %d |\n", s.FileCount)
	fmt.Fprintf(&out, "| Directories | %d |\n", s.DirCount)
	fmt.Fprintf(&out, "| Total size | %s |\n", humanSize(s.TotalBytes))
	if s.SearchHits > 0 {
		fmt.Fprintf(&out, "| Search hits | %d |\n", s.SearchHits)
	}
	out.WriteByte('\n')

	if len(s.LargestN) > 0 {
		out.WriteString("## Largest files\n\n| Size | Path |\n|---|---|\n")
		for _, entry := range s.LargestN {
			fmt.Fprintf(&out, "| %s | %s |\n", humanSize(entry.Size), entry.Path)
		}
		out.WriteByte('\n')
	}

	if len(s.Extensions) > 0 {
		out.WriteString("## File types\n\n```mermaid\npie title Files by extension\n")
		for i, ec := range s.Extensions {
			if i >= statsTopExtensions {
				break
			}
			fmt.Fprintf(&out, "    \"%s\" : %d\n", ec.Ext, ec.Count)
		}
		out.WriteString("```\n")
	}

	return out.Bytes(), nil
}
