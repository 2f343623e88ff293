package encode

import (
	"path/filepath"
	"strings"

	"github.com/smarttree/smarttree/internal/relations"
	"github.com/smarttree/smarttree/internal/scanmodel"
)

// relationsEncoder collects the scanned Go files and renders the symbol
// dependency graph at finalize. Parsing waits until the stream closes so
// the builder's worker pool sees the whole file list at once.
type relationsEncoder struct {
	opts  Options
	files []string
}

// NewRelations returns the relations encoder with the default rendering
// (all kinds, Mermaid diagram appended). The tool server builds graphs
// directly when it needs focus or kind filters.
func NewRelations(opts Options) Encoder {
	return &relationsEncoder{opts: opts}
}

func (e *relationsEncoder) Consume(ev scanmodel.ScanEvent) error {
	if ev.Kind != scanmodel.EventFile || ev.Node.Kind != scanmodel.KindFile {
		return nil
	}
	rel, err := filepath.Rel(e.opts.Root, ev.Node.AbsPath)
	if err != nil {
		return nil
	}
	e.files = append(e.files, strings.ReplaceAll(rel, string(filepath.Separator), "/"))
	return nil
}

func (e *relationsEncoder) Finalize() ([]byte, error) {
	goFiles := relations.GoFilesOf(e.files)
	graph := relations.Build(e.opts.Root, goFiles)
	out := relations.Render(graph, relations.RenderOptions{Mermaid: true})
	return []byte(out), nil
}
