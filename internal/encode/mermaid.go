package encode

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/smarttree/smarttree/internal/scanmodel"
)

// MermaidVariant selects the diagram family.
type MermaidVariant int

const (
	MermaidFlowchart MermaidVariant = iota
	MermaidMindmap
	MermaidTreemap
)

// mermaidEncoder renders the tree as a Mermaid diagram. Flowchart and
// mindmap stream node-by-node; treemap needs per-directory subtotals and
// therefore buffered mode.
type mermaidEncoder struct {
	opts    Options
	variant MermaidVariant

	nextID  int
	idStack []int
	out     bytes.Buffer

	// treemap subtotals, parallel to idStack.
	sizeStack  []int64
	labelStack []string
	treemap    []treemapRow
}

type treemapRow struct {
	label string
	bytes int64
	depth int
}

// NewMermaid returns the diagram encoder for the chosen variant.
func NewMermaid(opts Options, variant MermaidVariant) Encoder {
	return &mermaidEncoder{opts: opts, variant: variant}
}

func (e *mermaidEncoder) Consume(ev scanmodel.ScanEvent) error {
	switch ev.Kind {
	case scanmodel.EventEnterDir:
		label := ev.Node.Name()
		if ev.Node.Depth == 0 {
			label = ev.Node.AbsPath
		}
		e.enter(label)

	case scanmodel.EventExitDir:
		e.exit()

	case scanmodel.EventFile:
		e.leaf(ev.Node.Name(), ev.Node.Size)
	}
	return nil
}

func (e *mermaidEncoder) enter(label string) {
	id := e.nextID
	e.nextID++

	switch e.variant {
	case MermaidFlowchart:
		if len(e.idStack) > 0 {
			fmt.Fprintf(&e.out, "    n%d --> n%d[\"%s/\"]\n", e.idStack[len(e.idStack)-1], id, escapeMermaid(label))
		} else {
			fmt.Fprintf(&e.out, "    n%d[\"%s\"]\n", id, escapeMermaid(label))
		}
	case MermaidMindmap:
		fmt.Fprintf(&e.out, "%s%s\n", strings.Repeat("  ", len(e.idStack)+1), escapeMermaid(label))
	}

	e.idStack = append(e.idStack, id)
	e.sizeStack = append(e.sizeStack, 0)
	e.labelStack = append(e.labelStack, label)
}

func (e *mermaidEncoder) exit() {
	if len(e.idStack) == 0 {
		return
	}
	depth := len(e.idStack) - 1
	size := e.sizeStack[depth]
	label := e.labelStack[depth]

	e.idStack = e.idStack[:depth]
	e.sizeStack = e.sizeStack[:depth]
	e.labelStack = e.labelStack[:depth]

	if len(e.sizeStack) > 0 {
		e.sizeStack[len(e.sizeStack)-1] += size
	}
	if e.variant == MermaidTreemap {
		e.treemap = append(e.treemap, treemapRow{label: label, bytes: size, depth: depth})
	}
}

func (e *mermaidEncoder) leaf(name string, size int64) {
	if len(e.sizeStack) > 0 {
		e.sizeStack[len(e.sizeStack)-1] += size
	}

	switch e.variant {
	case MermaidFlowchart:
		id := e.nextID
		e.nextID++
		if len(e.idStack) > 0 {
			fmt.Fprintf(&e.out, "    n%d --> n%d[\"%s\"]\n", e.idStack[len(e.idStack)-1], id, escapeMermaid(name))
		}
	case MermaidMindmap:
		fmt.Fprintf(&e.out, "%s%s\n", strings.Repeat("  ", len(e.idStack)+1), escapeMermaid(name))
	}
}

func (e *mermaidEncoder) Finalize() ([]byte, error) {
	for len(e.idStack) > 0 {
		e.exit()
	}

	var out bytes.Buffer
	switch e.variant {
	case MermaidFlowchart:
		out.WriteString("```mermaid\nflowchart TD\n")
		out.Write(e.out.Bytes())
		out.WriteString("```\n")
	case MermaidMindmap:
		out.WriteString("```mermaid\nmindmap\n")
		out.Write(e.out.Bytes())
		out.WriteString("```\n")
	case MermaidTreemap:
		out.WriteString("```mermaid\ntreemap-beta\n")
		// Rows were recorded on directory close (post-order); emit root
		// last entries in reverse so parents precede children.
		for i := len(e.treemap) - 1; i >= 0; i-- {
			row := e.treemap[i]
			indent := strings.Repeat("    ", row.depth+1)
			fmt.Fprintf(&out, "%s\"%s\": %d\n", indent, escapeMermaid(row.label), row.bytes)
		}
		out.WriteString("```\n")
	}
	return out.Bytes(), nil
}

func escapeMermaid(s string) string {
	return strings.NewReplacer("\"", "'", "[", "(", "]", ")").Replace(s)
}
