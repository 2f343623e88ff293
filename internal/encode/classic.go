package encode

import (
	"bytes"
	"fmt"

	"github.com/smarttree/smarttree/internal/scanmodel"
)

// classicEncoder renders box-drawing tree art. Children are buffered per
// open directory so connector glyphs can distinguish the last child. When a
// directory closes, its rendered lines are copied into the parent frame
// behind one more prefix, so each line is rebuilt once per enclosing
// directory: work grows with event count times tree depth, not with event
// count alone.
type classicEncoder struct {
	opts Options
	out  bytes.Buffer

	// stack of open directories; index 0 is the root frame.
	stack []*classicFrame
}

type classicFrame struct {
	node     scanmodel.FileNode
	children []renderedChild
}

type renderedChild struct {
	label string
	// sub holds the already-rendered subtree lines of a directory child,
	// each line missing its leading connector prefix.
	sub []string
}

// NewClassic returns the tree-art encoder.
func NewClassic(opts Options) Encoder {
	return &classicEncoder{opts: opts}
}

func (e *classicEncoder) Consume(ev scanmodel.ScanEvent) error {
	switch ev.Kind {
	case scanmodel.EventEnterDir:
		e.stack = append(e.stack, &classicFrame{node: ev.Node})

	case scanmodel.EventExitDir:
		frame := e.stack[len(e.stack)-1]
		e.stack = e.stack[:len(e.stack)-1]

		lines := frame.render()
		if len(e.stack) == 0 {
			// Root closed: flush everything.
			for _, line := range lines {
				e.out.WriteString(line)
				e.out.WriteByte('\n')
			}
			return nil
		}
		parent := e.stack[len(e.stack)-1]
		parent.children = append(parent.children, renderedChild{label: lines[0], sub: lines[1:]})

	case scanmodel.EventFile:
		frame := e.stack[len(e.stack)-1]
		frame.children = append(frame.children, renderedChild{label: fileLabel(ev.Node)})

	case scanmodel.EventInaccessibleDir:
		frame := e.stack[len(e.stack)-1]
		frame.children = append(frame.children, renderedChild{
			label: fmt.Sprintf("%s/ [%s]", lastComponent(ev.Path), ev.Reason),
		})
	}
	return nil
}

// render produces the frame's subtree: the directory's own label first,
// then each child behind its connector.
func (f *classicFrame) render() []string {
	label := f.node.Name() + "/"
	if f.node.Depth == 0 {
		label = f.node.AbsPath
	}
	lines := []string{label}

	for i, child := range f.children {
		last := i == len(f.children)-1
		connector, continuation := "├── ", "│   "
		if last {
			connector, continuation = "└── ", "    "
		}
		lines = append(lines, connector+child.label)
		for _, sub := range child.sub {
			lines = append(lines, continuation+sub)
		}
	}
	return lines
}

func fileLabel(node scanmodel.FileNode) string {
	label := node.Name()
	switch {
	case node.IgnoredMarker:
		if node.Kind == scanmodel.KindDir {
			label += "/"
		}
		label += " [ignored:" + node.IgnoreSource + "]"
	case node.Kind == scanmodel.KindSymlink:
		label += " -> " + node.SymlinkTarget
	case node.Kind == scanmodel.KindDir:
		label += "/"
	default:
		label += fmt.Sprintf(" (%s)", humanSize(node.Size))
	}
	return label
}

func lastComponent(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[i+1:]
		}
	}
	return path
}

func (e *classicEncoder) Finalize() ([]byte, error) {
	// An unbalanced stream (cap abort mid-tree) still renders what was
	// collected: close any frames left open, innermost first.
	for len(e.stack) > 0 {
		if err := e.Consume(scanmodel.ScanEvent{Kind: scanmodel.EventExitDir}); err != nil {
			return nil, err
		}
	}
	return e.out.Bytes(), nil
}
