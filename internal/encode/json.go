package encode

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/smarttree/smarttree/internal/scanmodel"
)

// jsonNode is the nested-object shape of the JSON encoding.
type jsonNode struct {
	Path        string      `json:"path"`
	Name        string      `json:"name"`
	Type        string      `json:"type"`
	Size        int64       `json:"size"`
	Permissions string      `json:"permissions"`
	Modified    string      `json:"modified"`
	Children    []*jsonNode `json:"children,omitempty"`
}

// jsonEncoder materializes the nested tree and marshals it at finalize.
type jsonEncoder struct {
	opts  Options
	stack []*jsonNode
	root  *jsonNode
}

// NewJSON returns the nested-JSON encoder.
func NewJSON(opts Options) Encoder {
	return &jsonEncoder{opts: opts}
}

func (e *jsonEncoder) toNode(node scanmodel.FileNode) *jsonNode {
	return &jsonNode{
		Path:        node.AbsPath,
		Name:        node.Name(),
		Type:        node.Kind.String(),
		Size:        node.Size,
		Permissions: fmt.Sprintf("%04o", node.Perm),
		Modified:    node.ModTime().Format(time.RFC3339),
	}
}

func (e *jsonEncoder) Consume(ev scanmodel.ScanEvent) error {
	switch ev.Kind {
	case scanmodel.EventEnterDir:
		n := e.toNode(ev.Node)
		if len(e.stack) == 0 {
			e.root = n
		} else {
			parent := e.stack[len(e.stack)-1]
			parent.Children = append(parent.Children, n)
		}
		e.stack = append(e.stack, n)

	case scanmodel.EventExitDir:
		if len(e.stack) > 0 {
			e.stack = e.stack[:len(e.stack)-1]
		}

	case scanmodel.EventFile:
		if len(e.stack) > 0 {
			parent := e.stack[len(e.stack)-1]
			parent.Children = append(parent.Children, e.toNode(ev.Node))
		}

	case scanmodel.EventInaccessibleDir:
		if len(e.stack) > 0 {
			parent := e.stack[len(e.stack)-1]
			parent.Children = append(parent.Children, &jsonNode{
				Path: ev.Path,
				Name: lastComponent(ev.Path),
				Type: "inaccessible:" + ev.Reason,
			})
		}
	}
	return nil
}

func (e *jsonEncoder) Finalize() ([]byte, error) {
	if e.root == nil {
		return []byte("{}\n"), nil
	}
	data, err := json.MarshalIndent(e.root, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// separatedEncoder emits one row per node with CSV or TSV separators:
// path, name, type, size, permissions, modified. Paths are absolute and
// mtimes ISO-8601.
type separatedEncoder struct {
	opts Options
	sep  byte
	out  bytes.Buffer
}

// NewSeparated returns the CSV (sep ',') or TSV (sep '\t') encoder.
func NewSeparated(opts Options, sep byte) Encoder {
	e := &separatedEncoder{opts: opts, sep: sep}
	e.writeRow("path", "name", "type", "size", "permissions", "modified")
	return e
}

func (e *separatedEncoder) Consume(ev scanmodel.ScanEvent) error {
	switch ev.Kind {
	case scanmodel.EventEnterDir, scanmodel.EventFile:
		node := ev.Node
		e.writeRow(
			node.AbsPath,
			node.Name(),
			node.Kind.String(),
			strconv.FormatInt(node.Size, 10),
			fmt.Sprintf("%04o", node.Perm),
			node.ModTime().Format(time.RFC3339),
		)
	}
	return nil
}

func (e *separatedEncoder) writeRow(fields ...string) {
	for i, f := range fields {
		if i > 0 {
			e.out.WriteByte(e.sep)
		}
		e.out.WriteString(e.quote(f))
	}
	e.out.WriteByte('\n')
}

// quote applies CSV quoting when the field contains the separator or a
// quote; TSV rows replace embedded tabs instead, matching the common
// loose-TSV convention.
func (e *separatedEncoder) quote(field string) string {
	if e.sep == '\t' {
		return string(bytes.ReplaceAll([]byte(field), []byte{'\t'}, []byte{' '}))
	}
	if bytes.ContainsAny([]byte(field), ",\"\n") {
		return `"` + string(bytes.ReplaceAll([]byte(field), []byte{'"'}, []byte{'"', '"'})) + `"`
	}
	return field
}

func (e *separatedEncoder) Finalize() ([]byte, error) {
	return e.out.Bytes(), nil
}
