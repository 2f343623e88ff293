// Package encode implements the encoder set: stateless sinks that project
// a scan event stream into the supported output representations. Every
// encoder is a pure function of the stream and its Options; repeating a
// scan with the same inputs yields byte-identical output.
package encode

import (
	"fmt"
	"sort"
	"strings"

	"github.com/smarttree/smarttree/internal/scanmodel"
	"github.com/smarttree/smarttree/internal/stree"
)

// Encoder consumes scan events and produces the final byte rendering.
// Consume is called once per event in stream order; Finalize exactly once
// after the last event.
type Encoder interface {
	Consume(ev scanmodel.ScanEvent) error
	Finalize() ([]byte, error)
}

// Options carries the per-call configuration encoders may depend on.
type Options struct {
	Request scanmodel.ScanRequest

	// Root is the absolute scan root, used for relative-path rendering.
	Root string

	// Project is the detected project context, consumed by the AI encoder.
	Project *scanmodel.ProjectContext
}

// displayPath renders a node path according to the request's display mode.
func (o Options) displayPath(node scanmodel.FileNode) string {
	switch o.Request.PathDisplay {
	case scanmodel.PathAbsolute:
		return node.AbsPath
	case scanmodel.PathRelative:
		rel := strings.TrimPrefix(node.AbsPath, o.Root)
		rel = strings.TrimPrefix(rel, "/")
		if rel == "" {
			rel = "."
		}
		return rel
	default:
		return node.Name()
	}
}

// Factory constructs a fresh encoder for one scan.
type Factory func(Options) Encoder

// registry maps encoder selection tags to factories. Names double as the
// CLI/tool-server encoder vocabulary.
var registry = map[string]Factory{
	"classic":         NewClassic,
	"hex":             NewHex,
	"stats":           NewStats,
	"digest":          NewDigest,
	"ai":              NewAI,
	"json":            NewJSON,
	"csv":             func(o Options) Encoder { return NewSeparated(o, ',') },
	"tsv":             func(o Options) Encoder { return NewSeparated(o, '\t') },
	"quantum":         NewQuantum,
	"semantic":        NewSemantic,
	"markdown":        NewMarkdown,
	"mermaid":         func(o Options) Encoder { return NewMermaid(o, MermaidFlowchart) },
	"mermaid-mindmap": func(o Options) Encoder { return NewMermaid(o, MermaidMindmap) },
	"mermaid-treemap": func(o Options) Encoder { return NewMermaid(o, MermaidTreemap) },
	"sse":             NewSSE,
	"relations":       NewRelations,
}

// buffered lists encoders that need the full event stream materialized
// before they can start (random access over the tree shape).
var buffered = map[string]bool{
	"markdown":        true,
	"mermaid-treemap": true,
}

// New looks up name (defaulting to "classic") and builds the encoder.
func New(name string, opts Options) (Encoder, error) {
	if name == "" {
		name = "classic"
	}
	factory, ok := registry[name]
	if !ok {
		return nil, stree.New(stree.CodeInvalidParams, fmt.Sprintf("unknown encoder %q", name), nil).
			WithHint("one of: "+strings.Join(Names(), ", "), "pick an encoder from the registry", `{"encoder":"classic"}`)
	}
	return factory(opts), nil
}

// Names returns the sorted encoder vocabulary.
func Names() []string {
	out := make([]string, 0, len(registry))
	for name := range registry {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// NeedsBuffered reports whether the named encoder requires buffered mode.
func NeedsBuffered(name string) bool { return buffered[name] }

// Run drives a complete event slice through a fresh encoder.
func Run(name string, opts Options, events []scanmodel.ScanEvent) ([]byte, error) {
	enc, err := New(name, opts)
	if err != nil {
		return nil, err
	}
	for _, ev := range events {
		if err := enc.Consume(ev); err != nil {
			return nil, err
		}
	}
	return enc.Finalize()
}

// humanSize renders a byte count with binary units, one decimal place.
func humanSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
