package encode

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/smarttree/smarttree/internal/importance"
	"github.com/smarttree/smarttree/internal/quantum"
	"github.com/smarttree/smarttree/internal/scanmodel"
)

// quantumEncoder buffers the stream and defers to the quantum codec; the
// codec's token allocation needs the whole stream before the header can be
// written.
type quantumEncoder struct {
	events []scanmodel.ScanEvent
}

// NewQuantum returns the binary quantum encoder.
func NewQuantum(Options) Encoder {
	return &quantumEncoder{}
}

func (e *quantumEncoder) Consume(ev scanmodel.ScanEvent) error {
	e.events = append(e.events, ev)
	return nil
}

func (e *quantumEncoder) Finalize() ([]byte, error) {
	return quantum.Encode(e.events), nil
}

// DecodeTo reconstructs the event stream from a quantum byte stream and
// re-projects it through the named encoder. The round-trip contract is
// that the result matches running the target encoder on the original
// stream directly.
func DecodeTo(stream []byte, name string, opts Options) ([]byte, error) {
	events, err := quantum.Decode(stream)
	if err != nil {
		return nil, err
	}
	return Run(name, opts, events)
}

// semanticEncoder augments the quantum stream with per-symbol importance
// scores for the Go sources in the scan. Symbols below the collapse
// threshold are folded into a count; identifiers that survive are seeded
// into the embedded stream's token table as project-specific vocabulary.
type semanticEncoder struct {
	opts   Options
	events []scanmodel.ScanEvent
	files  []scanmodel.FileNode
}

// NewSemantic returns the quantum-semantic encoder.
func NewSemantic(opts Options) Encoder {
	return &semanticEncoder{opts: opts}
}

func (e *semanticEncoder) Consume(ev scanmodel.ScanEvent) error {
	e.events = append(e.events, ev)
	if ev.Kind == scanmodel.EventFile && ev.Node.Kind == scanmodel.KindFile {
		if _, err := importance.LanguageFor(ev.Node.AbsPath); err == nil {
			e.files = append(e.files, ev.Node)
		}
	}
	return nil
}

func (e *semanticEncoder) Finalize() ([]byte, error) {
	var out bytes.Buffer
	out.WriteString("QUANTUM_SEMANTIC_V1\n")

	// Surviving symbol names become the project-specific vocabulary the
	// embedded quantum stream's token table is extended with. File order
	// is stream order and symbols are tier-sorted, so the list (and with
	// it the table) is deterministic.
	var vocabulary []string
	seen := make(map[string]struct{})

	for _, node := range e.files {
		rel := e.relOf(node)
		symbols, err := importance.AnalyzeFile(node.AbsPath, os.ReadFile)
		if err != nil {
			fmt.Fprintf(&out, "FILE: %s (unparsed)\n", rel)
			continue
		}
		fmt.Fprintf(&out, "FILE: %s\n", rel)
		collapsed := 0
		for _, sym := range symbols {
			if sym.Tier > importance.DefaultCollapseTier {
				collapsed++
				continue
			}
			name := sym.Name
			if sym.Receiver != "" {
				name = sym.Receiver + "." + name
			}
			fmt.Fprintf(&out, "  %d %s %s %s score=%d\n", sym.Line, sym.Tier, sym.Kind, name, sym.Tier.Score())
			if _, dup := seen[sym.Name]; !dup {
				seen[sym.Name] = struct{}{}
				vocabulary = append(vocabulary, sym.Name)
			}
		}
		if collapsed > 0 {
			fmt.Fprintf(&out, "  (%d collapsed)\n", collapsed)
		}
	}
	out.WriteString("ENDSEM\n")

	out.Write(quantum.EncodeWithVocabulary(e.events, vocabulary))
	return out.Bytes(), nil
}

func (e *semanticEncoder) relOf(node scanmodel.FileNode) string {
	rel, err := filepath.Rel(e.opts.Root, node.AbsPath)
	if err != nil {
		return node.AbsPath
	}
	return strings.ReplaceAll(rel, string(filepath.Separator), "/")
}
