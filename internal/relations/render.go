package relations

import (
	"fmt"
	"strings"
)

// RenderOptions scope a relations report.
type RenderOptions struct {
	// Focus restricts output to edges touching this file. Empty renders
	// the whole graph.
	Focus string

	// Kinds filters the relation kinds rendered; empty means all.
	Kinds []Kind

	// Mermaid appends a flowchart block after the text summary.
	Mermaid bool
}

// Render produces the text summary (and optional Mermaid diagram) for a
// built graph.
func Render(g *Graph, opts RenderOptions) string {
	var sb strings.Builder

	sb.WriteString("RELATIONS ")
	sb.WriteString(g.Stats())
	sb.WriteByte('\n')
	if opts.Focus != "" {
		fmt.Fprintf(&sb, "FOCUS %s\n", opts.Focus)
	}

	edges := g.Edges(opts.Kinds, opts.Focus)
	var lastKind Kind
	for _, e := range edges {
		if e.Kind != lastKind {
			fmt.Fprintf(&sb, "[%s]\n", e.Kind)
			lastKind = e.Kind
		}
		fmt.Fprintf(&sb, "  %s -> %s\n", e.From, e.To)
	}
	if len(edges) == 0 {
		sb.WriteString("  (no edges)\n")
	}

	if opts.Focus != "" {
		deps := g.Dependents(opts.Focus)
		if len(deps) > 0 {
			sb.WriteString("DEPENDENTS\n")
			for _, d := range deps {
				fmt.Fprintf(&sb, "  %s\n", d)
			}
		}
	}

	if opts.Mermaid {
		sb.WriteByte('\n')
		sb.WriteString(Mermaid(g, opts))
	}
	return sb.String()
}

// Mermaid renders the selected edges as a flowchart. Node ids reuse the
// arena's stable numeric ids so the diagram survives label collisions.
func Mermaid(g *Graph, opts RenderOptions) string {
	var sb strings.Builder
	sb.WriteString("```mermaid\nflowchart LR\n")

	edges := g.Edges(opts.Kinds, opts.Focus)
	declared := make(map[string]struct{})
	declare := func(path string) string {
		id, _ := g.Lookup(path)
		name := fmt.Sprintf("n%d", id)
		if _, done := declared[path]; !done {
			fmt.Fprintf(&sb, "    %s[\"%s\"]\n", name, path)
			declared[path] = struct{}{}
		}
		return name
	}

	for _, e := range edges {
		from := declare(e.From)
		to := declare(e.To)
		fmt.Fprintf(&sb, "    %s -->|%s| %s\n", from, e.Kind, to)
	}

	sb.WriteString("```\n")
	return sb.String()
}
