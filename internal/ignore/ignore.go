// Package ignore implements the built-in and hierarchical ignore-file
// sources of the filtering engine: one Ignorer implementation per source,
// composed by a CompositeIgnorer, with the library-backed pattern matching
// left to sabhiram/go-gitignore.
package ignore

import "log/slog"

// Ignorer evaluates whether a path should be excluded. path is relative to
// the scan root using forward slashes; isDir indicates whether it names a
// directory (needed for directory-only patterns).
type Ignorer interface {
	IsIgnored(path string, isDir bool) bool
}

// Source identifies which ignore source produced a decision, surfaced on
// IgnoredMarker leaves so callers can tell builtin/gitignore/streeignore
// apart.
type Source string

const (
	SourceBuiltin     Source = "builtin"
	SourceGitignore   Source = "gitignore"
	SourceStreeignore Source = "streeignore"
	SourceNone        Source = ""
)

// CompositeIgnorer chains multiple Ignorer implementations; a path is
// ignored if ANY chained source matches it. DecideSource additionally
// reports which source matched first, in chain order.
type CompositeIgnorer struct {
	named  []namedIgnorer
	logger *slog.Logger
}

type namedIgnorer struct {
	source Source
	ig     Ignorer
}

// NewCompositeIgnorer builds a CompositeIgnorer from the engine's three
// sources. A nil ignorer is permitted and simply never matches.
func NewCompositeIgnorer(builtin, gitignore, streeignore Ignorer) *CompositeIgnorer {
	c := &CompositeIgnorer{logger: slog.Default().With("component", "composite-ignorer")}
	add := func(src Source, ig Ignorer) {
		if ig != nil {
			c.named = append(c.named, namedIgnorer{src, ig})
		}
	}
	add(SourceBuiltin, builtin)
	add(SourceGitignore, gitignore)
	add(SourceStreeignore, streeignore)
	return c
}

// IsIgnored reports whether any chained source matches path.
func (c *CompositeIgnorer) IsIgnored(path string, isDir bool) bool {
	src, _ := c.Decide(path, isDir)
	return src != SourceNone
}

// Decide reports whether path is ignored and, if so, by which source (first
// match in chain order: builtin, gitignore, streeignore).
func (c *CompositeIgnorer) Decide(path string, isDir bool) (Source, bool) {
	for _, n := range c.named {
		if n.ig.IsIgnored(path, isDir) {
			return n.source, true
		}
	}
	return SourceNone, false
}

var _ Ignorer = (*CompositeIgnorer)(nil)
