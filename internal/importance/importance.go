// Package importance implements tier-based scoring of source-code symbols.
// The semantic encoder uses these scores to decide which symbols survive
// collapsing and which identifiers earn stream-local tokens.
//
// Design note: the rubric is a fixed priority model, highest first:
// exported/public symbols, program entry points, documented symbols, test
// symbols, private symbols. A language not in the closed extension set
// yields no symbols rather than a guess.
package importance

import "fmt"

// Tier ranks a symbol. Lower numbers indicate higher importance.
type Tier int

const (
	// TierExported covers public/exported symbols: the API surface.
	TierExported Tier = 0

	// TierEntry covers program entry points (main, init).
	TierEntry Tier = 1

	// TierDocumented covers unexported symbols carrying a doc comment.
	TierDocumented Tier = 2

	// TierTest covers test functions and test helpers.
	TierTest Tier = 3

	// TierPrivate is everything else.
	TierPrivate Tier = 4
)

// String returns a human-readable label for the tier.
func (t Tier) String() string {
	switch t {
	case TierExported:
		return "exported"
	case TierEntry:
		return "entry"
	case TierDocumented:
		return "documented"
	case TierTest:
		return "test"
	case TierPrivate:
		return "private"
	default:
		return fmt.Sprintf("tier%d", int(t))
	}
}

// Score converts a tier to the numeric weight the semantic encoder embeds;
// larger is more important.
func (t Tier) Score() int {
	return int(TierPrivate) - int(t) + 1
}

// SymbolKind classifies a declared symbol.
type SymbolKind string

const (
	KindFunc   SymbolKind = "func"
	KindMethod SymbolKind = "method"
	KindType   SymbolKind = "type"
	KindVar    SymbolKind = "var"
	KindConst  SymbolKind = "const"
)

// Symbol is one scored declaration extracted from a source file.
type Symbol struct {
	Name       string
	Kind       SymbolKind
	Line       int // 1-based declaration line
	Tier       Tier
	Documented bool
	Receiver   string // method receiver type, "" otherwise
}

// DefaultCollapseTier is the threshold below which the semantic encoder
// collapses symbols: anything less important than TierDocumented is
// summarized as a count instead of listed.
const DefaultCollapseTier = TierDocumented
