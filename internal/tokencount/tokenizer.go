// Package tokencount provides token counting for scan output: the
// Tokenizer interface, a factory selecting a BPE encoding or a fast
// estimator, and a budget report for checking rendered output against a
// caller-specified token ceiling.
//
// Three implementations are provided:
//   - cl100k_base: OpenAI/Anthropic compatible BPE tokenizer (default)
//   - o200k_base:  GPT-4o/o1 BPE tokenizer
//   - none:        Fast character-count estimator (~4 chars per token)
//
// All implementations are goroutine-safe.
package tokencount

import "fmt"

// Tokenizer counts tokens in text content.
type Tokenizer interface {
	// Count returns the number of tokens in the given text. Returns 0 for
	// empty text. Never returns a negative value.
	Count(text string) int

	// Name returns the tokenizer encoding name (e.g., "cl100k_base").
	Name() string
}

// Supported tokenizer encoding names.
const (
	NameCL100K = "cl100k_base"
	NameO200K  = "o200k_base"
	NameNone   = "none"
)

// ErrUnknownTokenizer is returned by NewTokenizer for an unrecognised
// encoding name.
var ErrUnknownTokenizer = fmt.Errorf("unknown tokenizer")

// NewTokenizer returns a Tokenizer for the given encoding name. Passing an
// empty string returns the default cl100k_base tokenizer.
func NewTokenizer(name string) (Tokenizer, error) {
	if name == "" {
		name = NameCL100K
	}

	switch name {
	case NameCL100K, NameO200K:
		return newTiktokenTokenizer(name)
	case NameNone:
		return newEstimatorTokenizer(), nil
	default:
		return nil, fmt.Errorf("%w: %q (supported: cl100k_base, o200k_base, none)", ErrUnknownTokenizer, name)
	}
}
