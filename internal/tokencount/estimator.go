package tokencount

// estimatorTokenizer is the "none" Tokenizer implementation: len(text)/4,
// the widely used approximate-4-characters-per-token heuristic. It holds
// no state and performs no I/O.
type estimatorTokenizer struct{}

func newEstimatorTokenizer() *estimatorTokenizer { return &estimatorTokenizer{} }

func (e *estimatorTokenizer) Count(text string) int { return len(text) / 4 }

func (e *estimatorTokenizer) Name() string { return NameNone }
