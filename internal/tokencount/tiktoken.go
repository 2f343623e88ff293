package tokencount

import (
	"fmt"

	tiktoken "github.com/pkoukk/tiktoken-go"
)

// tiktokenTokenizer is a Tokenizer backed by pkoukk/tiktoken-go.
type tiktokenTokenizer struct {
	name string
	enc  *tiktoken.Tiktoken
}

func newTiktokenTokenizer(encodingName string) (*tiktokenTokenizer, error) {
	enc, err := tiktoken.GetEncoding(encodingName)
	if err != nil {
		return nil, fmt.Errorf("initialising tiktoken encoding %q: %w", encodingName, err)
	}
	return &tiktokenTokenizer{name: encodingName, enc: enc}, nil
}

func (t *tiktokenTokenizer) Count(text string) int {
	if text == "" {
		return 0
	}
	return len(t.enc.Encode(text, nil, nil))
}

func (t *tiktokenTokenizer) Name() string { return t.name }
