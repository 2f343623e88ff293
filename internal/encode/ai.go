package encode

import (
	"bytes"
	"fmt"

	"github.com/smarttree/smarttree/internal/digest"
	"github.com/smarttree/smarttree/internal/scanmodel"
)

// aiEncoder is the default AI-oriented text output: a version-tagged
// header with project context and stream hash, the hex body, and the
// statistics footer.
type aiEncoder struct {
	opts   Options
	hasher *digest.Hasher
	body   Encoder
	stats  Encoder
}

// NewAI returns the AI encoder.
func NewAI(opts Options) Encoder {
	return &aiEncoder{
		opts:   opts,
		hasher: digest.NewHasher(),
		body:   NewHex(opts),
		stats:  NewStats(opts),
	}
}

func (e *aiEncoder) Consume(ev scanmodel.ScanEvent) error {
	e.hasher.Consume(ev)
	if err := e.body.Consume(ev); err != nil {
		return err
	}
	return e.stats.Consume(ev)
}

func (e *aiEncoder) Finalize() ([]byte, error) {
	var out bytes.Buffer

	fmt.Fprintf(&out, "AI_V1 %s\n", e.hasher.Short())
	if p := e.opts.Project; p != nil && p.Kind != scanmodel.ProjectUnknown {
		fmt.Fprintf(&out, "PROJECT: %s", p.Kind)
		if p.Description != "" {
			fmt.Fprintf(&out, " - %s", p.Description)
		}
		out.WriteByte('\n')
	}

	body, err := e.body.Finalize()
	if err != nil {
		return nil, err
	}
	out.Write(body)

	stats, err := e.stats.Finalize()
	if err != nil {
		return nil, err
	}
	out.Write(stats)
	return out.Bytes(), nil
}
