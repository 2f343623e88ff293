package encode

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/smarttree/smarttree/internal/scanmodel"
)

// sseBatchSize bounds how many events share one frame when the stream is
// rendered offline; the live monitor flushes on a time window instead.
const sseBatchSize = 64

// SSEEvent is the JSON shape of one event inside a batch frame.
type SSEEvent struct {
	Event  string                `json:"event"`
	Path   string                `json:"path,omitempty"`
	Reason string                `json:"reason,omitempty"`
	Size   int64                 `json:"size,omitempty"`
	Kind   string                `json:"kind,omitempty"`
	Stats  *scanmodel.Statistics `json:"stats,omitempty"`
}

// ToSSEEvent converts a scan event to its wire shape.
func ToSSEEvent(ev scanmodel.ScanEvent) SSEEvent {
	switch ev.Kind {
	case scanmodel.EventEnterDir:
		return SSEEvent{Event: "enter", Path: ev.Node.AbsPath, Kind: ev.Node.Kind.String()}
	case scanmodel.EventExitDir:
		return SSEEvent{Event: "exit", Path: ev.Path}
	case scanmodel.EventFile:
		return SSEEvent{Event: "file", Path: ev.Node.AbsPath, Size: ev.Node.Size, Kind: ev.Node.Kind.String()}
	case scanmodel.EventInaccessibleDir:
		return SSEEvent{Event: "inaccessible", Path: ev.Path, Reason: ev.Reason}
	default:
		stats := ev.Stats
		return SSEEvent{Event: "summary", Stats: &stats}
	}
}

// WriteSSEFrame renders one batch as a text/event-stream frame: an
// optional monotonic timestamp id line, then the JSON array data line.
func WriteSSEFrame(buf *bytes.Buffer, batch []SSEEvent, ts time.Time) error {
	data, err := json.Marshal(batch)
	if err != nil {
		return err
	}
	if !ts.IsZero() {
		fmt.Fprintf(buf, "id: %d\n", ts.UnixMilli())
	}
	buf.WriteString("event: scan\n")
	fmt.Fprintf(buf, "data: %s\n\n", data)
	return nil
}

// sseEncoder frames the stream as text/event-stream batches. Offline
// rendering has no wall clock, so batches cut on size rather than on the
// live monitor's 250-500 ms window.
type sseEncoder struct {
	out   bytes.Buffer
	batch []SSEEvent
}

// NewSSE returns the server-sent-events encoder.
func NewSSE(Options) Encoder {
	return &sseEncoder{}
}

func (e *sseEncoder) Consume(ev scanmodel.ScanEvent) error {
	e.batch = append(e.batch, ToSSEEvent(ev))
	if len(e.batch) >= sseBatchSize {
		return e.flush()
	}
	return nil
}

func (e *sseEncoder) flush() error {
	if len(e.batch) == 0 {
		return nil
	}
	if err := WriteSSEFrame(&e.out, e.batch, time.Time{}); err != nil {
		return err
	}
	e.batch = e.batch[:0]
	return nil
}

func (e *sseEncoder) Finalize() ([]byte, error) {
	if err := e.flush(); err != nil {
		return nil, err
	}
	return e.out.Bytes(), nil
}
