package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/smarttree/smarttree/internal/encode"
	"github.com/smarttree/smarttree/internal/ignore"
	"github.com/smarttree/smarttree/internal/scanmodel"
	"github.com/smarttree/smarttree/internal/scanner"
)

// Handler exposes the monitor over HTTP:
//
//	GET /events  text/event-stream change batches with periodic keepalives
//	GET /tree    JSON snapshot of the watched root
//	GET /stats   monitor counters
func (m *Monitor) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /events", m.handleEvents)
	mux.HandleFunc("GET /tree", m.handleTree)
	mux.HandleFunc("GET /stats", m.handleStats)
	return mux
}

func (m *Monitor) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	batches, cancel := m.Subscribe()
	defer cancel()

	keepalive := time.NewTicker(keepaliveInterval)
	defer keepalive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return

		case batch := <-batches:
			data, err := json.Marshal(batch)
			if err != nil {
				continue
			}
			// Batches carry their own monotonic timestamps; the frame id
			// is the newest one so clients can resume ordering.
			fmt.Fprintf(w, "id: %d\nevent: change\ndata: %s\n\n", batch[len(batch)-1].TS, data)
			flusher.Flush()

		case <-keepalive.C:
			fmt.Fprint(w, ": keepalive\n\n")
			flusher.Flush()
		}
	}
}

func (m *Monitor) handleTree(w http.ResponseWriter, r *http.Request) {
	req := scanmodel.ScanRequest{Root: m.root, Encoder: "json"}

	s, err := scanner.New(req, nil, snapshotIgnorer{}, scanner.ModeToolServer)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	ctx, cancelScan := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancelScan()

	events, err := s.Scan(ctx)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	out, err := encode.Run("json", encode.Options{Root: m.root, Request: req}, events)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(out)
}

func (m *Monitor) handleStats(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(m.Stats())
}

// snapshotIgnorer applies only the built-in ignore set to /tree snapshots,
// keeping them cheap over large working trees.
type snapshotIgnorer struct{}

var builtinMatcher = ignore.NewBuiltinMatcher()

func (snapshotIgnorer) IsIgnored(path string, isDir bool) bool {
	return builtinMatcher.IsIgnored(path, isDir)
}

func (snapshotIgnorer) Decide(path string, isDir bool) (ignore.Source, bool) {
	if builtinMatcher.IsIgnored(path, isDir) {
		return ignore.SourceBuiltin, true
	}
	return ignore.SourceNone, false
}
