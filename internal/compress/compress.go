// Package compress implements the tool server's compression manager:
// token-budget estimation, the per-session client capability cache filled
// by the initialize probe, and opportunistic wrapping of oversized
// responses.
package compress

import (
	"bytes"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/klauspost/compress/zlib"

	"github.com/smarttree/smarttree/internal/stree"
)

// DefaultTokenThreshold is the wrap threshold in estimated tokens.
const DefaultTokenThreshold = 20000

// WireLabel prefixes a zlib-wrapped payload on the wire.
const WireLabel = "COMPRESSED_V1:"

// Capabilities records what the client proved it can decode during the
// initialize probe.
type Capabilities struct {
	Base64 bool
	Zlib   bool
}

// Probe is the initialize-time payload: three test strings the client
// echoes back according to what it could decode.
type Probe struct {
	Plain  string `json:"plain"`
	Base64 string `json:"base64"`
	Zlib   string `json:"zlib"`
}

const probeWord = "PING"

// NewProbe builds the capability probe: the word itself, its base64, and
// its zlib+base64.
func NewProbe() Probe {
	var z bytes.Buffer
	w := zlib.NewWriter(&z)
	io.WriteString(w, probeWord)
	w.Close()

	return Probe{
		Plain:  probeWord,
		Base64: base64.StdEncoding.EncodeToString([]byte(probeWord)),
		Zlib:   base64.StdEncoding.EncodeToString(z.Bytes()),
	}
}

// CapabilitiesFromEcho interprets the echo list a client sends back via
// server_info: each entry names a probe field it decoded to "PING".
func CapabilitiesFromEcho(echo []string) Capabilities {
	var caps Capabilities
	for _, e := range echo {
		switch strings.ToLower(e) {
		case "base64":
			caps.Base64 = true
		case "zlib":
			caps.Zlib = true
		}
	}
	return caps
}

// Manager owns the wrap policy for one server process. Capability state is
// per session and guarded; the saved-bytes counters are process-global and
// never leave the server (they feed stats, not responses).
type Manager struct {
	mu        sync.RWMutex
	caps      Capabilities
	confirmed bool

	threshold int
	strict    bool

	savedBytes  atomic.Int64
	savedTokens atomic.Int64
}

// Env variable names honored by the manager. MCP_NO_COMPRESS wins over
// ST_FORCE_COMPRESS.
const (
	EnvNoCompress    = "MCP_NO_COMPRESS"
	EnvForceCompress = "ST_FORCE_COMPRESS"
	EnvMaxTokens     = "ST_MAX_TOKENS"
)

// NewManager builds a manager. threshold <= 0 selects the default, which
// ST_MAX_TOKENS may still override.
func NewManager(threshold int, strict bool) *Manager {
	if threshold <= 0 {
		threshold = DefaultTokenThreshold
	}
	if v := os.Getenv(EnvMaxTokens); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			threshold = n
		}
	}
	return &Manager{threshold: threshold, strict: strict}
}

// ConfirmCapabilities records the probe outcome for this session.
func (m *Manager) ConfirmCapabilities(caps Capabilities) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.caps = caps
	m.confirmed = true
}

// Capabilities returns the cached probe outcome and whether a probe reply
// arrived at all.
func (m *Manager) Capabilities() (Capabilities, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.caps, m.confirmed
}

// EstimateTokens applies the bytes/4 heuristic, rounding up.
func EstimateTokens(n int) int {
	return (n + 3) / 4
}

// Threshold reports the active wrap threshold in tokens.
func (m *Manager) Threshold() int { return m.threshold }

// Result describes what Process did to a payload.
type Result struct {
	Payload    []byte
	Compressed bool

	// Oversized is set when the payload exceeded the threshold but could
	// not be wrapped (no confirmed zlib capability); the caller should
	// attach a truncation/pagination hint.
	Oversized bool
}

// Process applies the wrap policy to an encoded response payload.
// explicitBase64 corresponds to a caller asking for base64 of plain text.
func (m *Manager) Process(payload []byte, explicitBase64 bool) Result {
	caps, confirmed := m.Capabilities()
	estimate := EstimateTokens(len(payload))

	if os.Getenv(EnvNoCompress) == "1" {
		return Result{Payload: payload, Oversized: estimate > m.threshold}
	}

	force := os.Getenv(EnvForceCompress) == "1"
	canZlib := confirmed && caps.Zlib

	switch {
	case canZlib && (force || (m.strict && estimate > m.threshold)):
		wrapped := m.wrapZlib(payload)
		if len(wrapped) < len(payload) || force {
			m.savedBytes.Add(int64(len(payload) - len(wrapped)))
			m.savedTokens.Add(int64(estimate - EstimateTokens(len(wrapped))))
			return Result{Payload: wrapped, Compressed: true}
		}
		return Result{Payload: payload}

	case explicitBase64 && confirmed && caps.Base64:
		encoded := []byte(base64.StdEncoding.EncodeToString(payload))
		return Result{Payload: encoded}

	default:
		return Result{Payload: payload, Oversized: estimate > m.threshold}
	}
}

// wrapZlib deflates and labels a payload: COMPRESSED_V1:<hex>.
func (m *Manager) wrapZlib(payload []byte) []byte {
	var z bytes.Buffer
	w := zlib.NewWriter(&z)
	w.Write(payload)
	w.Close()
	return []byte(WireLabel + hex.EncodeToString(z.Bytes()))
}

// Unwrap is the left inverse of the zlib wrapping: it strips the label,
// hex-decodes, and inflates. Payloads without the label pass through
// unchanged.
func Unwrap(payload []byte) ([]byte, error) {
	rest, ok := bytes.CutPrefix(payload, []byte(WireLabel))
	if !ok {
		return payload, nil
	}
	raw, err := hex.DecodeString(string(rest))
	if err != nil {
		return nil, stree.New(stree.CodeParseError, "compressed payload: bad hex", err)
	}
	r, err := zlib.NewReader(bytes.NewReader(raw))
	if err != nil {
		return nil, stree.New(stree.CodeParseError, "compressed payload: bad zlib stream", err)
	}
	defer r.Close()
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, stree.New(stree.CodeParseError, "compressed payload: truncated zlib stream", err)
	}
	return out, nil
}

// SavedStats reports the cumulative server-side savings counters.
func (m *Manager) SavedStats() (bytes, tokens int64) {
	return m.savedBytes.Load(), m.savedTokens.Load()
}

// RequireZlib guards an explicit compress=true tool argument: without a
// negotiated zlib capability the call is invalid, and the error example
// walks the caller through the probe flow.
func (m *Manager) RequireZlib() error {
	caps, confirmed := m.Capabilities()
	if confirmed && caps.Zlib {
		return nil
	}
	return stree.New(stree.CodeInvalidParams, "compression requested without negotiated capability", nil).
		WithHint(
			"a session whose initialize probe confirmed zlib",
			"call initialize, decode the compression_probe strings, then call server_info with the echo list before passing compress=true",
			fmt.Sprintf(`{"method":"server_info","params":{"echo":["base64","zlib"]}} then {"method":"tools/call","params":{"name":"overview","arguments":{"compress":true}}}`),
		)
}
