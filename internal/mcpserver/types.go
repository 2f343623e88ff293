// Package mcpserver implements the long-lived request server: JSON-RPC
// 2.0 over standard streams, one object per line, multiplexing scan and
// edit tools behind feature and path gates with opportunistic output
// compression.
package mcpserver

import (
	"encoding/json"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/smarttree/smarttree/internal/stree"
)

// ProtocolVersion is reported by initialize.
const ProtocolVersion = "2024-11-05"

// request is one incoming JSON-RPC message. A missing id marks a
// notification; no response is written for those.
type request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// response is one outgoing JSON-RPC message.
type response struct {
	JSONRPC string           `json:"jsonrpc"`
	ID      *json.RawMessage `json:"id,omitempty"`
	Result  any              `json:"result,omitempty"`
	Error   *errorEnvelope   `json:"error,omitempty"`
}

// errorEnvelope is the structured error shape: numeric code, message, and
// the {expected, hint, example} steering payload.
type errorEnvelope struct {
	Code    int       `json:"code"`
	Message string    `json:"message"`
	Data    errorData `json:"data"`
}

type errorData struct {
	Kind     stree.Code `json:"kind"`
	Expected string     `json:"expected,omitempty"`
	Hint     string     `json:"hint,omitempty"`
	Example  string     `json:"example,omitempty"`
}

// numericCodes maps the tagged error codes onto the JSON-RPC wire numbers:
// the reserved range for protocol errors, an implementation-defined range
// for tool-specific ones.
var numericCodes = map[stree.Code]int{
	stree.CodeInvalidRequest:      -32600,
	stree.CodeMethodNotFound:      -32601,
	stree.CodeInvalidParams:       -32602,
	stree.CodeInternalError:       -32603,
	stree.CodeInvalidPath:         -32000,
	stree.CodePermissionDenied:    -32001,
	stree.CodeCapExceeded:         -32002,
	stree.CodeUnsupportedLanguage: -32003,
	stree.CodeParseError:          -32004,
	stree.CodeFeatureDisabled:     -32005,
	stree.CodeCancelled:           -32006,
	stree.CodeDeadlineExceeded:    -32007,
	stree.CodeInvalidPattern:      -32010,
	stree.CodeInvalidSizeSpec:     -32011,
	stree.CodeInvalidDateSpec:     -32012,
}

// toEnvelope converts any error into the wire envelope. Untagged errors
// become InternalError.
func toEnvelope(err error) *errorEnvelope {
	se, ok := err.(*stree.Error)
	if !ok {
		se = stree.New(stree.CodeInternalError, err.Error(), nil)
	}
	num, ok := numericCodes[se.Code]
	if !ok {
		num = -32603
	}
	return &errorEnvelope{
		Code:    num,
		Message: se.Message,
		Data: errorData{
			Kind:     se.Code,
			Expected: se.Expected,
			Hint:     se.Hint,
			Example:  se.Example,
		},
	}
}

// contentItem is one entry of a result envelope's content array.
type contentItem struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Meta is the result watermark attached to tools/call responses.
type Meta struct {
	Mode struct {
		Strict  bool `json:"strict"`
		AITools bool `json:"ai_tools"`
	} `json:"mode"`
	Compression struct {
		Default   bool     `json:"default"`
		Supported []string `json:"supported"`
	} `json:"compression"`
	Lane            string   `json:"lane"`
	NextLanes       []string `json:"next_lanes,omitempty"`
	DirDigest       string   `json:"dir_digest,omitempty"`
	ArgsFingerprint string   `json:"args_fingerprint,omitempty"`
}

// toolResult is the tools/call result envelope.
type toolResult struct {
	Content       []contentItem `json:"content"`
	Meta          *Meta         `json:"meta,omitempty"`
	NextBestCalls []string      `json:"next_best_calls,omitempty"`
}

// Lane is the coarse tool category signalled to callers.
type Lane string

const (
	LaneExplore Lane = "explore"
	LaneAnalyze Lane = "analyze"
	LaneAct     Lane = "act"
)

// nextLanes suggests where a caller usually goes after a lane.
func nextLanes(l Lane) []string {
	switch l {
	case LaneExplore:
		return []string{string(LaneAnalyze)}
	case LaneAnalyze:
		return []string{string(LaneAct)}
	default:
		return nil
	}
}

// toolDescriptor is one tools/list entry.
type toolDescriptor struct {
	Name             string             `json:"name"`
	Description      string             `json:"description"`
	HumanDescription string             `json:"human_description,omitempty"`
	InputSchema      *jsonschema.Schema `json:"input_schema"`
	Lane             Lane               `json:"lane"`
	Decorations      map[string]string  `json:"decorations,omitempty"`
}
