package mcpserver

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/smarttree/smarttree/internal/stree"
)

// toolOutput is what a handler returns before compression and framing.
type toolOutput struct {
	Text string

	// DirDigest and Fingerprint feed the response watermark.
	DirDigest   string
	Fingerprint string

	// NextBestCalls suggests follow-up invocations.
	NextBestCalls []string
}

// toolHandler executes one tool call.
type toolHandler func(ctx context.Context, s *Server, args json.RawMessage) (*toolOutput, error)

// tool pairs a descriptor with its handler and the feature flag that gates
// it.
type tool struct {
	desc    toolDescriptor
	feature string
	handler toolHandler
}

// registry is the fixed tool set, keyed by name. Built once at server
// construction so tools/list is stable for the process lifetime.
type registry struct {
	tools map[string]tool
}

func (r *registry) add(t tool) {
	if r.tools == nil {
		r.tools = make(map[string]tool)
	}
	r.tools[t.desc.Name] = t
}

// get resolves name or fails with MethodNotFound.
func (r *registry) get(name string) (tool, error) {
	t, ok := r.tools[name]
	if !ok {
		return tool{}, stree.New(stree.CodeMethodNotFound, "unknown tool "+name, nil).
			WithHint("a name from tools/list", "tool names are lowercase", `{"method":"tools/list"}`)
	}
	return t, nil
}

// list returns the descriptors of enabled tools, name-sorted. Disabled
// tools are omitted entirely.
func (r *registry) list(enabled func(feature string) bool) []toolDescriptor {
	out := make([]toolDescriptor, 0, len(r.tools))
	for _, t := range r.tools {
		if t.feature != "" && !enabled(t.feature) {
			continue
		}
		out = append(out, t.desc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Schema helpers: the descriptors use a small JSON-Schema subset.

func objectSchema(required []string, props map[string]*jsonschema.Schema) *jsonschema.Schema {
	return &jsonschema.Schema{Type: "object", Required: required, Properties: props}
}

func stringProp(desc string) *jsonschema.Schema {
	return &jsonschema.Schema{Type: "string", Description: desc}
}

func intProp(desc string) *jsonschema.Schema {
	return &jsonschema.Schema{Type: "integer", Description: desc}
}

func boolProp(desc string) *jsonschema.Schema {
	return &jsonschema.Schema{Type: "boolean", Description: desc}
}

func enumProp(desc string, values ...any) *jsonschema.Schema {
	return &jsonschema.Schema{Type: "string", Description: desc, Enum: values}
}

// scanArgs is the shared argument shape of the scan-backed tools.
type scanArgs struct {
	Path        string   `json:"path"`
	MaxDepth    int      `json:"max_depth,omitempty"`
	ShowHidden  bool     `json:"show_hidden,omitempty"`
	ShowIgnored bool     `json:"show_ignored,omitempty"`
	NoIgnores   bool     `json:"no_ignores,omitempty"`
	Extensions  []string `json:"extensions,omitempty"`
	NamePattern string   `json:"name_pattern,omitempty"`
	Regex       bool     `json:"regex,omitempty"`

	// Search-specific.
	Keyword     string `json:"keyword,omitempty"`
	LineContent bool   `json:"line_content,omitempty"`
	MaxMatches  int    `json:"max_matches,omitempty"`

	// Output handling.
	Compress bool   `json:"compress,omitempty"`
	Base64   bool   `json:"base64,omitempty"`
	Limit    int    `json:"limit,omitempty"`
	Cursor   string `json:"cursor,omitempty"`

	// Relations-specific.
	Focus string   `json:"focus,omitempty"`
	Kinds []string `json:"kinds,omitempty"`

	// Token-report-specific.
	Tokenizer string `json:"tokenizer,omitempty"`
	Budget    int    `json:"budget,omitempty"`
}

func decodeArgs[T any](raw json.RawMessage) (*T, error) {
	var v T
	if len(raw) == 0 {
		return &v, nil
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, stree.New(stree.CodeInvalidParams, "malformed arguments", err).
			WithHint("a JSON object matching the tool's input_schema",
				"see tools/list", `{"path":"."}`)
	}
	return &v, nil
}

// scanArgsSchema is the descriptor schema shared by the scan tools;
// per-tool descriptors extend it where they add arguments.
func scanArgsSchema(extra map[string]*jsonschema.Schema, required ...string) *jsonschema.Schema {
	props := map[string]*jsonschema.Schema{
		"path":         stringProp("directory to scan"),
		"max_depth":    intProp("recursion limit; 0 means the mode default"),
		"show_hidden":  boolProp("include dot entries"),
		"show_ignored": boolProp("emit ignored directories as marker leaves"),
		"no_ignores":   boolProp("disable built-in and user ignore files"),
		"extensions":   {Type: "array", Items: stringProp("extension without dot")},
		"name_pattern": stringProp("glob (or regex with regex=true) on entry names"),
		"regex":        boolProp("treat name_pattern as a regular expression"),
		"compress":     boolProp("wrap the result as COMPRESSED_V1 (requires negotiated zlib)"),
		"base64":       boolProp("base64 the plain text (requires negotiated base64)"),
	}
	for k, v := range extra {
		props[k] = v
	}
	if required == nil {
		required = []string{"path"}
	}
	return objectSchema(required, props)
}
