package mcpserver

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/smarttree/smarttree/internal/compress"
	"github.com/smarttree/smarttree/internal/config"
	"github.com/smarttree/smarttree/internal/stree"
)

// defaultCallDeadline bounds one tools/call unless the host overrides it.
const defaultCallDeadline = 60 * time.Second

// maxLineBytes bounds one framed JSON-RPC line.
const maxLineBytes = 16 << 20

// Server is one stdio JSON-RPC session.
type Server struct {
	cfg       *config.DaemonConfig
	reg       registry
	comp      *compress.Manager
	logger    *slog.Logger
	sessionID string

	deadline time.Duration

	writeMu sync.Mutex
	out     io.Writer
}

// New builds a server over the resolved daemon configuration.
func New(cfg *config.DaemonConfig) *Server {
	s := &Server{
		cfg:       cfg,
		comp:      compress.NewManager(cfg.MaxTokensPerResponse, cfg.Strict),
		logger:    slog.Default().With("component", "mcpserver"),
		sessionID: uuid.NewString(),
		deadline:  defaultCallDeadline,
	}
	s.reg = buildRegistry()
	return s
}

// Serve reads one JSON object per line from r and writes responses to w
// until EOF or ctx cancellation. Malformed lines produce an error response
// with a null id; they never terminate the session.
func (s *Server) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	if s.cfg.DisableMCP {
		return stree.New(stree.CodeFeatureDisabled, "tool server is disabled", nil).
			WithHint("a process without ST_DISABLE_MCP", "unset ST_DISABLE_MCP or the disable_mcp config key", "")
	}
	s.out = w
	s.logger.Info("session started", "session_id", s.sessionID)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)

	var calls sync.WaitGroup
	defer calls.Wait()

	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req request
		if err := json.Unmarshal(line, &req); err != nil {
			nullID := json.RawMessage("null")
			s.write(response{JSONRPC: "2.0", ID: &nullID, Error: toEnvelope(
				stree.New(stree.CodeInvalidRequest, "malformed JSON-RPC frame", err).
					WithHint("one JSON object per line", "check framing", `{"jsonrpc":"2.0","id":1,"method":"tools/list"}`))})
			continue
		}

		// tools/call runs as its own task: responses go out in completion
		// order and callers reassociate by id. Session-level methods
		// (initialize, server_info, the list calls) are handled inline so
		// capability negotiation is ordered against later tool calls.
		if req.Method != "tools/call" {
			s.dispatch(ctx, req)
			continue
		}
		reqCopy := req
		reqCopy.Params = append(json.RawMessage(nil), req.Params...)
		if req.ID != nil {
			idCopy := append(json.RawMessage(nil), *req.ID...)
			rawID := json.RawMessage(idCopy)
			reqCopy.ID = &rawID
		}
		calls.Add(1)
		go func() {
			defer calls.Done()
			s.dispatch(ctx, reqCopy)
		}()
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// dispatch routes one request and writes its response, unless it is a
// notification.
func (s *Server) dispatch(ctx context.Context, req request) {
	result, err := s.handle(ctx, req)

	if req.ID == nil {
		return // notification: no response, even on error
	}
	if err != nil {
		s.write(response{JSONRPC: "2.0", ID: req.ID, Error: toEnvelope(err)})
		return
	}
	s.write(response{JSONRPC: "2.0", ID: req.ID, Result: result})
}

func (s *Server) handle(ctx context.Context, req request) (any, error) {
	switch req.Method {
	case "initialize":
		return s.handleInitialize()
	case "server_info":
		return s.handleServerInfo(req.Params)
	case "tools/list":
		return s.handleToolsList()
	case "tools/call":
		return s.handleToolsCall(ctx, req.Params)
	case "prompts/list":
		return s.handlePromptsList()
	case "prompts/get":
		return s.handlePromptsGet(req.Params)
	default:
		return nil, stree.New(stree.CodeMethodNotFound, "unknown method "+req.Method, nil).
			WithHint("initialize, server_info, tools/list, tools/call, prompts/list, prompts/get",
				"method names are case-sensitive", `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`)
	}
}

// handleInitialize reports the protocol version, capabilities, and the
// compression probe the client should echo back via server_info.
func (s *Server) handleInitialize() (any, error) {
	return map[string]any{
		"protocol_version": ProtocolVersion,
		"session_id":       s.sessionID,
		"capabilities": map[string]any{
			"tools":   map[string]any{"list_changed": false},
			"prompts": map[string]any{"list_changed": false},
		},
		"compression_probe": compress.NewProbe(),
		"instructions": "decode the compression_probe strings, then call server_info " +
			"with an echo array naming which you could decode (\"base64\", \"zlib\")",
	}, nil
}

// handleServerInfo records the probe echo and reports server identity.
func (s *Server) handleServerInfo(params json.RawMessage) (any, error) {
	args, err := decodeArgs[struct {
		Echo []string `json:"echo"`
	}](params)
	if err != nil {
		return nil, err
	}
	caps := compress.CapabilitiesFromEcho(args.Echo)
	s.comp.ConfirmCapabilities(caps)
	return map[string]any{
		"name":       "smart-tree",
		"session_id": s.sessionID,
		"confirmed":  map[string]bool{"base64": caps.Base64, "zlib": caps.Zlib},
	}, nil
}

func (s *Server) handleToolsList() (any, error) {
	return map[string]any{
		"tools": s.reg.list(s.cfg.IsFeatureEnabled),
	}, nil
}

// handleToolsCall gates, dispatches, compresses, and frames one tool call.
func (s *Server) handleToolsCall(ctx context.Context, params json.RawMessage) (any, error) {
	call, err := decodeArgs[struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	}](params)
	if err != nil {
		return nil, err
	}

	t, err := s.reg.get(call.Name)
	if err != nil {
		return nil, err
	}
	if t.feature != "" && !s.cfg.IsFeatureEnabled(t.feature) {
		return nil, stree.New(stree.CodeFeatureDisabled, "tool "+call.Name+" is disabled", nil).
			WithHint("a tool listed by tools/list",
				"the active compliance preset or feature flags exclude this tool", "")
	}

	ctx, cancel := context.WithTimeout(ctx, s.deadline)
	defer cancel()

	out, err := t.handler(ctx, s, call.Arguments)
	if err != nil {
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			return nil, stree.New(stree.CodeDeadlineExceeded, "call exceeded the server deadline", err).
				WithHint("a narrower request", "reduce max_depth or scope the path", "")
		case errors.Is(err, context.Canceled):
			return nil, stree.New(stree.CodeCancelled, "call was cancelled", err)
		}
		return nil, err
	}

	// Explicit compress needs negotiated zlib; opportunistic wrapping is
	// policy-driven inside the manager.
	var common scanArgs
	json.Unmarshal(call.Arguments, &common)
	if common.Compress {
		if err := s.comp.RequireZlib(); err != nil {
			return nil, err
		}
	}
	res := s.comp.Process([]byte(out.Text), common.Base64)

	text := string(res.Payload)
	if res.Oversized {
		text += "\n[output exceeds the token threshold; pass limit/cursor to paginate, " +
			"narrow the path, or negotiate compression via initialize/server_info]"
	}

	caps, confirmed := s.comp.Capabilities()
	meta := &Meta{
		Lane:            string(t.desc.Lane),
		NextLanes:       nextLanes(t.desc.Lane),
		DirDigest:       out.DirDigest,
		ArgsFingerprint: out.Fingerprint,
	}
	meta.Mode.Strict = s.cfg.Strict
	meta.Mode.AITools = os.Getenv(config.EnvAITools) == "1"
	meta.Compression.Default = s.cfg.Strict && confirmed && caps.Zlib
	if confirmed {
		if caps.Base64 {
			meta.Compression.Supported = append(meta.Compression.Supported, "base64")
		}
		if caps.Zlib {
			meta.Compression.Supported = append(meta.Compression.Supported, "zlib")
		}
	}

	return toolResult{
		Content:       []contentItem{{Type: "text", Text: text}},
		Meta:          meta,
		NextBestCalls: out.NextBestCalls,
	}, nil
}

// write frames one response as a single line. Writes are serialized so
// concurrent call tasks never interleave bytes.
func (s *Server) write(resp response) {
	data, err := json.Marshal(resp)
	if err != nil {
		s.logger.Error("response marshal failed", "error", err)
		return
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.out.Write(data)
	s.out.Write([]byte{'\n'})
}
