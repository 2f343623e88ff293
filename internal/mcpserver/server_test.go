package mcpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smarttree/smarttree/internal/config"
)

// runSession feeds newline-framed requests through a fresh server and
// returns the responses indexed by id.
func runSession(t *testing.T, cfg *config.DaemonConfig, lines ...string) map[string]map[string]any {
	t.Helper()
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	s := New(cfg)

	in := strings.NewReader(strings.Join(lines, "\n") + "\n")
	var out bytes.Buffer
	require.NoError(t, s.Serve(context.Background(), in, &out))

	byID := map[string]map[string]any{}
	for _, line := range strings.Split(strings.TrimSpace(out.String()), "\n") {
		if line == "" {
			continue
		}
		var resp map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &resp), line)
		id, _ := json.Marshal(resp["id"])
		byID[string(id)] = resp
	}
	return byID
}

func TestInitializeThenOverview(t *testing.T) {
	empty := t.TempDir()

	responses := runSession(t, nil,
		`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`,
		fmt.Sprintf(`{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"overview","arguments":{"path":%q}}}`, empty),
	)
	require.Len(t, responses, 2)

	init := responses["1"]["result"].(map[string]any)
	assert.Equal(t, ProtocolVersion, init["protocol_version"])
	probe := init["compression_probe"].(map[string]any)
	assert.Equal(t, "PING", probe["plain"])
	assert.NotEmpty(t, probe["base64"])
	assert.NotEmpty(t, probe["zlib"])

	result := responses["2"]["result"].(map[string]any)
	content := result["content"].([]any)
	first := content[0].(map[string]any)
	assert.Equal(t, "text", first["type"])
	assert.NotEmpty(t, first["text"])

	meta := result["meta"].(map[string]any)
	assert.Equal(t, "explore", meta["lane"])
	assert.NotEmpty(t, meta["dir_digest"])
	assert.NotEmpty(t, meta["args_fingerprint"])
}

func TestToolsListSortedAndGated(t *testing.T) {
	responses := runSession(t, nil, `{"jsonrpc":"2.0","id":1,"method":"tools/list"}`)
	tools := responses["1"]["result"].(map[string]any)["tools"].([]any)

	var names []string
	for _, raw := range tools {
		names = append(names, raw.(map[string]any)["name"].(string))
	}
	assert.True(t, sort.StringsAreSorted(names))
	assert.Contains(t, names, "edit")
	assert.Contains(t, names, "overview")

	// Disabled tools are omitted from the list...
	cfg := config.DefaultConfig()
	cfg.Features = config.FeatureFlags{"edit_tools": false}
	responses = runSession(t, cfg, `{"jsonrpc":"2.0","id":1,"method":"tools/list"}`)
	tools = responses["1"]["result"].(map[string]any)["tools"].([]any)
	for _, raw := range tools {
		assert.NotEqual(t, "edit", raw.(map[string]any)["name"])
	}

	// ...and a direct call returns FeatureDisabled.
	responses = runSession(t, cfg,
		`{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"edit","arguments":{"cmd":"get_functions","file_path":"x.go"}}}`)
	errObj := responses["2"]["error"].(map[string]any)
	assert.Equal(t, "FeatureDisabled", errObj["data"].(map[string]any)["kind"])
}

func TestCompliancePresetGatesTools(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Compliance = config.PresetGovernment

	responses := runSession(t, cfg, `{"jsonrpc":"2.0","id":1,"method":"tools/list"}`)
	tools := responses["1"]["result"].(map[string]any)["tools"].([]any)
	for _, raw := range tools {
		name := raw.(map[string]any)["name"].(string)
		assert.NotEqual(t, "edit", name)
		assert.NotEqual(t, "search", name)
	}
}

func TestNotificationGetsNoResponse(t *testing.T) {
	responses := runSession(t, nil,
		`{"jsonrpc":"2.0","method":"tools/list"}`,
		`{"jsonrpc":"2.0","id":7,"method":"tools/list"}`,
	)
	require.Len(t, responses, 1)
	_, ok := responses["7"]
	assert.True(t, ok)
}

func TestMethodNotFound(t *testing.T) {
	responses := runSession(t, nil, `{"jsonrpc":"2.0","id":1,"method":"bogus/method"}`)
	errObj := responses["1"]["error"].(map[string]any)
	assert.Equal(t, float64(-32601), errObj["code"])
	data := errObj["data"].(map[string]any)
	assert.NotEmpty(t, data["hint"])
	assert.NotEmpty(t, data["example"])
}

func TestErrorsDoNotPoisonSession(t *testing.T) {
	empty := t.TempDir()
	responses := runSession(t, nil,
		`{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"overview","arguments":{"path":"/nope/missing"}}}`,
		fmt.Sprintf(`{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"overview","arguments":{"path":%q}}}`, empty),
	)
	assert.NotNil(t, responses["1"]["error"])
	assert.NotNil(t, responses["2"]["result"])
}

func TestCompressWithoutNegotiationIsInvalidParams(t *testing.T) {
	empty := t.TempDir()
	responses := runSession(t, nil,
		fmt.Sprintf(`{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"overview","arguments":{"path":%q,"compress":true}}}`, empty),
	)
	errObj := responses["1"]["error"].(map[string]any)
	data := errObj["data"].(map[string]any)
	assert.Equal(t, "InvalidParams", data["kind"])
	assert.Contains(t, data["example"], "server_info")
}

func TestCompressionNegotiationFlow(t *testing.T) {
	t.Setenv(compressForceEnv, "1")
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "f.txt"), bytes.Repeat([]byte("a"), 100), 0o644))

	responses := runSession(t, nil,
		`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`,
		`{"jsonrpc":"2.0","id":2,"method":"server_info","params":{"echo":["base64","zlib"]}}`,
		fmt.Sprintf(`{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"overview","arguments":{"path":%q}}}`, root),
	)

	confirmed := responses["2"]["result"].(map[string]any)["confirmed"].(map[string]any)
	assert.Equal(t, true, confirmed["zlib"])

	result := responses["3"]["result"].(map[string]any)
	text := result["content"].([]any)[0].(map[string]any)["text"].(string)
	assert.True(t, strings.HasPrefix(text, "COMPRESSED_V1:"))

	meta := result["meta"].(map[string]any)
	supported := meta["compression"].(map[string]any)["supported"].([]any)
	assert.Contains(t, supported, "zlib")
}

func TestOversizedUncompressedGetsPaginationHint(t *testing.T) {
	t.Setenv("ST_MAX_TOKENS", "10")
	root := t.TempDir()
	for i := 0; i < 20; i++ {
		require.NoError(t, os.WriteFile(filepath.Join(root, fmt.Sprintf("file-%02d.txt", i)), []byte("x"), 0o644))
	}

	cfg := config.DefaultConfig()
	cfg.Strict = true
	responses := runSession(t, cfg,
		fmt.Sprintf(`{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"overview","arguments":{"path":%q}}}`, root),
	)
	text := responses["1"]["result"].(map[string]any)["content"].([]any)[0].(map[string]any)["text"].(string)
	assert.NotContains(t, text, "COMPRESSED_V1:")
	assert.Contains(t, text, "paginate")
}

func TestPromptsListAndGet(t *testing.T) {
	responses := runSession(t, nil,
		`{"jsonrpc":"2.0","id":1,"method":"prompts/list"}`,
		`{"jsonrpc":"2.0","id":2,"method":"prompts/get","params":{"name":"explore_project","arguments":{"path":"/srv/app"}}}`,
	)

	prompts := responses["1"]["result"].(map[string]any)["prompts"].([]any)
	assert.NotEmpty(t, prompts)

	got := responses["2"]["result"].(map[string]any)
	messages := got["messages"].([]any)
	text := messages[0].(map[string]any)["content"].(map[string]any)["text"].(string)
	assert.Contains(t, text, "/srv/app")
}

func TestFindPagination(t *testing.T) {
	root := t.TempDir()
	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(filepath.Join(root, fmt.Sprintf("f%d.txt", i)), []byte("x"), 0o644))
	}

	responses := runSession(t, nil,
		fmt.Sprintf(`{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"find","arguments":{"path":%q,"limit":2}}}`, root),
	)
	text := responses["1"]["result"].(map[string]any)["content"].([]any)[0].(map[string]any)["text"].(string)
	assert.Contains(t, text, "f0.txt")
	assert.Contains(t, text, "f1.txt")
	assert.NotContains(t, text, "f2.txt")
	assert.Contains(t, text, "next cursor:")
}

func TestPathGateBlocksTool(t *testing.T) {
	root := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.AllowedPaths = []string{"/only/this"}

	responses := runSession(t, cfg,
		fmt.Sprintf(`{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"overview","arguments":{"path":%q}}}`, root),
	)
	data := responses["1"]["error"].(map[string]any)["data"].(map[string]any)
	assert.Equal(t, "PermissionDenied", data["kind"])
}

func TestEditToolOverRPC(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "code.go")
	require.NoError(t, os.WriteFile(path, []byte("package code\n\nfunc Hello() {}\n"), 0o644))

	responses := runSession(t, nil,
		fmt.Sprintf(`{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"edit","arguments":{"cmd":"get_functions","file_path":%q}}}`, path),
		fmt.Sprintf(`{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"edit","arguments":{"cmd":"get_functions","file_path":%q,"fields":["name"]}}}`, path),
	)

	text := responses["1"]["result"].(map[string]any)["content"].([]any)[0].(map[string]any)["text"].(string)
	assert.Contains(t, text, `"name": "Hello"`)
	assert.Contains(t, text, "start_line")

	trimmed := responses["2"]["result"].(map[string]any)["content"].([]any)[0].(map[string]any)["text"].(string)
	assert.Contains(t, trimmed, "Hello")
	assert.NotContains(t, trimmed, "start_line", "fields selector trims the record shape")

	meta := responses["1"]["result"].(map[string]any)["meta"].(map[string]any)
	assert.Equal(t, "act", meta["lane"])
}

func TestMalformedFrameProducesErrorAndSessionContinues(t *testing.T) {
	responses := runSession(t, nil,
		`this is not json`,
		`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`,
	)
	assert.NotNil(t, responses["1"]["result"])
	errResp, ok := responses["null"]
	require.True(t, ok, "malformed frame answered with null id")
	assert.NotNil(t, errResp["error"])
}

const compressForceEnv = "ST_FORCE_COMPRESS"
