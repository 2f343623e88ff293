package mcpserver

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/smarttree/smarttree/internal/stree"
)

// promptTemplate is one entry of the small fixed prompt catalogue.
type promptTemplate struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Arguments   []string `json:"arguments"`
	Template    string   `json:"-"`
}

var promptCatalogue = map[string]promptTemplate{
	"explore_project": {
		Name:        "explore_project",
		Description: "Walk an unfamiliar project top-down: overview, then statistics, then search.",
		Arguments:   []string{"path"},
		Template: "Start with tools/call overview on {path} (depth 3). " +
			"Then call statistics to size the tree, and use find/search to drill into areas of interest.",
	},
	"summarize_changes": {
		Name:        "summarize_changes",
		Description: "Summarize what a directory contains for a commit or review description.",
		Arguments:   []string{"path"},
		Template: "Call analyze on {path} and write a three-sentence summary of the project " +
			"layout, dominant file types, and anything unusual in the largest files list.",
	},
	"plan_refactor": {
		Name:        "plan_refactor",
		Description: "Plan a function-level refactor using the relations graph and edit tools.",
		Arguments:   []string{"path", "focus"},
		Template: "Call relations on {path} with focus={focus} to map dependents, " +
			"then use edit get_functions on each dependent before proposing smart_edit batches.",
	},
}

func (s *Server) handlePromptsList() (any, error) {
	names := make([]string, 0, len(promptCatalogue))
	for name := range promptCatalogue {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]promptTemplate, 0, len(names))
	for _, name := range names {
		out = append(out, promptCatalogue[name])
	}
	return map[string]any{"prompts": out}, nil
}

func (s *Server) handlePromptsGet(params json.RawMessage) (any, error) {
	args, err := decodeArgs[struct {
		Name      string            `json:"name"`
		Arguments map[string]string `json:"arguments"`
	}](params)
	if err != nil {
		return nil, err
	}

	tmpl, ok := promptCatalogue[args.Name]
	if !ok {
		return nil, stree.New(stree.CodeInvalidParams, "unknown prompt "+args.Name, nil).
			WithHint("a name from prompts/list", "the catalogue is fixed", `{"method":"prompts/list"}`)
	}

	text := tmpl.Template
	for key, value := range args.Arguments {
		text = strings.ReplaceAll(text, fmt.Sprintf("{%s}", key), value)
	}
	return map[string]any{
		"description": tmpl.Description,
		"messages": []map[string]any{
			{"role": "user", "content": map[string]any{"type": "text", "text": text}},
		},
	}, nil
}
