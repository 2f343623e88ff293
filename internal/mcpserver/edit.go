package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/smarttree/smarttree/internal/editor"
	"github.com/smarttree/smarttree/internal/stree"
)

// editArgs is the edit tool's cmd-enum argument shape. All operations
// target a single file; language is inferred from the extension.
type editArgs struct {
	Cmd      string           `json:"cmd"`
	FilePath string           `json:"file_path"`
	Name     string           `json:"name,omitempty"`
	Body     string           `json:"body,omitempty"`
	Content  string           `json:"content,omitempty"`
	Force    bool             `json:"force,omitempty"`
	DryRun   bool             `json:"dry_run,omitempty"`
	Ops      []editor.SmartOp `json:"ops,omitempty"`
	Fields   []string         `json:"fields,omitempty"`
}

func editSchema() *jsonschema.Schema {
	return objectSchema([]string{"cmd", "file_path"}, map[string]*jsonschema.Schema{
		"cmd":       enumProp("operation", "get_functions", "insert_function", "remove_function", "smart_edit", "create_file"),
		"file_path": stringProp("the file to operate on"),
		"name":      stringProp("function name for remove_function"),
		"body":      stringProp("complete function declaration for insert_function"),
		"content":   stringProp("file content for create_file"),
		"force":     boolProp("remove a function even when dependents exist"),
		"dry_run":   boolProp("smart_edit: return a unified diff without writing"),
		"ops": {Type: "array", Description: "smart_edit batch",
			Items: objectSchema([]string{"cmd"}, map[string]*jsonschema.Schema{
				"cmd":   enumProp("batch op", "insert_function", "remove_function", "replace_function"),
				"name":  stringProp("target function"),
				"body":  stringProp("declaration for insert/replace"),
				"force": boolProp("override the dependency check"),
			})},
		"fields": {Type: "array", Description: "get_functions: restrict record fields", Items: stringProp("field name")},
	})
}

// handleEdit dispatches the edit cmd enum. Every operation is
// all-or-nothing per call.
func handleEdit(_ context.Context, s *Server, raw json.RawMessage) (*toolOutput, error) {
	args, err := decodeArgs[editArgs](raw)
	if err != nil {
		return nil, err
	}
	if args.FilePath == "" {
		return nil, stree.New(stree.CodeInvalidParams, "file_path is required", nil).
			WithHint("a single file path", "edits operate on one file at a time", `{"cmd":"get_functions","file_path":"src/main.go"}`)
	}
	if err := s.cfg.CheckPath(args.FilePath); err != nil {
		return nil, err
	}

	switch args.Cmd {
	case "get_functions":
		fns, err := editor.GetFunctions(args.FilePath)
		if err != nil {
			return nil, err
		}
		records := trimFields(fns, args.Fields)
		data, err := json.MarshalIndent(records, "", "  ")
		if err != nil {
			return nil, err
		}
		return &toolOutput{Text: string(data) + "\n"}, nil

	case "insert_function":
		if err := editor.InsertFunction(args.FilePath, args.Body); err != nil {
			return nil, err
		}
		return &toolOutput{Text: fmt.Sprintf("inserted into %s\n", args.FilePath)}, nil

	case "remove_function":
		if err := editor.RemoveFunction(args.FilePath, args.Name, args.Force); err != nil {
			return nil, err
		}
		return &toolOutput{Text: fmt.Sprintf("removed %s from %s\n", args.Name, args.FilePath)}, nil

	case "smart_edit":
		res, err := editor.SmartEdit(args.FilePath, args.Ops, args.DryRun)
		if err != nil {
			return nil, err
		}
		var sb strings.Builder
		fmt.Fprintf(&sb, "applied %d ops (dry_run=%t, changed=%t)\n", res.Applied, res.DryRun, res.Changed)
		if res.Diff != "" {
			sb.WriteString(res.Diff)
		}
		return &toolOutput{Text: sb.String()}, nil

	case "create_file":
		if err := editor.CreateFile(args.FilePath, args.Content); err != nil {
			return nil, err
		}
		return &toolOutput{Text: fmt.Sprintf("created %s\n", args.FilePath)}, nil

	default:
		return nil, stree.New(stree.CodeInvalidParams, fmt.Sprintf("unknown cmd %q", args.Cmd), nil).
			WithHint("get_functions, insert_function, remove_function, smart_edit, or create_file",
				"cmd selects the edit operation", `{"cmd":"get_functions","file_path":"src/main.go"}`)
	}
}

// trimFields projects function records down to the requested field names,
// honoring the fields selector contract for record-returning tools.
func trimFields(fns []editor.FunctionInfo, fields []string) any {
	if len(fields) == 0 {
		return fns
	}
	keep := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		keep[f] = struct{}{}
	}

	out := make([]map[string]any, 0, len(fns))
	for _, fn := range fns {
		full := map[string]any{
			"name":       fn.Name,
			"receiver":   fn.Receiver,
			"start_line": fn.StartLine,
			"end_line":   fn.EndLine,
			"exported":   fn.Exported,
			"doc":        fn.Doc,
		}
		rec := make(map[string]any, len(keep))
		for k := range keep {
			if v, ok := full[k]; ok {
				rec[k] = v
			}
		}
		out = append(out, rec)
	}
	return out
}
