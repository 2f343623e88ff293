package editor

import (
	"fmt"
	"go/format"
	"strings"

	"github.com/smarttree/smarttree/internal/stree"
)

// SmartOp is one operation inside a batched smart_edit call.
type SmartOp struct {
	// Cmd is insert_function, remove_function, or replace_function.
	Cmd string `json:"cmd"`

	// Name targets remove_function/replace_function.
	Name string `json:"name,omitempty"`

	// Body carries the declaration for insert_function/replace_function.
	Body string `json:"body,omitempty"`

	// Force permits removing a function with dependents.
	Force bool `json:"force,omitempty"`
}

// SmartEditResult reports what a smart_edit call did.
type SmartEditResult struct {
	Applied int    `json:"applied"`
	DryRun  bool   `json:"dry_run"`
	Diff    string `json:"diff,omitempty"`
	Changed bool   `json:"changed"`
}

// SmartEdit applies ops to path in order, all-or-nothing: every operation
// is validated against the in-memory working copy and the file is written
// once at the end. dryRun skips the write and returns a unified diff
// instead. An empty op set (or ops that produce the original bytes) leaves
// the file byte-identical.
func SmartEdit(path string, ops []SmartOp, dryRun bool) (*SmartEditResult, error) {
	p, err := load(path)
	if err != nil {
		return nil, err
	}
	original := append([]byte{}, p.src...)

	working := p
	for i, op := range ops {
		var next []byte
		switch op.Cmd {
		case "insert_function":
			next, err = insertInto(working, op.Body)
		case "remove_function":
			next, err = removeFrom(working, op.Name, op.Force)
		case "replace_function":
			next, err = replaceIn(working, op.Name, op.Body)
		default:
			err = stree.New(stree.CodeInvalidParams, fmt.Sprintf("unknown smart_edit op %q", op.Cmd), nil).
				WithHint("insert_function, remove_function, or replace_function",
					"each batch entry needs a cmd", `{"cmd":"replace_function","name":"helper","body":"func helper() {}"}`)
		}
		if err != nil {
			if se, ok := err.(*stree.Error); ok {
				se.Message = fmt.Sprintf("op %d: %s", i, se.Message)
			}
			return nil, err
		}
		if working, err = parseSource(path, next); err != nil {
			return nil, err
		}
	}

	result := &SmartEditResult{Applied: len(ops), DryRun: dryRun}
	result.Changed = string(working.src) != string(original)

	if dryRun {
		if result.Changed {
			result.Diff = UnifiedDiff(path, original, working.src)
		}
		return result, nil
	}
	if !result.Changed {
		return result, nil
	}
	if err := writeFile(path, working.src); err != nil {
		return nil, err
	}
	return result, nil
}

// replaceIn swaps the named function for body, preserving everything else.
func replaceIn(p *parsed, name, body string) ([]byte, error) {
	fn := findFunc(p.file, name)
	if fn == nil {
		return nil, stree.New(stree.CodeInvalidParams, fmt.Sprintf("function %s not found", name), nil).
			WithHint("a function declared in the file", "call get_functions to list what exists", "")
	}
	if newName, err := declaredName(body); err != nil {
		return nil, err
	} else if newName != name {
		return nil, stree.New(stree.CodeInvalidParams,
			fmt.Sprintf("replacement declares %s, expected %s", newName, name), nil).
			WithHint("a body declaring the same function name",
				"use remove_function + insert_function to rename", "")
	}

	start := fn.Pos()
	if fn.Doc != nil {
		start = fn.Doc.Pos()
	}
	startOff := p.fset.Position(start).Offset
	endOff := p.fset.Position(fn.End()).Offset

	var next []byte
	next = append(next, p.src[:startOff]...)
	next = append(next, []byte(strings.TrimRight(body, "\n"))...)
	next = append(next, p.src[endOff:]...)

	formatted, err := format.Source(next)
	if err != nil {
		return nil, stree.New(stree.CodeParseError, "replacement breaks the file", err)
	}
	return formatted, nil
}
