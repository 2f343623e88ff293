// Package editor implements the AST-aware edit operations behind the tool
// server's edit command enum: function listing, insertion, removal with
// dependency checking, batched smart edits with dry-run diffs, and file
// creation. Edits are all-or-nothing per call: the rewritten source is
// validated in memory and written once, so a failing sub-edit leaves the
// file untouched.
package editor

import (
	"fmt"
	"go/ast"
	"go/format"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"strings"

	"github.com/hexops/gotextdiff"
	"github.com/hexops/gotextdiff/myers"
	"github.com/hexops/gotextdiff/span"

	"github.com/smarttree/smarttree/internal/importance"
	"github.com/smarttree/smarttree/internal/relations"
	"github.com/smarttree/smarttree/internal/stree"
)

// FunctionInfo describes one function or method declaration.
type FunctionInfo struct {
	Name      string `json:"name"`
	Receiver  string `json:"receiver,omitempty"`
	StartLine int    `json:"start_line"`
	EndLine   int    `json:"end_line"`
	Exported  bool   `json:"exported"`
	Doc       string `json:"doc,omitempty"`
}

// parsed bundles one loaded file with its AST.
type parsed struct {
	path string
	src  []byte
	fset *token.FileSet
	file *ast.File
}

// load reads and parses path, enforcing the closed language set first.
func load(path string) (*parsed, error) {
	if _, err := importance.LanguageFor(path); err != nil {
		return nil, err
	}
	src, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, stree.New(stree.CodeInvalidPath, "file does not exist", err).
				WithHint("an existing source file", "check file_path", path)
		}
		return nil, stree.New(stree.CodeInvalidPath, "cannot read file", err)
	}
	return parseSource(path, src)
}

func parseSource(path string, src []byte) (*parsed, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, path, src, parser.ParseComments)
	if err != nil {
		return nil, stree.New(stree.CodeParseError, "cannot parse "+filepath.Base(path), err).
			WithHint("syntactically valid source", "fix the syntax error before editing; textual guesswork is refused", "")
	}
	return &parsed{path: path, src: src, fset: fset, file: file}, nil
}

// GetFunctions lists the declared functions and methods of path in
// declaration order.
func GetFunctions(path string) ([]FunctionInfo, error) {
	p, err := load(path)
	if err != nil {
		return nil, err
	}

	var out []FunctionInfo
	for _, decl := range p.file.Decls {
		fn, ok := decl.(*ast.FuncDecl)
		if !ok {
			continue
		}
		info := FunctionInfo{
			Name:      fn.Name.Name,
			StartLine: p.fset.Position(fn.Pos()).Line,
			EndLine:   p.fset.Position(fn.End()).Line,
			Exported:  ast.IsExported(fn.Name.Name),
		}
		if fn.Recv != nil && len(fn.Recv.List) > 0 {
			info.Receiver = receiverType(fn.Recv.List[0].Type)
		}
		if fn.Doc != nil {
			info.Doc = strings.TrimSpace(fn.Doc.Text())
		}
		out = append(out, info)
	}
	return out, nil
}

func receiverType(expr ast.Expr) string {
	switch t := expr.(type) {
	case *ast.StarExpr:
		return "*" + receiverType(t.X)
	case *ast.Ident:
		return t.Name
	case *ast.IndexExpr:
		return receiverType(t.X)
	case *ast.IndexListExpr:
		return receiverType(t.X)
	}
	return ""
}

// InsertFunction appends a function declaration to path. body must be a
// complete declaration (doc comment allowed); duplicate names are refused.
func InsertFunction(path, body string) error {
	p, err := load(path)
	if err != nil {
		return err
	}
	next, err := insertInto(p, body)
	if err != nil {
		return err
	}
	return writeFile(path, next)
}

// insertInto validates body and returns the updated source.
func insertInto(p *parsed, body string) ([]byte, error) {
	name, err := declaredName(body)
	if err != nil {
		return nil, err
	}
	if findFunc(p.file, name) != nil {
		return nil, stree.New(stree.CodeInvalidParams, fmt.Sprintf("function %s already exists", name), nil).
			WithHint("a function name not yet declared in the file",
				"use smart_edit with a replace operation to change an existing function", "")
	}

	src := append([]byte{}, p.src...)
	if len(src) > 0 && src[len(src)-1] != '\n' {
		src = append(src, '\n')
	}
	src = append(src, '\n')
	src = append(src, []byte(strings.TrimRight(body, "\n"))...)
	src = append(src, '\n')

	formatted, err := format.Source(src)
	if err != nil {
		// The merged file must still parse; this catches bodies that are
		// valid declarations but break the file (e.g. unbalanced braces
		// sneaking through as a comment edge case).
		return nil, stree.New(stree.CodeParseError, "inserted function breaks the file", err)
	}
	return formatted, nil
}

// declaredName parses body as a standalone declaration and returns the
// function name.
func declaredName(body string) (string, error) {
	wrapper := "package scratch\n\n" + body
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, "scratch.go", wrapper, parser.ParseComments)
	if err != nil {
		return "", stree.New(stree.CodeParseError, "function body does not parse", err).
			WithHint("a complete function declaration", "include the func keyword through the closing brace",
				"func helper() error {\n\treturn nil\n}")
	}
	for _, decl := range file.Decls {
		if fn, ok := decl.(*ast.FuncDecl); ok {
			return fn.Name.Name, nil
		}
	}
	return "", stree.New(stree.CodeInvalidParams, "body contains no function declaration", nil)
}

// findFunc returns the declaration of name (first match, methods included
// when the name matches).
func findFunc(file *ast.File, name string) *ast.FuncDecl {
	for _, decl := range file.Decls {
		if fn, ok := decl.(*ast.FuncDecl); ok && fn.Name.Name == name {
			return fn
		}
	}
	return nil
}

// RemoveFunction deletes name from path. When other declarations in the
// file, or other .go files in the same directory, still reference it,
// removal is refused unless force is set.
func RemoveFunction(path, name string, force bool) error {
	p, err := load(path)
	if err != nil {
		return err
	}
	next, err := removeFrom(p, name, force)
	if err != nil {
		return err
	}
	return writeFile(path, next)
}

func removeFrom(p *parsed, name string, force bool) ([]byte, error) {
	fn := findFunc(p.file, name)
	if fn == nil {
		return nil, stree.New(stree.CodeInvalidParams, fmt.Sprintf("function %s not found", name), nil).
			WithHint("a function declared in the file", "call get_functions to list what exists", "")
	}

	if !force {
		deps := dependentsOf(p.file, fn)
		deps = append(deps, crossFileDependents(p.path, name)...)
		if len(deps) > 0 {
			return nil, stree.New(stree.CodeInvalidParams,
				fmt.Sprintf("function %s has dependents: %s", name, strings.Join(deps, ", ")), nil).
				WithHint("force=true, or removal of the dependents first",
					"removing a function that is still called leaves the file broken",
					fmt.Sprintf(`{"cmd":"remove_function","file_path":%q,"name":%q,"force":true}`, p.path, name))
		}
	}

	start := fn.Pos()
	if fn.Doc != nil {
		start = fn.Doc.Pos()
	}
	startOff := p.fset.Position(start).Offset
	endOff := p.fset.Position(fn.End()).Offset

	var next []byte
	next = append(next, p.src[:startOff]...)
	rest := p.src[endOff:]
	for len(rest) > 0 && rest[0] == '\n' {
		rest = rest[1:]
	}
	next = append(next, rest...)

	formatted, err := format.Source(next)
	if err != nil {
		return nil, stree.New(stree.CodeParseError, "removal breaks the file", err)
	}
	return formatted, nil
}

// crossFileDependents lists the sibling Go files that reference name,
// delegating the parse to the relations package's symbol query. Siblings
// share the target's package scope, so an unexported function can have
// callers there the single-file scan cannot see.
func crossFileDependents(path, name string) []string {
	dir := filepath.Dir(path)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	base := filepath.Base(path)
	var siblings []string
	for _, de := range entries {
		if de.IsDir() || !strings.HasSuffix(de.Name(), ".go") {
			continue
		}
		siblings = append(siblings, de.Name())
	}
	return relations.UsersOf(dir, siblings, name, base)
}

// dependentsOf lists the other function declarations in the file that call
// fn by name.
func dependentsOf(file *ast.File, fn *ast.FuncDecl) []string {
	var deps []string
	for _, decl := range file.Decls {
		other, ok := decl.(*ast.FuncDecl)
		if !ok || other == fn {
			continue
		}
		found := false
		ast.Inspect(other, func(n ast.Node) bool {
			if found {
				return false
			}
			if ident, ok := n.(*ast.Ident); ok && ident.Name == fn.Name.Name && ident.Pos() != fn.Name.Pos() {
				found = true
			}
			return true
		})
		if found {
			deps = append(deps, other.Name.Name)
		}
	}
	return deps
}

// CreateFile writes a new file, creating missing parent directories. An
// existing file is never overwritten.
func CreateFile(path, content string) error {
	if _, err := os.Stat(path); err == nil {
		return stree.New(stree.CodeInvalidParams, "file already exists", nil).
			WithHint("a path that does not exist yet", "use smart_edit to modify existing files", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return stree.New(stree.CodeInvalidPath, "cannot create parent directories", err)
	}
	return writeFile(path, []byte(content))
}

// writeFile lands content through a same-directory temp file and rename so
// a partially applied edit can never be observed.
func writeFile(path string, content []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".stree-edit-*")
	if err != nil {
		return stree.New(stree.CodeInternalError, "cannot stage edit", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return stree.New(stree.CodeInternalError, "cannot stage edit", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return stree.New(stree.CodeInternalError, "cannot stage edit", err)
	}
	if info, err := os.Stat(path); err == nil {
		os.Chmod(tmpName, info.Mode().Perm())
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return stree.New(stree.CodeInternalError, "cannot commit edit", err)
	}
	return nil
}

// UnifiedDiff renders the dry-run diff between the current and proposed
// contents of path.
func UnifiedDiff(path string, oldSrc, newSrc []byte) string {
	edits := myers.ComputeEdits(span.URIFromPath(path), string(oldSrc), string(newSrc))
	return fmt.Sprint(gotextdiff.ToUnified(path, path+" (edited)", string(oldSrc), edits))
}
