package relations

import (
	"go/ast"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/smarttree/smarttree/internal/importance"
)

// fileFacts is the per-file parse result the builder aggregates into the
// graph.
type fileFacts struct {
	path    string // root-relative
	imports []string
	defines []string // exported top-level symbols
	uses    []string // capitalized identifiers called as functions
	types   []string // capitalized type names used in composite literals
}

// Build parses the given Go files (paths relative to root) concurrently and
// assembles the relation graph. Files that fail to parse contribute no
// edges; the scan-level contract is that relations are best-effort over
// whatever parses.
func Build(root string, files []string) *Graph {
	facts := make([]*fileFacts, len(files))

	var eg errgroup.Group
	eg.SetLimit(runtime.NumCPU())
	var mu sync.Mutex

	for i, rel := range files {
		i, rel := i, rel
		eg.Go(func() error {
			f, err := parseFile(filepath.Join(root, rel), rel)
			if err != nil {
				return nil
			}
			mu.Lock()
			facts[i] = f
			mu.Unlock()
			return nil
		})
	}
	eg.Wait()

	g := NewGraph()

	// First pass: intern scan files and index who defines what.
	definedBy := make(map[string]NodeID)
	for _, f := range facts {
		if f == nil {
			continue
		}
		id := g.Intern(f.path, false)
		for _, sym := range f.defines {
			if _, taken := definedBy[sym]; !taken {
				definedBy[sym] = id
			}
		}
	}

	// Second pass: edges.
	for _, f := range facts {
		if f == nil {
			continue
		}
		from := g.Intern(f.path, false)

		for _, imp := range f.imports {
			g.AddEdge(KindImports, from, g.Intern(imp, true))
		}
		for _, sym := range f.uses {
			if to, ok := definedBy[sym]; ok {
				g.AddEdge(KindCalls, from, to)
			}
		}
		for _, sym := range f.types {
			if to, ok := definedBy[sym]; ok {
				g.AddEdge(KindTypes, from, to)
			}
		}

		if strings.HasSuffix(f.path, "_test.go") {
			subject := strings.TrimSuffix(f.path, "_test.go") + ".go"
			if to, ok := g.Lookup(subject); ok {
				g.AddEdge(KindTests, from, to)
			}
		}
	}

	return g
}

func parseFile(absPath, relPath string) (*fileFacts, error) {
	src, err := os.ReadFile(absPath)
	if err != nil {
		return nil, err
	}
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, relPath, src, 0)
	if err != nil {
		return nil, err
	}

	f := &fileFacts{path: relPath}

	for _, imp := range file.Imports {
		if p, err := strconv.Unquote(imp.Path.Value); err == nil {
			f.imports = append(f.imports, p)
		}
	}

	defined := make(map[string]struct{})
	for _, decl := range file.Decls {
		switch d := decl.(type) {
		case *ast.FuncDecl:
			if d.Recv == nil && ast.IsExported(d.Name.Name) {
				f.defines = append(f.defines, d.Name.Name)
				defined[d.Name.Name] = struct{}{}
			}
		case *ast.GenDecl:
			for _, spec := range d.Specs {
				if ts, ok := spec.(*ast.TypeSpec); ok && ast.IsExported(ts.Name.Name) {
					f.defines = append(f.defines, ts.Name.Name)
					defined[ts.Name.Name] = struct{}{}
				}
			}
		}
	}

	// References: exported identifiers used in call or type position that
	// this file does not itself define.
	ast.Inspect(file, func(n ast.Node) bool {
		switch e := n.(type) {
		case *ast.CallExpr:
			if ident, ok := e.Fun.(*ast.Ident); ok && ast.IsExported(ident.Name) {
				if _, own := defined[ident.Name]; !own {
					f.uses = append(f.uses, ident.Name)
				}
			}
		case *ast.CompositeLit:
			if ident, ok := e.Type.(*ast.Ident); ok && ast.IsExported(ident.Name) {
				if _, own := defined[ident.Name]; !own {
					f.types = append(f.types, ident.Name)
				}
			}
		}
		return true
	})

	return f, nil
}

// UsersOf parses the given Go files (root-relative) and reports which of
// them reference symbol, excluding skip (the defining file). Unlike the
// graph's exported-only edges this matches any identifier, so the editor's
// remove_function check catches package-internal callers too. Files that
// fail to read or parse contribute nothing, matching Build's best-effort
// contract.
func UsersOf(root string, files []string, symbol, skip string) []string {
	var out []string
	for _, rel := range files {
		if rel == skip {
			continue
		}
		src, err := os.ReadFile(filepath.Join(root, rel))
		if err != nil {
			continue
		}
		fset := token.NewFileSet()
		file, err := parser.ParseFile(fset, rel, src, 0)
		if err != nil {
			continue
		}
		found := false
		ast.Inspect(file, func(n ast.Node) bool {
			if found {
				return false
			}
			if ident, ok := n.(*ast.Ident); ok && ident.Name == symbol {
				found = true
			}
			return true
		})
		if found {
			out = append(out, rel)
		}
	}
	sort.Strings(out)
	return out
}

// GoFilesOf filters a scanned file list down to the Go sources the builder
// accepts, preserving order.
func GoFilesOf(paths []string) []string {
	var out []string
	for _, p := range paths {
		if _, err := importance.LanguageFor(p); err == nil {
			out = append(out, p)
		}
	}
	return out
}
