package importance

import (
	"go/ast"
	"go/parser"
	"go/token"
	"sort"
	"strings"

	"github.com/smarttree/smarttree/internal/stree"
)

// languageByExt is the closed set of extensions the analyzer understands.
// Only Go is listed; every other extension gets an UnsupportedLanguage
// error from LanguageFor instead of being silently skipped.
var languageByExt = map[string]string{
	".go": "go",
}

// LanguageFor maps a filename to its language tag, or an
// UnsupportedLanguage error for anything outside the closed set.
func LanguageFor(filename string) (string, error) {
	idx := strings.LastIndexByte(filename, '.')
	if idx < 0 {
		return "", unsupported(filename)
	}
	lang, ok := languageByExt[filename[idx:]]
	if !ok {
		return "", unsupported(filename)
	}
	return lang, nil
}

func unsupported(filename string) error {
	return stree.New(stree.CodeUnsupportedLanguage, "no analyzer for "+filename, nil).
		WithHint("a file with a supported extension (.go)",
			"symbol scoring is language-aware; unsupported files are skipped by the semantic encoder",
			"src/main.go")
}

// AnalyzeGoSource parses Go source text and scores every top-level
// declaration. filename scopes test detection (_test.go) and error text.
func AnalyzeGoSource(filename string, src []byte) ([]Symbol, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, filename, src, parser.ParseComments)
	if err != nil {
		return nil, stree.New(stree.CodeParseError, "parse "+filename, err)
	}

	isTestFile := strings.HasSuffix(filename, "_test.go")
	var symbols []Symbol

	for _, decl := range file.Decls {
		switch d := decl.(type) {
		case *ast.FuncDecl:
			sym := Symbol{
				Name:       d.Name.Name,
				Kind:       KindFunc,
				Line:       fset.Position(d.Pos()).Line,
				Documented: d.Doc != nil,
			}
			if d.Recv != nil && len(d.Recv.List) > 0 {
				sym.Kind = KindMethod
				sym.Receiver = receiverName(d.Recv.List[0].Type)
			}
			sym.Tier = classify(sym.Name, sym.Documented, isTestFile, d.Recv == nil)
			symbols = append(symbols, sym)

		case *ast.GenDecl:
			kind := genKind(d.Tok)
			if kind == "" {
				continue
			}
			for _, spec := range d.Specs {
				for _, s := range specSymbols(spec, kind, fset, d.Doc != nil) {
					s.Tier = classify(s.Name, s.Documented, isTestFile, false)
					symbols = append(symbols, s)
				}
			}
		}
	}

	sort.SliceStable(symbols, func(i, j int) bool {
		if symbols[i].Tier != symbols[j].Tier {
			return symbols[i].Tier < symbols[j].Tier
		}
		return symbols[i].Line < symbols[j].Line
	})
	return symbols, nil
}

// classify applies the rubric: exported > entry > documented > test >
// private. In test files, Test/Benchmark/Fuzz functions and undocumented
// unexported symbols other than main/init land in the test tier.
func classify(name string, documented, isTestFile, isTopLevelFunc bool) Tier {
	if isTestFile && (strings.HasPrefix(name, "Test") || strings.HasPrefix(name, "Benchmark") || strings.HasPrefix(name, "Fuzz")) {
		return TierTest
	}
	if ast.IsExported(name) {
		return TierExported
	}
	if isTopLevelFunc && (name == "main" || name == "init") {
		return TierEntry
	}
	if documented {
		return TierDocumented
	}
	if isTestFile {
		return TierTest
	}
	return TierPrivate
}

func genKind(tok token.Token) SymbolKind {
	switch tok {
	case token.TYPE:
		return KindType
	case token.VAR:
		return KindVar
	case token.CONST:
		return KindConst
	default:
		return ""
	}
}

func specSymbols(spec ast.Spec, kind SymbolKind, fset *token.FileSet, declDoc bool) []Symbol {
	switch s := spec.(type) {
	case *ast.TypeSpec:
		return []Symbol{{
			Name:       s.Name.Name,
			Kind:       kind,
			Line:       fset.Position(s.Pos()).Line,
			Documented: declDoc || s.Doc != nil,
		}}
	case *ast.ValueSpec:
		out := make([]Symbol, 0, len(s.Names))
		for _, n := range s.Names {
			if n.Name == "_" {
				continue
			}
			out = append(out, Symbol{
				Name:       n.Name,
				Kind:       kind,
				Line:       fset.Position(n.Pos()).Line,
				Documented: declDoc || s.Doc != nil,
			})
		}
		return out
	}
	return nil
}

func receiverName(expr ast.Expr) string {
	switch t := expr.(type) {
	case *ast.StarExpr:
		return receiverName(t.X)
	case *ast.Ident:
		return t.Name
	case *ast.IndexExpr:
		return receiverName(t.X)
	case *ast.IndexListExpr:
		return receiverName(t.X)
	}
	return ""
}

// AnalyzeFile reads and scores path. Unsupported extensions return
// UnsupportedLanguage without touching the file.
func AnalyzeFile(path string, read func(string) ([]byte, error)) ([]Symbol, error) {
	if _, err := LanguageFor(path); err != nil {
		return nil, err
	}
	src, err := read(path)
	if err != nil {
		return nil, stree.New(stree.CodeInvalidPath, "read "+path, err)
	}
	return AnalyzeGoSource(path, src)
}
