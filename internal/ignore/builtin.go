package ignore

import (
	"log/slog"
	"path/filepath"
	"strings"

	gitignore "github.com/sabhiram/go-gitignore"
)

// BuiltinPatterns is the closed, documented set of default ignores: VCS
// metadata and common build/cache directories. Secret/credential-pattern
// matching is a separate concern and does not belong in this list.
var BuiltinPatterns = []string{
	".git/",
	".hg/",
	".svn/",
	"node_modules/",
	"dist/",
	"build/",
	"target/",
	"vendor/",
	"__pycache__/",
	".next/",
	".venv/",
	"venv/",
	".smarttree/",
	".DS_Store",
	"Thumbs.db",
}

// BuiltinMatcher compiles BuiltinPatterns into an Ignorer. It can be
// disabled independently of the hierarchical user sources per FilterSpec.IgnoreBuiltin.
type BuiltinMatcher struct {
	matcher *gitignore.GitIgnore
	logger  *slog.Logger
}

// NewBuiltinMatcher compiles BuiltinPatterns. This never fails: the patterns
// are compile-time constants.
func NewBuiltinMatcher() *BuiltinMatcher {
	return &BuiltinMatcher{
		matcher: gitignore.CompileIgnoreLines(BuiltinPatterns...),
		logger:  slog.Default().With("component", "builtin-ignore"),
	}
}

func (b *BuiltinMatcher) IsIgnored(path string, isDir bool) bool {
	normalized := filepath.ToSlash(path)
	normalized = strings.TrimPrefix(normalized, "./")
	if normalized == "" || normalized == "." {
		return false
	}
	matchPath := normalized
	if isDir && !strings.HasSuffix(matchPath, "/") {
		matchPath += "/"
	}
	return b.matcher.MatchesPath(matchPath)
}

var _ Ignorer = (*BuiltinMatcher)(nil)
