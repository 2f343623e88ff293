package ignore

import (
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"

	gitignore "github.com/sabhiram/go-gitignore"
)

// HierarchicalMatcher loads and evaluates ignore-file patterns hierarchically:
// a file named fileName is discovered at every directory level, and each
// level's patterns apply to its own subtree. Parent rules are inherited by
// children. One constructor parameterized by fileName serves both
// .gitignore and .streeignore.
type HierarchicalMatcher struct {
	root     string
	fileName string
	matchers map[string]*gitignore.GitIgnore
	dirs     []string
	logger   *slog.Logger
}

// NewHierarchicalMatcher walks rootDir looking for every file named fileName
// and compiles its patterns. Missing files at any level are not an error;
// IsIgnored simply returns false for a matcher with zero loaded files.
func NewHierarchicalMatcher(rootDir, fileName string) (*HierarchicalMatcher, error) {
	absRoot, err := filepath.Abs(rootDir)
	if err != nil {
		return nil, fmt.Errorf("resolving root path %s: %w", rootDir, err)
	}

	logger := slog.Default().With("component", "ignore", "file", fileName)
	m := &HierarchicalMatcher{
		root:     absRoot,
		fileName: fileName,
		matchers: make(map[string]*gitignore.GitIgnore),
		logger:   logger,
	}

	if err := m.discover(); err != nil {
		return nil, fmt.Errorf("discovering %s files in %s: %w", fileName, absRoot, err)
	}
	return m, nil
}

func (m *HierarchicalMatcher) discover() error {
	err := filepath.WalkDir(m.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			m.logger.Debug("skipping unreadable path", "path", path, "error", err)
			return filepath.SkipDir
		}
		if d.IsDir() && d.Name() == ".git" {
			return filepath.SkipDir
		}
		if d.IsDir() || d.Name() != m.fileName {
			return nil
		}

		dirPath := filepath.Dir(path)
		relDir, err := filepath.Rel(m.root, dirPath)
		if err != nil {
			return nil
		}
		compiled, err := gitignore.CompileIgnoreFile(path)
		if err != nil {
			m.logger.Debug("skipping unreadable ignore file", "path", path, "error", err)
			return nil
		}
		if relDir == "" {
			relDir = "."
		}
		m.matchers[relDir] = compiled
		return nil
	})
	if err != nil {
		return err
	}

	m.dirs = make([]string, 0, len(m.matchers))
	for dir := range m.matchers {
		m.dirs = append(m.dirs, dir)
	}
	sort.Strings(m.dirs)
	return nil
}

// IsIgnored reports whether path matches any loaded ignore file from root
// toward path's parent directory.
func (m *HierarchicalMatcher) IsIgnored(path string, isDir bool) bool {
	normalized := filepath.ToSlash(path)
	normalized = strings.TrimPrefix(normalized, "./")
	if normalized == "" || normalized == "." {
		return false
	}

	matchPath := normalized
	if isDir && !strings.HasSuffix(matchPath, "/") {
		matchPath += "/"
	}

	for _, dir := range m.dirs {
		matcher := m.matchers[dir]
		if dir != "." {
			prefix := dir + "/"
			if !strings.HasPrefix(normalized, prefix) {
				continue
			}
		}

		var relPath string
		if dir == "." {
			relPath = matchPath
		} else {
			relPath = strings.TrimPrefix(matchPath, dir+"/")
		}

		if matcher.MatchesPath(relPath) {
			return true
		}
	}
	return false
}

// PatternCount reports how many ignore files were loaded.
func (m *HierarchicalMatcher) PatternCount() int { return len(m.matchers) }

var _ Ignorer = (*HierarchicalMatcher)(nil)

// NewGitignoreMatcher is the .gitignore-flavored constructor.
func NewGitignoreMatcher(rootDir string) (*HierarchicalMatcher, error) {
	return NewHierarchicalMatcher(rootDir, ".gitignore")
}

// NewStreeignoreMatcher is the .streeignore-flavored constructor — a
// tool-specific ignore file independent of version control, evaluated
// alongside .gitignore so a repo can add tool-only exclusions without
// touching its VCS ignore file.
func NewStreeignoreMatcher(rootDir string) (*HierarchicalMatcher, error) {
	return NewHierarchicalMatcher(rootDir, ".streeignore")
}
