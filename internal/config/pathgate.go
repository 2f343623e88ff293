package config

import (
	"path/filepath"
	"strings"

	"github.com/smarttree/smarttree/internal/stree"
)

// CheckPath evaluates the allow/deny lists against a canonicalized path.
// Evaluation is allow-then-deny on prefix match: an empty allow list
// permits everything, then any matching deny prefix rejects.
func (c *DaemonConfig) CheckPath(path string) error {
	canon, err := filepath.Abs(path)
	if err != nil {
		return stree.New(stree.CodeInvalidPath, "cannot canonicalize path", err)
	}
	if resolved, err := filepath.EvalSymlinks(canon); err == nil {
		canon = resolved
	}

	if len(c.AllowedPaths) > 0 {
		allowed := false
		for _, prefix := range c.AllowedPaths {
			if hasPathPrefix(canon, prefix) {
				allowed = true
				break
			}
		}
		if !allowed {
			return stree.New(stree.CodePermissionDenied, "path outside the allow list", nil).
				WithHint("a path under: "+strings.Join(c.AllowedPaths, ", "),
					"the server was started with ST_MCP_ALLOWED_PATHS or an allowed_paths config", canon)
		}
	}

	for _, prefix := range c.BlockedPaths {
		if hasPathPrefix(canon, prefix) {
			return stree.New(stree.CodePermissionDenied, "path is blocked", nil).
				WithHint("a path outside: "+strings.Join(c.BlockedPaths, ", "),
					"the server was started with ST_MCP_BLOCKED_PATHS or a blocked_paths config", canon)
		}
	}
	return nil
}

// hasPathPrefix is a component-aware prefix test: /a/b matches /a/b and
// /a/b/c but not /a/bc.
func hasPathPrefix(path, prefix string) bool {
	prefix = filepath.Clean(prefix)
	if path == prefix {
		return true
	}
	if !strings.HasSuffix(prefix, string(filepath.Separator)) {
		prefix += string(filepath.Separator)
	}
	return strings.HasPrefix(path, prefix)
}
