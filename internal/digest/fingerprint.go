package digest

import (
	"fmt"
	"strings"

	"github.com/zeebo/xxh3"

	"github.com/smarttree/smarttree/internal/scanmodel"
)

// Fingerprint computes the args_fingerprint for a ScanRequest: an xxh3 hash
// of its canonicalized field encoding. Two requests with the same
// fingerprint produce the same output for an unchanged filesystem, which is
// what makes the fingerprint usable as a cache key and as the
// args_fingerprint watermark field.
func Fingerprint(req scanmodel.ScanRequest) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "root=%s;depth=%d;enc=%s;stream=%t;follow=%t;sort=%d;display=%d;strict=%t;max=%d;",
		req.Root, req.MaxDepth, req.Encoder, req.Streaming, req.FollowSymlinkDirs,
		req.Sort, req.PathDisplay, req.AIStrict, req.MaxEntries)

	f := req.Filter
	fmt.Fprintf(&sb, "name=%s;regex=%t;ext=%s;size=%d-%d;mtime=%d-%d;hidden=%t;builtin=%t;user=%t;showign=%t;",
		f.NamePattern, f.NameIsRegex, strings.Join(f.Extensions, ","),
		f.Size.Min, f.Size.Max, f.MTime.Min, f.MTime.Max,
		f.ShowHidden, f.IgnoreBuiltin, f.IgnoreUser, f.ShowIgnored)
	for _, k := range f.Kinds {
		fmt.Fprintf(&sb, "kind=%d;", k)
	}

	if s := req.Search; s != nil {
		fmt.Fprintf(&sb, "search=%s;sregex=%t;smax=%d;sline=%t;sctx=%d;shard=%t;",
			s.Pattern, s.Regex, s.MaxMatchesPerFile, s.IncludeLineContent, s.ContextLines, s.HardFilter)
	}

	return fmt.Sprintf("%016x", xxh3.HashString(sb.String()))
}
