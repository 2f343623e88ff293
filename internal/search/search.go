// Package search implements the line-oriented content search pass the
// scanner runs over included regular files: pattern compilation, per-line
// matching with a per-file match cap, and optional line-content capture
// with truncation.
package search

import (
	"bufio"
	"bytes"
	"os"
	"regexp"

	"github.com/smarttree/smarttree/internal/scanmodel"
	"github.com/smarttree/smarttree/internal/stree"
)

const (
	defaultMaxMatchesPerFile = 100
	defaultMaxFileSize       = 10 << 20 // 10 MiB
	maxLineContentBytes      = 500
	sniffBytes               = 8192
)

// Matcher is the compiled, immutable form of a scanmodel.SearchSpec.
type Matcher struct {
	re                 *regexp.Regexp
	maxMatchesPerFile   int
	includeLineContent  bool
	contextLines        int
	hardFilter          bool
	maxFileSize         int64
}

// Compile validates and compiles spec into a Matcher. A non-regex pattern is
// compiled as a literal (quoted) match; Regex=true compiles spec.Pattern
// directly, allowing callers to OR multiple patterns with "|".
func Compile(spec scanmodel.SearchSpec) (*Matcher, error) {
	if spec.Pattern == "" {
		return nil, stree.New(stree.CodeInvalidPattern, "empty search pattern", nil).
			WithHint("a non-empty literal or regular expression", "supply SearchSpec.Pattern", `"pattern": "TODO"`)
	}

	pattern := spec.Pattern
	if !spec.Regex {
		pattern = regexp.QuoteMeta(pattern)
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, stree.New(stree.CodeInvalidPattern, "invalid search regex", err).
			WithHint("a valid RE2 regular expression", "check for unescaped special characters", `"pattern": "func\\s+\\w+"`)
	}

	maxMatches := spec.MaxMatchesPerFile
	if maxMatches <= 0 {
		maxMatches = defaultMaxMatchesPerFile
	}
	maxSize := spec.MaxFileSize
	if maxSize <= 0 {
		maxSize = defaultMaxFileSize
	}

	return &Matcher{
		re:                 re,
		maxMatchesPerFile:  maxMatches,
		includeLineContent: spec.IncludeLineContent,
		contextLines:       spec.ContextLines,
		hardFilter:         spec.HardFilter,
		maxFileSize:        maxSize,
	}, nil
}

// HardFilter reports whether files with zero matches should be dropped
// entirely rather than annotated with an empty match list.
func (m *Matcher) HardFilter() bool { return m.hardFilter }

// Search scans path line by line and returns up to maxMatchesPerFile
// SearchMatch values. Binary files (a NUL byte in the first sniffBytes) and
// files larger than maxFileSize are skipped, returning (nil, nil) rather
// than an error: search is best-effort over the file population, not a
// per-file hard requirement.
func (m *Matcher) Search(path string) ([]scanmodel.SearchMatch, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, nil
	}
	if info.Size() > m.maxFileSize {
		return nil, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, nil
	}
	defer f.Close()

	sniff := make([]byte, sniffBytes)
	n, _ := f.Read(sniff)
	if bytes.IndexByte(sniff[:n], 0) != -1 {
		return nil, nil
	}
	if _, err := f.Seek(0, 0); err != nil {
		return nil, nil
	}

	var lines []string
	if m.includeLineContent && m.contextLines > 0 {
		scan := bufio.NewScanner(f)
		scan.Buffer(make([]byte, 64*1024), 1<<20)
		for scan.Scan() {
			lines = append(lines, scan.Text())
		}
		if _, err := f.Seek(0, 0); err != nil {
			return nil, nil
		}
	}

	var matches []scanmodel.SearchMatch
	scan := bufio.NewScanner(f)
	scan.Buffer(make([]byte, 64*1024), 1<<20)

	lineNo := 0
	for scan.Scan() {
		lineNo++
		line := scan.Text()
		loc := m.re.FindStringIndex(line)
		if loc == nil {
			continue
		}

		match := scanmodel.SearchMatch{
			Line:   lineNo,
			Column: loc[0] + 1,
		}
		if m.includeLineContent {
			match.LineContent = m.renderContent(line, lineNo, lines)
			match.Truncated = len(line) > maxLineContentBytes
		}
		matches = append(matches, match)

		if len(matches) >= m.maxMatchesPerFile {
			break
		}
	}

	return matches, nil
}

// renderContent builds the captured line text for a match: the matched
// line alone, truncated to maxLineContentBytes, or (when contextLines is
// configured and the full file was pre-read into lines) that many
// surrounding lines joined with newlines.
func (m *Matcher) renderContent(line string, lineNo int, lines []string) string {
	truncate := func(s string) string {
		if len(s) > maxLineContentBytes {
			return s[:maxLineContentBytes]
		}
		return s
	}
	if m.contextLines <= 0 || lines == nil {
		return truncate(line)
	}

	start := lineNo - 1 - m.contextLines
	if start < 0 {
		start = 0
	}
	end := lineNo - 1 + m.contextLines
	if end >= len(lines) {
		end = len(lines) - 1
	}
	return truncate(joinLines(lines[start : end+1]))
}

func joinLines(ls []string) string {
	out := ls[0]
	for _, l := range ls[1:] {
		out += "\n" + l
	}
	return out
}
