// Package filter implements the compose-as-AND predicate half of the
// filtering engine: name/regex, extension set, size range, mtime range,
// and entry-kind whitelist. Glob matching is via bmatcuk/doublestar/v4.
package filter

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/smarttree/smarttree/internal/scanmodel"
	"github.com/smarttree/smarttree/internal/stree"
)

// FilterSet is the compiled, immutable form of a scanmodel.FilterSpec. A
// ScanRequest exclusively owns its FilterSet for the duration of a scan.
type FilterSet struct {
	nameRegex   *regexp.Regexp // nil if NamePattern unset
	nameGlob    string         // "" if unset or NameIsRegex
	extensions  map[string]struct{}
	size        scanmodel.SizeRange
	mtime       scanmodel.TimeRange
	kinds       map[scanmodel.EntryKind]struct{} // empty means all kinds pass
	showHidden  bool
}

// Compile converts a FilterSpec into a FilterSet, validating glob/regex
// syntax and size/date specs up front so malformed input fails fast rather
// than per-entry during the scan.
func Compile(spec scanmodel.FilterSpec) (*FilterSet, error) {
	fs := &FilterSet{
		size:       spec.Size,
		mtime:      spec.MTime,
		showHidden: spec.ShowHidden,
	}

	if spec.NamePattern != "" {
		if spec.NameIsRegex {
			re, err := regexp.Compile(spec.NamePattern)
			if err != nil {
				return nil, stree.New(stree.CodeInvalidPattern, "invalid name regex", err).
					WithHint("a valid RE2 regular expression", "check for unescaped special characters", `"name_pattern": "^main\\.go$"`)
			}
			fs.nameRegex = re
		} else {
			if !doublestar.ValidatePattern(spec.NamePattern) {
				return nil, stree.New(stree.CodeInvalidPattern, "invalid name glob", nil).
					WithHint("a valid doublestar glob", "check bracket/brace balance", `"name_pattern": "**/*.go"`)
			}
			fs.nameGlob = spec.NamePattern
		}
	}

	if len(spec.Extensions) > 0 {
		fs.extensions = make(map[string]struct{}, len(spec.Extensions))
		for _, ext := range spec.Extensions {
			fs.extensions[strings.ToLower(strings.TrimPrefix(ext, "."))] = struct{}{}
		}
	}

	if spec.Size.Min < 0 || spec.Size.Max < 0 || (spec.Size.Max != 0 && spec.Size.Max < spec.Size.Min) {
		return nil, stree.New(stree.CodeInvalidSizeSpec, "invalid size range", nil).
			WithHint("0 <= min <= max (or max=0 for unbounded)", "swap or correct the bounds", `{"min": 0, "max": 1048576}`)
	}
	if spec.MTime.Min < 0 || spec.MTime.Max < 0 || (spec.MTime.Max != 0 && spec.MTime.Max < spec.MTime.Min) {
		return nil, stree.New(stree.CodeInvalidDateSpec, "invalid mtime range", nil).
			WithHint("0 <= min <= max (or max=0 for unbounded)", "swap or correct the bounds", `{"min": 0, "max": 1735689600}`)
	}

	if len(spec.Kinds) > 0 {
		fs.kinds = make(map[scanmodel.EntryKind]struct{}, len(spec.Kinds))
		for _, k := range spec.Kinds {
			fs.kinds[k] = struct{}{}
		}
	}

	return fs, nil
}

// Decision is the result of Decide.
type Decision int

const (
	Include Decision = iota
	Exclude
	IncludeAsIgnoredMarker
)

// Decide is a pure predicate over node and ancestors: the scanner never
// mutates FilterSet state, so the same (node, ancestors) pair always yields
// the same Decision.
//
// ignored reports whether an ignore source matched this path (computed by
// the caller via the ignore package); showIgnored controls whether an
// ignored directory becomes a leaf marker or is suppressed entirely.
func (f *FilterSet) Decide(relPath, name string, node scanmodel.FileNode, ignored, showIgnored bool) Decision {
	if ignored {
		if showIgnored {
			return IncludeAsIgnoredMarker
		}
		return Exclude
	}

	if !f.showHidden && strings.HasPrefix(name, ".") && name != "." {
		return Exclude
	}

	if f.kinds != nil {
		if _, ok := f.kinds[node.Kind]; !ok {
			return Exclude
		}
	}

	if f.size.Max != 0 && node.Size > f.size.Max {
		return Exclude
	}
	if node.Size < f.size.Min {
		return Exclude
	}

	if f.mtime.Max != 0 && node.MTime > f.mtime.Max {
		return Exclude
	}
	if node.MTime < f.mtime.Min {
		return Exclude
	}

	if f.nameRegex != nil && !f.nameRegex.MatchString(name) {
		return Exclude
	}
	if f.nameGlob != "" {
		matched, err := doublestar.Match(f.nameGlob, relPath)
		if err == nil && !matched {
			// Allow matching against the bare name too, so patterns like
			// "*.go" work without requiring a full relative-path glob.
			if nameMatched, nerr := doublestar.Match(f.nameGlob, name); nerr != nil || !nameMatched {
				return Exclude
			}
		}
	}

	if f.extensions != nil {
		ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
		if _, ok := f.extensions[ext]; !ok {
			return Exclude
		}
	}

	return Include
}

// HasPredicates reports whether any predicate beyond hidden-file filtering
// is configured. A scanner may use this to skip filter evaluation entirely
// on hot paths.
func (f *FilterSet) HasPredicates() bool {
	return f.nameRegex != nil || f.nameGlob != "" || f.extensions != nil ||
		f.size.Min != 0 || f.size.Max != 0 || f.mtime.Min != 0 || f.mtime.Max != 0 || f.kinds != nil
}

// ErrEmptyPattern is returned by callers constructing a FilterSpec whose
// NamePattern is present but empty after trimming; kept here since Compile
// is the single validation surface the scanner and tool dispatcher share.
var ErrEmptyPattern = fmt.Errorf("empty pattern")
