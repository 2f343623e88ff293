// Package scanmodel defines the data-transfer types shared across every
// stage of the scan pipeline: request resolution, scanning, searching,
// encoding, and the tool server. It contains only types and lightweight
// validation, no business logic.
package scanmodel

import "time"

// EntryKind classifies a filesystem entry.
type EntryKind int

const (
	KindDir EntryKind = iota
	KindFile
	KindSymlink
	KindOther
)

func (k EntryKind) String() string {
	switch k {
	case KindDir:
		return "dir"
	case KindFile:
		return "file"
	case KindSymlink:
		return "symlink"
	default:
		return "other"
	}
}

// Tag returns the single-character kind tag used by the Hex encoder:
// {d,f,l,x}.
func (k EntryKind) Tag() byte {
	switch k {
	case KindDir:
		return 'd'
	case KindFile:
		return 'f'
	case KindSymlink:
		return 'l'
	default:
		return 'x'
	}
}

// PathDisplayMode controls how FileNode.Path is rendered by text encoders.
type PathDisplayMode int

const (
	PathName PathDisplayMode = iota
	PathRelative
	PathAbsolute
)

// SortPolicy controls the deterministic child ordering the scanner applies.
type SortPolicy int

const (
	// SortDirsFirst lists directories before files, name-ascending within
	// each group.
	SortDirsFirst SortPolicy = iota
	// SortNameAscending lists all children name-ascending regardless of kind.
	SortNameAscending
)

// SizeRange is an inclusive-both-ends byte size predicate. A zero value
// (Min==0 && Max==0) is treated as "unset" by FilterSet.
type SizeRange struct {
	Min int64
	Max int64 // 0 means unbounded
}

// TimeRange is an inclusive mtime predicate, in epoch seconds.
type TimeRange struct {
	Min int64
	Max int64 // 0 means unbounded
}

// SearchSpec configures the optional content-search pass the scanner runs
// per included regular file.
type SearchSpec struct {
	// Pattern is a literal keyword or regular expression, selected by Regex.
	// Multiple patterns may be OR'd by the caller joining them with "|" when
	// Regex is true.
	Pattern string
	Regex   bool

	// MaxMatchesPerFile caps SearchMatch entries per file. 0 selects the
	// package default (100).
	MaxMatchesPerFile int

	// IncludeLineContent captures the (possibly truncated) line text.
	IncludeLineContent bool

	// ContextLines is the number of lines of context captured before/after
	// a match when IncludeLineContent is set. 0 disables context capture.
	ContextLines int

	// HardFilter drops files with zero matches from the stream entirely,
	// rather than merely annotating them with an empty match list.
	HardFilter bool

	// MaxFileSize bounds which regular files are searched at all; files
	// larger than this are skipped for search purposes (not for scanning).
	MaxFileSize int64
}

// FilterSpec is the unparsed, user-facing filter configuration consumed by
// the Filter & Ignore Engine's compile step.
type FilterSpec struct {
	NamePattern   string // glob or regex, see NameIsRegex
	NameIsRegex   bool
	Extensions    []string // without leading dot, case-insensitive
	Size          SizeRange
	MTime         TimeRange
	Kinds         []EntryKind // whitelist; empty means all kinds pass
	ShowHidden    bool
	IgnoreBuiltin bool // true disables built-in ignores
	IgnoreUser    bool // true disables hierarchical user ignore files
	ShowIgnored   bool // emit IgnoredMarker leaves instead of suppressing
}

// ScanRequest is the immutable configuration for a single scan call. Once
// constructed and compiled via filter.Compile, the resulting FilterSet is
// exclusively owned by the scan for its duration.
type ScanRequest struct {
	Root string

	// MaxDepth bounds recursion; 0 selects the mode default (unbounded).
	MaxDepth int

	Filter FilterSpec
	Search *SearchSpec // nil disables content search

	// Streaming selects the pull-style iterator mode over the buffered
	// (materialize-all) mode some encoders (treemap, some Markdown modes)
	// require.
	Streaming bool

	// FollowSymlinkDirs opts into descending into symlinked directories.
	// Off by default per the scanner's cycle-safety contract.
	FollowSymlinkDirs bool

	Sort SortPolicy

	Encoder string // encoder registry key, see encode.Registry

	PathDisplay PathDisplayMode

	// CompressionHint requests opportunistic wrapping of the encoded output;
	// the compression manager has final say based on capability and policy.
	CompressionHint bool

	// AIStrict mirrors ST_AI_STRICT: deterministic ordering, no emoji, and a
	// strict watermark in tool responses that carry this request's output.
	AIStrict bool

	// MaxEntries overrides the safety cap (see scanner.CapFor) for this
	// request. 0 selects the mode-derived default.
	MaxEntries int
}

// FileNode is the materialized view of a single filesystem entry.
type FileNode struct {
	AbsPath string
	Depth   int
	Kind    EntryKind
	Size    int64
	MTime   int64 // epoch seconds
	Perm    uint32
	UID     uint32
	GID     uint32

	Inaccessible bool
	SymlinkTarget string
	FSType        string

	IgnoredMarker bool
	IgnoreSource  string // "builtin", "gitignore", "streeignore"; set iff IgnoredMarker

	Matches []SearchMatch
}

// Name returns the final path component.
func (n FileNode) Name() string {
	for i := len(n.AbsPath) - 1; i >= 0; i-- {
		if n.AbsPath[i] == '/' {
			return n.AbsPath[i+1:]
		}
	}
	return n.AbsPath
}

// ModTime converts MTime to a time.Time in UTC, useful for ISO-8601 render.
func (n FileNode) ModTime() time.Time {
	return time.Unix(n.MTime, 0).UTC()
}

// SearchMatch is a single content-search hit within a file.
type SearchMatch struct {
	Line        int // 1-based
	Column      int // 1-based byte offset within the line
	LineContent string
	Truncated   bool
}

// EventKind tags the variant of a ScanEvent.
type EventKind int

const (
	EventEnterDir EventKind = iota
	EventExitDir
	EventFile
	EventInaccessibleDir
	EventSummary
)

// ScanEvent is a single element of the scanner's output stream. Exactly one
// of the fields relevant to Kind is populated; the rest are zero.
type ScanEvent struct {
	Kind EventKind

	// Node is populated for EventEnterDir and EventFile.
	Node FileNode

	// Path and Reason are populated for EventExitDir (Path only) and
	// EventInaccessibleDir (Path and Reason).
	Path   string
	Reason string

	// Stats is populated for EventSummary.
	Stats Statistics
}

// ExtCount pairs a file extension with its occurrence count, used for
// top-N histograms.
type ExtCount struct {
	Ext   string
	Count int
}

// SizedEntry names a file and its size, used for the largest-N report.
type SizedEntry struct {
	Path string
	Size int64
}

// Statistics aggregates counters over an emitted event stream.
type Statistics struct {
	FileCount   int
	DirCount    int
	TotalBytes  int64
	Extensions  []ExtCount
	LargestN    []SizedEntry
	MTimeMin    int64
	MTimeMax    int64
	SearchHits  int
}

// ProjectKind enumerates the detected project type from the marker-file
// priority table.
type ProjectKind string

const (
	ProjectUnknown    ProjectKind = "unknown"
	ProjectGo         ProjectKind = "go"
	ProjectNode       ProjectKind = "node"
	ProjectRust       ProjectKind = "rust"
	ProjectPython     ProjectKind = "python"
	ProjectJava       ProjectKind = "java"
	ProjectRuby       ProjectKind = "ruby"
	ProjectGit        ProjectKind = "git"
)

// ProjectContext is derived once per scan root from the marker-file
// priority table.
type ProjectContext struct {
	Kind        ProjectKind
	Description string
	MarkerFile  string
}
