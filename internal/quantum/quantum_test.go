package quantum

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smarttree/smarttree/internal/scanmodel"
)

// sampleStream mirrors the event shape the scanner emits for a small tree:
//
//	/r
//	├── src/
//	│   ├── main.go
//	│   └── util.go
//	├── link -> target
//	└── README.md
func sampleStream() []scanmodel.ScanEvent {
	dir := func(p string, depth int) scanmodel.FileNode {
		return scanmodel.FileNode{AbsPath: p, Depth: depth, Kind: scanmodel.KindDir, Perm: 0o755, MTime: 1700000000, UID: 1000, GID: 1000}
	}
	file := func(p string, depth int, size int64) scanmodel.FileNode {
		return scanmodel.FileNode{AbsPath: p, Depth: depth, Kind: scanmodel.KindFile, Perm: 0o644, MTime: 1700000100, UID: 1000, GID: 1000, Size: size}
	}

	link := scanmodel.FileNode{AbsPath: "/r/link", Depth: 1, Kind: scanmodel.KindSymlink, Perm: 0o777, MTime: 1700000000, UID: 1000, GID: 1000, SymlinkTarget: "target"}

	return []scanmodel.ScanEvent{
		{Kind: scanmodel.EventEnterDir, Node: scanmodel.FileNode{AbsPath: "/r", Depth: 0, Kind: scanmodel.KindDir}},
		{Kind: scanmodel.EventEnterDir, Node: dir("/r/src", 1)},
		{Kind: scanmodel.EventFile, Node: file("/r/src/main.go", 2, 120)},
		{Kind: scanmodel.EventFile, Node: file("/r/src/util.go", 2, 80)},
		{Kind: scanmodel.EventExitDir, Path: "src"},
		{Kind: scanmodel.EventFile, Node: link},
		{Kind: scanmodel.EventFile, Node: file("/r/README.md", 1, 12)},
		{Kind: scanmodel.EventExitDir, Path: "."},
		{Kind: scanmodel.EventSummary, Stats: scanmodel.Statistics{FileCount: 3, DirCount: 2, TotalBytes: 212}},
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	events := sampleStream()
	stream := Encode(events)

	got, err := Decode(stream)
	require.NoError(t, err)
	require.Len(t, got, len(events))

	for i, want := range events {
		assert.Equal(t, want.Kind, got[i].Kind, "event %d kind", i)
		switch want.Kind {
		case scanmodel.EventEnterDir, scanmodel.EventFile:
			assert.Equal(t, want.Node.AbsPath, got[i].Node.AbsPath, "event %d path", i)
			assert.Equal(t, want.Node.Depth, got[i].Node.Depth, "event %d depth", i)
			assert.Equal(t, want.Node.Kind, got[i].Node.Kind, "event %d node kind", i)
			assert.Equal(t, want.Node.Size, got[i].Node.Size, "event %d size", i)
			assert.Equal(t, want.Node.Perm, got[i].Node.Perm, "event %d perm", i)
			assert.Equal(t, want.Node.MTime, got[i].Node.MTime, "event %d mtime", i)
			assert.Equal(t, want.Node.UID, got[i].Node.UID)
			assert.Equal(t, want.Node.GID, got[i].Node.GID)
			assert.Equal(t, want.Node.SymlinkTarget, got[i].Node.SymlinkTarget)
		case scanmodel.EventExitDir:
			assert.Equal(t, want.Path, got[i].Path)
		case scanmodel.EventSummary:
			assert.Equal(t, want.Stats.FileCount, got[i].Stats.FileCount)
			assert.Equal(t, want.Stats.DirCount, got[i].Stats.DirCount)
			assert.Equal(t, want.Stats.TotalBytes, got[i].Stats.TotalBytes)
		}
	}
}

func TestEncodeDeterministic(t *testing.T) {
	a := Encode(sampleStream())
	b := Encode(sampleStream())
	assert.Equal(t, a, b)
}

func TestDecodeRejectsCorruptStream(t *testing.T) {
	stream := Encode(sampleStream())

	// Flip a data byte: CRC must catch it.
	corrupted := append([]byte(nil), stream...)
	corrupted[len(corrupted)-3] ^= 0xFF
	_, err := Decode(corrupted)
	assert.Error(t, err)

	_, err = Decode([]byte("not a quantum stream"))
	assert.Error(t, err)
}

func TestInaccessibleDirSurvivesRoundTrip(t *testing.T) {
	events := []scanmodel.ScanEvent{
		{Kind: scanmodel.EventEnterDir, Node: scanmodel.FileNode{AbsPath: "/r", Kind: scanmodel.KindDir}},
		{Kind: scanmodel.EventInaccessibleDir, Path: "locked", Reason: "permission-denied"},
		{Kind: scanmodel.EventExitDir, Path: "."},
	}
	got, err := Decode(Encode(events))
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, scanmodel.EventInaccessibleDir, got[1].Kind)
	assert.Equal(t, "locked", got[1].Path)
	assert.Equal(t, "permission-denied", got[1].Reason)
}

func TestTokenTableAllocation(t *testing.T) {
	table := NewTokenTable()

	// Well-known names resolve without allocation.
	id, ok := table.Lookup("node_modules")
	require.True(t, ok)
	assert.Less(t, int(id), DynamicBase)

	table.AllocateFrequent(map[string]int{
		"very-repeated-name.tsx": 40,
		"x":                      100, // too short to save bytes
	})
	id, ok = table.Lookup("very-repeated-name.tsx")
	require.True(t, ok)
	assert.GreaterOrEqual(t, int(id), DynamicBase)
	_, ok = table.Lookup("x")
	assert.False(t, ok)

	assert.Contains(t, table.HeaderSection(), "very-repeated-name.tsx")
}

func TestTokenizedNamesRoundTrip(t *testing.T) {
	var events []scanmodel.ScanEvent
	events = append(events, scanmodel.ScanEvent{Kind: scanmodel.EventEnterDir, Node: scanmodel.FileNode{AbsPath: "/r", Kind: scanmodel.KindDir}})
	for i := 0; i < 8; i++ {
		events = append(events, scanmodel.ScanEvent{
			Kind: scanmodel.EventEnterDir,
			Node: scanmodel.FileNode{AbsPath: "/r/component-template", Depth: 1, Kind: scanmodel.KindDir},
		}, scanmodel.ScanEvent{Kind: scanmodel.EventExitDir, Path: "component-template"})
	}
	events = append(events, scanmodel.ScanEvent{Kind: scanmodel.EventExitDir, Path: "."})

	stream := Encode(events)
	assert.Contains(t, string(stream), "TOKENS: ")

	got, err := Decode(stream)
	require.NoError(t, err)
	assert.Equal(t, "/r/component-template", got[1].Node.AbsPath)
}

func TestEncodeWithVocabularyExtendsTokenTable(t *testing.T) {
	events := []scanmodel.ScanEvent{
		{Kind: scanmodel.EventEnterDir, Node: scanmodel.FileNode{AbsPath: "/r", Kind: scanmodel.KindDir}},
		{Kind: scanmodel.EventExitDir, Path: "."},
	}

	stream := EncodeWithVocabulary(events, []string{"OpenStore", "Serve"})
	assert.Contains(t, string(stream), "=OpenStore\n")
	assert.Contains(t, string(stream), "=Serve\n")

	// The extended header still decodes cleanly.
	got, err := Decode(stream)
	require.NoError(t, err)
	assert.Len(t, got, 2)

	// Deterministic for a fixed vocabulary order.
	assert.Equal(t, stream, EncodeWithVocabulary(events, []string{"OpenStore", "Serve"}))
}

func TestEscapeRoundTrip(t *testing.T) {
	raw := []byte{0x01, 0x1B, 0x00, 0x42, 0x1B, 0x1B, 0x00}
	wire := Escape(raw)
	got, err := Unescape(wire)
	require.NoError(t, err)
	assert.Equal(t, raw, got)

	_, err = Unescape([]byte{0x41, 0x1B})
	assert.Error(t, err)
	_, err = Unescape([]byte{0x1B, 0x7F})
	assert.Error(t, err)
}
