package quantum

import (
	"fmt"
	"sort"
	"strings"
)

// Well-known token ids occupy 0x10–0x7F so their uvarint encoding is a
// single byte. Dynamic ids start at 0x0100; the range up to 0xFFFF is
// allocated per stream.
const (
	wellKnownBase = 0x10
	// DynamicBase is the first per-stream token id.
	DynamicBase = 0x0100
	dynamicMax  = 0xFFFF
)

// wellKnownNames is the closed set of directory/file names common enough
// across real trees to deserve a reserved single-byte token.
var wellKnownNames = []string{
	".git",
	"node_modules",
	"src",
	"target",
	"build",
	"dist",
	"vendor",
	"test",
	"tests",
	"docs",
	"lib",
	"bin",
	"internal",
	"cmd",
	"pkg",
	".github",
	"README.md",
	"LICENSE",
	"Makefile",
	"go.mod",
	"go.sum",
	"package.json",
	"Cargo.toml",
	"pyproject.toml",
	"main.go",
	"index.js",
	"__pycache__",
	".vscode",
	".idea",
	"assets",
	"scripts",
	"examples",
}

var (
	wellKnownByName = func() map[string]uint16 {
		m := make(map[string]uint16, len(wellKnownNames))
		for i, n := range wellKnownNames {
			m[n] = uint16(wellKnownBase + i)
		}
		return m
	}()
	wellKnownByID = func() map[uint16]string {
		m := make(map[uint16]string, len(wellKnownNames))
		for n, id := range wellKnownByName {
			m[id] = n
		}
		return m
	}()
)

// TokenTable maps names to token ids for one encoding session. It is
// written to the stream header before any entry references it and is never
// shared between sessions.
type TokenTable struct {
	dynamic   map[string]uint16
	dynByID   map[uint16]string
	nextID    uint16
	headerIDs []uint16
}

// NewTokenTable returns a table containing only the well-known tokens.
func NewTokenTable() *TokenTable {
	return &TokenTable{
		dynamic: make(map[string]uint16),
		dynByID: make(map[uint16]string),
		nextID:  DynamicBase,
	}
}

// Lookup returns the id for name, preferring well-known tokens.
func (t *TokenTable) Lookup(name string) (uint16, bool) {
	if id, ok := wellKnownByName[name]; ok {
		return id, true
	}
	id, ok := t.dynamic[name]
	return id, ok
}

// Resolve returns the name for id, whether well-known or dynamic.
func (t *TokenTable) Resolve(id uint16) (string, bool) {
	if name, ok := wellKnownByID[id]; ok {
		return name, ok
	}
	name, ok := t.dynByID[id]
	return name, ok
}

// Allocate assigns the next dynamic id to name. Allocation is a no-op for
// names that already have a token; it fails silently (the name stays a
// literal) once the dynamic range is exhausted.
func (t *TokenTable) Allocate(name string) {
	if _, ok := t.Lookup(name); ok {
		return
	}
	// nextID wraps to 0 after dynamicMax has been handed out.
	if t.nextID < DynamicBase {
		return
	}
	id := t.nextID
	t.nextID++
	t.dynamic[name] = id
	t.dynByID[id] = name
	t.headerIDs = append(t.headerIDs, id)
}

// addFromHeader registers a token parsed from a stream header, used by the
// decoder.
func (t *TokenTable) addFromHeader(id uint16, name string) {
	if id < DynamicBase {
		return // well-known ids are compiled in, not negotiable
	}
	t.dynByID[id] = name
	t.dynamic[name] = id
	if id >= t.nextID {
		t.nextID = id + 1
	}
}

// HeaderSection renders the dynamic table as TOKENS: lines in allocation
// order. Well-known tokens are never written; both ends compile them in.
func (t *TokenTable) HeaderSection() string {
	if len(t.headerIDs) == 0 {
		return ""
	}
	var sb strings.Builder
	for _, id := range t.headerIDs {
		fmt.Fprintf(&sb, "TOKENS: %04x=%s\n", id, t.dynByID[id])
	}
	return sb.String()
}

// nameFrequency is the per-stream occurrence count used by greedy
// allocation.
type nameFrequency struct {
	name  string
	count int
}

// AllocateFrequent greedily assigns dynamic tokens to the names whose
// repetition within the stream saves bytes: a name is worth tokenizing
// when replacing count literal emissions with 2-byte ids beats the header
// line it costs. Allocation order is savings-descending, then name, so the
// table is deterministic for a fixed stream.
func (t *TokenTable) AllocateFrequent(counts map[string]int) {
	var candidates []nameFrequency
	for name, count := range counts {
		if _, ok := wellKnownByName[name]; ok {
			continue
		}
		literalCost := (1 + len(name)) * count
		tokenCost := 2*count + len(name) + len("TOKENS: 0000=\n")
		if literalCost > tokenCost {
			candidates = append(candidates, nameFrequency{name, count})
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		si := candidates[i].count * len(candidates[i].name)
		sj := candidates[j].count * len(candidates[j].name)
		if si != sj {
			return si > sj
		}
		return candidates[i].name < candidates[j].name
	})
	for _, c := range candidates {
		t.Allocate(c.name)
	}
}
