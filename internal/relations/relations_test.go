package relations

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		full := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
	}
	return root
}

func fixtureRoot(t *testing.T) string {
	return writeTree(t, map[string]string{
		"store.go": `package app

import "fmt"

type Store struct{}

func OpenStore() *Store { fmt.Println("open"); return &Store{} }
`,
		"server.go": `package app

import "net/http"

func Serve() {
	s := OpenStore()
	_ = s
	_ = Store{}
	_ = http.DefaultClient
}
`,
		"store_test.go": `package app

func TestOpen(t *T) {
	OpenStore()
}
`,
	})
}

func TestBuildGraphEdges(t *testing.T) {
	root := fixtureRoot(t)
	g := Build(root, []string{"store.go", "server.go", "store_test.go"})

	edges := g.Edges(nil, "")
	has := func(kind Kind, from, to string) bool {
		for _, e := range edges {
			if e.Kind == kind && e.From == from && e.To == to {
				return true
			}
		}
		return false
	}

	assert.True(t, has(KindImports, "store.go", "fmt"))
	assert.True(t, has(KindImports, "server.go", "net/http"))
	assert.True(t, has(KindCalls, "server.go", "store.go"), "Serve calls OpenStore")
	assert.True(t, has(KindTypes, "server.go", "store.go"), "Serve constructs Store")
	assert.True(t, has(KindTests, "store_test.go", "store.go"))
}

func TestEdgesKindFilterAndFocus(t *testing.T) {
	root := fixtureRoot(t)
	g := Build(root, []string{"store.go", "server.go", "store_test.go"})

	onlyCalls := g.Edges([]Kind{KindCalls}, "")
	for _, e := range onlyCalls {
		assert.Equal(t, KindCalls, e.Kind)
	}
	assert.NotEmpty(t, onlyCalls)

	focused := g.Edges(nil, "server.go")
	for _, e := range focused {
		assert.True(t, e.From == "server.go" || e.To == "server.go")
	}

	assert.Nil(t, g.Edges(nil, "missing.go"))
}

func TestDependents(t *testing.T) {
	root := fixtureRoot(t)
	g := Build(root, []string{"store.go", "server.go", "store_test.go"})

	deps := g.Dependents("store.go")
	assert.Equal(t, []string{"server.go", "store_test.go"}, deps)
}

func TestRenderTextAndMermaid(t *testing.T) {
	root := fixtureRoot(t)
	g := Build(root, []string{"store.go", "server.go", "store_test.go"})

	out := Render(g, RenderOptions{Mermaid: true})
	assert.Contains(t, out, "RELATIONS")
	assert.Contains(t, out, "[imports]")
	assert.Contains(t, out, "server.go -> store.go")
	assert.Contains(t, out, "```mermaid")
	assert.Contains(t, out, "flowchart LR")

	// Deterministic rendering.
	assert.Equal(t, out, Render(g, RenderOptions{Mermaid: true}))
}

func TestRenderFocusListsDependents(t *testing.T) {
	root := fixtureRoot(t)
	g := Build(root, []string{"store.go", "server.go", "store_test.go"})

	out := Render(g, RenderOptions{Focus: "store.go"})
	assert.Contains(t, out, "FOCUS store.go")
	assert.Contains(t, out, "DEPENDENTS")
	assert.Contains(t, out, "server.go")
}

func TestUsersOf(t *testing.T) {
	root := fixtureRoot(t)
	files := []string{"store.go", "server.go", "store_test.go"}

	users := UsersOf(root, files, "OpenStore", "store.go")
	assert.Equal(t, []string{"server.go", "store_test.go"}, users)

	// Unexported identifiers are matched too.
	root2 := writeTree(t, map[string]string{
		"a.go": "package p\n\nfunc helper() {}\n",
		"b.go": "package p\n\nfunc Use() { helper() }\n",
	})
	assert.Equal(t, []string{"b.go"}, UsersOf(root2, []string{"a.go", "b.go"}, "helper", "a.go"))

	assert.Empty(t, UsersOf(root, files, "NoSuchSymbol", "store.go"))
}

func TestGoFilesOf(t *testing.T) {
	got := GoFilesOf([]string{"a.go", "b.txt", "c/d.go", "Makefile"})
	assert.Equal(t, []string{"a.go", "c/d.go"}, got)
}

func TestBuildSkipsUnparseableFiles(t *testing.T) {
	root := writeTree(t, map[string]string{
		"ok.go":     "package app\n\nfunc Fine() {}\n",
		"broken.go": "package app\nfunc {",
	})
	g := Build(root, []string{"ok.go", "broken.go"})
	_, ok := g.Lookup("ok.go")
	assert.True(t, ok)
	_, ok = g.Lookup("broken.go")
	assert.False(t, ok)
}
