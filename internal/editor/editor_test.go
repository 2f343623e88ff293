package editor

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smarttree/smarttree/internal/stree"
)

const fixtureSource = `package demo

// Greet says hello.
func Greet() string {
	return helper()
}

func helper() string {
	return "hi"
}

func unused() {}
`

func writeFixture(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "demo.go")
	require.NoError(t, os.WriteFile(path, []byte(fixtureSource), 0o644))
	return path
}

func codeOf(t *testing.T, err error) stree.Code {
	t.Helper()
	var se *stree.Error
	require.ErrorAs(t, err, &se)
	return se.Code
}

func TestGetFunctions(t *testing.T) {
	path := writeFixture(t)

	fns, err := GetFunctions(path)
	require.NoError(t, err)
	require.Len(t, fns, 3)

	assert.Equal(t, "Greet", fns[0].Name)
	assert.True(t, fns[0].Exported)
	assert.Equal(t, "Greet says hello.", fns[0].Doc)
	assert.Equal(t, "helper", fns[1].Name)
	assert.False(t, fns[1].Exported)
	assert.Positive(t, fns[0].StartLine)
	assert.Greater(t, fns[0].EndLine, fns[0].StartLine)
}

func TestGetFunctionsUnsupportedLanguage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "script.py")
	require.NoError(t, os.WriteFile(path, []byte("def f():\n  pass\n"), 0o644))

	_, err := GetFunctions(path)
	assert.Equal(t, stree.CodeUnsupportedLanguage, codeOf(t, err))
}

func TestGetFunctionsParseError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.go")
	require.NoError(t, os.WriteFile(path, []byte("package demo\nfunc {"), 0o644))

	_, err := GetFunctions(path)
	assert.Equal(t, stree.CodeParseError, codeOf(t, err))
}

func TestInsertFunction(t *testing.T) {
	path := writeFixture(t)

	require.NoError(t, InsertFunction(path, "// Extra does more.\nfunc Extra() int {\n\treturn 2\n}"))

	fns, err := GetFunctions(path)
	require.NoError(t, err)
	assert.Equal(t, "Extra", fns[len(fns)-1].Name)

	// Duplicate insert refused, file unchanged.
	before, _ := os.ReadFile(path)
	err = InsertFunction(path, "func Extra() {}")
	assert.Equal(t, stree.CodeInvalidParams, codeOf(t, err))
	after, _ := os.ReadFile(path)
	assert.Equal(t, before, after)
}

func TestRemoveFunctionDependencyCheck(t *testing.T) {
	path := writeFixture(t)

	// helper is called by Greet: refused without force.
	err := RemoveFunction(path, "helper", false)
	require.Error(t, err)
	assert.Equal(t, stree.CodeInvalidParams, codeOf(t, err))
	assert.Contains(t, err.Error(), "Greet")

	// force removes it.
	require.NoError(t, RemoveFunction(path, "helper", true))
	fns, err := GetFunctions(path)
	require.NoError(t, err)
	for _, fn := range fns {
		assert.NotEqual(t, "helper", fn.Name)
	}
}

func TestRemoveFunctionWithoutDependents(t *testing.T) {
	path := writeFixture(t)
	require.NoError(t, RemoveFunction(path, "unused", false))

	content, _ := os.ReadFile(path)
	assert.NotContains(t, string(content), "unused")
}

func TestRemoveFunctionCrossFileDependents(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "store.go")
	require.NoError(t, os.WriteFile(target, []byte("package demo\n\nfunc open() {}\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "server.go"),
		[]byte("package demo\n\nfunc Serve() {\n\topen()\n}\n"), 0o644))

	// open has no callers in its own file, but server.go uses it.
	err := RemoveFunction(target, "open", false)
	require.Error(t, err)
	assert.Equal(t, stree.CodeInvalidParams, codeOf(t, err))
	assert.Contains(t, err.Error(), "server.go")

	require.NoError(t, RemoveFunction(target, "open", true))
}

func TestRemoveMissingFunctionIsError(t *testing.T) {
	path := writeFixture(t)
	err := RemoveFunction(path, "nonexistent", false)
	assert.Equal(t, stree.CodeInvalidParams, codeOf(t, err))
}

func TestCreateFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "deep", "nested", "new.go")

	require.NoError(t, CreateFile(path, "package fresh\n"))
	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "package fresh\n", string(content))

	// Refuses overwrite.
	err = CreateFile(path, "package other\n")
	assert.Equal(t, stree.CodeInvalidParams, codeOf(t, err))
}

func TestSmartEditBatchAllOrNothing(t *testing.T) {
	path := writeFixture(t)
	before, _ := os.ReadFile(path)

	// Second op fails (missing function): the first op must not land.
	_, err := SmartEdit(path, []SmartOp{
		{Cmd: "insert_function", Body: "func added() {}"},
		{Cmd: "remove_function", Name: "ghost"},
	}, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "op 1")

	after, _ := os.ReadFile(path)
	assert.Equal(t, before, after, "failed batch must roll back entirely")
}

func TestSmartEditApplies(t *testing.T) {
	path := writeFixture(t)

	res, err := SmartEdit(path, []SmartOp{
		{Cmd: "remove_function", Name: "unused"},
		{Cmd: "insert_function", Body: "func fresh() {}"},
		{Cmd: "replace_function", Name: "helper", Body: "func helper() string {\n\treturn \"bye\"\n}"},
	}, false)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Applied)
	assert.True(t, res.Changed)

	content, _ := os.ReadFile(path)
	assert.Contains(t, string(content), "fresh")
	assert.Contains(t, string(content), `"bye"`)
	assert.NotContains(t, string(content), "unused")
}

func TestSmartEditNoOpLeavesFileByteIdentical(t *testing.T) {
	path := writeFixture(t)
	before, _ := os.ReadFile(path)

	res, err := SmartEdit(path, nil, false)
	require.NoError(t, err)
	assert.False(t, res.Changed)

	after, _ := os.ReadFile(path)
	assert.Equal(t, before, after)
}

func TestSmartEditDryRunReturnsDiffWithoutWriting(t *testing.T) {
	path := writeFixture(t)
	before, _ := os.ReadFile(path)

	res, err := SmartEdit(path, []SmartOp{
		{Cmd: "insert_function", Body: "func dryOnly() {}"},
	}, true)
	require.NoError(t, err)
	assert.True(t, res.DryRun)
	assert.Contains(t, res.Diff, "+func dryOnly() {}")

	after, _ := os.ReadFile(path)
	assert.Equal(t, before, after, "dry run must not write")
}

func TestReplaceFunctionNameMismatch(t *testing.T) {
	path := writeFixture(t)
	_, err := SmartEdit(path, []SmartOp{
		{Cmd: "replace_function", Name: "helper", Body: "func renamed() {}"},
	}, false)
	assert.Equal(t, stree.CodeInvalidParams, codeOf(t, err))
}
