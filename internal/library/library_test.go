package library

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/dshills/luacats-mcp/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0644))
	}
	return root
}

func TestScan_MergesFiles(t *testing.T) {
	root := writeFiles(t, map[string]string{
		"a.lua":       "---@meta\n\n---@param x integer\nfunction a(x) end\n",
		"b.lua":       "---@alias Mode \"r\"|\"w\"\n\n---@param m Mode\nfunction b(m) end\n",
		"c/d.lua":     "---@return string\nfunction d() end\n",
		"notes.txt":   "not a stub",
		".git/x.lua":  "function hidden() end\n",
		"c/e.lua.bak": "function bak() end\n",
	})

	lib, err := Scan(context.Background(), root, Options{Workers: 2, Logger: quiet()})
	require.NoError(t, err)

	assert.True(t, lib.Complete)
	assert.Equal(t, 3, lib.Stats.FilesFound)
	assert.Equal(t, 3, lib.Stats.FilesParsed)
	assert.Equal(t, []string{"a", "b", "d"}, lib.Table().Names())

	sig, ok := lib.Table().Lookup("b")
	require.True(t, ok)
	alias, _ := lib.Table().LookupAlias("Mode")
	assert.Same(t, alias.Type, sig.Params[0].Type.Target)
	assert.Equal(t, "b.lua", sig.File)

	a, ok := lib.File("a.lua")
	require.True(t, ok)
	assert.True(t, a.IsMeta)
	assert.NotEqual(t, [32]byte{}, a.Hash)
	assert.Equal(t, 1, a.Signatures)
	assert.Empty(t, lib.Diagnostics())
}

func TestScan_FirstFileWins(t *testing.T) {
	root := writeFiles(t, map[string]string{
		"z.lua":     "---@param s string\nfunction dup(s) end\n",
		"a.lua":     "---@param n number\nfunction dup(n) end\n",
		"m/dup.lua": "function dup() end\n",
	})

	for range 5 {
		lib, err := Scan(context.Background(), root, Options{Workers: 3, Logger: quiet()})
		require.NoError(t, err)

		sig, _ := lib.Table().Lookup("dup")
		assert.Equal(t, "a.lua", sig.File)
		assert.Equal(t, 2, lib.Diagnostics().Count(types.DuplicateSymbolError))
	}
}

func TestScan_BadFileDoesNotStopSiblings(t *testing.T) {
	root := writeFiles(t, map[string]string{
		"good.lua": "function good() end\n",
		"bad.lua":  string([]byte{0xff, 0xfe, '\n'}),
	})

	lib, err := Scan(context.Background(), root, Options{Logger: quiet()})
	require.NoError(t, err)

	_, ok := lib.Table().Lookup("good")
	assert.True(t, ok)

	errs := lib.Errors()
	require.Len(t, errs, 1)
	assert.Equal(t, "bad.lua", errs[0].Path)
	assert.ErrorIs(t, errs[0], types.ErrInvalidUTF8)

	diags := lib.Diagnostics()
	require.Equal(t, 1, diags.Count(types.FileError))
	assert.True(t, diags.HasErrors())
	assert.Equal(t, 1, lib.Stats.FilesFailed)
}

func TestScan_CancelledContext(t *testing.T) {
	root := writeFiles(t, map[string]string{
		"a.lua": "function a() end\n",
		"b.lua": "function b() end\n",
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	lib, err := Scan(ctx, root, Options{Logger: quiet()})
	require.NoError(t, err)

	assert.False(t, lib.Complete)
	assert.Equal(t, 0, lib.Table().Len())
	assert.Equal(t, 2, lib.Stats.FilesAbandoned)
	diags := lib.Diagnostics()
	require.Equal(t, 1, diags.Count(types.ScanIncomplete))
	assert.Contains(t, diags[0].Message, "2 of 2")
}

func TestScan_CancelledMidway(t *testing.T) {
	root := writeFiles(t, map[string]string{
		"a.lua": "function a() end\n",
		"b.lua": "function b() end\n",
		"c.lua": "function c() end\n",
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	testHookAfterParse = func(string) { cancel() }
	defer func() { testHookAfterParse = nil }()

	lib, err := Scan(ctx, root, Options{Workers: 1, Logger: quiet()})
	require.NoError(t, err)

	assert.False(t, lib.Complete)
	assert.Equal(t, 1, lib.Table().Len())
	assert.Equal(t, 1, lib.Stats.FilesParsed)
	assert.Equal(t, 2, lib.Stats.FilesAbandoned)
	assert.Equal(t, 1, lib.Diagnostics().Count(types.ScanIncomplete))
}

func TestScan_SingleFile(t *testing.T) {
	root := writeFiles(t, map[string]string{"one.lua": "function one() end\n"})

	lib, err := Scan(context.Background(), filepath.Join(root, "one.lua"), Options{Logger: quiet()})
	require.NoError(t, err)
	assert.Equal(t, []string{"one"}, lib.Table().Names())
	assert.Equal(t, "one.lua", lib.Files()[0].Path)
}

func TestScan_MissingRoot(t *testing.T) {
	_, err := Scan(context.Background(), "/nonexistent/stubs", Options{Logger: quiet()})
	assert.Error(t, err)
}

func TestScan_Hierarchy(t *testing.T) {
	root := writeFiles(t, map[string]string{
		"a.lua":       "",
		"a/b.lua":     "",
		"a/b/c.lua":   "",
		"z.lua":       "",
		"lonely/x.lua": "",
	})

	lib, err := Scan(context.Background(), root, Options{Logger: quiet()})
	require.NoError(t, err)

	var order []string
	for _, f := range lib.Files() {
		order = append(order, f.Path)
	}
	assert.Equal(t, []string{"a.lua", "z.lua", "a/b.lua", "lonely/x.lua", "a/b/c.lua"}, order)

	roots := lib.Roots()
	var top []string
	for _, f := range roots {
		top = append(top, f.Path)
	}
	assert.Equal(t, []string{"a.lua", "z.lua", "lonely/x.lua"}, top)

	require.Len(t, roots[0].SubFiles, 1)
	b := roots[0].SubFiles[0]
	assert.Equal(t, "a/b.lua", b.Path)
	assert.Equal(t, "b", b.Title())
	require.Len(t, b.SubFiles, 1)
	assert.Equal(t, "a/b/c.lua", b.SubFiles[0].Path)
}

func TestFileError(t *testing.T) {
	fe := &FileError{Path: "x.lua", Err: types.ErrInvalidUTF8}
	assert.Contains(t, fe.Error(), "x.lua")
	assert.ErrorIs(t, fe, types.ErrInvalidUTF8)
}

func TestRootOf(t *testing.T) {
	root := writeFiles(t, map[string]string{"a/b.lua": "function b() end\n"})

	got, err := RootOf(root)
	require.NoError(t, err)
	assert.Equal(t, root, got)

	got, err = RootOf(filepath.Join(root, "a", "b.lua"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "a"), got)

	_, err = RootOf(filepath.Join(root, "missing"))
	assert.Error(t, err)
}
