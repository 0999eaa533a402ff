package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "API Reference", cfg.PartTitle)
	assert.Equal(t, 2, cfg.NavDepth)
	assert.Equal(t, 2, cfg.HeadingLevel)
	assert.Equal(t, runtime.NumCPU(), cfg.Workers)
	assert.Equal(t, DefaultDBPath, cfg.DBPath)
	assert.Equal(t, []string{".lua"}, cfg.Extensions)
	assert.NoError(t, cfg.Validate())
}

func TestParse(t *testing.T) {
	data := []byte(`
definitions_path: library
part_title: Lua API
heading_level: 3
workers: 4
timeout: 30s
include_hidden: true
extensions: [".lua", ".d.lua"]
`)
	cfg, err := Parse(data, "test.yml")
	require.NoError(t, err)

	want := &Config{
		DefinitionsPath: "library",
		PartTitle:       "Lua API",
		NavDepth:        2,
		HeadingLevel:    3,
		Workers:         4,
		Timeout:         30 * time.Second,
		DBPath:          DefaultDBPath,
		IncludeHidden:   true,
		Extensions:      []string{".lua", ".d.lua"},
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"HeadingTooDeep", "heading_level: 7", "heading_level"},
		{"HeadingZero", "heading_level: 0", "heading_level"},
		{"NoWorkers", "workers: 0", "workers"},
		{"EmptyTitle", `part_title: ""`, "part_title"},
		{"BadExtension", `extensions: ["lua"]`, "extensions"},
		{"NoExtensions", `extensions: []`, "extensions"},
		{"Malformed", "heading_level: [", "parsing"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml), "test.yml")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv(EnvDBPath, "/tmp/luacats.db")
	t.Setenv(EnvWorkers, "3")

	cfg, err := Parse([]byte("workers: 8\ndb_path: /var/index.db\n"), "test.yml")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/luacats.db", cfg.DBPath)
	assert.Equal(t, 3, cfg.Workers)

	t.Setenv(EnvWorkers, "many")
	_, err = Parse(nil, "test.yml")
	assert.ErrorContains(t, err, EnvWorkers)
}

func TestLoad_ResolvesDefinitionsPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, FileName)
	require.NoError(t, os.WriteFile(path, []byte("definitions_path: stubs\n"), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "stubs"), cfg.DefinitionsPath)

	_, err = Load(filepath.Join(dir, "missing.yml"))
	assert.Error(t, err)
}

func TestFindAndDiscover(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0755))

	path, err := Find(nested)
	require.NoError(t, err)
	assert.Empty(t, path)

	cfg, err := Discover(nested)
	require.NoError(t, err)
	assert.Equal(t, "API Reference", cfg.PartTitle)

	require.NoError(t, os.WriteFile(filepath.Join(root, FileName), []byte("part_title: Found\n"), 0644))
	path, err = Find(nested)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, FileName), path)

	cfg, err = Discover(nested)
	require.NoError(t, err)
	assert.Equal(t, "Found", cfg.PartTitle)
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	got, err := ExpandHome("~/.luacats/index.db")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".luacats", "index.db"), got)

	for _, p := range []string{":memory:", "/abs/index.db", "rel/index.db", "~user/x"} {
		got, err := ExpandHome(p)
		require.NoError(t, err)
		assert.Equal(t, p, got)
	}
}
