package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTOML(t *testing.T) {
	content := `
version = 1

[mappings]
base = "mappings/base.tiny"
new = "mappings/client.txt"
new_namespaces = ["mojang", "official"]

[merge]
lenient = true
base_namespaces = ["official", "intermediary", "named"]

[migrate]
strip_inherited = false

[performance]
workers = 2
`
	cfg, err := parseTOML([]byte(content))
	require.NoError(t, err)

	assert.Equal(t, "mappings/base.tiny", cfg.Mappings.Base)
	assert.Equal(t, []string{"mojang", "official"}, cfg.Mappings.NewNamespaces)
	assert.True(t, cfg.Merge.Lenient)
	assert.Equal(t, []string{"official", "intermediary", "named"}, cfg.Merge.BaseNamespaces)
	assert.False(t, cfg.Migrate.StripInherited)
	assert.True(t, cfg.Migrate.Fields, "absent keys keep their default")
	assert.Equal(t, "named", cfg.Remap.To)
	assert.Equal(t, 2, cfg.Performance.Workers)
}

func TestParseTOML_UnknownKey(t *testing.T) {
	_, err := parseTOML([]byte("[mappings]\nbsae = \"x\"\n"))
	assert.Error(t, err)
}

func TestLoadWithRoot_PrefersKDL(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("HOME", t.TempDir())
	require.NoError(t, os.WriteFile(filepath.Join(dir, TOMLFileName), []byte("[performance]\nworkers = 7\n"), 0o644))

	cfg, err := LoadWithRoot("", dir)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Performance.Workers)
	assert.Equal(t, dir, cfg.Project.Root)

	require.NoError(t, os.WriteFile(filepath.Join(dir, KDLFileName), []byte("performance {\n    workers 5\n}\n"), 0o644))
	cfg, err = LoadWithRoot("", dir)
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Performance.Workers)
}

func TestLoadWithRoot_ExplicitFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(dir, "ci.toml")
	require.NoError(t, os.WriteFile(path, []byte("[archive]\ninput = \"client.jar\"\n"), 0o644))

	cfg, err := LoadWithRoot(path, "")
	require.NoError(t, err)
	assert.Equal(t, dir, cfg.Project.Root)
	assert.Equal(t, filepath.Join(dir, "client.jar"), cfg.Path(cfg.Archive.Input))
}

func TestLoadWithRoot_NoConfig(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("HOME", t.TempDir())

	cfg, err := LoadWithRoot("", dir)
	require.NoError(t, err)
	assert.Equal(t, dir, cfg.Project.Root)
	assert.True(t, cfg.Migrate.Fields)
}
