package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKDL_Defaults(t *testing.T) {
	cfg, err := parseKDL("")
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, 1, cfg.Version)
	assert.Equal(t, []string{"official", "intermediary", "named"}, cfg.Merge.BaseNamespaces)
	assert.Equal(t, "named", cfg.Merge.HumanNamespace)
	assert.False(t, cfg.Merge.Lenient)
	assert.True(t, cfg.Migrate.Fields)
	assert.True(t, cfg.Migrate.StripInherited)
	assert.Equal(t, "official", cfg.Remap.From)
	assert.Equal(t, "named", cfg.Remap.To)
	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, "tiny2", cfg.Mappings.OutputFormat)
}

func TestParseKDL_FullConfig(t *testing.T) {
	kdlContent := `
project {
    root "."
    name "client"
}
mappings {
    base "mappings/base.tiny"
    new "mappings/joined.tsrg"
    new_namespaces "official" "srg"
    fallback "mappings/client.txt"
    fallback_key "official"
    output "build/merged.tiny"
    output_format "tsrg2"
}
merge {
    lenient true
    human_namespace "named"
}
migrate {
    fields false
    compiled_namespace "official"
}
archive {
    input "build/client.jar"
    output "build/client-named.jar"
    classpath "libs/a.jar" "libs/b.jar"
}
remap {
    from "official"
    to "srg"
    strings true
    rebuild_source_file true
}
cache {
    dir "/tmp/jremap-cache"
    force_refresh true
    max_entries 128
}
performance {
    workers 3
}
include "**/*.class"
exclude "META-INF/**" "**/package-info.class"
`
	cfg, err := parseKDL(kdlContent)
	require.NoError(t, err)

	assert.Equal(t, ".", cfg.Project.Root)
	assert.Equal(t, "client", cfg.Project.Name)

	assert.Equal(t, "mappings/base.tiny", cfg.Mappings.Base)
	assert.Equal(t, "mappings/joined.tsrg", cfg.Mappings.New)
	assert.Equal(t, []string{"official", "srg"}, cfg.Mappings.NewNamespaces)
	assert.Equal(t, "mappings/client.txt", cfg.Mappings.Fallback)
	assert.Equal(t, "official", cfg.Mappings.FallbackKey)
	assert.Equal(t, "build/merged.tiny", cfg.Mappings.Output)
	assert.Equal(t, "tsrg2", cfg.Mappings.OutputFormat)

	assert.True(t, cfg.Merge.Lenient)
	assert.False(t, cfg.Migrate.Fields)
	assert.True(t, cfg.Migrate.StripInherited, "unset keys keep their default")

	assert.Equal(t, "build/client.jar", cfg.Archive.Input)
	assert.Equal(t, "build/client-named.jar", cfg.Archive.Output)
	assert.Equal(t, []string{"libs/a.jar", "libs/b.jar"}, cfg.Archive.Classpath)

	assert.Equal(t, "srg", cfg.Remap.To)
	assert.True(t, cfg.Remap.Strings)
	assert.True(t, cfg.Remap.RebuildSourceFile)

	assert.Equal(t, "/tmp/jremap-cache", cfg.Cache.Dir)
	assert.True(t, cfg.Cache.ForceRefresh)
	assert.Equal(t, 128, cfg.Cache.MaxEntries)
	assert.Equal(t, 3, cfg.Performance.Workers)

	assert.Equal(t, []string{"**/*.class"}, cfg.Include)
	assert.Equal(t, []string{"META-INF/**", "**/package-info.class"}, cfg.Exclude)
}

func TestParseKDL_BlockLists(t *testing.T) {
	kdlContent := `
merge {
    base_namespaces {
        "official"
        "intermediary"
        "named"
        "extra"
    }
}
exclude {
    "META-INF/**"
}
`
	cfg, err := parseKDL(kdlContent)
	require.NoError(t, err)

	assert.Equal(t, []string{"official", "intermediary", "named", "extra"}, cfg.Merge.BaseNamespaces)
	assert.Equal(t, []string{"META-INF/**"}, cfg.Exclude)
}

func TestParseKDL_Malformed(t *testing.T) {
	_, err := parseKDL(`mappings { base "unterminated }`)
	assert.Error(t, err)
}

func TestLoadKDL_ResolvesRoot(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, KDLFileName), []byte(`
project {
    root "sub"
}
archive {
    input "client.jar"
}
`), 0o644))

	cfg, err := LoadKDL(dir)
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, filepath.Join(dir, "sub"), cfg.Project.Root)
	assert.Equal(t, filepath.Join(dir, "sub", "client.jar"), cfg.Path(cfg.Archive.Input))
}

func TestLoadKDL_Missing(t *testing.T) {
	cfg, err := LoadKDL(t.TempDir())
	assert.NoError(t, err)
	assert.Nil(t, cfg)
}
