package config

import (
	"errors"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	jerrors "github.com/standardbeagle/jremap/internal/errors"
)

func validConfig() *Config {
	cfg := Default()
	cfg.Project.Root = "/work/client"
	return cfg
}

func TestValidateAndSetDefaults(t *testing.T) {
	cfg := validConfig()
	cfg.Merge.HumanNamespace = ""
	cfg.Migrate.CompiledNamespace = ""
	cfg.Mappings.OutputFormat = ""

	require.NoError(t, NewValidator().ValidateAndSetDefaults(cfg))

	assert.Equal(t, runtime.NumCPU(), cfg.Performance.Workers)
	assert.Equal(t, "client", cfg.Project.Name)
	assert.Equal(t, "tiny2", cfg.Mappings.OutputFormat)
	assert.Equal(t, "named", cfg.Merge.HumanNamespace)
	assert.Equal(t, "official", cfg.Migrate.CompiledNamespace)
	assert.Positive(t, cfg.Cache.MaxEntries)
}

func TestValidateAndSetDefaults_KeepsConfiguredValues(t *testing.T) {
	cfg := validConfig()
	cfg.Performance.Workers = 3
	cfg.Project.Name = "server"

	require.NoError(t, ValidateConfig(cfg))
	assert.Equal(t, 3, cfg.Performance.Workers)
	assert.Equal(t, "server", cfg.Project.Name)
}

func TestValidateAndSetDefaults_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"empty root", func(c *Config) { c.Project.Root = "" }, "project"},
		{"unknown output format", func(c *Config) { c.Mappings.OutputFormat = "srgx" }, "mappings"},
		{"unwritable output format", func(c *Config) { c.Mappings.OutputFormat = "proguard" }, "mappings"},
		{"odd new namespaces", func(c *Config) { c.Mappings.NewNamespaces = []string{"official"} }, "mappings"},
		{"fallback key alone", func(c *Config) { c.Mappings.FallbackKey = "official" }, "mappings"},
		{"repeated base namespace", func(c *Config) { c.Merge.BaseNamespaces = []string{"official", "named", "named"} }, "merge"},
		{"single base namespace", func(c *Config) { c.Merge.BaseNamespaces = []string{"official"} }, "merge"},
		{"human namespace outside base", func(c *Config) { c.Merge.HumanNamespace = "mojang" }, "merge"},
		{"identity remap", func(c *Config) { c.Remap.To = c.Remap.From }, "remap"},
		{"bad glob", func(c *Config) { c.Exclude = []string{"[unclosed"} }, "include/exclude"},
		{"negative workers", func(c *Config) { c.Performance.Workers = -1 }, "performance.workers"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := ValidateConfig(cfg)
			require.Error(t, err)
			var cfgErr *jerrors.ConfigError
			require.True(t, errors.As(err, &cfgErr))
			assert.Equal(t, tt.field, cfgErr.Field)
		})
	}
}
