package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/standardbeagle/jremap/internal/mapping"
)

const (
	// KDLFileName is the project configuration file read from the project root
	KDLFileName = ".jremap.kdl"
	// TOMLFileName is the alternative project configuration file
	TOMLFileName = ".jremap.toml"
)

// Config is the full jremap configuration
type Config struct {
	Version     int         `toml:"version"`
	Project     Project     `toml:"project"`
	Mappings    Mappings    `toml:"mappings"`
	Merge       Merge       `toml:"merge"`
	Migrate     Migrate     `toml:"migrate"`
	Archive     Archive     `toml:"archive"`
	Remap       Remap       `toml:"remap"`
	Cache       Cache       `toml:"cache"`
	Performance Performance `toml:"performance"`

	// Include and Exclude select the archive entries scanned by the
	// migrators; doublestar globs matched against entry names
	Include []string `toml:"include"`
	Exclude []string `toml:"exclude"`
}

type Project struct {
	Root string `toml:"root"`
	Name string `toml:"name"`
}

// Mappings names the mapping files of a run
type Mappings struct {
	// Base is the official -> [intermediary, named] tree
	Base string `toml:"base"`
	// New carries the namespace being added
	New string `toml:"new"`
	// NewNamespaces names src and dst of a headerless New file
	NewNamespaces []string `toml:"new_namespaces"`
	// Fallback fills members the new mapping set lacks
	Fallback           string   `toml:"fallback"`
	FallbackNamespaces []string `toml:"fallback_namespaces"`
	// FallbackKey re-keys the fallback tree by this namespace before merging
	FallbackKey string `toml:"fallback_key"`

	Output       string `toml:"output"`
	OutputFormat string `toml:"output_format"`
}

type Merge struct {
	Lenient bool `toml:"lenient"`
	// BaseNamespaces is the expected layout of the base tree, source first
	BaseNamespaces []string `toml:"base_namespaces"`
	HumanNamespace string   `toml:"human_namespace"`
}

type Migrate struct {
	Fields         bool `toml:"fields"`
	StripInherited bool `toml:"strip_inherited"`
	// CompiledNamespace is the namespace the compiled classes are named in
	CompiledNamespace     string `toml:"compiled_namespace"`
	IntermediateNamespace string `toml:"intermediate_namespace"`
}

type Archive struct {
	Input     string   `toml:"input"`
	Output    string   `toml:"output"`
	Classpath []string `toml:"classpath"`
}

type Remap struct {
	From              string `toml:"from"`
	To                string `toml:"to"`
	Strings           bool   `toml:"strings"`
	RebuildSourceFile bool   `toml:"rebuild_source_file"`
}

type Cache struct {
	Enabled      bool   `toml:"enabled"`
	Dir          string `toml:"dir"`
	InMemory     bool   `toml:"in_memory"`
	ForceRefresh bool   `toml:"force_refresh"`
	MaxEntries   int    `toml:"max_entries"`
}

type Performance struct {
	Workers int `toml:"workers"` // 0 = NumCPU
}

// Default returns the configuration used when no file is found
func Default() *Config {
	cwd, err := os.Getwd()
	if err != nil {
		cwd = "."
	}
	return &Config{
		Version: 1,
		Project: Project{Root: cwd},
		Mappings: Mappings{
			OutputFormat: "tiny2",
		},
		Merge: Merge{
			BaseNamespaces: []string{mapping.NamespaceOfficial, mapping.NamespaceIntermediary, mapping.NamespaceNamed},
			HumanNamespace: mapping.NamespaceNamed,
		},
		Migrate: Migrate{
			Fields:                true,
			StripInherited:        true,
			CompiledNamespace:     mapping.NamespaceOfficial,
			IntermediateNamespace: mapping.NamespaceIntermediary,
		},
		Remap: Remap{
			From: mapping.NamespaceOfficial,
			To:   mapping.NamespaceNamed,
		},
		Cache: Cache{
			Enabled: true,
			Dir:     filepath.Join(".jremap", "cache"),
		},
		Include: []string{},
		Exclude: []string{},
	}
}

// Path resolves a configured path against the project root
func (c *Config) Path(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Project.Root, p)
}

// Paths resolves every path of a list against the project root
func (c *Config) Paths(ps []string) []string {
	out := make([]string, 0, len(ps))
	for _, p := range ps {
		out = append(out, c.Path(p))
	}
	return out
}

func Load(path string) (*Config, error) {
	return LoadWithRoot(path, "")
}

// LoadWithRoot loads the configuration for a project. An explicit path wins;
// otherwise .jremap.kdl and then .jremap.toml are looked up in rootDir. A
// ~/.jremap.kdl acts as the base every project config is merged onto.
func LoadWithRoot(path string, rootDir string) (*Config, error) {
	searchDir := "."
	if rootDir != "" {
		searchDir = rootDir
	}

	var baseConfig *Config
	if homeDir, err := os.UserHomeDir(); err == nil {
		if globalCfg, err := LoadKDL(homeDir); err == nil && globalCfg != nil {
			baseConfig = globalCfg
		}
	}

	var projectConfig *Config
	var err error
	if path != "" {
		projectConfig, err = LoadFile(path)
	} else {
		projectConfig, err = LoadKDL(searchDir)
		if err == nil && projectConfig == nil {
			projectConfig, err = LoadTOML(searchDir)
		}
	}
	if err != nil {
		return nil, err
	}

	switch {
	case baseConfig != nil && projectConfig != nil:
		return mergeConfigs(baseConfig, projectConfig), nil
	case projectConfig != nil:
		return projectConfig, nil
	case baseConfig != nil:
		baseConfig.Project.Root = absRoot(searchDir)
		return baseConfig, nil
	}

	cfg := Default()
	if rootDir != "" {
		cfg.Project.Root = absRoot(rootDir)
	}
	return cfg, nil
}

// LoadFile loads an explicit configuration file, picking the parser by
// extension. Relative paths inside it resolve against its directory.
func LoadFile(path string) (*Config, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg *Config
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		cfg, err = parseTOML(content)
	} else {
		cfg, err = parseKDL(string(content))
	}
	if err != nil {
		return nil, err
	}
	resolveRoot(cfg, filepath.Dir(path))
	return cfg, nil
}

// resolveRoot makes the project root absolute. A configured relative root is
// taken relative to the directory holding the configuration file.
func resolveRoot(cfg *Config, configDir string) {
	if cfg.Project.Root != "" {
		if !filepath.IsAbs(cfg.Project.Root) {
			cfg.Project.Root = filepath.Join(configDir, cfg.Project.Root)
		}
		cfg.Project.Root = filepath.Clean(cfg.Project.Root)
		return
	}
	cfg.Project.Root = absRoot(configDir)
}

func absRoot(dir string) string {
	if abs, err := filepath.Abs(dir); err == nil {
		return abs
	}
	return dir
}

// mergeConfigs merges a base config with a project config. Project settings
// take precedence; base exclusions and classpath entries are kept.
func mergeConfigs(base, project *Config) *Config {
	merged := *project

	if len(base.Exclude) > 0 {
		merged.Exclude = union(base.Exclude, project.Exclude)
	}
	if len(project.Include) == 0 && len(base.Include) > 0 {
		merged.Include = base.Include
	}
	if len(base.Archive.Classpath) > 0 {
		merged.Archive.Classpath = union(base.Archive.Classpath, project.Archive.Classpath)
	}
	return &merged
}

// union concatenates lists dropping repeats, first occurrence wins
func union(lists ...[]string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, list := range lists {
		for _, s := range list {
			if !seen[s] {
				seen[s] = true
				out = append(out, s)
			}
		}
	}
	return out
}
