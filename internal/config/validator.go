package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"runtime"

	"github.com/standardbeagle/jremap/internal/archive"
	"github.com/standardbeagle/jremap/internal/cache"
	jerrors "github.com/standardbeagle/jremap/internal/errors"
	"github.com/standardbeagle/jremap/internal/mapping/format"
)

// Validator validates configuration and sets smart defaults
type Validator struct{}

// NewValidator creates a new configuration validator
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateAndSetDefaults validates configuration and applies smart defaults
// Returns an error if validation fails
func (v *Validator) ValidateAndSetDefaults(cfg *Config) error {
	if err := v.validateProjectConfig(&cfg.Project); err != nil {
		return jerrors.NewConfigError("project", cfg.Project.Root, err)
	}

	if err := v.validateMappingsConfig(&cfg.Mappings); err != nil {
		return jerrors.NewConfigError("mappings", "", err)
	}

	if err := v.validateMergeConfig(&cfg.Merge); err != nil {
		return jerrors.NewConfigError("merge", "", err)
	}

	if err := v.validateRemapConfig(&cfg.Remap); err != nil {
		return jerrors.NewConfigError("remap", cfg.Remap.From+" -> "+cfg.Remap.To, err)
	}

	if err := (archive.Filter{Include: cfg.Include, Exclude: cfg.Exclude}).Validate(); err != nil {
		return jerrors.NewConfigError("include/exclude", "", err)
	}

	if cfg.Performance.Workers < 0 {
		return jerrors.NewConfigError("performance.workers", fmt.Sprint(cfg.Performance.Workers),
			errors.New("workers cannot be negative"))
	}

	if cfg.Cache.MaxEntries < 0 {
		return jerrors.NewConfigError("cache.max_entries", fmt.Sprint(cfg.Cache.MaxEntries),
			errors.New("max_entries cannot be negative"))
	}

	v.setSmartDefaults(cfg)
	return nil
}

func (v *Validator) validateProjectConfig(project *Project) error {
	if project.Root == "" {
		return errors.New("project root cannot be empty")
	}
	return nil
}

func (v *Validator) validateMappingsConfig(m *Mappings) error {
	if m.OutputFormat != "" {
		f, err := format.ParseFormat(m.OutputFormat)
		if err != nil {
			return err
		}
		if !f.CanWrite() {
			return fmt.Errorf("output format %s cannot be written", f)
		}
	}
	if n := len(m.NewNamespaces); n != 0 && n != 2 {
		return fmt.Errorf("new_namespaces takes a source and a destination, got %d names", n)
	}
	if n := len(m.FallbackNamespaces); n != 0 && n != 2 {
		return fmt.Errorf("fallback_namespaces takes a source and a destination, got %d names", n)
	}
	if m.Fallback == "" && m.FallbackKey != "" {
		return errors.New("fallback_key set without a fallback file")
	}
	return nil
}

func (v *Validator) validateMergeConfig(m *Merge) error {
	if len(m.BaseNamespaces) == 0 {
		return nil
	}
	if len(m.BaseNamespaces) < 2 {
		return fmt.Errorf("base_namespaces needs a source and at least one destination, got %v", m.BaseNamespaces)
	}
	seen := make(map[string]bool, len(m.BaseNamespaces))
	for _, ns := range m.BaseNamespaces {
		if ns == "" {
			return errors.New("base_namespaces contains an empty name")
		}
		if seen[ns] {
			return fmt.Errorf("namespace %q repeats in base_namespaces", ns)
		}
		seen[ns] = true
	}
	if m.HumanNamespace != "" && !seen[m.HumanNamespace] {
		return fmt.Errorf("human_namespace %q is not a base namespace", m.HumanNamespace)
	}
	return nil
}

func (v *Validator) validateRemapConfig(r *Remap) error {
	if r.From != "" && r.From == r.To {
		return errors.New("remap source and target namespaces are the same")
	}
	return nil
}

// setSmartDefaults fills in whatever the configuration left unset
func (v *Validator) setSmartDefaults(cfg *Config) {
	if cfg.Performance.Workers == 0 {
		cfg.Performance.Workers = runtime.NumCPU()
	}

	if cfg.Project.Name == "" {
		cfg.Project.Name = filepath.Base(cfg.Project.Root)
	}

	if cfg.Mappings.OutputFormat == "" {
		cfg.Mappings.OutputFormat = format.Tiny2.String()
	}

	if len(cfg.Merge.BaseNamespaces) > 0 && cfg.Merge.HumanNamespace == "" {
		cfg.Merge.HumanNamespace = cfg.Merge.BaseNamespaces[len(cfg.Merge.BaseNamespaces)-1]
	}

	if cfg.Migrate.CompiledNamespace == "" && len(cfg.Merge.BaseNamespaces) > 0 {
		cfg.Migrate.CompiledNamespace = cfg.Merge.BaseNamespaces[0]
	}
	if cfg.Migrate.IntermediateNamespace == "" && len(cfg.Merge.BaseNamespaces) > 1 {
		cfg.Migrate.IntermediateNamespace = cfg.Merge.BaseNamespaces[1]
	}

	if cfg.Cache.MaxEntries == 0 {
		cfg.Cache.MaxEntries = cache.DefaultMaxEntries
	}
}

// ValidateConfig is a convenience function for quick validation
func ValidateConfig(cfg *Config) error {
	validator := NewValidator()
	return validator.ValidateAndSetDefaults(cfg)
}
