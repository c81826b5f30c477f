// Package pipeline runs the full toolchain described by a configuration:
// read the mapping sets, merge them, migrate the merged tree against the
// compiled archive, write the merged mappings and remap the archive.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/standardbeagle/jremap/internal/archive"
	"github.com/standardbeagle/jremap/internal/cache"
	"github.com/standardbeagle/jremap/internal/classpath"
	"github.com/standardbeagle/jremap/internal/config"
	"github.com/standardbeagle/jremap/internal/debug"
	jerrors "github.com/standardbeagle/jremap/internal/errors"
	"github.com/standardbeagle/jremap/internal/mapping"
	"github.com/standardbeagle/jremap/internal/mapping/format"
	"github.com/standardbeagle/jremap/internal/merge"
	"github.com/standardbeagle/jremap/internal/migrate"
	"github.com/standardbeagle/jremap/internal/remap"
)

// Result reports what a run produced
type Result struct {
	Merge    *merge.Result
	Fields   *migrate.FieldMigrations
	Stripped []*mapping.MethodMapping
	Remap    *remap.Stats
	// MappingsOut and ArchiveOut are the files written, empty when skipped
	MappingsOut string
	ArchiveOut  string
	Elapsed     time.Duration
}

// Tree returns the final mapping tree
func (r *Result) Tree() *mapping.Tree {
	return r.Merge.Tree
}

// Run executes every configured step. Nothing is written unless merging and
// both migrations succeed.
func Run(ctx context.Context, cfg *config.Config) (*Result, error) {
	start := time.Now()
	log := debug.Logger("PIPELINE")

	merged, err := MergeMappings(cfg)
	if err != nil {
		return nil, err
	}
	res := &Result{Merge: merged}
	tree := merged.Tree
	log.WithFields(logrus.Fields{
		"classes":   tree.ClassCount(),
		"conflicts": len(merged.Groups),
		"dropped":   len(merged.Dropped),
		"filled":    merged.Filled,
	}).Info("merged mappings")

	if cfg.Archive.Input != "" && (cfg.Migrate.Fields || cfg.Migrate.StripInherited) {
		store, err := OpenCache(cfg)
		if err != nil {
			return nil, err
		}
		defer closeStore(store)

		classes, err := ReadClasses(cfg)
		if err != nil {
			return nil, err
		}
		if cfg.Migrate.Fields {
			if res.Fields, err = MigrateFields(ctx, cfg, tree, classes, store); err != nil {
				return nil, err
			}
		}
		if cfg.Migrate.StripInherited {
			if res.Stripped, err = StripInherited(ctx, cfg, tree, classes, store); err != nil {
				return nil, err
			}
		}
	}

	if cfg.Mappings.Output != "" {
		if err := WriteMappings(cfg, tree); err != nil {
			return nil, err
		}
		res.MappingsOut = cfg.Path(cfg.Mappings.Output)
	}

	if cfg.Archive.Input != "" && cfg.Archive.Output != "" {
		stats, err := RemapArchive(ctx, cfg, tree, cfg.Path(cfg.Archive.Input), cfg.Path(cfg.Archive.Output))
		if err != nil {
			return nil, err
		}
		res.Remap = &stats
		res.ArchiveOut = cfg.Path(cfg.Archive.Output)
	}

	res.Elapsed = time.Since(start)
	log.WithField("elapsed", res.Elapsed.Round(time.Millisecond)).Info("pipeline finished")
	return res, nil
}

// ReadMappings reads one mapping file. ns names src and dst of headerless
// formats and may be empty.
func ReadMappings(path string, ns []string) (*mapping.Tree, error) {
	var opts []format.Option
	if len(ns) == 2 {
		opts = append(opts, format.WithNamespaces(ns[0], ns[1]))
	}
	tree, f, err := format.ReadFile(path, opts...)
	if err != nil {
		return nil, err
	}
	debug.Logger("PIPELINE").WithFields(logrus.Fields{
		"path":       path,
		"format":     f.String(),
		"namespaces": tree.Namespaces().String(),
		"classes":    tree.ClassCount(),
	}).Debug("read mappings")
	return tree, nil
}

// MergeMappings reads the configured mapping files and merges them
func MergeMappings(cfg *config.Config) (*merge.Result, error) {
	if cfg.Mappings.Base == "" {
		return nil, jerrors.NewConfigError("mappings.base", "", errors.New("a base mapping file is required"))
	}
	if cfg.Mappings.New == "" {
		return nil, jerrors.NewConfigError("mappings.new", "", errors.New("a mapping file with the new namespace is required"))
	}

	basePath := cfg.Path(cfg.Mappings.Base)
	base, err := ReadMappings(basePath, nil)
	if err != nil {
		return nil, err
	}
	newPath := cfg.Path(cfg.Mappings.New)
	newTree, err := ReadMappings(newPath, cfg.Mappings.NewNamespaces)
	if err != nil {
		return nil, err
	}

	var fallback *mapping.Tree
	if cfg.Mappings.Fallback != "" {
		if fallback, err = ReadMappings(cfg.Path(cfg.Mappings.Fallback), cfg.Mappings.FallbackNamespaces); err != nil {
			return nil, err
		}
		if key := cfg.Mappings.FallbackKey; key != "" && fallback.SrcNamespace() != key {
			if fallback, err = mapping.SwitchSource(fallback, key); err != nil {
				return nil, fmt.Errorf("re-key fallback by %s: %w", key, err)
			}
		}
	}

	return merge.NewMerger(MergeOptions(cfg, basePath, newPath)).Run(newTree, base, fallback)
}

// MergeOptions builds merge options from a configuration
func MergeOptions(cfg *config.Config, basePath, newPath string) merge.Options {
	opts := merge.Options{
		Lenient:        cfg.Merge.Lenient,
		BaseSource:     basePath,
		NewSource:      newPath,
		HumanNamespace: cfg.Merge.HumanNamespace,
	}
	if ns := cfg.Merge.BaseNamespaces; len(ns) > 1 {
		opts.ExpectedNamespaces = &mapping.Namespaces{Src: ns[0], Dst: append([]string(nil), ns[1:]...)}
	}
	return opts
}

// OpenCache opens the configured cache store; nil when caching is disabled
func OpenCache(cfg *config.Config) (cache.Store, error) {
	if !cfg.Cache.Enabled {
		return nil, nil
	}
	if cfg.Cache.InMemory || cfg.Cache.Dir == "" {
		return cache.NewMemoryStore(cache.MemoryConfig{MaxEntries: cfg.Cache.MaxEntries}), nil
	}
	bc := cache.DefaultConfig(cfg.Path(cfg.Cache.Dir))
	bc.Logger = debug.Logger("CACHE")
	store, err := cache.OpenBadger(bc)
	if err != nil {
		return nil, err
	}
	return store, nil
}

func closeStore(store cache.Store) {
	if store == nil {
		return
	}
	if err := store.Close(); err != nil {
		debug.LogCache("close: %v", err)
	}
}

// ReadClasses reads the class entries of the compiled archive selected by the
// include and exclude patterns
func ReadClasses(cfg *config.Config) ([]*archive.Entry, error) {
	if cfg.Archive.Input == "" {
		return nil, jerrors.NewConfigError("archive.input", "", errors.New("a compiled archive is required"))
	}
	entries, err := archive.Read(cfg.Path(cfg.Archive.Input), archive.Filter{Include: cfg.Include, Exclude: cfg.Exclude})
	if err != nil {
		return nil, err
	}
	return archive.Classes(entries), nil
}

// MigrateFields rewrites field descriptors that changed in the compiled classes
func MigrateFields(ctx context.Context, cfg *config.Config, tree *mapping.Tree, classes []*archive.Entry, store cache.Store) (*migrate.FieldMigrations, error) {
	res, err := migrate.ComputeDescriptorMigrations(ctx, classes, tree, migrate.FieldOptions{
		CompiledNamespace: cfg.Migrate.CompiledNamespace,
		Workers:           cfg.Performance.Workers,
		Cache:             store,
		ForceRefresh:      cfg.Cache.ForceRefresh,
	})
	if err != nil {
		return nil, err
	}
	debug.Logger("PIPELINE").WithFields(logrus.Fields{
		"migrations": res.Len(),
		"cached":     res.FromCache,
	}).Info("migrated field descriptors")
	return res, nil
}

// StripInherited removes methods whose intermediate name is ambiguous
// because they override a method outside the mapping coverage
func StripInherited(ctx context.Context, cfg *config.Config, tree *mapping.Tree, classes []*archive.Entry, store cache.Store) ([]*mapping.MethodMapping, error) {
	set, err := migrate.ComputeMethodsToStrip(ctx, tree, classes, migrate.InheritanceOptions{
		SourceNamespace:       cfg.Migrate.CompiledNamespace,
		IntermediateNamespace: cfg.Migrate.IntermediateNamespace,
		Workers:               cfg.Performance.Workers,
		Cache:                 store,
		ForceRefresh:          cfg.Cache.ForceRefresh,
	})
	if err != nil {
		return nil, err
	}
	return migrate.ApplyMethodStrip(tree, cfg.Migrate.IntermediateNamespace, set)
}

// WriteMappings writes the tree to the configured output in the configured format
func WriteMappings(cfg *config.Config, tree *mapping.Tree) error {
	f, err := format.ParseFormat(cfg.Mappings.OutputFormat)
	if err != nil {
		return jerrors.NewConfigError("mappings.output_format", cfg.Mappings.OutputFormat, err)
	}
	out := cfg.Path(cfg.Mappings.Output)
	if err := format.WriteFile(out, f, tree); err != nil {
		return err
	}
	debug.Logger("PIPELINE").WithFields(logrus.Fields{"path": out, "format": f.String()}).Info("wrote mappings")
	return nil
}

// RemapArchive rewrites an archive from Remap.From to Remap.To, resolving
// library supertypes through the configured classpath
func RemapArchive(ctx context.Context, cfg *config.Config, tree *mapping.Tree, in, out string) (remap.Stats, error) {
	libraries := classpath.FromArchives(cfg.Paths(cfg.Archive.Classpath), cfg.Performance.Workers)
	if err := libraries.Err(); err != nil {
		return remap.Stats{}, fmt.Errorf("load classpath: %w", err)
	}
	r, err := remap.New(tree, remap.Options{
		Source:            cfg.Remap.From,
		Target:            cfg.Remap.To,
		Classpath:         libraries,
		Workers:           cfg.Performance.Workers,
		RemapStrings:      cfg.Remap.Strings,
		RebuildSourceFile: cfg.Remap.RebuildSourceFile,
	})
	if err != nil {
		return remap.Stats{}, err
	}
	if err := r.RewriteArchive(ctx, in, out); err != nil {
		return remap.Stats{}, err
	}
	return r.Stats(), nil
}
