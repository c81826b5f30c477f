package migrate

import (
	"context"
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/standardbeagle/jremap/internal/archive"
	"github.com/standardbeagle/jremap/internal/cache"
	"github.com/standardbeagle/jremap/internal/classpath"
	"github.com/standardbeagle/jremap/internal/debug"
	"github.com/standardbeagle/jremap/internal/mapping"
	"github.com/standardbeagle/jremap/internal/scan"
)

// FieldOptions configures ComputeDescriptorMigrations
type FieldOptions struct {
	// CompiledNamespace is the namespace the compiled classes are named in
	CompiledNamespace string
	Workers           int
	Cache             cache.Store
	ForceRefresh      bool
}

// FieldMigration is one descriptor rewrite. Class, Field and both
// descriptors are in the tree's source namespace.
type FieldMigration struct {
	ID      string `toml:"id"`
	Class   string `toml:"class"`
	Field   string `toml:"field"`
	OldDesc string `toml:"old_desc"`
	NewDesc string `toml:"new_desc"`
}

// FieldMigrations is the result of a migration pass
type FieldMigrations struct {
	Migrations []FieldMigration
	FromCache  bool
}

// Len returns the number of migrations
func (m *FieldMigrations) Len() int { return len(m.Migrations) }

type fieldsDocument struct {
	Version    int              `toml:"version"`
	Migrations []FieldMigration `toml:"migrations"`
}

// MigrationID identifies a migration by class, field and both descriptors
func MigrationID(class, field, oldDesc, newDesc string) string {
	return cache.NewHasher().Strings(class, field, oldDesc, newDesc).Key("")
}

type fieldKey struct {
	owner string
	name  string
}

// ComputeDescriptorMigrations compares every field entry of the tree with the
// compiled classes and rewrites entries whose descriptor changed. The new
// descriptor is translated back into the tree's source namespace through the
// tree's own class mapping. A cache hit applies the stored migrations without
// scanning.
func ComputeDescriptorMigrations(ctx context.Context, classes []*archive.Entry, tree *mapping.Tree, opts FieldOptions) (*FieldMigrations, error) {
	compiledIdx, err := namespaceIndex(tree, opts.CompiledNamespace)
	if err != nil {
		return nil, err
	}

	key := inputsKey("fields/", tree, classes, opts.CompiledNamespace)
	if !opts.ForceRefresh {
		var doc fieldsDocument
		if cache.LoadDocument(opts.Cache, key, &doc) && doc.Version == cacheVersion {
			err := ApplyFieldMigrations(tree, doc.Migrations)
			if err == nil {
				debug.LogMigrate("applied %d cached field migrations", len(doc.Migrations))
				return &FieldMigrations{Migrations: doc.Migrations, FromCache: true}, nil
			}
			debug.LogCache("cached field migrations no longer apply: %v", err)
		}
	}

	current, err := scanFieldDescriptors(ctx, classes, opts.Workers)
	if err != nil {
		return nil, err
	}
	migrations, err := diffFieldDescriptors(tree, current, compiledIdx)
	if err != nil {
		return nil, err
	}
	if err := ApplyFieldMigrations(tree, migrations); err != nil {
		return nil, err
	}

	if err := cache.SaveDocument(opts.Cache, key, fieldsDocument{Version: cacheVersion, Migrations: migrations}); err != nil {
		debug.LogCache("store %s: %v", key, err)
	}
	return &FieldMigrations{Migrations: migrations}, nil
}

// scanFieldDescriptors maps (owner, field) to the compiled descriptor
func scanFieldDescriptors(ctx context.Context, classes []*archive.Entry, workers int) (map[fieldKey]string, error) {
	found := scan.NewMap[fieldKey, string]()
	err := scan.ForEach(ctx, workers, archive.Classes(classes), func(ctx context.Context, e *archive.Entry) error {
		info, err := classpath.DescribeBytes(e.Name, e.Data)
		if err != nil {
			return err
		}
		for _, f := range info.Fields {
			found.Store(fieldKey{info.Name, f.Name}, f.Desc)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return found.Snapshot(), nil
}

func diffFieldDescriptors(tree *mapping.Tree, current map[fieldKey]string, compiledIdx int) ([]FieldMigration, error) {
	var migrations []FieldMigration
	for _, c := range tree.Classes() {
		owner := c.NameOrSource(compiledIdx)
		for _, f := range c.Fields() {
			desc, ok := current[fieldKey{owner, f.NameOrSource(compiledIdx)}]
			if !ok {
				continue
			}
			recorded, err := f.Desc(compiledIdx)
			if err != nil {
				return nil, fmt.Errorf("field %s.%s: %w", c.SrcName, f.SrcName, err)
			}
			if recorded == desc {
				continue
			}
			newDesc, err := tree.MapDescriptor(desc, compiledIdx, mapping.SourceIndex)
			if err != nil {
				return nil, fmt.Errorf("field %s.%s: %w", c.SrcName, f.SrcName, err)
			}
			if newDesc == f.SrcDesc {
				continue
			}
			migrations = append(migrations, FieldMigration{
				ID:      MigrationID(c.SrcName, f.SrcName, f.SrcDesc, newDesc),
				Class:   c.SrcName,
				Field:   f.SrcName,
				OldDesc: f.SrcDesc,
				NewDesc: newDesc,
			})
		}
	}
	sort.Slice(migrations, func(i, j int) bool {
		if migrations[i].Class != migrations[j].Class {
			return migrations[i].Class < migrations[j].Class
		}
		return migrations[i].Field < migrations[j].Field
	})
	return migrations, nil
}

// ApplyFieldMigrations rewrites the tree's field descriptors in place. A
// migration whose class or field is gone is an error.
func ApplyFieldMigrations(tree *mapping.Tree, migrations []FieldMigration) error {
	log := debug.Logger("MIGRATE")
	for _, m := range migrations {
		c := tree.Class(m.Class)
		if c == nil {
			return fmt.Errorf("field migration %s: class %s not in tree", m.ID, m.Class)
		}
		f := fieldWithDesc(c, m.Field, m.OldDesc)
		if f == nil {
			if fieldWithDesc(c, m.Field, m.NewDesc) != nil {
				continue
			}
			return fmt.Errorf("field migration %s: field %s.%s:%s not in tree", m.ID, m.Class, m.Field, m.OldDesc)
		}
		if err := c.SetFieldDesc(f, m.NewDesc); err != nil {
			return err
		}
		log.WithFields(logrus.Fields{
			"class": m.Class,
			"field": m.Field,
			"from":  m.OldDesc,
			"to":    m.NewDesc,
		}).Debug("migrated field descriptor")
	}
	return nil
}

// fieldWithDesc finds a field by exact source descriptor
func fieldWithDesc(c *mapping.ClassMapping, name, desc string) *mapping.FieldMapping {
	for _, f := range c.Fields() {
		if f.SrcName == name && f.SrcDesc == desc {
			return f
		}
	}
	return nil
}
