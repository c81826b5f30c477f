// Package remap rewrites compiled classes from one namespace of a finalized
// mapping tree into another. Each class is parsed, its constant pool is
// patched in place (splitting shared entries only when their users disagree)
// and it is written back without touching bytecode.
package remap

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/standardbeagle/jremap/internal/archive"
	"github.com/standardbeagle/jremap/internal/classfile"
	"github.com/standardbeagle/jremap/internal/classpath"
	"github.com/standardbeagle/jremap/internal/debug"
	"github.com/standardbeagle/jremap/internal/descriptor"
	jerrors "github.com/standardbeagle/jremap/internal/errors"
	"github.com/standardbeagle/jremap/internal/mapping"
	"github.com/standardbeagle/jremap/internal/scan"
)

// Options configures a Remapper
type Options struct {
	// Source and Target are namespace names of the tree; "" selects the
	// tree's source namespace
	Source string
	Target string

	// Classpath resolves library classes outside the archive. They are used
	// for hierarchy lookups only and are never renamed unless mapped.
	Classpath classpath.Provider

	Workers int

	// RemapStrings rewrites string literals that name a mapped class
	RemapStrings bool

	// RebuildSourceFile renames SourceFile attributes after the new
	// top-level class name
	RebuildSourceFile bool
}

// Stats counts what a rewrite changed
type Stats struct {
	Classes int64
	Renamed int64
	Strings int64
	Splits  int64
}

// Remapper rewrites classes. It never mutates the tree and is safe for
// concurrent use.
type Remapper struct {
	tree *mapping.Tree
	opts Options

	src int
	tgt int

	idx       *mapping.Index
	mapClass  descriptor.ClassMapper
	hierarchy classpath.Provider

	members   *scan.Map[memberRef, string]
	ancestors *scan.Map[string, []string]

	classes atomic.Int64
	renamed atomic.Int64
	strings atomic.Int64
	splits  atomic.Int64
}

// New creates a Remapper over a finalized tree
func New(tree *mapping.Tree, opts Options) (*Remapper, error) {
	src, err := namespaceIndex(tree, opts.Source)
	if err != nil {
		return nil, err
	}
	tgt, err := namespaceIndex(tree, opts.Target)
	if err != nil {
		return nil, err
	}
	r := &Remapper{
		tree:     tree,
		opts:     opts,
		src:      src,
		tgt:      tgt,
		idx:      tree.Index(src),
		mapClass: tree.ClassMapper(src, tgt),
	}
	r.setHierarchy(opts.Classpath)
	return r, nil
}

func namespaceIndex(tree *mapping.Tree, ns string) (int, error) {
	if ns == "" {
		return mapping.SourceIndex, nil
	}
	return tree.MustNamespaceIndex(ns)
}

func (r *Remapper) setHierarchy(p classpath.Provider) {
	if p == nil {
		p = classpath.Chain{}
	}
	r.hierarchy = p
	r.members = scan.NewMap[memberRef, string]()
	r.ancestors = scan.NewMap[string, []string]()
}

// withClasses returns a Remapper that also resolves the hierarchy through
// the given classes, ahead of the configured classpath
func (r *Remapper) withClasses(p classpath.Provider) *Remapper {
	c := &Remapper{
		tree:     r.tree,
		opts:     r.opts,
		src:      r.src,
		tgt:      r.tgt,
		idx:      r.idx,
		mapClass: r.mapClass,
	}
	c.setHierarchy(classpath.Chain{p, r.opts.Classpath})
	return c
}

// Stats returns the counters accumulated so far
func (r *Remapper) Stats() Stats {
	return Stats{
		Classes: r.classes.Load(),
		Renamed: r.renamed.Load(),
		Strings: r.strings.Load(),
		Splits:  r.splits.Load(),
	}
}

// RemapClass rewrites one class entry and returns the new bytes and entry
// name. Module descriptors are returned unchanged.
func (r *Remapper) RemapClass(entryName string, data []byte) ([]byte, string, error) {
	if archive.IsModuleInfo(entryName) {
		return data, entryName, nil
	}
	cf, err := classfile.Parse(data)
	if err != nil {
		return nil, "", withEntry(err, entryName)
	}
	if cf.IsModule() {
		return data, entryName, nil
	}

	w := &classRewriter{r: r, cf: cf, patch: newPatcher(cf.Pool)}
	if err := w.rewrite(); err != nil {
		return nil, "", withEntry(err, entryName)
	}
	out, err := cf.Bytes()
	if err != nil {
		return nil, "", withEntry(err, entryName)
	}

	r.classes.Add(1)
	r.splits.Add(int64(w.patch.splits))
	r.strings.Add(int64(w.strings))
	if w.newName != w.name {
		r.renamed.Add(1)
		debug.LogRemap("%s -> %s (%d strings, %d split constants)", w.name, w.newName, w.strings, w.patch.splits)
	}
	return out, renameEntry(entryName, w.name, w.newName), nil
}

// renameEntry moves a class entry after its class, keeping any
// multi-release prefix. Entries not laid out by class name keep their path.
func renameEntry(entryName, oldClass, newClass string) string {
	suffix := archive.EntryName(oldClass)
	if oldClass == newClass || !strings.HasSuffix(entryName, suffix) {
		return entryName
	}
	return strings.TrimSuffix(entryName, suffix) + archive.EntryName(newClass)
}

func withEntry(err error, entry string) error {
	var cfe *jerrors.ClassFormatError
	if errors.As(err, &cfe) {
		return cfe.WithEntry(entry)
	}
	return jerrors.NewClassFormatError(entry, 0, err)
}

// RewriteEntries rewrites every class entry in parallel. Other entries are
// passed through. Every malformed class is reported together in a MultiError
// and nothing is returned unless all classes were rewritten.
func (r *Remapper) RewriteEntries(ctx context.Context, entries []*archive.Entry) ([]*archive.Entry, error) {
	set, err := classpath.FromEntries(ctx, entries, r.opts.Workers)
	if err != nil {
		return nil, err
	}
	rr := r.withClasses(set)

	out := make([]*archive.Entry, len(entries))
	positions := make([]int, len(entries))
	for i := range positions {
		positions[i] = i
	}
	failed := make([]error, len(entries))
	err = scan.ForEach(ctx, r.opts.Workers, positions, func(ctx context.Context, i int) error {
		e := entries[i]
		if !e.IsClass() {
			out[i] = e
			return nil
		}
		data, name, err := rr.RemapClass(e.Name, e.Data)
		if err != nil {
			failed[i] = err
			return nil
		}
		out[i] = &archive.Entry{Name: name, Data: data, Method: e.Method, Modified: e.Modified, Comment: e.Comment}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := jerrors.NewMultiError(failed).ErrorOrNil(); err != nil {
		return nil, err
	}

	seen := make(map[string]string, len(out))
	for i, e := range out {
		if prev, dup := seen[e.Name]; dup {
			return nil, fmt.Errorf("entries %s and %s both rewrite to %s", prev, entries[i].Name, e.Name)
		}
		seen[e.Name] = entries[i].Name
	}

	stats := rr.Stats()
	r.classes.Add(stats.Classes)
	r.renamed.Add(stats.Renamed)
	r.strings.Add(stats.Strings)
	r.splits.Add(stats.Splits)
	debug.Logger("REMAP").WithFields(logrus.Fields{
		"classes": stats.Classes,
		"renamed": stats.Renamed,
		"strings": stats.Strings,
		"splits":  stats.Splits,
		"from":    r.tree.Namespaces().Name(r.src),
		"to":      r.tree.Namespaces().Name(r.tgt),
	}).Info("rewrote classes")
	return out, nil
}

// RewriteArchive rewrites the archive at in and writes the result to out.
// Nothing is written unless every class was rewritten; in and out may be
// the same path.
func (r *Remapper) RewriteArchive(ctx context.Context, in, out string) error {
	entries, err := archive.Read(in, archive.Filter{})
	if err != nil {
		return err
	}
	rewritten, err := r.RewriteEntries(ctx, entries)
	if err != nil {
		return err
	}
	return archive.WriteAtomic(out, rewritten)
}
