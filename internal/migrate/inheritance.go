package migrate

import (
	"context"
	"fmt"

	"github.com/emirpasic/gods/maps/treemap"
	"github.com/emirpasic/gods/sets/hashset"
	"github.com/emirpasic/gods/sets/treeset"
	"github.com/sirupsen/logrus"

	"github.com/standardbeagle/jremap/internal/archive"
	"github.com/standardbeagle/jremap/internal/cache"
	"github.com/standardbeagle/jremap/internal/classfile"
	"github.com/standardbeagle/jremap/internal/classpath"
	"github.com/standardbeagle/jremap/internal/debug"
	"github.com/standardbeagle/jremap/internal/mapping"
)

// InheritanceOptions configures ComputeMethodsToStrip
type InheritanceOptions struct {
	// SourceNamespace is the namespace the compiled classes are named in
	SourceNamespace string
	// IntermediateNamespace is the namespace the result is expressed in
	IntermediateNamespace string
	Workers               int
	Cache                 cache.Store
	ForceRefresh          bool
}

type strippedMethod struct {
	Name string `toml:"name"`
	Desc string `toml:"desc"`
}

type inheritanceDocument struct {
	Version int              `toml:"version"`
	Methods []strippedMethod `toml:"methods"`
}

// inheritedName is one candidate: a subclass method mapped to an intermediate
// name while overriding a method of an unmapped ancestor
type inheritedName struct {
	owner string
	key   mapping.MemberKey
}

// candidate collects the intermediate names seen for one unmapped super-method
type candidate struct {
	names *treeset.Set // intermediate names, sorted
	keys  map[string]mapping.MemberKey
	via   []inheritedName
}

// ComputeMethodsToStrip finds methods inherited from a class outside the
// mapping coverage that subclasses map to two or more different intermediate
// names. Every such name is ambiguous; the returned (name, descriptor) pairs,
// expressed in the intermediate namespace, should be removed from the tree.
func ComputeMethodsToStrip(ctx context.Context, tree *mapping.Tree, classes []*archive.Entry, opts InheritanceOptions) (mapping.MethodSet, error) {
	srcIdx, err := namespaceIndex(tree, opts.SourceNamespace)
	if err != nil {
		return nil, err
	}
	interIdx, err := namespaceIndex(tree, opts.IntermediateNamespace)
	if err != nil {
		return nil, err
	}

	key := inputsKey("inherit/", tree, classes, opts.SourceNamespace, opts.IntermediateNamespace)
	if !opts.ForceRefresh {
		var doc inheritanceDocument
		if cache.LoadDocument(opts.Cache, key, &doc) && doc.Version == cacheVersion {
			set := mapping.NewMethodSet()
			for _, m := range doc.Methods {
				set.Add(m.Name, m.Desc)
			}
			debug.LogMigrate("inheritance strip set loaded from cache (%d methods)", set.Len())
			return set, nil
		}
	}

	compiled, err := classpath.FromEntries(ctx, classes, opts.Workers)
	if err != nil {
		return nil, err
	}
	set, err := ambiguousInherited(tree, compiled, srcIdx, interIdx)
	if err != nil {
		return nil, err
	}

	doc := inheritanceDocument{Version: cacheVersion}
	for _, k := range set.Sorted() {
		doc.Methods = append(doc.Methods, strippedMethod{Name: k.Name, Desc: k.Desc})
	}
	if err := cache.SaveDocument(opts.Cache, key, doc); err != nil {
		debug.LogCache("store %s: %v", key, err)
	}
	return set, nil
}

func ambiguousInherited(tree *mapping.Tree, compiled classpath.Provider, srcIdx, interIdx int) (mapping.MethodSet, error) {
	idx := tree.Index(srcIdx)
	h := newHierarchy(compiled)
	candidates := treemap.NewWithStringComparator()

	for _, c := range tree.Classes() {
		owner := c.NameOrSource(srcIdx)
		for _, m := range c.Methods() {
			name := m.NameOrSource(srcIdx)
			inter := m.NameOrSource(interIdx)
			if inter == name {
				continue
			}
			desc, err := m.Desc(srcIdx)
			if err != nil {
				return nil, fmt.Errorf("method %s.%s: %w", c.SrcName, m.SrcName, err)
			}
			interDesc, err := m.Desc(interIdx)
			if err != nil {
				return nil, fmt.Errorf("method %s.%s: %w", c.SrcName, m.SrcName, err)
			}

			for _, ancestor := range h.ancestors(owner) {
				info, ok := compiled.Lookup(ancestor)
				if !ok {
					continue
				}
				declared, ok := info.Method(name, desc)
				if !ok || !overridable(declared) {
					continue
				}
				if idx.Method(ancestor, name, desc) != nil {
					continue
				}
				k := ancestor + "." + name + desc
				var cand *candidate
				if v, found := candidates.Get(k); found {
					cand = v.(*candidate)
				} else {
					cand = &candidate{names: treeset.NewWithStringComparator(), keys: make(map[string]mapping.MemberKey)}
					candidates.Put(k, cand)
				}
				cand.names.Add(inter)
				cand.keys[inter] = mapping.MemberKey{Name: inter, Desc: interDesc}
				cand.via = append(cand.via, inheritedName{owner: owner, key: mapping.MemberKey{Name: inter, Desc: interDesc}})
			}
		}
	}

	set := mapping.NewMethodSet()
	log := debug.Logger("MIGRATE")
	it := candidates.Iterator()
	for it.Next() {
		cand := it.Value().(*candidate)
		if cand.names.Size() < 2 {
			continue
		}
		for _, v := range cand.names.Values() {
			k := cand.keys[v.(string)]
			set.Add(k.Name, k.Desc)
			var owners []string
			for _, in := range cand.via {
				if in.key == k {
					owners = append(owners, in.owner)
				}
			}
			log.WithFields(logrus.Fields{
				"super":   it.Key(),
				"method":  k.String(),
				"classes": owners,
			}).Info("removing ambiguous inherited method mapping")
		}
	}
	return set, nil
}

// overridable reports whether a declared method takes part in virtual dispatch
func overridable(m classpath.Member) bool {
	if m.Access&(classfile.AccPrivate|classfile.AccStatic) != 0 {
		return false
	}
	return m.Name != "<init>" && m.Name != "<clinit>"
}

// hierarchy memoizes transitive ancestors; single-threaded
type hierarchy struct {
	provider classpath.Provider
	memo     map[string][]string
	visiting *hashset.Set
}

func newHierarchy(p classpath.Provider) *hierarchy {
	return &hierarchy{provider: p, memo: make(map[string][]string), visiting: hashset.New()}
}

// ancestors returns every supertype of name, nearest first. A class on the
// current walk path contributes nothing, which breaks cycles.
func (h *hierarchy) ancestors(name string) []string {
	if a, ok := h.memo[name]; ok {
		return a
	}
	if h.visiting.Contains(name) {
		return nil
	}
	h.visiting.Add(name)
	defer h.visiting.Remove(name)

	info, ok := h.provider.Lookup(name)
	if !ok {
		h.memo[name] = nil
		return nil
	}
	seen := hashset.New(name)
	var out []string
	add := func(s string) {
		if !seen.Contains(s) {
			seen.Add(s)
			out = append(out, s)
		}
	}
	for _, super := range info.Supers() {
		add(super)
		for _, a := range h.ancestors(super) {
			add(a)
		}
	}
	h.memo[name] = out
	return out
}

// ApplyMethodStrip removes every method whose name and descriptor in ns is in
// set and logs each removal
func ApplyMethodStrip(tree *mapping.Tree, ns string, set mapping.MethodSet) ([]*mapping.MethodMapping, error) {
	idx, err := namespaceIndex(tree, ns)
	if err != nil {
		return nil, err
	}
	removed := mapping.StripMethods(tree, idx, set)
	log := debug.Logger("MIGRATE")
	for _, m := range removed {
		log.WithFields(logrus.Fields{
			"class":  m.Owner().SrcName,
			"method": m.Key().String(),
		}).Info("stripped method mapping")
	}
	return removed, nil
}
