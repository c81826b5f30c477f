package mapping

import (
	"github.com/standardbeagle/jremap/internal/descriptor"
)

// Index looks classes and members up by their names and descriptors in one
// namespace. An Index is immutable and safe for concurrent readers; it goes
// stale when the tree is mutated, so take a fresh one after migrations.
type Index struct {
	tree    *Tree
	ns      int
	version uint64

	classes map[string]*ClassMapping
	fields  map[*ClassMapping]map[MemberKey]*FieldMapping
	methods map[*ClassMapping]map[MemberKey]*MethodMapping
	byName  map[*ClassMapping]map[string][]*MethodMapping
}

// Index returns the lookup index for a namespace, building it on first use
func (t *Tree) Index(ns int) *Index {
	t.mu.Lock()
	if idx, ok := t.indexes[ns]; ok {
		t.mu.Unlock()
		return idx
	}
	version := t.version
	t.mu.Unlock()

	idx := t.buildIndex(ns, version)

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.version == version {
		if t.indexes == nil {
			t.indexes = make(map[int]*Index)
		}
		t.indexes[ns] = idx
	}
	return idx
}

func (t *Tree) buildIndex(ns int, version uint64) *Index {
	idx := &Index{
		tree:    t,
		ns:      ns,
		version: version,
		classes: make(map[string]*ClassMapping, len(t.classes)),
		fields:  make(map[*ClassMapping]map[MemberKey]*FieldMapping, len(t.classes)),
		methods: make(map[*ClassMapping]map[MemberKey]*MethodMapping, len(t.classes)),
		byName:  make(map[*ClassMapping]map[string][]*MethodMapping, len(t.classes)),
	}
	for _, c := range t.classes {
		idx.classes[c.NameOrSource(ns)] = c
	}
	mapper := t.ClassMapper(SourceIndex, ns)
	for _, c := range t.classes {
		if len(c.fields) > 0 {
			fields := make(map[MemberKey]*FieldMapping, len(c.fields))
			for _, f := range c.fields {
				desc, err := descriptor.MapDescriptor(f.SrcDesc, mapper)
				if err != nil {
					desc = f.SrcDesc
				}
				fields[MemberKey{f.NameOrSource(ns), desc}] = f
				if _, ok := fields[MemberKey{f.NameOrSource(ns), ""}]; !ok {
					fields[MemberKey{f.NameOrSource(ns), ""}] = f
				}
			}
			idx.fields[c] = fields
		}
		if len(c.methods) > 0 {
			methods := make(map[MemberKey]*MethodMapping, len(c.methods))
			byName := make(map[string][]*MethodMapping)
			for _, m := range c.methods {
				desc, err := descriptor.MapDescriptor(m.SrcDesc, mapper)
				if err != nil {
					desc = m.SrcDesc
				}
				name := m.NameOrSource(ns)
				methods[MemberKey{name, desc}] = m
				byName[name] = append(byName[name], m)
			}
			idx.methods[c] = methods
			idx.byName[c] = byName
		}
	}
	return idx
}

// Namespace returns the namespace index this Index resolves
func (idx *Index) Namespace() int { return idx.ns }

// Class finds a class by its name in the index namespace
func (idx *Index) Class(name string) *ClassMapping {
	return idx.classes[name]
}

// Field finds a field by owner, name and descriptor in the index namespace.
// An empty descriptor matches by name alone.
func (idx *Index) Field(owner, name, desc string) *FieldMapping {
	c := idx.classes[owner]
	if c == nil {
		return nil
	}
	if f, ok := idx.fields[c][MemberKey{name, desc}]; ok {
		return f
	}
	// Fields recorded without a descriptor still match by name
	if f, ok := idx.fields[c][MemberKey{name, ""}]; ok && f.SrcDesc == "" {
		return f
	}
	return nil
}

// Method finds a method by owner, name and descriptor in the index namespace
func (idx *Index) Method(owner, name, desc string) *MethodMapping {
	c := idx.classes[owner]
	if c == nil {
		return nil
	}
	return idx.methods[c][MemberKey{name, desc}]
}

// MethodsNamed lists the methods of owner with a given name, any descriptor
func (idx *Index) MethodsNamed(owner, name string) []*MethodMapping {
	c := idx.classes[owner]
	if c == nil {
		return nil
	}
	return idx.byName[c][name]
}

// ClassMapper returns a descriptor.ClassMapper translating class names from one
// namespace to another. Classes unknown to the tree keep their name; nested
// classes whose outer class is mapped follow it.
func (t *Tree) ClassMapper(from, to int) descriptor.ClassMapper {
	if from == to {
		return descriptor.Identity
	}
	var lookup func(string) *ClassMapping
	if from == SourceIndex {
		lookup = t.Class
	} else {
		idx := t.Index(from)
		lookup = idx.Class
	}
	var mapName func(string) string
	mapName = func(name string) string {
		if c := lookup(name); c != nil {
			return c.NameOrSource(to)
		}
		if outer, ok := descriptor.OuterName(name); ok {
			mappedOuter := mapName(outer)
			if mappedOuter != outer {
				return mappedOuter + name[len(outer):]
			}
		}
		return name
	}
	return mapName
}

// MapClassName translates a class name between namespaces
func (t *Tree) MapClassName(name string, from, to int) string {
	return t.ClassMapper(from, to)(name)
}

// MapDescriptor translates a descriptor between namespaces
func (t *Tree) MapDescriptor(desc string, from, to int) (string, error) {
	if desc == "" || from == to {
		return desc, nil
	}
	return descriptor.MapDescriptor(desc, t.ClassMapper(from, to))
}
