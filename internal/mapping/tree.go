// Package mapping holds the in-memory multi-namespace symbol table: classes,
// their fields and methods, and method arguments, each carrying one name per
// namespace plus an optional comment.
//
// A Tree is built through the Visitor contract (usually by a format reader or
// the merge engine) and is treated as read-only once VisitEnd has been called.
// Migrators may still edit it, but only from a single goroutine.
package mapping

import (
	"fmt"
	"sync"
)

// Tree is a multi-namespace mapping tree keyed by source class name.
type Tree struct {
	ns       Namespaces
	nsFrozen bool

	classes    []*ClassMapping
	classIndex map[string]*ClassMapping

	// visitor state
	curClass  *ClassMapping
	curMethod *MethodMapping
	curTarget commentable
	ended     bool

	// per-namespace lookup indexes, rebuilt after mutation
	mu      sync.Mutex
	version uint64
	indexes map[int]*Index
}

type commentable interface {
	setComment(string)
}

// NewTree creates an empty tree. Namespaces are set by VisitNamespaces or SetNamespaces.
func NewTree() *Tree {
	return &Tree{classIndex: make(map[string]*ClassMapping)}
}

// NewTreeWithNamespaces creates an empty tree with a fixed namespace layout
func NewTreeWithNamespaces(src string, dst ...string) (*Tree, error) {
	t := NewTree()
	if err := t.SetNamespaces(src, dst...); err != nil {
		return nil, err
	}
	return t, nil
}

// SetNamespaces fixes the namespace layout. A second call must repeat the same layout.
func (t *Tree) SetNamespaces(src string, dst ...string) error {
	ns, err := NewNamespaces(src, dst...)
	if err != nil {
		return err
	}
	if t.nsFrozen {
		if !t.ns.Equal(ns) {
			return fmt.Errorf("namespaces already fixed as %s, got %s", t.ns, ns)
		}
		return nil
	}
	t.ns = ns
	t.nsFrozen = true
	return nil
}

// Namespaces returns the tree's namespace layout
func (t *Tree) Namespaces() Namespaces {
	return Namespaces{Src: t.ns.Src, Dst: append([]string(nil), t.ns.Dst...)}
}

// SrcNamespace returns the source namespace name
func (t *Tree) SrcNamespace() string { return t.ns.Src }

// DstNamespaces returns the destination namespace names
func (t *Tree) DstNamespaces() []string { return append([]string(nil), t.ns.Dst...) }

// NamespaceIndex resolves a namespace name
func (t *Tree) NamespaceIndex(name string) (int, bool) { return t.ns.Index(name) }

// MustNamespaceIndex resolves a namespace name or returns an error naming it
func (t *Tree) MustNamespaceIndex(name string) (int, error) {
	idx, ok := t.ns.Index(name)
	if !ok {
		return 0, fmt.Errorf("namespace %q not present in tree (%s)", name, t.ns)
	}
	return idx, nil
}

// Classes returns the classes in insertion order
func (t *Tree) Classes() []*ClassMapping {
	return t.classes
}

// Class returns the class with the given source name
func (t *Tree) Class(srcName string) *ClassMapping {
	return t.classIndex[srcName]
}

// ClassCount returns the number of classes
func (t *Tree) ClassCount() int {
	return len(t.classes)
}

// AddClass returns the class with srcName, creating it if needed
func (t *Tree) AddClass(srcName string) *ClassMapping {
	if c, ok := t.classIndex[srcName]; ok {
		return c
	}
	c := &ClassMapping{
		tree:        t,
		SrcName:     srcName,
		names:       names{DstNames: make([]string, len(t.ns.Dst))},
		fieldIndex:  make(map[MemberKey]*FieldMapping),
		methodIndex: make(map[MemberKey]*MethodMapping),
	}
	t.classes = append(t.classes, c)
	t.classIndex[srcName] = c
	t.touch()
	return c
}

// RemoveClass deletes a class and all its members
func (t *Tree) RemoveClass(srcName string) bool {
	c, ok := t.classIndex[srcName]
	if !ok {
		return false
	}
	delete(t.classIndex, srcName)
	for i, existing := range t.classes {
		if existing == c {
			t.classes = append(t.classes[:i], t.classes[i+1:]...)
			break
		}
	}
	t.touch()
	return true
}

// touch invalidates cached indexes after a mutation
func (t *Tree) touch() {
	t.mu.Lock()
	t.version++
	t.indexes = nil
	t.mu.Unlock()
}

// MemberKey identifies a field or method by name and descriptor
type MemberKey struct {
	Name string
	Desc string
}

// String renders the key as name+desc, or name:desc for fields
func (k MemberKey) String() string {
	if len(k.Desc) > 0 && k.Desc[0] == '(' {
		return k.Name + k.Desc
	}
	return k.Name + ":" + k.Desc
}

// names is the per-namespace naming shared by every element kind
type names struct {
	DstNames []string
	Comment  string
}

// DstName returns the name in a destination namespace ("" when unmapped)
func (n *names) DstName(ns int) string {
	if ns < 0 || ns >= len(n.DstNames) {
		return ""
	}
	return n.DstNames[ns]
}

// SetDstName sets the name in a destination namespace
func (n *names) SetDstName(ns int, name string) {
	if ns < 0 || ns >= len(n.DstNames) {
		return
	}
	n.DstNames[ns] = name
}

func (n *names) setComment(c string) { n.Comment = c }

func (n *names) mergeDst(dst []string) {
	for i, name := range dst {
		if i < len(n.DstNames) && name != "" {
			n.DstNames[i] = name
		}
	}
}

// ClassMapping is one class and its members
type ClassMapping struct {
	names
	tree    *Tree
	SrcName string

	fields      []*FieldMapping
	methods     []*MethodMapping
	fieldIndex  map[MemberKey]*FieldMapping
	methodIndex map[MemberKey]*MethodMapping
}

// Name returns the class name in a namespace; "" if unmapped there
func (c *ClassMapping) Name(ns int) string {
	if ns == SourceIndex {
		return c.SrcName
	}
	return c.DstName(ns)
}

// NameOrSource returns the class name in a namespace, falling back to the source name
func (c *ClassMapping) NameOrSource(ns int) string {
	if n := c.Name(ns); n != "" {
		return n
	}
	return c.SrcName
}

// Tree returns the owning tree
func (c *ClassMapping) Tree() *Tree { return c.tree }

// Fields returns the fields in insertion order
func (c *ClassMapping) Fields() []*FieldMapping { return c.fields }

// Methods returns the methods in insertion order
func (c *ClassMapping) Methods() []*MethodMapping { return c.methods }

// Field looks a field up by source name and descriptor. An empty descriptor
// matches the first field with that name.
func (c *ClassMapping) Field(name, desc string) *FieldMapping {
	if desc != "" {
		if f, ok := c.fieldIndex[MemberKey{name, desc}]; ok {
			return f
		}
		// Entries without a descriptor still match by name
		return c.fieldIndex[MemberKey{name, ""}]
	}
	for _, f := range c.fields {
		if f.SrcName == name {
			return f
		}
	}
	return nil
}

// Method looks a method up by source name and descriptor
func (c *ClassMapping) Method(name, desc string) *MethodMapping {
	return c.methodIndex[MemberKey{name, desc}]
}

// AddField returns the field with name and desc, creating it if needed
func (c *ClassMapping) AddField(name, desc string) *FieldMapping {
	key := MemberKey{name, desc}
	if f, ok := c.fieldIndex[key]; ok {
		return f
	}
	f := &FieldMapping{member: member{
		names:   names{DstNames: make([]string, len(c.tree.ns.Dst))},
		owner:   c,
		SrcName: name,
		SrcDesc: desc,
	}}
	c.fields = append(c.fields, f)
	c.fieldIndex[key] = f
	c.tree.touch()
	return f
}

// AddMethod returns the method with name and desc, creating it if needed
func (c *ClassMapping) AddMethod(name, desc string) *MethodMapping {
	key := MemberKey{name, desc}
	if m, ok := c.methodIndex[key]; ok {
		return m
	}
	m := &MethodMapping{member: member{
		names:   names{DstNames: make([]string, len(c.tree.ns.Dst))},
		owner:   c,
		SrcName: name,
		SrcDesc: desc,
	}}
	c.methods = append(c.methods, m)
	c.methodIndex[key] = m
	c.tree.touch()
	return m
}

// RemoveField deletes a field
func (c *ClassMapping) RemoveField(f *FieldMapping) bool {
	key := MemberKey{f.SrcName, f.SrcDesc}
	if c.fieldIndex[key] != f {
		return false
	}
	delete(c.fieldIndex, key)
	for i, existing := range c.fields {
		if existing == f {
			c.fields = append(c.fields[:i], c.fields[i+1:]...)
			break
		}
	}
	c.tree.touch()
	return true
}

// RemoveMethod deletes a method
func (c *ClassMapping) RemoveMethod(m *MethodMapping) bool {
	key := MemberKey{m.SrcName, m.SrcDesc}
	if c.methodIndex[key] != m {
		return false
	}
	delete(c.methodIndex, key)
	for i, existing := range c.methods {
		if existing == m {
			c.methods = append(c.methods[:i], c.methods[i+1:]...)
			break
		}
	}
	c.tree.touch()
	return true
}

// SetFieldDesc rewrites a field's source descriptor, keeping lookups consistent.
// It fails if another field already holds the new name/descriptor pair.
func (c *ClassMapping) SetFieldDesc(f *FieldMapping, desc string) error {
	oldKey := MemberKey{f.SrcName, f.SrcDesc}
	newKey := MemberKey{f.SrcName, desc}
	if oldKey == newKey {
		return nil
	}
	if other, ok := c.fieldIndex[newKey]; ok && other != f {
		return fmt.Errorf("field %s.%s already has descriptor %s", c.SrcName, f.SrcName, desc)
	}
	delete(c.fieldIndex, oldKey)
	f.SrcDesc = desc
	c.fieldIndex[newKey] = f
	c.tree.touch()
	return nil
}

// member is shared by fields and methods
type member struct {
	names
	owner   *ClassMapping
	SrcName string
	SrcDesc string
}

// Owner returns the declaring class mapping
func (m *member) Owner() *ClassMapping { return m.owner }

// Name returns the member name in a namespace; "" if unmapped there
func (m *member) Name(ns int) string {
	if ns == SourceIndex {
		return m.SrcName
	}
	return m.DstName(ns)
}

// NameOrSource returns the member name in a namespace, falling back to the source name
func (m *member) NameOrSource(ns int) string {
	if n := m.Name(ns); n != "" {
		return n
	}
	return m.SrcName
}

// Key returns the source name/descriptor key
func (m *member) Key() MemberKey {
	return MemberKey{m.SrcName, m.SrcDesc}
}

// Desc returns the descriptor translated into a namespace
func (m *member) Desc(ns int) (string, error) {
	return m.owner.tree.MapDescriptor(m.SrcDesc, SourceIndex, ns)
}

// FieldMapping is a field of a class
type FieldMapping struct {
	member
}

// MethodMapping is a method of a class, with optional argument mappings
type MethodMapping struct {
	member
	args []*MethodArgMapping
}

// Args returns the argument mappings in insertion order
func (m *MethodMapping) Args() []*MethodArgMapping { return m.args }

// Arg finds an argument by position or local-variable slot; -1 matches any
func (m *MethodMapping) Arg(position, lvIndex int) *MethodArgMapping {
	for _, a := range m.args {
		if position >= 0 && a.ArgPosition == position {
			return a
		}
		if lvIndex >= 0 && a.LvIndex == lvIndex {
			return a
		}
	}
	return nil
}

// AddArg returns the argument mapping for position/slot, creating it if needed
func (m *MethodMapping) AddArg(position, lvIndex int, srcName string) *MethodArgMapping {
	if a := m.Arg(position, lvIndex); a != nil {
		if a.ArgPosition < 0 {
			a.ArgPosition = position
		}
		if a.LvIndex < 0 {
			a.LvIndex = lvIndex
		}
		if a.SrcName == "" {
			a.SrcName = srcName
		}
		return a
	}
	a := &MethodArgMapping{
		names:       names{DstNames: make([]string, len(m.owner.tree.ns.Dst))},
		method:      m,
		ArgPosition: position,
		LvIndex:     lvIndex,
		SrcName:     srcName,
	}
	m.args = append(m.args, a)
	return a
}

// MethodArgMapping is a method parameter keyed by position and/or local-variable slot
type MethodArgMapping struct {
	names
	method      *MethodMapping
	ArgPosition int
	LvIndex     int
	SrcName     string
}

// Method returns the owning method
func (a *MethodArgMapping) Method() *MethodMapping { return a.method }

// Name returns the argument name in a namespace; "" if unmapped there
func (a *MethodArgMapping) Name(ns int) string {
	if ns == SourceIndex {
		return a.SrcName
	}
	return a.DstName(ns)
}
