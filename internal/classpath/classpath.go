// Package classpath answers "what does this class declare and extend" for
// classes inside the archive under rewrite and for external libraries.
package classpath

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/standardbeagle/jremap/internal/archive"
	"github.com/standardbeagle/jremap/internal/classfile"
	"github.com/standardbeagle/jremap/internal/debug"
	jerrors "github.com/standardbeagle/jremap/internal/errors"
	"github.com/standardbeagle/jremap/internal/scan"
)

// Member is a declared field or method
type Member struct {
	Name   string
	Desc   string
	Access uint16
}

// ClassInfo is the hierarchy-relevant summary of one class
type ClassInfo struct {
	Name       string
	Super      string
	Interfaces []string
	Access     uint16
	Methods    []Member
	Fields     []Member
}

// IsInterface reports whether the class is an interface
func (c *ClassInfo) IsInterface() bool {
	return c.Access&classfile.AccInterface != 0
}

// Method returns the declared method with name and desc
func (c *ClassInfo) Method(name, desc string) (Member, bool) {
	for _, m := range c.Methods {
		if m.Name == name && m.Desc == desc {
			return m, true
		}
	}
	return Member{}, false
}

// Field returns the declared field with name and desc; an empty desc matches any
func (c *ClassInfo) Field(name, desc string) (Member, bool) {
	for _, f := range c.Fields {
		if f.Name == name && (desc == "" || f.Desc == desc) {
			return f, true
		}
	}
	return Member{}, false
}

// Supers returns the superclass followed by the interfaces
func (c *ClassInfo) Supers() []string {
	out := make([]string, 0, len(c.Interfaces)+1)
	if c.Super != "" {
		out = append(out, c.Super)
	}
	return append(out, c.Interfaces...)
}

// Describe summarizes a parsed class
func Describe(cf *classfile.ClassFile) (*ClassInfo, error) {
	name, err := cf.Name()
	if err != nil {
		return nil, err
	}
	super, err := cf.SuperName()
	if err != nil {
		return nil, err
	}
	ifaces, err := cf.InterfaceNames()
	if err != nil {
		return nil, err
	}
	info := &ClassInfo{Name: name, Super: super, Interfaces: ifaces, Access: cf.Access}
	for _, f := range cf.Fields {
		n, d, err := cf.MemberName(f)
		if err != nil {
			return nil, err
		}
		info.Fields = append(info.Fields, Member{Name: n, Desc: d, Access: f.Access})
	}
	for _, m := range cf.Methods {
		n, d, err := cf.MemberName(m)
		if err != nil {
			return nil, err
		}
		info.Methods = append(info.Methods, Member{Name: n, Desc: d, Access: m.Access})
	}
	return info, nil
}

// DescribeBytes parses class bytes and summarizes them
func DescribeBytes(entry string, data []byte) (*ClassInfo, error) {
	cf, err := classfile.Parse(data)
	if err != nil {
		return nil, withEntry(err, entry)
	}
	info, err := Describe(cf)
	if err != nil {
		return nil, jerrors.NewClassFormatError(entry, 0, err)
	}
	return info, nil
}

func withEntry(err error, entry string) error {
	var cfe *jerrors.ClassFormatError
	if errors.As(err, &cfe) {
		return cfe.WithEntry(entry)
	}
	return jerrors.NewClassFormatError(entry, 0, err)
}

// Provider resolves classes by internal name. Implementations are safe for
// concurrent use.
type Provider interface {
	Lookup(name string) (*ClassInfo, bool)
}

// Set is an immutable provider over a fixed group of classes
type Set struct {
	classes map[string]*ClassInfo
}

// NewSet builds a provider from summaries; later duplicates are ignored
func NewSet(infos ...*ClassInfo) *Set {
	s := &Set{classes: make(map[string]*ClassInfo, len(infos))}
	for _, info := range infos {
		if _, ok := s.classes[info.Name]; !ok {
			s.classes[info.Name] = info
		}
	}
	return s
}

// Lookup implements Provider
func (s *Set) Lookup(name string) (*ClassInfo, bool) {
	if s == nil {
		return nil, false
	}
	info, ok := s.classes[name]
	return info, ok
}

// Len returns the number of classes
func (s *Set) Len() int { return len(s.classes) }

// Names returns the class names sorted
func (s *Set) Names() []string {
	names := make([]string, 0, len(s.classes))
	for name := range s.classes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// All returns the summaries sorted by name
func (s *Set) All() []*ClassInfo {
	out := make([]*ClassInfo, 0, len(s.classes))
	for _, name := range s.Names() {
		out = append(out, s.classes[name])
	}
	return out
}

// FromEntries parses the class entries in parallel. Malformed classes fail
// the whole scan and are reported together. Module descriptors are skipped.
func FromEntries(ctx context.Context, entries []*archive.Entry, workers int) (*Set, error) {
	found := scan.NewMap[string, *ClassInfo]()
	var classes []*archive.Entry
	for _, e := range archive.Classes(entries) {
		// Multi-release variants share the base version's hierarchy
		if !strings.HasPrefix(e.Name, "META-INF/versions/") {
			classes = append(classes, e)
		}
	}
	failed := make([]error, len(classes))
	positions := make([]int, len(classes))
	for i := range positions {
		positions[i] = i
	}
	err := scan.ForEach(ctx, workers, positions, func(ctx context.Context, i int) error {
		info, err := DescribeBytes(classes[i].Name, classes[i].Data)
		if err != nil {
			failed[i] = err
			return nil
		}
		found.Store(info.Name, info)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := jerrors.NewMultiError(failed).ErrorOrNil(); err != nil {
		return nil, err
	}
	debug.Log("CLASSPATH", "described %d classes", found.Len())
	return &Set{classes: found.Snapshot()}, nil
}

// Lazy loads a set of archives on first lookup. Load errors are kept and
// reported by Err; lookups then find nothing.
type Lazy struct {
	paths   []string
	workers int

	once sync.Once
	set  *Set
	err  error
}

// FromArchives creates a provider over library archives, read on first use
func FromArchives(paths []string, workers int) *Lazy {
	return &Lazy{paths: append([]string(nil), paths...), workers: workers}
}

func (l *Lazy) load() {
	l.once.Do(func() {
		var infos []*ClassInfo
		for _, path := range l.paths {
			entries, err := archive.Read(path, archive.Filter{Include: []string{"**/*.class"}})
			if err != nil {
				l.err = err
				return
			}
			set, err := FromEntries(context.Background(), entries, l.workers)
			if err != nil {
				l.err = err
				return
			}
			infos = append(infos, set.All()...)
		}
		l.set = NewSet(infos...)
	})
}

// Lookup implements Provider
func (l *Lazy) Lookup(name string) (*ClassInfo, bool) {
	l.load()
	return l.set.Lookup(name)
}

// Err forces loading and returns the load error, if any
func (l *Lazy) Err() error {
	l.load()
	return l.err
}

// Chain consults providers in order; the first hit wins
type Chain []Provider

// Lookup implements Provider
func (c Chain) Lookup(name string) (*ClassInfo, bool) {
	for _, p := range c {
		if p == nil {
			continue
		}
		if info, ok := p.Lookup(name); ok {
			return info, true
		}
	}
	return nil, false
}

// Ancestors returns every transitive supertype of name reachable through p,
// nearest first, each once. Cycles are tolerated.
func Ancestors(p Provider, name string) []string {
	var out []string
	seen := map[string]bool{name: true}
	queue := []string{name}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		info, ok := p.Lookup(cur)
		if !ok {
			continue
		}
		for _, s := range info.Supers() {
			if !seen[s] {
				seen[s] = true
				out = append(out, s)
				queue = append(queue, s)
			}
		}
	}
	return out
}
