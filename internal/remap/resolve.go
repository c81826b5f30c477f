package remap

import (
	"strings"

	"github.com/standardbeagle/jremap/internal/classfile"
	"github.com/standardbeagle/jremap/internal/classpath"
)

type memberKind uint8

const (
	kindField memberKind = iota
	kindMethod
)

// memberRef is a member reference in the source namespace
type memberRef struct {
	kind  memberKind
	owner string
	name  string
	desc  string
}

// mapMember returns the target name of a member reference. A member the tree
// does not know on owner is looked up on every supertype reachable through
// the archive and the classpath; the nearest declaration with a tree entry
// wins, even when that entry leaves the target name empty. Unmapped members
// keep their name.
func (r *Remapper) mapMember(ref memberRef) string {
	if strings.HasPrefix(ref.owner, "[") {
		// Array pseudo-members (clone, length) are never mapped
		return ref.name
	}
	if name, ok := r.members.Load(ref); ok {
		return name
	}
	name, found := r.lookupMember(ref.owner, ref)
	if !found {
		for _, ancestor := range r.supertypes(ref.owner) {
			if name, found = r.lookupMember(ancestor, ref); found {
				break
			}
		}
	}
	if !found {
		name = ref.name
	}
	r.members.Store(ref, name)
	return name
}

// mapDeclared maps a member declared by owner. Private, static and
// constructor methods never inherit a name.
func (r *Remapper) mapDeclared(owner string, kind memberKind, access uint16, name, desc string) string {
	ref := memberRef{kind: kind, owner: owner, name: name, desc: desc}
	if kind == kindMethod && (access&(classfile.AccPrivate|classfile.AccStatic) != 0 || strings.HasPrefix(name, "<")) {
		if n, ok := r.lookupMember(owner, ref); ok {
			return n
		}
		return name
	}
	return r.mapMember(ref)
}

// lookupMember reports whether owner has a tree entry for the member and its
// target name. An entry without a target name keeps the source name.
func (r *Remapper) lookupMember(owner string, ref memberRef) (string, bool) {
	var name string
	switch ref.kind {
	case kindField:
		f := r.idx.Field(owner, ref.name, ref.desc)
		if f == nil {
			return "", false
		}
		name = f.Name(r.tgt)
	case kindMethod:
		m := r.idx.Method(owner, ref.name, ref.desc)
		if m == nil {
			return "", false
		}
		name = m.Name(r.tgt)
	default:
		return "", false
	}
	if name == "" {
		name = ref.name
	}
	return name, true
}

// supertypes returns the transitive supertypes of a class, nearest first
func (r *Remapper) supertypes(name string) []string {
	if s, ok := r.ancestors.Load(name); ok {
		return s
	}
	s := classpath.Ancestors(r.hierarchy, name)
	r.ancestors.Store(name, s)
	return s
}

// mapElementName maps an annotation element, which is a method of the
// annotation type with any descriptor
func (r *Remapper) mapElementName(annotationType, name string) string {
	for _, m := range r.idx.MethodsNamed(annotationType, name) {
		if n := m.Name(r.tgt); n != "" {
			return n
		}
	}
	return name
}
