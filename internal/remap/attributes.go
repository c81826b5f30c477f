package remap

import (
	"fmt"
	"strings"

	"github.com/standardbeagle/jremap/internal/classfile"
	"github.com/standardbeagle/jremap/internal/descriptor"
)

// attributes walks an attribute list. Attribute names are pinned so a
// renamed member can never rename an attribute that shares its Utf8.
func (w *classRewriter) attributes(attrs []*classfile.Attribute, scope *methodScope) error {
	for _, a := range attrs {
		if err := w.patch.pin(classfile.FieldSlot(&a.NameIndex)); err != nil {
			return err
		}
		name, err := w.cf.AttributeName(a)
		if err != nil {
			return err
		}
		if err := w.attribute(name, a, scope); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

func (w *classRewriter) nested(attrs []*classfile.NestedAttribute, scope *methodScope) error {
	for _, n := range attrs {
		if err := w.patch.pin(n.Name); err != nil {
			return err
		}
		name, err := w.cf.Pool.Utf8(n.Name.Get())
		if err != nil {
			return err
		}
		if err := w.attribute(name, n.AsAttribute(), scope); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

func (w *classRewriter) attribute(name string, a *classfile.Attribute, scope *methodScope) error {
	switch {
	case name == classfile.AttrSignature:
		return w.signature(a)
	case name == classfile.AttrSourceFile:
		return w.sourceFile(a)
	case name == classfile.AttrInnerClasses:
		return w.innerClasses(a)
	case name == classfile.AttrEnclosingMethod:
		return w.enclosingMethod(a)
	case name == classfile.AttrCode:
		code, err := classfile.DecodeCode(a)
		if err != nil {
			return err
		}
		return w.nested(code.Attributes, scope)
	case name == classfile.AttrLocalVariableTable, name == classfile.AttrLocalVariableTypeTable:
		return w.localVariables(name, a, scope)
	case name == classfile.AttrMethodParameters:
		return w.methodParameters(a, scope)
	case name == classfile.AttrRecord:
		return w.record(a)
	case classfile.IsAnnotationAttribute(name):
		return w.annotations(name, a)
	}
	return nil
}

func (w *classRewriter) signature(a *classfile.Attribute) error {
	slot, err := classfile.SingleIndex(a)
	if err != nil {
		return err
	}
	sig, err := w.cf.Pool.Utf8(slot.Get())
	if err != nil {
		return err
	}
	mapped, err := descriptor.MapSignature(sig, w.r.mapClass)
	if err != nil {
		return err
	}
	w.patch.use(slot, mapped)
	return nil
}

// sourceFile keeps the SourceFile name unless rebuilding is enabled, in
// which case it follows the new top-level class and keeps its extension
func (w *classRewriter) sourceFile(a *classfile.Attribute) error {
	slot, err := classfile.SingleIndex(a)
	if err != nil {
		return err
	}
	if !w.r.opts.RebuildSourceFile || w.name == w.newName {
		return w.patch.pin(slot)
	}
	old, err := w.cf.Pool.Utf8(slot.Get())
	if err != nil {
		return err
	}
	ext := ".java"
	if i := strings.LastIndexByte(old, '.'); i >= 0 {
		ext = old[i:]
	}
	w.patch.use(slot, descriptor.SimpleName(descriptor.TopLevelName(w.newName))+ext)
	return nil
}

func (w *classRewriter) innerClasses(a *classfile.Attribute) error {
	entries, err := classfile.DecodeInnerClasses(a)
	if err != nil {
		return err
	}
	pool := w.cf.Pool
	for _, ic := range entries {
		if ic.Name.Get() == 0 {
			continue
		}
		simple, err := pool.Utf8(ic.Name.Get())
		if err != nil {
			return err
		}
		inner, err := pool.ClassName(ic.Inner)
		if err != nil {
			return err
		}
		outer := ""
		if ic.Outer != 0 {
			if outer, err = pool.ClassName(ic.Outer); err != nil {
				return err
			}
		}
		w.patch.use(ic.Name, w.innerSimpleName(inner, outer, simple))
	}
	return nil
}

// innerSimpleName derives the simple name of a nested class after renaming.
// Local classes (no outer entry) drop the numeric prefix of their binary name.
func (w *classRewriter) innerSimpleName(inner, outer, simple string) string {
	mapped := w.r.mapClass(inner)
	if mapped == inner {
		return simple
	}
	if outer != "" {
		if prefix := w.r.mapClass(outer) + "$"; strings.HasPrefix(mapped, prefix) {
			return mapped[len(prefix):]
		}
	}
	s := descriptor.SimpleName(mapped)
	if i := strings.LastIndexByte(s, '$'); i >= 0 {
		s = s[i+1:]
	}
	if outer == "" {
		s = strings.TrimLeft(s, "0123456789")
	}
	if s == "" {
		return simple
	}
	return s
}

func (w *classRewriter) enclosingMethod(a *classfile.Attribute) error {
	em, err := classfile.DecodeEnclosingMethod(a)
	if err != nil {
		return err
	}
	if em.Method.Get() == 0 {
		return nil
	}
	owner, err := w.cf.Pool.ClassName(em.Class)
	if err != nil {
		return err
	}
	name, desc, err := w.cf.Pool.NameAndType(em.Method.Get())
	if err != nil {
		return err
	}
	mapped, err := w.mapDesc(desc)
	if err != nil {
		return err
	}
	w.patch.useNAT(em.Method, w.r.mapMember(memberRef{kindMethod, owner, name, desc}), mapped)
	return nil
}

// localVariables renames arguments from the method's argument mappings and
// maps every type. Only entries live from the method start are arguments.
func (w *classRewriter) localVariables(name string, a *classfile.Attribute, scope *methodScope) error {
	vars, err := classfile.DecodeLocalVariables(a)
	if err != nil {
		return err
	}
	typeTable := name == classfile.AttrLocalVariableTypeTable
	pool := w.cf.Pool
	for _, v := range vars {
		local, err := pool.Utf8(v.Name.Get())
		if err != nil {
			return err
		}
		if v.StartPC == 0 {
			if n := scope.argName(scope.positionOf(v.Index), w.r.tgt); n != "" {
				local = n
			}
		}
		w.patch.use(v.Name, local)

		typ, err := pool.Utf8(v.Desc.Get())
		if err != nil {
			return err
		}
		if typeTable {
			typ, err = descriptor.MapSignature(typ, w.r.mapClass)
		} else {
			typ, err = w.mapDesc(typ)
		}
		if err != nil {
			return err
		}
		w.patch.use(v.Desc, typ)
	}
	return nil
}

func (w *classRewriter) methodParameters(a *classfile.Attribute, scope *methodScope) error {
	params, err := classfile.DecodeMethodParameters(a)
	if err != nil {
		return err
	}
	for i, p := range params {
		if p.Name.Get() == 0 {
			continue
		}
		if n := scope.argName(i, w.r.tgt); n != "" {
			w.patch.use(p.Name, n)
		} else if err := w.patch.pin(p.Name); err != nil {
			return err
		}
	}
	return nil
}

// record maps record components like the fields backing them
func (w *classRewriter) record(a *classfile.Attribute) error {
	components, err := classfile.DecodeRecord(a)
	if err != nil {
		return err
	}
	pool := w.cf.Pool
	for _, rc := range components {
		name, err := pool.Utf8(rc.Name.Get())
		if err != nil {
			return err
		}
		desc, err := pool.Utf8(rc.Desc.Get())
		if err != nil {
			return err
		}
		mapped, err := w.mapDesc(desc)
		if err != nil {
			return err
		}
		if f := w.r.idx.Field(w.name, name, desc); f != nil && f.Name(w.r.tgt) != "" {
			name = f.Name(w.r.tgt)
		}
		w.patch.use(rc.Name, name)
		w.patch.use(rc.Desc, mapped)
		if err := w.nested(rc.Attributes, nil); err != nil {
			return err
		}
	}
	return nil
}

func (w *classRewriter) annotations(name string, a *classfile.Attribute) error {
	refs, err := classfile.DecodeAnnotations(name, a)
	if err != nil {
		return err
	}
	pool := w.cf.Pool
	for _, ref := range refs {
		switch ref.Kind {
		case classfile.RefAnnotationType, classfile.RefEnumType:
			desc, err := pool.Utf8(ref.Slot.Get())
			if err != nil {
				return err
			}
			mapped, err := w.mapDesc(desc)
			if err != nil {
				return err
			}
			w.patch.use(ref.Slot, mapped)

		case classfile.RefClassInfo:
			desc, err := pool.Utf8(ref.Slot.Get())
			if err != nil {
				return err
			}
			if desc != "V" {
				if desc, err = w.mapDesc(desc); err != nil {
					return err
				}
			}
			w.patch.use(ref.Slot, desc)

		case classfile.RefElementName, classfile.RefEnumConst:
			element, err := pool.Utf8(ref.Slot.Get())
			if err != nil {
				return err
			}
			ownerDesc, err := pool.Utf8(ref.Owner.Get())
			if err != nil {
				return err
			}
			owner, ok := classOf(ownerDesc)
			if !ok {
				w.patch.use(ref.Slot, element)
				continue
			}
			if ref.Kind == classfile.RefElementName {
				w.patch.use(ref.Slot, w.r.mapElementName(owner, element))
			} else {
				w.patch.use(ref.Slot, w.r.mapMember(memberRef{kindField, owner, element, ownerDesc}))
			}

		case classfile.RefConstValue:
			if c := pool.Get(ref.Slot.Get()); c != nil && c.Tag == classfile.TagUtf8 {
				w.patch.use(ref.Slot, c.Value)
			}
		}
	}
	return nil
}

// classOf extracts the class name of an object field descriptor
func classOf(desc string) (string, bool) {
	if len(desc) < 3 || desc[0] != 'L' || desc[len(desc)-1] != ';' {
		return "", false
	}
	return desc[1 : len(desc)-1], true
}
