package classfile

import (
	"fmt"
)

// AnnotationRefKind classifies a constant pool slot inside annotation data
type AnnotationRefKind int

const (
	// RefAnnotationType is the field descriptor of an annotation type
	RefAnnotationType AnnotationRefKind = iota
	// RefElementName is an element name; Owner is the annotation type slot
	RefElementName
	// RefEnumType is the field descriptor of an enum constant's type
	RefEnumType
	// RefEnumConst is an enum constant name; Owner is the enum type slot
	RefEnumConst
	// RefClassInfo is the return descriptor of a class literal
	RefClassInfo
	// RefConstValue is a primitive or string constant
	RefConstValue
)

// AnnotationRef is one constant pool slot found in annotation data
type AnnotationRef struct {
	Kind  AnnotationRefKind
	Slot  Slot
	Owner Slot
}

// DecodeAnnotations lists every slot in an annotation-bearing attribute
// (annotations, parameter annotations, type annotations, AnnotationDefault)
func DecodeAnnotations(name string, a *Attribute) ([]AnnotationRef, error) {
	w := &annotationWalker{c: &cursor{data: a.Data}}
	switch name {
	case AttrRuntimeVisibleAnnotations, AttrRuntimeInvisibleAnnotations:
		w.annotations(false)
	case AttrRuntimeVisibleParameterAnnotations, AttrRuntimeInvisibleParameterAnnotations:
		params := int(w.c.u1())
		for i := 0; i < params && w.c.err == nil; i++ {
			w.annotations(false)
		}
	case AttrRuntimeVisibleTypeAnnotations, AttrRuntimeInvisibleTypeAnnotations:
		w.annotations(true)
	case AttrAnnotationDefault:
		w.elementValue()
	default:
		return nil, fmt.Errorf("%s does not hold annotations", name)
	}
	if w.c.err != nil {
		return nil, w.c.err
	}
	if w.c.pos != len(a.Data) {
		return nil, fmt.Errorf("%s: %d trailing bytes", name, len(a.Data)-w.c.pos)
	}
	return w.refs, nil
}

// IsAnnotationAttribute reports whether DecodeAnnotations understands name
func IsAnnotationAttribute(name string) bool {
	switch name {
	case AttrRuntimeVisibleAnnotations, AttrRuntimeInvisibleAnnotations,
		AttrRuntimeVisibleParameterAnnotations, AttrRuntimeInvisibleParameterAnnotations,
		AttrRuntimeVisibleTypeAnnotations, AttrRuntimeInvisibleTypeAnnotations,
		AttrAnnotationDefault:
		return true
	}
	return false
}

type annotationWalker struct {
	c    *cursor
	refs []AnnotationRef
}

func (w *annotationWalker) add(kind AnnotationRefKind, s, owner Slot) {
	w.refs = append(w.refs, AnnotationRef{Kind: kind, Slot: s, Owner: owner})
}

func (w *annotationWalker) annotations(typed bool) {
	n := int(w.c.u2())
	for i := 0; i < n && w.c.err == nil; i++ {
		if typed {
			w.typeTarget()
		}
		w.annotation()
	}
}

func (w *annotationWalker) annotation() {
	typ := w.c.slot()
	w.add(RefAnnotationType, typ, Slot{})
	pairs := int(w.c.u2())
	for i := 0; i < pairs && w.c.err == nil; i++ {
		w.add(RefElementName, w.c.slot(), typ)
		w.elementValue()
	}
}

func (w *annotationWalker) elementValue() {
	tag := w.c.u1()
	if w.c.err != nil {
		return
	}
	switch tag {
	case 'B', 'C', 'D', 'F', 'I', 'J', 'S', 'Z', 's':
		w.add(RefConstValue, w.c.slot(), Slot{})
	case 'e':
		typ := w.c.slot()
		w.add(RefEnumType, typ, Slot{})
		w.add(RefEnumConst, w.c.slot(), typ)
	case 'c':
		w.add(RefClassInfo, w.c.slot(), Slot{})
	case '@':
		w.annotation()
	case '[':
		n := int(w.c.u2())
		for i := 0; i < n && w.c.err == nil; i++ {
			w.elementValue()
		}
	default:
		w.c.err = fmt.Errorf("unknown element value tag %q at offset %d", tag, w.c.pos-1)
	}
}

// typeTarget skips target_type, target_info and type_path of a type annotation
func (w *annotationWalker) typeTarget() {
	target := w.c.u1()
	switch target {
	case 0x00, 0x01, 0x16:
		w.c.skip(1)
	case 0x10, 0x17, 0x42:
		w.c.skip(2)
	case 0x11, 0x12:
		w.c.skip(2)
	case 0x13, 0x14, 0x15:
	case 0x40, 0x41:
		n := int(w.c.u2())
		w.c.skip(n * 6)
	case 0x43, 0x44, 0x45, 0x46:
		w.c.skip(2)
	case 0x47, 0x48, 0x49, 0x4A, 0x4B:
		w.c.skip(3)
	default:
		if w.c.err == nil {
			w.c.err = fmt.Errorf("unknown type annotation target 0x%02x", target)
		}
		return
	}
	pathLen := int(w.c.u1())
	w.c.skip(pathLen * 2)
}
