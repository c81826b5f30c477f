package classfile

import (
	"encoding/binary"
)

// Builder assembles a class file with a deduplicated constant pool, the way a
// compiler would lay one out. It is used to synthesize classes for tooling
// and fixtures; the first error sticks and is returned from Build.
type Builder struct {
	cf    *ClassFile
	err   error
	utf8  map[string]uint16
	cache map[constKey]uint16
}

// constKey identifies a non-Utf8 constant for deduplication
type constKey struct {
	tag    uint8
	kind   uint8
	index1 uint16
	index2 uint16
	raw    string
}

// NewBuilder starts a class. super may be empty (module-info, java/lang/Object).
func NewBuilder(name, super string, access uint16) *Builder {
	b := &Builder{
		cf:    &ClassFile{Major: 52, Pool: NewConstantPool(), Access: access},
		utf8:  make(map[string]uint16),
		cache: make(map[constKey]uint16),
	}
	b.cf.ThisClass = b.Class(name)
	if super != "" {
		b.cf.SuperClass = b.Class(super)
	}
	return b
}

func (b *Builder) intern(c Constant) uint16 {
	key := constKey{tag: c.Tag, kind: c.Kind, index1: c.Index1, index2: c.Index2, raw: string(c.Raw)}
	if idx, ok := b.cache[key]; ok {
		return idx
	}
	if b.err != nil {
		return 0
	}
	idx, err := b.cf.Pool.add(&c)
	if err != nil {
		b.err = err
		return 0
	}
	b.cache[key] = idx
	return idx
}

// Utf8 interns a string
func (b *Builder) Utf8(s string) uint16 {
	if idx, ok := b.utf8[s]; ok {
		return idx
	}
	if b.err != nil {
		return 0
	}
	idx, err := b.cf.Pool.AddUtf8(s)
	if err != nil {
		b.err = err
		return 0
	}
	b.utf8[s] = idx
	return idx
}

// Class interns a Class constant
func (b *Builder) Class(name string) uint16 {
	return b.intern(Constant{Tag: TagClass, Index1: b.Utf8(name)})
}

// String interns a String constant
func (b *Builder) String(s string) uint16 {
	return b.intern(Constant{Tag: TagString, Index1: b.Utf8(s)})
}

// Integer interns an Integer constant
func (b *Builder) Integer(v int32) uint16 {
	return b.intern(Constant{Tag: TagInteger, Raw: binary.BigEndian.AppendUint32(nil, uint32(v))})
}

// Long interns a Long constant, which occupies two slots
func (b *Builder) Long(v int64) uint16 {
	return b.intern(Constant{Tag: TagLong, Raw: binary.BigEndian.AppendUint64(nil, uint64(v))})
}

// NameAndType interns a NameAndType constant
func (b *Builder) NameAndType(name, desc string) uint16 {
	return b.intern(Constant{Tag: TagNameAndType, Index1: b.Utf8(name), Index2: b.Utf8(desc)})
}

// FieldRef interns a Fieldref
func (b *Builder) FieldRef(owner, name, desc string) uint16 {
	return b.intern(Constant{Tag: TagFieldref, Index1: b.Class(owner), Index2: b.NameAndType(name, desc)})
}

// MethodRef interns a Methodref
func (b *Builder) MethodRef(owner, name, desc string) uint16 {
	return b.intern(Constant{Tag: TagMethodref, Index1: b.Class(owner), Index2: b.NameAndType(name, desc)})
}

// InterfaceMethodRef interns an InterfaceMethodref
func (b *Builder) InterfaceMethodRef(owner, name, desc string) uint16 {
	return b.intern(Constant{Tag: TagInterfaceMethodref, Index1: b.Class(owner), Index2: b.NameAndType(name, desc)})
}

// MethodHandle interns a MethodHandle of a reference kind
func (b *Builder) MethodHandle(kind uint8, ref uint16) uint16 {
	return b.intern(Constant{Tag: TagMethodHandle, Kind: kind, Index1: ref})
}

// MethodType interns a MethodType
func (b *Builder) MethodType(desc string) uint16 {
	return b.intern(Constant{Tag: TagMethodType, Index1: b.Utf8(desc)})
}

// InvokeDynamic interns an InvokeDynamic referring to bootstrap method bsm
func (b *Builder) InvokeDynamic(bsm uint16, name, desc string) uint16 {
	return b.intern(Constant{Tag: TagInvokeDynamic, Index1: bsm, Index2: b.NameAndType(name, desc)})
}

// Interface adds a direct superinterface
func (b *Builder) Interface(name string) *Builder {
	b.cf.Interfaces = append(b.cf.Interfaces, b.Class(name))
	return b
}

// Attribute creates an attribute with a raw body
func (b *Builder) Attribute(name string, data []byte) *Attribute {
	return &Attribute{NameIndex: b.Utf8(name), Data: data}
}

// Field declares a field
func (b *Builder) Field(access uint16, name, desc string, attrs ...*Attribute) *Member {
	m := &Member{Access: access, NameIndex: b.Utf8(name), DescIndex: b.Utf8(desc), Attributes: attrs}
	b.cf.Fields = append(b.cf.Fields, m)
	return m
}

// Method declares a method
func (b *Builder) Method(access uint16, name, desc string, attrs ...*Attribute) *Member {
	m := &Member{Access: access, NameIndex: b.Utf8(name), DescIndex: b.Utf8(desc), Attributes: attrs}
	b.cf.Methods = append(b.cf.Methods, m)
	return m
}

// ClassAttribute attaches an attribute to the class
func (b *Builder) ClassAttribute(a *Attribute) *Builder {
	b.cf.Attributes = append(b.cf.Attributes, a)
	return b
}

// Code builds a Code attribute without exception handlers
func (b *Builder) Code(maxStack, maxLocals uint16, bytecode []byte, attrs ...*Attribute) *Attribute {
	var w AttributeWriter
	w.U2(maxStack).U2(maxLocals).U4(uint32(len(bytecode))).Raw(bytecode)
	w.U2(0)
	w.U2(uint16(len(attrs)))
	for _, a := range attrs {
		w.U2(a.NameIndex).U4(uint32(len(a.Data))).Raw(a.Data)
	}
	return b.Attribute(AttrCode, w.Bytes())
}

// Build returns the class
func (b *Builder) Build() (*ClassFile, error) {
	if b.err != nil {
		return nil, b.err
	}
	return b.cf, nil
}

// Bytes encodes the class
func (b *Builder) Bytes() ([]byte, error) {
	cf, err := b.Build()
	if err != nil {
		return nil, err
	}
	return cf.Bytes()
}

// AttributeWriter builds big-endian attribute bodies
type AttributeWriter struct {
	buf []byte
}

// U1 appends a byte
func (w *AttributeWriter) U1(v uint8) *AttributeWriter {
	w.buf = append(w.buf, v)
	return w
}

// U2 appends a big-endian uint16
func (w *AttributeWriter) U2(v uint16) *AttributeWriter {
	w.buf = binary.BigEndian.AppendUint16(w.buf, v)
	return w
}

// U4 appends a big-endian uint32
func (w *AttributeWriter) U4(v uint32) *AttributeWriter {
	w.buf = binary.BigEndian.AppendUint32(w.buf, v)
	return w
}

// Raw appends bytes
func (w *AttributeWriter) Raw(b []byte) *AttributeWriter {
	w.buf = append(w.buf, b...)
	return w
}

// Bytes returns the body
func (w *AttributeWriter) Bytes() []byte { return w.buf }
