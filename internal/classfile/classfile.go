// Package classfile parses and writes JVM class files. Attributes are kept as
// raw bytes; typed walkers expose the constant pool index slots inside the
// attributes the rename pass needs, so a class can be rewritten without
// re-encoding bytecode.
package classfile

import (
	"encoding/binary"
	"errors"
	"fmt"

	jerrors "github.com/standardbeagle/jremap/internal/errors"
)

const magic = 0xCAFEBABE

// ClassFile is a parsed class
type ClassFile struct {
	Minor, Major uint16
	Pool         *ConstantPool
	Access       uint16
	ThisClass    uint16
	SuperClass   uint16
	Interfaces   []uint16
	Fields       []*Member
	Methods      []*Member
	Attributes   []*Attribute
}

// Member is a field_info or method_info
type Member struct {
	Access     uint16
	NameIndex  uint16
	DescIndex  uint16
	Attributes []*Attribute
}

// Attribute is an attribute_info with its body kept raw
type Attribute struct {
	NameIndex uint16
	Data      []byte
}

var errTruncated = errors.New("unexpected end of class data")

// reader is a big-endian cursor with a sticky error
type reader struct {
	data []byte
	pos  int
	err  error
}

func (r *reader) need(n int) bool {
	if r.err != nil {
		return false
	}
	if n < 0 || r.pos+n > len(r.data) {
		r.err = errTruncated
		return false
	}
	return true
}

func (r *reader) u1() uint8 {
	if !r.need(1) {
		return 0
	}
	v := r.data[r.pos]
	r.pos++
	return v
}

func (r *reader) u2() uint16 {
	if !r.need(2) {
		return 0
	}
	v := binary.BigEndian.Uint16(r.data[r.pos:])
	r.pos += 2
	return v
}

func (r *reader) u4() uint32 {
	if !r.need(4) {
		return 0
	}
	v := binary.BigEndian.Uint32(r.data[r.pos:])
	r.pos += 4
	return v
}

func (r *reader) bytes(n int) []byte {
	if !r.need(n) {
		return nil
	}
	v := r.data[r.pos : r.pos+n : r.pos+n]
	r.pos += n
	return v
}

func (r *reader) fail(err error) error {
	return jerrors.NewClassFormatError("", r.pos, err)
}

// Parse decodes a class file. The returned structure owns copies of every
// attribute body, so data may be reused afterwards.
func Parse(data []byte) (*ClassFile, error) {
	buf := make([]byte, len(data))
	copy(buf, data)
	r := &reader{data: buf}

	if m := r.u4(); r.err == nil && m != magic {
		return nil, r.fail(fmt.Errorf("bad magic 0x%08X", m))
	}
	cf := &ClassFile{}
	cf.Minor = r.u2()
	cf.Major = r.u2()

	pool, err := parsePool(r)
	if err != nil {
		return nil, err
	}
	cf.Pool = pool

	cf.Access = r.u2()
	cf.ThisClass = r.u2()
	cf.SuperClass = r.u2()
	n := int(r.u2())
	if r.err == nil {
		cf.Interfaces = make([]uint16, n)
		for i := range cf.Interfaces {
			cf.Interfaces[i] = r.u2()
		}
	}
	if cf.Fields, err = parseMembers(r); err != nil {
		return nil, err
	}
	if cf.Methods, err = parseMembers(r); err != nil {
		return nil, err
	}
	if cf.Attributes, err = parseAttributes(r); err != nil {
		return nil, err
	}
	if r.err != nil {
		return nil, r.fail(r.err)
	}
	if r.pos != len(r.data) {
		return nil, r.fail(fmt.Errorf("%d trailing bytes", len(r.data)-r.pos))
	}
	if _, err := cf.Pool.ClassName(cf.ThisClass); err != nil {
		return nil, jerrors.NewClassFormatError("", 0, fmt.Errorf("this_class: %w", err))
	}
	return cf, nil
}

func parsePool(r *reader) (*ConstantPool, error) {
	count := int(r.u2())
	if r.err != nil {
		return nil, r.fail(r.err)
	}
	if count == 0 {
		return nil, r.fail(errors.New("constant pool count is zero"))
	}
	p := &ConstantPool{entries: make([]*Constant, count)}
	for i := 1; i < count; i++ {
		start := r.pos
		c := &Constant{Tag: r.u1()}
		switch c.Tag {
		case TagUtf8:
			n := int(r.u2())
			raw := r.bytes(n)
			if r.err == nil {
				s, err := decodeMUTF8(raw)
				if err != nil {
					return nil, jerrors.NewClassFormatError("", start, fmt.Errorf("constant %d: %w", i, err))
				}
				c.Value = s
			}
		case TagInteger, TagFloat:
			c.Raw = r.bytes(4)
		case TagLong, TagDouble:
			c.Raw = r.bytes(8)
		case TagClass, TagString, TagMethodType, TagModule, TagPackage:
			c.Index1 = r.u2()
		case TagFieldref, TagMethodref, TagInterfaceMethodref, TagNameAndType, TagDynamic, TagInvokeDynamic:
			c.Index1 = r.u2()
			c.Index2 = r.u2()
		case TagMethodHandle:
			c.Kind = r.u1()
			c.Index1 = r.u2()
		default:
			if r.err == nil {
				return nil, jerrors.NewClassFormatError("", start, fmt.Errorf("constant %d: unknown tag %d", i, c.Tag))
			}
		}
		if r.err != nil {
			return nil, r.fail(r.err)
		}
		p.entries[i] = c
		if c.Tag == TagLong || c.Tag == TagDouble {
			i++
			if i >= count {
				return nil, jerrors.NewClassFormatError("", start, fmt.Errorf("constant %d: wide constant overruns the pool", i-1))
			}
		}
	}
	return p, nil
}

func parseMembers(r *reader) ([]*Member, error) {
	n := int(r.u2())
	if r.err != nil {
		return nil, r.fail(r.err)
	}
	members := make([]*Member, n)
	for i := range members {
		m := &Member{Access: r.u2(), NameIndex: r.u2(), DescIndex: r.u2()}
		attrs, err := parseAttributes(r)
		if err != nil {
			return nil, err
		}
		m.Attributes = attrs
		members[i] = m
	}
	return members, nil
}

func parseAttributes(r *reader) ([]*Attribute, error) {
	n := int(r.u2())
	if r.err != nil {
		return nil, r.fail(r.err)
	}
	attrs := make([]*Attribute, n)
	for i := range attrs {
		a := &Attribute{NameIndex: r.u2()}
		length := r.u4()
		if r.err == nil && int64(length) > int64(len(r.data)-r.pos) {
			return nil, r.fail(fmt.Errorf("attribute length %d exceeds remaining %d bytes", length, len(r.data)-r.pos))
		}
		a.Data = r.bytes(int(length))
		if r.err != nil {
			return nil, r.fail(r.err)
		}
		attrs[i] = a
	}
	return attrs, nil
}

// writer is a growable big-endian buffer
type writer struct {
	buf []byte
}

func (w *writer) u1(v uint8)  { w.buf = append(w.buf, v) }
func (w *writer) u2(v uint16) { w.buf = binary.BigEndian.AppendUint16(w.buf, v) }
func (w *writer) u4(v uint32) { w.buf = binary.BigEndian.AppendUint32(w.buf, v) }
func (w *writer) raw(b []byte) {
	w.buf = append(w.buf, b...)
}

// Bytes encodes the class file
func (cf *ClassFile) Bytes() ([]byte, error) {
	w := &writer{buf: make([]byte, 0, 4096)}
	w.u4(magic)
	w.u2(cf.Minor)
	w.u2(cf.Major)

	if cf.Pool.Len() > 0xFFFF {
		return nil, fmt.Errorf("constant pool overflow: %d entries", cf.Pool.Len())
	}
	w.u2(uint16(cf.Pool.Len()))
	for i, c := range cf.Pool.entries {
		if c == nil {
			continue
		}
		w.u1(c.Tag)
		switch c.Tag {
		case TagUtf8:
			enc := encodeMUTF8(c.Value)
			if len(enc) > 0xFFFF {
				return nil, fmt.Errorf("constant %d: string of %d bytes is too long", i, len(enc))
			}
			w.u2(uint16(len(enc)))
			w.raw(enc)
		case TagInteger, TagFloat, TagLong, TagDouble:
			w.raw(c.Raw)
		case TagClass, TagString, TagMethodType, TagModule, TagPackage:
			w.u2(c.Index1)
		case TagFieldref, TagMethodref, TagInterfaceMethodref, TagNameAndType, TagDynamic, TagInvokeDynamic:
			w.u2(c.Index1)
			w.u2(c.Index2)
		case TagMethodHandle:
			w.u1(c.Kind)
			w.u2(c.Index1)
		default:
			return nil, fmt.Errorf("constant %d: unknown tag %d", i, c.Tag)
		}
	}

	w.u2(cf.Access)
	w.u2(cf.ThisClass)
	w.u2(cf.SuperClass)
	w.u2(uint16(len(cf.Interfaces)))
	for _, i := range cf.Interfaces {
		w.u2(i)
	}
	writeMembers(w, cf.Fields)
	writeMembers(w, cf.Methods)
	writeAttributes(w, cf.Attributes)
	return w.buf, nil
}

func writeMembers(w *writer, members []*Member) {
	w.u2(uint16(len(members)))
	for _, m := range members {
		w.u2(m.Access)
		w.u2(m.NameIndex)
		w.u2(m.DescIndex)
		writeAttributes(w, m.Attributes)
	}
}

func writeAttributes(w *writer, attrs []*Attribute) {
	w.u2(uint16(len(attrs)))
	for _, a := range attrs {
		w.u2(a.NameIndex)
		w.u4(uint32(len(a.Data)))
		w.raw(a.Data)
	}
}

// Name returns the internal name of the class
func (cf *ClassFile) Name() (string, error) {
	return cf.Pool.ClassName(cf.ThisClass)
}

// SuperName returns the superclass, "" for java/lang/Object and module-info
func (cf *ClassFile) SuperName() (string, error) {
	if cf.SuperClass == 0 {
		return "", nil
	}
	return cf.Pool.ClassName(cf.SuperClass)
}

// InterfaceNames returns the direct superinterfaces
func (cf *ClassFile) InterfaceNames() ([]string, error) {
	names := make([]string, len(cf.Interfaces))
	for i, idx := range cf.Interfaces {
		name, err := cf.Pool.ClassName(idx)
		if err != nil {
			return nil, err
		}
		names[i] = name
	}
	return names, nil
}

// IsModule reports whether this is a module-info class
func (cf *ClassFile) IsModule() bool {
	return cf.Access&AccModule != 0
}

// MemberName returns the name and descriptor of a field or method
func (cf *ClassFile) MemberName(m *Member) (string, string, error) {
	name, err := cf.Pool.Utf8(m.NameIndex)
	if err != nil {
		return "", "", err
	}
	desc, err := cf.Pool.Utf8(m.DescIndex)
	if err != nil {
		return "", "", err
	}
	return name, desc, nil
}

// AttributeName returns the name of an attribute
func (cf *ClassFile) AttributeName(a *Attribute) (string, error) {
	return cf.Pool.Utf8(a.NameIndex)
}

// FindAttribute returns the first attribute with a given name, or nil
func (cf *ClassFile) FindAttribute(attrs []*Attribute, name string) *Attribute {
	for _, a := range attrs {
		if n, err := cf.Pool.Utf8(a.NameIndex); err == nil && n == name {
			return a
		}
	}
	return nil
}
