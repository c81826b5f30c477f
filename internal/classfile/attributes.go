package classfile

import (
	"encoding/binary"
	"fmt"
)

// Attribute names understood by the walkers
const (
	AttrCode                                 = "Code"
	AttrSignature                            = "Signature"
	AttrSourceFile                           = "SourceFile"
	AttrInnerClasses                         = "InnerClasses"
	AttrEnclosingMethod                      = "EnclosingMethod"
	AttrLocalVariableTable                   = "LocalVariableTable"
	AttrLocalVariableTypeTable               = "LocalVariableTypeTable"
	AttrMethodParameters                     = "MethodParameters"
	AttrRecord                               = "Record"
	AttrBootstrapMethods                     = "BootstrapMethods"
	AttrAnnotationDefault                    = "AnnotationDefault"
	AttrRuntimeVisibleAnnotations            = "RuntimeVisibleAnnotations"
	AttrRuntimeInvisibleAnnotations          = "RuntimeInvisibleAnnotations"
	AttrRuntimeVisibleParameterAnnotations   = "RuntimeVisibleParameterAnnotations"
	AttrRuntimeInvisibleParameterAnnotations = "RuntimeInvisibleParameterAnnotations"
	AttrRuntimeVisibleTypeAnnotations        = "RuntimeVisibleTypeAnnotations"
	AttrRuntimeInvisibleTypeAnnotations      = "RuntimeInvisibleTypeAnnotations"
)

// Slot is a u2 constant pool index held either in a parsed structure or
// inside raw attribute bytes. Setting a slot never changes any length.
type Slot struct {
	ptr *uint16
	buf []byte
	off int
}

// FieldSlot addresses an index stored in a struct field
func FieldSlot(p *uint16) Slot { return Slot{ptr: p} }

// ByteSlot addresses an index stored big-endian at buf[off:off+2]
func ByteSlot(buf []byte, off int) Slot { return Slot{buf: buf, off: off} }

// Get reads the index
func (s Slot) Get() uint16 {
	if s.ptr != nil {
		return *s.ptr
	}
	return binary.BigEndian.Uint16(s.buf[s.off:])
}

// Set writes the index
func (s Slot) Set(v uint16) {
	if s.ptr != nil {
		*s.ptr = v
		return
	}
	binary.BigEndian.PutUint16(s.buf[s.off:], v)
}

// Valid reports whether the slot addresses anything
func (s Slot) Valid() bool { return s.ptr != nil || s.buf != nil }

// cursor walks an attribute body, remembering offsets
type cursor struct {
	data []byte
	pos  int
	err  error
}

func (c *cursor) need(n int) bool {
	if c.err != nil {
		return false
	}
	if c.pos+n > len(c.data) {
		c.err = fmt.Errorf("attribute truncated at offset %d", c.pos)
		return false
	}
	return true
}

func (c *cursor) u1() uint8 {
	if !c.need(1) {
		return 0
	}
	v := c.data[c.pos]
	c.pos++
	return v
}

func (c *cursor) u2() uint16 {
	if !c.need(2) {
		return 0
	}
	v := binary.BigEndian.Uint16(c.data[c.pos:])
	c.pos += 2
	return v
}

func (c *cursor) u4() uint32 {
	if !c.need(4) {
		return 0
	}
	v := binary.BigEndian.Uint32(c.data[c.pos:])
	c.pos += 4
	return v
}

// slot consumes a u2 and returns a slot for it
func (c *cursor) slot() Slot {
	if !c.need(2) {
		return Slot{}
	}
	s := ByteSlot(c.data, c.pos)
	c.pos += 2
	return s
}

func (c *cursor) skip(n int) {
	if c.need(n) {
		c.pos += n
	}
}

// SingleIndex returns the slot of attributes whose body is one u2
// (Signature, SourceFile, ConstantValue, NestHost)
func SingleIndex(a *Attribute) (Slot, error) {
	if len(a.Data) != 2 {
		return Slot{}, fmt.Errorf("attribute body has %d bytes, expected 2", len(a.Data))
	}
	return ByteSlot(a.Data, 0), nil
}

// Code is a decoded Code attribute. Code and nested attribute bodies alias
// the attribute's bytes.
type Code struct {
	MaxStack   uint16
	MaxLocals  uint16
	Bytecode   []byte
	Attributes []*NestedAttribute
}

// NestedAttribute is an attribute inside a Code or Record attribute
type NestedAttribute struct {
	Name Slot
	Data []byte
}

// DecodeCode decodes a Code attribute
func DecodeCode(a *Attribute) (*Code, error) {
	c := &cursor{data: a.Data}
	code := &Code{MaxStack: c.u2(), MaxLocals: c.u2()}
	n := int(c.u4())
	if c.need(n) {
		code.Bytecode = c.data[c.pos : c.pos+n]
		c.pos += n
	}
	handlers := int(c.u2())
	c.skip(handlers * 8)
	code.Attributes = nestedAttributes(c)
	if c.err != nil {
		return nil, c.err
	}
	return code, nil
}

func nestedAttributes(c *cursor) []*NestedAttribute {
	n := int(c.u2())
	var out []*NestedAttribute
	for i := 0; i < n && c.err == nil; i++ {
		name := c.slot()
		length := int(c.u4())
		if !c.need(length) {
			break
		}
		out = append(out, &NestedAttribute{Name: name, Data: c.data[c.pos : c.pos+length : c.pos+length]})
		c.pos += length
	}
	return out
}

// AsAttribute views a nested attribute as a plain one for the walkers
func (n *NestedAttribute) AsAttribute() *Attribute {
	return &Attribute{NameIndex: n.Name.Get(), Data: n.Data}
}

// LocalVariable is one LocalVariableTable or LocalVariableTypeTable entry;
// Desc holds the signature in the type table.
type LocalVariable struct {
	StartPC uint16
	Length  uint16
	Name    Slot
	Desc    Slot
	Index   uint16
}

// DecodeLocalVariables decodes LocalVariableTable and LocalVariableTypeTable
func DecodeLocalVariables(a *Attribute) ([]LocalVariable, error) {
	c := &cursor{data: a.Data}
	n := int(c.u2())
	vars := make([]LocalVariable, 0, n)
	for i := 0; i < n && c.err == nil; i++ {
		v := LocalVariable{StartPC: c.u2(), Length: c.u2()}
		v.Name = c.slot()
		v.Desc = c.slot()
		v.Index = c.u2()
		vars = append(vars, v)
	}
	return vars, c.err
}

// MethodParameter is one MethodParameters entry; Name may hold index 0
type MethodParameter struct {
	Name   Slot
	Access uint16
}

// DecodeMethodParameters decodes a MethodParameters attribute
func DecodeMethodParameters(a *Attribute) ([]MethodParameter, error) {
	c := &cursor{data: a.Data}
	n := int(c.u1())
	params := make([]MethodParameter, 0, n)
	for i := 0; i < n && c.err == nil; i++ {
		p := MethodParameter{Name: c.slot()}
		p.Access = c.u2()
		params = append(params, p)
	}
	return params, c.err
}

// InnerClass is one InnerClasses entry
type InnerClass struct {
	Inner  uint16
	Outer  uint16
	Name   Slot
	Access uint16
}

// DecodeInnerClasses decodes an InnerClasses attribute
func DecodeInnerClasses(a *Attribute) ([]InnerClass, error) {
	c := &cursor{data: a.Data}
	n := int(c.u2())
	out := make([]InnerClass, 0, n)
	for i := 0; i < n && c.err == nil; i++ {
		ic := InnerClass{Inner: c.u2(), Outer: c.u2()}
		ic.Name = c.slot()
		ic.Access = c.u2()
		out = append(out, ic)
	}
	return out, c.err
}

// EnclosingMethod is a decoded EnclosingMethod attribute; Method holds a
// NameAndType index or 0
type EnclosingMethod struct {
	Class  uint16
	Method Slot
}

// DecodeEnclosingMethod decodes an EnclosingMethod attribute
func DecodeEnclosingMethod(a *Attribute) (*EnclosingMethod, error) {
	c := &cursor{data: a.Data}
	em := &EnclosingMethod{Class: c.u2()}
	em.Method = c.slot()
	return em, c.err
}

// RecordComponent is one Record attribute component
type RecordComponent struct {
	Name       Slot
	Desc       Slot
	Attributes []*NestedAttribute
}

// DecodeRecord decodes a Record attribute
func DecodeRecord(a *Attribute) ([]RecordComponent, error) {
	c := &cursor{data: a.Data}
	n := int(c.u2())
	out := make([]RecordComponent, 0, n)
	for i := 0; i < n && c.err == nil; i++ {
		rc := RecordComponent{Name: c.slot(), Desc: c.slot()}
		rc.Attributes = nestedAttributes(c)
		out = append(out, rc)
	}
	return out, c.err
}

// BootstrapMethod is one BootstrapMethods entry
type BootstrapMethod struct {
	MethodRef uint16
	Args      []uint16
}

// DecodeBootstrapMethods decodes a BootstrapMethods attribute
func DecodeBootstrapMethods(a *Attribute) ([]BootstrapMethod, error) {
	c := &cursor{data: a.Data}
	n := int(c.u2())
	out := make([]BootstrapMethod, 0, n)
	for i := 0; i < n && c.err == nil; i++ {
		bm := BootstrapMethod{MethodRef: c.u2()}
		args := int(c.u2())
		for j := 0; j < args && c.err == nil; j++ {
			bm.Args = append(bm.Args, c.u2())
		}
		out = append(out, bm)
	}
	return out, c.err
}
