package classfile

import (
	"fmt"
	"math"
	"unicode/utf16"
	"unicode/utf8"
)

// Constant pool tags
const (
	TagUtf8               uint8 = 1
	TagInteger            uint8 = 3
	TagFloat              uint8 = 4
	TagLong               uint8 = 5
	TagDouble             uint8 = 6
	TagClass              uint8 = 7
	TagString             uint8 = 8
	TagFieldref           uint8 = 9
	TagMethodref          uint8 = 10
	TagInterfaceMethodref uint8 = 11
	TagNameAndType        uint8 = 12
	TagMethodHandle       uint8 = 15
	TagMethodType         uint8 = 16
	TagDynamic            uint8 = 17
	TagInvokeDynamic      uint8 = 18
	TagModule             uint8 = 19
	TagPackage            uint8 = 20
)

// Access flags used by the rename pass
const (
	AccPublic    uint16 = 0x0001
	AccPrivate   uint16 = 0x0002
	AccStatic    uint16 = 0x0008
	AccInterface uint16 = 0x0200
	AccModule    uint16 = 0x8000
)

// Constant is one constant pool entry. Which fields are meaningful depends on Tag:
//
//	Utf8                       Value
//	Integer, Float             Raw (4 bytes)
//	Long, Double               Raw (8 bytes)
//	Class, String, MethodType,
//	Module, Package            Index1
//	Field/Method/IfaceMethodref Index1 = class, Index2 = name and type
//	NameAndType                Index1 = name, Index2 = descriptor
//	MethodHandle               Kind, Index1 = reference
//	Dynamic, InvokeDynamic     Index1 = bootstrap method, Index2 = name and type
type Constant struct {
	Tag    uint8
	Value  string
	Raw    []byte
	Index1 uint16
	Index2 uint16
	Kind   uint8
}

// ConstantPool holds entries at indexes 1..Len()-1. Index 0 and the slot
// after every Long/Double are nil.
type ConstantPool struct {
	entries []*Constant
}

// NewConstantPool creates an empty pool
func NewConstantPool() *ConstantPool {
	return &ConstantPool{entries: []*Constant{nil}}
}

// Len returns the constant_pool_count value: one past the highest index
func (p *ConstantPool) Len() int { return len(p.entries) }

// Get returns the entry at idx, or nil for an unusable index
func (p *ConstantPool) Get(idx uint16) *Constant {
	if int(idx) >= len(p.entries) {
		return nil
	}
	return p.entries[idx]
}

// Entries returns the raw entry slice, indexed by constant pool index
func (p *ConstantPool) Entries() []*Constant { return p.entries }

func (p *ConstantPool) expect(idx uint16, tag uint8) (*Constant, error) {
	c := p.Get(idx)
	if c == nil {
		return nil, fmt.Errorf("constant pool index %d out of range", idx)
	}
	if c.Tag != tag {
		return nil, fmt.Errorf("constant pool index %d has tag %d, expected %d", idx, c.Tag, tag)
	}
	return c, nil
}

// Utf8 returns the string at a Utf8 index
func (p *ConstantPool) Utf8(idx uint16) (string, error) {
	c, err := p.expect(idx, TagUtf8)
	if err != nil {
		return "", err
	}
	return c.Value, nil
}

// ClassName returns the internal name of a Class entry
func (p *ConstantPool) ClassName(idx uint16) (string, error) {
	c, err := p.expect(idx, TagClass)
	if err != nil {
		return "", err
	}
	return p.Utf8(c.Index1)
}

// NameAndType returns the name and descriptor of a NameAndType entry
func (p *ConstantPool) NameAndType(idx uint16) (string, string, error) {
	c, err := p.expect(idx, TagNameAndType)
	if err != nil {
		return "", "", err
	}
	name, err := p.Utf8(c.Index1)
	if err != nil {
		return "", "", err
	}
	desc, err := p.Utf8(c.Index2)
	if err != nil {
		return "", "", err
	}
	return name, desc, nil
}

// MemberRef returns owner, name and descriptor of a Field/Method/InterfaceMethod ref
func (p *ConstantPool) MemberRef(idx uint16) (owner, name, desc string, err error) {
	c := p.Get(idx)
	if c == nil || (c.Tag != TagFieldref && c.Tag != TagMethodref && c.Tag != TagInterfaceMethodref) {
		return "", "", "", fmt.Errorf("constant pool index %d is not a member reference", idx)
	}
	if owner, err = p.ClassName(c.Index1); err != nil {
		return "", "", "", err
	}
	name, desc, err = p.NameAndType(c.Index2)
	return owner, name, desc, err
}

// add appends an entry and returns its index
func (p *ConstantPool) add(c *Constant) (uint16, error) {
	width := 1
	if c.Tag == TagLong || c.Tag == TagDouble {
		width = 2
	}
	if len(p.entries)+width > math.MaxUint16 {
		return 0, fmt.Errorf("constant pool overflow: more than %d entries", math.MaxUint16-1)
	}
	idx := uint16(len(p.entries))
	p.entries = append(p.entries, c)
	if width == 2 {
		p.entries = append(p.entries, nil)
	}
	return idx, nil
}

// AddUtf8 appends a new Utf8 entry, never reusing an existing one
func (p *ConstantPool) AddUtf8(s string) (uint16, error) {
	return p.add(&Constant{Tag: TagUtf8, Value: s})
}

// AddNameAndType appends a new NameAndType entry
func (p *ConstantPool) AddNameAndType(nameIdx, descIdx uint16) (uint16, error) {
	return p.add(&Constant{Tag: TagNameAndType, Index1: nameIdx, Index2: descIdx})
}

// AddClass appends a new Class entry
func (p *ConstantPool) AddClass(nameIdx uint16) (uint16, error) {
	return p.add(&Constant{Tag: TagClass, Index1: nameIdx})
}

// decodeMUTF8 decodes the JVM's modified UTF-8
func decodeMUTF8(b []byte) (string, error) {
	ascii := true
	for _, c := range b {
		if c == 0 || c >= 0x80 {
			ascii = false
			break
		}
	}
	if ascii {
		return string(b), nil
	}

	units := make([]uint16, 0, len(b))
	for i := 0; i < len(b); {
		c := b[i]
		switch {
		case c == 0:
			return "", fmt.Errorf("NUL byte in modified UTF-8")
		case c < 0x80:
			units = append(units, uint16(c))
			i++
		case c&0xE0 == 0xC0:
			if i+1 >= len(b) || b[i+1]&0xC0 != 0x80 {
				return "", fmt.Errorf("truncated 2-byte sequence")
			}
			units = append(units, uint16(c&0x1F)<<6|uint16(b[i+1]&0x3F))
			i += 2
		case c&0xF0 == 0xE0:
			if i+2 >= len(b) || b[i+1]&0xC0 != 0x80 || b[i+2]&0xC0 != 0x80 {
				return "", fmt.Errorf("truncated 3-byte sequence")
			}
			units = append(units, uint16(c&0x0F)<<12|uint16(b[i+1]&0x3F)<<6|uint16(b[i+2]&0x3F))
			i += 3
		default:
			return "", fmt.Errorf("invalid modified UTF-8 byte 0x%02x", c)
		}
	}
	return string(utf16.Decode(units)), nil
}

// encodeMUTF8 encodes s as modified UTF-8
func encodeMUTF8(s string) []byte {
	ascii := true
	for i := 0; i < len(s); i++ {
		if s[i] == 0 || s[i] >= 0x80 {
			ascii = false
			break
		}
	}
	if ascii {
		return []byte(s)
	}

	out := make([]byte, 0, len(s)+8)
	for _, r := range s {
		if r == utf8.RuneError {
			r = 0xFFFD
		}
		var units []uint16
		if r >= 0x10000 {
			hi, lo := utf16.EncodeRune(r)
			units = []uint16{uint16(hi), uint16(lo)}
		} else {
			units = []uint16{uint16(r)}
		}
		for _, u := range units {
			switch {
			case u != 0 && u < 0x80:
				out = append(out, byte(u))
			case u < 0x800:
				out = append(out, 0xC0|byte(u>>6), 0x80|byte(u&0x3F))
			default:
				out = append(out, 0xE0|byte(u>>12), 0x80|byte(u>>6&0x3F), 0x80|byte(u&0x3F))
			}
		}
	}
	return out
}
