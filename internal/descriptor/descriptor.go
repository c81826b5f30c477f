// Package descriptor parses and rewrites JVM field/method descriptors and
// generic signatures. Every rewrite is strict: malformed input is an error,
// never a partially rewritten string.
package descriptor

import (
	"strings"

	jerrors "github.com/standardbeagle/jremap/internal/errors"
)

// ClassMapper maps an internal class name (a/b/C) to its new internal name.
// Unmapped names are returned unchanged.
type ClassMapper func(internalName string) string

// Identity is a ClassMapper that renames nothing
func Identity(name string) string { return name }

// MapDescriptor rewrites every class reference of a field or method descriptor.
func MapDescriptor(desc string, mapper ClassMapper) (string, error) {
	if desc == "" {
		return "", nil
	}
	p := &parser{src: desc, mapper: mapper}
	p.out.Grow(len(desc) + 16)
	if desc[0] == '(' {
		if err := p.methodDescriptor(); err != nil {
			return "", err
		}
	} else if err := p.fieldDescriptor(); err != nil {
		return "", err
	}
	if p.pos != len(desc) {
		return "", p.fail("trailing characters")
	}
	return p.out.String(), nil
}

// MustMapDescriptor is MapDescriptor for descriptors already known to be valid
func MustMapDescriptor(desc string, mapper ClassMapper) string {
	out, err := MapDescriptor(desc, mapper)
	if err != nil {
		panic(err)
	}
	return out
}

// Validate reports whether desc is a well-formed field or method descriptor
func Validate(desc string) error {
	if desc == "" {
		return jerrors.NewDescriptorError(desc, 0, "empty descriptor")
	}
	_, err := MapDescriptor(desc, nil)
	return err
}

// IsMethod reports whether desc is a method descriptor
func IsMethod(desc string) bool {
	return strings.HasPrefix(desc, "(")
}

// MethodArgs splits a method descriptor into parameter and return descriptors
func MethodArgs(desc string) (params []string, ret string, err error) {
	if !IsMethod(desc) {
		return nil, "", jerrors.NewDescriptorError(desc, 0, "not a method descriptor")
	}
	p := &parser{src: desc}
	p.pos = 1
	for p.pos < len(desc) && desc[p.pos] != ')' {
		start := p.pos
		if err := p.fieldDescriptor(); err != nil {
			return nil, "", err
		}
		params = append(params, desc[start:p.pos])
	}
	if p.pos >= len(desc) {
		return nil, "", p.fail("missing ')'")
	}
	p.pos++
	start := p.pos
	if p.pos < len(desc) && desc[p.pos] == 'V' {
		p.pos++
	} else if err := p.fieldDescriptor(); err != nil {
		return nil, "", err
	}
	if p.pos != len(desc) {
		return nil, "", p.fail("trailing characters")
	}
	return params, desc[start:], nil
}

// ArgSlots returns the local variable slot of each parameter of a method
// descriptor. Instance methods reserve slot 0 for the receiver; long and
// double occupy two slots.
func ArgSlots(desc string, static bool) ([]int, error) {
	params, _, err := MethodArgs(desc)
	if err != nil {
		return nil, err
	}
	slots := make([]int, len(params))
	next := 1
	if static {
		next = 0
	}
	for i, param := range params {
		slots[i] = next
		if param == "J" || param == "D" {
			next += 2
		} else {
			next++
		}
	}
	return slots, nil
}

// ClassNames lists the internal class names referenced by a descriptor, in order
func ClassNames(desc string) ([]string, error) {
	var names []string
	_, err := MapDescriptor(desc, func(name string) string {
		names = append(names, name)
		return name
	})
	return names, err
}

type parser struct {
	src    string
	pos    int
	out    strings.Builder
	mapper ClassMapper
}

func (p *parser) fail(reason string) error {
	return jerrors.NewDescriptorError(p.src, p.pos, reason)
}

func (p *parser) mapName(name string) string {
	if p.mapper == nil {
		return name
	}
	return p.mapper(name)
}

func (p *parser) methodDescriptor() error {
	p.out.WriteByte('(')
	p.pos++
	for {
		if p.pos >= len(p.src) {
			return p.fail("missing ')'")
		}
		if p.src[p.pos] == ')' {
			break
		}
		if err := p.fieldDescriptor(); err != nil {
			return err
		}
	}
	p.out.WriteByte(')')
	p.pos++
	if p.pos < len(p.src) && p.src[p.pos] == 'V' {
		p.out.WriteByte('V')
		p.pos++
		return nil
	}
	return p.fieldDescriptor()
}

func (p *parser) fieldDescriptor() error {
	if p.pos >= len(p.src) {
		return p.fail("unexpected end of descriptor")
	}
	c := p.src[p.pos]
	switch c {
	case 'B', 'C', 'D', 'F', 'I', 'J', 'S', 'Z':
		p.out.WriteByte(c)
		p.pos++
		return nil
	case '[':
		dims := 0
		for p.pos < len(p.src) && p.src[p.pos] == '[' {
			p.out.WriteByte('[')
			p.pos++
			dims++
		}
		if dims > 255 {
			return p.fail("array has more than 255 dimensions")
		}
		return p.fieldDescriptor()
	case 'L':
		end := strings.IndexByte(p.src[p.pos:], ';')
		if end < 0 {
			return p.fail("unterminated class name")
		}
		name := p.src[p.pos+1 : p.pos+end]
		if !validInternalName(name) {
			return p.fail("invalid class name " + name)
		}
		p.out.WriteByte('L')
		p.out.WriteString(p.mapName(name))
		p.out.WriteByte(';')
		p.pos += end + 1
		return nil
	default:
		return p.fail("unexpected character " + string(c))
	}
}

func validInternalName(name string) bool {
	if name == "" {
		return false
	}
	for i := 0; i < len(name); i++ {
		switch name[i] {
		case '.', ';', '[', '<', '>':
			return false
		case '/':
			if i == 0 || i == len(name)-1 || name[i-1] == '/' {
				return false
			}
		}
	}
	return true
}
