package descriptor

import (
	"strings"
)

// MapSignature rewrites the class references of a generic signature
// (class, method or field form, JVMS 4.7.9.1). Inner class suffixes
// (Outer<T>.Inner) are rewritten through the mapped Outer$Inner name.
func MapSignature(sig string, mapper ClassMapper) (string, error) {
	if sig == "" {
		return "", nil
	}
	p := &sigParser{parser: parser{src: sig, mapper: mapper}}
	p.out.Grow(len(sig) + 16)

	if p.peek() == '<' {
		if err := p.typeParameters(); err != nil {
			return "", err
		}
	}

	if p.peek() == '(' {
		if err := p.methodSignature(); err != nil {
			return "", err
		}
	} else {
		// Class signature: superclass followed by interfaces, or a lone field signature
		for p.pos < len(sig) {
			if err := p.referenceType(); err != nil {
				return "", err
			}
		}
	}
	if p.pos != len(sig) {
		return "", p.fail("trailing characters")
	}
	return p.out.String(), nil
}

type sigParser struct {
	parser
}

func (p *sigParser) peek() byte {
	if p.pos >= len(p.src) {
		return 0
	}
	return p.src[p.pos]
}

func (p *sigParser) expect(c byte) error {
	if p.peek() != c {
		return p.fail("expected " + string(c))
	}
	p.out.WriteByte(c)
	p.pos++
	return nil
}

func (p *sigParser) identifier(stops string) (string, error) {
	start := p.pos
	for p.pos < len(p.src) && !strings.ContainsRune(stops, rune(p.src[p.pos])) {
		p.pos++
	}
	if p.pos == start {
		return "", p.fail("empty identifier")
	}
	return p.src[start:p.pos], nil
}

func (p *sigParser) typeParameters() error {
	if err := p.expect('<'); err != nil {
		return err
	}
	for p.peek() != '>' {
		if p.pos >= len(p.src) {
			return p.fail("unterminated type parameters")
		}
		name, err := p.identifier(":>")
		if err != nil {
			return err
		}
		p.out.WriteString(name)
		// Class bound may be empty (interface-only bounds: T::Ljava/lang/Comparable;)
		if err := p.expect(':'); err != nil {
			return err
		}
		if c := p.peek(); c != ':' && c != '>' {
			if err := p.referenceType(); err != nil {
				return err
			}
		}
		for p.peek() == ':' {
			p.out.WriteByte(':')
			p.pos++
			if err := p.referenceType(); err != nil {
				return err
			}
		}
	}
	return p.expect('>')
}

func (p *sigParser) methodSignature() error {
	if err := p.expect('('); err != nil {
		return err
	}
	for p.peek() != ')' {
		if p.pos >= len(p.src) {
			return p.fail("missing ')'")
		}
		if err := p.javaType(); err != nil {
			return err
		}
	}
	p.out.WriteByte(')')
	p.pos++
	if p.peek() == 'V' {
		p.out.WriteByte('V')
		p.pos++
	} else if err := p.javaType(); err != nil {
		return err
	}
	for p.peek() == '^' {
		p.out.WriteByte('^')
		p.pos++
		if err := p.referenceType(); err != nil {
			return err
		}
	}
	return nil
}

func (p *sigParser) javaType() error {
	switch c := p.peek(); c {
	case 'B', 'C', 'D', 'F', 'I', 'J', 'S', 'Z':
		p.out.WriteByte(c)
		p.pos++
		return nil
	default:
		return p.referenceType()
	}
}

func (p *sigParser) referenceType() error {
	switch p.peek() {
	case 'L':
		return p.classType()
	case 'T':
		p.out.WriteByte('T')
		p.pos++
		name, err := p.identifier(";")
		if err != nil {
			return err
		}
		p.out.WriteString(name)
		return p.expect(';')
	case '[':
		p.out.WriteByte('[')
		p.pos++
		return p.javaType()
	case 0:
		return p.fail("unexpected end of signature")
	default:
		return p.fail("unexpected character " + string(p.peek()))
	}
}

func (p *sigParser) classType() error {
	p.out.WriteByte('L')
	p.pos++

	name, err := p.identifier("<.;")
	if err != nil {
		return err
	}
	if !validInternalName(name) {
		return p.fail("invalid class name " + name)
	}
	mapped := p.mapName(name)
	p.out.WriteString(mapped)

	for {
		if p.peek() == '<' {
			if err := p.typeArguments(); err != nil {
				return err
			}
		}
		if p.peek() != '.' {
			break
		}
		p.pos++
		inner, err := p.identifier("<.;")
		if err != nil {
			return err
		}
		name = name + "$" + inner
		mappedInner := p.mapName(name)
		simple := innerSimpleName(mapped, mappedInner, inner)
		mapped = mappedInner
		p.out.WriteByte('.')
		p.out.WriteString(simple)
	}
	return p.expect(';')
}

func (p *sigParser) typeArguments() error {
	if err := p.expect('<'); err != nil {
		return err
	}
	for p.peek() != '>' {
		switch p.peek() {
		case 0:
			return p.fail("unterminated type arguments")
		case '*':
			p.out.WriteByte('*')
			p.pos++
		case '+', '-':
			p.out.WriteByte(p.peek())
			p.pos++
			if err := p.referenceType(); err != nil {
				return err
			}
		default:
			if err := p.referenceType(); err != nil {
				return err
			}
		}
	}
	return p.expect('>')
}

// innerSimpleName derives the simple name written after '.' in a signature
func innerSimpleName(mappedOuter, mappedInner, original string) string {
	if mappedInner == "" {
		return original
	}
	if strings.HasPrefix(mappedInner, mappedOuter+"$") {
		return mappedInner[len(mappedOuter)+1:]
	}
	if i := strings.LastIndexByte(mappedInner, '$'); i >= 0 {
		return mappedInner[i+1:]
	}
	if i := strings.LastIndexByte(mappedInner, '/'); i >= 0 {
		return mappedInner[i+1:]
	}
	return mappedInner
}
