package format

import (
	"fmt"
	"io"
	"strings"

	"github.com/standardbeagle/jremap/internal/descriptor"
	"github.com/standardbeagle/jremap/internal/mapping"
)

// readProGuard parses a ProGuard/R8 mapping file. Its left-hand side holds
// the readable names, so the tree is keyed by the readable namespace; use
// mapping.SwitchSource to key it by the obfuscated one.
//
//	net.example.Foo -> a:
//	    int count -> b
//	    1:3:void run(net.example.Foo,int[]):10:12 -> c
func readProGuard(r io.Reader, v mapping.Visitor, o Options) error {
	lr := newLineReader(r, o.Path)
	if err := v.VisitNamespaces(o.SrcNamespace, []string{o.DstNamespace}); err != nil {
		return lr.wrap(err)
	}

	inClass := false
	for lr.next() {
		trimmed := strings.TrimSpace(lr.text)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		left, right, ok := strings.Cut(trimmed, " -> ")
		if !ok {
			return lr.errorf("expected \"->\" in %q", trimmed)
		}

		var err error
		if lr.text[0] != ' ' && lr.text[0] != '\t' {
			if !strings.HasSuffix(right, ":") {
				return lr.errorf("class line must end with ':'")
			}
			obf := strings.TrimSuffix(right, ":")
			err = v.VisitClass(descriptor.ToInternal(left), []string{descriptor.ToInternal(obf)})
			inClass = true
		} else {
			if !inClass {
				return lr.errorf("member outside a class")
			}
			err = visitProGuardMember(v, left, right)
		}
		if err != nil {
			return lr.wrap(err)
		}
	}
	if err := lr.err(); err != nil {
		return err
	}
	return v.VisitEnd()
}

func visitProGuardMember(v mapping.Visitor, left, obf string) error {
	left = stripLineNumbers(left)
	typ, rest, ok := strings.Cut(left, " ")
	if !ok {
		return fmt.Errorf("member %q has no type", left)
	}
	retDesc, err := javaTypeToDescriptor(typ)
	if err != nil {
		return err
	}

	open := strings.IndexByte(rest, '(')
	if open < 0 {
		return v.VisitField(rest, retDesc, []string{obf})
	}
	end := strings.IndexByte(rest, ')')
	if end < open {
		return fmt.Errorf("unbalanced parameter list in %q", rest)
	}
	name := rest[:open]
	if strings.Contains(name, ".") {
		// inlined from another class; the owner declares it
		return nil
	}

	var sb strings.Builder
	sb.WriteByte('(')
	if args := rest[open+1 : end]; args != "" {
		for _, arg := range strings.Split(args, ",") {
			d, err := javaTypeToDescriptor(strings.TrimSpace(arg))
			if err != nil {
				return err
			}
			sb.WriteString(d)
		}
	}
	sb.WriteByte(')')
	sb.WriteString(retDesc)
	return v.VisitMethod(name, sb.String(), []string{obf})
}

// stripLineNumbers drops the "1:3:" prefix of a method line
func stripLineNumbers(s string) string {
	for i := 0; i < 2; i++ {
		colon := strings.IndexByte(s, ':')
		if colon <= 0 || !isDigits(s[:colon]) {
			break
		}
		s = s[colon+1:]
	}
	return s
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return s != ""
}

var primitiveDescriptors = map[string]string{
	"void":    "V",
	"boolean": "Z",
	"byte":    "B",
	"char":    "C",
	"short":   "S",
	"int":     "I",
	"long":    "J",
	"float":   "F",
	"double":  "D",
}

// javaTypeToDescriptor converts a source-level type (int[], a.b.C) to a descriptor
func javaTypeToDescriptor(typ string) (string, error) {
	dims := 0
	for strings.HasSuffix(typ, "[]") {
		dims++
		typ = strings.TrimSuffix(typ, "[]")
	}
	if typ == "" {
		return "", fmt.Errorf("empty type")
	}
	prefix := strings.Repeat("[", dims)
	if d, ok := primitiveDescriptors[typ]; ok {
		if d == "V" && dims > 0 {
			return "", fmt.Errorf("array of void")
		}
		return prefix + d, nil
	}
	return prefix + "L" + descriptor.ToInternal(typ) + ";", nil
}
