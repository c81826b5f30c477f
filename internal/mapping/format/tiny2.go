package format

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/standardbeagle/jremap/internal/descriptor"
	"github.com/standardbeagle/jremap/internal/mapping"
)

const tiny2EscapedNames = "escaped-names"

// readTiny2 parses the tab-separated tiny v2 format:
//
//	tiny	2	0	official	intermediary	named
//	c	a	class_1	net/example/Foo
//		f	I	b	field_1	count
//		m	()V	c	method_1	run
//			p	1		value
//			c	A comment.
func readTiny2(r io.Reader, v mapping.Visitor, o Options) error {
	lr := newLineReader(r, o.Path)
	if !lr.next() {
		if err := lr.err(); err != nil {
			return err
		}
		return lr.errorf("empty tiny file")
	}
	header := strings.Split(lr.text, "\t")
	if len(header) < 4 || header[0] != "tiny" || header[1] != "2" {
		return lr.errorf("not a tiny v2 header: %q", lr.text)
	}
	if header[2] != "0" {
		return lr.errorf("unsupported tiny v2 minor version %s", header[2])
	}
	src, dst := header[3], header[4:]
	if err := v.VisitNamespaces(src, dst); err != nil {
		return lr.wrap(err)
	}
	nsCount := len(dst)

	escaped := false
	inHeader := true
	// kind of the last element visited, for validating nesting and comments
	var ownerKind string

	for lr.next() {
		if lr.text == "" {
			continue
		}
		depth := indent(lr.text)
		parts := strings.Split(lr.text[depth:], "\t")

		if inHeader {
			if depth == 1 {
				if (parts[0] == "f" || parts[0] == "m") && len(parts) >= 3 {
					return lr.errorf("member outside a class")
				}
				if parts[0] == tiny2EscapedNames {
					escaped = true
				}
				continue
			}
			inHeader = false
		}

		unescape := func(s string) (string, error) {
			if !escaped {
				return s, nil
			}
			return unescapeTiny(s)
		}
		names := func(from []string) ([]string, error) {
			out := make([]string, nsCount)
			for i := 0; i < nsCount && i < len(from); i++ {
				n, err := unescape(from[i])
				if err != nil {
					return nil, err
				}
				out[i] = n
			}
			return out, nil
		}

		var err error
		switch {
		case depth == 0 && parts[0] == "c":
			if len(parts) < 2 {
				return lr.errorf("class line needs a source name")
			}
			var dstNames []string
			if dstNames, err = names(parts[2:]); err == nil {
				var srcName string
				if srcName, err = unescape(parts[1]); err == nil {
					err = v.VisitClass(srcName, dstNames)
				}
			}
			ownerKind = "class"

		case depth == 1 && (parts[0] == "f" || parts[0] == "m"):
			if ownerKind == "" {
				return lr.errorf("member outside a class")
			}
			if len(parts) < 3 {
				return lr.errorf("member line needs a descriptor and a source name")
			}
			var desc, srcName string
			var dstNames []string
			if desc, err = unescape(parts[1]); err != nil {
				break
			}
			if srcName, err = unescape(parts[2]); err != nil {
				break
			}
			if dstNames, err = names(parts[3:]); err != nil {
				break
			}
			if parts[0] == "f" {
				err = v.VisitField(srcName, desc, dstNames)
				ownerKind = "field"
			} else {
				err = v.VisitMethod(srcName, desc, dstNames)
				ownerKind = "method"
			}

		case depth == 2 && parts[0] == "p":
			if ownerKind != "method" && ownerKind != "arg" && ownerKind != "var" {
				return lr.errorf("parameter outside a method")
			}
			if len(parts) < 2 {
				return lr.errorf("parameter line needs a local variable index")
			}
			lvIndex, convErr := strconv.Atoi(parts[1])
			if convErr != nil {
				return lr.errorf("bad parameter index %q", parts[1])
			}
			var srcName string
			var dstNames []string
			if len(parts) > 2 {
				if srcName, err = unescape(parts[2]); err != nil {
					break
				}
			}
			if len(parts) > 3 {
				if dstNames, err = names(parts[3:]); err != nil {
					break
				}
			}
			err = v.VisitMethodArg(-1, lvIndex, srcName, dstNames)
			ownerKind = "arg"

		case depth == 2 && parts[0] == "v":
			ownerKind = "var"
			continue

		case parts[0] == "c" && depth > 0:
			if len(parts) < 2 || ownerKind == "var" {
				continue
			}
			var comment string
			if comment, err = unescapeTiny(parts[1]); err == nil {
				err = v.VisitComment(comment)
			}

		default:
			// unknown sections are skipped
			continue
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

func unescapeTiny(s string) (string, error) {
	if !strings.Contains(s, `\`) {
		return s, nil
	}
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' {
			sb.WriteByte(c)
			continue
		}
		i++
		if i >= len(s) {
			return "", fmt.Errorf("dangling escape in %q", s)
		}
		switch s[i] {
		case '\\':
			sb.WriteByte('\\')
		case 'n':
			sb.WriteByte('\n')
		case 'r':
			sb.WriteByte('\r')
		case 't':
			sb.WriteByte('\t')
		case '0':
			sb.WriteByte(0)
		default:
			return "", fmt.Errorf("unknown escape \\%c in %q", s[i], s)
		}
	}
	return sb.String(), nil
}

var tinyEscaper = strings.NewReplacer(`\`, `\\`, "\n", `\n`, "\r", `\r`, "\t", `\t`, "\x00", `\0`)

// Tiny2Writer writes a tree as tiny v2 with the escaped-names property set
type Tiny2Writer struct {
	w       *bufio.Writer
	nsCount int
	depth   int
	desc    string
	err     error
}

// NewTiny2Writer creates a writer; call Flush after VisitEnd
func NewTiny2Writer(w io.Writer) *Tiny2Writer {
	return &Tiny2Writer{w: bufio.NewWriter(w)}
}

func (tw *Tiny2Writer) printf(format string, args ...any) error {
	if tw.err != nil {
		return tw.err
	}
	_, tw.err = fmt.Fprintf(tw.w, format, args...)
	return tw.err
}

func (tw *Tiny2Writer) names(dst []string) string {
	out := make([]string, tw.nsCount)
	copy(out, dst)
	for i, n := range out {
		out[i] = tinyEscaper.Replace(n)
	}
	return strings.Join(out, "\t")
}

func (tw *Tiny2Writer) VisitNamespaces(src string, dst []string) error {
	tw.nsCount = len(dst)
	return tw.printf("tiny\t2\t0\t%s\t%s\n\t%s\n", src, strings.Join(dst, "\t"), tiny2EscapedNames)
}

func (tw *Tiny2Writer) VisitClass(src string, dst []string) error {
	tw.depth = 1
	return tw.printf("c\t%s\t%s\n", tinyEscaper.Replace(src), tw.names(dst))
}

func (tw *Tiny2Writer) VisitField(src, desc string, dst []string) error {
	tw.depth = 2
	return tw.printf("\tf\t%s\t%s\t%s\n", tinyEscaper.Replace(desc), tinyEscaper.Replace(src), tw.names(dst))
}

func (tw *Tiny2Writer) VisitMethod(src, desc string, dst []string) error {
	tw.depth = 2
	tw.desc = desc
	return tw.printf("\tm\t%s\t%s\t%s\n", tinyEscaper.Replace(desc), tinyEscaper.Replace(src), tw.names(dst))
}

func (tw *Tiny2Writer) VisitMethodArg(position, lvIndex int, src string, dst []string) error {
	if lvIndex < 0 {
		// tiny v2 keys parameters by slot; assume an instance method
		slots, err := descriptor.ArgSlots(tw.desc, false)
		if err != nil || position < 0 || position >= len(slots) {
			tw.depth = 4
			return nil
		}
		lvIndex = slots[position]
	}
	tw.depth = 3
	return tw.printf("\t\tp\t%d\t%s\t%s\n", lvIndex, tinyEscaper.Replace(src), tw.names(dst))
}

func (tw *Tiny2Writer) VisitComment(comment string) error {
	if tw.depth > 3 {
		return nil
	}
	return tw.printf("%sc\t%s\n", strings.Repeat("\t", tw.depth), tinyEscaper.Replace(comment))
}

func (tw *Tiny2Writer) VisitEnd() error { return tw.err }

// Flush writes buffered output
func (tw *Tiny2Writer) Flush() error {
	if tw.err != nil {
		return tw.err
	}
	return tw.w.Flush()
}
