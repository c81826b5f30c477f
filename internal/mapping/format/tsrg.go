package format

import (
	"bufio"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/standardbeagle/jremap/internal/descriptor"
	"github.com/standardbeagle/jremap/internal/mapping"
)

// readTSRG parses TSRG v1 (two columns, headerless) and TSRG v2 (header line
// naming every namespace, optional field descriptors, parameters and static
// markers).
func readTSRG(r io.Reader, f Format, v mapping.Visitor, o Options) error {
	lr := newLineReader(r, o.Path)

	nsCount := 1
	if f == TSRG2 {
		if !lr.next() {
			if err := lr.err(); err != nil {
				return err
			}
			return lr.errorf("empty tsrg2 file")
		}
		header := strings.Fields(lr.text)
		if len(header) < 3 || header[0] != "tsrg2" {
			return lr.errorf("not a tsrg2 header: %q", lr.text)
		}
		nsCount = len(header) - 2
		if err := v.VisitNamespaces(header[1], header[2:]); err != nil {
			return lr.wrap(err)
		}
	} else if err := v.VisitNamespaces(o.SrcNamespace, []string{o.DstNamespace}); err != nil {
		return lr.wrap(err)
	}

	var (
		inClass    bool
		methodDesc string
		inMethod   bool
		static     bool
	)

	for lr.next() {
		trimmed := strings.TrimSpace(lr.text)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		depth := indent(lr.text)
		if depth == 0 && strings.HasPrefix(lr.text, "    ") {
			// some tools indent with spaces
			depth = (len(lr.text) - len(strings.TrimLeft(lr.text, " "))) / 4
		}
		parts := strings.Fields(trimmed)

		var err error
		switch depth {
		case 0:
			if len(parts) != nsCount+1 {
				return lr.errorf("class line needs %d names, got %d", nsCount+1, len(parts))
			}
			if strings.HasSuffix(parts[0], "/") {
				// package mappings carry no symbols
				inClass = false
				continue
			}
			err = v.VisitClass(parts[0], parts[1:])
			inClass = true
			inMethod = false

		case 1:
			if !inClass {
				return lr.errorf("member outside a class")
			}
			switch {
			case len(parts) == nsCount+2 && strings.HasPrefix(parts[1], "("):
				err = v.VisitMethod(parts[0], parts[1], parts[2:])
				inMethod = true
				methodDesc = parts[1]
				static = false
			case len(parts) == nsCount+2:
				err = v.VisitField(parts[0], parts[1], parts[2:])
				inMethod = false
			case len(parts) == nsCount+1:
				err = v.VisitField(parts[0], "", parts[1:])
				inMethod = false
			default:
				return lr.errorf("member line has %d columns", len(parts))
			}

		case 2:
			if f != TSRG2 || !inMethod {
				return lr.errorf("unexpected nested line")
			}
			if len(parts) == 1 && parts[0] == "static" {
				static = true
				continue
			}
			if len(parts) != nsCount+2 {
				return lr.errorf("parameter line needs %d columns, got %d", nsCount+2, len(parts))
			}
			position, convErr := strconv.Atoi(parts[0])
			if convErr != nil {
				return lr.errorf("bad parameter index %q", parts[0])
			}
			lvIndex := -1
			if slots, slotErr := descriptor.ArgSlots(methodDesc, static); slotErr == nil && position < len(slots) {
				lvIndex = slots[position]
			}
			err = v.VisitMethodArg(position, lvIndex, parts[1], parts[2:])

		default:
			return lr.errorf("indentation too deep")
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

// TSRG2Writer writes a tree as tsrg2. Comments have no place in the format
// and are dropped; unmapped names fall back to the source name.
type TSRG2Writer struct {
	w       *bufio.Writer
	nsCount int
	desc    string
	err     error
}

// NewTSRG2Writer creates a writer; call Flush after VisitEnd
func NewTSRG2Writer(w io.Writer) *TSRG2Writer {
	return &TSRG2Writer{w: bufio.NewWriter(w)}
}

func (tw *TSRG2Writer) line(depth int, cols ...string) error {
	if tw.err != nil {
		return tw.err
	}
	_, tw.err = fmt.Fprintf(tw.w, "%s%s\n", strings.Repeat("\t", depth), strings.Join(cols, " "))
	return tw.err
}

func (tw *TSRG2Writer) names(src string, dst []string) []string {
	out := make([]string, tw.nsCount)
	for i := range out {
		if i < len(dst) && dst[i] != "" {
			out[i] = dst[i]
		} else {
			out[i] = src
		}
	}
	return out
}

func (tw *TSRG2Writer) VisitNamespaces(src string, dst []string) error {
	tw.nsCount = len(dst)
	return tw.line(0, append([]string{"tsrg2", src}, dst...)...)
}

func (tw *TSRG2Writer) VisitClass(src string, dst []string) error {
	return tw.line(0, append([]string{src}, tw.names(src, dst)...)...)
}

func (tw *TSRG2Writer) VisitField(src, desc string, dst []string) error {
	cols := []string{src}
	if desc != "" {
		cols = append(cols, desc)
	}
	return tw.line(1, append(cols, tw.names(src, dst)...)...)
}

func (tw *TSRG2Writer) VisitMethod(src, desc string, dst []string) error {
	tw.desc = desc
	return tw.line(1, append([]string{src, desc}, tw.names(src, dst)...)...)
}

func (tw *TSRG2Writer) VisitMethodArg(position, lvIndex int, src string, dst []string) error {
	if position < 0 {
		slots, err := descriptor.ArgSlots(tw.desc, false)
		if err != nil {
			return nil
		}
		if position = slices.Index(slots, lvIndex); position < 0 {
			return nil
		}
	}
	if src == "" {
		src = "o"
	}
	return tw.line(2, append([]string{strconv.Itoa(position), src}, tw.names(src, dst)...)...)
}

func (tw *TSRG2Writer) VisitComment(string) error { return nil }

func (tw *TSRG2Writer) VisitEnd() error { return tw.err }

// Flush writes buffered output
func (tw *TSRG2Writer) Flush() error {
	if tw.err != nil {
		return tw.err
	}
	return tw.w.Flush()
}
