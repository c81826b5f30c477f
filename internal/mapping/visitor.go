package mapping

import (
	"errors"
	"fmt"
)

// Visitor is the contract between mapping sources and sinks. Readers drive a
// Visitor; Tree implements it for construction and replays itself into one
// through Accept.
//
// Call order: VisitNamespaces once, then for each class VisitClass followed by
// its members; VisitMethodArg follows its method. VisitComment attaches to the
// element visited last. VisitEnd closes the stream.
type Visitor interface {
	VisitNamespaces(src string, dst []string) error
	VisitClass(src string, dst []string) error
	VisitField(src, desc string, dst []string) error
	VisitMethod(src, desc string, dst []string) error
	VisitMethodArg(position, lvIndex int, src string, dst []string) error
	VisitComment(comment string) error
	VisitEnd() error
}

var errNoClass = errors.New("member visited before any class")

// VisitNamespaces fixes the namespace layout
func (t *Tree) VisitNamespaces(src string, dst []string) error {
	return t.SetNamespaces(src, dst...)
}

// VisitClass adds or updates a class
func (t *Tree) VisitClass(src string, dst []string) error {
	if !t.nsFrozen {
		return errors.New("class visited before namespaces")
	}
	c := t.AddClass(src)
	c.mergeDst(dst)
	t.curClass = c
	t.curMethod = nil
	t.curTarget = c
	return nil
}

// VisitField adds or updates a field of the current class
func (t *Tree) VisitField(src, desc string, dst []string) error {
	if t.curClass == nil {
		return errNoClass
	}
	f := t.curClass.AddField(src, desc)
	f.mergeDst(dst)
	t.curMethod = nil
	t.curTarget = f
	return nil
}

// VisitMethod adds or updates a method of the current class
func (t *Tree) VisitMethod(src, desc string, dst []string) error {
	if t.curClass == nil {
		return errNoClass
	}
	m := t.curClass.AddMethod(src, desc)
	m.mergeDst(dst)
	t.curMethod = m
	t.curTarget = m
	return nil
}

// VisitMethodArg adds or updates an argument of the current method
func (t *Tree) VisitMethodArg(position, lvIndex int, src string, dst []string) error {
	if t.curMethod == nil {
		return errors.New("method argument visited outside a method")
	}
	a := t.curMethod.AddArg(position, lvIndex, src)
	a.mergeDst(dst)
	t.curTarget = a
	return nil
}

// VisitComment attaches a comment to the last visited element
func (t *Tree) VisitComment(comment string) error {
	if t.curTarget == nil {
		return errors.New("comment visited before any element")
	}
	t.curTarget.setComment(comment)
	return nil
}

// VisitEnd marks the tree complete
func (t *Tree) VisitEnd() error {
	t.curClass = nil
	t.curMethod = nil
	t.curTarget = nil
	t.ended = true
	return nil
}

// Complete reports whether VisitEnd has been called
func (t *Tree) Complete() bool {
	return t.ended
}

// Accept replays the tree into a visitor in insertion order
func (t *Tree) Accept(v Visitor) error {
	if err := v.VisitNamespaces(t.ns.Src, t.DstNamespaces()); err != nil {
		return err
	}
	for _, c := range t.classes {
		if err := v.VisitClass(c.SrcName, copyNames(c.DstNames)); err != nil {
			return fmt.Errorf("class %s: %w", c.SrcName, err)
		}
		if err := visitComment(v, c.Comment); err != nil {
			return err
		}
		for _, f := range c.fields {
			if err := v.VisitField(f.SrcName, f.SrcDesc, copyNames(f.DstNames)); err != nil {
				return fmt.Errorf("field %s.%s: %w", c.SrcName, f.SrcName, err)
			}
			if err := visitComment(v, f.Comment); err != nil {
				return err
			}
		}
		for _, m := range c.methods {
			if err := v.VisitMethod(m.SrcName, m.SrcDesc, copyNames(m.DstNames)); err != nil {
				return fmt.Errorf("method %s.%s%s: %w", c.SrcName, m.SrcName, m.SrcDesc, err)
			}
			if err := visitComment(v, m.Comment); err != nil {
				return err
			}
			for _, a := range m.args {
				if err := v.VisitMethodArg(a.ArgPosition, a.LvIndex, a.SrcName, copyNames(a.DstNames)); err != nil {
					return err
				}
				if err := visitComment(v, a.Comment); err != nil {
					return err
				}
			}
		}
	}
	return v.VisitEnd()
}

func visitComment(v Visitor, comment string) error {
	if comment == "" {
		return nil
	}
	return v.VisitComment(comment)
}

func copyNames(n []string) []string {
	return append([]string(nil), n...)
}
