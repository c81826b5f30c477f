package mapping

import (
	"fmt"

	"github.com/standardbeagle/jremap/internal/descriptor"
)

// SwitchSource re-keys a tree by one of its destination namespaces. The old
// source namespace takes the switched namespace's destination slot, so a
// named -> [official] tree becomes official -> [named]. Elements without a
// name in the new source namespace keep their old source name. The input tree
// is not modified.
func SwitchSource(tree *Tree, ns string) (*Tree, error) {
	if ns == tree.ns.Src {
		return tree, nil
	}
	target, ok := tree.ns.Index(ns)
	if !ok {
		return nil, fmt.Errorf("cannot switch source: namespace %q not present in tree (%s)", ns, tree.ns)
	}

	dst := tree.DstNamespaces()
	dst[target] = tree.ns.Src
	out, err := NewTreeWithNamespaces(ns, dst...)
	if err != nil {
		return nil, err
	}

	// swap moves the old source name into the target slot
	swap := func(src string, old []string) (string, []string) {
		names := append([]string(nil), old...)
		newSrc := names[target]
		if newSrc == "" {
			newSrc = src
		}
		names[target] = src
		return newSrc, names
	}

	mapper := tree.ClassMapper(SourceIndex, target)
	for _, c := range tree.classes {
		srcName, dstNames := swap(c.SrcName, c.DstNames)
		if existing := out.Class(srcName); existing != nil {
			return nil, fmt.Errorf("cannot switch source to %s: classes %s and %s both map to %s",
				ns, existing.Name(target), c.SrcName, srcName)
		}
		if err := out.VisitClass(srcName, dstNames); err != nil {
			return nil, err
		}
		out.curTarget.setComment(c.Comment)

		for _, f := range c.fields {
			desc, err := mapDesc(f.SrcDesc, mapper)
			if err != nil {
				return nil, fmt.Errorf("field %s.%s: %w", c.SrcName, f.SrcName, err)
			}
			name, fdst := swap(f.SrcName, f.DstNames)
			if err := out.VisitField(name, desc, fdst); err != nil {
				return nil, err
			}
			out.curTarget.setComment(f.Comment)
		}
		for _, m := range c.methods {
			desc, err := mapDesc(m.SrcDesc, mapper)
			if err != nil {
				return nil, fmt.Errorf("method %s.%s: %w", c.SrcName, m.SrcName, err)
			}
			name, mdst := swap(m.SrcName, m.DstNames)
			if err := out.VisitMethod(name, desc, mdst); err != nil {
				return nil, err
			}
			out.curTarget.setComment(m.Comment)
			for _, a := range m.args {
				name, adst := swap(a.SrcName, a.DstNames)
				if err := out.VisitMethodArg(a.ArgPosition, a.LvIndex, name, adst); err != nil {
					return nil, err
				}
				out.curTarget.setComment(a.Comment)
			}
		}
	}
	if err := out.VisitEnd(); err != nil {
		return nil, err
	}
	return out, nil
}

func mapDesc(desc string, mapper descriptor.ClassMapper) (string, error) {
	if desc == "" {
		return "", nil
	}
	return descriptor.MapDescriptor(desc, mapper)
}
