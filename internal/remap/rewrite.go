package remap

import (
	"fmt"
	"strings"

	"github.com/standardbeagle/jremap/internal/classfile"
	"github.com/standardbeagle/jremap/internal/descriptor"
	"github.com/standardbeagle/jremap/internal/mapping"
)

const (
	lambdaFactory   = "java/lang/invoke/LambdaMetafactory"
	refInvokeStatic = 6
)

// classRewriter carries the state of one class rewrite
type classRewriter struct {
	r     *Remapper
	cf    *classfile.ClassFile
	patch *patcher

	name    string
	newName string
	strings int
}

// methodScope is what the attribute walkers know about the enclosing method
type methodScope struct {
	mapping *mapping.MethodMapping
	slots   []int
}

func (w *classRewriter) rewrite() error {
	name, err := w.cf.Name()
	if err != nil {
		return err
	}
	w.name = name
	w.newName = w.r.mapClass(name)

	if err := w.constants(); err != nil {
		return err
	}
	if err := w.invokeDynamics(); err != nil {
		return err
	}
	if err := w.attributes(w.cf.Attributes, nil); err != nil {
		return err
	}
	for _, f := range w.cf.Fields {
		if err := w.field(f); err != nil {
			return err
		}
	}
	for _, m := range w.cf.Methods {
		if err := w.method(m); err != nil {
			return err
		}
	}
	return w.patch.apply()
}

func (w *classRewriter) mapDesc(desc string) (string, error) {
	return descriptor.MapDescriptor(desc, w.r.mapClass)
}

// mapClassRef maps the name held by a Class constant, which is a
// descriptor for array types
func (w *classRewriter) mapClassRef(name string) (string, error) {
	if strings.HasPrefix(name, "[") {
		return w.mapDesc(name)
	}
	return w.r.mapClass(name), nil
}

// constants registers every pool entry that refers to a Utf8 or NameAndType.
// InvokeDynamic entries need the bootstrap table and are handled separately.
func (w *classRewriter) constants() error {
	pool := w.cf.Pool
	for i, c := range pool.Entries() {
		if c == nil {
			continue
		}
		idx := uint16(i)
		switch c.Tag {
		case classfile.TagClass:
			name, err := pool.Utf8(c.Index1)
			if err != nil {
				return err
			}
			mapped, err := w.mapClassRef(name)
			if err != nil {
				return err
			}
			w.patch.use(classfile.FieldSlot(&c.Index1), mapped)

		case classfile.TagString:
			s, err := pool.Utf8(c.Index1)
			if err != nil {
				return err
			}
			w.patch.use(classfile.FieldSlot(&c.Index1), w.literal(s))

		case classfile.TagMethodType:
			desc, err := pool.Utf8(c.Index1)
			if err != nil {
				return err
			}
			mapped, err := w.mapDesc(desc)
			if err != nil {
				return err
			}
			w.patch.use(classfile.FieldSlot(&c.Index1), mapped)

		case classfile.TagFieldref, classfile.TagMethodref, classfile.TagInterfaceMethodref:
			owner, name, desc, err := pool.MemberRef(idx)
			if err != nil {
				return err
			}
			kind := kindMethod
			if c.Tag == classfile.TagFieldref {
				kind = kindField
			}
			mapped, err := w.mapDesc(desc)
			if err != nil {
				return err
			}
			w.patch.useNAT(classfile.FieldSlot(&c.Index2), w.r.mapMember(memberRef{kind, owner, name, desc}), mapped)

		case classfile.TagDynamic:
			name, desc, err := pool.NameAndType(c.Index2)
			if err != nil {
				return err
			}
			mapped, err := w.mapDesc(desc)
			if err != nil {
				return err
			}
			w.patch.useNAT(classfile.FieldSlot(&c.Index2), name, mapped)

		case classfile.TagModule, classfile.TagPackage:
			if err := w.patch.pin(classfile.FieldSlot(&c.Index1)); err != nil {
				return err
			}
		}
	}
	return nil
}

// literal maps a string constant that spells a dotted class name with a
// tree entry; every other string is returned as is
func (w *classRewriter) literal(s string) string {
	if !w.r.opts.RemapStrings || !descriptor.IsDottedClassName(s) {
		return s
	}
	c := w.r.idx.Class(descriptor.ToInternal(s))
	if c == nil {
		return s
	}
	name := c.Name(w.r.tgt)
	if name == "" {
		return s
	}
	mapped := descriptor.ToDotted(name)
	if mapped != s {
		w.strings++
	}
	return mapped
}

// invokeDynamics maps InvokeDynamic call sites. A LambdaMetafactory site is
// named after the functional interface method it implements, so its name is
// mapped as that method; other sites keep their name.
func (w *classRewriter) invokeDynamics() error {
	var bootstraps []classfile.BootstrapMethod
	if a := w.cf.FindAttribute(w.cf.Attributes, classfile.AttrBootstrapMethods); a != nil {
		var err error
		if bootstraps, err = classfile.DecodeBootstrapMethods(a); err != nil {
			return fmt.Errorf("%s: %w", classfile.AttrBootstrapMethods, err)
		}
	}

	pool := w.cf.Pool
	for _, c := range pool.Entries() {
		if c == nil || c.Tag != classfile.TagInvokeDynamic {
			continue
		}
		name, desc, err := pool.NameAndType(c.Index2)
		if err != nil {
			return err
		}
		mappedDesc, err := w.mapDesc(desc)
		if err != nil {
			return err
		}
		mappedName := name
		if int(c.Index1) < len(bootstraps) {
			if iface, sam, ok := w.lambdaTarget(bootstraps[c.Index1], desc); ok {
				mappedName = w.r.mapMember(memberRef{kindMethod, iface, name, sam})
			}
		}
		w.patch.useNAT(classfile.FieldSlot(&c.Index2), mappedName, mappedDesc)
	}
	return nil
}

// lambdaTarget returns the functional interface and erased method
// descriptor of a LambdaMetafactory call site
func (w *classRewriter) lambdaTarget(bsm classfile.BootstrapMethod, siteDesc string) (string, string, bool) {
	pool := w.cf.Pool
	h := pool.Get(bsm.MethodRef)
	if h == nil || h.Tag != classfile.TagMethodHandle || h.Kind != refInvokeStatic {
		return "", "", false
	}
	owner, name, _, err := pool.MemberRef(h.Index1)
	if err != nil || owner != lambdaFactory || (name != "metafactory" && name != "altMetafactory") {
		return "", "", false
	}
	if len(bsm.Args) == 0 {
		return "", "", false
	}
	mt := pool.Get(bsm.Args[0])
	if mt == nil || mt.Tag != classfile.TagMethodType {
		return "", "", false
	}
	sam, err := pool.Utf8(mt.Index1)
	if err != nil {
		return "", "", false
	}
	_, ret, err := descriptor.MethodArgs(siteDesc)
	if err != nil || !strings.HasPrefix(ret, "L") {
		return "", "", false
	}
	return ret[1 : len(ret)-1], sam, true
}

func (w *classRewriter) field(f *classfile.Member) error {
	name, desc, err := w.cf.MemberName(f)
	if err != nil {
		return err
	}
	mapped, err := w.mapDesc(desc)
	if err != nil {
		return err
	}
	w.patch.use(classfile.FieldSlot(&f.NameIndex), w.r.mapDeclared(w.name, kindField, f.Access, name, desc))
	w.patch.use(classfile.FieldSlot(&f.DescIndex), mapped)
	return w.attributes(f.Attributes, nil)
}

func (w *classRewriter) method(m *classfile.Member) error {
	name, desc, err := w.cf.MemberName(m)
	if err != nil {
		return err
	}
	mapped, err := w.mapDesc(desc)
	if err != nil {
		return err
	}
	w.patch.use(classfile.FieldSlot(&m.NameIndex), w.r.mapDeclared(w.name, kindMethod, m.Access, name, desc))
	w.patch.use(classfile.FieldSlot(&m.DescIndex), mapped)

	scope := &methodScope{mapping: w.r.idx.Method(w.name, name, desc)}
	if scope.mapping != nil {
		if scope.slots, err = descriptor.ArgSlots(desc, m.Access&classfile.AccStatic != 0); err != nil {
			return err
		}
	}
	return w.attributes(m.Attributes, scope)
}

// argName returns the target name of an argument by position, or "" to keep
// the current one
func (s *methodScope) argName(position, tgt int) string {
	if s == nil || s.mapping == nil || position < 0 || position >= len(s.slots) {
		return ""
	}
	a := s.mapping.Arg(position, s.slots[position])
	if a == nil {
		return ""
	}
	return a.Name(tgt)
}

// positionOf returns the argument position stored in a local variable slot
func (s *methodScope) positionOf(slot uint16) int {
	if s == nil {
		return -1
	}
	for i, v := range s.slots {
		if v == int(slot) {
			return i
		}
	}
	return -1
}
