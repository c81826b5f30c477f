package remap

import (
	"fmt"

	"github.com/standardbeagle/jremap/internal/classfile"
)

// utf8Ref is one slot that must end up pointing at a Utf8 holding want
type utf8Ref struct {
	slot classfile.Slot
	want string
}

// natRef is one slot that must end up pointing at a NameAndType (name, desc)
type natRef struct {
	slot classfile.Slot
	name string
	desc string
}

// patcher collects every known referrer of the constant pool together with
// the value it must see after renaming, then rewrites the pool. An entry
// whose referrers agree is changed in place; one whose referrers disagree is
// split by appending new entries. Existing indexes never move, so bytecode
// operands stay valid.
type patcher struct {
	pool *classfile.ConstantPool

	utf8      map[uint16][]utf8Ref
	utf8Order []uint16
	nat       map[uint16][]natRef
	natOrder  []uint16

	// appended Utf8 entries, reused by value
	fresh map[string]uint16

	splits int
}

func newPatcher(pool *classfile.ConstantPool) *patcher {
	return &patcher{
		pool:  pool,
		utf8:  make(map[uint16][]utf8Ref),
		nat:   make(map[uint16][]natRef),
		fresh: make(map[string]uint16),
	}
}

// use records that s must point at a Utf8 holding want. Index 0 is "absent".
func (p *patcher) use(s classfile.Slot, want string) {
	idx := s.Get()
	if idx == 0 {
		return
	}
	if _, ok := p.utf8[idx]; !ok {
		p.utf8Order = append(p.utf8Order, idx)
	}
	p.utf8[idx] = append(p.utf8[idx], utf8Ref{slot: s, want: want})
}

// pin keeps the Utf8 seen through s unchanged
func (p *patcher) pin(s classfile.Slot) error {
	if s.Get() == 0 {
		return nil
	}
	v, err := p.pool.Utf8(s.Get())
	if err != nil {
		return err
	}
	p.use(s, v)
	return nil
}

// useNAT records that s must point at a NameAndType of (name, desc)
func (p *patcher) useNAT(s classfile.Slot, name, desc string) {
	idx := s.Get()
	if idx == 0 {
		return
	}
	if _, ok := p.nat[idx]; !ok {
		p.natOrder = append(p.natOrder, idx)
	}
	p.nat[idx] = append(p.nat[idx], natRef{slot: s, name: name, desc: desc})
}

// apply rewrites the pool. NameAndType entries go first because keeping one
// turns its name and descriptor into Utf8 referrers.
func (p *patcher) apply() error {
	for _, idx := range p.natOrder {
		if err := p.applyNAT(idx, p.nat[idx]); err != nil {
			return err
		}
	}
	for _, idx := range p.utf8Order {
		if err := p.applyUtf8(idx, p.utf8[idx]); err != nil {
			return err
		}
	}
	return nil
}

type natGroup struct {
	name string
	desc string
	refs []natRef
}

func (p *patcher) applyNAT(idx uint16, refs []natRef) error {
	c := p.pool.Get(idx)
	if c == nil || c.Tag != classfile.TagNameAndType {
		return fmt.Errorf("constant %d is not a NameAndType", idx)
	}
	curName, curDesc, err := p.pool.NameAndType(idx)
	if err != nil {
		return err
	}

	var groups []*natGroup
	for _, r := range refs {
		var g *natGroup
		for _, existing := range groups {
			if existing.name == r.name && existing.desc == r.desc {
				g = existing
				break
			}
		}
		if g == nil {
			g = &natGroup{name: r.name, desc: r.desc}
			groups = append(groups, g)
		}
		g.refs = append(g.refs, r)
	}

	keep := 0
	for i, g := range groups {
		if g.name == curName && g.desc == curDesc {
			keep = i
			break
		}
	}
	for i, g := range groups {
		if i == keep {
			p.use(classfile.FieldSlot(&c.Index1), g.name)
			p.use(classfile.FieldSlot(&c.Index2), g.desc)
			continue
		}
		nameIdx, err := p.appendUtf8(g.name)
		if err != nil {
			return err
		}
		descIdx, err := p.appendUtf8(g.desc)
		if err != nil {
			return err
		}
		natIdx, err := p.pool.AddNameAndType(nameIdx, descIdx)
		if err != nil {
			return err
		}
		p.splits++
		for _, r := range g.refs {
			r.slot.Set(natIdx)
		}
	}
	return nil
}

type utf8Group struct {
	want string
	refs []utf8Ref
}

func (p *patcher) applyUtf8(idx uint16, refs []utf8Ref) error {
	c := p.pool.Get(idx)
	if c == nil || c.Tag != classfile.TagUtf8 {
		return fmt.Errorf("constant %d is not a Utf8", idx)
	}

	var groups []*utf8Group
	for _, r := range refs {
		var g *utf8Group
		for _, existing := range groups {
			if existing.want == r.want {
				g = existing
				break
			}
		}
		if g == nil {
			g = &utf8Group{want: r.want}
			groups = append(groups, g)
		}
		g.refs = append(g.refs, r)
	}

	keep := 0
	for i, g := range groups {
		if g.want == c.Value {
			keep = i
			break
		}
	}
	for i, g := range groups {
		if i == keep {
			c.Value = g.want
			continue
		}
		n, err := p.appendUtf8(g.want)
		if err != nil {
			return err
		}
		p.splits++
		for _, r := range g.refs {
			r.slot.Set(n)
		}
	}
	return nil
}

func (p *patcher) appendUtf8(s string) (uint16, error) {
	if idx, ok := p.fresh[s]; ok {
		return idx, nil
	}
	idx, err := p.pool.AddUtf8(s)
	if err != nil {
		return 0, err
	}
	p.fresh[s] = idx
	return idx, nil
}
