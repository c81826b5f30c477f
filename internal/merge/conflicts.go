package merge

import (
	"fmt"
	"strings"

	"github.com/emirpasic/gods/maps/treemap"
	"github.com/emirpasic/gods/sets/linkedhashset"
	"github.com/emirpasic/gods/utils"

	"github.com/standardbeagle/jremap/internal/debug"
	jerrors "github.com/standardbeagle/jremap/internal/errors"
)

// groupKey orders conflict groups by new-namespace name, then descriptor
type groupKey struct {
	name string
	desc string
}

func compareGroupKeys(a, b interface{}) int {
	ka, kb := a.(groupKey), b.(groupKey)
	if c := utils.StringComparator(ka.name, kb.name); c != 0 {
		return c
	}
	return utils.StringComparator(ka.desc, kb.desc)
}

// humanIndex is the output namespace compared to decide whether a group disagrees
func (st *mergeState) humanIndex() int {
	if st.opts.HumanNamespace != "" {
		if idx, ok := st.out.NamespaceIndex(st.opts.HumanNamespace); ok {
			return idx
		}
	}
	return len(st.out.DstNamespaces()) - 1
}

// resolveConflicts groups merged methods by (new-namespace name, source
// descriptor) and settles every group with more than one member.
func (st *mergeState) resolveConflicts() error {
	groups := treemap.NewWith(compareGroupKeys)
	for _, c := range st.candidates {
		key := groupKey{name: c.method.NameOrSource(0), desc: c.method.SrcDesc}
		members, ok := groups.Get(key)
		if !ok {
			members = linkedhashset.New()
			groups.Put(key, members)
		}
		members.(*linkedhashset.Set).Add(c)
	}

	human := st.humanIndex()
	var unresolved []string

	it := groups.Iterator()
	for it.Next() {
		key := it.Key().(groupKey)
		set := it.Value().(*linkedhashset.Set)
		if set.Size() < 2 {
			continue
		}
		members := make([]*candidate, 0, set.Size())
		for _, v := range set.Values() {
			members = append(members, v.(*candidate))
		}

		g := Group{Name: key.name, Desc: key.desc}
		for _, c := range members {
			g.Members = append(g.Members, c.ref())
		}

		var keep []*candidate
		switch grounded := groundedOf(members); {
		case sameHumanName(members, human):
			g.Resolution = ResolutionSameName
			keep = members
		case len(grounded) == 1:
			g.Resolution = ResolutionGrounded
			keep = grounded
		default:
			g.Message = st.describe(key, members, human)
			if !st.opts.Lenient {
				g.Resolution = ResolutionUnresolved
				keep = members
				unresolved = append(unresolved, g.Message)
				break
			}
			g.Resolution = ResolutionDropped
			keep = grounded
			if len(keep) == 0 {
				keep = members[:1]
			}
			debug.LogMerge("lenient conflict resolution: %s", g.Message)
		}

		kept := make(map[*candidate]bool, len(keep))
		for _, c := range keep {
			kept[c] = true
			g.Kept = append(g.Kept, c.ref())
		}
		if g.Resolution != ResolutionUnresolved {
			for _, c := range members {
				if kept[c] {
					continue
				}
				c.class.RemoveMethod(c.method)
				st.res.Dropped = append(st.res.Dropped, c.ref())
				debug.LogMerge("dropping %s from conflict group %s%s", c.ref(), key.name, key.desc)
			}
		}
		st.res.Groups = append(st.res.Groups, g)
	}

	if len(unresolved) > 0 {
		return jerrors.NewConflictError(unresolved)
	}
	return nil
}

func groundedOf(members []*candidate) []*candidate {
	var out []*candidate
	for _, c := range members {
		if c.grounded {
			out = append(out, c)
		}
	}
	return out
}

func sameHumanName(members []*candidate, human int) bool {
	first := members[0].method.NameOrSource(human)
	for _, c := range members[1:] {
		if c.method.NameOrSource(human) != first {
			return false
		}
	}
	return true
}

// describe renders a group as
// "func_1(I)V: a.b(I)V [srg=func_1 named=run, grounded]; c.b(I)V [...]"
func (st *mergeState) describe(key groupKey, members []*candidate, human int) string {
	newNs := st.out.DstNamespaces()[0]
	humanNs := st.out.DstNamespaces()[human]

	parts := make([]string, 0, len(members))
	for _, c := range members {
		kind := "filled"
		if c.grounded {
			kind = "grounded"
		}
		parts = append(parts, fmt.Sprintf("%s [%s=%s %s=%s, %s]",
			c.ref(), newNs, c.method.NameOrSource(0), humanNs, c.method.NameOrSource(human), kind))
	}
	return fmt.Sprintf("%s%s: %s", key.name, key.desc, strings.Join(parts, "; "))
}
