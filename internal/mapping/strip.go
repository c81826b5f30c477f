package mapping

import (
	"sort"
)

// MethodSet is a set of method name/descriptor pairs
type MethodSet map[MemberKey]struct{}

// NewMethodSet builds a set from keys
func NewMethodSet(keys ...MemberKey) MethodSet {
	s := make(MethodSet, len(keys))
	for _, k := range keys {
		s.Add(k.Name, k.Desc)
	}
	return s
}

// Add inserts a pair
func (s MethodSet) Add(name, desc string) {
	s[MemberKey{name, desc}] = struct{}{}
}

// Contains reports whether a pair is present
func (s MethodSet) Contains(name, desc string) bool {
	_, ok := s[MemberKey{name, desc}]
	return ok
}

// Len returns the number of pairs
func (s MethodSet) Len() int { return len(s) }

// Sorted returns the pairs ordered by name, then descriptor
func (s MethodSet) Sorted() []MemberKey {
	keys := make([]MemberKey, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Name != keys[j].Name {
			return keys[i].Name < keys[j].Name
		}
		return keys[i].Desc < keys[j].Desc
	})
	return keys
}

// StripMethods deletes every method whose name and descriptor in namespace ns
// is in the set, across all classes. It returns the removed methods.
func StripMethods(tree *Tree, ns int, set MethodSet) []*MethodMapping {
	if len(set) == 0 {
		return nil
	}
	mapper := tree.ClassMapper(SourceIndex, ns)
	var removed []*MethodMapping
	for _, c := range tree.classes {
		var drop []*MethodMapping
		for _, m := range c.methods {
			desc, err := mapDesc(m.SrcDesc, mapper)
			if err != nil {
				continue
			}
			if set.Contains(m.NameOrSource(ns), desc) {
				drop = append(drop, m)
			}
		}
		for _, m := range drop {
			if c.RemoveMethod(m) {
				removed = append(removed, m)
			}
		}
	}
	return removed
}
