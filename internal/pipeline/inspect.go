package pipeline

import (
	"github.com/standardbeagle/jremap/internal/cache"
	"github.com/standardbeagle/jremap/internal/mapping"
)

// Summary describes a mapping tree for the inspect command
type Summary struct {
	Namespaces  []string
	Classes     int
	Fields      int
	Methods     int
	Args        int
	Comments    int
	Fingerprint string
}

// Summarize counts the elements of a tree
func Summarize(tree *mapping.Tree) Summary {
	s := Summary{
		Namespaces:  tree.Namespaces().All(),
		Classes:     tree.ClassCount(),
		Fingerprint: cache.FormatHash(mapping.Fingerprint(tree)),
	}
	for _, c := range tree.Classes() {
		if c.Comment != "" {
			s.Comments++
		}
		s.Fields += len(c.Fields())
		for _, m := range c.Methods() {
			s.Methods++
			s.Args += len(m.Args())
		}
	}
	return s
}
