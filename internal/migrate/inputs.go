// Package migrate repairs a mapping tree against the compiled classes it will
// be applied to: field descriptors that drifted between builds, and methods
// whose inherited names became ambiguous. Both passes scan the classes in
// parallel and cache their result keyed by a hash of every input.
package migrate

import (
	"sort"

	"github.com/cespare/xxhash/v2"

	"github.com/standardbeagle/jremap/internal/archive"
	"github.com/standardbeagle/jremap/internal/cache"
	"github.com/standardbeagle/jremap/internal/mapping"
)

// cacheVersion is bumped whenever a cached document layout changes
const cacheVersion = 1

// inputsKey hashes the tree, the class entries and extra parameters into a
// cache key. Entry order does not matter.
func inputsKey(prefix string, tree *mapping.Tree, classes []*archive.Entry, extra ...string) string {
	type digest struct {
		name string
		sum  uint64
	}
	sums := make([]digest, 0, len(classes))
	for _, e := range classes {
		sums = append(sums, digest{e.Name, xxhash.Sum64(e.Data)})
	}
	sort.Slice(sums, func(i, j int) bool { return sums[i].name < sums[j].name })

	h := cache.NewHasher().
		Uint64(cacheVersion).
		Uint64(mapping.Fingerprint(tree)).
		Strings(extra...).
		Uint64(uint64(len(sums)))
	for _, s := range sums {
		h.String(s.name).Uint64(s.sum)
	}
	return h.Key(prefix)
}

// namespaceIndex resolves a namespace name of the tree; "" selects the source
func namespaceIndex(tree *mapping.Tree, ns string) (int, error) {
	if ns == "" {
		return mapping.SourceIndex, nil
	}
	return tree.MustNamespaceIndex(ns)
}
