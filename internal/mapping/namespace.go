package mapping

import (
	"fmt"
	"slices"
)

// Well-known namespaces. Trees may use any names; these are the ones the
// merge pipeline expects by default.
const (
	// NamespaceOfficial is the machine-obfuscated naming of the shipped binary
	NamespaceOfficial = "official"
	// NamespaceIntermediary is the stable intermediate naming
	NamespaceIntermediary = "intermediary"
	// NamespaceNamed is the human-readable naming
	NamespaceNamed = "named"
	// NamespaceSrg is the alternate vendor's intermediate naming
	NamespaceSrg = "srg"
	// NamespaceMojang is the vendor-published human-readable naming
	NamespaceMojang = "mojang"
)

// SourceIndex addresses the source namespace wherever a namespace index is expected
const SourceIndex = -1

// Namespaces is the ordered namespace layout of a tree: one source namespace
// followed by destination namespaces.
type Namespaces struct {
	Src string
	Dst []string
}

// NewNamespaces validates and returns a namespace layout
func NewNamespaces(src string, dst ...string) (Namespaces, error) {
	ns := Namespaces{Src: src, Dst: append([]string(nil), dst...)}
	return ns, ns.Validate()
}

// Validate checks that no namespace is empty or repeated
func (n Namespaces) Validate() error {
	if n.Src == "" {
		return fmt.Errorf("source namespace must not be empty")
	}
	seen := map[string]bool{n.Src: true}
	for _, d := range n.Dst {
		if d == "" {
			return fmt.Errorf("destination namespace must not be empty")
		}
		if seen[d] {
			return fmt.Errorf("namespace %q is repeated", d)
		}
		seen[d] = true
	}
	return nil
}

// Index resolves a namespace name to SourceIndex or its destination position
func (n Namespaces) Index(name string) (int, bool) {
	if name == n.Src {
		return SourceIndex, true
	}
	if i := slices.Index(n.Dst, name); i >= 0 {
		return i, true
	}
	return 0, false
}

// Name returns the namespace name at an index
func (n Namespaces) Name(index int) string {
	if index == SourceIndex {
		return n.Src
	}
	if index < 0 || index >= len(n.Dst) {
		return ""
	}
	return n.Dst[index]
}

// All returns the source namespace followed by the destinations
func (n Namespaces) All() []string {
	return append([]string{n.Src}, n.Dst...)
}

// Equal reports whether two layouts are identical, order included
func (n Namespaces) Equal(other Namespaces) bool {
	return n.Src == other.Src && slices.Equal(n.Dst, other.Dst)
}

// String renders the layout as "src -> [dst...]"
func (n Namespaces) String() string {
	return fmt.Sprintf("%s -> %v", n.Src, n.Dst)
}
