package mapping

import (
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// Fingerprint returns a stable digest of the full tree content: namespaces,
// every element's names and descriptors, arguments and comments, in tree order.
// Two trees that replay identically through Accept share a fingerprint.
func Fingerprint(tree *Tree) uint64 {
	d := xxhash.New()
	write := func(parts ...string) {
		for _, p := range parts {
			_, _ = d.WriteString(p)
			_, _ = d.Write([]byte{0})
		}
	}
	writeNames := func(n *names) {
		write(n.DstNames...)
		write(n.Comment)
	}

	write("ns", tree.ns.Src)
	write(tree.ns.Dst...)
	for _, c := range tree.classes {
		write("c", c.SrcName)
		writeNames(&c.names)
		for _, f := range c.fields {
			write("f", f.SrcName, f.SrcDesc)
			writeNames(&f.names)
		}
		for _, m := range c.methods {
			write("m", m.SrcName, m.SrcDesc)
			writeNames(&m.names)
			for _, a := range m.args {
				write("p", strconv.Itoa(a.ArgPosition), strconv.Itoa(a.LvIndex), a.SrcName)
				writeNames(&a.names)
			}
		}
	}
	return d.Sum64()
}
