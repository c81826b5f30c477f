// Package merge combines a mapping tree keyed by the shared source namespace
// and naming one new namespace with the base tree carrying the established
// namespaces, producing one tree with every namespace present.
package merge

import (
	"fmt"

	"github.com/standardbeagle/jremap/internal/debug"
	jerrors "github.com/standardbeagle/jremap/internal/errors"
	"github.com/standardbeagle/jremap/internal/mapping"
)

// DefaultExpectedNamespaces is the layout a base tree must have
var DefaultExpectedNamespaces = mapping.Namespaces{
	Src: mapping.NamespaceOfficial,
	Dst: []string{mapping.NamespaceIntermediary, mapping.NamespaceNamed},
}

// Options controls a merge
type Options struct {
	// Lenient fills missing base entries with source names instead of failing
	Lenient bool
	// BaseSource and NewSource name the inputs in error messages
	BaseSource string
	NewSource  string
	// ExpectedNamespaces overrides DefaultExpectedNamespaces
	ExpectedNamespaces *mapping.Namespaces
	// HumanNamespace selects the namespace compared when deciding whether a
	// conflict group really disagrees; defaults to the last base namespace
	HumanNamespace string
}

// MethodRef identifies a merged method
type MethodRef struct {
	Owner string
	Name  string
	Desc  string
}

func (r MethodRef) String() string {
	return r.Owner + "." + r.Name + r.Desc
}

// Resolution describes how a conflict group was settled
type Resolution string

const (
	ResolutionSameName   Resolution = "same-name"
	ResolutionGrounded   Resolution = "grounded"
	ResolutionDropped    Resolution = "dropped"
	ResolutionUnresolved Resolution = "unresolved"
)

// Group is one conflict group: methods sharing a new-namespace name and source descriptor
type Group struct {
	Name       string
	Desc       string
	Members    []MethodRef
	Kept       []MethodRef
	Resolution Resolution
	Message    string
}

// Result is a merged tree plus the bookkeeping of how it was produced
type Result struct {
	Tree *mapping.Tree
	// Groups lists every conflict group with more than one member, in key order
	Groups []Group
	// Dropped lists methods removed by conflict resolution
	Dropped []MethodRef
	// Omitted lists unmatched methods left out because the fallback tree could not ground them
	Omitted []MethodRef
	// Filled counts elements whose base names were filled with source names
	Filled int
}

// Merge merges newTree into base; fallback may be nil
func Merge(newTree, base, fallback *mapping.Tree, opts Options) (*mapping.Tree, error) {
	res, err := NewMerger(opts).Run(newTree, base, fallback)
	if err != nil {
		return nil, err
	}
	return res.Tree, nil
}

// Merger runs merges with fixed options
type Merger struct {
	opts     Options
	expected mapping.Namespaces
}

// NewMerger creates a merger, applying option defaults
func NewMerger(opts Options) *Merger {
	if opts.BaseSource == "" {
		opts.BaseSource = "base mappings"
	}
	if opts.NewSource == "" {
		opts.NewSource = "new mappings"
	}
	expected := DefaultExpectedNamespaces
	if opts.ExpectedNamespaces != nil {
		expected = *opts.ExpectedNamespaces
	}
	return &Merger{opts: opts, expected: expected}
}

// mergeState carries one run
type mergeState struct {
	*Merger
	newTree, base, fallback *mapping.Tree
	out                     *mapping.Tree
	res                     *Result

	// merged methods eligible for conflict bookkeeping, in tree order
	candidates []*candidate
}

// candidate is a merged method taking part in conflict bookkeeping
type candidate struct {
	class    *mapping.ClassMapping
	method   *mapping.MethodMapping
	grounded bool
}

func (c *candidate) ref() MethodRef {
	return MethodRef{Owner: c.class.SrcName, Name: c.method.SrcName, Desc: c.method.SrcDesc}
}

// Run performs the merge
func (m *Merger) Run(newTree, base, fallback *mapping.Tree) (*Result, error) {
	if !base.Namespaces().Equal(m.expected) {
		return nil, jerrors.NewFormatError(m.opts.BaseSource, m.expected.All(), base.Namespaces().All())
	}
	if len(newTree.DstNamespaces()) != 1 {
		got := newTree.Namespaces()
		return nil, jerrors.NewFormatError(m.opts.NewSource,
			[]string{got.Src, "<one destination namespace>"}, got.All())
	}
	if newTree.SrcNamespace() != base.SrcNamespace() {
		return nil, jerrors.NewFormatError(m.opts.NewSource,
			[]string{base.SrcNamespace(), newTree.DstNamespaces()[0]}, newTree.Namespaces().All())
	}

	dst := append(newTree.DstNamespaces(), base.DstNamespaces()...)
	out, err := mapping.NewTreeWithNamespaces(newTree.SrcNamespace(), dst...)
	if err != nil {
		return nil, fmt.Errorf("merged namespaces: %w", err)
	}

	st := &mergeState{
		Merger:   m,
		newTree:  newTree,
		base:     base,
		fallback: fallback,
		out:      out,
		res:      &Result{Tree: out},
	}
	for _, c := range newTree.Classes() {
		if err := st.mergeClass(c); err != nil {
			return nil, err
		}
	}
	if err := st.resolveConflicts(); err != nil {
		return nil, err
	}
	if err := out.VisitEnd(); err != nil {
		return nil, err
	}

	debug.LogMerge("merged %d classes (%d filled, %d omitted, %d dropped, %d conflict groups)",
		out.ClassCount(), st.res.Filled, len(st.res.Omitted), len(st.res.Dropped), len(st.res.Groups))
	return st.res, nil
}

// baseWidth is the number of base destination namespaces
func (st *mergeState) baseWidth() int {
	return len(st.base.DstNamespaces())
}

// names builds [newName, baseNames...]
func (st *mergeState) names(newName string, base []string) []string {
	out := make([]string, 1+st.baseWidth())
	out[0] = newName
	copy(out[1:], base)
	return out
}

// filled builds [newName, src, src...]
func (st *mergeState) filled(newName, src string) []string {
	out := make([]string, 1+st.baseWidth())
	out[0] = newName
	for i := 1; i < len(out); i++ {
		out[i] = src
	}
	st.res.Filled++
	return out
}

func (st *mergeState) mergeClass(c *mapping.ClassMapping) error {
	bc := st.base.Class(c.SrcName)

	var dst []string
	comment := c.Comment
	switch {
	case bc != nil:
		dst = st.names(c.DstName(0), bc.DstNames)
		if bc.Comment != "" {
			comment = bc.Comment
		}
	case st.opts.Lenient:
		dst = st.filled(c.DstName(0), c.SrcName)
	default:
		return jerrors.NewMissingMappingError(jerrors.KindClass, "", c.SrcName, "").
			WithSource(st.opts.BaseSource).
			WithSuggestions(suggestClasses(c.SrcName, st.base))
	}

	if err := st.out.VisitClass(c.SrcName, dst); err != nil {
		return err
	}
	oc := st.out.Class(c.SrcName)
	oc.Comment = comment

	for _, f := range c.Fields() {
		if err := st.mergeField(oc, bc, f); err != nil {
			return err
		}
	}
	for _, m := range c.Methods() {
		if err := st.mergeMethod(oc, bc, m); err != nil {
			return err
		}
	}
	return nil
}

func (st *mergeState) mergeField(oc, bc *mapping.ClassMapping, f *mapping.FieldMapping) error {
	var bf *mapping.FieldMapping
	if bc != nil {
		bf = bc.Field(f.SrcName, f.SrcDesc)
	}

	desc := f.SrcDesc
	var dst []string
	comment := f.Comment
	switch {
	case bf != nil:
		if desc == "" {
			desc = bf.SrcDesc
		}
		dst = st.names(f.DstName(0), bf.DstNames)
		if bf.Comment != "" {
			comment = bf.Comment
		}
	case st.opts.Lenient:
		dst = st.filled(f.DstName(0), f.SrcName)
	default:
		return jerrors.NewMissingMappingError(jerrors.KindField, oc.SrcName, f.SrcName, f.SrcDesc).
			WithSource(st.opts.BaseSource).
			WithSuggestions(suggestFields(f.SrcName, bc))
	}

	of := oc.AddField(f.SrcName, desc)
	for i, n := range dst {
		if n != "" {
			of.SetDstName(i, n)
		}
	}
	of.Comment = comment
	return nil
}

func (st *mergeState) mergeMethod(oc, bc *mapping.ClassMapping, m *mapping.MethodMapping) error {
	passThrough := m.DstName(0) == "" || m.DstName(0) == m.SrcName

	var bm *mapping.MethodMapping
	if bc != nil {
		bm = bc.Method(m.SrcName, m.SrcDesc)
	}

	var om *mapping.MethodMapping
	switch {
	case bm != nil:
		om = st.addMethod(oc, m, st.names(m.DstName(0), bm.DstNames))
		om.Comment = bm.Comment
		if om.Comment == "" {
			om.Comment = m.Comment
		}
		st.copyArgs(om, m, bm)

	case passThrough:
		om = st.addMethod(oc, m, st.filled(m.SrcName, m.SrcName))
		om.Comment = m.Comment

	case st.fallback != nil:
		if !st.fallbackPassThrough(oc.SrcName, m) {
			ref := MethodRef{Owner: oc.SrcName, Name: m.SrcName, Desc: m.SrcDesc}
			st.res.Omitted = append(st.res.Omitted, ref)
			debug.LogMerge("omitting %s: no match in %s and no pass-through in fallback", ref, st.opts.BaseSource)
			return nil
		}
		om = st.addMethod(oc, m, st.filled(m.DstName(0), m.SrcName))
		om.Comment = m.Comment

	case st.opts.Lenient:
		om = st.addMethod(oc, m, st.filled(m.DstName(0), m.SrcName))
		om.Comment = m.Comment

	default:
		return jerrors.NewMissingMappingError(jerrors.KindMethod, oc.SrcName, m.SrcName, m.SrcDesc).
			WithSource(st.opts.BaseSource).
			WithSuggestions(suggestMethods(m.SrcName, bc))
	}

	if !passThrough {
		st.candidates = append(st.candidates, &candidate{class: oc, method: om, grounded: bm != nil})
	}
	return nil
}

func (st *mergeState) addMethod(oc *mapping.ClassMapping, m *mapping.MethodMapping, dst []string) *mapping.MethodMapping {
	om := oc.AddMethod(m.SrcName, m.SrcDesc)
	for i, n := range dst {
		if n != "" {
			om.SetDstName(i, n)
		}
	}
	return om
}

// fallbackPassThrough reports whether the fallback tree holds the method
// under its own source name
func (st *mergeState) fallbackPassThrough(owner string, m *mapping.MethodMapping) bool {
	fc := st.fallback.Class(owner)
	if fc == nil {
		return false
	}
	fm := fc.Method(m.SrcName, m.SrcDesc)
	if fm == nil {
		return false
	}
	for i := range st.fallback.DstNamespaces() {
		if name := fm.DstName(i); name != "" && name != fm.SrcName {
			return false
		}
	}
	return true
}

// copyArgs copies the base method's parameters, adding the new namespace's
// names where the new side names the same parameter. Parameters only the new
// side knows keep empty base names.
func (st *mergeState) copyArgs(om, m, bm *mapping.MethodMapping) {
	seen := make(map[*mapping.MethodArgMapping]bool)
	for _, ba := range bm.Args() {
		na := m.Arg(ba.ArgPosition, ba.LvIndex)
		newName := ""
		if na != nil {
			newName = na.DstName(0)
			seen[na] = true
		}
		oa := om.AddArg(ba.ArgPosition, ba.LvIndex, ba.SrcName)
		for i, n := range st.names(newName, ba.DstNames) {
			if n != "" {
				oa.SetDstName(i, n)
			}
		}
		oa.Comment = ba.Comment
	}
	for _, na := range m.Args() {
		if seen[na] || na.DstName(0) == "" {
			continue
		}
		oa := om.AddArg(na.ArgPosition, na.LvIndex, na.SrcName)
		oa.SetDstName(0, na.DstName(0))
		oa.Comment = na.Comment
	}
}
