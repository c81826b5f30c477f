package merge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	jerrors "github.com/standardbeagle/jremap/internal/errors"
	"github.com/standardbeagle/jremap/internal/mapping"
)

const (
	official     = mapping.NamespaceOfficial
	srg          = mapping.NamespaceSrg
	intermediary = mapping.NamespaceIntermediary
	named        = mapping.NamespaceNamed
)

// treeBuilder keeps test fixtures readable
type treeBuilder struct {
	t    *testing.T
	tree *mapping.Tree
}

func newBuilder(t *testing.T, src string, dst ...string) *treeBuilder {
	t.Helper()
	tree, err := mapping.NewTreeWithNamespaces(src, dst...)
	require.NoError(t, err)
	return &treeBuilder{t: t, tree: tree}
}

func (b *treeBuilder) class(src string, dst ...string) *treeBuilder {
	require.NoError(b.t, b.tree.VisitClass(src, dst))
	return b
}

func (b *treeBuilder) field(src, desc string, dst ...string) *treeBuilder {
	require.NoError(b.t, b.tree.VisitField(src, desc, dst))
	return b
}

func (b *treeBuilder) method(src, desc string, dst ...string) *treeBuilder {
	require.NoError(b.t, b.tree.VisitMethod(src, desc, dst))
	return b
}

func (b *treeBuilder) arg(lv int, dst ...string) *treeBuilder {
	require.NoError(b.t, b.tree.VisitMethodArg(-1, lv, "", dst))
	return b
}

func (b *treeBuilder) comment(c string) *treeBuilder {
	require.NoError(b.t, b.tree.VisitComment(c))
	return b
}

func (b *treeBuilder) build() *mapping.Tree {
	require.NoError(b.t, b.tree.VisitEnd())
	return b.tree
}

func baseFixture(t *testing.T) *mapping.Tree {
	return newBuilder(t, official, intermediary, named).
		class("a", "class_1", "net/example/Foo").comment("The foo.").
		field("b", "I", "field_1", "count").
		method("c", "(I)V", "method_1", "run").arg(1, "", "times").
		method("toString", "()Ljava/lang/String;", "toString", "toString").
		build()
}

func TestMerge_ClassesFieldsMethods(t *testing.T) {
	newTree := newBuilder(t, official, srg).
		class("a", "net/minecraft/Foo").
		field("b", "", "f_1_").
		method("c", "(I)V", "m_1_").arg(1, "p_1_").
		build()

	res, err := NewMerger(Options{}).Run(newTree, baseFixture(t), nil)
	require.NoError(t, err)
	out := res.Tree

	assert.Equal(t, official, out.SrcNamespace())
	assert.Equal(t, []string{srg, intermediary, named}, out.DstNamespaces())

	c := out.Class("a")
	require.NotNil(t, c)
	assert.Equal(t, []string{"net/minecraft/Foo", "class_1", "net/example/Foo"}, c.DstNames)
	assert.Equal(t, "The foo.", c.Comment)

	f := c.Field("b", "I")
	require.NotNil(t, f, "descriptor adopted from base when the new side lacks one")
	assert.Equal(t, []string{"f_1_", "field_1", "count"}, f.DstNames)

	m := c.Method("c", "(I)V")
	require.NotNil(t, m)
	assert.Equal(t, []string{"m_1_", "method_1", "run"}, m.DstNames)
	arg := m.Arg(-1, 1)
	require.NotNil(t, arg)
	assert.Equal(t, []string{"p_1_", "", "times"}, arg.DstNames)
	assert.True(t, out.Complete())
}

func TestMerge_RoundTripIdentity(t *testing.T) {
	identity := newBuilder(t, official, srg).
		class("a", "a").field("b", "I", "b").method("c", "(I)V", "c").
		class("z", "z").method("y", "()V", "y").
		build()
	base := newBuilder(t, official, intermediary, named).build()

	out, err := Merge(identity, base, nil, Options{Lenient: true})
	require.NoError(t, err)

	for _, c := range out.Classes() {
		for i := range out.DstNamespaces() {
			assert.Equal(t, c.SrcName, c.Name(i))
		}
		for _, f := range c.Fields() {
			for i := range out.DstNamespaces() {
				assert.Equal(t, f.SrcName, f.Name(i))
			}
		}
		for _, m := range c.Methods() {
			for i := range out.DstNamespaces() {
				assert.Equal(t, m.SrcName, m.Name(i))
			}
		}
	}
	assert.Equal(t, 2, out.ClassCount())
}

func TestMerge_BaseLayoutMismatch(t *testing.T) {
	newTree := newBuilder(t, official, srg).build()
	wrong := newBuilder(t, official, named, intermediary).build()

	_, err := Merge(newTree, wrong, nil, Options{BaseSource: "mappings.tiny"})
	require.Error(t, err)
	var formatErr *jerrors.FormatError
	require.ErrorAs(t, err, &formatErr)
	assert.Equal(t, "mappings.tiny", formatErr.Source)
	assert.Contains(t, err.Error(), "mappings.tiny")
}

func TestMerge_NewTreeNeedsOneDestination(t *testing.T) {
	newTree := newBuilder(t, official, srg, "id").build()
	_, err := Merge(newTree, baseFixture(t), nil, Options{})
	var formatErr *jerrors.FormatError
	assert.ErrorAs(t, err, &formatErr)
}

func TestMerge_ExpectedNamespacesOverride(t *testing.T) {
	base := newBuilder(t, official, named).class("a", "Foo").build()
	newTree := newBuilder(t, official, srg).class("a", "C_1_").build()

	expected := mapping.Namespaces{Src: official, Dst: []string{named}}
	out, err := Merge(newTree, base, nil, Options{ExpectedNamespaces: &expected})
	require.NoError(t, err)
	assert.Equal(t, []string{"C_1_", "Foo"}, out.Class("a").DstNames)
}

func TestMerge_LenientVersusStrict(t *testing.T) {
	newTree := newBuilder(t, official, srg).
		class("a", "C_1_").
		class("missing", "C_2_").field("q", "J", "f_9_").method("r", "()V", "m_9_").
		build()

	t.Run("lenient fills", func(t *testing.T) {
		res, err := NewMerger(Options{Lenient: true}).Run(newTree, baseFixture(t), nil)
		require.NoError(t, err)
		c := res.Tree.Class("missing")
		require.NotNil(t, c)
		assert.Equal(t, []string{"C_2_", "missing", "missing"}, c.DstNames)
		assert.Equal(t, []string{"f_9_", "q", "q"}, c.Field("q", "J").DstNames)
		assert.Equal(t, []string{"m_9_", "r", "r"}, c.Method("r", "()V").DstNames)
		assert.Equal(t, 3, res.Filled)
	})

	t.Run("strict names the class", func(t *testing.T) {
		_, err := Merge(newTree, baseFixture(t), nil, Options{BaseSource: "base.tiny"})
		require.Error(t, err)
		var missing *jerrors.MissingMappingError
		require.ErrorAs(t, err, &missing)
		assert.Equal(t, jerrors.KindClass, missing.Kind)
		assert.Equal(t, "missing", missing.Name)
		assert.Contains(t, err.Error(), "missing")
		assert.Contains(t, err.Error(), "base.tiny")
	})
}

func TestMerge_StrictMissingMembers(t *testing.T) {
	fieldTree := newBuilder(t, official, srg).class("a", "C_1_").field("bb", "I", "f_1_").build()
	_, err := Merge(fieldTree, baseFixture(t), nil, Options{})
	var missing *jerrors.MissingMappingError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, jerrors.KindField, missing.Kind)
	assert.Equal(t, "a", missing.Owner)

	methodTree := newBuilder(t, official, srg).class("a", "C_1_").method("c", "(J)V", "m_1_").build()
	_, err = Merge(methodTree, baseFixture(t), nil, Options{})
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, jerrors.KindMethod, missing.Kind)
	assert.Equal(t, "(J)V", missing.Descriptor)
	assert.Contains(t, missing.Suggestions, "c(I)V", "overloads are suggested, never matched by name")
}

func TestMerge_StrictMissingClassSuggestions(t *testing.T) {
	base := newBuilder(t, official, intermediary, named).
		class("net/example/Widget", "class_1", "Widget").
		class("net/example/Gadget", "class_2", "Gadget").
		build()
	newTree := newBuilder(t, official, srg).class("net/example/Widgets", "C_1_").build()

	_, err := Merge(newTree, base, nil, Options{})
	var missing *jerrors.MissingMappingError
	require.ErrorAs(t, err, &missing)
	require.NotEmpty(t, missing.Suggestions)
	assert.Equal(t, "net/example/Widget", missing.Suggestions[0])
}

// A method with the same name in every namespace never enters a conflict group.
func TestMerge_PassThroughNeverConflicts(t *testing.T) {
	b := newBuilder(t, official, srg)
	for _, owner := range []string{"a", "d", "e", "f"} {
		b.class(owner, owner).
			method("toString", "()Ljava/lang/String;", "toString").
			method("<init>", "()V", "<init>")
	}
	newTree := b.build()

	res, err := NewMerger(Options{Lenient: true}).Run(newTree, baseFixture(t), nil)
	require.NoError(t, err)
	assert.Empty(t, res.Groups)
	assert.Empty(t, res.Dropped)
	for _, owner := range []string{"a", "d", "e", "f"} {
		assert.NotNil(t, res.Tree.Class(owner).Method("toString", "()Ljava/lang/String;"))
	}
}

func TestMerge_FallbackFill(t *testing.T) {
	newTree := newBuilder(t, official, srg).
		class("a", "C_1_").
		method("x", "()V", "m_2_").
		method("y", "()V", "m_3_").
		build()
	fallback := newBuilder(t, official, mapping.NamespaceMojang).
		class("a", "net/example/Foo").
		method("x", "()V", "x").
		method("y", "()V", "guessed").
		build()

	res, err := NewMerger(Options{}).Run(newTree, baseFixture(t), fallback)
	require.NoError(t, err, "fallback fills replace strict failures")

	c := res.Tree.Class("a")
	x := c.Method("x", "()V")
	require.NotNil(t, x)
	assert.Equal(t, []string{"m_2_", "x", "x"}, x.DstNames)
	assert.Nil(t, c.Method("y", "()V"), "methods the fallback cannot ground are omitted")
	assert.Equal(t, []MethodRef{{Owner: "a", Name: "y", Desc: "()V"}}, res.Omitted)
}

func conflictFixture(t *testing.T) (*mapping.Tree, *mapping.Tree) {
	newTree := newBuilder(t, official, srg).
		class("a", "C_1_").method("c", "(I)V", "m_1_").
		class("b", "C_2_").method("k", "(I)V", "m_1_").
		build()
	return newTree, baseFixture(t)
}

func TestMerge_ConflictSingleGroundedWins(t *testing.T) {
	newTree, base := conflictFixture(t)

	res, err := NewMerger(Options{Lenient: true}).Run(newTree, base, nil)
	require.NoError(t, err)
	require.Len(t, res.Groups, 1)
	g := res.Groups[0]
	assert.Equal(t, ResolutionGrounded, g.Resolution)
	assert.Equal(t, []MethodRef{{"a", "c", "(I)V"}}, g.Kept)
	assert.Equal(t, []MethodRef{{"b", "k", "(I)V"}}, res.Dropped)
	assert.Nil(t, res.Tree.Class("b").Method("k", "(I)V"))
	assert.NotNil(t, res.Tree.Class("a").Method("c", "(I)V"))
}

func TestMerge_ConflictSameHumanNameKeepsAll(t *testing.T) {
	newTree := newBuilder(t, official, srg).
		class("a", "C_1_").method("c", "(I)V", "m_1_").
		class("b", "C_2_").method("c", "(I)V", "m_1_").
		build()
	base := newBuilder(t, official, intermediary, named).
		class("a", "class_1", "Foo").method("c", "(I)V", "method_1", "run").
		class("b", "class_2", "Bar").method("c", "(I)V", "method_1", "run").
		build()

	res, err := NewMerger(Options{}).Run(newTree, base, nil)
	require.NoError(t, err)
	require.Len(t, res.Groups, 1)
	assert.Equal(t, ResolutionSameName, res.Groups[0].Resolution)
	assert.Empty(t, res.Dropped)
}

func unresolvableFixture(t *testing.T) (*mapping.Tree, *mapping.Tree, *mapping.Tree) {
	newTree := newBuilder(t, official, srg).
		// zero grounded: both only filled through the fallback
		class("c", "C_3_").method("x", "()V", "m_5_").
		class("d", "C_4_").method("y", "()V", "m_5_").
		// two grounded with different human names
		class("e", "C_5_").method("p", "()V", "m_6_").
		class("f", "C_6_").method("q", "()V", "m_6_").
		build()
	base := newBuilder(t, official, intermediary, named).
		class("c", "class_3", "C").
		class("d", "class_4", "D").
		class("e", "class_5", "E").method("p", "()V", "method_5", "open").
		class("f", "class_6", "F").method("q", "()V", "method_6", "close").
		build()
	fallback := newBuilder(t, official, mapping.NamespaceMojang).
		class("c", "C").method("x", "()V", "x").
		class("d", "D").method("y", "()V", "y").
		build()
	return newTree, base, fallback
}

func TestMerge_ConflictStrictCollectsAll(t *testing.T) {
	newTree, base, fallback := unresolvableFixture(t)

	_, err := Merge(newTree, base, fallback, Options{})
	require.Error(t, err)
	var conflict *jerrors.ConflictError
	require.ErrorAs(t, err, &conflict)
	require.Len(t, conflict.Conflicts, 2, "every conflict is reported, not just the first")
	assert.Contains(t, conflict.Conflicts[0], "m_5_()V")
	assert.Contains(t, conflict.Conflicts[0], "c.x()V [srg=m_5_ named=x, filled]")
	assert.Contains(t, conflict.Conflicts[1], "e.p()V [srg=m_6_ named=open, grounded]")
	assert.Contains(t, conflict.Conflicts[1], "f.q()V [srg=m_6_ named=close, grounded]")
}

func TestMerge_ConflictLenientDrops(t *testing.T) {
	newTree, base, fallback := unresolvableFixture(t)

	res, err := NewMerger(Options{Lenient: true}).Run(newTree, base, fallback)
	require.NoError(t, err)
	require.Len(t, res.Groups, 2)
	assert.Equal(t, ResolutionDropped, res.Groups[0].Resolution)
	assert.Equal(t, []MethodRef{{"c", "x", "()V"}}, res.Groups[0].Kept, "first member in stable order survives")
	assert.Equal(t, []MethodRef{{"d", "y", "()V"}}, res.Dropped)
	assert.NotNil(t, res.Tree.Class("e").Method("p", "()V"))
	assert.NotNil(t, res.Tree.Class("f").Method("q", "()V"))
}

func TestMerge_ConflictDeterminism(t *testing.T) {
	var firstDropped []MethodRef
	var firstMessages []string
	for i := 0; i < 5; i++ {
		newTree, base, fallback := unresolvableFixture(t)
		res, err := NewMerger(Options{Lenient: true}).Run(newTree, base, fallback)
		require.NoError(t, err)

		_, strictErr := Merge(newTree, base, fallback, Options{})
		var conflict *jerrors.ConflictError
		require.ErrorAs(t, strictErr, &conflict)

		if i == 0 {
			firstDropped = res.Dropped
			firstMessages = conflict.Conflicts
			continue
		}
		assert.Equal(t, firstDropped, res.Dropped)
		assert.Equal(t, firstMessages, conflict.Conflicts)
	}
}
