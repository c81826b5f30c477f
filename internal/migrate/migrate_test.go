package migrate

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/jremap/internal/archive"
	"github.com/standardbeagle/jremap/internal/cache"
	"github.com/standardbeagle/jremap/internal/classfile"
	"github.com/standardbeagle/jremap/internal/mapping"
)

const (
	official     = mapping.NamespaceOfficial
	intermediary = mapping.NamespaceIntermediary
	named        = mapping.NamespaceNamed
)

type member struct {
	access uint16
	name   string
	desc   string
}

func classEntry(t *testing.T, name, super string, fields []member, methods ...member) *archive.Entry {
	t.Helper()
	b := classfile.NewBuilder(name, super, classfile.AccPublic)
	for _, f := range fields {
		b.Field(f.access, f.name, f.desc)
	}
	for _, m := range methods {
		b.Method(m.access, m.name, m.desc)
	}
	data, err := b.Bytes()
	require.NoError(t, err)
	return &archive.Entry{Name: archive.EntryName(name), Data: data}
}

func newTree(t *testing.T) *mapping.Tree {
	tree, err := mapping.NewTreeWithNamespaces(official, intermediary, named)
	require.NoError(t, err)
	return tree
}

// scenarioA: a/S declares m()V and is not mapped; a/B and a/C override it
// and map it to different names
func scenarioA(t *testing.T) (*mapping.Tree, []*archive.Entry) {
	tree := newTree(t)
	require.NoError(t, tree.VisitClass("a/B", []string{"b", "Foo"}))
	require.NoError(t, tree.VisitMethod("m", "()V", []string{"method_1", "doThing"}))
	require.NoError(t, tree.VisitMethod("n", "()V", []string{"method_9", "keep"}))
	require.NoError(t, tree.VisitClass("a/C", nil))
	require.NoError(t, tree.VisitMethod("m", "()V", []string{"method_2", "doOther"}))
	require.NoError(t, tree.VisitEnd())

	pub := classfile.AccPublic
	classes := []*archive.Entry{
		classEntry(t, "a/S", "java/lang/Object", nil, member{pub, "m", "()V"}),
		classEntry(t, "a/B", "a/S", nil, member{pub, "m", "()V"}, member{pub, "n", "()V"}),
		classEntry(t, "a/C", "a/S", nil, member{pub, "m", "()V"}),
	}
	return tree, classes
}

func inheritanceOpts(store cache.Store) InheritanceOptions {
	return InheritanceOptions{
		SourceNamespace:       official,
		IntermediateNamespace: intermediary,
		Workers:               2,
		Cache:                 store,
	}
}

func TestComputeMethodsToStrip_ScenarioA(t *testing.T) {
	tree, classes := scenarioA(t)

	set, err := ComputeMethodsToStrip(context.Background(), tree, classes, inheritanceOpts(nil))
	require.NoError(t, err)
	assert.Equal(t, []mapping.MemberKey{
		{Name: "method_1", Desc: "()V"},
		{Name: "method_2", Desc: "()V"},
	}, set.Sorted())

	removed, err := ApplyMethodStrip(tree, intermediary, set)
	require.NoError(t, err)
	assert.Len(t, removed, 2)
	assert.Nil(t, tree.Class("a/B").Method("m", "()V"))
	assert.Nil(t, tree.Class("a/C").Method("m", "()V"))
	assert.NotNil(t, tree.Class("a/B").Method("n", "()V"))
}

func TestComputeMethodsToStrip_AgreeingNamesAreKept(t *testing.T) {
	tree, classes := scenarioA(t)
	tree.Class("a/C").Method("m", "()V").SetDstName(0, "method_1")

	set, err := ComputeMethodsToStrip(context.Background(), tree, classes, inheritanceOpts(nil))
	require.NoError(t, err)
	assert.Equal(t, 0, set.Len())
}

func TestComputeMethodsToStrip_MappedSuperIsNotAmbiguous(t *testing.T) {
	tree, classes := scenarioA(t)
	require.NoError(t, tree.VisitClass("a/S", nil))
	require.NoError(t, tree.VisitMethod("m", "()V", []string{"method_0", "base"}))
	require.NoError(t, tree.VisitEnd())

	set, err := ComputeMethodsToStrip(context.Background(), tree, classes, inheritanceOpts(nil))
	require.NoError(t, err)
	assert.Equal(t, 0, set.Len())
}

func TestComputeMethodsToStrip_PrivateSuperMethodIsIgnored(t *testing.T) {
	tree, _ := scenarioA(t)
	pub := classfile.AccPublic
	classes := []*archive.Entry{
		classEntry(t, "a/S", "java/lang/Object", nil, member{classfile.AccPrivate, "m", "()V"}),
		classEntry(t, "a/B", "a/S", nil, member{pub, "m", "()V"}),
		classEntry(t, "a/C", "a/S", nil, member{pub, "m", "()V"}),
	}

	set, err := ComputeMethodsToStrip(context.Background(), tree, classes, inheritanceOpts(nil))
	require.NoError(t, err)
	assert.Equal(t, 0, set.Len())
}

func TestComputeMethodsToStrip_Cache(t *testing.T) {
	store := cache.NewMemoryStore(cache.DefaultMemoryConfig())

	tree, classes := scenarioA(t)
	first, err := ComputeMethodsToStrip(context.Background(), tree, classes, inheritanceOpts(store))
	require.NoError(t, err)
	assert.Equal(t, int64(0), store.Stats().Hits)

	tree, classes = scenarioA(t)
	second, err := ComputeMethodsToStrip(context.Background(), tree, classes, inheritanceOpts(store))
	require.NoError(t, err)
	assert.Equal(t, int64(1), store.Stats().Hits)
	assert.Equal(t, first.Sorted(), second.Sorted())

	opts := inheritanceOpts(store)
	opts.ForceRefresh = true
	third, err := ComputeMethodsToStrip(context.Background(), tree, classes, opts)
	require.NoError(t, err)
	assert.Equal(t, int64(1), store.Stats().Hits)
	assert.Equal(t, first.Sorted(), third.Sorted())
}

func TestComputeMethodsToStrip_UnknownNamespace(t *testing.T) {
	tree, classes := scenarioA(t)
	opts := inheritanceOpts(nil)
	opts.IntermediateNamespace = "srg"
	_, err := ComputeMethodsToStrip(context.Background(), tree, classes, opts)
	assert.Error(t, err)
}

func TestHierarchy_Cycle(t *testing.T) {
	classes := []*archive.Entry{
		classEntry(t, "a/X", "a/Y", nil),
		classEntry(t, "a/Y", "a/X", nil),
	}
	tree := newTree(t)
	require.NoError(t, tree.VisitEnd())

	set, err := ComputeMethodsToStrip(context.Background(), tree, classes, inheritanceOpts(nil))
	require.NoError(t, err)
	assert.Equal(t, 0, set.Len())
}

// scenarioB: the tree records a/B#x as I, the compiled class has J
func scenarioB(t *testing.T) (*mapping.Tree, []*archive.Entry) {
	tree := newTree(t)
	require.NoError(t, tree.VisitClass("a/B", []string{"class_1", "Foo"}))
	require.NoError(t, tree.VisitField("x", "I", []string{"field_1", "count"}))
	require.NoError(t, tree.VisitField("y", "La/B;", []string{"field_2", "self"}))
	require.NoError(t, tree.VisitClass("a/D", []string{"class_2", "Bar"}))
	require.NoError(t, tree.VisitEnd())

	classes := []*archive.Entry{
		classEntry(t, "a/B", "java/lang/Object", []member{
			{classfile.AccPrivate, "x", "J"},
			{classfile.AccPrivate, "y", "La/B;"},
		}),
	}
	return tree, classes
}

func TestComputeDescriptorMigrations_ScenarioB(t *testing.T) {
	store := cache.NewMemoryStore(cache.DefaultMemoryConfig())
	tree, classes := scenarioB(t)

	res, err := ComputeDescriptorMigrations(context.Background(), classes, tree, FieldOptions{Cache: store})
	require.NoError(t, err)
	require.Equal(t, 1, res.Len())
	assert.False(t, res.FromCache)

	m := res.Migrations[0]
	assert.Equal(t, "a/B", m.Class)
	assert.Equal(t, "x", m.Field)
	assert.Equal(t, "I", m.OldDesc)
	assert.Equal(t, "J", m.NewDesc)
	assert.Equal(t, MigrationID("a/B", "x", "I", "J"), m.ID)

	f := tree.Class("a/B").Field("x", "J")
	require.NotNil(t, f)
	assert.Equal(t, "J", f.SrcDesc)
	assert.Equal(t, "count", f.Name(1))

	// The persisted document carries the migration ID
	key := inputsKey("fields/", func() *mapping.Tree { tr, _ := scenarioB(t); return tr }(), classes, "")
	data, ok, err := store.Get(key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Contains(t, string(data), m.ID)

	// A fresh tree with the same inputs is migrated from the cache
	tree, classes = scenarioB(t)
	res, err = ComputeDescriptorMigrations(context.Background(), classes, tree, FieldOptions{Cache: store})
	require.NoError(t, err)
	assert.True(t, res.FromCache)
	assert.NotNil(t, tree.Class("a/B").Field("x", "J"))
}

func TestComputeDescriptorMigrations_TranslatesThroughClassMapping(t *testing.T) {
	tree := newTree(t)
	require.NoError(t, tree.VisitClass("a", []string{"net/Foo", "net/Foo"}))
	require.NoError(t, tree.VisitField("f", "I", []string{"field_1", "items"}))
	require.NoError(t, tree.VisitClass("b", []string{"net/Bar", "net/Bar"}))
	require.NoError(t, tree.VisitEnd())

	// Compiled in the intermediate namespace with a changed array type
	classes := []*archive.Entry{
		classEntry(t, "net/Foo", "java/lang/Object", []member{{classfile.AccPrivate, "field_1", "[Lnet/Bar;"}}),
	}

	res, err := ComputeDescriptorMigrations(context.Background(), classes, tree, FieldOptions{CompiledNamespace: intermediary})
	require.NoError(t, err)
	require.Equal(t, 1, res.Len())
	assert.Equal(t, "[Lb;", res.Migrations[0].NewDesc)
	assert.NotNil(t, tree.Class("a").Field("f", "[Lb;"))
}

func TestComputeDescriptorMigrations_NothingChanged(t *testing.T) {
	tree, _ := scenarioB(t)
	classes := []*archive.Entry{
		classEntry(t, "a/B", "java/lang/Object", []member{
			{classfile.AccPrivate, "x", "I"},
			{classfile.AccPrivate, "y", "La/B;"},
		}),
	}
	before := mapping.Fingerprint(tree)

	res, err := ComputeDescriptorMigrations(context.Background(), classes, tree, FieldOptions{})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Len())
	assert.Equal(t, before, mapping.Fingerprint(tree))
}

func TestComputeDescriptorMigrations_MalformedClass(t *testing.T) {
	tree, _ := scenarioB(t)
	classes := []*archive.Entry{{Name: "a/B.class", Data: []byte{0xCA, 0xFE}}}

	_, err := ComputeDescriptorMigrations(context.Background(), classes, tree, FieldOptions{})
	assert.Error(t, err)
}

func TestComputeDescriptorMigrations_CancelledScanIsNotCached(t *testing.T) {
	store := cache.NewMemoryStore(cache.DefaultMemoryConfig())
	tree, classes := scenarioB(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := ComputeDescriptorMigrations(ctx, classes, tree, FieldOptions{Cache: store})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int64(0), store.Stats().Puts)

	tree, classes = scenarioB(t)
	res, err := ComputeDescriptorMigrations(context.Background(), classes, tree, FieldOptions{Cache: store})
	require.NoError(t, err)
	assert.False(t, res.FromCache)
	require.Equal(t, 1, res.Len())
	assert.Equal(t, "J", res.Migrations[0].NewDesc)
}

func TestComputeMethodsToStrip_CancelledScanFails(t *testing.T) {
	tree, classes := scenarioA(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ComputeMethodsToStrip(ctx, tree, classes, inheritanceOpts(nil))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestApplyFieldMigrations_MissingClass(t *testing.T) {
	tree, _ := scenarioB(t)
	err := ApplyFieldMigrations(tree, []FieldMigration{{ID: "x", Class: "a/Nope", Field: "x", OldDesc: "I", NewDesc: "J"}})
	assert.Error(t, err)
}
