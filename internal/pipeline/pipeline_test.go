package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/jremap/internal/archive"
	"github.com/standardbeagle/jremap/internal/cache"
	"github.com/standardbeagle/jremap/internal/classfile"
	"github.com/standardbeagle/jremap/internal/config"
	jerrors "github.com/standardbeagle/jremap/internal/errors"
	"github.com/standardbeagle/jremap/internal/mapping"
)

const baseTiny = "tiny\t2\t0\tofficial\tintermediary\tnamed\n" +
	"c\ta\tclass_1\tnet/example/Foo\n" +
	"\tf\tI\tb\tfield_1\tcount\n" +
	"\tm\t()V\tc\tmethod_1\trun\n"

const newTSRG = "a net/minecraft/Foo\n" +
	"\tb f_1_\n" +
	"\tc ()V m_1_\n"

// project writes the mapping files and a compiled archive in which field b
// has become a long
func project(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "base.tiny"), []byte(baseTiny), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "joined.tsrg"), []byte(newTSRG), 0o644))

	b := classfile.NewBuilder("a", "java/lang/Object", classfile.AccPublic)
	b.Field(classfile.AccPrivate, "b", "J")
	b.Method(classfile.AccPublic, "c", "()V", b.Code(1, 1, []byte{0xB1}))
	data, err := b.Bytes()
	require.NoError(t, err)
	require.NoError(t, archive.WriteAtomic(filepath.Join(dir, "client.jar"), []*archive.Entry{
		{Name: "META-INF/MANIFEST.MF", Data: []byte("Manifest-Version: 1.0\n")},
		{Name: "a.class", Data: data},
	}))

	cfg := config.Default()
	cfg.Project.Root = dir
	cfg.Mappings.Base = "base.tiny"
	cfg.Mappings.New = "joined.tsrg"
	cfg.Mappings.NewNamespaces = []string{mapping.NamespaceOfficial, mapping.NamespaceSrg}
	cfg.Mappings.Output = "build/merged.tiny"
	cfg.Archive.Input = "client.jar"
	cfg.Archive.Output = "build/client-named.jar"
	cfg.Cache.InMemory = true
	cfg.Performance.Workers = 2
	require.NoError(t, config.ValidateConfig(cfg))
	return cfg
}

func TestRun(t *testing.T) {
	cfg := project(t)

	res, err := Run(context.Background(), cfg)
	require.NoError(t, err)

	tree := res.Tree()
	assert.Equal(t, []string{"srg", "intermediary", "named"}, tree.DstNamespaces())
	c := tree.Class("a")
	require.NotNil(t, c)
	assert.Equal(t, []string{"net/minecraft/Foo", "class_1", "net/example/Foo"}, c.DstNames)

	require.NotNil(t, res.Fields)
	assert.Equal(t, 1, res.Fields.Len())
	assert.NotNil(t, c.Field("b", "J"), "field descriptor follows the compiled class")
	assert.Empty(t, res.Stripped)

	written, err := ReadMappings(res.MappingsOut, nil)
	require.NoError(t, err)
	assert.Equal(t, mapping.Fingerprint(tree), mapping.Fingerprint(written))

	require.NotNil(t, res.Remap)
	assert.Equal(t, int64(1), res.Remap.Classes)
	assert.Equal(t, int64(1), res.Remap.Renamed)

	entries, err := archive.Read(res.ArchiveOut, archive.Filter{})
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name)
	}
	assert.Equal(t, []string{"META-INF/MANIFEST.MF", "net/example/Foo.class"}, names)

	cf, err := classfile.Parse(entries[1].Data)
	require.NoError(t, err)
	field, desc, err := cf.MemberName(cf.Fields[0])
	require.NoError(t, err)
	assert.Equal(t, "count", field)
	assert.Equal(t, "J", desc)
}

func TestRun_MergeOnly(t *testing.T) {
	cfg := project(t)
	cfg.Archive.Input = ""
	cfg.Archive.Output = ""

	res, err := Run(context.Background(), cfg)
	require.NoError(t, err)
	assert.Nil(t, res.Fields)
	assert.Nil(t, res.Remap)
	assert.Empty(t, res.ArchiveOut)
	assert.FileExists(t, res.MappingsOut)
}

func TestRun_NothingWrittenOnFailure(t *testing.T) {
	cfg := project(t)
	cfg.Migrate.CompiledNamespace = "mojang"

	_, err := Run(context.Background(), cfg)
	require.Error(t, err)
	assert.NoFileExists(t, cfg.Path(cfg.Mappings.Output))
	assert.NoFileExists(t, cfg.Path(cfg.Archive.Output))
}

func TestMergeMappings_RequiresInputs(t *testing.T) {
	cfg := config.Default()

	_, err := MergeMappings(cfg)
	var cfgErr *jerrors.ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "mappings.base", cfgErr.Field)
}

func TestMergeMappings_FallbackIsRekeyed(t *testing.T) {
	cfg := project(t)
	// ProGuard files map readable names to obfuscated ones
	proguard := "net.example.Foo -> a:\n" +
		"    void run() -> c\n"
	require.NoError(t, os.WriteFile(cfg.Path("client.txt"), []byte(proguard), 0o644))
	cfg.Mappings.Fallback = "client.txt"
	cfg.Mappings.FallbackKey = mapping.NamespaceOfficial

	res, err := MergeMappings(cfg)
	require.NoError(t, err)
	assert.NotNil(t, res.Tree.Class("a"))
}

func TestOpenCache(t *testing.T) {
	cfg := config.Default()
	cfg.Project.Root = t.TempDir()

	cfg.Cache.Enabled = false
	store, err := OpenCache(cfg)
	require.NoError(t, err)
	assert.Nil(t, store)

	cfg.Cache.Enabled = true
	cfg.Cache.InMemory = true
	store, err = OpenCache(cfg)
	require.NoError(t, err)
	assert.IsType(t, &cache.MemoryStore{}, store)
	require.NoError(t, store.Close())

	cfg.Cache.InMemory = false
	store, err = OpenCache(cfg)
	require.NoError(t, err)
	assert.IsType(t, &cache.BadgerStore{}, store)
	require.NoError(t, store.Put("k", []byte("v")))
	require.NoError(t, store.Close())
	assert.DirExists(t, cfg.Path(cfg.Cache.Dir))
}

func TestSummarize(t *testing.T) {
	tree, err := mapping.NewTreeWithNamespaces(mapping.NamespaceOfficial, mapping.NamespaceNamed)
	require.NoError(t, err)
	require.NoError(t, tree.VisitClass("a", []string{"Foo"}))
	require.NoError(t, tree.VisitComment("The foo."))
	require.NoError(t, tree.VisitField("b", "I", []string{"count"}))
	require.NoError(t, tree.VisitMethod("c", "(I)V", []string{"run"}))
	require.NoError(t, tree.VisitMethodArg(0, 1, "", []string{"times"}))
	require.NoError(t, tree.VisitEnd())

	s := Summarize(tree)
	assert.Equal(t, []string{"official", "named"}, s.Namespaces)
	assert.Equal(t, 1, s.Classes)
	assert.Equal(t, 1, s.Fields)
	assert.Equal(t, 1, s.Methods)
	assert.Equal(t, 1, s.Args)
	assert.Equal(t, 1, s.Comments)
	assert.NotEmpty(t, s.Fingerprint)
}
