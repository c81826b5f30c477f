package archive

import (
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleEntries() []*Entry {
	return []*Entry{
		{Name: "META-INF/MANIFEST.MF", Data: []byte("Manifest-Version: 1.0\n"), Method: zip.Deflate},
		{Name: "a/", Method: zip.Store},
		{Name: "a/B.class", Data: []byte{0xCA, 0xFE, 0xBA, 0xBE}, Method: zip.Deflate},
		{Name: "a/C.class", Data: []byte{0xCA, 0xFE, 0xBA, 0xBE, 0x01}, Method: zip.Store},
		{Name: "module-info.class", Data: []byte{0xCA, 0xFE}, Method: zip.Deflate},
		{Name: "assets/lang/en.json", Data: []byte("{}"), Method: zip.Deflate},
	}
}

func encode(t *testing.T, entries []*Entry) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, entries))
	return buf.Bytes()
}

func TestWriteRead_PreservesOrderAndContent(t *testing.T) {
	entries := sampleEntries()
	got, err := ReadBytes(encode(t, entries), Filter{})
	require.NoError(t, err)
	require.Len(t, got, len(entries))

	for i, e := range entries {
		assert.Equal(t, e.Name, got[i].Name)
		assert.Equal(t, len(e.Data), len(got[i].Data), e.Name)
		if len(e.Data) > 0 {
			assert.Equal(t, e.Data, got[i].Data)
		}
	}
	assert.True(t, got[1].IsDir())
}

func TestFilter(t *testing.T) {
	tests := []struct {
		name   string
		filter Filter
		want   []string
	}{
		{"everything", Filter{}, []string{"META-INF/MANIFEST.MF", "a/", "a/B.class", "a/C.class", "module-info.class", "assets/lang/en.json"}},
		{"classes only", Filter{Include: []string{"**/*.class"}}, []string{"a/B.class", "a/C.class", "module-info.class"}},
		{"exclude wins", Filter{Include: []string{"**/*.class"}, Exclude: []string{"module-info.class", "a/C.class"}}, []string{"a/B.class"}},
		{"exclude only", Filter{Exclude: []string{"META-INF/**", "assets/**"}}, []string{"a/", "a/B.class", "a/C.class", "module-info.class"}},
	}

	data := encode(t, sampleEntries())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ReadBytes(data, tt.filter)
			require.NoError(t, err)
			var names []string
			for _, e := range got {
				names = append(names, e.Name)
			}
			assert.Equal(t, tt.want, names)
		})
	}
}

func TestFilter_Validate(t *testing.T) {
	assert.NoError(t, Filter{Include: []string{"**/*.class"}}.Validate())
	assert.Error(t, Filter{Exclude: []string{"a/[b"}}.Validate())
}

func TestClasses(t *testing.T) {
	classes := Classes(sampleEntries())
	require.Len(t, classes, 2)
	assert.Equal(t, "a/B.class", classes[0].Name)
	assert.Equal(t, "a/C.class", classes[1].Name)
}

func TestNames(t *testing.T) {
	assert.Equal(t, "a/b/C", ClassName("a/b/C.class"))
	assert.Equal(t, "a/b/C", ClassName("META-INF/versions/17/a/b/C.class"))
	assert.Equal(t, "a/b/C.class", EntryName("a/b/C"))
	assert.True(t, IsClass("a/b/C.class"))
	assert.False(t, IsClass("a/b/C.java"))
	assert.True(t, IsModuleInfo("module-info.class"))
	assert.True(t, IsModuleInfo("META-INF/versions/9/module-info.class"))
	assert.False(t, IsModuleInfo("a/module-infos.class"))
}

func TestReadWriteAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out", "mod.jar")

	require.NoError(t, WriteAtomic(path, sampleEntries()))

	got, err := Read(path, Filter{Include: []string{"**/*.class"}})
	require.NoError(t, err)
	assert.Len(t, got, 3)

	// No temp files remain next to the archive
	files, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "mod.jar", files[0].Name())
}

func TestWriteAtomic_FailureLeavesNothing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.jar")

	// An unknown compression method fails mid-write
	err := WriteAtomic(path, []*Entry{{Name: "x", Data: []byte("x"), Method: 99}})
	require.Error(t, err)

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
	files, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestRead_MissingFile(t *testing.T) {
	_, err := Read(filepath.Join(t.TempDir(), "missing.jar"), Filter{})
	assert.Error(t, err)
}
