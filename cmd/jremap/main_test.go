package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/jremap/internal/archive"
	"github.com/standardbeagle/jremap/internal/classfile"
	"github.com/standardbeagle/jremap/internal/debug"
	"github.com/standardbeagle/jremap/internal/version"
)

const baseTiny = "tiny\t2\t0\tofficial\tintermediary\tnamed\n" +
	"c\ta\tclass_1\tnet/example/Foo\n" +
	"\tf\tI\tb\tfield_1\tcount\n" +
	"\tm\t()V\tc\tmethod_1\trun\n"

const newTSRG = "a net/minecraft/Foo\n" +
	"\tb f_1_\n" +
	"\tc ()V m_1_\n"

// setupTestProject writes mapping files and a compiled archive into a fresh
// project directory
func setupTestProject(t *testing.T) string {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	dir := t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "base.tiny"), []byte(baseTiny), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "joined.tsrg"), []byte(newTSRG), 0o644))

	b := classfile.NewBuilder("a", "java/lang/Object", classfile.AccPublic)
	b.Field(classfile.AccPrivate, "b", "I")
	b.Method(classfile.AccPublic, "c", "()V", b.Code(1, 1, []byte{0xB1}))
	data, err := b.Bytes()
	require.NoError(t, err)
	require.NoError(t, archive.WriteAtomic(filepath.Join(dir, "client.jar"), []*archive.Entry{
		{Name: "a.class", Data: data},
	}))
	return dir
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	debug.SetDebugOutput(nil)
	t.Cleanup(func() { debug.SetDebugOutput(os.Stderr) })

	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = &out
	err := app.Run(append([]string{"jremap"}, args...))
	return out.String(), err
}

func TestMergeAndInspect(t *testing.T) {
	dir := setupTestProject(t)
	merged := filepath.Join(dir, "merged.tiny")

	out, err := runCLI(t, "--root", dir, "merge",
		"--base", filepath.Join(dir, "base.tiny"),
		"--new", filepath.Join(dir, "joined.tsrg"),
		"-o", merged)
	require.NoError(t, err)
	assert.Contains(t, out, "Merged 1 classes")
	assert.FileExists(t, merged)

	out, err = runCLI(t, "inspect", merged)
	require.NoError(t, err)
	assert.Contains(t, out, "Namespaces:  official, srg, intermediary, named")
	assert.Contains(t, out, "Classes:     1")
	assert.Contains(t, out, "Methods:     1")
}

func TestRemapCommand(t *testing.T) {
	dir := setupTestProject(t)
	merged := filepath.Join(dir, "merged.tiny")
	_, err := runCLI(t, "--root", dir, "merge",
		"--base", filepath.Join(dir, "base.tiny"),
		"--new", filepath.Join(dir, "joined.tsrg"),
		"-o", merged)
	require.NoError(t, err)

	remapped := filepath.Join(dir, "client-srg.jar")
	out, err := runCLI(t, "--root", dir, "remap", "--to", "srg",
		"-i", filepath.Join(dir, "client.jar"), "-o", remapped, merged)
	require.NoError(t, err)
	assert.Contains(t, out, "Remapped 1 classes from official to srg")

	entries, err := archive.Read(remapped, archive.Filter{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "net/minecraft/Foo.class", entries[0].Name)
}

func TestRunCommand_WithConfigFile(t *testing.T) {
	dir := setupTestProject(t)
	kdl := `
mappings {
    base "base.tiny"
    new "joined.tsrg"
    output "build/merged.tiny"
}
archive {
    input "client.jar"
    output "build/client-named.jar"
}
cache {
    in_memory true
}
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".jremap.kdl"), []byte(kdl), 0o644))

	out, err := runCLI(t, "--root", dir, "--workers", "2", "run")
	require.NoError(t, err)
	assert.Contains(t, out, "Migrated 0 field descriptors")
	assert.Contains(t, out, "Remapped 1 classes into build/client-named.jar")
	assert.FileExists(t, filepath.Join(dir, "build", "merged.tiny"))

	entries, err := archive.Read(filepath.Join(dir, "build", "client-named.jar"), archive.Filter{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "net/example/Foo.class", entries[0].Name)
}

func TestMigrateFieldsCommand(t *testing.T) {
	dir := setupTestProject(t)
	merged := filepath.Join(dir, "merged.tiny")
	_, err := runCLI(t, "--root", dir, "merge",
		"--base", filepath.Join(dir, "base.tiny"),
		"--new", filepath.Join(dir, "joined.tsrg"),
		"-o", merged)
	require.NoError(t, err)

	out, err := runCLI(t, "--root", dir, "--no-cache", "migrate-fields", "-i", filepath.Join(dir, "client.jar"), merged)
	require.NoError(t, err)
	assert.Contains(t, out, "Migrated 0 field descriptors; wrote merged.tiny")

	out, err = runCLI(t, "--root", dir, "--no-cache", "strip-inherited", "-i", filepath.Join(dir, "client.jar"), merged)
	require.NoError(t, err)
	assert.Contains(t, out, "Stripped 0 inherited methods")
}

func TestCommandErrors(t *testing.T) {
	dir := setupTestProject(t)

	_, err := runCLI(t, "--root", dir, "merge", "--base", filepath.Join(dir, "base.tiny"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mappings.output")

	_, err = runCLI(t, "--root", dir, "merge",
		"--base", filepath.Join(dir, "joined.tsrg"),
		"--new", filepath.Join(dir, "joined.tsrg"),
		"-o", filepath.Join(dir, "out.tiny"))
	require.Error(t, err)
	assert.NoFileExists(t, filepath.Join(dir, "out.tiny"))

	_, err = runCLI(t, "--root", dir, "--workers", "-1", "run")
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "workers"))
}

func TestGlobalFlags_VersionAndVerbose(t *testing.T) {
	out, err := runCLI(t, "--version")
	require.NoError(t, err)
	assert.Contains(t, out, version.Version)

	out, err = runCLI(t, "-v")
	require.NoError(t, err)
	assert.Contains(t, out, version.Version)

	dir := setupTestProject(t)
	_, err = runCLI(t, "--root", dir, "--verbose", "inspect", filepath.Join(dir, "base.tiny"))
	require.NoError(t, err)
}

func TestLogFileFlag(t *testing.T) {
	dir := setupTestProject(t)
	t.Setenv("TMPDIR", t.TempDir())

	out, err := runCLI(t, "--root", dir, "--verbose", "--log-file", "merge",
		"--base", filepath.Join(dir, "base.tiny"),
		"--new", filepath.Join(dir, "joined.tsrg"),
		"-o", filepath.Join(dir, "merged.tiny"))
	require.NoError(t, err)

	var logPath string
	for _, line := range strings.Split(out, "\n") {
		if p, ok := strings.CutPrefix(line, "Logging to "); ok {
			logPath = p
		}
	}
	require.NotEmpty(t, logPath)
	content, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(content), "component=PIPELINE")
}
