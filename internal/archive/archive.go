// Package archive is the compiled-archive boundary: it reads every entry of a
// jar on one goroutine and writes rewritten archives atomically. Parsing of
// the bytes it returns is parallelized elsewhere.
package archive

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/standardbeagle/jremap/internal/debug"
)

const (
	classSuffix = ".class"
	moduleInfo  = "module-info.class"
)

// Entry is one archive member held in memory
type Entry struct {
	Name     string
	Data     []byte
	Method   uint16
	Modified time.Time
	Comment  string
}

// IsDir reports whether the entry is a directory record
func (e *Entry) IsDir() bool {
	return strings.HasSuffix(e.Name, "/")
}

// IsClass reports whether the entry holds a compiled class
func (e *Entry) IsClass() bool {
	return IsClass(e.Name)
}

// IsClass reports whether an entry name is a compiled class
func IsClass(name string) bool {
	return strings.HasSuffix(name, classSuffix) && !strings.HasSuffix(name, "/")
}

// IsModuleInfo reports whether an entry name is a module descriptor
func IsModuleInfo(name string) bool {
	return name == moduleInfo || strings.HasSuffix(name, "/"+moduleInfo)
}

// ClassName returns the internal class name of a class entry
// ("a/b/C.class" -> "a/b/C"). Multi-release prefixes are stripped.
func ClassName(entryName string) string {
	name := strings.TrimSuffix(entryName, classSuffix)
	if strings.HasPrefix(name, "META-INF/versions/") {
		rest := strings.TrimPrefix(name, "META-INF/versions/")
		if i := strings.IndexByte(rest, '/'); i >= 0 {
			name = rest[i+1:]
		}
	}
	return name
}

// EntryName returns the entry path of an internal class name
func EntryName(className string) string {
	return className + classSuffix
}

// Filter selects entries by doublestar globs. No include patterns selects everything.
type Filter struct {
	Include []string
	Exclude []string
}

// Match reports whether the filter selects an entry name. Malformed patterns never match.
func (f Filter) Match(name string) bool {
	for _, pattern := range f.Exclude {
		if matched, err := doublestar.Match(pattern, name); err == nil && matched {
			return false
		}
	}
	if len(f.Include) == 0 {
		return true
	}
	for _, pattern := range f.Include {
		if matched, err := doublestar.Match(pattern, name); err == nil && matched {
			return true
		}
	}
	return false
}

// Validate reports the first malformed pattern
func (f Filter) Validate() error {
	for _, pattern := range append(append([]string(nil), f.Include...), f.Exclude...) {
		if !doublestar.ValidatePattern(pattern) {
			return fmt.Errorf("invalid glob pattern %q", pattern)
		}
	}
	return nil
}

// Read loads every entry of the archive at path selected by filter
func Read(path string, filter Filter) ([]*Entry, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("open archive %s: %w", path, err)
	}
	defer zr.Close()

	entries, err := readAll(&zr.Reader, filter)
	if err != nil {
		return nil, fmt.Errorf("read archive %s: %w", path, err)
	}
	debug.Log("ARCHIVE", "read %d entries from %s", len(entries), path)
	return entries, nil
}

// ReadBytes loads the entries of an in-memory archive
func ReadBytes(data []byte, filter Filter) ([]*Entry, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}
	return readAll(zr, filter)
}

func readAll(zr *zip.Reader, filter Filter) ([]*Entry, error) {
	entries := make([]*Entry, 0, len(zr.File))
	for _, f := range zr.File {
		if !filter.Match(f.Name) {
			continue
		}
		e := &Entry{
			Name:     f.Name,
			Method:   f.Method,
			Modified: f.Modified,
			Comment:  f.Comment,
		}
		if !f.FileInfo().IsDir() {
			data, err := readFile(f)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", f.Name, err)
			}
			e.Data = data
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func readFile(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// Write encodes entries as a zip stream in the given order
func Write(w io.Writer, entries []*Entry) error {
	zw := zip.NewWriter(w)
	for _, e := range entries {
		h := &zip.FileHeader{
			Name:     e.Name,
			Method:   e.Method,
			Modified: e.Modified,
			Comment:  e.Comment,
		}
		if e.IsDir() {
			h.Method = zip.Store
			h.SetMode(os.ModeDir | 0o755)
		} else {
			h.SetMode(0o644)
		}
		fw, err := zw.CreateHeader(h)
		if err != nil {
			return fmt.Errorf("create %s: %w", e.Name, err)
		}
		if len(e.Data) > 0 {
			if _, err := fw.Write(e.Data); err != nil {
				return fmt.Errorf("write %s: %w", e.Name, err)
			}
		}
	}
	return zw.Close()
}

// WriteAtomic writes entries to a temporary file next to path and renames it
// into place only after everything succeeded. No partial archive is left behind.
func WriteAtomic(path string, entries []*Entry) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp archive: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			_ = os.Remove(tmpName)
		}
	}()

	if err = Write(tmp, entries); err != nil {
		_ = tmp.Close()
		return err
	}
	if err = tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	if err = os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	debug.Log("ARCHIVE", "wrote %d entries to %s", len(entries), path)
	return nil
}

// Classes returns the class entries, skipping module descriptors
func Classes(entries []*Entry) []*Entry {
	out := make([]*Entry, 0, len(entries))
	for _, e := range entries {
		if e.IsClass() && !IsModuleInfo(e.Name) {
			out = append(out, e)
		}
	}
	return out
}
