// Package format reads and writes persisted mapping files. Every reader drives
// a mapping.Visitor, so callers never branch on the file format once it has
// been resolved.
package format

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/standardbeagle/jremap/internal/debug"
	jerrors "github.com/standardbeagle/jremap/internal/errors"
	"github.com/standardbeagle/jremap/internal/mapping"
)

// Format is a persisted mapping file format
type Format int

const (
	Unknown Format = iota
	Tiny2
	TSRG
	TSRG2
	ProGuard
)

var formatNames = map[Format]string{
	Unknown:  "unknown",
	Tiny2:    "tiny2",
	TSRG:     "tsrg",
	TSRG2:    "tsrg2",
	ProGuard: "proguard",
}

func (f Format) String() string {
	if name, ok := formatNames[f]; ok {
		return name
	}
	return fmt.Sprintf("Format(%d)", int(f))
}

// CanWrite reports whether a writer exists for the format
func (f Format) CanWrite() bool {
	return f == Tiny2 || f == TSRG2
}

// ParseFormat resolves a format name as used in configuration
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "tiny2", "tiny", "tinyv2":
		return Tiny2, nil
	case "tsrg", "tsrg1", "srg":
		return TSRG, nil
	case "tsrg2":
		return TSRG2, nil
	case "proguard", "mojmap", "mojang":
		return ProGuard, nil
	}
	return Unknown, fmt.Errorf("unknown mapping format %q", name)
}

// detectWindow is how many leading bytes Detect needs
const detectWindow = 4096

// Detect sniffs a format from the leading bytes of a file
func Detect(header []byte) Format {
	if bytes.HasPrefix(header, []byte("tiny\t2\t")) {
		return Tiny2
	}
	if bytes.HasPrefix(header, []byte("tsrg2 ")) {
		return TSRG2
	}

	for _, line := range strings.Split(string(header), "\n") {
		line = strings.TrimRight(line, "\r")
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		if strings.Contains(line, " -> ") && strings.HasSuffix(trimmed, ":") {
			return ProGuard
		}
		if line[0] != '\t' && len(strings.Fields(line)) == 2 {
			return TSRG
		}
		return Unknown
	}
	return Unknown
}

// Options tune readers whose files carry no namespace header
type Options struct {
	// SrcNamespace names the source namespace of headerless formats
	SrcNamespace string
	// DstNamespace names the destination namespace of headerless formats
	DstNamespace string
	// Path is used in error messages
	Path string
}

// Option mutates Options
type Option func(*Options)

// WithNamespaces names the namespaces of a headerless format (TSRG, ProGuard)
func WithNamespaces(src, dst string) Option {
	return func(o *Options) {
		o.SrcNamespace = src
		o.DstNamespace = dst
	}
}

// WithPath names the file in error messages
func WithPath(path string) Option {
	return func(o *Options) { o.Path = path }
}

func buildOptions(f Format, opts []Option) Options {
	o := Options{Path: "<input>"}
	switch f {
	case TSRG:
		o.SrcNamespace = mapping.NamespaceOfficial
		o.DstNamespace = mapping.NamespaceSrg
	case ProGuard:
		// ProGuard files map readable names to obfuscated ones
		o.SrcNamespace = mapping.NamespaceMojang
		o.DstNamespace = mapping.NamespaceOfficial
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Read parses r in format f and drives v
func Read(r io.Reader, f Format, v mapping.Visitor, opts ...Option) error {
	o := buildOptions(f, opts)
	switch f {
	case Tiny2:
		return readTiny2(r, v, o)
	case TSRG, TSRG2:
		return readTSRG(r, f, v, o)
	case ProGuard:
		return readProGuard(r, v, o)
	}
	return fmt.Errorf("%s: cannot read format %s", o.Path, f)
}

// ReadFile detects the format of a file and reads it into a new tree
func ReadFile(path string, opts ...Option) (*mapping.Tree, Format, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, Unknown, err
	}
	defer file.Close()

	br := bufio.NewReaderSize(file, detectWindow)
	header, err := br.Peek(detectWindow)
	if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
		return nil, Unknown, err
	}
	f := Detect(header)
	if f == Unknown {
		return nil, Unknown, fmt.Errorf("%s: unrecognized mapping format", path)
	}
	debug.Log("FORMAT", "reading %s as %s", path, f)

	tree := mapping.NewTree()
	if err := Read(br, f, tree, append([]Option{WithPath(path)}, opts...)...); err != nil {
		return nil, f, err
	}
	return tree, f, nil
}

// Write serializes a tree in a writable format
func Write(w io.Writer, f Format, tree *mapping.Tree) error {
	var sink interface {
		mapping.Visitor
		Flush() error
	}
	switch f {
	case Tiny2:
		sink = NewTiny2Writer(w)
	case TSRG2:
		sink = NewTSRG2Writer(w)
	default:
		return fmt.Errorf("cannot write format %s", f)
	}
	if err := tree.Accept(sink); err != nil {
		return err
	}
	return sink.Flush()
}

// WriteFile writes a tree to path, replacing it only once fully written
func WriteFile(path string, f Format, tree *mapping.Tree) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".jremap-*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := Write(tmp, f, tree); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// lineReader walks a mapping file line by line, tracking the line number for errors
type lineReader struct {
	sc   *bufio.Scanner
	path string
	line int
	text string
}

func newLineReader(r io.Reader, path string) *lineReader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	return &lineReader{sc: sc, path: path}
}

func (lr *lineReader) next() bool {
	if !lr.sc.Scan() {
		return false
	}
	lr.line++
	lr.text = strings.TrimRight(lr.sc.Text(), "\r")
	return true
}

func (lr *lineReader) err() error {
	if err := lr.sc.Err(); err != nil {
		return jerrors.NewParseError(lr.path, lr.line, err)
	}
	return nil
}

func (lr *lineReader) errorf(format string, args ...any) error {
	return jerrors.NewParseError(lr.path, lr.line, fmt.Errorf(format, args...))
}

// wrap attaches the current position to a visitor error
func (lr *lineReader) wrap(err error) error {
	if err == nil {
		return nil
	}
	return jerrors.NewParseError(lr.path, lr.line, err)
}

// indent counts leading tabs
func indent(line string) int {
	n := 0
	for n < len(line) && line[n] == '\t' {
		n++
	}
	return n
}
