package descriptor

import (
	"strings"
)

// ToDotted converts an internal name (a/b/C$D) to its dotted binary form (a.b.C$D)
func ToDotted(internal string) string {
	return strings.ReplaceAll(internal, "/", ".")
}

// ToInternal converts a dotted binary name to internal form
func ToInternal(dotted string) string {
	return strings.ReplaceAll(dotted, ".", "/")
}

// SimpleName returns the last path segment of an internal name
func SimpleName(internal string) string {
	if i := strings.LastIndexByte(internal, '/'); i >= 0 {
		return internal[i+1:]
	}
	return internal
}

// Package returns the package part of an internal name, or "" for the default package
func Package(internal string) string {
	if i := strings.LastIndexByte(internal, '/'); i >= 0 {
		return internal[:i]
	}
	return ""
}

// OuterName returns the enclosing class of a nested class name (a/B$C -> a/B)
func OuterName(internal string) (string, bool) {
	simple := SimpleName(internal)
	i := strings.LastIndexByte(simple, '$')
	if i <= 0 || i == len(simple)-1 {
		return "", false
	}
	return internal[:len(internal)-len(simple)+i], true
}

// TopLevelName strips every nesting level (a/B$C$D -> a/B)
func TopLevelName(internal string) string {
	simple := SimpleName(internal)
	if i := strings.IndexByte(simple, '$'); i > 0 {
		return internal[:len(internal)-len(simple)+i]
	}
	return internal
}

// IsDottedClassName reports whether s has the shape of a dotted fully
// qualified class name: at least one package segment, every segment a Java
// identifier. It does not check that the class exists.
func IsDottedClassName(s string) bool {
	if len(s) < 3 || !strings.Contains(s, ".") {
		return false
	}
	for _, seg := range strings.Split(s, ".") {
		if !isIdentifier(seg) {
			return false
		}
	}
	return true
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '_' || c == '$':
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}
