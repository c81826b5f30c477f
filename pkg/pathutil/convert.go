// Package pathutil converts between the absolute paths jremap works with and
// the root-relative paths it reports to users.
package pathutil

import (
	"path/filepath"
	"strings"
)

// ToRelative converts an absolute path to relative based on a root directory.
// Falls back to the original path if conversion fails or path is already relative.
//
// Examples:
//   - ToRelative("/home/user/project/build/client.jar", "/home/user/project") → "build/client.jar"
//   - ToRelative("/opt/jdk/rt.jar", "/home/user/project") → "/opt/jdk/rt.jar" (outside root)
//   - ToRelative("build/client.jar", "/home/user/project") → "build/client.jar" (already relative)
func ToRelative(absPath, rootDir string) string {
	if absPath == "" || rootDir == "" {
		return absPath
	}
	if !filepath.IsAbs(absPath) {
		return absPath
	}

	absPath = filepath.Clean(absPath)
	rootDir = filepath.Clean(rootDir)

	relPath, err := filepath.Rel(rootDir, absPath)
	if err != nil {
		// Different volumes on Windows
		return absPath
	}

	// Outside the root the absolute path is clearer
	if strings.HasPrefix(relPath, "..") {
		return absPath
	}

	return relPath
}

// ToRelativeAll converts every path of a list, leaving the input untouched
func ToRelativeAll(paths []string, rootDir string) []string {
	if len(paths) == 0 {
		return paths
	}
	converted := make([]string, len(paths))
	for i, p := range paths {
		converted[i] = ToRelative(p, rootDir)
	}
	return converted
}
