package pathutil

import (
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToRelative(t *testing.T) {
	tests := []struct {
		name     string
		absPath  string
		rootDir  string
		expected string
	}{
		{
			name:     "simple relative path",
			absPath:  "/home/user/project/build/client.jar",
			rootDir:  "/home/user/project",
			expected: "build/client.jar",
		},
		{
			name:     "nested relative path",
			absPath:  "/home/user/project/mappings/joined/client.tsrg",
			rootDir:  "/home/user/project",
			expected: "mappings/joined/client.tsrg",
		},
		{
			name:     "root level file",
			absPath:  "/home/user/project/.jremap.kdl",
			rootDir:  "/home/user/project",
			expected: ".jremap.kdl",
		},
		{
			name:     "same directory",
			absPath:  "/home/user/project",
			rootDir:  "/home/user/project",
			expected: ".",
		},
		{
			name:     "already relative path",
			absPath:  "build/client.jar",
			rootDir:  "/home/user/project",
			expected: "build/client.jar", // Should return as-is if already relative
		},
		{
			name:     "path outside root - fallback to absolute",
			absPath:  "/opt/jdk/rt.jar",
			rootDir:  "/home/user/project",
			expected: "/opt/jdk/rt.jar", // Should return absolute if outside root
		},
		{
			name:     "empty root directory",
			absPath:  "/home/user/project/merged.tiny",
			rootDir:  "",
			expected: "/home/user/project/merged.tiny", // Fallback to absolute
		},
		{
			name:     "empty absolute path",
			absPath:  "",
			rootDir:  "/home/user/project",
			expected: "", // Empty stays empty
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ToRelative(tt.absPath, tt.rootDir)

			// Normalize separators for cross-platform testing
			if runtime.GOOS == "windows" {
				result = filepath.ToSlash(result)
				expected := filepath.ToSlash(tt.expected)
				if result != expected {
					t.Errorf("ToRelative() = %v, want %v", result, expected)
				}
			} else {
				if result != tt.expected {
					t.Errorf("ToRelative() = %v, want %v", result, tt.expected)
				}
			}
		})
	}
}

func TestToRelativeAll(t *testing.T) {
	root := "/home/user/project"
	in := []string{"/home/user/project/libs/a.jar", "/opt/jdk/rt.jar", "libs/b.jar"}

	out := ToRelativeAll(in, root)

	assert.Equal(t, []string{"libs/a.jar", "/opt/jdk/rt.jar", "libs/b.jar"}, out)
	assert.Equal(t, "/home/user/project/libs/a.jar", in[0], "input is not modified")
	assert.Empty(t, ToRelativeAll(nil, root))
}
