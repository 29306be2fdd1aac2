package platform

import (
	"os"
	"path/filepath"
	"testing"
)

func TestResolveWorkspacePath(t *testing.T) {
	t.Parallel()

	devBase := filepath.Join(os.TempDir(), DevDirName)
	inTemp := filepath.Join(os.TempDir(), "some-test", "ws")

	tests := []struct {
		name      string
		userPath  string
		forceTemp bool
		expected  string
	}{
		{"Normal Mode - Current Dir", ".", false, "."},
		{"Normal Mode - Empty", "", false, "."},
		{"Normal Mode - Specific Path", "/some/path", false, "/some/path"},
		{"Dev Mode - Empty Path", "", true, filepath.Join(devBase, "default")},
		{"Dev Mode - Current Dir", ".", true, filepath.Join(devBase, "default")},
		{"Dev Mode - Relative Name", "my-content", true, filepath.Join(devBase, "my-content")},
		{"Dev Mode - Clean Name", "../bad/path", true, filepath.Join(devBase, "path")},
		{"Dev Mode - Exception for Temp Dir", inTemp, true, inTemp},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ResolveWorkspacePath(tt.userPath, tt.forceTemp); got != tt.expected {
				t.Errorf("ResolveWorkspacePath(%q, %v) = %q, want %q", tt.userPath, tt.forceTemp, got, tt.expected)
			}
		})
	}
}

func TestIsDevRun(t *testing.T) {
	// Test binaries end in .test.
	if !IsDevRun() {
		t.Error("expected IsDevRun to be true under go test")
	}
}
