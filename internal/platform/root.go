package platform

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/aretw0/entitydoc/pkg/config"
)

// FindRoot looks upwards from startDir for a workspace root. Indicators are
// the configuration file, the index directory of the fs adapter, or a .git
// directory.
func FindRoot(startDir string) (string, error) {
	abs, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}

	dir := abs
	for {
		if hasFile(dir, config.DefaultPath) || hasFile(dir, ".entitydoc") || hasFile(dir, ".git") {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", fmt.Errorf("root not found")
}

func hasFile(dir, name string) bool {
	_, err := os.Stat(filepath.Join(dir, name))
	return err == nil
}
