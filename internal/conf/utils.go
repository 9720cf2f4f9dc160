package conf

import (
	"os"
	"path/filepath"
)

const appName = "geocapture"

// GetDefaultConfigPaths returns the directories searched for config.yaml:
// the working directory, the user config directory and /etc.
func GetDefaultConfigPaths() []string {
	paths := []string{"."}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", appName))
	}
	return append(paths, filepath.Join("/etc", appName))
}
