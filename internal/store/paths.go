package store

import (
	"fmt"
	"os"
	"path/filepath"
)

const appDirName = "go-emotion-music"

// DefaultPath returns name inside the application's per-user config
// directory, e.g. ~/.config/go-emotion-music/state.json.
func DefaultPath(name string) (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("getting user config dir: %w", err)
	}
	return filepath.Join(configDir, appDirName, name), nil
}

// WriteFileAtomic writes data to a sibling temp file with mode 0600 and
// renames it over path, creating the parent directory if needed.
func WriteFileAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("writing %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replacing %s: %w", filepath.Base(path), err)
	}
	return nil
}
