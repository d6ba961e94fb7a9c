package fileutils

import (
	"os"
	"path/filepath"
)

// EnsureDir creates the directory at path along with any missing parents.
func EnsureDir(path string) error {
	return os.MkdirAll(path, os.ModePerm)
}

// MkdirExclusive creates the directory at path, creating parents as needed.
// It fails if the directory itself already exists.
func MkdirExclusive(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
		return err
	}

	return os.Mkdir(path, os.ModePerm)
}
