package precise

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/go-git/go-billy/v5"
)

var ErrNotFound = errors.New("file not found")

// FindUp searches upwards from the directory containing path for the first file matching one of names, stopping at
// the root of fs.
// It returns the path of the file relative to the root of fs.
func FindUp(fs billy.Filesystem, path string, names ...string) (string, error) {
	for _, dir := range Parents(path) {
		for _, name := range names {
			candidate := filepath.Join(dir, name)
			if fileExists(fs, candidate) {
				return candidate, nil
			}
		}
	}

	return "", fmt.Errorf("%w: no %v above %s", ErrNotFound, names, path)
}

// Parents returns the directories containing path, nearest first, ending with the root.
func Parents(path string) []string {
	var dirs []string

	dir := filepath.Dir(filepath.Clean(path))
	for {
		dirs = append(dirs, dir)

		if dir == "." || dir == string(filepath.Separator) {
			return dirs
		}

		dir = filepath.Dir(dir)
	}
}

func fileExists(fs billy.Filesystem, path string) bool {
	info, err := fs.Stat(path)
	if err != nil {
		return false
	}

	return info.Mode().IsRegular()
}
