// Package ignore builds path predicates from gitignore style ignore files.
package ignore

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	"github.com/go-git/go-git/v5/plumbing/format/gitignore"
	"github.com/numtide/precisefmt/precise"
)

const commentPrefix = "#"

// Parse compiles the patterns in contents and returns a predicate which is true for every path not ignored by them.
// Paths given to the predicate are slash or OS separated and relative to the directory of the ignore file.
func Parse(contents string) precise.Predicate {
	var patterns []gitignore.Pattern

	scanner := bufio.NewScanner(strings.NewReader(contents))
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.HasPrefix(line, commentPrefix) || strings.TrimSpace(line) == "" {
			continue
		}

		patterns = append(patterns, gitignore.ParsePattern(line, nil))
	}

	if len(patterns) == 0 {
		return precise.Always
	}

	matcher := gitignore.NewMatcher(patterns)

	return func(path string) bool {
		return !matcher.Match(split(path), false)
	}
}

// Load reads the ignore file named name from dir within fs.
// If there is no such file, the returned predicate keeps every path.
func Load(fs billy.Filesystem, dir string, name string) (precise.Predicate, error) {
	path := filepath.Join(dir, name)

	contents, err := util.ReadFile(fs, path)
	if errors.Is(err, os.ErrNotExist) {
		return precise.Always, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to read ignore file %s: %w", path, err)
	}

	return Parse(string(contents)), nil
}

func split(path string) []string {
	path = filepath.ToSlash(filepath.Clean(path))
	path = strings.TrimPrefix(path, "./")

	return strings.Split(path, "/")
}
