package matcher

import (
	"fmt"

	"github.com/gobwas/glob"
)

func compileGlobs(patterns []string) ([]glob.Glob, error) {
	globs := make([]glob.Glob, len(patterns))

	for i, pattern := range patterns {
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("failed to compile pattern '%v': %w", pattern, err)
		}

		globs[i] = g
	}

	return globs, nil
}

func anyMatch(globs []glob.Glob, path string) bool {
	for _, g := range globs {
		if g.Match(path) {
			return true
		}
	}

	return false
}

// GlobExclusion returns a matcher rejecting any path which matches one of patterns.
func GlobExclusion(patterns []string) (MatchFn, error) {
	globs, err := compileGlobs(patterns)
	if err != nil {
		return nil, err
	}

	return func(path string) (Result, error) {
		if anyMatch(globs, path) {
			return Unwanted, nil
		}

		return Indifferent, nil
	}, nil
}
