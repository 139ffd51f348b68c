package matcher_test

import (
	"testing"

	"github.com/numtide/precisefmt/matcher"
	"github.com/stretchr/testify/require"
)

func testResults(t *testing.T, as *require.Assertions, matchFn matcher.MatchFn, results map[matcher.Result][]string) {
	t.Helper()

	for expected, paths := range results {
		for _, path := range paths {
			actual, err := matchFn(path)
			as.NoError(err)
			as.Equal(expected, actual, "expected %v for path %s; got %v", expected, path, actual)
		}
	}
}

func testGlobMatcher(t *testing.T, as *require.Assertions, create func([]string) (matcher.MatchFn, error), target matcher.Result) {
	t.Helper()

	// Empty list; nothing is selected or rejected.
	m, err := create([]string{})
	as.NoError(err)
	testResults(t, as, m, map[matcher.Result][]string{
		matcher.Indifferent: {"foo.txt", "test/foo/bar.txt"},
	})

	// File extension
	m, err = create([]string{"*.txt"})
	as.NoError(err)
	testResults(t, as, m, map[matcher.Result][]string{
		target:              {"test/foo/bar.txt"},
		matcher.Indifferent: {"test/foo/bar.txtz", "test/foo/bar.flob"},
	})

	// Prefix matching
	m, err = create([]string{"test/*"})
	as.NoError(err)
	testResults(t, as, m, map[matcher.Result][]string{
		target:              {"test/bar.txt", "test/foo/bar.txt"},
		matcher.Indifferent: {"/test/foo/bar.txt"},
	})

	// Exact matches
	m, err = create([]string{"LICENSE"})
	as.NoError(err)
	testResults(t, as, m, map[matcher.Result][]string{
		target:              {"LICENSE"},
		matcher.Indifferent: {"test/LICENSE", "LICENSE.txt"},
	})

	_, err = create([]string{"[unterminated"})
	as.ErrorContains(err, "failed to compile pattern")
}

func TestGlobExclusion(t *testing.T) {
	as := require.New(t)

	testGlobMatcher(t, as, matcher.GlobExclusion, matcher.Unwanted)
}
