package test

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/adrg/xdg"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/numtide/precisefmt/config"
	cp "github.com/otiai10/copy"
	"github.com/stretchr/testify/require"
)

// ExamplesPaths are the files within the examples directory, sorted.
var ExamplesPaths = []string{
	".editorconfig",
	"docs/README.md",
	"go/cmd/tool.go",
	"go/go.mod",
	"go/greeting.go",
	"go/main.go",
	"shell/build.sh",
	"shell/clean.bash",
}

func WriteConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create a new config file: %v", err)
	}
	defer f.Close()

	encoder := toml.NewEncoder(f)
	if err = encoder.Encode(cfg); err != nil {
		t.Fatalf("failed to write to config file: %v", err)
	}
}

// TempExamples copies the examples into a new temporary directory, returning its path.
// The cache is redirected into another temporary directory for the duration of the test.
func TempExamples(t *testing.T) string {
	t.Helper()

	tempDir := t.TempDir()
	TempExamplesInDir(t, tempDir)

	t.Setenv("XDG_CACHE_HOME", t.TempDir())
	xdg.Reload()
	t.Cleanup(xdg.Reload)

	// resolve any symlinks in the temp dir, so paths match those reported by git
	resolved, err := filepath.EvalSymlinks(tempDir)
	require.NoError(t, err, "failed to resolve temp dir")

	return resolved
}

func TempExamplesInDir(t *testing.T, dir string) {
	t.Helper()
	require.NoError(t, cp.Copy("../test/examples", dir), "failed to copy test data to dir")
}

// TempGitExamples copies the examples into a new git repository and commits them.
func TempGitExamples(t *testing.T) (string, *git.Repository) {
	t.Helper()

	dir := TempExamples(t)

	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err, "failed to init git repository")

	Commit(t, repo, ".")

	return dir, repo
}

// Commit stages paths and commits them.
func Commit(t *testing.T, repo *git.Repository, paths ...string) {
	t.Helper()

	wt, err := repo.Worktree()
	require.NoError(t, err, "failed to get work tree")

	for _, path := range paths {
		_, err = wt.Add(path)
		require.NoError(t, err, "failed to stage %s", path)
	}

	_, err = wt.Commit("test", &git.CommitOptions{
		Author: &object.Signature{Name: "test", Email: "test@example.com", When: time.Now()},
	})
	require.NoError(t, err, "failed to commit")
}

func TempFile(t *testing.T, dir string, pattern string, contents *string) *os.File {
	t.Helper()

	file, err := os.CreateTemp(dir, pattern)
	require.NoError(t, err, "failed to create temp file")

	if contents == nil {
		return file
	}

	_, err = file.WriteString(*contents)
	require.NoError(t, err, "failed to write contents to temp file")
	require.NoError(t, file.Close(), "failed to close temp file")

	file, err = os.Open(file.Name())
	require.NoError(t, err, "failed to open temp file")

	return file
}

// ReadFile returns the contents of path, failing the test if it cannot be read.
func ReadFile(t *testing.T, path string) string {
	t.Helper()

	data, err := os.ReadFile(path)
	require.NoError(t, err, "failed to read %s", path)

	return string(data)
}

// WriteFile replaces the contents of path, failing the test if it cannot be written.
func WriteFile(t *testing.T, path string, contents string) {
	t.Helper()

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644), "failed to write %s", path)
}

// ChangeWorkDir changes the current working directory for the duration of the test.
// The original directory is restored when the test ends.
func ChangeWorkDir(t *testing.T, dir string) {
	t.Helper()

	// capture current cwd, so we can replace it after the test is finished
	cwd, err := os.Getwd()
	if err != nil {
		t.Fatal(fmt.Errorf("failed to get current working directory: %w", err))
	}

	t.Cleanup(func() {
		// return to the previous working directory
		if err := os.Chdir(cwd); err != nil {
			t.Fatal(fmt.Errorf("failed to return to the previous working directory: %w", err))
		}
	})

	// change to the new directory
	if err := os.Chdir(dir); err != nil {
		t.Fatal(fmt.Errorf("failed to change working directory: %w", err))
	}
}
