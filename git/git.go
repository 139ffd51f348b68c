// Package git determines which regions of a work tree have changed relative to a base revision.
package git

import (
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/numtide/precisefmt/precise"
	"github.com/sergi/go-diff/diffmatchpatch"
)

const DefaultBase = "HEAD"

// Change describes a file which differs from the base revision.
type Change struct {
	// Path is relative to the root of the work tree.
	Path string
	// Base holds the contents of the file at the base revision.
	Base string
	// New is true for files which do not exist at the base revision.
	New bool
}

// Repository wraps a git repository with a work tree.
type Repository struct {
	repo     *git.Repository
	worktree *git.Worktree
	log      *log.Logger
}

// Open opens the repository containing path, searching upwards for the .git directory.
func Open(path string) (*Repository, error) {
	repo, err := git.PlainOpenWithOptions(path, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("failed to open git repository at %s: %w", path, err)
	}

	return New(repo)
}

// New wraps an already opened repository.
func New(repo *git.Repository) (*Repository, error) {
	worktree, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("failed to get work tree: %w", err)
	}

	return &Repository{
		repo:     repo,
		worktree: worktree,
		log:      log.WithPrefix("git"),
	}, nil
}

// Root returns the work tree filesystem.
//
//nolint:ireturn
func (r *Repository) Root() billy.Filesystem {
	return r.worktree.Filesystem
}

// baseTree resolves the tree of the base revision.
// It returns nil if the repository has no commits yet.
func (r *Repository) baseTree(base string) (*object.Tree, error) {
	hash, err := r.repo.ResolveRevision(plumbing.Revision(base))
	if errors.Is(err, plumbing.ErrReferenceNotFound) && base == DefaultBase {
		r.log.Debug("repository has no commits, treating every file as new")

		return nil, nil //nolint:nilnil
	} else if err != nil {
		return nil, fmt.Errorf("failed to resolve revision %s: %w", base, err)
	}

	commit, err := r.repo.CommitObject(*hash)
	if err != nil {
		return nil, fmt.Errorf("failed to read commit %s: %w", hash, err)
	}

	tree, err := commit.Tree()
	if err != nil {
		return nil, fmt.Errorf("failed to read tree of commit %s: %w", hash, err)
	}

	return tree, nil
}

// Changes lists the files in the work tree or index which differ from base, sorted by path.
// Deleted files are omitted since there is nothing left to format.
func (r *Repository) Changes(base string) ([]Change, error) {
	if base == "" {
		base = DefaultBase
	}

	tree, err := r.baseTree(base)
	if err != nil {
		return nil, err
	}

	status, err := r.worktree.Status()
	if err != nil {
		return nil, fmt.Errorf("failed to get work tree status: %w", err)
	}

	var changes []Change

	for path, fs := range status {
		if fs.Worktree == git.Deleted || (fs.Staging == git.Deleted && fs.Worktree != git.Untracked) {
			continue
		}

		if !isChanged(fs.Staging) && !isChanged(fs.Worktree) {
			continue
		}

		change := Change{Path: filepath.FromSlash(path)}

		if change.Base, err = r.baseContents(tree, path); errors.Is(err, object.ErrFileNotFound) {
			change.New = true
		} else if err != nil {
			return nil, err
		}

		changes = append(changes, change)
	}

	// when comparing against an older revision, files committed since then are also changes
	if base != DefaultBase && tree != nil {
		if changes, err = r.committedChanges(tree, changes); err != nil {
			return nil, err
		}
	}

	slices.SortFunc(changes, func(a, b Change) int {
		return strings.Compare(a.Path, b.Path)
	})

	r.log.Debugf("found %d changed files relative to %s", len(changes), base)

	return changes, nil
}

// committedChanges adds files which differ between base and HEAD but are clean in the work tree.
func (r *Repository) committedChanges(base *object.Tree, changes []Change) ([]Change, error) {
	head, err := r.baseTree(DefaultBase)
	if err != nil || head == nil {
		return changes, err
	}

	diff, err := base.Diff(head)
	if err != nil {
		return nil, fmt.Errorf("failed to diff trees: %w", err)
	}

	seen := make(map[string]bool, len(changes))
	for _, c := range changes {
		seen[filepath.ToSlash(c.Path)] = true
	}

	for _, c := range diff {
		path := c.To.Name
		if path == "" || seen[path] {
			// deleted, or already known from the work tree
			continue
		}

		change := Change{Path: filepath.FromSlash(path)}

		if change.Base, err = r.baseContents(base, path); errors.Is(err, object.ErrFileNotFound) {
			change.New = true
		} else if err != nil {
			return nil, err
		}

		changes = append(changes, change)
	}

	return changes, nil
}

func (r *Repository) baseContents(tree *object.Tree, path string) (string, error) {
	if tree == nil {
		return "", object.ErrFileNotFound
	}

	file, err := tree.File(path)
	if err != nil {
		return "", err //nolint:wrapcheck
	}

	contents, err := file.Contents()
	if err != nil {
		return "", fmt.Errorf("failed to read %s at base revision: %w", path, err)
	}

	return contents, nil
}

func isChanged(code git.StatusCode) bool {
	return code != git.Unmodified
}

// ChangedRanges computes the regions of after which differ from before, one line at a time.
// Inserted or modified lines become ranges over after; a pure deletion becomes the range of the line that now sits
// at the deletion site.
func ChangedRanges(before, after string) []precise.CharacterRange {
	if before == after {
		return nil
	}

	dmp := diffmatchpatch.New()
	dmp.DiffTimeout = 0

	a, b, lines := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)

	var (
		ranges []precise.CharacterRange
		pos    int // offset into after
	)

	for _, d := range diffs {
		switch d.Type {
		case diffmatchpatch.DiffEqual:
			pos += len(d.Text)
		case diffmatchpatch.DiffInsert:
			ranges = append(ranges, precise.CharacterRange{RangeStart: pos, RangeEnd: pos + len(d.Text)})
			pos += len(d.Text)
		case diffmatchpatch.DiffDelete:
			ranges = append(ranges, lineAt(after, pos))
		}
	}

	// ranges are produced in order and within bounds, so normalizing only merges them
	ranges, _ = precise.NormalizeRanges(ranges, len(after))

	return ranges
}

// lineAt returns the range of the line in contents starting at pos.
func lineAt(contents string, pos int) precise.CharacterRange {
	if pos >= len(contents) {
		return precise.CharacterRange{RangeStart: len(contents), RangeEnd: len(contents)}
	}

	end := strings.IndexByte(contents[pos:], '\n')
	if end < 0 {
		return precise.CharacterRange{RangeStart: pos, RangeEnd: len(contents)}
	}

	return precise.CharacterRange{RangeStart: pos, RangeEnd: pos + end + 1}
}
