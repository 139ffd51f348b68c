// Package walk produces the files a run should consider, along with how much of each file is treated as changed.
package walk

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/numtide/precisefmt/git"
	"github.com/numtide/precisefmt/precise"
	"github.com/numtide/precisefmt/stats"
)

type Type int

const (
	Auto Type = iota
	Filesystem
	Git

	BatchSize = 1024
)

func (t Type) String() string {
	switch t {
	case Auto:
		return "auto"
	case Filesystem:
		return "filesystem"
	case Git:
		return "git"
	default:
		return fmt.Sprintf("Type(%d)", int(t))
	}
}

// File is a candidate for formatting.
type File struct {
	// RelPath is relative to the tree root.
	RelPath string
	// Base holds the contents of the file at the base revision.
	Base string
	// Whole is true when every byte of the file is treated as changed.
	Whole bool
}

// Ranges returns the regions of contents which should be formatted.
func (f *File) Ranges(contents string) []precise.CharacterRange {
	if f.Whole {
		return precise.WholeFile(contents)
	}

	return git.ChangedRanges(f.Base, contents)
}

// String returns the file's path as a string.
func (f *File) String() string {
	return f.RelPath
}

// Reader is an interface for reading files.
type Reader interface {
	Read(ctx context.Context, files []*File) (n int, err error)
	Close() error
}

// CompositeReader combines multiple Readers into one.
// It iterates over the given readers, reading each until completion.
type CompositeReader struct {
	idx     int
	current Reader
	readers []Reader
}

func (c *CompositeReader) Read(ctx context.Context, files []*File) (n int, err error) {
	if c.current == nil {
		// check if we have exhausted all the readers
		if c.idx >= len(c.readers) {
			return 0, io.EOF
		}

		// if not, select the next reader
		c.current = c.readers[c.idx]
		c.idx++
	}

	// attempt a read
	n, err = c.current.Read(ctx, files)

	// check if the current reader has been exhausted
	if errors.Is(err, io.EOF) {
		// reset the error if it's EOF
		err = nil
		// set the current reader to nil so we try to read from the next reader on the next call
		c.current = nil
	} else if err != nil {
		err = fmt.Errorf("failed to read from current reader: %w", err)
	}

	// return the number of files read in this call and any error
	return n, err
}

func (c *CompositeReader) Close() error {
	for _, reader := range c.readers {
		if err := reader.Close(); err != nil {
			return fmt.Errorf("failed to close reader: %w", err)
		}
	}

	return nil
}

// Options control which files a Reader produces.
type Options struct {
	// Base is the revision changes are determined against.
	Base string
	// All treats every file as wholly changed, walking the filesystem instead of the git changes.
	All bool
}

// NewReader creates a reader for path, which is relative to the root of fs.
// repo may be nil when the tree is not within a git repository.
//
//nolint:ireturn
func NewReader(
	walkType Type,
	repo *git.Repository,
	fs billy.Filesystem,
	path string,
	opts Options,
	statz *stats.Stats,
) (Reader, error) {
	switch walkType {
	case Auto:
		if repo != nil && !opts.All {
			return NewReader(Git, repo, fs, path, opts, statz)
		}

		return NewReader(Filesystem, repo, fs, path, opts, statz)
	case Filesystem:
		return NewFilesystemReader(fs, path, statz, BatchSize), nil
	case Git:
		if repo == nil {
			return nil, errors.New("git walk requires a git repository")
		}

		return NewGitReader(repo, path, opts.Base, statz, BatchSize), nil
	default:
		return nil, fmt.Errorf("unknown walk type: %v", walkType)
	}
}

// NewCompositeReader returns a composite reader for each of paths, which must already be relative to the root of fs.
// If no paths are provided the whole tree is read.
//
//nolint:ireturn
func NewCompositeReader(
	walkType Type,
	repo *git.Repository,
	fs billy.Filesystem,
	paths []string,
	opts Options,
	statz *stats.Stats,
) (Reader, error) {
	// if no paths are provided we default to processing the tree root
	if len(paths) == 0 {
		return NewReader(walkType, repo, fs, "", opts, statz)
	}

	readers := make([]Reader, len(paths))

	for idx, path := range paths {
		path = filepath.Clean(path)
		if path == ".." || strings.HasPrefix(path, ".."+string(filepath.Separator)) || filepath.IsAbs(path) {
			return nil, fmt.Errorf("path %s not inside the tree root", path)
		}

		reader, err := NewReader(walkType, repo, fs, path, opts, statz)
		if err != nil {
			return nil, fmt.Errorf("failed to create reader for %s: %w", path, err)
		}

		readers[idx] = reader
	}

	return &CompositeReader{
		readers: readers,
	}, nil
}

// within returns true if path is prefix or lies beneath it.
func within(prefix string, path string) bool {
	prefix = filepath.Clean(prefix)
	if prefix == "." {
		return true
	}

	return path == prefix || strings.HasPrefix(path, prefix+string(filepath.Separator))
}
