package walk

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	"github.com/numtide/precisefmt/stats"
	"golang.org/x/sync/errgroup"
)

const gitDir = ".git"

// FilesystemReader traverses and reads files from a specified root directory and its subdirectories.
// Every file it produces is treated as wholly changed.
type FilesystemReader struct {
	fs    billy.Filesystem
	path  string
	stats *stats.Stats

	log *log.Logger

	filesCh chan *File

	eg     *errgroup.Group
	start  sync.Once
	ctx    context.Context //nolint:containedctx
	cancel context.CancelFunc
}

// process traverses the filesystem based on the specified path and queues files to the filesCh.
// It skips .git directories and anything which is not a regular file.
func (f *FilesystemReader) process() error {
	defer func() {
		close(f.filesCh)
	}()

	root := filepath.Clean(f.path)

	err := util.Walk(f.fs, root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return fmt.Errorf("error walking path %s: %w", path, err)
		}

		if info.IsDir() {
			if info.Name() == gitDir {
				return filepath.SkipDir
			}

			return nil
		}

		if !info.Mode().IsRegular() {
			f.log.Debugf("skipping %s as it is not a regular file", path)

			return nil
		}

		file := File{
			RelPath: filepath.Clean(path),
			Whole:   true,
		}

		f.stats.Add(stats.Traversed, 1)

		select {
		case <-f.ctx.Done():
			return f.ctx.Err()
		case f.filesCh <- &file:
		}

		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to walk %s: %w", root, err)
	}

	return nil
}

// Read populates the provided files slice with the files which have been traversed.
// It returns io.EOF once every file beneath the path has been read.
func (f *FilesystemReader) Read(ctx context.Context, files []*File) (n int, err error) {
	f.start.Do(func() {
		f.eg.Go(f.process)
	})

	idx := 0

LOOP:
	for idx < len(files) {
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case file, ok := <-f.filesCh:
			if !ok {
				if err = f.eg.Wait(); err == nil {
					err = io.EOF
				}

				break LOOP
			}

			files[idx] = file
			idx++
		}
	}

	return idx, err
}

func (f *FilesystemReader) Close() error {
	f.cancel()

	if err := f.eg.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err //nolint:wrapcheck
	}

	return nil
}

// NewFilesystemReader creates a new instance of FilesystemReader to traverse and read files from path, which is
// relative to the root of fs.
func NewFilesystemReader(
	fs billy.Filesystem,
	path string,
	statz *stats.Stats,
	batchSize int,
) *FilesystemReader {
	ctx, cancel := context.WithCancel(context.Background())

	return &FilesystemReader{
		fs:      fs,
		path:    path,
		stats:   statz,
		log:     log.WithPrefix("walk | filesystem"),
		filesCh: make(chan *File, batchSize*runtime.NumCPU()),
		eg:      &errgroup.Group{},
		ctx:     ctx,
		cancel:  cancel,
	}
}
