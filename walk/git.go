package walk

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/numtide/precisefmt/git"
	"github.com/numtide/precisefmt/stats"
	"golang.org/x/sync/errgroup"
)

// GitReader produces the files which have changed relative to a base revision.
type GitReader struct {
	path  string
	base  string
	stats *stats.Stats

	log  *log.Logger
	repo *git.Repository

	filesCh chan *File

	eg     *errgroup.Group
	start  sync.Once
	ctx    context.Context //nolint:containedctx
	cancel context.CancelFunc
}

func (g *GitReader) process() error {
	defer func() {
		close(g.filesCh)
	}()

	changes, err := g.repo.Changes(g.base)
	if err != nil {
		return fmt.Errorf("failed to list changes: %w", err)
	}

	for _, change := range changes {
		if !within(g.path, change.Path) {
			continue
		}

		file := File{
			RelPath: change.Path,
			Base:    change.Base,
			Whole:   change.New,
		}

		g.stats.Add(stats.Traversed, 1)

		select {
		case <-g.ctx.Done():
			return g.ctx.Err()
		case g.filesCh <- &file:
		}
	}

	g.log.Debugf("finished reading changes under %q", g.path)

	return nil
}

func (g *GitReader) Read(ctx context.Context, files []*File) (n int, err error) {
	// the changes are only listed once the reader is first used, so composite readers list them one path at a time
	g.start.Do(func() {
		g.eg.Go(g.process)
	})

	idx := 0

LOOP:
	for idx < len(files) {
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case file, ok := <-g.filesCh:
			if !ok {
				if err = g.eg.Wait(); err == nil {
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

func (g *GitReader) Close() error {
	g.cancel()

	if err := g.eg.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err //nolint:wrapcheck
	}

	return nil
}

func NewGitReader(
	repo *git.Repository,
	path string,
	base string,
	statz *stats.Stats,
	batchSize int,
) *GitReader {
	ctx, cancel := context.WithCancel(context.Background())

	return &GitReader{
		path:    path,
		base:    base,
		stats:   statz,
		log:     log.WithPrefix("walk | git"),
		repo:    repo,
		filesCh: make(chan *File, batchSize*runtime.NumCPU()),
		eg:      &errgroup.Group{},
		ctx:     ctx,
		cancel:  cancel,
	}
}
