// Package format applies precise formatters to the changed regions of candidate files.
package format

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	"github.com/numtide/precisefmt/cache"
	"github.com/numtide/precisefmt/matcher"
	"github.com/numtide/precisefmt/precise"
	"github.com/numtide/precisefmt/stats"
	"github.com/numtide/precisefmt/walk"
	"golang.org/x/sync/errgroup"
)

var (
	ErrFormattingFailures = errors.New("formatting failures detected")
	ErrUnformatted        = errors.New("unformatted changes detected, --check is enabled")
	ErrFailOnChange       = errors.New("unexpected changes detected, --fail-on-change is enabled")
	ErrNoFormatter        = errors.New("no formatter for path")
)

// Options control how a Runner treats the files it is given.
type Options struct {
	// Check reports unformatted regions instead of rewriting them.
	Check bool
	// FailOnChange turns any rewrite into an error.
	FailOnChange bool
	// Excludes are globs matched against paths relative to the tree root.
	Excludes []string
	// OnUnmatched is the level at which paths without a formatter are logged.
	OnUnmatched log.Level
	// WorkingDir is relative to the tree root; ignore files are read from it.
	WorkingDir string
}

type formatter struct {
	plugin precise.Plugin
	match  matcher.MatchFn
}

// Runner decides which plugin handles each file and applies it to the file's changed regions.
type Runner struct {
	opts  Options
	fs    billy.Filesystem
	cache *cache.Cache
	stats *stats.Stats

	log         *log.Logger
	changeLevel log.Level

	// guards reads and writes against fs, which is not safe for concurrent use in all implementations
	fsLock sync.Mutex

	excludes   matcher.MatchFn
	formatters []*formatter

	eg          *errgroup.Group
	formatError *atomic.Bool
}

// match returns the first plugin which wants path, or nil if it is globally excluded or no plugin wants it.
func (r *Runner) match(path string) (precise.Plugin, error) {
	result, err := r.excludes(path)
	if err != nil {
		return nil, fmt.Errorf("failed to match %s against global excludes: %w", path, err)
	} else if result == matcher.Unwanted {
		r.log.Debugf("path matched global excludes: %s", path)

		return nil, nil //nolint:nilnil
	}

	for _, f := range r.formatters {
		result, err := f.match(path)
		if err != nil {
			return nil, fmt.Errorf("failed to match %s against formatter %s: %w", path, f.plugin.Name(), err)
		} else if result == matcher.Wanted {
			return f.plugin, nil
		}
	}

	return nil, nil //nolint:nilnil
}

// Resolve returns the plugin which handles path along with the config it resolves for it.
func (r *Runner) Resolve(path string) (precise.Plugin, *precise.Resolved, error) {
	plugin, err := r.match(path)
	if err != nil {
		return nil, nil, err
	} else if plugin == nil {
		return nil, nil, fmt.Errorf("%w: %s", ErrNoFormatter, path)
	}

	resolved, err := plugin.Resolve(path)
	if err != nil {
		return nil, nil, err //nolint:wrapcheck
	}

	return plugin, resolved, nil
}

// Apply schedules the processing of files, returning once they have all been scheduled.
func (r *Runner) Apply(ctx context.Context, files []*walk.File) error {
	for _, file := range files {
		plugin, err := r.match(file.RelPath)
		if err != nil {
			return err
		}

		// check if there were no matches
		if plugin == nil {
			// log that there was no match, exiting with an error if the unmatched level was set to fatal
			if r.opts.OnUnmatched == log.FatalLevel {
				return fmt.Errorf("%w: %s", ErrNoFormatter, file.RelPath)
			}

			r.log.Logf(r.opts.OnUnmatched, "no formatter for path: %s", file.RelPath)

			continue
		}

		// record there was a match
		r.stats.Add(stats.Matched, 1)

		r.eg.Go(func() error {
			if err := r.process(ctx, plugin, file); err != nil {
				r.formatError.Store(true)
				r.log.Errorf("failed to format %s: %v", file.RelPath, err)
			}

			return nil
		})
	}

	return nil
}

func (r *Runner) process(ctx context.Context, plugin precise.Plugin, file *walk.File) error {
	if err := ctx.Err(); err != nil {
		return err //nolint:wrapcheck
	}

	contents, perm, err := r.read(file.RelPath)
	if err != nil {
		return err
	}

	ranges := file.Ranges(contents)
	if len(ranges) == 0 {
		r.log.Debugf("no changed regions in %s", file.RelPath)

		return nil
	}

	resolved, err := plugin.Resolve(file.RelPath)
	if err != nil {
		return err //nolint:wrapcheck
	}

	digest := cache.Digest(contents)

	if r.cache != nil {
		done, err := r.cache.IsFormatted(file.RelPath, digest, resolved.Signature)
		if err != nil {
			r.log.Warnf("ignoring cache for %s: %v", file.RelPath, err)
		} else if done {
			r.log.Debugf("%s is unchanged since it was last formatted", file.RelPath)

			return nil
		}
	}

	result, err := plugin.Process(&precise.Request{
		Path:     file.RelPath,
		Contents: contents,
		Ranges:   ranges,
		Check:    r.opts.Check,
		Resolved: resolved,
	})
	if err != nil {
		return err //nolint:wrapcheck
	}

	r.stats.Add(stats.Formatted, 1)

	if r.cache != nil {
		if result.AlreadyFormatted {
			err = r.cache.MarkFormatted(file.RelPath, digest, resolved.Signature)
		} else {
			err = r.cache.Forget(file.RelPath)
		}

		if err != nil {
			r.log.Warnf("failed to update cache: %v", err)
		}
	}

	switch {
	case !result.Formatted:
		r.stats.Add(stats.Unformatted, 1)
		r.log.Errorf("%s has unformatted changes in %s", plugin.Name(), file.RelPath)

	case result.Changed:
		if err = r.write(file.RelPath, result.Contents, perm); err != nil {
			return err
		}

		r.stats.Add(stats.Changed, 1)
		r.log.Logf(r.changeLevel, "%s formatted changes in %s", plugin.Name(), file.RelPath)
	}

	return nil
}

func (r *Runner) read(path string) (string, os.FileMode, error) {
	r.fsLock.Lock()
	defer r.fsLock.Unlock()

	info, err := r.fs.Stat(path)
	if err != nil {
		return "", 0, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	data, err := util.ReadFile(r.fs, path)
	if err != nil {
		return "", 0, fmt.Errorf("failed to read %s: %w", path, err)
	}

	return string(data), info.Mode().Perm(), nil
}

func (r *Runner) write(path string, contents string, perm os.FileMode) error {
	r.fsLock.Lock()
	defer r.fsLock.Unlock()

	if err := util.WriteFile(r.fs, path, []byte(contents), perm); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	return nil
}

// Close waits for every scheduled file to be processed.
// It returns an error if any file failed to format, or if the outcome conflicts with check or fail on change.
func (r *Runner) Close() error {
	if err := r.eg.Wait(); err != nil {
		return fmt.Errorf("failed to wait for formatters: %w", err)
	}

	switch {
	case r.formatError.Load():
		return ErrFormattingFailures
	case r.opts.Check && r.stats.Value(stats.Unformatted) > 0:
		return ErrUnformatted
	case r.opts.FailOnChange && r.stats.Value(stats.Changed) > 0:
		return ErrFailOnChange
	}

	return nil
}

// ignoreFrom makes keep, which expects paths relative to dir, accept paths relative to the tree root.
// Paths outside of dir are always kept.
func ignoreFrom(dir string, keep precise.Predicate) precise.Predicate {
	return func(path string) bool {
		rel, err := filepath.Rel(dir, path)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return true
		}

		return keep(rel)
	}
}

// NewRunner creates a Runner for files within fs.
// The order of plugins determines which is chosen when more than one supports a path.
// c may be nil to disable caching.
func NewRunner(
	fs billy.Filesystem,
	plugins []precise.Plugin,
	c *cache.Cache,
	statz *stats.Stats,
	opts Options,
) (*Runner, error) {
	// compile global exclude globs
	excludes, err := matcher.GlobExclusion(opts.Excludes)
	if err != nil {
		return nil, fmt.Errorf("failed to compile global excludes: %w", err)
	}

	if opts.WorkingDir == "" {
		opts.WorkingDir = "."
	}

	formatters := make([]*formatter, 0, len(plugins))

	for _, plugin := range plugins {
		keep, err := plugin.IgnorePredicate(opts.WorkingDir)
		if err != nil {
			return nil, fmt.Errorf("failed to load ignore file for formatter %s: %w", plugin.Name(), err)
		}

		formatters = append(formatters, &formatter{
			plugin: plugin,
			match:  matcher.Plugin(plugin, ignoreFrom(opts.WorkingDir, keep)),
		})
	}

	// adjust the change logging based on --fail-on-change
	changeLevel := log.InfoLevel
	if opts.FailOnChange {
		changeLevel = log.ErrorLevel
	}

	// create an errgroup for asynchronously formatting
	eg := errgroup.Group{}
	// we use a simple heuristic to avoid too much contention by limiting the concurrency to runtime.NumCPU()
	eg.SetLimit(runtime.NumCPU())

	return &Runner{
		opts:  opts,
		fs:    fs,
		cache: c,
		stats: statz,

		log:         log.WithPrefix("format"),
		changeLevel: changeLevel,

		excludes:   excludes,
		formatters: formatters,

		eg:          &eg,
		formatError: new(atomic.Bool),
	}, nil
}
