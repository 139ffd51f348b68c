package format

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"reflect"
	"slices"
	"strings"
	"syscall"

	"github.com/BurntSushi/toml"
	"github.com/charmbracelet/log"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/numtide/precisefmt/cache"
	"github.com/numtide/precisefmt/config"
	"github.com/numtide/precisefmt/format"
	"github.com/numtide/precisefmt/formatters/golang"
	"github.com/numtide/precisefmt/formatters/shell"
	"github.com/numtide/precisefmt/git"
	"github.com/numtide/precisefmt/precise"
	"github.com/numtide/precisefmt/stats"
	"github.com/numtide/precisefmt/walk"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// tree is the filesystem a run operates on.
type tree struct {
	// root is the absolute path of the root of fs.
	root string
	fs   billy.Filesystem
	// repo is nil when the tree is not within a git repository.
	repo *git.Repository
	// workingDir is relative to root.
	workingDir string
	// scope is the path, relative to root, processed when no paths are given.
	scope string
}

// rel converts path, relative to the working directory or absolute, into a path relative to the tree root.
func (t *tree) rel(path string) (string, error) {
	if !filepath.IsAbs(path) {
		path = filepath.Join(t.root, t.workingDir, path)
	}

	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		return "", fmt.Errorf("path %s not found: %w", path, err)
	}

	rel, err := filepath.Rel(t.root, resolved)
	if err != nil {
		return "", fmt.Errorf("error computing relative path from %s to %s: %w", t.root, resolved, err)
	}

	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %s not inside the tree root %s", path, t.root)
	}

	return rel, nil
}

func openTree(cfg *config.Config) (*tree, error) {
	workingDir, err := filepath.EvalSymlinks(cfg.WorkingDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve working directory %s: %w", cfg.WorkingDir, err)
	}

	treeRoot := workingDir

	if cfg.TreeRoot != "" {
		if treeRoot, err = filepath.EvalSymlinks(cfg.TreeRoot); err != nil {
			return nil, fmt.Errorf("failed to resolve tree root %s: %w", cfg.TreeRoot, err)
		}
	}

	t := &tree{root: treeRoot, scope: "."}

	// prefer the git repository containing the tree root, as changes are determined against it
	if t.repo, err = git.Open(treeRoot); err != nil {
		log.Debugf("not in a git repository, treating every file as changed: %v", err)

		t.fs = osfs.New(treeRoot)
	} else {
		t.fs = t.repo.Root()
		t.root = t.fs.Root()

		if t.scope, err = filepath.Rel(t.root, treeRoot); err != nil {
			return nil, fmt.Errorf("failed to determine tree root within the repository: %w", err)
		}
	}

	if t.workingDir, err = filepath.Rel(t.root, workingDir); err != nil || strings.HasPrefix(t.workingDir, "..") {
		t.workingDir = "."
	}

	return t, nil
}

// plugins creates the precise formatters, restricted to names if any are given.
func plugins(fs billy.Filesystem, cfg *config.Config) ([]precise.Plugin, error) {
	all := []precise.Plugin{
		precise.Wrap[golang.Config](golang.New(fs, cfg.FormatterConfigs.Go)),
		precise.Wrap[shell.Config](shell.New(fs)),
	}

	if len(cfg.Formatters) == 0 {
		return all, nil
	}

	result := make([]precise.Plugin, 0, len(cfg.Formatters))

	for _, name := range cfg.Formatters {
		idx := slices.IndexFunc(all, func(p precise.Plugin) bool {
			return p.Name() == name
		})
		if idx < 0 {
			return nil, fmt.Errorf("formatter %v not found in config", name)
		}

		result = append(result, all[idx])
	}

	return result, nil
}

func newRunner(t *tree, cfg *config.Config, c *cache.Cache, statz *stats.Stats) (*format.Runner, error) {
	ps, err := plugins(t.fs, cfg)
	if err != nil {
		return nil, err
	}

	unmatchedLevel, err := log.ParseLevel(cfg.OnUnmatched)
	if err != nil {
		return nil, fmt.Errorf("invalid on-unmatched value: %w", err)
	}

	return format.NewRunner(t.fs, ps, c, statz, format.Options{ //nolint:wrapcheck
		Check:        cfg.Check,
		FailOnChange: cfg.FailOnChange,
		Excludes:     cfg.Excludes,
		OnUnmatched:  unmatchedLevel,
		WorkingDir:   t.workingDir,
	})
}

func Run(v *viper.Viper, statz *stats.Stats, cmd *cobra.Command, paths []string) error {
	cmd.SilenceUsage = true

	cfg, err := config.FromViper(v)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	t, err := openTree(cfg)
	if err != nil {
		return err
	}

	// create a prefixed logger
	l := log.WithPrefix("format")

	// convert paths so they are relative to the tree root
	relPaths := make([]string, len(paths))

	for idx, path := range paths {
		if relPaths[idx], err = t.rel(path); err != nil {
			return err
		}
	}

	if len(relPaths) == 0 && t.scope != "." {
		relPaths = []string{t.scope}
	}

	// open the cache if configured
	var c *cache.Cache

	if cfg.NoCache {
		// without a cache to clear, the db is removed altogether
		if cfg.ClearCache {
			if err = cache.Remove(t.root); err != nil {
				return fmt.Errorf("failed to clear cache: %w", err)
			}
		}
	} else if c, err = cache.Open(t.root); err != nil {
		// if we can't open the cache, we log a warning and fallback to no cache
		l.Warnf("failed to open cache: %v", err)

		c = nil
	} else {
		// ensure cache is closed on return
		defer func() {
			if err := c.Close(); err != nil {
				l.Errorf("failed to close cache: %v", err)
			}
		}()

		if cfg.ClearCache {
			if err = c.Clear(); err != nil {
				return fmt.Errorf("failed to clear cache: %w", err)
			}
		}

		if size, err := c.Size(); err == nil {
			l.Debugf("cache holds %d entries", size)
		}
	}

	runner, err := newRunner(t, cfg, c, statz)
	if err != nil {
		return err
	}

	// create an app context and listen for shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		exit := make(chan os.Signal, 1)
		signal.Notify(exit, os.Interrupt, syscall.SIGTERM)
		<-exit
		cancel()
	}()

	reader, err := walk.NewCompositeReader(
		walk.Auto, t.repo, t.fs, relPaths,
		walk.Options{Base: cfg.Base, All: cfg.All},
		statz,
	)
	if err != nil {
		return fmt.Errorf("failed to create walker: %w", err)
	}

	for {
		files := make([]*walk.File, walk.BatchSize)

		n, err := reader.Read(ctx, files)

		if n > 0 {
			if applyErr := runner.Apply(ctx, files[:n]); applyErr != nil {
				// stop reading and let anything already scheduled finish before the cache is closed
				cancel()

				_ = reader.Close()
				_ = runner.Close()

				return fmt.Errorf("formatting failure: %w", applyErr)
			}
		}

		if errors.Is(err, io.EOF) {
			break
		} else if err != nil {
			_ = reader.Close()
			_ = runner.Close()

			return fmt.Errorf("failed to read files: %w", err)
		}
	}

	if err = reader.Close(); err != nil {
		return fmt.Errorf("failed to close reader: %w", err)
	}

	// wait for formatting to complete
	err = runner.Close()

	if !cfg.Quiet {
		statz.Print(cfg.Check)
	}

	return err //nolint:wrapcheck
}

// resolution is printed by the resolve command.
type resolution struct {
	Path      string `toml:"path"`
	Formatter string `toml:"formatter"`
	Signature string `toml:"signature"`
	Config    any    `toml:"config,omitempty"`
}

// Resolve prints the formatter and config which would be applied to path.
func Resolve(v *viper.Viper, cmd *cobra.Command, path string) error {
	cmd.SilenceUsage = true

	cfg, err := config.FromViper(v)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	t, err := openTree(cfg)
	if err != nil {
		return err
	}

	relPath, err := t.rel(path)
	if err != nil {
		return err
	}

	statz := stats.New()

	runner, err := newRunner(t, cfg, nil, &statz)
	if err != nil {
		return err
	}

	plugin, resolved, err := runner.Resolve(relPath)
	if err != nil {
		return err //nolint:wrapcheck
	}

	out := resolution{
		Path:      relPath,
		Formatter: plugin.Name(),
		Signature: hex.EncodeToString(resolved.Signature),
	}

	// a nil config means the formatter's defaults apply
	if rv := reflect.ValueOf(resolved.Config); rv.Kind() == reflect.Pointer && !rv.IsNil() {
		out.Config = resolved.Config
	}

	if err = toml.NewEncoder(cmd.OutOrStdout()).Encode(out); err != nil {
		return fmt.Errorf("failed to encode resolved config: %w", err)
	}

	return nil
}
