// Package golang implements a precise formatter for Go source files using gofumpt.
package golang

import (
	"errors"
	"fmt"
	"go/parser"
	"go/token"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	"github.com/numtide/precisefmt/ignore"
	"github.com/numtide/precisefmt/precise"
	"golang.org/x/mod/modfile"
	"mvdan.cc/gofumpt/format"
)

const (
	Name = "go"

	IgnoreFile = ".gofumptignore"
	ModFile    = "go.mod"
)

// Config is the project configuration gofumpt needs to format a file.
type Config struct {
	ModulePath  string `toml:"module-path,omitempty" msgpack:"module_path"`
	LangVersion string `toml:"lang-version,omitempty" msgpack:"lang_version"`
	ExtraRules  bool   `toml:"extra-rules,omitempty" msgpack:"extra_rules"`
}

// Options are applied to every file regardless of the module it belongs to.
type Options struct {
	ExtraRules bool `mapstructure:"extra-rules" toml:"extra-rules,omitempty"`
}

var (
	_ precise.Formatter[Config]       = (*Formatter)(nil)
	_ precise.SourceFormatter[Config] = (*Formatter)(nil)
)

type Formatter struct {
	fs   billy.Filesystem
	opts Options
	log  *log.Logger
}

// New creates a Formatter reading files relative to the root of fs.
func New(fs billy.Filesystem, opts Options) *Formatter {
	return &Formatter{
		fs:   fs,
		opts: opts,
		log:  log.WithPrefix("format | " + Name),
	}
}

func (f *Formatter) Name() string {
	return Name
}

// ResolveConfig searches up from path for the go.mod of the module it belongs to, like an editor does, and reads the
// module path and language version from it.
// Files outside of a module are formatted with gofumpt's defaults, signalled by a nil config.
func (f *Formatter) ResolveConfig(path string) (*Config, error) {
	modPath, err := precise.FindUp(f.fs, path, ModFile)
	if errors.Is(err, precise.ErrNotFound) {
		f.log.Debugf("no %s found above %s, using defaults", ModFile, path)

		if f.opts.ExtraRules {
			return &Config{ExtraRules: true}, nil
		}

		return nil, nil //nolint:nilnil
	} else if err != nil {
		return nil, err
	}

	data, err := util.ReadFile(f.fs, modPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", modPath, err)
	}

	mod, err := modfile.ParseLax(modPath, data, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", modPath, err)
	}

	cfg := &Config{ExtraRules: f.opts.ExtraRules}

	if mod.Module != nil {
		cfg.ModulePath = mod.Module.Mod.Path
	}

	if mod.Go != nil && mod.Go.Version != "" {
		cfg.LangVersion = "go" + mod.Go.Version
	}

	f.log.Debug("resolved config", "path", path, "go.mod", modPath, "module", cfg.ModulePath, "lang", cfg.LangVersion)

	return cfg, nil
}

// Format formats the whole of contents.
func (f *Formatter) Format(contents string, cfg *Config) (string, error) {
	var opts format.Options
	if cfg != nil {
		opts = format.Options{
			LangVersion: cfg.LangVersion,
			ModulePath:  cfg.ModulePath,
			ExtraRules:  cfg.ExtraRules,
		}
	}

	out, err := format.Source([]byte(contents), opts)
	if err != nil {
		return "", fmt.Errorf("gofumpt failed: %w", err)
	}

	return string(out), nil
}

// Validate parses contents as a Go source file.
func (f *Formatter) Validate(contents string, _ *Config) error {
	if _, err := parser.ParseFile(token.NewFileSet(), "", contents, parser.ParseComments); err != nil {
		return fmt.Errorf("invalid go source: %w", err)
	}

	return nil
}

func (f *Formatter) IsAlreadyFormatted(contents string, cfg *Config) (bool, error) {
	formatted, err := f.Format(contents, cfg)
	if err != nil {
		return false, err
	}

	return formatted == contents, nil
}

func (f *Formatter) CheckFormattingOfRanges(
	contents string,
	cfg *Config,
	ranges []precise.CharacterRange,
) (bool, error) {
	formatted, err := f.Format(contents, cfg)
	if err != nil {
		return false, err
	}

	return precise.CheckRanges(contents, formatted, ranges) //nolint:wrapcheck
}

func (f *Formatter) FormatRanges(contents string, cfg *Config, ranges []precise.CharacterRange) (string, error) {
	formatted, err := f.Format(contents, cfg)
	if err != nil {
		return "", err
	}

	return precise.FormatRanges(contents, formatted, ranges, func(s string) error { //nolint:wrapcheck
		return f.Validate(s, cfg)
	})
}

func (f *Formatter) IgnorePredicate(workingDir string) (precise.Predicate, error) {
	return ignore.Load(f.fs, workingDir, IgnoreFile) //nolint:wrapcheck
}

func (f *Formatter) HasSupportedFileExtension(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".go")
}
