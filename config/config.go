package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/numtide/precisefmt/formatters/golang"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var ErrNotFound = errors.New("config file not found")

// FileNames are the config file names searched for, in order of preference.
var FileNames = []string{"precisefmt.toml", ".precisefmt.toml"}

// Config holds the settings for a run, merged from flags, environment and the config file.
type Config struct {
	All          bool     `mapstructure:"all" toml:"all,omitempty"`
	Base         string   `mapstructure:"base" toml:"base,omitempty"`
	Check        bool     `mapstructure:"check" toml:"check,omitempty"`
	ClearCache   bool     `mapstructure:"clear-cache" toml:"-"` // not allowed in config
	Excludes     []string `mapstructure:"excludes" toml:"excludes,omitempty"`
	FailOnChange bool     `mapstructure:"fail-on-change" toml:"fail-on-change,omitempty"`
	Formatters   []string `mapstructure:"formatters" toml:"formatters,omitempty"`
	NoCache      bool     `mapstructure:"no-cache" toml:"-"` // not allowed in config
	OnUnmatched  string   `mapstructure:"on-unmatched" toml:"on-unmatched,omitempty"`
	Quiet        bool     `mapstructure:"quiet" toml:"-"`
	TreeRoot     string   `mapstructure:"tree-root" toml:"tree-root,omitempty"`
	Verbose      uint8    `mapstructure:"verbose" toml:"verbose,omitempty"`
	WorkingDir   string   `mapstructure:"working-dir" toml:"-"`

	FormatterConfigs struct {
		Go golang.Options `mapstructure:"go" toml:"go,omitempty"`
	} `mapstructure:"formatter" toml:"formatter,omitempty"`
}

// SetFlags appends our flags to the provided flag set.
// We have a flag matching most entries in Config, taking care to ensure the name matches the field name defined in the
// mapstructure tag.
// We rely on a flag's default value being provided in the event the same value was not specified in the config file.
func SetFlags(fs *pflag.FlagSet) {
	fs.BoolP(
		"all", "a", false,
		"Treat every byte of the given files as changed, formatting them in full. (env $PRECISEFMT_ALL)",
	)
	fs.String(
		"base", "HEAD",
		"The revision changes are determined against. (env $PRECISEFMT_BASE)",
	)
	fs.Bool(
		"check", false,
		"Do not modify any files, exit with error if a changed region is not formatted. (env $PRECISEFMT_CHECK)",
	)
	fs.BoolP(
		"clear-cache", "c", false,
		"Reset the formatted files cache. (env $PRECISEFMT_CLEAR_CACHE)",
	)
	fs.StringSlice(
		"excludes", nil,
		"Exclude files or directories matching the specified globs. (env $PRECISEFMT_EXCLUDES)",
	)
	fs.Bool(
		"fail-on-change", false,
		"Exit with error if any changes were made. (env $PRECISEFMT_FAIL_ON_CHANGE)",
	)
	fs.StringSliceP(
		"formatters", "f", nil,
		"Specify formatters to apply. Defaults to all formatters. (env $PRECISEFMT_FORMATTERS)",
	)
	fs.Bool(
		"no-cache", false,
		"Ignore the formatted files cache entirely. (env $PRECISEFMT_NO_CACHE)",
	)
	fs.StringP(
		"on-unmatched", "u", "warn",
		"Log paths that did not match any formatters at the specified log level. Possible values are "+
			"<debug|info|warn|error|fatal>. (env $PRECISEFMT_ON_UNMATCHED)",
	)
	fs.BoolP(
		"quiet", "q", false,
		"Only log errors. (env $PRECISEFMT_QUIET)",
	)
	fs.String(
		"tree-root", "",
		"The root of the tree to be formatted (defaults to the root of the git repository, or the directory "+
			"containing the config file). (env $PRECISEFMT_TREE_ROOT)",
	)
	fs.CountP(
		"verbose", "v",
		"Set the verbosity of logs e.g. -vv. (env $PRECISEFMT_VERBOSE)",
	)
	fs.StringP(
		"working-dir", "C", ".",
		"Run as if precisefmt was started in the specified working directory instead of the current working "+
			"directory. (env $PRECISEFMT_WORKING_DIR)",
	)
}

// NewViper creates a Viper instance pre-configured with the following options:
// * TOML config type
// * automatic env enabled
// * `PRECISEFMT_` env prefix for environment variables
// * replacement of `-` and `.` with `_` when mapping flags to env e.g. `fail-on-change` => `PRECISEFMT_FAIL_ON_CHANGE`.
func NewViper() *viper.Viper {
	v := viper.New()

	// Enforce toml (may open this up to other formats in the future)
	v.SetConfigType("toml")

	// Allow env overrides for config and flags.
	v.SetEnvPrefix("precisefmt")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))

	return v
}

// FromViper takes a viper instance and produces a Config instance.
func FromViper(v *viper.Viper) (*Config, error) {
	configReset := map[string]any{
		"clear-cache": false,
		"no-cache":    false,
		"working-dir": ".",
	}

	// reset certain values which are not allowed to be specified in the config file
	if v.ConfigFileUsed() != "" {
		if err := v.MergeConfigMap(configReset); err != nil {
			return nil, fmt.Errorf("failed to overwrite config values: %w", err)
		}
	}

	var err error

	cfg := &Config{}

	if err = v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// resolve the working directory to an absolute path
	cfg.WorkingDir, err = filepath.Abs(cfg.WorkingDir)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path for working directory: %w", err)
	}

	// resolve tree root to an absolute path, leaving it empty if it should be determined from the git repository
	if cfg.TreeRoot == "" && v.ConfigFileUsed() != "" {
		cfg.TreeRoot = filepath.Dir(v.ConfigFileUsed())
	}

	if cfg.TreeRoot != "" {
		if cfg.TreeRoot, err = filepath.Abs(cfg.TreeRoot); err != nil {
			return nil, fmt.Errorf("failed to get absolute path for tree root: %w", err)
		}
	}

	if cfg.Base == "" {
		cfg.Base = "HEAD"
	}

	if cfg.OnUnmatched == "" {
		cfg.OnUnmatched = "warn"
	}

	if _, err = log.ParseLevel(cfg.OnUnmatched); err != nil {
		return nil, fmt.Errorf("invalid on-unmatched value: %w", err)
	}

	return cfg, nil
}

// Find returns the first config file found in dir.
func Find(dir string, fileNames ...string) (string, error) {
	for _, f := range fileNames {
		path := filepath.Join(dir, f)
		if fileExists(path) {
			return path, nil
		}
	}

	return "", fmt.Errorf("%w: could not find %s in %s", ErrNotFound, fileNames, dir)
}

// FindUp searches upwards from searchDir for the first of fileNames, returning the path of the file found and the
// directory containing it.
func FindUp(searchDir string, fileNames ...string) (path string, dir string, err error) {
	for _, dir := range eachDir(searchDir) {
		for _, f := range fileNames {
			path := filepath.Join(dir, f)
			if fileExists(path) {
				return path, dir, nil
			}
		}
	}

	return "", "", fmt.Errorf("%w: could not find %s in %s", ErrNotFound, fileNames, searchDir)
}

func eachDir(path string) (paths []string) {
	path, err := filepath.Abs(path)
	if err != nil {
		return
	}

	paths = []string{path}

	if path == "/" {
		return
	}

	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == os.PathSeparator {
			path = path[:i]
			if path == "" {
				path = "/"
			}

			paths = append(paths, path)
		}
	}

	return
}

func fileExists(path string) bool {
	// Some broken filesystems like SSHFS return file information on stat() but
	// then cannot open the file. So we use os.Open.
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	// Next, check that the file is a regular file.
	fi, err := f.Stat()
	if err != nil {
		return false
	}

	return fi.Mode().IsRegular()
}
