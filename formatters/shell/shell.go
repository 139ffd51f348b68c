// Package shell implements a precise formatter for shell scripts using the mvdan.cc/sh printer.
package shell

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/go-git/go-billy/v5"
	"github.com/numtide/precisefmt/ignore"
	"github.com/numtide/precisefmt/precise"
	"mvdan.cc/sh/v3/fileutil"
	"mvdan.cc/sh/v3/syntax"
)

const (
	Name = "sh"

	IgnoreFile = ".shfmtignore"
)

// extensions maps supported file extensions to the shell variant they imply, if any.
var extensions = map[string]string{
	".sh":   "",
	".bash": "bash",
	".mksh": "mksh",
	".bats": "bats",
}

// Config holds the printer settings shfmt reads from EditorConfig.
type Config struct {
	// Variant is one of bash, posix, mksh or bats; empty means it is detected from the shebang.
	Variant          string `toml:"variant,omitempty" msgpack:"variant"`
	Indent           uint   `toml:"indent,omitempty" msgpack:"indent"`
	BinaryNextLine   bool   `toml:"binary-next-line,omitempty" msgpack:"binary_next_line"`
	SwitchCaseIndent bool   `toml:"switch-case-indent,omitempty" msgpack:"switch_case_indent"`
	SpaceRedirects   bool   `toml:"space-redirects,omitempty" msgpack:"space_redirects"`
	FunctionNextLine bool   `toml:"function-next-line,omitempty" msgpack:"function_next_line"`
}

var (
	_ precise.Formatter[Config]       = (*Formatter)(nil)
	_ precise.SourceFormatter[Config] = (*Formatter)(nil)
)

type Formatter struct {
	fs  billy.Filesystem
	log *log.Logger
}

func New(fs billy.Filesystem) *Formatter {
	return &Formatter{
		fs:  fs,
		log: log.WithPrefix("format | " + Name),
	}
}

func (f *Formatter) Name() string {
	return Name
}

// ResolveConfig reads the EditorConfig properties applying to path.
// The shell variant falls back to the one implied by the file extension.
func (f *Formatter) ResolveConfig(path string) (*Config, error) {
	props, err := editorConfigProperties(f.fs, path)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	if props != nil {
		if cfg, err = configFromProperties(props); err != nil {
			return nil, fmt.Errorf("failed to read editorconfig for %s: %w", path, err)
		}
	}

	if cfg.Variant == "" || cfg.Variant == "auto" {
		cfg.Variant = extensions[strings.ToLower(filepath.Ext(path))]
	}

	f.log.Debug("resolved config", "path", path, "config", *cfg)

	return cfg, nil
}

func variant(contents string, cfg *Config) (syntax.LangVariant, error) {
	name := "bash"

	if cfg != nil && cfg.Variant != "" && cfg.Variant != "auto" {
		name = cfg.Variant
	} else if shebang := fileutil.Shebang([]byte(contents)); shebang != "" {
		name = shebang
	}

	var lang syntax.LangVariant
	if err := lang.Set(name); err != nil {
		return lang, fmt.Errorf("unsupported shell variant %q: %w", name, err)
	}

	return lang, nil
}

// Format formats the whole of contents.
func (f *Formatter) Format(contents string, cfg *Config) (string, error) {
	lang, err := variant(contents, cfg)
	if err != nil {
		return "", err
	}

	if cfg == nil {
		cfg = &Config{}
	}

	parser := syntax.NewParser(syntax.KeepComments(true), syntax.Variant(lang))

	file, err := parser.Parse(strings.NewReader(contents), "")
	if err != nil {
		return "", fmt.Errorf("failed to parse %s script: %w", lang, err)
	}

	printer := syntax.NewPrinter(
		syntax.Indent(cfg.Indent),
		syntax.BinaryNextLine(cfg.BinaryNextLine),
		syntax.SwitchCaseIndent(cfg.SwitchCaseIndent),
		syntax.SpaceRedirects(cfg.SpaceRedirects),
		syntax.FunctionNextLine(cfg.FunctionNextLine),
	)

	var buf bytes.Buffer
	if err = printer.Print(&buf, file); err != nil {
		return "", fmt.Errorf("failed to print %s script: %w", lang, err)
	}

	return buf.String(), nil
}

// Validate parses contents as a script of the variant implied by cfg or its shebang.
func (f *Formatter) Validate(contents string, cfg *Config) error {
	lang, err := variant(contents, cfg)
	if err != nil {
		return err
	}

	if _, err = syntax.NewParser(syntax.KeepComments(true), syntax.Variant(lang)).Parse(
		strings.NewReader(contents), "",
	); err != nil {
		return fmt.Errorf("invalid %s script: %w", lang, err)
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
	_, ok := extensions[strings.ToLower(filepath.Ext(path))]

	return ok
}
