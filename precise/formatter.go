package precise

import (
	"crypto/sha256"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Predicate reports whether a path should be formatted.
// It returns false for paths excluded by an ignore file.
type Predicate func(path string) bool

// Always is a Predicate which keeps every path.
func Always(string) bool {
	return true
}

// Formatter is the contract a precise formatter fulfils for the host.
// C is the type of project configuration the formatter resolves for a file; a nil *C means the formatter should use
// its defaults.
type Formatter[C any] interface {
	// Name identifies the formatter in logs and configuration.
	Name() string

	// ResolveConfig resolves the relevant config for the given modified file path.
	ResolveConfig(path string) (*C, error)

	// IsAlreadyFormatted returns true if the whole of contents is already formatted according to cfg.
	// The host uses it as a check to skip unnecessary work.
	IsAlreadyFormatted(contents string, cfg *C) (bool, error)

	// CheckFormattingOfRanges returns true if every range is already formatted according to cfg.
	CheckFormattingOfRanges(contents string, cfg *C, ranges []CharacterRange) (bool, error)

	// FormatRanges formats each range and applies the difference as a patch to contents, leaving text outside the
	// ranges untouched.
	FormatRanges(contents string, cfg *C, ranges []CharacterRange) (string, error)

	// IgnorePredicate generates a Predicate from the formatter's ignore file within workingDir.
	IgnorePredicate(workingDir string) (Predicate, error)

	// HasSupportedFileExtension returns true if the formatter can process path.
	HasSupportedFileExtension(path string) bool
}

// SourceFormatter is implemented by formatters which can format and parse a whole file.
// Plugins use it to format each file once, sharing the output between the already formatted check and the ranges,
// and to make sure formatting the ranges never leaves a file which no longer parses.
type SourceFormatter[C any] interface {
	// Format returns the whole of contents formatted according to cfg.
	Format(contents string, cfg *C) (string, error)
	// Validate returns an error if contents can not be parsed.
	Validate(contents string, cfg *C) error
}

// Resolved is the configuration resolved for a single path, along with a signature which changes whenever the
// configuration does.
type Resolved struct {
	Config    any
	Signature []byte
}

// Request describes a single file to be processed by a Plugin.
type Request struct {
	Path     string
	Contents string
	Ranges   []CharacterRange
	// Check asks only for a verdict, the contents are never modified.
	Check bool
	// Resolved may be provided when the config has already been resolved for Path.
	Resolved *Resolved
}

// Result describes the outcome of processing a Request.
type Result struct {
	// AlreadyFormatted is true when the whole file was formatted before processing.
	AlreadyFormatted bool
	// Formatted is true when every requested range is formatted, after processing in write mode.
	Formatted bool
	// Contents holds the new file contents in write mode.
	Contents string
	// Changed is true when Contents differs from the request.
	Changed bool
}

// Plugin is the type-erased form of a Formatter which the host works with.
type Plugin interface {
	Name() string
	HasSupportedFileExtension(path string) bool
	IgnorePredicate(workingDir string) (Predicate, error)
	Resolve(path string) (*Resolved, error)
	Process(req *Request) (*Result, error)
}

type plugin[C any] struct {
	Formatter[C]
}

// Wrap adapts a Formatter to the Plugin interface.
//
//nolint:ireturn
func Wrap[C any](f Formatter[C]) Plugin {
	return &plugin[C]{f}
}

func (p *plugin[C]) Resolve(path string) (*Resolved, error) {
	cfg, err := p.ResolveConfig(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s config for %s: %w", p.Name(), path, err)
	}

	sig, err := signature(p.Name(), cfg)
	if err != nil {
		return nil, err
	}

	return &Resolved{Config: cfg, Signature: sig}, nil
}

func (p *plugin[C]) Process(req *Request) (*Result, error) {
	resolved := req.Resolved
	if resolved == nil {
		var err error
		if resolved, err = p.Resolve(req.Path); err != nil {
			return nil, err
		}
	}

	cfg, ok := resolved.Config.(*C)
	if !ok {
		return nil, fmt.Errorf("unexpected config type %T for formatter %s", resolved.Config, p.Name())
	}

	if sf, ok := p.Formatter.(SourceFormatter[C]); ok {
		return processSource(sf, req, cfg)
	}

	result := &Result{Contents: req.Contents}

	done, err := p.IsAlreadyFormatted(req.Contents, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to check formatting of %s: %w", req.Path, err)
	} else if done {
		result.AlreadyFormatted = true
		result.Formatted = true

		return result, nil
	}

	if req.Check {
		result.Formatted, err = p.CheckFormattingOfRanges(req.Contents, cfg, req.Ranges)
		if err != nil {
			return nil, fmt.Errorf("failed to check formatting of ranges in %s: %w", req.Path, err)
		}

		return result, nil
	}

	result.Contents, err = p.FormatRanges(req.Contents, cfg, req.Ranges)
	if err != nil {
		return nil, fmt.Errorf("failed to format ranges in %s: %w", req.Path, err)
	}

	result.Changed = result.Contents != req.Contents
	result.Formatted = true

	return result, nil
}

func processSource[C any](sf SourceFormatter[C], req *Request, cfg *C) (*Result, error) {
	result := &Result{Contents: req.Contents}

	formatted, err := sf.Format(req.Contents, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to format %s: %w", req.Path, err)
	}

	if formatted == req.Contents {
		result.AlreadyFormatted = true
		result.Formatted = true

		return result, nil
	}

	if req.Check {
		if result.Formatted, err = CheckRanges(req.Contents, formatted, req.Ranges); err != nil {
			return nil, fmt.Errorf("failed to check formatting of ranges in %s: %w", req.Path, err)
		}

		return result, nil
	}

	result.Contents, err = FormatRanges(req.Contents, formatted, req.Ranges, func(contents string) error {
		return sf.Validate(contents, cfg)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to format ranges in %s: %w", req.Path, err)
	}

	result.Changed = result.Contents != req.Contents
	result.Formatted = true

	return result, nil
}

// signature hashes the formatter name and its msgpack encoded config.
func signature(name string, cfg any) ([]byte, error) {
	b, err := msgpack.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s config: %w", name, err)
	}

	h := sha256.New()
	h.Write([]byte(name))
	h.Write(b)

	return h.Sum(nil), nil
}
