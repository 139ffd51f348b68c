package shell

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	"github.com/gobwas/glob"
	"github.com/numtide/precisefmt/precise"
	"gopkg.in/ini.v1"
)

const EditorConfigFile = ".editorconfig"

// editorConfig is a single parsed .editorconfig file.
type editorConfig struct {
	dir      string
	root     bool
	sections []section
}

type section struct {
	pattern  string
	matchDir bool // pattern contains a separator and is matched against the relative path
	glob     glob.Glob
	props    map[string]string
}

func parseEditorConfig(dir string, data []byte) (*editorConfig, error) {
	file, err := ini.LoadSources(ini.LoadOptions{
		SkipUnrecognizableLines: true,
	}, data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", filepath.Join(dir, EditorConfigFile), err)
	}

	ec := &editorConfig{
		dir:  dir,
		root: strings.EqualFold(file.Section(ini.DefaultSection).Key("root").String(), "true"),
	}

	for _, sec := range file.Sections() {
		name := sec.Name()
		if name == ini.DefaultSection {
			continue
		}

		s := section{
			pattern:  name,
			matchDir: strings.Contains(name, "/"),
			props:    make(map[string]string),
		}

		pattern := strings.TrimPrefix(name, "/")

		if s.glob, err = glob.Compile(pattern, '/'); err != nil {
			log.Warnf("ignoring unsupported section [%s] in %s: %v", name, filepath.Join(dir, EditorConfigFile), err)

			continue
		}

		for _, key := range sec.Keys() {
			s.props[strings.ToLower(key.Name())] = strings.ToLower(strings.TrimSpace(key.Value()))
		}

		ec.sections = append(ec.sections, s)
	}

	return ec, nil
}

// apply copies the properties of every section matching path into props.
// path must be relative to the root of the filesystem the editorconfig was read from.
func (ec *editorConfig) apply(path string, props map[string]string) error {
	rel, err := filepath.Rel(ec.dir, path)
	if err != nil {
		return fmt.Errorf("failed to determine path of %s relative to %s: %w", path, ec.dir, err)
	}

	rel = filepath.ToSlash(rel)
	base := filepath.Base(rel)

	for _, s := range ec.sections {
		target := base
		if s.matchDir {
			target = rel
		}

		if !s.glob.Match(target) {
			continue
		}

		for k, v := range s.props {
			props[k] = v
		}
	}

	return nil
}

// editorConfigProperties collects the properties applying to path from every .editorconfig above it, stopping at the
// first one marked as root.
// It returns nil if no .editorconfig was found.
func editorConfigProperties(fs billy.Filesystem, path string) (map[string]string, error) {
	var configs []*editorConfig

	for _, dir := range precise.Parents(path) {
		data, err := util.ReadFile(fs, filepath.Join(dir, EditorConfigFile))
		if errors.Is(err, os.ErrNotExist) {
			continue
		} else if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", filepath.Join(dir, EditorConfigFile), err)
		}

		ec, err := parseEditorConfig(dir, data)
		if err != nil {
			return nil, err
		}

		configs = append(configs, ec)

		if ec.root {
			break
		}
	}

	if len(configs) == 0 {
		return nil, nil
	}

	props := make(map[string]string)

	// closer files take precedence, so we apply them last
	for idx := len(configs) - 1; idx >= 0; idx-- {
		if err := configs[idx].apply(path, props); err != nil {
			return nil, err
		}
	}

	return props, nil
}

// configFromProperties maps the EditorConfig properties understood by shfmt onto a Config.
func configFromProperties(props map[string]string) (*Config, error) {
	cfg := &Config{
		Variant:          props["shell_variant"],
		BinaryNextLine:   props["binary_next_line"] == "true",
		SwitchCaseIndent: props["switch_case_indent"] == "true",
		SpaceRedirects:   props["space_redirects"] == "true",
		FunctionNextLine: props["function_next_line"] == "true",
	}

	if size, ok := props["indent_size"]; ok && size != "tab" && props["indent_style"] != "tab" {
		n, err := strconv.ParseUint(size, 10, 8)
		if err != nil {
			return nil, fmt.Errorf("invalid indent_size %q: %w", size, err)
		}

		cfg.Indent = uint(n)
	}

	return cfg, nil
}
