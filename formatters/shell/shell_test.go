package shell

import (
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/numtide/precisefmt/precise"
	"github.com/stretchr/testify/require"
)

func TestResolveConfig(t *testing.T) {
	as := require.New(t)

	fs := memfs.New()

	// anything above a root editorconfig must be ignored
	as.NoError(util.WriteFile(fs, EditorConfigFile, []byte(`
[*]
indent_size = 8
space_redirects = true
`), 0o644))

	as.NoError(util.WriteFile(fs, "project/"+EditorConfigFile, []byte(`
root = true

[*]
indent_style = space
indent_size = 2

[*.bash]
shell_variant = posix
binary_next_line = true

[scripts/**]
switch_case_indent = true
`), 0o644))

	as.NoError(util.WriteFile(fs, "project/scripts/"+EditorConfigFile, []byte(`
[*.sh]
indent_size = 4
function_next_line = true
`), 0o644))

	f := New(fs)

	cfg, err := f.ResolveConfig("project/scripts/deploy.sh")
	as.NoError(err)
	as.Equal(&Config{Indent: 4, SwitchCaseIndent: true, FunctionNextLine: true}, cfg)

	cfg, err = f.ResolveConfig("project/build.bash")
	as.NoError(err)
	as.Equal(&Config{Variant: "posix", Indent: 2, BinaryNextLine: true}, cfg)

	cfg, err = f.ResolveConfig("project/tests/run.bats")
	as.NoError(err)
	as.Equal(&Config{Variant: "bats", Indent: 2}, cfg)

	// no root, so the top level editorconfig applies
	cfg, err = f.ResolveConfig("other/run.sh")
	as.NoError(err)
	as.Equal(&Config{Indent: 8, SpaceRedirects: true}, cfg)

	// nothing at all
	cfg, err = New(memfs.New()).ResolveConfig("run.mksh")
	as.NoError(err)
	as.Equal(&Config{Variant: "mksh"}, cfg)
}

func TestResolveConfigTabs(t *testing.T) {
	as := require.New(t)

	fs := memfs.New()
	as.NoError(util.WriteFile(fs, EditorConfigFile, []byte("root = true\n\n[*]\nindent_style = tab\nindent_size = 4\n"), 0o644))

	cfg, err := New(fs).ResolveConfig("run.sh")
	as.NoError(err)
	as.Equal(uint(0), cfg.Indent)

	as.NoError(util.WriteFile(fs, EditorConfigFile, []byte("root = true\n\n[*]\nindent_size = four\n"), 0o644))

	_, err = New(fs).ResolveConfig("run.sh")
	as.ErrorContains(err, "invalid indent_size")
}

func TestFormatting(t *testing.T) {
	as := require.New(t)

	f := New(memfs.New())

	contents := "echo   a\necho   b\n"
	first := precise.CharacterRange{RangeStart: 0, RangeEnd: 9}

	done, err := f.IsAlreadyFormatted("echo a\n", nil)
	as.NoError(err)
	as.True(done)

	done, err = f.IsAlreadyFormatted(contents, nil)
	as.NoError(err)
	as.False(done)

	ok, err := f.CheckFormattingOfRanges(contents, nil, []precise.CharacterRange{first})
	as.NoError(err)
	as.False(ok)

	result, err := f.FormatRanges(contents, nil, []precise.CharacterRange{first})
	as.NoError(err)
	as.Equal("echo a\necho   b\n", result)

	ok, err = f.CheckFormattingOfRanges(result, nil, []precise.CharacterRange{first})
	as.NoError(err)
	as.True(ok)
}

func TestFormatRangesLeavesNextLine(t *testing.T) {
	as := require.New(t)

	f := New(memfs.New())

	contents := "if true; then\necho a\necho b\nfi\n"
	first := precise.CharacterRange{RangeStart: 14, RangeEnd: 21}

	result, err := f.FormatRanges(contents, nil, []precise.CharacterRange{first})
	as.NoError(err)
	as.Equal("if true; then\n\techo a\necho b\nfi\n", result)
	as.NoError(f.Validate(result, nil))

	ok, err := f.CheckFormattingOfRanges(contents, nil, []precise.CharacterRange{{RangeStart: 0, RangeEnd: 14}})
	as.NoError(err)
	as.True(ok, "the indentation of the following line is not part of the range")
}

func TestValidate(t *testing.T) {
	as := require.New(t)

	f := New(memfs.New())

	as.NoError(f.Validate("if true; then\necho a\nfi\n", nil))
	as.ErrorContains(f.Validate("if true; then\necho a\n", nil), "invalid bash script")
}

func TestIndentation(t *testing.T) {
	as := require.New(t)

	f := New(memfs.New())

	contents := "if true; then\necho a\nfi\n"

	result, err := f.FormatRanges(contents, &Config{Indent: 2}, precise.WholeFile(contents))
	as.NoError(err)
	as.Equal("if true; then\n  echo a\nfi\n", result)

	result, err = f.FormatRanges(contents, nil, precise.WholeFile(contents))
	as.NoError(err)
	as.Equal("if true; then\n\techo a\nfi\n", result)
}

func TestVariant(t *testing.T) {
	as := require.New(t)

	f := New(memfs.New())

	// arrays are not valid posix
	_, err := f.IsAlreadyFormatted("#!/bin/sh\nfoo=(a b)\n", nil)
	as.Error(err)

	done, err := f.IsAlreadyFormatted("#!/usr/bin/env bash\nfoo=(a b)\n", nil)
	as.NoError(err)
	as.True(done)

	_, err = f.IsAlreadyFormatted("foo=(a b)\n", &Config{Variant: "posix"})
	as.Error(err)

	_, err = f.IsAlreadyFormatted("echo a\n", &Config{Variant: "fish"})
	as.ErrorContains(err, "unsupported shell variant")
}

func TestHasSupportedFileExtension(t *testing.T) {
	as := require.New(t)

	f := New(memfs.New())

	as.True(f.HasSupportedFileExtension("run.sh"))
	as.True(f.HasSupportedFileExtension("scripts/build.bash"))
	as.True(f.HasSupportedFileExtension("test/run.bats"))
	as.True(f.HasSupportedFileExtension("RUN.SH"))
	as.False(f.HasSupportedFileExtension("main.go"))
	as.False(f.HasSupportedFileExtension("Makefile"))
}

func TestIgnorePredicate(t *testing.T) {
	as := require.New(t)

	fs := memfs.New()
	as.NoError(util.WriteFile(fs, IgnoreFile, []byte("vendor/\n"), 0o644))

	keep, err := New(fs).IgnorePredicate(".")
	as.NoError(err)
	as.True(keep("run.sh"))
	as.False(keep("vendor/lib.sh"))
}
