package golang

import (
	"strings"
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/numtide/precisefmt/precise"
	"github.com/stretchr/testify/require"
)

const source = `package main

func a() {
	x:=1
	_ = x
}

func b() {
	y:=2
	_ = y
}
`

func lineRange(contents string, substr string) precise.CharacterRange {
	start := strings.Index(contents, substr)
	start = strings.LastIndexByte(contents[:start], '\n') + 1
	end := start + strings.IndexByte(contents[start:], '\n') + 1

	return precise.CharacterRange{RangeStart: start, RangeEnd: end}
}

func TestResolveConfig(t *testing.T) {
	as := require.New(t)

	fs := memfs.New()
	as.NoError(util.WriteFile(fs, "go.mod", []byte("module example.com/foo\n\ngo 1.22\n"), 0o644))
	as.NoError(util.WriteFile(fs, "nested/go.mod", []byte("module example.com/foo/nested\n"), 0o644))

	f := New(fs, Options{})

	cfg, err := f.ResolveConfig("pkg/util/util.go")
	as.NoError(err)
	as.Equal(&Config{ModulePath: "example.com/foo", LangVersion: "go1.22"}, cfg)

	cfg, err = f.ResolveConfig("nested/main.go")
	as.NoError(err)
	as.Equal(&Config{ModulePath: "example.com/foo/nested"}, cfg)

	// outside of any module
	cfg, err = New(memfs.New(), Options{}).ResolveConfig("main.go")
	as.NoError(err)
	as.Nil(cfg)

	cfg, err = New(memfs.New(), Options{ExtraRules: true}).ResolveConfig("main.go")
	as.NoError(err)
	as.Equal(&Config{ExtraRules: true}, cfg)
}

func TestResolveConfigInvalid(t *testing.T) {
	as := require.New(t)

	fs := memfs.New()
	as.NoError(util.WriteFile(fs, "go.mod", []byte("module \"example.com/foo\n"), 0o644))

	_, err := New(fs, Options{}).ResolveConfig("main.go")
	as.ErrorContains(err, "failed to parse go.mod")
}

func TestFormatting(t *testing.T) {
	as := require.New(t)

	f := New(memfs.New(), Options{})

	done, err := f.IsAlreadyFormatted(source, nil)
	as.NoError(err)
	as.False(done)

	lineA := lineRange(source, "x:=1")
	lineB := lineRange(source, "y:=2")
	signature := lineRange(source, "func a()")

	ok, err := f.CheckFormattingOfRanges(source, nil, []precise.CharacterRange{signature})
	as.NoError(err)
	as.True(ok)

	ok, err = f.CheckFormattingOfRanges(source, nil, []precise.CharacterRange{signature, lineA})
	as.NoError(err)
	as.False(ok)

	result, err := f.FormatRanges(source, nil, []precise.CharacterRange{lineA})
	as.NoError(err)
	as.Equal(strings.Replace(source, "x:=1", "x := 1", 1), result)

	result, err = f.FormatRanges(source, nil, []precise.CharacterRange{lineA, lineB})
	as.NoError(err)

	done, err = f.IsAlreadyFormatted(result, nil)
	as.NoError(err)
	as.True(done)
}

func TestFormatRangesLeavesNextLine(t *testing.T) {
	as := require.New(t)

	f := New(memfs.New(), Options{})

	contents := "package main\n\nfunc f() {\nx := 10\ny := 2\n_, _ = x, y\n}\n"

	result, err := f.FormatRanges(contents, nil, []precise.CharacterRange{lineRange(contents, "x := 10")})
	as.NoError(err)
	as.Equal("package main\n\nfunc f() {\n\tx := 10\ny := 2\n_, _ = x, y\n}\n", result)
	as.NoError(f.Validate(result, nil))

	ok, err := f.CheckFormattingOfRanges(result, nil, []precise.CharacterRange{lineRange(result, "x := 10")})
	as.NoError(err)
	as.True(ok, "the unformatted line after the range is not reported")
}

func TestFormatRangesStillParses(t *testing.T) {
	as := require.New(t)

	f := New(memfs.New(), Options{})

	contents := "package main\n\nvar a   = 1\nvar b   = 2\n"

	result, err := f.FormatRanges(contents, nil, []precise.CharacterRange{lineRange(contents, "var b")})
	as.NoError(err)
	as.NoError(f.Validate(result, nil))
	as.Contains(result, "b = 2")
}

func TestValidate(t *testing.T) {
	as := require.New(t)

	f := New(memfs.New(), Options{})

	as.NoError(f.Validate(source, nil))
	as.ErrorContains(f.Validate("package main\n\nvar a   = 1\n\tb = 2\n)\n", nil), "invalid go source")
}

func TestProcess(t *testing.T) {
	as := require.New(t)

	plugin := precise.Wrap[Config](New(memfs.New(), Options{}))

	lineA := lineRange(source, "x:=1")

	result, err := plugin.Process(&precise.Request{
		Path:     "main.go",
		Contents: source,
		Ranges:   []precise.CharacterRange{lineA},
		Check:    true,
	})
	as.NoError(err)
	as.False(result.AlreadyFormatted)
	as.False(result.Formatted)
	as.False(result.Changed)

	result, err = plugin.Process(&precise.Request{
		Path:     "main.go",
		Contents: source,
		Ranges:   []precise.CharacterRange{lineA},
	})
	as.NoError(err)
	as.True(result.Formatted)
	as.True(result.Changed)
	as.Equal(strings.Replace(source, "x:=1", "x := 1", 1), result.Contents)

	formatted, err := New(memfs.New(), Options{}).Format(source, nil)
	as.NoError(err)

	result, err = plugin.Process(&precise.Request{Path: "main.go", Contents: formatted, Ranges: precise.WholeFile(formatted)})
	as.NoError(err)
	as.True(result.AlreadyFormatted)
	as.False(result.Changed)
}

func TestSyntaxError(t *testing.T) {
	as := require.New(t)

	f := New(memfs.New(), Options{})

	_, err := f.IsAlreadyFormatted("package main\n\nfunc {\n", nil)
	as.ErrorContains(err, "gofumpt failed")

	_, err = f.FormatRanges("package main\n\nfunc {\n", nil, precise.WholeFile("package main\n\nfunc {\n"))
	as.Error(err)
}

func TestIgnorePredicate(t *testing.T) {
	as := require.New(t)

	fs := memfs.New()
	as.NoError(util.WriteFile(fs, IgnoreFile, []byte("*_gen.go\n"), 0o644))

	keep, err := New(fs, Options{}).IgnorePredicate(".")
	as.NoError(err)
	as.True(keep("main.go"))
	as.False(keep("pkg/types_gen.go"))
}

func TestHasSupportedFileExtension(t *testing.T) {
	as := require.New(t)

	f := New(memfs.New(), Options{})

	as.True(f.HasSupportedFileExtension("main.go"))
	as.True(f.HasSupportedFileExtension("pkg/util/util_test.go"))
	as.False(f.HasSupportedFileExtension("go.mod"))
	as.False(f.HasSupportedFileExtension("main.go.txt"))
	as.False(f.HasSupportedFileExtension("Makefile"))
}
