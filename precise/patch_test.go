package precise

import (
	"errors"
	"go/parser"
	"go/token"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const (
	unformatted = "a  =  1\nb  =  2\nc  =  3\n"
	formatted   = "a = 1\nb = 2\nc = 3\n"
)

// line returns the range covering the nth (zero-indexed) line of contents, including its newline.
func line(contents string, n int) CharacterRange {
	start := 0
	for i := 0; i < n; i++ {
		start += strings.IndexByte(contents[start:], '\n') + 1
	}

	end := start + strings.IndexByte(contents[start:], '\n') + 1

	return CharacterRange{RangeStart: start, RangeEnd: end}
}

func TestRestrict(t *testing.T) {
	as := require.New(t)

	as.Equal(unformatted, Restrict(unformatted, formatted, nil))
	as.Equal(formatted, Restrict(unformatted, formatted, WholeFile(unformatted)))

	as.Equal(
		"a  =  1\nb = 2\nc  =  3\n",
		Restrict(unformatted, formatted, []CharacterRange{line(unformatted, 1)}),
	)

	as.Equal(
		"a = 1\nb  =  2\nc = 3\n",
		Restrict(unformatted, formatted, []CharacterRange{line(unformatted, 0), line(unformatted, 2)}),
	)
}

func TestRestrictInsertions(t *testing.T) {
	as := require.New(t)

	original := "x\ny\n"
	target := "x\n\ty\n"

	// the insertion sits at the very start of the second line
	as.Equal(target, Restrict(original, target, []CharacterRange{line(original, 1)}))
	as.Equal(original, Restrict(original, target, []CharacterRange{{RangeStart: 0, RangeEnd: 1}}))

	// a line inserted after the range belongs to the following line
	original = "a\nb\n"
	target = "a\nx\nb\n"

	as.Equal(original, Restrict(original, target, []CharacterRange{line(original, 0)}))
	as.Equal(target, Restrict(original, target, []CharacterRange{line(original, 1)}))
}

func TestRestrictLeavesNextLine(t *testing.T) {
	as := require.New(t)

	original := "func f() {\nx := 10\ny := 2\n}\n"
	target := "func f() {\n\tx := 10\n\ty := 2\n}\n"

	as.Equal(
		"func f() {\n\tx := 10\ny := 2\n}\n",
		Restrict(original, target, []CharacterRange{line(original, 1)}),
	)
	as.Equal(
		"func f() {\nx := 10\n\ty := 2\n}\n",
		Restrict(original, target, []CharacterRange{line(original, 2)}),
	)
}

func parseGo(contents string) error {
	_, err := parser.ParseFile(token.NewFileSet(), "main.go", contents, parser.SkipObjectResolution)

	return err
}

func TestFormatRangesRestructured(t *testing.T) {
	as := require.New(t)

	// the formatter replaced two lines with four, so the edit is applied as a whole
	original := "package main\n\nvar a   = 1\nvar b   = 2\n"
	target := "package main\n\nvar (\n\ta = 1\n\tb = 2\n)\n"

	result, err := FormatRanges(original, target, []CharacterRange{line(original, 3)}, parseGo)
	as.NoError(err)
	as.Equal(target, result)
	as.NoError(parseGo(result))
}

func TestFormatRangesWidens(t *testing.T) {
	as := require.New(t)

	balanced := func(contents string) error {
		if strings.Count(contents, "(") != strings.Count(contents, ")") {
			return errors.New("unbalanced parentheses")
		}

		return nil
	}

	original := "a\nb\nc\nd\n"
	target := "a(\nb\nc)\nd\n"

	// on its own the edit to c is rejected, so it is widened to include the edit to a
	result, err := FormatRanges(original, target, []CharacterRange{line(original, 2)}, balanced)
	as.NoError(err)
	as.Equal(target, result)

	// without validation only the requested line is edited
	result, err = FormatRanges(original, target, []CharacterRange{line(original, 2)}, nil)
	as.NoError(err)
	as.Equal("a\nb\nc)\nd\n", result)

	// nothing is accepted
	_, err = FormatRanges(original, target, []CharacterRange{line(original, 2)}, func(string) error {
		return errors.New("never valid")
	})
	as.ErrorIs(err, ErrInvalidEdit)
}

func TestPatch(t *testing.T) {
	as := require.New(t)

	result, err := Patch(unformatted, formatted)
	as.NoError(err)
	as.Equal(formatted, result)

	result, err = Patch(formatted, formatted)
	as.NoError(err)
	as.Equal(formatted, result)
}

func TestFormatRanges(t *testing.T) {
	as := require.New(t)

	result, err := FormatRanges(unformatted, formatted, nil, nil)
	as.NoError(err)
	as.Equal(unformatted, result)

	// overlapping ranges are merged before patching
	result, err = FormatRanges(unformatted, formatted, []CharacterRange{
		line(unformatted, 1),
		{RangeStart: 9, RangeEnd: 12},
		line(unformatted, 1),
	}, nil)
	as.NoError(err)
	as.Equal("a  =  1\nb = 2\nc  =  3\n", result)

	_, err = FormatRanges(unformatted, formatted, []CharacterRange{{RangeStart: 3, RangeEnd: 1}}, nil)
	as.ErrorIs(err, ErrInvalidRange)
}

func TestCheckRanges(t *testing.T) {
	as := require.New(t)

	partial := "a = 1\nb  =  2\n"
	partialFormatted := "a = 1\nb = 2\n"

	ok, err := CheckRanges(partial, partialFormatted, []CharacterRange{line(partial, 0)})
	as.NoError(err)
	as.True(ok)

	ok, err = CheckRanges(partial, partialFormatted, []CharacterRange{line(partial, 0), line(partial, 1)})
	as.NoError(err)
	as.False(ok)

	ok, err = CheckRanges(partial, partialFormatted, nil)
	as.NoError(err)
	as.True(ok)

	// an unformatted line following the range is not reported
	ok, err = CheckRanges("x\ny\n", "x\n\ty\n", []CharacterRange{line("x\ny\n", 0)})
	as.NoError(err)
	as.True(ok)
}
