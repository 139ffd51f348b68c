package precise

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

var (
	ErrPatchFailed = errors.New("failed to apply patch")
	ErrInvalidEdit = errors.New("formatting the ranges produced invalid source")
)

// Validator returns an error if contents can not be parsed.
type Validator func(contents string) error

func newDiffMatchPatch() *diffmatchpatch.DiffMatchPatch {
	dmp := diffmatchpatch.New()
	// source files are small enough that we always want the optimal diff rather than a fast one
	dmp.DiffTimeout = 0

	return dmp
}

// hunk replaces original[start:end] with replacement.
type hunk struct {
	start, end  int
	replacement string
}

// touches reports whether the hunk edits any of ranges.
func (h hunk) touches(ranges []CharacterRange) bool {
	for _, r := range ranges {
		if r.touches(h.start, h.end) {
			return true
		}
	}

	return false
}

func splitLines(text string) []string {
	lines := strings.SplitAfter(text, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}

	return lines
}

// hunks diffs original against formatted line by line.
// A run of changed lines replaced by the same number of lines is split into one hunk per line, any other run is kept
// whole as the formatter restructured it.
func hunks(original, formatted string) []hunk {
	dmp := newDiffMatchPatch()

	a, b, lines := dmp.DiffLinesToChars(original, formatted)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)

	var (
		result []hunk
		pos    int // offset into original
	)

	for idx := 0; idx < len(diffs); {
		if diffs[idx].Type == diffmatchpatch.DiffEqual {
			pos += len(diffs[idx].Text)
			idx++

			continue
		}

		var deleted, inserted []string

		for ; idx < len(diffs) && diffs[idx].Type != diffmatchpatch.DiffEqual; idx++ {
			switch diffs[idx].Type {
			case diffmatchpatch.DiffDelete:
				deleted = append(deleted, splitLines(diffs[idx].Text)...)
			case diffmatchpatch.DiffInsert:
				inserted = append(inserted, splitLines(diffs[idx].Text)...)
			case diffmatchpatch.DiffEqual:
			}
		}

		if len(deleted) > 0 && len(deleted) == len(inserted) {
			for i, line := range deleted {
				result = append(result, hunk{start: pos, end: pos + len(line), replacement: inserted[i]})
				pos += len(line)
			}

			continue
		}

		start := pos
		for _, line := range deleted {
			pos += len(line)
		}

		result = append(result, hunk{start: start, end: pos, replacement: strings.Join(inserted, "")})
	}

	return result
}

// apply returns original with the selected hunks applied.
func apply(original string, hs []hunk, selected []bool) string {
	var (
		sb  strings.Builder
		pos int
	)

	sb.Grow(len(original))

	for idx, h := range hs {
		if !selected[idx] {
			continue
		}

		sb.WriteString(original[pos:h.start])
		sb.WriteString(h.replacement)
		pos = h.end
	}

	sb.WriteString(original[pos:])

	return sb.String()
}

// selectTouching marks the hunks which edit any of ranges, returning false if none do.
func selectTouching(hs []hunk, ranges []CharacterRange) ([]bool, bool) {
	selected := make([]bool, len(hs))
	touched := false

	for idx, h := range hs {
		if h.touches(ranges) {
			selected[idx] = true
			touched = true
		}
	}

	return selected, touched
}

// widen additionally selects the neighbours of every selected hunk, returning false if all hunks were already selected.
func widen(selected []bool) bool {
	next := make([]bool, len(selected))
	grew := false

	for idx, ok := range selected {
		if !ok {
			continue
		}

		next[idx] = true

		for _, n := range []int{idx - 1, idx + 1} {
			if n >= 0 && n < len(selected) && !selected[n] {
				next[n] = true
				grew = true
			}
		}
	}

	copy(selected, next)

	return grew
}

// Restrict diffs original against its fully formatted form and returns original with only those edits applied which
// touch at least one of the given ranges.
// Every other hunk is reverted, so text outside the ranges is left exactly as it was.
func Restrict(original, formatted string, ranges []CharacterRange) string {
	if original == formatted || len(ranges) == 0 {
		return original
	}

	hs := hunks(original, formatted)

	selected, _ := selectTouching(hs, ranges)

	return apply(original, hs, selected)
}

// Patch turns the edits between original and target into diff-match-patch patches and applies them to original.
// It re-applies what Restrict produced as a patch, failing if the patch does not reproduce target exactly.
func Patch(original, target string) (string, error) {
	if original == target {
		return original, nil
	}

	dmp := newDiffMatchPatch()

	diffs := dmp.DiffMain(original, target, true)
	patches := dmp.PatchMake(original, diffs)

	result, applied := dmp.PatchApply(patches, original)
	for idx, ok := range applied {
		if !ok {
			return "", fmt.Errorf("%w: %s", ErrPatchFailed, patches[idx].String())
		}
	}

	if result != target {
		return "", fmt.Errorf("%w: patched contents do not match the expected result", ErrPatchFailed)
	}

	return result, nil
}

// FormatRanges reformats only the given ranges of original, taking the edits from formatted, which must be the
// result of formatting the whole of original.
// When validate rejects the result, the edits are widened to their neighbouring hunks until it is accepted; if even
// the fully formatted contents are rejected ErrInvalidEdit is returned.
func FormatRanges(original, formatted string, ranges []CharacterRange, validate Validator) (string, error) {
	ranges, err := NormalizeRanges(ranges, len(original))
	if err != nil {
		return "", err
	}

	if original == formatted || len(ranges) == 0 {
		return original, nil
	}

	hs := hunks(original, formatted)

	selected, ok := selectTouching(hs, ranges)
	if !ok {
		return original, nil
	}

	target := apply(original, hs, selected)

	if validate != nil {
		for {
			verr := validate(target)
			if verr == nil {
				break
			}

			if !widen(selected) {
				return "", fmt.Errorf("%w: %w", ErrInvalidEdit, verr)
			}

			target = apply(original, hs, selected)
		}
	}

	return Patch(original, target)
}

// CheckRanges returns true if none of the edits needed to turn original into formatted touch the given ranges.
func CheckRanges(original, formatted string, ranges []CharacterRange) (bool, error) {
	ranges, err := NormalizeRanges(ranges, len(original))
	if err != nil {
		return false, err
	}

	if original == formatted {
		return true, nil
	}

	_, touched := selectTouching(hunks(original, formatted), ranges)

	return !touched, nil
}
