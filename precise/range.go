package precise

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
)

var ErrInvalidRange = errors.New("invalid character range")

// CharacterRange identifies a contiguous region of a file's contents as a half-open [RangeStart, RangeEnd) pair of
// byte offsets.
// A range where RangeStart == RangeEnd marks a single position, such as the site of a deletion.
type CharacterRange struct {
	RangeStart int `toml:"start" msgpack:"start"`
	RangeEnd   int `toml:"end" msgpack:"end"`
}

func (r CharacterRange) String() string {
	return fmt.Sprintf("[%d, %d)", r.RangeStart, r.RangeEnd)
}

// touches reports whether a hunk replacing [start, end) of the original contents edits r.
// An insertion (start == end) belongs to the line it precedes, so it touches r only when it lies within
// [RangeStart, RangeEnd). A point range is touched by anything at or around its position.
func (r CharacterRange) touches(start, end int) bool {
	switch {
	case r.RangeStart == r.RangeEnd:
		return start <= r.RangeStart && r.RangeStart <= end
	case start == end:
		return r.RangeStart <= start && start < r.RangeEnd
	default:
		return start < r.RangeEnd && r.RangeStart < end
	}
}

// WholeFile returns a single range covering all of contents.
func WholeFile(contents string) []CharacterRange {
	return []CharacterRange{{RangeStart: 0, RangeEnd: len(contents)}}
}

// NormalizeRanges validates the given ranges, clamps them to [0, length] and merges any which overlap or are
// adjacent, returning them sorted by their start offset.
func NormalizeRanges(ranges []CharacterRange, length int) ([]CharacterRange, error) {
	if len(ranges) == 0 {
		return nil, nil
	}

	result := make([]CharacterRange, 0, len(ranges))

	for _, r := range ranges {
		if r.RangeStart < 0 || r.RangeStart > r.RangeEnd {
			return nil, fmt.Errorf("%w: %v", ErrInvalidRange, r)
		}

		r.RangeStart = min(r.RangeStart, length)
		r.RangeEnd = min(r.RangeEnd, length)

		result = append(result, r)
	}

	slices.SortFunc(result, func(a, b CharacterRange) int {
		if c := cmp.Compare(a.RangeStart, b.RangeStart); c != 0 {
			return c
		}

		return cmp.Compare(a.RangeEnd, b.RangeEnd)
	})

	merged := result[:1]

	for _, r := range result[1:] {
		last := &merged[len(merged)-1]
		if r.RangeStart <= last.RangeEnd {
			last.RangeEnd = max(last.RangeEnd, r.RangeEnd)

			continue
		}

		merged = append(merged, r)
	}

	return merged, nil
}
