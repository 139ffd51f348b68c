package precise

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeRanges(t *testing.T) {
	as := require.New(t)

	ranges, err := NormalizeRanges(nil, 10)
	as.NoError(err)
	as.Empty(ranges)

	ranges, err = NormalizeRanges([]CharacterRange{
		{RangeStart: 6, RangeEnd: 8},
		{RangeStart: 0, RangeEnd: 2},
		{RangeStart: 1, RangeEnd: 3},
		{RangeStart: 3, RangeEnd: 4},
		{RangeStart: 9, RangeEnd: 20},
	}, 10)
	as.NoError(err)
	as.Equal([]CharacterRange{
		{RangeStart: 0, RangeEnd: 4},
		{RangeStart: 6, RangeEnd: 8},
		{RangeStart: 9, RangeEnd: 10},
	}, ranges)

	_, err = NormalizeRanges([]CharacterRange{{RangeStart: 5, RangeEnd: 2}}, 10)
	as.ErrorIs(err, ErrInvalidRange)

	_, err = NormalizeRanges([]CharacterRange{{RangeStart: -1, RangeEnd: 2}}, 10)
	as.ErrorIs(err, ErrInvalidRange)
}

func TestTouches(t *testing.T) {
	as := require.New(t)

	r := CharacterRange{RangeStart: 5, RangeEnd: 10}

	as.True(r.touches(4, 6))
	as.True(r.touches(9, 12))
	as.True(r.touches(6, 6), "insertion inside")
	as.True(r.touches(5, 5), "insertion at start")
	as.False(r.touches(10, 10), "insertion at end belongs to the next line")
	as.True(r.touches(9, 9), "insertion before the last byte")
	as.False(r.touches(0, 5))
	as.False(r.touches(10, 12))
	as.False(r.touches(11, 11))

	point := CharacterRange{RangeStart: 5, RangeEnd: 5}
	as.True(point.touches(3, 7))
	as.True(point.touches(5, 8))
	as.False(point.touches(6, 8))
	as.True(point.touches(5, 5))
	as.False(point.touches(4, 4))
}

func TestParents(t *testing.T) {
	as := require.New(t)

	as.Equal([]string{"a/b", "a", "."}, Parents("a/b/c.go"))
	as.Equal([]string{"."}, Parents("c.go"))
}
