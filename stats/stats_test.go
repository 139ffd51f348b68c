package stats

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	as := require.New(t)

	s := New()

	for _, typ := range []Type{Traversed, Matched, Formatted, Changed, Unformatted} {
		as.Zero(s.Value(typ), typ.String())
	}

	var wg sync.WaitGroup

	for range 100 {
		wg.Add(1)

		go func() {
			defer wg.Done()
			s.Add(Traversed, 1)
			s.Add(Changed, 2)
		}()
	}

	wg.Wait()

	as.Equal(100, s.Value(Traversed))
	as.Equal(200, s.Value(Changed))
	as.Zero(s.Value(Matched))
	as.Equal(201, s.Add(Changed, 1))
}

func TestTypeString(t *testing.T) {
	as := require.New(t)

	as.Equal("traversed", Traversed.String())
	as.Equal("unformatted", Unformatted.String())
	as.Equal("Type(42)", Type(42).String())
}
