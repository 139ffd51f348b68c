package stats

import (
	"fmt"
	"strings"
	"sync/atomic"
	"time"
)

type Type int

const (
	Traversed Type = iota
	Matched
	Formatted
	Changed
	Unformatted
)

func (t Type) String() string {
	switch t {
	case Traversed:
		return "traversed"
	case Matched:
		return "matched"
	case Formatted:
		return "formatted"
	case Changed:
		return "changed"
	case Unformatted:
		return "unformatted"
	default:
		return fmt.Sprintf("Type(%d)", int(t))
	}
}

type Stats struct {
	start    time.Time
	counters map[Type]*atomic.Int64
}

func (s *Stats) Add(t Type, delta int) int {
	return int(s.counters[t].Add(int64(delta)))
}

func (s *Stats) Value(t Type) int {
	return int(s.counters[t].Load())
}

func (s *Stats) Elapsed() time.Duration {
	return time.Since(s.start)
}

func (s *Stats) Print(check bool) {
	components := []string{
		"traversed %d files",
		"matched %d files to formatters",
	}

	args := []any{s.Value(Traversed), s.Value(Matched)}

	if check {
		components = append(components, "checked %d files (%d unformatted) in %v")
		args = append(args, s.Value(Formatted), s.Value(Unformatted))
	} else {
		components = append(components, "formatted %d files (%d changed) in %v")
		args = append(args, s.Value(Formatted), s.Value(Changed))
	}

	args = append(args, s.Elapsed().Round(time.Millisecond))

	fmt.Printf(strings.Join(components, "\n")+"\n", args...)
}

func New() Stats {
	// init counters
	counters := make(map[Type]*atomic.Int64)
	counters[Traversed] = &atomic.Int64{}
	counters[Matched] = &atomic.Int64{}
	counters[Formatted] = &atomic.Int64{}
	counters[Changed] = &atomic.Int64{}
	counters[Unformatted] = &atomic.Int64{}

	return Stats{
		start:    time.Now(),
		counters: counters,
	}
}
