// Package matcher decides which candidate paths are handed to which formatter.
package matcher

type Result int

const (
	// File explicitly selected.
	Wanted Result = iota
	// File explicitly rejected.
	Unwanted
	// File neither selected nor rejected.
	Indifferent
	// Something went wrong.
	Error
)

func (r Result) String() string {
	switch r {
	case Wanted:
		return "wanted"
	case Unwanted:
		return "unwanted"
	case Indifferent:
		return "indifferent"
	default:
		return "error"
	}
}

// MatchFn inspects a path relative to the tree root.
type MatchFn = func(path string) (Result, error)

// Combine combines multiple matchers into a single matcher.
// The order of the matchers is important, which is why have explicit parameters for includes and excludes.
func Combine(includes []MatchFn, excludes []MatchFn) MatchFn {
	// Combine the matchers, ensuring exclusions are applied first.
	// This ensures that a file is rejected if it matches any of the excludes, even if it matches an include.
	matchers := make([]MatchFn, 0, len(excludes)+len(includes))
	matchers = append(matchers, excludes...)
	matchers = append(matchers, includes...)

	return func(path string) (Result, error) {
		var (
			err error
			// Default to "don't care."
			result = Indifferent
		)

		for _, matchFn := range matchers {
			result, err = matchFn(path)
			if err != nil {
				return Error, err
			}

			switch result {
			case Wanted, Unwanted:
				return result, nil

			case Indifferent:
			case Error:
			default:
			}
		}

		return result, nil
	}
}
