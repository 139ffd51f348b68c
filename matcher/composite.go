package matcher

import (
	"github.com/numtide/precisefmt/precise"
)

// Predicate rejects any path the ignore predicate does not keep.
func Predicate(keep precise.Predicate) MatchFn {
	return func(path string) (Result, error) {
		if keep(path) {
			return Indifferent, nil
		}

		return Unwanted, nil
	}
}

// Extension wants any path the plugin has a supported file extension for.
func Extension(plugin precise.Plugin) MatchFn {
	return func(path string) (Result, error) {
		if plugin.HasSupportedFileExtension(path) {
			return Wanted, nil
		}

		return Indifferent, nil
	}
}

// Plugin builds the matcher deciding whether plugin should process a path: globally excluded paths and those
// dropped by the plugin's ignore file are rejected first, then paths with a supported extension are wanted.
func Plugin(plugin precise.Plugin, keep precise.Predicate, excludes ...MatchFn) MatchFn {
	rejects := make([]MatchFn, 0, len(excludes)+1)
	rejects = append(rejects, excludes...)
	rejects = append(rejects, Predicate(keep))

	return Combine([]MatchFn{Extension(plugin)}, rejects)
}
