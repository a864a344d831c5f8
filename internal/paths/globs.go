package paths

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// SplitPatterns splits a comma-separated glob list, dropping blanks.
func SplitPatterns(s string) []string {
	var out []string
	for part := range strings.SplitSeq(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// NormalizePatterns trims patterns and drops empty ones.
func NormalizePatterns(globs []string) []string {
	out := make([]string, 0, len(globs))
	for _, g := range globs {
		if g = strings.TrimSpace(g); g != "" {
			out = append(out, g)
		}
	}
	return out
}

// AbsolutizePattern anchors a relative pattern at root. Absolute patterns are
// only cleaned.
func AbsolutizePattern(pattern, root string) string {
	return filepath.ToSlash(Expand(pattern, root))
}

// MatchesAny reports whether absPath matches at least one absolute pattern.
// Matching is purely lexical; "*" stops at separators and "**" crosses them.
func MatchesAny(absPath string, patterns []string) bool {
	target := filepath.ToSlash(absPath)
	for _, p := range patterns {
		if ok, err := doublestar.Match(p, target); err == nil && ok {
			return true
		}
	}
	return false
}

// FilterPaths keeps the absolute paths matched by globs anchored at root.
// With no usable globs every path is kept.
func FilterPaths(absPaths []string, globs []string, root string) []string {
	patterns := NormalizePatterns(globs)
	if len(patterns) == 0 {
		return absPaths
	}
	abs := make([]string, len(patterns))
	for i, p := range patterns {
		abs[i] = AbsolutizePattern(p, root)
	}
	out := make([]string, 0, len(absPaths))
	for _, p := range absPaths {
		if MatchesAny(p, abs) {
			out = append(out, p)
		}
	}
	return out
}

// ExpandGlobs returns the sorted, de-duplicated regular files matched by globs
// anchored at root.
func ExpandGlobs(globs []string, root string) ([]string, error) {
	seen := make(map[string]struct{})
	var out []string
	for _, g := range NormalizePatterns(globs) {
		matches, err := doublestar.FilepathGlob(filepath.FromSlash(AbsolutizePattern(g, root)))
		if err != nil {
			return nil, err
		}
		for _, m := range matches {
			info, err := os.Stat(m)
			if err != nil || !info.Mode().IsRegular() {
				continue
			}
			if _, dup := seen[m]; dup {
				continue
			}
			seen[m] = struct{}{}
			out = append(out, m)
		}
	}
	sort.Strings(out)
	return out, nil
}
