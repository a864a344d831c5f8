// Package paths normalizes, expands and relativizes filesystem paths so that
// coverage keys recorded on one machine can be matched against files on another.
package paths

import (
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
)

var windowsDrive = regexp.MustCompile(`^[A-Za-z]:[/\\]`)

// ToSlash converts every backslash to a forward slash, regardless of OS.
func ToSlash(p string) string {
	return strings.ReplaceAll(p, `\`, "/")
}

// Normalize canonicalizes p for comparison only: forward slashes, cleaned
// components, and lower case when foldCase is set. Stored keys are never
// rewritten with it.
func Normalize(p string, foldCase bool) string {
	if p == "" {
		return p
	}
	out := path.Clean(ToSlash(p))
	if foldCase {
		out = strings.ToLower(out)
	}
	return out
}

// IsAbs reports whether p is absolute, including Windows drive paths on any OS.
func IsAbs(p string) bool {
	if p == "" {
		return false
	}
	if windowsDrive.MatchString(p) {
		return true
	}
	return filepath.IsAbs(p) || strings.HasPrefix(p, "/")
}

// Expand returns p as a cleaned absolute path, resolving relative paths
// against base (or the working directory when base is empty). A leading "~/"
// expands to the home directory.
func Expand(p, base string) string {
	if p == "" {
		return p
	}
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			p = filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	if IsAbs(p) {
		return filepath.Clean(p)
	}
	if base == "" {
		wd, err := os.Getwd()
		if err != nil {
			return filepath.Clean(p)
		}
		base = wd
	} else if !IsAbs(base) {
		base = Expand(base, "")
	}
	return filepath.Clean(filepath.Join(base, p))
}

// WithinRoot reports whether p equals root or lies below it.
func WithinRoot(p, root string, foldCase bool) bool {
	if p == "" || root == "" {
		return false
	}
	np := Normalize(Expand(p, ""), foldCase)
	nr := Normalize(Expand(root, ""), foldCase)
	return np == nr || strings.HasPrefix(np, rootPrefix(nr))
}

// Relativize converts p to a path relative to root, preserving the original
// case of p. Paths outside root are returned unchanged.
func Relativize(p, root string, foldCase bool) string {
	if p == "" || root == "" {
		return p
	}
	abs := p
	if !IsAbs(abs) {
		abs = Expand(p, root)
	}
	if !WithinRoot(abs, root, foldCase) {
		return p
	}

	slashAbs := Normalize(abs, false)
	slashRoot := Normalize(Expand(root, ""), false)
	if len(slashAbs) == len(slashRoot) {
		return "."
	}
	rel := strings.TrimPrefix(slashAbs[len(slashRoot):], "/")
	return filepath.FromSlash(rel)
}

// rootPrefix returns root with exactly one trailing slash.
func rootPrefix(root string) string {
	if strings.HasSuffix(root, "/") {
		return root
	}
	return root + "/"
}

// StripRoot removes the root prefix from an already-normalized path.
// It returns false when p is not below root.
func StripRoot(p, root string) (string, bool) {
	if root == "" {
		return "", false
	}
	prefix := rootPrefix(root)
	if !strings.HasPrefix(p, prefix) {
		return "", false
	}
	return p[len(prefix):], true
}
