// Package resultset finds, parses and normalizes SimpleCov .resultset.json files.
package resultset

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/keithrbennett/covloupe/internal/paths"
	"github.com/keithrbennett/covloupe/schema"
)

// Filename is the well-known name of a resultset file.
const Filename = ".resultset.json"

// DefaultCandidates are probed under the root, in order, when no hint is given.
var DefaultCandidates = []string{
	Filename,
	filepath.Join("coverage", Filename),
	filepath.Join("tmp", Filename),
}

// Locator finds the resultset file for a project root.
type Locator struct {
	Root       string
	Candidates []string
	// WorkDir resolves hints relative to the caller; empty means os.Getwd.
	WorkDir string
	Probe   *paths.CaseProbe
	Logger  *slog.Logger
}

// NewLocator returns a Locator with the default candidate list.
func NewLocator(root string) *Locator {
	return &Locator{
		Root:       paths.Expand(root, ""),
		Candidates: DefaultCandidates,
	}
}

// Locate returns the absolute path of the resultset file. A non-empty hint
// may name a file or a directory holding one; without a hint the candidate
// list is probed under Root and the first regular file wins.
func (l *Locator) Locate(hint string) (string, error) {
	if hint != "" {
		p, err := l.normalizeHint(hint)
		if err != nil {
			return "", err
		}
		return resolveCandidate(p)
	}

	for _, c := range l.candidates() {
		p := paths.Expand(c, l.Root)
		if isFile(p) {
			return p, nil
		}
	}

	msg := fmt.Sprintf("could not find %s under %q; run tests or set --resultset", Filename, l.Root)
	l.logger().Error(msg)
	return "", &schema.NotFoundError{Path: l.Root, Message: msg}
}

// normalizeHint expands the hint against the working directory and the root
// and picks one interpretation, refusing to guess when both are valid.
func (l *Locator) normalizeHint(hint string) (string, error) {
	wd := l.WorkDir
	if wd == "" {
		var err error
		if wd, err = os.Getwd(); err != nil {
			return "", err
		}
	}

	fromWorkDir := paths.Expand(hint, wd)
	fromRoot := paths.Expand(hint, l.Root)

	validWorkDir := isResultsetLocation(fromWorkDir)
	validRoot := isResultsetLocation(fromRoot)

	if fromWorkDir != fromRoot && validWorkDir && validRoot {
		return "", &schema.AmbiguousError{
			Target:     hint,
			Candidates: []string{fromWorkDir, fromRoot},
			FromInput:  true,
			Message: fmt.Sprintf("ambiguous resultset location specified. Both %s and %s exist. "+
				"Use ./ or an absolute path to disambiguate", fromWorkDir, fromRoot),
		}
	}

	switch {
	case validWorkDir:
		return fromWorkDir, nil
	case validRoot:
		return fromRoot, nil
	case paths.WithinRoot(fromWorkDir, l.Root, !l.probe().IsCaseSensitive(l.Root)):
		return fromWorkDir, nil
	default:
		return fromRoot, nil
	}
}

func resolveCandidate(p string) (string, error) {
	info, err := os.Stat(p)
	if err != nil {
		return "", &schema.NotFoundError{Path: p, Message: fmt.Sprintf("specified resultset not found: %s", p)}
	}
	if info.Mode().IsRegular() {
		return p, nil
	}
	if info.IsDir() {
		candidate := filepath.Join(p, Filename)
		if isFile(candidate) {
			return candidate, nil
		}
		return "", &schema.NotFoundError{Path: p, Message: fmt.Sprintf("no %s found in directory: %s", Filename, p)}
	}
	return "", &schema.NotFoundError{Path: p, Message: fmt.Sprintf("specified resultset is not a regular file: %s", p)}
}

func isResultsetLocation(p string) bool {
	info, err := os.Stat(p)
	if err != nil {
		return false
	}
	if info.Mode().IsRegular() {
		return true
	}
	return info.IsDir() && isFile(filepath.Join(p, Filename))
}

func isFile(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.Mode().IsRegular()
}

func (l *Locator) candidates() []string {
	if len(l.Candidates) == 0 {
		return DefaultCandidates
	}
	return l.Candidates
}

func (l *Locator) probe() *paths.CaseProbe {
	if l.Probe == nil {
		return paths.DefaultProbe
	}
	return l.Probe
}

func (l *Locator) logger() *slog.Logger {
	if l.Logger == nil {
		return discardLogger
	}
	return l.Logger
}
