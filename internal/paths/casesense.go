package paths

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
)

const probePrefix = "CovLoupe_CaseSensitivity_Test_"

// CaseProbe detects whether a directory lives on a case-sensitive volume and
// remembers the answer per absolute directory.
type CaseProbe struct {
	mu    sync.Mutex
	cache map[string]bool
}

// NewCaseProbe returns an empty probe.
func NewCaseProbe() *CaseProbe {
	return &CaseProbe{cache: make(map[string]bool)}
}

// DefaultProbe is shared by callers that do not inject their own.
var DefaultProbe = NewCaseProbe()

// IsCaseSensitive reports whether dir is on a case-sensitive volume. When the
// answer cannot be determined it returns false, so that callers fold case and
// catch more collisions rather than fewer.
func (p *CaseProbe) IsCaseSensitive(dir string) bool {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return false
	}

	p.mu.Lock()
	cached, ok := p.cache[abs]
	p.mu.Unlock()
	if ok {
		return cached
	}

	info, err := os.Stat(abs)
	if err != nil || !info.IsDir() {
		return false
	}

	sensitive, err := detectCaseSensitivity(abs)
	if err != nil {
		return false
	}

	p.mu.Lock()
	p.cache[abs] = sensitive
	p.mu.Unlock()
	return sensitive
}

// Clear forgets every cached answer.
func (p *CaseProbe) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cache = make(map[string]bool)
}

// Cached returns a copy of the cached answers.
func (p *CaseProbe) Cached() map[string]bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[string]bool, len(p.cache))
	for k, v := range p.cache {
		out[k] = v
	}
	return out
}

// detectCaseSensitivity prefers an existing file so nothing is written.
func detectCaseSensitivity(dir string) (bool, error) {
	name, err := findLetterFile(dir)
	if err != nil {
		return false, err
	}
	if name != "" {
		return detectWithExistingFile(dir, name)
	}
	return detectWithTempFile(dir)
}

func findLetterFile(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		if strings.IndexFunc(e.Name(), isASCIILetter) >= 0 {
			return e.Name(), nil
		}
	}
	return "", nil
}

func detectWithExistingFile(dir, name string) (bool, error) {
	original := filepath.Join(dir, name)
	alternate := filepath.Join(dir, swapCase(name))

	altInfo, err := os.Stat(alternate)
	if errors.Is(err, fs.ErrNotExist) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	origInfo, err := os.Stat(original)
	if err != nil {
		return false, err
	}
	return !os.SameFile(origInfo, altInfo), nil
}

func detectWithTempFile(dir string) (sensitive bool, err error) {
	variants := uniqueProbeVariants(dir)

	defer func() {
		for _, v := range variants {
			_ = os.Remove(v)
		}
	}()

	f, err := os.OpenFile(variants[0], os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return false, err
	}
	if err := f.Close(); err != nil {
		return false, err
	}

	existing := 0
	for _, v := range variants {
		if _, statErr := os.Stat(v); statErr == nil {
			existing++
		}
	}
	return existing == 1, nil
}

// uniqueProbeVariants returns exact, upper and lower variants of a probe file
// name none of which exist yet.
func uniqueProbeVariants(dir string) []string {
	for {
		name := probePrefix + strings.ReplaceAll(uuid.NewString(), "-", "") + ".tmp"
		variants := []string{
			filepath.Join(dir, name),
			filepath.Join(dir, strings.ToUpper(name)),
			filepath.Join(dir, strings.ToLower(name)),
		}
		taken := false
		for _, v := range variants {
			if _, err := os.Lstat(v); err == nil {
				taken = true
				break
			}
		}
		if !taken {
			return variants
		}
	}
}

func isASCIILetter(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

func swapCase(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r - 'a' + 'A'
		case r >= 'A' && r <= 'Z':
			return r - 'A' + 'a'
		default:
			return r
		}
	}, s)
}
