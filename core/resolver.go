package core

import (
	"fmt"
	"sort"

	"github.com/keithrbennett/covloupe/internal/paths"
	"github.com/keithrbennett/covloupe/schema"
)

// Resolver maps a requested path onto a key of a coverage map.
type Resolver struct {
	Root          string
	CaseSensitive bool
}

// Index groups the keys of one coverage map by normalized path.
type Index struct {
	coverage schema.CoverageMap
	byNorm   map[string][]string
}

// NewIndex builds the lookup index for coverage.
func (r Resolver) NewIndex(coverage schema.CoverageMap) *Index {
	idx := &Index{coverage: coverage, byNorm: make(map[string][]string, len(coverage))}
	for k := range coverage {
		n := paths.Normalize(k, !r.CaseSensitive)
		idx.byNorm[n] = append(idx.byNorm[n], k)
	}
	for _, keys := range idx.byNorm {
		sort.Strings(keys)
	}
	return idx
}

// Resolve returns the per-line hits recorded for absPath.
func (r Resolver) Resolve(coverage schema.CoverageMap, absPath string) (schema.LineHits, error) {
	key, entry, err := r.Lookup(r.NewIndex(coverage), absPath)
	if err != nil {
		return nil, err
	}
	return EntryLines(key, entry)
}

// Lookup finds the single entry for absPath: first by its own normalized form,
// then with the root prefix stripped. More than one key matching a form is an
// AmbiguousError listing all of them.
func (r Resolver) Lookup(idx *Index, absPath string) (string, schema.CoverageEntry, error) {
	fold := !r.CaseSensitive
	target := paths.Normalize(absPath, fold)

	forms := []string{target}
	if r.Root != "" {
		if rel, ok := paths.StripRoot(target, paths.Normalize(r.Root, fold)); ok {
			forms = append(forms, rel)
		}
	}

	for _, form := range forms {
		keys := idx.byNorm[form]
		switch len(keys) {
		case 0:
			continue
		case 1:
			return keys[0], idx.coverage[keys[0]], nil
		default:
			return "", schema.CoverageEntry{}, &schema.AmbiguousError{Target: absPath, Candidates: keys}
		}
	}

	return "", schema.CoverageEntry{}, &schema.NotFoundError{
		Path:    target,
		Message: fmt.Sprintf("no coverage entry found for %s", target),
	}
}

// EntryLines returns line hits for an entry, synthesizing them from branch
// arms when no line data was recorded. The result is owned by the caller and
// never aliases the cached snapshot.
func EntryLines(file string, entry schema.CoverageEntry) (schema.LineHits, error) {
	if entry.Kind == schema.LineEntry {
		return entry.Lines.Clone(), nil
	}
	lines := SynthesizeLines(entry.Branches)
	if len(lines) == 0 {
		return nil, &schema.CorruptDataError{Message: fmt.Sprintf("no line or branch coverage recorded for %s", file)}
	}
	return lines, nil
}

// SynthesizeLines adds each arm's hits to every line it spans. Overlapping
// arms sum; lines touched by no arm stay nil.
func SynthesizeLines(branches []schema.BranchHit) schema.LineHits {
	last := 0
	for _, b := range branches {
		last = max(last, b.EndLine, b.StartLine)
	}
	if last == 0 {
		return nil
	}

	counts := make([]int, last)
	touched := make([]bool, last)
	for _, b := range branches {
		if b.StartLine < 1 {
			continue
		}
		for line := b.StartLine; line <= max(b.EndLine, b.StartLine); line++ {
			counts[line-1] += b.Hits
			touched[line-1] = true
		}
	}

	out := make(schema.LineHits, last)
	for i := range out {
		if touched[i] {
			out[i] = schema.Hits(counts[i])
		}
	}
	return out
}
