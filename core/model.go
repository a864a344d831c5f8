package core

import (
	"cmp"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"sort"
	"sync"

	"github.com/keithrbennett/covloupe/internal/datacache"
	"github.com/keithrbennett/covloupe/internal/paths"
	"github.com/keithrbennett/covloupe/internal/resultset"
	"github.com/keithrbennett/covloupe/schema"
)

// OpReadSource tags errors raised while reading a source file for a stale check.
const OpReadSource = "read_source"

// ModelOptions configures a Model.
type ModelOptions struct {
	Root         string
	Resultset    string
	RaiseOnStale bool
	TrackedGlobs []string
	Logger       *slog.Logger
	// Cache is shared across models; nil gives the model a private one.
	Cache   *datacache.Cache
	Builder *resultset.Builder
}

// Model answers coverage queries for one project root.
type Model struct {
	root         string
	hint         string
	raiseOnStale bool
	trackedGlobs []string
	logger       *slog.Logger
	cache        *datacache.Cache
	builder      *resultset.Builder
	resolver     Resolver

	mu        sync.Mutex
	indexed   *schema.Snapshot
	lastIndex *Index
}

// NewSnapshotCache returns a cache that builds snapshots with b.
func NewSnapshotCache(b *resultset.Builder) *datacache.Cache {
	return datacache.New(func(resultsetPath, root string) (*schema.Snapshot, error) {
		return b.Build(root, resultsetPath)
	})
}

// NewModel builds a Model and loads the coverage data once so that a missing
// or corrupt resultset fails here rather than on the first query.
func NewModel(opts ModelOptions) (*Model, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	root := paths.Expand(cmp.Or(opts.Root, "."), "")

	builder := opts.Builder
	if builder == nil {
		builder = resultset.NewBuilder(logger)
	}
	cache := opts.Cache
	if cache == nil {
		cache = NewSnapshotCache(builder)
	}

	probe := builder.Probe
	if probe == nil {
		probe = paths.DefaultProbe
	}

	m := &Model{
		root:         root,
		hint:         opts.Resultset,
		raiseOnStale: opts.RaiseOnStale,
		trackedGlobs: paths.NormalizePatterns(opts.TrackedGlobs),
		logger:       logger,
		cache:        cache,
		builder:      builder,
		resolver:     Resolver{Root: root, CaseSensitive: probe.IsCaseSensitive(root)},
	}
	if _, err := m.Snapshot(); err != nil {
		return nil, err
	}
	return m, nil
}

// Root returns the absolute project root.
func (m *Model) Root() string { return m.root }

// Snapshot returns the current coverage snapshot, reloading it when the
// resultset file changed.
func (m *Model) Snapshot() (*schema.Snapshot, error) {
	p, err := m.builder.Locate(m.root, m.hint)
	if err != nil {
		return nil, err
	}
	return m.cache.Get(p, m.root)
}

func (m *Model) index(snap *schema.Snapshot) *Index {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.indexed != snap {
		m.lastIndex = m.resolver.NewIndex(snap.Coverage)
		m.indexed = snap
	}
	return m.lastIndex
}

// Relativize returns p relative to the root, or p when it lies outside.
func (m *Model) Relativize(p string) string {
	return paths.Relativize(p, m.root, !m.resolver.CaseSensitive)
}

// Resolve looks up path and stamps the verdict. It never raises on staleness.
func (m *Model) Resolve(path string) (*schema.FileCoverage, error) {
	snap, err := m.Snapshot()
	if err != nil {
		return nil, err
	}
	abs := paths.Expand(path, m.root)
	key, entry, err := m.resolver.Lookup(m.index(snap), abs)
	if err != nil {
		return nil, err
	}
	lines, err := EntryLines(key, entry)
	if err != nil {
		return nil, err
	}
	stale := Classify(StatFile(abs, len(lines), snap.Timestamp))
	return &schema.FileCoverage{File: abs, Lines: lines, Stale: stale}, nil
}

// ListAll returns line hits for every entry. Entries without usable data
// are left out.
func (m *Model) ListAll() (map[string]schema.LineHits, error) {
	snap, err := m.Snapshot()
	if err != nil {
		return nil, err
	}
	out := make(map[string]schema.LineHits, len(snap.Coverage))
	for k, entry := range snap.Coverage {
		lines, err := EntryLines(k, entry)
		if err != nil {
			m.logger.Warn("skipping coverage entry", "file", k, "error", err)
			continue
		}
		out[k] = lines
	}
	return out, nil
}

// Raw returns the recorded line hits for path.
func (m *Model) Raw(path string) (*schema.FileCoverage, error) {
	abs, lines, err := m.coverageFor(path)
	if err != nil {
		return nil, err
	}
	return &schema.FileCoverage{File: abs, Lines: lines, Stale: m.StalenessFor(path)}, nil
}

// Summary returns covered/total counts for path.
func (m *Model) Summary(path string) (*schema.FileSummary, error) {
	abs, lines, err := m.coverageFor(path)
	if err != nil {
		return nil, err
	}
	return &schema.FileSummary{File: abs, Summary: Summary(lines), Stale: m.StalenessFor(path)}, nil
}

// Uncovered returns the lines of path that never ran.
func (m *Model) Uncovered(path string) (*schema.FileUncovered, error) {
	abs, lines, err := m.coverageFor(path)
	if err != nil {
		return nil, err
	}
	return &schema.FileUncovered{
		File:      abs,
		Uncovered: Uncovered(lines),
		Summary:   Summary(lines),
		Stale:     m.StalenessFor(path),
	}, nil
}

// Detailed returns every executable line of path with its hit count.
func (m *Model) Detailed(path string) (*schema.FileDetailed, error) {
	abs, lines, err := m.coverageFor(path)
	if err != nil {
		return nil, err
	}
	return &schema.FileDetailed{
		File:    abs,
		Lines:   Detailed(lines),
		Summary: Summary(lines),
		Stale:   m.StalenessFor(path),
	}, nil
}

// StalenessFor classifies path against the coverage data. Any failure,
// including a missing entry, is reported as the error verdict.
func (m *Model) StalenessFor(path string) schema.StaleStatus {
	fc, err := m.Resolve(path)
	if err != nil {
		m.logger.Debug("staleness check failed", "path", path, "error", err)
		return schema.StaleError
	}
	return fc.Stale
}

// coverageFor resolves path, checks the file exists on disk and, in
// raise-on-stale mode, that its coverage is current.
func (m *Model) coverageFor(path string) (string, schema.LineHits, error) {
	snap, err := m.Snapshot()
	if err != nil {
		return "", nil, err
	}
	abs := paths.Expand(path, m.root)

	key, entry, err := m.resolver.Lookup(m.index(snap), abs)
	if err != nil {
		if errors.Is(err, schema.ErrNotFound) {
			return "", nil, &schema.NotFoundError{Path: path, Message: fmt.Sprintf("no coverage data found for file: %s", path)}
		}
		return "", nil, err
	}
	lines, err := EntryLines(key, entry)
	if err != nil {
		return "", nil, err
	}

	if info, err := os.Stat(abs); err != nil || !info.Mode().IsRegular() {
		return "", nil, &schema.NotFoundError{Path: path, Message: fmt.Sprintf("file not found: %s", path)}
	}

	if m.raiseOnStale {
		st := StatFile(abs, len(lines), snap.Timestamp)
		if st.ReadErr != nil {
			return "", nil, &schema.OperationError{Op: OpReadSource, Err: fmt.Errorf("error reading file %s: %w", m.Relativize(abs), st.ReadErr)}
		}
		if status := Classify(st); status == schema.StaleNewer || status == schema.StaleLengthMismatch {
			return "", nil, &schema.FileStaleError{
				File:              m.Relativize(abs),
				Status:            status,
				FileMtime:         st.Mtime,
				CoverageTimestamp: snap.Timestamp,
				SourceLines:       st.SourceLines,
				CoverageLines:     st.CoverageLines,
				ResultsetPath:     snap.ResultsetPath,
			}
		}
	}
	return abs, lines, nil
}

// List returns one row per coverage entry within the tracked globs, plus the
// project staleness report. Rows are sorted by percentage, then file.
func (m *Model) List(order schema.SortOrder) (*schema.ListResult, error) {
	snap, err := m.Snapshot()
	if err != nil {
		return nil, err
	}
	idx := m.index(snap)

	keys := make([]string, 0, len(snap.Coverage))
	for k := range snap.Coverage {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	result := &schema.ListResult{Files: []schema.FileRow{}, SkippedFiles: []schema.SkippedFile{}}
	linesByPath := make(map[string]schema.LineHits)

	for _, k := range paths.FilterPaths(keys, m.trackedGlobs, m.root) {
		key, entry, err := m.resolver.Lookup(idx, k)
		var lines schema.LineHits
		if err == nil {
			lines, err = EntryLines(key, entry)
		}
		if err != nil {
			if m.raiseOnStale {
				return nil, err
			}
			m.logger.Warn("skipping coverage row", "file", k, "error", err)
			result.SkippedFiles = append(result.SkippedFiles, schema.SkippedFile{
				File:      k,
				Error:     err.Error(),
				ErrorKind: schema.ErrorKind(err),
			})
			continue
		}
		linesByPath[k] = lines
		s := Summary(lines)
		result.Files = append(result.Files, schema.FileRow{
			File:       k,
			Covered:    s.Covered,
			Total:      s.Total,
			Percentage: s.Percentage,
		})
	}

	staleness, err := m.projectStaleness(snap, keys, linesByPath)
	if err != nil {
		return nil, err
	}
	result.ProjectStaleness = *staleness

	for i := range result.Files {
		result.Files[i].Stale = cmp.Or(staleness.FileStatuses[result.Files[i].File], schema.StaleOK)
	}
	SortRows(result.Files, order)

	if m.raiseOnStale && staleness.Any() {
		return nil, &schema.ProjectStaleError{
			ProjectStaleness:  *staleness,
			CoverageTimestamp: snap.Timestamp,
			ResultsetPath:     snap.ResultsetPath,
		}
	}
	return result, nil
}

// projectStaleness reports drift between the source tree and the coverage
// data. File lists hold root-relative paths.
func (m *Model) projectStaleness(snap *schema.Snapshot, keys []string, linesByPath map[string]schema.LineHits) (*schema.ProjectStaleness, error) {
	ts := snap.Timestamp
	out := &schema.ProjectStaleness{
		NewerFiles:          []string{},
		MissingFiles:        []string{},
		DeletedFiles:        []string{},
		LengthMismatchFiles: []string{},
		UnreadableFiles:     []string{},
		FileStatuses:        make(map[string]schema.StaleStatus, len(linesByPath)),
		TimestampStatus:     schema.TimestampMissing,
	}
	if ts > 0 {
		out.TimestampStatus = schema.TimestampOK
	}

	var newer []string
	unreadable := make(map[string]struct{})
	for _, abs := range paths.FilterPaths(keys, m.trackedGlobs, m.root) {
		info, err := os.Stat(abs)
		switch {
		case err != nil && os.IsNotExist(err):
			out.DeletedFiles = append(out.DeletedFiles, m.Relativize(abs))
		case err != nil:
			unreadable[abs] = struct{}{}
		case !info.Mode().IsRegular():
			out.DeletedFiles = append(out.DeletedFiles, m.Relativize(abs))
		case ts > 0 && info.ModTime().Unix() > ts:
			newer = append(newer, abs)
		}
	}

	mismatched := make(map[string]struct{})
	for abs, lines := range linesByPath {
		st := StatFile(abs, len(lines), ts)
		out.FileStatuses[abs] = Classify(st)
		if st.ReadErr != nil {
			unreadable[abs] = struct{}{}
		}
		if st.Exists && st.LengthMismatch() {
			mismatched[abs] = struct{}{}
		}
	}

	for _, abs := range newer {
		_, mm := mismatched[abs]
		_, ur := unreadable[abs]
		if !mm && !ur {
			out.NewerFiles = append(out.NewerFiles, m.Relativize(abs))
		}
	}
	out.LengthMismatchFiles = m.relativeSorted(mismatched)
	out.UnreadableFiles = m.relativeSorted(unreadable)

	missing, err := m.missingTracked(keys)
	if err != nil {
		return nil, err
	}
	out.MissingFiles = missing
	return out, nil
}

// missingTracked lists files matched by the tracked globs that have no
// coverage entry.
func (m *Model) missingTracked(keys []string) ([]string, error) {
	if len(m.trackedGlobs) == 0 {
		return []string{}, nil
	}
	tracked, err := paths.ExpandGlobs(m.trackedGlobs, m.root)
	if err != nil {
		return nil, &schema.ConfigurationError{Message: fmt.Sprintf("invalid tracked glob: %v", err)}
	}

	fold := !m.resolver.CaseSensitive
	covered := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		covered[paths.Normalize(k, fold)] = struct{}{}
	}

	out := []string{}
	for _, abs := range tracked {
		if _, ok := covered[paths.Normalize(abs, fold)]; !ok {
			out = append(out, m.Relativize(abs))
		}
	}
	return out, nil
}

func (m *Model) relativeSorted(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for abs := range set {
		out = append(out, m.Relativize(abs))
	}
	sort.Strings(out)
	return out
}

// Totals aggregates the listed rows into project totals.
func (m *Model) Totals() (*schema.ProjectTotals, error) {
	list, err := m.List(schema.Ascending)
	if err != nil {
		return nil, err
	}
	return TotalsFromList(list), nil
}

// TotalsFromList aggregates an existing listing.
func TotalsFromList(list *schema.ListResult) *schema.ProjectTotals {
	var covered, total, stale int
	for _, row := range list.Files {
		covered += row.Covered
		total += row.Total
		if row.Stale.IsStale() {
			stale++
		}
	}
	return &schema.ProjectTotals{
		Lines:      schema.LineTotals{Covered: covered, Uncovered: total - covered, Total: total},
		Percentage: Percentage(covered, total),
		Files:      schema.FileTotals{Total: len(list.Files), OK: len(list.Files) - stale, Stale: stale},
		ExcludedFiles: schema.ExcludedCounts{
			Skipped:        len(list.SkippedFiles),
			MissingTracked: len(list.MissingFiles),
			Newer:          len(list.NewerFiles),
			Deleted:        len(list.DeletedFiles),
		},
		TimestampStatus: list.TimestampStatus,
	}
}

// SortRows orders rows by percentage in the given direction, then by file.
func SortRows(rows []schema.FileRow, order schema.SortOrder) {
	slices.SortStableFunc(rows, func(a, b schema.FileRow) int {
		c := cmp.Compare(b.Percentage, a.Percentage)
		if order == schema.Ascending {
			c = -c
		}
		if c != 0 {
			return c
		}
		return cmp.Compare(a.File, b.File)
	})
}

// RelativizeList rewrites the file paths of a listing relative to the root.
func (m *Model) RelativizeList(list *schema.ListResult) *schema.ListResult {
	out := *list
	out.Files = make([]schema.FileRow, len(list.Files))
	for i, row := range list.Files {
		row.File = m.Relativize(row.File)
		out.Files[i] = row
	}
	out.SkippedFiles = make([]schema.SkippedFile, len(list.SkippedFiles))
	for i, s := range list.SkippedFiles {
		s.File = m.Relativize(s.File)
		out.SkippedFiles[i] = s
	}
	return &out
}
