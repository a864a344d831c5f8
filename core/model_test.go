package core

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keithrbennett/covloupe/schema"
)

// project is a throwaway project tree with a resultset under coverage/.
type project struct {
	root string
}

func newProject(t *testing.T) *project {
	t.Helper()
	return &project{root: t.TempDir()}
}

func (p *project) write(t *testing.T, rel, content string) string {
	t.Helper()
	full := filepath.Join(p.root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
	return full
}

func (p *project) resultset(t *testing.T, timestamp int64, coverage map[string]any) {
	t.Helper()
	data, err := json.Marshal(map[string]any{
		"RSpec": map[string]any{"coverage": coverage, "timestamp": timestamp},
	})
	require.NoError(t, err)
	p.write(t, "coverage/.resultset.json", string(data))
}

func (p *project) model(t *testing.T, opts ModelOptions) *Model {
	t.Helper()
	opts.Root = p.root
	m, err := NewModel(opts)
	require.NoError(t, err)
	return m
}

func future() int64 { return time.Now().Add(time.Hour).Unix() }

func TestModelRawOkThenLengthMismatch(t *testing.T) {
	p := newProject(t)
	p.write(t, "lib/foo.rb", "a\nb\nc\n")
	p.resultset(t, future(), map[string]any{
		"lib/foo.rb": map[string]any{"lines": []any{1, 0, nil}},
	})

	m := p.model(t, ModelOptions{})
	raw, err := m.Raw("lib/foo.rb")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(p.root, "lib", "foo.rb"), raw.File)
	assert.Equal(t, schema.LineHits{schema.Hits(1), schema.Hits(0), nil}, raw.Lines)
	assert.Equal(t, schema.StaleOK, raw.Stale)

	p.write(t, "lib/foo.rb", "a\nb\nc\nd\n")
	raw, err = m.Raw("lib/foo.rb")
	require.NoError(t, err)
	assert.Equal(t, schema.StaleLengthMismatch, raw.Stale)

	strict := p.model(t, ModelOptions{RaiseOnStale: true})
	_, err = strict.Raw("lib/foo.rb")
	require.Error(t, err)
	var staleErr *schema.FileStaleError
	require.True(t, errors.As(err, &staleErr))
	assert.Equal(t, schema.StaleLengthMismatch, staleErr.Status)
	assert.Equal(t, 4, staleErr.SourceLines)
	assert.Equal(t, 3, staleErr.CoverageLines)
}

func TestModelFileViews(t *testing.T) {
	p := newProject(t)
	p.write(t, "lib/foo.rb", "a\nb\nc\n")
	p.resultset(t, future(), map[string]any{
		"lib/foo.rb": []any{2, 0, nil},
	})
	m := p.model(t, ModelOptions{})

	sum, err := m.Summary("lib/foo.rb")
	require.NoError(t, err)
	assert.Equal(t, schema.CoverageSummary{Covered: 1, Total: 2, Percentage: 50.0}, sum.Summary)

	unc, err := m.Uncovered(filepath.Join(p.root, "lib", "foo.rb"))
	require.NoError(t, err)
	assert.Equal(t, []int{2}, unc.Uncovered)

	det, err := m.Detailed("lib/foo.rb")
	require.NoError(t, err)
	assert.Len(t, det.Lines, 2)
	assert.Equal(t, schema.StaleOK, det.Stale)
}

func TestModelErrors(t *testing.T) {
	p := newProject(t)
	p.resultset(t, future(), map[string]any{
		"lib/gone.rb": []any{1},
	})
	m := p.model(t, ModelOptions{})

	_, err := m.Summary("lib/unknown.rb")
	require.Error(t, err)
	assert.True(t, errors.Is(err, schema.ErrNotFound))
	assert.Contains(t, err.Error(), "no coverage data found for file: lib/unknown.rb")

	_, err = m.Summary("lib/gone.rb")
	require.Error(t, err)
	assert.True(t, errors.Is(err, schema.ErrNotFound))
	assert.Contains(t, err.Error(), "file not found: lib/gone.rb")

	assert.Equal(t, schema.StaleMissing, m.StalenessFor("lib/gone.rb"))
	assert.Equal(t, schema.StaleError, m.StalenessFor("lib/unknown.rb"))
}

func TestNewModelWithoutResultset(t *testing.T) {
	_, err := NewModel(ModelOptions{Root: t.TempDir()})
	require.Error(t, err)
	assert.True(t, errors.Is(err, schema.ErrNotFound))
}

func TestModelListAndTotals(t *testing.T) {
	p := newProject(t)
	p.write(t, "lib/full.rb", "a\nb\n")
	p.write(t, "lib/half.rb", "a\nb\n")
	p.write(t, "lib/grown.rb", "a\nb\nc\n")
	p.write(t, "lib/untested.rb", "a\n")
	p.write(t, "spec/helper.rb", "a\n")
	p.resultset(t, future(), map[string]any{
		"lib/full.rb":    []any{1, 1},
		"lib/half.rb":    []any{1, 0},
		"lib/grown.rb":   []any{1, 1},
		"lib/deleted.rb": []any{0},
		"lib/broken.rb":  map[string]any{"branches": map[string]any{}},
		"spec/helper.rb": []any{1},
	})

	m := p.model(t, ModelOptions{TrackedGlobs: []string{"lib/**/*.rb"}})
	list, err := m.List(schema.Descending)
	require.NoError(t, err)

	files := make([]string, len(list.Files))
	for i, row := range list.Files {
		files[i] = m.Relativize(row.File)
	}
	assert.Equal(t, []string{"lib/full.rb", "lib/grown.rb", "lib/half.rb", "lib/deleted.rb"}, files,
		"sorted by percentage desc then file")

	stale := map[string]schema.StaleStatus{}
	for _, row := range list.Files {
		stale[m.Relativize(row.File)] = row.Stale
	}
	assert.Equal(t, schema.StaleOK, stale["lib/full.rb"])
	assert.Equal(t, schema.StaleLengthMismatch, stale["lib/grown.rb"])
	assert.Equal(t, schema.StaleMissing, stale["lib/deleted.rb"])

	require.Len(t, list.SkippedFiles, 1)
	assert.Equal(t, "corrupt_data", list.SkippedFiles[0].ErrorKind)

	assert.Equal(t, []string{"lib/untested.rb"}, list.MissingFiles)
	assert.Equal(t, []string{"lib/broken.rb", "lib/deleted.rb"}, list.DeletedFiles)
	assert.Equal(t, []string{"lib/grown.rb"}, list.LengthMismatchFiles)
	assert.Empty(t, list.NewerFiles)
	assert.Equal(t, schema.TimestampOK, list.TimestampStatus)

	totals, err := m.Totals()
	require.NoError(t, err)
	assert.Equal(t, schema.LineTotals{Covered: 5, Uncovered: 2, Total: 7}, totals.Lines)
	assert.Equal(t, 71.43, totals.Percentage)
	assert.Equal(t, schema.FileTotals{Total: 4, OK: 2, Stale: 2}, totals.Files)
	assert.Equal(t, schema.ExcludedCounts{Skipped: 1, MissingTracked: 1, Newer: 0, Deleted: 2}, totals.ExcludedFiles)
}

func TestModelListNewerAndRaise(t *testing.T) {
	p := newProject(t)
	p.write(t, "lib/a.rb", "a\n")
	p.resultset(t, 1000, map[string]any{"lib/a.rb": []any{1}})

	m := p.model(t, ModelOptions{})
	list, err := m.List(schema.Ascending)
	require.NoError(t, err)
	assert.Equal(t, []string{"lib/a.rb"}, list.NewerFiles)
	require.Len(t, list.Files, 1)
	assert.Equal(t, schema.StaleNewer, list.Files[0].Stale)

	strict := p.model(t, ModelOptions{RaiseOnStale: true})
	_, err = strict.List(schema.Ascending)
	require.Error(t, err)
	var projErr *schema.ProjectStaleError
	require.True(t, errors.As(err, &projErr))
	assert.Equal(t, []string{"lib/a.rb"}, projErr.NewerFiles)
}

func TestModelMissingTimestamp(t *testing.T) {
	p := newProject(t)
	p.write(t, "lib/a.rb", "a\n")
	p.resultset(t, 0, map[string]any{"lib/a.rb": []any{1}})

	m := p.model(t, ModelOptions{})
	totals, err := m.Totals()
	require.NoError(t, err)
	assert.Equal(t, schema.TimestampMissing, totals.TimestampStatus)
	assert.Equal(t, 1, totals.Files.OK)
}

func TestModelSharesCache(t *testing.T) {
	p := newProject(t)
	p.write(t, "lib/a.rb", "a\n")
	p.resultset(t, future(), map[string]any{"lib/a.rb": []any{1}})

	first := p.model(t, ModelOptions{})
	second := p.model(t, ModelOptions{Cache: first.cache, Builder: first.builder})

	_, err := second.Raw("lib/a.rb")
	require.NoError(t, err)
	stats := first.cache.Stats()
	assert.Equal(t, int64(1), stats.Misses)
	assert.GreaterOrEqual(t, stats.Hits, int64(2))
}

func TestSortRows(t *testing.T) {
	rows := []schema.FileRow{
		{File: "b", Percentage: 50},
		{File: "a", Percentage: 50},
		{File: "c", Percentage: 90},
	}
	SortRows(rows, schema.Ascending)
	assert.Equal(t, []string{"a", "b", "c"}, []string{rows[0].File, rows[1].File, rows[2].File})

	SortRows(rows, schema.Descending)
	assert.Equal(t, []string{"c", "a", "b"}, []string{rows[0].File, rows[1].File, rows[2].File})
}

func TestModelResolveAndListAll(t *testing.T) {
	p := newProject(t)
	foo := p.write(t, "lib/foo.rb", "a\nb\nc\nd\n")
	p.write(t, "lib/br.rb", "a\nb\nc\n")
	p.resultset(t, future(), map[string]any{
		"lib/foo.rb": map[string]any{"lines": []any{1, 0, nil}},
		"lib/br.rb": map[string]any{"branches": map[string]any{
			"[:if, 0, 1, 0, 3, 10]": map[string]any{
				"[:then, 1, 2, 4, 2, 10]": 2,
				"[:else, 2, 2, 4, 3, 10]": 3,
			},
		}},
		"lib/empty.rb": map[string]any{"branches": map[string]any{}},
	})
	m := p.model(t, ModelOptions{RaiseOnStale: true})

	tests := []struct {
		name  string
		path  string
		lines schema.LineHits
		stale schema.StaleStatus
	}{
		{"relative path", "lib/foo.rb", schema.LineHits{schema.Hits(1), schema.Hits(0), nil}, schema.StaleLengthMismatch},
		{"absolute path", foo, schema.LineHits{schema.Hits(1), schema.Hits(0), nil}, schema.StaleLengthMismatch},
		{"branch only", "lib/br.rb", schema.LineHits{nil, schema.Hits(5), schema.Hits(3)}, schema.StaleOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fc, err := m.Resolve(tt.path)
			require.NoError(t, err, "staleness never raises from Resolve")
			assert.Equal(t, tt.lines, fc.Lines)
			assert.Equal(t, tt.stale, fc.Stale)
		})
	}

	_, err := m.Resolve("lib/empty.rb")
	assert.ErrorIs(t, err, schema.ErrCorruptData)
	_, err = m.Resolve("lib/nope.rb")
	assert.ErrorIs(t, err, schema.ErrNotFound)

	all, err := m.ListAll()
	require.NoError(t, err)
	assert.Len(t, all, 2)
	assert.Equal(t, schema.LineHits{nil, schema.Hits(5), schema.Hits(3)}, all[filepath.Join(p.root, "lib", "br.rb")])
	assert.Contains(t, all, foo)
}

func TestModelResolveRepeatable(t *testing.T) {
	p := newProject(t)
	p.write(t, "lib/foo.rb", "a\nb\nc\n")
	p.resultset(t, future(), map[string]any{
		"lib/foo.rb": map[string]any{"lines": []any{1, 0, nil}},
	})
	m := p.model(t, ModelOptions{})

	first, err := m.Resolve("lib/foo.rb")
	require.NoError(t, err)
	*first.Lines[0] = 42

	second, err := m.Resolve("lib/foo.rb")
	require.NoError(t, err)
	assert.Equal(t, schema.LineHits{schema.Hits(1), schema.Hits(0), nil}, second.Lines)

	all, err := m.ListAll()
	require.NoError(t, err)
	for _, lines := range all {
		lines[1] = schema.Hits(8)
	}
	third, err := m.Resolve("lib/foo.rb")
	require.NoError(t, err)
	assert.Equal(t, second, third)
}
