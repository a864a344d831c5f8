package outwriter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/keithrbennett/covloupe/internal/contract"
	"github.com/keithrbennett/covloupe/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func plainConfig() *contract.Config {
	return &contract.Config{Output: schema.TableOut, Width: 200}
}

func sampleRows() []schema.FileRow {
	return []schema.FileRow{
		{File: "lib/a.rb", Covered: 2, Total: 2, Percentage: 100, Stale: schema.StaleOK},
		{File: "lib/b.rb", Covered: 1, Total: 3, Percentage: 33.33, Stale: schema.StaleNewer},
	}
}

func TestWriteCoverageTable(t *testing.T) {
	t.Run("empty rows print message", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, writeCoverageTable(&buf, nil, plainConfig()))
		assert.Equal(t, NoCoverageMessage+"\n", buf.String())
	})

	t.Run("rows with footer and legend", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, writeCoverageTable(&buf, sampleRows(), plainConfig()))
		out := buf.String()
		assert.Contains(t, strings.ToUpper(out), "FILE")
		assert.Contains(t, out, "lib/a.rb")
		assert.Contains(t, out, "100.00%")
		assert.Contains(t, out, "33.33%")
		assert.Contains(t, out, "newer")
		assert.Contains(t, out, "Files: total 2, ok 1, stale 1")
		assert.Contains(t, out, StaleLegend)
	})

	t.Run("no legend when nothing is stale", func(t *testing.T) {
		var buf bytes.Buffer
		rows := sampleRows()[:1]
		require.NoError(t, writeCoverageTable(&buf, rows, plainConfig()))
		assert.Contains(t, buf.String(), "Files: total 1, ok 1, stale 0")
		assert.NotContains(t, buf.String(), StaleLegend)
	})
}

func TestWriteCSVRows(t *testing.T) {
	var buf bytes.Buffer
	err := writeCSVWithHeader(&buf, listCSVHeader, func(w *csv.Writer) error {
		return writeCSVRows(w, sampleRows())
	})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "file,percentage,covered,total,stale", lines[0])
	assert.Equal(t, "lib/a.rb,100.00,2,2,ok", lines[1])
	assert.Equal(t, "lib/b.rb,33.33,1,3,newer", lines[2])
}

func TestPrintListJSONToFile(t *testing.T) {
	out := filepath.Join(t.TempDir(), "list.json")
	cfg := &contract.Config{Output: schema.JSONOut, OutputFile: out}
	list := schema.ListResult{
		Files:            sampleRows(),
		SkippedFiles:     []schema.SkippedFile{},
		ProjectStaleness: schema.ProjectStaleness{NewerFiles: []string{"lib/b.rb"}, TimestampStatus: schema.TimestampOK},
	}
	require.NoError(t, PrintList(list, cfg))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Len(t, decoded["files"], 2)
	assert.Equal(t, []any{"lib/b.rb"}, decoded["newer_files"])
	assert.Equal(t, "ok", decoded["timestamp_status"])
	assert.NotContains(t, decoded, "FileStatuses")
	assert.True(t, strings.HasPrefix(string(data), "{\n  \""), "indented by two spaces")
}

func TestPrintRawYAMLToFile(t *testing.T) {
	out := filepath.Join(t.TempDir(), "raw.yaml")
	cfg := &contract.Config{Output: schema.YAMLOut, OutputFile: out}
	v := schema.FileCoverage{File: "lib/a.rb", Lines: schema.LineHits{schema.Hits(1), nil, schema.Hits(0)}, Stale: schema.StaleOK}
	require.NoError(t, PrintRaw(v, cfg))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	var decoded struct {
		File  string `yaml:"file"`
		Lines []*int `yaml:"lines"`
		Stale string `yaml:"stale"`
	}
	require.NoError(t, yaml.Unmarshal(data, &decoded))
	assert.Equal(t, "lib/a.rb", decoded.File)
	require.Len(t, decoded.Lines, 3)
	assert.Nil(t, decoded.Lines[1])
	assert.Equal(t, 0, *decoded.Lines[2])
}

func TestWriteRawAll(t *testing.T) {
	all := map[string]schema.LineHits{
		"/p/lib/b.rb": {schema.Hits(2)},
		"/p/lib/a.rb": {schema.Hits(1), nil, schema.Hits(0)},
	}
	ow := NewOutWriter(func(p string) string { return strings.TrimPrefix(p, "/p/") })

	out := filepath.Join(t.TempDir(), "raw.csv")
	require.NoError(t, ow.WriteRawAll(all, &contract.Config{Output: schema.CSVOut, OutputFile: out}))
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "file,line,hits\nlib/a.rb,1,1\nlib/a.rb,2,\nlib/a.rb,3,0\nlib/b.rb,1,2\n", string(data))

	out = filepath.Join(t.TempDir(), "raw.txt")
	require.NoError(t, ow.WriteRawAll(all, &contract.Config{Output: schema.TableOut, OutputFile: out, Width: 200}))
	data, err = os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), "lib/a.rb")
	assert.Contains(t, strings.ToUpper(string(data)), "EXECUTABLE")

	out = filepath.Join(t.TempDir(), "empty.txt")
	require.NoError(t, PrintRawAll(map[string]schema.LineHits{}, &contract.Config{Output: schema.TableOut, OutputFile: out}))
	data, err = os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, NoCoverageMessage+"\n", string(data))
}

func TestPrintUncoveredTableToFile(t *testing.T) {
	out := filepath.Join(t.TempDir(), "uncovered.txt")
	cfg := plainConfig()
	cfg.OutputFile = out
	cfg.SourceMode = schema.SourceUncovered

	covered, missed := true, false
	source := []schema.SourceLine{
		{Line: 1, Code: "def a", Hits: schema.Hits(1), Covered: &covered},
		{Line: 2, Code: "  b", Hits: schema.Hits(0), Covered: &missed},
	}
	v := schema.FileUncovered{
		File:      "lib/a.rb",
		Uncovered: []int{2},
		Summary:   schema.CoverageSummary{Covered: 1, Total: 2, Percentage: 50},
		Stale:     schema.StaleLengthMismatch,
	}
	require.NoError(t, PrintUncovered(v, source, cfg))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, "File: lib/a.rb")
	assert.Contains(t, text, "Coverage: 50.00% (1/2 lines)")
	assert.Contains(t, text, "Stale: length_mismatch")
	assert.Contains(t, text, "def a")
	assert.Contains(t, text, "✓")
	assert.Contains(t, text, "·")
}

func TestPrintUncoveredAllCovered(t *testing.T) {
	out := filepath.Join(t.TempDir(), "uncovered.txt")
	cfg := plainConfig()
	cfg.OutputFile = out
	v := schema.FileUncovered{File: "lib/a.rb", Uncovered: []int{}, Summary: schema.CoverageSummary{Covered: 2, Total: 2, Percentage: 100}}
	require.NoError(t, PrintUncovered(v, nil, cfg))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), AllCoveredMessage)
	assert.NotContains(t, string(data), "Source")
}

func TestFormatSource(t *testing.T) {
	covered := true
	rows := []schema.SourceLine{
		{Line: 7, Code: "x = 1", Hits: schema.Hits(3), Covered: &covered},
		{Line: 8, Code: "# comment"},
	}
	out := FormatSource(rows, false)
	lines := strings.Split(out, "\n")
	require.Len(t, lines, 4)
	assert.Contains(t, lines[0], "Line")
	assert.Contains(t, lines[0], "Source")
	assert.Equal(t, "     7   ✓ | x = 1", lines[2])
	assert.Equal(t, "     8     | # comment", lines[3])

	assert.Equal(t, SourceUnavailable, FormatSource(nil, false))
}

func TestPrintTotalsTable(t *testing.T) {
	var buf bytes.Buffer
	cfg := plainConfig()
	cfg.TrackedGlobs = []string{"lib/**/*.rb"}
	totals := schema.ProjectTotals{
		Lines:           schema.LineTotals{Covered: 5, Uncovered: 2, Total: 7},
		Percentage:      71.43,
		Files:           schema.FileTotals{Total: 4, OK: 2, Stale: 2},
		ExcludedFiles:   schema.ExcludedCounts{Skipped: 1, MissingTracked: 1, Deleted: 2},
		TimestampStatus: schema.TimestampMissing,
	}
	require.NoError(t, writeTotalsTable(&buf, totals, cfg))
	out := buf.String()
	assert.Contains(t, out, "  - lib/**/*.rb")
	assert.Contains(t, out, "71.43%")
	assert.Contains(t, out, "With coverage: 4 total, 2 ok, 2 stale")
	assert.Contains(t, out, "skipped 1, missing tracked 1, newer 0, deleted 2")
	assert.Contains(t, out, "timestamps are missing")
}

func TestFormatStaleError(t *testing.T) {
	t.Run("single file", func(t *testing.T) {
		err := &schema.FileStaleError{
			File:              "lib/a.rb",
			Status:            schema.StaleNewer,
			FileMtime:         time.Unix(1_700_000_100, 0),
			CoverageTimestamp: 1_700_000_000,
			SourceLines:       3,
			CoverageLines:     3,
			ResultsetPath:     "/proj/coverage/.resultset.json",
		}
		out := FormatStaleError(err)
		assert.Contains(t, out, "coverage data appears stale for lib/a.rb (newer)")
		assert.Contains(t, out, "File     - time: 2023-11-14T22:15:00Z")
		assert.Contains(t, out, "lines: 3")
		assert.Contains(t, out, "Delta    - file is +100s newer than coverage")
		assert.Contains(t, out, "Resultset - /proj/coverage/.resultset.json")
	})

	t.Run("missing file and timestamp", func(t *testing.T) {
		out := FormatStaleError(&schema.FileStaleError{File: "lib/a.rb", Status: schema.StaleMissing})
		assert.Contains(t, out, "File     - time: not found (local n/a)")
		assert.Contains(t, out, "Coverage - time: not found (local n/a)")
		assert.NotContains(t, out, "Delta")
	})

	t.Run("project lists are capped", func(t *testing.T) {
		newer := make([]string, 12)
		for i := range newer {
			newer[i] = filepath.Join("lib", string(rune('a'+i))+".rb")
		}
		err := &schema.ProjectStaleError{
			ProjectStaleness:  schema.ProjectStaleness{NewerFiles: newer, DeletedFiles: []string{"lib/gone.rb"}},
			CoverageTimestamp: 1_700_000_000,
		}
		out := FormatStaleError(err)
		assert.Contains(t, out, "Newer files (12):")
		assert.Contains(t, out, "  - lib/j.rb")
		assert.NotContains(t, out, "  - lib/k.rb")
		assert.Contains(t, out, "\n  ...")
		assert.Contains(t, out, "Coverage-only files (deleted or moved in project, 1):")
		assert.NotContains(t, out, "Resultset")
	})

	t.Run("other errors", func(t *testing.T) {
		assert.Equal(t, "boom", FormatStaleError(&schema.ConfigurationError{Message: "boom"}))
		assert.Empty(t, FormatStaleError(nil))
	})
}

func TestOutWriterRelativizes(t *testing.T) {
	out := filepath.Join(t.TempDir(), "list.csv")
	cfg := &contract.Config{Output: schema.CSVOut, OutputFile: out}
	ow := NewOutWriter(func(p string) string { return strings.TrimPrefix(p, "/proj/") })
	list := schema.ListResult{Files: []schema.FileRow{{File: "/proj/lib/a.rb", Covered: 1, Total: 1, Percentage: 100, Stale: schema.StaleOK}}}
	require.NoError(t, ow.WriteList(list, cfg))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), "\nlib/a.rb,100.00,1,1,ok")
	assert.Equal(t, "/proj/lib/a.rb", list.Files[0].File, "caller's rows are not mutated")
}

func TestPrintValidation(t *testing.T) {
	out := filepath.Join(t.TempDir(), "validate.txt")
	cfg := plainConfig()
	cfg.OutputFile = out
	result := schema.ValidationResult{
		Passed:     false,
		Percentage: 60,
		MinTotal:   80,
		Failures: []schema.ThresholdFailure{
			{Scope: schema.ScopeTotal, Percentage: 60, Minimum: 80},
			{Scope: schema.ScopeFile, File: "lib/a.rb", Percentage: 10, Minimum: 50},
		},
	}
	require.NoError(t, PrintValidation(result, cfg))
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Coverage thresholds not met (2 failures)")
	assert.Contains(t, string(data), "project total: 60.00% < 80.00%")
	assert.Contains(t, string(data), "lib/a.rb: 10.00% < 50.00%")
}

func TestMaxTablePathWidth(t *testing.T) {
	tests := []struct {
		width    int
		expected int
	}{
		{width: 60, expected: minPathWidth},
		{width: 120, expected: 120 - fixedColumnsWidth},
		{width: 400, expected: maxPathWidth},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, maxTablePathWidth(&contract.Config{Width: tt.width}))
	}
}
