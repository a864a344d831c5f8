package mcp_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/keithrbennett/covloupe/internal/contract"
	mcp_internal "github.com/keithrbennett/covloupe/internal/mcp"
	"github.com/keithrbennett/covloupe/schema"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	full := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
}

// newFixture builds a project with lib/foo.rb at 50% and lib/bar.rb at 100%.
func newFixture(t *testing.T) (string, *server.MCPServer) {
	t.Helper()
	root := t.TempDir()
	writeFile(t, root, "lib/foo.rb", "a\nb\nc\n")
	writeFile(t, root, "lib/bar.rb", "x\n")
	data, err := json.Marshal(map[string]any{
		"RSpec": map[string]any{
			"timestamp": time.Now().Add(time.Hour).Unix(),
			"coverage": map[string]any{
				"lib/foo.rb": map[string]any{"lines": []any{1, 0, nil}},
				"lib/bar.rb": map[string]any{"lines": []any{3}},
			},
		},
	})
	require.NoError(t, err)
	writeFile(t, root, "coverage/.resultset.json", string(data))

	cfg := &contract.Config{Root: root, SortOrder: schema.Descending}
	return root, mcp_internal.NewMCPServer(cfg, mcp_internal.Options{Version: "1.2.3"})
}

func call(t *testing.T, s *server.MCPServer, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	tool := s.GetTool(name)
	require.NotNil(t, tool, "tool %s should exist", name)
	res, err := tool.Handler(context.Background(), mcp.CallToolRequest{
		Params: mcp.CallToolParams{Name: name, Arguments: args},
	})
	require.NoError(t, err, "handlers report failures as tool results")
	require.NotNil(t, res)
	return res
}

func text(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, res.Content)
	tc, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return tc.Text
}

func decode[T any](t *testing.T, res *mcp.CallToolResult) T {
	t.Helper()
	require.False(t, res.IsError, text(t, res))
	var v T
	require.NoError(t, json.Unmarshal([]byte(text(t, res)), &v))
	return v
}

func TestToolsRegistered(t *testing.T) {
	_, s := newFixture(t)
	for _, name := range []string{
		"coverage_raw_tool", "coverage_summary_tool", "uncovered_lines_tool",
		"coverage_detailed_tool", "list_tool", "coverage_totals_tool",
		"coverage_table_tool", "validate_tool", "version_tool",
	} {
		assert.NotNil(t, s.GetTool(name), name)
	}
}

func TestFileTools(t *testing.T) {
	_, s := newFixture(t)

	summary := decode[schema.FileSummary](t, call(t, s, "coverage_summary_tool", map[string]any{"path": "lib/foo.rb"}))
	assert.Equal(t, "lib/foo.rb", summary.File)
	assert.Equal(t, 1, summary.Summary.Covered)
	assert.Equal(t, 2, summary.Summary.Total)
	assert.InDelta(t, 50.0, summary.Summary.Percentage, 0.001)
	assert.Equal(t, schema.StaleOK, summary.Stale)

	raw := decode[schema.FileCoverage](t, call(t, s, "coverage_raw_tool", map[string]any{"path": "lib/foo.rb"}))
	assert.Equal(t, schema.LineHits{schema.Hits(1), schema.Hits(0), nil}, raw.Lines)

	uncovered := decode[schema.FileUncovered](t, call(t, s, "uncovered_lines_tool", map[string]any{"path": "lib/foo.rb"}))
	assert.Equal(t, []int{2}, uncovered.Uncovered)

	detailed := decode[schema.FileDetailed](t, call(t, s, "coverage_detailed_tool", map[string]any{"path": "lib/foo.rb"}))
	assert.Equal(t, []schema.LineDetail{{Line: 1, Hits: 1, Covered: true}, {Line: 2, Hits: 0, Covered: false}}, detailed.Lines)
}

func TestFileToolErrors(t *testing.T) {
	root, s := newFixture(t)

	t.Run("missing path", func(t *testing.T) {
		res := call(t, s, "coverage_summary_tool", map[string]any{})
		assert.True(t, res.IsError)
	})

	t.Run("unknown file", func(t *testing.T) {
		res := call(t, s, "coverage_summary_tool", map[string]any{"path": "lib/nope.rb"})
		assert.True(t, res.IsError)
	})

	t.Run("bad root", func(t *testing.T) {
		res := call(t, s, "coverage_summary_tool", map[string]any{
			"path": "lib/foo.rb",
			"root": filepath.Join(root, "does-not-exist"),
		})
		assert.True(t, res.IsError)
	})

	t.Run("raise on stale", func(t *testing.T) {
		writeFile(t, root, "lib/foo.rb", "a\nb\nc\nd\n")
		res := call(t, s, "coverage_summary_tool", map[string]any{"path": "lib/foo.rb", "raise_on_stale": true})
		assert.True(t, res.IsError)
		assert.Contains(t, text(t, res), "Coverage - time:")

		// Without the flag the verdict is reported instead.
		summary := decode[schema.FileSummary](t, call(t, s, "coverage_summary_tool", map[string]any{"path": "lib/foo.rb"}))
		assert.Equal(t, schema.StaleLengthMismatch, summary.Stale)
	})
}

func TestListAndTotalsTools(t *testing.T) {
	_, s := newFixture(t)

	list := decode[schema.ListResult](t, call(t, s, "list_tool", map[string]any{}))
	require.Len(t, list.Files, 2)
	assert.Equal(t, "lib/bar.rb", list.Files[0].File)

	list = decode[schema.ListResult](t, call(t, s, "list_tool", map[string]any{"sort_order": "ascending"}))
	require.Len(t, list.Files, 2)
	assert.Equal(t, "lib/foo.rb", list.Files[0].File)

	res := call(t, s, "list_tool", map[string]any{"sort_order": "sideways"})
	assert.True(t, res.IsError)

	totals := decode[schema.ProjectTotals](t, call(t, s, "coverage_totals_tool", map[string]any{}))
	assert.Equal(t, 2, totals.Lines.Covered)
	assert.Equal(t, 3, totals.Lines.Total)
	assert.Equal(t, 2, totals.Files.Total)

	table := call(t, s, "coverage_table_tool", map[string]any{})
	require.False(t, table.IsError)
	assert.Contains(t, text(t, table), "lib/foo.rb")
	assert.Contains(t, text(t, table), "Files: total 2, ok 2, stale 0")
}

func TestValidateTool(t *testing.T) {
	_, s := newFixture(t)

	passed := decode[schema.ValidationResult](t, call(t, s, "validate_tool", map[string]any{"min_total": 50.0}))
	assert.True(t, passed.Passed)

	failed := decode[schema.ValidationResult](t, call(t, s, "validate_tool", map[string]any{"min_total": 80.0, "min_file": 60.0}))
	assert.False(t, failed.Passed)
	require.Len(t, failed.Failures, 2)
	assert.Equal(t, schema.ScopeTotal, failed.Failures[0].Scope)
	assert.Equal(t, "lib/foo.rb", failed.Failures[1].File)

	res := call(t, s, "validate_tool", map[string]any{"min_total": 150.0})
	assert.True(t, res.IsError)
}

func TestVersionTool(t *testing.T) {
	_, s := newFixture(t)
	v := decode[map[string]string](t, call(t, s, "version_tool", nil))
	assert.Equal(t, "1.2.3", v["version"])
	assert.Equal(t, mcp_internal.ServerName, v["name"])
}

func TestHTTPHandlerHealthz(t *testing.T) {
	h := mcp_internal.NewHTTPHandler(&contract.Config{Root: t.TempDir()}, mcp_internal.Options{})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok\n", rec.Body.String())

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStartHTTPServerStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- mcp_internal.StartHTTPServer(ctx, "127.0.0.1:0", &contract.Config{Root: t.TempDir()}, mcp_internal.Options{})
	}()
	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
