package mcp

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/keithrbennett/covloupe/core"
	"github.com/keithrbennett/covloupe/internal/contract"
	"github.com/keithrbennett/covloupe/internal/datacache"
	"github.com/keithrbennett/covloupe/internal/outwriter"
	"github.com/keithrbennett/covloupe/internal/resultset"
	"github.com/keithrbennett/covloupe/schema"
	"github.com/mark3labs/mcp-go/mcp"
)

// toolHandler holds common dependencies for MCP tool handlers.
type toolHandler struct {
	baseCfg *contract.Config
	cache   *datacache.Cache
	builder *resultset.Builder
	logger  *slog.Logger
	version string
}

func newToolHandler(baseCfg *contract.Config, opts Options) *toolHandler {
	logger := opts.Logger
	if logger == nil {
		logger = contract.NewDiscardLogger()
	}
	builder := resultset.NewBuilder(logger)
	cache := opts.Cache
	if cache == nil {
		cache = core.NewSnapshotCache(builder)
	}
	version := opts.Version
	if version == "" {
		version = "dev"
	}
	if baseCfg == nil {
		baseCfg = &contract.Config{Root: ".", SortOrder: schema.Descending}
	}
	return &toolHandler{baseCfg: baseCfg, cache: cache, builder: builder, logger: logger, version: version}
}

// requestConfig overlays the per-call arguments on the server's base config.
func (h *toolHandler) requestConfig(request mcp.CallToolRequest) (*contract.Config, error) {
	cfg := h.baseCfg.Clone()
	cfg.UseColors = false
	if r := request.GetString("root", ""); r != "" {
		cfg.Root = r
	}
	if r := request.GetString("resultset", ""); r != "" {
		cfg.Resultset = r
	}
	cfg.RaiseOnStale = request.GetBool("raise_on_stale", cfg.RaiseOnStale)
	if globs := request.GetStringSlice("tracked_globs", nil); globs != nil {
		cfg.TrackedGlobs = globs
	}
	if s := request.GetString("sort_order", ""); s != "" {
		order, err := contract.ParseSortOrder(s)
		if err != nil {
			return nil, err
		}
		cfg.SortOrder = order
	}
	return cfg, nil
}

func (h *toolHandler) model(request mcp.CallToolRequest) (*core.Model, *contract.Config, error) {
	cfg, err := h.requestConfig(request)
	if err != nil {
		return nil, nil, err
	}
	m, err := core.NewModel(core.ModelOptions{
		Root:         cfg.Root,
		Resultset:    cfg.Resultset,
		RaiseOnStale: cfg.RaiseOnStale,
		TrackedGlobs: cfg.TrackedGlobs,
		Logger:       h.logger,
		Cache:        h.cache,
		Builder:      h.builder,
	})
	if err != nil {
		return nil, nil, err
	}
	return m, cfg, nil
}

// toolError turns err into a tool-level error result carrying any staleness report.
func (h *toolHandler) toolError(tool string, err error) *mcp.CallToolResult {
	h.logger.Warn("tool call failed", "tool", tool, "kind", schema.ErrorKind(err), "error", err)
	return mcp.NewToolResultError(outwriter.FormatStaleError(err))
}

func jsonResult(v any) *mcp.CallToolResult {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultErrorFromErr("failed to encode result", err)
	}
	return mcp.NewToolResultText(string(data))
}

// fileHandler builds a handler for a single-file view.
func (h *toolHandler) fileHandler(tool string, view func(m *core.Model, path string) (any, error)) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		path, err := request.RequireString("path")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		m, _, err := h.model(request)
		if err != nil {
			return h.toolError(tool, err), nil
		}
		result, err := view(m, path)
		if err != nil {
			return h.toolError(tool, err), nil
		}
		return jsonResult(result), nil
	}
}

func (h *toolHandler) handleRaw(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return h.fileHandler("coverage_raw_tool", func(m *core.Model, path string) (any, error) {
		v, err := m.Raw(path)
		if err != nil {
			return nil, err
		}
		v.File = m.Relativize(v.File)
		return v, nil
	})(ctx, request)
}

func (h *toolHandler) handleSummary(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return h.fileHandler("coverage_summary_tool", func(m *core.Model, path string) (any, error) {
		v, err := m.Summary(path)
		if err != nil {
			return nil, err
		}
		v.File = m.Relativize(v.File)
		return v, nil
	})(ctx, request)
}

func (h *toolHandler) handleUncovered(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return h.fileHandler("uncovered_lines_tool", func(m *core.Model, path string) (any, error) {
		v, err := m.Uncovered(path)
		if err != nil {
			return nil, err
		}
		v.File = m.Relativize(v.File)
		return v, nil
	})(ctx, request)
}

func (h *toolHandler) handleDetailed(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return h.fileHandler("coverage_detailed_tool", func(m *core.Model, path string) (any, error) {
		v, err := m.Detailed(path)
		if err != nil {
			return nil, err
		}
		v.File = m.Relativize(v.File)
		return v, nil
	})(ctx, request)
}

func (h *toolHandler) handleList(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	m, cfg, err := h.model(request)
	if err != nil {
		return h.toolError("list_tool", err), nil
	}
	list, err := m.List(cfg.SortOrder)
	if err != nil {
		return h.toolError("list_tool", err), nil
	}
	return jsonResult(m.RelativizeList(list)), nil
}

func (h *toolHandler) handleTotals(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	m, _, err := h.model(request)
	if err != nil {
		return h.toolError("coverage_totals_tool", err), nil
	}
	totals, err := m.Totals()
	if err != nil {
		return h.toolError("coverage_totals_tool", err), nil
	}
	return jsonResult(totals), nil
}

func (h *toolHandler) handleTable(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	m, cfg, err := h.model(request)
	if err != nil {
		return h.toolError("coverage_table_tool", err), nil
	}
	list, err := m.List(cfg.SortOrder)
	if err != nil {
		return h.toolError("coverage_table_tool", err), nil
	}
	// Tool output is not a terminal; use the widest path column.
	cfg.Width = 1000
	text, err := outwriter.FormatCoverageTable(m.RelativizeList(list).Files, cfg)
	if err != nil {
		return h.toolError("coverage_table_tool", err), nil
	}
	return mcp.NewToolResultText(text), nil
}

func (h *toolHandler) handleValidate(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	minTotal := request.GetFloat("min_total", h.baseCfg.MinTotal)
	minFile := request.GetFloat("min_file", h.baseCfg.MinFile)
	if minTotal < 0 || minTotal > 100 || minFile < 0 || minFile > 100 {
		return mcp.NewToolResultError("min_total and min_file must be between 0 and 100"), nil
	}
	m, _, err := h.model(request)
	if err != nil {
		return h.toolError("validate_tool", err), nil
	}
	result, err := m.Validate(minTotal, minFile)
	if err != nil {
		return h.toolError("validate_tool", err), nil
	}
	for i, f := range result.Failures {
		if f.File != "" {
			result.Failures[i].File = m.Relativize(f.File)
		}
	}
	return jsonResult(result), nil
}

func (h *toolHandler) handleVersion(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(map[string]string{"name": ServerName, "version": h.version}), nil
}
