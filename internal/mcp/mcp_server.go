// Package mcp provides the Model Context Protocol (MCP) server implementation.
package mcp

import (
	"context"
	"log/slog"
	"os"

	"github.com/keithrbennett/covloupe/internal/contract"
	"github.com/keithrbennett/covloupe/internal/datacache"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// ServerName identifies the server in the MCP handshake.
const ServerName = "covloupe"

// Options carries the shared dependencies of every tool handler.
type Options struct {
	// Cache is shared by every handler; nil gives the server its own.
	Cache   *datacache.Cache
	Logger  *slog.Logger
	Version string
}

// NewMCPServer initializes and configures the covloupe MCP server without starting it.
// This is exposed for unit testing.
func NewMCPServer(baseCfg *contract.Config, opts Options) *server.MCPServer {
	h := newToolHandler(baseCfg, opts)

	s := server.NewMCPServer(
		ServerName,
		h.version,
		server.WithToolCapabilities(false),
		server.WithLogging(),
		server.WithRecovery(),
	)

	fileTool := func(name, description string) mcp.Tool {
		return mcp.NewTool(name, append(commonArgs(),
			mcp.WithDescription(description),
			mcp.WithString("path", mcp.Description("File path, absolute or relative to root."), mcp.Required()),
		)...)
	}

	s.AddTool(fileTool("coverage_raw_tool",
		"Return the raw per-line hit counts recorded for one file (null for non-executable lines)."),
		h.handleRaw)
	s.AddTool(fileTool("coverage_summary_tool",
		"Return covered, total and percentage for one file."),
		h.handleSummary)
	s.AddTool(fileTool("uncovered_lines_tool",
		"List the line numbers of one file that never ran, with its summary."),
		h.handleUncovered)
	s.AddTool(fileTool("coverage_detailed_tool",
		"Return every executable line of one file with its hit count and covered flag."),
		h.handleDetailed)

	s.AddTool(mcp.NewTool("list_tool", append(listArgs(),
		mcp.WithDescription("List coverage for every file in the project, with project staleness details."),
	)...), h.handleList)
	s.AddTool(mcp.NewTool("coverage_totals_tool", append(listArgs(),
		mcp.WithDescription("Return aggregate line and file totals for the project."),
	)...), h.handleTotals)
	s.AddTool(mcp.NewTool("coverage_table_tool", append(listArgs(),
		mcp.WithDescription("Render the project coverage table as plain text."),
	)...), h.handleTable)
	s.AddTool(mcp.NewTool("validate_tool", append(listArgs(),
		mcp.WithDescription("Check project and per-file coverage against minimum percentages."),
		mcp.WithNumber("min_total", mcp.Description("Minimum project coverage percentage (0-100)."), mcp.Min(0), mcp.Max(100)),
		mcp.WithNumber("min_file", mcp.Description("Minimum per-file coverage percentage (0-100)."), mcp.Min(0), mcp.Max(100)),
	)...), h.handleValidate)

	s.AddTool(mcp.NewTool("version_tool",
		mcp.WithDescription("Return the covloupe version."),
	), h.handleVersion)

	return s
}

func commonArgs() []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithString("root", mcp.Description("Project root (defaults to the server's configured root).")),
		mcp.WithString("resultset", mcp.Description("Path to .resultset.json or the directory holding it.")),
		mcp.WithBoolean("raise_on_stale", mcp.Description("Fail instead of reporting when coverage is stale.")),
	}
}

func listArgs() []mcp.ToolOption {
	return append(commonArgs(),
		mcp.WithString("sort_order", mcp.Description("Row order by percentage."), mcp.Enum("ascending", "descending")),
		mcp.WithArray("tracked_globs", mcp.Description("Glob patterns of files that should have coverage."), mcp.WithStringItems()),
	)
}

// StartMCPServer serves the covloupe MCP server over stdio until ctx ends or stdin closes.
func StartMCPServer(ctx context.Context, baseCfg *contract.Config, opts Options) error {
	s := NewMCPServer(baseCfg, opts)
	stdio := server.NewStdioServer(s)
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}
