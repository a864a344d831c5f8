package cmd

import (
	"os/signal"
	"syscall"

	"github.com/keithrbennett/covloupe/internal/mcp"
	"github.com/spf13/cobra"
)

// mcpCmd represents the mcp command.
var mcpCmd = &cobra.Command{
	Use:   "mcp [root]",
	Short: "Start the covloupe MCP server",
	Long: `Launch an MCP server that lets AI agents query coverage via standard tools.

By default the server speaks over stdio. With --http it serves the streamable
HTTP transport at /mcp and a /healthz probe.

Examples:
  covloupe mcp
  covloupe mcp --http 127.0.0.1:8089`,
	Args: cobra.MaximumNArgs(1),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		var rootArg string
		if len(args) == 1 {
			rootArg = args[0]
		}
		// stdout carries the protocol; only a log file may receive records.
		return sharedSetup(cmd, rootArg, true)
	},
	RunE: func(_ *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(rootCtx, syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		cache, _ := sharedSnapshotCache()
		opts := mcp.Options{Cache: cache, Logger: logger, Version: version}
		if cfg.HTTPAddr != "" {
			return mcp.StartHTTPServer(ctx, cfg.HTTPAddr, cfg, opts)
		}
		return mcp.StartMCPServer(ctx, cfg, opts)
	},
}
