// Package cmd defines the command-line interface for covloupe.
package cmd

import (
	"github.com/keithrbennett/covloupe/internal/contract"
	"github.com/keithrbennett/covloupe/schema"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	// Call initConfig on Cobra's initialization
	cobra.OnInitialize(initConfig)

	// Add primary subcommands to the root command
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(summaryCmd)
	rootCmd.AddCommand(rawCmd)
	rootCmd.AddCommand(uncoveredCmd)
	rootCmd.AddCommand(detailedCmd)
	rootCmd.AddCommand(totalsCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(versionCmd)

	// Add the history subcommands to the parent history command
	historyCmd.AddCommand(historyRecordCmd)
	historyCmd.AddCommand(historyStatusCmd)
	historyCmd.AddCommand(historyExportCmd)
	historyCmd.AddCommand(historyClearCmd)
	historyCmd.AddCommand(historyMigrateCmd)

	// Bind all persistent flags of rootCmd to Viper
	rootCmd.PersistentFlags().String("root", ".", "Project root used to resolve relative paths")
	rootCmd.PersistentFlags().StringP("resultset", "r", "", "Path to .resultset.json or the directory holding it")
	rootCmd.PersistentFlags().StringP("output", "o", string(schema.TableOut), "Output format: table or json or yaml or csv")
	rootCmd.PersistentFlags().String("output-file", "", "Optional path to write output to")
	rootCmd.PersistentFlags().String("sort-order", string(schema.Descending), "Row order by percentage: ascending or descending")
	rootCmd.PersistentFlags().String("tracked-globs", "", "Comma-separated glob patterns of files that should have coverage")
	rootCmd.PersistentFlags().String("raise-on-stale", "no", "Fail instead of reporting when coverage is stale (yes/no/true/false/1/0)")
	rootCmd.PersistentFlags().Int("width", 0, "Terminal width override (0 = auto-detect)")
	rootCmd.PersistentFlags().String("color", "yes", "Enable colored labels in output (yes/no/true/false/1/0)")
	rootCmd.PersistentFlags().String("log-level", "warn", "Log level: debug or info or warn or error or silent")
	rootCmd.PersistentFlags().String("log-file", "", "Write logs to this file instead of stderr")
	rootCmd.PersistentFlags().String("history-backend", string(schema.SQLiteBackend), "History backend: sqlite or mysql or postgresql or none")
	rootCmd.PersistentFlags().String("history-db-connect", "", "Database connection string for the history backend (file path for sqlite)")
	rootCmd.PersistentFlags().String("config", "", "Path to config file")
	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		contract.LogFatal("Error binding root flags", err)
	}

	// Flags of the single-file views; bound when the command runs.
	for _, c := range []*cobra.Command{uncoveredCmd, detailedCmd} {
		c.Flags().String("source", string(schema.SourceOff), "Print source lines: off or full or uncovered")
		c.Flags().Int("context-lines", contract.DefaultContextLines, "Lines of context around uncovered lines with --source uncovered")
	}

	validateCmd.Flags().Float64("min-total", 0, "Minimum project coverage percentage (0 disables)")
	validateCmd.Flags().Float64("min-file", 0, "Minimum per-file coverage percentage (0 disables)")

	mcpCmd.Flags().String("http", "", "Serve streamable HTTP on this address instead of stdio (e.g. "+contract.DefaultHTTPAddr+")")

	// Bind all flags of historyMigrateCmd to Viper
	historyMigrateCmd.Flags().Int("target-version", -1, "Target migration version (-1 means latest, 0 means rollback to initial state)")
	if err := viper.BindPFlags(historyMigrateCmd.Flags()); err != nil {
		contract.LogFatal("Error binding history migrate flags", err)
	}
}
