package cmd

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/keithrbennett/covloupe/core"
	"github.com/keithrbennett/covloupe/internal/contract"
	"github.com/keithrbennett/covloupe/internal/iocache"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// historyBackendSetup loads only the history backend settings. It does not
// resolve a project root or load coverage.
func historyBackendSetup() error {
	if err := loadConfigFile(); err != nil {
		return err
	}

	backend, err := contract.ParseDatabaseBackend(viper.GetString("history-backend"))
	if err != nil {
		return err
	}
	connStr := viper.GetString("history-db-connect")

	// Basic validation for database backends
	if err := contract.ValidateDatabaseConnectionString(backend, connStr); err != nil {
		return err
	}

	cfg.HistoryBackend = backend
	cfg.HistoryDBConnect = connStr
	cfg.OutputFile = viper.GetString("output-file")
	return nil
}

// historySetup loads the backend settings and opens the store.
func historySetup(_ *cobra.Command, _ []string) error {
	if err := historyBackendSetup(); err != nil {
		return err
	}
	if err := iocache.InitHistory(cfg.HistoryBackend, cfg.HistoryDBConnect); err != nil {
		return fmt.Errorf("failed to initialize history: %w", err)
	}
	return nil
}

// historyMigrateSetup loads the backend settings without opening the store,
// so that migrations run against a database the store never touched.
func historyMigrateSetup(_ *cobra.Command, _ []string) error {
	return historyBackendSetup()
}

// historyRecordSetup needs the full config for the coverage query plus the store.
func historyRecordSetup(cmd *cobra.Command, args []string) error {
	if err := rootedSetup(cmd, args); err != nil {
		return err
	}
	if err := iocache.InitHistory(cfg.HistoryBackend, cfg.HistoryDBConnect); err != nil {
		return fmt.Errorf("failed to initialize history: %w", err)
	}
	return nil
}

// historyStore returns the opened store or an error when setup was skipped.
func historyStore() (contract.HistoryStore, error) {
	store := historyManager.GetHistoryStore()
	if store == nil {
		return nil, errors.New("history store is not initialized")
	}
	return store, nil
}

// historyCmd focused on coverage history management.
//
// Note: history subcommands other than record use minimal initialization
// (historySetup) instead of the full sharedSetup, so they work outside a project.
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Record and manage coverage history for trend tracking",
	Long: `Store project coverage totals over time and export them for analysis.

Each recorded run stores:
- Run metadata (time, root, resultset, coverage timestamp)
- Project line totals and percentage
- Per-file covered/total/percentage and staleness verdict

Supported backends: SQLite (default), MySQL, PostgreSQL, or None (disabled)

Subcommands:
  record  - Record the current coverage
  status  - Show history statistics
  export  - Export data to Parquet for analytics
  clear   - Remove all history
  migrate - Run database schema migrations

Examples:
  # Record coverage after the test suite
  covloupe history record

  # Export for analysis in pandas/DuckDB
  covloupe history export --output-file coverage-history`,
}

// historyRecordCmd stores the current coverage as a new run.
var historyRecordCmd = &cobra.Command{
	Use:   "record [root]",
	Short: "Record the current project coverage as a new history run",
	Example: `  covloupe history record
  covloupe history record --history-backend postgresql --history-db-connect "host=db dbname=cov user=ci"`,
	Args:    cobra.MaximumNArgs(1),
	PreRunE: historyRecordSetup,
	Run: func(cmd *cobra.Command, _ []string) {
		store, err := historyStore()
		if err != nil {
			fatal("Cannot record history", err)
		}
		m, err := newModel()
		if err != nil {
			fatal("Cannot load coverage", err)
		}
		list, err := m.List(cfg.SortOrder)
		if err != nil {
			fatal("Cannot list coverage", err)
		}
		snap, err := m.Snapshot()
		if err != nil {
			fatal("Cannot load coverage", err)
		}
		run, files := iocache.BuildRunRecords(iocache.RunInput{
			Root:              m.Root(),
			ResultsetPath:     snap.ResultsetPath,
			CoverageTimestamp: snap.Timestamp,
			RecordedAt:        time.Now(),
		}, *m.RelativizeList(list), *core.TotalsFromList(list))

		runID, err := store.RecordRun(run, files)
		if err != nil {
			fatal("Cannot record history", err)
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Recorded run %d: %s (%d files)\n", runID, contract.FormatPercentage(run.Percentage), len(files))
	},
}

// historyStatusCmd shows history status.
var historyStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Display history statistics and connection details",
	Long: `Show the backend, connection state, number of recorded runs, the last
and oldest run times, row counts and storage size.

Examples:
  covloupe history status`,
	PreRunE: historySetup,
	Run: func(_ *cobra.Command, _ []string) {
		store, err := historyStore()
		if err != nil {
			fatal("Failed to get history status", err)
		}
		status, err := store.GetStatus()
		if err != nil {
			fatal("Failed to get history status", err)
		}
		iocache.PrintHistoryStatus(os.Stdout, status)
	},
}

// historyExportCmd exports history to Parquet files.
var historyExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export coverage history to Parquet for BI tools and analytics",
	Long: `Export all recorded runs and per-file rows to two Parquet files:
<output-file>.runs.parquet and <output-file>.file_stats.parquet.

Requires: --output-file parameter

Examples:
  covloupe history export --output-file history
  duckdb -c "SELECT recorded_at, percentage FROM read_parquet('history.runs.parquet')"`,
	PreRunE: historySetup,
	Run: func(_ *cobra.Command, _ []string) {
		store, err := historyStore()
		if err != nil {
			fatal("Failed to export history", err)
		}
		if err := iocache.ExecuteHistoryExport(os.Stdout, store, cfg.OutputFile); err != nil {
			fatal("Failed to export history", err)
		}
	},
}

// historyClearCmd clears the history.
var historyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove all recorded coverage history",
	Long: `Delete all stored runs and per-file rows. For SQLite the database file
is removed; for MySQL and PostgreSQL the history tables are dropped.

WARNING: This action cannot be undone. Consider exporting data first.

Examples:
  covloupe history export --output-file backup
  covloupe history clear`,
	PreRunE: historyMigrateSetup,
	Run: func(cmd *cobra.Command, _ []string) {
		if err := iocache.ClearHistory(cfg.HistoryBackend, cfg.HistoryDBConnect); err != nil {
			fatal("Failed to clear history", err)
		}
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Coverage history cleared successfully.")
	},
}

// historyMigrateCmd runs database migrations for the history store.
var historyMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database schema migrations (upgrades/downgrades)",
	Long: `Manage database schema versions for the history store.

By default, migrates to the latest version. Use --target-version for specific versions.

Examples:
  # Migrate to latest version (default)
  covloupe history migrate

  # Migrate to specific version
  covloupe history migrate --target-version 1

  # Rollback everything
  covloupe history migrate --target-version 0`,
	PreRunE: historyMigrateSetup,
	Run: func(_ *cobra.Command, _ []string) {
		targetVersion := viper.GetInt("target-version")
		if err := iocache.MigrateHistory(os.Stdout, cfg.HistoryBackend, cfg.HistoryDBConnect, targetVersion); err != nil {
			fatal("Failed to run migrations", err)
		}
	},
}
