package iocache

import (
	"errors"
	"fmt"
	"io"

	"github.com/keithrbennett/covloupe/internal/contract"
	"github.com/keithrbennett/covloupe/internal/parquet"
)

// ExecuteHistoryExport writes every recorded run and file row to a pair of
// Parquet files named after outputFile.
func ExecuteHistoryExport(w io.Writer, store contract.HistoryStore, outputFile string) error {
	if outputFile == "" {
		return errors.New("--output-file is required for export command")
	}
	if store == nil {
		return errors.New("history store is not initialized")
	}

	status, err := store.GetStatus()
	if err != nil {
		return fmt.Errorf("failed to get history status: %w", err)
	}
	if status.TotalRuns == 0 {
		return errors.New("no coverage history found to export")
	}

	_, _ = fmt.Fprintf(w, "Exporting data from %s backend...\n", status.Backend)
	_, _ = fmt.Fprintf(w, "Total runs: %d\n", status.TotalRuns)
	_, _ = fmt.Fprintf(w, "Total file records: %d\n", status.TableSizes[fileStatsTable])

	runs, err := store.GetAllRuns()
	if err != nil {
		return fmt.Errorf("failed to retrieve runs: %w", err)
	}
	files, err := store.GetAllFileStats()
	if err != nil {
		return fmt.Errorf("failed to retrieve file stats: %w", err)
	}

	parquetRuns := parquet.ConvertRunRecords(runs)
	parquetFiles := parquet.ConvertFileRecords(files)

	runsFile := outputFile + ".runs.parquet"
	if err := parquet.WriteRunsParquet(parquetRuns, runsFile); err != nil {
		return fmt.Errorf("failed to write runs: %w", err)
	}
	_, _ = fmt.Fprintf(w, "Exported %d runs to: %s\n", len(parquetRuns), runsFile)

	filesFile := outputFile + ".file_stats.parquet"
	if err := parquet.WriteFileStatsParquet(parquetFiles, filesFile); err != nil {
		return fmt.Errorf("failed to write file stats: %w", err)
	}
	_, _ = fmt.Fprintf(w, "Exported %d file records to: %s\n", len(parquetFiles), filesFile)

	_, _ = fmt.Fprintln(w, "\nExport complete! The Parquet files can be read with DuckDB, Pandas (via pyarrow) or Spark.")
	return nil
}
