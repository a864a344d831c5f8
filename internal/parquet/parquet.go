// Package parquet provides data structures and functions for exporting coverage
// history to Parquet files using github.com/parquet-go/parquet-go.
package parquet

import (
	"fmt"
	"os"
	"time"

	"github.com/keithrbennett/covloupe/schema"
	"github.com/parquet-go/parquet-go"
)

// CoverageRun is one recorded coverage run.
// This struct maps to the covloupe_runs database table.
type CoverageRun struct {
	// RunID is the unique identifier for this run
	RunID int64 `parquet:"run_id,snappy"`

	// RecordedAt is when the run was stored (TIMESTAMP with nanosecond precision)
	RecordedAt time.Time `parquet:"recorded_at,snappy"`

	// Root is the absolute project root
	Root string `parquet:"root,snappy"`

	// ResultsetPath is the resultset file the run was read from
	ResultsetPath string `parquet:"resultset_path,snappy"`

	// CoverageTimestamp is the resultset timestamp in epoch seconds (nullable when missing)
	CoverageTimestamp *int64 `parquet:"coverage_timestamp,optional,snappy"`

	CoveredLines int32   `parquet:"covered_lines,snappy"`
	TotalLines   int32   `parquet:"total_lines,snappy"`
	Percentage   float64 `parquet:"percentage,snappy"`
	FilesTotal   int32   `parquet:"files_total,snappy"`
	FilesStale   int32   `parquet:"files_stale,snappy"`
}

// FileStat is the coverage of a single file in a run.
// This struct maps to the covloupe_file_stats database table.
type FileStat struct {
	// RunID references the parent run
	RunID int64 `parquet:"run_id,snappy"`

	// FilePath is the path relative to the project root
	FilePath string `parquet:"file_path,snappy"`

	Covered    int32   `parquet:"covered,snappy"`
	Total      int32   `parquet:"total,snappy"`
	Percentage float64 `parquet:"percentage,snappy"`

	// Stale is the staleness verdict (nullable when the file was ok)
	Stale *string `parquet:"stale,optional,snappy"`
}

// WriteRunsParquet writes a slice of CoverageRun structs to a Parquet file.
func WriteRunsParquet(data []CoverageRun, outputPath string) error {
	return writeParquet(data, outputPath)
}

// WriteFileStatsParquet writes a slice of FileStat structs to a Parquet file.
func WriteFileStatsParquet(data []FileStat, outputPath string) error {
	return writeParquet(data, outputPath)
}

// writeParquet writes rows with a schema inferred from the struct tags of T.
func writeParquet[T any](data []T, outputPath string) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer func() { _ = file.Close() }()

	writer := parquet.NewGenericWriter[T](file)
	if _, err := writer.Write(data); err != nil {
		_ = writer.Close()
		return fmt.Errorf("failed to write data to parquet file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to finalize parquet file: %w", err)
	}
	return nil
}

// ConvertRunRecords converts schema.HistoryRunRecord to CoverageRun for Parquet export.
func ConvertRunRecords(records []schema.HistoryRunRecord) []CoverageRun {
	result := make([]CoverageRun, len(records))
	for i, record := range records {
		var ts *int64
		if record.CoverageTimestamp > 0 {
			v := record.CoverageTimestamp
			ts = &v
		}
		result[i] = CoverageRun{
			RunID:             record.RunID,
			RecordedAt:        record.RecordedAt,
			Root:              record.Root,
			ResultsetPath:     record.ResultsetPath,
			CoverageTimestamp: ts,
			CoveredLines:      record.CoveredLines,
			TotalLines:        record.TotalLines,
			Percentage:        record.Percentage,
			FilesTotal:        record.FilesTotal,
			FilesStale:        record.FilesStale,
		}
	}
	return result
}

// ConvertFileRecords converts schema.HistoryFileRecord to FileStat for Parquet export.
func ConvertFileRecords(records []schema.HistoryFileRecord) []FileStat {
	result := make([]FileStat, len(records))
	for i, record := range records {
		var stale *string
		if record.Stale != "" && record.Stale != string(schema.StaleOK) {
			v := record.Stale
			stale = &v
		}
		result[i] = FileStat{
			RunID:      record.RunID,
			FilePath:   record.FilePath,
			Covered:    record.Covered,
			Total:      record.Total,
			Percentage: record.Percentage,
			Stale:      stale,
		}
	}
	return result
}
