package iocache

import (
	"time"

	"github.com/keithrbennett/covloupe/schema"
)

// RunInput identifies where a recorded run came from.
type RunInput struct {
	Root              string
	ResultsetPath     string
	CoverageTimestamp int64
	RecordedAt        time.Time
}

// BuildRunRecords turns a list result and its totals into history rows.
// File rows carry RunID 0 until the store assigns one.
func BuildRunRecords(in RunInput, list schema.ListResult, totals schema.ProjectTotals) (schema.HistoryRunRecord, []schema.HistoryFileRecord) {
	run := schema.HistoryRunRecord{
		RecordedAt:        in.RecordedAt,
		Root:              in.Root,
		ResultsetPath:     in.ResultsetPath,
		CoverageTimestamp: in.CoverageTimestamp,
		CoveredLines:      int32(totals.Lines.Covered),
		TotalLines:        int32(totals.Lines.Total),
		Percentage:        totals.Percentage,
		FilesTotal:        int32(totals.Files.Total),
		FilesStale:        int32(totals.Files.Stale),
	}
	if run.RecordedAt.IsZero() {
		run.RecordedAt = time.Now()
	}

	files := make([]schema.HistoryFileRecord, 0, len(list.Files))
	for _, row := range list.Files {
		files = append(files, schema.HistoryFileRecord{
			FilePath:   row.File,
			Covered:    int32(row.Covered),
			Total:      int32(row.Total),
			Percentage: row.Percentage,
			Stale:      string(row.Stale),
		})
	}
	return run, files
}
