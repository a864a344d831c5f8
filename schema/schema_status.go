package schema

import "time"

// CacheStatus reports the state of the in-memory coverage data cache.
type CacheStatus struct {
	Entries int   `json:"entries" yaml:"entries"`
	Hits    int64 `json:"hits" yaml:"hits"`
	Misses  int64 `json:"misses" yaml:"misses"`
}

// HistoryStatus represents the status of the coverage history store.
type HistoryStatus struct {
	Backend        string           `json:"backend" yaml:"backend"`
	Connected      bool             `json:"connected" yaml:"connected"`
	TotalRuns      int              `json:"total_runs" yaml:"total_runs"`
	LastRunID      int64            `json:"last_run_id" yaml:"last_run_id"`
	LastRunTime    time.Time        `json:"last_run_time" yaml:"last_run_time"`
	OldestRunTime  time.Time        `json:"oldest_run_time" yaml:"oldest_run_time"`
	LastPercentage float64          `json:"last_percentage" yaml:"last_percentage"`
	TableSizes     map[string]int64 `json:"table_sizes" yaml:"table_sizes"`
	SizeBytes      int64            `json:"size_bytes" yaml:"size_bytes"`
}

// HistoryRunRecord represents a row from the covloupe_runs table.
type HistoryRunRecord struct {
	RunID             int64
	RecordedAt        time.Time
	Root              string
	ResultsetPath     string
	CoverageTimestamp int64
	CoveredLines      int32
	TotalLines        int32
	Percentage        float64
	FilesTotal        int32
	FilesStale        int32
}

// HistoryFileRecord represents a row from the covloupe_file_stats table.
type HistoryFileRecord struct {
	RunID      int64
	FilePath   string
	Covered    int32
	Total      int32
	Percentage float64
	Stale      string
}
