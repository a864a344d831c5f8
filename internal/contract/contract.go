// Package contract provides interfaces and shared utilities for covloupe's internal architecture.
package contract

import (
	"github.com/keithrbennett/covloupe/schema"
)

// HistoryManager defines the interface for managing the coverage history store.
// This allows the persistence layer to be mocked for testing.
type HistoryManager interface {
	GetHistoryStore() HistoryStore
}

// HistoryStore defines the interface for recording coverage runs over time.
type HistoryStore interface {
	// RecordRun stores one run with its per-file rows and returns the new run ID
	RecordRun(run schema.HistoryRunRecord, files []schema.HistoryFileRecord) (int64, error)

	// GetStatus returns status information about the history store
	GetStatus() (schema.HistoryStatus, error)

	// GetAllRuns returns every recorded run, oldest first
	GetAllRuns() ([]schema.HistoryRunRecord, error)

	// GetAllFileStats returns every per-file row, ordered by run and path
	GetAllFileStats() ([]schema.HistoryFileRecord, error)

	// Close closes the underlying connection
	Close() error
}
