package schema

import "fmt"

// Custom string types for type safety.
type (
	// OutputMode represents the format of the output.
	OutputMode string

	// SortOrder represents how coverage rows are ordered.
	SortOrder string

	// SourceMode controls whether source lines are printed next to coverage.
	SourceMode string

	// StaleStatus is the staleness verdict for a single file.
	StaleStatus string

	// DatabaseBackend represents the database backend for history tracking.
	DatabaseBackend string
)

// All output modes supported.
const (
	TableOut OutputMode = "table" // default
	JSONOut  OutputMode = "json"
	YAMLOut  OutputMode = "yaml"
	CSVOut   OutputMode = "csv"
)

// All sort orders supported.
const (
	Descending SortOrder = "descending" // default
	Ascending  SortOrder = "ascending"
)

// All source modes supported.
const (
	SourceOff       SourceMode = "off" // default
	SourceFull      SourceMode = "full"
	SourceUncovered SourceMode = "uncovered"
)

// All staleness verdicts. Exactly one applies to a file.
const (
	StaleOK             StaleStatus = "ok"
	StaleMissing        StaleStatus = "missing"
	StaleNewer          StaleStatus = "newer"
	StaleLengthMismatch StaleStatus = "length_mismatch"
	StaleError          StaleStatus = "error"
)

// All history backends supported.
const (
	SQLiteBackend     DatabaseBackend = "sqlite" // default
	MySQLBackend      DatabaseBackend = "mysql"
	PostgreSQLBackend DatabaseBackend = "postgresql"
	NoneBackend       DatabaseBackend = "none"
)

// AllStaleStatuses lists verdicts in precedence order.
var AllStaleStatuses = []StaleStatus{StaleError, StaleMissing, StaleLengthMismatch, StaleNewer, StaleOK}

// ValidOutputModes lists all valid output modes.
var ValidOutputModes = map[OutputMode]struct{}{
	TableOut: {},
	JSONOut:  {},
	YAMLOut:  {},
	CSVOut:   {},
}

// ValidSortOrders lists all valid sort orders.
var ValidSortOrders = map[SortOrder]struct{}{
	Descending: {},
	Ascending:  {},
}

// ValidSourceModes lists all valid source modes.
var ValidSourceModes = map[SourceMode]struct{}{
	SourceOff:       {},
	SourceFull:      {},
	SourceUncovered: {},
}

// ValidDatabaseBackends lists all valid history backends.
var ValidDatabaseBackends = map[DatabaseBackend]struct{}{
	SQLiteBackend:     {},
	MySQLBackend:      {},
	PostgreSQLBackend: {},
	NoneBackend:       {},
}

// ParseStaleStatus converts a string into a StaleStatus.
// Unknown values are rejected rather than mapped to a default.
func ParseStaleStatus(s string) (StaleStatus, error) {
	status := StaleStatus(s)
	for _, known := range AllStaleStatuses {
		if status == known {
			return status, nil
		}
	}
	return "", fmt.Errorf("invalid stale status %q", s)
}

// IsStale reports whether the verdict is anything other than ok.
func (s StaleStatus) IsStale() bool {
	return s != StaleOK && s != ""
}

// Label returns the short table label for a verdict; ok has none.
func (s StaleStatus) Label() string {
	if !s.IsStale() {
		return ""
	}
	return string(s)
}
