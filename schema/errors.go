package schema

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Sentinels for errors.Is checks against the typed errors below.
var (
	ErrNotFound      = errors.New("not found")
	ErrAmbiguous     = errors.New("ambiguous")
	ErrCorruptData   = errors.New("corrupt coverage data")
	ErrConfiguration = errors.New("configuration error")
	ErrStale         = errors.New("coverage data stale")
)

// OpCoverageLoading tags errors raised while building a snapshot.
const OpCoverageLoading = "coverage_loading"

// NotFoundError reports a missing resultset, directory, file or coverage entry.
type NotFoundError struct {
	Path    string
	Message string
}

func (e *NotFoundError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("not found: %s", e.Path)
}

// Is matches ErrNotFound.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// AmbiguousError reports two or more equally valid candidates.
// Candidates always lists every one of them.
type AmbiguousError struct {
	Target     string
	Candidates []string
	// FromInput marks ambiguity caused by caller-supplied options.
	FromInput bool
	Message   string
}

func (e *AmbiguousError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("multiple coverage entries match path %s: %s", e.Target, strings.Join(e.Candidates, ", "))
}

// Is matches ErrAmbiguous, and ErrConfiguration when the input caused it.
func (e *AmbiguousError) Is(target error) bool {
	return target == ErrAmbiguous || (e.FromInput && target == ErrConfiguration)
}

// CorruptDataError reports a structurally invalid resultset.
type CorruptDataError struct {
	Path    string
	Message string
	Err     error
}

func (e *CorruptDataError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *CorruptDataError) Unwrap() error { return e.Err }

// Is matches ErrCorruptData.
func (e *CorruptDataError) Is(target error) bool {
	return target == ErrCorruptData
}

// ConfigurationError reports contradictory or invalid caller options.
type ConfigurationError struct {
	Message string
}

func (e *ConfigurationError) Error() string { return e.Message }

// Is matches ErrConfiguration.
func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}

// OperationError wraps an unexpected failure with the operation it interrupted.
type OperationError struct {
	Op  string
	Err error
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *OperationError) Unwrap() error { return e.Err }

// FileStaleError is raised for a single stale file when raise-on-stale is on.
type FileStaleError struct {
	File              string
	Status            StaleStatus
	FileMtime         time.Time
	CoverageTimestamp int64
	SourceLines       int
	CoverageLines     int
	ResultsetPath     string
}

func (e *FileStaleError) Error() string {
	return fmt.Sprintf("coverage data appears stale for %s (%s)", e.File, e.Status)
}

// Is matches ErrStale.
func (e *FileStaleError) Is(target error) bool {
	return target == ErrStale
}

// ProjectStaleError is raised for project-level drift when raise-on-stale is on.
type ProjectStaleError struct {
	ProjectStaleness
	CoverageTimestamp int64
	ResultsetPath     string
}

func (e *ProjectStaleError) Error() string {
	return "coverage data appears stale for project"
}

// Is matches ErrStale.
func (e *ProjectStaleError) Is(target error) bool {
	return target == ErrStale
}

// ErrorKind returns a stable short name for the domain error carried by err.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrStale):
		return "stale"
	case errors.Is(err, ErrAmbiguous):
		return "ambiguous"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrCorruptData):
		return "corrupt_data"
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	default:
		return "unknown"
	}
}
