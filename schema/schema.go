// Package schema has models, enums and errors shared by all parts of covloupe.
package schema

// LineHits is a per-line hit sequence. Index i holds line i+1.
// A nil element marks a line that is not executable.
type LineHits []*int

// Hits returns a pointer to n for building LineHits literals.
func Hits(n int) *int {
	return &n
}

// Clone returns a deep copy that shares no hit counters with l.
func (l LineHits) Clone() LineHits {
	if l == nil {
		return nil
	}
	out := make(LineHits, len(l))
	for i, h := range l {
		if h != nil {
			out[i] = Hits(*h)
		}
	}
	return out
}

// Len returns the number of lines in the sequence.
func (l LineHits) Len() int {
	return len(l)
}

// BranchHit is one branch arm: the lines it spans and how often it ran.
type BranchHit struct {
	// ID is the arm descriptor as recorded; arms from different suites merge on it.
	ID        string `json:"id,omitempty" yaml:"id,omitempty"`
	StartLine int    `json:"start_line" yaml:"start_line"`
	EndLine   int    `json:"end_line" yaml:"end_line"`
	Hits      int    `json:"hits" yaml:"hits"`
}

// EntryKind tags which variant a CoverageEntry carries.
type EntryKind int

// Entry kinds.
const (
	LineEntry EntryKind = iota + 1
	BranchEntry
)

// CoverageEntry is the coverage of one source file: line hits, or branch
// arms when the producer recorded no line data.
type CoverageEntry struct {
	Kind     EntryKind
	Lines    LineHits
	Branches []BranchHit
}

// NewLineEntry builds a line-hit entry.
func NewLineEntry(lines LineHits) CoverageEntry {
	return CoverageEntry{Kind: LineEntry, Lines: lines}
}

// NewBranchEntry builds a branch-only entry.
func NewBranchEntry(branches []BranchHit) CoverageEntry {
	return CoverageEntry{Kind: BranchEntry, Branches: branches}
}

// CoverageMap maps a file path to its coverage entry.
type CoverageMap map[string]CoverageEntry

// Snapshot is an immutable, normalized view of one resultset file.
// Keys of Coverage are absolute paths under the project root.
type Snapshot struct {
	Coverage      CoverageMap
	Timestamp     int64
	ResultsetPath string
	SuiteNames    []string
}

// CoverageSummary holds covered/total counts for a file or project.
type CoverageSummary struct {
	Covered    int     `json:"covered" yaml:"covered"`
	Total      int     `json:"total" yaml:"total"`
	Percentage float64 `json:"percentage" yaml:"percentage"`
}

// LineDetail is the coverage of a single executable line.
type LineDetail struct {
	Line    int  `json:"line" yaml:"line"`
	Hits    int  `json:"hits" yaml:"hits"`
	Covered bool `json:"covered" yaml:"covered"`
}

// FileCoverage is the result of resolving one file.
type FileCoverage struct {
	File  string      `json:"file" yaml:"file"`
	Lines LineHits    `json:"lines" yaml:"lines"`
	Stale StaleStatus `json:"stale" yaml:"stale"`
}

// FileSummary is the summary view of one file.
type FileSummary struct {
	File    string          `json:"file" yaml:"file"`
	Summary CoverageSummary `json:"summary" yaml:"summary"`
	Stale   StaleStatus     `json:"stale" yaml:"stale"`
}

// FileUncovered lists the uncovered lines of one file.
type FileUncovered struct {
	File      string          `json:"file" yaml:"file"`
	Uncovered []int           `json:"uncovered" yaml:"uncovered"`
	Summary   CoverageSummary `json:"summary" yaml:"summary"`
	Stale     StaleStatus     `json:"stale" yaml:"stale"`
}

// FileDetailed lists every executable line of one file.
type FileDetailed struct {
	File    string          `json:"file" yaml:"file"`
	Lines   []LineDetail    `json:"lines" yaml:"lines"`
	Summary CoverageSummary `json:"summary" yaml:"summary"`
	Stale   StaleStatus     `json:"stale" yaml:"stale"`
}

// FileRow is one row of the project listing.
type FileRow struct {
	File       string      `json:"file" yaml:"file"`
	Covered    int         `json:"covered" yaml:"covered"`
	Total      int         `json:"total" yaml:"total"`
	Percentage float64     `json:"percentage" yaml:"percentage"`
	Stale      StaleStatus `json:"stale" yaml:"stale"`
}

// SkippedFile records a coverage entry that could not be listed.
type SkippedFile struct {
	File      string `json:"file" yaml:"file"`
	Error     string `json:"error" yaml:"error"`
	ErrorKind string `json:"error_kind" yaml:"error_kind"`
}

// ProjectStaleness describes how the source tree drifted from the coverage data.
type ProjectStaleness struct {
	NewerFiles          []string               `json:"newer_files" yaml:"newer_files"`
	MissingFiles        []string               `json:"missing_tracked_files" yaml:"missing_tracked_files"`
	DeletedFiles        []string               `json:"deleted_files" yaml:"deleted_files"`
	LengthMismatchFiles []string               `json:"length_mismatch_files" yaml:"length_mismatch_files"`
	UnreadableFiles     []string               `json:"unreadable_files" yaml:"unreadable_files"`
	FileStatuses        map[string]StaleStatus `json:"-" yaml:"-"`
	TimestampStatus     string                 `json:"timestamp_status" yaml:"timestamp_status"`
}

// Any reports whether any file list is non-empty.
func (p ProjectStaleness) Any() bool {
	return len(p.NewerFiles) > 0 || len(p.MissingFiles) > 0 || len(p.DeletedFiles) > 0 ||
		len(p.LengthMismatchFiles) > 0 || len(p.UnreadableFiles) > 0
}

// ListResult is the project listing with its staleness report.
type ListResult struct {
	Files        []FileRow     `json:"files" yaml:"files"`
	SkippedFiles []SkippedFile `json:"skipped_files" yaml:"skipped_files"`

	ProjectStaleness `yaml:",inline"`
}

// LineTotals aggregates line counts across files.
type LineTotals struct {
	Covered   int `json:"covered" yaml:"covered"`
	Uncovered int `json:"uncovered" yaml:"uncovered"`
	Total     int `json:"total" yaml:"total"`
}

// FileTotals counts listed files by staleness.
type FileTotals struct {
	Total int `json:"total" yaml:"total"`
	OK    int `json:"ok" yaml:"ok"`
	Stale int `json:"stale" yaml:"stale"`
}

// ExcludedCounts counts files left out of the totals.
type ExcludedCounts struct {
	Skipped        int `json:"skipped" yaml:"skipped"`
	MissingTracked int `json:"missing_tracked" yaml:"missing_tracked"`
	Newer          int `json:"newer" yaml:"newer"`
	Deleted        int `json:"deleted" yaml:"deleted"`
}

// ProjectTotals is the aggregate coverage of the project.
type ProjectTotals struct {
	Lines           LineTotals     `json:"lines" yaml:"lines"`
	Percentage      float64        `json:"percentage" yaml:"percentage"`
	Files           FileTotals     `json:"files" yaml:"files"`
	ExcludedFiles   ExcludedCounts `json:"excluded_files" yaml:"excluded_files"`
	TimestampStatus string         `json:"timestamp_status" yaml:"timestamp_status"`
}

// Timestamp status values.
const (
	TimestampOK      = "ok"
	TimestampMissing = "missing"
)

// SourceLine is one line of source shown next to its coverage.
// Hits and Covered are nil for lines that are not executable.
type SourceLine struct {
	Line    int    `json:"line" yaml:"line"`
	Code    string `json:"code" yaml:"code"`
	Hits    *int   `json:"hits" yaml:"hits"`
	Covered *bool  `json:"covered" yaml:"covered"`
}

// Threshold scopes.
const (
	ScopeTotal = "total"
	ScopeFile  = "file"
)

// ThresholdFailure is one coverage figure that fell below its minimum.
type ThresholdFailure struct {
	Scope      string  `json:"scope" yaml:"scope"`
	File       string  `json:"file,omitempty" yaml:"file,omitempty"`
	Percentage float64 `json:"percentage" yaml:"percentage"`
	Minimum    float64 `json:"minimum" yaml:"minimum"`
}

// ValidationResult is the outcome of checking coverage against thresholds.
type ValidationResult struct {
	Passed     bool               `json:"passed" yaml:"passed"`
	Percentage float64            `json:"percentage" yaml:"percentage"`
	MinTotal   float64            `json:"min_total" yaml:"min_total"`
	MinFile    float64            `json:"min_file" yaml:"min_file"`
	Failures   []ThresholdFailure `json:"failures" yaml:"failures"`
}
