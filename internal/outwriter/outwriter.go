// Package outwriter has output and writer logic.
package outwriter

import (
	"github.com/keithrbennett/covloupe/internal/contract"
	"github.com/keithrbennett/covloupe/schema"
)

// OutWriter provides a unified interface for all output operations.
// It encapsulates the various output formats and provides a clean API for the command layer.
type OutWriter struct {
	// Relativize turns absolute coverage paths into display paths.
	// Nil leaves paths unchanged.
	Relativize func(string) string
}

// NewOutWriter creates a new instance of the output writer.
func NewOutWriter(relativize func(string) string) *OutWriter {
	return &OutWriter{Relativize: relativize}
}

func (ow *OutWriter) rel(path string) string {
	if ow.Relativize == nil {
		return path
	}
	return ow.Relativize(path)
}

// WriteList prints the project coverage listing using the configured output format.
func (ow *OutWriter) WriteList(list schema.ListResult, cfg *contract.Config) error {
	list.Files = ow.relRows(list.Files)
	skipped := make([]schema.SkippedFile, len(list.SkippedFiles))
	for i, s := range list.SkippedFiles {
		s.File = ow.rel(s.File)
		skipped[i] = s
	}
	list.SkippedFiles = skipped
	return PrintList(list, cfg)
}

// WriteTotals prints aggregate project coverage using the configured output format.
func (ow *OutWriter) WriteTotals(totals schema.ProjectTotals, cfg *contract.Config) error {
	return PrintTotals(totals, cfg)
}

// WriteSummary prints the summary view of one file.
func (ow *OutWriter) WriteSummary(v schema.FileSummary, cfg *contract.Config) error {
	v.File = ow.rel(v.File)
	return PrintSummary(v, cfg)
}

// WriteRaw prints the raw line hits of one file.
func (ow *OutWriter) WriteRaw(v schema.FileCoverage, cfg *contract.Config) error {
	v.File = ow.rel(v.File)
	return PrintRaw(v, cfg)
}

// WriteRawAll prints the raw line hits of every coverage entry.
func (ow *OutWriter) WriteRawAll(all map[string]schema.LineHits, cfg *contract.Config) error {
	out := make(map[string]schema.LineHits, len(all))
	for f, lines := range all {
		out[ow.rel(f)] = lines
	}
	return PrintRawAll(out, cfg)
}

// WriteUncovered prints the uncovered lines of one file, optionally with source.
func (ow *OutWriter) WriteUncovered(v schema.FileUncovered, source []schema.SourceLine, cfg *contract.Config) error {
	v.File = ow.rel(v.File)
	return PrintUncovered(v, source, cfg)
}

// WriteDetailed prints per-line detail of one file, optionally with source.
func (ow *OutWriter) WriteDetailed(v schema.FileDetailed, source []schema.SourceLine, cfg *contract.Config) error {
	v.File = ow.rel(v.File)
	return PrintDetailed(v, source, cfg)
}

// WriteValidation prints the outcome of a threshold check.
func (ow *OutWriter) WriteValidation(result schema.ValidationResult, cfg *contract.Config) error {
	failures := make([]schema.ThresholdFailure, len(result.Failures))
	for i, f := range result.Failures {
		if f.File != "" {
			f.File = ow.rel(f.File)
		}
		failures[i] = f
	}
	result.Failures = failures
	return PrintValidation(result, cfg)
}

func (ow *OutWriter) relRows(rows []schema.FileRow) []schema.FileRow {
	out := make([]schema.FileRow, len(rows))
	for i, r := range rows {
		r.File = ow.rel(r.File)
		out[i] = r
	}
	return out
}
