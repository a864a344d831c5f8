package outwriter

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/keithrbennett/covloupe/internal/contract"
	"github.com/keithrbennett/covloupe/schema"

	"github.com/olekukonko/tablewriter/tw"
)

// MissingTimestampWarning is appended to totals when the coverage has no timestamp.
const MissingTimestampWarning = `WARNING: Coverage timestamps are missing. Time-based staleness checks were skipped.
Files may appear "ok" even if source code is newer than the coverage data.`

// PrintTotals outputs aggregate project coverage.
func PrintTotals(totals schema.ProjectTotals, cfg *contract.Config) error {
	header := []string{"metric", "total", "covered", "uncovered", "percentage"}
	return dispatch(cfg, totals, header, func(w *csv.Writer) error {
		return w.WriteAll([][]string{
			{"lines", strconv.Itoa(totals.Lines.Total), strconv.Itoa(totals.Lines.Covered),
				strconv.Itoa(totals.Lines.Uncovered), strconv.FormatFloat(totals.Percentage, 'f', 2, 64)},
			{"files", strconv.Itoa(totals.Files.Total), strconv.Itoa(totals.Files.OK),
				strconv.Itoa(totals.Files.Stale), ""},
		})
	}, func(w io.Writer) error {
		return writeTotalsTable(w, totals, cfg)
	})
}

func writeTotalsTable(w io.Writer, totals schema.ProjectTotals, cfg *contract.Config) error {
	if len(cfg.TrackedGlobs) == 0 {
		if _, err := fmt.Fprintln(w, "Tracked globs: (tracking disabled)"); err != nil {
			return err
		}
	} else {
		if _, err := fmt.Fprintln(w, "Tracked globs:"); err != nil {
			return err
		}
		for _, g := range cfg.TrackedGlobs {
			if _, err := fmt.Fprintf(w, "  - %s\n", g); err != nil {
				return err
			}
		}
	}
	if _, err := fmt.Fprintln(w, "\nTotals"); err != nil {
		return err
	}

	data := [][]string{
		{"Lines", strconv.Itoa(totals.Lines.Total), strconv.Itoa(totals.Lines.Covered),
			strconv.Itoa(totals.Lines.Uncovered), percentageCell(totals.Percentage, cfg)},
		{"Files", strconv.Itoa(totals.Files.Total), strconv.Itoa(totals.Files.OK),
			strconv.Itoa(totals.Files.Stale), ""},
	}
	if err := renderSimpleTable(w, []string{"Metric", "Total", "Covered", "Uncovered", "%"}, data,
		[]tw.Align{tw.AlignLeft, tw.AlignRight, tw.AlignRight, tw.AlignRight, tw.AlignRight}); err != nil {
		return err
	}

	ex := totals.ExcludedFiles
	if _, err := fmt.Fprintf(w, "\nFile breakdown:\n  With coverage: %d total, %d ok, %d stale\n"+
		"  Excluded: skipped %d, missing tracked %d, newer %d, deleted %d\n",
		totals.Files.Total, totals.Files.OK, totals.Files.Stale,
		ex.Skipped, ex.MissingTracked, ex.Newer, ex.Deleted); err != nil {
		return err
	}
	if totals.TimestampStatus == schema.TimestampMissing {
		if _, err := fmt.Fprintf(w, "\n%s\n", MissingTimestampWarning); err != nil {
			return err
		}
	}
	return nil
}

// PrintValidation outputs the result of a threshold check.
func PrintValidation(result schema.ValidationResult, cfg *contract.Config) error {
	header := []string{"scope", "file", "percentage", "minimum"}
	return dispatch(cfg, result, header, func(w *csv.Writer) error {
		for _, f := range result.Failures {
			if err := w.Write([]string{f.Scope, f.File,
				strconv.FormatFloat(f.Percentage, 'f', 2, 64),
				strconv.FormatFloat(f.Minimum, 'f', 2, 64)}); err != nil {
				return err
			}
		}
		return nil
	}, func(w io.Writer) error {
		if result.Passed {
			_, err := fmt.Fprintf(w, "Coverage %s meets thresholds (total >= %g%%, file >= %g%%)\n",
				contract.FormatPercentage(result.Percentage), result.MinTotal, result.MinFile)
			return err
		}
		if _, err := fmt.Fprintf(w, "Coverage thresholds not met (%d failures)\n", len(result.Failures)); err != nil {
			return err
		}
		for _, f := range result.Failures {
			target := "project total"
			if f.Scope == schema.ScopeFile {
				target = f.File
			}
			if _, err := fmt.Fprintf(w, "  - %s: %s < %s\n", target,
				contract.FormatPercentage(f.Percentage), contract.FormatPercentage(f.Minimum)); err != nil {
				return err
			}
		}
		return nil
	})
}
