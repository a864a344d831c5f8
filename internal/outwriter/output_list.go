package outwriter

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/keithrbennett/covloupe/internal/contract"
	"github.com/keithrbennett/covloupe/schema"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
)

// NoCoverageMessage is printed instead of an empty coverage table.
const NoCoverageMessage = "No coverage data found"

// StaleLegend explains the labels of the Stale column.
const StaleLegend = "Staleness: error, missing, newer, length_mismatch"

var listCSVHeader = []string{"file", "percentage", "covered", "total", "stale"}

// PrintList outputs the project listing, dispatching based on the output format configured.
func PrintList(list schema.ListResult, cfg *contract.Config) error {
	if err := dispatch(cfg, list, listCSVHeader, func(w *csv.Writer) error {
		return writeCSVRows(w, list.Files)
	}, func(w io.Writer) error {
		return writeCoverageTable(w, list.Files, cfg)
	}); err != nil {
		return fmt.Errorf("error writing list output: %w", err)
	}
	return nil
}

// FormatCoverageTable renders the coverage table for rows as text.
func FormatCoverageTable(rows []schema.FileRow, cfg *contract.Config) (string, error) {
	var b strings.Builder
	if err := writeCoverageTable(&b, rows, cfg); err != nil {
		return "", err
	}
	return b.String(), nil
}

// writeCoverageTable renders the File / % / Covered / Total / Stale table with
// its footer and, when any row is stale, the legend.
func writeCoverageTable(w io.Writer, rows []schema.FileRow, cfg *contract.Config) error {
	if len(rows) == 0 {
		_, err := fmt.Fprintln(w, NoCoverageMessage)
		return err
	}

	table := tablewriter.NewWriter(w)
	table.Header([]string{"File", "%", "Covered", "Total", "Stale"})
	table.Configure(func(c *tablewriter.Config) {
		c.Row.Alignment.PerColumn = []tw.Align{tw.AlignLeft, tw.AlignRight, tw.AlignRight, tw.AlignRight, tw.AlignCenter}
	})

	pathWidth := maxTablePathWidth(cfg)
	staleCount := 0
	data := make([][]string, 0, len(rows))
	for _, r := range rows {
		if r.Stale.IsStale() {
			staleCount++
		}
		data = append(data, []string{
			contract.TruncatePath(r.File, pathWidth),
			percentageCell(r.Percentage, cfg),
			strconv.Itoa(r.Covered),
			strconv.Itoa(r.Total),
			staleCell(r.Stale, cfg),
		})
	}

	if err := table.Bulk(data); err != nil {
		return err
	}
	if err := table.Render(); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "Files: total %d, ok %d, stale %d\n", len(rows), len(rows)-staleCount, staleCount); err != nil {
		return err
	}
	if staleCount > 0 {
		if _, err := fmt.Fprintln(w, StaleLegend); err != nil {
			return err
		}
	}
	return nil
}

func writeCSVRows(w *csv.Writer, rows []schema.FileRow) error {
	for _, r := range rows {
		rec := []string{
			r.File,
			strconv.FormatFloat(r.Percentage, 'f', 2, 64),
			strconv.Itoa(r.Covered),
			strconv.Itoa(r.Total),
			string(r.Stale),
		}
		if err := w.Write(rec); err != nil {
			return fmt.Errorf("failed to write CSV record: %w", err)
		}
	}
	return nil
}

func percentageCell(pct float64, cfg *contract.Config) string {
	if cfg.UseColors {
		return contract.GetColorPercentage(pct)
	}
	return contract.FormatPercentage(pct)
}

func staleCell(status schema.StaleStatus, cfg *contract.Config) string {
	if cfg.UseColors {
		return contract.GetColorStaleLabel(status)
	}
	return status.Label()
}
