package outwriter

import (
	"encoding/csv"
	"fmt"
	"io"
	"maps"
	"slices"
	"strconv"

	"github.com/keithrbennett/covloupe/internal/contract"
	"github.com/keithrbennett/covloupe/schema"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
)

// AllCoveredMessage replaces the uncovered-lines table when there is nothing to show.
const AllCoveredMessage = "All lines covered!"

// PrintSummary outputs the covered/total summary of one file.
func PrintSummary(v schema.FileSummary, cfg *contract.Config) error {
	row := schema.FileRow{
		File:       v.File,
		Covered:    v.Summary.Covered,
		Total:      v.Summary.Total,
		Percentage: v.Summary.Percentage,
		Stale:      v.Stale,
	}
	return dispatch(cfg, v, listCSVHeader, func(w *csv.Writer) error {
		return writeCSVRows(w, []schema.FileRow{row})
	}, func(w io.Writer) error {
		return writeCoverageTable(w, []schema.FileRow{row}, cfg)
	})
}

// PrintRaw outputs the raw per-line hit counts of one file.
func PrintRaw(v schema.FileCoverage, cfg *contract.Config) error {
	return dispatch(cfg, v, []string{"line", "hits"}, func(w *csv.Writer) error {
		for i, h := range v.Lines {
			if err := w.Write([]string{strconv.Itoa(i + 1), hitsText(h, "")}); err != nil {
				return err
			}
		}
		return nil
	}, func(w io.Writer) error {
		if err := writeFileHeader(w, v.File, nil, v.Stale); err != nil {
			return err
		}
		data := make([][]string, len(v.Lines))
		for i, h := range v.Lines {
			data[i] = []string{strconv.Itoa(i + 1), hitsText(h, "nil")}
		}
		return renderSimpleTable(w, []string{"Line", "Coverage"}, data, []tw.Align{tw.AlignRight, tw.AlignRight})
	})
}

// PrintRawAll outputs the raw line hits of every coverage entry. The table
// form lists one row per file with its line counts.
func PrintRawAll(all map[string]schema.LineHits, cfg *contract.Config) error {
	files := slices.Sorted(maps.Keys(all))
	return dispatch(cfg, all, []string{"file", "line", "hits"}, func(w *csv.Writer) error {
		for _, f := range files {
			for i, h := range all[f] {
				if err := w.Write([]string{f, strconv.Itoa(i + 1), hitsText(h, "")}); err != nil {
					return err
				}
			}
		}
		return nil
	}, func(w io.Writer) error {
		if len(files) == 0 {
			_, err := fmt.Fprintln(w, NoCoverageMessage)
			return err
		}
		data := make([][]string, len(files))
		for i, f := range files {
			s := tallyLines(all[f])
			data[i] = []string{f, strconv.Itoa(len(all[f])), strconv.Itoa(s.total), strconv.Itoa(s.covered)}
		}
		return renderSimpleTable(w, []string{"File", "Lines", "Executable", "Covered"}, data,
			[]tw.Align{tw.AlignLeft, tw.AlignRight, tw.AlignRight, tw.AlignRight})
	})
}

type lineCounts struct{ total, covered int }

func tallyLines(lines schema.LineHits) lineCounts {
	var c lineCounts
	for _, h := range lines {
		if h == nil {
			continue
		}
		c.total++
		if *h > 0 {
			c.covered++
		}
	}
	return c
}

// uncoveredPayload is the structured form of the uncovered view.
type uncoveredPayload struct {
	schema.FileUncovered `yaml:",inline"`
	Source               []schema.SourceLine `json:"source,omitempty" yaml:"source,omitempty"`
}

// PrintUncovered outputs the uncovered line numbers of one file, followed by
// the source view when source rows are given.
func PrintUncovered(v schema.FileUncovered, source []schema.SourceLine, cfg *contract.Config) error {
	payload := uncoveredPayload{FileUncovered: v, Source: source}
	return dispatch(cfg, payload, []string{"line"}, func(w *csv.Writer) error {
		for _, line := range v.Uncovered {
			if err := w.Write([]string{strconv.Itoa(line)}); err != nil {
				return err
			}
		}
		return nil
	}, func(w io.Writer) error {
		if err := writeFileHeader(w, v.File, &v.Summary, v.Stale); err != nil {
			return err
		}
		if len(v.Uncovered) == 0 {
			if _, err := fmt.Fprintln(w, AllCoveredMessage); err != nil {
				return err
			}
		} else {
			data := make([][]string, len(v.Uncovered))
			for i, line := range v.Uncovered {
				data[i] = []string{strconv.Itoa(line)}
			}
			if err := renderSimpleTable(w, []string{"Line"}, data, []tw.Align{tw.AlignRight}); err != nil {
				return err
			}
		}
		return writeSourceSection(w, source, cfg)
	})
}

// detailedPayload is the structured form of the detailed view.
type detailedPayload struct {
	schema.FileDetailed `yaml:",inline"`
	Source              []schema.SourceLine `json:"source,omitempty" yaml:"source,omitempty"`
}

// PrintDetailed outputs hits and covered flags for every executable line of
// one file, followed by the source view when source rows are given.
func PrintDetailed(v schema.FileDetailed, source []schema.SourceLine, cfg *contract.Config) error {
	payload := detailedPayload{FileDetailed: v, Source: source}
	return dispatch(cfg, payload, []string{"line", "hits", "covered"}, func(w *csv.Writer) error {
		for _, d := range v.Lines {
			if err := w.Write([]string{strconv.Itoa(d.Line), strconv.Itoa(d.Hits), strconv.FormatBool(d.Covered)}); err != nil {
				return err
			}
		}
		return nil
	}, func(w io.Writer) error {
		if err := writeFileHeader(w, v.File, &v.Summary, v.Stale); err != nil {
			return err
		}
		data := make([][]string, len(v.Lines))
		for i, d := range v.Lines {
			covered := "no"
			if d.Covered {
				covered = "yes"
			}
			data[i] = []string{strconv.Itoa(d.Line), strconv.Itoa(d.Hits), covered}
		}
		if err := renderSimpleTable(w, []string{"Line", "Hits", "Covered"}, data,
			[]tw.Align{tw.AlignRight, tw.AlignRight, tw.AlignCenter}); err != nil {
			return err
		}
		return writeSourceSection(w, source, cfg)
	})
}

// writeFileHeader prints the "File:" block shared by the single-file views.
func writeFileHeader(w io.Writer, file string, summary *schema.CoverageSummary, stale schema.StaleStatus) error {
	if _, err := fmt.Fprintf(w, "File: %s\n", file); err != nil {
		return err
	}
	if summary != nil {
		if _, err := fmt.Fprintf(w, "Coverage: %s (%d/%d lines)\n",
			contract.FormatPercentage(summary.Percentage), summary.Covered, summary.Total); err != nil {
			return err
		}
	}
	if stale.IsStale() {
		if _, err := fmt.Fprintf(w, "Stale: %s\n", stale); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w)
	return err
}

func renderSimpleTable(w io.Writer, header []string, data [][]string, align []tw.Align) error {
	table := tablewriter.NewWriter(w)
	table.Header(header)
	table.Configure(func(c *tablewriter.Config) {
		c.Row.Alignment.PerColumn = align
	})
	if err := table.Bulk(data); err != nil {
		return err
	}
	return table.Render()
}

func hitsText(h *int, nilText string) string {
	if h == nil {
		return nilText
	}
	return strconv.Itoa(*h)
}
