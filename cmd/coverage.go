package cmd

import (
	"os"

	"github.com/keithrbennett/covloupe/core"
	"github.com/keithrbennett/covloupe/internal/outwriter"
	"github.com/keithrbennett/covloupe/schema"
	"github.com/spf13/cobra"
)

// listCmd shows per-file coverage for the whole project.
var listCmd = &cobra.Command{
	Use:   "list [root]",
	Short: "List coverage for every file in the project.",
	Long: `Print a table of every file in the coverage data with its covered and
total line counts, percentage and staleness verdict.

Files that should have coverage but do not can be reported with --tracked-globs.

Examples:
  # Worst-covered files first
  covloupe list --sort-order ascending

  # Report tracked files missing from coverage
  covloupe list --tracked-globs "lib/**/*.rb,app/**/*.rb"

  # Export to CSV
  covloupe list --output csv --output-file coverage.csv`,
	Args:    cobra.MaximumNArgs(1),
	PreRunE: rootedSetup,
	Run: func(_ *cobra.Command, _ []string) {
		m, err := newModel()
		if err != nil {
			fatal("Cannot load coverage", err)
		}
		list, err := m.List(cfg.SortOrder)
		if err != nil {
			fatal("Cannot list coverage", err)
		}
		if err := outwriter.NewOutWriter(m.Relativize).WriteList(*list, cfg); err != nil {
			fatal("Cannot write list", err)
		}
	},
}

// totalsCmd shows aggregate project coverage.
var totalsCmd = &cobra.Command{
	Use:   "totals [root]",
	Short: "Show aggregate line and file coverage for the project.",
	Long: `Sum covered and total lines over every file in the coverage data and report
how many files are ok, stale, skipped or missing.

Examples:
  covloupe totals
  covloupe totals --output json`,
	Args:    cobra.MaximumNArgs(1),
	PreRunE: rootedSetup,
	Run: func(_ *cobra.Command, _ []string) {
		m, err := newModel()
		if err != nil {
			fatal("Cannot load coverage", err)
		}
		totals, err := m.Totals()
		if err != nil {
			fatal("Cannot compute totals", err)
		}
		if err := outwriter.NewOutWriter(m.Relativize).WriteTotals(*totals, cfg); err != nil {
			fatal("Cannot write totals", err)
		}
	},
}

// summaryCmd shows coverage for one file.
var summaryCmd = &cobra.Command{
	Use:   "summary <file>",
	Short: "Show covered, total and percentage for one file.",
	Example: `  covloupe summary lib/foo.rb
  covloupe summary --root ../app lib/foo.rb --output json`,
	Args:    cobra.ExactArgs(1),
	PreRunE: fileSetup,
	Run: func(_ *cobra.Command, args []string) {
		m, err := newModel()
		if err != nil {
			fatal("Cannot load coverage", err)
		}
		v, err := m.Summary(args[0])
		if err != nil {
			fatal("Cannot summarize "+args[0], err)
		}
		if err := outwriter.NewOutWriter(m.Relativize).WriteSummary(*v, cfg); err != nil {
			fatal("Cannot write summary", err)
		}
	},
}

// rawCmd shows the recorded hits array for one file, or for every file when
// no file is named.
var rawCmd = &cobra.Command{
	Use:   "raw [file]",
	Short: "Show the raw per-line hit counts recorded for one file or all files.",
	Example: `  covloupe raw lib/foo.rb --output yaml
  covloupe raw --output json`,
	Args:    cobra.MaximumNArgs(1),
	PreRunE: fileSetup,
	Run: func(_ *cobra.Command, args []string) {
		m, err := newModel()
		if err != nil {
			fatal("Cannot load coverage", err)
		}
		if len(args) == 0 {
			all, err := m.ListAll()
			if err != nil {
				fatal("Cannot read coverage", err)
			}
			if err := outwriter.NewOutWriter(m.Relativize).WriteRawAll(all, cfg); err != nil {
				fatal("Cannot write raw coverage", err)
			}
			return
		}
		v, err := m.Raw(args[0])
		if err != nil {
			fatal("Cannot read coverage for "+args[0], err)
		}
		if err := outwriter.NewOutWriter(m.Relativize).WriteRaw(*v, cfg); err != nil {
			fatal("Cannot write raw coverage", err)
		}
	},
}

// uncoveredCmd shows the lines of one file that never ran.
var uncoveredCmd = &cobra.Command{
	Use:   "uncovered <file>",
	Short: "List the lines of one file that never ran.",
	Example: `  covloupe uncovered lib/foo.rb
  covloupe uncovered lib/foo.rb --source uncovered --context-lines 3`,
	Args:    cobra.ExactArgs(1),
	PreRunE: fileSetup,
	Run: func(_ *cobra.Command, args []string) {
		m, err := newModel()
		if err != nil {
			fatal("Cannot load coverage", err)
		}
		v, err := m.Uncovered(args[0])
		if err != nil {
			fatal("Cannot read coverage for "+args[0], err)
		}
		if err := outwriter.NewOutWriter(m.Relativize).WriteUncovered(*v, sourceRows(m, args[0]), cfg); err != nil {
			fatal("Cannot write uncovered lines", err)
		}
	},
}

// detailedCmd shows every executable line of one file.
var detailedCmd = &cobra.Command{
	Use:     "detailed <file>",
	Short:   "Show every executable line of one file with its hit count.",
	Example: `  covloupe detailed lib/foo.rb --source full`,
	Args:    cobra.ExactArgs(1),
	PreRunE: fileSetup,
	Run: func(_ *cobra.Command, args []string) {
		m, err := newModel()
		if err != nil {
			fatal("Cannot load coverage", err)
		}
		v, err := m.Detailed(args[0])
		if err != nil {
			fatal("Cannot read coverage for "+args[0], err)
		}
		if err := outwriter.NewOutWriter(m.Relativize).WriteDetailed(*v, sourceRows(m, args[0]), cfg); err != nil {
			fatal("Cannot write detailed coverage", err)
		}
	},
}

// validateCmd gates CI on coverage thresholds.
var validateCmd = &cobra.Command{
	Use:   "validate [root]",
	Short: "Fail when coverage is below the given thresholds.",
	Long: `Check the project total and every file against minimum percentages and exit
with a non-zero status when any check fails. A threshold of 0 disables it.
Files without executable lines never fail.

Examples:
  covloupe validate --min-total 90
  covloupe validate --min-total 85 --min-file 60 --output json`,
	Args:    cobra.MaximumNArgs(1),
	PreRunE: rootedSetup,
	Run: func(_ *cobra.Command, _ []string) {
		m, err := newModel()
		if err != nil {
			fatal("Cannot load coverage", err)
		}
		result, err := m.Validate(cfg.MinTotal, cfg.MinFile)
		if err != nil {
			fatal("Cannot validate coverage", err)
		}
		if err := outwriter.NewOutWriter(m.Relativize).WriteValidation(result, cfg); err != nil {
			fatal("Cannot write validation result", err)
		}
		if !result.Passed {
			os.Exit(1)
		}
	},
}

// sourceRows builds the source view for path. A failure yields an empty view,
// which prints as unavailable.
func sourceRows(m *core.Model, path string) []schema.SourceLine {
	if cfg.SourceMode == schema.SourceOff {
		return nil
	}
	rows, err := m.Source(path, cfg.SourceMode, cfg.ContextLines)
	if err != nil {
		logger.Debug("source view unavailable", "path", path, "error", err)
		return []schema.SourceLine{}
	}
	if rows == nil {
		return []schema.SourceLine{}
	}
	return rows
}
