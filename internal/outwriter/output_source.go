package outwriter

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/keithrbennett/covloupe/internal/contract"
	"github.com/keithrbennett/covloupe/schema"
)

// SourceUnavailable is printed when source rows could not be built.
const SourceUnavailable = "[source not available]"

var dimColor = color.New(color.Faint)

// writeSourceSection prints the source view after a single-file table.
// A nil slice means the view is off; an empty one means it failed.
func writeSourceSection(w io.Writer, rows []schema.SourceLine, cfg *contract.Config) error {
	if rows == nil || cfg.SourceMode == schema.SourceOff {
		return nil
	}
	if _, err := fmt.Fprintln(w); err != nil {
		return err
	}
	_, err := fmt.Fprintln(w, FormatSource(rows, cfg.UseColors))
	return err
}

// FormatSource renders source rows with line numbers and coverage markers.
func FormatSource(rows []schema.SourceLine, useColors bool) string {
	if len(rows) == 0 {
		return SourceUnavailable
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%6s  %2s | %s\n", "Line", " ", "Source")
	fmt.Fprintf(&b, "%6s  %2s-+-%s\n", "------", "--", strings.Repeat("-", 60))
	for i, r := range rows {
		fmt.Fprintf(&b, "%6d  %2s | %s", r.Line, sourceMarker(r.Covered, useColors), r.Code)
		if i < len(rows)-1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

func sourceMarker(covered *bool, useColors bool) string {
	var text string
	var c *color.Color
	switch {
	case covered == nil:
		text, c = " ", dimColor
	case *covered:
		text, c = "✓", contract.GoodColor
	default:
		text, c = "·", contract.ErrorColor
	}
	if !useColors {
		return text
	}
	return c.Sprint(text)
}
