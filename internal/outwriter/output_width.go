package outwriter

import (
	"os"

	"github.com/keithrbennett/covloupe/internal/contract"
	"golang.org/x/term"
)

const (
	defaultTermWidth = 80
	// %, Covered, Total and Stale columns plus borders and padding.
	fixedColumnsWidth = 61
	minPathWidth      = 20
	maxPathWidth      = 100
)

// terminalWidth returns the --width override, the detected stdout width, or
// defaultTermWidth when stdout is not a terminal.
func terminalWidth(cfg *contract.Config) int {
	if cfg.Width > 0 {
		return cfg.Width
	}
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		return w
	}
	return defaultTermWidth
}

// maxTablePathWidth is the room left for the File column of the coverage table.
func maxTablePathWidth(cfg *contract.Config) int {
	return min(max(terminalWidth(cfg)-fixedColumnsWidth, minPathWidth), maxPathWidth)
}
