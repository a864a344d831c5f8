package outwriter

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/keithrbennett/covloupe/schema"
)

// maxListedFiles caps each file list in a staleness report.
const maxListedFiles = 10

// FormatStaleError renders the error message of err followed by a staleness
// report when err carries one. Other errors render as their message.
func FormatStaleError(err error) string {
	var fileErr *schema.FileStaleError
	var projErr *schema.ProjectStaleError
	switch {
	case errors.As(err, &fileErr):
		return err.Error() + formatFileDetails(fileErr)
	case errors.As(err, &projErr):
		return err.Error() + formatProjectDetails(projErr)
	case err == nil:
		return ""
	default:
		return err.Error()
	}
}

func formatFileDetails(e *schema.FileStaleError) string {
	var b strings.Builder
	fileUTC, fileLocal := "not found", "n/a"
	if !e.FileMtime.IsZero() {
		fileUTC, fileLocal = bothZones(e.FileMtime)
	}
	covUTC, covLocal := epochBothZones(e.CoverageTimestamp)

	fmt.Fprintf(&b, "\n\nFile     - time: %s (local %s), lines: %d", fileUTC, fileLocal, e.SourceLines)
	fmt.Fprintf(&b, "\nCoverage - time: %s (local %s), lines: %d", covUTC, covLocal, e.CoverageLines)
	if !e.FileMtime.IsZero() && e.CoverageTimestamp > 0 {
		fmt.Fprintf(&b, "\nDelta    - file is %s newer than coverage", formatDelta(e.FileMtime.Unix()-e.CoverageTimestamp))
	}
	if e.ResultsetPath != "" {
		fmt.Fprintf(&b, "\nResultset - %s", e.ResultsetPath)
	}
	return b.String()
}

func formatProjectDetails(e *schema.ProjectStaleError) string {
	var b strings.Builder
	covUTC, covLocal := epochBothZones(e.CoverageTimestamp)
	fmt.Fprintf(&b, "\nCoverage  - time: %s (local %s)", covUTC, covLocal)
	writeFileList(&b, e.NewerFiles, "Newer files", "")
	writeFileList(&b, e.MissingFiles, "Missing files", "new in project, not in coverage")
	writeFileList(&b, e.DeletedFiles, "Coverage-only files", "deleted or moved in project")
	writeFileList(&b, e.LengthMismatchFiles, "Line count mismatches", "")
	writeFileList(&b, e.UnreadableFiles, "Unreadable files", "permission denied or read errors")
	if e.ResultsetPath != "" {
		fmt.Fprintf(&b, "\nResultset - %s", e.ResultsetPath)
	}
	return b.String()
}

func writeFileList(b *strings.Builder, files []string, label, description string) {
	if len(files) == 0 {
		return
	}
	if description != "" {
		fmt.Fprintf(b, "\n%s (%s, %d):", label, description, len(files))
	} else {
		fmt.Fprintf(b, "\n%s (%d):", label, len(files))
	}
	for _, f := range files[:min(len(files), maxListedFiles)] {
		fmt.Fprintf(b, "\n  - %s", f)
	}
	if len(files) > maxListedFiles {
		b.WriteString("\n  ...")
	}
}

func bothZones(t time.Time) (utc, local string) {
	return t.UTC().Format(time.RFC3339), t.Local().Format(time.RFC3339)
}

func epochBothZones(epoch int64) (utc, local string) {
	if epoch <= 0 {
		return "not found", "n/a"
	}
	return bothZones(time.Unix(epoch, 0))
}

func formatDelta(seconds int64) string {
	if seconds < 0 {
		return fmt.Sprintf("-%ds", -seconds)
	}
	return fmt.Sprintf("+%ds", seconds)
}
