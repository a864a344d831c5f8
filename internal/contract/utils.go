package contract

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"

	"github.com/keithrbennett/covloupe/schema"
)

// Color variables for console output.
var (
	ErrorColor   = color.New(color.FgRed, color.Bold) // errorColor represents standard danger.
	WarnColor    = color.New(color.FgYellow)          // warnColor represents standard caution, not bold.
	GoodColor    = color.New(color.FgGreen)           // goodColor represents a healthy value.
	InfoColor    = color.New(color.FgCyan)            // infoColor represents informational / low-priority signal.
	MissingColor = color.New(color.FgMagenta, color.Bold)
)

// Coverage percentage bands used for coloring.
const (
	GoodPercentage = 90.0
	FairPercentage = 75.0
)

// GetColorStaleLabel returns a colored staleness label for console output (table).
// Files that are not stale get an empty label.
func GetColorStaleLabel(status schema.StaleStatus) string {
	text := status.Label()
	switch status {
	case schema.StaleError:
		return ErrorColor.Sprint(text)
	case schema.StaleMissing:
		return MissingColor.Sprint(text)
	case schema.StaleNewer, schema.StaleLengthMismatch:
		return WarnColor.Sprint(text)
	default:
		return text
	}
}

// GetColorPercentage formats a percentage and colors it by band.
func GetColorPercentage(pct float64) string {
	text := FormatPercentage(pct)
	switch {
	case pct >= GoodPercentage:
		return GoodColor.Sprint(text)
	case pct >= FairPercentage:
		return WarnColor.Sprint(text)
	default:
		return ErrorColor.Sprint(text)
	}
}

// FormatPercentage renders a percentage with two decimals and a percent sign.
func FormatPercentage(pct float64) string {
	return fmt.Sprintf("%.2f%%", pct)
}

// SelectOutputFile returns the appropriate file handle for output, based on the provided
// file path. An empty path means os.Stdout.
func SelectOutputFile(filePath string) (*os.File, error) {
	if filePath == "" {
		return os.Stdout, nil
	}
	return os.Create(filePath)
}

// LogFatal logs an error and exits the program.
func LogFatal(msg string, err error) {
	_, _ = fmt.Fprintf(os.Stderr, "%s %s: %v\n", ErrorColor.Sprint("Fatal"), msg, err)
	if hint := ErrorHint(err); hint != "" {
		_, _ = fmt.Fprintf(os.Stderr, "%s %s\n", InfoColor.Sprint("Hint"), hint)
	}
	os.Exit(1)
}

// LogWarn logs a warning message to stderr.
func LogWarn(msg string, err error) {
	_, _ = fmt.Fprintf(os.Stderr, "%s %s: %v\n", WarnColor.Sprint("Warn"), msg, err)
}

// ErrorHint returns remediation text for a domain error, or "" when there is none.
func ErrorHint(err error) string {
	var staleErr *schema.FileStaleError
	var projErr *schema.ProjectStaleError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &staleErr), errors.As(err, &projErr):
		return "re-run the test suite to refresh coverage, or set --raise-on-stale=no to report staleness instead"
	case errors.Is(err, schema.ErrAmbiguous) && errors.Is(err, schema.ErrConfiguration):
		return "prefix the path with ./ or pass an absolute path"
	case errors.Is(err, schema.ErrAmbiguous):
		return "the resultset has several entries for this file; regenerate coverage from a single checkout"
	case errors.Is(err, schema.ErrNotFound):
		return "run the test suite with SimpleCov enabled, or point --resultset at the .resultset.json file"
	case errors.Is(err, schema.ErrCorruptData):
		return "the resultset is not valid SimpleCov output; delete it and re-run the test suite"
	case errors.Is(err, schema.ErrConfiguration):
		return "check the flags, COVLOUPE_* environment variables and .covloupe.yaml"
	default:
		return ""
	}
}

// GetHistoryDBFilePath returns the path to the SQLite DB file for history storage.
func GetHistoryDBFilePath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ".covloupe_history.db"
	}
	return filepath.Join(homeDir, ".covloupe_history.db")
}

// TruncatePath truncates a file path to a maximum width with ellipsis prefix.
// Requires maxWidth > 3 to ensure there's space for both the "..." prefix and at least one character of content.
func TruncatePath(path string, maxWidth int) string {
	runes := []rune(path)
	if len(runes) > maxWidth && maxWidth > 3 {
		return "..." + string(runes[len(runes)-maxWidth+3:])
	}
	return path
}

// ParseBoolString parses a string value into a boolean.
// Accepts "yes", "no", "true", "false", "1", "0" (case-insensitive).
// Returns an error for invalid values.
func ParseBoolString(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yes", "true", "1", "on":
		return true, nil
	case "no", "false", "0", "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid boolean string: %s (expected yes/no/true/false/1/0)", s)
	}
}
