package contract

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/keithrbennett/covloupe/internal/paths"
	"github.com/keithrbennett/covloupe/schema"
)

// Default values for configuration.
const (
	DefaultContextLines = 2
	MaxContextLines     = 100
	DefaultHTTPAddr     = "127.0.0.1:8089"
)

// Config holds the runtime configuration for coverage queries.
// This struct remains the "final, validated" config.
type Config struct {
	Root         string
	Resultset    string
	Output       schema.OutputMode
	OutputFile   string
	SortOrder    schema.SortOrder
	TrackedGlobs []string
	RaiseOnStale bool
	SourceMode   schema.SourceMode
	ContextLines int
	Width        int // Terminal width override (0 = auto-detect)

	LogLevel slog.Level
	LogFile  string

	HistoryBackend   schema.DatabaseBackend
	HistoryDBConnect string // Please use env var as this is plaintext

	HTTPAddr string

	// Thresholds for the validate command, in percent. Zero disables a check.
	MinTotal float64
	MinFile  float64

	UseColors bool // Enable colored labels in table output
}

// ConfigRawInput holds the raw inputs from all sources (flags, env, config file).
// Viper unmarshals into this struct.
type ConfigRawInput struct {
	// This is set manually from positional args, so no tag
	RootArg string

	// --- Fields from rootCmd.PersistentFlags() ---
	Root             string `mapstructure:"root"`
	Resultset        string `mapstructure:"resultset"`
	Output           string `mapstructure:"output"`
	OutputFile       string `mapstructure:"output-file"`
	SortOrder        string `mapstructure:"sort-order"`
	TrackedGlobs     string `mapstructure:"tracked-globs"`
	RaiseOnStale     string `mapstructure:"raise-on-stale"`
	Width            int    `mapstructure:"width"`
	Color            string `mapstructure:"color"`
	LogLevel         string `mapstructure:"log-level"`
	LogFile          string `mapstructure:"log-file"`
	HistoryBackend   string `mapstructure:"history-backend"`
	HistoryDBConnect string `mapstructure:"history-db-connect"`

	// --- Fields from the single-file commands ---
	Source       string `mapstructure:"source"`
	ContextLines int    `mapstructure:"context-lines"`

	// --- Fields from validateCmd.Flags() ---
	MinTotal float64 `mapstructure:"min-total"`
	MinFile  float64 `mapstructure:"min-file"`

	// --- Fields from mcpCmd.Flags() ---
	HTTPAddr string `mapstructure:"http"`
}

// Clone returns a deep copy of the Config struct.
func (c *Config) Clone() *Config {
	clone := *c
	if c.TrackedGlobs != nil {
		clone.TrackedGlobs = make([]string, len(c.TrackedGlobs))
		copy(clone.TrackedGlobs, c.TrackedGlobs)
	}
	return &clone
}

// ProcessAndValidate performs all parsing and validation on the raw inputs
// and updates the final Config struct.
func ProcessAndValidate(cfg *Config, input *ConfigRawInput) error {
	if err := validateSimpleInputs(cfg, input); err != nil {
		return err
	}
	if err := validateBackendConfig(cfg, input); err != nil {
		return err
	}
	if err := resolveRoot(cfg, input); err != nil {
		return err
	}
	return nil
}

// ValidateDatabaseConnectionString validates the format of database connection strings
// for MySQL and PostgreSQL backends.
func ValidateDatabaseConnectionString(backend schema.DatabaseBackend, connStr string) error {
	switch backend {
	case schema.SQLiteBackend, schema.NoneBackend:
		return nil
	case schema.MySQLBackend:
		if connStr == "" {
			return fmt.Errorf("history-db-connect is required when using %s backend", backend)
		}
		if !strings.Contains(connStr, "@tcp(") {
			return fmt.Errorf("MySQL connection string must contain '@tcp(' for host:port specification")
		}
		if !strings.Contains(connStr, "/") {
			return fmt.Errorf("MySQL connection string must contain '/' followed by database name")
		}
	case schema.PostgreSQLBackend:
		if connStr == "" {
			return fmt.Errorf("history-db-connect is required when using %s backend", backend)
		}
		if !strings.Contains(connStr, "host=") {
			return fmt.Errorf("PostgreSQL connection string must contain 'host=' parameter")
		}
		if !strings.Contains(connStr, "dbname=") {
			return fmt.Errorf("PostgreSQL connection string must contain 'dbname=' parameter")
		}
	}
	return nil
}

// ParseDatabaseBackend validates a backend name.
func ParseDatabaseBackend(s string) (schema.DatabaseBackend, error) {
	backend := schema.DatabaseBackend(strings.ToLower(strings.TrimSpace(s)))
	if backend == "" {
		return schema.SQLiteBackend, nil
	}
	if _, ok := schema.ValidDatabaseBackends[backend]; !ok {
		return "", fmt.Errorf("invalid history backend '%s'. must be sqlite, mysql, postgresql, none", s)
	}
	return backend, nil
}

// validateBackendConfig validates the history backend configuration.
func validateBackendConfig(cfg *Config, input *ConfigRawInput) error {
	backend, err := ParseDatabaseBackend(input.HistoryBackend)
	if err != nil {
		return err
	}
	cfg.HistoryBackend = backend
	cfg.HistoryDBConnect = input.HistoryDBConnect
	return ValidateDatabaseConnectionString(cfg.HistoryBackend, cfg.HistoryDBConnect)
}

// validateSimpleInputs processes and validates all non-path related fields.
func validateSimpleInputs(cfg *Config, input *ConfigRawInput) error {
	// --- 0. Transfer simple non-validated fields from input -> cfg ---
	cfg.Resultset = strings.TrimSpace(input.Resultset)
	cfg.OutputFile = input.OutputFile
	cfg.Width = input.Width
	cfg.LogFile = input.LogFile
	cfg.HTTPAddr = input.HTTPAddr
	cfg.TrackedGlobs = paths.SplitPatterns(input.TrackedGlobs)
	cfg.LogLevel = LevelFromString(input.LogLevel)

	colors, err := ParseBoolString(defaultString(input.Color, "yes"))
	if err != nil {
		return fmt.Errorf("invalid --color value: %w", err)
	}
	cfg.UseColors = colors

	raise, err := ParseBoolString(defaultString(input.RaiseOnStale, "no"))
	if err != nil {
		return &schema.ConfigurationError{Message: fmt.Sprintf("invalid --raise-on-stale value: %v", err)}
	}
	cfg.RaiseOnStale = raise

	// --- 1. Output Validation ---
	cfg.Output = schema.OutputMode(strings.ToLower(defaultString(input.Output, string(schema.TableOut))))
	if _, ok := schema.ValidOutputModes[cfg.Output]; !ok {
		return fmt.Errorf("invalid output format '%s'. must be table, json, yaml, csv", input.Output)
	}

	// --- 2. Sort Order Validation ---
	order, err := ParseSortOrder(input.SortOrder)
	if err != nil {
		return err
	}
	cfg.SortOrder = order

	// --- 3. Source View Validation ---
	cfg.SourceMode = schema.SourceMode(strings.ToLower(defaultString(input.Source, string(schema.SourceOff))))
	if _, ok := schema.ValidSourceModes[cfg.SourceMode]; !ok {
		return fmt.Errorf("invalid source mode '%s'. must be off, full, uncovered", input.Source)
	}
	if input.ContextLines < 0 || input.ContextLines > MaxContextLines {
		return fmt.Errorf("context-lines must be between 0 and %d (received %d)", MaxContextLines, input.ContextLines)
	}
	cfg.ContextLines = input.ContextLines

	// --- 4. Threshold Validation ---
	thresholds := []struct {
		name  string
		value float64
	}{{"min-total", input.MinTotal}, {"min-file", input.MinFile}}
	for _, th := range thresholds {
		if th.value < 0 || th.value > 100 {
			return fmt.Errorf("%s must be between 0 and 100 (received %g)", th.name, th.value)
		}
	}
	cfg.MinTotal = input.MinTotal
	cfg.MinFile = input.MinFile

	if cfg.Width < 0 {
		return fmt.Errorf("width must not be negative (received %d)", cfg.Width)
	}
	return nil
}

// resolveRoot picks the project root from the positional argument or --root
// and makes it absolute.
func resolveRoot(cfg *Config, input *ConfigRawInput) error {
	root := defaultString(input.RootArg, defaultString(input.Root, "."))
	abs := paths.Expand(root, "")

	info, err := os.Stat(abs)
	if err != nil {
		return &schema.ConfigurationError{Message: fmt.Sprintf("project root %q does not exist", root)}
	}
	if !info.IsDir() {
		return &schema.ConfigurationError{Message: fmt.Sprintf("project root %q is not a directory", root)}
	}
	cfg.Root = abs
	return nil
}

// ParseSortOrder accepts ascending/descending and their a/asc/d/desc
// abbreviations. Blank input gives descending.
func ParseSortOrder(s string) (schema.SortOrder, error) {
	order := schema.SortOrder(strings.ToLower(defaultString(s, string(schema.Descending))))
	switch order {
	case "a", "asc":
		order = schema.Ascending
	case "d", "desc":
		order = schema.Descending
	}
	if _, ok := schema.ValidSortOrders[order]; !ok {
		return "", fmt.Errorf("invalid sort order '%s'. must be ascending or descending", s)
	}
	return order, nil
}

func defaultString(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return strings.TrimSpace(s)
}
