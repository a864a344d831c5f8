package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/keithrbennett/covloupe/core"
	"github.com/keithrbennett/covloupe/internal/contract"
	"github.com/keithrbennett/covloupe/internal/datacache"
	"github.com/keithrbennett/covloupe/internal/iocache"
	"github.com/keithrbennett/covloupe/internal/outwriter"
	"github.com/keithrbennett/covloupe/internal/resultset"
	"github.com/keithrbennett/covloupe/schema"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// All linker flags will be set by goreleaser infra at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// rootCtx is the root context for all operations.
var rootCtx = context.Background()

// cfg will hold the validated, final configuration.
var cfg = &contract.Config{}

// input holds the raw, unvalidated configuration from all sources (file, env, flags).
// Viper will unmarshal into this struct.
var input = &contract.ConfigRawInput{}

// historyManager is the global persistence manager instance.
var historyManager contract.HistoryManager = iocache.Manager

// logger is built from the validated config in sharedSetup.
var logger = contract.NewDiscardLogger()

// logFile is closed by Cleanup.
var logFile *os.File

var (
	snapshotCache     *datacache.Cache
	snapshotBuilder   *resultset.Builder
	snapshotCacheOnce sync.Once
)

// sharedSnapshotCache returns the process-wide coverage cache.
func sharedSnapshotCache() (*datacache.Cache, *resultset.Builder) {
	snapshotCacheOnce.Do(func() {
		snapshotBuilder = resultset.NewBuilder(logger)
		snapshotCache = core.NewSnapshotCache(snapshotBuilder)
	})
	return snapshotCache, snapshotBuilder
}

// rootCmd is the command-line entrypoint for all other commands.
var rootCmd = &cobra.Command{
	Use:                "covloupe",
	Short:              "Inspect SimpleCov coverage data from the command line.",
	Long:               `Covloupe reads SimpleCov .resultset.json files and reports per-file and project coverage, with staleness checks against the source tree.`,
	Version:            version,
	SilenceErrors:      true,
	SilenceUsage:       true,
	DisableSuggestions: true,
	Run: func(cmd *cobra.Command, _ []string) {
		_ = cmd.Help()
	},
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	// Check if a specific config file is provided
	if configFile := viper.GetString("config"); configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		// Set config file name and paths
		viper.SetConfigName(".covloupe") // Name of config file (without extension)
		viper.SetConfigType("yaml")      // We'll use YAML format
		viper.AddConfigPath(".")         // Look in the current directory
		viper.AddConfigPath("$HOME")     // Look in the home directory
	}

	// Set environment variable prefix
	viper.SetEnvPrefix("COVLOUPE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // Read in environment variables that match

	// Set defaults in Viper
	viper.SetDefault("output", schema.TableOut)
	viper.SetDefault("sort-order", schema.Descending)
	viper.SetDefault("raise-on-stale", "no")
	viper.SetDefault("color", "yes")
	viper.SetDefault("log-level", "warn")
	viper.SetDefault("history-backend", schema.SQLiteBackend)
	viper.SetDefault("history-db-connect", "")
	viper.SetDefault("source", schema.SourceOff)
	viper.SetDefault("context-lines", contract.DefaultContextLines)
	viper.SetDefault("http", "")
}

// loadConfigFile reads the config file when present.
func loadConfigFile() error {
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			// Config file was found but another error was produced
			return fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found, which is fine; we'll use defaults/env/flags.
	}
	return nil
}

// sharedSetup unmarshals config and runs validation. rootArg is the
// positional project root, if the command takes one. quietLogs keeps log
// records off stderr.
func sharedSetup(cmd *cobra.Command, rootArg string, quietLogs bool) error {
	// 0. Bind the running command's own flags. Several commands share flag
	// names, so binding happens here rather than in init.
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("error binding %s flags: %w", cmd.Name(), err)
	}

	// 1. Read config file. This merges defaults, file, env, and flags.
	if err := loadConfigFile(); err != nil {
		return err
	}

	// 2. Unmarshal all resolved values from Viper into our raw input struct.
	if err := viper.Unmarshal(input); err != nil {
		return fmt.Errorf("unable to unmarshal config: %w", err)
	}

	// 3. Handle positional arguments (which Viper doesn't do).
	input.RootArg = rootArg

	// 4. Run all validation and complex parsing.
	if err := contract.ProcessAndValidate(cfg, input); err != nil {
		return err
	}

	return setupLogger(quietLogs)
}

// setupLogger builds the logger from cfg. In quiet mode nothing goes to
// stderr and only a configured log file receives records.
func setupLogger(quiet bool) error {
	if cfg.LogFile != "" {
		l, f, err := contract.NewFileLogger(cfg.LogFile, cfg.LogLevel)
		if err != nil {
			return fmt.Errorf("failed to open log file %s: %w", cfg.LogFile, err)
		}
		logger, logFile = l, f
		return nil
	}
	if quiet {
		logger = contract.NewDiscardLogger()
		return nil
	}
	logger = contract.NewLogger(os.Stderr, cfg.LogLevel)
	return nil
}

// rootedSetup uses the optional first positional argument as the project root.
func rootedSetup(cmd *cobra.Command, args []string) error {
	var rootArg string
	if len(args) == 1 {
		rootArg = args[0]
	}
	return sharedSetup(cmd, rootArg, false)
}

// fileSetup is for commands whose positional argument is a file, not a root.
func fileSetup(cmd *cobra.Command, _ []string) error {
	return sharedSetup(cmd, "", false)
}

// newModel builds a Model from the validated config and the shared cache.
func newModel() (*core.Model, error) {
	cache, builder := sharedSnapshotCache()
	return core.NewModel(core.ModelOptions{
		Root:         cfg.Root,
		Resultset:    cfg.Resultset,
		RaiseOnStale: cfg.RaiseOnStale,
		TrackedGlobs: cfg.TrackedGlobs,
		Logger:       logger,
		Cache:        cache,
		Builder:      builder,
	})
}

// detailedError renders an error with its staleness report while keeping
// the original error reachable for hints.
type detailedError struct{ err error }

func (e detailedError) Error() string { return outwriter.FormatStaleError(e.err) }
func (e detailedError) Unwrap() error { return e.err }

// fatal reports err with any staleness details and exits.
func fatal(msg string, err error) {
	logger.Debug(msg, "kind", schema.ErrorKind(err), "error", err)
	contract.LogFatal(msg, detailedError{err: err})
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// SetHistoryManager sets the global history manager.
func SetHistoryManager(mgr contract.HistoryManager) {
	historyManager = mgr
}

// Cleanup releases resources opened during setup.
func Cleanup() {
	iocache.CloseHistory()
	if logFile != nil {
		if err := logFile.Close(); err != nil {
			contract.LogWarn("Cannot close log file", err)
		}
		logFile = nil
	}
}
