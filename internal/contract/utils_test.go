package contract

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keithrbennett/covloupe/schema"
)

func TestGetColorStaleLabel(t *testing.T) {
	tests := []struct {
		status schema.StaleStatus
		label  string
	}{
		{schema.StaleOK, ""},
		{schema.StaleError, "error"},
		{schema.StaleMissing, "missing"},
		{schema.StaleNewer, "newer"},
		{schema.StaleLengthMismatch, "length_mismatch"},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			assert.Contains(t, GetColorStaleLabel(tt.status), tt.label)
		})
	}
}

func TestFormatPercentage(t *testing.T) {
	assert.Equal(t, "100.00%", FormatPercentage(100))
	assert.Equal(t, "33.33%", FormatPercentage(33.333))
	assert.Contains(t, GetColorPercentage(95), "95.00%")
	assert.Contains(t, GetColorPercentage(10), "10.00%")
}

func TestSelectOutputFile(t *testing.T) {
	t.Run("empty path returns stdout", func(t *testing.T) {
		file, err := SelectOutputFile("")
		require.NoError(t, err)
		assert.Equal(t, os.Stdout, file)
	})

	t.Run("valid path creates file", func(t *testing.T) {
		tempFile := filepath.Join(t.TempDir(), "test_output.txt")

		file, err := SelectOutputFile(tempFile)
		require.NoError(t, err)
		assert.NotNil(t, file)
		_ = file.Close()

		_, err = os.Stat(tempFile)
		assert.NoError(t, err)
	})
}

func TestErrorHint(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"not found", &schema.NotFoundError{Path: "x"}, "--resultset"},
		{"stale", &schema.FileStaleError{File: "a.rb"}, "re-run the test suite"},
		{"project stale", &schema.ProjectStaleError{}, "re-run the test suite"},
		{"ambiguous input", &schema.AmbiguousError{FromInput: true}, "./"},
		{"ambiguous data", &schema.AmbiguousError{}, "single checkout"},
		{"corrupt", &schema.CorruptDataError{Message: "bad"}, "not valid SimpleCov output"},
		{"configuration", &schema.ConfigurationError{Message: "bad"}, "COVLOUPE_"},
		{"unknown", os.ErrClosed, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ErrorHint(tt.err)
			if tt.want == "" {
				assert.Empty(t, got)
				return
			}
			assert.Contains(t, got, tt.want)
		})
	}
}

func TestGetHistoryDBFilePath(t *testing.T) {
	path := GetHistoryDBFilePath()
	assert.Contains(t, path, ".covloupe_history.db")

	homeDir, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(path, homeDir), "path %s should start with home dir %s", path, homeDir)
}

func TestTruncatePath(t *testing.T) {
	assert.Equal(t, "lib/a.rb", TruncatePath("lib/a.rb", 20))
	assert.Equal(t, "...ep/a.rb", TruncatePath("lib/very/deep/a.rb", 10))
	assert.Equal(t, "lib/a.rb", TruncatePath("lib/a.rb", 3))
}

func TestParseBoolString(t *testing.T) {
	for _, s := range []string{"yes", "TRUE", "1", "on"} {
		v, err := ParseBoolString(s)
		require.NoError(t, err)
		assert.True(t, v, s)
	}
	for _, s := range []string{"no", "False", "0", "off"} {
		v, err := ParseBoolString(s)
		require.NoError(t, err)
		assert.False(t, v, s)
	}
	_, err := ParseBoolString("maybe")
	assert.Error(t, err)
}

func TestLevelFromString(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, LevelFromString("DEBUG"))
	assert.Equal(t, slog.LevelInfo, LevelFromString("info"))
	assert.Equal(t, slog.LevelWarn, LevelFromString(""))
	assert.Equal(t, slog.LevelError, LevelFromString("error"))
	assert.Equal(t, LevelSilent, LevelFromString("silent"))
}

func TestNewFileLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "covloupe.log")
	logger, f, err := NewFileLogger(path, slog.LevelInfo)
	require.NoError(t, err)
	logger.Info("hello", "k", "v")
	logger.Debug("hidden")
	require.NoError(t, f.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "msg=hello")
	assert.NotContains(t, string(data), "hidden")
}
