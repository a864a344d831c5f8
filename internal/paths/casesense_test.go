package paths

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSwapCase(t *testing.T) {
	assert.Equal(t, "rEADME.MD", swapCase("Readme.md"))
	assert.Equal(t, "123_x", swapCase("123_X"))
}

func TestCaseProbeMissingDirectory(t *testing.T) {
	probe := NewCaseProbe()
	assert.False(t, probe.IsCaseSensitive(filepath.Join(t.TempDir(), "nope")))
	assert.Empty(t, probe.Cached())
}

func TestCaseProbeTempFileLeavesNothingBehind(t *testing.T) {
	dir := t.TempDir()
	probe := NewCaseProbe()

	got := probe.IsCaseSensitive(dir)
	if runtime.GOOS == "linux" {
		assert.True(t, got)
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.HasPrefix(strings.ToLower(e.Name()), strings.ToLower(probePrefix)), "leftover probe file %s", e.Name())
	}
	assert.Empty(t, entries)
}

func TestCaseProbeUsesExistingFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Readme.txt"), []byte("x"), 0o644))
	probe := NewCaseProbe()

	got := probe.IsCaseSensitive(dir)
	if runtime.GOOS == "linux" {
		assert.True(t, got)
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestCaseProbeDistinctFilesMeansSensitive(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("requires a case-sensitive filesystem")
	}
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Readme.txt"), []byte("a"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "rEADME.TXT"), []byte("b"), 0o644))

	assert.True(t, NewCaseProbe().IsCaseSensitive(dir))
}

func TestCaseProbeCachesResult(t *testing.T) {
	dir := t.TempDir()
	probe := NewCaseProbe()

	first := probe.IsCaseSensitive(dir)
	abs, err := filepath.Abs(dir)
	require.NoError(t, err)

	cached := probe.Cached()
	require.Contains(t, cached, abs)
	assert.Equal(t, first, cached[abs])

	probe.Clear()
	assert.Empty(t, probe.Cached())
}
