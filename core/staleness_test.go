package core

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keithrbennett/covloupe/schema"
)

func TestClassify(t *testing.T) {
	mtime := time.Unix(2000, 0)
	tests := []struct {
		name  string
		state FileState
		want  schema.StaleStatus
	}{
		{"ok", FileState{Exists: true, SourceLines: 3, CoverageLines: 3, Mtime: mtime, CoverageTimestamp: 3000}, schema.StaleOK},
		{"read error wins", FileState{Exists: true, ReadErr: errors.New("denied"), CoverageLines: 3, Mtime: mtime}, schema.StaleError},
		{"missing", FileState{Exists: false, CoverageLines: 3, CoverageTimestamp: 3000}, schema.StaleMissing},
		{"length mismatch", FileState{Exists: true, SourceLines: 4, CoverageLines: 3, Mtime: mtime, CoverageTimestamp: 3000}, schema.StaleLengthMismatch},
		{"mismatch beats newer", FileState{Exists: true, SourceLines: 4, CoverageLines: 3, Mtime: mtime, CoverageTimestamp: 1000}, schema.StaleLengthMismatch},
		{"newer", FileState{Exists: true, SourceLines: 3, CoverageLines: 3, Mtime: mtime, CoverageTimestamp: 1000}, schema.StaleNewer},
		{"equal second is not newer", FileState{Exists: true, SourceLines: 3, CoverageLines: 3, Mtime: mtime.Add(500 * time.Millisecond), CoverageTimestamp: 2000}, schema.StaleOK},
		{"no timestamp disables newer", FileState{Exists: true, SourceLines: 3, CoverageLines: 3, Mtime: mtime, CoverageTimestamp: 0}, schema.StaleOK},
		{"empty coverage never mismatches", FileState{Exists: true, SourceLines: 9, CoverageLines: 0, Mtime: mtime, CoverageTimestamp: 3000}, schema.StaleOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.state))
		})
	}
}

func TestCountLines(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		content string
		want    int
	}{
		{"", 0},
		{"a", 1},
		{"a\n", 1},
		{"a\nb", 2},
		{"a\nb\nc\n", 3},
		{"\n\n", 2},
	}

	for i, tt := range tests {
		p := filepath.Join(dir, "f"+string(rune('a'+i)))
		require.NoError(t, os.WriteFile(p, []byte(tt.content), 0o644))
		got, err := CountLines(p)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "content %q", tt.content)
	}
}

func TestStatFile(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "a.rb")
	require.NoError(t, os.WriteFile(p, []byte("x\ny\n"), 0o644))

	st := StatFile(p, 2, 1)
	assert.True(t, st.Exists)
	assert.NoError(t, st.ReadErr)
	assert.Equal(t, 2, st.SourceLines)
	assert.False(t, st.Mtime.IsZero())

	missing := StatFile(filepath.Join(dir, "nope.rb"), 2, 1)
	assert.False(t, missing.Exists)
	assert.NoError(t, missing.ReadErr)
	assert.Equal(t, schema.StaleMissing, Classify(missing))

	asDir := StatFile(dir, 2, 1)
	assert.Equal(t, schema.StaleMissing, Classify(asDir))
}
