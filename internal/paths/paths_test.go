package paths

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		in       string
		foldCase bool
		want     string
	}{
		{"empty", "", true, ""},
		{"backslashes", `lib\foo\Bar.rb`, false, "lib/foo/Bar.rb"},
		{"cleans dots", "/proj/./lib/../lib/foo.rb", false, "/proj/lib/foo.rb"},
		{"folds case", "/Proj/Lib/Foo.rb", true, "/proj/lib/foo.rb"},
		{"keeps case", "/Proj/Lib/Foo.rb", false, "/Proj/Lib/Foo.rb"},
		{"trailing slash", "/proj/lib/", false, "/proj/lib"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in, tt.foldCase))
		})
	}
}

func TestIsAbs(t *testing.T) {
	assert.True(t, IsAbs("/proj/a.rb"))
	assert.True(t, IsAbs(`C:\proj\a.rb`))
	assert.True(t, IsAbs("d:/proj/a.rb"))
	assert.False(t, IsAbs("lib/a.rb"))
	assert.False(t, IsAbs(""))
}

func TestExpand(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix path layout")
	}

	assert.Equal(t, "/proj/lib/foo.rb", Expand("lib/foo.rb", "/proj"))
	assert.Equal(t, "/other/foo.rb", Expand("/other/./foo.rb", "/proj"))
	assert.Equal(t, "/proj/foo.rb", Expand("lib/../foo.rb", "/proj"))
	assert.Equal(t, "", Expand("", "/proj"))

	// Expanding an already expanded path is a no-op.
	once := Expand("lib/foo.rb", "/proj")
	assert.Equal(t, once, Expand(once, "/proj"))

	wd, err := os.Getwd()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(wd, "x.rb"), Expand("x.rb", ""))
}

func TestWithinRoot(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix path layout")
	}

	tests := []struct {
		name     string
		path     string
		root     string
		foldCase bool
		want     bool
	}{
		{"inside", "/proj/lib/a.rb", "/proj", false, true},
		{"root itself", "/proj", "/proj", false, true},
		{"sibling prefix", "/project/a.rb", "/proj", false, false},
		{"outside", "/tmp/a.rb", "/proj", false, false},
		{"case differs sensitive", "/PROJ/a.rb", "/proj", false, false},
		{"case differs folded", "/PROJ/a.rb", "/proj", true, true},
		{"filesystem root", "/a.rb", "/", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, WithinRoot(tt.path, tt.root, tt.foldCase))
		})
	}
}

func TestRelativize(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix path layout")
	}

	assert.Equal(t, "lib/a.rb", Relativize("/proj/lib/a.rb", "/proj", false))
	assert.Equal(t, ".", Relativize("/proj", "/proj", false))
	assert.Equal(t, "/tmp/a.rb", Relativize("/tmp/a.rb", "/proj", false))
	assert.Equal(t, "Lib/A.rb", Relativize("/PROJ/Lib/A.rb", "/proj", true))
	assert.Equal(t, "lib/a.rb", Relativize("lib/a.rb", "/proj", false))
	assert.Equal(t, "", Relativize("", "/proj", false))
}

func TestStripRoot(t *testing.T) {
	rel, ok := StripRoot("/proj/lib/foo.rb", "/proj")
	assert.True(t, ok)
	assert.Equal(t, "lib/foo.rb", rel)

	_, ok = StripRoot("/project/foo.rb", "/proj")
	assert.False(t, ok)

	_, ok = StripRoot("/proj/foo.rb", "")
	assert.False(t, ok)
}
