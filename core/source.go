package core

import (
	"bufio"
	"fmt"
	"os"

	"github.com/keithrbennett/covloupe/schema"
)

// SourceRows reads the file at absPath and pairs each selected line with its
// coverage. Full mode selects every line; uncovered mode selects lines with
// zero hits plus context lines on each side. Off mode returns nil.
func SourceRows(absPath string, lines schema.LineHits, mode schema.SourceMode, contextLines int) ([]schema.SourceLine, error) {
	if mode == schema.SourceOff || mode == "" {
		return nil, nil
	}
	src, err := readLines(absPath)
	if err != nil {
		return nil, err
	}
	contextLines = max(contextLines, 0)

	include := make([]bool, len(src))
	switch mode {
	case schema.SourceFull:
		for i := range include {
			include[i] = true
		}
	case schema.SourceUncovered:
		for i, h := range lines {
			if h == nil || *h != 0 {
				continue
			}
			for j := max(0, i-contextLines); j <= min(len(src)-1, i+contextLines); j++ {
				include[j] = true
			}
		}
	default:
		return nil, fmt.Errorf("unknown source mode %q", mode)
	}

	rows := make([]schema.SourceLine, 0, len(src))
	for i, code := range src {
		if !include[i] {
			continue
		}
		row := schema.SourceLine{Line: i + 1, Code: code}
		if i < len(lines) && lines[i] != nil {
			hits := *lines[i]
			covered := hits > 0
			row.Hits = &hits
			row.Covered = &covered
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// Source returns the source rows of path for the given mode.
func (m *Model) Source(path string, mode schema.SourceMode, contextLines int) ([]schema.SourceLine, error) {
	if mode == schema.SourceOff || mode == "" {
		return nil, nil
	}
	raw, err := m.Resolve(path)
	if err != nil {
		return nil, err
	}
	return SourceRows(raw.File, raw.Lines, mode, contextLines)
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	var out []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		out = append(out, scanner.Text())
	}
	return out, scanner.Err()
}
