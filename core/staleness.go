package core

import (
	"bytes"
	"errors"
	"io"
	"io/fs"
	"os"
	"time"

	"github.com/keithrbennett/covloupe/schema"
)

// FileState is everything the classifier needs to know about one file.
type FileState struct {
	Path              string
	Exists            bool
	ReadErr           error
	SourceLines       int
	CoverageLines     int
	Mtime             time.Time
	CoverageTimestamp int64
}

// LengthMismatch reports a source line count that differs from the recorded
// coverage length. Empty coverage never mismatches.
func (s FileState) LengthMismatch() bool {
	return s.ReadErr == nil && s.CoverageLines > 0 && s.SourceLines != s.CoverageLines
}

// Newer reports a file modified after the coverage run. It needs a usable
// timestamp and yields to length mismatches and read errors.
func (s FileState) Newer() bool {
	if s.CoverageTimestamp <= 0 || s.ReadErr != nil || s.LengthMismatch() {
		return false
	}
	return !s.Mtime.IsZero() && s.Mtime.Unix() > s.CoverageTimestamp
}

// Classify returns exactly one verdict, in the order error, missing,
// length_mismatch, newer, ok.
func Classify(s FileState) schema.StaleStatus {
	switch {
	case s.ReadErr != nil:
		return schema.StaleError
	case !s.Exists:
		return schema.StaleMissing
	case s.LengthMismatch():
		return schema.StaleLengthMismatch
	case s.Newer():
		return schema.StaleNewer
	default:
		return schema.StaleOK
	}
}

// StatFile builds a FileState from disk. Anything other than a regular file
// counts as missing.
func StatFile(path string, coverageLines int, coverageTimestamp int64) FileState {
	st := FileState{Path: path, CoverageLines: coverageLines, CoverageTimestamp: coverageTimestamp}

	info, err := os.Stat(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			st.ReadErr = err
		}
		return st
	}
	if !info.Mode().IsRegular() {
		return st
	}

	st.Exists = true
	st.Mtime = info.ModTime()

	n, err := CountLines(path)
	if err != nil {
		st.ReadErr = err
		return st
	}
	st.SourceLines = n
	return st
}

// CountLines counts newline-terminated lines plus a trailing partial line.
func CountLines(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer func() { _ = f.Close() }()

	buf := make([]byte, 32*1024)
	count := 0
	var last byte
	for {
		n, err := f.Read(buf)
		if n > 0 {
			count += bytes.Count(buf[:n], []byte{'\n'})
			last = buf[n-1]
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, err
		}
	}
	if last != 0 && last != '\n' {
		count++
	}
	return count, nil
}
