package resultset

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"os"
	"regexp"
	"slices"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/keithrbennett/covloupe/schema"
)

// MissingTimestampMessage is logged when no suite carries a usable timestamp.
const MissingTimestampMessage = "coverage timestamp missing, defaulting to 0; time-based staleness checks are disabled"

var numericTimestamp = regexp.MustCompile(`^-?\d+(\.\d+)?$`)

// timeLayouts are tried in order for textual timestamps.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05 -0700",
	"2006-01-02 15:04:05 MST",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	time.RubyDate,
	time.UnixDate,
	time.RFC1123Z,
}

// Loaded is the merged content of a resultset before path normalization.
type Loaded struct {
	Coverage   schema.CoverageMap
	Timestamp  int64
	SuiteNames []string
}

// Loader parses resultset files.
type Loader struct {
	Logger *slog.Logger
}

type rawSuite struct {
	Coverage  json.RawMessage `json:"coverage"`
	Timestamp json.RawMessage `json:"timestamp"`
	CreatedAt json.RawMessage `json:"created_at"`
}

type rawEntry struct {
	Lines    json.RawMessage `json:"lines"`
	Branches json.RawMessage `json:"branches"`
}

// Load reads and parses the resultset at path.
func (l *Loader) Load(path string) (*Loaded, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return l.Parse(path, data)
}

// AnonymousSuite names the single suite of a resultset with no suite wrapper.
const AnonymousSuite = "(anonymous)"

// maxBranchLine bounds branch descriptor line numbers. Synthesized line
// arrays are sized by the largest end line.
const maxBranchLine = 1_000_000

// Parse decodes resultset content. Every top-level member whose value is an
// object with a non-null "coverage" is a suite; suites are merged in name order
// and the newest suite timestamp wins. A document with no such member is read
// as one anonymous suite when it is itself a {"coverage": ..., "timestamp": ...}
// object or a flat file-to-entry map.
func (l *Loader) Parse(path string, data []byte) (*Loaded, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return nil, &schema.CorruptDataError{Path: path, Message: fmt.Sprintf("invalid JSON in resultset %s", path), Err: err}
	}

	names := make([]string, 0, len(top))
	for name := range top {
		names = append(names, name)
	}
	sort.Strings(names)

	out := &Loaded{Coverage: schema.CoverageMap{}}
	for _, name := range names {
		var suite rawSuite
		if err := json.Unmarshal(top[name], &suite); err != nil || isNull(suite.Coverage) {
			continue
		}
		if err := l.addSuite(out, path, name, suite); err != nil {
			return nil, err
		}
	}

	if len(out.SuiteNames) == 0 {
		var wrapper rawSuite
		switch {
		case !isNull(top["coverage"]) && json.Unmarshal(data, &wrapper) == nil:
			if err := l.addSuite(out, path, AnonymousSuite, wrapper); err != nil {
				return nil, err
			}
		case isFlatCoverageMap(top):
			if err := l.addSuite(out, path, AnonymousSuite, rawSuite{Coverage: data}); err != nil {
				return nil, err
			}
		default:
			return nil, &schema.CorruptDataError{Path: path, Message: fmt.Sprintf("no test suite with coverage data found in %s", path)}
		}
	}
	if out.Timestamp == 0 {
		l.logger().Warn(MissingTimestampMessage, "resultset", path)
	}
	return out, nil
}

// addSuite merges one suite into out.
func (l *Loader) addSuite(out *Loaded, path, name string, suite rawSuite) error {
	cov, err := parseCoverage(path, name, suite.Coverage)
	if err != nil {
		return err
	}
	for file, entry := range cov {
		if prev, ok := out.Coverage[file]; ok {
			out.Coverage[file] = mergeEntries(prev, entry)
		} else {
			out.Coverage[file] = entry
		}
	}

	raw := suite.Timestamp
	if isNull(raw) {
		raw = suite.CreatedAt
	}
	if ts := l.normalizeTimestamp(name, raw); ts > out.Timestamp {
		out.Timestamp = ts
	}
	out.SuiteNames = append(out.SuiteNames, name)
	return nil
}

// isFlatCoverageMap reports whether every member looks like a file entry:
// a bare lines array or an object carrying lines or branches.
func isFlatCoverageMap(top map[string]json.RawMessage) bool {
	if len(top) == 0 {
		return false
	}
	for _, body := range top {
		body = bytes.TrimSpace(body)
		if len(body) > 0 && body[0] == '[' {
			continue
		}
		var entry rawEntry
		if len(body) == 0 || body[0] != '{' || json.Unmarshal(body, &entry) != nil {
			return false
		}
		if isNull(entry.Lines) && isNull(entry.Branches) {
			return false
		}
	}
	return true
}

func parseCoverage(path, suite string, raw json.RawMessage) (schema.CoverageMap, error) {
	var files map[string]json.RawMessage
	if err := json.Unmarshal(raw, &files); err != nil {
		return nil, corrupt(path, fmt.Sprintf("coverage of suite %q is not an object", suite), err)
	}

	out := make(schema.CoverageMap, len(files))
	for file, body := range files {
		body = bytes.TrimSpace(body)
		var entry rawEntry
		switch {
		case len(body) > 0 && body[0] == '[':
			entry.Lines = body
		case len(body) > 0 && body[0] == '{':
			if err := json.Unmarshal(body, &entry); err != nil {
				return nil, corrupt(path, fmt.Sprintf("invalid coverage entry for %s", file), err)
			}
		default:
			return nil, corrupt(path, fmt.Sprintf("invalid coverage entry for %s", file), nil)
		}

		ce, err := buildEntry(path, file, entry)
		if err != nil {
			return nil, err
		}
		out[file] = ce
	}
	return out, nil
}

// buildEntry prefers line data. An entry needs lines or branches.
func buildEntry(path, file string, entry rawEntry) (schema.CoverageEntry, error) {
	if isNull(entry.Lines) && isNull(entry.Branches) {
		return schema.CoverageEntry{}, corrupt(path, fmt.Sprintf("coverage entry for %s has neither lines nor branches", file), nil)
	}
	var branches []schema.BranchHit
	if !isNull(entry.Branches) {
		var err error
		if branches, err = parseBranches(path, file, entry.Branches); err != nil {
			return schema.CoverageEntry{}, err
		}
	}

	if isNull(entry.Lines) {
		return schema.NewBranchEntry(branches), nil
	}

	lines, err := parseLines(path, file, entry.Lines)
	if err != nil {
		return schema.CoverageEntry{}, err
	}
	ce := schema.NewLineEntry(lines)
	ce.Branches = branches
	return ce, nil
}

func parseLines(path, file string, raw json.RawMessage) (schema.LineHits, error) {
	var values []*float64
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil, corrupt(path, fmt.Sprintf("invalid line data for %s", file), err)
	}
	lines := make(schema.LineHits, len(values))
	for i, v := range values {
		if v == nil {
			continue
		}
		n, ok := hitCount(*v)
		if !ok {
			return nil, corrupt(path, fmt.Sprintf("invalid hit count %v at line %d of %s", *v, i+1, file), nil)
		}
		lines[i] = schema.Hits(n)
	}
	return lines, nil
}

// parseBranches reads SimpleCov branch data: condition descriptor to arm
// descriptor to hit count. Descriptors look like "[:then, 3, 12, 4, 14, 10]"
// where the third and fifth fields are the start and end lines.
func parseBranches(path, file string, raw json.RawMessage) ([]schema.BranchHit, error) {
	var conditions map[string]map[string]float64
	if err := json.Unmarshal(raw, &conditions); err != nil {
		return nil, corrupt(path, fmt.Sprintf("invalid branch data for %s", file), err)
	}

	condKeys := make([]string, 0, len(conditions))
	for k := range conditions {
		condKeys = append(condKeys, k)
	}
	sort.Strings(condKeys)

	var out []schema.BranchHit
	for _, ck := range condKeys {
		arms := conditions[ck]
		armKeys := make([]string, 0, len(arms))
		for k := range arms {
			armKeys = append(armKeys, k)
		}
		sort.Strings(armKeys)

		for _, ak := range armKeys {
			start, end, err := parseBranchDescriptor(ak)
			if err != nil {
				return nil, corrupt(path, fmt.Sprintf("malformed branch descriptor %q in %s", ak, file), err)
			}
			hits, ok := hitCount(arms[ak])
			if !ok {
				return nil, corrupt(path, fmt.Sprintf("invalid branch hit count %v in %s", arms[ak], file), nil)
			}
			out = append(out, schema.BranchHit{ID: ck + " " + ak, StartLine: start, EndLine: end, Hits: hits})
		}
	}
	return out, nil
}

func parseBranchDescriptor(desc string) (int, int, error) {
	inner := strings.TrimSuffix(strings.TrimPrefix(strings.TrimSpace(desc), "["), "]")
	tokens := strings.Split(inner, ",")
	if len(tokens) < 3 {
		return 0, 0, fmt.Errorf("expected at least 3 fields, got %d", len(tokens))
	}

	start, err := strconv.Atoi(strings.TrimSpace(tokens[2]))
	if err != nil {
		return 0, 0, err
	}
	if start < 1 || start > maxBranchLine {
		return 0, 0, fmt.Errorf("start line %d out of range", start)
	}

	end := start
	if len(tokens) >= 5 {
		if v, err := strconv.Atoi(strings.TrimSpace(tokens[4])); err == nil && v > start {
			if v > maxBranchLine {
				return 0, 0, fmt.Errorf("end line %d out of range", v)
			}
			end = v
		}
	}
	return start, end, nil
}

// mergeEntries combines one file's coverage from two suites: per-line maximum
// for lines, per-arm maximum for branches.
func mergeEntries(a, b schema.CoverageEntry) schema.CoverageEntry {
	out := schema.CoverageEntry{
		Lines:    mergeLines(a.Lines, b.Lines),
		Branches: mergeBranches(a.Branches, b.Branches),
	}
	if out.Lines != nil {
		out.Kind = schema.LineEntry
	} else {
		out.Kind = schema.BranchEntry
	}
	return out
}

func mergeLines(a, b schema.LineHits) schema.LineHits {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	}
	out := make(schema.LineHits, max(len(a), len(b)))
	for i := range out {
		var x, y *int
		if i < len(a) {
			x = a[i]
		}
		if i < len(b) {
			y = b[i]
		}
		switch {
		case x == nil:
			out[i] = y
		case y == nil:
			out[i] = x
		default:
			out[i] = schema.Hits(max(*x, *y))
		}
	}
	return out
}

func mergeBranches(a, b []schema.BranchHit) []schema.BranchHit {
	if len(b) == 0 {
		return a
	}
	out := slices.Clone(a)
	index := make(map[string]int, len(out))
	for i, br := range out {
		index[br.ID] = i
	}
	for _, br := range b {
		if i, ok := index[br.ID]; ok {
			out[i].Hits = max(out[i].Hits, br.Hits)
			continue
		}
		index[br.ID] = len(out)
		out = append(out, br)
	}
	return out
}

// normalizeTimestamp converts a suite timestamp to epoch seconds. Integers
// pass through, floats and numeric strings truncate, other strings are parsed
// as times. Anything unusable or negative becomes 0.
func (l *Loader) normalizeTimestamp(suite string, raw json.RawMessage) int64 {
	if isNull(raw) {
		return 0
	}

	var v any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		l.logger().Warn("invalid coverage timestamp", "suite", suite, "error", err)
		return 0
	}

	var ts int64
	switch t := v.(type) {
	case json.Number:
		if n, err := t.Int64(); err == nil {
			ts = n
		} else if f, err := t.Float64(); err == nil {
			ts = int64(math.Trunc(f))
		} else {
			l.logger().Warn("invalid coverage timestamp", "suite", suite, "value", t.String())
			return 0
		}
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return 0
		}
		if numericTimestamp.MatchString(s) {
			f, _ := strconv.ParseFloat(s, 64)
			ts = int64(math.Trunc(f))
			break
		}
		parsed, ok := parseTime(s)
		if !ok {
			l.logger().Warn("unparseable coverage timestamp", "suite", suite, "value", s)
			return 0
		}
		ts = parsed.Unix()
	default:
		l.logger().Warn("unsupported coverage timestamp type", "suite", suite, "type", fmt.Sprintf("%T", v))
		return 0
	}

	if ts < 0 {
		return 0
	}
	return ts
}

func parseTime(s string) (time.Time, bool) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func hitCount(f float64) (int, bool) {
	if f < 0 || f != math.Trunc(f) || f > 1<<53 {
		return 0, false
	}
	return int(f), true
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

func corrupt(path, msg string, err error) error {
	return &schema.CorruptDataError{Path: path, Message: msg, Err: err}
}

func (l *Loader) logger() *slog.Logger {
	if l == nil || l.Logger == nil {
		return discardLogger
	}
	return l.Logger
}
