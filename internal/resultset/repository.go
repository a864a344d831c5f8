package resultset

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/keithrbennett/covloupe/internal/paths"
	"github.com/keithrbennett/covloupe/schema"
)

var discardLogger = slog.New(slog.DiscardHandler)

// Builder turns a resultset file into a schema.Snapshot with absolute keys.
type Builder struct {
	Probe   *paths.CaseProbe
	Logger  *slog.Logger
	WorkDir string
}

// NewBuilder returns a Builder that shares the process-wide case probe.
func NewBuilder(logger *slog.Logger) *Builder {
	return &Builder{Probe: paths.DefaultProbe, Logger: logger}
}

// Locate finds the resultset for root without loading it.
func (b *Builder) Locate(root, hint string) (string, error) {
	loc := NewLocator(root)
	loc.WorkDir = b.WorkDir
	loc.Probe = b.probe()
	loc.Logger = b.logger()
	return loc.Locate(hint)
}

// Build locates, loads and normalizes the resultset for root. Domain errors
// pass through unchanged; anything else is wrapped as an OperationError.
func (b *Builder) Build(root, hint string) (*schema.Snapshot, error) {
	snap, err := b.build(root, hint)
	if err != nil {
		return nil, wrapLoadingError(err)
	}
	return snap, nil
}

func (b *Builder) build(root, hint string) (*schema.Snapshot, error) {
	root = paths.Expand(root, "")
	resultsetPath, err := b.Locate(root, hint)
	if err != nil {
		return nil, err
	}

	loader := &Loader{Logger: b.logger()}
	loaded, err := loader.Load(resultsetPath)
	if err != nil {
		return nil, err
	}

	coverage, err := NormalizeKeys(loaded.Coverage, root, !b.probe().IsCaseSensitive(root))
	if err != nil {
		return nil, err
	}

	b.logger().Debug("coverage loaded", "resultset", resultsetPath, "files", len(coverage), "suites", len(loaded.SuiteNames))
	return &schema.Snapshot{
		Coverage:      coverage,
		Timestamp:     loaded.Timestamp,
		ResultsetPath: resultsetPath,
		SuiteNames:    loaded.SuiteNames,
	}, nil
}

// NormalizeKeys expands every key against root. Keys that compare equal after
// normalization are an error; with foldCase the comparison ignores case.
// The stored key keeps the expanded spelling.
func NormalizeKeys(coverage schema.CoverageMap, root string, foldCase bool) (schema.CoverageMap, error) {
	originals := make([]string, 0, len(coverage))
	for k := range coverage {
		originals = append(originals, k)
	}
	sort.Strings(originals)

	out := make(schema.CoverageMap, len(coverage))
	owner := make(map[string]string, len(coverage))
	groups := make(map[string][]string)

	for _, key := range originals {
		expanded := paths.Expand(key, root)
		norm := paths.Normalize(expanded, foldCase)
		groups[norm] = append(groups[norm], key)
		if _, seen := owner[norm]; seen {
			continue
		}
		owner[norm] = expanded
		out[expanded] = coverage[key]
	}

	collisions := make(map[string][]string)
	for norm, keys := range groups {
		if len(keys) > 1 {
			collisions[owner[norm]] = keys
		}
	}
	if len(collisions) > 0 {
		return nil, &schema.CorruptDataError{Message: formatCollisions(collisions)}
	}
	return out, nil
}

func formatCollisions(collisions map[string][]string) string {
	keys := make([]string, 0, len(collisions))
	for k := range collisions {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	sb.WriteString("duplicate paths detected after normalization. The following keys normalize to the same path:\n{\n")
	for i, k := range keys {
		name, _ := json.Marshal(k)
		originals, _ := json.Marshal(collisions[k])
		fmt.Fprintf(&sb, "  %s: %s", name, originals)
		if i < len(keys)-1 {
			sb.WriteString(",")
		}
		sb.WriteString("\n")
	}
	sb.WriteString("}")
	return sb.String()
}

func wrapLoadingError(err error) error {
	for _, sentinel := range []error{schema.ErrNotFound, schema.ErrAmbiguous, schema.ErrCorruptData, schema.ErrConfiguration} {
		if errors.Is(err, sentinel) {
			return err
		}
	}
	return &schema.OperationError{Op: schema.OpCoverageLoading, Err: err}
}

func (b *Builder) probe() *paths.CaseProbe {
	if b.Probe == nil {
		return paths.DefaultProbe
	}
	return b.Probe
}

func (b *Builder) logger() *slog.Logger {
	if b.Logger == nil {
		return discardLogger
	}
	return b.Logger
}
