package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keithrbennett/covloupe/schema"
)

func TestValidate(t *testing.T) {
	list := &schema.ListResult{Files: []schema.FileRow{
		{File: "/p/a.rb", Covered: 9, Total: 10, Percentage: 90},
		{File: "/p/b.rb", Covered: 1, Total: 10, Percentage: 10},
		{File: "/p/empty.rb", Covered: 0, Total: 0, Percentage: 100},
	}}
	totals := TotalsFromList(list)
	assert.Equal(t, 50.0, totals.Percentage)

	tests := []struct {
		name     string
		minTotal float64
		minFile  float64
		passed   bool
		scopes   []string
	}{
		{"disabled", 0, 0, true, []string{}},
		{"total passes", 50, 0, true, []string{}},
		{"total fails", 60, 0, false, []string{schema.ScopeTotal}},
		{"file fails", 0, 20, false, []string{schema.ScopeFile}},
		{"both fail", 75, 95, false, []string{schema.ScopeTotal, schema.ScopeFile, schema.ScopeFile}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Validate(list, totals, tt.minTotal, tt.minFile)
			assert.Equal(t, tt.passed, result.Passed)
			scopes := make([]string, len(result.Failures))
			for i, f := range result.Failures {
				scopes[i] = f.Scope
			}
			assert.Equal(t, tt.scopes, scopes)
		})
	}

	result := Validate(list, totals, 0, 20)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, "/p/b.rb", result.Failures[0].File)
}
