package core

import "github.com/keithrbennett/covloupe/schema"

// Validate checks the project total and every listed file against minimum
// percentages. A zero minimum disables that check. Files with no executable
// lines never fail.
func Validate(list *schema.ListResult, totals *schema.ProjectTotals, minTotal, minFile float64) schema.ValidationResult {
	result := schema.ValidationResult{
		Percentage: totals.Percentage,
		MinTotal:   minTotal,
		MinFile:    minFile,
		Failures:   []schema.ThresholdFailure{},
	}
	if minTotal > 0 && totals.Percentage < minTotal {
		result.Failures = append(result.Failures, schema.ThresholdFailure{
			Scope:      schema.ScopeTotal,
			Percentage: totals.Percentage,
			Minimum:    minTotal,
		})
	}
	if minFile > 0 {
		for _, row := range list.Files {
			if row.Total > 0 && row.Percentage < minFile {
				result.Failures = append(result.Failures, schema.ThresholdFailure{
					Scope:      schema.ScopeFile,
					File:       row.File,
					Percentage: row.Percentage,
					Minimum:    minFile,
				})
			}
		}
	}
	result.Passed = len(result.Failures) == 0
	return result
}

// Validate lists the project and checks it against the thresholds.
func (m *Model) Validate(minTotal, minFile float64) (schema.ValidationResult, error) {
	list, err := m.List(schema.Ascending)
	if err != nil {
		return schema.ValidationResult{}, err
	}
	return Validate(list, TotalsFromList(list), minTotal, minFile), nil
}
