package core

import (
	"math"

	"github.com/keithrbennett/covloupe/schema"
)

// Summary counts executable and covered lines. An empty file is 100% covered.
func Summary(lines schema.LineHits) schema.CoverageSummary {
	var covered, total int
	for _, h := range lines {
		if h == nil {
			continue
		}
		total++
		if *h > 0 {
			covered++
		}
	}
	return schema.CoverageSummary{Covered: covered, Total: total, Percentage: Percentage(covered, total)}
}

// Percentage is covered/total as a percentage rounded to two decimals.
func Percentage(covered, total int) float64 {
	if total == 0 {
		return 100.0
	}
	return math.Round(float64(covered)*100.0/float64(total)*100) / 100
}

// Uncovered returns the 1-based numbers of executable lines that never ran.
func Uncovered(lines schema.LineHits) []int {
	out := []int{}
	for i, h := range lines {
		if h != nil && *h == 0 {
			out = append(out, i+1)
		}
	}
	return out
}

// Detailed returns one record per executable line.
func Detailed(lines schema.LineHits) []schema.LineDetail {
	out := []schema.LineDetail{}
	for i, h := range lines {
		if h == nil {
			continue
		}
		out = append(out, schema.LineDetail{Line: i + 1, Hits: *h, Covered: *h > 0})
	}
	return out
}
