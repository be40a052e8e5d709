package forecast

import (
	"slices"

	"github.com/theirongolddev/fincast/internal/timeseries"
)

// minAnomalyPoints is the smallest series the IQR fences are computed for.
const minAnomalyPoints = 4

// DetectAnomalies returns the indices of points outside Tukey's fences
// [Q1 - 1.5*IQR, Q3 + 1.5*IQR]. Quartiles are read at the 25th and 75th
// percentile index of the sorted values.
func DetectAnomalies(s timeseries.Series) []int {
	if len(s) < minAnomalyPoints {
		return nil
	}

	sorted := s.Values()
	slices.Sort(sorted)

	n := len(sorted)
	q1 := sorted[n/4]
	q3 := sorted[n*3/4]
	iqr := q3 - q1
	lo, hi := q1-1.5*iqr, q3+1.5*iqr

	var out []int
	for i, p := range s {
		if p.Value < lo || p.Value > hi {
			out = append(out, i)
		}
	}
	return out
}
