// Package forecast implements the spend forecasting models: least-squares
// regression, exponential moving average, seasonal decomposition, IQR outlier
// detection and the confidence-weighted hybrid that combines them.
//
// All functions are pure and safe for concurrent use.
package forecast

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

func mean(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	return stat.Mean(data, nil)
}

// popStdDev is the population standard deviation (divides by n).
func popStdDev(data []float64) float64 {
	if len(data) < 2 {
		return 0
	}
	_, std := stat.PopMeanStdDev(data, nil)
	return std
}

// correlation returns Pearson's r, or 0 when either input has no variance.
func correlation(x, y []float64) float64 {
	if len(x) < 2 || len(x) != len(y) {
		return 0
	}
	r := stat.Correlation(x, y, nil)
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return 0
	}
	return clamp(r, -1, 1)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
