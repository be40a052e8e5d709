package forecast

import (
	"math"

	"github.com/theirongolddev/fincast/internal/timeseries"
)

const (
	// DefaultAlpha is the smoothing factor used by the hybrid model.
	DefaultAlpha = 0.3

	// trendWindow is how many trailing points feed the EMA extrapolation slope.
	trendWindow = 6
)

// ExponentialMovingAverage smooths the whole series in chronological order.
// For periodsAhead > 1 the smoothed value is extrapolated by the mean first
// difference of the last six points. The result is never negative.
func ExponentialMovingAverage(s timeseries.Series, alpha float64, periodsAhead int) (float64, error) {
	const op = "exponential moving average"
	if math.IsNaN(alpha) || alpha < 0 || alpha > 1 {
		return 0, invalid(op, "alpha", alpha, "must be within [0,1]")
	}
	if len(s) == 0 {
		return 0, invalid(op, "series", "empty", "at least one point is required")
	}
	if periodsAhead < 0 {
		return 0, invalid(op, "periodsAhead", periodsAhead, "must not be negative")
	}

	ema := s[0].Value
	for _, p := range s[1:] {
		ema = alpha*p.Value + (1-alpha)*ema
	}

	if periodsAhead > 1 {
		ema += float64(periodsAhead-1) * recentTrend(s)
	}
	return math.Max(0, ema), nil
}

// recentTrend is the mean month-over-month change across the trailing window.
func recentTrend(s timeseries.Series) float64 {
	tail := s.Tail(trendWindow)
	if len(tail) < 2 {
		return 0
	}
	var sum float64
	for i := 1; i < len(tail); i++ {
		sum += tail[i].Value - tail[i-1].Value
	}
	return sum / float64(len(tail)-1)
}
