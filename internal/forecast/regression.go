package forecast

import (
	"math"

	"github.com/theirongolddev/fincast/internal/timeseries"

	"gonum.org/v1/gonum/stat"
)

// maxConfidence caps every model's self-reported confidence.
const maxConfidence = 95

// Regression is the result of an ordinary least-squares fit of value against
// days since the first point.
type Regression struct {
	Slope       float64 `json:"slope"` // per day
	Intercept   float64 `json:"intercept"`
	Correlation float64 `json:"correlation"`
	Prediction  float64 `json:"prediction"`
	Confidence  float64 `json:"confidence"`
}

// LinearRegression fits the series and evaluates the line periodsAhead months
// after the last point. The prediction is floored at zero.
//
// Confidence is |r| * 100 * log10(n), capped at 95, so both fit quality and
// sample size are rewarded.
func LinearRegression(s timeseries.Series, periodsAhead int) (Regression, error) {
	const op = "linear regression"
	if len(s) < 2 {
		return Regression{}, insufficient(op, 2, len(s))
	}
	if periodsAhead < 0 {
		return Regression{}, invalid(op, "periodsAhead", periodsAhead, "must not be negative")
	}

	x := s.DayOffsets()
	y := s.Values()

	intercept, slope := stat.LinearRegression(x, y, nil, false)
	r := correlation(x, y)

	target := s.Last().Period.AddMonths(periodsAhead).Start()
	xAhead := timeseries.DaysBetween(s[0].Period.Start(), target)

	n := float64(len(s))
	conf := math.Abs(r) * 100 * math.Log10(n)

	return Regression{
		Slope:       slope,
		Intercept:   intercept,
		Correlation: r,
		Prediction:  math.Max(0, intercept+slope*xAhead),
		Confidence:  clamp(conf, 0, maxConfidence),
	}, nil
}
