package forecast

import (
	"math"

	"github.com/theirongolddev/fincast/internal/timeseries"
)

// Algorithm tags which models contributed to a prediction.
type Algorithm string

const (
	AlgoLinearRegression Algorithm = "linear_regression"
	AlgoEMA              Algorithm = "exponential_moving_average"
	AlgoSeasonal         Algorithm = "seasonal"
	AlgoSimpleAverage    Algorithm = "simple_average"
)

const (
	// MinHybridPoints is the shortest series the hybrid model accepts.
	MinHybridPoints = 3

	emaWeight          = 0.7
	fallbackConfidence = 30
	minHybridConf      = 20
	baseHybridConf     = 90
)

// Estimate is one model's contribution to a hybrid prediction.
type Estimate struct {
	Algorithm Algorithm `json:"algorithm"`
	Value     float64   `json:"value"`
	Weight    float64   `json:"weight"`
}

// Hybrid is the combined forecast for one future period.
type Hybrid struct {
	Prediction  float64     `json:"prediction"`
	Confidence  float64     `json:"confidence"`
	Algorithms  []Algorithm `json:"algorithms"`
	Estimates   []Estimate  `json:"estimates"`
	Regression  *Regression `json:"regression,omitempty"`
	Seasonality Seasonality `json:"seasonality"`
}

// Options tunes the hybrid combiner.
type Options struct {
	// Alpha is the EMA smoothing factor in [0,1].
	Alpha float64
}

// DefaultOptions returns the standard tuning.
func DefaultOptions() Options {
	return Options{Alpha: DefaultAlpha}
}

// HybridPrediction is HybridPredictionWith using DefaultOptions.
func HybridPrediction(s timeseries.Series, periodsAhead int) (Hybrid, error) {
	return HybridPredictionWith(s, periodsAhead, DefaultOptions())
}

// HybridPredictionWith runs regression, EMA and (with a year of history and a
// detected pattern) a seasonal estimate, each independently, and returns
// their weight-normalized average. A failing model is skipped; when none
// survive the mean of the last three points is used with confidence 30.
//
// Confidence falls as the surviving estimates disagree:
// max(20, min(95, 90 - 100*stdev/mean)).
func HybridPredictionWith(s timeseries.Series, periodsAhead int, opts Options) (Hybrid, error) {
	const op = "hybrid prediction"
	if len(s) < MinHybridPoints {
		return Hybrid{}, insufficient(op, MinHybridPoints, len(s))
	}
	if periodsAhead < 0 {
		return Hybrid{}, invalid(op, "periodsAhead", periodsAhead, "must not be negative")
	}

	out := Hybrid{Seasonality: neutralSeasonality()}

	if reg, err := LinearRegression(s, periodsAhead); err == nil {
		r := reg
		out.Regression = &r
		out.Estimates = append(out.Estimates, Estimate{
			Algorithm: AlgoLinearRegression,
			Value:     reg.Prediction,
			Weight:    math.Abs(reg.Correlation),
		})
	}

	if v, err := ExponentialMovingAverage(s, opts.Alpha, periodsAhead); err == nil {
		out.Estimates = append(out.Estimates, Estimate{
			Algorithm: AlgoEMA,
			Value:     v,
			Weight:    emaWeight,
		})
	}

	if len(s) >= MinSeasonalPoints {
		out.Seasonality = DetectSeasonality(s)
		if out.Seasonality.Detected {
			target := s.Last().Period.AddMonths(periodsAhead)
			base := mean(s.Tail(3).Values())
			out.Estimates = append(out.Estimates, Estimate{
				Algorithm: AlgoSeasonal,
				Value:     base * out.Seasonality.Factor(target.Month),
				Weight:    out.Seasonality.Intensity,
			})
		}
	}

	if len(out.Estimates) == 0 {
		out.Prediction = mean(s.Tail(3).Values())
		out.Confidence = fallbackConfidence
		out.Algorithms = []Algorithm{AlgoSimpleAverage}
		return out, nil
	}

	values := make([]float64, len(out.Estimates))
	var weighted, totalWeight float64
	for i, e := range out.Estimates {
		values[i] = e.Value
		weighted += e.Value * e.Weight
		totalWeight += e.Weight
		out.Algorithms = append(out.Algorithms, e.Algorithm)
	}
	if totalWeight > 0 {
		out.Prediction = weighted / totalWeight
	} else {
		out.Prediction = mean(values)
	}
	out.Prediction = math.Max(0, out.Prediction)
	out.Confidence = agreementConfidence(values)
	return out, nil
}

// agreementConfidence maps the coefficient of variation across model
// estimates to a confidence in [20,95].
func agreementConfidence(values []float64) float64 {
	m := mean(values)
	var cv float64
	if m != 0 {
		cv = popStdDev(values) / math.Abs(m)
	}
	return clamp(baseHybridConf-100*cv, minHybridConf, maxConfidence)
}
