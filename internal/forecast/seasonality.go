package forecast

import (
	"time"

	"github.com/theirongolddev/fincast/internal/timeseries"
)

// Pattern labels a detected seasonal shape.
type Pattern string

const (
	PatternNone      Pattern = "none"
	PatternMonthly   Pattern = "monthly"
	PatternQuarterly Pattern = "quarterly"
)

const (
	// MinSeasonalPoints is one full year of history.
	MinSeasonalPoints = 12

	seasonalThreshold  = 0.15
	quarterlyThreshold = 0.10
)

// Seasonality describes how strongly each calendar month deviates from the
// overall monthly average.
type Seasonality struct {
	Detected       bool        `json:"detected"`
	Pattern        Pattern     `json:"pattern"`
	Intensity      float64     `json:"intensity"`
	MonthlyFactors [12]float64 `json:"monthly_factors"` // index 0 = January
}

// Factor returns the seasonal multiplier for a calendar month.
func (s Seasonality) Factor(m time.Month) float64 {
	if m < time.January || m > time.December {
		return 1
	}
	return s.MonthlyFactors[m-1]
}

func neutralSeasonality() Seasonality {
	s := Seasonality{Pattern: PatternNone}
	for i := range s.MonthlyFactors {
		s.MonthlyFactors[i] = 1
	}
	return s
}

// DetectSeasonality derives twelve month factors (month average / global
// average) and reports a pattern when their dispersion exceeds 0.15. Fewer
// than twelve points is an ordinary outcome and yields Detected=false.
func DetectSeasonality(s timeseries.Series) Seasonality {
	out := neutralSeasonality()
	if len(s) < MinSeasonalPoints {
		return out
	}

	var sums [12]float64
	var counts [12]int
	for _, p := range s {
		i := int(p.Period.Month) - 1
		sums[i] += p.Value
		counts[i]++
	}

	global := mean(s.Values())
	deviations := make([]float64, 12)
	for i := range out.MonthlyFactors {
		if counts[i] > 0 && global != 0 {
			out.MonthlyFactors[i] = (sums[i] / float64(counts[i])) / global
		}
		deviations[i] = out.MonthlyFactors[i] - 1
	}

	out.Intensity = popStdDev(deviations)
	out.Detected = out.Intensity > seasonalThreshold
	if !out.Detected {
		return out
	}

	quarters := make([]float64, 4)
	for q := range quarters {
		f := out.MonthlyFactors[q*3 : q*3+3]
		quarters[q] = (f[0] + f[1] + f[2]) / 3
	}
	if popStdDev(quarters) > quarterlyThreshold {
		out.Pattern = PatternQuarterly
	} else {
		out.Pattern = PatternMonthly
	}
	return out
}
