package model

import (
	"time"

	"github.com/theirongolddev/fincast/internal/timeseries"
)

// Trend is the direction of a forecast relative to recent actuals.
type Trend string

const (
	TrendRising  Trend = "rising"
	TrendFalling Trend = "falling"
	TrendStable  Trend = "stable"
)

// Prediction is the forecast spend for one account and one future month.
// Predictions are immutable and replaced wholesale on every recomputation.
type Prediction struct {
	AccountID            string            `json:"account_id"`
	Period               timeseries.Period `json:"period"`
	PeriodsAhead         int               `json:"periods_ahead"`
	PredictedAmount      float64           `json:"predicted_amount"`
	Confidence           float64           `json:"confidence"`
	Algorithm            string            `json:"algorithm"`
	Algorithms           []string          `json:"algorithms"`
	Trend                Trend             `json:"trend"`
	ExpectedVariationPct float64           `json:"expected_variation_pct"`
	Factors              []string          `json:"factors,omitempty"`
	GeneratedAt          time.Time         `json:"generated_at"`
}
