package model

import "time"

// Results is everything one recomputation cycle produces.
type Results struct {
	Predictions     []Prediction     `json:"predictions"`
	Alerts          []Alert          `json:"alerts"`
	Recommendations []Recommendation `json:"recommendations"`
	Score           FinancialScore   `json:"score"`
	ComputedAt      time.Time        `json:"computed_at"`
	Skipped         []string         `json:"skipped,omitempty"` // accounts with too little history
}

// UnreadAlerts counts alerts not yet marked read.
func (r Results) UnreadAlerts() int {
	n := 0
	for _, a := range r.Alerts {
		if !a.Read {
			n++
		}
	}
	return n
}

// Clone returns a deep-enough copy for handing to readers outside a lock.
func (r Results) Clone() Results {
	out := r
	out.Predictions = append([]Prediction(nil), r.Predictions...)
	out.Alerts = append([]Alert(nil), r.Alerts...)
	out.Recommendations = append([]Recommendation(nil), r.Recommendations...)
	out.Score.Factors = append([]ScoreFactor(nil), r.Score.Factors...)
	out.Score.ImprovementTips = append([]string(nil), r.Score.ImprovementTips...)
	out.Skipped = append([]string(nil), r.Skipped...)
	return out
}
