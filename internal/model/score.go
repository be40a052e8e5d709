package model

import (
	"time"

	"github.com/theirongolddev/fincast/internal/timeseries"
)

// Band is the qualitative label for a score.
type Band string

const (
	BandExcellent Band = "excellent"
	BandVeryGood  Band = "very-good"
	BandGood      Band = "good"
	BandRegular   Band = "regular"
	BandBad       Band = "bad"
)

// ScoreTrend compares a score to the previous month's.
type ScoreTrend string

const (
	ScoreImproving ScoreTrend = "improving"
	ScoreWorsening ScoreTrend = "worsening"
	ScoreStable    ScoreTrend = "stable"
)

// ScoreFactor is one weighted component of the financial score.
type ScoreFactor struct {
	Name        string  `json:"name"`
	Value       float64 `json:"value"`  // 0-100
	Weight      float64 `json:"weight"` // (0,1]
	Description string  `json:"description"`
	Band        Band    `json:"band"`
}

// ScoreComparison is the month-over-month delta.
type ScoreComparison struct {
	Total     float64 `json:"total"`
	Delta     float64 `json:"delta"`
	PctChange float64 `json:"pct_change"`
}

// FinancialScore is the composite 0-1000 health score.
type FinancialScore struct {
	Total                   float64           `json:"total"`
	Band                    Band              `json:"band"`
	Factors                 []ScoreFactor     `json:"factors"`
	Trend                   ScoreTrend        `json:"trend"`
	ComparedToPreviousMonth ScoreComparison   `json:"compared_to_previous_month"`
	ImprovementTips         []string          `json:"improvement_tips"`
	Period                  timeseries.Period `json:"period"`
	ComputedAt              time.Time         `json:"computed_at"`
	Fallback                bool              `json:"fallback,omitempty"`
}
