package model

import (
	"time"

	"github.com/theirongolddev/fincast/internal/timeseries"
)

// AlertKind identifies the rule that produced an alert.
type AlertKind string

const (
	AlertLimitNear    AlertKind = "limit_near"
	AlertUnusualSpend AlertKind = "unusual_spend"
	AlertForecastRisk AlertKind = "forecast_risk"
)

// Priority orders alerts and recommendations for display.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Rank returns a sortable weight, higher first.
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	}
	return 0
}

// Alert is a proactive warning. Only Read changes after creation.
type Alert struct {
	ID                string            `json:"id"`
	Key               string            `json:"key"` // rule identity: kind/priority/account/period
	Kind              AlertKind         `json:"kind"`
	Priority          Priority          `json:"priority"`
	Title             string            `json:"title"`
	Message           string            `json:"message"`
	AccountID         string            `json:"account_id,omitempty"`
	AmountInvolved    *float64          `json:"amount_involved,omitempty"`
	Period            timeseries.Period `json:"period"`
	GeneratedAt       time.Time         `json:"generated_at"`
	Read              bool              `json:"read"`
	RecommendedAction string            `json:"recommended_action"`
}
