// Package alerts evaluates the proactive warning rules: credit-limit
// proximity, unusual spend against the account's own history, and a risky
// forecast for the coming month.
package alerts

import (
	"fmt"
	"time"

	"github.com/theirongolddev/fincast/internal/model"
	"github.com/theirongolddev/fincast/internal/pipeline"
	"github.com/theirongolddev/fincast/internal/timeseries"

	"github.com/google/uuid"
)

// Config holds the rule thresholds. Ratios are fractions of the credit limit.
type Config struct {
	LimitNear     float64
	LimitCritical float64
	UnusualFactor float64
	ForecastRisk  float64
}

// DefaultConfig returns the standard thresholds.
func DefaultConfig() Config {
	return Config{
		LimitNear:     0.80,
		LimitCritical: 0.95,
		UnusualFactor: 1.5,
		ForecastRisk:  0.90,
	}
}

// Engine evaluates alert rules. It is stateless apart from its clock and id
// source, which tests replace.
type Engine struct {
	cfg   Config
	now   func() time.Time
	newID func() string
}

// New creates an alert engine.
func New(cfg Config) *Engine {
	return &Engine{
		cfg:   cfg,
		now:   time.Now,
		newID: func() string { return uuid.NewString() },
	}
}

// WithClock replaces the clock used to stamp outputs.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// Evaluate runs every rule for every account against the reference month.
// predictions may be nil; the forecast rule then stays silent.
func (e *Engine) Evaluate(accounts []pipeline.AccountSeries, predictions []model.Prediction, ref timeseries.Period) []model.Alert {
	now := e.now()
	next := ref.AddMonths(1)

	nextByAccount := make(map[string]model.Prediction)
	for _, p := range predictions {
		if p.Period == next {
			nextByAccount[p.AccountID] = p
		}
	}

	var out []model.Alert
	for _, as := range accounts {
		if a, ok := e.limitProximity(as, ref); ok {
			out = append(out, a)
		}
		if a, ok := e.unusualSpend(as, ref); ok {
			out = append(out, a)
		}
		if p, ok := nextByAccount[as.Account.ID]; ok {
			if a, ok := e.riskyForecast(as, p); ok {
				out = append(out, a)
			}
		}
	}

	for i := range out {
		out[i].ID = e.newID()
		out[i].GeneratedAt = now
	}
	return out
}

func (e *Engine) limitProximity(as pipeline.AccountSeries, ref timeseries.Period) (model.Alert, bool) {
	util := as.Utilization()
	if util <= e.cfg.LimitNear {
		return model.Alert{}, false
	}
	priority := model.PriorityMedium
	if util > e.cfg.LimitCritical {
		priority = model.PriorityHigh
	}
	name := as.Account.DisplayName()
	return model.Alert{
		Key:       Key(model.AlertLimitNear, priority, as.Account.ID, ref),
		Kind:      model.AlertLimitNear,
		Priority:  priority,
		Title:     fmt.Sprintf("%s is near its credit limit", name),
		Message:   fmt.Sprintf("%s has used %.0f%% of its limit in %s.", name, util*100, ref),
		AccountID: as.Account.ID,
		Period:    ref,
		RecommendedAction: "Hold off on new purchases with this account until the " +
			"statement closes, or move spend to an account with more headroom.",
	}, true
}

func (e *Engine) unusualSpend(as pipeline.AccountSeries, ref timeseries.Period) (model.Alert, bool) {
	hist := as.History(ref)
	if len(hist) == 0 {
		return model.Alert{}, false
	}
	var sum float64
	for _, p := range hist {
		sum += p.Value
	}
	avg := sum / float64(len(hist))
	if avg <= 0 || as.Current <= e.cfg.UnusualFactor*avg {
		return model.Alert{}, false
	}

	excess := as.Current - avg
	name := as.Account.DisplayName()
	return model.Alert{
		Key:            Key(model.AlertUnusualSpend, model.PriorityMedium, as.Account.ID, ref),
		Kind:           model.AlertUnusualSpend,
		Priority:       model.PriorityMedium,
		Title:          fmt.Sprintf("Unusual spend on %s", name),
		Message:        fmt.Sprintf("Spend in %s is %.2f, %.0f%% above the monthly average of %.2f.", ref, as.Current, excess/avg*100, avg),
		AccountID:      as.Account.ID,
		AmountInvolved: &excess,
		Period:         ref,
		RecommendedAction: "Review this month's charges for anything unexpected " +
			"and check whether one-off purchases can be deferred.",
	}, true
}

func (e *Engine) riskyForecast(as pipeline.AccountSeries, p model.Prediction) (model.Alert, bool) {
	limit := as.Account.Limit()
	if limit <= 0 || p.PredictedAmount <= e.cfg.ForecastRisk*limit {
		return model.Alert{}, false
	}
	amount := p.PredictedAmount
	name := as.Account.DisplayName()
	return model.Alert{
		Key:            Key(model.AlertForecastRisk, model.PriorityHigh, as.Account.ID, p.Period),
		Kind:           model.AlertForecastRisk,
		Priority:       model.PriorityHigh,
		Title:          fmt.Sprintf("%s is forecast to approach its limit", name),
		Message:        fmt.Sprintf("Projected spend for %s is %.2f, %.0f%% of the limit (confidence %.0f%%).", p.Period, amount, amount/limit*100, p.Confidence),
		AccountID:      as.Account.ID,
		AmountInvolved: &amount,
		Period:         p.Period,
		RecommendedAction: "Plan next month's larger purchases across other accounts " +
			"or bring them forward to a lower-spend month.",
	}, true
}

// Key is the rule identity of an alert: one alert per rule, priority, account
// and month. An escalation to a higher priority is a new alert.
func Key(kind model.AlertKind, priority model.Priority, accountID string, p timeseries.Period) string {
	return fmt.Sprintf("%s/%s/%s/%s", kind, priority, accountID, p)
}

// Merge appends fresh alerts to prev. An alert whose key already exists is
// left as it is, read flag included.
func Merge(prev, fresh []model.Alert) []model.Alert {
	out := make([]model.Alert, len(prev), len(prev)+len(fresh))
	copy(out, prev)

	seen := make(map[string]struct{}, len(out)+len(fresh))
	for _, a := range out {
		seen[a.Key] = struct{}{}
	}
	for _, a := range fresh {
		if _, ok := seen[a.Key]; ok {
			continue
		}
		seen[a.Key] = struct{}{}
		out = append(out, a)
	}
	return out
}
