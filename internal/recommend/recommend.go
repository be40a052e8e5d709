// Package recommend produces time-boxed spending suggestions from the
// aggregated history. Each rule is evaluated independently; there is no
// cross-rule suppression.
package recommend

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/theirongolddev/fincast/internal/model"
	"github.com/theirongolddev/fincast/internal/pipeline"
	"github.com/theirongolddev/fincast/internal/timeseries"

	"github.com/google/uuid"
)

// Rule identifiers, used as the first segment of recommendation keys.
const (
	RuleUnderused     = "underused_accounts"
	RuleConcentration = "category_concentration"
)

// Fixed relevance scores and validity windows per rule.
const (
	underusedScore        = 60
	underusedValidityDays = 30
	concentrationScore    = 75
	concentrationValidity = 15
)

// Config holds the heuristic thresholds.
type Config struct {
	WindowMonths  int     // trailing window for the underuse rule
	UnderuseRatio float64 // average monthly spend / limit below this is underused
	CategoryCut   float64 // share of the top category suggested as a cut
}

// DefaultConfig returns the standard heuristics.
func DefaultConfig() Config {
	return Config{
		WindowMonths:  3,
		UnderuseRatio: 0.10,
		CategoryCut:   0.20,
	}
}

// Engine evaluates recommendation rules.
type Engine struct {
	cfg   Config
	now   func() time.Time
	newID func() string
}

// New creates a recommendation engine.
func New(cfg Config) *Engine {
	if cfg.WindowMonths < 1 {
		cfg.WindowMonths = DefaultConfig().WindowMonths
	}
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

// Evaluate runs both rules for the reference month.
func (e *Engine) Evaluate(accounts []pipeline.AccountSeries, records []model.SpendRecord, ref timeseries.Period) []model.Recommendation {
	var out []model.Recommendation
	if r, ok := e.underused(accounts, ref); ok {
		out = append(out, r)
	}
	if r, ok := e.concentration(records, ref); ok {
		out = append(out, r)
	}

	now := e.now()
	for i := range out {
		out[i].ID = e.newID()
		out[i].GeneratedAt = now
	}
	return out
}

func (e *Engine) underused(accounts []pipeline.AccountSeries, ref timeseries.Period) (model.Recommendation, bool) {
	from := ref.AddMonths(-(e.cfg.WindowMonths - 1))

	var affected, names []string
	for _, as := range accounts {
		limit := as.Account.Limit()
		if limit <= 0 {
			continue
		}
		var sum float64
		for _, p := range as.Series {
			if !p.Period.Before(from) && !p.Period.After(ref) {
				sum += p.Value
			}
		}
		avg := sum / float64(e.cfg.WindowMonths)
		if avg/limit >= e.cfg.UnderuseRatio {
			continue
		}
		affected = append(affected, as.Account.ID)
		names = append(names, as.Account.DisplayName())
	}
	if len(affected) == 0 {
		return model.Recommendation{}, false
	}

	return model.Recommendation{
		Key:      fmt.Sprintf("%s/%s", RuleUnderused, ref),
		Category: "optimization",
		Title:    "Optimize card usage",
		Description: fmt.Sprintf("%s averaged under %.0f%% of the credit limit over the last %d months. "+
			"Consolidating spend on fewer accounts makes limits and due dates easier to track.",
			strings.Join(names, ", "), e.cfg.UnderuseRatio*100, e.cfg.WindowMonths),
		EstimatedImpact:  0,
		Difficulty:       model.DifficultyEasy,
		AffectedAccounts: affected,
		ValidityDays:     underusedValidityDays,
		Score:            underusedScore,
		Steps: []string{
			"Check for annual fees on the listed accounts",
			"Move recurring charges to your primary account",
			"Consider closing or downgrading accounts you no longer need",
		},
		Tags: []string{"optimization", "accounts"},
	}, true
}

func (e *Engine) concentration(records []model.SpendRecord, ref timeseries.Period) (model.Recommendation, bool) {
	cats := pipeline.AggregateCategories(records, ref)
	if len(cats) == 0 || cats[0].Total <= 0 {
		return model.Recommendation{}, false
	}
	top := cats[0]
	impact := top.Total * e.cfg.CategoryCut

	return model.Recommendation{
		Key:      fmt.Sprintf("%s/%s/%s", RuleConcentration, top.Category, ref),
		Category: "spending",
		Title:    fmt.Sprintf("Reduce spend in %s", top.Category),
		Description: fmt.Sprintf("%s was your largest category in %s at %.2f (%.0f%% of spend). "+
			"Cutting it by %.0f%% would save about %.2f a month.",
			top.Category, ref, top.Total, top.SharePercent, e.cfg.CategoryCut*100, impact),
		EstimatedImpact:  impact,
		Difficulty:       model.DifficultyMedium,
		AffectedAccounts: append([]string(nil), top.Accounts...),
		ValidityDays:     concentrationValidity,
		Score:            concentrationScore,
		Steps: []string{
			fmt.Sprintf("Set a monthly cap for %s", top.Category),
			"Review the largest charges in this category",
			"Look for cheaper alternatives for recurring items",
		},
		Tags: []string{"spending", top.Category},
	}, true
}

// Merge appends fresh recommendations to prev. A recommendation whose key
// already exists keeps its id, generation time and applied flag, so its
// validity window is not restarted by later cycles.
func Merge(prev, fresh []model.Recommendation) []model.Recommendation {
	out := make([]model.Recommendation, len(prev), len(prev)+len(fresh))
	copy(out, prev)

	idx := make(map[string]int, len(out))
	for i, r := range out {
		idx[r.Key] = i
	}
	for _, r := range fresh {
		if _, ok := idx[r.Key]; ok {
			continue
		}
		idx[r.Key] = len(out)
		out = append(out, r)
	}
	return out
}

// Active returns the recommendations still inside their validity window at
// now, highest score first. Applied recommendations are included.
func Active(recs []model.Recommendation, now time.Time) []model.Recommendation {
	var out []model.Recommendation
	for _, r := range recs {
		if r.Valid(now) {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}
