// Package score computes the composite 0-1000 financial-health score from
// five weighted factors, bands it, and compares it with the previous month.
//
// The calculator never fails: every factor has an explicit value for the
// no-data case.
package score

import (
	"math"
	"time"

	"github.com/theirongolddev/fincast/internal/model"
	"github.com/theirongolddev/fincast/internal/pipeline"
	"github.com/theirongolddev/fincast/internal/timeseries"

	"gonum.org/v1/gonum/stat"
)

// Factor names.
const (
	FactorUtilization     = "Credit utilization"
	FactorDiversification = "Diversification"
	FactorConsistency     = "Payment consistency"
	FactorBudgetControl   = "Budget control"
	FactorPlanning        = "Financial planning"
)

// Weights per factor. They sum to 1.
var Weights = map[string]float64{
	FactorUtilization:     0.25,
	FactorDiversification: 0.15,
	FactorConsistency:     0.20,
	FactorBudgetControl:   0.25,
	FactorPlanning:        0.15,
}

// factorOrder fixes the presentation order.
var factorOrder = []string{
	FactorUtilization,
	FactorDiversification,
	FactorConsistency,
	FactorBudgetControl,
	FactorPlanning,
}

const (
	// MaxTotal is the top of the composite scale.
	MaxTotal = 1000

	neutralFactor    = 50
	stableDelta      = 20
	tipThreshold     = 60
	fallbackTotal    = 500
	defaultHistory   = 6
	minConsistencyPt = 2
)

// Config controls the lookback used for the consistency factor.
type Config struct {
	HistoryMonths int
}

// DefaultConfig returns a six-month lookback.
func DefaultConfig() Config {
	return Config{HistoryMonths: defaultHistory}
}

// Calculator computes scores.
type Calculator struct {
	cfg Config
	now func() time.Time
}

// New creates a calculator.
func New(cfg Config) *Calculator {
	if cfg.HistoryMonths < minConsistencyPt {
		cfg.HistoryMonths = defaultHistory
	}
	return &Calculator{cfg: cfg, now: time.Now}
}

// WithClock replaces the clock used to stamp outputs.
func (c *Calculator) WithClock(now func() time.Time) *Calculator {
	c.now = now
	return c
}

// Input is the aggregated view the calculator reads.
type Input struct {
	Accounts []pipeline.AccountSeries
	Records  []model.SpendRecord
}

// Calculate scores the reference month and compares it with the month
// before, computed with the same formula.
func (c *Calculator) Calculate(in Input, ref timeseries.Period) model.FinancialScore {
	factors := c.factors(in, ref)
	total := Total(factors)

	prev := Total(c.factors(c.shift(in, ref.AddMonths(-1)), ref.AddMonths(-1)))
	delta := total - prev
	var pct float64
	if prev > 0 {
		pct = delta / prev * 100
	}

	trend := model.ScoreStable
	switch {
	case delta >= stableDelta:
		trend = model.ScoreImproving
	case delta <= -stableDelta:
		trend = model.ScoreWorsening
	}

	return model.FinancialScore{
		Total:   total,
		Band:    BandOf(total),
		Factors: factors,
		Trend:   trend,
		ComparedToPreviousMonth: model.ScoreComparison{
			Total:     prev,
			Delta:     delta,
			PctChange: pct,
		},
		ImprovementTips: tipsFor(factors),
		Period:          ref,
		ComputedAt:      c.now(),
	}
}

// Fallback is the neutral score returned when inputs cannot be read. Every
// factor sits at 50, giving 500 and band "regular".
func Fallback(reason string, now time.Time) model.FinancialScore {
	factors := make([]model.ScoreFactor, 0, len(factorOrder))
	for _, name := range factorOrder {
		factors = append(factors, factor(name, neutralFactor, "Not enough data to evaluate."))
	}
	tip := "Your data could not be read, so this score is a neutral placeholder."
	if reason != "" {
		tip += " (" + reason + ")"
	}
	return model.FinancialScore{
		Total:           fallbackTotal,
		Band:            model.BandRegular,
		Factors:         factors,
		Trend:           model.ScoreStable,
		ImprovementTips: []string{tip},
		ComputedAt:      now,
		Fallback:        true,
	}
}

// Total is sum(value * weight * 10), clamped to [0, 1000].
func Total(factors []model.ScoreFactor) float64 {
	var t float64
	for _, f := range factors {
		t += f.Value * f.Weight * 10
	}
	return math.Max(0, math.Min(MaxTotal, t))
}

// BandOf maps a 0-1000 score to its band.
func BandOf(total float64) model.Band {
	switch {
	case total >= 800:
		return model.BandExcellent
	case total >= 700:
		return model.BandVeryGood
	case total >= 600:
		return model.BandGood
	case total >= 400:
		return model.BandRegular
	default:
		return model.BandBad
	}
}

// shift rebuilds the per-account current totals for another month so the
// comparison uses the same inputs the reference month would.
func (c *Calculator) shift(in Input, p timeseries.Period) Input {
	out := Input{Records: in.Records, Accounts: make([]pipeline.AccountSeries, len(in.Accounts))}
	for i, as := range in.Accounts {
		as.Current = as.Series.ValueAt(p)
		out.Accounts[i] = as
	}
	return out
}

func (c *Calculator) factors(in Input, ref timeseries.Period) []model.ScoreFactor {
	month := pipeline.Summarize(in.Records, ref)

	var spend, limits float64
	for _, as := range in.Accounts {
		spend += as.Current
		limits += as.Account.Limit()
	}
	var utilPct float64
	if limits > 0 {
		utilPct = spend / limits * 100
	}

	categories := 0
	for _, v := range month.Categories {
		if v > 0 {
			categories++
		}
	}

	return []model.ScoreFactor{
		factor(FactorUtilization, UtilizationScore(utilPct),
			"Share of total credit limits used this month; 10-30% is ideal."),
		factor(FactorDiversification, DiversificationScore(categories),
			"How many spending categories were used this month."),
		factor(FactorConsistency, ConsistencyScore(c.monthlyTotals(in.Records, ref)),
			"How steady monthly spend has been."),
		factor(FactorBudgetControl, BudgetControlScore(in.Accounts),
			"How far each account stays below its limit."),
		factor(FactorPlanning, PlanningScore(month.Total, month.InstallmentTotal, month.SharedTotal),
			"Use of installments and shared expenses to spread costs."),
	}
}

// monthlyTotals returns the trailing window ending at ref, starting no
// earlier than the first month with any spend.
func (c *Calculator) monthlyTotals(records []model.SpendRecord, ref timeseries.Period) []float64 {
	from := ref.AddMonths(-(c.cfg.HistoryMonths - 1))
	var first timeseries.Period
	for _, r := range records {
		p := timeseries.PeriodOf(r.Date)
		if p.After(ref) {
			continue
		}
		if first.IsZero() || p.Before(first) {
			first = p
		}
	}
	if first.IsZero() {
		return nil
	}
	if first.After(from) {
		from = first
	}
	return pipeline.MonthlyTotals(records, from, ref).Values()
}

func factor(name string, value float64, description string) model.ScoreFactor {
	value = math.Max(0, math.Min(100, value))
	return model.ScoreFactor{
		Name:        name,
		Value:       value,
		Weight:      Weights[name],
		Description: description,
		Band:        BandOf(value * 10),
	}
}

// UtilizationScore is bell-shaped: 100 inside [10%,30%], a mild penalty
// below, and a falling line above.
func UtilizationScore(pct float64) float64 {
	switch {
	case pct < 10:
		return 70 + pct*3
	case pct <= 30:
		return 100
	case pct <= 50:
		return 100 - (pct-30)*1.5
	default:
		return math.Max(0, 70-(pct-50)*2)
	}
}

// DiversificationScore rises linearly from 30 at one category to 100 at five.
func DiversificationScore(categories int) float64 {
	switch {
	case categories <= 0:
		return 0
	case categories >= 5:
		return 100
	default:
		return 30 + float64(categories-1)*17.5
	}
}

// ConsistencyScore is 100 minus the coefficient of variation in percent.
// Fewer than two months, or no spend at all, scores 50.
func ConsistencyScore(monthly []float64) float64 {
	if len(monthly) < minConsistencyPt {
		return neutralFactor
	}
	mean, std := stat.PopMeanStdDev(monthly, nil)
	if mean <= 0 {
		return neutralFactor
	}
	return 100 - math.Min(100, std/mean*100)
}

// BudgetControlScore averages a per-account step score on utilization.
// With no accounts it is 50.
func BudgetControlScore(accounts []pipeline.AccountSeries) float64 {
	var sum float64
	n := 0
	for _, as := range accounts {
		if as.Account.Limit() <= 0 {
			continue
		}
		u := as.Utilization()
		switch {
		case u <= 0.80:
			sum += 100
		case u <= 0.90:
			sum += 70
		case u <= 1.00:
			sum += 40
		}
		n++
	}
	if n == 0 {
		return neutralFactor
	}
	return sum / float64(n)
}

// PlanningScore is 50 plus up to 30 for installment share and up to 20 for
// shared-expense share of the month's spend.
func PlanningScore(total, installments, shared float64) float64 {
	if total <= 0 {
		return neutralFactor
	}
	v := neutralFactor + 30*installments/total + 20*shared/total
	return math.Min(100, v)
}

var tips = map[string]string{
	FactorUtilization:     "Keep monthly spend between 10% and 30% of your combined credit limits.",
	FactorDiversification: "Spread spending across categories instead of concentrating it in one or two.",
	FactorConsistency:     "Smooth out month-to-month swings by planning large purchases ahead.",
	FactorBudgetControl:   "Keep every account below 80% of its limit.",
	FactorPlanning:        "Use installment plans and shared expenses to spread large costs.",
}

func tipsFor(factors []model.ScoreFactor) []string {
	var out []string
	for _, f := range factors {
		if f.Value < tipThreshold {
			out = append(out, tips[f.Name])
		}
	}
	return out
}
