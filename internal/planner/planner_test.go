package planner

import (
	"testing"
	"time"

	"github.com/theirongolddev/fincast/internal/model"
	"github.com/theirongolddev/fincast/internal/pipeline"
	"github.com/theirongolddev/fincast/internal/timeseries"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var jan2025 = timeseries.Period{Year: 2025, Month: time.January}

func account(id string, limit int64, values ...float64) pipeline.AccountSeries {
	s := make(timeseries.Series, len(values))
	for i, v := range values {
		s[i] = timeseries.Point{Period: jan2025.AddMonths(i), Value: v}
	}
	as := pipeline.AccountSeries{
		Account: model.Account{ID: id, CreditLimit: decimal.NewFromInt(limit)},
		Series:  s,
	}
	if len(s) > 0 {
		as.Current = s.Last().Value
	}
	return as
}

func TestPlan_ScenarioHorizon(t *testing.T) {
	p := New(DefaultConfig())
	ref := jan2025.AddMonths(3) // April, the last observed month

	plan := p.Plan([]pipeline.AccountSeries{account("visa", 50000, 10000, 12000, 15000, 11000)}, ref)
	require.Len(t, plan.Predictions, 3)
	assert.Empty(t, plan.Skipped)

	for i, pred := range plan.Predictions {
		assert.Equal(t, "visa", pred.AccountID)
		assert.Equal(t, ref.AddMonths(i+1), pred.Period)
		assert.Equal(t, i+1, pred.PeriodsAhead)
		assert.GreaterOrEqual(t, pred.PredictedAmount, 0.0)
		assert.GreaterOrEqual(t, pred.Confidence, 0.0)
		assert.LessOrEqual(t, pred.Confidence, 100.0)
		assert.Equal(t, AlgorithmHybrid, pred.Algorithm)
		assert.False(t, pred.GeneratedAt.IsZero())
	}

	next := plan.Predictions[0]
	assert.GreaterOrEqual(t, next.PredictedAmount, 9000.0)
	assert.LessOrEqual(t, next.PredictedAmount, 17000.0)
	assert.Greater(t, next.Confidence, 20.0)
}

func TestPlan_SkipsShortHistory(t *testing.T) {
	p := New(DefaultConfig())
	ref := jan2025.AddMonths(3)

	plan := p.Plan([]pipeline.AccountSeries{
		account("short", 1000, 100, 200),
		account("empty", 1000),
		account("ok", 1000, 100, 110, 120, 130),
	}, ref)

	assert.Equal(t, []string{"short", "empty"}, plan.Skipped)
	require.Len(t, plan.Predictions, 3)
	for _, pred := range plan.Predictions {
		assert.Equal(t, "ok", pred.AccountID)
	}
}

func TestPlan_IgnoresMonthsAfterReference(t *testing.T) {
	p := New(Config{Horizon: 1})
	ref := jan2025.AddMonths(2) // March

	plan := p.Plan([]pipeline.AccountSeries{account("visa", 1000, 100, 100, 100, 9000)}, ref)
	require.Len(t, plan.Predictions, 1)
	assert.Equal(t, ref.AddMonths(1), plan.Predictions[0].Period)
	assert.InDelta(t, 100, plan.Predictions[0].PredictedAmount, 1e-6)
	assert.Equal(t, model.TrendStable, plan.Predictions[0].Trend)
}

func TestPlan_GapBeforeReference(t *testing.T) {
	p := New(Config{Horizon: 1})
	// Last spend in March, reference month June: next month is four months
	// past the last observation.
	plan := p.Plan([]pipeline.AccountSeries{account("visa", 1000, 100, 200, 300)}, jan2025.AddMonths(5))
	require.Len(t, plan.Predictions, 1)
	assert.Equal(t, jan2025.AddMonths(6), plan.Predictions[0].Period)
	assert.Equal(t, 1, plan.Predictions[0].PeriodsAhead)
}

func TestPlan_Factors(t *testing.T) {
	p := New(Config{Horizon: 1})
	ref := jan2025.AddMonths(4)

	as := account("visa", 5000, 100, 100, 100, 100, 1000)
	as.InstallmentRatio = 0.45
	as.SharedRatio = 0.25
	plan := p.Plan([]pipeline.AccountSeries{as}, ref)
	require.Len(t, plan.Predictions, 1)

	f := plan.Predictions[0].Factors
	assert.Contains(t, f, FactorHeavyInstallments)
	assert.Contains(t, f, FactorSharedExpenses)
	assert.Contains(t, f, FactorRecentAnomaly)

	quiet := account("amex", 5000, 100, 110, 120, 130)
	quiet.InstallmentRatio = 0.30
	quiet.SharedRatio = 0.20
	plan = p.Plan([]pipeline.AccountSeries{quiet}, jan2025.AddMonths(3))
	require.Len(t, plan.Predictions, 1)
	assert.Empty(t, plan.Predictions[0].Factors)
}

func TestPlan_RisingTrend(t *testing.T) {
	p := New(Config{Horizon: 1})
	plan := p.Plan([]pipeline.AccountSeries{account("visa", 5000, 100, 200, 300, 400, 500, 600)}, jan2025.AddMonths(5))
	require.Len(t, plan.Predictions, 1)
	assert.Equal(t, model.TrendRising, plan.Predictions[0].Trend)
	assert.Greater(t, plan.Predictions[0].ExpectedVariationPct, 5.0)
}

func TestPlan_ManyAccountsKeepOrder(t *testing.T) {
	p := New(Config{Horizon: 2, Workers: 3})
	var accounts []pipeline.AccountSeries
	for i := 0; i < 20; i++ {
		accounts = append(accounts, account(string(rune('a'+i)), 1000, 10, 20, 30))
	}
	plan := p.Plan(accounts, jan2025.AddMonths(2))
	require.Len(t, plan.Predictions, 40)
	for i := range accounts {
		assert.Equal(t, accounts[i].Account.ID, plan.Predictions[2*i].AccountID)
		assert.Equal(t, accounts[i].Account.ID, plan.Predictions[2*i+1].AccountID)
	}
}

func TestTrendOf(t *testing.T) {
	assert.Equal(t, model.TrendRising, trendOf(5.1))
	assert.Equal(t, model.TrendFalling, trendOf(-5.1))
	assert.Equal(t, model.TrendStable, trendOf(5))
	assert.Equal(t, model.TrendStable, trendOf(-5))
}
