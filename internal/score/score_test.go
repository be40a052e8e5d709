package score

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

func spend(account string, p timeseries.Period, amount float64, category string) model.SpendRecord {
	return model.SpendRecord{
		AccountID: account,
		Date:      p.Start().AddDate(0, 0, 9),
		Amount:    decimal.NewFromFloat(amount),
		Category:  category,
	}
}

// scenario builds one 50,000-limit account with monthly totals
// 10000, 12000, 15000, 11000 spread across a few categories.
func scenario() (Input, timeseries.Period) {
	snap := model.Snapshot{
		Accounts: []model.Account{{ID: "visa", CreditLimit: decimal.NewFromInt(50000)}},
	}
	cats := []string{"food", "travel", "home", "fun", "health"}
	for i, total := range []float64{10000, 12000, 15000, 11000} {
		p := jan2025.AddMonths(i)
		for _, c := range cats {
			snap.Records = append(snap.Records, spend("visa", p, total/float64(len(cats)), c))
		}
	}
	ref := jan2025.AddMonths(3)
	return Input{Accounts: pipeline.Aggregate(snap, ref), Records: snap.Records}, ref
}

func factorByName(t *testing.T, s model.FinancialScore, name string) model.ScoreFactor {
	t.Helper()
	for _, f := range s.Factors {
		if f.Name == name {
			return f
		}
	}
	t.Fatalf("factor %q missing", name)
	return model.ScoreFactor{}
}

func TestWeightsSumToOne(t *testing.T) {
	var sum float64
	for _, w := range Weights {
		assert.Greater(t, w, 0.0)
		assert.LessOrEqual(t, w, 1.0)
		sum += w
	}
	assert.InDelta(t, 1.0, sum, 1e-12)
	assert.Len(t, Weights, len(factorOrder))
}

func TestUtilizationScore(t *testing.T) {
	assert.Equal(t, 100.0, UtilizationScore(20))
	assert.Equal(t, 100.0, UtilizationScore(10))
	assert.Equal(t, 100.0, UtilizationScore(30))
	assert.InDelta(t, 85, UtilizationScore(5), 1e-9)
	assert.InDelta(t, 70, UtilizationScore(0), 1e-9)
	assert.InDelta(t, 85, UtilizationScore(40), 1e-9)
	assert.InDelta(t, 70, UtilizationScore(50), 1e-9)
	assert.InDelta(t, 50, UtilizationScore(60), 1e-9)
	assert.Equal(t, 0.0, UtilizationScore(200))
}

func TestDiversificationScore(t *testing.T) {
	assert.Equal(t, 0.0, DiversificationScore(0))
	assert.Equal(t, 30.0, DiversificationScore(1))
	assert.Equal(t, 47.5, DiversificationScore(2))
	assert.Equal(t, 82.5, DiversificationScore(4))
	assert.Equal(t, 100.0, DiversificationScore(5))
	assert.Equal(t, 100.0, DiversificationScore(12))
}

func TestConsistencyScore(t *testing.T) {
	assert.Equal(t, 50.0, ConsistencyScore(nil))
	assert.Equal(t, 50.0, ConsistencyScore([]float64{1000}))
	assert.Equal(t, 50.0, ConsistencyScore([]float64{0, 0}))
	assert.Equal(t, 100.0, ConsistencyScore([]float64{500, 500, 500}))
	// mean 100, population stdev 100: CV of 100% floors the score.
	assert.Equal(t, 0.0, ConsistencyScore([]float64{0, 200}))
	assert.InDelta(t, 90, ConsistencyScore([]float64{90, 110}), 1e-9)
}

func TestBudgetControlScore(t *testing.T) {
	acct := func(limit int64, current float64) pipeline.AccountSeries {
		return pipeline.AccountSeries{
			Account: model.Account{CreditLimit: decimal.NewFromInt(limit)},
			Current: current,
		}
	}
	assert.Equal(t, 50.0, BudgetControlScore(nil))
	assert.Equal(t, 100.0, BudgetControlScore([]pipeline.AccountSeries{acct(1000, 800)}))
	assert.Equal(t, 70.0, BudgetControlScore([]pipeline.AccountSeries{acct(1000, 900)}))
	assert.Equal(t, 40.0, BudgetControlScore([]pipeline.AccountSeries{acct(1000, 1000)}))
	assert.Equal(t, 0.0, BudgetControlScore([]pipeline.AccountSeries{acct(1000, 1001)}))
	assert.Equal(t, 50.0, BudgetControlScore([]pipeline.AccountSeries{acct(1000, 0), acct(1000, 2000)}))
}

func TestPlanningScore(t *testing.T) {
	assert.Equal(t, 50.0, PlanningScore(0, 0, 0))
	assert.Equal(t, 50.0, PlanningScore(100, 0, 0))
	assert.Equal(t, 100.0, PlanningScore(100, 100, 100))
	assert.InDelta(t, 75, PlanningScore(100, 50, 50), 1e-9)
}

func TestBandOf(t *testing.T) {
	assert.Equal(t, model.BandExcellent, BandOf(800))
	assert.Equal(t, model.BandVeryGood, BandOf(799.9))
	assert.Equal(t, model.BandVeryGood, BandOf(700))
	assert.Equal(t, model.BandGood, BandOf(600))
	assert.Equal(t, model.BandRegular, BandOf(400))
	assert.Equal(t, model.BandBad, BandOf(399.9))
}

func TestCalculate_Scenario(t *testing.T) {
	in, ref := scenario()
	s := New(DefaultConfig()).Calculate(in, ref)

	require.Len(t, s.Factors, 5)
	assert.Equal(t, 100.0, factorByName(t, s, FactorBudgetControl).Value)
	assert.Equal(t, 100.0, factorByName(t, s, FactorUtilization).Value) // 22% used
	assert.Equal(t, 100.0, factorByName(t, s, FactorDiversification).Value)
	assert.Equal(t, 50.0, factorByName(t, s, FactorPlanning).Value)

	consistency := factorByName(t, s, FactorConsistency).Value
	assert.Greater(t, consistency, 80.0)
	assert.Less(t, consistency, 100.0)

	assert.GreaterOrEqual(t, s.Total, 0.0)
	assert.LessOrEqual(t, s.Total, 1000.0)
	assert.Equal(t, BandOf(s.Total), s.Band)
	assert.Equal(t, ref, s.Period)
	assert.Contains(t, s.ImprovementTips, tips[FactorPlanning])
	assert.False(t, s.Fallback)
}

func TestCalculate_MonthOverMonth(t *testing.T) {
	snap := model.Snapshot{Accounts: []model.Account{{ID: "visa", CreditLimit: decimal.NewFromInt(1000)}}}
	feb := jan2025.AddMonths(1)
	snap.Records = []model.SpendRecord{
		spend("visa", jan2025, 990, "food"), // 99% of the limit
		spend("visa", feb, 200, "food"),
		spend("visa", feb, 10, "travel"),
	}

	s := New(DefaultConfig()).Calculate(Input{Accounts: pipeline.Aggregate(snap, feb), Records: snap.Records}, feb)
	assert.Greater(t, s.ComparedToPreviousMonth.Delta, 20.0)
	assert.Equal(t, model.ScoreImproving, s.Trend)
	assert.InDelta(t, s.Total-s.ComparedToPreviousMonth.Total, s.ComparedToPreviousMonth.Delta, 1e-9)
	assert.InDelta(t, s.ComparedToPreviousMonth.Delta/s.ComparedToPreviousMonth.Total*100, s.ComparedToPreviousMonth.PctChange, 1e-9)
}

func TestCalculate_EmptyInputIsComplete(t *testing.T) {
	s := New(DefaultConfig()).Calculate(Input{}, jan2025)
	require.Len(t, s.Factors, 5)
	assert.GreaterOrEqual(t, s.Total, 0.0)
	assert.LessOrEqual(t, s.Total, 1000.0)
	assert.NotEmpty(t, s.Band)
	assert.Equal(t, model.ScoreStable, s.Trend)
}

func TestFallback(t *testing.T) {
	now := time.Now()
	s := Fallback("database locked", now)
	assert.Equal(t, 500.0, s.Total)
	assert.Equal(t, model.BandRegular, s.Band)
	assert.True(t, s.Fallback)
	assert.InDelta(t, 500, Total(s.Factors), 1e-9)
	require.Len(t, s.ImprovementTips, 1)
	assert.Contains(t, s.ImprovementTips[0], "database locked")
}
