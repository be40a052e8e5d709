package alerts

import (
	"fmt"
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

func testEngine() *Engine {
	e := New(DefaultConfig())
	n := 0
	e.newID = func() string {
		n++
		return fmt.Sprintf("alert-%d", n)
	}
	e.now = func() time.Time { return time.Date(2025, 4, 20, 0, 0, 0, 0, time.UTC) }
	return e
}

func account(id string, limit int64, values ...float64) pipeline.AccountSeries {
	s := make(timeseries.Series, len(values))
	for i, v := range values {
		s[i] = timeseries.Point{Period: jan2025.AddMonths(i), Value: v}
	}
	return pipeline.AccountSeries{
		Account: model.Account{ID: id, CreditLimit: decimal.NewFromInt(limit)},
		Series:  s,
		Current: s.Last().Value,
	}
}

func kinds(alerts []model.Alert) []model.AlertKind {
	out := make([]model.AlertKind, len(alerts))
	for i, a := range alerts {
		out[i] = a.Kind
	}
	return out
}

func TestEvaluate_ScenarioRaisesNothing(t *testing.T) {
	ref := jan2025.AddMonths(3)
	as := account("visa", 50000, 10000, 12000, 15000, 11000)
	preds := []model.Prediction{{AccountID: "visa", Period: ref.AddMonths(1), PredictedAmount: 12251}}

	got := testEngine().Evaluate([]pipeline.AccountSeries{as}, preds, ref)
	assert.Empty(t, got)
}

func TestEvaluate_LimitProximity(t *testing.T) {
	ref := jan2025.AddMonths(2)
	cases := []struct {
		name     string
		current  float64
		want     bool
		priority model.Priority
	}{
		{"exactly 80%", 800, false, ""},
		{"above 80%", 850, true, model.PriorityMedium},
		{"exactly 95%", 950, true, model.PriorityMedium},
		{"above 95%", 990, true, model.PriorityHigh},
		{"over limit", 1200, true, model.PriorityHigh},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			// Steady history so the unusual-spend rule only fires when it must.
			as := account("visa", 1000, tc.current, tc.current, tc.current)
			got := testEngine().Evaluate([]pipeline.AccountSeries{as}, nil, ref)
			if !tc.want {
				assert.Empty(t, got)
				return
			}
			require.Len(t, got, 1)
			assert.Equal(t, model.AlertLimitNear, got[0].Kind)
			assert.Equal(t, tc.priority, got[0].Priority)
			assert.Equal(t, "visa", got[0].AccountID)
			assert.Equal(t, fmt.Sprintf("limit_near/%s/visa/2025-03", tc.priority), got[0].Key)
			assert.NotEmpty(t, got[0].RecommendedAction)
		})
	}
}

func TestEvaluate_UnusualSpend(t *testing.T) {
	ref := jan2025.AddMonths(3)
	as := account("visa", 100000, 1000, 1000, 1000, 2000)

	got := testEngine().Evaluate([]pipeline.AccountSeries{as}, nil, ref)
	require.Len(t, got, 1)
	a := got[0]
	assert.Equal(t, model.AlertUnusualSpend, a.Kind)
	assert.Equal(t, model.PriorityMedium, a.Priority)
	require.NotNil(t, a.AmountInvolved)
	assert.InDelta(t, 1000, *a.AmountInvolved, 1e-9)

	// 1.5x the average exactly is not unusual.
	edge := account("visa", 100000, 1000, 1000, 1000, 1500)
	assert.Empty(t, testEngine().Evaluate([]pipeline.AccountSeries{edge}, nil, ref))

	// No history, no baseline.
	first := account("visa", 100000, 5000)
	assert.Empty(t, testEngine().Evaluate([]pipeline.AccountSeries{first}, nil, jan2025))
}

func TestEvaluate_RiskyForecast(t *testing.T) {
	ref := jan2025.AddMonths(2)
	as := account("visa", 1000, 100, 100, 100)
	preds := []model.Prediction{
		{AccountID: "visa", Period: ref.AddMonths(1), PredictedAmount: 950, Confidence: 70},
		{AccountID: "visa", Period: ref.AddMonths(2), PredictedAmount: 5000},  // not next month
		{AccountID: "amex", Period: ref.AddMonths(1), PredictedAmount: 99999}, // unknown account
	}

	got := testEngine().Evaluate([]pipeline.AccountSeries{as}, preds, ref)
	require.Len(t, got, 1)
	assert.Equal(t, model.AlertForecastRisk, got[0].Kind)
	assert.Equal(t, model.PriorityHigh, got[0].Priority)
	assert.Equal(t, ref.AddMonths(1), got[0].Period)
	require.NotNil(t, got[0].AmountInvolved)
	assert.Equal(t, 950.0, *got[0].AmountInvolved)

	preds[0].PredictedAmount = 900
	assert.Empty(t, testEngine().Evaluate([]pipeline.AccountSeries{as}, preds, ref))
}

func TestEvaluate_AllRulesAtOnce(t *testing.T) {
	ref := jan2025.AddMonths(2)
	as := account("visa", 1000, 300, 300, 990)
	preds := []model.Prediction{{AccountID: "visa", Period: ref.AddMonths(1), PredictedAmount: 1100}}

	got := testEngine().Evaluate([]pipeline.AccountSeries{as}, preds, ref)
	assert.Equal(t, []model.AlertKind{model.AlertLimitNear, model.AlertUnusualSpend, model.AlertForecastRisk}, kinds(got))
	for i, a := range got {
		assert.Equal(t, fmt.Sprintf("alert-%d", i+1), a.ID)
		assert.False(t, a.GeneratedAt.IsZero())
		assert.False(t, a.Read)
	}
}

func TestMerge_AccumulatesAndKeepsExisting(t *testing.T) {
	t0 := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
	prev := []model.Alert{
		{ID: "a", Key: "limit_near/medium/visa/2025-04", Priority: model.PriorityMedium, Message: "85%", GeneratedAt: t0, Read: true},
		{ID: "b", Key: "unusual_spend/medium/visa/2025-03", GeneratedAt: t0},
	}
	fresh := []model.Alert{
		{ID: "x", Key: "limit_near/medium/visa/2025-04", Priority: model.PriorityMedium, Message: "90%", GeneratedAt: t0.Add(time.Hour)},
		{ID: "y", Key: "forecast_risk/high/visa/2025-05", GeneratedAt: t0.Add(time.Hour)},
	}

	got := Merge(prev, fresh)
	require.Len(t, got, 3)

	assert.Equal(t, prev[0], got[0])
	assert.Equal(t, "b", got[1].ID)
	assert.Equal(t, "y", got[2].ID)
}

func TestMerge_EscalationIsANewUnreadAlert(t *testing.T) {
	ref := jan2025.AddMonths(2)
	e := testEngine()

	first := e.Evaluate([]pipeline.AccountSeries{account("visa", 1000, 850, 850, 850)}, nil, ref)
	require.Len(t, first, 1)
	stored := Merge(nil, first)
	stored[0].Read = true

	second := e.Evaluate([]pipeline.AccountSeries{account("visa", 1000, 850, 850, 990)}, nil, ref)
	require.Len(t, second, 1)
	require.Equal(t, model.PriorityHigh, second[0].Priority)

	got := Merge(stored, second)
	require.Len(t, got, 2)
	assert.Equal(t, model.PriorityMedium, got[0].Priority)
	assert.True(t, got[0].Read)
	assert.Equal(t, model.PriorityHigh, got[1].Priority)
	assert.False(t, got[1].Read)
	assert.NotEqual(t, got[0].ID, got[1].ID)

	// The same escalated state again adds nothing.
	assert.Len(t, Merge(got, second), 2)
}
