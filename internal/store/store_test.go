package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/theirongolddev/fincast/internal/model"
	"github.com/theirongolddev/fincast/internal/timeseries"

	"github.com/shopspring/decimal"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "fincast.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func record(id, account, date, amount string) model.SpendRecord {
	d, _ := time.Parse("2006-01-02", date)
	return model.SpendRecord{
		ID:        id,
		AccountID: account,
		Date:      d,
		Amount:    decimal.RequireFromString(amount),
		Category:  "food",
	}
}

func TestSaveFeed_SnapshotRoundTrip(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()

	accounts := []model.Account{{
		ID:          "visa",
		Name:        "Visa",
		CreditLimit: decimal.RequireFromString("50000"),
		Metadata:    map[string]string{"issuer": "bank"},
	}}
	r := record("r1", "visa", "2025-03-14", "120.50")
	r.Installment = true
	records := []model.SpendRecord{r, record("r2", "visa", "2025-04-01", "80")}

	if err := s.SaveFeed("/feeds/a.jsonl", accounts, records, 100, 200); err != nil {
		t.Fatalf("SaveFeed: %v", err)
	}

	snap, err := s.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if len(snap.Accounts) != 1 || snap.Accounts[0].Metadata["issuer"] != "bank" {
		t.Fatalf("Accounts = %+v", snap.Accounts)
	}
	if !snap.Accounts[0].CreditLimit.Equal(decimal.NewFromInt(50000)) {
		t.Errorf("CreditLimit = %s, want 50000", snap.Accounts[0].CreditLimit)
	}
	if len(snap.Records) != 2 {
		t.Fatalf("Records = %d, want 2", len(snap.Records))
	}
	got := snap.Records[0]
	if got.ID != "r1" || !got.Amount.Equal(decimal.RequireFromString("120.5")) || !got.Installment {
		t.Errorf("Records[0] = %+v", got)
	}

	tracked, err := s.GetTrackedFiles()
	if err != nil {
		t.Fatal(err)
	}
	if fi := tracked["/feeds/a.jsonl"]; fi.MtimeNs != 100 || fi.SizeBytes != 200 {
		t.Errorf("tracked = %+v", fi)
	}
}

func TestSaveFeed_ReplacesRecordsFromSameFile(t *testing.T) {
	s := openTemp(t)
	acct := []model.Account{{ID: "visa", CreditLimit: decimal.NewFromInt(1000)}}

	first := []model.SpendRecord{record("r1", "visa", "2025-03-01", "10"), record("r2", "visa", "2025-03-02", "20")}
	if err := s.SaveFeed("a.jsonl", acct, first, 1, 1); err != nil {
		t.Fatal(err)
	}
	other := []model.SpendRecord{record("r9", "visa", "2025-03-03", "5")}
	if err := s.SaveFeed("b.jsonl", nil, other, 1, 1); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveFeed("a.jsonl", acct, first[:1], 2, 2); err != nil {
		t.Fatal(err)
	}

	accounts, records, err := s.Counts()
	if err != nil {
		t.Fatal(err)
	}
	if accounts != 1 || records != 2 {
		t.Errorf("Counts = %d, %d; want 1, 2", accounts, records)
	}

	if err := s.DeleteFeed("b.jsonl"); err != nil {
		t.Fatal(err)
	}
	_, records, _ = s.Counts()
	if records != 1 {
		t.Errorf("records after DeleteFeed = %d, want 1", records)
	}
}

func TestFingerprint_ChangesOnWrite(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()

	before, err := s.Fingerprint(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.SaveFeed("a.jsonl", nil, nil, 1, 1); err != nil {
		t.Fatal(err)
	}
	after, err := s.Fingerprint(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if after == before {
		t.Errorf("Fingerprint unchanged after write: %d", after)
	}

	// Saving outputs is not an input change.
	if err := s.SaveResults(ctx, model.Results{}); err != nil {
		t.Fatal(err)
	}
	again, _ := s.Fingerprint(ctx)
	if again != after {
		t.Errorf("Fingerprint changed on SaveResults: %d -> %d", after, again)
	}
}

func sampleResults(now time.Time) model.Results {
	p := timeseries.Period{Year: 2025, Month: time.April}
	excess := 250.0
	return model.Results{
		Predictions: []model.Prediction{{
			AccountID:       "visa",
			Period:          p.AddMonths(1),
			PeriodsAhead:    1,
			PredictedAmount: 1200,
			Confidence:      80,
			Algorithm:       "hybrid",
			Algorithms:      []string{"linear_regression", "exponential_moving_average"},
			Trend:           model.TrendRising,
			Factors:         []string{"heavy installment usage"},
			GeneratedAt:     now,
		}},
		Alerts: []model.Alert{{
			ID:             "a1",
			Key:            "unusual_spend/medium/visa/2025-04",
			Kind:           model.AlertUnusualSpend,
			Priority:       model.PriorityMedium,
			Title:          "Unusual spend",
			Message:        "msg",
			AccountID:      "visa",
			AmountInvolved: &excess,
			Period:         p,
			GeneratedAt:    now,
		}},
		Recommendations: []model.Recommendation{{
			ID:               "rec1",
			Key:              "category_concentration/food/2025-04",
			Category:         "spending",
			Title:            "Reduce spend in food",
			EstimatedImpact:  40,
			Difficulty:       model.DifficultyMedium,
			AffectedAccounts: []string{"visa"},
			GeneratedAt:      now,
			ValidityDays:     15,
			Score:            75,
			Steps:            []string{"review"},
		}},
		Score: model.FinancialScore{
			Total:           720,
			Band:            model.BandVeryGood,
			Trend:           model.ScoreStable,
			Factors:         []model.ScoreFactor{{Name: "credit utilization", Value: 100, Weight: 0.25}},
			ImprovementTips: []string{"tip"},
			Period:          p,
			ComputedAt:      now,
		},
		ComputedAt: now,
	}
}

func TestSaveResults_RoundTrip(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	now := time.Date(2025, 4, 20, 12, 0, 0, 0, time.UTC)

	if err := s.SaveResults(ctx, sampleResults(now)); err != nil {
		t.Fatalf("SaveResults: %v", err)
	}
	got, err := s.LoadResults(ctx)
	if err != nil {
		t.Fatalf("LoadResults: %v", err)
	}

	if len(got.Predictions) != 1 || got.Predictions[0].Trend != model.TrendRising || len(got.Predictions[0].Algorithms) != 2 {
		t.Errorf("Predictions = %+v", got.Predictions)
	}
	if len(got.Alerts) != 1 || got.Alerts[0].AmountInvolved == nil || *got.Alerts[0].AmountInvolved != 250 {
		t.Errorf("Alerts = %+v", got.Alerts)
	}
	if got.Alerts[0].Period.String() != "2025-04" {
		t.Errorf("alert period = %s, want 2025-04", got.Alerts[0].Period)
	}
	if len(got.Recommendations) != 1 || got.Recommendations[0].AffectedAccounts[0] != "visa" {
		t.Errorf("Recommendations = %+v", got.Recommendations)
	}
	if got.Score.Total != 720 || got.Score.Band != model.BandVeryGood || len(got.Score.Factors) != 1 {
		t.Errorf("Score = %+v", got.Score)
	}
	if !got.ComputedAt.Equal(now) {
		t.Errorf("ComputedAt = %v, want %v", got.ComputedAt, now)
	}
}

func TestSaveResults_FlagsAreSticky(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	now := time.Date(2025, 4, 20, 12, 0, 0, 0, time.UTC)

	if err := s.SaveResults(ctx, sampleResults(now)); err != nil {
		t.Fatal(err)
	}
	if err := s.MarkAlertRead(ctx, "a1"); err != nil {
		t.Fatalf("MarkAlertRead: %v", err)
	}
	if err := s.MarkRecommendationApplied(ctx, "rec1"); err != nil {
		t.Fatalf("MarkRecommendationApplied: %v", err)
	}

	// A later cycle regenerates the same rules with fresh flags.
	if err := s.SaveResults(ctx, sampleResults(now.Add(time.Hour))); err != nil {
		t.Fatal(err)
	}
	got, err := s.LoadResults(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Alerts) != 1 || !got.Alerts[0].Read {
		t.Errorf("alert read flag lost: %+v", got.Alerts)
	}
	if len(got.Recommendations) != 1 || !got.Recommendations[0].Applied {
		t.Errorf("recommendation applied flag lost: %+v", got.Recommendations)
	}

	err = s.MarkAlertRead(ctx, "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("MarkAlertRead(missing) = %v, want ErrNotFound", err)
	}
}

func TestSaveResults_EscalationAddsUnreadRow(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	now := time.Date(2025, 4, 20, 12, 0, 0, 0, time.UTC)

	res := sampleResults(now)
	if err := s.SaveResults(ctx, res); err != nil {
		t.Fatal(err)
	}
	if err := s.MarkAlertRead(ctx, "a1"); err != nil {
		t.Fatal(err)
	}

	later := sampleResults(now.Add(time.Hour))
	escalated := later.Alerts[0]
	escalated.ID = "a2"
	escalated.Key = "unusual_spend/high/visa/2025-04"
	escalated.Priority = model.PriorityHigh
	escalated.Title = "changed"
	later.Alerts = append(later.Alerts, escalated)
	later.Alerts[0].Title = "changed"
	if err := s.SaveResults(ctx, later); err != nil {
		t.Fatal(err)
	}

	got, err := s.LoadResults(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Alerts) != 2 {
		t.Fatalf("got %d alerts, want 2", len(got.Alerts))
	}
	first, second := got.Alerts[0], got.Alerts[1]
	if first.ID != "a1" || !first.Read || first.Title != "Unusual spend" {
		t.Errorf("existing alert changed: %+v", first)
	}
	if second.ID != "a2" || second.Read || second.Priority != model.PriorityHigh {
		t.Errorf("escalated alert = %+v, want unread high a2", second)
	}
}

func TestScoreHistory_SkipsFallback(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	now := time.Now().UTC()

	res := sampleResults(now)
	if err := s.SaveResults(ctx, res); err != nil {
		t.Fatal(err)
	}
	res.Score.Period = res.Score.Period.AddMonths(1)
	res.Score.Total = 650
	if err := s.SaveResults(ctx, res); err != nil {
		t.Fatal(err)
	}
	res.Score = model.FinancialScore{Total: 500, Band: model.BandRegular, Fallback: true}
	if err := s.SaveResults(ctx, res); err != nil {
		t.Fatal(err)
	}

	history, err := s.ScoreHistory(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 2 {
		t.Fatalf("history = %d, want 2", len(history))
	}
	if history[0].Period.String() != "2025-05" || history[0].Total != 650 {
		t.Errorf("history[0] = %s %.0f, want 2025-05 650", history[0].Period, history[0].Total)
	}
}
