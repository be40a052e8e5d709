package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/theirongolddev/fincast/internal/model"
	"github.com/theirongolddev/fincast/internal/timeseries"
)

// ErrNotFound is returned when an alert or recommendation id is unknown.
var ErrNotFound = errors.New("not found")

// SaveResults persists one recomputation cycle. Predictions are replaced
// wholesale. Alerts and recommendations are upserted by rule key, keeping the
// stored read/applied flag when it is already set. The score is recorded as
// the latest score for its reference month.
func (s *Store) SaveResults(ctx context.Context, res model.Results) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM predictions"); err != nil {
		return err
	}
	for _, p := range res.Predictions {
		algos, err := marshalJSON(p.Algorithms)
		if err != nil {
			return err
		}
		factors, err := marshalJSON(p.Factors)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `INSERT OR REPLACE INTO predictions
			(account_id, period, periods_ahead, predicted_amount, confidence, algorithm, algorithms,
			 trend, expected_variation_pct, factors, generated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			p.AccountID, p.Period.String(), p.PeriodsAhead, p.PredictedAmount, p.Confidence,
			p.Algorithm, algos, string(p.Trend), p.ExpectedVariationPct, factors, formatTime(p.GeneratedAt))
		if err != nil {
			return fmt.Errorf("saving prediction %s/%s: %w", p.AccountID, p.Period, err)
		}
	}

	for _, a := range res.Alerts {
		var amount sql.NullFloat64
		if a.AmountInvolved != nil {
			amount = sql.NullFloat64{Float64: *a.AmountInvolved, Valid: true}
		}
		_, err := tx.ExecContext(ctx, `INSERT INTO alerts
			(id, rule_key, kind, priority, title, message, account_id, amount_involved, period,
			 generated_at, read, recommended_action)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(rule_key) DO UPDATE SET
				read = MAX(alerts.read, excluded.read)`,
			a.ID, a.Key, string(a.Kind), string(a.Priority), a.Title, a.Message, a.AccountID, amount,
			formatPeriod(a.Period), formatTime(a.GeneratedAt), boolInt(a.Read), a.RecommendedAction)
		if err != nil {
			return fmt.Errorf("saving alert %s: %w", a.Key, err)
		}
	}

	for _, r := range res.Recommendations {
		affected, err := marshalJSON(r.AffectedAccounts)
		if err != nil {
			return err
		}
		steps, err := marshalJSON(r.Steps)
		if err != nil {
			return err
		}
		tags, err := marshalJSON(r.Tags)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `INSERT INTO recommendations
			(id, rule_key, category, title, description, estimated_impact, difficulty, affected_accounts,
			 generated_at, validity_days, applied, score, steps, tags)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(rule_key) DO UPDATE SET
				applied = MAX(recommendations.applied, excluded.applied)`,
			r.ID, r.Key, r.Category, r.Title, r.Description, r.EstimatedImpact, string(r.Difficulty),
			affected, formatTime(r.GeneratedAt), r.ValidityDays, boolInt(r.Applied), r.Score, steps, tags)
		if err != nil {
			return fmt.Errorf("saving recommendation %s: %w", r.Key, err)
		}
	}

	if sc := res.Score; !sc.Fallback && !sc.Period.IsZero() {
		factors, err := marshalJSON(sc.Factors)
		if err != nil {
			return err
		}
		tips, err := marshalJSON(sc.ImprovementTips)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `INSERT OR REPLACE INTO score_history
			(period, total, band, trend, previous_total, delta, pct_change, factors, tips, computed_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			sc.Period.String(), sc.Total, string(sc.Band), string(sc.Trend),
			sc.ComparedToPreviousMonth.Total, sc.ComparedToPreviousMonth.Delta,
			sc.ComparedToPreviousMonth.PctChange, factors, tips, formatTime(sc.ComputedAt))
		if err != nil {
			return fmt.Errorf("saving score: %w", err)
		}
	}

	return tx.Commit()
}

// LoadResults restores the persisted outputs. The score is the most recently
// computed one; ComputedAt is the newest generation time seen.
func (s *Store) LoadResults(ctx context.Context) (model.Results, error) {
	var res model.Results

	preds, err := s.loadPredictions(ctx)
	if err != nil {
		return res, fmt.Errorf("loading predictions: %w", err)
	}
	res.Predictions = preds

	if res.Alerts, err = s.loadAlerts(ctx); err != nil {
		return res, fmt.Errorf("loading alerts: %w", err)
	}
	if res.Recommendations, err = s.loadRecommendations(ctx); err != nil {
		return res, fmt.Errorf("loading recommendations: %w", err)
	}

	history, err := s.ScoreHistory(ctx, 1)
	if err != nil {
		return res, fmt.Errorf("loading score: %w", err)
	}
	if len(history) > 0 {
		res.Score = history[0]
		res.ComputedAt = history[0].ComputedAt
	}
	return res, nil
}

// ScoreHistory returns up to limit scores, most recent reference month first.
// A limit <= 0 returns everything.
func (s *Store) ScoreHistory(ctx context.Context, limit int) ([]model.FinancialScore, error) {
	q := `SELECT period, total, band, trend, previous_total, delta, pct_change, factors, tips, computed_at
		FROM score_history ORDER BY period DESC`
	args := []any{}
	if limit > 0 {
		q += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []model.FinancialScore
	for rows.Next() {
		var sc model.FinancialScore
		var period, band, trend, computed string
		var factors, tips sql.NullString
		err := rows.Scan(&period, &sc.Total, &band, &trend, &sc.ComparedToPreviousMonth.Total,
			&sc.ComparedToPreviousMonth.Delta, &sc.ComparedToPreviousMonth.PctChange,
			&factors, &tips, &computed)
		if err != nil {
			return nil, err
		}
		if sc.Period, err = timeseries.ParsePeriod(period); err != nil {
			return nil, err
		}
		sc.Band = model.Band(band)
		sc.Trend = model.ScoreTrend(trend)
		sc.ComputedAt = parseTime(computed)
		if err := unmarshalJSON(factors, &sc.Factors); err != nil {
			return nil, err
		}
		if err := unmarshalJSON(tips, &sc.ImprovementTips); err != nil {
			return nil, err
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}

// MarkAlertRead sets the read flag on one alert.
func (s *Store) MarkAlertRead(ctx context.Context, id string) error {
	return s.setFlag(ctx, "UPDATE alerts SET read = 1 WHERE id = ?", id)
}

// MarkRecommendationApplied sets the applied flag on one recommendation.
func (s *Store) MarkRecommendationApplied(ctx context.Context, id string) error {
	return s.setFlag(ctx, "UPDATE recommendations SET applied = 1 WHERE id = ?", id)
}

func (s *Store) setFlag(ctx context.Context, query, id string) error {
	res, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	return nil
}

func (s *Store) loadPredictions(ctx context.Context) ([]model.Prediction, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT account_id, period, periods_ahead, predicted_amount,
		confidence, algorithm, algorithms, trend, expected_variation_pct, factors, generated_at
		FROM predictions ORDER BY account_id, period`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []model.Prediction
	for rows.Next() {
		var p model.Prediction
		var period, trend, generated string
		var algos, factors sql.NullString
		err := rows.Scan(&p.AccountID, &period, &p.PeriodsAhead, &p.PredictedAmount, &p.Confidence,
			&p.Algorithm, &algos, &trend, &p.ExpectedVariationPct, &factors, &generated)
		if err != nil {
			return nil, err
		}
		if p.Period, err = timeseries.ParsePeriod(period); err != nil {
			return nil, err
		}
		p.Trend = model.Trend(trend)
		p.GeneratedAt = parseTime(generated)
		if err := unmarshalJSON(algos, &p.Algorithms); err != nil {
			return nil, err
		}
		if err := unmarshalJSON(factors, &p.Factors); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) loadAlerts(ctx context.Context) ([]model.Alert, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, rule_key, kind, priority, title, message, account_id,
		amount_involved, period, generated_at, read, recommended_action
		FROM alerts ORDER BY generated_at, id`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []model.Alert
	for rows.Next() {
		var a model.Alert
		var kind, priority, period, generated string
		var amount sql.NullFloat64
		var read int
		err := rows.Scan(&a.ID, &a.Key, &kind, &priority, &a.Title, &a.Message, &a.AccountID,
			&amount, &period, &generated, &read, &a.RecommendedAction)
		if err != nil {
			return nil, err
		}
		a.Kind = model.AlertKind(kind)
		a.Priority = model.Priority(priority)
		if amount.Valid {
			v := amount.Float64
			a.AmountInvolved = &v
		}
		if period != "" {
			if a.Period, err = timeseries.ParsePeriod(period); err != nil {
				return nil, err
			}
		}
		a.GeneratedAt = parseTime(generated)
		a.Read = read != 0
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) loadRecommendations(ctx context.Context) ([]model.Recommendation, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, rule_key, category, title, description, estimated_impact,
		difficulty, affected_accounts, generated_at, validity_days, applied, score, steps, tags
		FROM recommendations ORDER BY generated_at, id`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []model.Recommendation
	for rows.Next() {
		var r model.Recommendation
		var difficulty, generated string
		var affected, steps, tags sql.NullString
		var applied int
		err := rows.Scan(&r.ID, &r.Key, &r.Category, &r.Title, &r.Description, &r.EstimatedImpact,
			&difficulty, &affected, &generated, &r.ValidityDays, &applied, &r.Score, &steps, &tags)
		if err != nil {
			return nil, err
		}
		r.Difficulty = model.Difficulty(difficulty)
		r.GeneratedAt = parseTime(generated)
		r.Applied = applied != 0
		if err := unmarshalJSON(affected, &r.AffectedAccounts); err != nil {
			return nil, err
		}
		if err := unmarshalJSON(steps, &r.Steps); err != nil {
			return nil, err
		}
		if err := unmarshalJSON(tags, &r.Tags); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func formatPeriod(p timeseries.Period) string {
	if p.IsZero() {
		return ""
	}
	return p.String()
}
