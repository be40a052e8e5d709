// Package engine is the facade over the forecasting, alerting,
// recommendation and scoring components. It recomputes everything from one
// snapshot of the inputs, keeps the last results, and exposes them to the
// CLI, dashboard and daemon.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/theirongolddev/fincast/internal/alerts"
	"github.com/theirongolddev/fincast/internal/model"
	"github.com/theirongolddev/fincast/internal/pipeline"
	"github.com/theirongolddev/fincast/internal/planner"
	"github.com/theirongolddev/fincast/internal/recommend"
	"github.com/theirongolddev/fincast/internal/score"
	"github.com/theirongolddev/fincast/internal/timeseries"

	"github.com/rs/zerolog"
)

// ErrNotFound is returned when an alert or recommendation id is unknown.
var ErrNotFound = errors.New("not found")

// Source supplies a consistent read of all inputs.
type Source interface {
	Snapshot(ctx context.Context) (model.Snapshot, error)
}

// Sink persists results and user flags. Optional.
type Sink interface {
	SaveResults(ctx context.Context, res model.Results) error
	MarkAlertRead(ctx context.Context, id string) error
	MarkRecommendationApplied(ctx context.Context, id string) error
}

// Config bundles the component settings.
type Config struct {
	Planner   planner.Config
	Alerts    alerts.Config
	Recommend recommend.Config
	Score     score.Config

	// Debounce is the quiescence delay for OnDataChanged.
	Debounce time.Duration

	// Reference pins the month treated as "current". Zero means the
	// calendar month of the clock at each recomputation.
	Reference timeseries.Period
}

// DefaultConfig returns the component defaults and a 500ms debounce.
func DefaultConfig() Config {
	return Config{
		Planner:   planner.DefaultConfig(),
		Alerts:    alerts.DefaultConfig(),
		Recommend: recommend.DefaultConfig(),
		Score:     score.DefaultConfig(),
		Debounce:  500 * time.Millisecond,
	}
}

// Option customizes an Engine.
type Option func(*Engine)

// WithSink persists every cycle's results and flag changes.
func WithSink(s Sink) Option {
	return func(e *Engine) { e.sink = s }
}

// WithPrevious seeds the engine with results restored from storage so that
// accumulated alerts, recommendations and their flags carry over.
func WithPrevious(res model.Results) Option {
	return func(e *Engine) { e.results = res.Clone() }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// Engine orchestrates one recomputation at a time.
type Engine struct {
	src  Source
	sink Sink
	cfg  Config
	log  zerolog.Logger
	now  func() time.Time

	planner  *planner.Planner
	alerts   *alerts.Engine
	recs     *recommend.Engine
	scorer   *score.Calculator
	debounce *Debouncer

	runMu sync.Mutex // serializes Recompute

	mu        sync.RWMutex
	results   model.Results
	listeners map[int]func(model.Results)
	nextID    int
}

// New creates an engine reading from src.
func New(src Source, cfg Config, log zerolog.Logger, opts ...Option) *Engine {
	e := &Engine{
		src:       src,
		cfg:       cfg,
		log:       log.With().Str("component", "engine").Logger(),
		now:       time.Now,
		listeners: make(map[int]func(model.Results)),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.planner = planner.New(cfg.Planner).WithClock(e.now)
	e.alerts = alerts.New(cfg.Alerts).WithClock(e.now)
	e.recs = recommend.New(cfg.Recommend).WithClock(e.now)
	e.scorer = score.New(cfg.Score).WithClock(e.now)
	e.debounce = NewDebouncer(cfg.Debounce, func() {
		if _, err := e.Recompute(context.Background()); err != nil {
			e.log.Warn().Err(err).Msg("debounced recompute failed")
		}
	})
	return e
}

// Close stops the debounced trigger.
func (e *Engine) Close() {
	e.debounce.Stop()
}

// Reference returns the month a recomputation at now would use.
func (e *Engine) Reference() timeseries.Period {
	if !e.cfg.Reference.IsZero() {
		return e.cfg.Reference
	}
	return timeseries.PeriodOf(e.now())
}

// Recompute reads a fresh snapshot and regenerates every output. Predictions
// and the score are replaced; alerts and recommendations accumulate, keyed
// by rule identity. If the snapshot cannot be read, the previous outputs are
// kept, the score becomes the neutral fallback, and the read error is
// returned alongside the results.
func (e *Engine) Recompute(ctx context.Context) (model.Results, error) {
	e.runMu.Lock()
	defer e.runMu.Unlock()

	start := e.now()
	ref := e.Reference()

	snap, err := e.src.Snapshot(ctx)
	if err != nil {
		e.log.Warn().Err(err).Msg("snapshot failed, serving fallback score")
		res := e.Results()
		res.Score = score.Fallback("snapshot failed", start)
		res.ComputedAt = start
		e.publish(res)
		return res, fmt.Errorf("reading snapshot: %w", err)
	}

	accounts := pipeline.Aggregate(snap, ref)
	plan := e.planner.Plan(accounts, ref)
	freshAlerts := e.alerts.Evaluate(accounts, plan.Predictions, ref)
	freshRecs := e.recs.Evaluate(accounts, snap.Records, ref)
	sc := e.scorer.Calculate(score.Input{Accounts: accounts, Records: snap.Records}, ref)

	e.mu.Lock()
	prev := e.results
	res := model.Results{
		Predictions:     plan.Predictions,
		Alerts:          alerts.Merge(prev.Alerts, freshAlerts),
		Recommendations: recommend.Merge(prev.Recommendations, freshRecs),
		Score:           sc,
		ComputedAt:      start,
		Skipped:         plan.Skipped,
	}
	e.results = res
	e.mu.Unlock()

	if e.sink != nil {
		if err := e.sink.SaveResults(ctx, res); err != nil {
			e.log.Error().Err(err).Msg("saving results")
		}
	}

	e.log.Info().
		Str("reference", ref.String()).
		Int("accounts", len(snap.Accounts)).
		Int("records", len(snap.Records)).
		Int("predictions", len(res.Predictions)).
		Int("new_alerts", len(res.Alerts)-len(prev.Alerts)).
		Int("skipped", len(plan.Skipped)).
		Float64("score", sc.Total).
		Dur("took", time.Since(start)).
		Msg("recomputed")

	e.publish(res.Clone())
	return res.Clone(), nil
}

// OnDataChanged schedules a debounced Recompute.
func (e *Engine) OnDataChanged() {
	e.debounce.Trigger()
}

// Results returns a copy of the last computed results.
func (e *Engine) Results() model.Results {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.results.Clone()
}

// ActiveRecommendations returns recommendations still valid at now.
func (e *Engine) ActiveRecommendations(now time.Time) []model.Recommendation {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return recommend.Active(e.results.Recommendations, now)
}

// MarkAlertRead flags one alert as read. The flag survives later cycles.
func (e *Engine) MarkAlertRead(ctx context.Context, id string) error {
	e.mu.Lock()
	found := false
	for i := range e.results.Alerts {
		if e.results.Alerts[i].ID == id {
			e.results.Alerts[i].Read = true
			found = true
			break
		}
	}
	e.mu.Unlock()

	if !found {
		return fmt.Errorf("alert %s: %w", id, ErrNotFound)
	}
	if e.sink != nil {
		return e.sink.MarkAlertRead(ctx, id)
	}
	return nil
}

// MarkRecommendationApplied flags one recommendation as applied.
func (e *Engine) MarkRecommendationApplied(ctx context.Context, id string) error {
	e.mu.Lock()
	found := false
	for i := range e.results.Recommendations {
		if e.results.Recommendations[i].ID == id {
			e.results.Recommendations[i].Applied = true
			found = true
			break
		}
	}
	e.mu.Unlock()

	if !found {
		return fmt.Errorf("recommendation %s: %w", id, ErrNotFound)
	}
	if e.sink != nil {
		return e.sink.MarkRecommendationApplied(ctx, id)
	}
	return nil
}

// Subscribe registers fn to receive every new result set. The returned
// function unregisters it. fn runs on the recomputing goroutine.
func (e *Engine) Subscribe(fn func(model.Results)) (unsubscribe func()) {
	e.mu.Lock()
	id := e.nextID
	e.nextID++
	e.listeners[id] = fn
	e.mu.Unlock()

	return func() {
		e.mu.Lock()
		delete(e.listeners, id)
		e.mu.Unlock()
	}
}

func (e *Engine) publish(res model.Results) {
	e.mu.Lock()
	if res.Score.Fallback {
		e.results.Score = res.Score
		e.results.ComputedAt = res.ComputedAt
	}
	fns := make([]func(model.Results), 0, len(e.listeners))
	for _, fn := range e.listeners {
		fns = append(fns, fn)
	}
	e.mu.Unlock()

	for _, fn := range fns {
		fn(res)
	}
}
