// Package planner turns per-account monthly series into forecasts for the
// next few months. Each account is forecast independently on a bounded
// worker pool; results are collected in one place and returned in account
// order.
package planner

import (
	"runtime"
	"sync"
	"time"

	"github.com/theirongolddev/fincast/internal/forecast"
	"github.com/theirongolddev/fincast/internal/model"
	"github.com/theirongolddev/fincast/internal/pipeline"
	"github.com/theirongolddev/fincast/internal/timeseries"
)

// Factor labels attached to predictions.
const (
	FactorHeavyInstallments = "heavy installment usage"
	FactorSharedExpenses    = "frequent shared expenses"
	FactorRecentAnomaly     = "unusual recent month"
	factorSeasonalPrefix    = "seasonal pattern: "

	installmentThreshold = 0.30
	sharedThreshold      = 0.20
	trendThresholdPct    = 5.0
	trendBaseMonths      = 3

	// AlgorithmHybrid tags predictions that combined more than one model.
	AlgorithmHybrid = "hybrid"
)

// Config controls the planning horizon.
type Config struct {
	Horizon   int // months ahead, K
	MinPoints int // accounts with fewer monthly points are skipped
	Workers   int // <= 0 means GOMAXPROCS
	Forecast  forecast.Options
}

// DefaultConfig returns the standard three-month horizon.
func DefaultConfig() Config {
	return Config{
		Horizon:   3,
		MinPoints: forecast.MinHybridPoints,
		Forecast:  forecast.DefaultOptions(),
	}
}

// Plan is the output of one planning run.
type Plan struct {
	Predictions []model.Prediction
	Skipped     []string // accounts below MinPoints
}

// Planner produces predictions. It holds no mutable state.
type Planner struct {
	cfg Config
	now func() time.Time
}

// New creates a planner. Out-of-range settings fall back to defaults.
func New(cfg Config) *Planner {
	def := DefaultConfig()
	if cfg.Horizon < 1 {
		cfg.Horizon = def.Horizon
	}
	if cfg.MinPoints < forecast.MinHybridPoints {
		cfg.MinPoints = def.MinPoints
	}
	if cfg.Forecast == (forecast.Options{}) {
		cfg.Forecast = def.Forecast
	}
	return &Planner{cfg: cfg, now: time.Now}
}

// WithClock replaces the clock used to stamp outputs.
func (p *Planner) WithClock(now func() time.Time) *Planner {
	p.now = now
	return p
}

// Plan forecasts months ref+1 through ref+Horizon for every account with
// enough history. A forecast failure for one account never affects others.
func (p *Planner) Plan(accounts []pipeline.AccountSeries, ref timeseries.Period) Plan {
	generatedAt := p.now()
	perAccount := make([][]model.Prediction, len(accounts))
	skipped := make([]bool, len(accounts))

	numWorkers := p.cfg.Workers
	if numWorkers <= 0 {
		numWorkers = runtime.GOMAXPROCS(0)
	}
	if numWorkers > len(accounts) {
		numWorkers = len(accounts)
	}

	work := make(chan int, len(accounts))
	for i := range accounts {
		work <- i
	}
	close(work)

	var wg sync.WaitGroup
	wg.Add(numWorkers)
	for w := 0; w < numWorkers; w++ {
		go func() {
			defer wg.Done()
			for idx := range work {
				preds, ok := p.planAccount(accounts[idx], ref, generatedAt)
				perAccount[idx] = preds
				skipped[idx] = !ok
			}
		}()
	}
	wg.Wait()

	var out Plan
	for i, preds := range perAccount {
		if skipped[i] {
			out.Skipped = append(out.Skipped, accounts[i].Account.ID)
			continue
		}
		out.Predictions = append(out.Predictions, preds...)
	}
	return out
}

func (p *Planner) planAccount(as pipeline.AccountSeries, ref timeseries.Period, generatedAt time.Time) ([]model.Prediction, bool) {
	s := as.Series.Until(ref)
	if len(s) < p.cfg.MinPoints {
		return nil, false
	}

	last := s.Last().Period
	base := recentMean(s)
	staticFactors := accountFactors(as, s)

	preds := make([]model.Prediction, 0, p.cfg.Horizon)
	for k := 1; k <= p.cfg.Horizon; k++ {
		target := ref.AddMonths(k)
		h, err := forecast.HybridPredictionWith(s, last.MonthsUntil(target), p.cfg.Forecast)
		if err != nil {
			continue
		}

		factors := append([]string(nil), staticFactors...)
		if h.Seasonality.Detected {
			factors = append(factors, factorSeasonalPrefix+string(h.Seasonality.Pattern))
		}

		variation := percentChange(base, h.Prediction)
		preds = append(preds, model.Prediction{
			AccountID:            as.Account.ID,
			Period:               target,
			PeriodsAhead:         k,
			PredictedAmount:      h.Prediction,
			Confidence:           h.Confidence,
			Algorithm:            algorithmTag(h.Algorithms),
			Algorithms:           algorithmNames(h.Algorithms),
			Trend:                trendOf(variation),
			ExpectedVariationPct: variation,
			Factors:              factors,
			GeneratedAt:          generatedAt,
		})
	}
	return preds, true
}

// accountFactors are the labels that do not depend on the target month.
func accountFactors(as pipeline.AccountSeries, s timeseries.Series) []string {
	var out []string
	if as.InstallmentRatio > installmentThreshold {
		out = append(out, FactorHeavyInstallments)
	}
	if as.SharedRatio > sharedThreshold {
		out = append(out, FactorSharedExpenses)
	}
	if idx := forecast.DetectAnomalies(s); len(idx) > 0 && idx[len(idx)-1] == len(s)-1 {
		out = append(out, FactorRecentAnomaly)
	}
	return out
}

func recentMean(s timeseries.Series) float64 {
	tail := s.Tail(trendBaseMonths)
	if len(tail) == 0 {
		return 0
	}
	var sum float64
	for _, pt := range tail {
		sum += pt.Value
	}
	return sum / float64(len(tail))
}

func percentChange(base, v float64) float64 {
	if base <= 0 {
		return 0
	}
	return (v - base) / base * 100
}

func trendOf(variationPct float64) model.Trend {
	switch {
	case variationPct > trendThresholdPct:
		return model.TrendRising
	case variationPct < -trendThresholdPct:
		return model.TrendFalling
	default:
		return model.TrendStable
	}
}

func algorithmTag(algos []forecast.Algorithm) string {
	switch len(algos) {
	case 0:
		return ""
	case 1:
		return string(algos[0])
	default:
		return AlgorithmHybrid
	}
}

func algorithmNames(algos []forecast.Algorithm) []string {
	out := make([]string, len(algos))
	for i, a := range algos {
		out[i] = string(a)
	}
	return out
}
