// Package daemon provides the long-running forecasting service: it watches
// the feed directory, recomputes when inputs change, and serves results
// over HTTP.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/theirongolddev/fincast/internal/engine"
	"github.com/theirongolddev/fincast/internal/model"
	"github.com/theirongolddev/fincast/internal/pipeline"
	"github.com/theirongolddev/fincast/internal/store"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Config controls the daemon runtime behavior.
type Config struct {
	FeedDir      string // ingested on every poll; empty disables ingestion
	Workers      int
	Interval     time.Duration
	Refresh      string // cron spec for unconditional recomputes; empty disables
	Addr         string
	EventsBuffer int
}

// Snapshot is a compact view of the current results for status/event payloads.
type Snapshot struct {
	At              time.Time  `json:"at"`
	ComputedAt      time.Time  `json:"computed_at"`
	Reference       string     `json:"reference"`
	Predictions     int        `json:"predictions"`
	Alerts          int        `json:"alerts"`
	UnreadAlerts    int        `json:"unread_alerts"`
	Recommendations int        `json:"recommendations"`
	Score           float64    `json:"score"`
	Band            model.Band `json:"band"`
	FallbackScore   bool       `json:"fallback_score,omitempty"`
}

// Delta captures snapshot changes between two result sets.
type Delta struct {
	Predictions     int     `json:"predictions"`
	Alerts          int     `json:"alerts"`
	UnreadAlerts    int     `json:"unread_alerts"`
	Recommendations int     `json:"recommendations"`
	Score           float64 `json:"score"`
}

func (d Delta) isZero() bool {
	return d.Predictions == 0 &&
		d.Alerts == 0 &&
		d.UnreadAlerts == 0 &&
		d.Recommendations == 0 &&
		d.Score == 0
}

// Event is emitted whenever the results change.
type Event struct {
	ID        int64         `json:"id"`
	Type      string        `json:"type"`
	Timestamp time.Time     `json:"timestamp"`
	Snapshot  Snapshot      `json:"snapshot"`
	Delta     Delta         `json:"delta"`
	NewAlerts []model.Alert `json:"new_alerts,omitempty"`
}

// Event types.
const (
	EventSnapshot = "snapshot"
	EventResults  = "results"
)

// Status is served at /v1/status.
type Status struct {
	StartedAt       time.Time `json:"started_at"`
	LastPollAt      time.Time `json:"last_poll_at"`
	PollIntervalSec int       `json:"poll_interval_sec"`
	PollCount       int64     `json:"poll_count"`
	FeedDir         string    `json:"feed_dir,omitempty"`
	Refresh         string    `json:"refresh,omitempty"`
	Fingerprint     int64     `json:"fingerprint"`
	Summary         Snapshot  `json:"summary"`
	LastError       string    `json:"last_error,omitempty"`
	EventCount      int       `json:"event_count"`
	SubscriberCount int       `json:"subscriber_count"`
}

// Service provides the daemon runtime and HTTP API.
type Service struct {
	cfg Config
	eng *engine.Engine
	st  *store.Store
	log zerolog.Logger

	mu             sync.RWMutex
	startedAt      time.Time
	lastPollAt     time.Time
	pollCount      int64
	lastError      string
	hasFingerprint bool
	fingerprint    int64
	hasSnapshot    bool
	snapshot       Snapshot
	seenAlerts     map[string]struct{}
	nextEventID    int64
	events         []Event

	nextSubID int
	subs      map[int]chan Event
}

// New returns a daemon service driving eng over the inputs in st.
func New(cfg Config, eng *engine.Engine, st *store.Store, log zerolog.Logger) *Service {
	if cfg.Interval < time.Second {
		cfg.Interval = 10 * time.Second
	}
	if cfg.EventsBuffer < 1 {
		cfg.EventsBuffer = 200
	}
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:8797"
	}

	return &Service{
		cfg:        cfg,
		eng:        eng,
		st:         st,
		log:        log.With().Str("component", "daemon").Logger(),
		startedAt:  time.Now(),
		seenAlerts: make(map[string]struct{}),
		subs:       make(map[int]chan Event),
	}
}

// Run starts HTTP endpoints, polling and the refresh schedule until ctx is
// canceled.
func (s *Service) Run(ctx context.Context) error {
	unsubscribe := s.eng.Subscribe(s.onResults)
	defer unsubscribe()

	sched := cron.New()
	if s.cfg.Refresh != "" {
		_, err := sched.AddFunc(s.cfg.Refresh, func() {
			s.log.Debug().Msg("scheduled refresh")
			s.recompute(context.Background())
		})
		if err != nil {
			return fmt.Errorf("refresh schedule %q: %w", s.cfg.Refresh, err)
		}
	}

	server := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	s.log.Info().Str("addr", s.cfg.Addr).Str("feed_dir", s.cfg.FeedDir).Msg("daemon started")

	// Seed results synchronously so status is useful immediately.
	s.pollOnce(ctx)
	s.recompute(ctx)

	sched.Start()
	defer func() { <-sched.Stop().Done() }()

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("daemon stopping")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		case <-ticker.C:
			if s.pollOnce(ctx) {
				s.eng.OnDataChanged()
			}
		case err := <-errCh:
			return fmt.Errorf("daemon http server: %w", err)
		}
	}
}

// pollOnce ingests changed feed files and reports whether the store's
// inputs moved since the previous poll. The first poll always reports a
// change.
func (s *Service) pollOnce(ctx context.Context) bool {
	var pollErr error

	if s.cfg.FeedDir != "" {
		res, err := pipeline.IngestDir(s.cfg.FeedDir, s.st, s.cfg.Workers, nil)
		switch {
		case err != nil:
			pollErr = fmt.Errorf("ingest: %w", err)
		case res.ParsedFiles > 0 || res.Removed > 0:
			s.log.Info().
				Int("parsed", res.ParsedFiles).
				Int("removed", res.Removed).
				Int("records", res.Records).
				Int("parse_errors", res.ParseErrors).
				Msg("feed ingested")
		}
	}

	fp, err := s.st.Fingerprint(ctx)
	if err != nil {
		pollErr = errors.Join(pollErr, fmt.Errorf("fingerprint: %w", err))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastPollAt = time.Now()
	s.pollCount++
	if pollErr != nil {
		s.lastError = pollErr.Error()
		s.log.Warn().Err(pollErr).Msg("poll failed")
		if err != nil {
			return false
		}
	}

	changed := !s.hasFingerprint || fp != s.fingerprint
	s.hasFingerprint = true
	s.fingerprint = fp
	return changed
}

func (s *Service) recompute(ctx context.Context) {
	_, err := s.eng.Recompute(ctx)

	s.mu.Lock()
	if err != nil {
		s.lastError = err.Error()
	} else {
		s.lastError = ""
	}
	s.mu.Unlock()

	if err != nil {
		s.log.Warn().Err(err).Msg("recompute failed")
	}
}

// onResults turns an engine result set into an event. Identical result sets
// produce nothing after the first.
func (s *Service) onResults(res model.Results) {
	now := time.Now()
	snap := snapshotFromResults(res, s.eng.Reference().String(), now)

	s.mu.Lock()
	var fresh []model.Alert
	for _, a := range res.Alerts {
		if _, ok := s.seenAlerts[a.ID]; !ok {
			s.seenAlerts[a.ID] = struct{}{}
			if s.hasSnapshot {
				fresh = append(fresh, a)
			}
		}
	}

	prev := s.snapshot
	prevExists := s.hasSnapshot
	s.hasSnapshot = true
	s.snapshot = snap

	var ev Event
	publish := false
	if !prevExists {
		s.nextEventID++
		ev = Event{ID: s.nextEventID, Type: EventSnapshot, Timestamp: now, Snapshot: snap}
		publish = true
	} else if delta := diffSnapshots(prev, snap); !delta.isZero() || len(fresh) > 0 {
		s.nextEventID++
		ev = Event{ID: s.nextEventID, Type: EventResults, Timestamp: now, Snapshot: snap, Delta: delta, NewAlerts: fresh}
		publish = true
	}
	s.mu.Unlock()

	if publish {
		s.publishEvent(ev)
	}
}

func snapshotFromResults(res model.Results, reference string, at time.Time) Snapshot {
	return Snapshot{
		At:              at,
		ComputedAt:      res.ComputedAt,
		Reference:       reference,
		Predictions:     len(res.Predictions),
		Alerts:          len(res.Alerts),
		UnreadAlerts:    res.UnreadAlerts(),
		Recommendations: len(res.Recommendations),
		Score:           res.Score.Total,
		Band:            res.Score.Band,
		FallbackScore:   res.Score.Fallback,
	}
}

func diffSnapshots(prev, curr Snapshot) Delta {
	return Delta{
		Predictions:     curr.Predictions - prev.Predictions,
		Alerts:          curr.Alerts - prev.Alerts,
		UnreadAlerts:    curr.UnreadAlerts - prev.UnreadAlerts,
		Recommendations: curr.Recommendations - prev.Recommendations,
		Score:           curr.Score - prev.Score,
	}
}

func (s *Service) publishEvent(ev Event) {
	s.mu.Lock()
	s.events = append(s.events, ev)
	if len(s.events) > s.cfg.EventsBuffer {
		s.events = s.events[len(s.events)-s.cfg.EventsBuffer:]
	}

	for _, ch := range s.subs {
		select {
		case ch <- ev:
		default:
		}
	}
	s.mu.Unlock()
}

func (s *Service) snapshotStatus() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Status{
		StartedAt:       s.startedAt,
		LastPollAt:      s.lastPollAt,
		PollIntervalSec: int(s.cfg.Interval.Seconds()),
		PollCount:       s.pollCount,
		FeedDir:         s.cfg.FeedDir,
		Refresh:         s.cfg.Refresh,
		Fingerprint:     s.fingerprint,
		Summary:         s.snapshot,
		LastError:       s.lastError,
		EventCount:      len(s.events),
		SubscriberCount: len(s.subs),
	}
}

func (s *Service) addSubscriber(ch chan Event) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSubID++
	id := s.nextSubID
	s.subs[id] = ch
	return id
}

func (s *Service) removeSubscriber(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subs, id)
}
