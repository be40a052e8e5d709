package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/theirongolddev/fincast/internal/engine"
	"github.com/theirongolddev/fincast/internal/model"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Handler returns the daemon's HTTP API.
func (s *Service) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/healthz", s.handleHealth)
	r.Route("/v1", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Get("/predictions", s.handlePredictions)
		r.Get("/alerts", s.handleAlerts)
		r.Post("/alerts/{id}/read", s.handleAlertRead)
		r.Get("/recommendations", s.handleRecommendations)
		r.Post("/recommendations/{id}/apply", s.handleRecommendationApply)
		r.Get("/score", s.handleScore)
		r.Post("/recompute", s.handleRecompute)
		r.Get("/events", s.handleEvents)
		r.Get("/stream", s.handleStream)
	})
	return r
}

func (s *Service) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("took", time.Since(start)).
			Msg("request")
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *Service) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok\n"))
}

func (s *Service) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.snapshotStatus())
}

// handlePredictions accepts ?account=ID.
func (s *Service) handlePredictions(w http.ResponseWriter, r *http.Request) {
	preds := s.eng.Results().Predictions
	if account := r.URL.Query().Get("account"); account != "" {
		filtered := preds[:0]
		for _, p := range preds {
			if p.AccountID == account {
				filtered = append(filtered, p)
			}
		}
		preds = filtered
	}
	if preds == nil {
		preds = []model.Prediction{}
	}
	writeJSON(w, http.StatusOK, preds)
}

// handleAlerts accepts ?unread=true.
func (s *Service) handleAlerts(w http.ResponseWriter, r *http.Request) {
	all := s.eng.Results().Alerts
	out := make([]model.Alert, 0, len(all))
	unreadOnly := r.URL.Query().Get("unread") == "true"
	for _, a := range all {
		if unreadOnly && a.Read {
			continue
		}
		out = append(out, a)
	}
	writeJSON(w, http.StatusOK, out)
}

// handleRecommendations returns active recommendations; ?all=true includes
// expired ones.
func (s *Service) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	var recs []model.Recommendation
	if r.URL.Query().Get("all") == "true" {
		recs = s.eng.Results().Recommendations
	} else {
		recs = s.eng.ActiveRecommendations(time.Now())
	}
	if recs == nil {
		recs = []model.Recommendation{}
	}
	writeJSON(w, http.StatusOK, recs)
}

func (s *Service) handleScore(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.eng.Results().Score)
}

func (s *Service) handleAlertRead(w http.ResponseWriter, r *http.Request) {
	s.markFlag(w, r, s.eng.MarkAlertRead)
}

func (s *Service) handleRecommendationApply(w http.ResponseWriter, r *http.Request) {
	s.markFlag(w, r, s.eng.MarkRecommendationApplied)
}

func (s *Service) markFlag(w http.ResponseWriter, r *http.Request, mark func(context.Context, string) error) {
	id := chi.URLParam(r, "id")
	if err := mark(r.Context(), id); err != nil {
		if errors.Is(err, engine.ErrNotFound) {
			writeError(w, http.StatusNotFound, err)
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	// Flag changes do not recompute; publish the new counts directly.
	s.onResults(s.eng.Results())
	w.WriteHeader(http.StatusNoContent)
}

func (s *Service) handleRecompute(w http.ResponseWriter, r *http.Request) {
	res, err := s.eng.Recompute(r.Context())
	if err != nil {
		s.mu.Lock()
		s.lastError = err.Error()
		s.mu.Unlock()
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshotFromResults(res, s.eng.Reference().String(), time.Now()))
}

func (s *Service) handleEvents(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	events := make([]Event, len(s.events))
	copy(events, s.events)
	s.mu.RUnlock()

	writeJSON(w, http.StatusOK, events)
}

func (s *Service) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch := make(chan Event, 16)
	id := s.addSubscriber(ch)
	defer s.removeSubscriber(id)

	current := Event{
		Type:      EventSnapshot,
		Timestamp: time.Now(),
		Snapshot:  s.snapshotStatus().Summary,
	}
	writeSSE(w, current)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev := <-ch:
			writeSSE(w, ev)
			flusher.Flush()
		}
	}
}

func writeSSE(w http.ResponseWriter, ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	_, _ = fmt.Fprintf(w, "event: %s\n", ev.Type)
	_, _ = fmt.Fprintf(w, "data: %s\n\n", data)
}
