package daemon

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/theirongolddev/fincast/internal/engine"
	"github.com/theirongolddev/fincast/internal/model"
	"github.com/theirongolddev/fincast/internal/store"
	"github.com/theirongolddev/fincast/internal/timeseries"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

func newTestService(t *testing.T, cfg Config) (*Service, *store.Store) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "fincast.db"))
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	ecfg := engine.DefaultConfig()
	ecfg.Reference = timeseries.Period{Year: 2025, Month: time.April}
	clock := func() time.Time { return time.Date(2025, 4, 25, 12, 0, 0, 0, time.UTC) }
	eng := engine.New(st, ecfg, zerolog.Nop(), engine.WithSink(st), engine.WithClock(clock))
	t.Cleanup(eng.Close)

	return New(cfg, eng, st, zerolog.Nop()), st
}

func seedSpend(t *testing.T, st *store.Store) {
	t.Helper()
	accounts := []model.Account{{ID: "visa", Name: "Visa", CreditLimit: decimal.NewFromInt(1000)}}
	var records []model.SpendRecord
	for i, amount := range []int64{300, 300, 300, 900} {
		records = append(records, model.SpendRecord{
			ID:        "r" + string(rune('a'+i)),
			AccountID: "visa",
			Date:      time.Date(2025, time.Month(1+i), 10, 0, 0, 0, 0, time.UTC),
			Amount:    decimal.NewFromInt(amount),
			Category:  "food",
		})
	}
	if err := st.SaveFeed("seed.jsonl", accounts, records, 1, 1); err != nil {
		t.Fatalf("SaveFeed: %v", err)
	}
}

func TestDiffSnapshots(t *testing.T) {
	prev := Snapshot{Predictions: 3, Alerts: 2, UnreadAlerts: 2, Recommendations: 1, Score: 640}
	curr := Snapshot{Predictions: 3, Alerts: 4, UnreadAlerts: 3, Recommendations: 2, Score: 610}

	delta := diffSnapshots(prev, curr)
	if delta.Predictions != 0 {
		t.Fatalf("Predictions delta = %d, want 0", delta.Predictions)
	}
	if delta.Alerts != 2 || delta.UnreadAlerts != 1 {
		t.Fatalf("alert deltas = %d/%d, want 2/1", delta.Alerts, delta.UnreadAlerts)
	}
	if delta.Recommendations != 1 {
		t.Fatalf("Recommendations delta = %d, want 1", delta.Recommendations)
	}
	if delta.Score != -30 {
		t.Fatalf("Score delta = %.0f, want -30", delta.Score)
	}
	if delta.isZero() {
		t.Fatal("delta unexpectedly reported as zero")
	}
	if !diffSnapshots(curr, curr).isZero() {
		t.Fatal("identical snapshots should diff to zero")
	}
}

func TestPublishEventRingBuffer(t *testing.T) {
	s, _ := newTestService(t, Config{EventsBuffer: 2})

	s.publishEvent(Event{ID: 1})
	s.publishEvent(Event{ID: 2})
	s.publishEvent(Event{ID: 3})

	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.events) != 2 {
		t.Fatalf("events len = %d, want 2", len(s.events))
	}
	if s.events[0].ID != 2 || s.events[1].ID != 3 {
		t.Fatalf("events ring contains IDs [%d, %d], want [2, 3]", s.events[0].ID, s.events[1].ID)
	}
}

func TestOnResults_SkipsUnchangedResults(t *testing.T) {
	s, st := newTestService(t, Config{})
	seedSpend(t, st)
	s.eng.Subscribe(s.onResults)

	s.recompute(context.Background())
	s.recompute(context.Background())

	s.mu.RLock()
	events := append([]Event(nil), s.events...)
	s.mu.RUnlock()

	if len(events) != 1 {
		t.Fatalf("events = %d, want 1 (second cycle is identical)", len(events))
	}
	if events[0].Type != EventSnapshot || events[0].Snapshot.Alerts == 0 {
		t.Errorf("first event = %+v", events[0])
	}
	if events[0].Snapshot.Reference != "2025-04" {
		t.Errorf("Reference = %q, want 2025-04", events[0].Snapshot.Reference)
	}
}

func TestOnResults_EscalationIsReportedAsNewAlert(t *testing.T) {
	s, st := newTestService(t, Config{})
	seedSpend(t, st) // April at 900 of 1000
	s.eng.Subscribe(s.onResults)
	ctx := context.Background()

	s.recompute(ctx)
	for _, a := range s.eng.Results().Alerts {
		if a.Kind == model.AlertLimitNear {
			if err := s.eng.MarkAlertRead(ctx, a.ID); err != nil {
				t.Fatalf("MarkAlertRead: %v", err)
			}
		}
	}

	extra := []model.SpendRecord{{
		ID:        "extra",
		AccountID: "visa",
		Date:      time.Date(2025, time.April, 20, 0, 0, 0, 0, time.UTC),
		Amount:    decimal.NewFromInt(80),
		Category:  "food",
	}}
	if err := st.SaveFeed("extra.jsonl", nil, extra, 1, 1); err != nil {
		t.Fatalf("SaveFeed: %v", err)
	}
	s.recompute(ctx)

	s.mu.RLock()
	last := s.events[len(s.events)-1]
	s.mu.RUnlock()

	if last.Type != EventResults {
		t.Fatalf("last event type = %s, want %s", last.Type, EventResults)
	}
	var found bool
	for _, a := range last.NewAlerts {
		if a.Kind == model.AlertLimitNear && a.Priority == model.PriorityHigh && !a.Read {
			found = true
		}
	}
	if !found {
		t.Errorf("new alerts = %+v, want an unread high limit alert", last.NewAlerts)
	}
}

func getJSON(t *testing.T, url string, v any) {
	t.Helper()
	resp, err := http.Get(url) //nolint:noctx // test helper
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET %s: status %d", url, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decoding %s: %v", url, err)
	}
}

func post(t *testing.T, url string) int {
	t.Helper()
	resp, err := http.Post(url, "application/json", nil) //nolint:noctx // test helper
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	_ = resp.Body.Close()
	return resp.StatusCode
}

func TestHandler_Endpoints(t *testing.T) {
	s, st := newTestService(t, Config{})
	seedSpend(t, st)
	s.eng.Subscribe(s.onResults)
	s.recompute(context.Background())

	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz") //nolint:noctx // test
	if err != nil {
		t.Fatal(err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if string(body) != "ok\n" {
		t.Errorf("healthz = %q", body)
	}

	var alerts []model.Alert
	getJSON(t, srv.URL+"/v1/alerts", &alerts)
	if len(alerts) < 2 {
		t.Fatalf("alerts = %d, want at least limit and unusual-spend", len(alerts))
	}

	if code := post(t, srv.URL+"/v1/alerts/"+alerts[0].ID+"/read"); code != http.StatusNoContent {
		t.Fatalf("mark read status = %d, want 204", code)
	}
	if code := post(t, srv.URL+"/v1/alerts/nope/read"); code != http.StatusNotFound {
		t.Errorf("mark unknown status = %d, want 404", code)
	}
	if code := post(t, srv.URL+"/v1/recommendations/nope/apply"); code != http.StatusNotFound {
		t.Errorf("apply unknown status = %d, want 404", code)
	}

	var unread []model.Alert
	getJSON(t, srv.URL+"/v1/alerts?unread=true", &unread)
	if len(unread) != len(alerts)-1 {
		t.Errorf("unread = %d, want %d", len(unread), len(alerts)-1)
	}

	var preds []model.Prediction
	getJSON(t, srv.URL+"/v1/predictions?account=visa", &preds)
	if len(preds) != 3 {
		t.Errorf("predictions = %d, want 3", len(preds))
	}

	var sc model.FinancialScore
	getJSON(t, srv.URL+"/v1/score", &sc)
	if sc.Total <= 0 || sc.Fallback {
		t.Errorf("score = %+v", sc)
	}

	var status Status
	getJSON(t, srv.URL+"/v1/status", &status)
	if status.Summary.UnreadAlerts != len(alerts)-1 {
		t.Errorf("status unread = %d, want %d", status.Summary.UnreadAlerts, len(alerts)-1)
	}

	var events []Event
	getJSON(t, srv.URL+"/v1/events", &events)
	if len(events) != 2 {
		t.Fatalf("events = %d, want snapshot + read update", len(events))
	}
	if events[1].Delta.UnreadAlerts != -1 {
		t.Errorf("read event delta = %+v", events[1].Delta)
	}

	if code := post(t, srv.URL+"/v1/recompute"); code != http.StatusOK {
		t.Errorf("recompute status = %d, want 200", code)
	}
}

func writeFile(t *testing.T, path, data string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}
}

func TestPollOnce_IngestsAndDetectsChanges(t *testing.T) {
	feedDir := t.TempDir()
	feed := filepath.Join(feedDir, "cards.jsonl")
	writeFile(t, feed, `{"type":"account","id":"visa","credit_limit":"1000"}
{"type":"spend","id":"r1","account_id":"visa","date":"2025-03-10","amount":"100"}
`)

	s, st := newTestService(t, Config{FeedDir: feedDir, Workers: 2})
	ctx := context.Background()

	if !s.pollOnce(ctx) {
		t.Fatal("first poll should report a change")
	}
	accounts, records, err := st.Counts()
	if err != nil {
		t.Fatal(err)
	}
	if accounts != 1 || records != 1 {
		t.Fatalf("Counts = %d, %d; want 1, 1", accounts, records)
	}

	if s.pollOnce(ctx) {
		t.Error("second poll without changes reported a change")
	}

	writeFile(t, feed, `{"type":"account","id":"visa","credit_limit":"1000"}
{"type":"spend","id":"r1","account_id":"visa","date":"2025-03-10","amount":"100"}
{"type":"spend","id":"r2","account_id":"visa","date":"2025-04-02","amount":"50"}
`)
	if !s.pollOnce(ctx) {
		t.Error("poll after feed change should report a change")
	}
	_, records, _ = st.Counts()
	if records != 2 {
		t.Errorf("records = %d, want 2", records)
	}

	status := s.snapshotStatus()
	if status.PollCount != 3 || status.LastError != "" {
		t.Errorf("status = %+v", status)
	}
}
