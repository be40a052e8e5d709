package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/theirongolddev/fincast/internal/store"
)

func openStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "fincast.db"))
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func writeFile(t *testing.T, path string, lines ...string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o600); err != nil {
		t.Fatal(err)
	}
}

func TestIngestDir_Incremental(t *testing.T) {
	st := openStore(t)
	feeds := t.TempDir()
	a := filepath.Join(feeds, "a.jsonl")
	b := filepath.Join(feeds, "b.jsonl")

	writeFile(t, a,
		`{"type":"account","id":"visa","credit_limit":"50000"}`,
		`{"type":"spend","account_id":"visa","date":"2025-01-10","amount":"100"}`,
		`garbage`,
		`{"type":"spend","account_id":"visa","date":"bad","amount":"1"}`,
	)
	writeFile(t, b,
		`{"type":"spend","account_id":"visa","date":"2025-02-10","amount":"200"}`,
	)

	var calls atomic.Int32
	res, err := IngestDir(feeds, st, 2, func(current, total int) {
		calls.Add(1)
		if total != 2 {
			t.Errorf("progress total = %d, want 2", total)
		}
	})
	if err != nil {
		t.Fatalf("IngestDir: %v", err)
	}
	if res.ParsedFiles != 2 || res.Records != 2 || res.Accounts != 1 || res.ParseErrors != 1 {
		t.Errorf("first run = %+v", res)
	}
	if n := calls.Load(); n != 2 {
		t.Errorf("progress calls = %d, want 2", n)
	}

	// Nothing changed: nothing is re-parsed.
	res, err = IngestDir(feeds, st, 2, nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.Unchanged != 2 || res.ParsedFiles != 0 {
		t.Errorf("second run = %+v, want 2 unchanged", res)
	}

	// Grow b and delete a.
	writeFile(t, b,
		`{"type":"spend","account_id":"visa","date":"2025-02-10","amount":"200"}`,
		`{"type":"spend","account_id":"visa","date":"2025-03-10","amount":"300"}`,
	)
	future := time.Now().Add(time.Minute)
	if err := os.Chtimes(b, future, future); err != nil {
		t.Fatal(err)
	}
	if err := os.Remove(a); err != nil {
		t.Fatal(err)
	}

	res, err = IngestDir(feeds, st, 0, nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.ParsedFiles != 1 || res.Removed != 1 {
		t.Errorf("third run = %+v, want 1 parsed and 1 removed", res)
	}

	snap, err := st.Snapshot(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(snap.Records) != 2 {
		t.Errorf("records = %d, want 2", len(snap.Records))
	}
	if len(snap.Accounts) != 1 {
		t.Errorf("accounts = %d, want 1 (kept after feed removal)", len(snap.Accounts))
	}
}

func TestIngestFile_Idempotent(t *testing.T) {
	st := openStore(t)
	path := filepath.Join(t.TempDir(), "feed.jsonl")
	writeFile(t, path,
		`{"type":"account","id":"visa","credit_limit":"1000"}`,
		`{"type":"spend","account_id":"visa","date":"2025-01-10","amount":"10","description":"coffee"}`,
		`{"type":"spend","account_id":"visa","date":"2025-01-10","amount":"10","description":"coffee"}`,
	)

	for i := 0; i < 2; i++ {
		if _, err := IngestFile(path, st); err != nil {
			t.Fatalf("IngestFile #%d: %v", i, err)
		}
	}
	_, records, err := st.Counts()
	if err != nil {
		t.Fatal(err)
	}
	if records != 2 {
		t.Errorf("records = %d, want 2", records)
	}
}

func TestIngestFile_Missing(t *testing.T) {
	st := openStore(t)
	if _, err := IngestFile(filepath.Join(t.TempDir(), "nope.jsonl"), st); err == nil {
		t.Fatal("expected error for missing file")
	}
}
