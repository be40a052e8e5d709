// Package store provides the SQLite-backed home for engine inputs (accounts
// and spend records ingested from the upstream feed) and engine outputs
// (predictions, alerts, recommendations and the score history).
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/theirongolddev/fincast/internal/model"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite" // register sqlite driver
)

const dateLayout = "2006-01-02"

// Store wraps the fincast database.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at the given path.
func Open(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating data dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=synchronous(normal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening db: %w", err)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// FileInfo holds the tracked mtime and size for a feed file.
type FileInfo struct {
	MtimeNs   int64
	SizeBytes int64
}

// GetTrackedFiles returns a map of file_path -> FileInfo for all ingested feeds.
func (s *Store) GetTrackedFiles() (map[string]FileInfo, error) {
	rows, err := s.db.Query("SELECT file_path, mtime_ns, size_bytes FROM file_tracker")
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	result := make(map[string]FileInfo)
	for rows.Next() {
		var path string
		var fi FileInfo
		if err := rows.Scan(&path, &fi.MtimeNs, &fi.SizeBytes); err != nil {
			return nil, err
		}
		result[path] = fi
	}
	return result, rows.Err()
}

// SaveFeed stores the accounts and records parsed from one feed file. Records
// previously ingested from the same file are replaced, so lines removed from
// the feed disappear from the store.
func (s *Store) SaveFeed(path string, accounts []model.Account, records []model.SpendRecord, mtimeNs, sizeBytes int64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC().Format(time.RFC3339Nano)

	for _, a := range accounts {
		meta, err := marshalJSON(a.Metadata)
		if err != nil {
			return err
		}
		_, err = tx.Exec(`INSERT OR REPLACE INTO accounts (id, name, credit_limit, metadata, updated_at)
			VALUES (?, ?, ?, ?, ?)`,
			a.ID, a.Name, a.CreditLimit.String(), meta, now)
		if err != nil {
			return fmt.Errorf("saving account %s: %w", a.ID, err)
		}
	}

	if _, err := tx.Exec("DELETE FROM spend_records WHERE source_file = ?", path); err != nil {
		return err
	}

	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO spend_records
		(id, account_id, date, amount, category, description, installment, shared, source_file, ingested_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer func() { _ = stmt.Close() }()

	for _, r := range records {
		_, err = stmt.Exec(r.ID, r.AccountID, r.Date.UTC().Format(dateLayout), r.Amount.String(),
			r.Category, r.Description, boolInt(r.Installment), boolInt(r.Shared), path, now)
		if err != nil {
			return fmt.Errorf("saving record %s: %w", r.ID, err)
		}
	}

	_, err = tx.Exec(`INSERT OR REPLACE INTO file_tracker (file_path, mtime_ns, size_bytes)
		VALUES (?, ?, ?)`, path, mtimeNs, sizeBytes)
	if err != nil {
		return err
	}

	if err := bumpRevision(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// DeleteFeed removes every record ingested from path and stops tracking it.
// Accounts are kept; other feeds may still reference them.
func (s *Store) DeleteFeed(path string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec("DELETE FROM spend_records WHERE source_file = ?", path); err != nil {
		return err
	}
	if _, err := tx.Exec("DELETE FROM file_tracker WHERE file_path = ?", path); err != nil {
		return err
	}
	if err := bumpRevision(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// Fingerprint returns a counter that changes whenever engine inputs change.
// Other processes writing the same database are observed too.
func (s *Store) Fingerprint(ctx context.Context) (int64, error) {
	var v int64
	err := s.db.QueryRowContext(ctx, "SELECT value FROM revision WHERE id = 1").Scan(&v)
	return v, err
}

// Snapshot reads all accounts and spend records inside one read transaction
// so a cycle never sees a half-applied ingest.
func (s *Store) Snapshot(ctx context.Context) (model.Snapshot, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Snapshot{}, err
	}
	defer func() { _ = tx.Rollback() }()

	snap := model.Snapshot{TakenAt: time.Now()}

	rows, err := tx.QueryContext(ctx, "SELECT id, name, credit_limit, metadata FROM accounts ORDER BY id")
	if err != nil {
		return model.Snapshot{}, err
	}
	for rows.Next() {
		var a model.Account
		var limit string
		var meta sql.NullString
		if err := rows.Scan(&a.ID, &a.Name, &limit, &meta); err != nil {
			_ = rows.Close()
			return model.Snapshot{}, err
		}
		if a.CreditLimit, err = decimal.NewFromString(limit); err != nil {
			_ = rows.Close()
			return model.Snapshot{}, fmt.Errorf("account %s: credit_limit: %w", a.ID, err)
		}
		if err := unmarshalJSON(meta, &a.Metadata); err != nil {
			_ = rows.Close()
			return model.Snapshot{}, err
		}
		snap.Accounts = append(snap.Accounts, a)
	}
	_ = rows.Close()
	if err := rows.Err(); err != nil {
		return model.Snapshot{}, err
	}

	rows, err = tx.QueryContext(ctx, `SELECT id, account_id, date, amount, category, description, installment, shared
		FROM spend_records ORDER BY date, id`)
	if err != nil {
		return model.Snapshot{}, err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var r model.SpendRecord
		var date, amount string
		var installment, shared int
		if err := rows.Scan(&r.ID, &r.AccountID, &date, &amount, &r.Category, &r.Description, &installment, &shared); err != nil {
			return model.Snapshot{}, err
		}
		if r.Date, err = time.Parse(dateLayout, date); err != nil {
			return model.Snapshot{}, fmt.Errorf("record %s: date: %w", r.ID, err)
		}
		if r.Amount, err = decimal.NewFromString(amount); err != nil {
			return model.Snapshot{}, fmt.Errorf("record %s: amount: %w", r.ID, err)
		}
		r.Installment = installment != 0
		r.Shared = shared != 0
		snap.Records = append(snap.Records, r)
	}
	return snap, rows.Err()
}

// Counts returns the number of stored accounts and spend records.
func (s *Store) Counts() (accounts, records int, err error) {
	if err = s.db.QueryRow("SELECT COUNT(*) FROM accounts").Scan(&accounts); err != nil {
		return 0, 0, err
	}
	err = s.db.QueryRow("SELECT COUNT(*) FROM spend_records").Scan(&records)
	return accounts, records, err
}

func bumpRevision(tx *sql.Tx) error {
	_, err := tx.Exec("UPDATE revision SET value = value + 1 WHERE id = 1")
	return err
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func marshalJSON(v any) (sql.NullString, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	if string(b) == "null" {
		return sql.NullString{}, nil
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func unmarshalJSON(s sql.NullString, v any) error {
	if !s.Valid || s.String == "" {
		return nil
	}
	return json.Unmarshal([]byte(s.String), v)
}
