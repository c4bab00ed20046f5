package entropy

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// DefaultDeltaThreshold is the entropy delta above which a modification is
// classified as suspicious.
const DefaultDeltaThreshold = 2.0

// HighEntropyAbsolute is the absolute entropy above which a file with no
// prior baseline is classified as suspicious (freshly-written ciphertext
// looks like this even without a "before" sample).
const HighEntropyAbsolute = 7.5

// Baseline is the last-observed entropy for a path.
type Baseline struct {
	Path      string
	Entropy   float64
	UpdatedAt time.Time
}

// Alert is one recorded entropy evaluation.
type Alert struct {
	ID         int64
	Timestamp  time.Time
	Path       string
	Before     *float64
	After      float64
	Delta      float64
	Suspicious bool
}

// BaselineStore is the durable path -> entropy mapping plus the append-only
// alert log, backed by SQLite with WAL enabled so readers never block the
// single writer goroutine.
type BaselineStore struct {
	db    *sql.DB
	mu    sync.Mutex
	cache map[string]float64
}

// OpenBaselineStore opens (creating if necessary) the sqlite file at path
// and ensures its schema exists.
func OpenBaselineStore(path string) (*BaselineStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open baseline store: %w", err)
	}
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("baseline store pragma: %w", err)
		}
	}

	schema := []string{
		`CREATE TABLE IF NOT EXISTS entropy_baselines (
			file_path TEXT PRIMARY KEY,
			entropy REAL NOT NULL,
			updated_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS entropy_alerts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp INTEGER NOT NULL,
			file_path TEXT NOT NULL,
			entropy_before REAL,
			entropy_after REAL NOT NULL,
			delta REAL NOT NULL,
			suspicious INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_entropy_alerts_timestamp ON entropy_alerts(timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_entropy_alerts_suspicious ON entropy_alerts(suspicious)`,
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("baseline store schema: %w", err)
		}
	}

	return &BaselineStore{db: db, cache: make(map[string]float64)}, nil
}

// Close releases the underlying database handle.
func (s *BaselineStore) Close() error {
	return s.db.Close()
}

// Lookup returns the prior baseline for path, checking the in-memory cache
// before the durable store. ok is false if no baseline exists.
func (s *BaselineStore) Lookup(path string) (entropy float64, ok bool, err error) {
	s.mu.Lock()
	if v, cached := s.cache[path]; cached {
		s.mu.Unlock()
		return v, true, nil
	}
	s.mu.Unlock()

	row := s.db.QueryRow(`SELECT entropy FROM entropy_baselines WHERE file_path = ?`, path)
	var v float64
	err = row.Scan(&v)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("lookup baseline %s: %w", path, err)
	}

	s.mu.Lock()
	s.cache[path] = v
	s.mu.Unlock()
	return v, true, nil
}

// Set records the current entropy for path as its new baseline, both in the
// durable store and the in-memory cache. The write is committed before Set
// returns.
func (s *BaselineStore) Set(path string, value float64, at time.Time) error {
	_, err := s.db.Exec(
		`INSERT INTO entropy_baselines(file_path, entropy, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(file_path) DO UPDATE SET entropy = excluded.entropy, updated_at = excluded.updated_at`,
		path, value, at.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("set baseline %s: %w", path, err)
	}

	s.mu.Lock()
	s.cache[path] = value
	s.mu.Unlock()
	return nil
}

// Delete purges a path's baseline from the store and cache.
func (s *BaselineStore) Delete(path string) error {
	_, err := s.db.Exec(`DELETE FROM entropy_baselines WHERE file_path = ?`, path)
	if err != nil {
		return fmt.Errorf("delete baseline %s: %w", path, err)
	}
	s.mu.Lock()
	delete(s.cache, path)
	s.mu.Unlock()
	return nil
}

// RecordAlert appends an entropy evaluation to the alert log.
func (s *BaselineStore) RecordAlert(a Alert) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO entropy_alerts(timestamp, file_path, entropy_before, entropy_after, delta, suspicious)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		a.Timestamp.UnixNano(), a.Path, a.Before, a.After, a.Delta, boolToInt(a.Suspicious),
	)
	if err != nil {
		return 0, fmt.Errorf("record alert %s: %w", a.Path, err)
	}
	return res.LastInsertId()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
