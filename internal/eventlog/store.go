package eventlog

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Store is the durable, append-only record of raw file events. It remains
// queryable while being written: a successful Append guarantees subsequent
// queries observe the event.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the sqlite file at path and ensures
// its schema and indexes exist.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open event log: %w", err)
	}
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("event log pragma: %w", err)
		}
	}

	schema := []string{
		`CREATE TABLE IF NOT EXISTS file_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp INTEGER NOT NULL,
			event_type TEXT NOT NULL,
			file_path TEXT NOT NULL,
			old_path TEXT,
			file_extension TEXT,
			process_id INTEGER,
			process_name TEXT,
			size_before INTEGER,
			size_after INTEGER,
			entropy_after REAL,
			entropy_delta REAL,
			is_directory INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_file_events_timestamp ON file_events(timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_file_events_type ON file_events(event_type)`,
		`CREATE INDEX IF NOT EXISTS idx_file_events_path ON file_events(file_path)`,
		`CREATE INDEX IF NOT EXISTS idx_file_events_pid ON file_events(process_id)`,
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("event log schema: %w", err)
		}
	}

	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// Append persists ev. It returns once the write is durable.
func (s *Store) Append(ev Event) error {
	var pid sql.NullInt64
	if ev.HasPID {
		pid = sql.NullInt64{Int64: int64(ev.PID), Valid: true}
	}
	_, err := s.db.Exec(
		`INSERT INTO file_events(
			timestamp, event_type, file_path, old_path, file_extension,
			process_id, process_name, size_before, size_after,
			entropy_after, entropy_delta, is_directory
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.Timestamp.UnixNano(), string(ev.Type), ev.Path, nullString(ev.OldPath), nullString(ev.Extension),
		pid, nullString(ev.ProcessName), nullInt64Ptr(ev.SizeBefore), nullInt64Ptr(ev.SizeAfter),
		nullFloatPtr(ev.EntropyAfter), nullFloatPtr(ev.EntropyDelta), boolToInt(ev.IsDirectory),
	)
	if err != nil {
		return fmt.Errorf("append file event: %w", err)
	}
	return nil
}

// Query filters the event log. Zero-value Since / Type means
// "unfiltered" for that predicate. Results are reverse-chronological
// (newest first); Limit <= 0 means unbounded.
type Query struct {
	Since time.Time
	Type  Type // empty = any
	Limit int
}

// Find returns events matching q, newest first.
func (s *Store) Find(q Query) ([]Event, error) {
	clauses := []string{"1=1"}
	args := []any{}

	if !q.Since.IsZero() {
		clauses = append(clauses, "timestamp >= ?")
		args = append(args, q.Since.UnixNano())
	}
	if q.Type != "" {
		clauses = append(clauses, "event_type = ?")
		args = append(args, string(q.Type))
	}

	query := fmt.Sprintf(
		`SELECT timestamp, event_type, file_path, old_path, file_extension,
			process_id, process_name, size_before, size_after,
			entropy_after, entropy_delta, is_directory
		 FROM file_events WHERE %s ORDER BY timestamp DESC`,
		strings.Join(clauses, " AND "),
	)
	if q.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", q.Limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query file events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var (
			ts                      int64
			typ, path               string
			oldPath, ext, procName  sql.NullString
			pid                     sql.NullInt64
			sizeBefore, sizeAfter   sql.NullInt64
			entropyAfter, entDelta  sql.NullFloat64
			isDir                   int
		)
		if err := rows.Scan(&ts, &typ, &path, &oldPath, &ext, &pid, &procName,
			&sizeBefore, &sizeAfter, &entropyAfter, &entDelta, &isDir); err != nil {
			return nil, fmt.Errorf("scan file event: %w", err)
		}
		ev := Event{
			Timestamp:   time.Unix(0, ts),
			Type:        Type(typ),
			Path:        path,
			OldPath:     oldPath.String,
			Extension:   ext.String,
			ProcessName: procName.String,
			IsDirectory: isDir != 0,
		}
		if pid.Valid {
			ev.PID = int32(pid.Int64)
			ev.HasPID = true
		}
		if sizeBefore.Valid {
			v := sizeBefore.Int64
			ev.SizeBefore = &v
		}
		if sizeAfter.Valid {
			v := sizeAfter.Int64
			ev.SizeAfter = &v
		}
		if entropyAfter.Valid {
			v := entropyAfter.Float64
			ev.EntropyAfter = &v
		}
		if entDelta.Valid {
			v := entDelta.Float64
			ev.EntropyDelta = &v
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullInt64Ptr(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func nullFloatPtr(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
