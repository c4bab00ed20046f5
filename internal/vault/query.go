package vault

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// BackupFilter selects a subset of the index for GetBackups. Zero values
// mean "unfiltered" for that predicate.
type BackupFilter struct {
	OriginalPath string
	ProcessName  string
	Since        time.Time
	Limit        int
}

// GetBackups returns Records matching f, newest first.
func (v *Vault) GetBackups(f BackupFilter) ([]Record, error) {
	clauses := []string{"1=1"}
	args := []any{}

	if f.OriginalPath != "" {
		clauses = append(clauses, "original_path = ?")
		args = append(args, f.OriginalPath)
	}
	if f.ProcessName != "" {
		clauses = append(clauses, "process_name = ?")
		args = append(args, f.ProcessName)
	}
	if !f.Since.IsZero() {
		clauses = append(clauses, "timestamp >= ?")
		args = append(args, f.Since.UnixNano())
	}

	query := fmt.Sprintf(
		`SELECT id, original_path, backup_path, timestamp, hash, reason, process_name
		 FROM backups WHERE %s ORDER BY timestamp DESC`, strings.Join(clauses, " AND "))
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", f.Limit)
	}

	rows, err := v.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query backups: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

// GetBackupByID returns the Record with the given id, or ok=false if none
// exists.
func (v *Vault) GetBackupByID(id int64) (Record, bool, error) {
	row := v.db.QueryRow(
		`SELECT id, original_path, backup_path, timestamp, hash, reason, process_name
		 FROM backups WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("get backup %d: %w", id, err)
	}
	return rec, true, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (Record, error) {
	var (
		rec       Record
		ts        int64
		hash      sql.NullString
		reason    sql.NullString
		procName  sql.NullString
	)
	if err := row.Scan(&rec.ID, &rec.OriginalPath, &rec.BackupPath, &ts, &hash, &reason, &procName); err != nil {
		return Record{}, err
	}
	rec.Timestamp = time.Unix(0, ts)
	rec.Hash = hash.String
	rec.Reason = reason.String
	rec.ProcessName = procName.String
	return rec, nil
}

func scanRecords(rows *sql.Rows) ([]Record, error) {
	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan backup row: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// AbsoluteBackupPath resolves a Record's vault-relative backup path to an
// absolute filesystem path.
func (v *Vault) AbsoluteBackupPath(rec Record) string {
	return filepath.Join(v.root, rec.BackupPath)
}

// EnforceRetention removes every Record older than retentionHours and
// unlinks its backup file. A snapshot directory that becomes empty (or
// contains only metadata.json) after removal is deleted.
func (v *Vault) EnforceRetention(retentionHours int, now time.Time) error {
	if retentionHours <= 0 {
		retentionHours = DefaultRetentionHours
	}
	cutoff := now.Add(-time.Duration(retentionHours) * time.Hour)

	rows, err := v.db.Query(
		`SELECT id, original_path, backup_path, timestamp, hash, reason, process_name
		 FROM backups WHERE timestamp < ?`, cutoff.UnixNano())
	if err != nil {
		return fmt.Errorf("query expired backups: %w", err)
	}
	expired, err := scanRecords(rows)
	rows.Close()
	if err != nil {
		return err
	}

	touchedDirs := make(map[string]struct{})
	for _, rec := range expired {
		abs := v.AbsoluteBackupPath(rec)
		if err := os.Remove(abs); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove expired backup %s: %w", abs, err)
		}
		if _, err := v.db.Exec(`DELETE FROM backups WHERE id = ?`, rec.ID); err != nil {
			return fmt.Errorf("delete expired index row %d: %w", rec.ID, err)
		}
		touchedDirs[filepath.Dir(abs)] = struct{}{}
	}

	for dir := range touchedDirs {
		if err := pruneEmptySnapshotDir(dir); err != nil {
			return err
		}
	}
	return nil
}

func pruneEmptySnapshotDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read snapshot directory %s: %w", dir, err)
	}

	if len(entries) == 0 {
		return os.Remove(dir)
	}
	if len(entries) == 1 && entries[0].Name() == metadataFileName {
		return os.RemoveAll(dir)
	}
	return nil
}
