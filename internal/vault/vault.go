// Package vault implements the content-preserving, integrity-checked
// snapshot store: one directory per wall-clock second of snapshot creation,
// flattened-name copies, a metadata.json per directory, and a queryable
// SQLite index of SnapshotRecords.
package vault

import (
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/tarekazabou/ransomguard/internal/errs"
)

// DefaultRetentionHours is how long a snapshot is kept before
// EnforceRetention reclaims it.
const DefaultRetentionHours = 48

// DirMode and FileMode are the owner-only permission bits applied on
// systems that support POSIX permission bits. Elsewhere, setting them is a
// best-effort no-op (os.Chmod's error is ignored).
const (
	DirMode  os.FileMode = 0o700
	FileMode os.FileMode = 0o600
)

const snapshotDirLayout = "2006-01-02_15-04-05"

// Record is the immutable metadata for one backup copy.
type Record struct {
	ID           int64
	OriginalPath string
	BackupPath   string // vault-relative
	Timestamp    time.Time
	Hash         string // hex SHA-256; empty means unknown
	Reason       string
	ProcessName  string
}

// Vault manages the on-disk snapshot tree and its index.
type Vault struct {
	root string
	db   *sql.DB
	mu   sync.Mutex // serializes metadata.json read-modify-write per directory
}

// Open creates (if necessary) the vault root and its index, and returns a
// ready-to-use Vault.
func Open(root string) (*Vault, error) {
	if err := os.MkdirAll(root, DirMode); err != nil {
		return nil, errs.New(errs.IOUnavailable, fmt.Errorf("create vault root: %w", err))
	}
	chmodBestEffort(root, DirMode)

	db, err := sql.Open("sqlite", filepath.Join(root, "index.db"))
	if err != nil {
		return nil, errs.New(errs.PersistenceFailure, fmt.Errorf("open vault index: %w", err))
	}
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA synchronous=NORMAL"} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, errs.New(errs.PersistenceFailure, fmt.Errorf("vault index pragma: %w", err))
		}
	}

	schema := []string{
		`CREATE TABLE IF NOT EXISTS backups (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			original_path TEXT NOT NULL,
			backup_path TEXT NOT NULL,
			timestamp INTEGER NOT NULL,
			hash TEXT,
			reason TEXT,
			process_name TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_backups_original_path ON backups(original_path)`,
		`CREATE INDEX IF NOT EXISTS idx_backups_timestamp ON backups(timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_backups_process_name ON backups(process_name)`,
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, errs.New(errs.PersistenceFailure, fmt.Errorf("vault index schema: %w", err))
		}
	}

	return &Vault{root: root, db: db}, nil
}

// Close releases the underlying index handle.
func (v *Vault) Close() error { return v.db.Close() }

// Root returns the vault's root directory.
func (v *Vault) Root() string { return v.root }

func chmodBestEffort(path string, mode os.FileMode) {
	if runtime.GOOS == "windows" {
		return
	}
	_ = os.Chmod(path, mode)
}

// CreateSnapshot copies original into the vault, indexes it, and returns
// its Record. original must be a regular file; directories and missing
// paths are rejected. Metadata is recorded in the index before this
// returns.
func (v *Vault) CreateSnapshot(original, reason, processName string, ts time.Time) (Record, error) {
	info, err := os.Stat(original)
	if err != nil {
		return Record{}, errs.New(errs.IOUnavailable, fmt.Errorf("stat %s: %w", original, err))
	}
	if info.IsDir() {
		return Record{}, errs.New(errs.ValidationFailure, fmt.Errorf("%s is a directory, not a regular file", original))
	}

	dirName := ts.Format(snapshotDirLayout)
	snapDir := filepath.Join(v.root, dirName)

	v.mu.Lock()
	defer v.mu.Unlock()

	if err := os.MkdirAll(snapDir, DirMode); err != nil {
		return Record{}, errs.New(errs.IOUnavailable, fmt.Errorf("create snapshot directory: %w", err))
	}
	chmodBestEffort(snapDir, DirMode)

	entries, err := readMetadata(snapDir)
	if err != nil {
		return Record{}, errs.New(errs.PersistenceFailure, err)
	}
	used := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		used[e.BackupName] = struct{}{}
	}

	name := uniqueName(used, flattenPath(original))
	destPath := filepath.Join(snapDir, name)

	if err := copyFilePreservingModTime(original, destPath, info); err != nil {
		return Record{}, errs.New(errs.IOUnavailable, err)
	}
	chmodBestEffort(destPath, FileMode)

	hash, err := fileSHA256(destPath)
	if err != nil {
		hash = "" // unknown; restore protocol treats this as integrity-unknown
	}

	entries = append(entries, metadataEntry{
		BackupName:   name,
		OriginalPath: original,
		Timestamp:    ts,
		Hash:         hash,
		Reason:       reason,
		ProcessName:  processName,
	})
	if err := writeMetadata(snapDir, entries); err != nil {
		return Record{}, errs.New(errs.PersistenceFailure, err)
	}

	backupRelPath := filepath.Join(dirName, name)
	res, err := v.db.Exec(
		`INSERT INTO backups(original_path, backup_path, timestamp, hash, reason, process_name)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		original, backupRelPath, ts.UnixNano(), nullableHash(hash), reason, processName,
	)
	if err != nil {
		return Record{}, errs.New(errs.PersistenceFailure, fmt.Errorf("index snapshot: %w", err))
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Record{}, errs.New(errs.PersistenceFailure, fmt.Errorf("index snapshot id: %w", err))
	}

	return Record{
		ID:           id,
		OriginalPath: original,
		BackupPath:   backupRelPath,
		Timestamp:    ts,
		Hash:         hash,
		Reason:       reason,
		ProcessName:  processName,
	}, nil
}

func nullableHash(h string) sql.NullString {
	if h == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: h, Valid: true}
}

func copyFilePreservingModTime(src, dst string, info os.FileInfo) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open source %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, FileMode)
	if err != nil {
		return fmt.Errorf("create backup copy %s: %w", dst, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("copy %s to %s: %w", src, dst, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("close backup copy %s: %w", dst, err)
	}
	return os.Chtimes(dst, info.ModTime(), info.ModTime())
}
