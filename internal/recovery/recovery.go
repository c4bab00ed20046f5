// Package recovery implements integrity-verified restoration of files from
// the snapshot vault, by backup id, original path, originating process, or
// time range.
package recovery

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/tarekazabou/ransomguard/internal/errs"
	"github.com/tarekazabou/ransomguard/internal/vault"
)

// IntegrityStatus is a tri-state: known-good, known-bad, or unknown (no
// hash was recorded at snapshot time).
type IntegrityStatus int

const (
	IntegrityUnknown IntegrityStatus = iota
	IntegrityOK
	IntegrityFailed
)

// Result is the outcome of one restore attempt.
type Result struct {
	OriginalPath string
	BackupPath   string
	Success      bool
	Integrity    IntegrityStatus
	Error        string
}

// Recovery restores files from a vault.Vault. It never references the
// Response Engine — the dependency runs one-way, engine -> vault/recovery.
type Recovery struct {
	vault *vault.Vault
}

// New builds a Recovery over an already-open vault.
func New(v *vault.Vault) *Recovery {
	return &Recovery{vault: v}
}

// RestoreByID restores a single backup by its index id.
func (r *Recovery) RestoreByID(id int64) Result {
	rec, found, err := r.vault.GetBackupByID(id)
	if err != nil {
		return Result{Success: false, Error: errs.New(errs.PersistenceFailure, err).Error()}
	}
	if !found {
		return Result{Success: false, Error: errs.New(errs.ValidationFailure, fmt.Errorf("no backup with id %d", id)).Error()}
	}
	return r.doRestore(rec, rec.OriginalPath)
}

// RestoreByPath restores backups matching originalPath. If latestOnly, only
// the newest version is restored to originalPath; otherwise every
// historical version is restored to sequentially numbered destinations
// alongside originalPath.
func (r *Recovery) RestoreByPath(originalPath string, latestOnly bool) ([]Result, error) {
	recs, err := r.vault.GetBackups(vault.BackupFilter{OriginalPath: originalPath})
	if err != nil {
		return nil, errs.New(errs.PersistenceFailure, fmt.Errorf("find backups for %s: %w", originalPath, err))
	}
	if len(recs) == 0 {
		return nil, nil
	}
	sortNewestFirst(recs)

	if latestOnly {
		return []Result{r.doRestore(recs[0], originalPath)}, nil
	}

	ext := filepath.Ext(originalPath)
	stem := originalPath[:len(originalPath)-len(ext)]
	results := make([]Result, 0, len(recs))
	for i, rec := range recs {
		dest := fmt.Sprintf("%s.restored_%d%s", stem, i+1, ext)
		results = append(results, r.doRestore(rec, dest))
	}
	return results, nil
}

// RestoreByProcess restores the newest backup per original path among
// those attributed to processName.
func (r *Recovery) RestoreByProcess(processName string) ([]Result, error) {
	recs, err := r.vault.GetBackups(vault.BackupFilter{ProcessName: processName})
	if err != nil {
		return nil, errs.New(errs.PersistenceFailure, fmt.Errorf("find backups for process %s: %w", processName, err))
	}
	return r.restoreNewestPerPath(recs), nil
}

// RestoreByTimeRange restores the newest backup per original path among
// those created since `since`.
func (r *Recovery) RestoreByTimeRange(since time.Time) ([]Result, error) {
	recs, err := r.vault.GetBackups(vault.BackupFilter{Since: since})
	if err != nil {
		return nil, errs.New(errs.PersistenceFailure, fmt.Errorf("find backups since %s: %w", since, err))
	}
	return r.restoreNewestPerPath(recs), nil
}

func (r *Recovery) restoreNewestPerPath(recs []vault.Record) []Result {
	sortNewestFirst(recs)
	seen := make(map[string]struct{}, len(recs))
	var results []Result
	for _, rec := range recs {
		if _, dup := seen[rec.OriginalPath]; dup {
			continue
		}
		seen[rec.OriginalPath] = struct{}{}
		results = append(results, r.doRestore(rec, rec.OriginalPath))
	}
	return results
}

func sortNewestFirst(recs []vault.Record) {
	sort.Slice(recs, func(i, j int) bool { return recs[i].Timestamp.After(recs[j].Timestamp) })
}

// VerifyBackup recomputes the hash of a stored backup and compares it to
// the recorded one, without restoring anything.
func (r *Recovery) VerifyBackup(rec vault.Record) (IntegrityStatus, error) {
	if rec.Hash == "" {
		return IntegrityUnknown, nil
	}
	current, err := fileSHA256(r.vault.AbsoluteBackupPath(rec))
	if err != nil {
		return IntegrityUnknown, err
	}
	if current != rec.Hash {
		return IntegrityFailed, nil
	}
	return IntegrityOK, nil
}

// doRestore applies the integrity-before-write discipline: if rec has a
// stored hash and the backup's current hash doesn't match, the destination
// is left untouched and the restore fails. If no hash was recorded,
// integrity is "unknown" and the restore proceeds anyway.
func (r *Recovery) doRestore(rec vault.Record, dest string) Result {
	backupPath := r.vault.AbsoluteBackupPath(rec)
	status := IntegrityUnknown

	if rec.Hash != "" {
		current, err := fileSHA256(backupPath)
		if err != nil {
			return Result{OriginalPath: rec.OriginalPath, BackupPath: backupPath, Success: false, Integrity: IntegrityUnknown,
				Error: errs.New(errs.IOUnavailable, err).Error()}
		}
		if current != rec.Hash {
			return Result{OriginalPath: rec.OriginalPath, BackupPath: backupPath, Success: false, Integrity: IntegrityFailed,
				Error: errs.New(errs.IntegrityFailure, fmt.Errorf("backup integrity check failed: hash mismatch, destination not overwritten")).Error()}
		}
		status = IntegrityOK
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return Result{OriginalPath: rec.OriginalPath, BackupPath: backupPath, Success: false, Integrity: status,
			Error: errs.New(errs.IOUnavailable, err).Error()}
	}
	if err := copyFile(backupPath, dest); err != nil {
		return Result{OriginalPath: rec.OriginalPath, BackupPath: backupPath, Success: false, Integrity: status,
			Error: errs.New(errs.IOUnavailable, err).Error()}
	}

	return Result{OriginalPath: dest, BackupPath: backupPath, Success: true, Integrity: status}
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open backup %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("create restore destination %s: %w", dst, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("copy %s to %s: %w", src, dst, err)
	}
	return out.Close()
}
