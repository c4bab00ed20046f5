package vault

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func openTestVault(t *testing.T) *Vault {
	t.Helper()
	v, err := Open(filepath.Join(t.TempDir(), "vault"))
	require.NoError(t, err)
	t.Cleanup(func() { v.Close() })
	return v
}

func TestFlattenPath(t *testing.T) {
	require.Equal(t, "home_user_report.docx", flattenPath("/home/user/report.docx"))
	require.Equal(t, "C_Users_bob_doc.txt", flattenPath(`C:\Users\bob\doc.txt`))
}

func TestUniqueNameAppendsSuffix(t *testing.T) {
	used := map[string]struct{}{"report.txt": {}}
	require.Equal(t, "report_1.txt", uniqueName(used, "report.txt"))
	used["report_1.txt"] = struct{}{}
	require.Equal(t, "report_2.txt", uniqueName(used, "report.txt"))
}

// TestCreateSnapshotProducesReadableCopyWithMatchingHash checks that the
// backup copy is bytewise identical to the source and that the recorded
// hash is the SHA-256 of that copy.
func TestCreateSnapshotProducesReadableCopyWithMatchingHash(t *testing.T) {
	v := openTestVault(t)
	src := filepath.Join(t.TempDir(), "important.docx")
	content := []byte("quarterly numbers, do not lose")
	require.NoError(t, os.WriteFile(src, content, 0o600))

	rec, err := v.CreateSnapshot(src, "level2_warning", "winword.exe", time.Now())
	require.NoError(t, err)
	require.NotEmpty(t, rec.Hash)

	got, err := os.ReadFile(v.AbsoluteBackupPath(rec))
	require.NoError(t, err)
	require.Equal(t, content, got)

	sum, err := fileSHA256(src)
	require.NoError(t, err)
	require.Equal(t, sum, rec.Hash)
}

func TestCreateSnapshotRejectsDirectory(t *testing.T) {
	v := openTestVault(t)
	_, err := v.CreateSnapshot(t.TempDir(), "reason", "proc", time.Now())
	require.Error(t, err)
}

func TestCreateSnapshotHandlesNameCollision(t *testing.T) {
	v := openTestVault(t)
	ts := time.Now()

	srcDir := t.TempDir()
	a := filepath.Join(srcDir, "sub1", "doc.txt")
	b := filepath.Join(srcDir, "sub2", "doc.txt")
	require.NoError(t, os.MkdirAll(filepath.Dir(a), 0o700))
	require.NoError(t, os.MkdirAll(filepath.Dir(b), 0o700))
	require.NoError(t, os.WriteFile(a, []byte("a"), 0o600))
	require.NoError(t, os.WriteFile(b, []byte("b"), 0o600))

	recA, err := v.CreateSnapshot(a, "r", "p", ts)
	require.NoError(t, err)
	recB, err := v.CreateSnapshot(b, "r", "p", ts)
	require.NoError(t, err)

	require.NotEqual(t, recA.BackupPath, recB.BackupPath)
}

func TestGetBackupsFiltersByProcess(t *testing.T) {
	v := openTestVault(t)
	src := filepath.Join(t.TempDir(), "f.txt")
	require.NoError(t, os.WriteFile(src, []byte("x"), 0o600))

	_, err := v.CreateSnapshot(src, "r", "alpha.exe", time.Now())
	require.NoError(t, err)
	_, err = v.CreateSnapshot(src, "r", "beta.exe", time.Now())
	require.NoError(t, err)

	got, err := v.GetBackups(BackupFilter{ProcessName: "alpha.exe"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "alpha.exe", got[0].ProcessName)
}

func TestEnforceRetentionRemovesExpiredBackupsAndEmptyDirs(t *testing.T) {
	v := openTestVault(t)
	src := filepath.Join(t.TempDir(), "f.txt")
	require.NoError(t, os.WriteFile(src, []byte("x"), 0o600))

	old := time.Now().Add(-72 * time.Hour)
	rec, err := v.CreateSnapshot(src, "r", "p", old)
	require.NoError(t, err)

	absBefore := v.AbsoluteBackupPath(rec)
	_, statErr := os.Stat(absBefore)
	require.NoError(t, statErr)

	require.NoError(t, v.EnforceRetention(DefaultRetentionHours, time.Now()))

	_, statErr = os.Stat(absBefore)
	require.True(t, os.IsNotExist(statErr))

	_, statErr = os.Stat(filepath.Dir(absBefore))
	require.True(t, os.IsNotExist(statErr))

	_, found, err := v.GetBackupByID(rec.ID)
	require.NoError(t, err)
	require.False(t, found)
}
