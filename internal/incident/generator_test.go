package incident

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestGenerateMarkdownAndJSON(t *testing.T) {
	dir := t.TempDir()
	g := NewGenerator(Config{OutputDir: dir, Formats: []string{"markdown", "json"}})

	report := New(time.Now(), 4242, "evil.exe", 92, "CRITICAL", map[string]string{
		"entropy_spike": "3 files jumped above 7.5 bits/byte",
	})
	report.Actions = append(report.Actions, ActionRecord{Name: "terminate", Success: true, Detail: "pid 4242 terminated"})
	report.Files = append(report.Files, FileRecord{Path: "/home/user/doc.txt", BackupID: 1, Restored: true, Integrity: "OK"})

	paths, err := g.Generate(report)
	require.NoError(t, err)
	require.Len(t, paths, 2)

	for _, p := range paths {
		_, err := os.Stat(p)
		require.NoError(t, err)
	}

	md, err := os.ReadFile(filepath.Join(dir, "incident_"+report.ID+".md"))
	require.NoError(t, err)
	require.Contains(t, string(md), "evil.exe")
	require.Contains(t, string(md), "entropy_spike")
}

func TestGenerateDefaultsToMarkdownWhenNoFormatsConfigured(t *testing.T) {
	dir := t.TempDir()
	g := NewGenerator(Config{OutputDir: dir})
	report := New(time.Now(), 1, "p", 10, "NORMAL", nil)

	paths, err := g.Generate(report)
	require.NoError(t, err)
	require.Len(t, paths, 1)
}
