package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWithoutConfigFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, 10, cfg.WindowSeconds)
	require.Equal(t, 10*time.Second, cfg.Window())
	require.True(t, cfg.SafeMode)
	require.Equal(t, 8787, cfg.DashboardPort)
}

func TestLoadOverridesFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("window_seconds: 30\nsafe_mode: false\ndashboard_port: 9000\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 30, cfg.WindowSeconds)
	require.False(t, cfg.SafeMode)
	require.Equal(t, 9000, cfg.DashboardPort)
}

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	require.Equal(t, 10, cfg.WindowSeconds)
}

func TestDeepMergeNestedKeys(t *testing.T) {
	base := map[string]any{
		"weights": map[string]any{"entropy_spike": 30.0, "mass_modification": 25.0},
		"safe_mode": true,
	}
	override := map[string]any{
		"weights": map[string]any{"entropy_spike": 40.0},
	}

	merged := DeepMerge(base, override)
	weights := merged["weights"].(map[string]any)
	require.Equal(t, 40.0, weights["entropy_spike"])
	require.Equal(t, 25.0, weights["mass_modification"])
	require.Equal(t, true, merged["safe_mode"])
}

func TestDeepMergeReplacesNonMapValues(t *testing.T) {
	base := map[string]any{"retention_hours": 48.0}
	override := map[string]any{"retention_hours": 72.0}
	merged := DeepMerge(base, override)
	require.Equal(t, 72.0, merged["retention_hours"])
}
