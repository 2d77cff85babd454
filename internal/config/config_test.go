package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baiirun/programme/internal/logging"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.Mode.Reduced)
	assert.Equal(t, 3, cfg.Limits.Reduced.MaxTasks)
	assert.Equal(t, 2, cfg.Limits.Reduced.MaxHolidays)
}

func TestLoad_OverlaysFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
storage:
  path: /tmp/x.db
mode:
  reduced: true
limits:
  reduced:
    max_tasks: 5
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/x.db", cfg.Storage.Path)
	assert.True(t, cfg.Mode.Reduced)
	assert.Equal(t, 5, cfg.Limits.Reduced.MaxTasks)
	// untouched fields keep defaults
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoad_RejectsNegativeLimits(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("limits:\n  normal:\n    max_undos: -1\n"), 0644))

	_, err := Load(path)
	assert.ErrorContains(t, err, "max_undos")
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("mode: [unterminated"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestSave_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := Default()
	cfg.Mode.Reduced = true
	cfg.Actor.ID = "site-manager"

	require.NoError(t, Save(path, cfg))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file must not be left behind")
}

func TestWatcher_ReloadsModeFlag(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := Default()
	require.NoError(t, Save(path, cfg))

	w, err := Watch(path, logging.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })

	ctx := context.Background()
	reduced, err := w.IsReducedCapabilityMode(ctx)
	require.NoError(t, err)
	assert.False(t, reduced)

	cfg.Mode.Reduced = true
	require.NoError(t, Save(path, cfg))

	assert.Eventually(t, func() bool {
		on, _ := w.IsReducedCapabilityMode(ctx)
		return on
	}, 5*time.Second, 20*time.Millisecond)
}
