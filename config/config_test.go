package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsWhenNoFile(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	require.Equal(t, DefaultMaxConcurrentRequests, cfg.Limits.MaxConcurrentRequests)
	require.Equal(t, DefaultPreviewRowLimit, cfg.Limits.PreviewRowLimit)
	require.Empty(t, cfg.Model)
	require.False(t, cfg.Writes)
}

func TestLoad_FileOverrides(t *testing.T) {
	dir := t.TempDir()
	yamlBody := []byte(`
limits:
  max_open_datasets: 3
  preview_row_limit: 25
dirs:
  - /srv/datasets
model: gpt-4o-mini
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFileName), yamlBody, 0o600))

	cfg, err := Load(dir)
	require.NoError(t, err)
	require.Equal(t, 3, cfg.Limits.MaxOpenDatasets)
	require.Equal(t, 25, cfg.Limits.PreviewRowLimit)
	require.Equal(t, []string{"/srv/datasets"}, cfg.Dirs)
	require.Equal(t, "gpt-4o-mini", cfg.Model)
	// Untouched keys keep their defaults.
	require.Equal(t, DefaultMaxRowsPerOp, cfg.Limits.MaxRowsPerOp)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	yamlBody := []byte("model: from-file\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFileName), yamlBody, 0o600))
	t.Setenv("DATALOOM_MODEL", "from-env")
	t.Setenv("DATALOOM_WRITES", "true")

	cfg, err := Load(dir)
	require.NoError(t, err)
	require.Equal(t, "from-env", cfg.Model)
	require.True(t, cfg.Writes)
}

func TestLoad_FloorsBadValues(t *testing.T) {
	dir := t.TempDir()
	yamlBody := []byte("limits:\n  max_rows_per_op: -5\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFileName), yamlBody, 0o600))

	cfg, err := Load(dir)
	require.NoError(t, err)
	require.Equal(t, DefaultMaxRowsPerOp, cfg.Limits.MaxRowsPerOp)
}
