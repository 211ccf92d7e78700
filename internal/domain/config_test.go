package domain

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.NotEmpty(t, cfg.DaemonID)
	assert.NotNil(t, cfg.Logger)
	assert.Equal(t, "local", cfg.Backend.Name)
	assert.Equal(t, 2, cfg.Retry.DefaultBudget)

	other := DefaultConfig()
	assert.NotEqual(t, cfg.DaemonID, other.DaemonID)
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DataDir = "/tmp/drover"
	assert.NoError(t, cfg.Validate())

	missing := DefaultConfig()
	assert.Error(t, missing.Validate())

	shortLease := DefaultConfig()
	shortLease.DataDir = "/tmp/drover"
	shortLease.Scheduler.LeaseTTL = time.Millisecond
	assert.Error(t, shortLease.Validate())

	badWorkers := DefaultConfig()
	badWorkers.DataDir = "/tmp/drover"
	badWorkers.Scheduler.WorkerCount = 0
	assert.Error(t, badWorkers.Validate())
}

func TestLoadConfigDefaultsWithoutPath(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, DefaultSchedulerConfig(), cfg.Scheduler)
}

func TestLoadConfigOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
data_dir: /var/lib/drover
spec_dir: /etc/drover/specs
scheduler:
  poll_interval: 500ms
  worker_count: 2
  claim_batch: 4
  lease_ttl: 30s
retry:
  default_budget: 5
`), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/drover", cfg.DataDir)
	assert.Equal(t, 500*time.Millisecond, cfg.Scheduler.PollInterval)
	assert.Equal(t, 2, cfg.Scheduler.WorkerCount)
	assert.Equal(t, 5, cfg.Retry.DefaultBudget)
	// Untouched fields keep their defaults.
	assert.Equal(t, "local", cfg.Backend.Name)
	assert.NotEmpty(t, cfg.DaemonID)
}

func TestLoadConfigInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("data_dir: /x\nscheduler:\n  worker_count: -1\n"), 0o644))

	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.True(t, IsConfigError(err))
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.True(t, IsConfigError(err))
}
