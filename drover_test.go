package drover

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drover-io/drover/internal/domain"
)

const testSpecs = `
blocks:
  - name: campaign-base
    handler: campaign
    collections:
      root: repo/raw
  - name: element-base
    handler: element
  - name: step-isr
    includes: [element-base]
    data:
      pipeline: isr
  - name: job-base
    handler: job
    scripts:
      - name: run
  - name: script-base
    handler: batch_script
    collections:
      output: "{campaign}/{segment}/out"

specifications:
  - name: resample
    aliases:
      campaign: campaign-base
      group: element-base
      job: job-base
      script: script-base
    steps:
      - name: isr
        block: step-isr
`

func newTestManager(t *testing.T) *Manager {
	t.Helper()

	specDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(specDir, "resample.yaml"), []byte(testSpecs), 0o644))

	cfg := DefaultConfig()
	cfg.DataDir = filepath.Join(t.TempDir(), "data")
	cfg.SpecDir = specDir
	cfg.Scheduler.PollInterval = 2 * time.Millisecond
	cfg.Logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	mgr, err := Open(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { mgr.Close() })
	return mgr
}

func TestOpenValidatesConfig(t *testing.T) {
	cfg := DefaultConfig()
	_, err := Open(cfg)
	assert.Error(t, err)
}

func TestOpenRejectsUnknownBackend(t *testing.T) {
	specDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(specDir, "s.yaml"), []byte(testSpecs), 0o644))

	cfg := DefaultConfig()
	cfg.DataDir = filepath.Join(t.TempDir(), "data")
	cfg.SpecDir = specDir
	cfg.Backend.Name = "slurm"

	_, err := Open(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "slurm")
}

func TestEndToEndCampaign(t *testing.T) {
	mgr := newTestManager(t)

	node, err := mgr.Submit(context.Background(), &SubmissionDoc{
		Campaign:      "nightly",
		Specification: "resample",
	})
	require.NoError(t, err)
	assert.Equal(t, "nightly", node.Fullname)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	runDone := make(chan struct{})
	go func() {
		mgr.Run(ctx)
		close(runDone)
	}()

	require.Eventually(t, func() bool {
		summary, err := mgr.Status("nightly")
		return err == nil && summary.Status == domain.StatusAccepted
	}, 3*time.Second, 10*time.Millisecond)

	cancel()
	<-runDone

	summary, err := mgr.Status("nightly")
	require.NoError(t, err)
	assert.Equal(t, "accepted", summary.StatusName)
	assert.Zero(t, summary.NeedsAttention)
	assert.Positive(t, summary.Counts["accepted"])

	all, err := mgr.Campaigns()
	require.NoError(t, err)
	require.Len(t, all, 1)

	// The graph persisted the full hierarchy.
	leaf, err := mgr.Status("nightly/isr/group00/job00/run")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAccepted, leaf.Status)
}

func TestSubmitUnknownSpecification(t *testing.T) {
	mgr := newTestManager(t)

	_, err := mgr.Submit(context.Background(), &SubmissionDoc{
		Campaign:      "nightly",
		Specification: "nope",
	})
	assert.Error(t, err)
}
