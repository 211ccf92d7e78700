package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/drover-io/drover/internal/adapters/engine"
	"github.com/drover-io/drover/internal/domain"
	"github.com/drover-io/drover/internal/ports"
)

// Daemon polls the shared queue, claims a bounded batch of entries, and
// dispatches each to the FSM engine on a bounded worker pool. Any number of
// daemons may run against one store: claim arbitration and the engine's
// optimistic updates are both safe under concurrency, and a crashed daemon's
// claims come back after the lease lapses.
type Daemon struct {
	id     string
	engine *engine.Engine
	queue  ports.WorkQueue
	cfg    domain.SchedulerConfig
	logger *slog.Logger

	wg sync.WaitGroup
}

func NewDaemon(id string, eng *engine.Engine, queue ports.WorkQueue, cfg domain.SchedulerConfig, logger *slog.Logger) *Daemon {
	if logger == nil {
		logger = slog.Default()
	}
	return &Daemon{
		id:     id,
		engine: eng,
		queue:  queue,
		cfg:    cfg,
		logger: logger.With("component", "scheduler", "daemon_id", id),
	}
}

// Run polls until the context is cancelled. The scheduler itself never
// stops on a processing error; everything a node can absorb ends up in the
// node's own status.
func (d *Daemon) Run(ctx context.Context) error {
	d.logger.Info("scheduler started",
		"poll_interval", d.cfg.PollInterval,
		"worker_count", d.cfg.WorkerCount,
		"claim_batch", d.cfg.ClaimBatch)

	ticker := time.NewTicker(d.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.wg.Wait()
			d.logger.Info("scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			d.Poll(ctx)
		}
	}
}

// Poll executes one scheduling cycle: reclaim lapsed leases, claim a batch,
// dispatch. Exposed for tests that drive cycles by hand.
func (d *Daemon) Poll(ctx context.Context) {
	if reclaimed, err := d.queue.ReclaimExpired(time.Now().UTC()); err != nil {
		d.logger.Error("lease reclaim failed", "error", err)
	} else if reclaimed > 0 {
		d.logger.Warn("reclaimed expired claims", "count", reclaimed)
	}

	entries, err := d.queue.ClaimBatch(d.id, d.cfg.ClaimBatch, d.cfg.LeaseTTL)
	if err != nil {
		d.logger.Error("claim batch failed", "error", err)
		return
	}

	slots := make(chan struct{}, d.cfg.WorkerCount)
	for _, entry := range entries {
		entry := entry
		slots <- struct{}{}
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			defer func() { <-slots }()
			d.process(ctx, entry)
		}()
	}
	d.wg.Wait()
}

func (d *Daemon) process(ctx context.Context, entry *domain.QueueEntry) {
	result, err := d.engine.Step(ctx, entry)
	if err != nil {
		// Storage-level failure: keep the claim's entry alive and let a
		// later cycle retry the whole step.
		d.logger.Error("step failed",
			"fullname", entry.Fullname,
			"node_id", entry.NodeID,
			"error", err)
		if relErr := d.queue.Release(entry, d.id); relErr != nil {
			d.logger.Error("release failed", "fullname", entry.Fullname, "error", relErr)
		}
		return
	}

	if result.Done {
		if err := d.queue.Complete(entry, d.id); err != nil {
			d.logger.Error("complete failed", "fullname", entry.Fullname, "error", err)
		}
		return
	}

	if result.RetryBump {
		entry.Retries++
	}
	if err := d.queue.Release(entry, d.id); err != nil {
		d.logger.Error("release failed", "fullname", entry.Fullname, "error", err)
	}
}
