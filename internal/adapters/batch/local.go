package batch

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/drover-io/drover/internal/domain"
	"github.com/drover-io/drover/internal/ports"
)

// Outcome scripts how a simulated run resolves.
type Outcome struct {
	// PollsToSettle is how many reports return a still-running census
	// before the run resolves.
	PollsToSettle int
	// FailedTasks is the failed-task count in the final census.
	FailedTasks int
	// FinalSucceeded is whether the final aggregation task succeeded.
	FinalSucceeded bool
	// HeldPolls holds the run for this many reports before it proceeds.
	HeldPolls int
}

// LocalBackend simulates a batch workflow backend in process. It exists for
// development and for tests that need to steer a run into every terminal
// shape without a real cluster behind them.
type LocalBackend struct {
	logger *slog.Logger

	mu       sync.Mutex
	runs     map[string]*localRun
	outcomes map[string]Outcome
	fallback Outcome
}

type localRun struct {
	desc    ports.SubmitDescription
	outcome Outcome
	polls   int
}

func NewLocalBackend(logger *slog.Logger) *LocalBackend {
	if logger == nil {
		logger = slog.Default()
	}
	return &LocalBackend{
		logger:   logger.With("component", "batch-local"),
		runs:     make(map[string]*localRun),
		outcomes: make(map[string]Outcome),
		fallback: Outcome{PollsToSettle: 1, FinalSucceeded: true},
	}
}

func (b *LocalBackend) Name() string { return "local" }

// ScriptOutcome pins how the run for a given node fullname will resolve.
func (b *LocalBackend) ScriptOutcome(fullname string, outcome Outcome) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.outcomes[fullname] = outcome
}

func (b *LocalBackend) Submit(ctx context.Context, desc ports.SubmitDescription) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	outcome, ok := b.outcomes[desc.Fullname]
	if !ok {
		outcome = b.fallback
	}

	handle := uuid.New().String()
	b.runs[handle] = &localRun{desc: desc, outcome: outcome}
	b.logger.Debug("run submitted", "fullname", desc.Fullname, "handle", handle)
	return handle, nil
}

func (b *LocalBackend) Report(ctx context.Context, handle string) (ports.BatchReport, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	run, ok := b.runs[handle]
	if !ok {
		return ports.BatchReport{}, domain.NewWorkFailureError(handle, "unknown handle")
	}

	run.polls++
	if run.polls <= run.outcome.HeldPolls {
		return ports.BatchReport{Running: 1, Held: 1}, nil
	}
	if run.polls <= run.outcome.HeldPolls+run.outcome.PollsToSettle {
		return ports.BatchReport{Running: 1, Pending: 1}, nil
	}

	return ports.BatchReport{
		Succeeded:      1,
		Failed:         run.outcome.FailedTasks,
		Done:           true,
		FinalSucceeded: run.outcome.FinalSucceeded,
	}, nil
}

// Submissions returns how many runs were submitted, for idempotency checks.
func (b *LocalBackend) Submissions() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.runs)
}
