package ports

import (
	"time"

	"github.com/drover-io/drover/internal/domain"
)

// WorkQueue is the shared discovery mechanism for runnable nodes. ClaimBatch
// must be safe under concurrent daemons: each returned entry is held by
// exactly one caller until completed, released, or its lease expires.
type WorkQueue interface {
	// Enqueue creates a free entry for the node. Enqueueing a node that
	// already has an active entry is a no-op.
	Enqueue(nodeID int64, fullname string) error

	// ClaimBatch atomically claims up to limit free entries for daemonID,
	// each with a lease of ttl.
	ClaimBatch(daemonID string, limit int, ttl time.Duration) ([]*domain.QueueEntry, error)

	// Complete removes a claimed entry permanently.
	Complete(entry *domain.QueueEntry, daemonID string) error

	// Release returns a claimed entry to the free state for a later cycle.
	Release(entry *domain.QueueEntry, daemonID string) error

	// ReclaimExpired frees entries whose claim lease has lapsed, returning
	// the number reclaimed. Safe to call from any daemon.
	ReclaimExpired(now time.Time) (int, error)

	Pending() (int, error)
}
