package queue

import (
	"log/slog"
	"time"

	"github.com/drover-io/drover/internal/domain"
	"github.com/drover-io/drover/internal/ports"
)

// WorkQueue stores one entry per schedulable node on the versioned KV
// storage. Claim arbitration is a compare-and-swap on the entry record:
// every competing daemon reads the same version, exactly one write wins, the
// rest observe a version mismatch and move on. A claimed entry carries a
// lease; entries whose lease lapses are reclaimed so a crashed daemon's work
// is re-processed (at-least-once).
type WorkQueue struct {
	storage ports.StoragePort
	logger  *slog.Logger
}

func NewWorkQueue(storage ports.StoragePort, logger *slog.Logger) *WorkQueue {
	if logger == nil {
		logger = slog.Default()
	}
	return &WorkQueue{
		storage: storage,
		logger:  logger.With("component", "work-queue"),
	}
}

func (q *WorkQueue) Enqueue(nodeID int64, fullname string) error {
	key := domain.QueueEntryKey(nodeID)

	_, _, exists, err := q.storage.Get(key)
	if err != nil {
		return err
	}
	if exists {
		// At most one active entry per node.
		return nil
	}

	seq, err := q.storage.AtomicIncrement(domain.QueueSeqKey)
	if err != nil {
		return err
	}

	entry := domain.NewQueueEntry(nodeID, fullname, seq)
	payload, err := entry.ToBytes()
	if err != nil {
		return err
	}

	if err := q.storage.Put(key, payload, 0); err != nil {
		if domain.IsVersionMismatch(err) {
			// Another daemon enqueued the node concurrently.
			return nil
		}
		return err
	}

	q.logger.Debug("entry enqueued", "node_id", nodeID, "fullname", fullname, "sequence", seq)
	return nil
}

func (q *WorkQueue) ClaimBatch(daemonID string, limit int, ttl time.Duration) ([]*domain.QueueEntry, error) {
	items, err := q.storage.ListByPrefix(domain.QueuePrefix)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	var claimed []*domain.QueueEntry
	for _, item := range items {
		if len(claimed) >= limit {
			break
		}

		entry, err := domain.QueueEntryFromBytes(item.Value)
		if err != nil {
			q.logger.Warn("skipping corrupt queue entry", "key", item.Key, "error", err)
			continue
		}
		if entry.State != domain.ClaimFree {
			continue
		}

		entry.State = domain.ClaimClaimed
		entry.ClaimedBy = daemonID
		entry.LeaseExpiresAt = now.Add(ttl)

		payload, err := entry.ToBytes()
		if err != nil {
			return nil, err
		}
		if err := q.storage.Put(item.Key, payload, item.Version); err != nil {
			if domain.IsVersionMismatch(err) {
				// Lost the race to another daemon.
				continue
			}
			return nil, err
		}
		claimed = append(claimed, entry)
	}

	if len(claimed) > 0 {
		q.logger.Debug("claimed batch", "count", len(claimed), "daemon_id", daemonID)
	}
	return claimed, nil
}

func (q *WorkQueue) Complete(entry *domain.QueueEntry, daemonID string) error {
	current, _, err := q.load(entry.NodeID)
	if err != nil {
		return err
	}
	if current.State != domain.ClaimClaimed || current.ClaimedBy != daemonID {
		return domain.ErrNotClaimed
	}
	return q.storage.Delete(domain.QueueEntryKey(entry.NodeID))
}

func (q *WorkQueue) Release(entry *domain.QueueEntry, daemonID string) error {
	current, version, err := q.load(entry.NodeID)
	if err != nil {
		return err
	}
	if current.State != domain.ClaimClaimed || current.ClaimedBy != daemonID {
		return domain.ErrNotClaimed
	}

	current.State = domain.ClaimFree
	current.ClaimedBy = ""
	current.LeaseExpiresAt = time.Time{}
	current.Retries = entry.Retries

	payload, err := current.ToBytes()
	if err != nil {
		return err
	}
	return q.storage.Put(domain.QueueEntryKey(entry.NodeID), payload, version)
}

func (q *WorkQueue) ReclaimExpired(now time.Time) (int, error) {
	items, err := q.storage.ListByPrefix(domain.QueuePrefix)
	if err != nil {
		return 0, err
	}

	reclaimed := 0
	for _, item := range items {
		entry, err := domain.QueueEntryFromBytes(item.Value)
		if err != nil {
			continue
		}
		if !entry.LeaseExpired(now) {
			continue
		}

		holder := entry.ClaimedBy
		entry.State = domain.ClaimFree
		entry.ClaimedBy = ""
		entry.LeaseExpiresAt = time.Time{}

		payload, err := entry.ToBytes()
		if err != nil {
			continue
		}
		if err := q.storage.Put(item.Key, payload, item.Version); err != nil {
			// Another daemon reclaimed it first.
			continue
		}
		reclaimed++
		q.logger.Info("reclaimed expired lease",
			"node_id", entry.NodeID,
			"fullname", entry.Fullname,
			"previous_holder", holder)
	}
	return reclaimed, nil
}

func (q *WorkQueue) Pending() (int, error) {
	items, err := q.storage.ListByPrefix(domain.QueuePrefix)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, item := range items {
		entry, err := domain.QueueEntryFromBytes(item.Value)
		if err != nil {
			continue
		}
		if entry.State == domain.ClaimFree {
			count++
		}
	}
	return count, nil
}

func (q *WorkQueue) load(nodeID int64) (*domain.QueueEntry, int64, error) {
	value, version, exists, err := q.storage.Get(domain.QueueEntryKey(nodeID))
	if err != nil {
		return nil, 0, err
	}
	if !exists {
		return nil, 0, domain.ErrEntryNotFound
	}
	entry, err := domain.QueueEntryFromBytes(value)
	if err != nil {
		return nil, 0, err
	}
	return entry, version, nil
}
