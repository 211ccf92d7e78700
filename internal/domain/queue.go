package domain

import (
	"time"

	json "github.com/goccy/go-json"
)

type ClaimState string

const (
	ClaimFree    ClaimState = "free"
	ClaimClaimed ClaimState = "claimed"
	ClaimDone    ClaimState = "done"
)

// QueueEntry is the only discovery mechanism for work: one active entry per
// non-superseded node. Claim arbitration is a compare-and-swap on the stored
// record, so at most one daemon ever holds an entry at a time.
type QueueEntry struct {
	NodeID         int64      `json:"node_id"`
	Fullname       string     `json:"fullname"`
	State          ClaimState `json:"state"`
	ClaimedBy      string     `json:"claimed_by,omitempty"`
	LeaseExpiresAt time.Time  `json:"lease_expires_at,omitempty"`
	Retries        int        `json:"retries"`
	Sequence       int64      `json:"sequence"`
	EnqueuedAt     time.Time  `json:"enqueued_at"`
}

func NewQueueEntry(nodeID int64, fullname string, sequence int64) *QueueEntry {
	return &QueueEntry{
		NodeID:     nodeID,
		Fullname:   fullname,
		State:      ClaimFree,
		Sequence:   sequence,
		EnqueuedAt: time.Now().UTC(),
	}
}

func (e *QueueEntry) ToBytes() ([]byte, error) {
	return json.Marshal(e)
}

func QueueEntryFromBytes(data []byte) (*QueueEntry, error) {
	var entry QueueEntry
	err := json.Unmarshal(data, &entry)
	return &entry, err
}

// LeaseExpired reports whether a claimed entry's lease has lapsed and the
// entry may be reclaimed by another daemon.
func (e *QueueEntry) LeaseExpired(now time.Time) bool {
	return e.State == ClaimClaimed && now.After(e.LeaseExpiresAt)
}

// Diagnostic is one free-text failure record attached to a node. Multiple
// diagnostics accumulate across attempts; they are never deleted.
type Diagnostic struct {
	NodeID   int64     `json:"node_id"`
	Fullname string    `json:"fullname"`
	Attempt  int       `json:"attempt"`
	Message  string    `json:"message"`
	Time     time.Time `json:"time"`
}

func (d *Diagnostic) ToBytes() ([]byte, error) {
	return json.Marshal(d)
}

func DiagnosticFromBytes(data []byte) (*Diagnostic, error) {
	var diag Diagnostic
	err := json.Unmarshal(data, &diag)
	return &diag, err
}
