package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorClassification(t *testing.T) {
	cfg := NewConfigError("bad block")
	transient := NewTransientError("batch submit", errors.New("connection refused"))
	work := NewWorkFailureError("run-7", "final task failed")
	stall := NewStallError("run-7", "tasks held")

	assert.True(t, IsConfigError(cfg))
	assert.True(t, IsTransient(transient))
	assert.True(t, IsWorkFailure(work))
	assert.True(t, IsStall(stall))

	// Each classification is exclusive.
	assert.False(t, IsTransient(cfg))
	assert.False(t, IsConfigError(transient))
	assert.False(t, IsWorkFailure(stall))
	assert.False(t, IsStall(work))
}

func TestErrorClassificationThroughWrapping(t *testing.T) {
	wrapped := fmt.Errorf("handler: %w", NewTransientError("report", errors.New("timeout")))
	assert.True(t, IsTransient(wrapped))

	cfgWrapped := fmt.Errorf("prepare: %w", NewConfigError("unknown handler"))
	assert.True(t, IsConfigError(cfgWrapped))
}

func TestStorageErrorHelpers(t *testing.T) {
	assert.True(t, IsKeyNotFound(NewKeyNotFoundError("node:1")))
	assert.True(t, IsVersionMismatch(NewVersionMismatchError("node:1", 2, 3)))
	assert.False(t, IsVersionMismatch(NewKeyNotFoundError("node:1")))
	assert.False(t, IsKeyNotFound(errors.New("unrelated")))
}

func TestQueueEntryRoundTrip(t *testing.T) {
	entry := NewQueueEntry(7, "camp/isr", 3)
	payload, err := entry.ToBytes()
	assert.NoError(t, err)

	got, err := QueueEntryFromBytes(payload)
	assert.NoError(t, err)
	assert.Equal(t, int64(7), got.NodeID)
	assert.Equal(t, "camp/isr", got.Fullname)
	assert.Equal(t, ClaimFree, got.State)
	assert.Equal(t, int64(3), got.Sequence)
}
