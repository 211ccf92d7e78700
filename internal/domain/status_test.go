package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusOrdering(t *testing.T) {
	assert.True(t, StatusRejected < StatusFailed)
	assert.True(t, StatusFailed < StatusWaiting)
	assert.True(t, StatusWaiting < StatusReady)
	assert.True(t, StatusRunning < StatusReviewable)
	assert.True(t, StatusReviewable < StatusAccepted)
	assert.True(t, StatusAccepted < StatusArchived)
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "waiting", StatusWaiting.String())
	assert.Equal(t, "reviewable", StatusReviewable.String())
	assert.Equal(t, "status(42)", Status(42).String())
}

func TestStatusTerminal(t *testing.T) {
	for _, s := range []Status{StatusRejected, StatusFailed, StatusAccepted, StatusArchived} {
		assert.True(t, s.Terminal(), s.String())
	}
	for _, s := range []Status{StatusWaiting, StatusReady, StatusPrepared, StatusRunning, StatusReviewable} {
		assert.False(t, s.Terminal(), s.String())
	}
}

func TestStatusBeforeRunning(t *testing.T) {
	assert.True(t, StatusWaiting.BeforeRunning())
	assert.True(t, StatusReady.BeforeRunning())
	assert.True(t, StatusPrepared.BeforeRunning())
	assert.False(t, StatusRunning.BeforeRunning())
	assert.False(t, StatusFailed.BeforeRunning())
	assert.False(t, StatusRejected.BeforeRunning())
}

func TestCanTransition(t *testing.T) {
	legal := []struct{ from, to Status }{
		{StatusWaiting, StatusReady},
		{StatusReady, StatusPrepared},
		{StatusPrepared, StatusRunning},
		{StatusPrepared, StatusAccepted},
		{StatusRunning, StatusAccepted},
		{StatusRunning, StatusReviewable},
		{StatusRunning, StatusFailed},
		{StatusReviewable, StatusAccepted},
		{StatusReviewable, StatusFailed},
		{StatusFailed, StatusWaiting},
		{StatusAccepted, StatusArchived},
		{StatusRejected, StatusArchived},
	}
	for _, tc := range legal {
		assert.True(t, CanTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}

	illegal := []struct{ from, to Status }{
		{StatusWaiting, StatusRunning},
		{StatusWaiting, StatusAccepted},
		{StatusReady, StatusRunning},
		{StatusRunning, StatusWaiting},
		{StatusRunning, StatusRejected},
		{StatusAccepted, StatusWaiting},
		{StatusAccepted, StatusFailed},
		{StatusArchived, StatusWaiting},
		{StatusReviewable, StatusRunning},
	}
	for _, tc := range illegal {
		assert.False(t, CanTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestRejectionOnlyBeforeRunning(t *testing.T) {
	// Once external work may have been issued, rejection is no longer an
	// available edge; failure is.
	assert.True(t, CanTransition(StatusWaiting, StatusRejected))
	assert.True(t, CanTransition(StatusReady, StatusRejected))
	assert.True(t, CanTransition(StatusPrepared, StatusRejected))
	assert.False(t, CanTransition(StatusRunning, StatusRejected))
	assert.False(t, CanTransition(StatusReviewable, StatusRejected))
}
