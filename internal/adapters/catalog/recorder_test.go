package catalog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drover-io/drover/internal/adapters/storage"
)

func newTestRecorder(t *testing.T) *Recorder {
	t.Helper()
	kv, err := storage.Open("", nil)
	require.NoError(t, err)
	t.Cleanup(func() { kv.Close() })
	return NewRecorder(kv, nil)
}

func TestCreateTagged(t *testing.T) {
	r := newTestRecorder(t)
	ctx := context.Background()

	require.NoError(t, r.CreateTagged(ctx, "camp/isr/input", "visit > 100"))

	names, err := r.Collections("camp/isr")
	require.NoError(t, err)
	assert.Equal(t, []string{"camp/isr/input"}, names)
}

func TestCreateTaggedIdempotent(t *testing.T) {
	r := newTestRecorder(t)
	ctx := context.Background()

	require.NoError(t, r.CreateTagged(ctx, "camp/input", "q"))
	require.NoError(t, r.CreateTagged(ctx, "camp/input", "q"))

	names, err := r.Collections("camp")
	require.NoError(t, err)
	assert.Len(t, names, 1)
}

func TestChainedAppend(t *testing.T) {
	r := newTestRecorder(t)
	ctx := context.Background()

	require.NoError(t, r.CreateChained(ctx, "camp/out", []string{"camp/isr/out"}))
	require.NoError(t, r.AppendChained(ctx, "camp/out", []string{"camp/calibrate/out"}))

	names, err := r.Collections("camp/out")
	require.NoError(t, err)
	assert.Equal(t, []string{"camp/out"}, names)
}

func TestAppendChainedCreatesWhenMissing(t *testing.T) {
	r := newTestRecorder(t)
	require.NoError(t, r.AppendChained(context.Background(), "camp/out", []string{"a"}))

	names, err := r.Collections("camp/out")
	require.NoError(t, err)
	assert.Len(t, names, 1)
}

func TestAppendChainedRejectsTagged(t *testing.T) {
	r := newTestRecorder(t)
	ctx := context.Background()

	require.NoError(t, r.CreateTagged(ctx, "camp/tagged", "q"))
	assert.Error(t, r.AppendChained(ctx, "camp/tagged", []string{"a"}))
}

func TestCollectionsPrefixFilter(t *testing.T) {
	r := newTestRecorder(t)
	ctx := context.Background()

	require.NoError(t, r.CreateTagged(ctx, "alpha/in", "q"))
	require.NoError(t, r.CreateTagged(ctx, "beta/in", "q"))

	names, err := r.Collections("alpha")
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha/in"}, names)
}
