package db

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testQueueStore(t *testing.T) (*QueueStore, func()) {
	t.Helper()
	store, cleanup := testStore(t)
	return NewQueueStore(store), cleanup
}

func TestQueueStore_EnqueueIdempotent(t *testing.T) {
	queue, cleanup := testQueueStore(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, queue.Enqueue(ctx, 1))
	require.NoError(t, queue.Enqueue(ctx, 1))

	count, err := queue.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	queued, err := queue.IsQueued(ctx, 1)
	require.NoError(t, err)
	assert.True(t, queued)
}

func TestQueueStore_NextPendingOrder(t *testing.T) {
	queue, cleanup := testQueueStore(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, queue.Enqueue(ctx, 7))
	require.NoError(t, queue.Enqueue(ctx, 3))

	// Oldest first.
	next, err := queue.NextPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(7), next)

	require.NoError(t, queue.Remove(ctx, 7))

	next, err = queue.NextPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), next)
}

func TestQueueStore_NextPendingEmpty(t *testing.T) {
	queue, cleanup := testQueueStore(t)
	defer cleanup()

	next, err := queue.NextPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), next)
}

func TestQueueStore_Remove(t *testing.T) {
	queue, cleanup := testQueueStore(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, queue.Enqueue(ctx, 5))
	require.NoError(t, queue.Remove(ctx, 5))

	queued, err := queue.IsQueued(ctx, 5)
	require.NoError(t, err)
	assert.False(t, queued)

	// Removing an absent item is a no-op.
	require.NoError(t, queue.Remove(ctx, 5))
}
