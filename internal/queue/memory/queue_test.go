package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentipulse/twitter-crawler/internal/queue"
)

func TestQueuePreservesOrder(t *testing.T) {
	t.Parallel()

	q := NewQueue(4)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, queue.TaskItem{Keyword: "first", Language: "en"}))
	require.NoError(t, q.Enqueue(ctx, queue.TaskItem{Keyword: "second", Language: "en"}))

	item, err := q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, "first", item.Keyword)

	item, err = q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, "second", item.Keyword)
}

func TestDequeueRespectsContextCancel(t *testing.T) {
	t.Parallel()

	q := NewQueue(1)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := q.Dequeue(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDequeueAfterCloseFails(t *testing.T) {
	t.Parallel()

	q := NewQueue(1)
	q.Close()
	q.Close() // idempotent

	_, err := q.Dequeue(context.Background())
	require.Error(t, err)
}

func TestEnqueueBlocksWhenFull(t *testing.T) {
	t.Parallel()

	q := NewQueue(1)
	ctx := context.Background()
	require.NoError(t, q.Enqueue(ctx, queue.TaskItem{Keyword: "one"}))

	blockedCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	err := q.Enqueue(blockedCtx, queue.TaskItem{Keyword: "two"})
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
