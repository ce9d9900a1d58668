package queue

import (
	"context"
	"testing"
	"time"

	mrd "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisClient(t *testing.T) (*redis.Client, *mrd.Miniredis) {
	t.Helper()
	s := mrd.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb, s
}

func TestRedisQueue_PushPop(t *testing.T) {
	ctx := context.Background()
	rdb, s := newRedisClient(t)
	q := NewRedisQueue(rdb, "")

	require.NoError(t, q.Push(ctx, task(1)))
	require.NoError(t, q.Push(ctx, task(2)))

	size, err := q.Size(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, size)

	items, err := s.List(DefaultRedisKey)
	require.NoError(t, err)
	assert.Len(t, items, 2)

	first, err := q.Pop(ctx, time.Second)
	require.NoError(t, err)
	assert.Equal(t, task(1), first)

	second, err := q.Pop(ctx, time.Second)
	require.NoError(t, err)
	assert.Equal(t, task(2), second)
}

func TestRedisQueue_EmptyAfterTimeout(t *testing.T) {
	rdb, _ := newRedisClient(t)
	q := NewRedisQueue(rdb, "test:empty")

	_, err := q.Pop(context.Background(), time.Second)
	assert.ErrorIs(t, err, ErrQueueEmpty)
}

func TestRedisQueue_BadPayload(t *testing.T) {
	ctx := context.Background()
	rdb, s := newRedisClient(t)
	q := NewRedisQueue(rdb, "test:bad")

	_, err := s.Lpush("test:bad", "not json")
	require.NoError(t, err)

	_, err = q.Pop(ctx, time.Second)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedTask)
	assert.Contains(t, err.Error(), "unmarshal")

	n, err := q.Size(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "the undecodable entry is consumed")
}

func TestRedisQueue_Closed(t *testing.T) {
	ctx := context.Background()
	rdb, _ := newRedisClient(t)
	q := NewRedisQueue(rdb, "test:closed")

	require.NoError(t, q.Close())
	assert.ErrorIs(t, q.Push(ctx, task(1)), ErrQueueClosed)
	_, err := q.Pop(ctx, time.Second)
	assert.ErrorIs(t, err, ErrQueueClosed)
}

func TestRedisQueue_ServerDown(t *testing.T) {
	rdb, s := newRedisClient(t)
	q := NewRedisQueue(rdb, "test:down")
	s.Close()

	err := q.Push(context.Background(), task(1))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrQueueClosed)
}
