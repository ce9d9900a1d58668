package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/maltedev/review-scraper/internal/models"
)

const DefaultRedisKey = "reviews:tasks"

// RedisQueue is a list-backed queue: LPUSH on push, BRPOP on pop. The client
// is owned by the caller.
type RedisQueue struct {
	client *redis.Client
	key    string
	closed atomic.Bool
}

func NewRedisQueue(client *redis.Client, key string) *RedisQueue {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisQueue{
		client: client,
		key:    key,
	}
}

func (q *RedisQueue) Push(ctx context.Context, task models.Task) error {
	if q.closed.Load() {
		return ErrQueueClosed
	}

	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to marshal task: %w", err)
	}

	if err := q.client.LPush(ctx, q.key, data).Err(); err != nil {
		return fmt.Errorf("failed to push task to %s: %w", q.key, err)
	}
	return nil
}

// Pop blocks for at most timeout, rounded up to whole seconds by Redis.
func (q *RedisQueue) Pop(ctx context.Context, timeout time.Duration) (models.Task, error) {
	if q.closed.Load() {
		return models.Task{}, ErrQueueClosed
	}
	if timeout < time.Second {
		timeout = time.Second
	}

	result, err := q.client.BRPop(ctx, timeout, q.key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return models.Task{}, ErrQueueEmpty
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return models.Task{}, ctxErr
		}
		return models.Task{}, fmt.Errorf("failed to pop task from %s: %w", q.key, err)
	}

	// BRPOP replies with [key, value]
	if len(result) != 2 {
		return models.Task{}, fmt.Errorf("unexpected BRPOP reply of length %d", len(result))
	}

	var task models.Task
	if err := json.Unmarshal([]byte(result[1]), &task); err != nil {
		return models.Task{}, fmt.Errorf("%w: failed to unmarshal task: %w", ErrMalformedTask, err)
	}
	return task, nil
}

func (q *RedisQueue) Size(ctx context.Context) (int, error) {
	n, err := q.client.LLen(ctx, q.key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to get length of %s: %w", q.key, err)
	}
	return int(n), nil
}

// Close makes further pushes and pops fail. Queued tasks stay in Redis.
func (q *RedisQueue) Close() error {
	q.closed.Store(true)
	return nil
}
