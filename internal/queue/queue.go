package queue

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/maltedev/review-scraper/internal/models"
)

var (
	ErrQueueEmpty  = errors.New("queue is empty")
	ErrQueueClosed = errors.New("queue is closed")
	// ErrMalformedTask means an entry was removed from the queue but could not
	// be decoded into a task.
	ErrMalformedTask = errors.New("malformed task payload")
)

// Queue is the shared task queue. Pop waits at most timeout for a task and
// returns ErrQueueEmpty when none arrived; every pushed task is delivered to
// at most one caller.
type Queue interface {
	Push(ctx context.Context, task models.Task) error
	Pop(ctx context.Context, timeout time.Duration) (models.Task, error)
	Size(ctx context.Context) (int, error)
	Close() error
}

// PushAll enqueues tasks in order and stops at the first error.
func PushAll(ctx context.Context, q Queue, tasks []models.Task) error {
	for _, task := range tasks {
		if err := q.Push(ctx, task); err != nil {
			return err
		}
	}
	return nil
}

type InMemoryQueue struct {
	mu     sync.Mutex
	tasks  []models.Task
	notify chan struct{}
	done   chan struct{}
	closed bool
}

func NewInMemoryQueue() *InMemoryQueue {
	return &InMemoryQueue{
		tasks:  make([]models.Task, 0),
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

func (q *InMemoryQueue) Push(_ context.Context, task models.Task) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}

	q.tasks = append(q.tasks, task)
	select {
	case q.notify <- struct{}{}:
	default:
	}

	return nil
}

func (q *InMemoryQueue) Pop(ctx context.Context, timeout time.Duration) (models.Task, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		if task, ok, err := q.tryPop(); ok {
			return task, err
		}

		select {
		case <-ctx.Done():
			return models.Task{}, ctx.Err()
		case <-q.done:
			return models.Task{}, ErrQueueClosed
		case <-timer.C:
			// a push may have raced with the timer
			if task, ok, err := q.tryPop(); ok {
				return task, err
			}
			return models.Task{}, ErrQueueEmpty
		case <-q.notify:
		}
	}
}

func (q *InMemoryQueue) tryPop() (models.Task, bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.tasks) > 0 {
		task := q.tasks[0]
		q.tasks = q.tasks[1:]
		if len(q.tasks) > 0 {
			// wake another waiter for the remaining tasks
			select {
			case q.notify <- struct{}{}:
			default:
			}
		}
		return task, true, nil
	}
	if q.closed {
		return models.Task{}, true, ErrQueueClosed
	}
	return models.Task{}, false, nil
}

func (q *InMemoryQueue) Size(context.Context) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks), nil
}

// Close stops further pushes. Tasks already queued are discarded and waiting
// callers return ErrQueueClosed.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	q.closed = true
	q.tasks = nil
	close(q.done)

	return nil
}
