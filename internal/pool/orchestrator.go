package pool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/maltedev/review-scraper/internal/models"
	"github.com/maltedev/review-scraper/internal/proxy"
	"github.com/maltedev/review-scraper/internal/queue"
	"github.com/maltedev/review-scraper/internal/ratelimit"
	"github.com/maltedev/review-scraper/internal/scraper"
	"github.com/maltedev/review-scraper/internal/storage"
)

var (
	ErrNoTasks        = errors.New("no tasks to submit")
	ErrAlreadyRunning = errors.New("pool is already running")
)

type Config struct {
	Workers      int
	QueueTimeout time.Duration
	// PopRetryInterval is the first wait after a failed queue read. Later
	// waits grow exponentially up to maxPopRetryInterval.
	PopRetryInterval time.Duration
	ClearCookies     bool
	// RecycleOnRotation restarts a healthy session when sequential rotation
	// assigns the worker a different proxy.
	RecycleOnRotation    bool
	ProfilePrefix        string
	TaskDelayMin         time.Duration
	TaskDelayMax         time.Duration
	NavigationsPerMinute int
	Paginator            scraper.PaginatorOptions
}

func DefaultConfig() Config {
	return Config{
		Workers:          5,
		QueueTimeout:     time.Second,
		PopRetryInterval: 500 * time.Millisecond,
		ClearCookies:     true,
		ProfilePrefix:    "pool",
		Paginator:        scraper.DefaultPaginatorOptions(),
	}
}

// Orchestrator runs a fixed pool of workers over a shared queue and collects
// their results.
type Orchestrator struct {
	cfg        Config
	factory    scraper.SessionFactory
	assigner   *proxy.Assigner
	queue      queue.Queue
	sink       storage.Sink
	results    *Aggregator
	paginator  *scraper.Paginator
	navLimiter *ratelimit.NavigationLimiter
	base       *slog.Logger
	logger     *slog.Logger

	cancelled atomic.Bool
	running   atomic.Bool
	submitted atomic.Int64

	mu      sync.RWMutex
	workers []*Worker
}

func New(
	cfg Config,
	factory scraper.SessionFactory,
	assigner *proxy.Assigner,
	q queue.Queue,
	sink storage.Sink,
	results *Aggregator,
	logger *slog.Logger,
) (*Orchestrator, error) {
	if cfg.Workers < 1 {
		return nil, fmt.Errorf("worker count must be at least 1, got %d", cfg.Workers)
	}
	if cfg.QueueTimeout <= 0 {
		cfg.QueueTimeout = time.Second
	}
	if cfg.PopRetryInterval <= 0 {
		cfg.PopRetryInterval = 500 * time.Millisecond
	}
	if cfg.ProfilePrefix == "" {
		cfg.ProfilePrefix = "pool"
	}

	return &Orchestrator{
		cfg:        cfg,
		factory:    factory,
		assigner:   assigner,
		queue:      q,
		sink:       sink,
		results:    results,
		paginator:  scraper.NewPaginator(cfg.Paginator, logger),
		navLimiter: ratelimit.NewNavigationLimiter(cfg.NavigationsPerMinute),
		base:       logger,
		logger:     logger.With("component", "orchestrator"),
	}, nil
}

// Submit turns every URL into a task and queues it. Duplicates are kept and
// processed independently.
func (o *Orchestrator) Submit(ctx context.Context, urls []string) (int, error) {
	tasks := make([]models.Task, 0, len(urls))
	now := time.Now()
	for _, u := range urls {
		u = strings.TrimSpace(u)
		if u == "" {
			continue
		}
		tasks = append(tasks, models.Task{
			ID:        uuid.NewString(),
			URL:       u,
			CreatedAt: now,
		})
	}
	if len(tasks) == 0 {
		return 0, ErrNoTasks
	}

	if err := queue.PushAll(ctx, o.queue, tasks); err != nil {
		return 0, fmt.Errorf("failed to queue tasks: %w", err)
	}
	o.submitted.Add(int64(len(tasks)))

	o.logger.Info("tasks queued", "count", len(tasks))
	return len(tasks), nil
}

// Run starts the workers and blocks until all of them have returned.
// Cancelling ctx is equivalent to calling Cancel.
func (o *Orchestrator) Run(ctx context.Context) (models.Tally, error) {
	if !o.running.CompareAndSwap(false, true) {
		return models.Tally{}, ErrAlreadyRunning
	}
	defer o.running.Store(false)

	if ctx.Err() != nil {
		o.Cancel()
	}
	stop := context.AfterFunc(ctx, o.Cancel)
	defer stop()

	workers := make([]*Worker, o.cfg.Workers)
	for i := range workers {
		workers[i] = o.newWorker(i)
	}
	o.mu.Lock()
	o.workers = workers
	o.mu.Unlock()

	o.logger.Info("starting workers", "count", len(workers))
	started := time.Now()

	var wg sync.WaitGroup
	for _, w := range workers {
		wg.Add(1)
		go func(w *Worker) {
			defer wg.Done()
			w.Run(ctx)
		}(w)
	}
	wg.Wait()

	tally := o.results.Tally()
	o.logger.Info("all workers finished",
		"duration", time.Since(started).Round(time.Second),
		"succeeded", tally.Succeeded,
		"failed", tally.Failed,
		"total", tally.Total,
		"cancelled", o.Cancelled())
	return tally, nil
}

// Cancel asks workers to stop after their current task.
func (o *Orchestrator) Cancel() {
	if o.cancelled.CompareAndSwap(false, true) {
		o.logger.Info("cancellation requested")
	}
}

func (o *Orchestrator) Cancelled() bool {
	return o.cancelled.Load()
}

func (o *Orchestrator) Running() bool {
	return o.running.Load()
}

func (o *Orchestrator) Submitted() int {
	return int(o.submitted.Load())
}

func (o *Orchestrator) Results() *Aggregator {
	return o.results
}

// Tally summarises the results recorded so far.
func (o *Orchestrator) Tally() models.Tally {
	return o.results.Tally()
}

func (o *Orchestrator) Workers() []WorkerSnapshot {
	o.mu.RLock()
	defer o.mu.RUnlock()

	snaps := make([]WorkerSnapshot, 0, len(o.workers))
	for _, w := range o.workers {
		snaps = append(snaps, w.Snapshot())
	}
	return snaps
}

// Pending is the number of tasks still queued.
func (o *Orchestrator) Pending(ctx context.Context) (int, error) {
	return o.queue.Size(ctx)
}

func (o *Orchestrator) newWorker(id int) *Worker {
	var pacer *ratelimit.AdaptiveRateLimiter
	if o.cfg.TaskDelayMax > 0 {
		pacer = ratelimit.NewAdaptiveRateLimiter(o.cfg.TaskDelayMin, o.cfg.TaskDelayMax)
	}
	return &Worker{
		id:         id,
		profileID:  ProfileID(o.cfg.ProfilePrefix, id),
		cfg:        o.cfg,
		factory:    o.factory,
		assigner:   o.assigner,
		paginator:  o.paginator,
		queue:      o.queue,
		sink:       o.sink,
		results:    o.results,
		pacer:      pacer,
		popRetry:   newPopRetry(o.cfg.PopRetryInterval),
		navLimiter: o.navLimiter,
		cancelled:  o.Cancelled,
		now:        time.Now,
		logger:     o.base.With("component", "worker", "worker", id),
	}
}
