package pool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff"

	"github.com/maltedev/review-scraper/internal/models"
	"github.com/maltedev/review-scraper/internal/proxy"
	"github.com/maltedev/review-scraper/internal/queue"
	"github.com/maltedev/review-scraper/internal/ratelimit"
	"github.com/maltedev/review-scraper/internal/scraper"
	"github.com/maltedev/review-scraper/internal/storage"
)

// WorkerSnapshot is a point-in-time view of a worker for status reporting.
type WorkerSnapshot struct {
	ID             int    `json:"id"`
	ProductsParsed int    `json:"products_parsed"`
	Proxy          string `json:"proxy,omitempty"`
	HasSession     bool   `json:"has_session"`
	CurrentURL     string `json:"current_url,omitempty"`
	// PaceDelay is the current min-max gap between tasks when pacing is on.
	PaceDelay string `json:"pace_delay,omitempty"`
	Done      bool   `json:"done"`
}

// Worker owns at most one live session and processes queued tasks one at a
// time until the queue is drained or the pool is cancelled.
type Worker struct {
	id        int
	profileID string
	cfg       Config

	factory    scraper.SessionFactory
	assigner   *proxy.Assigner
	paginator  *scraper.Paginator
	queue      queue.Queue
	sink       storage.Sink
	results    *Aggregator
	pacer      *ratelimit.AdaptiveRateLimiter // nil when pacing is off
	popRetry   *backoff.ExponentialBackOff
	navLimiter *ratelimit.NavigationLimiter
	cancelled  func() bool
	now        func() time.Time
	logger     *slog.Logger

	// session is only touched by the worker goroutine; mu guards the fields
	// read by Snapshot.
	session        scraper.Session
	mu             sync.Mutex
	productsParsed int
	proxy          *proxy.Spec
	hasSession     bool
	currentURL     string
	done           bool
}

// ProfileID is the stable browser profile name of a worker.
func ProfileID(prefix string, workerID int) string {
	return fmt.Sprintf("%s_%d", prefix, workerID)
}

func (w *Worker) ID() int {
	return w.id
}

func (w *Worker) Snapshot() WorkerSnapshot {
	w.mu.Lock()
	defer w.mu.Unlock()

	snap := WorkerSnapshot{
		ID:             w.id,
		ProductsParsed: w.productsParsed,
		HasSession:     w.hasSession,
		CurrentURL:     w.currentURL,
		Done:           w.done,
	}
	if w.proxy != nil {
		snap.Proxy = w.proxy.String()
	}
	if w.pacer != nil {
		lo, hi := w.pacer.Delays()
		snap.PaceDelay = fmt.Sprintf("%s-%s", lo, hi)
	}
	return snap
}

func (w *Worker) ProductsParsed() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.productsParsed
}

// Run processes tasks until the queue stays empty for the configured timeout,
// the queue is closed or cancellation is observed between tasks.
func (w *Worker) Run(ctx context.Context) {
	w.logger.Info("worker started", "profile", w.profileID)

	defer func() {
		w.closeSession("worker exiting")
		w.mu.Lock()
		w.done = true
		w.mu.Unlock()
	}()

	processed := 0
	for {
		if w.cancelled() {
			w.logger.Info("cancellation observed, stopping", "processed", processed)
			return
		}

		if w.pacer != nil {
			if err := w.pacer.Wait(ctx); err != nil {
				return
			}
		}

		task, err := w.queue.Pop(ctx, w.cfg.QueueTimeout)
		if err != nil {
			switch {
			case errors.Is(err, queue.ErrQueueEmpty):
				w.logger.Info("queue drained, stopping", "processed", processed)
				return
			case errors.Is(err, queue.ErrQueueClosed), ctx.Err() != nil:
				w.logger.Info("stopping", "processed", processed, "reason", err)
				return
			case errors.Is(err, queue.ErrMalformedTask):
				// the entry is already off the queue and was never counted
				w.logger.Warn("skipping undecodable task", "error", err)
				continue
			default:
				wait := w.popRetry.NextBackOff()
				w.logger.Error("failed to pop task, retrying", "error", err, "retry_in", wait)
				if !sleepCtx(ctx, wait) {
					w.logger.Info("stopping", "processed", processed, "reason", ctx.Err())
					return
				}
				continue
			}
		}
		w.popRetry.Reset()

		w.setCurrent(task.URL)
		// in-flight tasks are never aborted by cancellation
		result := w.process(context.WithoutCancel(ctx), task)
		w.setCurrent("")

		w.results.Record(ctx, result)
		processed++

		w.logger.Info("task finished",
			"url", task.URL,
			"outcome", result.Outcome,
			"reviews", result.ReviewCount,
			"error", result.Error)
	}
}

func (w *Worker) process(ctx context.Context, task models.Task) (result models.TaskResult) {
	result = models.TaskResult{
		Task:        task,
		WorkerID:    w.id,
		ProductName: scraper.UnknownProduct,
	}
	defer func() { result.FinishedAt = w.now() }()

	w.maybeRotate()

	if w.session == nil {
		if err := w.openSession(ctx); err != nil {
			w.recordPace(false)
			result.Outcome = models.OutcomeSessionFailure
			result.Error = err.Error()
			return result
		}
	}

	w.navLimiter.Take()
	report := w.paginator.Run(ctx, w.session, task)

	result.Outcome = report.Outcome
	result.ProductName = report.ProductName
	result.ReviewCount = len(report.Reviews)

	if report.Faulted() {
		if report.Err != nil {
			result.Error = report.Err.Error()
		} else {
			result.Error = string(report.Outcome)
		}
		w.logger.Warn("session fault, discarding session", "url", task.URL, "error", result.Error)
		w.closeSession("fault")
		w.recordPace(false)
		return result
	}

	w.recordPace(true)
	w.mu.Lock()
	w.productsParsed++
	w.mu.Unlock()

	if w.cfg.ClearCookies {
		if err := w.session.ClearCookies(ctx); err != nil {
			w.logger.Warn("failed to clear cookies, discarding session", "error", err)
			w.closeSession("cookie clearing failed")
		} else {
			w.logger.Debug("cookies cleared")
		}
	}

	if report.Outcome == models.OutcomeSuccess && len(report.Reviews) > 0 {
		doc := storage.NewDocument(task.URL, report.ProductName, report.Reviews, w.now())
		path, err := w.sink.Persist(doc)
		if err != nil {
			result.Error = fmt.Sprintf("persist: %v", err)
			w.logger.Error("failed to persist result", "url", task.URL, "error", err)
			return result
		}
		result.OutputPath = path
		w.logger.Info("result saved",
			"path", path,
			"reviews", doc.TotalReviews,
			"images", doc.TotalImages,
			"videos", doc.TotalVideos)
	}

	return result
}

func (w *Worker) openSession(ctx context.Context) error {
	spec := w.assigner.Assign(w.id, w.ProductsParsed())

	session, err := w.factory.Create(ctx, w.profileID, spec)
	if err != nil {
		w.logger.Error("failed to create session", "error", err)
		return fmt.Errorf("create session: %w", err)
	}

	w.session = session
	w.mu.Lock()
	w.proxy = spec
	w.hasSession = true
	w.mu.Unlock()

	if spec != nil {
		w.logger.Info("session created", "proxy", spec.Address())
	} else {
		w.logger.Info("session created")
	}
	return nil
}

// maybeRotate recycles a healthy session when sequential rotation has moved
// this worker to another proxy.
func (w *Worker) maybeRotate() {
	if w.session == nil || !w.cfg.RecycleOnRotation {
		return
	}
	policy := w.assigner.Policy()
	if policy.Mode != proxy.ModeRotation || policy.Rotation != proxy.RotationSequential {
		return
	}

	next := w.assigner.Assign(w.id, w.ProductsParsed())
	w.mu.Lock()
	current := w.proxy
	w.mu.Unlock()

	if current == nil || next == nil || *current != *next {
		w.closeSession("proxy rotation")
	}
}

func (w *Worker) closeSession(reason string) {
	if w.session == nil {
		return
	}
	if err := w.session.Close(); err != nil {
		w.logger.Debug("failed to close session", "error", err)
	}
	w.session = nil

	w.mu.Lock()
	w.hasSession = false
	w.proxy = nil
	w.mu.Unlock()

	w.logger.Info("session closed", "reason", reason)
}

// recordPace widens or relaxes inter-task pacing; a worker without pacing
// configured never waits.
func (w *Worker) recordPace(ok bool) {
	switch {
	case w.pacer == nil:
	case ok:
		w.pacer.RecordSuccess()
	default:
		w.pacer.RecordError()
	}
}

func (w *Worker) setCurrent(url string) {
	w.mu.Lock()
	w.currentURL = url
	w.mu.Unlock()
}

func newPopRetry(initial time.Duration) *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = initial
	b.MaxInterval = maxPopRetryInterval
	// retries end with the queue or with cancellation, never by elapsed time
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

const maxPopRetryInterval = 10 * time.Second

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
