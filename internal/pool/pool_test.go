package pool

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maltedev/review-scraper/internal/models"
	"github.com/maltedev/review-scraper/internal/proxy"
	"github.com/maltedev/review-scraper/internal/queue"
	"github.com/maltedev/review-scraper/internal/scraper"
	"github.com/maltedev/review-scraper/internal/scraper/scrapertest"
	"github.com/maltedev/review-scraper/internal/storage"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig(workers int) Config {
	return Config{
		Workers:          workers,
		QueueTimeout:     20 * time.Millisecond,
		PopRetryInterval: 5 * time.Millisecond,
		ClearCookies:     true,
		ProfilePrefix:    "pool",
		Paginator: scraper.PaginatorOptions{
			MaxReviews:         600,
			MaxAdvanceAttempts: 50,
		},
	}
}

type memorySink struct {
	mu   sync.Mutex
	docs []*storage.Document
	err  error
}

func (s *memorySink) Persist(doc *storage.Document) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	s.docs = append(s.docs, doc)
	return fmt.Sprintf("mem/%d.json", len(s.docs)), nil
}

func (s *memorySink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.docs)
}

type recorderFunc func(ctx context.Context, r models.TaskResult) error

func (f recorderFunc) Record(ctx context.Context, r models.TaskResult) error {
	return f(ctx, r)
}

func newTestPool(t *testing.T, cfg Config, f scraper.SessionFactory, policy proxy.Policy, sink storage.Sink, recs ...Recorder) *Orchestrator {
	t.Helper()
	return newTestPoolWithQueue(t, cfg, f, policy, queue.NewInMemoryQueue(), sink, recs...)
}

func newTestPoolWithQueue(t *testing.T, cfg Config, f scraper.SessionFactory, policy proxy.Policy, q queue.Queue, sink storage.Sink, recs ...Recorder) *Orchestrator {
	t.Helper()
	assigner, err := proxy.NewAssigner(policy)
	require.NoError(t, err)

	o, err := New(cfg, f, assigner, q, sink, NewAggregator(discardLogger(), recs...), discardLogger())
	require.NoError(t, err)
	return o
}

// unreliableQueue fails the first pops with popErr before serving from the
// wrapped queue.
type unreliableQueue struct {
	queue.Queue
	mu       sync.Mutex
	failures int
	popErr   error
	pops     int
}

func (q *unreliableQueue) Pop(ctx context.Context, timeout time.Duration) (models.Task, error) {
	q.mu.Lock()
	q.pops++
	if q.failures > 0 {
		q.failures--
		q.mu.Unlock()
		return models.Task{}, q.popErr
	}
	q.mu.Unlock()
	return q.Queue.Pop(ctx, timeout)
}

func runPool(t *testing.T, o *Orchestrator, urls ...string) models.Tally {
	t.Helper()
	ctx := context.Background()
	_, err := o.Submit(ctx, urls)
	require.NoError(t, err)

	tally, err := o.Run(ctx)
	require.NoError(t, err)
	return tally
}

func TestPool_AllPagesWithoutReviews(t *testing.T) {
	dir := t.TempDir()
	sink, err := storage.NewFileSink(dir)
	require.NoError(t, err)

	urls := []string{"https://ozon.ru/p/1", "https://ozon.ru/p/2", "https://ozon.ru/p/3"}
	pages := map[string]scrapertest.Page{}
	for _, u := range urls {
		pages[u] = scrapertest.Page{Name: "empty", NoReviews: true}
	}
	factory := scrapertest.NewFactory(pages)

	o := newTestPool(t, testConfig(1), factory, proxy.Policy{Mode: proxy.ModeNone}, sink)
	tally := runPool(t, o, urls...)

	assert.Equal(t, 3, tally.Total)
	assert.Equal(t, 0, tally.Succeeded)
	assert.Equal(t, 3, tally.Failed)
	assert.Equal(t, 3, tally.Outcomes[models.OutcomeNoReviews])
	assert.Zero(t, tally.Outcomes[models.OutcomeSuccess])

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)

	sessions := factory.Sessions()
	require.Len(t, sessions, 1)
	assert.Equal(t, 3, sessions[0].Clears())
	assert.True(t, sessions[0].Closed())

	snaps := o.Workers()
	require.Len(t, snaps, 1)
	assert.Equal(t, 3, snaps[0].ProductsParsed)
	assert.True(t, snaps[0].Done)
	assert.False(t, snaps[0].HasSession)
}

func TestPool_SuccessIsPersisted(t *testing.T) {
	url := "https://ozon.ru/p/ok?from=search"
	factory := scrapertest.NewFactory(map[string]scrapertest.Page{
		url: {Name: "Чайник", Reviews: scrapertest.Reviews("A", "B", "A", "C")},
	})
	sink := &memorySink{}

	o := newTestPool(t, testConfig(1), factory, proxy.Policy{Mode: proxy.ModeNone}, sink)
	tally := runPool(t, o, url)

	require.Equal(t, 1, tally.Succeeded)
	res := tally.Successes[0]
	assert.Equal(t, models.OutcomeSuccess, res.Outcome)
	assert.Equal(t, "Чайник", res.ProductName)
	assert.Equal(t, 3, res.ReviewCount)
	assert.Equal(t, "mem/1.json", res.OutputPath)
	assert.False(t, res.FinishedAt.IsZero())

	require.Equal(t, 1, sink.count())
	doc := sink.docs[0]
	assert.Equal(t, "https://ozon.ru/p/ok", doc.ProductURL)
	assert.Equal(t, 3, doc.TotalReviews)
}

func TestPool_SuccessWithoutReviewsWritesNothing(t *testing.T) {
	url := "https://ozon.ru/p/blank"
	// the viewer opens but the first read finds nothing
	factory := scrapertest.NewFactory(map[string]scrapertest.Page{
		url: {Reviews: scrapertest.Reviews("A")},
	})
	sink := &memorySink{}
	o := newTestPool(t, testConfig(1), notFoundFactory{factory}, proxy.Policy{Mode: proxy.ModeNone}, sink)

	tally := runPool(t, o, url)

	require.Equal(t, 1, tally.Succeeded)
	assert.Equal(t, 0, tally.Successes[0].ReviewCount)
	assert.Empty(t, tally.Successes[0].OutputPath)
	assert.Zero(t, sink.count())
}

type notFoundFactory struct{ *scrapertest.Factory }

func (f notFoundFactory) Create(ctx context.Context, profileID string, p *proxy.Spec) (scraper.Session, error) {
	s, err := f.Factory.Create(ctx, profileID, p)
	if err != nil {
		return nil, err
	}
	return notFoundSession{s}, nil
}

type notFoundSession struct{ scraper.Session }

func (notFoundSession) ActiveReview(context.Context) scraper.Extraction { return scraper.NotFound() }

func TestPool_SessionCreateFailureIsRecordedAndRecovered(t *testing.T) {
	urls := []string{"https://ozon.ru/p/1", "https://ozon.ru/p/2"}
	factory := scrapertest.NewFactory(map[string]scrapertest.Page{
		urls[0]: {Reviews: scrapertest.Reviews("A")},
		urls[1]: {Reviews: scrapertest.Reviews("B")},
	})
	factory.FailCreates = 1

	o := newTestPool(t, testConfig(1), factory, proxy.Policy{Mode: proxy.ModeNone}, &memorySink{})
	tally := runPool(t, o, urls...)

	assert.Equal(t, 2, tally.Total)
	assert.Equal(t, 1, tally.Outcomes[models.OutcomeSessionFailure])
	assert.Equal(t, 1, tally.Succeeded)
	require.Len(t, tally.Failures, 1)
	assert.Contains(t, tally.Failures[0].Error, "create session")
	assert.Len(t, factory.Sessions(), 1)
	assert.Equal(t, 1, o.Workers()[0].ProductsParsed)
}

func TestPool_NavigationFaultDiscardsSession(t *testing.T) {
	urls := []string{"https://ozon.ru/p/bad", "https://ozon.ru/p/good"}
	factory := scrapertest.NewFactory(map[string]scrapertest.Page{
		urls[0]: {NavigateErr: scrapertest.ErrInjected},
		urls[1]: {Reviews: scrapertest.Reviews("A")},
	})

	o := newTestPool(t, testConfig(1), factory, proxy.Policy{Mode: proxy.ModeNone}, &memorySink{})
	tally := runPool(t, o, urls...)

	assert.Equal(t, 1, tally.Outcomes[models.OutcomeSessionFailure])
	assert.Equal(t, 1, tally.Succeeded)

	sessions := factory.Sessions()
	require.Len(t, sessions, 2)
	assert.True(t, sessions[0].Closed())
	assert.Zero(t, sessions[0].Clears(), "faulted session is not reused for cookie clearing")
	assert.Equal(t, 1, o.Workers()[0].ProductsParsed)
}

func TestPool_ExtractorFaultDiscardsSession(t *testing.T) {
	urls := []string{"https://ozon.ru/p/flaky", "https://ozon.ru/p/fine"}
	factory := scrapertest.NewFactory(map[string]scrapertest.Page{
		urls[0]: {Reviews: scrapertest.Reviews("A", "B"), FaultOnExtract: 2},
		urls[1]: {Reviews: scrapertest.Reviews("C")},
	})
	sink := &memorySink{}

	o := newTestPool(t, testConfig(1), factory, proxy.Policy{Mode: proxy.ModeNone}, sink)
	tally := runPool(t, o, urls...)

	assert.Equal(t, 1, tally.Outcomes[models.OutcomeExtractorFailure])
	assert.Equal(t, 1, tally.Succeeded)
	assert.Equal(t, 1, sink.count(), "partial collections are not persisted")
	assert.Len(t, factory.Sessions(), 2)
	assert.Equal(t, 1, o.Workers()[0].ProductsParsed)
}

func TestPool_CookieClearFailureKeepsOutcome(t *testing.T) {
	urls := []string{"https://ozon.ru/p/1", "https://ozon.ru/p/2"}
	factory := scrapertest.NewFactory(map[string]scrapertest.Page{
		urls[0]: {Reviews: scrapertest.Reviews("A")},
		urls[1]: {Reviews: scrapertest.Reviews("B")},
	})
	factory.ClearErr = errors.New("cdp gone")

	o := newTestPool(t, testConfig(1), factory, proxy.Policy{Mode: proxy.ModeNone}, &memorySink{})
	tally := runPool(t, o, urls...)

	assert.Equal(t, 2, tally.Succeeded)
	assert.Len(t, factory.Sessions(), 2)
	assert.Equal(t, 2, o.Workers()[0].ProductsParsed)
}

func TestPool_CookieClearingDisabled(t *testing.T) {
	url := "https://ozon.ru/p/1"
	factory := scrapertest.NewFactory(map[string]scrapertest.Page{url: {Reviews: scrapertest.Reviews("A")}})
	cfg := testConfig(1)
	cfg.ClearCookies = false

	o := newTestPool(t, cfg, factory, proxy.Policy{Mode: proxy.ModeNone}, &memorySink{})
	runPool(t, o, url)

	require.Len(t, factory.Sessions(), 1)
	assert.Zero(t, factory.Sessions()[0].Clears())
}

func TestPool_PersistFailureCountsAsFailure(t *testing.T) {
	url := "https://ozon.ru/p/1"
	factory := scrapertest.NewFactory(map[string]scrapertest.Page{url: {Reviews: scrapertest.Reviews("A")}})

	o := newTestPool(t, testConfig(1), factory, proxy.Policy{Mode: proxy.ModeNone}, &memorySink{err: errors.New("disk full")})
	tally := runPool(t, o, url)

	assert.Equal(t, 0, tally.Succeeded)
	require.Len(t, tally.Failures, 1)
	assert.Equal(t, models.OutcomeSuccess, tally.Failures[0].Outcome)
	assert.Contains(t, tally.Failures[0].Reason(), "disk full")
}

func TestPool_EveryTaskCountedExactlyOnce(t *testing.T) {
	pages := map[string]scrapertest.Page{}
	var urls []string
	for i := 0; i < 60; i++ {
		u := fmt.Sprintf("https://ozon.ru/p/%d", i)
		urls = append(urls, u)
		switch i % 5 {
		case 0:
			pages[u] = scrapertest.Page{NoReviews: true}
		case 1:
			pages[u] = scrapertest.Page{NavigateErr: scrapertest.ErrInjected}
		case 2:
			pages[u] = scrapertest.Page{Reviews: scrapertest.Reviews("A", "B"), FaultOnExtract: 2}
		default:
			pages[u] = scrapertest.Page{Reviews: scrapertest.Reviews("A", "B", "C")}
		}
	}
	// duplicates are processed independently
	urls = append(urls, urls[3], urls[3])

	factory := scrapertest.NewFactory(pages)
	factory.FailCreates = 3

	o := newTestPool(t, testConfig(4), factory, proxy.Policy{Mode: proxy.ModeNone}, &memorySink{})
	tally := runPool(t, o, urls...)

	assert.Equal(t, len(urls), tally.Total)
	assert.Equal(t, tally.Total, tally.Succeeded+tally.Failed)
	assert.Equal(t, o.Submitted(), tally.Total)

	seen := map[string]int{}
	for _, r := range o.Results().Results() {
		seen[r.Task.ID]++
	}
	assert.Len(t, seen, len(urls))
	for id, n := range seen {
		assert.Equal(t, 1, n, id)
	}

	pending, err := o.Pending(context.Background())
	require.NoError(t, err)
	assert.Zero(t, pending)

	parsed := 0
	profiles := map[string]struct{}{}
	for _, snap := range o.Workers() {
		parsed += snap.ProductsParsed
	}
	for _, s := range factory.Sessions() {
		profiles[s.ProfileID] = struct{}{}
		assert.True(t, s.Closed())
	}
	nonFaulted := tally.Outcomes[models.OutcomeSuccess] + tally.Outcomes[models.OutcomeNoReviews]
	assert.Equal(t, nonFaulted, parsed)
	assert.LessOrEqual(t, len(profiles), 4)
}

func TestPool_TransientQueueErrorIsRetried(t *testing.T) {
	urls := []string{"https://ozon.ru/p/1", "https://ozon.ru/p/2", "https://ozon.ru/p/3"}
	pages := map[string]scrapertest.Page{}
	for _, u := range urls {
		pages[u] = scrapertest.Page{Reviews: scrapertest.Reviews("A")}
	}

	q := &unreliableQueue{
		Queue:    queue.NewInMemoryQueue(),
		failures: 2,
		popErr:   errors.New("i/o timeout"),
	}
	o := newTestPoolWithQueue(t, testConfig(1), scrapertest.NewFactory(pages), proxy.Policy{Mode: proxy.ModeNone}, q, &memorySink{})
	tally := runPool(t, o, urls...)

	assert.Equal(t, 3, tally.Total)
	assert.Equal(t, 3, tally.Succeeded)
	assert.Greater(t, q.pops, 3)
}

func TestPool_MalformedTaskIsSkipped(t *testing.T) {
	urls := []string{"https://ozon.ru/p/1", "https://ozon.ru/p/2"}
	pages := map[string]scrapertest.Page{}
	for _, u := range urls {
		pages[u] = scrapertest.Page{Reviews: scrapertest.Reviews("A")}
	}

	q := &unreliableQueue{
		Queue:    queue.NewInMemoryQueue(),
		failures: 1,
		popErr:   fmt.Errorf("%w: unexpected end of JSON input", queue.ErrMalformedTask),
	}
	o := newTestPoolWithQueue(t, testConfig(1), scrapertest.NewFactory(pages), proxy.Policy{Mode: proxy.ModeNone}, q, &memorySink{})
	tally := runPool(t, o, urls...)

	assert.Equal(t, 2, tally.Total)
	assert.Equal(t, 2, tally.Succeeded)
}

func TestPool_QueueErrorRetryStopsOnContextCancel(t *testing.T) {
	q := &unreliableQueue{
		Queue:    queue.NewInMemoryQueue(),
		failures: 1 << 20,
		popErr:   errors.New("connection refused"),
	}
	o := newTestPoolWithQueue(t, testConfig(2), scrapertest.NewFactory(nil), proxy.Policy{Mode: proxy.ModeNone}, q, &memorySink{})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err := o.Submit(ctx, []string{"https://ozon.ru/p/1"})
	require.NoError(t, err)

	tally, err := o.Run(ctx)
	require.NoError(t, err)
	assert.Zero(t, tally.Total)
	assert.True(t, o.Cancelled())
}

func TestPool_CancellationBetweenTasks(t *testing.T) {
	urls := []string{"https://ozon.ru/p/1", "https://ozon.ru/p/2", "https://ozon.ru/p/3"}
	pages := map[string]scrapertest.Page{}
	for _, u := range urls {
		pages[u] = scrapertest.Page{Reviews: scrapertest.Reviews("A")}
	}

	var o *Orchestrator
	factory := &cancellingFactory{Factory: scrapertest.NewFactory(pages), cancel: func() { o.Cancel() }}
	o = newTestPool(t, testConfig(1), factory, proxy.Policy{Mode: proxy.ModeNone}, &memorySink{})

	tally := runPool(t, o, urls...)

	// the task in flight when cancellation arrived still completes
	assert.Equal(t, 1, tally.Total)
	assert.Equal(t, 1, tally.Succeeded)
	assert.True(t, o.Cancelled())

	pending, err := o.Pending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, pending)
}

type cancellingFactory struct {
	*scrapertest.Factory
	cancel func()
}

func (f *cancellingFactory) Create(ctx context.Context, profileID string, p *proxy.Spec) (scraper.Session, error) {
	f.cancel()
	return f.Factory.Create(ctx, profileID, p)
}

func TestPool_ContextCancelStopsBeforeStart(t *testing.T) {
	factory := scrapertest.NewFactory(nil)
	o := newTestPool(t, testConfig(2), factory, proxy.Policy{Mode: proxy.ModeNone}, &memorySink{})

	_, err := o.Submit(context.Background(), []string{"https://ozon.ru/p/1"})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	tally, err := o.Run(ctx)
	require.NoError(t, err)

	assert.Zero(t, tally.Total)
	assert.True(t, o.Cancelled())
	assert.Empty(t, factory.Sessions())
}

func TestPool_SequentialRotation(t *testing.T) {
	urls := []string{"https://ozon.ru/p/1", "https://ozon.ru/p/2", "https://ozon.ru/p/3"}
	pages := map[string]scrapertest.Page{}
	for _, u := range urls {
		pages[u] = scrapertest.Page{Reviews: scrapertest.Reviews("A")}
	}
	policy := proxy.Policy{
		Mode:     proxy.ModeRotation,
		Pool:     []proxy.Spec{{Scheme: proxy.SchemeHTTP, Host: "p1", Port: 1}, {Scheme: proxy.SchemeHTTP, Host: "p2", Port: 2}},
		Interval: 1,
		Rotation: proxy.RotationSequential,
	}

	t.Run("session kept without recycling", func(t *testing.T) {
		factory := scrapertest.NewFactory(pages)
		o := newTestPool(t, testConfig(1), factory, policy, &memorySink{})
		runPool(t, o, urls...)

		sessions := factory.Sessions()
		require.Len(t, sessions, 1)
		assert.Equal(t, "p1", sessions[0].Proxy.Host)
	})

	t.Run("session recycled on rotation", func(t *testing.T) {
		factory := scrapertest.NewFactory(pages)
		cfg := testConfig(1)
		cfg.RecycleOnRotation = true
		o := newTestPool(t, cfg, factory, policy, &memorySink{})
		runPool(t, o, urls...)

		sessions := factory.Sessions()
		require.Len(t, sessions, 3)
		assert.Equal(t, "p1", sessions[0].Proxy.Host)
		assert.Equal(t, "p2", sessions[1].Proxy.Host)
		assert.Equal(t, "p1", sessions[2].Proxy.Host)
		for _, s := range sessions {
			assert.Equal(t, "pool_0", s.ProfileID)
		}
	})

	t.Run("rotation after fault", func(t *testing.T) {
		faulty := map[string]scrapertest.Page{
			urls[0]: {Reviews: scrapertest.Reviews("A")},
			urls[1]: {NavigateErr: scrapertest.ErrInjected},
			urls[2]: {Reviews: scrapertest.Reviews("A")},
		}
		factory := scrapertest.NewFactory(faulty)
		o := newTestPool(t, testConfig(1), factory, policy, &memorySink{})
		runPool(t, o, urls...)

		sessions := factory.Sessions()
		require.Len(t, sessions, 2)
		assert.Equal(t, "p1", sessions[0].Proxy.Host)
		// one non-faulted task completed before the fault
		assert.Equal(t, "p2", sessions[1].Proxy.Host)
	})
}

func TestPool_SingleProxyAndSnapshot(t *testing.T) {
	url := "https://ozon.ru/p/1"
	factory := scrapertest.NewFactory(map[string]scrapertest.Page{url: {Reviews: scrapertest.Reviews("A")}})
	single := proxy.Spec{Scheme: proxy.SchemeHTTP, Host: "only", Port: 3128, Username: "u", Password: "secret"}

	o := newTestPool(t, testConfig(1), factory, proxy.Policy{Mode: proxy.ModeSingle, Single: single}, &memorySink{})
	runPool(t, o, url)

	require.Len(t, factory.Sessions(), 1)
	assert.Equal(t, single, *factory.Sessions()[0].Proxy)

	snap := o.Workers()[0]
	assert.Empty(t, snap.Proxy, "proxy is cleared once the session is closed")
	assert.Empty(t, snap.CurrentURL)
	assert.Empty(t, snap.PaceDelay, "pacing is off without a task delay")
}

func TestPool_RecordersReceiveEveryResult(t *testing.T) {
	urls := []string{"https://ozon.ru/p/1", "https://ozon.ru/p/2"}
	factory := scrapertest.NewFactory(map[string]scrapertest.Page{
		urls[0]: {Reviews: scrapertest.Reviews("A")},
	})

	var mu sync.Mutex
	var recorded []models.TaskResult
	ok := recorderFunc(func(_ context.Context, r models.TaskResult) error {
		mu.Lock()
		defer mu.Unlock()
		recorded = append(recorded, r)
		return nil
	})
	broken := recorderFunc(func(context.Context, models.TaskResult) error {
		return errors.New("ledger down")
	})

	o := newTestPool(t, testConfig(1), factory, proxy.Policy{Mode: proxy.ModeNone}, &memorySink{}, broken, ok)
	tally := runPool(t, o, urls...)

	assert.Equal(t, 2, tally.Total)
	assert.Len(t, recorded, 2)
}

func TestOrchestrator_Validation(t *testing.T) {
	assigner, err := proxy.NewAssigner(proxy.Policy{Mode: proxy.ModeNone})
	require.NoError(t, err)

	_, err = New(Config{Workers: 0}, scrapertest.NewFactory(nil), assigner, queue.NewInMemoryQueue(), &memorySink{}, NewAggregator(discardLogger()), discardLogger())
	assert.Error(t, err)

	o := newTestPool(t, testConfig(1), scrapertest.NewFactory(nil), proxy.Policy{Mode: proxy.ModeNone}, &memorySink{})
	_, err = o.Submit(context.Background(), []string{"", "   "})
	assert.ErrorIs(t, err, ErrNoTasks)

	n, err := o.Submit(context.Background(), []string{" https://ozon.ru/p/1 ", ""})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestProfileID(t *testing.T) {
	assert.Equal(t, "pool_3", ProfileID("pool", 3))
}

func TestPool_PacingAndNavigationLimit(t *testing.T) {
	urls := []string{"https://ozon.ru/p/1", "https://ozon.ru/p/2", "https://ozon.ru/p/3"}
	factory := scrapertest.NewFactory(map[string]scrapertest.Page{
		urls[0]: {Reviews: scrapertest.Reviews("A")},
		urls[1]: {NavigateErr: scrapertest.ErrInjected},
	})
	cfg := testConfig(2)
	cfg.TaskDelayMin = time.Millisecond
	cfg.TaskDelayMax = 2 * time.Millisecond
	cfg.NavigationsPerMinute = 6000

	o := newTestPool(t, cfg, factory, proxy.Policy{Mode: proxy.ModeNone}, &memorySink{})
	tally := runPool(t, o, urls...)

	assert.Equal(t, 3, tally.Total)
	assert.Equal(t, 1, tally.Succeeded)
	assert.Equal(t, 1, tally.Outcomes[models.OutcomeSessionFailure])
	assert.Equal(t, 1, tally.Outcomes[models.OutcomeNoReviews])

	for _, snap := range o.Workers() {
		assert.Equal(t, "1ms-2ms", snap.PaceDelay)
	}
}
