package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/maltedev/review-scraper/internal/models"
)

const (
	DefaultMaxReviews         = 600
	DefaultMaxAdvanceAttempts = 50

	progressEvery = 10
)

// Timings are the fixed waits between page actions.
type Timings struct {
	AfterNavigate    time.Duration
	AfterTab         time.Duration
	AfterOpen        time.Duration
	BeforeExtract    time.Duration
	AdvanceSettle    time.Duration
	AdvanceStabilize time.Duration
}

func DefaultTimings() Timings {
	return Timings{
		AfterNavigate:    3 * time.Second,
		AfterTab:         2 * time.Second,
		AfterOpen:        2 * time.Second,
		BeforeExtract:    1500 * time.Millisecond,
		AdvanceSettle:    1500 * time.Millisecond,
		AdvanceStabilize: 2 * time.Second,
	}
}

type PaginatorOptions struct {
	MaxReviews         int
	MaxAdvanceAttempts int
	Timings            Timings
}

func DefaultPaginatorOptions() PaginatorOptions {
	return PaginatorOptions{
		MaxReviews:         DefaultMaxReviews,
		MaxAdvanceAttempts: DefaultMaxAdvanceAttempts,
		Timings:            DefaultTimings(),
	}
}

// Report is the outcome of paginating one task.
type Report struct {
	Outcome     models.Outcome
	ProductName string
	Reviews     []models.Review
	Err         error
}

// Faulted reports whether the session must be discarded.
func (r Report) Faulted() bool {
	return r.Outcome == models.OutcomeExtractorFailure || r.Outcome == models.OutcomeSessionFailure
}

type advanceResult int

const (
	advanced advanceResult = iota
	exhausted
)

// Paginator walks a product's review viewer one review at a time and collects
// unique reviews until the viewer runs out or the cap is reached.
type Paginator struct {
	opts   PaginatorOptions
	logger *slog.Logger
	sleep  func(ctx context.Context, d time.Duration)
}

func NewPaginator(opts PaginatorOptions, logger *slog.Logger) *Paginator {
	if opts.MaxReviews < 1 {
		opts.MaxReviews = DefaultMaxReviews
	}
	if opts.MaxAdvanceAttempts < 1 {
		opts.MaxAdvanceAttempts = DefaultMaxAdvanceAttempts
	}
	return &Paginator{
		opts:   opts,
		logger: logger.With("component", "paginator"),
		sleep:  sleepContext,
	}
}

// Run drives s through one task. It never returns a Go error: faults are
// folded into the report outcome.
func (p *Paginator) Run(ctx context.Context, s Session, task models.Task) Report {
	logger := p.logger.With("url", task.URL)

	if err := s.Navigate(ctx, task.URL); err != nil {
		return Report{
			Outcome:     models.OutcomeSessionFailure,
			ProductName: UnknownProduct,
			Err:         fmt.Errorf("%w: %w", ErrNavigation, err),
		}
	}
	p.sleep(ctx, p.opts.Timings.AfterNavigate)

	name := s.ProductName(ctx)
	if name == "" {
		name = UnknownProduct
	}
	report := Report{ProductName: name}
	logger.Info("product page loaded", "product", name)

	if s.RevealReviewsTab(ctx) {
		p.sleep(ctx, p.opts.Timings.AfterTab)
	} else {
		logger.Debug("reviews tab not found")
	}

	if !s.OpenFirstReview(ctx) {
		logger.Info("no reviews to open")
		report.Outcome = models.OutcomeNoReviews
		return report
	}
	p.sleep(ctx, p.opts.Timings.AfterOpen)

	collected, err := p.collect(ctx, s, logger)
	models.FinalizeMedia(collected)
	report.Reviews = collected
	if err != nil {
		report.Outcome = models.OutcomeExtractorFailure
		report.Err = err
		return report
	}

	report.Outcome = models.OutcomeSuccess
	logger.Info("collection finished", "reviews", len(collected))
	return report
}

func (p *Paginator) collect(ctx context.Context, s Session, logger *slog.Logger) ([]models.Review, error) {
	seen := make(map[string]struct{})
	collected := make([]models.Review, 0)

	// iterations are bounded by the cap so a viewer cycling through already
	// seen reviews still terminates
	for i := 0; i < p.opts.MaxReviews && len(collected) < p.opts.MaxReviews; i++ {
		p.sleep(ctx, p.opts.Timings.BeforeExtract)

		ext := s.ActiveReview(ctx).normalized()
		switch ext.Status {
		case StatusFault:
			return collected, fmt.Errorf("extract review: %w", ext.Err)
		case StatusNotFound:
			logger.Debug("no active review", "collected", len(collected))
			return collected, nil
		}

		current := ext.Review.UUID
		if _, dup := seen[current]; !dup {
			seen[current] = struct{}{}
			collected = append(collected, *ext.Review)
			if len(collected)%progressEvery == 0 {
				logger.Info("collecting reviews", "collected", len(collected))
			}
		}

		if len(collected) >= p.opts.MaxReviews {
			break
		}

		res, err := p.advance(ctx, s, current)
		if err != nil {
			return collected, err
		}
		if res == exhausted {
			break
		}
	}

	return collected, nil
}

// advance clicks "next" until the active review's uuid changes.
func (p *Paginator) advance(ctx context.Context, s Session, currentUUID string) (advanceResult, error) {
	for attempt := 0; attempt < p.opts.MaxAdvanceAttempts; attempt++ {
		if !s.Advance(ctx) {
			return exhausted, nil
		}
		p.sleep(ctx, p.opts.Timings.AdvanceSettle)

		ext := s.ActiveReview(ctx).normalized()
		switch ext.Status {
		case StatusFault:
			return exhausted, fmt.Errorf("extract review after advance: %w", ext.Err)
		case StatusNotFound:
			return exhausted, nil
		}

		if ext.Review.UUID != currentUUID {
			p.sleep(ctx, p.opts.Timings.AdvanceStabilize)
			return advanced, nil
		}
	}
	return exhausted, nil
}

func sleepContext(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
