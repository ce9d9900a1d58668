package pool

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/maltedev/review-scraper/internal/models"
)

const recordTimeout = 5 * time.Second

// Recorder receives every task result in addition to the in-memory tally.
type Recorder interface {
	Record(ctx context.Context, result models.TaskResult) error
}

// Aggregator is the append-only result sink shared by all workers.
type Aggregator struct {
	mu        sync.RWMutex
	results   []models.TaskResult
	recorders []Recorder
	logger    *slog.Logger
}

func NewAggregator(logger *slog.Logger, recorders ...Recorder) *Aggregator {
	return &Aggregator{
		results:   make([]models.TaskResult, 0),
		recorders: recorders,
		logger:    logger.With("component", "results"),
	}
}

// Record appends result and forwards it to the recorders. Recorder failures
// are logged and never affect the tally.
func (a *Aggregator) Record(ctx context.Context, result models.TaskResult) {
	a.mu.Lock()
	a.results = append(a.results, result)
	a.mu.Unlock()

	if len(a.recorders) == 0 {
		return
	}

	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()

	for _, r := range a.recorders {
		if err := r.Record(rctx, result); err != nil {
			a.logger.Warn("failed to record result", "url", result.Task.URL, "error", err)
		}
	}
}

func (a *Aggregator) Results() []models.TaskResult {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return append([]models.TaskResult(nil), a.results...)
}

func (a *Aggregator) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.results)
}

func (a *Aggregator) Tally() models.Tally {
	return models.NewTally(a.Results())
}
