// Package events publishes task results to a Redis stream so other services
// can follow a run as it progresses.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/maltedev/review-scraper/internal/models"
)

const (
	DefaultStream = "stream:review_tasks"

	EventTaskCompleted = "TASK_COMPLETED"

	source = "review-scraper"
)

// StreamClient is the subset of the Redis client the publisher needs.
type StreamClient interface {
	XAdd(ctx context.Context, args *redis.XAddArgs) *redis.StringCmd
}

type PublisherConfig struct {
	Stream string
	// MaxLen caps the stream approximately; zero leaves it unbounded.
	MaxLen int64
}

// Publisher appends one stream entry per task result.
type Publisher struct {
	client StreamClient
	stream string
	maxLen int64
	runID  string
	now    func() time.Time
}

func NewPublisher(client StreamClient, runID string, cfg PublisherConfig) *Publisher {
	if cfg.Stream == "" {
		cfg.Stream = DefaultStream
	}
	return &Publisher{
		client: client,
		stream: cfg.Stream,
		maxLen: cfg.MaxLen,
		runID:  runID,
		now:    time.Now,
	}
}

// Record publishes result. It satisfies the pool's result recorder contract.
func (p *Publisher) Record(ctx context.Context, result models.TaskResult) error {
	eventID := uuid.NewString()
	ts := p.now()

	streamData := map[string]any{
		"id":           eventID,
		"type":         EventTaskCompleted,
		"aggregate_id": result.Task.ID,
		"timestamp":    ts.Format(time.RFC3339),
		"payload":      result,
		"metadata": map[string]any{
			"source": source,
			"run_id": p.runID,
		},
	}
	dataJSON, err := json.Marshal(streamData)
	if err != nil {
		return fmt.Errorf("failed to marshal stream data: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]any{
			"data":         string(dataJSON),
			"type":         EventTaskCompleted,
			"timestamp":    strconv.FormatInt(ts.UnixNano(), 10),
			"event_id":     eventID,
			"run_id":       p.runID,
			"task_id":      result.Task.ID,
			"outcome":      string(result.Outcome),
			"review_count": result.ReviewCount,
		},
	}
	if p.maxLen > 0 {
		args.MaxLen = p.maxLen
		args.Approx = true
	}

	if _, err := p.client.XAdd(ctx, args).Result(); err != nil {
		return fmt.Errorf("failed to publish to redis: %w", err)
	}
	return nil
}
