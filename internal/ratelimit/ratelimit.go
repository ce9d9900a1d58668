package ratelimit

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/ratelimit"
)

// SimpleRateLimiter keeps a jittered gap between consecutive actions of one
// caller.
type SimpleRateLimiter struct {
	minDelay   time.Duration
	maxDelay   time.Duration
	lastAction time.Time
	mu         sync.Mutex
	jitter     bool
}

func NewSimpleRateLimiter(minDelay, maxDelay time.Duration) *SimpleRateLimiter {
	if maxDelay < minDelay {
		maxDelay = minDelay
	}
	return &SimpleRateLimiter{
		minDelay: minDelay,
		maxDelay: maxDelay,
		jitter:   true,
	}
}

func (r *SimpleRateLimiter) Wait(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delay := r.calculateDelay()
	if !r.lastAction.IsZero() {
		if elapsed := time.Since(r.lastAction); elapsed < delay {
			t := time.NewTimer(delay - elapsed)
			defer t.Stop()

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-t.C:
			}
		}
	}

	r.lastAction = time.Now()
	return nil
}

// Delays reports the current gap bounds, which the adaptive limiter moves.
func (r *SimpleRateLimiter) Delays() (min, max time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.minDelay, r.maxDelay
}

func (r *SimpleRateLimiter) calculateDelay() time.Duration {
	if !r.jitter || r.minDelay >= r.maxDelay {
		return r.minDelay
	}

	delta := r.maxDelay - r.minDelay
	jitter := time.Duration(rand.Int63n(int64(delta)))
	return r.minDelay + jitter
}

const (
	errorStep   = time.Second
	maxMinDelay = 60 * time.Second
	maxMaxDelay = 120 * time.Second
)

// AdaptiveRateLimiter widens the gap after repeated session faults and
// relaxes it back towards the configured delays after a run of successes.
type AdaptiveRateLimiter struct {
	*SimpleRateLimiter
	baseMin       time.Duration
	baseMax       time.Duration
	errorCount    int
	successCount  int
	maxErrorCount int
	backoffFactor float64
}

func NewAdaptiveRateLimiter(minDelay, maxDelay time.Duration) *AdaptiveRateLimiter {
	simple := NewSimpleRateLimiter(minDelay, maxDelay)
	return &AdaptiveRateLimiter{
		SimpleRateLimiter: simple,
		baseMin:           simple.minDelay,
		baseMax:           simple.maxDelay,
		maxErrorCount:     3,
		backoffFactor:     1.5,
	}
}

func (a *AdaptiveRateLimiter) RecordSuccess() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.successCount++
	a.errorCount = 0

	if a.successCount > 5 {
		a.minDelay = max(time.Duration(float64(a.minDelay)*0.9), a.baseMin)
		a.maxDelay = max(time.Duration(float64(a.maxDelay)*0.9), a.baseMax, a.minDelay)
		a.successCount = 0
	}
}

func (a *AdaptiveRateLimiter) RecordError() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.errorCount++
	a.successCount = 0

	if a.errorCount >= a.maxErrorCount {
		newMin := max(time.Duration(float64(a.minDelay)*a.backoffFactor), a.minDelay+errorStep)
		newMax := max(time.Duration(float64(a.maxDelay)*a.backoffFactor), a.maxDelay+errorStep)

		a.minDelay = min(newMin, maxMinDelay)
		a.maxDelay = max(min(newMax, maxMaxDelay), a.minDelay)
		a.errorCount = 0
	}
}

// NavigationLimiter caps page loads across all workers of a process.
type NavigationLimiter struct {
	rl ratelimit.Limiter
}

// NewNavigationLimiter allows perMinute navigations per minute; zero or less
// means unlimited.
func NewNavigationLimiter(perMinute int) *NavigationLimiter {
	if perMinute <= 0 {
		return &NavigationLimiter{rl: ratelimit.NewUnlimited()}
	}
	return &NavigationLimiter{
		rl: ratelimit.New(perMinute, ratelimit.Per(time.Minute), ratelimit.WithoutSlack),
	}
}

// Take blocks until the next navigation is allowed.
func (l *NavigationLimiter) Take() time.Time {
	return l.rl.Take()
}
