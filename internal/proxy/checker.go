package proxy

import (
	"context"
	"crypto/tls"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
	"resty.dev/v3"
)

// Checker probes proxies by fetching a test URL through each of them.
type Checker struct {
	testURL     string
	timeout     time.Duration
	concurrency int
	logger      *slog.Logger
}

func NewChecker(testURL string, timeout time.Duration, logger *slog.Logger) *Checker {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Checker{
		testURL:     testURL,
		timeout:     timeout,
		concurrency: 50,
		logger:      logger.With("component", "proxy_checker"),
	}
}

// Filter returns the working proxies of pool in their original order.
func (c *Checker) Filter(ctx context.Context, pool []Spec) []Spec {
	if len(pool) == 0 {
		return pool
	}

	c.logger.Info("testing proxies", "count", len(pool))

	alive := make([]bool, len(pool))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)

	for i, spec := range pool {
		i, spec := i, spec
		g.Go(func() error {
			alive[i] = c.Check(gctx, spec)
			return nil
		})
	}
	_ = g.Wait()

	working := make([]Spec, 0, len(pool))
	for i, ok := range alive {
		if ok {
			working = append(working, pool[i])
		}
	}

	c.logger.Info("proxy check finished", "working", len(working), "tested", len(pool))
	return working
}

// Check reports whether a request through spec succeeds.
func (c *Checker) Check(ctx context.Context, spec Spec) bool {
	client := resty.New().
		SetTimeout(c.timeout).
		SetRetryCount(0).
		SetProxy(spec.URL()).
		SetTLSClientConfig(&tls.Config{
			InsecureSkipVerify: true,
		})

	resp, err := client.R().
		SetContext(ctx).
		Get(c.testURL)
	if err != nil {
		c.logger.Warn("proxy check failed", "proxy", spec.String(), "error", err)
		return false
	}

	if resp.IsError() {
		c.logger.Warn("proxy check failed", "proxy", spec.String(), "status", resp.Status())
		return false
	}

	c.logger.Debug("proxy is working", "proxy", spec.String())
	return true
}
