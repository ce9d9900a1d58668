package scraper

import (
	"context"
	"time"
)

// SetSleep replaces the paginator's wait between page actions.
func (p *Paginator) SetSleep(sleep func(ctx context.Context, d time.Duration)) {
	p.sleep = sleep
}
