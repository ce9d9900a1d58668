package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/maltedev/review-scraper/internal/models"
	"github.com/maltedev/review-scraper/internal/parser"
	"github.com/maltedev/review-scraper/internal/scraper"
)

// Session drives one page of a persistent browser context.
type Session struct {
	bctx    playwright.BrowserContext
	page    playwright.Page
	parser  parser.Parser
	timeout time.Duration
	logger  *slog.Logger
}

func (s *Session) Navigate(_ context.Context, url string) error {
	_, err := s.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   playwright.Float(float64(s.timeout.Milliseconds())),
	})
	if err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	return nil
}

func (s *Session) ProductName(context.Context) string {
	content, err := s.page.Content()
	if err != nil {
		s.logger.Warn("failed to read page content", "error", err)
		return scraper.UnknownProduct
	}
	if name := s.parser.ProductName(content); name != "" {
		return name
	}
	return scraper.UnknownProduct
}

func (s *Session) RevealReviewsTab(context.Context) bool {
	return s.evalBool(revealReviewsTabScript)
}

func (s *Session) OpenFirstReview(context.Context) bool {
	return s.evalBool(openFirstReviewScript)
}

func (s *Session) Advance(context.Context) bool {
	return s.evalBool(clickNextScript)
}

func (s *Session) ActiveReview(context.Context) scraper.Extraction {
	raw, err := s.page.Evaluate(activeReviewScript)
	if err != nil {
		return scraper.Faulted(fmt.Errorf("failed to evaluate review script: %w", err))
	}
	return decodeActiveReview(raw, s.parser)
}

func (s *Session) ClearCookies(context.Context) error {
	if err := s.bctx.ClearCookies(); err != nil {
		return fmt.Errorf("failed to clear cookies: %w", err)
	}
	return nil
}

func (s *Session) Close() error {
	if err := s.bctx.Close(); err != nil {
		return fmt.Errorf("failed to close context: %w", err)
	}
	return nil
}

func (s *Session) evalBool(script string) bool {
	v, err := s.page.Evaluate(script)
	if err != nil {
		s.logger.Debug("script failed", "error", err)
		return false
	}
	ok, _ := v.(bool)
	return ok
}

// decodeActiveReview turns the object returned by activeReviewScript into an
// extraction result.
func decodeActiveReview(raw interface{}, p parser.Parser) scraper.Extraction {
	data, ok := raw.(map[string]interface{})
	if !ok {
		return scraper.Faulted(fmt.Errorf("unexpected review script result %T", raw))
	}

	if found, _ := data["found"].(bool); !found {
		return scraper.NotFound()
	}

	html, _ := data["html"].(string)
	review, err := p.ParseReview(html)
	if err != nil {
		if errors.Is(err, parser.ErrNoReview) {
			return scraper.NotFound()
		}
		return scraper.Faulted(err)
	}

	if uuid, _ := data["uuid"].(string); uuid != "" {
		review.UUID = uuid
	}
	if review.UUID == "" {
		return scraper.NotFound()
	}
	review.Rating = models.ClampRating(toInt(data["rating"]))

	return scraper.Found(review)
}

func toInt(v interface{}) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	}
	return 0
}
