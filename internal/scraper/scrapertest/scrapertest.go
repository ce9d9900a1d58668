// Package scrapertest provides scripted in-memory sessions for exercising the
// paginator and the worker pool without a browser.
package scrapertest

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/maltedev/review-scraper/internal/models"
	"github.com/maltedev/review-scraper/internal/proxy"
	"github.com/maltedev/review-scraper/internal/scraper"
)

var ErrInjected = errors.New("injected fault")

// Page scripts how a product page behaves once navigated to.
type Page struct {
	Name        string
	NavigateErr error
	NoTab       bool
	NoReviews   bool
	// Reviews is the viewer content in presentation order.
	Reviews []models.Review
	// Stuck makes Advance report success without moving the viewer.
	Stuck bool
	// FaultOnExtract is the 1-based extraction call on this page that faults.
	FaultOnExtract int
}

// Reviews builds bare reviews with the given uuids.
func Reviews(uuids ...string) []models.Review {
	out := make([]models.Review, 0, len(uuids))
	for _, id := range uuids {
		out = append(out, models.Review{UUID: id, Author: "author " + id, Rating: 5})
	}
	return out
}

// Session is a scripted scraper.Session. Unknown URLs behave like a page
// without reviews.
type Session struct {
	mu          sync.Mutex
	pages       map[string]Page
	page        Page
	pos         int
	extractions int
	advances    int
	clears      int
	closed      bool
	clearErr    error

	ProfileID string
	Proxy     *proxy.Spec
}

func NewSession(pages map[string]Page) *Session {
	return &Session{pages: pages}
}

func (s *Session) Navigate(_ context.Context, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return scraper.ErrSessionClosed
	}
	page, ok := s.pages[url]
	if !ok {
		page = Page{NoReviews: true}
	}
	s.page = page
	s.pos = 0
	s.extractions = 0
	return page.NavigateErr
}

func (s *Session) ProductName(context.Context) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.page.Name
}

func (s *Session) RevealReviewsTab(context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.page.NoTab
}

func (s *Session) OpenFirstReview(context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.page.NoReviews && len(s.page.Reviews) > 0
}

func (s *Session) ActiveReview(context.Context) scraper.Extraction {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return scraper.Faulted(scraper.ErrSessionClosed)
	}
	s.extractions++
	if s.page.FaultOnExtract == s.extractions {
		return scraper.Faulted(fmt.Errorf("extraction %d: %w", s.extractions, ErrInjected))
	}
	if s.pos >= len(s.page.Reviews) {
		return scraper.NotFound()
	}
	r := s.page.Reviews[s.pos]
	return scraper.Found(&r)
}

func (s *Session) Advance(context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.advances++
	if s.page.Stuck {
		return true
	}
	if s.pos+1 >= len(s.page.Reviews) {
		return false
	}
	s.pos++
	return true
}

func (s *Session) ClearCookies(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.clears++
	return s.clearErr
}

func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	return nil
}

func (s *Session) Extractions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.extractions
}

func (s *Session) Advances() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.advances
}

func (s *Session) Clears() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clears
}

func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Factory hands out scripted sessions and records every creation.
type Factory struct {
	mu       sync.Mutex
	pages    map[string]Page
	sessions []*Session
	failures int

	// CreateErr is returned by the first FailCreates calls to Create.
	CreateErr   error
	FailCreates int
	// ClearErr is returned by ClearCookies on every session.
	ClearErr error
}

func NewFactory(pages map[string]Page) *Factory {
	return &Factory{pages: pages}
}

func (f *Factory) Create(_ context.Context, profileID string, p *proxy.Spec) (scraper.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failures < f.FailCreates {
		f.failures++
		err := f.CreateErr
		if err == nil {
			err = ErrInjected
		}
		return nil, fmt.Errorf("launch %s: %w", profileID, err)
	}

	s := NewSession(f.pages)
	s.ProfileID = profileID
	s.Proxy = p
	s.clearErr = f.ClearErr
	f.sessions = append(f.sessions, s)
	return s, nil
}

// Sessions returns every session created so far, in creation order.
func (f *Factory) Sessions() []*Session {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*Session(nil), f.sessions...)
}
