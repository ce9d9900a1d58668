package scraper

import (
	"context"
	"errors"

	"github.com/maltedev/review-scraper/internal/models"
	"github.com/maltedev/review-scraper/internal/proxy"
)

var (
	ErrSessionClosed = errors.New("session closed")
	ErrNavigation    = errors.New("navigation failed")
)

// UnknownProduct is used when a product page has no readable name.
const UnknownProduct = "unknown_product"

// Session is one live browser session bound to a worker profile. Every
// operation may fail; a failed session is discarded by its owner.
type Session interface {
	Navigate(ctx context.Context, url string) error
	// ProductName never fails; it returns UnknownProduct when nothing is found.
	ProductName(ctx context.Context) string
	RevealReviewsTab(ctx context.Context) bool
	OpenFirstReview(ctx context.Context) bool
	ActiveReview(ctx context.Context) Extraction
	// Advance reports whether a "next" control was actuated.
	Advance(ctx context.Context) bool
	ClearCookies(ctx context.Context) error
	Close() error
}

// SessionFactory launches sessions. profileID names the on-disk profile and
// must be stable per worker.
type SessionFactory interface {
	Create(ctx context.Context, profileID string, p *proxy.Spec) (Session, error)
}

type ExtractionStatus int

const (
	StatusFound ExtractionStatus = iota
	StatusNotFound
	StatusFault
)

func (s ExtractionStatus) String() string {
	switch s {
	case StatusFound:
		return "found"
	case StatusNotFound:
		return "not_found"
	case StatusFault:
		return "fault"
	}
	return "unknown"
}

// Extraction is the result of reading the active review.
type Extraction struct {
	Status ExtractionStatus
	Review *models.Review
	Err    error
}

// normalized treats a Found result without a review as NotFound.
func (e Extraction) normalized() Extraction {
	if e.Status == StatusFound && e.Review == nil {
		return NotFound()
	}
	return e
}

func Found(r *models.Review) Extraction {
	if r == nil {
		return NotFound()
	}
	return Extraction{Status: StatusFound, Review: r}
}

func NotFound() Extraction {
	return Extraction{Status: StatusNotFound}
}

func Faulted(err error) Extraction {
	if err == nil {
		err = errors.New("extractor fault")
	}
	return Extraction{Status: StatusFault, Err: err}
}
