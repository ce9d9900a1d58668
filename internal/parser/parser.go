package parser

import (
	"github.com/maltedev/review-scraper/internal/models"
)

// Parser reads product and review data from rendered HTML fragments.
type Parser interface {
	ProductName(html string) string
	ParseReview(html string) (*models.Review, error)
}
