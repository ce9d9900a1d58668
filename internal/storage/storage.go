package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/maltedev/review-scraper/internal/models"
)

const (
	maxNameRunes = 100
	// leaves room for the timestamp and id suffix under the 255-byte
	// file name limit
	maxNameBytes   = 200
	unknownProduct = "unknown_product"
	timestampForm  = "20060102_150405"
)

// Document is the file written for every product with at least one review.
type Document struct {
	ProductURL   string          `json:"product_url"`
	ProductName  string          `json:"product_name"`
	ParsedAt     time.Time       `json:"parsed_at"`
	TotalReviews int             `json:"total_reviews"`
	TotalVideos  int             `json:"total_videos"`
	TotalImages  int             `json:"total_images"`
	Reviews      []models.Review `json:"reviews"`
}

func NewDocument(productURL, productName string, reviews []models.Review, parsedAt time.Time) *Document {
	if reviews == nil {
		reviews = make([]models.Review, 0)
	}
	images, videos := models.MediaTotals(reviews)
	return &Document{
		ProductURL:   StripQuery(productURL),
		ProductName:  productName,
		ParsedAt:     parsedAt,
		TotalReviews: len(reviews),
		TotalVideos:  videos,
		TotalImages:  images,
		Reviews:      reviews,
	}
}

// Sink persists result documents and returns where each one went.
type Sink interface {
	Persist(doc *Document) (string, error)
}

type FileSink struct {
	dir   string
	now   func() time.Time
	newID func() string
}

func NewFileSink(dir string) (*FileSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create results directory: %w", err)
	}
	return &FileSink{
		dir: dir,
		now: time.Now,
		newID: func() string {
			return uuid.NewString()[:8]
		},
	}, nil
}

func (s *FileSink) Dir() string {
	return s.dir
}

func (s *FileSink) Persist(doc *Document) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return "", fmt.Errorf("failed to encode result: %w", err)
	}

	path := filepath.Join(s.dir, FileName(doc.ProductName, s.now(), s.newID()))

	// Write to temp file first for atomicity
	tmp, err := os.CreateTemp(s.dir, ".result-*.tmp")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", fmt.Errorf("failed to write result: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("failed to write result: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("failed to move result into place: %w", err)
	}

	return path, nil
}

// FileName is "<sanitized name>_<YYYYmmdd_HHMMSS>_<id>.json".
func FileName(productName string, at time.Time, id string) string {
	return fmt.Sprintf("%s_%s_%s.json", SanitizeName(productName), at.Format(timestampForm), id)
}

// SanitizeName replaces characters that are unsafe in file names and caps the
// length at 100 runes and 200 bytes, cutting only on rune boundaries.
func SanitizeName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return unknownProduct
	}

	name = strings.Map(func(r rune) rune {
		switch r {
		case '<', '>', ':', '"', '/', '\\', '|', '?', '*':
			return '_'
		}
		return r
	}, name)

	if utf8.RuneCountInString(name) > maxNameRunes {
		name = string([]rune(name)[:maxNameRunes])
	}
	if len(name) > maxNameBytes {
		cut := maxNameBytes
		for cut > 0 && !utf8.RuneStart(name[cut]) {
			cut--
		}
		name = name[:cut]
	}
	return name
}

// StripQuery drops the query string and fragment of a product URL.
func StripQuery(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		if i := strings.IndexAny(raw, "?#"); i >= 0 {
			return raw[:i]
		}
		return raw
	}
	u.RawQuery = ""
	u.ForceQuery = false
	u.Fragment = ""
	u.RawFragment = ""
	return u.String()
}
