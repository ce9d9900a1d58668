package parser

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/maltedev/review-scraper/internal/models"
)

var ErrNoReview = errors.New("no review element")

const reviewUUIDAttr = "data-review-uuid"

// OzonParser works on the markup of ozon.ru product pages and their review
// viewer. It relies on stable attributes and URL shapes rather than on the
// generated CSS class names, which change between deployments.
type OzonParser struct {
	authorClass *regexp.Regexp
	textClass   *regexp.Regexp
	datePattern *regexp.Regexp
	videoSrc    *regexp.Regexp
	photoSrc    *regexp.Regexp
	coverSrc    *regexp.Regexp
}

func NewOzonParser() *OzonParser {
	return &OzonParser{
		authorClass: regexp.MustCompile(`\bkr\w*_?\d+`),
		textClass:   regexp.MustCompile(`\b(ku|kt)\w*_?\d+`),
		datePattern: regexp.MustCompile(`(\d{1,2}\s+(?:января|февраля|марта|апреля|мая|июня|июля|августа|сентября|октября|ноября|декабря)\s+\d{4})`),
		videoSrc:    regexp.MustCompile(`/video-(\d+)/([A-Z0-9]+)/`),
		photoSrc:    regexp.MustCompile(`/rp-photo-(\d+)/wc\d+/([a-f0-9\-]+)\.(jpg|jpeg|png)`),
		coverSrc:    regexp.MustCompile(`/cover/(\d+)/([a-f0-9\-]+)\.(jpg|jpeg|png)`),
	}
}

var productNameSelectors = []string{
	`[data-widget="webProductHeading"] h1`,
	"h1",
	".tsHeadline500Medium",
	`[class*="ProductTitle"]`,
}

// ProductName returns the product heading, falling back to the page title. It
// returns "" when neither is present.
func (p *OzonParser) ProductName(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}

	for _, selector := range productNameSelectors {
		if name := collapseSpace(doc.Find(selector).First().Text()); name != "" {
			return name
		}
	}

	title := doc.Find("title").First().Text()
	if i := strings.Index(title, "—"); i >= 0 {
		title = title[:i]
	}
	return collapseSpace(title)
}

// ParseReview reads author, date, text and media descriptors from the markup
// of one review. Rating depends on page layout and is not read here.
func (p *OzonParser) ParseReview(html string) (*models.Review, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	root := doc.Find("[" + reviewUUIDAttr + "]").First()
	if root.Length() == 0 {
		return nil, ErrNoReview
	}

	spans := root.Find("span")

	review := &models.Review{
		UUID:   root.AttrOr(reviewUUIDAttr, ""),
		Author: p.extractAuthor(spans),
		Date:   p.extractDate(root),
		Text:   p.extractText(spans),
		Media:  p.extractMedia(root),
	}
	return review, nil
}

func (p *OzonParser) extractAuthor(spans *goquery.Selection) string {
	var candidates []string

	spans.Each(func(_ int, s *goquery.Selection) {
		text := strings.TrimSpace(s.Text())
		n := len([]rune(text))
		if p.authorClass.MatchString(s.AttrOr("class", "")) && n > 2 && n < 100 && !strings.Contains(text, "\n") {
			candidates = append(candidates, text)
		}
	})

	if len(candidates) == 0 {
		total := 0
		spans.EachWithBreak(func(_ int, s *goquery.Selection) bool {
			text := strings.TrimSpace(s.Text())
			n := len([]rune(text))
			if n >= 1 && n < 50 && !strings.Contains(text, "\n") {
				candidates = append(candidates, text)
				total += n
				if total > 10 {
					return false
				}
			}
			return true
		})
	}

	return strings.Join(candidates, "")
}

func (p *OzonParser) extractDate(root *goquery.Selection) string {
	if m := p.datePattern.FindStringSubmatch(root.Text()); len(m) > 1 {
		return m[1]
	}
	return ""
}

func (p *OzonParser) extractText(spans *goquery.Selection) string {
	var text string
	spans.EachWithBreak(func(_ int, s *goquery.Selection) bool {
		t := strings.TrimSpace(s.Text())
		if p.textClass.MatchString(s.AttrOr("class", "")) && len([]rune(t)) > 20 {
			text = t
			return false
		}
		return true
	})
	if text != "" {
		return text
	}

	// longest span wins
	longest := 20
	spans.Each(func(_ int, s *goquery.Selection) {
		t := strings.TrimSpace(s.Text())
		if n := len([]rune(t)); n > longest {
			longest = n
			text = t
		}
	})
	return text
}

// extractMedia collects videos, then review photos, then covers, keeping the
// first descriptor per media id.
func (p *OzonParser) extractMedia(root *goquery.Selection) []models.MediaItem {
	items := make([]models.MediaItem, 0)
	seen := make(map[string]struct{})

	add := func(item models.MediaItem) {
		if _, ok := seen[item.UUID]; ok {
			return
		}
		seen[item.UUID] = struct{}{}
		items = append(items, item)
	}

	root.Find(`img[src*="/video-"]`).Each(func(_ int, s *goquery.Selection) {
		if m := p.videoSrc.FindStringSubmatch(s.AttrOr("src", "")); m != nil {
			add(models.MediaItem{
				Kind:   models.MediaVideo,
				UUID:   m[2],
				Server: m[1],
				URL:    VideoURL(m[1], m[2]),
			})
		}
	})

	root.Find(`img[src*="/rp-photo-"]`).Each(func(_ int, s *goquery.Selection) {
		if m := p.photoSrc.FindStringSubmatch(s.AttrOr("src", "")); m != nil {
			add(models.MediaItem{
				Kind:     models.MediaPhoto,
				UUID:     m[2],
				Server:   m[1],
				URLFull:  PhotoURL(m[1], m[2], m[3], PhotoWidthFull),
				URLSmall: PhotoURL(m[1], m[2], m[3], PhotoWidthSmall),
			})
		}
	})

	root.Find(`img[src*="/cover/"]`).Each(func(_ int, s *goquery.Selection) {
		if m := p.coverSrc.FindStringSubmatch(s.AttrOr("src", "")); m != nil {
			add(models.MediaItem{
				Kind:     models.MediaPhoto,
				UUID:     m[2],
				Server:   m[1],
				URLCover: CoverURL(m[1], m[2], m[3]),
			})
		}
	})

	return items
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
