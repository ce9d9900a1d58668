package models

type MediaKind string

const (
	MediaVideo MediaKind = "video"
	MediaPhoto MediaKind = "photo"
)

// MediaItem is a raw media descriptor as reported by the page extractor.
// Only one of the URL fields is used once the review is finalized.
type MediaItem struct {
	Kind     MediaKind `json:"type"`
	UUID     string    `json:"uuid"`
	Server   string    `json:"server_num"`
	URL      string    `json:"url,omitempty"`
	URLFull  string    `json:"url_1000,omitempty"`
	URLSmall string    `json:"url_400,omitempty"`
	URLCover string    `json:"url_cover,omitempty"`
}

// Review is a single review record. UUID is the page-native identifier of the
// review and is only ever compared for equality.
type Review struct {
	UUID   string   `json:"uuid"`
	Author string   `json:"author"`
	Date   string   `json:"date"`
	Text   string   `json:"text"`
	Rating int      `json:"rating"`
	Images []string `json:"images"`
	Videos []string `json:"videos"`

	Media []MediaItem `json:"-"`
}

const MaxRating = 5

// ClampRating keeps a star count inside [0, MaxRating].
func ClampRating(n int) int {
	if n < 0 {
		return 0
	}
	if n > MaxRating {
		return MaxRating
	}
	return n
}

// FinalizeMedia resolves the raw media descriptors into flat image and video
// URL lists and drops the descriptors. A review without descriptors keeps its
// lists, so calling it twice is harmless.
func (r *Review) FinalizeMedia() {
	if r.Media == nil {
		if r.Images == nil {
			r.Images = []string{}
		}
		if r.Videos == nil {
			r.Videos = []string{}
		}
		return
	}

	images := make([]string, 0, len(r.Media))
	videos := make([]string, 0)

	for _, item := range r.Media {
		switch item.Kind {
		case MediaVideo:
			if item.URL != "" {
				videos = append(videos, item.URL)
			}
		case MediaPhoto:
			if u := item.photoURL(); u != "" {
				images = append(images, u)
			}
		}
	}

	r.Images = images
	r.Videos = videos
	r.Media = nil
}

// photoURL picks the first usable URL: full resolution, reduced, cover.
func (m MediaItem) photoURL() string {
	for _, u := range []string{m.URLFull, m.URLSmall, m.URLCover} {
		if u != "" {
			return u
		}
	}
	return ""
}

func FinalizeMedia(reviews []Review) {
	for i := range reviews {
		reviews[i].FinalizeMedia()
	}
}

// MediaTotals counts finalized images and videos across reviews.
func MediaTotals(reviews []Review) (images, videos int) {
	for _, r := range reviews {
		images += len(r.Images)
		videos += len(r.Videos)
	}
	return images, videos
}
