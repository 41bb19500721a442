package parse

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/researchaccelerator-hub/shorts-scraper/model"
)

var (
	shortsRe = regexp.MustCompile(`/shorts/([A-Za-z0-9_-]+)`)
	reelRe   = regexp.MustCompile(`/reel/(\d+)`)
	idRunRe  = regexp.MustCompile(`[^A-Za-z0-9_-]+`)
)

// VideoID derives a stable identifier from a video URL. YouTube IDs come
// from the "v" query parameter or a /shorts/<id> path segment, Facebook IDs
// from the numeric /reel/<id> segment. Anything else falls back to a
// sanitized trailing path segment so the caller still gets a usable key.
func VideoID(platform model.PlatformType, rawURL string) string {
	switch platform {
	case model.PlatformYouTube:
		if u, err := url.Parse(rawURL); err == nil {
			if v := u.Query().Get("v"); v != "" {
				return v
			}
		}
		if m := shortsRe.FindStringSubmatch(rawURL); m != nil {
			return m[1]
		}
	case model.PlatformFacebook:
		if m := reelRe.FindStringSubmatch(rawURL); m != nil {
			return m[1]
		}
	}
	return tailSegment(rawURL)
}

func tailSegment(rawURL string) string {
	trimmed := strings.TrimRight(rawURL, "/")
	if u, err := url.Parse(trimmed); err == nil && u.Path != "" {
		trimmed = strings.TrimRight(u.Path, "/")
	}
	if i := strings.LastIndex(trimmed, "/"); i >= 0 {
		trimmed = trimmed[i+1:]
	}
	return idRunRe.ReplaceAllString(trimmed, "")
}
