package discovery

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/researchaccelerator-hub/shorts-scraper/collector"
	"github.com/researchaccelerator-hub/shorts-scraper/model"
)

// scroll counts tuned per platform: Facebook's reel feed needs noticeably
// more scrolling than YouTube search to surface comparable volume.
const (
	youtubeSearchScrolls  = 6
	facebookSearchScrolls = 10
	channelScanScrolls    = 8
)

// youtubeShortsFilter is the encoded search parameter restricting YouTube
// results to short-form video.
const youtubeShortsFilter = "EgIYAQ%253D%253D"

// searchRequest builds the collection request for a platform's search page
// seeded with a topic keyword.
func searchRequest(platform model.PlatformType, keyword string) collector.Request {
	switch platform {
	case model.PlatformFacebook:
		return collector.Request{
			URL:          fmt.Sprintf("https://www.facebook.com/search/reels/?q=%s", url.QueryEscape(keyword)),
			CardSelector: `a[href*="/reel/"]`,
			LinkSelector: ":scope",
			ScrollCount:  facebookSearchScrolls,
		}
	default:
		query := url.QueryEscape(keyword + " shorts")
		return collector.Request{
			URL:          fmt.Sprintf("https://www.youtube.com/results?search_query=%s&sp=%s", query, youtubeShortsFilter),
			CardSelector: "ytd-video-renderer, ytd-reel-item-renderer",
			LinkSelector: `a#thumbnail, a[href*="watch"], a[href*="/shorts/"]`,
			ScrollCount:  youtubeSearchScrolls,
		}
	}
}

// channelRequest builds the collection request for a channel's short-form
// listing page.
func channelRequest(ch model.Channel) collector.Request {
	if ch.Platform == model.PlatformFacebook {
		return collector.Request{
			URL:          fmt.Sprintf("https://www.facebook.com/%s/reels", ch.ChannelID),
			CardSelector: `a[href*="/reel/"]`,
			LinkSelector: ":scope",
			ScrollCount:  channelScanScrolls,
		}
	}
	handle := strings.TrimPrefix(ch.ChannelID, "@")
	return collector.Request{
		URL:          fmt.Sprintf("https://www.youtube.com/@%s/shorts", handle),
		CardSelector: `a[href*="/shorts/"]`,
		LinkSelector: ":scope",
		ScrollCount:  channelScanScrolls,
	}
}

// absoluteURL resolves a card href against the platform origin.
func absoluteURL(platform model.PlatformType, href string) string {
	if strings.HasPrefix(href, "http") {
		return href
	}
	if platform == model.PlatformFacebook {
		return "https://www.facebook.com" + href
	}
	return "https://www.youtube.com" + href
}

// syntheticChannelID derives a channel key for search results, which expose
// the video link but not the channel handle.
func syntheticChannelID(platform model.PlatformType, videoID string) string {
	prefix := "yt"
	if platform == model.PlatformFacebook {
		prefix = "fb"
	}
	id := videoID
	if len(id) > 8 {
		id = id[:8]
	}
	return fmt.Sprintf("%s-%s", prefix, id)
}

// placeholderChannelName labels search-discovered channels until a scan
// learns the real name.
func placeholderChannelName(platform model.PlatformType) string {
	if platform == model.PlatformFacebook {
		return "facebook-page"
	}
	return "youtube-channel"
}

// titleLimit caps how much of a card's text blob is stored as the title.
func titleLimit(platform model.PlatformType) int {
	if platform == model.PlatformFacebook {
		return 120
	}
	return 180
}

func truncate(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit])
}
