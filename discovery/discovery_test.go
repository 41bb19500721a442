package discovery

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/researchaccelerator-hub/shorts-scraper/collector"
	"github.com/researchaccelerator-hub/shorts-scraper/model"
	"github.com/researchaccelerator-hub/shorts-scraper/queue"
	"github.com/researchaccelerator-hub/shorts-scraper/store"
)

// fakeCollector serves canned cards keyed by a URL substring and records
// every request it sees.
type fakeCollector struct {
	cards    map[string][]model.Card
	err      error
	requests []collector.Request
}

func (f *fakeCollector) Collect(_ context.Context, req collector.Request) ([]model.Card, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	for substr, cards := range f.cards {
		if strings.Contains(req.URL, substr) {
			return cards, nil
		}
	}
	return nil, nil
}

func newTestService(c Collector) (*Service, store.Store, *queue.Queue) {
	st := store.NewMemoryStore()
	q := queue.New()
	return NewService(st, c, q), st, q
}

func TestDiscoverAllPersistsAndEnqueues(t *testing.T) {
	fc := &fakeCollector{cards: map[string][]model.Card{
		"youtube.com/results": {
			{Href: "/shorts/abc123", Text: "Funny video 1.5M views"},
		},
	}}
	svc, st, q := newTestService(fc)
	ctx := context.Background()

	result, err := svc.DiscoverAll(ctx)
	require.NoError(t, err)
	assert.False(t, result.Skipped)
	assert.Equal(t, 1, result.ItemsFound)

	video, err := st.GetVideo(ctx, "youtube:abc123")
	require.NoError(t, err)
	assert.Equal(t, "abc123", video.VideoID)
	assert.Equal(t, int64(1_500_000), video.Views)
	assert.Equal(t, "hai", video.Topic)
	assert.Equal(t, model.StatusPending, video.DownloadStatus)
	assert.Equal(t, "https://www.youtube.com/shorts/abc123", video.URL)
	assert.Equal(t, "youtube:yt-abc123", video.ChannelRef)

	channel, err := st.GetChannel(ctx, "youtube:yt-abc123")
	require.NoError(t, err)
	assert.Equal(t, int64(1), channel.TotalVideos)
	assert.Contains(t, channel.Topics, "hai")

	require.Equal(t, 1, q.Len())
	job, err := q.Pop(ctx)
	require.NoError(t, err)
	assert.Equal(t, "youtube:abc123", job.VideoKey)
	assert.Equal(t, queue.PriorityHigh, job.Priority)
	assert.Equal(t, 0, job.Attempts)

	logs, err := st.ListJobLogs(ctx, store.JobLogFilter{JobType: model.JobTypeDiscover})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, model.JobStatusSuccess, logs[0].Status)
	assert.Equal(t, 1, logs[0].ItemsFound)
}

func TestDiscoverAllSkippedWhenDisabled(t *testing.T) {
	fc := &fakeCollector{}
	svc, st, _ := newTestService(fc)
	ctx := context.Background()

	settings, err := st.GetSettings(ctx)
	require.NoError(t, err)
	settings.IsEnabled = false
	_, err = st.UpdateSettings(ctx, settings)
	require.NoError(t, err)

	result, err := svc.DiscoverAll(ctx)
	require.NoError(t, err)
	assert.True(t, result.Skipped)
	assert.Empty(t, fc.requests)
}

func TestDiscoverAllFiltersCards(t *testing.T) {
	fc := &fakeCollector{cards: map[string][]model.Card{
		"youtube.com/results": {
			{Href: "", Text: "Funny video 9M views"},        // no link
			{Href: "/shorts/low11", Text: "Funny 50K views"}, // below view floor
			{Href: "/shorts/off22", Text: "Chess opening theory 3M views"}, // wrong topic
		},
	}}
	svc, st, q := newTestService(fc)
	ctx := context.Background()

	result, err := svc.DiscoverAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, result.ItemsFound)
	assert.Equal(t, 0, q.Len())

	videos, _, err := st.ListVideos(ctx, store.VideoFilter{})
	require.NoError(t, err)
	assert.Empty(t, videos)
}

func TestDiscoverAllBackCatalogGate(t *testing.T) {
	fc := &fakeCollector{cards: map[string][]model.Card{
		"youtube.com/results": {
			{Href: "/shorts/gated1", Text: "Funny video 2M views"},
		},
	}}
	svc, st, q := newTestService(fc)
	ctx := context.Background()

	settings, err := st.GetSettings(ctx)
	require.NoError(t, err)
	settings.MinChannelTotalVideos = 3
	_, err = st.UpdateSettings(ctx, settings)
	require.NoError(t, err)

	result, err := svc.DiscoverAll(ctx)
	require.NoError(t, err)

	// Recorded for later, but not counted or queued.
	assert.Equal(t, 0, result.ItemsFound)
	assert.Equal(t, 0, q.Len())
	video, err := st.GetVideo(ctx, "youtube:gated1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, video.DownloadStatus)
}

func TestDiscoverAllCollectionFailureIsNonFatal(t *testing.T) {
	fc := &fakeCollector{err: errors.New("both engines down")}
	svc, st, _ := newTestService(fc)
	ctx := context.Background()

	result, err := svc.DiscoverAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, result.ItemsFound)

	logs, err := st.ListJobLogs(ctx, store.JobLogFilter{})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, model.JobStatusSuccess, logs[0].Status)
}

func TestScanAllChannelsSkipsDownloaded(t *testing.T) {
	fc := &fakeCollector{cards: map[string][]model.Card{
		"youtube.com/@funnyclips/shorts": {
			{Href: "/shorts/olddone99", Text: "old clip 2M views"},
			{Href: "/shorts/fresh42", Text: "fresh clip 500K views"},
		},
	}}
	svc, st, q := newTestService(fc)
	ctx := context.Background()

	channel, err := st.UpsertChannel(ctx, model.PlatformYouTube, "@funnyclips", "Funny Clips", "hai", 50_000)
	require.NoError(t, err)

	done, err := st.UpsertVideo(ctx, model.Video{
		Platform:   model.PlatformYouTube,
		VideoID:    "olddone99",
		URL:        "https://www.youtube.com/shorts/olddone99",
		Topic:      "hai",
		ChannelRef: channel.Key,
	})
	require.NoError(t, err)
	require.NoError(t, st.MarkVideoDone(ctx, done.Key, "/tmp/olddone99.mp4", time.Now()))

	result, err := svc.ScanAllChannels(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.ItemsFound)

	require.Equal(t, 1, q.Len())
	job, err := q.Pop(ctx)
	require.NoError(t, err)
	assert.Equal(t, "youtube:fresh42", job.VideoKey)
	assert.Equal(t, queue.PriorityNormal, job.Priority)

	// The downloaded item was not reset.
	kept, err := st.GetVideo(ctx, done.Key)
	require.NoError(t, err)
	assert.Equal(t, model.StatusDone, kept.DownloadStatus)

	scanned, err := st.GetChannel(ctx, channel.Key)
	require.NoError(t, err)
	require.NotNil(t, scanned.LastScanned)
}

func TestScanChannelNoTopicMatchRequired(t *testing.T) {
	// Channel scans trust the channel's topic; the card text only has to
	// clear the metric filters.
	fc := &fakeCollector{cards: map[string][]model.Card{
		"facebook.com/100063999/reels": {
			{Href: "/reel/777000111", Text: "865K views"},
		},
	}}
	svc, st, q := newTestService(fc)
	ctx := context.Background()

	_, err := st.UpsertChannel(ctx, model.PlatformFacebook, "100063999", "Good Food", "nauan", 10_000)
	require.NoError(t, err)

	result, err := svc.ScanAllChannels(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.ItemsFound)

	require.Equal(t, 1, q.Len())
	video, err := st.GetVideo(ctx, "facebook:777000111")
	require.NoError(t, err)
	assert.Equal(t, "nauan", video.Topic)
	assert.Equal(t, "https://www.facebook.com/reel/777000111", video.URL)
}

func TestScanChannelCollectionFailureStampsScanTime(t *testing.T) {
	fc := &fakeCollector{err: errors.New("navigation timeout")}
	svc, st, q := newTestService(fc)
	ctx := context.Background()

	channel, err := st.UpsertChannel(ctx, model.PlatformYouTube, "@quiet", "Quiet", "hai", 0)
	require.NoError(t, err)

	result, err := svc.ScanAllChannels(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, result.ItemsFound)
	assert.Equal(t, 0, q.Len())

	scanned, err := st.GetChannel(ctx, channel.Key)
	require.NoError(t, err)
	require.NotNil(t, scanned.LastScanned)
}
