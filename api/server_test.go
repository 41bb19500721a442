package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/researchaccelerator-hub/shorts-scraper/discovery"
	"github.com/researchaccelerator-hub/shorts-scraper/model"
	"github.com/researchaccelerator-hub/shorts-scraper/queue"
	"github.com/researchaccelerator-hub/shorts-scraper/store"
)

type fakePipeline struct {
	scanFound int
	triggered chan string
}

func (f *fakePipeline) DiscoverAll(context.Context) (discovery.Result, error) {
	if f.triggered != nil {
		f.triggered <- "discover"
	}
	return discovery.Result{}, nil
}

func (f *fakePipeline) ScanAllChannels(context.Context) (discovery.Result, error) {
	if f.triggered != nil {
		f.triggered <- "scan"
	}
	return discovery.Result{}, nil
}

func (f *fakePipeline) ScanChannel(context.Context, model.Channel, model.Settings) (int, error) {
	return f.scanFound, nil
}

type fakeWorker struct {
	running int64
	depth   int
}

func (f fakeWorker) RunningJobs() int64 { return f.running }
func (f fakeWorker) QueueDepth() int    { return f.depth }

type fakeReloader struct {
	times []model.CronTimes
}

func (f *fakeReloader) Reload(times model.CronTimes) error {
	f.times = append(f.times, times)
	return nil
}

func newTestServer(t *testing.T, pipeline *fakePipeline) (*Server, store.Store, *queue.Queue, *fakeReloader) {
	t.Helper()
	st := store.NewMemoryStore()
	q := queue.New()
	reloader := &fakeReloader{}
	srv := NewServer(":0", "stealth", st, pipeline, q, fakeWorker{running: 1, depth: 4}, reloader)
	return srv, st, q, reloader
}

func doRequest(srv *Server, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	srv, _, _, _ := newTestServer(t, &fakePipeline{})

	rec := doRequest(srv, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestStatsOverview(t *testing.T) {
	srv, st, _, _ := newTestServer(t, &fakePipeline{})
	ctx := context.Background()

	_, err := st.UpsertVideo(ctx, model.Video{Platform: model.PlatformYouTube, VideoID: "a1", URL: "u", Topic: "hai"})
	require.NoError(t, err)
	_, err = st.UpsertChannel(ctx, model.PlatformYouTube, "@c", "C", "hai", 0)
	require.NoError(t, err)

	rec := doRequest(srv, http.MethodGet, "/api/shorts-reels/stats/overview", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		TotalVideos   int64         `json:"totalVideos"`
		TotalChannels int64         `json:"totalChannels"`
		RecentVideos  []model.Video `json:"recentVideos"`
		Queue         struct {
			Depth   int    `json:"depth"`
			Running int64  `json:"running"`
			Engine  string `json:"engine"`
		} `json:"queue"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, int64(1), body.TotalVideos)
	assert.Equal(t, int64(1), body.TotalChannels)
	assert.Len(t, body.RecentVideos, 1)
	assert.Equal(t, 4, body.Queue.Depth)
	assert.Equal(t, int64(1), body.Queue.Running)
	assert.Equal(t, "stealth", body.Queue.Engine)
}

func TestRedownloadQueuesWithViewPriority(t *testing.T) {
	srv, st, q, _ := newTestServer(t, &fakePipeline{})
	ctx := context.Background()

	video, err := st.UpsertVideo(ctx, model.Video{
		Platform: model.PlatformYouTube,
		VideoID:  "big1",
		Views:    2_000_000,
		URL:      "https://www.youtube.com/shorts/big1",
		Topic:    "hai",
	})
	require.NoError(t, err)
	require.NoError(t, st.MarkVideoFailed(ctx, video.Key, "yt-dlp failed"))

	rec := doRequest(srv, http.MethodPost, "/api/shorts-reels/videos/"+video.Key+"/re-download", "")
	require.Equal(t, http.StatusAccepted, rec.Code)

	reset, err := st.GetVideo(ctx, video.Key)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, reset.DownloadStatus)

	require.Equal(t, 1, q.Len())
	job, err := q.Pop(ctx)
	require.NoError(t, err)
	assert.Equal(t, video.Key, job.VideoKey)
	assert.Equal(t, queue.PriorityHigh, job.Priority)
}

func TestRedownloadUnknownVideo(t *testing.T) {
	srv, _, _, _ := newTestServer(t, &fakePipeline{})

	rec := doRequest(srv, http.MethodPost, "/api/shorts-reels/videos/youtube:none/re-download", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestManualScan(t *testing.T) {
	pipeline := &fakePipeline{scanFound: 3}
	srv, st, _, _ := newTestServer(t, pipeline)

	channel, err := st.UpsertChannel(context.Background(), model.PlatformYouTube, "@c", "C", "hai", 0)
	require.NoError(t, err)

	rec := doRequest(srv, http.MethodPost, "/api/shorts-reels/channels/"+channel.Key+"/manual-scan", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		ItemsFound int `json:"itemsFound"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 3, body.ItemsFound)
}

func TestManualScanUnknownChannel(t *testing.T) {
	srv, _, _, _ := newTestServer(t, &fakePipeline{})

	rec := doRequest(srv, http.MethodPost, "/api/shorts-reels/channels/youtube:none/manual-scan", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdateSettingsReloadsScheduler(t *testing.T) {
	srv, st, _, reloader := newTestServer(t, &fakePipeline{})

	settings := model.DefaultSettings()
	settings.MinViewsFilter = 250_000
	settings.CronTimes = model.CronTimes{Discover: "0 6 * * *", Scan: "0 9 * * *"}
	payload, err := json.Marshal(settings)
	require.NoError(t, err)

	rec := doRequest(srv, http.MethodPost, "/api/shorts-reels/settings", string(payload))
	require.Equal(t, http.StatusOK, rec.Code)

	saved, err := st.GetSettings(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(250_000), saved.MinViewsFilter)

	require.Len(t, reloader.times, 1)
	assert.Equal(t, "0 6 * * *", reloader.times[0].Discover)
}

func TestUpdateSettingsRejectsBadCron(t *testing.T) {
	srv, st, _, reloader := newTestServer(t, &fakePipeline{})

	settings := model.DefaultSettings()
	settings.CronTimes.Discover = "not a cron"
	payload, err := json.Marshal(settings)
	require.NoError(t, err)

	rec := doRequest(srv, http.MethodPost, "/api/shorts-reels/settings", string(payload))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, reloader.times)

	// Nothing was persisted.
	saved, err := st.GetSettings(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.DefaultSettings().CronTimes.Discover, saved.CronTimes.Discover)
}

func TestTriggerJob(t *testing.T) {
	pipeline := &fakePipeline{triggered: make(chan string, 1)}
	srv, _, _, _ := newTestServer(t, pipeline)

	rec := doRequest(srv, http.MethodPost, "/api/shorts-reels/jobs/trigger?type=discover", "")
	require.Equal(t, http.StatusAccepted, rec.Code)

	select {
	case job := <-pipeline.triggered:
		assert.Equal(t, "discover", job)
	case <-time.After(time.Second):
		t.Fatal("triggered job never ran")
	}
}

func TestTriggerJobUnknownType(t *testing.T) {
	srv, _, _, _ := newTestServer(t, &fakePipeline{})

	rec := doRequest(srv, http.MethodPost, "/api/shorts-reels/jobs/trigger?type=mystery", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListVideosFilters(t *testing.T) {
	srv, st, _, _ := newTestServer(t, &fakePipeline{})
	ctx := context.Background()

	_, err := st.UpsertVideo(ctx, model.Video{Platform: model.PlatformYouTube, VideoID: "v1", Views: 500_000, URL: "u1", Topic: "hai"})
	require.NoError(t, err)
	_, err = st.UpsertVideo(ctx, model.Video{Platform: model.PlatformFacebook, VideoID: "v2", Views: 2_000_000, URL: "u2", Topic: "nhay"})
	require.NoError(t, err)

	rec := doRequest(srv, http.MethodGet, "/api/shorts-reels/videos?platform=facebook", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Items []model.Video `json:"items"`
		Total int64         `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Items, 1)
	assert.Equal(t, "v2", body.Items[0].VideoID)
	assert.Equal(t, int64(1), body.Total)
}
