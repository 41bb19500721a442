package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/researchaccelerator-hub/shorts-scraper/model"
	"github.com/researchaccelerator-hub/shorts-scraper/queue"
	"github.com/researchaccelerator-hub/shorts-scraper/store"
)

func (s *Server) statsOverview(c *gin.Context) {
	counts, err := s.store.CountVideosByStatus(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	_, totalChannels, err := s.store.ListChannels(c.Request.Context(), store.ChannelFilter{Limit: 1})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	recent, _, err := s.store.ListVideos(c.Request.Context(), store.VideoFilter{Limit: 5})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	var total int64
	for _, n := range counts {
		total += n
	}

	c.JSON(http.StatusOK, gin.H{
		"totalVideos":    total,
		"videosByStatus": counts,
		"totalChannels":  totalChannels,
		"recentVideos":   recent,
		"queue": gin.H{
			"depth":   s.worker.QueueDepth(),
			"running": s.worker.RunningJobs(),
			"engine":  s.engine,
		},
	})
}

func (s *Server) listVideos(c *gin.Context) {
	filter := store.VideoFilter{
		Platform: model.PlatformType(c.Query("platform")),
		Topic:    c.Query("topic"),
		Status:   model.DownloadStatus(c.Query("status")),
		MinViews: queryInt64(c, "minViews"),
		From:     queryTime(c, "from"),
		To:       queryTime(c, "to"),
		Page:     int(queryInt64(c, "page")),
		Limit:    int(queryInt64(c, "limit")),
	}

	videos, total, err := s.store.ListVideos(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": videos, "total": total})
}

// redownloadVideo resets a record to pending and puts it back on the queue.
// View count decides the priority, same rule as discovery.
func (s *Server) redownloadVideo(c *gin.Context) {
	key := c.Param("id")

	video, err := s.store.GetVideo(c.Request.Context(), key)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "video not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	settings, err := s.store.GetSettings(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if err := s.store.MarkVideoPending(c.Request.Context(), key, ""); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	priority := queue.PriorityNormal
	if video.Views > settings.HighPriorityViews {
		priority = queue.PriorityHigh
	}
	s.queue.Push(key, priority, 0)

	c.JSON(http.StatusAccepted, gin.H{"key": key, "priority": priority})
}

func (s *Server) listChannels(c *gin.Context) {
	filter := store.ChannelFilter{
		Search: c.Query("search"),
		Page:   int(queryInt64(c, "page")),
		Limit:  int(queryInt64(c, "limit")),
	}

	channels, total, err := s.store.ListChannels(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": channels, "total": total})
}

// manualScan runs a single-channel scan synchronously and reports how many
// new items it queued.
func (s *Server) manualScan(c *gin.Context) {
	key := c.Param("id")

	channel, err := s.store.GetChannel(c.Request.Context(), key)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "channel not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	settings, err := s.store.GetSettings(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	found, err := s.pipeline.ScanChannel(c.Request.Context(), *channel, settings)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"key": key, "itemsFound": found})
}

func (s *Server) listLogs(c *gin.Context) {
	filter := store.JobLogFilter{
		JobType: c.Query("jobType"),
		Status:  c.Query("status"),
		From:    queryTime(c, "from"),
		To:      queryTime(c, "to"),
		Limit:   int(queryInt64(c, "limit")),
	}

	logs, err := s.store.ListJobLogs(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": logs})
}

func (s *Server) getSettings(c *gin.Context) {
	settings, err := s.store.GetSettings(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, settings)
}

// updateSettings replaces the settings document and reschedules the cron
// entries. Cron expressions are validated before anything is persisted.
func (s *Server) updateSettings(c *gin.Context) {
	var settings model.Settings
	if err := c.ShouldBindJSON(&settings); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid settings payload"})
		return
	}

	if _, err := cron.ParseStandard(settings.CronTimes.Discover); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid discover cron expression"})
		return
	}
	if _, err := cron.ParseStandard(settings.CronTimes.Scan); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid scan cron expression"})
		return
	}

	updated, err := s.store.UpdateSettings(c.Request.Context(), settings)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if s.reloader != nil {
		if err := s.reloader.Reload(updated.CronTimes); err != nil {
			log.Error().Err(err).Msg("Failed to reschedule cron entries after settings update")
		}
	}

	c.JSON(http.StatusOK, updated)
}

// triggerJob kicks off a discovery or scan run in the background.
func (s *Server) triggerJob(c *gin.Context) {
	jobType := c.Query("type")

	var run func(context.Context) error
	switch jobType {
	case "discover":
		run = func(ctx context.Context) error {
			_, err := s.pipeline.DiscoverAll(ctx)
			return err
		}
	case "scan":
		run = func(ctx context.Context) error {
			_, err := s.pipeline.ScanAllChannels(ctx)
			return err
		}
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown job type, expected discover or scan"})
		return
	}

	go func() {
		if err := run(context.Background()); err != nil {
			log.Error().Err(err).Str("job_type", jobType).Msg("Triggered job failed")
		}
	}()

	c.JSON(http.StatusAccepted, gin.H{"triggered": jobType})
}

func queryInt64(c *gin.Context, name string) int64 {
	raw := c.Query(name)
	if raw == "" {
		return 0
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

func queryTime(c *gin.Context, name string) time.Time {
	raw := c.Query(name)
	if raw == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}
	}
	return t
}
