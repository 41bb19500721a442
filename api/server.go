// Package api exposes the management surface over HTTP: pipeline triggers,
// record listings, the download queue view and the runtime settings.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/researchaccelerator-hub/shorts-scraper/discovery"
	"github.com/researchaccelerator-hub/shorts-scraper/model"
	"github.com/researchaccelerator-hub/shorts-scraper/queue"
	"github.com/researchaccelerator-hub/shorts-scraper/store"
)

// Pipeline is the discovery collaborator, satisfied by *discovery.Service.
type Pipeline interface {
	DiscoverAll(ctx context.Context) (discovery.Result, error)
	ScanAllChannels(ctx context.Context) (discovery.Result, error)
	ScanChannel(ctx context.Context, channel model.Channel, settings model.Settings) (int, error)
}

// Reloader reschedules the cron entries after a settings change, satisfied
// by *scheduler.Scheduler. Nil disables rescheduling.
type Reloader interface {
	Reload(times model.CronTimes) error
}

// WorkerStats reports live download-worker gauges, satisfied by
// *downloader.Worker.
type WorkerStats interface {
	RunningJobs() int64
	QueueDepth() int
}

// Server holds the HTTP handlers and their collaborators.
type Server struct {
	store    store.Store
	pipeline Pipeline
	queue    *queue.Queue
	worker   WorkerStats
	reloader Reloader
	engine   string

	http *http.Server
}

// NewServer builds the HTTP server on the given listen address. engine names
// the configured collector engine, reported by the stats endpoint.
func NewServer(addr, engine string, st store.Store, pipeline Pipeline, q *queue.Queue, worker WorkerStats, reloader Reloader) *Server {
	s := &Server{
		store:    st,
		pipeline: pipeline,
		queue:    q,
		worker:   worker,
		reloader: reloader,
		engine:   engine,
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())

	router.GET("/healthz", s.healthz)

	group := router.Group("/api/shorts-reels")
	{
		group.GET("/stats/overview", s.statsOverview)
		group.GET("/videos", s.listVideos)
		group.POST("/videos/:id/re-download", s.redownloadVideo)
		group.GET("/channels", s.listChannels)
		group.POST("/channels/:id/manual-scan", s.manualScan)
		group.GET("/logs", s.listLogs)
		group.GET("/settings", s.getSettings)
		group.POST("/settings", s.updateSettings)
		group.POST("/jobs/trigger", s.triggerJob)
	}

	s.http = &http.Server{
		Addr:    addr,
		Handler: router,
	}
	return s
}

// Run serves until the context is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", s.http.Addr).Msg("HTTP server listening")
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler { return s.http.Handler }

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		started := time.Now()
		c.Next()
		log.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", time.Since(started)).
			Msg("HTTP request")
	}
}

func (s *Server) healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
