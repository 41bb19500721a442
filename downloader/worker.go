package downloader

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/researchaccelerator-hub/shorts-scraper/model"
	"github.com/researchaccelerator-hub/shorts-scraper/queue"
	"github.com/researchaccelerator-hub/shorts-scraper/store"
	"github.com/researchaccelerator-hub/shorts-scraper/uploader"
)

// maxRetries caps retries after the first attempt, so a job is tried at
// most three times in total.
const maxRetries = 2

// Worker is the single long-lived loop draining the download queue.
type Worker struct {
	queue    *queue.Queue
	store    store.Store
	runner   Runner
	uploader uploader.Uploader
	root     string

	running atomic.Int64
}

// NewWorker wires the worker to its collaborators. root is the local
// directory downloads land in.
func NewWorker(q *queue.Queue, st store.Store, runner Runner, up uploader.Uploader, root string) *Worker {
	return &Worker{queue: q, store: st, runner: runner, uploader: up, root: root}
}

// RunningJobs reports how many jobs are being processed right now (0 or 1
// with the single loop; kept as a counter for the stats endpoint).
func (w *Worker) RunningJobs() int64 { return w.running.Load() }

// QueueDepth reports the number of jobs waiting in the queue.
func (w *Worker) QueueDepth() int { return w.queue.Len() }

// Run drains the queue until the context is cancelled or the queue is
// closed. Job failures are handled by the retry policy and never stop the
// loop.
func (w *Worker) Run(ctx context.Context) error {
	log.Info().Msg("Download worker started")
	for {
		job, err := w.queue.Pop(ctx)
		if errors.Is(err, queue.ErrClosed) {
			log.Info().Msg("Download queue closed, worker stopping")
			return nil
		}
		if err != nil {
			return err
		}

		w.running.Add(1)
		w.process(ctx, job)
		w.running.Add(-1)
	}
}

// Drain processes queued jobs until the queue is empty. Used by the
// one-shot CLI commands, where nothing else will ever enqueue.
func (w *Worker) Drain(ctx context.Context) error {
	for w.queue.Len() > 0 {
		job, err := w.queue.Pop(ctx)
		if err != nil {
			return err
		}
		w.running.Add(1)
		w.process(ctx, job)
		w.running.Add(-1)
	}
	return nil
}

func (w *Worker) process(ctx context.Context, job queue.Job) {
	started := time.Now()

	video, err := w.store.GetVideo(ctx, job.VideoKey)
	if errors.Is(err, store.ErrNotFound) {
		// The record may have been deleted since enqueue; drop the job.
		log.Debug().Str("video_key", job.VideoKey).Msg("Queued video no longer exists, dropping job")
		return
	}
	if err != nil {
		log.Error().Err(err).Str("video_key", job.VideoKey).Msg("Failed to load queued video")
		return
	}

	if err := w.attempt(ctx, video); err != nil {
		w.handleFailure(ctx, video, job, err, started)
		return
	}

	w.audit(ctx, model.JobLog{
		JobType:         model.JobTypeDownload,
		Status:          model.JobStatusSuccess,
		Platform:        video.Platform,
		Topic:           video.Topic,
		ItemsDownloaded: 1,
		DurationMS:      time.Since(started).Milliseconds(),
	})
}

func (w *Worker) attempt(ctx context.Context, video *model.Video) error {
	if err := w.store.MarkVideoDownloading(ctx, video.Key); err != nil {
		return fmt.Errorf("failed to mark video downloading: %w", err)
	}

	outputPath := w.buildPath(video)
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return fmt.Errorf("failed to create download directory: %w", err)
	}

	log.Info().
		Str("platform", string(video.Platform)).
		Str("video_id", video.VideoID).
		Str("output", outputPath).
		Msg("Downloading video")

	if err := w.runner.Run(ctx, video.URL, outputPath); err != nil {
		return err
	}

	if err := w.store.MarkVideoDone(ctx, video.Key, outputPath, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to mark video done: %w", err)
	}

	// Hand off to cloud storage best-effort: an upload failure must not
	// revert the done status or fail the job.
	result := w.uploader.Upload(ctx, outputPath, video.Platform, map[string]string{
		"videoId":   video.VideoID,
		"topic":     video.Topic,
		"sourceUrl": video.URL,
	})
	if result.Success {
		if err := w.store.SetVideoDriveInfo(ctx, video.Key, result.FileID, result.WebViewLink, result.FolderID); err != nil {
			log.Warn().Err(err).Str("video_key", video.Key).Msg("Failed to record drive info")
		}
	} else {
		log.Debug().Str("video_key", video.Key).Str("reason", result.Message).Msg("Upload skipped or failed")
	}
	return nil
}

func (w *Worker) handleFailure(ctx context.Context, video *model.Video, job queue.Job, cause error, started time.Time) {
	retry := job.Attempts < maxRetries

	if retry {
		if err := w.store.MarkVideoPending(ctx, video.Key, cause.Error()); err != nil {
			log.Error().Err(err).Str("video_key", video.Key).Msg("Failed to reset video to pending")
		}
	} else {
		if err := w.store.MarkVideoFailed(ctx, video.Key, cause.Error()); err != nil {
			log.Error().Err(err).Str("video_key", video.Key).Msg("Failed to mark video failed")
		}
	}

	status := model.JobStatusFailed
	if retry {
		status = model.JobStatusPartial
	}
	w.audit(ctx, model.JobLog{
		JobType:    model.JobTypeDownload,
		Status:     status,
		Platform:   video.Platform,
		Topic:      video.Topic,
		DurationMS: time.Since(started).Milliseconds(),
		Error:      cause.Error(),
	})

	if retry {
		// Retries are demoted to normal priority regardless of the
		// original priority, and go straight back on the queue.
		w.queue.Push(video.Key, queue.PriorityNormal, job.Attempts+1)
		log.Warn().
			Err(cause).
			Str("video_key", video.Key).
			Int("attempt", job.Attempts+1).
			Msg("Download failed, re-enqueued")
		return
	}

	log.Error().
		Err(cause).
		Str("video_key", video.Key).
		Msg("Download failed permanently after exhausting retries")
}

// buildPath derives the deterministic local path for a video:
// <root>/<platform>/<topic>/<date>/<videoId>.mp4.
func (w *Worker) buildPath(video *model.Video) string {
	topic := video.Topic
	if topic == "" {
		topic = "misc"
	}
	day := time.Now().UTC().Format("2006-01-02")
	return filepath.Join(w.root, string(video.Platform), topic, day, video.VideoID+".mp4")
}

func (w *Worker) audit(ctx context.Context, entry model.JobLog) {
	entry.ID = uuid.NewString()
	entry.RanAt = time.Now().UTC()

	event := log.Info()
	if entry.Status == model.JobStatusFailed {
		event = log.Error()
	}
	event.
		Str("job_type", entry.JobType).
		Str("status", entry.Status).
		Str("platform", string(entry.Platform)).
		Str("topic", entry.Topic).
		Int("items_downloaded", entry.ItemsDownloaded).
		Int64("duration_ms", entry.DurationMS).
		Str("error", entry.Error).
		Msg("Download job finished")

	if err := w.store.InsertJobLog(ctx, entry); err != nil {
		log.Error().Err(err).Msg("Failed to persist job log")
	}
}
