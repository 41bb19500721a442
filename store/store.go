// Package store defines the persistence contract consumed by the discovery
// pipeline and the download worker, with interchangeable backends. Upserts
// are atomic by unique key so concurrent discovery runs never create
// duplicate records.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/researchaccelerator-hub/shorts-scraper/config"
	"github.com/researchaccelerator-hub/shorts-scraper/model"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("record not found")

// VideoFilter narrows video listings. Zero values mean "no constraint".
type VideoFilter struct {
	Platform model.PlatformType
	Topic    string
	Status   model.DownloadStatus
	MinViews int64
	From     time.Time
	To       time.Time
	Page     int
	Limit    int
}

// ChannelFilter narrows channel listings.
type ChannelFilter struct {
	Search string
	Page   int
	Limit  int
}

// JobLogFilter narrows audit-log listings.
type JobLogFilter struct {
	JobType string
	Status  string
	From    time.Time
	To      time.Time
	Limit   int
}

// Store is the persistence collaborator. Both implementations guarantee
// create-or-update-in-one-operation semantics for the upsert methods.
type Store interface {
	// FindVideo looks a video up by its natural (platform, videoId) key.
	FindVideo(ctx context.Context, platform model.PlatformType, videoID string) (*model.Video, error)
	// GetVideo looks a video up by its document key.
	GetVideo(ctx context.Context, key string) (*model.Video, error)
	// UpsertVideo creates or refreshes a video record. Download state is
	// only initialized on insert, never clobbered by a re-discovery.
	UpsertVideo(ctx context.Context, v model.Video) (*model.Video, error)
	ListVideos(ctx context.Context, filter VideoFilter) ([]model.Video, int64, error)
	CountVideosByStatus(ctx context.Context) (map[model.DownloadStatus]int64, error)

	// Download-status transitions, driven by the worker and the API.
	MarkVideoDownloading(ctx context.Context, key string) error
	MarkVideoDone(ctx context.Context, key, localPath string, at time.Time) error
	MarkVideoFailed(ctx context.Context, key, reason string) error
	MarkVideoPending(ctx context.Context, key, reason string) error
	SetVideoDriveInfo(ctx context.Context, key, fileID, webViewLink, folderID string) error

	// UpsertChannel creates or refreshes a channel record, adding the topic
	// to its topic set. New channels start with the default priority.
	UpsertChannel(ctx context.Context, platform model.PlatformType, channelID, name, topic string, followers int64) (*model.Channel, error)
	// IncrementChannelVideoCount bumps totalVideos by one and returns the
	// new value. Called once per accepted video upsert.
	IncrementChannelVideoCount(ctx context.Context, key string) (int64, error)
	GetChannel(ctx context.Context, key string) (*model.Channel, error)
	// ListActiveChannels returns active channels, highest priority first.
	ListActiveChannels(ctx context.Context, limit int) ([]model.Channel, error)
	ListChannels(ctx context.Context, filter ChannelFilter) ([]model.Channel, int64, error)
	TouchChannelScanned(ctx context.Context, key string, at time.Time) error

	InsertJobLog(ctx context.Context, entry model.JobLog) error
	ListJobLogs(ctx context.Context, filter JobLogFilter) ([]model.JobLog, error)

	// GetSettings returns the settings document, creating the defaults on
	// first call.
	GetSettings(ctx context.Context) (model.Settings, error)
	UpdateSettings(ctx context.Context, s model.Settings) (model.Settings, error)

	Close(ctx context.Context) error
}

// Open creates the store backend selected by the configuration.
func Open(ctx context.Context, cfg config.Config) (Store, error) {
	switch cfg.Storage {
	case config.StorageMemory:
		return NewMemoryStore(), nil
	case config.StorageMongo:
		return NewMongoStore(ctx, cfg.MongoURI, cfg.MongoDatabase)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage)
	}
}
