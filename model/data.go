// Package model defines the data records shared across the discovery and
// download pipeline.
package model

import (
	"fmt"
	"time"
)

// PlatformType identifies a supported source platform.
type PlatformType string

const (
	// PlatformYouTube represents YouTube Shorts
	PlatformYouTube PlatformType = "youtube"

	// PlatformFacebook represents Facebook Reels
	PlatformFacebook PlatformType = "facebook"
)

// AllPlatforms lists the platforms covered by a discovery run.
var AllPlatforms = []PlatformType{PlatformYouTube, PlatformFacebook}

// DownloadStatus represents the lifecycle of a discovered video.
type DownloadStatus string

const (
	StatusPending     DownloadStatus = "pending"
	StatusDownloading DownloadStatus = "downloading"
	StatusDone        DownloadStatus = "done"
	StatusFailed      DownloadStatus = "failed"
)

// Card is a raw (href, text) pair extracted from a page by a collector
// backend, before any filtering.
type Card struct {
	Href string `json:"href"`
	Text string `json:"text"`
}

// Candidate is a Card that passed metric parsing, not yet persisted.
type Candidate struct {
	URL       string       `json:"url"`
	Text      string       `json:"text"`
	Views     int64        `json:"views"`
	Followers int64        `json:"followers"`
	Platform  PlatformType `json:"platform"`
	Topic     string       `json:"topic"`
}

// Video is the persistent record of a discovered item. Its identity is the
// (platform, videoId) pair; repeated discovery updates the same record.
type Video struct {
	Key            string         `bson:"_id" json:"key"`
	Platform       PlatformType   `bson:"platform" json:"platform"`
	VideoID        string         `bson:"videoId" json:"videoId"`
	Title          string         `bson:"title" json:"title"`
	Views          int64          `bson:"views" json:"views"`
	URL            string         `bson:"url" json:"url"`
	Topic          string         `bson:"topic" json:"topic"`
	Thumbnail      string         `bson:"thumbnail" json:"thumbnail"`
	ChannelRef     string         `bson:"channelRef" json:"channelRef"`
	DownloadStatus DownloadStatus `bson:"downloadStatus" json:"downloadStatus"`
	LocalPath      string         `bson:"localPath,omitempty" json:"localPath,omitempty"`
	FailReason     string         `bson:"failReason,omitempty" json:"failReason,omitempty"`
	DriveFileID    string         `bson:"driveFileId,omitempty" json:"driveFileId,omitempty"`
	DriveLink      string         `bson:"driveWebViewLink,omitempty" json:"driveWebViewLink,omitempty"`
	DriveFolderID  string         `bson:"driveFolderId,omitempty" json:"driveFolderId,omitempty"`
	DiscoveredAt   time.Time      `bson:"discoveredAt" json:"discoveredAt"`
	DownloadedAt   *time.Time     `bson:"downloadedAt,omitempty" json:"downloadedAt,omitempty"`
	UpdatedAt      time.Time      `bson:"updatedAt" json:"updatedAt"`
}

// VideoKey builds the document key for a (platform, videoId) pair.
func VideoKey(platform PlatformType, videoID string) string {
	return fmt.Sprintf("%s:%s", platform, videoID)
}

// Channel is the persistent record of a tracked channel or page. Its
// identity is the (platform, channelId) pair.
type Channel struct {
	Key         string       `bson:"_id" json:"key"`
	Platform    PlatformType `bson:"platform" json:"platform"`
	ChannelID   string       `bson:"channelId" json:"channelId"`
	Name        string       `bson:"name" json:"name"`
	Topics      []string     `bson:"topic" json:"topic"`
	Followers   int64        `bson:"followers" json:"followers"`
	IsActive    bool         `bson:"isActive" json:"isActive"`
	Priority    int          `bson:"priority" json:"priority"`
	TotalVideos int64        `bson:"totalVideos" json:"totalVideos"`
	LastScanned *time.Time   `bson:"lastScanned,omitempty" json:"lastScanned,omitempty"`
	UpdatedAt   time.Time    `bson:"updatedAt" json:"updatedAt"`
}

// ChannelKey builds the document key for a (platform, channelId) pair.
func ChannelKey(platform PlatformType, channelID string) string {
	return fmt.Sprintf("%s:%s", platform, channelID)
}

// DefaultChannelPriority is assigned to channels created on first discovery.
const DefaultChannelPriority = 3

// JobLog is one audit record for a discovery, scan or download attempt.
type JobLog struct {
	ID              string       `bson:"_id" json:"id"`
	JobType         string       `bson:"jobType" json:"jobType"`
	Status          string       `bson:"status" json:"status"`
	Platform        PlatformType `bson:"platform,omitempty" json:"platform,omitempty"`
	Topic           string       `bson:"topic,omitempty" json:"topic,omitempty"`
	ItemsFound      int          `bson:"itemsFound" json:"itemsFound"`
	ItemsDownloaded int          `bson:"itemsDownloaded" json:"itemsDownloaded"`
	DurationMS      int64        `bson:"duration" json:"duration"`
	Error           string       `bson:"error,omitempty" json:"error,omitempty"`
	RanAt           time.Time    `bson:"ranAt" json:"ranAt"`
}

// Job type names used in JobLog records.
const (
	JobTypeDiscover    = "discover"
	JobTypeScanChannel = "scan-channel"
	JobTypeDownload    = "download"
)

// Job outcome statuses used in JobLog records. "partial" marks a download
// failure that will be retried.
const (
	JobStatusSuccess = "success"
	JobStatusPartial = "partial"
	JobStatusFailed  = "failed"
	JobStatusSkipped = "skipped"
)
