package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/researchaccelerator-hub/shorts-scraper/model"
)

// MemoryStore is the in-process store backend. It backs tests and local
// development runs where a MongoDB instance is not worth the setup.
type MemoryStore struct {
	mu       sync.RWMutex
	videos   map[string]model.Video
	channels map[string]model.Channel
	logs     []model.JobLog
	settings *model.Settings
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		videos:   make(map[string]model.Video),
		channels: make(map[string]model.Channel),
	}
}

func (s *MemoryStore) FindVideo(ctx context.Context, platform model.PlatformType, videoID string) (*model.Video, error) {
	return s.GetVideo(ctx, model.VideoKey(platform, videoID))
}

func (s *MemoryStore) GetVideo(_ context.Context, key string) (*model.Video, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.videos[key]
	if !ok {
		return nil, ErrNotFound
	}
	return &v, nil
}

func (s *MemoryStore) UpsertVideo(_ context.Context, v model.Video) (*model.Video, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	key := model.VideoKey(v.Platform, v.VideoID)

	existing, ok := s.videos[key]
	if !ok {
		existing = model.Video{
			Key:            key,
			DownloadStatus: model.StatusPending,
			DiscoveredAt:   now,
		}
	}
	existing.Platform = v.Platform
	existing.VideoID = v.VideoID
	existing.Title = v.Title
	existing.Views = v.Views
	existing.URL = v.URL
	existing.Topic = v.Topic
	existing.Thumbnail = v.Thumbnail
	existing.ChannelRef = v.ChannelRef
	existing.UpdatedAt = now

	s.videos[key] = existing
	return &existing, nil
}

func (s *MemoryStore) ListVideos(_ context.Context, filter VideoFilter) ([]model.Video, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []model.Video
	for _, v := range s.videos {
		if filter.Platform != "" && v.Platform != filter.Platform {
			continue
		}
		if filter.Topic != "" && v.Topic != filter.Topic {
			continue
		}
		if filter.Status != "" && v.DownloadStatus != filter.Status {
			continue
		}
		if filter.MinViews > 0 && v.Views < filter.MinViews {
			continue
		}
		if !filter.From.IsZero() && v.DiscoveredAt.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && v.DiscoveredAt.After(filter.To) {
			continue
		}
		matched = append(matched, v)
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].DiscoveredAt.After(matched[j].DiscoveredAt)
	})

	total := int64(len(matched))
	page, limit := normalizePage(filter.Page, filter.Limit)
	start := (page - 1) * limit
	if start >= len(matched) {
		return nil, total, nil
	}
	end := start + limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}

func (s *MemoryStore) CountVideosByStatus(_ context.Context) (map[model.DownloadStatus]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := map[model.DownloadStatus]int64{
		model.StatusPending:     0,
		model.StatusDownloading: 0,
		model.StatusDone:        0,
		model.StatusFailed:      0,
	}
	for _, v := range s.videos {
		counts[v.DownloadStatus]++
	}
	return counts, nil
}

func (s *MemoryStore) mutateVideo(key string, mutate func(*model.Video)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.videos[key]
	if !ok {
		return ErrNotFound
	}
	mutate(&v)
	v.UpdatedAt = time.Now().UTC()
	s.videos[key] = v
	return nil
}

func (s *MemoryStore) MarkVideoDownloading(_ context.Context, key string) error {
	return s.mutateVideo(key, func(v *model.Video) {
		v.DownloadStatus = model.StatusDownloading
	})
}

func (s *MemoryStore) MarkVideoDone(_ context.Context, key, localPath string, at time.Time) error {
	return s.mutateVideo(key, func(v *model.Video) {
		v.DownloadStatus = model.StatusDone
		v.LocalPath = localPath
		v.DownloadedAt = &at
		v.FailReason = ""
	})
}

func (s *MemoryStore) MarkVideoFailed(_ context.Context, key, reason string) error {
	return s.mutateVideo(key, func(v *model.Video) {
		v.DownloadStatus = model.StatusFailed
		v.FailReason = reason
	})
}

func (s *MemoryStore) MarkVideoPending(_ context.Context, key, reason string) error {
	return s.mutateVideo(key, func(v *model.Video) {
		v.DownloadStatus = model.StatusPending
		v.FailReason = reason
	})
}

func (s *MemoryStore) SetVideoDriveInfo(_ context.Context, key, fileID, webViewLink, folderID string) error {
	return s.mutateVideo(key, func(v *model.Video) {
		v.DriveFileID = fileID
		v.DriveLink = webViewLink
		v.DriveFolderID = folderID
	})
}

func (s *MemoryStore) UpsertChannel(_ context.Context, platform model.PlatformType, channelID, name, topic string, followers int64) (*model.Channel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	key := model.ChannelKey(platform, channelID)

	ch, ok := s.channels[key]
	if !ok {
		ch = model.Channel{
			Key:       key,
			Platform:  platform,
			ChannelID: channelID,
			IsActive:  true,
			Priority:  model.DefaultChannelPriority,
		}
	}
	ch.Name = name
	ch.Followers = followers
	ch.UpdatedAt = now
	if topic != "" && !containsString(ch.Topics, topic) {
		ch.Topics = append(ch.Topics, topic)
	}

	s.channels[key] = ch
	return &ch, nil
}

func (s *MemoryStore) IncrementChannelVideoCount(_ context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch, ok := s.channels[key]
	if !ok {
		return 0, ErrNotFound
	}
	ch.TotalVideos++
	s.channels[key] = ch
	return ch.TotalVideos, nil
}

func (s *MemoryStore) GetChannel(_ context.Context, key string) (*model.Channel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ch, ok := s.channels[key]
	if !ok {
		return nil, ErrNotFound
	}
	return &ch, nil
}

func (s *MemoryStore) ListActiveChannels(_ context.Context, limit int) ([]model.Channel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var items []model.Channel
	for _, ch := range s.channels {
		if ch.IsActive {
			items = append(items, ch)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Priority != items[j].Priority {
			return items[i].Priority > items[j].Priority
		}
		return items[i].Key < items[j].Key
	})
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (s *MemoryStore) ListChannels(_ context.Context, filter ChannelFilter) ([]model.Channel, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	search := strings.ToLower(filter.Search)
	var matched []model.Channel
	for _, ch := range s.channels {
		if search != "" &&
			!strings.Contains(strings.ToLower(ch.Name), search) &&
			!strings.Contains(strings.ToLower(ch.ChannelID), search) {
			continue
		}
		matched = append(matched, ch)
	}

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].Priority != matched[j].Priority {
			return matched[i].Priority > matched[j].Priority
		}
		return matched[i].UpdatedAt.After(matched[j].UpdatedAt)
	})

	total := int64(len(matched))
	page, limit := normalizePage(filter.Page, filter.Limit)
	start := (page - 1) * limit
	if start >= len(matched) {
		return nil, total, nil
	}
	end := start + limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}

func (s *MemoryStore) TouchChannelScanned(_ context.Context, key string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch, ok := s.channels[key]
	if !ok {
		return ErrNotFound
	}
	ch.LastScanned = &at
	ch.UpdatedAt = at
	s.channels[key] = ch
	return nil
}

func (s *MemoryStore) InsertJobLog(_ context.Context, entry model.JobLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = append(s.logs, entry)
	return nil
}

func (s *MemoryStore) ListJobLogs(_ context.Context, filter JobLogFilter) ([]model.JobLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []model.JobLog
	for _, entry := range s.logs {
		if filter.JobType != "" && entry.JobType != filter.JobType {
			continue
		}
		if filter.Status != "" && entry.Status != filter.Status {
			continue
		}
		if !filter.From.IsZero() && entry.RanAt.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && entry.RanAt.After(filter.To) {
			continue
		}
		matched = append(matched, entry)
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].RanAt.After(matched[j].RanAt)
	})

	limit := filter.Limit
	if limit <= 0 {
		limit = 200
	}
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

func (s *MemoryStore) GetSettings(_ context.Context) (model.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.settings == nil {
		defaults := model.DefaultSettings()
		defaults.UpdatedAt = time.Now().UTC()
		s.settings = &defaults
	}
	return *s.settings, nil
}

func (s *MemoryStore) UpdateSettings(_ context.Context, in model.Settings) (model.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	in.ID = model.SettingsDocID
	in.UpdatedAt = time.Now().UTC()
	s.settings = &in
	return in, nil
}

func (s *MemoryStore) Close(context.Context) error { return nil }

func containsString(items []string, want string) bool {
	for _, item := range items {
		if item == want {
			return true
		}
	}
	return false
}
