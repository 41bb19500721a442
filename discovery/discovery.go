// Package discovery runs the two externally triggerable pipelines: topic
// search across platforms and the per-channel scan. Both share the same
// filter-and-enqueue flow over collected cards.
package discovery

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/researchaccelerator-hub/shorts-scraper/collector"
	"github.com/researchaccelerator-hub/shorts-scraper/model"
	"github.com/researchaccelerator-hub/shorts-scraper/parse"
	"github.com/researchaccelerator-hub/shorts-scraper/queue"
	"github.com/researchaccelerator-hub/shorts-scraper/store"
)

// maxChannelsPerScan bounds one scan run over the active channel list.
const maxChannelsPerScan = 100

// Collector is the card source, satisfied by *collector.Facade.
type Collector interface {
	Collect(ctx context.Context, req collector.Request) ([]model.Card, error)
}

// Result is the outcome of one entry-point invocation.
type Result struct {
	Skipped    bool `json:"skipped,omitempty"`
	ItemsFound int  `json:"itemsFound"`
}

// Service owns the discovery and scan entry points.
type Service struct {
	store     store.Store
	collector Collector
	queue     *queue.Queue
}

// NewService wires the discovery pipelines to their collaborators.
func NewService(st store.Store, c Collector, q *queue.Queue) *Service {
	return &Service{store: st, collector: c, queue: q}
}

// DiscoverAll searches every configured topic on every platform, persists
// accepted candidates and enqueues them for download. One platform's
// collection failure never blocks the others; persistence failures abort
// the run.
func (s *Service) DiscoverAll(ctx context.Context) (Result, error) {
	started := time.Now()

	settings, err := s.store.GetSettings(ctx)
	if err != nil {
		return Result{}, err
	}
	if !settings.IsEnabled {
		log.Info().Msg("Automation disabled, skipping discovery")
		return Result{Skipped: true}, nil
	}

	found := 0
	for _, topic := range settings.Topics() {
		for _, platform := range model.AllPlatforms {
			n, err := s.discoverPlatform(ctx, platform, topic, settings)
			found += n
			if err != nil {
				s.audit(ctx, model.JobLog{
					JobType:    model.JobTypeDiscover,
					Status:     model.JobStatusFailed,
					Platform:   platform,
					Topic:      topic,
					ItemsFound: found,
					DurationMS: time.Since(started).Milliseconds(),
					Error:      err.Error(),
				})
				return Result{ItemsFound: found}, err
			}
		}
	}

	s.audit(ctx, model.JobLog{
		JobType:    model.JobTypeDiscover,
		Status:     model.JobStatusSuccess,
		ItemsFound: found,
		DurationMS: time.Since(started).Milliseconds(),
	})
	return Result{ItemsFound: found}, nil
}

func (s *Service) discoverPlatform(ctx context.Context, platform model.PlatformType, topic string, settings model.Settings) (int, error) {
	keywords := settings.TopicKeywords(topic)
	req := searchRequest(platform, keywords[0])

	cards, err := s.collector.Collect(ctx, req)
	if err != nil {
		// Both backends failed; treat as zero items for this platform and
		// topic so the rest of the run proceeds.
		log.Warn().
			Err(err).
			Str("platform", string(platform)).
			Str("topic", topic).
			Msg("Collection failed on both engines, skipping platform for this topic")
		return 0, nil
	}

	found := 0
	for _, card := range cards {
		candidate, ok := s.filterCard(card, platform, topic, keywords, settings)
		if !ok {
			continue
		}

		accepted, err := s.acceptCandidate(ctx, candidate, settings)
		if err != nil {
			return found, err
		}
		if accepted {
			found++
		}
	}

	log.Info().
		Str("platform", string(platform)).
		Str("topic", topic).
		Int("cards", len(cards)).
		Int("accepted", found).
		Msg("Discovery pass finished")
	return found, nil
}

// filterCard applies the metric and topic filters to one raw card.
func (s *Service) filterCard(card model.Card, platform model.PlatformType, topic string, keywords []string, settings model.Settings) (model.Candidate, bool) {
	if card.Href == "" {
		return model.Candidate{}, false
	}

	views := parse.Metric(card.Text)
	if views < settings.MinViewsFilter {
		return model.Candidate{}, false
	}
	if !parse.MatchTopic(card.Text, topic, keywords) {
		return model.Candidate{}, false
	}
	followers := parse.Followers(card.Text)
	if followers < settings.MinChannelFollowers {
		return model.Candidate{}, false
	}

	return model.Candidate{
		URL:       absoluteURL(platform, card.Href),
		Text:      card.Text,
		Views:     views,
		Followers: followers,
		Platform:  platform,
		Topic:     topic,
	}, true
}

// acceptCandidate persists a candidate and enqueues it unless its channel
// has not yet proven the minimum back-catalog. Recorded-but-unqueued items
// are not revisited when the channel later crosses the threshold.
func (s *Service) acceptCandidate(ctx context.Context, c model.Candidate, settings model.Settings) (bool, error) {
	videoID := parse.VideoID(c.Platform, c.URL)
	if videoID == "" {
		return false, nil
	}

	channel, err := s.store.UpsertChannel(ctx, c.Platform, syntheticChannelID(c.Platform, videoID), placeholderChannelName(c.Platform), c.Topic, c.Followers)
	if err != nil {
		return false, err
	}

	video, err := s.store.UpsertVideo(ctx, model.Video{
		Platform:   c.Platform,
		VideoID:    videoID,
		Title:      truncate(c.Text, titleLimit(c.Platform)),
		Views:      c.Views,
		URL:        c.URL,
		Topic:      c.Topic,
		ChannelRef: channel.Key,
	})
	if err != nil {
		return false, err
	}

	total, err := s.store.IncrementChannelVideoCount(ctx, channel.Key)
	if err != nil {
		return false, err
	}
	if total < settings.MinChannelTotalVideos {
		// Recorded but not queued: the channel has not proven a minimum
		// back-catalog yet.
		return false, nil
	}

	s.queue.Push(video.Key, priorityFor(c.Views, settings), 0)
	return true, nil
}

// ScanAllChannels runs the channel scanner over the active channels,
// highest priority first.
func (s *Service) ScanAllChannels(ctx context.Context) (Result, error) {
	started := time.Now()

	settings, err := s.store.GetSettings(ctx)
	if err != nil {
		return Result{}, err
	}
	if !settings.IsEnabled {
		log.Info().Msg("Automation disabled, skipping channel scan")
		return Result{Skipped: true}, nil
	}

	channels, err := s.store.ListActiveChannels(ctx, maxChannelsPerScan)
	if err != nil {
		return Result{}, err
	}

	found := 0
	for _, channel := range channels {
		n, err := s.ScanChannel(ctx, channel, settings)
		found += n
		if err != nil {
			s.audit(ctx, model.JobLog{
				JobType:    model.JobTypeScanChannel,
				Status:     model.JobStatusFailed,
				Platform:   channel.Platform,
				ItemsFound: found,
				DurationMS: time.Since(started).Milliseconds(),
				Error:      err.Error(),
			})
			return Result{ItemsFound: found}, err
		}
	}

	s.audit(ctx, model.JobLog{
		JobType:    model.JobTypeScanChannel,
		Status:     model.JobStatusSuccess,
		ItemsFound: found,
		DurationMS: time.Since(started).Milliseconds(),
	})
	return Result{ItemsFound: found}, nil
}

// ScanChannel applies the filter-and-enqueue pipeline to one channel's
// listing page. Items already downloaded are skipped outright, and the
// channel is trusted: no back-catalog gate applies. The lastScanned stamp
// is unconditional, whatever the scan found.
func (s *Service) ScanChannel(ctx context.Context, channel model.Channel, settings model.Settings) (found int, err error) {
	defer func() {
		if terr := s.store.TouchChannelScanned(ctx, channel.Key, time.Now().UTC()); terr != nil && !errors.Is(terr, store.ErrNotFound) {
			log.Error().Err(terr).Str("channel_key", channel.Key).Msg("Failed to stamp channel scan time")
		}
	}()

	topic := "hai"
	if len(channel.Topics) > 0 {
		topic = channel.Topics[0]
	}

	cards, cerr := s.collector.Collect(ctx, channelRequest(channel))
	if cerr != nil {
		log.Warn().
			Err(cerr).
			Str("channel_key", channel.Key).
			Msg("Collection failed on both engines, skipping channel")
		return 0, nil
	}

	for _, card := range cards {
		if card.Href == "" {
			continue
		}

		fullURL := absoluteURL(channel.Platform, card.Href)
		videoID := parse.VideoID(channel.Platform, fullURL)
		if videoID == "" {
			continue
		}

		existing, gerr := s.store.FindVideo(ctx, channel.Platform, videoID)
		if gerr != nil && !errors.Is(gerr, store.ErrNotFound) {
			return found, gerr
		}
		if existing != nil && existing.DownloadStatus == model.StatusDone {
			continue
		}

		views := parse.Metric(card.Text)
		followers := parse.Followers(card.Text)
		if views < settings.MinViewsFilter || followers < settings.MinChannelFollowers {
			continue
		}

		video, uerr := s.store.UpsertVideo(ctx, model.Video{
			Platform:   channel.Platform,
			VideoID:    videoID,
			Title:      truncate(card.Text, 120),
			Views:      views,
			URL:        fullURL,
			Topic:      topic,
			ChannelRef: channel.Key,
		})
		if uerr != nil {
			return found, uerr
		}

		s.queue.Push(video.Key, priorityFor(views, settings), 0)
		found++
	}

	return found, nil
}

// priorityFor maps a view count to a queue priority.
func priorityFor(views int64, settings model.Settings) int {
	if views > settings.HighPriorityViews {
		return queue.PriorityHigh
	}
	return queue.PriorityNormal
}

func (s *Service) audit(ctx context.Context, entry model.JobLog) {
	entry.ID = uuid.NewString()
	entry.RanAt = time.Now().UTC()

	event := log.Info()
	if entry.Status == model.JobStatusFailed {
		event = log.Error()
	}
	event.
		Str("job_type", entry.JobType).
		Str("status", entry.Status).
		Int("items_found", entry.ItemsFound).
		Int64("duration_ms", entry.DurationMS).
		Str("error", entry.Error).
		Msg("Pipeline run finished")

	if err := s.store.InsertJobLog(ctx, entry); err != nil {
		log.Error().Err(err).Msg("Failed to persist job log")
	}
}
