package model

import (
	"sort"
	"time"
)

// CronTimes holds the cron expressions driving the two scheduled jobs.
type CronTimes struct {
	Discover string `bson:"discover" json:"discover"`
	Scan     string `bson:"scan" json:"scan"`
}

// Settings is the runtime-tunable configuration document. The API layer
// mutates it; pipeline entry points take an immutable snapshot at start.
type Settings struct {
	ID                    string              `bson:"_id" json:"-"`
	IsEnabled             bool                `bson:"isEnabled" json:"isEnabled"`
	Keywords              map[string][]string `bson:"keywords" json:"keywords"`
	MinViewsFilter        int64               `bson:"minViewsFilter" json:"minViewsFilter"`
	MinChannelFollowers   int64               `bson:"minChannelFollowers" json:"minChannelFollowers"`
	MinChannelTotalVideos int64               `bson:"minChannelTotalVideos" json:"minChannelTotalVideos"`
	HighPriorityViews     int64               `bson:"highPriorityViews" json:"highPriorityViews"`
	CronTimes             CronTimes           `bson:"cronTimes" json:"cronTimes"`
	UpdatedAt             time.Time           `bson:"updatedAt" json:"updatedAt"`
}

// SettingsDocID is the key of the singleton settings document.
const SettingsDocID = "default"

// DefaultSettings returns the settings created on first run.
func DefaultSettings() Settings {
	return Settings{
		ID:        SettingsDocID,
		IsEnabled: true,
		Keywords: map[string][]string{
			"hai":     {"hài hước", "funny", "comedy"},
			"nhay":    {"nhảy", "dance", "dancing"},
			"nauan":   {"nấu ăn", "cooking", "recipe"},
			"thucung": {"thú cưng", "pet", "cute animals"},
			"dulich":  {"du lịch", "travel"},
		},
		MinViewsFilter:        100_000,
		MinChannelFollowers:   0,
		MinChannelTotalVideos: 0,
		HighPriorityViews:     1_000_000,
		CronTimes: CronTimes{
			Discover: "0 7 * * *",
			Scan:     "30 8 * * *",
		},
	}
}

// Topics lists the configured topics in a stable order.
func (s Settings) Topics() []string {
	topics := make([]string, 0, len(s.Keywords))
	for topic := range s.Keywords {
		topics = append(topics, topic)
	}
	sort.Strings(topics)
	return topics
}

// TopicKeywords returns the configured keywords for a topic, falling back to
// the topic name itself so an unconfigured topic still produces a usable
// search query.
func (s Settings) TopicKeywords(topic string) []string {
	if kws, ok := s.Keywords[topic]; ok && len(kws) > 0 {
		return kws
	}
	return []string{topic}
}
