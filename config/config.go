// Package config loads the static service configuration. Runtime-tunable
// thresholds live in the settings document managed through the store; this
// package covers everything fixed at process start.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Collector engine names accepted by ScraperConfig.Engine.
const (
	EngineStealth  = "stealth"
	EngineStandard = "standard"
)

// Storage backend names accepted by Config.Storage.
const (
	StorageMongo  = "mongo"
	StorageMemory = "memory"
)

// ScraperConfig controls how collector backends launch browser sessions.
type ScraperConfig struct {
	Engine            string        `mapstructure:"engine"`
	Headless          bool          `mapstructure:"headless"`
	Locale            string        `mapstructure:"locale"`
	Timezone          string        `mapstructure:"timezone"`
	Proxy             string        `mapstructure:"proxy"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout"`
}

// Config is the immutable service configuration, validated once at load.
type Config struct {
	ListenAddr      string        `mapstructure:"listen_addr"`
	Storage         string        `mapstructure:"storage"`
	MongoURI        string        `mapstructure:"mongo_uri"`
	MongoDatabase   string        `mapstructure:"mongo_database"`
	DownloadRoot    string        `mapstructure:"download_root"`
	YtDlpBinary     string        `mapstructure:"ytdlp_binary"`
	DriveTokenFile  string        `mapstructure:"drive_token_file"`
	EnableScheduler bool          `mapstructure:"enable_scheduler"`
	LogLevel        string        `mapstructure:"log_level"`
	Scraper         ScraperConfig `mapstructure:"scraper"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("listen_addr", ":8090")
	v.SetDefault("storage", StorageMongo)
	v.SetDefault("mongo_uri", "mongodb://localhost:27017")
	v.SetDefault("mongo_database", "shorts_scraper")
	v.SetDefault("download_root", "downloads")
	v.SetDefault("ytdlp_binary", "yt-dlp")
	v.SetDefault("drive_token_file", "")
	v.SetDefault("enable_scheduler", true)
	v.SetDefault("log_level", "info")
	v.SetDefault("scraper.engine", EngineStealth)
	v.SetDefault("scraper.headless", true)
	v.SetDefault("scraper.locale", "vi-VN")
	v.SetDefault("scraper.timezone", "Asia/Ho_Chi_Minh")
	v.SetDefault("scraper.proxy", "")
	v.SetDefault("scraper.navigation_timeout", 60*time.Second)
}

// Load reads configuration from the given file (optional) and SHORTS_*
// environment variables, then validates it.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("SHORTS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the loaded configuration for values no component can work
// with.
func (c Config) Validate() error {
	switch c.Scraper.Engine {
	case EngineStealth, EngineStandard:
	default:
		return fmt.Errorf("invalid scraper.engine %q: must be %q or %q", c.Scraper.Engine, EngineStealth, EngineStandard)
	}

	switch c.Storage {
	case StorageMongo, StorageMemory:
	default:
		return fmt.Errorf("invalid storage %q: must be %q or %q", c.Storage, StorageMongo, StorageMemory)
	}

	if c.Storage == StorageMongo && c.MongoURI == "" {
		return fmt.Errorf("mongo_uri is required when storage is %q", StorageMongo)
	}
	if c.DownloadRoot == "" {
		return fmt.Errorf("download_root cannot be empty")
	}
	if c.YtDlpBinary == "" {
		return fmt.Errorf("ytdlp_binary cannot be empty")
	}
	if c.Scraper.NavigationTimeout <= 0 {
		return fmt.Errorf("scraper.navigation_timeout must be positive")
	}
	return nil
}
