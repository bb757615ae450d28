// Package config loads and validates the TOML configuration file.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/eikowagenknecht/lootscraper-sub000/internal/model"
)

type Config struct {
	Scheduler SchedulerConfig `toml:"scheduler"`
	Browser   BrowserConfig   `toml:"browser"`
	Storage   StorageConfig   `toml:"storage"`
	Feeds     FeedsConfig     `toml:"feeds"`
	Upload    UploadConfig    `toml:"upload"`
	Telegram  TelegramConfig  `toml:"telegram"`
	Discord   DiscordConfig   `toml:"discord"`
	Redis     RedisConfig     `toml:"redis"`
	Enrich    EnrichConfig    `toml:"enrichment"`
	Adapters  []AdapterConfig `toml:"adapters"`
}

type SchedulerConfig struct {
	Tick       string `toml:"tick"`
	RunTimeout string `toml:"run_timeout"`
}

type BrowserConfig struct {
	Headless           bool   `toml:"headless"`
	UserAgent          string `toml:"user_agent"`
	IdleTimeout        string `toml:"idle_timeout"`
	RestartAfterRuns   int    `toml:"restart_after_runs"`
	RestartAfterUptime string `toml:"restart_after_uptime"`
}

type StorageConfig struct {
	Path string `toml:"path"`
}

type FeedsConfig struct {
	Enabled    bool   `toml:"enabled"`
	Dir        string `toml:"dir"`
	BaseURL    string `toml:"base_url"`
	Title      string `toml:"title"`
	AuthorName string `toml:"author_name"`
	AuthorMail string `toml:"author_mail"`
	MaxEntries int    `toml:"max_entries"`
}

type UploadConfig struct {
	Enabled  bool   `toml:"enabled"`
	Endpoint string `toml:"endpoint"`
	Username string `toml:"username"`
	Password string `toml:"password"`
}

type TelegramConfig struct {
	Enabled bool   `toml:"enabled"`
	Token   string `toml:"token"`
	ChatID  int64  `toml:"chat_id"`
}

type DiscordConfig struct {
	Enabled   bool   `toml:"enabled"`
	Token     string `toml:"token"`
	ChannelID string `toml:"channel_id"`
}

type RedisConfig struct {
	Enabled  bool   `toml:"enabled"`
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
}

type EnrichConfig struct {
	Enabled bool `toml:"enabled"`
}

type AdapterConfig struct {
	Name     string          `toml:"name"`
	Type     string          `toml:"type"` // "feed" or "web"
	Enabled  bool            `toml:"enabled"`
	Schedule []string        `toml:"schedule"`
	Source   model.Source    `toml:"source"`
	Offers   model.OfferType `toml:"offer_type"`
	Duration model.Duration  `toml:"duration"`
	Platform model.Platform  `toml:"platform"`
	Settings AdapterSettings `toml:"settings"`
}

type AdapterSettings struct {
	URL              string `toml:"url"`
	FeedURL          string `toml:"feed_url"`
	BaseURL          string `toml:"base_url"`
	WaitSelector     string `toml:"wait_selector"`
	ItemSelector     string `toml:"item_selector"`
	TitleSelector    string `toml:"title_selector"`
	URLSelector      string `toml:"url_selector"`
	ImageSelector    string `toml:"image_selector"`
	ValidToSelector  string `toml:"valid_to_selector"`
	ValidToAttribute string `toml:"valid_to_attribute"`
	ScrollToLoad     bool   `toml:"scroll_to_load"`
	MaxItems         int    `toml:"max_items"`
	PageTimeout      string `toml:"page_timeout"`
}

// Load reads, defaults and validates the configuration at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &config, nil
}

func validate(config *Config) error {
	if config.Scheduler.Tick == "" {
		config.Scheduler.Tick = "5s"
	}
	if config.Scheduler.RunTimeout == "" {
		config.Scheduler.RunTimeout = "10m"
	}
	if config.Browser.IdleTimeout == "" {
		config.Browser.IdleTimeout = "3m"
	}
	if config.Browser.RestartAfterUptime == "" {
		config.Browser.RestartAfterUptime = "6h"
	}

	for _, field := range []struct {
		name  string
		value string
	}{
		{"scheduler.tick", config.Scheduler.Tick},
		{"scheduler.run_timeout", config.Scheduler.RunTimeout},
		{"browser.idle_timeout", config.Browser.IdleTimeout},
		{"browser.restart_after_uptime", config.Browser.RestartAfterUptime},
	} {
		if _, err := time.ParseDuration(field.value); err != nil {
			return fmt.Errorf("invalid %s: %w", field.name, err)
		}
	}

	if config.Storage.Path == "" {
		config.Storage.Path = "./lootscraper.db"
	}
	if config.Feeds.Enabled && config.Feeds.Dir == "" {
		config.Feeds.Dir = "./feeds"
	}

	enabled := 0
	seen := make(map[string]bool)
	for i := range config.Adapters {
		a := &config.Adapters[i]
		if a.Name == "" {
			return fmt.Errorf("adapter %d: name is required", i)
		}
		if seen[a.Name] {
			return fmt.Errorf("adapter %s: duplicate name", a.Name)
		}
		seen[a.Name] = true

		if !a.Enabled {
			continue
		}
		enabled++

		switch a.Type {
		case "feed", "web":
		default:
			return fmt.Errorf("adapter %s: invalid type %q (must be 'feed' or 'web')", a.Name, a.Type)
		}
		if len(a.Schedule) == 0 {
			return fmt.Errorf("adapter %s: at least one schedule is required", a.Name)
		}
	}
	if enabled == 0 {
		return fmt.Errorf("at least one adapter must be enabled")
	}

	if config.Telegram.Enabled && config.Telegram.Token == "" {
		return fmt.Errorf("telegram.token is required when telegram is enabled")
	}
	if config.Discord.Enabled && (config.Discord.Token == "" || config.Discord.ChannelID == "") {
		return fmt.Errorf("discord.token and discord.channel_id are required when discord is enabled")
	}
	if config.Upload.Enabled && config.Upload.Endpoint == "" {
		return fmt.Errorf("upload.endpoint is required when upload is enabled")
	}
	if config.Redis.Enabled && config.Redis.Addr == "" {
		return fmt.Errorf("redis.addr is required when redis is enabled")
	}

	return nil
}

// Duration returns a validated duration field. Call after Load.
func Duration(s string) time.Duration {
	d, _ := time.ParseDuration(s)
	return d
}
