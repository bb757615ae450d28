package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/eikowagenknecht/lootscraper-sub000/internal/adapter"
)

// BuildRegistry constructs the adapter registry from the enabled adapter
// sections of the configuration.
func BuildRegistry(config *Config, logger *slog.Logger) (*adapter.Registry, error) {
	registry := adapter.NewRegistry()

	for _, ac := range config.Adapters {
		if !ac.Enabled {
			continue
		}

		a, err := buildAdapter(ac, logger)
		if err != nil {
			return nil, err
		}
		if err := registry.Register(a); err != nil {
			return nil, err
		}
	}

	return registry, nil
}

func buildAdapter(ac AdapterConfig, logger *slog.Logger) (adapter.Adapter, error) {
	switch ac.Type {
	case "feed":
		return adapter.NewFeedAdapter(adapter.FeedAdapterConfig{
			Name:      ac.Name,
			FeedURL:   ac.Settings.FeedURL,
			Schedules: ac.Schedule,
			Source:    ac.Source,
			Type:      ac.Offers,
			Duration:  ac.Duration,
			Platform:  ac.Platform,
			MaxItems:  ac.Settings.MaxItems,
		}, logger)
	case "web":
		var pageTimeout time.Duration
		if ac.Settings.PageTimeout != "" {
			var err error
			pageTimeout, err = time.ParseDuration(ac.Settings.PageTimeout)
			if err != nil {
				return nil, fmt.Errorf("adapter %s: invalid page_timeout: %w", ac.Name, err)
			}
		}
		return adapter.NewWebAdapter(adapter.WebAdapterConfig{
			Name:             ac.Name,
			URL:              ac.Settings.URL,
			Schedules:        ac.Schedule,
			Source:           ac.Source,
			Type:             ac.Offers,
			Duration:         ac.Duration,
			Platform:         ac.Platform,
			WaitSelector:     ac.Settings.WaitSelector,
			ItemSelector:     ac.Settings.ItemSelector,
			TitleSelector:    ac.Settings.TitleSelector,
			URLSelector:      ac.Settings.URLSelector,
			ImageSelector:    ac.Settings.ImageSelector,
			ValidToSelector:  ac.Settings.ValidToSelector,
			ValidToAttribute: ac.Settings.ValidToAttribute,
			ScrollToLoad:     ac.Settings.ScrollToLoad,
			PageTimeout:      pageTimeout,
			BaseURL:          ac.Settings.BaseURL,
		}, logger)
	default:
		return nil, fmt.Errorf("adapter %s: unknown type %q", ac.Name, ac.Type)
	}
}
