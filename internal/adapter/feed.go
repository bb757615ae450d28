package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/eikowagenknecht/lootscraper-sub000/internal/browser"
	"github.com/eikowagenknecht/lootscraper-sub000/internal/model"
)

// FeedAdapter scrapes sources that publish their giveaways as an RSS/Atom
// deal feed. It never needs the browser session.
type FeedAdapter struct {
	name      string
	feedURL   string
	schedules []string
	source    model.Source
	offerType model.OfferType
	duration  model.Duration
	platform  model.Platform
	maxItems  int

	parser *gofeed.Parser
	logger *slog.Logger
}

type FeedAdapterConfig struct {
	Name      string
	FeedURL   string
	Schedules []string
	Source    model.Source
	Type      model.OfferType
	Duration  model.Duration
	Platform  model.Platform
	MaxItems  int
}

func NewFeedAdapter(cfg FeedAdapterConfig, logger *slog.Logger) (*FeedAdapter, error) {
	if cfg.FeedURL == "" {
		return nil, fmt.Errorf("adapter %s: feed url is required", cfg.Name)
	}
	if len(cfg.Schedules) == 0 {
		return nil, fmt.Errorf("adapter %s: at least one schedule is required", cfg.Name)
	}
	if cfg.MaxItems <= 0 {
		cfg.MaxItems = 50
	}

	return &FeedAdapter{
		name:      cfg.Name,
		feedURL:   cfg.FeedURL,
		schedules: cfg.Schedules,
		source:    cfg.Source,
		offerType: cfg.Type,
		duration:  cfg.Duration,
		platform:  cfg.Platform,
		maxItems:  cfg.MaxItems,
		parser:    gofeed.NewParser(),
		logger:    logger,
	}, nil
}

func (a *FeedAdapter) Name() string {
	return a.name
}

func (a *FeedAdapter) Schedule() []string {
	return a.schedules
}

func (a *FeedAdapter) Scrape(ctx context.Context, _ *browser.Session) ([]model.CandidateOffer, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	feed, err := a.parser.ParseURLWithContext(a.feedURL, fetchCtx)
	if err != nil {
		// A dead feed endpoint degrades to an empty batch; the browser
		// session is unaffected.
		a.logger.Warn("feed fetch failed", "adapter", a.name, "url", a.feedURL, "error", err)
		return nil, nil
	}

	items := feed.Items
	if len(items) > a.maxItems {
		items = items[:a.maxItems]
	}

	candidates := make([]model.CandidateOffer, 0, len(items))
	for _, item := range items {
		if item.Title == "" {
			continue
		}

		c := model.CandidateOffer{
			Source:   a.source,
			Type:     a.offerType,
			Duration: a.duration,
			Platform: a.platform,
			Title:    item.Title,
			URL:      item.Link,
		}
		if item.Image != nil {
			c.ImageURL = item.Image.URL
		}
		if item.PublishedParsed != nil {
			from := item.PublishedParsed.UTC()
			c.ValidFrom = &from
		}

		snapshot, err := json.Marshal(map[string]string{
			"title":     item.Title,
			"link":      item.Link,
			"published": item.Published,
		})
		if err == nil {
			c.RawSnapshot = string(snapshot)
		}

		candidates = append(candidates, c)
	}

	a.logger.Debug("feed adapter scraped", "adapter", a.name, "candidates", len(candidates))
	return candidates, nil
}
