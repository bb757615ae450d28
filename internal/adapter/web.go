package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/eikowagenknecht/lootscraper-sub000/internal/browser"
	"github.com/eikowagenknecht/lootscraper-sub000/internal/model"
)

// WebAdapter scrapes storefront pages that only render their giveaways
// client-side. The page is loaded in the shared browser, then extracted
// with CSS selectors.
type WebAdapter struct {
	cfg    WebAdapterConfig
	logger *slog.Logger
}

type WebAdapterConfig struct {
	Name      string
	URL       string
	Schedules []string
	Source    model.Source
	Type      model.OfferType
	Duration  model.Duration
	Platform  model.Platform

	// Selectors into the rendered page.
	WaitSelector     string // element that signals the page is ready
	ItemSelector     string // one match per offer
	TitleSelector    string
	URLSelector      string // href is taken from this element
	ImageSelector    string // src is taken from this element
	ValidToSelector  string // raw end-date text, optional
	ValidToAttribute string // read this attribute instead of text, optional

	// ScrollToLoad forces a scroll to the page bottom before extraction,
	// for pages that lazy-load their list.
	ScrollToLoad bool

	PageTimeout time.Duration
	BaseURL     string // prefix for relative hrefs
}

func NewWebAdapter(cfg WebAdapterConfig, logger *slog.Logger) (*WebAdapter, error) {
	if cfg.URL == "" || cfg.ItemSelector == "" || cfg.TitleSelector == "" {
		return nil, fmt.Errorf("adapter %s: url, item_selector and title_selector are required", cfg.Name)
	}
	if len(cfg.Schedules) == 0 {
		return nil, fmt.Errorf("adapter %s: at least one schedule is required", cfg.Name)
	}
	if cfg.WaitSelector == "" {
		cfg.WaitSelector = cfg.ItemSelector
	}
	if cfg.PageTimeout <= 0 {
		cfg.PageTimeout = 60 * time.Second
	}

	return &WebAdapter{cfg: cfg, logger: logger}, nil
}

func (a *WebAdapter) Name() string {
	return a.cfg.Name
}

func (a *WebAdapter) Schedule() []string {
	return a.cfg.Schedules
}

func (a *WebAdapter) Scrape(ctx context.Context, sess *browser.Session) ([]model.CandidateOffer, error) {
	html, err := FetchRenderedHTML(ctx, sess, a.cfg.URL, a.cfg.WaitSelector, a.cfg.PageTimeout)
	if err != nil {
		if browser.IsGone(err) {
			return nil, err
		}
		a.logger.Warn("page fetch failed", "adapter", a.cfg.Name, "error", err)
		return nil, nil
	}

	if a.cfg.ScrollToLoad {
		if err := ScrollToBottom(sess, 2*time.Second); err != nil {
			if browser.IsGone(err) {
				return nil, err
			}
			a.logger.Warn("scroll failed, extracting current state", "adapter", a.cfg.Name, "error", err)
		}
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		a.logger.Warn("document parse failed", "adapter", a.cfg.Name, "error", err)
		return nil, nil
	}

	var candidates []model.CandidateOffer
	doc.Find(a.cfg.ItemSelector).Each(func(_ int, sel *goquery.Selection) {
		c, ok := a.extract(sel)
		if !ok {
			return
		}
		candidates = append(candidates, c)
	})

	a.logger.Debug("web adapter scraped", "adapter", a.cfg.Name, "candidates", len(candidates))
	return candidates, nil
}

// extract reads one offer element. Elements missing a title are skipped;
// everything else degrades to empty fields.
func (a *WebAdapter) extract(sel *goquery.Selection) (model.CandidateOffer, bool) {
	title := strings.TrimSpace(sel.Find(a.cfg.TitleSelector).First().Text())
	if title == "" {
		a.logger.Debug("skipping element without title", "adapter", a.cfg.Name)
		return model.CandidateOffer{}, false
	}

	c := model.CandidateOffer{
		Source:   a.cfg.Source,
		Type:     a.cfg.Type,
		Duration: a.cfg.Duration,
		Platform: a.cfg.Platform,
		Title:    title,
	}

	if a.cfg.URLSelector != "" {
		if href, ok := sel.Find(a.cfg.URLSelector).First().Attr("href"); ok {
			c.URL = absoluteURL(a.cfg.BaseURL, href)
		}
	}
	if a.cfg.ImageSelector != "" {
		if src, ok := sel.Find(a.cfg.ImageSelector).First().Attr("src"); ok {
			c.ImageURL = absoluteURL(a.cfg.BaseURL, src)
		}
	}
	if a.cfg.ValidToSelector != "" {
		node := sel.Find(a.cfg.ValidToSelector).First()
		if a.cfg.ValidToAttribute != "" {
			c.StatedValidTo, _ = node.Attr(a.cfg.ValidToAttribute)
		} else {
			c.StatedValidTo = strings.TrimSpace(node.Text())
		}
	}

	rawHTML, err := goquery.OuterHtml(sel)
	if err == nil {
		snapshot, err := json.Marshal(map[string]string{"title": title, "html": rawHTML})
		if err == nil {
			c.RawSnapshot = string(snapshot)
		}
	}

	return c, true
}

func absoluteURL(base, ref string) string {
	if ref == "" || strings.Contains(ref, "://") || base == "" {
		return ref
	}
	return strings.TrimSuffix(base, "/") + "/" + strings.TrimPrefix(ref, "/")
}
