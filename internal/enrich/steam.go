// Package enrich looks up game metadata for newly recorded offers. It is a
// fire-and-forget collaborator: enrichment failures are logged, never
// retried by the core, and only the enrichment id field on the offer is
// ever written.
package enrich

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/eikowagenknecht/lootscraper-sub000/internal/cache"
	"github.com/eikowagenknecht/lootscraper-sub000/internal/storage"
)

const searchURL = "https://store.steampowered.com/search/"

// SteamEnricher resolves an offer's probable game name to a Steam app id
// and records it on the offer. Lookups are cached so repeated giveaways of
// the same game don't re-hit the store.
type SteamEnricher struct {
	offers storage.OfferStore
	client *http.Client
	cache  *cache.Cache[int64]
	logger *slog.Logger
}

func NewSteamEnricher(offers storage.OfferStore, logger *slog.Logger) *SteamEnricher {
	return &SteamEnricher{
		offers: offers,
		client: &http.Client{Timeout: 30 * time.Second},
		cache:  cache.New[int64](24 * time.Hour),
		logger: logger,
	}
}

// Enrich looks up metadata for one offer id.
func (e *SteamEnricher) Enrich(ctx context.Context, offerID int64) error {
	offer, err := e.offers.Get(ctx, offerID)
	if err != nil {
		return fmt.Errorf("load offer %d: %w", offerID, err)
	}
	if offer.EnrichmentID != nil {
		return nil
	}

	name := offer.ProbableGameName
	if name == "" {
		name = offer.Title
	}

	appID, ok := e.cache.Get(name)
	if !ok {
		appID, err = e.searchAppID(ctx, name)
		if err != nil {
			return fmt.Errorf("steam search %q: %w", name, err)
		}
		e.cache.Set(name, appID)
	}

	if appID == 0 {
		e.logger.Debug("no steam match for offer", "offer_id", offerID, "game", name)
		return nil
	}

	if err := e.offers.SetEnrichmentID(ctx, offerID, appID); err != nil {
		return fmt.Errorf("store enrichment id: %w", err)
	}

	e.logger.Debug("offer enriched", "offer_id", offerID, "game", name, "app_id", appID)
	return nil
}

// searchAppID returns the app id of the best search hit, 0 when the store
// knows nothing under that name.
func (e *SteamEnricher) searchAppID(ctx context.Context, name string) (int64, error) {
	query := url.Values{}
	query.Set("term", name)
	query.Set("category1", "998") // games only

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL+"?"+query.Encode(), nil)
	if err != nil {
		return 0, err
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("unexpected status %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("parse search results: %w", err)
	}

	var appID int64
	doc.Find("a.search_result_row").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		raw, ok := sel.Attr("data-ds-appid")
		if !ok {
			return true
		}
		// Bundles list several ids; the first one is the main game.
		raw, _, _ = strings.Cut(raw, ",")
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return true
		}
		appID = id
		return false
	})

	return appID, nil
}
