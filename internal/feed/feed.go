// Package feed regenerates RSS and Atom documents from the canonical offer
// table. Regeneration is idempotent by construction: it always renders full
// state, it never diffs.
package feed

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gorilla/feeds"
	"github.com/microcosm-cc/bluemonday"

	"github.com/eikowagenknecht/lootscraper-sub000/internal/model"
	"github.com/eikowagenknecht/lootscraper-sub000/internal/storage"
	"github.com/eikowagenknecht/lootscraper-sub000/internal/validity"
)

type Config struct {
	Dir        string
	BaseURL    string
	Title      string
	AuthorName string
	AuthorMail string
	MaxEntries int
}

// Writer renders the canonical offers into feed files on disk.
type Writer struct {
	cfg       Config
	offers    storage.OfferStore
	sanitizer *bluemonday.Policy
	clock     func() time.Time
	logger    *slog.Logger
}

func NewWriter(cfg Config, offers storage.OfferStore, logger *slog.Logger) *Writer {
	if cfg.Title == "" {
		cfg.Title = "Free Games and Loot"
	}
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = 100
	}
	return &Writer{
		cfg:       cfg,
		offers:    offers,
		sanitizer: bluemonday.StrictPolicy(),
		clock:     time.Now,
		logger:    logger,
	}
}

// WithClock overrides the time source, for tests.
func (w *Writer) WithClock(clock func() time.Time) *Writer {
	w.clock = clock
	return w
}

// Regenerate rewrites the combined feed plus one feed per
// source/type/platform group, from full canonical state.
func (w *Writer) Regenerate(ctx context.Context) error {
	offers, err := w.offers.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("load offers: %w", err)
	}

	if err := os.MkdirAll(w.cfg.Dir, 0o755); err != nil {
		return fmt.Errorf("create feed dir: %w", err)
	}

	if err := w.writeFeed(ctx, "all", w.cfg.Title, offers); err != nil {
		return err
	}

	groups := make(map[string][]model.Offer)
	for _, o := range offers {
		key := fmt.Sprintf("%s_%s_%s", o.Source, o.Platform, o.Type)
		groups[key] = append(groups[key], o)
	}

	for key, group := range groups {
		title := fmt.Sprintf("%s (%s)", w.cfg.Title, strings.ReplaceAll(key, "_", " "))
		if err := w.writeFeed(ctx, key, title, group); err != nil {
			return err
		}
	}

	w.logger.Info("feeds regenerated", "offers", len(offers), "groups", len(groups))
	return nil
}

func (w *Writer) writeFeed(ctx context.Context, slug, title string, offers []model.Offer) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	now := w.clock()

	sort.Slice(offers, func(i, j int) bool {
		return offers[i].SeenFirst.After(offers[j].SeenFirst)
	})
	if len(offers) > w.cfg.MaxEntries {
		offers = offers[:w.cfg.MaxEntries]
	}

	feed := &feeds.Feed{
		Title:   title,
		Link:    &feeds.Link{Href: w.cfg.BaseURL + "/" + slug + ".xml"},
		Author:  &feeds.Author{Name: w.cfg.AuthorName, Email: w.cfg.AuthorMail},
		Updated: now,
	}

	for _, o := range offers {
		feed.Items = append(feed.Items, w.item(&o, now))
	}

	rss, err := feed.ToRss()
	if err != nil {
		return fmt.Errorf("render rss %s: %w", slug, err)
	}
	if err := writeFileAtomic(filepath.Join(w.cfg.Dir, slug+".xml"), []byte(rss)); err != nil {
		return err
	}

	atom, err := feed.ToAtom()
	if err != nil {
		return fmt.Errorf("render atom %s: %w", slug, err)
	}
	return writeFileAtomic(filepath.Join(w.cfg.Dir, slug+".atom"), []byte(atom))
}

func (w *Writer) item(o *model.Offer, now time.Time) *feeds.Item {
	title := w.sanitizer.Sanitize(o.Title)

	var b strings.Builder
	fmt.Fprintf(&b, "<p>%s is free on %s.</p>", html.EscapeString(title), html.EscapeString(string(o.Source)))

	realValidTo := validity.RealValidTo(o.SeenLast, o.ValidTo, now)
	switch {
	case o.Duration == model.DurationAlways:
		b.WriteString("<p>This offer has no end date.</p>")
	case realValidTo == nil:
		b.WriteString("<p>The offer end date is unknown.</p>")
	case realValidTo.After(now):
		fmt.Fprintf(&b, "<p>Offer valid until %s.</p>", realValidTo.Format("2006-01-02 15:04 MST"))
	default:
		fmt.Fprintf(&b, "<p>This offer ended around %s.</p>", realValidTo.Format("2006-01-02 15:04 MST"))
	}

	item := &feeds.Item{
		// The id must stay stable across regenerations so readers don't
		// re-surface old entries.
		Id:      fmt.Sprintf("%s/offer/%d", w.cfg.BaseURL, o.ID),
		Title:   fmt.Sprintf("%s (%s) - %s", strings.ToUpper(string(o.Source)), o.Platform, title),
		Content: b.String(),

		Created: o.SeenFirst,
		Updated: o.SeenLast,
	}
	if o.URL != nil {
		item.Link = &feeds.Link{Href: *o.URL}
	} else {
		item.Link = &feeds.Link{Href: w.cfg.BaseURL}
	}
	item.Description = item.Content
	return item
}

func writeFileAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}
