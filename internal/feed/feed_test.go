package feed

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/eikowagenknecht/lootscraper-sub000/internal/model"
	"github.com/eikowagenknecht/lootscraper-sub000/internal/storage/sqlite"
)

func newTestWriter(t *testing.T, now time.Time) (*Writer, *sqlite.Storage, string) {
	t.Helper()

	store, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = store.Close(context.Background()) })

	dir := t.TempDir()
	w := NewWriter(Config{
		Dir:        dir,
		BaseURL:    "https://example.com/feeds",
		Title:      "Free Games",
		AuthorName: "Test",
		AuthorMail: "test@example.com",
	}, store.Offers(), slog.New(slog.NewTextHandler(io.Discard, nil))).
		WithClock(func() time.Time { return now })

	return w, store, dir
}

func insertOffer(t *testing.T, store *sqlite.Storage, title string, source model.Source, seen time.Time) int64 {
	t.Helper()
	url := "https://example.com/" + strings.ToLower(title)
	id, err := store.Offers().Create(context.Background(), &model.Offer{
		Source:           source,
		Type:             model.TypeGame,
		Duration:         model.DurationClaimable,
		Platform:         model.PlatformPC,
		Title:            title,
		ProbableGameName: title,
		SeenFirst:        seen,
		SeenLast:         seen,
		URL:              &url,
		Category:         model.CategoryValid,
	})
	if err != nil {
		t.Fatal(err)
	}
	return id
}

func TestRegenerateWritesCombinedAndGroupFeeds(t *testing.T) {
	now := time.Date(2023, 5, 1, 12, 0, 0, 0, time.UTC)
	w, store, dir := newTestWriter(t, now)

	insertOffer(t, store, "Celeste", model.SourceEpic, now.Add(-time.Hour))
	insertOffer(t, store, "Hades", model.SourceGOG, now.Add(-2*time.Hour))

	if err := w.Regenerate(context.Background()); err != nil {
		t.Fatal(err)
	}

	for _, name := range []string{
		"all.xml", "all.atom",
		"epic_pc_game.xml", "epic_pc_game.atom",
		"gog_pc_game.xml", "gog_pc_game.atom",
	} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("expected feed file %s: %v", name, err)
		}
	}

	// No temp files left behind.
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".tmp") {
			t.Errorf("leftover temp file %s", e.Name())
		}
	}
}

func TestRegenerateNewestFirstAndCapped(t *testing.T) {
	now := time.Date(2023, 5, 1, 12, 0, 0, 0, time.UTC)
	w, store, dir := newTestWriter(t, now)
	w.cfg.MaxEntries = 2

	insertOffer(t, store, "Oldest", model.SourceEpic, now.Add(-3*time.Hour))
	insertOffer(t, store, "Middle", model.SourceEpic, now.Add(-2*time.Hour))
	insertOffer(t, store, "Newest", model.SourceEpic, now.Add(-time.Hour))

	if err := w.Regenerate(context.Background()); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "all.xml"))
	if err != nil {
		t.Fatal(err)
	}
	body := string(data)

	if !strings.Contains(body, "Newest") || !strings.Contains(body, "Middle") {
		t.Error("capped feed missing the two newest offers")
	}
	if strings.Contains(body, "Oldest") {
		t.Error("capped feed still contains the oldest offer")
	}
	if strings.Index(body, "Newest") > strings.Index(body, "Middle") {
		t.Error("feed entries not sorted newest first")
	}
}

func TestItemIDStableAcrossRegenerations(t *testing.T) {
	now := time.Date(2023, 5, 1, 12, 0, 0, 0, time.UTC)
	w, store, dir := newTestWriter(t, now)

	insertOffer(t, store, "Celeste", model.SourceEpic, now.Add(-time.Hour))

	if err := w.Regenerate(context.Background()); err != nil {
		t.Fatal(err)
	}
	first, err := os.ReadFile(filepath.Join(dir, "all.atom"))
	if err != nil {
		t.Fatal(err)
	}

	// A later regeneration must keep the same entry id so feed readers do
	// not re-surface the entry as new.
	w.clock = func() time.Time { return now.Add(time.Hour) }
	if err := w.Regenerate(context.Background()); err != nil {
		t.Fatal(err)
	}
	second, err := os.ReadFile(filepath.Join(dir, "all.atom"))
	if err != nil {
		t.Fatal(err)
	}

	const id = "https://example.com/feeds/offer/1"
	if !strings.Contains(string(first), id) || !strings.Contains(string(second), id) {
		t.Errorf("entry id %s missing from one of the regenerations", id)
	}
}

func TestItemEscapesMarkup(t *testing.T) {
	now := time.Date(2023, 5, 1, 12, 0, 0, 0, time.UTC)
	w, store, dir := newTestWriter(t, now)

	insertOffer(t, store, "<script>alert(1)</script>Celeste", model.SourceEpic, now.Add(-time.Hour))

	if err := w.Regenerate(context.Background()); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "all.xml"))
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "<script>") {
		t.Error("script tag survived sanitization")
	}
}
