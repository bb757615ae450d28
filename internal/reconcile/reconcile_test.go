package reconcile

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/eikowagenknecht/lootscraper-sub000/internal/model"
	"github.com/eikowagenknecht/lootscraper-sub000/internal/storage/sqlite"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestReconciler(t *testing.T, now time.Time) *Reconciler {
	t.Helper()
	store, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = store.Close(context.Background()) })
	return New(store.Offers(), discardLogger()).WithClock(func() time.Time { return now })
}

func categorized(title string) model.CategorizedOffer {
	return model.CategorizedOffer{
		CandidateOffer: model.CandidateOffer{
			Source:   model.SourceEpic,
			Type:     model.TypeGame,
			Duration: model.DurationClaimable,
			Platform: model.PlatformPC,
			Title:    title,
		},
		Category:         model.CategoryValid,
		ProbableGameName: title,
	}
}

func TestReconcileIdempotent(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2023, 5, 1, 12, 0, 0, 0, time.UTC)
	r := newTestReconciler(t, now)

	c := categorized("Celeste")

	first, err := r.Reconcile(ctx, c)
	if err != nil {
		t.Fatal(err)
	}
	if first.Action != ActionCreated {
		t.Fatalf("first action = %s, want created", first.Action)
	}

	for i := 0; i < 3; i++ {
		res, err := r.Reconcile(ctx, c)
		if err != nil {
			t.Fatal(err)
		}
		if res.Action != ActionTouched {
			t.Errorf("repeat %d action = %s, want touched", i, res.Action)
		}
		if res.ID != first.ID {
			t.Errorf("repeat %d id = %d, want %d", i, res.ID, first.ID)
		}
	}
}

func TestReconcileBatchCountsRepeats(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2023, 5, 1, 12, 0, 0, 0, time.UTC)
	r := newTestReconciler(t, now)

	batch := []model.CategorizedOffer{categorized("Celeste"), categorized("Hades")}

	first := r.ReconcileBatch(ctx, batch)
	if len(first.Created) != 2 || len(first.Modified) != 0 {
		t.Fatalf("first pass: created=%d modified=%d, want 2/0", len(first.Created), len(first.Modified))
	}

	second := r.ReconcileBatch(ctx, batch)
	if len(second.Created) != 0 || len(second.Modified) != 0 {
		t.Errorf("second pass: created=%d modified=%d, want 0/0", len(second.Created), len(second.Modified))
	}
	if second.Found != 2 {
		t.Errorf("second pass found = %d, want 2", second.Found)
	}
}

func TestReconcileFillsNullFieldsOnce(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2023, 5, 1, 12, 0, 0, 0, time.UTC)
	store, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close(context.Background()) })
	r := New(store.Offers(), discardLogger()).WithClock(func() time.Time { return now })

	// First observation has no url.
	bare := categorized("Celeste")
	created, err := r.Reconcile(ctx, bare)
	if err != nil {
		t.Fatal(err)
	}

	// Second observation brings one: the offer gains it and counts as
	// modified.
	withURL := categorized("Celeste")
	withURL.URL = "https://example.com/first"
	res, err := r.Reconcile(ctx, withURL)
	if err != nil {
		t.Fatal(err)
	}
	if res.Action != ActionModified {
		t.Fatalf("action = %s, want modified", res.Action)
	}

	// A third observation with a different url must not overwrite.
	otherURL := categorized("Celeste")
	otherURL.URL = "https://example.com/second"
	res, err = r.Reconcile(ctx, otherURL)
	if err != nil {
		t.Fatal(err)
	}
	if res.Action != ActionTouched {
		t.Errorf("action = %s, want touched (nothing fillable)", res.Action)
	}

	offer, err := store.Offers().Get(ctx, created.ID)
	if err != nil {
		t.Fatal(err)
	}
	if offer.URL == nil || *offer.URL != "https://example.com/first" {
		t.Errorf("url = %v, want the first filled value kept", offer.URL)
	}
}

func TestReconcileSeparatesOffersOutsideDateWindow(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2023, 5, 1, 12, 0, 0, 0, time.UTC)
	r := newTestReconciler(t, now)

	week1 := categorized("Celeste")
	v1 := time.Date(2023, 5, 8, 0, 0, 0, 0, time.UTC)
	week1.ValidTo = &v1

	res1, err := r.Reconcile(ctx, week1)
	if err != nil {
		t.Fatal(err)
	}
	if res1.Action != ActionCreated {
		t.Fatalf("action = %s, want created", res1.Action)
	}

	// The same game given away again weeks later is a new offer instance.
	week5 := categorized("Celeste")
	v2 := v1.Add(28 * 24 * time.Hour)
	week5.ValidTo = &v2

	res2, err := r.Reconcile(ctx, week5)
	if err != nil {
		t.Fatal(err)
	}
	if res2.Action != ActionCreated {
		t.Errorf("action = %s, want created for a re-run giveaway", res2.Action)
	}
	if res2.ID == res1.ID {
		t.Error("re-run giveaway merged into the old offer")
	}
}

func TestReconcileAmbiguityPrefersExactValidTo(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2023, 5, 1, 12, 0, 0, 0, time.UTC)
	store, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close(context.Background()) })
	r := New(store.Offers(), discardLogger()).WithClock(func() time.Time { return now })

	exact := time.Date(2023, 5, 8, 0, 0, 0, 0, time.UTC)
	near := exact.Add(12 * time.Hour)

	// Two persisted records both inside the tolerance window. The second is
	// inserted directly; reconciling it would just merge into the first.
	a := categorized("Celeste")
	a.ValidTo = &exact
	resA, err := r.Reconcile(ctx, a)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := store.Offers().Create(ctx, &model.Offer{
		Source:           model.SourceEpic,
		Type:             model.TypeGame,
		Duration:         model.DurationClaimable,
		Platform:         model.PlatformPC,
		Title:            "Celeste",
		ProbableGameName: "Celeste",
		SeenFirst:        now,
		SeenLast:         now,
		ValidTo:          &near,
		Category:         model.CategoryValid,
	}); err != nil {
		t.Fatal(err)
	}

	c := categorized("Celeste")
	c.ValidTo = &exact
	res, err := r.Reconcile(ctx, c)
	if err != nil {
		t.Fatal(err)
	}
	if res.ID != resA.ID {
		t.Errorf("resolved id = %d, want exact valid_to match %d", res.ID, resA.ID)
	}
}

func TestReconcileCreatedOfferTimestamps(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2023, 5, 1, 12, 0, 0, 0, time.UTC)
	store, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close(context.Background()) })
	r := New(store.Offers(), discardLogger()).WithClock(func() time.Time { return now })

	res, err := r.Reconcile(ctx, categorized("Celeste"))
	if err != nil {
		t.Fatal(err)
	}

	offer, err := store.Offers().Get(ctx, res.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !offer.SeenFirst.Equal(now) || !offer.SeenLast.Equal(now) {
		t.Errorf("seenFirst/seenLast = %s/%s, want both %s", offer.SeenFirst, offer.SeenLast, now)
	}
}
