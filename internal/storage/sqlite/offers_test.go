package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/eikowagenknecht/lootscraper-sub000/internal/model"
	"github.com/eikowagenknecht/lootscraper-sub000/internal/storage"
)

func strPtr(s string) *string { return &s }

func timePtr(t time.Time) *time.Time { return &t }

func baseOffer(title string, validTo *time.Time) *model.Offer {
	seen := time.Date(2023, 5, 1, 12, 0, 0, 0, time.UTC)
	return &model.Offer{
		Source:           model.SourceEpic,
		Type:             model.TypeGame,
		Duration:         model.DurationClaimable,
		Platform:         model.PlatformPC,
		Title:            title,
		ProbableGameName: title,
		SeenFirst:        seen,
		SeenLast:         seen,
		ValidTo:          validTo,
		Category:         model.CategoryValid,
	}
}

func baseKey(title string) model.OfferKey {
	return model.OfferKey{
		Source:   model.SourceEpic,
		Type:     model.TypeGame,
		Duration: model.DurationClaimable,
		Platform: model.PlatformPC,
		Title:    title,
	}
}

func TestFindMatchesExactIdentity(t *testing.T) {
	ctx := context.Background()
	offers := newTestStorage(t).Offers()

	if _, err := offers.Create(ctx, baseOffer("Celeste", nil)); err != nil {
		t.Fatal(err)
	}

	matches, err := offers.FindMatches(ctx, baseKey("Celeste"), nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 1 {
		t.Fatalf("got %d matches, want 1", len(matches))
	}

	otherPlatform := baseKey("Celeste")
	otherPlatform.Platform = model.PlatformAndroid
	matches, err = offers.FindMatches(ctx, otherPlatform, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 0 {
		t.Errorf("platform is part of the identity; got %d matches, want 0", len(matches))
	}
}

func TestFindMatchesFuzzyDateWindow(t *testing.T) {
	ctx := context.Background()
	offers := newTestStorage(t).Offers()

	validTo := time.Date(2023, 5, 10, 0, 0, 0, 0, time.UTC)
	if _, err := offers.Create(ctx, baseOffer("Celeste", &validTo)); err != nil {
		t.Fatal(err)
	}

	// 23 hours apart is inside the ±1 day tolerance.
	within := validTo.Add(23 * time.Hour)
	matches, err := offers.FindMatches(ctx, baseKey("Celeste"), &within)
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 1 {
		t.Errorf("23h offset: got %d matches, want 1", len(matches))
	}

	// 25 hours apart is outside and must not match.
	outside := validTo.Add(25 * time.Hour)
	matches, err = offers.FindMatches(ctx, baseKey("Celeste"), &outside)
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 0 {
		t.Errorf("25h offset: got %d matches, want 0", len(matches))
	}
}

func TestFindMatchesNullValidToAlwaysMatches(t *testing.T) {
	ctx := context.Background()
	offers := newTestStorage(t).Offers()

	if _, err := offers.Create(ctx, baseOffer("Celeste", nil)); err != nil {
		t.Fatal(err)
	}

	// A source that initially omitted the end date and later added one is
	// still the same offer.
	stated := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	matches, err := offers.FindMatches(ctx, baseKey("Celeste"), &stated)
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 1 {
		t.Errorf("got %d matches, want 1 (null valid_to arm)", len(matches))
	}
}

func TestFillOnlySetsNullFields(t *testing.T) {
	ctx := context.Background()
	offers := newTestStorage(t).Offers()

	offer := baseOffer("Celeste", nil)
	offer.URL = strPtr("https://example.com/original")
	id, err := offers.Create(ctx, offer)
	if err != nil {
		t.Fatal(err)
	}

	seenLast := time.Date(2023, 5, 2, 12, 0, 0, 0, time.UTC)
	validTo := time.Date(2023, 5, 10, 0, 0, 0, 0, time.UTC)
	patch := storage.OfferPatch{
		ValidTo:  timePtr(validTo),
		URL:      strPtr("https://example.com/other"),
		ImageURL: strPtr("https://example.com/img.png"),
	}
	if err := offers.Fill(ctx, id, patch, seenLast); err != nil {
		t.Fatal(err)
	}

	got, err := offers.Get(ctx, id)
	if err != nil {
		t.Fatal(err)
	}

	if diff := cmp.Diff("https://example.com/original", *got.URL); diff != "" {
		t.Errorf("url was overwritten (-want +got):\n%s", diff)
	}
	if got.ImageURL == nil || *got.ImageURL != "https://example.com/img.png" {
		t.Errorf("image url not filled: %v", got.ImageURL)
	}
	if got.ValidTo == nil || !got.ValidTo.Equal(validTo) {
		t.Errorf("valid to not filled: %v", got.ValidTo)
	}
	if !got.SeenLast.Equal(seenLast) {
		t.Errorf("seen last = %s, want %s", got.SeenLast, seenLast)
	}
}

func TestTouchNeverDecreasesSeenLast(t *testing.T) {
	ctx := context.Background()
	offers := newTestStorage(t).Offers()

	offer := baseOffer("Celeste", nil)
	id, err := offers.Create(ctx, offer)
	if err != nil {
		t.Fatal(err)
	}

	earlier := offer.SeenLast.Add(-time.Hour)
	if err := offers.Touch(ctx, id, earlier); err != nil {
		t.Fatal(err)
	}

	got, err := offers.Get(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if !got.SeenLast.Equal(offer.SeenLast) {
		t.Errorf("seen last moved backwards: %s", got.SeenLast)
	}
}

func TestSetEnrichmentID(t *testing.T) {
	ctx := context.Background()
	offers := newTestStorage(t).Offers()

	id, err := offers.Create(ctx, baseOffer("Celeste", nil))
	if err != nil {
		t.Fatal(err)
	}

	if err := offers.SetEnrichmentID(ctx, id, 504230); err != nil {
		t.Fatal(err)
	}

	got, err := offers.Get(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if got.EnrichmentID == nil || *got.EnrichmentID != 504230 {
		t.Errorf("enrichment id = %v, want 504230", got.EnrichmentID)
	}
}
