// Package reconcile matches freshly scraped offers against the canonical
// table and decides create / merge / touch. It assumes a single writer: the
// scheduler never runs two adapters at once, and different adapters never
// share an identity partition.
package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/eikowagenknecht/lootscraper-sub000/internal/model"
	"github.com/eikowagenknecht/lootscraper-sub000/internal/storage"
)

// Action is the outcome of reconciling one candidate.
type Action string

const (
	// ActionCreated means no canonical offer matched; a new one was inserted.
	ActionCreated Action = "created"
	// ActionModified means an existing offer gained previously null fields.
	ActionModified Action = "modified"
	// ActionTouched means nothing changed beyond confirming the offer alive.
	ActionTouched Action = "touched"
)

// Result reports what happened to one candidate.
type Result struct {
	ID     int64
	Action Action
}

// Summary aggregates a whole batch. Only created and modified offers are
// eligible for downstream notification; touched means "still alive".
type Summary struct {
	Found    int
	Created  []int64
	Modified []int64
}

type Reconciler struct {
	offers storage.OfferStore
	clock  func() time.Time
	logger *slog.Logger
}

func New(offers storage.OfferStore, logger *slog.Logger) *Reconciler {
	return &Reconciler{offers: offers, clock: time.Now, logger: logger}
}

// WithClock overrides the time source, for tests.
func (r *Reconciler) WithClock(clock func() time.Time) *Reconciler {
	r.clock = clock
	return r
}

// Reconcile matches one categorized candidate against the canonical table.
func (r *Reconciler) Reconcile(ctx context.Context, c model.CategorizedOffer) (Result, error) {
	now := r.clock()

	key := model.OfferKey{
		Source:   c.Source,
		Type:     c.Type,
		Duration: c.Duration,
		Platform: c.Platform,
		Title:    c.Title,
	}

	matches, err := r.offers.FindMatches(ctx, key, c.ValidTo)
	if err != nil {
		return Result{}, fmt.Errorf("find matches: %w", err)
	}

	if len(matches) == 0 {
		return r.create(ctx, c, now)
	}

	match := r.resolve(matches, c.ValidTo)

	patch := buildPatch(&match, c)
	if patch.Empty() {
		if err := r.offers.Touch(ctx, match.ID, now); err != nil {
			return Result{}, fmt.Errorf("touch offer %d: %w", match.ID, err)
		}
		return Result{ID: match.ID, Action: ActionTouched}, nil
	}

	if err := r.offers.Fill(ctx, match.ID, patch, now); err != nil {
		return Result{}, fmt.Errorf("fill offer %d: %w", match.ID, err)
	}
	return Result{ID: match.ID, Action: ActionModified}, nil
}

// ReconcileBatch reconciles candidates one at a time in batch order. A
// persistence failure on one candidate is logged and skipped; the run
// continues and the summary counts only what succeeded.
func (r *Reconciler) ReconcileBatch(ctx context.Context, batch []model.CategorizedOffer) Summary {
	summary := Summary{Found: len(batch)}

	for _, c := range batch {
		res, err := r.Reconcile(ctx, c)
		if err != nil {
			r.logger.Error("reconciliation failed, skipping candidate",
				"source", c.Source, "title", c.Title, "error", err)
			continue
		}
		switch res.Action {
		case ActionCreated:
			summary.Created = append(summary.Created, res.ID)
		case ActionModified:
			summary.Modified = append(summary.Modified, res.ID)
		}
	}

	return summary
}

func (r *Reconciler) create(ctx context.Context, c model.CategorizedOffer, now time.Time) (Result, error) {
	offer := &model.Offer{
		Source:           c.Source,
		Type:             c.Type,
		Duration:         c.Duration,
		Platform:         c.Platform,
		Title:            c.Title,
		ProbableGameName: c.ProbableGameName,
		SeenFirst:        now,
		SeenLast:         now,
		ValidFrom:        c.ValidFrom,
		ValidTo:          c.ValidTo,
		RawSnapshot:      c.RawSnapshot,
		Category:         c.Category,
	}
	if c.URL != "" {
		offer.URL = &c.URL
	}
	if c.ImageURL != "" {
		offer.ImageURL = &c.ImageURL
	}

	id, err := r.offers.Create(ctx, offer)
	if err != nil {
		return Result{}, fmt.Errorf("create offer: %w", err)
	}
	return Result{ID: id, Action: ActionCreated}, nil
}

// resolve picks one record when the match query was ambiguous: an exact
// valid_to match wins, otherwise the most recently created record does.
// Ambiguity is a recoverable approximation, not an error.
func (r *Reconciler) resolve(matches []model.Offer, validTo *time.Time) model.Offer {
	if len(matches) == 1 {
		return matches[0]
	}

	if validTo != nil {
		for _, m := range matches {
			if m.ValidTo != nil && m.ValidTo.Equal(*validTo) {
				return m
			}
		}
	}

	newest := matches[0]
	for _, m := range matches[1:] {
		if m.ID > newest.ID {
			newest = m
		}
	}
	r.logger.Warn("ambiguous offer match, using most recent record",
		"title", newest.Title, "source", newest.Source,
		"matches", len(matches), "picked_id", newest.ID)
	return newest
}

// buildPatch collects the fields the new observation can fill on the
// persisted record. Only currently null fields qualify; non-null fields are
// never overwritten.
func buildPatch(existing *model.Offer, c model.CategorizedOffer) storage.OfferPatch {
	var patch storage.OfferPatch

	if existing.ValidFrom == nil && c.ValidFrom != nil {
		patch.ValidFrom = c.ValidFrom
	}
	if existing.ValidTo == nil && c.ValidTo != nil {
		patch.ValidTo = c.ValidTo
	}
	if existing.URL == nil && c.URL != "" {
		patch.URL = &c.URL
	}
	if existing.ImageURL == nil && c.ImageURL != "" {
		patch.ImageURL = &c.ImageURL
	}

	return patch
}
