// Package storage defines the persistence interfaces the core operates
// against. The sqlite subpackage is the only implementation; the interfaces
// exist so the scheduler and reconciler can be tested against fakes.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/eikowagenknecht/lootscraper-sub000/internal/model"
)

// ErrNotFound is returned when a lookup matches no record.
var ErrNotFound = errors.New("record not found")

// MatchTolerance is the window around a stated end date within which a
// persisted offer still counts as the same real-world offer instance.
const MatchTolerance = 24 * time.Hour

// OfferPatch carries the fields a reconciliation can fill on an existing
// offer. A nil field means "leave as is"; set fields are only ever applied
// to currently null columns.
type OfferPatch struct {
	ValidFrom *time.Time
	ValidTo   *time.Time
	URL       *string
	ImageURL  *string
}

// Empty reports whether the patch would change nothing.
func (p OfferPatch) Empty() bool {
	return p.ValidFrom == nil && p.ValidTo == nil && p.URL == nil && p.ImageURL == nil
}

// OfferStore is the canonical offer table.
type OfferStore interface {
	// FindMatches returns the offers sharing the exact identity tuple,
	// narrowed by the ±MatchTolerance window around statedValidTo when one
	// is given. Offers persisted without an end date always match.
	FindMatches(ctx context.Context, key model.OfferKey, statedValidTo *time.Time) ([]model.Offer, error)

	Create(ctx context.Context, offer *model.Offer) (int64, error)

	// Fill applies the patch to currently null columns only and advances
	// seen_last. Non-null columns are never overwritten.
	Fill(ctx context.Context, id int64, patch OfferPatch, seenLast time.Time) error

	// Touch advances seen_last. It never moves it backwards.
	Touch(ctx context.Context, id int64, seenLast time.Time) error

	Get(ctx context.Context, id int64) (*model.Offer, error)
	ListAll(ctx context.Context) ([]model.Offer, error)

	SetEnrichmentID(ctx context.Context, id int64, enrichmentID int64) error
}

// RunStore is the scheduled-run ledger. At most one pending run exists per
// adapter; ScheduleRun merges into it rather than adding a second.
type RunStore interface {
	// ScheduleRun records that the adapter wants to run at the given time.
	// If a pending run already exists, the earlier of the two times wins
	// and the existing run's id is returned.
	ScheduleRun(ctx context.Context, adapterName string, at time.Time) (int64, error)

	// NextDueRun returns the not-yet-started run with the earliest
	// scheduled time at or before now, or ErrNotFound.
	NextDueRun(ctx context.Context, now time.Time) (*model.ScheduledRun, error)

	// NextPendingRun returns the unfinished run with the earliest
	// scheduled time regardless of dueness, or ErrNotFound.
	NextPendingRun(ctx context.Context) (*model.ScheduledRun, error)

	MarkStarted(ctx context.Context, id int64, at time.Time) error
	MarkFinished(ctx context.Context, id int64, at time.Time, found, created, modified int) error

	DeleteRun(ctx context.Context, id int64) error

	// CleanStaleRuns drops leftovers from previous process lifetimes plus
	// finished runs past their retention. Startup only.
	CleanStaleRuns(ctx context.Context, now time.Time) (int64, error)

	// DeleteOrphanedRuns drops pending runs whose adapter is no longer
	// part of the active configuration.
	DeleteOrphanedRuns(ctx context.Context, activeAdapters []string) (int64, error)
}
