// Package validity derives a trustworthy end date for an offer from when it
// was last observed and what the site claimed. Different sites report end
// dates with different staleness and accuracy; the 1-hour and 1-day
// boundaries below encode that and are load-bearing.
package validity

import "time"

const (
	gracePeriod    = 1 * time.Hour
	staleThreshold = 24 * time.Hour
)

// RealValidTo returns the best estimate of when the offer really ends, or
// nil when that is indeterminate. Pure function, no I/O.
//
// With no stated end date, an offer not seen for over a day is presumed gone
// at the moment it was last seen; a recently seen one is indeterminate.
//
// With a stated end date, the date is trusted as long as it was plausibly in
// the future when the offer was last observed and the observation is fresh.
// Once the site has gone stale for over a day, the last confirmed-alive
// moment wins. An end date that predates the observation gets a short grace
// period past the observation.
func RealValidTo(seenLast time.Time, statedValidTo *time.Time, now time.Time) *time.Time {
	if statedValidTo == nil {
		if now.Sub(seenLast) > staleThreshold {
			return &seenLast
		}
		return nil
	}

	stated := *statedValidTo
	switch {
	case stated.After(seenLast.Add(gracePeriod)):
		if now.Sub(seenLast) < staleThreshold {
			return &stated
		}
		return &seenLast
	case stated.Before(seenLast):
		t := seenLast.Add(gracePeriod)
		return &t
	default:
		return &stated
	}
}

// IsActive reports whether an offer with the given observation data should
// still be considered live at now. An indeterminate end date counts as
// active: the offer might still be running and nothing proves otherwise.
func IsActive(seenLast time.Time, statedValidTo *time.Time, now time.Time) bool {
	real := RealValidTo(seenLast, statedValidTo, now)
	if real == nil {
		return true
	}
	return real.After(now)
}
