package model

import "time"

// ScheduledRun is one execution slot for one adapter in the run ledger.
// At most one pending (unfinished) run exists per adapter at any time.
type ScheduledRun struct {
	ID          int64
	AdapterName string
	ScheduledAt time.Time
	StartedAt   *time.Time
	FinishedAt  *time.Time

	OffersFound    int
	OffersNew      int
	OffersModified int
}

// Pending reports whether the run has not finished yet.
func (r *ScheduledRun) Pending() bool {
	return r.FinishedAt == nil
}

// Started reports whether execution of the run has begun.
func (r *ScheduledRun) Started() bool {
	return r.StartedAt != nil
}
