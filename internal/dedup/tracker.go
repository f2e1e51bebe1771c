package dedup

import (
	"time"

	"hedgeye-alert-monitor/internal/types"
)

// lastSeen records the identity of the most recently dispatched alert for the
// current trading day.
type lastSeen struct {
	title     string
	createdAt time.Time
}

// Tracker decides whether a freshly extracted alert is genuinely new.
// Comparison is by title only: price and timestamp drift on a re-rendered
// page must not count as new.
//
// The tracker is owned by the monitor loop, which is its only writer, so it
// carries no locking.
type Tracker struct {
	last *lastSeen
}

func NewTracker() *Tracker {
	return &Tracker{}
}

// IsNew reports whether the alert differs from the last one seen today.
// The first alert after a Clear is always new.
func (t *Tracker) IsNew(alert *types.AlertRecord) bool {
	if t.last == nil {
		return true
	}
	return alert.Title != t.last.title
}

// RecordSeen overwrites the last-seen mark. Called after a dispatch attempt is
// made, regardless of sink outcome, so a flaky sink cannot cause re-delivery
// storms.
func (t *Tracker) RecordSeen(alert *types.AlertRecord) {
	t.last = &lastSeen{title: alert.Title, createdAt: alert.CreatedAt}
}

// Clear empties the last-seen mark at the start of a new trading day.
func (t *Tracker) Clear() {
	t.last = nil
}
