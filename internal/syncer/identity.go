package syncer

import (
	"strings"
	"time"

	"github.com/tazhate/icalsync/internal/domain"
)

// RecordIndex is the read side of the state store used during
// reconciliation.
type RecordIndex interface {
	Get(key string) (domain.SyncRecord, bool)
	All() []domain.SyncRecord
	SnapshotFor(calendar string) []domain.SyncRecord
}

// Resolver derives a stable identity key for an event so the same logical
// event is recognized across syncs even when transient fields change.
type Resolver struct {
	window time.Duration
}

// NewResolver creates a resolver. windowDays bounds how far a same-titled
// event in the same calendar may move in time and still be considered the
// same logical appointment.
func NewResolver(windowDays int) *Resolver {
	return &Resolver{window: time.Duration(windowDays) * 24 * time.Hour}
}

var keySanitizer = strings.NewReplacer(" ", "_", ":", "")

// Key builds the composite key from the event's calendar, title and
// original start time.
func (r *Resolver) Key(ev domain.CanonicalEvent) string {
	return keySanitizer.Replace(
		ev.Title + "_" + ev.Start.UTC().Format(time.RFC3339) + "_" + ev.SourceCalendar,
	)
}

// Resolve returns the identity key for ev. When the composite key has no
// prior record but a record with the same title and calendar exists whose
// start is within the window, that record's key is reused: the event is
// treated as the same appointment moved in time, not a new one. This
// heuristic is deliberately conservative; see the window setting.
func (r *Resolver) Resolve(ev domain.CanonicalEvent, index RecordIndex) string {
	key := r.Key(ev)
	if _, ok := index.Get(key); ok {
		return key
	}
	if r.window <= 0 {
		return key
	}

	var (
		best     string
		bestDist time.Duration = r.window + 1
	)
	for _, rec := range index.SnapshotFor(ev.SourceCalendar) {
		if rec.Title != ev.Title {
			continue
		}
		dist := ev.Start.Sub(rec.Start)
		if dist < 0 {
			dist = -dist
		}
		if dist <= r.window && dist < bestDist {
			best = rec.IdentityKey
			bestDist = dist
		}
	}
	if best != "" {
		return best
	}
	return key
}
