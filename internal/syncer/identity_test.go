package syncer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/tazhate/icalsync/internal/domain"
)

func canonical(title, calendar string, start time.Time) domain.CanonicalEvent {
	return domain.CanonicalEvent{
		Title:          title,
		Start:          start,
		End:            start.Add(time.Hour),
		SourceCalendar: calendar,
	}
}

func TestKeyIsStableAndDistinct(t *testing.T) {
	r := NewResolver(3)
	start := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)

	a := r.Key(canonical("Standup", "Work", start))
	assert.Equal(t, a, r.Key(canonical("Standup", "Work", start)))
	assert.NotEqual(t, a, r.Key(canonical("Standup", "Personal", start)))
	assert.NotEqual(t, a, r.Key(canonical("Retro", "Work", start)))
	assert.NotEqual(t, a, r.Key(canonical("Standup", "Work", start.Add(time.Hour))))
}

func TestResolveIgnoresNonIdentityChanges(t *testing.T) {
	r := NewResolver(3)
	start := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)

	ev := canonical("Standup", "Work", start)
	key := r.Resolve(ev, newMemStore())

	// Notes and location are not part of the identity.
	changed := ev
	changed.Notes = "new agenda"
	changed.Location = "Room 2"
	assert.Equal(t, key, r.Resolve(changed, newMemStore()))
}

func TestResolveReusesRecordForMovedEvent(t *testing.T) {
	r := NewResolver(3)
	start := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)

	ev := canonical("Standup", "Work", start)
	key := r.Key(ev)
	store := newMemStore(domain.SyncRecord{
		IdentityKey:    key,
		SourceCalendar: "Work",
		Title:          "Standup",
		Start:          start,
	})

	// Moved within the window: same logical appointment.
	moved := canonical("Standup", "Work", start.Add(24*time.Hour))
	assert.Equal(t, key, r.Resolve(moved, store))

	// Moved beyond the window: a new event.
	far := canonical("Standup", "Work", start.Add(10*24*time.Hour))
	assert.Equal(t, r.Key(far), r.Resolve(far, store))

	// Same title in another calendar never matches.
	other := canonical("Standup", "Personal", start.Add(24*time.Hour))
	assert.Equal(t, r.Key(other), r.Resolve(other, store))
}

func TestResolvePrefersClosestRecord(t *testing.T) {
	r := NewResolver(3)
	start := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)

	near := domain.SyncRecord{
		IdentityKey:    "near",
		SourceCalendar: "Work",
		Title:          "Standup",
		Start:          start.Add(12 * time.Hour),
	}
	far := domain.SyncRecord{
		IdentityKey:    "far",
		SourceCalendar: "Work",
		Title:          "Standup",
		Start:          start.Add(48 * time.Hour),
	}

	ev := canonical("Standup", "Work", start)
	assert.Equal(t, "near", r.Resolve(ev, newMemStore(near, far)))
}

func TestResolveWindowDisabled(t *testing.T) {
	r := NewResolver(0)
	start := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)

	store := newMemStore(domain.SyncRecord{
		IdentityKey:    "old",
		SourceCalendar: "Work",
		Title:          "Standup",
		Start:          start,
	})

	moved := canonical("Standup", "Work", start.Add(time.Hour))
	assert.Equal(t, r.Key(moved), r.Resolve(moved, store))
}
