package syncer

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/tazhate/icalsync/internal/domain"
)

// untitledEvent stands in for a missing summary. Untitled events are
// synced, not dropped.
const untitledEvent = "Untitled Event"

// Normalizer converts raw source events into the canonical shape. It is
// the single parsing boundary: events that fail validation never reach
// the reconciliation engine.
type Normalizer struct {
	loc *time.Location
}

// NewNormalizer creates a normalizer converting timestamps into loc.
func NewNormalizer(loc *time.Location) *Normalizer {
	if loc == nil {
		loc = time.UTC
	}
	return &Normalizer{loc: loc}
}

// Normalize validates a raw event and maps it into a CanonicalEvent.
// The identity key is left empty; the resolver fills it during
// reconciliation.
func (n *Normalizer) Normalize(raw domain.RawEvent) (domain.CanonicalEvent, error) {
	if raw.Start.IsZero() {
		return domain.CanonicalEvent{}, &ValidationError{Field: "start", Reason: "missing"}
	}
	if raw.End.IsZero() {
		return domain.CanonicalEvent{}, &ValidationError{Field: "end", Reason: "missing"}
	}
	if raw.End.Before(raw.Start) {
		return domain.CanonicalEvent{}, &ValidationError{Field: "end", Reason: "before start"}
	}

	title := collapseWhitespace(raw.Title)
	if title == "" {
		title = untitledEvent
	}

	ev := domain.CanonicalEvent{
		Title:          title,
		Start:          raw.Start.In(n.loc),
		End:            raw.End.In(n.loc),
		AllDay:         raw.AllDay,
		Location:       collapseWhitespace(raw.Location),
		Notes:          collapseWhitespace(raw.Description),
		SourceCalendar: strings.TrimSpace(raw.Calendar),
	}
	ev.ContentHash = contentHash(ev)
	return ev, nil
}

// collapseWhitespace trims the string and collapses runs of whitespace
// into single spaces.
func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// contentHash is a deterministic hash over the user-visible fields. It
// changes iff title, time, location or notes change.
func contentHash(ev domain.CanonicalEvent) string {
	h := sha256.New()
	for _, part := range []string{
		ev.Title,
		ev.Start.UTC().Format(time.RFC3339),
		ev.End.UTC().Format(time.RFC3339),
		ev.Location,
		ev.Notes,
	} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
