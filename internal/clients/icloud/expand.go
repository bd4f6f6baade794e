package icloud

import (
	"time"

	"github.com/teambition/rrule-go"

	"github.com/tazhate/icalsync/internal/domain"
)

// Safety cap so a malformed RRULE cannot blow up a sync pass.
const maxOccurrencesPerEvent = 1000

// expandOccurrences turns a parsed VEVENT into concrete raw events within
// [from, to]. Non-recurring events yield at most one; RRULE events are
// expanded with EXDATEs applied.
func expandOccurrences(ev parsedEvent, calendar string, from, to time.Time) []domain.RawEvent {
	if ev.rrule == "" {
		if !rangesOverlap(ev.start, ev.end, from, to) {
			return nil
		}
		return []domain.RawEvent{rawEvent(ev, calendar, ev.start, ev.end)}
	}

	r, err := rrule.StrToRRule(ev.rrule)
	if err != nil {
		// Fall back to the base occurrence rather than dropping the event.
		if !rangesOverlap(ev.start, ev.end, from, to) {
			return nil
		}
		return []domain.RawEvent{rawEvent(ev, calendar, ev.start, ev.end)}
	}
	r.DTStart(ev.start)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range ev.exDates {
		set.ExDate(ex.In(ev.start.Location()))
	}

	starts := set.Between(from.In(ev.start.Location()), to.In(ev.start.Location()), true)
	if len(starts) > maxOccurrencesPerEvent {
		starts = starts[:maxOccurrencesPerEvent]
	}

	duration := ev.end.Sub(ev.start)
	out := make([]domain.RawEvent, 0, len(starts))
	for _, start := range starts {
		if ev.allDay {
			day := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, start.Location())
			out = append(out, rawEvent(ev, calendar, day, day.Add(24*time.Hour)))
			continue
		}
		out = append(out, rawEvent(ev, calendar, start, start.Add(duration)))
	}
	return out
}

func rawEvent(ev parsedEvent, calendar string, start, end time.Time) domain.RawEvent {
	return domain.RawEvent{
		UID:         ev.uid,
		Title:       ev.summary,
		Description: ev.description,
		Location:    ev.location,
		Start:       start,
		End:         end,
		AllDay:      ev.allDay,
		Calendar:    calendar,
	}
}

func rangesOverlap(aStart, aEnd, bStart, bEnd time.Time) bool {
	if aEnd.Before(bStart) {
		return false
	}
	if bEnd.Before(aStart) {
		return false
	}
	return true
}
