package icloud

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func timedEvent(start time.Time) parsedEvent {
	return parsedEvent{
		uid:     "uid-1",
		summary: "Standup",
		start:   start,
		end:     start.Add(30 * time.Minute),
	}
}

func TestExpandNonRecurringInsideWindow(t *testing.T) {
	start := time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)

	out := expandOccurrences(timedEvent(start), "Work", from, to)
	require.Len(t, out, 1)
	assert.Equal(t, "Standup", out[0].Title)
	assert.Equal(t, "Work", out[0].Calendar)
	assert.True(t, out[0].Start.Equal(start))
}

func TestExpandNonRecurringOutsideWindow(t *testing.T) {
	start := time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)

	assert.Empty(t, expandOccurrences(timedEvent(start), "Work", from, to))
}

func TestExpandWeeklyRule(t *testing.T) {
	ev := timedEvent(time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC))
	ev.rrule = "FREQ=WEEKLY"

	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)

	out := expandOccurrences(ev, "Work", from, to)
	require.Len(t, out, 5)

	for i, occ := range out {
		want := ev.start.AddDate(0, 0, 7*i)
		assert.True(t, occ.Start.Equal(want), "occurrence %d at %v, want %v", i, occ.Start, want)
		assert.Equal(t, 30*time.Minute, occ.End.Sub(occ.Start))
	}
}

func TestExpandAppliesExDates(t *testing.T) {
	ev := timedEvent(time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC))
	ev.rrule = "FREQ=WEEKLY"
	ev.exDates = []time.Time{time.Date(2024, 1, 8, 9, 0, 0, 0, time.UTC)}

	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)

	out := expandOccurrences(ev, "Work", from, to)
	require.Len(t, out, 4)
	for _, occ := range out {
		assert.False(t, occ.Start.Equal(ev.exDates[0]), "excluded occurrence must not appear")
	}
}

func TestExpandRespectsCount(t *testing.T) {
	ev := timedEvent(time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC))
	ev.rrule = "FREQ=DAILY;COUNT=3"

	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)

	out := expandOccurrences(ev, "Work", from, to)
	assert.Len(t, out, 3)
}

func TestExpandAllDayOccurrences(t *testing.T) {
	ev := parsedEvent{
		uid:     "uid-1",
		summary: "Holiday",
		start:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		end:     time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		allDay:  true,
		rrule:   "FREQ=DAILY;COUNT=2",
	}

	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)

	out := expandOccurrences(ev, "Work", from, to)
	require.Len(t, out, 2)
	for _, occ := range out {
		assert.True(t, occ.AllDay)
		assert.Equal(t, 0, occ.Start.Hour())
		assert.Equal(t, 24*time.Hour, occ.End.Sub(occ.Start))
	}
}

func TestExpandBadRuleFallsBackToBase(t *testing.T) {
	ev := timedEvent(time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC))
	ev.rrule = "FREQ=NOPE"

	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)

	out := expandOccurrences(ev, "Work", from, to)
	require.Len(t, out, 1)
	assert.True(t, out[0].Start.Equal(ev.start))
}
