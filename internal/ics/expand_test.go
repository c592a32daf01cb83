package ics

import (
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evlist/internal/model"
)

func utc(y int, m time.Month, d, hh, mm int) time.Time {
	return time.Date(y, m, d, hh, mm, 0, 0, time.UTC)
}

func testWindow(start, end time.Time) Window {
	return Window{Start: start, End: end, Location: time.UTC}
}

func sortedStarts(occs []model.Occurrence) []time.Time {
	out := make([]time.Time, 0, len(occs))
	for _, o := range occs {
		out = append(out, o.Start)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

func TestExpandPlainEventInWindow(t *testing.T) {
	ev := ParsedEvent{
		UID:     "one@test",
		Summary: "Meeting",
		Start:   utc(2024, time.January, 15, 10, 0),
		End:     utc(2024, time.January, 15, 11, 0),
	}

	res, err := Expand([]ParsedEvent{ev}, testWindow(utc(2024, time.January, 1, 0, 0), utc(2024, time.February, 1, 0, 0)))
	require.NoError(t, err)
	require.Len(t, res.Occurrences, 1)

	occ := res.Occurrences[0]
	assert.Equal(t, "Meeting", occ.Summary)
	assert.True(t, occ.Start.Equal(utc(2024, time.January, 15, 10, 0)))
	assert.True(t, occ.End.Equal(utc(2024, time.January, 15, 11, 0)))
	assert.False(t, occ.AllDay)
	assert.Equal(t, occ.Start.Format(time.RFC3339), occ.InstanceKey)
}

func TestExpandPlainEventOutsideWindow(t *testing.T) {
	ev := ParsedEvent{
		UID:   "late@test",
		Start: utc(2024, time.March, 1, 10, 0),
		End:   utc(2024, time.March, 1, 11, 0),
	}

	res, err := Expand([]ParsedEvent{ev}, testWindow(utc(2024, time.January, 1, 0, 0), utc(2024, time.February, 1, 0, 0)))
	require.NoError(t, err)
	assert.Empty(t, res.Occurrences)
}

func TestExpandEventAlreadyUnderwayExcluded(t *testing.T) {
	// Started before the window opens; membership is by start, so an
	// event straddling "now" is not upcoming.
	ev := ParsedEvent{
		UID:   "underway@test",
		Start: utc(2023, time.December, 31, 23, 0),
		End:   utc(2024, time.January, 1, 2, 0),
	}

	res, err := Expand([]ParsedEvent{ev}, testWindow(utc(2024, time.January, 1, 0, 0), utc(2024, time.February, 1, 0, 0)))
	require.NoError(t, err)
	assert.Empty(t, res.Occurrences)
}

func TestExpandInvertedWindow(t *testing.T) {
	_, err := Expand(nil, testWindow(utc(2024, time.February, 1, 0, 0), utc(2024, time.January, 1, 0, 0)))
	assert.Error(t, err)
}

func TestExpandWeeklyRecurrence(t *testing.T) {
	ev := ParsedEvent{
		UID:      "weekly@test",
		Summary:  "Weekly Net",
		Start:    utc(2024, time.January, 1, 10, 0), // a Monday
		End:      utc(2024, time.January, 1, 10, 30),
		RawRRule: "FREQ=WEEKLY;BYDAY=MO",
	}

	res, err := Expand([]ParsedEvent{ev}, testWindow(utc(2024, time.January, 1, 0, 0), utc(2024, time.January, 29, 0, 0)))
	require.NoError(t, err)
	require.Len(t, res.Occurrences, 4)

	starts := sortedStarts(res.Occurrences)
	assert.True(t, starts[0].Equal(utc(2024, time.January, 1, 10, 0)))
	assert.True(t, starts[3].Equal(utc(2024, time.January, 22, 10, 0)))

	// Duration is preserved per instance.
	for _, o := range res.Occurrences {
		assert.Equal(t, 30*time.Minute, o.End.Sub(o.Start))
	}
}

func TestExpandWindowEndIsExclusive(t *testing.T) {
	ev := ParsedEvent{
		UID:      "weekly@test",
		Start:    utc(2024, time.January, 1, 10, 0),
		End:      utc(2024, time.January, 1, 11, 0),
		RawRRule: "FREQ=WEEKLY;BYDAY=MO",
	}

	// Window ends exactly on the Jan 8 instance start.
	res, err := Expand([]ParsedEvent{ev}, testWindow(utc(2024, time.January, 1, 0, 0), utc(2024, time.January, 8, 10, 0)))
	require.NoError(t, err)
	require.Len(t, res.Occurrences, 1)
	assert.True(t, res.Occurrences[0].Start.Equal(utc(2024, time.January, 1, 10, 0)))
}

func TestExpandExDateRemovesInstance(t *testing.T) {
	ev := ParsedEvent{
		UID:      "weekly@test",
		Start:    utc(2024, time.January, 1, 10, 0),
		End:      utc(2024, time.January, 1, 11, 0),
		RawRRule: "FREQ=WEEKLY;BYDAY=MO",
		ExDates:  []time.Time{utc(2024, time.January, 8, 10, 0)},
	}

	res, err := Expand([]ParsedEvent{ev}, testWindow(utc(2024, time.January, 1, 0, 0), utc(2024, time.January, 29, 0, 0)))
	require.NoError(t, err)
	require.Len(t, res.Occurrences, 3)

	for _, o := range res.Occurrences {
		assert.False(t, o.Start.Equal(utc(2024, time.January, 8, 10, 0)))
	}
}

func TestExpandOverrideReplacesInstance(t *testing.T) {
	rid := utc(2024, time.January, 15, 10, 0)
	base := ParsedEvent{
		UID:      "weekly@test",
		Summary:  "Weekly Net",
		Start:    utc(2024, time.January, 1, 10, 0),
		End:      utc(2024, time.January, 1, 11, 0),
		RawRRule: "FREQ=WEEKLY;BYDAY=MO",
	}
	override := ParsedEvent{
		UID:        "weekly@test",
		Summary:    "Weekly Net (moved)",
		Start:      utc(2024, time.January, 15, 14, 0),
		End:        utc(2024, time.January, 15, 15, 0),
		Recurrence: &rid,
		IsOverride: true,
	}

	res, err := Expand([]ParsedEvent{base, override}, testWindow(utc(2024, time.January, 1, 0, 0), utc(2024, time.January, 29, 0, 0)))
	require.NoError(t, err)
	require.Len(t, res.Occurrences, 4)

	var moved *model.Occurrence
	for i := range res.Occurrences {
		o := res.Occurrences[i]
		assert.False(t, o.Start.Equal(rid), "overridden instance should not appear at its original time")
		if o.Summary == "Weekly Net (moved)" {
			moved = &res.Occurrences[i]
		}
	}
	require.NotNil(t, moved)
	assert.True(t, moved.Start.Equal(utc(2024, time.January, 15, 14, 0)))
}

func TestExpandOverrideMovedOutOfWindow(t *testing.T) {
	rid := utc(2024, time.January, 15, 10, 0)
	base := ParsedEvent{
		UID:      "weekly@test",
		Summary:  "Weekly Net",
		Start:    utc(2024, time.January, 1, 10, 0),
		End:      utc(2024, time.January, 1, 11, 0),
		RawRRule: "FREQ=WEEKLY;BYDAY=MO",
	}
	override := ParsedEvent{
		UID:        "weekly@test",
		Summary:    "Weekly Net (postponed)",
		Start:      utc(2024, time.March, 20, 10, 0),
		End:        utc(2024, time.March, 20, 11, 0),
		Recurrence: &rid,
		IsOverride: true,
	}

	res, err := Expand([]ParsedEvent{base, override}, testWindow(utc(2024, time.January, 1, 0, 0), utc(2024, time.January, 29, 0, 0)))
	require.NoError(t, err)

	// Jan 1, 8 and 22 remain; the Jan 15 instance moved past the window
	// end and must not be listed at either time.
	require.Len(t, res.Occurrences, 3)
	for _, o := range res.Occurrences {
		assert.NotEqual(t, "Weekly Net (postponed)", o.Summary)
		assert.False(t, o.Start.Equal(rid))
		assert.True(t, o.Start.Before(utc(2024, time.January, 29, 0, 0)))
	}
}

func TestExpandOverrideMovedIntoWindow(t *testing.T) {
	rid := utc(2024, time.February, 5, 10, 0)
	base := ParsedEvent{
		UID:      "weekly@test",
		Summary:  "Weekly Net",
		Start:    utc(2024, time.January, 1, 10, 0),
		End:      utc(2024, time.January, 1, 11, 0),
		RawRRule: "FREQ=WEEKLY;BYDAY=MO",
	}
	override := ParsedEvent{
		UID:        "weekly@test",
		Summary:    "Weekly Net (brought forward)",
		Start:      utc(2024, time.January, 20, 14, 0),
		End:        utc(2024, time.January, 20, 15, 0),
		Recurrence: &rid,
		IsOverride: true,
	}

	res, err := Expand([]ParsedEvent{base, override}, testWindow(utc(2024, time.January, 1, 0, 0), utc(2024, time.January, 29, 0, 0)))
	require.NoError(t, err)

	// Four base Mondays plus the Feb 5 instance moved inside the window.
	require.Len(t, res.Occurrences, 5)

	var moved *model.Occurrence
	for i := range res.Occurrences {
		if res.Occurrences[i].Summary == "Weekly Net (brought forward)" {
			moved = &res.Occurrences[i]
		}
	}
	require.NotNil(t, moved)
	assert.True(t, moved.Start.Equal(utc(2024, time.January, 20, 14, 0)))
}

func TestExpandPlainEventOverrideMoved(t *testing.T) {
	window := testWindow(utc(2024, time.January, 1, 0, 0), utc(2024, time.February, 1, 0, 0))

	// Moved out: the base start is in the window, the override start is not.
	ridOut := utc(2024, time.January, 15, 10, 0)
	out := []ParsedEvent{
		{
			UID:   "moved-out@test",
			Start: ridOut,
			End:   utc(2024, time.January, 15, 11, 0),
		},
		{
			UID:        "moved-out@test",
			Start:      utc(2024, time.March, 1, 10, 0),
			End:        utc(2024, time.March, 1, 11, 0),
			Recurrence: &ridOut,
			IsOverride: true,
		},
	}
	res, err := Expand(out, window)
	require.NoError(t, err)
	assert.Empty(t, res.Occurrences)

	// Moved in: the base start is outside the window, the override start
	// is inside.
	ridIn := utc(2024, time.March, 1, 10, 0)
	in := []ParsedEvent{
		{
			UID:   "moved-in@test",
			Start: ridIn,
			End:   utc(2024, time.March, 1, 11, 0),
		},
		{
			UID:        "moved-in@test",
			Summary:    "Rescheduled",
			Start:      utc(2024, time.January, 20, 10, 0),
			End:        utc(2024, time.January, 20, 11, 0),
			Recurrence: &ridIn,
			IsOverride: true,
		},
	}
	res, err = Expand(in, window)
	require.NoError(t, err)
	require.Len(t, res.Occurrences, 1)
	assert.Equal(t, "Rescheduled", res.Occurrences[0].Summary)
	assert.True(t, res.Occurrences[0].Start.Equal(utc(2024, time.January, 20, 10, 0)))
}

func TestExpandAllDaySpan(t *testing.T) {
	ev := ParsedEvent{
		UID:     "fieldday@test",
		Summary: "Field Day",
		AllDay:  true,
		Start:   time.Date(2024, time.June, 21, 0, 0, 0, 0, time.Local),
		End:     time.Date(2024, time.June, 24, 0, 0, 0, 0, time.Local),
	}

	res, err := Expand([]ParsedEvent{ev}, testWindow(utc(2024, time.June, 1, 0, 0), utc(2024, time.July, 1, 0, 0)))
	require.NoError(t, err)
	require.Len(t, res.Occurrences, 1)

	occ := res.Occurrences[0]
	assert.True(t, occ.AllDay)
	// The calendar date survives display-zone conversion.
	assert.True(t, occ.Start.Equal(utc(2024, time.June, 21, 0, 0)))
	assert.True(t, occ.End.Equal(utc(2024, time.June, 24, 0, 0)))
}

func TestExpandOccurrenceCap(t *testing.T) {
	ev := ParsedEvent{
		UID:      "daily@test",
		Start:    utc(2024, time.January, 1, 9, 0),
		End:      utc(2024, time.January, 1, 9, 30),
		RawRRule: "FREQ=DAILY",
	}

	w := testWindow(utc(2024, time.January, 1, 0, 0), utc(2024, time.January, 11, 0, 0))
	w.MaxOccurrencesPerEvent = 3

	res, err := Expand([]ParsedEvent{ev}, w)
	require.NoError(t, err)
	assert.Len(t, res.Occurrences, 3)
	assert.Equal(t, []string{"daily@test"}, res.TruncatedEvents)
}
