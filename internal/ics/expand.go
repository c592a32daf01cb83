package ics

import (
	"errors"
	"time"

	"github.com/teambition/rrule-go"

	appLog "evlist/internal/log"
	"evlist/internal/model"
)

const defaultMaxOccurrencesPerEvent = 5000

// Window configures recurrence expansion over a time range.
type Window struct {
	// Start / End bound the half-open window [Start, End). An occurrence
	// is included iff its start falls inside the window.
	Start time.Time
	End   time.Time

	// Location is the display timezone for timed occurrences. If nil,
	// time.Local is used. All-day occurrences keep their calendar date.
	Location *time.Location

	// MaxOccurrencesPerEvent caps expansion of pathological rules.
	// Zero means defaultMaxOccurrencesPerEvent.
	MaxOccurrencesPerEvent int
}

// ExpandResult wraps expanded occurrences plus truncation info.
type ExpandResult struct {
	Occurrences []model.Occurrence
	// TruncatedEvents records UIDs that hit the per-event cap.
	TruncatedEvents []string
}

// Expand turns ParsedEvents into concrete occurrences whose start falls
// within the window. It handles plain events, RRULE recurrence, EXDATE
// removal, RECURRENCE-ID overrides and all-day semantics. An overridden
// instance is listed at the override's moved start, and window
// membership is decided on that moved time. Timed occurrences are
// converted into the window's display timezone.
func Expand(events []ParsedEvent, w Window) (ExpandResult, error) {
	var result ExpandResult

	if w.End.Before(w.Start) {
		return result, errors.New("expand: window end is before window start")
	}
	if w.Location == nil {
		w.Location = time.Local
	}
	if w.MaxOccurrencesPerEvent <= 0 {
		w.MaxOccurrencesPerEvent = defaultMaxOccurrencesPerEvent
	}

	// Group base events and overrides by UID.
	baseByUID := make(map[string][]ParsedEvent)
	overridesByUID := make(map[string][]ParsedEvent)

	for _, ev := range events {
		if ev.IsOverride && ev.Recurrence != nil {
			overridesByUID[ev.UID] = append(overridesByUID[ev.UID], ev)
		} else {
			baseByUID[ev.UID] = append(baseByUID[ev.UID], ev)
		}
	}

	all := make([]model.Occurrence, 0)

	for uid, baseEvents := range baseByUID {
		ov := overridesByUID[uid]
		truncated := false

		for _, ev := range baseEvents {
			occ, hitCap := expandEvent(ev, ov, w)
			if hitCap {
				truncated = true
			}
			all = append(all, occ...)
		}

		// Overrides carry their own start, and membership is decided on
		// that moved time: an instance pulled into the window is listed,
		// one pushed out is not. The base instance at the RECURRENCE-ID
		// time is suppressed during base expansion above.
		for _, o := range ov {
			if startInWindow(o.Start, w) {
				all = append(all, makeOccurrence(o, o.Start, o.End, w.Location))
			}
		}

		if truncated {
			result.TruncatedEvents = append(result.TruncatedEvents, uid)
			appLog.Error("expand: occurrences truncated at cap",
				errors.New("max occurrences reached"),
				"uid", uid,
				"cap", w.MaxOccurrencesPerEvent,
			)
		}
	}

	result.Occurrences = all
	return result, nil
}

func expandEvent(ev ParsedEvent, overrides []ParsedEvent, w Window) ([]model.Occurrence, bool) {
	if ev.RawRRule == "" {
		return expandPlainEvent(ev, overrides, w), false
	}
	return expandRecurringEvent(ev, overrides, w)
}

func expandPlainEvent(ev ParsedEvent, overrides []ParsedEvent, w Window) []model.Occurrence {
	// An overridden instance is emitted from the override itself, at its
	// moved time.
	if _, ok := findOverrideForStart(overrides, ev.Start); ok {
		return nil
	}

	// Membership is by start: an event already underway at the window
	// start is not "upcoming".
	if !startInWindow(ev.Start, w) {
		return nil
	}

	return []model.Occurrence{makeOccurrence(ev, ev.Start, ev.End, w.Location)}
}

func expandRecurringEvent(ev ParsedEvent, overrides []ParsedEvent, w Window) ([]model.Occurrence, bool) {
	out := make([]model.Occurrence, 0)
	hitCap := false

	r, err := rrule.StrToRRule(ev.RawRRule)
	if err != nil {
		appLog.Error("expand: failed to parse RRULE", err, "uid", ev.UID, "rrule", ev.RawRRule)
		return out, false
	}
	r.DTStart(ev.Start)

	var set rrule.Set
	set.RRule(r)

	for _, ex := range ev.ExDates {
		// Align EXDATE location with the event's start for comparison.
		set.ExDate(ex.In(ev.Start.Location()))
	}

	// Query in the event's own location; the window is half-open, so
	// drop an instance landing exactly on the end bound.
	rangeStart := w.Start.In(ev.Start.Location())
	rangeEnd := w.End.In(ev.Start.Location())

	occTimes := set.Between(rangeStart, rangeEnd, true)

	if len(occTimes) > w.MaxOccurrencesPerEvent {
		occTimes = occTimes[:w.MaxOccurrencesPerEvent]
		hitCap = true
	}

	dur := ev.End.Sub(ev.Start)

	for _, occStart := range occTimes {
		if !occStart.Before(rangeEnd) {
			continue
		}

		// Overridden instances are emitted from their overrides, at the
		// moved time.
		if _, ok := findOverrideForStart(overrides, occStart); ok {
			continue
		}

		var occEnd time.Time
		if ev.AllDay {
			// All-day instances anchor at midnight and keep the base
			// event's day span (exclusive DTEND convention).
			date := time.Date(occStart.Year(), occStart.Month(), occStart.Day(), 0, 0, 0, 0, occStart.Location())
			occStart = date
			if dur > 0 {
				occEnd = date.Add(dur)
			} else {
				occEnd = date.Add(24 * time.Hour)
			}
		} else if !ev.End.IsZero() {
			occEnd = occStart.Add(dur)
		}

		out = append(out, makeOccurrence(ev, occStart, occEnd, w.Location))
	}

	return out, hitCap
}

func startInWindow(start time.Time, w Window) bool {
	return !start.Before(w.Start) && start.Before(w.End)
}

// findOverrideForStart finds an override whose RECURRENCE-ID matches the
// given instance start with exact time equality.
func findOverrideForStart(overrides []ParsedEvent, baseStart time.Time) (ParsedEvent, bool) {
	for _, ov := range overrides {
		if ov.Recurrence == nil {
			continue
		}
		if ov.Recurrence.In(baseStart.Location()).Equal(baseStart) {
			return ov, true
		}
	}
	return ParsedEvent{}, false
}

// makeOccurrence converts a (possibly overridden) ParsedEvent plus a
// specific start/end into an Occurrence. Timed bounds are converted into
// displayLoc; all-day bounds are re-anchored so the calendar date never
// shifts across zones.
func makeOccurrence(ev ParsedEvent, start, end time.Time, displayLoc *time.Location) model.Occurrence {
	var startLocal, endLocal time.Time
	if ev.AllDay {
		startLocal = anchorDate(start, displayLoc)
		if !end.IsZero() {
			endLocal = anchorDate(end, displayLoc)
		}
	} else {
		startLocal = start.In(displayLoc)
		if !end.IsZero() {
			endLocal = end.In(displayLoc)
		}
	}

	return model.Occurrence{
		SourceID:    ev.Source.ID,
		UID:         ev.UID,
		InstanceKey: startLocal.Format(time.RFC3339),
		Summary:     ev.Summary,
		Description: ev.Description,
		Location:    ev.Location,
		AllDay:      ev.AllDay,
		Start:       startLocal,
		End:         endLocal,
	}
}

// anchorDate rebuilds t's calendar date at midnight in loc.
func anchorDate(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}
