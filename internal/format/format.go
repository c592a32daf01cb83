// Package format renders event occurrences as human-readable lines.
package format

import (
	"strings"
	"time"

	"github.com/fatih/color"

	"evlist/internal/model"
)

const (
	timeLayout = "15:04"
	dateLayout = "01/02"
)

// Func renders one occurrence as one (possibly multi-line) string.
type Func func(model.Occurrence) string

// Time renders clock time as zero-padded 24-hour "HH:MM".
func Time(t time.Time) string {
	return t.Format(timeLayout)
}

// Timespan renders "(HH:MM - HH:MM)". Callers only apply it to timed
// occurrences; all-day events carry no time-of-day to show.
func Timespan(start, end time.Time) string {
	return "(" + Time(start) + " - " + Time(end) + ")"
}

// Date renders a short "MM/DD" date label.
func Date(t time.Time) string {
	return t.Format(dateLayout)
}

// DateRange renders the date label for an event span. A zero end, or an
// end no more than one day past the start, yields just the start date:
// all-day events are commonly encoded with an exclusive DTEND one day
// past the last day, and must not show as a range. Only genuinely
// multi-day spans render "MM/DD - MM/DD".
func DateRange(start, end time.Time) string {
	if !end.IsZero() && daysBetween(start, end) > 1 {
		return Date(start) + " - " + Date(end)
	}
	return Date(start)
}

// daysBetween counts whole calendar days from start's date to end's
// date. Midnights are rebuilt in UTC so DST transitions cannot skew the
// count.
func daysBetween(start, end time.Time) int {
	return int(midnightUTC(end).Sub(midnightUTC(start)) / (24 * time.Hour))
}

func midnightUTC(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Text renders "<date-range>: <summary>", with the time span appended
// only when both bounds carry time-of-day.
func Text(o model.Occurrence) string {
	parts := []string{
		DateRange(o.Start, o.End) + ":",
		o.Summary,
	}
	if !o.AllDay && !o.End.IsZero() {
		parts = append(parts, Timespan(o.Start, o.End))
	}
	return strings.Join(parts, " ")
}

// TextWithLocation wraps Text and appends an indented location line when
// the occurrence has one.
func TextWithLocation(o model.Occurrence) string {
	line := Text(o)
	if o.Location != "" {
		return line + "\n    Location: " + o.Location
	}
	return line
}

// Highlighter colors lines of occurrences whose summary contains one of
// the configured keywords.
type Highlighter struct {
	keywords []string
	disabled bool
	red      *color.Color
}

// NewHighlighter builds a Highlighter. disabled turns it into a no-op
// (e.g. --no-color).
func NewHighlighter(keywords []string, disabled bool) *Highlighter {
	return &Highlighter{
		keywords: keywords,
		disabled: disabled,
		red:      color.New(color.FgRed),
	}
}

// Wrap returns a formatter that colors matching lines red and leaves the
// rest untouched.
func (h *Highlighter) Wrap(f Func) Func {
	if h.disabled || len(h.keywords) == 0 {
		return f
	}
	return func(o model.Occurrence) string {
		line := f(o)
		if h.matches(o.Summary) {
			return h.red.Sprint(line)
		}
		return line
	}
}

func (h *Highlighter) matches(summary string) bool {
	s := strings.ToLower(summary)
	for _, kw := range h.keywords {
		if kw == "" {
			continue
		}
		if strings.Contains(s, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}
