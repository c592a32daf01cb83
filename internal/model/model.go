package model

import "time"

// Occurrence is a single concrete instance of a calendar event after
// recurrence expansion. For recurring events there is one Occurrence per
// expanded instance; for plain events there is exactly one.
//
// AllDay tags the bound kind: when true both Start and End are dates
// without time-of-day (End may be zero if the event had no DTEND). The
// parser guarantees both bounds share the same kind, so a single flag
// covers them.
type Occurrence struct {
	SourceID string // calendar source ID (config source or "cli")
	UID      string // iCalendar UID

	// InstanceKey uniquely identifies one occurrence of a recurring
	// event, derived from the local start time.
	InstanceKey string

	Summary     string
	Description string
	Location    string

	AllDay bool

	Start time.Time
	End   time.Time
}
