package model

import "time"

// DayKey is the canonical day-string layout used to key the duration
// ledger. Days are always whole calendar days in the display timezone.
const DayKey = "2006-01-02"

// Interval is one concrete event interval attributed to a calendar, as
// produced either by the DOM scan path or by the ICS fallback fetch.
// Start and End are instants in the display timezone.
type Interval struct {
	CalendarID string
	Summary    string

	Start time.Time
	End   time.Time
}

// Contribution is the per-day share of an interval after it has been
// split across day boundaries.
type Contribution struct {
	Day     string // DayKey-formatted
	Minutes float64
}

// Range is a half-open [Start, End) window of instants as requested by
// the UI or narrowed by the fetch-bounds calculation.
type Range struct {
	Start time.Time
	End   time.Time
}

// IsZero reports whether the range is unset.
func (r Range) IsZero() bool {
	return r.Start.IsZero() && r.End.IsZero()
}
