// Package dayspan implements calendar-correct day iteration and the
// splitting of event intervals into per-day minute contributions. All
// day math walks real calendar days via AddDate, so DST transitions and
// month boundaries behave correctly.
package dayspan

import (
	"time"

	"caltrack/internal/model"
)

// DayStart returns midnight of t's calendar day, in t's location.
func DayStart(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// IsMidnight reports whether t is exactly the start of its day.
func IsMidnight(t time.Time) bool {
	return t.Equal(DayStart(t))
}

// DaysBetween returns the DayKey strings for every calendar day touched
// by [a, b], inclusive on both ends, except that an exact-midnight end
// boundary does not count an extra day.
func DaysBetween(a, b time.Time) []string {
	last := DayStart(b)
	if IsMidnight(b) && b.After(a) {
		last = last.AddDate(0, 0, -1)
	}

	var days []string
	for cur := DayStart(a); !cur.After(last); cur = cur.AddDate(0, 0, 1) {
		days = append(days, cur.Format(model.DayKey))
	}
	return days
}

// CountDays is the inclusive day count over [a, b] under the same
// midnight rule as DaysBetween.
func CountDays(a, b time.Time) int {
	return len(DaysBetween(a, b))
}

// SplitAcrossDays folds one event interval into per-day minute
// contributions. Contributions always sum to end minus start. A
// zero-length midnight tail is omitted. An inverted interval yields
// nothing; the caller treats it as a data-quality signal.
func SplitAcrossDays(start, end time.Time) []model.Contribution {
	if end.Before(start) {
		return nil
	}

	startDay := DayStart(start)
	endDay := DayStart(end)

	if startDay.Equal(endDay) {
		return []model.Contribution{{
			Day:     startDay.Format(model.DayKey),
			Minutes: end.Sub(start).Minutes(),
		}}
	}

	var out []model.Contribution

	// Partial first day up to the following midnight.
	next := startDay.AddDate(0, 0, 1)
	out = append(out, model.Contribution{
		Day:     startDay.Format(model.DayKey),
		Minutes: next.Sub(start).Minutes(),
	})

	// Fully spanned days: 1440 minutes each, except on DST transition
	// days where the real day length is used so the sum stays exact.
	for cur := next; cur.Before(endDay); cur = cur.AddDate(0, 0, 1) {
		out = append(out, model.Contribution{
			Day:     cur.Format(model.DayKey),
			Minutes: cur.AddDate(0, 0, 1).Sub(cur).Minutes(),
		})
	}

	// Partial last day from midnight, omitted when end is itself
	// exactly midnight.
	if !IsMidnight(end) {
		out = append(out, model.Contribution{
			Day:     endDay.Format(model.DayKey),
			Minutes: end.Sub(endDay).Minutes(),
		})
	}

	return out
}

// DateOnlyBounds converts a date-only start/end pair (no time-of-day,
// as delivered for all-day events) into concrete instants: both anchored
// at local midnight, with the end date advanced by one day so the
// exclusive end-date convention becomes an inclusive midnight-to-midnight
// span.
func DateOnlyBounds(start, end time.Time, loc *time.Location) (time.Time, time.Time) {
	s := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, loc)
	e := time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, loc).AddDate(0, 0, 1)
	return s, e
}

// ClampToWindow clamps both endpoints of an interval into the requested
// window before splitting, so out-of-window portions never contribute.
func ClampToWindow(start, end time.Time, win model.Range) (time.Time, time.Time) {
	if start.Before(win.Start) {
		start = win.Start
	}
	if end.After(win.End) {
		end = win.End
	}
	return start, end
}
