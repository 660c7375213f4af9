package ics

import (
	"context"
	"errors"
	"time"

	"github.com/teambition/rrule-go"

	"caltrack/internal/dayspan"
	appLog "caltrack/internal/log"
	"caltrack/internal/model"
)

const defaultMaxOccurrencesPerEvent = 5000

// FetchIntervals is the fetch-layer contract consumed by the refresh
// pipeline: given one calendar's source and a date range, it returns
// the concrete event intervals inside that range, in the display
// timezone. This path is slower than the DOM scan but authoritative.
func (f *Fetcher) FetchIntervals(ctx context.Context, src Source, win model.Range, loc *time.Location) ([]model.Interval, error) {
	res, err := f.FetchOne(ctx, src)
	if err != nil {
		return nil, err
	}
	events, err := ParseICS(src, res.Body)
	if err != nil {
		return nil, err
	}
	return ExpandIntervals(events, win, loc)
}

// ExpandIntervals expands parsed events into concrete intervals within
// the window. It handles single events, RRULE recurrence, EXDATE
// removal, RECURRENCE-ID overrides and all-day semantics; all results
// land in the given display location.
func ExpandIntervals(events []ParsedEvent, win model.Range, loc *time.Location) ([]model.Interval, error) {
	if win.End.Before(win.Start) {
		return nil, errors.New("expand: range end is before range start")
	}
	if loc == nil {
		loc = time.Local
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

	out := make([]model.Interval, 0)
	for uid, baseEvents := range baseByUID {
		ov := overridesByUID[uid]
		for _, ev := range baseEvents {
			ivs, hitCap := expandEvent(ev, ov, win, loc)
			if hitCap {
				appLog.Warn("expand: occurrence cap reached", "uid", uid, "cap", defaultMaxOccurrencesPerEvent)
			}
			out = append(out, ivs...)
		}
	}
	return out, nil
}

func expandEvent(ev ParsedEvent, overrides []ParsedEvent, win model.Range, loc *time.Location) ([]model.Interval, bool) {
	if ev.RawRRule == "" {
		return expandSingleEvent(ev, overrides, win, loc), false
	}
	return expandRecurringEvent(ev, overrides, win, loc)
}

func expandSingleEvent(ev ParsedEvent, overrides []ParsedEvent, win model.Range, loc *time.Location) []model.Interval {
	start, end := eventBounds(ev, ev.Start, ev.End, loc)
	if !rangesOverlap(start, end, win.Start, win.End) {
		return nil
	}

	if o, ok := findOverrideForStart(overrides, ev.Start); ok {
		ev = o
		start, end = eventBounds(o, o.Start, o.End, loc)
	}

	return []model.Interval{makeInterval(ev, start, end, loc)}
}

func expandRecurringEvent(ev ParsedEvent, overrides []ParsedEvent, win model.Range, loc *time.Location) ([]model.Interval, bool) {
	out := make([]model.Interval, 0)

	r, err := rrule.StrToRRule(ev.RawRRule)
	if err != nil {
		appLog.Error("expand: failed to parse RRULE", err, "uid", ev.UID, "rrule", ev.RawRRule)
		return out, false
	}
	r.DTStart(ev.Start)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range ev.ExDates {
		set.ExDate(ex.In(ev.Start.Location()))
	}

	// Between() works in the event's original location.
	rangeStart := win.Start.In(ev.Start.Location())
	rangeEnd := win.End.In(ev.Start.Location())
	occTimes := set.Between(rangeStart, rangeEnd, true)

	hitCap := false
	if len(occTimes) > defaultMaxOccurrencesPerEvent {
		occTimes = occTimes[:defaultMaxOccurrencesPerEvent]
		hitCap = true
	}

	dur := ev.End.Sub(ev.Start)
	for _, occStart := range occTimes {
		occEnd := occStart.Add(dur)

		baseEv := ev
		start, end := occStart, occEnd
		if o, ok := findOverrideForStart(overrides, occStart); ok {
			baseEv = o
			start, end = o.Start, o.End
		}

		start, end = eventBounds(baseEv, start, end, loc)
		out = append(out, makeInterval(baseEv, start, end, loc))
	}

	return out, hitCap
}

// eventBounds normalizes one occurrence's endpoints: date-only all-day
// events are anchored at local midnight with the exclusive end date
// advanced by a day; timed events pass through.
func eventBounds(ev ParsedEvent, start, end time.Time, loc *time.Location) (time.Time, time.Time) {
	if ev.AllDay {
		// The ICS DTEND of an all-day event already points at the day
		// after the last covered day, so step it back before anchoring.
		last := end.AddDate(0, 0, -1)
		if last.Before(start) {
			last = start
		}
		return dayspan.DateOnlyBounds(start, last, loc)
	}
	return start, end
}

// findOverrideForStart finds an override whose RECURRENCE-ID matches
// baseStart with exact time equality.
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

func makeInterval(ev ParsedEvent, start, end time.Time, loc *time.Location) model.Interval {
	return model.Interval{
		CalendarID: ev.Source.CalendarID,
		Summary:    ev.Summary,
		Start:      start.In(loc),
		End:        end.In(loc),
	}
}

func rangesOverlap(aStart, aEnd, bStart, bEnd time.Time) bool {
	return !aEnd.Before(bStart) && !bEnd.Before(aStart)
}
