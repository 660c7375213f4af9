package domparse

import "math"

// RawEvent is one rendered event block as captured from the live
// layout, before any interpretation.
type RawEvent struct {
	// Aria is the full accessibility label: language-dependent free
	// text containing the time range and the summary in unspecified
	// order.
	Aria string
	// Summary is the event title as shown on the block.
	Summary string
	// Times is a smaller text fragment guaranteed to contain the
	// event's start time, though not necessarily the end time.
	Times string
	// CalendarID identifies the source calendar of the block.
	CalendarID string

	// AMStart / AMEnd report whether the block's top / bottom pixel
	// edge sits above the vertical midpoint of its day column. Only
	// used to disambiguate 12-hour clock values.
	AMStart bool
	AMEnd   bool

	// TouchesTop / TouchesBottom mark the block as clipped by the
	// visible day boundary, in which case the true start or end is the
	// day boundary itself, regardless of the text.
	TouchesTop    bool
	TouchesBottom bool

	// Day-of-month numbers for the previous, current and next column.
	// These are noise values to be excluded from time extraction, not
	// dates.
	PrevDayNumber int
	DayNumber     int
	NextDayNumber int
}

// Parsed is the normalized outcome of parsing one event block.
// StartTime and EndTime are fractional hours in [0, 24]. The parser
// does not enforce StartTime <= EndTime; consumers must treat a
// violation as a data-quality signal, not a reason to crash.
type Parsed struct {
	CalendarID string
	Summary    string
	StartTime  float64
	EndTime    float64
}

// Parse turns one raw event block into a Parsed record, or reports a
// typed failure. It is a pure function of its input: no shared state,
// no side effects.
func Parse(raw RawEvent) (Parsed, *ParseError) {
	// A block clipped on both edges spans the whole visible day; its
	// label often carries no usable times at all.
	if raw.TouchesTop && raw.TouchesBottom {
		return Parsed{CalendarID: raw.CalendarID, Summary: raw.Summary, StartTime: 0, EndTime: 24}, nil
	}

	pair, perr := resolveTokens(raw)
	if perr != nil {
		return Parsed{}, perr
	}

	// Clipping always wins over parsed text: a clipped block is only
	// partially rendered and its true boundary is known structurally.
	start := 0.0
	if !raw.TouchesTop {
		start = NormalizeClock(pair.start, raw.AMStart)
	}
	end := 24.0
	if !raw.TouchesBottom {
		end = NormalizeClock(pair.end, raw.AMEnd)
	}

	if math.IsNaN(start) {
		return Parsed{}, newError(KindNumeric, "start token %q did not normalize", pair.start)
	}
	if math.IsNaN(end) {
		return Parsed{}, newError(KindNumeric, "end token %q did not normalize", pair.end)
	}

	return Parsed{
		CalendarID: raw.CalendarID,
		Summary:    raw.Summary,
		StartTime:  start,
		EndTime:    end,
	}, nil
}

// ParseAllDay is the degenerate sibling for blocks in the all-day
// region: no time text exists, so the event covers the whole day.
func ParseAllDay(calendarID, summary string) Parsed {
	return Parsed{CalendarID: calendarID, Summary: summary, StartTime: 0, EndTime: 24}
}
