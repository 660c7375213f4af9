// Package scan discovers day columns and event blocks in the rendered
// calendar layout and turns them into parsed events. Capture (the
// chromedp side) and Scan (pure geometry/text interpretation) are kept
// separate so the interpretation logic is testable without a browser.
package scan

import (
	"fmt"
	"time"

	"caltrack/internal/dayspan"
	"caltrack/internal/domparse"
	appLog "caltrack/internal/log"
	"caltrack/internal/model"
)

// Column is one visible day column of the time grid.
type Column struct {
	Left  float64 `json:"left"`
	Width float64 `json:"width"`
}

// Block is one rendered timed-event block, with geometry relative to
// its column's time grid.
type Block struct {
	Column     int     `json:"column"`
	Aria       string  `json:"aria"`
	Summary    string  `json:"summary"`
	Times      string  `json:"times"`
	CalendarID string  `json:"calendarId"`
	Top        float64 `json:"top"`
	Height     float64 `json:"height"`
}

// AllDayBlock is one block in the all-day region; it has no geometry
// worth interpreting.
type AllDayBlock struct {
	Column     int    `json:"column"`
	Summary    string `json:"summary"`
	CalendarID string `json:"calendarId"`
}

// Snapshot is everything Capture reads from the live layout in one
// pass. GridHeight is the pixel height of a day column's time grid;
// zero means the landmark was not found.
type Snapshot struct {
	GridHeight float64       `json:"gridHeight"`
	Columns    []Column      `json:"columns"`
	Blocks     []Block       `json:"blocks"`
	AllDay     []AllDayBlock `json:"allDay"`
}

// DayEvents is the scan output for one visible day, in column order.
type DayEvents struct {
	Day    string // DayKey-formatted
	Events []domparse.Parsed
	AllDay []domparse.Parsed
}

// Diagnostics is the non-fatal side channel the scanner reports
// data-quality observations to. Not required for production operation.
type Diagnostics interface {
	Report(msg string, kv ...any)
}

// LogDiagnostics reports to the application log at WARN level.
type LogDiagnostics struct{}

func (LogDiagnostics) Report(msg string, kv ...any) {
	appLog.Warn("scan diagnostic: "+msg, kv...)
}

// NopDiagnostics drops all reports.
type NopDiagnostics struct{}

func (NopDiagnostics) Report(string, ...any) {}

// Config carries the per-session scanner configuration. Lifecycle is
// owned by the caller: one Scanner per session, no package state.
type Config struct {
	// PageURL is the calendar page to inspect.
	PageURL string
	// Timeout bounds one capture pass.
	Timeout time.Duration
	// Verify enables cross-check reporting to the diagnostics sink.
	Verify bool
}

// Scanner holds per-session scan state.
type Scanner struct {
	cfg  Config
	diag Diagnostics

	warnedDoubling bool
}

func New(cfg Config, diag Diagnostics) *Scanner {
	if diag == nil {
		diag = NopDiagnostics{}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Scanner{cfg: cfg, diag: diag}
}

// clipSlack is the pixel tolerance when deciding that a block touches
// the grid edge; rendered blocks are routinely off by a border width.
const clipSlack = 1.0

// Scan interprets a captured snapshot against the resolved visible
// range. Day numbers per column come from the range, never from the
// layout. Any structural mismatch fails the whole pass, because all
// positional assumptions are then unreliable; a parse failure on any
// block also fails the pass so a half-read view can never reach the
// ledger.
func (s *Scanner) Scan(snap Snapshot, visible model.Range) ([]DayEvents, *domparse.ParseError) {
	days := dayspan.DaysBetween(visible.Start, visible.End)
	if len(days) == 0 {
		return nil, &domparse.ParseError{Kind: domparse.KindStructural, Msg: "visible range resolves to no days"}
	}
	if snap.GridHeight <= 0 {
		return nil, &domparse.ParseError{Kind: domparse.KindStructural, Msg: "time grid landmark not found"}
	}

	cols := snap.Columns
	switch {
	case len(cols) == len(days):
		// Stable layout.
	case len(cols) == 2*len(days):
		// Transient doubling during a view-transition animation: the
		// first half is the settled view, keep it.
		cols = cols[:len(days)]
		if !s.warnedDoubling {
			s.warnedDoubling = true
			s.diag.Report("column doubling observed", "columns", len(snap.Columns), "expected", len(days))
		}
	default:
		return nil, &domparse.ParseError{
			Kind: domparse.KindStructural,
			Msg:  fmt.Sprintf("column count mismatch: %d columns for %d visible days", len(snap.Columns), len(days)),
		}
	}

	out := make([]DayEvents, len(days))
	// dayNums spans one extra day on each side so the first and last
	// columns still know their neighbors' day-of-month values.
	dayNums := make([]int, len(days)+2)
	base := dayspan.DayStart(visible.Start)
	for i := range dayNums {
		dayNums[i] = base.AddDate(0, 0, i-1).Day()
	}
	for i := range days {
		out[i].Day = days[i]
	}

	for _, b := range snap.Blocks {
		if b.Column < 0 || b.Column >= len(days) {
			// Blocks belonging to the duplicated half during a
			// transition; out-of-range otherwise means the same
			// instability, so skip rather than guess.
			continue
		}

		raw := s.rawFromBlock(b, snap.GridHeight, dayNums)
		parsed, perr := domparse.Parse(raw)
		if perr != nil {
			return nil, perr
		}
		if s.cfg.Verify && parsed.EndTime < parsed.StartTime {
			s.diag.Report("parsed end precedes start",
				"day", days[b.Column], "summary", parsed.Summary,
				"start", parsed.StartTime, "end", parsed.EndTime)
		}
		out[b.Column].Events = append(out[b.Column].Events, parsed)
	}

	for _, b := range snap.AllDay {
		if b.Column < 0 || b.Column >= len(days) {
			continue
		}
		out[b.Column].AllDay = append(out[b.Column].AllDay, domparse.ParseAllDay(b.CalendarID, b.Summary))
	}

	return out, nil
}

// rawFromBlock derives the geometry hints for one block: am/pm from
// which side of the column midpoint an edge sits on, clipping from
// contact with the grid edge. dayNums is padded by one day on each
// side, so the block's column indexes it at +1.
func (s *Scanner) rawFromBlock(b Block, gridHeight float64, dayNums []int) domparse.RawEvent {
	mid := gridHeight / 2
	bottom := b.Top + b.Height

	return domparse.RawEvent{
		Aria:          b.Aria,
		Summary:       b.Summary,
		Times:         b.Times,
		CalendarID:    b.CalendarID,
		AMStart:       b.Top < mid,
		AMEnd:         bottom < mid,
		TouchesTop:    b.Top <= clipSlack,
		TouchesBottom: bottom >= gridHeight-clipSlack,
		PrevDayNumber: dayNums[b.Column],
		DayNumber:     dayNums[b.Column+1],
		NextDayNumber: dayNums[b.Column+2],
	}
}
