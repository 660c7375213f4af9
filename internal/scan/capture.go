package scan

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"

	"caltrack/internal/domparse"
	"caltrack/internal/model"
)

// extractScript runs inside the calendar page and reads everything the
// scanner needs in a single pass: the time-grid landmark, day columns,
// timed event blocks with their pixel geometry, and the all-day region.
// The returned object mirrors the Snapshot JSON shape.
const extractScript = `(() => {
	const grid = document.querySelector('[role="grid"][data-view-grid]');
	if (!grid) {
		return { gridHeight: 0, columns: [], blocks: [], allDay: [] };
	}
	const gridRect = grid.getBoundingClientRect();

	const columns = [];
	const columnEls = Array.from(grid.querySelectorAll('[role="gridcell"][data-day-column]'));
	for (const col of columnEls) {
		const r = col.getBoundingClientRect();
		columns.push({ left: r.left, width: r.width });
	}

	const blocks = [];
	columnEls.forEach((col, idx) => {
		const colRect = col.getBoundingClientRect();
		for (const ev of col.querySelectorAll('[role="button"][aria-label]')) {
			const r = ev.getBoundingClientRect();
			const times = ev.querySelector('[data-start-time]');
			blocks.push({
				column: idx,
				aria: ev.getAttribute('aria-label') || '',
				summary: ev.getAttribute('data-summary') || (ev.textContent || '').trim(),
				times: times ? (times.textContent || '') : '',
				calendarId: ev.getAttribute('data-calendar-id') || '',
				top: r.top - colRect.top,
				height: r.height,
			});
		}
	});

	const allDay = [];
	const allDayRegion = document.querySelector('[data-all-day-row]');
	if (allDayRegion) {
		const regionRect = allDayRegion.getBoundingClientRect();
		for (const ev of allDayRegion.querySelectorAll('[role="button"][aria-label]')) {
			const r = ev.getBoundingClientRect();
			let column = -1;
			columns.forEach((c, idx) => {
				const center = r.left + r.width / 2;
				if (center >= c.left && center < c.left + c.width) column = idx;
			});
			allDay.push({
				column: column,
				summary: ev.getAttribute('data-summary') || (ev.textContent || '').trim(),
				calendarId: ev.getAttribute('data-calendar-id') || '',
			});
		}
	}

	return { gridHeight: gridRect.height, columns: columns, blocks: blocks, allDay: allDay };
})()`

// Capture attaches a headless Chromium instance to the configured
// calendar page, waits for the grid landmark, and reads one Snapshot.
func (s *Scanner) Capture(parentCtx context.Context) (Snapshot, error) {
	if s.cfg.PageURL == "" {
		return Snapshot{}, fmt.Errorf("capture: page URL is required")
	}

	ctx, cancel := chromedp.NewContext(parentCtx)
	defer cancel()

	ctx, timeoutCancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer timeoutCancel()

	var snap Snapshot
	tasks := chromedp.Tasks{
		chromedp.Navigate(s.cfg.PageURL),
		chromedp.WaitVisible(`[role="grid"][data-view-grid]`, chromedp.ByQuery),
		// Small extra delay so in-flight layout animations settle.
		chromedp.Sleep(250 * time.Millisecond),
		chromedp.Evaluate(extractScript, &snap),
	}

	if err := chromedp.Run(ctx, tasks); err != nil {
		return Snapshot{}, fmt.Errorf("capture: chromedp run failed: %w", err)
	}
	return snap, nil
}

// ScanPage is the full fast path: capture a snapshot and interpret it
// against the visible range. The ParseError is non-nil for recoverable
// scan failures; err is reserved for browser-level problems.
func (s *Scanner) ScanPage(ctx context.Context, visible model.Range) ([]DayEvents, *domparse.ParseError, error) {
	snap, err := s.Capture(ctx)
	if err != nil {
		return nil, nil, err
	}
	res, perr := s.Scan(snap, visible)
	return res, perr, nil
}
