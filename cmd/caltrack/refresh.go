package main

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"caltrack/internal/config"
	"caltrack/internal/dayspan"
	"caltrack/internal/ics"
	"caltrack/internal/ledger"
	appLog "caltrack/internal/log"
	"caltrack/internal/model"
	"caltrack/internal/scan"
)

// app wires the refresh pipeline together: DOM scan fast path, ICS
// fallback, ledger fold and persistence.
type app struct {
	cfg     *config.Config
	loc     *time.Location
	cache   *ledger.Cache
	store   *ledger.Store
	scanner *scan.Scanner
	fetcher *ics.Fetcher
}

// window returns the currently tracked range and its day keys.
func (a *app) window(now time.Time) (model.Range, []string) {
	base := dayspan.DayStart(now.In(a.loc))
	win := model.Range{
		Start: base.AddDate(0, 0, -a.cfg.BackfillDays),
		End:   base.AddDate(0, 0, a.cfg.HorizonDays),
	}
	return win, dayspan.DaysBetween(win.Start, win.End)
}

// refresh runs one full cycle. The DOM scan is tried first; any scan
// or parse failure falls back to fetching the still-missing bounds per
// calendar from its ICS feed. A failed scan never touches the ledger.
func (a *app) refresh(ctx context.Context) error {
	win, days := a.window(time.Now())

	results, perr, err := a.scanner.ScanPage(ctx, win)
	switch {
	case err != nil:
		appLog.Error("page capture failed, using fetch fallback", err)
	case perr != nil:
		appLog.Warn("scan not usable, using fetch fallback", "kind", perr.Kind.String(), "detail", perr.Msg)
	default:
		a.foldScan(ctx, results, days)
		if a.cfg.Verify {
			a.verifyAgainstFeeds(ctx, win, days)
		}
		return nil
	}

	return a.fetchMissing(ctx, win, days)
}

// foldScan folds one successful scan pass into the ledger, one fold
// per configured calendar so concurrent readers always see a calendar
// atomically replaced.
func (a *app) foldScan(ctx context.Context, results []scan.DayEvents, days []string) {
	byCalendar := make(map[string][]model.Contribution)
	for _, day := range results {
		for _, ev := range append(day.Events, day.AllDay...) {
			minutes := (ev.EndTime - ev.StartTime) * 60
			if minutes < 0 || math.IsNaN(minutes) {
				appLog.Warn("skipping inverted parsed event",
					"day", day.Day, "summary", ev.Summary,
					"start", ev.StartTime, "end", ev.EndTime)
				continue
			}
			byCalendar[ev.CalendarID] = append(byCalendar[ev.CalendarID], model.Contribution{
				Day:     day.Day,
				Minutes: minutes,
			})
		}
	}

	for _, cal := range a.cfg.Calendars {
		a.cache.Fold(cal.ID, days, byCalendar[cal.ID])
		a.persistCalendar(ctx, cal.ID, days)
	}
	appLog.Info("scan folded", "days", len(days), "calendars", len(a.cfg.Calendars))
}

// fetchMissing narrows each calendar's fetch to the bounds not yet
// covered by the ledger and folds the results. Calendars fetch
// concurrently; each fold only touches its own calendar's entries.
func (a *app) fetchMissing(ctx context.Context, win model.Range, days []string) error {
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)

	for _, cal := range a.cfg.Calendars {
		bounds, ok := a.cache.Bounds(cal.ID, days, win.Start)
		if !ok {
			continue
		}
		if cal.ICSURL == "" {
			appLog.Warn("calendar has no ICS fallback", "calendar", cal.ID)
			continue
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := a.fetchCalendar(ctx, cal, bounds); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("calendar %s: %w", cal.ID, err))
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if len(errs) > 0 {
		return errorsAggregate(errs)
	}
	return nil
}

func (a *app) fetchCalendar(ctx context.Context, cal config.CalendarConfig, bounds model.Range) error {
	src := ics.Source{CalendarID: cal.ID, URL: cal.ICSURL}
	ivs, err := a.fetcher.FetchIntervals(ctx, src, bounds, a.loc)
	if err != nil {
		return err
	}

	var contribs []model.Contribution
	for _, iv := range ivs {
		start, end := dayspan.ClampToWindow(iv.Start, iv.End, bounds)
		contribs = append(contribs, dayspan.SplitAcrossDays(start, end)...)
	}

	fetchedDays := dayspan.DaysBetween(bounds.Start, bounds.End)
	a.cache.Fold(cal.ID, fetchedDays, contribs)
	a.persistCalendar(ctx, cal.ID, fetchedDays)

	appLog.Info("fallback fetch folded", "calendar", cal.ID,
		"days", len(fetchedDays), "intervals", len(ivs))
	return nil
}

func (a *app) persistCalendar(ctx context.Context, calendarID string, days []string) {
	if a.store == nil {
		return
	}
	entries := a.cache.ForCalendar(calendarID, days)
	if err := a.store.SaveCalendarDays(ctx, calendarID, entries); err != nil {
		appLog.Error("ledger persistence failed", err, "calendar", calendarID)
	}
}

// verifyAgainstFeeds cross-checks DOM-derived totals against the
// authoritative feeds for the same window. Development aid only; any
// mismatch is reported, never acted on.
func (a *app) verifyAgainstFeeds(ctx context.Context, win model.Range, days []string) {
	for _, cal := range a.cfg.Calendars {
		if cal.ICSURL == "" {
			continue
		}
		src := ics.Source{CalendarID: cal.ID, URL: cal.ICSURL}
		ivs, err := a.fetcher.FetchIntervals(ctx, src, win, a.loc)
		if err != nil {
			appLog.Warn("verify fetch failed", "calendar", cal.ID, "err", err)
			continue
		}

		want := make(map[string]float64)
		for _, iv := range ivs {
			start, end := dayspan.ClampToWindow(iv.Start, iv.End, win)
			for _, c := range dayspan.SplitAcrossDays(start, end) {
				want[c.Day] += c.Minutes
			}
		}

		for _, day := range days {
			got, ok := a.cache.Get(day, cal.ID)
			if !ok {
				continue
			}
			if math.Abs(got-want[day]) > 1 {
				appLog.Warn("scan/feed mismatch",
					"calendar", cal.ID, "day", day,
					"scanned_minutes", got, "feed_minutes", want[day])
			}
		}
	}
}

func errorsAggregate(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	var b strings.Builder
	for i, e := range errs {
		if i > 0 {
			b.WriteString("; ")
		}
		b.WriteString(e.Error())
	}
	return errors.New(b.String())
}
