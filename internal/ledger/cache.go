// Package ledger maintains the incrementally built per-day, per-calendar
// minute totals and decides which part of a requested range still needs
// fetching. Entries are authoritative once present: a missing entry
// means "unknown", never zero.
package ledger

import (
	"sync"
	"time"

	"caltrack/internal/dayspan"
	"caltrack/internal/model"
)

// Cache holds cumulative minutes keyed by day-string then calendar
// identifier. It is safe for concurrent folds of different calendars:
// every write is a per-entry merge, so a fold never clobbers another
// calendar's concurrently written sub-map entries.
type Cache struct {
	mu      sync.RWMutex
	days    map[string]map[string]float64
	version uint64
}

func New() *Cache {
	return &Cache{days: make(map[string]map[string]float64)}
}

// Version is a monotonically increasing counter bumped on every fold.
// Consumers use it as an explicit memoization key for derived views
// instead of relying on object identity.
func (c *Cache) Version() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.version
}

// Has reports whether an authoritative entry exists for the given day
// and calendar.
func (c *Cache) Has(day, calendarID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.days[day][calendarID]
	return ok
}

// Get returns the cached minutes for one day and calendar, with a
// presence flag distinguishing "zero events" from "not fetched".
func (c *Cache) Get(day, calendarID string) (float64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.days[day][calendarID]
	return v, ok
}

// Fold merges freshly split contributions for one calendar into the
// cache. Every (day, calendar) entry in the fetched range is first
// reset to zero so that a truly empty day is recorded as known-zero and
// a re-fetched range replaces rather than accumulates.
func (c *Cache) Fold(calendarID string, fetchedDays []string, contribs []model.Contribution) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, day := range fetchedDays {
		sub := c.days[day]
		if sub == nil {
			sub = make(map[string]float64)
			c.days[day] = sub
		}
		sub[calendarID] = 0
	}

	for _, contrib := range contribs {
		sub := c.days[contrib.Day]
		if sub == nil {
			sub = make(map[string]float64)
			c.days[contrib.Day] = sub
		}
		sub[calendarID] += contrib.Minutes
	}

	c.version++
}

// Extract produces a read-only dense view for the requested days and
// calendars. Fetched-but-empty combinations appear as explicit zeros;
// never-fetched combinations are absent.
func (c *Cache) Extract(calendarIDs, days []string) map[string]map[string]float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]map[string]float64, len(days))
	for _, day := range days {
		row := make(map[string]float64, len(calendarIDs))
		for _, cal := range calendarIDs {
			if v, ok := c.days[day][cal]; ok {
				row[cal] = v
			}
		}
		out[day] = row
	}
	return out
}

// Bounds finds the minimal contiguous sub-range of the requested days
// that is not yet cached for the given calendar: a single linear scan
// from each end, since the UI always requests one contiguous range and
// interior gaps are not modeled. The returned range spans whole days
// from the anchor, exclusive end. ok is false when every day is already
// cached.
func (c *Cache) Bounds(calendarID string, days []string, anchor time.Time) (r model.Range, ok bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	first := -1
	for i, day := range days {
		if _, cached := c.days[day][calendarID]; !cached {
			first = i
			break
		}
	}
	if first == -1 {
		return model.Range{}, false
	}

	last := first
	for i := len(days) - 1; i > first; i-- {
		if _, cached := c.days[days[i]][calendarID]; !cached {
			last = i
			break
		}
	}

	base := dayspan.DayStart(anchor)
	return model.Range{
		Start: base.AddDate(0, 0, first),
		End:   base.AddDate(0, 0, last+1),
	}, true
}

// ReplaceAll swaps in a fully loaded data set, used when restoring the
// ledger from its persistent store at startup.
func (c *Cache) ReplaceAll(data map[string]map[string]float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if data == nil {
		data = make(map[string]map[string]float64)
	}
	c.days = data
	c.version++
}

// ForCalendar returns the (day, minutes) entries currently held for one
// calendar across the given days, used when persisting a fold.
func (c *Cache) ForCalendar(calendarID string, days []string) map[string]float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]float64, len(days))
	for _, day := range days {
		if v, ok := c.days[day][calendarID]; ok {
			out[day] = v
		}
	}
	return out
}
