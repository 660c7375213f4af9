package ics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"caltrack/internal/model"
)

const fixtureICS = `BEGIN:VCALENDAR
VERSION:2.0
PRODID:-//caltrack//test//EN
BEGIN:VEVENT
UID:single@test
DTSTART:20221009T090000Z
DTEND:20221009T103000Z
SUMMARY:Planning
END:VEVENT
BEGIN:VEVENT
UID:daily@test
DTSTART:20221010T130000Z
DTEND:20221010T140000Z
RRULE:FREQ=DAILY;COUNT=3
SUMMARY:Standup
END:VEVENT
BEGIN:VEVENT
UID:allday@test
DTSTART;VALUE=DATE:20221012
DTEND;VALUE=DATE:20221013
SUMMARY:Holiday
END:VEVENT
END:VCALENDAR
`

var testWindow = model.Range{
	Start: time.Date(2022, time.October, 9, 0, 0, 0, 0, time.UTC),
	End:   time.Date(2022, time.October, 16, 0, 0, 0, 0, time.UTC),
}

func TestParseICS(t *testing.T) {
	src := Source{CalendarID: "work", URL: "https://example.com/feed.ics"}

	events, err := ParseICS(src, []byte(fixtureICS))
	require.NoError(t, err)
	require.Len(t, events, 3)

	byUID := make(map[string]ParsedEvent)
	for _, ev := range events {
		byUID[ev.UID] = ev
	}

	planning := byUID["single@test"]
	assert.Equal(t, "Planning", planning.Summary)
	assert.False(t, planning.AllDay)
	assert.Empty(t, planning.RawRRule)

	standup := byUID["daily@test"]
	assert.Equal(t, "FREQ=DAILY;COUNT=3", standup.RawRRule)

	holiday := byUID["allday@test"]
	assert.True(t, holiday.AllDay)
}

func TestParseICSEmptyBody(t *testing.T) {
	_, err := ParseICS(Source{CalendarID: "work"}, nil)
	require.Error(t, err)
}

func TestExpandIntervals(t *testing.T) {
	src := Source{CalendarID: "work"}
	events, err := ParseICS(src, []byte(fixtureICS))
	require.NoError(t, err)

	ivs, err := ExpandIntervals(events, testWindow, time.UTC)
	require.NoError(t, err)
	require.Len(t, ivs, 5, "1 single + 3 recurring + 1 all-day")

	sort.Slice(ivs, func(i, j int) bool { return ivs[i].Start.Before(ivs[j].Start) })

	assert.Equal(t, "Planning", ivs[0].Summary)
	assert.Equal(t, time.Date(2022, time.October, 9, 9, 0, 0, 0, time.UTC), ivs[0].Start)
	assert.Equal(t, 90.0, ivs[0].End.Sub(ivs[0].Start).Minutes())

	var standups int
	for _, iv := range ivs {
		if iv.Summary == "Standup" {
			standups++
			assert.Equal(t, 60.0, iv.End.Sub(iv.Start).Minutes())
		}
	}
	assert.Equal(t, 3, standups)

	last := ivs[len(ivs)-1]
	assert.Equal(t, "Holiday", last.Summary)
	assert.Equal(t, time.Date(2022, time.October, 12, 0, 0, 0, 0, time.UTC), last.Start)
	assert.Equal(t, time.Date(2022, time.October, 13, 0, 0, 0, 0, time.UTC), last.End, "all-day spans midnight to midnight")

	for _, iv := range ivs {
		assert.Equal(t, "work", iv.CalendarID)
	}
}

func TestExpandIntervalsOutsideWindow(t *testing.T) {
	src := Source{CalendarID: "work"}
	events, err := ParseICS(src, []byte(fixtureICS))
	require.NoError(t, err)

	win := model.Range{
		Start: time.Date(2023, time.January, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2023, time.January, 8, 0, 0, 0, 0, time.UTC),
	}
	ivs, err := ExpandIntervals(events, win, time.UTC)
	require.NoError(t, err)
	assert.Empty(t, ivs)
}

func TestFetchIntervalsConditional(t *testing.T) {
	var requests int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		if r.Header.Get("If-None-Match") == `"v1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		_, _ = w.Write([]byte(fixtureICS))
	}))
	defer srv.Close()

	f := NewFetcher(t.TempDir())
	src := Source{CalendarID: "work", URL: srv.URL}
	ctx := context.Background()

	ivs, err := f.FetchIntervals(ctx, src, testWindow, time.UTC)
	require.NoError(t, err)
	assert.Len(t, ivs, 5)

	// Second fetch is served from the conditional-request cache.
	res, err := f.FetchOne(ctx, src)
	require.NoError(t, err)
	assert.True(t, res.FromCache)
	assert.Equal(t, 2, requests)
}

func TestRedactURL(t *testing.T) {
	assert.Equal(t, "https://example.com/...(redacted)", redactURL("https://example.com/private.ics?token=abcd"))
	assert.Equal(t, "ics://...(redacted)", redactURL("not a url"))
}
