package scan

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"caltrack/internal/domparse"
	"caltrack/internal/model"
)

// Visible week: 2022-10-09 .. 2022-10-15.
var visibleWeek = model.Range{
	Start: time.Date(2022, time.October, 9, 0, 0, 0, 0, time.UTC),
	End:   time.Date(2022, time.October, 15, 12, 0, 0, 0, time.UTC),
}

const gridHeight = 1440.0 // 1px per minute keeps fixtures readable

func weekColumns(n int) []Column {
	cols := make([]Column, n)
	for i := range cols {
		cols[i] = Column{Left: float64(i) * 100, Width: 100}
	}
	return cols
}

func block(col int, aria, summary, times, cal string, startMin, endMin float64) Block {
	return Block{
		Column:     col,
		Aria:       aria,
		Summary:    summary,
		Times:      times,
		CalendarID: cal,
		Top:        startMin,
		Height:     endMin - startMin,
	}
}

func TestScanWeek(t *testing.T) {
	snap := Snapshot{
		GridHeight: gridHeight,
		Columns:    weekColumns(7),
		Blocks: []Block{
			// 9:00–10:00 on the first visible day.
			block(0, "9:00am – 10:00am, Team Sync", "Team Sync", "9:00am", "work", 9*60, 10*60),
			// 7:00pm–8:30pm two days later.
			block(2, "7:00pm – 8:30pm, Dinner", "Dinner", "7:00pm", "home", 19*60, 20.5*60),
		},
		AllDay: []AllDayBlock{
			{Column: 3, Summary: "Holiday", CalendarID: "home"},
		},
	}

	s := New(Config{PageURL: "http://calendar.local"}, nil)
	res, perr := s.Scan(snap, visibleWeek)
	require.Nil(t, perr)
	require.Len(t, res, 7)

	assert.Equal(t, "2022-10-09", res[0].Day)
	require.Len(t, res[0].Events, 1)
	assert.Equal(t, domparse.Parsed{CalendarID: "work", Summary: "Team Sync", StartTime: 9, EndTime: 10}, res[0].Events[0])

	require.Len(t, res[2].Events, 1)
	assert.Equal(t, 19.0, res[2].Events[0].StartTime)
	assert.Equal(t, 20.5, res[2].Events[0].EndTime)

	require.Len(t, res[3].AllDay, 1)
	assert.Equal(t, domparse.Parsed{CalendarID: "home", Summary: "Holiday", StartTime: 0, EndTime: 24}, res[3].AllDay[0])
}

func TestScanGeometryHints(t *testing.T) {
	// An afternoon block rendered below the column midpoint must get a
	// PM hint even though its label says "1:00".
	snap := Snapshot{
		GridHeight: gridHeight,
		Columns:    weekColumns(7),
		Blocks: []Block{
			block(1, "1:00 – 2:00, Lunch", "Lunch", "1:00 – 2:00", "home", 13*60, 14*60),
		},
	}

	s := New(Config{}, nil)
	res, perr := s.Scan(snap, visibleWeek)
	require.Nil(t, perr)
	require.Len(t, res[1].Events, 1)
	assert.Equal(t, 13.0, res[1].Events[0].StartTime)
	assert.Equal(t, 14.0, res[1].Events[0].EndTime)
}

func TestScanClippedBlock(t *testing.T) {
	// A block touching the bottom edge is clipped: its true end is the
	// day boundary regardless of the label.
	snap := Snapshot{
		GridHeight: gridHeight,
		Columns:    weekColumns(7),
		Blocks: []Block{
			block(4, "10:00pm – 6:00am, Night shift", "Night shift", "10:00pm", "work", 22*60, 24*60),
		},
	}

	s := New(Config{}, nil)
	res, perr := s.Scan(snap, visibleWeek)
	require.Nil(t, perr)
	require.Len(t, res[4].Events, 1)
	assert.Equal(t, 22.0, res[4].Events[0].StartTime)
	assert.Equal(t, 24.0, res[4].Events[0].EndTime)
}

func TestScanColumnDoubling(t *testing.T) {
	// During a view transition the column set is momentarily doubled;
	// the first half is the settled view.
	snap := Snapshot{
		GridHeight: gridHeight,
		Columns:    weekColumns(14),
		Blocks: []Block{
			block(0, "9:00am – 10:00am, Sync", "Sync", "9:00am – 10:00am", "work", 9*60, 10*60),
			// A stray block still attached to the duplicated half.
			block(9, "9:00am – 10:00am, Ghost", "Ghost", "9:00am – 10:00am", "work", 9*60, 10*60),
		},
	}

	s := New(Config{}, nil)
	res, perr := s.Scan(snap, visibleWeek)
	require.Nil(t, perr)
	require.Len(t, res, 7)
	require.Len(t, res[0].Events, 1)
	for i := 1; i < 7; i++ {
		assert.Empty(t, res[i].Events, "ghost block must not land in column %d", i)
	}
}

func TestScanColumnMismatch(t *testing.T) {
	snap := Snapshot{
		GridHeight: gridHeight,
		Columns:    weekColumns(5),
	}

	s := New(Config{}, nil)
	_, perr := s.Scan(snap, visibleWeek)
	require.NotNil(t, perr)
	assert.Equal(t, domparse.KindStructural, perr.Kind)
}

func TestScanMissingGridLandmark(t *testing.T) {
	s := New(Config{}, nil)
	_, perr := s.Scan(Snapshot{Columns: weekColumns(7)}, visibleWeek)
	require.NotNil(t, perr)
	assert.Equal(t, domparse.KindStructural, perr.Kind)
}

func TestScanFailsWholePassOnBadBlock(t *testing.T) {
	snap := Snapshot{
		GridHeight: gridHeight,
		Columns:    weekColumns(7),
		Blocks: []Block{
			block(0, "9:00am – 10:00am, Good", "Good", "9:00am – 10:00am", "work", 9*60, 10*60),
			block(1, "no usable text", "Opaque", "soon", "work", 11*60, 12*60),
		},
	}

	s := New(Config{}, nil)
	_, perr := s.Scan(snap, visibleWeek)
	require.NotNil(t, perr)
	assert.Equal(t, domparse.KindExtraction, perr.Kind)
}

type recordingDiag struct {
	msgs []string
}

func (r *recordingDiag) Report(msg string, _ ...any) { r.msgs = append(r.msgs, msg) }

func TestScanVerifyReportsInvertedTimes(t *testing.T) {
	// The parser does not enforce start <= end; a label whose end
	// folds before its start must be surfaced through the sink.
	snap := Snapshot{
		GridHeight: gridHeight,
		Columns:    weekColumns(7),
		Blocks: []Block{
			block(0, "11:30pm – 11:00am, Overnight entry", "Overnight entry", "11:30pm – 11:00am", "work", 23.5*60, 24*60-25),
		},
	}

	diag := &recordingDiag{}
	s := New(Config{Verify: true}, diag)
	res, perr := s.Scan(snap, visibleWeek)
	require.Nil(t, perr)
	require.Len(t, res[0].Events, 1)
	require.NotEmpty(t, diag.msgs)
	assert.Contains(t, diag.msgs[0], "end precedes start")
}
