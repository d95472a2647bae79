package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusDraft, StatusActive, true},
		{StatusActive, StatusClosed, true},
		{StatusClosed, StatusArchived, true},
		{StatusActive, StatusDraft, false},
		{StatusClosed, StatusActive, false},
		{StatusDraft, StatusClosed, false},
		{StatusArchived, StatusClosed, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CanTransition(tt.from, tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestBiWeeklyPeriod(t *testing.T) {
	now := time.Date(2026, 5, 1, 8, 30, 0, 0, time.UTC)

	p := BiWeeklyPeriod(now, time.UTC, 2, 17)

	assert.Equal(t, 8, p.WindowNumber)
	assert.Equal(t, "2026-W08", p.WindowID())
	assert.Equal(t, time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC), p.StartDate)
	assert.Equal(t, time.Date(2026, 5, 14, 0, 0, 0, 0, time.UTC), p.EndDate)
	assert.Equal(t, time.Date(2026, 5, 12, 17, 0, 0, 0, time.UTC), p.SubmissionDeadline)
}

func TestBiWeeklyPeriodUsesLocalCalendarDay(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*3600)
	// 22:00 UTC on Apr 30 is already May 1 locally.
	now := time.Date(2026, 4, 30, 22, 0, 0, 0, time.UTC)

	p := BiWeeklyPeriod(now, loc, 2, 17)

	assert.Equal(t, "2026-W08", p.WindowID())
	assert.Equal(t, time.Date(2026, 4, 30, 21, 0, 0, 0, time.UTC), p.StartDate)
	assert.Equal(t, time.Date(2026, 5, 12, 14, 0, 0, 0, time.UTC), p.SubmissionDeadline)
}

func TestOverlaps(t *testing.T) {
	day := func(d int) time.Time { return time.Date(2026, 5, d, 0, 0, 0, 0, time.UTC) }
	start, end := day(1), day(14)

	tests := []struct {
		name       string
		from, to   time.Time
		overlapped bool
	}{
		{"starts inside", day(10), day(20), true},
		{"ends inside", day(1).AddDate(0, 0, -5), day(3), true},
		{"contains", day(1).AddDate(0, 0, -1), day(20), true},
		{"contained", day(5), day(7), true},
		{"touches end", day(14), day(27), true},
		{"after", day(15), day(28), false},
		{"before", day(1).AddDate(0, 0, -14), day(1).AddDate(0, 0, -1), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.overlapped, Overlaps(start, end, tt.from, tt.to))
		})
	}
}

func TestFormatWindowID(t *testing.T) {
	assert.Equal(t, "2026-W03", FormatWindowID(2026, 3))
	assert.Equal(t, "2026-W26", FormatWindowID(2026, 26))
}
