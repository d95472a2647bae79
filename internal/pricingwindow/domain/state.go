package domain

import (
	"fmt"
	"time"
)

var allowedTransitions = map[Status][]Status{
	StatusDraft:  {StatusActive},
	StatusActive: {StatusClosed},
	StatusClosed: {StatusArchived},
}

// CanTransition reports whether a window may move from one status to another.
func CanTransition(from, to Status) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// FormatWindowID renders {year}-W{NN}.
func FormatWindowID(year, number int) string {
	return fmt.Sprintf("%d-W%02d", year, number)
}

// Period is a computed window schedule.
type Period struct {
	WindowNumber       int
	Year               int
	StartDate          time.Time
	EndDate            time.Time
	SubmissionDeadline time.Time
}

func (p Period) WindowID() string { return FormatWindowID(p.Year, p.WindowNumber) }

// BiWeeklyPeriod derives the window that starts on the local calendar day of
// now: number dayOfYear/14, days [today, today+13], deadline two days before
// the end at cutoffHour local time. Returned times are UTC.
func BiWeeklyPeriod(now time.Time, loc *time.Location, leadDays, cutoffHour int) Period {
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	end := start.AddDate(0, 0, 13)
	deadlineDay := end.AddDate(0, 0, -leadDays)
	deadline := time.Date(deadlineDay.Year(), deadlineDay.Month(), deadlineDay.Day(), cutoffHour, 0, 0, 0, loc)

	return Period{
		WindowNumber:       local.YearDay() / 14,
		Year:               local.Year(),
		StartDate:          start.UTC(),
		EndDate:            end.UTC(),
		SubmissionDeadline: deadline.UTC(),
	}
}

// Overlaps is the closed-interval intersection test used for window creation.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return !aStart.After(bEnd) && !aEnd.Before(bStart)
}
