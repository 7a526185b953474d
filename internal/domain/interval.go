package domain

import (
	"time"

	"github.com/google/uuid"
)

// endOfDay is the last instant of a UTC day at the millisecond precision clients send.
const endOfDay = 24*time.Hour - time.Millisecond

type Interval struct {
	Start time.Time
	End   time.Time
}

// Overlaps reports whether two closed intervals share at least one instant.
// Touching endpoints overlap.
func (i Interval) Overlaps(o Interval) bool {
	return !i.Start.After(o.End) && !i.End.Before(o.Start)
}

func (i Interval) Ordered() bool {
	return !i.Start.After(i.End)
}

// DayAligned shifts the submitted dates by offsetMinutes (minutes east of UTC) and widens
// the result to whole UTC days: start at 00:00:00.000, end at 23:59:59.999.
func DayAligned(startDate, endDate time.Time, offsetMinutes int) Interval {
	shift := time.Duration(offsetMinutes) * time.Minute
	return Interval{
		Start: StartOfDay(startDate.UTC().Add(shift)),
		End:   StartOfDay(endDate.UTC().Add(shift)).Add(endOfDay),
	}
}

func StartOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// EarliestStart is the first day an entry submitted at now may start on: yesterday.
func EarliestStart(now time.Time) time.Time {
	return StartOfDay(now).AddDate(0, 0, -1)
}

// HasConflict reports whether proposed overlaps any existing entry other than exclude.
func HasConflict(existing []Entry, proposed Interval, exclude uuid.UUID) bool {
	for _, e := range existing {
		if exclude != uuid.Nil && e.UUID == exclude {
			continue
		}
		if e.Interval().Overlaps(proposed) {
			return true
		}
	}
	return false
}
