package timeline

import (
	"fmt"
	"time"
)

// RangeKind selects the granularity of a resolved display interval.
type RangeKind string

const (
	RangeDay   RangeKind = "day"
	RangeWeek  RangeKind = "week"
	RangeMonth RangeKind = "month"
	RangeYear  RangeKind = "year"
)

// Valid reports whether k is a known range kind.
func (k RangeKind) Valid() bool {
	switch k {
	case RangeDay, RangeWeek, RangeMonth, RangeYear:
		return true
	default:
		return false
	}
}

// Interval is a half-open time window [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls within the interval.
func (iv Interval) Contains(t time.Time) bool {
	return !t.Before(iv.Start) && t.Before(iv.End)
}

// Covers reports whether iv fully contains other.
func (iv Interval) Covers(other Interval) bool {
	return !other.Start.Before(iv.Start) && !other.End.After(iv.End)
}

// Days enumerates the midnight starting each calendar day in [Start, End),
// in the interval's own location.
func (iv Interval) Days() []time.Time {
	loc := iv.Start.Location()
	day := StartOfDay(iv.Start, loc)
	var days []time.Time
	for day.Before(iv.End) {
		days = append(days, day)
		day = day.AddDate(0, 0, 1)
	}
	return days
}

// StartOfDay floors t to midnight in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// Resolve computes the canonical display interval for the given kind anchored
// at anchor, in loc. Weeks are Monday-first. All intervals are half-open:
// the end instant is the first moment outside the range.
//
// An unknown kind is the only error condition; time arithmetic itself
// normalizes out-of-range components rather than failing.
func Resolve(kind RangeKind, anchor time.Time, loc *time.Location) (Interval, error) {
	if loc == nil {
		loc = time.Local
	}
	dayStart := StartOfDay(anchor, loc)

	switch kind {
	case RangeDay:
		return Interval{Start: dayStart, End: dayStart.AddDate(0, 0, 1)}, nil

	case RangeWeek:
		// Monday = 0 .. Sunday = 6.
		offset := (int(dayStart.Weekday()) + 6) % 7
		weekStart := dayStart.AddDate(0, 0, -offset)
		return Interval{Start: weekStart, End: weekStart.AddDate(0, 0, 7)}, nil

	case RangeMonth:
		monthStart := time.Date(dayStart.Year(), dayStart.Month(), 1, 0, 0, 0, 0, loc)
		return Interval{Start: monthStart, End: monthStart.AddDate(0, 1, 0)}, nil

	case RangeYear:
		yearStart := time.Date(dayStart.Year(), time.January, 1, 0, 0, 0, 0, loc)
		return Interval{Start: yearStart, End: yearStart.AddDate(1, 0, 0)}, nil

	default:
		return Interval{}, fmt.Errorf("resolve: unknown range kind %q", kind)
	}
}
