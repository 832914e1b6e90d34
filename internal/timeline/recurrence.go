package timeline

import (
	"sort"
	"time"

	"plancal/internal/model"
)

const (
	// deltaTolerance is how much consecutive start-time gaps may differ
	// while still counting as a regular series.
	deltaTolerance = time.Hour
	// periodTolerance is how far the common gap may sit from a known
	// daily/weekly/monthly period.
	periodTolerance = 24 * time.Hour
)

// knownPeriods are the repeat intervals the fallback heuristic recognizes.
var knownPeriods = []time.Duration{
	24 * time.Hour,      // daily
	7 * 24 * time.Hour,  // weekly
	30 * 24 * time.Hour, // roughly monthly
}

// IsRecurring classifies an event as part of a recurring series.
//
// Events carrying recurrence metadata are authoritative: an instance
// references its series master via RecurringEventID, and a master carries
// RecurrenceRules. Absent metadata, a title-matching heuristic over the
// corpus applies: at least two events with the exact same title whose
// consecutive start-time gaps agree within an hour, with the common gap
// near a daily, weekly, or monthly period.
//
// The heuristic is intentionally approximate. Same-named one-off events at
// a regular cadence will false-positive, irregular series will
// false-negative. Both are accepted behavior.
//
// Pure function: reads only its arguments, never ambient state.
func IsRecurring(event model.Event, corpus []model.Event) bool {
	if event.RecurringEventID != "" || len(event.RecurrenceRules) > 0 {
		return true
	}
	if event.Title == "" || !event.HasStart() {
		return false
	}

	var starts []time.Time
	for _, e := range corpus {
		if e.Title == event.Title && e.HasStart() {
			starts = append(starts, e.Start)
		}
	}
	if len(starts) < 2 {
		return false
	}

	sort.Slice(starts, func(i, j int) bool { return starts[i].Before(starts[j]) })

	base := starts[1].Sub(starts[0])
	for i := 2; i < len(starts); i++ {
		d := starts[i].Sub(starts[i-1])
		if absDuration(d-base) > deltaTolerance {
			return false
		}
	}

	for _, p := range knownPeriods {
		if absDuration(base-p) <= periodTolerance {
			return true
		}
	}
	return false
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
