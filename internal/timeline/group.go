package timeline

import (
	"sort"
	"time"

	"plancal/internal/model"
)

// GroupOptions controls optional filtering during grouping.
type GroupOptions struct {
	// HideRecurring removes events classified as recurring by IsRecurring.
	// Detection runs over the entire supplied event list, not just the part
	// that falls inside the interval, so that sparse sampling across a wide
	// window still picks up repetition.
	HideRecurring bool
}

// Group buckets events by calendar day within the interval.
//
// Every day in [interval.Start, interval.End) gets a bucket, empty or not.
// Span rules:
//   - All-day events cover [startDay, endDay) — end exclusive, matching the
//     source calendar convention where an all-day end date is the day after
//     the last covered day. A zero-span or inverted all-day event lands only
//     on its start day.
//   - Timed multi-day events cover [startDay, endDay] — end inclusive. The
//     asymmetry with the all-day rule is long-standing observed behavior and
//     is kept intact; see DESIGN.md.
//
// Within each bucket events are ordered by start time ascending; events
// without a start time sort last. An event with neither instant cannot be
// placed on any day and is omitted.
func Group(events []model.Event, interval Interval, opts GroupOptions) map[time.Time][]model.Event {
	loc := interval.Start.Location()

	if opts.HideRecurring {
		kept := make([]model.Event, 0, len(events))
		for _, e := range events {
			if !IsRecurring(e, events) {
				kept = append(kept, e)
			}
		}
		events = kept
	}

	buckets := make(map[time.Time][]model.Event)
	for _, day := range interval.Days() {
		buckets[day] = nil
	}

	assign := func(day time.Time, e model.Event) {
		if _, ok := buckets[day]; ok {
			buckets[day] = append(buckets[day], e)
		}
	}

	for _, e := range events {
		switch {
		case e.AllDay:
			startDay := StartOfDay(e.Start, loc)
			endDay := StartOfDay(e.End, loc)
			if !endDay.After(startDay) {
				assign(startDay, e)
				continue
			}
			for day := startDay; day.Before(endDay); day = day.AddDate(0, 0, 1) {
				assign(day, e)
			}

		case e.HasStart() && e.HasEnd():
			startDay := StartOfDay(e.Start, loc)
			endDay := StartOfDay(e.End, loc)
			for day := startDay; !day.After(endDay); day = day.AddDate(0, 0, 1) {
				assign(day, e)
			}

		case e.HasStart():
			assign(StartOfDay(e.Start, loc), e)

		case e.HasEnd():
			assign(StartOfDay(e.End, loc), e)
		}
	}

	for day, list := range buckets {
		sort.SliceStable(list, func(i, j int) bool {
			a, b := list[i], list[j]
			switch {
			case !a.HasStart():
				return false
			case !b.HasStart():
				return true
			default:
				return a.Start.Before(b.Start)
			}
		})
		buckets[day] = list
	}

	return buckets
}
