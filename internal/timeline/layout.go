package timeline

import (
	"sort"
	"time"

	"plancal/internal/model"
)

const (
	// SlotMinutes is the width of one layout slot.
	SlotMinutes = 30
	// SlotsPerDay is the number of slots in a calendar day.
	SlotsPerDay = 24 * 60 / SlotMinutes

	// UnitsPerSlot is the reference pixel scale (100 units per hour). The
	// engine emits slot indices; multiplying by this constant is the
	// renderer's job, kept here only so both sides agree on the figure.
	UnitsPerSlot = 50
)

// LaidOutEvent is the slot geometry of one timed event on one day.
// Ephemeral: recomputed on every layout pass, never persisted.
type LaidOutEvent struct {
	Event model.Event

	// StartSlot / EndSlot delimit the half-open slot range [StartSlot,
	// EndSlot) within [0, SlotsPerDay].
	StartSlot int
	EndSlot   int

	// ColumnIndex / ColumnCount place the event horizontally among events
	// visible at the same time. Width = available / ColumnCount, offset =
	// ColumnIndex * that width.
	ColumnIndex int
	ColumnCount int
}

// Layout computes slot geometry for the timed events of a single day.
//
// All-day events are skipped; the caller renders those in a separate band.
// Multi-day events are clipped to the day's boundaries. End slots round up,
// so a sub-30-minute event still occupies one full slot. Events whose
// clipped range misses the day entirely are dropped.
//
// Column resolution is per-event: each event's ColumnCount is the size of
// the set of day events overlapping it (itself included), and ColumnIndex is
// its rank by StartSlot within that set. For chains of pairwise-but-not-
// mutually overlapping events this over-allocates columns compared to true
// interval coloring; that behavior is kept deliberately (see DESIGN.md).
func Layout(day time.Time, events []model.Event) []LaidOutEvent {
	loc := day.Location()
	dayStart := StartOfDay(day, loc)
	dayEnd := dayStart.AddDate(0, 0, 1)

	laid := make([]LaidOutEvent, 0, len(events))
	for _, e := range events {
		if !e.HasTimes() {
			continue
		}

		// Clip the event's span to this day.
		effStart := e.Start
		if effStart.Before(dayStart) {
			effStart = dayStart
		}
		effEnd := e.End
		if effEnd.After(dayEnd) {
			effEnd = dayEnd
		}
		if !effEnd.After(effStart) {
			continue
		}

		startSlot := clampSlot(minutesIntoDay(effStart, dayStart, dayEnd) / SlotMinutes)

		endMinutes := minutesIntoDay(effEnd, dayStart, dayEnd)
		endSlot := endMinutes / SlotMinutes
		if endMinutes%SlotMinutes != 0 || effEnd.Second() != 0 || effEnd.Nanosecond() != 0 {
			endSlot++
		}
		endSlot = clampSlot(endSlot)

		if startSlot >= endSlot || startSlot >= SlotsPerDay || endSlot <= 0 {
			continue
		}

		laid = append(laid, LaidOutEvent{
			Event:     e,
			StartSlot: startSlot,
			EndSlot:   endSlot,
		})
	}

	// Stable sort keeps input order for equal start slots, which fixes the
	// tie-break for column indices below.
	sort.SliceStable(laid, func(i, j int) bool {
		return laid[i].StartSlot < laid[j].StartSlot
	})

	for i := range laid {
		count := 0
		index := 0
		for j := range laid {
			if !slotsOverlap(laid[i], laid[j]) {
				continue
			}
			count++
			if j < i {
				index++
			}
		}
		laid[i].ColumnCount = count
		laid[i].ColumnIndex = index
	}

	return laid
}

// slotsOverlap reports whether two half-open slot ranges intersect.
// An event always overlaps itself.
func slotsOverlap(a, b LaidOutEvent) bool {
	return a.StartSlot < b.EndSlot && b.StartSlot < a.EndSlot
}

// minutesIntoDay converts t to wall-clock minutes since the day's midnight.
// The day-end boundary itself maps to a full day.
func minutesIntoDay(t, dayStart, dayEnd time.Time) int {
	if !t.Before(dayEnd) {
		return 24 * 60
	}
	if t.Before(dayStart) {
		return 0
	}
	return t.Hour()*60 + t.Minute()
}

func clampSlot(s int) int {
	if s < 0 {
		return 0
	}
	if s > SlotsPerDay {
		return SlotsPerDay
	}
	return s
}
