package model

import "time"

// Account identifies which of the two configured calendar sources owns an
// event. It only affects coloring and per-account loading; the grouping and
// layout engines treat events from both accounts uniformly.
type Account string

const (
	AccountPersonal     Account = "personal"
	AccountProfessional Account = "professional"
)

// Accounts lists the supported accounts in display order.
func Accounts() []Account {
	return []Account{AccountPersonal, AccountProfessional}
}

// Valid reports whether a is one of the known account tags.
func (a Account) Valid() bool {
	return a == AccountPersonal || a == AccountProfessional
}

// Event is a single calendar event as consumed by the timeline engine.
//
// The all-day vs timed decision is made exactly once, at ingestion:
//   - AllDay events carry day-granularity Start/End (midnight in the display
//     timezone); any finer time-of-day component must be ignored downstream.
//   - Timed events need both Start and End to participate in timeline layout.
//     An event missing either is silently excluded from layout but still
//     appears in grouped (list) output.
//
// A zero time.Time means the field was absent in the source data.
type Event struct {
	ID      string
	Account Account

	Title       string
	Description string
	Location    string

	AllDay bool

	// Start / End are in the configured display timezone.
	Start time.Time
	End   time.Time

	// RecurringEventID is set when this event is a materialized instance of
	// a recurring series and references the series master.
	RecurringEventID string

	// RecurrenceRules holds the raw recurrence rule strings of a series
	// master. The engine never expands these; they only mark the event as
	// recurring.
	RecurrenceRules []string
}

// HasStart reports whether the event has a start instant.
func (e Event) HasStart() bool { return !e.Start.IsZero() }

// HasEnd reports whether the event has an end instant.
func (e Event) HasEnd() bool { return !e.End.IsZero() }

// HasTimes reports whether the event is eligible for timeline layout:
// a timed event with both instants present.
func (e Event) HasTimes() bool {
	return !e.AllDay && e.HasStart() && e.HasEnd()
}
