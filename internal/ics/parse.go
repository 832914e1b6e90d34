package ics

import (
	"bytes"
	"errors"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/teambition/rrule-go"

	appLog "plancal/internal/log"
	"plancal/internal/model"
)

// ParseICS parses one ICS payload into engine events for the source's
// account, normalized into the display timezone loc.
//
// The all-day vs timed decision is made here, once: DTSTART with VALUE=DATE
// (or a date-only value) marks the event all-day, and its Start/End are
// floored to midnight in loc. Timed events keep their instants converted
// into loc; a timed event missing DTEND is kept with a zero End and the
// layout engine drops it later.
//
// Recurrence is recorded, never expanded: a VEVENT with RECURRENCE-ID is an
// instance and gets its series UID as RecurringEventID; a VEVENT with an
// RRULE is a series master and carries the rule string, after rrule
// validation. Invalid rules are logged and dropped from the event.
func ParseICS(src Source, body []byte, loc *time.Location) ([]model.Event, error) {
	if len(body) == 0 {
		return nil, errors.New("empty ICS body")
	}
	if loc == nil {
		loc = time.Local
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		appLog.Error("ics parse failed", err, "id", src.ID, "url", redactURL(src.URL))
		return nil, err
	}

	events := make([]model.Event, 0)
	for _, ve := range cal.Events() {
		ev, perr := parseVEvent(src, ve, loc)
		if perr != nil {
			appLog.Error("ics vevent parse failed", perr, "id", src.ID, "url", redactURL(src.URL))
			continue
		}
		events = append(events, ev)
	}

	appLog.Info("ics parse completed", "id", src.ID, "account", src.Account, "event_count", len(events))
	return events, nil
}

func parseVEvent(src Source, ve *ical.VEvent, loc *time.Location) (model.Event, error) {
	var out model.Event
	out.Account = src.Account

	uidProp := ve.GetProperty(ical.ComponentPropertyUniqueId)
	if uidProp == nil || uidProp.Value == "" {
		return out, errors.New("missing UID")
	}
	uid := uidProp.Value

	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		out.Title = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyDescription); p != nil {
		out.Description = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyLocation); p != nil {
		out.Location = p.Value
	}

	start, _ := ve.GetStartAt()
	end, _ := ve.GetEndAt()

	out.AllDay = isAllDayStart(ve)
	if out.AllDay {
		// Day-granularity boundaries in the display zone. A missing or
		// inverted DTEND collapses to a single covered day; the source
		// convention keeps the end date exclusive.
		out.Start = dateIn(start, loc)
		if end.IsZero() || !end.After(start) {
			out.End = out.Start.AddDate(0, 0, 1)
		} else {
			out.End = dateIn(end, loc)
		}
	} else {
		if !start.IsZero() {
			out.Start = start.In(loc)
		}
		if !end.IsZero() {
			out.End = end.In(loc)
		}
	}

	// RECURRENCE-ID marks a materialized instance of the series named by
	// the shared UID.
	if ridProp := ve.GetProperty("RECURRENCE-ID"); ridProp != nil && ridProp.Value != "" {
		out.RecurringEventID = uid
	}

	// RRULE marks the series master. Validate before attaching; expansion
	// is out of scope, the rule only classifies the event as recurring.
	if rruleProp := ve.GetProperty(ical.ComponentPropertyRrule); rruleProp != nil && rruleProp.Value != "" {
		if _, rerr := rrule.StrToRRule(rruleProp.Value); rerr != nil {
			appLog.Error("ics invalid RRULE, ignoring", rerr, "uid", uid, "rrule", rruleProp.Value)
		} else {
			out.RecurrenceRules = []string{rruleProp.Value}
		}
	}

	out.ID = instanceID(uid, out.Start)
	return out, nil
}

// isAllDayStart inspects DTSTART for VALUE=DATE or a date-only value.
func isAllDayStart(ve *ical.VEvent) bool {
	dtStart := ve.GetProperty(ical.ComponentPropertyDtStart)
	if dtStart == nil {
		return false
	}
	if params := dtStart.ICalParameters; params != nil {
		if vs, ok := params["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
			return true
		}
	}
	return !strings.Contains(dtStart.Value, "T")
}

// dateIn rebuilds t's calendar date as midnight in loc. Unlike flooring
// after a zone conversion, this keeps the date the feed named even when the
// parsed value sits in a different zone.
func dateIn(t time.Time, loc *time.Location) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// instanceID derives a per-event identifier stable across reloads. Recurring
// instances share a UID, so the start instant disambiguates them.
func instanceID(uid string, start time.Time) string {
	if start.IsZero() {
		return uid
	}
	return uid + "/" + start.Format(time.RFC3339)
}
