package ics_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plancal/internal/ics"
	"plancal/internal/model"
)

func icsPayload(vevents ...string) []byte {
	lines := []string{
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:-//plancal test//EN",
	}
	lines = append(lines, vevents...)
	lines = append(lines, "END:VCALENDAR", "")
	return []byte(strings.Join(lines, "\r\n"))
}

func testSource() ics.Source {
	return ics.Source{ID: "test", URL: "https://example.com/cal.ics", Account: model.AccountPersonal}
}

func Test_ParseICS_Detects_AllDay_From_Date_Value(t *testing.T) {
	t.Parallel()

	body := icsPayload(
		"BEGIN:VEVENT",
		"UID:allday-1",
		"DTSTART;VALUE=DATE:20240301",
		"DTEND;VALUE=DATE:20240304",
		"SUMMARY:Conference",
		"END:VEVENT",
	)

	events, err := ics.ParseICS(testSource(), body, time.UTC)
	require.NoError(t, err)
	require.Len(t, events, 1)

	e := events[0]
	assert.True(t, e.AllDay)
	assert.Equal(t, "Conference", e.Title)
	assert.Equal(t, model.AccountPersonal, e.Account)
	assert.True(t, e.Start.Equal(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)))
	assert.True(t, e.End.Equal(time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)), "all-day end date stays exclusive")
}

func Test_ParseICS_AllDay_Without_End_Covers_One_Day(t *testing.T) {
	t.Parallel()

	body := icsPayload(
		"BEGIN:VEVENT",
		"UID:allday-2",
		"DTSTART;VALUE=DATE:20240301",
		"SUMMARY:Holiday",
		"END:VEVENT",
	)

	events, err := ics.ParseICS(testSource(), body, time.UTC)
	require.NoError(t, err)
	require.Len(t, events, 1)

	e := events[0]
	assert.True(t, e.AllDay)
	assert.Equal(t, 24*time.Hour, e.End.Sub(e.Start))
}

func Test_ParseICS_Timed_Event_Converts_To_Display_Zone(t *testing.T) {
	t.Parallel()

	body := icsPayload(
		"BEGIN:VEVENT",
		"UID:timed-1",
		"DTSTART:20240305T090000Z",
		"DTEND:20240305T100000Z",
		"SUMMARY:Planning",
		"LOCATION:Room 4",
		"END:VEVENT",
	)

	loc, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)

	events, err := ics.ParseICS(testSource(), body, loc)
	require.NoError(t, err)
	require.Len(t, events, 1)

	e := events[0]
	assert.False(t, e.AllDay)
	assert.Equal(t, "Room 4", e.Location)
	assert.Equal(t, loc, e.Start.Location())
	assert.True(t, e.Start.Equal(time.Date(2024, 3, 5, 9, 0, 0, 0, time.UTC)))
	assert.Equal(t, 10, e.Start.Hour(), "09:00 UTC is 10:00 in Berlin")
}

func Test_ParseICS_Marks_Series_Master_And_Instance(t *testing.T) {
	t.Parallel()

	body := icsPayload(
		"BEGIN:VEVENT",
		"UID:series-1",
		"DTSTART:20240304T090000Z",
		"DTEND:20240304T093000Z",
		"RRULE:FREQ=WEEKLY;BYDAY=MO",
		"SUMMARY:Standup",
		"END:VEVENT",
		"BEGIN:VEVENT",
		"UID:series-1",
		"RECURRENCE-ID:20240311T090000Z",
		"DTSTART:20240311T100000Z",
		"DTEND:20240311T103000Z",
		"SUMMARY:Standup (moved)",
		"END:VEVENT",
	)

	events, err := ics.ParseICS(testSource(), body, time.UTC)
	require.NoError(t, err)
	require.Len(t, events, 2)

	master := events[0]
	assert.Equal(t, []string{"FREQ=WEEKLY;BYDAY=MO"}, master.RecurrenceRules)
	assert.Empty(t, master.RecurringEventID)

	instance := events[1]
	assert.Empty(t, instance.RecurrenceRules)
	assert.Equal(t, "series-1", instance.RecurringEventID, "instance references its series")

	assert.NotEqual(t, master.ID, instance.ID, "shared UID still yields distinct IDs")
}

func Test_ParseICS_Drops_Invalid_RRULE(t *testing.T) {
	t.Parallel()

	body := icsPayload(
		"BEGIN:VEVENT",
		"UID:bad-rule",
		"DTSTART:20240304T090000Z",
		"DTEND:20240304T093000Z",
		"RRULE:GIBBERISH",
		"SUMMARY:Odd",
		"END:VEVENT",
	)

	events, err := ics.ParseICS(testSource(), body, time.UTC)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Empty(t, events[0].RecurrenceRules, "invalid rule must not mark the event recurring")
}

func Test_ParseICS_Skips_VEvent_Without_UID(t *testing.T) {
	t.Parallel()

	body := icsPayload(
		"BEGIN:VEVENT",
		"DTSTART:20240305T090000Z",
		"DTEND:20240305T100000Z",
		"SUMMARY:Anonymous",
		"END:VEVENT",
		"BEGIN:VEVENT",
		"UID:ok",
		"DTSTART:20240305T110000Z",
		"DTEND:20240305T120000Z",
		"SUMMARY:Named",
		"END:VEVENT",
	)

	events, err := ics.ParseICS(testSource(), body, time.UTC)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "Named", events[0].Title)
}

func Test_ParseICS_Rejects_Empty_Body(t *testing.T) {
	t.Parallel()

	_, err := ics.ParseICS(testSource(), nil, time.UTC)
	require.Error(t, err)
}
