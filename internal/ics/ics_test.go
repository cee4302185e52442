package ics

import (
	"reflect"
	"strings"
	"testing"
	"time"
)

// icsData joins lines with CRLF as RFC5545 requires.
func icsData(lines ...string) string {
	return strings.Join(lines, "\r\n") + "\r\n"
}

func decode(t *testing.T, data string) *Calendar {
	t.Helper()
	cal, err := Decode(strings.NewReader(data))
	if err != nil {
		t.Fatalf("Decode() returned an error: %v", err)
	}
	return cal
}

func TestDecode_BasicEvent(t *testing.T) {
	cal := decode(t, icsData(
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:-//Test//EN",
		"BEGIN:VEVENT",
		"UID:event-1@example.com",
		"SUMMARY:Team standup",
		"DESCRIPTION:Daily sync",
		"LOCATION:Room 4",
		"DTSTART:20240115T100000Z",
		"DTEND:20240115T103000Z",
		"END:VEVENT",
		"END:VCALENDAR",
	))

	if len(cal.Events) != 1 {
		t.Fatalf("Expected 1 event, got %d", len(cal.Events))
	}
	ev := cal.Events[0]

	if ev.UID != "event-1@example.com" {
		t.Errorf("Expected UID 'event-1@example.com', got %q", ev.UID)
	}
	if ev.Summary != "Team standup" {
		t.Errorf("Expected summary 'Team standup', got %q", ev.Summary)
	}
	if ev.Description != "Daily sync" {
		t.Errorf("Expected description 'Daily sync', got %q", ev.Description)
	}
	if ev.Location != "Room 4" {
		t.Errorf("Expected location 'Room 4', got %q", ev.Location)
	}

	wantStart := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	if !ev.Start.Value.Equal(wantStart) || ev.Start.DateOnly || ev.Start.Floating {
		t.Errorf("Expected UTC start %v, got %+v", wantStart, ev.Start)
	}
	if ev.End == nil || !ev.End.Value.Equal(time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)) {
		t.Errorf("Expected end 10:30 UTC, got %+v", ev.End)
	}
}

func TestDecode_EmptyFieldsAndNoEnd(t *testing.T) {
	cal := decode(t, icsData(
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:-//Test//EN",
		"BEGIN:VEVENT",
		"DTSTART:20240115T100000Z",
		"END:VEVENT",
		"END:VCALENDAR",
	))

	ev := cal.Events[0]
	if ev.UID != "" || ev.Summary != "" || ev.Description != "" || ev.Location != "" {
		t.Errorf("Expected empty text fields, got %+v", ev)
	}
	if ev.End != nil {
		t.Errorf("Expected nil end, got %+v", ev.End)
	}
}

func TestDecode_DateOnlyStart(t *testing.T) {
	cal := decode(t, icsData(
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:-//Test//EN",
		"BEGIN:VEVENT",
		"UID:allday",
		"DTSTART;VALUE=DATE:20240115",
		"END:VEVENT",
		"END:VCALENDAR",
	))

	ev := cal.Events[0]
	if !ev.Start.DateOnly {
		t.Error("Expected DateOnly start for VALUE=DATE")
	}
	if got := ev.Start.Value.Format("2006-01-02"); got != "2024-01-15" {
		t.Errorf("Expected date 2024-01-15, got %s", got)
	}
}

func TestDecode_TruncatedDateTimeValue(t *testing.T) {
	// Eight characters long, but explicitly declared a date-time: the
	// value type parameter wins over the value's shape, so this must
	// fail as a malformed date-time rather than parse as a date.
	_, err := Decode(strings.NewReader(icsData(
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:-//Test//EN",
		"BEGIN:VEVENT",
		"UID:truncated",
		"DTSTART;VALUE=DATE-TIME:20240115",
		"END:VEVENT",
		"END:VCALENDAR",
	)))
	if err == nil {
		t.Fatal("Expected an error for a truncated VALUE=DATE-TIME value")
	}
	if !strings.Contains(err.Error(), "date-time") {
		t.Errorf("Expected a date-time parse error, got: %v", err)
	}
	if strings.Contains(err.Error(), "invalid date value") {
		t.Errorf("Expected the error not to report a date value, got: %v", err)
	}
}

func TestDecode_TZIDParameter(t *testing.T) {
	cal := decode(t, icsData(
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:-//Test//EN",
		"BEGIN:VEVENT",
		"UID:zoned",
		"DTSTART;TZID=Europe/Berlin:20240115T100000",
		"END:VEVENT",
		"END:VCALENDAR",
	))

	ev := cal.Events[0]
	if ev.Start.Floating {
		t.Error("Expected TZID-qualified start not to be floating")
	}

	berlin, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		t.Fatalf("LoadLocation() returned an error: %v", err)
	}
	want := time.Date(2024, 1, 15, 10, 0, 0, 0, berlin)
	if !ev.Start.Value.Equal(want) {
		t.Errorf("Expected start %v, got %v", want, ev.Start.Value)
	}
}

func TestDecode_FloatingStart(t *testing.T) {
	cal := decode(t, icsData(
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:-//Test//EN",
		"BEGIN:VEVENT",
		"UID:floating",
		"DTSTART:20240115T100000",
		"END:VEVENT",
		"END:VCALENDAR",
	))

	ev := cal.Events[0]
	if !ev.Start.Floating {
		t.Error("Expected start without zone information to be floating")
	}
	if ev.Start.Value.Hour() != 10 {
		t.Errorf("Expected wall-clock hour 10, got %d", ev.Start.Value.Hour())
	}
}

func TestDecode_TimezoneIDs(t *testing.T) {
	cal := decode(t, icsData(
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:-//Test//EN",
		"BEGIN:VTIMEZONE",
		"TZID:Europe/Berlin",
		"BEGIN:STANDARD",
		"DTSTART:19701025T030000",
		"TZOFFSETFROM:+0200",
		"TZOFFSETTO:+0100",
		"END:STANDARD",
		"END:VTIMEZONE",
		"BEGIN:VTIMEZONE",
		"TZID:America/New_York",
		"BEGIN:STANDARD",
		"DTSTART:19701101T020000",
		"TZOFFSETFROM:-0400",
		"TZOFFSETTO:-0500",
		"END:STANDARD",
		"END:VTIMEZONE",
		"BEGIN:VEVENT",
		"UID:u",
		"DTSTART:20240115T100000Z",
		"END:VEVENT",
		"END:VCALENDAR",
	))

	want := []string{"Europe/Berlin", "America/New_York"}
	if !reflect.DeepEqual(cal.TimeZoneIDs, want) {
		t.Errorf("Expected timezone ids %v, got %v", want, cal.TimeZoneIDs)
	}
}

func TestDecode_EventOrder(t *testing.T) {
	cal := decode(t, icsData(
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:-//Test//EN",
		"BEGIN:VEVENT",
		"UID:first",
		"DTSTART:20240117T100000Z",
		"END:VEVENT",
		"BEGIN:VEVENT",
		"UID:second",
		"DTSTART:20240115T100000Z",
		"END:VEVENT",
		"END:VCALENDAR",
	))

	if len(cal.Events) != 2 {
		t.Fatalf("Expected 2 events, got %d", len(cal.Events))
	}
	if cal.Events[0].UID != "first" || cal.Events[1].UID != "second" {
		t.Errorf("Expected source order preserved, got %q then %q", cal.Events[0].UID, cal.Events[1].UID)
	}
}

func TestDecode_RRuleComponents(t *testing.T) {
	cal := decode(t, icsData(
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:-//Test//EN",
		"BEGIN:VEVENT",
		"UID:weekly",
		"DTSTART:20240115T100000Z",
		"RRULE:FREQ=WEEKLY;BYDAY=MO,WE,FR;COUNT=10",
		"END:VEVENT",
		"END:VCALENDAR",
	))

	want := []RRuleComponent{
		{Name: "FREQ", Values: []string{"WEEKLY"}},
		{Name: "BYDAY", Values: []string{"MO", "WE", "FR"}},
		{Name: "COUNT", Values: []string{"10"}},
	}
	if !reflect.DeepEqual(cal.Events[0].RRule, want) {
		t.Errorf("Expected rrule components %v, got %v", want, cal.Events[0].RRule)
	}
}

func TestDecode_MissingDTSTART(t *testing.T) {
	_, err := Decode(strings.NewReader(icsData(
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:-//Test//EN",
		"BEGIN:VEVENT",
		"UID:broken",
		"SUMMARY:No start",
		"END:VEVENT",
		"END:VCALENDAR",
	)))
	if err == nil {
		t.Error("Expected an error for a VEVENT without DTSTART")
	}
}

func TestDecode_UnknownTimezoneParameter(t *testing.T) {
	_, err := Decode(strings.NewReader(icsData(
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:-//Test//EN",
		"BEGIN:VEVENT",
		"UID:badzone",
		"DTSTART;TZID=Not/AZone:20240115T100000",
		"END:VEVENT",
		"END:VCALENDAR",
	)))
	if err == nil {
		t.Error("Expected an error for an unknown TZID")
	}
}

func TestDecode_Garbage(t *testing.T) {
	_, err := Decode(strings.NewReader("this is not an icalendar file"))
	if err == nil {
		t.Error("Expected an error for malformed input")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(t.TempDir() + "/nope.ics")
	if err == nil {
		t.Error("Expected an error for a missing file")
	}
}
