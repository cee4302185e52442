// Package ics reads iCalendar (RFC5545) files into plain value types.
//
// The rest of the program never touches parser internals: a decoded
// Calendar owns an ordered slice of events and the set of timezone ids
// declared by the file, and nothing else.
package ics

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/emersion/go-ical"
)

// Time is a decoded DTSTART or DTEND value.
//
// DateOnly marks VALUE=DATE properties (all-day semantics). Floating marks
// date-times that carry no zone information at all; their Value holds the
// wall-clock components and the governing timezone is applied later.
type Time struct {
	Value    time.Time
	DateOnly bool
	Floating bool
}

// RRuleComponent is one KEY=VALUE[,VALUE...] part of an RRULE property,
// kept in source order.
type RRuleComponent struct {
	Name   string
	Values []string
}

// Event is a single VEVENT. All text fields may be empty, including UID.
type Event struct {
	UID         string
	Summary     string
	Description string
	Location    string
	Start       *Time
	End         *Time
	RRule       []RRuleComponent
}

// Calendar holds the events of one ICS file in source order, plus the
// distinct TZID values of its VTIMEZONE blocks in first-seen order.
type Calendar struct {
	Events      []Event
	TimeZoneIDs []string
}

// Load reads and decodes a single ICS file.
func Load(path string) (*Calendar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ICS file: %w", err)
	}
	defer f.Close()

	cal, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cal, nil
}

// Decode parses an ICS stream into a Calendar. Any malformed event makes
// the whole calendar fail; callers treat that as fatal for the file.
func Decode(r io.Reader) (*Calendar, error) {
	src, err := ical.NewDecoder(r).Decode()
	if err != nil {
		return nil, fmt.Errorf("failed to parse iCalendar data: %w", err)
	}

	out := &Calendar{}
	seenTZ := make(map[string]bool)

	for _, comp := range src.Children {
		switch comp.Name {
		case ical.CompTimezone:
			tzid := comp.Props.Get(ical.PropTimezoneID)
			if tzid == nil || tzid.Value == "" {
				continue
			}
			if !seenTZ[tzid.Value] {
				seenTZ[tzid.Value] = true
				out.TimeZoneIDs = append(out.TimeZoneIDs, tzid.Value)
			}
		case ical.CompEvent:
			ev, err := decodeEvent(comp)
			if err != nil {
				return nil, err
			}
			out.Events = append(out.Events, ev)
		}
	}

	return out, nil
}

func decodeEvent(comp *ical.Component) (Event, error) {
	ev := Event{
		UID:         textProp(comp, ical.PropUID),
		Summary:     textProp(comp, ical.PropSummary),
		Description: textProp(comp, ical.PropDescription),
		Location:    textProp(comp, ical.PropLocation),
	}

	dtstart := comp.Props.Get(ical.PropDateTimeStart)
	if dtstart == nil {
		return ev, fmt.Errorf("event %q has no DTSTART", ev.UID)
	}
	start, err := decodeTime(dtstart)
	if err != nil {
		return ev, fmt.Errorf("event %q: invalid DTSTART: %w", ev.UID, err)
	}
	ev.Start = start

	if dtend := comp.Props.Get(ical.PropDateTimeEnd); dtend != nil {
		end, err := decodeTime(dtend)
		if err != nil {
			return ev, fmt.Errorf("event %q: invalid DTEND: %w", ev.UID, err)
		}
		ev.End = end
	}

	if rrule := comp.Props.Get(ical.PropRecurrenceRule); rrule != nil {
		ev.RRule = decodeRRule(rrule.Value)
	}

	return ev, nil
}

// textProp returns the unescaped text of a property, or "" when absent.
func textProp(comp *ical.Component, name string) string {
	prop := comp.Props.Get(name)
	if prop == nil {
		return ""
	}
	if text, err := prop.Text(); err == nil {
		return text
	}
	return prop.Value
}

const (
	dateLayout     = "20060102"
	dateTimeLayout = "20060102T150405"
	utcLayout      = "20060102T150405Z"
)

func decodeTime(prop *ical.Prop) (*Time, error) {
	v := strings.TrimSpace(prop.Value)

	// VALUE=DATE is authoritative; the length check only classifies
	// values whose property declares no VALUE type. An explicit
	// VALUE=DATE-TIME must be parsed (and reported) as a date-time even
	// when its value happens to be eight characters long.
	valueType := prop.Params.Get("VALUE")
	if valueType == "DATE" || (valueType == "" && len(v) == len(dateLayout)) {
		t, err := time.Parse(dateLayout, v)
		if err != nil {
			return nil, fmt.Errorf("invalid date value %q: %w", v, err)
		}
		return &Time{Value: t, DateOnly: true}, nil
	}

	if strings.HasSuffix(v, "Z") {
		t, err := time.Parse(utcLayout, v)
		if err != nil {
			return nil, fmt.Errorf("invalid UTC date-time value %q: %w", v, err)
		}
		return &Time{Value: t}, nil
	}

	if tzid := prop.Params.Get("TZID"); tzid != "" {
		loc, err := time.LoadLocation(tzid)
		if err != nil {
			return nil, fmt.Errorf("unknown timezone %q: %w", tzid, err)
		}
		t, err := time.ParseInLocation(dateTimeLayout, v, loc)
		if err != nil {
			return nil, fmt.Errorf("invalid date-time value %q: %w", v, err)
		}
		return &Time{Value: t}, nil
	}

	// No Z suffix and no TZID parameter: a floating local time.
	t, err := time.Parse(dateTimeLayout, v)
	if err != nil {
		return nil, fmt.Errorf("invalid date-time value %q: %w", v, err)
	}
	return &Time{Value: t, Floating: true}, nil
}

func decodeRRule(raw string) []RRuleComponent {
	var comps []RRuleComponent
	for _, part := range strings.Split(raw, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, values, _ := strings.Cut(part, "=")
		comps = append(comps, RRuleComponent{
			Name:   name,
			Values: strings.Split(values, ","),
		})
	}
	return comps
}
