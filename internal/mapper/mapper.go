// Package mapper translates parsed ICS events into Google Calendar event
// payloads. It performs no I/O; the output of MapCalendar is the exact
// wire payload handed to the event store.
package mapper

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/teambition/rrule-go"
	"google.golang.org/api/calendar/v3"

	"icsgcal/internal/ics"
)

// IdentityProperty is the private extended property that links a Google
// Calendar event back to the ICS UID it was imported from. It is the sole
// join key between source events and previously imported remote events.
const IdentityProperty = "ics_uid"

// ErrAmbiguousTimezone is returned when a calendar declares more than one
// timezone and a floating timestamp would have to be localized. Guessing
// here would silently mis-localize every timed event in the file.
var ErrAmbiguousTimezone = errors.New("calendar declares more than one timezone")

// Mapped pairs one event payload with the UID of the source event it was
// derived from. UID is empty when the source event had none.
type Mapped struct {
	Payload *calendar.Event
	UID     string
}

// Options controls mapping behavior.
type Options struct {
	// Location is the fallback zone for floating timestamps when the
	// calendar declares no timezone of its own. Defaults to time.Local.
	Location *time.Location
}

// MapCalendar maps every event of a parsed calendar, preserving source
// order. Mapping is deterministic and makes no external calls. An
// ambiguous timezone or an unloadable declared timezone fails the whole
// calendar before any payload is returned.
func MapCalendar(cal *ics.Calendar, opts Options) ([]Mapped, error) {
	fallback := opts.Location
	if fallback == nil {
		fallback = time.Local
	}

	zones := &zoneResolver{ids: cal.TimeZoneIDs, fallback: fallback}

	mapped := make([]Mapped, 0, len(cal.Events))
	for i := range cal.Events {
		ev := &cal.Events[i]
		payload, err := mapEvent(ev, zones)
		if err != nil {
			return nil, fmt.Errorf("event %q: %w", ev.UID, err)
		}
		mapped = append(mapped, Mapped{Payload: payload, UID: ev.UID})
	}
	return mapped, nil
}

func mapEvent(ev *ics.Event, zones *zoneResolver) (*calendar.Event, error) {
	payload := &calendar.Event{
		Summary:     ev.Summary,
		Description: ev.Description,
		Location:    ev.Location,
	}

	// Empty text fields must reach the wire as explicit nulls: the update
	// path patches with the full computed field set, and an omitted field
	// would leave the remote event's old value in place.
	for _, field := range []struct {
		name  string
		value string
	}{
		{"Summary", ev.Summary},
		{"Description", ev.Description},
		{"Location", ev.Location},
	} {
		if field.value == "" {
			payload.NullFields = append(payload.NullFields, field.name)
		}
	}

	// Events without a UID get no identity marker at all; they can never
	// be matched on a later run and are always imported as new.
	if ev.UID != "" {
		payload.ExtendedProperties = &calendar.EventExtendedProperties{
			Private: map[string]string{IdentityProperty: ev.UID},
		}
	}

	if err := setEventTimes(payload, ev, zones); err != nil {
		return nil, err
	}

	if line := rruleLine(ev.RRule); line != "" {
		if _, err := rrule.StrToRRule(strings.TrimPrefix(line, "RRULE:")); err != nil {
			log.Printf("Warning: event %q has an RRULE that did not validate (%v); forwarding it unchanged", ev.UID, err)
		}
		payload.Recurrence = []string{line}
	}

	return payload, nil
}

// setEventTimes fills Start/End. Whether an event is all-day is decided
// solely by the shape of its DTSTART value. Missing ends default to one
// day (all-day) or one hour (timed) per RFC5545.
func setEventTimes(payload *calendar.Event, ev *ics.Event, zones *zoneResolver) error {
	if ev.Start.DateOnly {
		payload.Start = &calendar.EventDateTime{Date: ev.Start.Value.Format("2006-01-02")}

		end := ev.Start.Value.AddDate(0, 0, 1)
		if ev.End != nil {
			end = ev.End.Value
		}
		payload.End = &calendar.EventDateTime{Date: end.Format("2006-01-02")}
		return nil
	}

	start, err := localize(ev.Start, zones)
	if err != nil {
		return err
	}
	payload.Start = &calendar.EventDateTime{DateTime: start.Format(time.RFC3339)}

	end := start.Add(time.Hour)
	if ev.End != nil {
		end, err = localize(ev.End, zones)
		if err != nil {
			return err
		}
	}
	payload.End = &calendar.EventDateTime{DateTime: end.Format(time.RFC3339)}
	return nil
}

// localize applies the governing timezone to a floating timestamp. Values
// that already carry a zone are used unchanged.
func localize(t *ics.Time, zones *zoneResolver) (time.Time, error) {
	if !t.Floating {
		return t.Value, nil
	}
	loc, err := zones.resolve()
	if err != nil {
		return time.Time{}, err
	}
	v := t.Value
	return time.Date(v.Year(), v.Month(), v.Day(), v.Hour(), v.Minute(), v.Second(), v.Nanosecond(), loc), nil
}

// zoneResolver resolves the governing timezone for floating timestamps.
// Resolution happens lazily: a calendar with ambiguous timezone
// declarations only fails if some timestamp actually needs localizing.
type zoneResolver struct {
	ids      []string
	fallback *time.Location
	loc      *time.Location
}

func (r *zoneResolver) resolve() (*time.Location, error) {
	if r.loc != nil {
		return r.loc, nil
	}
	switch len(r.ids) {
	case 0:
		r.loc = r.fallback
	case 1:
		loc, err := time.LoadLocation(r.ids[0])
		if err != nil {
			return nil, fmt.Errorf("declared timezone %q: %w", r.ids[0], err)
		}
		r.loc = loc
	default:
		return nil, fmt.Errorf("%w: %s", ErrAmbiguousTimezone, strings.Join(r.ids, ", "))
	}
	return r.loc, nil
}

// rruleLine renders RRULE components as a single RFC5545 recurrence line.
// Keys are upper-cased; component and value order is preserved from the
// source. The rule is forwarded, never expanded.
func rruleLine(comps []ics.RRuleComponent) string {
	if len(comps) == 0 {
		return ""
	}
	parts := make([]string, 0, len(comps))
	for _, c := range comps {
		parts = append(parts, strings.ToUpper(c.Name)+"="+strings.Join(c.Values, ","))
	}
	return "RRULE:" + strings.Join(parts, ";")
}
