// Package gcal wraps the Google Calendar v3 API as the remote event store
// the importer reconciles against.
package gcal

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"

	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"icsgcal/internal/mapper"
)

// EventStore is the remote store the importer talks to: lookup by ICS
// identity, create, and update. Implemented by Client; tests substitute
// their own.
type EventStore interface {
	FindByICSUID(ctx context.Context, uid string) (*calendar.Event, error)
	Create(ctx context.Context, event *calendar.Event) (string, error)
	Update(ctx context.Context, eventID string, event *calendar.Event) (string, error)
}

// Client is a wrapper around the Google Calendar API service, bound to a
// single calendar (the primary one until SelectCalendar is called).
type Client struct {
	service    *calendar.Service
	calendarID string
}

// NewClient creates a new Google Calendar API client using the provided
// authenticated HTTP client.
func NewClient(ctx context.Context, httpClient *http.Client) (*Client, error) {
	service, err := calendar.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar service: %w", err)
	}

	return &Client{service: service, calendarID: "primary"}, nil
}

// CalendarID returns the id of the calendar the client is bound to.
func (c *Client) CalendarID() string {
	return c.calendarID
}

// SelectCalendar resolves a calendar selector (an id or a display name)
// and binds the client to the resolved calendar. "primary" is used as-is.
// Matching is case-insensitive against both id and summary; the first
// match wins and any further matches are reported as a warning.
func (c *Client) SelectCalendar(ctx context.Context, selector string) error {
	if selector == "primary" {
		c.calendarID = "primary"
		return nil
	}

	want := strings.ToLower(selector)

	type match struct {
		id      string
		summary string
	}
	var matches []match

	pageToken := ""
	for {
		call := c.service.CalendarList.List().MaxResults(250).Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		resp, err := call.Do()
		if err != nil {
			return fmt.Errorf("failed to list calendars: %w", err)
		}
		for _, item := range resp.Items {
			if strings.ToLower(item.Id) == want || strings.ToLower(item.Summary) == want {
				matches = append(matches, match{id: item.Id, summary: item.Summary})
			}
		}
		pageToken = resp.NextPageToken
		if pageToken == "" {
			break
		}
	}

	if len(matches) == 0 {
		return fmt.Errorf("no calendar found matching %q", selector)
	}
	if len(matches) > 1 {
		log.Printf("Warning: multiple calendars matched %q; using first: %s (%s)",
			selector, matches[0].summary, matches[0].id)
	}

	c.calendarID = matches[0].id
	return nil
}

// FindByICSUID searches the calendar for an event carrying the given ICS
// UID in its private extended properties. Returns nil without querying
// when uid is empty, and nil when no event matches.
func (c *Client) FindByICSUID(ctx context.Context, uid string) (*calendar.Event, error) {
	if uid == "" {
		return nil, nil
	}

	resp, err := c.service.Events.List(c.calendarID).
		PrivateExtendedProperty(mapper.IdentityProperty + "=" + uid).
		MaxResults(1).
		SingleEvents(false).
		ShowDeleted(false).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("failed to search for event with UID %s: %w", uid, err)
	}

	if len(resp.Items) == 0 {
		return nil, nil
	}
	return resp.Items[0], nil
}

// Create inserts a new event and returns its id.
func (c *Client) Create(ctx context.Context, event *calendar.Event) (string, error) {
	created, err := c.service.Events.Insert(c.calendarID, event).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to insert event: %w", err)
	}
	return created.Id, nil
}

// Update replaces the stored fields of an existing event with the full
// computed payload. Patch semantics on the wire, but the payload always
// carries the complete field set.
func (c *Client) Update(ctx context.Context, eventID string, event *calendar.Event) (string, error) {
	updated, err := c.service.Events.Patch(c.calendarID, eventID, event).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to patch event: %w", err)
	}
	return updated.Id, nil
}
