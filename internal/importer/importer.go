// Package importer reconciles mapped events against the remote event
// store, deciding create-vs-update per event.
package importer

import (
	"context"
	"log"

	"github.com/google/uuid"
	"google.golang.org/api/calendar/v3"

	"icsgcal/internal/gcal"
	"icsgcal/internal/mapper"
)

// Summary aggregates the outcome of one or more import runs.
type Summary struct {
	Created int
	Updated int
}

// Add accumulates another summary into s.
func (s *Summary) Add(other Summary) {
	s.Created += other.Created
	s.Updated += other.Updated
}

// Importer imports mapped events into an event store. In dry-run mode it
// performs the same lookups and branching but skips the mutating calls.
// Verbose enables a log line per created or updated event; warnings and
// dry-run output are always emitted.
type Importer struct {
	store   gcal.EventStore
	dryRun  bool
	verbose bool
}

// New creates an Importer backed by the given store.
func New(store gcal.EventStore, dryRun, verbose bool) *Importer {
	return &Importer{store: store, dryRun: dryRun, verbose: verbose}
}

// ImportCalendar reconciles mapped events in order: an event whose UID is
// already known to the store is updated in place, everything else is
// created. A failed create or update is reported and skips only that
// event; the run continues.
func (imp *Importer) ImportCalendar(ctx context.Context, events []mapper.Mapped) Summary {
	var summary Summary

	for _, ev := range events {
		if existing := imp.findExisting(ctx, ev.UID); existing != nil {
			id, err := imp.update(ctx, existing.Id, ev.Payload)
			if err != nil {
				log.Printf("Warning: failed to update event (uid=%q summary=%q): %v", ev.UID, ev.Payload.Summary, err)
				continue
			}
			if imp.verbose {
				log.Printf("Updated event %s (uid=%q)", id, ev.UID)
			}
			summary.Updated++
		} else {
			id, err := imp.create(ctx, ev.Payload)
			if err != nil {
				log.Printf("Warning: failed to create event (uid=%q summary=%q): %v", ev.UID, ev.Payload.Summary, err)
				continue
			}
			if imp.verbose {
				log.Printf("Created event %s (uid=%q)", id, ev.UID)
			}
			summary.Created++
		}
	}

	return summary
}

// findExisting looks the UID up in the store. Events without a UID are
// never matched and never trigger a query. A failed lookup degrades to
// "not found" so that one bad request costs at most a duplicate create
// instead of aborting the run.
func (imp *Importer) findExisting(ctx context.Context, uid string) *calendar.Event {
	if uid == "" {
		return nil
	}
	existing, err := imp.store.FindByICSUID(ctx, uid)
	if err != nil {
		log.Printf("Warning: lookup for UID %q failed, treating event as new: %v", uid, err)
		return nil
	}
	return existing
}

func (imp *Importer) create(ctx context.Context, payload *calendar.Event) (string, error) {
	if imp.dryRun {
		log.Printf("[DRY-RUN] Would create event: %q", payload.Summary)
		return "dry-run-" + uuid.NewString(), nil
	}
	return imp.store.Create(ctx, payload)
}

func (imp *Importer) update(ctx context.Context, eventID string, payload *calendar.Event) (string, error) {
	if imp.dryRun {
		log.Printf("[DRY-RUN] Would update event %s: %q", eventID, payload.Summary)
		return eventID, nil
	}
	return imp.store.Update(ctx, eventID, payload)
}
