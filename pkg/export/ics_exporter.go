package export

import (
	"fmt"
	"time"

	ical "github.com/arran4/golang-ical"

	"github.com/noah-isme/mini-event-api/internal/models"
)

const icsProductID = "-//mini-event-api//events//EN"

// ICSExporter renders events as an iCalendar feed.
type ICSExporter struct {
	location *time.Location
	duration time.Duration
	now      func() time.Time
}

// NewICSExporter builds an exporter reading event wall clock times in loc.
func NewICSExporter(loc *time.Location, duration time.Duration) *ICSExporter {
	if loc == nil {
		loc = time.UTC
	}
	if duration <= 0 {
		duration = time.Hour
	}
	return &ICSExporter{location: loc, duration: duration, now: time.Now}
}

// Render writes one VEVENT per event. Archived events are marked CANCELLED.
func (e *ICSExporter) Render(events []models.Event) ([]byte, error) {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(icsProductID)

	stamp := e.now().UTC()
	for _, item := range events {
		start, err := item.StartsAt(e.location)
		if err != nil {
			return nil, fmt.Errorf("event %s: %w", item.ID, err)
		}
		vevent := cal.AddEvent(item.ID)
		vevent.SetDtStampTime(stamp)
		vevent.SetStartAt(start)
		vevent.SetEndAt(start.Add(e.duration))
		vevent.SetSummary(item.Title)
		if notes := item.NotesText(); notes != "" {
			vevent.SetDescription(notes)
		}
		vevent.AddProperty(ical.ComponentPropertyCategories, string(item.Category))
		if !item.CreatedAt.IsZero() {
			vevent.SetCreatedTime(item.CreatedAt)
		}
		if !item.UpdatedAt.IsZero() {
			vevent.SetModifiedAt(item.UpdatedAt)
		}
		if item.Archived {
			vevent.SetStatus(ical.ObjectStatusCancelled)
		}
	}
	return []byte(cal.Serialize()), nil
}
