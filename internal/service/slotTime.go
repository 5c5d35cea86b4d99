package service

import (
	"time"

	"github.com/ds124wfegd/openmic-lineup/internal/entity"
)

// ComputeSlotStart returns eventStart + (slotNumber-1) * (slotDuration+setupDuration).
// Slot numbers are 1-based; callers validate the range.
func ComputeSlotStart(eventStart time.Time, slotNumber int, slotDuration, setupDuration entity.Minutes) time.Time {
	spacing := (slotDuration + setupDuration).Duration()
	return eventStart.Add(time.Duration(slotNumber-1) * spacing)
}

// SlotStartFor computes the start of slotNumber with event's current parameters.
func SlotStartFor(event *entity.Event, slotNumber int) time.Time {
	return ComputeSlotStart(event.StartTime, slotNumber, event.SlotDuration, event.SetupDuration)
}

// TimeFormatter renders instants in venue-local time.
type TimeFormatter struct {
	layout   string
	fallback *time.Location
}

func NewTimeFormatter(layout, defaultTimezone string) *TimeFormatter {
	loc, err := time.LoadLocation(defaultTimezone)
	if err != nil {
		loc = time.UTC
	}
	if layout == "" {
		layout = "Mon Jan 2, 3:04 PM MST"
	}
	return &TimeFormatter{layout: layout, fallback: loc}
}

func (f *TimeFormatter) Format(t time.Time, venue *entity.Venue) string {
	return t.In(venue.Location(f.fallback)).Format(f.layout)
}
