package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ds124wfegd/openmic-lineup/internal/clock"
	repository "github.com/ds124wfegd/openmic-lineup/internal/database/postgres"
	"github.com/ds124wfegd/openmic-lineup/internal/entity"

	"github.com/sirupsen/logrus"
)

const (
	eventCancelledMessage  = "This event has been cancelled."
	eventReinstatedMessage = "This event has been reinstated."
)

// UpdateEventRequest is the body of PATCH /events/:eventId. Nil fields are
// left unchanged.
type UpdateEventRequest struct {
	Name          *string         `json:"name" binding:"omitempty,min=1,max=255"`
	VenueID       *int64          `json:"venue_id" binding:"omitempty,min=1"`
	StartTime     *time.Time      `json:"start_time"`
	EndTime       *time.Time      `json:"end_time"`
	SlotDuration  *entity.Minutes `json:"slot_duration"`
	SetupDuration *entity.Minutes `json:"setup_duration"`
	Active        *bool           `json:"active"`
	SignupOpen    *bool           `json:"is_signup_open"`
	Types         []string        `json:"event_types"`
	ImageURL      *string         `json:"image_url" binding:"omitempty,max=2048"`
}

type eventService struct {
	tx        repository.Transactor
	events    repository.EventRepository
	venues    repository.VenueRepository
	slots     repository.LineupSlotRepository
	notifier  NotificationService
	fanout    fanout
	formatter *TimeFormatter
	clock     clock.Clock
}

func NewEventService(
	tx repository.Transactor,
	events repository.EventRepository,
	venues repository.VenueRepository,
	slots repository.LineupSlotRepository,
	notifier NotificationService,
	hub Broadcaster,
	activity ActivityPublisher,
	formatter *TimeFormatter,
	clk clock.Clock,
) EventService {
	if formatter == nil {
		formatter = NewTimeFormatter("", "UTC")
	}
	return &eventService{
		tx:        tx,
		events:    events,
		venues:    venues,
		slots:     slots,
		notifier:  notifier,
		fanout:    fanout{hub: hub, activity: activity},
		formatter: formatter,
		clock:     clk,
	}
}

func (s *eventService) GetEvent(ctx context.Context, id int64) (*entity.EventDetails, error) {
	return s.events.GetDetails(ctx, id)
}

// UpdateEvent holds the event row lock from load to write, so the diff always
// describes the stored state it replaced. Notifications go out after commit.
func (s *eventService) UpdateEvent(ctx context.Context, actor entity.Identity, id int64, req *UpdateEventRequest) (*entity.EventDetails, error) {
	var (
		updated  *entity.Event
		newVenue *entity.Venue
		diff     eventDiff
	)

	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		current, err := s.events.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !current.IsHostedBy(actor) {
			return entity.ErrNotHost
		}

		updated = applyEventUpdate(current, req)
		if !updated.StartTime.Before(updated.EndTime) {
			return entity.ErrInvalidTimeRange
		}

		oldVenue := s.loadVenue(ctx, current.VenueID)
		newVenue = oldVenue
		if updated.VenueID != current.VenueID {
			newVenue, err = s.venues.GetByID(ctx, updated.VenueID)
			if err != nil {
				return err
			}
		}

		diff = diffEvent(current, updated, oldVenue, newVenue, s.formatter)

		updated.UpdatedAt = s.clock.Now()
		return s.events.Update(ctx, updated)
	})
	if err != nil {
		return nil, err
	}

	log := logrus.WithFields(logrus.Fields{
		"event_id":     id,
		"status":       diff.status,
		"changes":      len(diff.bullets),
		"time_changed": diff.timeChanged,
	})
	log.Info("Event updated")

	if s.notifier != nil {
		if err := s.notifier.EnsurePreferences(ctx, actor.UserID); err != nil {
			log.WithError(err).Warn("Failed to ensure host preferences")
		}
	}

	s.notifyPerformers(ctx, updated, newVenue, diff, log)

	details, err := s.events.GetDetails(ctx, id)
	if err != nil {
		log.WithError(err).Warn("Failed to reload event details, broadcasting bare event")
		details = &entity.EventDetails{Event: *updated}
		if newVenue != nil {
			details.VenueName = newVenue.Name
			details.VenueTimezone = newVenue.Timezone
		}
	}

	s.fanout.toAll(ctx, entity.EventEnvelope(id, details))
	return details, nil
}

func (s *eventService) notifyPerformers(ctx context.Context, event *entity.Event, venue *entity.Venue, diff eventDiff, log *logrus.Entry) {
	if diff.empty() {
		return
	}

	slots, err := s.slots.ListByEvent(ctx, event.ID)
	if err != nil {
		log.WithError(err).Warn("Failed to load performers, skipping notifications")
		return
	}

	for _, slot := range slots {
		if slot.UserID == nil {
			continue
		}

		req := NotificationRequest{
			RecipientID: *slot.UserID,
			Type:        entity.NotificationEventUpdate,
			Category:    entity.CategoryEvent,
			EventID:     int64Ptr(event.ID),
			SlotID:      int64Ptr(slot.ID),
		}

		if diff.status != "" {
			req.Type = entity.NotificationEventStatus
			req.Message = diff.status
		} else {
			req.Message = diff.summary(event.Name)
			if diff.timeChanged {
				newTime := s.formatter.Format(SlotStartFor(event, slot.SlotNumber), venue)
				if req.Message != "" {
					req.Message += "\n" + fmt.Sprintf("Your new performance time is %s.", newTime)
				} else {
					req.Message = fmt.Sprintf("Your new performance time for %s is %s.", event.Name, newTime)
				}
			}
		}
		if req.Message == "" {
			continue
		}

		notifyAndLog(ctx, s.notifier, req)
	}
}

func (s *eventService) loadVenue(ctx context.Context, id int64) *entity.Venue {
	venue, err := s.venues.GetByID(ctx, id)
	if err != nil {
		logrus.WithError(err).WithField("venue_id", id).Warn("Failed to load venue")
		return nil
	}
	return venue
}

func applyEventUpdate(current *entity.Event, req *UpdateEventRequest) *entity.Event {
	updated := *current
	updated.Types = cloneTypes(current.Types)

	if req.Name != nil {
		updated.Name = strings.TrimSpace(*req.Name)
	}
	if req.VenueID != nil {
		updated.VenueID = *req.VenueID
	}
	if req.StartTime != nil {
		updated.StartTime = *req.StartTime
	}
	if req.EndTime != nil {
		updated.EndTime = *req.EndTime
	}
	if req.SlotDuration != nil {
		updated.SlotDuration = *req.SlotDuration
	}
	if req.SetupDuration != nil {
		updated.SetupDuration = *req.SetupDuration
	}
	if req.Active != nil {
		updated.Active = *req.Active
	}
	if req.SignupOpen != nil {
		updated.SignupOpen = *req.SignupOpen
	}
	if req.Types != nil {
		updated.Types = cloneTypes(req.Types)
	}
	if req.ImageURL != nil {
		updated.ImageURL = *req.ImageURL
	}
	return &updated
}

// cloneTypes never returns nil; event_types is NOT NULL.
func cloneTypes(src []string) []string {
	dst := make([]string, len(src))
	copy(dst, src)
	return dst
}

// eventDiff is the human-readable change summary of one update. A non-empty
// status replaces everything else.
type eventDiff struct {
	status      string
	bullets     []string
	timeChanged bool
}

func (d eventDiff) empty() bool {
	return d.status == "" && len(d.bullets) == 0 && !d.timeChanged
}

func (d eventDiff) summary(eventName string) string {
	if len(d.bullets) == 0 {
		return ""
	}
	return fmt.Sprintf("%s has been updated:\n%s", eventName, strings.Join(d.bullets, "\n"))
}

func diffEvent(before, after *entity.Event, oldVenue, newVenue *entity.Venue, f *TimeFormatter) eventDiff {
	var d eventDiff

	d.timeChanged = !before.StartTime.Equal(after.StartTime) ||
		before.SlotDuration != after.SlotDuration ||
		before.SetupDuration != after.SetupDuration

	switch {
	case before.Active && !after.Active:
		d.status = eventCancelledMessage
		return d
	case !before.Active && after.Active:
		d.status = eventReinstatedMessage
		return d
	}

	if !before.StartTime.Equal(after.StartTime) {
		d.bullets = append(d.bullets, fmt.Sprintf("• Start time changed from %s to %s",
			f.Format(before.StartTime, oldVenue), f.Format(after.StartTime, newVenue)))
	}
	if before.SlotDuration != after.SlotDuration {
		d.bullets = append(d.bullets, fmt.Sprintf("• Slot duration changed from %s to %s",
			before.SlotDuration, after.SlotDuration))
	}
	if before.SetupDuration != after.SetupDuration {
		d.bullets = append(d.bullets, fmt.Sprintf("• Setup duration changed from %s to %s",
			before.SetupDuration, after.SetupDuration))
	}
	if before.VenueID != after.VenueID {
		d.bullets = append(d.bullets, fmt.Sprintf("• Venue changed from %s to %s",
			venueName(oldVenue), venueName(newVenue)))
	}
	return d
}

func venueName(v *entity.Venue) string {
	if v == nil || v.Name == "" {
		return "an unknown venue"
	}
	return v.Name
}
