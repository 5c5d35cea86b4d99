package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	repository "github.com/ds124wfegd/openmic-lineup/internal/database/postgres"
	"github.com/ds124wfegd/openmic-lineup/internal/entity"
	"github.com/ds124wfegd/openmic-lineup/internal/metrics"

	"github.com/sirupsen/logrus"
)

// ClaimSlotRequest is the body of POST /lineup_slots.
type ClaimSlotRequest struct {
	EventID          int64  `json:"event_id" binding:"required,min=1"`
	UserID           *int64 `json:"user_id,omitempty"`
	SlotNumber       int    `json:"slot_number" binding:"required,slotnumber"`
	SlotName         string `json:"slot_name" binding:"max=255"`
	IsHostAssignment bool   `json:"isHostAssignment"`
}

// LineupServiceConfig mirrors the lineup section of the config file.
type LineupServiceConfig struct {
	MaxSlotNumber int
	Formatter     *TimeFormatter
}

type lineupService struct {
	tx       repository.Transactor
	slots    repository.LineupSlotRepository
	events   repository.EventRepository
	venues   repository.VenueRepository
	users    repository.UserRepository
	notifier NotificationService
	fanout   fanout
	metrics  *metrics.Metrics
	config   LineupServiceConfig
}

func NewLineupService(
	tx repository.Transactor,
	slots repository.LineupSlotRepository,
	events repository.EventRepository,
	venues repository.VenueRepository,
	users repository.UserRepository,
	notifier NotificationService,
	hub Broadcaster,
	activity ActivityPublisher,
	m *metrics.Metrics,
	config LineupServiceConfig,
) LineupService {
	if config.MaxSlotNumber <= 0 {
		config.MaxSlotNumber = 100
	}
	if config.Formatter == nil {
		config.Formatter = NewTimeFormatter("", "UTC")
	}
	return &lineupService{
		tx:       tx,
		slots:    slots,
		events:   events,
		venues:   venues,
		users:    users,
		notifier: notifier,
		fanout:   fanout{hub: hub, activity: activity},
		metrics:  m,
		config:   config,
	}
}

func (s *lineupService) validSlotNumber(n int) bool {
	return n >= 1 && n <= s.config.MaxSlotNumber
}

func (s *lineupService) ClaimSlot(ctx context.Context, actor entity.Identity, req *ClaimSlotRequest) (*entity.SlotWithTime, error) {
	slot, err := s.claim(ctx, actor, req)
	if err != nil {
		s.metrics.ObserveClaim(entity.ClassOf(err).String())
		return nil, err
	}
	s.metrics.ObserveClaim(string(slot.Occupant()))
	return slot, nil
}

func (s *lineupService) claim(ctx context.Context, actor entity.Identity, req *ClaimSlotRequest) (*entity.SlotWithTime, error) {
	if !s.validSlotNumber(req.SlotNumber) {
		return nil, entity.ErrInvalidSlotNumber
	}

	event, err := s.events.GetByID(ctx, req.EventID)
	if err != nil {
		return nil, err
	}
	host, err := s.loadHost(ctx, event)
	if err != nil {
		return nil, err
	}

	if !event.Active {
		return nil, entity.ErrEventInactive
	}
	isHost := event.IsHostedBy(actor)
	if !event.SignupOpen && !isHost {
		return nil, entity.ErrSignupClosed
	}

	var displaced *entity.LineupSlot
	slot := &entity.LineupSlot{
		EventID:    event.ID,
		SlotNumber: req.SlotNumber,
		SlotName:   strings.TrimSpace(req.SlotName),
		CreatedBy:  actor.Key(),
	}

	if req.IsHostAssignment {
		if !isHost {
			return nil, entity.ErrNotHost
		}
		if slot.SlotName == "" {
			return nil, entity.ErrNameRequired
		}
		displaced, err = s.slots.UpsertHostAssignment(ctx, slot)
		if err != nil {
			return nil, err
		}
		if s.notifier != nil {
			if err := s.notifier.EnsurePreferences(ctx, host.ID); err != nil {
				logrus.WithError(err).WithField("user_id", host.ID).Warn("Failed to ensure host preferences")
			}
		}
	} else {
		if err := s.bindOccupant(ctx, actor, req, slot); err != nil {
			return nil, err
		}
		if err := s.slots.Create(ctx, slot); err != nil {
			return nil, err
		}
	}

	result := &entity.SlotWithTime{LineupSlot: *slot, StartTime: SlotStartFor(event, slot.SlotNumber)}

	logrus.WithFields(logrus.Fields{
		"event_id":    event.ID,
		"slot_id":     slot.ID,
		"slot_number": slot.SlotNumber,
		"occupant":    slot.Occupant(),
	}).Info("Lineup slot claimed")

	s.fanout.toAll(ctx, entity.LineupEnvelope(event.ID, entity.ActionCreate, result))

	if displaced != nil && displaced.UserID != nil && *displaced.UserID != host.ID {
		notifyAndLog(ctx, s.notifier, NotificationRequest{
			RecipientID: *displaced.UserID,
			Type:        entity.NotificationLineupRemoval,
			Category:    entity.CategoryLineup,
			Message:     fmt.Sprintf("You have been removed from slot #%d in %s by the host.", displaced.SlotNumber, event.Name),
			EventID:     int64Ptr(event.ID),
		})
	}

	if !isHost {
		notifyAndLog(ctx, s.notifier, NotificationRequest{
			RecipientID: host.ID,
			Type:        entity.NotificationLineupSignup,
			Category:    entity.CategoryLineup,
			Message:     fmt.Sprintf("%s signed up for slot #%d in %s.", slot.SlotName, slot.SlotNumber, event.Name),
			EventID:     int64Ptr(event.ID),
			SlotID:      int64Ptr(slot.ID),
		})
	}

	return result, nil
}

// bindOccupant attaches the actor's identity to slot and rejects a second
// claim by the same identity. The storage constraint backs this check up.
func (s *lineupService) bindOccupant(ctx context.Context, actor entity.Identity, req *ClaimSlotRequest, slot *entity.LineupSlot) error {
	var (
		existing *entity.LineupSlot
		err      error
	)

	switch actor.Kind {
	case entity.IdentityUser:
		if req.UserID != nil && *req.UserID != actor.UserID {
			return entity.ErrForbidden
		}
		if slot.SlotName == "" {
			user, err := s.users.GetByID(ctx, actor.UserID)
			if err != nil {
				return err
			}
			slot.SlotName = user.Name
		}
		existing, err = s.slots.FindByUser(ctx, slot.EventID, actor.UserID)
		userID := actor.UserID
		slot.UserID = &userID

	case entity.IdentityNonUser:
		if slot.SlotName == "" {
			return entity.ErrNameRequired
		}
		existing, err = s.slots.FindByNonUser(ctx, slot.EventID, actor.NonUserID)
		token, ip := actor.NonUserID, actor.IPAddress
		slot.NonUserID = &token
		if ip != "" {
			slot.IPAddress = &ip
		}

	default:
		return entity.ErrIdentityRequired
	}

	switch {
	case err == nil && existing != nil:
		return entity.ErrDuplicateSlot
	case err != nil && !errors.Is(err, entity.ErrSlotNotFound):
		return fmt.Errorf("failed to check existing slot: %w", err)
	}
	return nil
}

func (s *lineupService) ReleaseSlot(ctx context.Context, actor entity.Identity, slotID int64) (*entity.SlotWithTime, error) {
	slot, err := s.slots.GetByID(ctx, slotID)
	if err != nil {
		return nil, err
	}
	event, err := s.events.GetByID(ctx, slot.EventID)
	if err != nil {
		return nil, err
	}
	host, err := s.loadHost(ctx, event)
	if err != nil {
		return nil, err
	}

	byHost := event.IsHostedBy(actor)
	if !byHost && !slot.HeldBy(actor) {
		return nil, entity.ErrForbidden
	}

	if err := s.slots.Delete(ctx, slot.ID); err != nil {
		return nil, err
	}

	freed := &entity.SlotWithTime{LineupSlot: *slot, StartTime: SlotStartFor(event, slot.SlotNumber)}

	logrus.WithFields(logrus.Fields{
		"event_id":    event.ID,
		"slot_id":     slot.ID,
		"slot_number": slot.SlotNumber,
		"by_host":     byHost,
	}).Info("Lineup slot released")

	s.fanout.toAll(ctx, entity.LineupEnvelope(event.ID, entity.ActionDelete, freed))

	if slot.UserID != nil {
		notifType := entity.NotificationLineupUnsign
		msg := fmt.Sprintf("You have been removed from slot #%d in %s.", slot.SlotNumber, event.Name)
		if byHost && *slot.UserID != host.ID {
			notifType = entity.NotificationLineupRemoval
			msg = fmt.Sprintf("You have been removed from slot #%d in %s by the host.", slot.SlotNumber, event.Name)
		}
		notifyAndLog(ctx, s.notifier, NotificationRequest{
			RecipientID: *slot.UserID,
			Type:        notifType,
			Category:    entity.CategoryLineup,
			Message:     msg,
			EventID:     int64Ptr(event.ID),
		})
	}

	if !byHost {
		notifyAndLog(ctx, s.notifier, NotificationRequest{
			RecipientID: host.ID,
			Type:        entity.NotificationLineupUnsign,
			Category:    entity.CategoryLineup,
			Message:     fmt.Sprintf("%s removed from slot #%d in %s.", slot.SlotName, slot.SlotNumber, event.Name),
			EventID:     int64Ptr(event.ID),
		})
	}

	return freed, nil
}

func (s *lineupService) ListSlots(ctx context.Context, eventID int64) ([]*entity.SlotWithTime, error) {
	event, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}

	slots, err := s.slots.ListByEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}

	result := make([]*entity.SlotWithTime, 0, len(slots))
	for _, slot := range slots {
		result = append(result, &entity.SlotWithTime{LineupSlot: *slot, StartTime: SlotStartFor(event, slot.SlotNumber)})
	}
	return result, nil
}

func (s *lineupService) loadHost(ctx context.Context, event *entity.Event) (*entity.User, error) {
	host, err := s.users.GetByID(ctx, event.HostID)
	if errors.Is(err, entity.ErrUserNotFound) {
		return nil, entity.ErrHostNotFound
	}
	return host, err
}

// venueOf never fails; a missing venue only affects time formatting.
func (s *lineupService) venueOf(ctx context.Context, event *entity.Event) *entity.Venue {
	venue, err := s.venues.GetByID(ctx, event.VenueID)
	if err != nil {
		logrus.WithError(err).WithField("event_id", event.ID).Warn("Failed to load venue, using default timezone")
		return nil
	}
	return venue
}
