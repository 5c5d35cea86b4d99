package service

import (
	"context"
	"fmt"
	"time"

	"github.com/ds124wfegd/openmic-lineup/internal/clock"
	repository "github.com/ds124wfegd/openmic-lineup/internal/database/postgres"
	"github.com/ds124wfegd/openmic-lineup/internal/entity"
	"github.com/ds124wfegd/openmic-lineup/internal/metrics"

	"github.com/sirupsen/logrus"
)

// NotificationRequest is built once at the call site; Category decides which
// preference flag gates it.
type NotificationRequest struct {
	RecipientID int64
	Type        entity.NotificationType
	Category    entity.NotificationCategory
	Message     string
	EventID     *int64
	SlotID      *int64
}

type DispatchStatus string

const (
	DispatchDelivered            DispatchStatus = "delivered"
	DispatchSkippedNoPreferences DispatchStatus = "skipped_no_preferences"
	DispatchSkippedDisabled      DispatchStatus = "skipped_disabled"
	DispatchFailed               DispatchStatus = "failed"
)

// DispatchResult is the outcome of Notify. Err is set only with DispatchFailed.
type DispatchResult struct {
	Status       DispatchStatus
	Notification *entity.Notification
	// Connections is the number of live connections the frame was queued for.
	Connections int
	Err         error
}

func (r DispatchResult) Persisted() bool {
	return r.Notification != nil
}

// UpdatePreferencesRequest leaves nil fields unchanged.
type UpdatePreferencesRequest struct {
	EventNotifications    *bool `json:"event_notifications"`
	LineupNotifications   *bool `json:"lineup_notifications"`
	OtherNotifications    *bool `json:"other_notifications"`
	ExternalNotifications *bool `json:"external_notifications"`
}

type notificationService struct {
	notifications repository.NotificationRepository
	prefs         repository.PreferenceRepository
	events        repository.EventRepository
	hub           Broadcaster
	external      ExternalNotifier
	metrics       *metrics.Metrics
	clock         clock.Clock
}

// NewNotificationService wires the dispatcher. external and m may be nil.
func NewNotificationService(
	notifications repository.NotificationRepository,
	prefs repository.PreferenceRepository,
	events repository.EventRepository,
	hub Broadcaster,
	external ExternalNotifier,
	m *metrics.Metrics,
	clk clock.Clock,
) NotificationService {
	return &notificationService{
		notifications: notifications,
		prefs:         prefs,
		events:        events,
		hub:           hub,
		external:      external,
		metrics:       m,
		clock:         clk,
	}
}

func (s *notificationService) Notify(ctx context.Context, req NotificationRequest) DispatchResult {
	log := logrus.WithFields(logrus.Fields{
		"user_id":  req.RecipientID,
		"type":     req.Type,
		"category": req.Category.String(),
	})

	result := s.dispatch(ctx, req, log)
	s.metrics.ObserveNotification(string(result.Status))
	return result
}

func (s *notificationService) dispatch(ctx context.Context, req NotificationRequest, log *logrus.Entry) DispatchResult {
	pref, err := s.prefs.Get(ctx, req.RecipientID)
	if err != nil {
		return DispatchResult{Status: DispatchFailed, Err: fmt.Errorf("failed to load preferences: %w", err)}
	}
	if pref == nil {
		// Rows are only created by an explicit preference fetch or a host
		// action, so a recipient who never did either gets nothing here.
		log.Warn("Notification dropped: recipient has no notification preferences row")
		return DispatchResult{Status: DispatchSkippedNoPreferences}
	}
	if !pref.Allows(req.Category) {
		log.Debug("Notification dropped: category disabled by recipient")
		return DispatchResult{Status: DispatchSkippedDisabled}
	}

	n := &entity.Notification{
		UserID:       req.RecipientID,
		Type:         req.Type,
		Message:      req.Message,
		EventID:      req.EventID,
		LineupSlotID: req.SlotID,
		CreatedAt:    s.clock.Now(),
	}
	if err := s.notifications.Create(ctx, n); err != nil {
		return DispatchResult{Status: DispatchFailed, Err: fmt.Errorf("failed to persist notification: %w", err)}
	}

	var payload interface{} = n
	details, err := s.notifications.GetDetails(ctx, n.ID)
	if err != nil {
		log.WithError(err).Warn("Failed to enrich notification, sending bare row")
	} else {
		payload = details
	}

	result := DispatchResult{Status: DispatchDelivered, Notification: n}
	if s.hub != nil {
		result.Connections = s.hub.BroadcastToIdentity(req.RecipientID, entity.NotificationEnvelope(req.RecipientID, payload))
	}

	if pref.ExternalNotifications && s.external != nil {
		if err := s.external.Enqueue(ctx, n); err != nil {
			log.WithError(err).WithField("notification_id", n.ID).Warn("Failed to enqueue external delivery")
		}
	}

	return result
}

func (s *notificationService) EnsurePreferences(ctx context.Context, userID int64) error {
	if _, err := s.prefs.GetOrCreate(ctx, userID); err != nil {
		return fmt.Errorf("failed to ensure preferences for user %d: %w", userID, err)
	}
	return nil
}

func (s *notificationService) GetPreferences(ctx context.Context, userID int64) (*entity.NotificationPreference, error) {
	return s.prefs.GetOrCreate(ctx, userID)
}

func (s *notificationService) UpdatePreferences(ctx context.Context, userID int64, req *UpdatePreferencesRequest) (*entity.NotificationPreference, error) {
	pref, err := s.prefs.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}

	if req.EventNotifications != nil {
		pref.EventNotifications = *req.EventNotifications
	}
	if req.LineupNotifications != nil {
		pref.LineupNotifications = *req.LineupNotifications
	}
	if req.OtherNotifications != nil {
		pref.OtherNotifications = *req.OtherNotifications
	}
	if req.ExternalNotifications != nil {
		pref.ExternalNotifications = *req.ExternalNotifications
	}
	pref.UpdatedAt = s.clock.Now()

	if err := s.prefs.Upsert(ctx, pref); err != nil {
		return nil, err
	}
	return pref, nil
}

func (s *notificationService) ListNotifications(ctx context.Context, userID int64, limit int) ([]*entity.NotificationDetails, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.notifications.ListByUser(ctx, userID, limit)
}

func (s *notificationService) MarkRead(ctx context.Context, userID, notificationID int64) error {
	return s.notifications.MarkRead(ctx, userID, notificationID)
}

// DeleteEventNotifications removes every notification tied to the event and
// tells each affected recipient which ids disappeared.
func (s *notificationService) DeleteEventNotifications(ctx context.Context, actor entity.Identity, eventID int64) (int, error) {
	event, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		return 0, err
	}
	if !event.IsHostedBy(actor) {
		return 0, entity.ErrNotHost
	}

	deleted, err := s.notifications.DeleteByEvent(ctx, eventID)
	if err != nil {
		return 0, err
	}

	byUser := make(map[int64][]int64)
	order := make([]int64, 0)
	for _, n := range deleted {
		if _, ok := byUser[n.UserID]; !ok {
			order = append(order, n.UserID)
		}
		byUser[n.UserID] = append(byUser[n.UserID], n.ID)
	}

	if s.hub != nil {
		for _, userID := range order {
			s.hub.BroadcastToIdentity(userID, entity.NotificationDeleteEnvelope(userID, eventID, byUser[userID]))
		}
	}

	logrus.WithFields(logrus.Fields{
		"event_id":   eventID,
		"deleted":    len(deleted),
		"recipients": len(order),
	}).Info("Event notifications deleted")

	return len(deleted), nil
}

func (s *notificationService) PurgeRead(ctx context.Context, retention time.Duration) (int64, error) {
	if retention <= 0 {
		return 0, nil
	}
	return s.notifications.DeleteReadBefore(ctx, s.clock.Now().Add(-retention))
}
