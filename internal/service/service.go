package service

import (
	"context"
	"time"

	"github.com/ds124wfegd/openmic-lineup/internal/entity"
)

// LineupService owns the slot lifecycle of an event.
type LineupService interface {
	ClaimSlot(ctx context.Context, actor entity.Identity, req *ClaimSlotRequest) (*entity.SlotWithTime, error)
	ReleaseSlot(ctx context.Context, actor entity.Identity, slotID int64) (*entity.SlotWithTime, error)
	ListSlots(ctx context.Context, eventID int64) ([]*entity.SlotWithTime, error)

	// ReorderSlots renumbers slots atomically; nothing is persisted on failure.
	ReorderSlots(ctx context.Context, actor entity.Identity, items []entity.ReorderItem) error
	// ConsolidatePreview returns the batch that would pack assigned slots first.
	ConsolidatePreview(ctx context.Context, actor entity.Identity, eventID int64) ([]entity.ReorderItem, error)
}

type EventService interface {
	GetEvent(ctx context.Context, id int64) (*entity.EventDetails, error)
	UpdateEvent(ctx context.Context, actor entity.Identity, id int64, req *UpdateEventRequest) (*entity.EventDetails, error)
}

type NotificationService interface {
	// Notify never panics and never returns an error directly; callers
	// inspect the result and decide what to log.
	Notify(ctx context.Context, req NotificationRequest) DispatchResult
	EnsurePreferences(ctx context.Context, userID int64) error

	GetPreferences(ctx context.Context, userID int64) (*entity.NotificationPreference, error)
	UpdatePreferences(ctx context.Context, userID int64, req *UpdatePreferencesRequest) (*entity.NotificationPreference, error)
	ListNotifications(ctx context.Context, userID int64, limit int) ([]*entity.NotificationDetails, error)
	MarkRead(ctx context.Context, userID, notificationID int64) error
	DeleteEventNotifications(ctx context.Context, actor entity.Identity, eventID int64) (int, error)
	// PurgeRead drops read notifications older than retention.
	PurgeRead(ctx context.Context, retention time.Duration) (int64, error)
}

// Broadcaster is the live fan-out. Both calls are fire-and-forget and
// report how many connections the frame was queued for.
type Broadcaster interface {
	BroadcastToAll(env entity.Envelope) int
	BroadcastToIdentity(userID int64, env entity.Envelope) int
}

// ActivityPublisher mirrors broadcast envelopes to a durable stream.
type ActivityPublisher interface {
	Publish(ctx context.Context, env entity.Envelope)
}

// ExternalNotifier hands a persisted notification to an out-of-app channel.
type ExternalNotifier interface {
	Enqueue(ctx context.Context, n *entity.Notification) error
}
