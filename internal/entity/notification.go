package entity

import "time"

type NotificationType string

const (
	NotificationEventStatus    NotificationType = "event_status"
	NotificationEventUpdate    NotificationType = "event_update"
	NotificationLineupSignup   NotificationType = "lineup_signup"
	NotificationLineupUnsign   NotificationType = "lineup_unsign"
	NotificationLineupRemoval  NotificationType = "lineup_removal"
	NotificationSlotTimeChange NotificationType = "slot_time_change"
	NotificationOther          NotificationType = "other"
)

// NotificationCategory is the preference bucket a notification is filtered by.
type NotificationCategory int

const (
	CategoryOther NotificationCategory = iota
	CategoryEvent
	CategoryLineup
)

func (c NotificationCategory) String() string {
	switch c {
	case CategoryEvent:
		return "event"
	case CategoryLineup:
		return "lineup"
	default:
		return "other"
	}
}

type Notification struct {
	ID           int64            `json:"id" db:"id"`
	UserID       int64            `json:"user_id" db:"user_id"`
	Type         NotificationType `json:"type" db:"type"`
	Message      string           `json:"message" db:"message"`
	EventID      *int64           `json:"event_id,omitempty" db:"event_id"`
	LineupSlotID *int64           `json:"lineup_slot_id,omitempty" db:"lineup_slot_id"`
	IsRead       bool             `json:"is_read" db:"is_read"`
	CreatedAt    time.Time        `json:"created_at" db:"created_at"`
}

// NotificationDetails is a notification enriched with its event context.
type NotificationDetails struct {
	Notification
	EventName      *string    `json:"event_name,omitempty"`
	EventStartTime *time.Time `json:"event_start_time,omitempty"`
	VenueName      *string    `json:"venue_name,omitempty"`
	HostName       *string    `json:"host_name,omitempty"`
	SlotNumber     *int       `json:"slot_number,omitempty"`
}

type NotificationPreference struct {
	UserID                int64     `json:"user_id" db:"user_id"`
	EventNotifications    bool      `json:"event_notifications" db:"event_notifications"`
	LineupNotifications   bool      `json:"lineup_notifications" db:"lineup_notifications"`
	OtherNotifications    bool      `json:"other_notifications" db:"other_notifications"`
	ExternalNotifications bool      `json:"external_notifications" db:"external_notifications"`
	UpdatedAt             time.Time `json:"updated_at" db:"updated_at"`
}

func DefaultNotificationPreference(userID int64) *NotificationPreference {
	return &NotificationPreference{
		UserID:              userID,
		EventNotifications:  true,
		LineupNotifications: true,
		OtherNotifications:  true,
	}
}

func (p *NotificationPreference) Allows(category NotificationCategory) bool {
	switch category {
	case CategoryEvent:
		return p.EventNotifications
	case CategoryLineup:
		return p.LineupNotifications
	default:
		return p.OtherNotifications
	}
}
