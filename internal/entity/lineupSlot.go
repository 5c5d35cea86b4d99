package entity

import (
	"time"
)

// OpenSlotName marks a pre-seeded slot nobody has taken yet.
const OpenSlotName = "Open"

type SlotOccupant string

const (
	OccupantOpen         SlotOccupant = "open"
	OccupantUser         SlotOccupant = "user"
	OccupantNonUser      SlotOccupant = "non_user"
	OccupantHostAssigned SlotOccupant = "host_assigned"
)

type LineupSlot struct {
	ID         int64     `json:"slot_id" db:"id"`
	EventID    int64     `json:"event_id" db:"event_id"`
	SlotNumber int       `json:"slot_number" db:"slot_number"`
	SlotName   string    `json:"slot_name" db:"slot_name"`
	UserID     *int64    `json:"user_id,omitempty" db:"user_id"`
	NonUserID  *string   `json:"non_user_id,omitempty" db:"non_user_id"`
	IPAddress  *string   `json:"-" db:"ip_address"`
	CreatedBy  string    `json:"created_by,omitempty" db:"created_by"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}

// SlotWithTime is a slot together with its computed start time.
type SlotWithTime struct {
	LineupSlot
	StartTime time.Time `json:"start_time"`
}

// ReorderItem assigns a new slot number to an existing slot.
type ReorderItem struct {
	SlotID     int64 `json:"slot_id" binding:"required,min=1"`
	SlotNumber int   `json:"slot_number" binding:"required,slotnumber"`
}

func (s *LineupSlot) Occupant() SlotOccupant {
	switch {
	case s.UserID != nil:
		return OccupantUser
	case s.NonUserID != nil:
		return OccupantNonUser
	case s.SlotName == "" || s.SlotName == OpenSlotName:
		return OccupantOpen
	default:
		return OccupantHostAssigned
	}
}

// IsAssigned treats anything not literally "Open" as assigned.
func (s *LineupSlot) IsAssigned() bool {
	return s.SlotName != OpenSlotName
}

// HeldBy reports whether identity occupies the slot.
func (s *LineupSlot) HeldBy(identity Identity) bool {
	switch identity.Kind {
	case IdentityUser:
		return s.UserID != nil && *s.UserID == identity.UserID
	case IdentityNonUser:
		return s.NonUserID != nil && *s.NonUserID == identity.NonUserID
	default:
		return false
	}
}
