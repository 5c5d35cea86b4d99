package repository

import (
	"context"
	"time"

	"github.com/ds124wfegd/openmic-lineup/internal/entity"
)

// Transactor runs fn inside one database transaction. Repositories called
// with the ctx passed to fn take part in that transaction.
type Transactor interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type EventRepository interface {
	GetByID(ctx context.Context, id int64) (*entity.Event, error)
	// GetForUpdate locks the row until the surrounding transaction ends.
	GetForUpdate(ctx context.Context, id int64) (*entity.Event, error)
	GetDetails(ctx context.Context, id int64) (*entity.EventDetails, error)
	Update(ctx context.Context, event *entity.Event) error
}

type VenueRepository interface {
	GetByID(ctx context.Context, id int64) (*entity.Venue, error)
}

type UserRepository interface {
	GetByID(ctx context.Context, id int64) (*entity.User, error)
}

type LineupSlotRepository interface {
	// Create inserts a claimed slot. Storage-level uniqueness is reported as
	// entity.ErrDuplicateSlot (identity) or entity.ErrSlotTaken (number).
	Create(ctx context.Context, slot *entity.LineupSlot) error
	// UpsertHostAssignment writes slot at its number, replacing whatever
	// occupied it and clearing any occupant identity. It returns the row as it
	// was before the overwrite, or nil when the number was free.
	UpsertHostAssignment(ctx context.Context, slot *entity.LineupSlot) (*entity.LineupSlot, error)

	GetByID(ctx context.Context, id int64) (*entity.LineupSlot, error)
	GetForUpdate(ctx context.Context, id int64) (*entity.LineupSlot, error)
	FindByUser(ctx context.Context, eventID, userID int64) (*entity.LineupSlot, error)
	FindByNonUser(ctx context.Context, eventID int64, nonUserID string) (*entity.LineupSlot, error)
	ListByEvent(ctx context.Context, eventID int64) ([]*entity.LineupSlot, error)

	UpdateSlotNumber(ctx context.Context, id int64, slotNumber int) error
	Delete(ctx context.Context, id int64) error
}

type NotificationRepository interface {
	Create(ctx context.Context, n *entity.Notification) error
	GetDetails(ctx context.Context, id int64) (*entity.NotificationDetails, error)
	ListByUser(ctx context.Context, userID int64, limit int) ([]*entity.NotificationDetails, error)
	MarkRead(ctx context.Context, userID, id int64) error
	// DeleteByEvent returns the deleted rows so recipients can be told.
	DeleteByEvent(ctx context.Context, eventID int64) ([]*entity.Notification, error)
	DeleteReadBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type PreferenceRepository interface {
	// Get returns nil without error when the user has no row.
	Get(ctx context.Context, userID int64) (*entity.NotificationPreference, error)
	GetOrCreate(ctx context.Context, userID int64) (*entity.NotificationPreference, error)
	Upsert(ctx context.Context, pref *entity.NotificationPreference) error
}
