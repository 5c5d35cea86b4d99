package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ds124wfegd/openmic-lineup/internal/entity"
	"github.com/lib/pq"
)

type eventRepository struct {
	db *sql.DB
}

func NewEventRepository(db *sql.DB) EventRepository {
	return &eventRepository{db: db}
}

const eventColumns = `
	e.id, e.venue_id, e.host_id, e.name, e.start_time, e.end_time,
	EXTRACT(EPOCH FROM e.slot_duration), EXTRACT(EPOCH FROM e.setup_duration),
	e.active, e.is_signup_open, e.event_types, e.image_url, e.created_at, e.updated_at`

func eventDest(event *entity.Event) []interface{} {
	return []interface{}{
		&event.ID,
		&event.VenueID,
		&event.HostID,
		&event.Name,
		&event.StartTime,
		&event.EndTime,
		&event.SlotDuration,
		&event.SetupDuration,
		&event.Active,
		&event.SignupOpen,
		pq.Array(&event.Types),
		&event.ImageURL,
		&event.CreatedAt,
		&event.UpdatedAt,
	}
}

func (r *eventRepository) GetByID(ctx context.Context, id int64) (*entity.Event, error) {
	return r.getOne(ctx, `SELECT `+eventColumns+` FROM events e WHERE e.id = $1`, id)
}

func (r *eventRepository) GetForUpdate(ctx context.Context, id int64) (*entity.Event, error) {
	return r.getOne(ctx, `SELECT `+eventColumns+` FROM events e WHERE e.id = $1 FOR UPDATE`, id)
}

func (r *eventRepository) getOne(ctx context.Context, query string, id int64) (*entity.Event, error) {
	var event entity.Event
	err := conn(ctx, r.db).QueryRowContext(ctx, query, id).Scan(eventDest(&event)...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, entity.ErrEventNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get event: %w", err)
	}

	return &event, nil
}

func (r *eventRepository) GetDetails(ctx context.Context, id int64) (*entity.EventDetails, error) {
	query := `
		SELECT ` + eventColumns + `, v.name, v.timezone, u.name
		FROM events e
		JOIN venues v ON v.id = e.venue_id
		JOIN users u ON u.id = e.host_id
		WHERE e.id = $1
	`

	var details entity.EventDetails
	dest := append(eventDest(&details.Event), &details.VenueName, &details.VenueTimezone, &details.HostName)

	err := conn(ctx, r.db).QueryRowContext(ctx, query, id).Scan(dest...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, entity.ErrEventNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get event details: %w", err)
	}

	return &details, nil
}

func (r *eventRepository) Update(ctx context.Context, event *entity.Event) error {
	query := `
		UPDATE events
		SET venue_id = $1, name = $2, start_time = $3, end_time = $4,
			slot_duration = $5::interval, setup_duration = $6::interval,
			active = $7, is_signup_open = $8, event_types = COALESCE($9::text[], '{}'), image_url = $10,
			updated_at = $11
		WHERE id = $12
	`

	if event.UpdatedAt.IsZero() {
		event.UpdatedAt = time.Now()
	}

	result, err := conn(ctx, r.db).ExecContext(ctx, query,
		event.VenueID,
		event.Name,
		event.StartTime,
		event.EndTime,
		event.SlotDuration,
		event.SetupDuration,
		event.Active,
		event.SignupOpen,
		pq.Array(event.Types),
		event.ImageURL,
		event.UpdatedAt,
		event.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update event: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return entity.ErrEventNotFound
	}

	return nil
}
