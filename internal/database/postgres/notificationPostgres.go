package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ds124wfegd/openmic-lineup/internal/entity"
)

type notificationRepository struct {
	db *sql.DB
}

func NewNotificationRepository(db *sql.DB) NotificationRepository {
	return &notificationRepository{db: db}
}

const notificationDetailsQuery = `
	SELECT n.id, n.user_id, n.type, n.message, n.event_id, n.lineup_slot_id, n.is_read, n.created_at,
		e.name, e.start_time, v.name, h.name, ls.slot_number
	FROM notifications n
	LEFT JOIN events e ON e.id = n.event_id
	LEFT JOIN venues v ON v.id = e.venue_id
	LEFT JOIN users h ON h.id = e.host_id
	LEFT JOIN lineup_slots ls ON ls.id = n.lineup_slot_id
`

func scanNotificationDetails(row rowScanner) (*entity.NotificationDetails, error) {
	var (
		d              entity.NotificationDetails
		eventID        sql.NullInt64
		slotID         sql.NullInt64
		eventName      sql.NullString
		eventStartTime sql.NullTime
		venueName      sql.NullString
		hostName       sql.NullString
		slotNumber     sql.NullInt32
	)

	err := row.Scan(
		&d.ID,
		&d.UserID,
		&d.Type,
		&d.Message,
		&eventID,
		&slotID,
		&d.IsRead,
		&d.CreatedAt,
		&eventName,
		&eventStartTime,
		&venueName,
		&hostName,
		&slotNumber,
	)
	if err != nil {
		return nil, err
	}

	if eventID.Valid {
		d.EventID = &eventID.Int64
	}
	if slotID.Valid {
		d.LineupSlotID = &slotID.Int64
	}
	if eventName.Valid {
		d.EventName = &eventName.String
	}
	if eventStartTime.Valid {
		d.EventStartTime = &eventStartTime.Time
	}
	if venueName.Valid {
		d.VenueName = &venueName.String
	}
	if hostName.Valid {
		d.HostName = &hostName.String
	}
	if slotNumber.Valid {
		n := int(slotNumber.Int32)
		d.SlotNumber = &n
	}
	return &d, nil
}

func (r *notificationRepository) Create(ctx context.Context, n *entity.Notification) error {
	query := `
		INSERT INTO notifications (user_id, type, message, event_id, lineup_slot_id, is_read, created_at)
		VALUES ($1, $2, $3, $4, $5, FALSE, COALESCE($6, NOW()))
		RETURNING id, created_at
	`

	var createdAt interface{}
	if !n.CreatedAt.IsZero() {
		createdAt = n.CreatedAt
	}

	err := conn(ctx, r.db).QueryRowContext(ctx, query,
		n.UserID,
		n.Type,
		n.Message,
		n.EventID,
		n.LineupSlotID,
		createdAt,
	).Scan(&n.ID, &n.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}

	return nil
}

func (r *notificationRepository) GetDetails(ctx context.Context, id int64) (*entity.NotificationDetails, error) {
	d, err := scanNotificationDetails(conn(ctx, r.db).QueryRowContext(ctx, notificationDetailsQuery+` WHERE n.id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, entity.ErrNotificationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get notification: %w", err)
	}
	return d, nil
}

func (r *notificationRepository) ListByUser(ctx context.Context, userID int64, limit int) ([]*entity.NotificationDetails, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := conn(ctx, r.db).QueryContext(ctx,
		notificationDetailsQuery+` WHERE n.user_id = $1 ORDER BY n.created_at DESC, n.id DESC LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query notifications: %w", err)
	}
	defer rows.Close()

	list := make([]*entity.NotificationDetails, 0)
	for rows.Next() {
		d, err := scanNotificationDetails(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		list = append(list, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate notifications: %w", err)
	}

	return list, nil
}

func (r *notificationRepository) MarkRead(ctx context.Context, userID, id int64) error {
	result, err := conn(ctx, r.db).ExecContext(ctx,
		`UPDATE notifications SET is_read = TRUE WHERE id = $1 AND user_id = $2`,
		id, userID,
	)
	if err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return entity.ErrNotificationNotFound
	}

	return nil
}

func (r *notificationRepository) DeleteByEvent(ctx context.Context, eventID int64) ([]*entity.Notification, error) {
	rows, err := conn(ctx, r.db).QueryContext(ctx,
		`DELETE FROM notifications WHERE event_id = $1 RETURNING id, user_id, type, message, is_read, created_at`,
		eventID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to delete notifications: %w", err)
	}
	defer rows.Close()

	deleted := make([]*entity.Notification, 0)
	for rows.Next() {
		n := entity.Notification{EventID: &eventID}
		if err := rows.Scan(&n.ID, &n.UserID, &n.Type, &n.Message, &n.IsRead, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan deleted notification: %w", err)
		}
		deleted = append(deleted, &n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate deleted notifications: %w", err)
	}

	return deleted, nil
}

func (r *notificationRepository) DeleteReadBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := conn(ctx, r.db).ExecContext(ctx,
		`DELETE FROM notifications WHERE is_read = TRUE AND created_at < $1`,
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to purge read notifications: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return deleted, nil
}

type preferenceRepository struct {
	db *sql.DB
}

func NewPreferenceRepository(db *sql.DB) PreferenceRepository {
	return &preferenceRepository{db: db}
}

const preferenceColumns = `user_id, event_notifications, lineup_notifications, other_notifications, external_notifications, updated_at`

func scanPreference(row rowScanner) (*entity.NotificationPreference, error) {
	var p entity.NotificationPreference
	err := row.Scan(
		&p.UserID,
		&p.EventNotifications,
		&p.LineupNotifications,
		&p.OtherNotifications,
		&p.ExternalNotifications,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *preferenceRepository) Get(ctx context.Context, userID int64) (*entity.NotificationPreference, error) {
	p, err := scanPreference(conn(ctx, r.db).QueryRowContext(ctx,
		`SELECT `+preferenceColumns+` FROM notification_preferences WHERE user_id = $1`, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get notification preferences: %w", err)
	}
	return p, nil
}

func (r *preferenceRepository) GetOrCreate(ctx context.Context, userID int64) (*entity.NotificationPreference, error) {
	var pref *entity.NotificationPreference

	err := withTx(ctx, r.db, func(ctx context.Context) error {
		q := conn(ctx, r.db)

		_, err := q.ExecContext(ctx,
			`INSERT INTO notification_preferences (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING`,
			userID,
		)
		if err != nil {
			return fmt.Errorf("failed to create default preferences: %w", err)
		}

		pref, err = scanPreference(q.QueryRowContext(ctx,
			`SELECT `+preferenceColumns+` FROM notification_preferences WHERE user_id = $1 FOR UPDATE`, userID))
		if err != nil {
			return fmt.Errorf("failed to read preferences: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return pref, nil
}

func (r *preferenceRepository) Upsert(ctx context.Context, pref *entity.NotificationPreference) error {
	query := `
		INSERT INTO notification_preferences
			(user_id, event_notifications, lineup_notifications, other_notifications, external_notifications, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (user_id) DO UPDATE SET
			event_notifications = EXCLUDED.event_notifications,
			lineup_notifications = EXCLUDED.lineup_notifications,
			other_notifications = EXCLUDED.other_notifications,
			external_notifications = EXCLUDED.external_notifications,
			updated_at = EXCLUDED.updated_at
		RETURNING updated_at
	`

	err := conn(ctx, r.db).QueryRowContext(ctx, query,
		pref.UserID,
		pref.EventNotifications,
		pref.LineupNotifications,
		pref.OtherNotifications,
		pref.ExternalNotifications,
	).Scan(&pref.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save notification preferences: %w", err)
	}

	return nil
}
