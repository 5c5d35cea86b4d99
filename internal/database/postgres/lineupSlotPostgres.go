package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ds124wfegd/openmic-lineup/internal/entity"
)

type lineupSlotRepository struct {
	db *sql.DB
}

func NewLineupSlotRepository(db *sql.DB) LineupSlotRepository {
	return &lineupSlotRepository{db: db}
}

const slotColumns = `id, event_id, slot_number, slot_name, user_id, non_user_id, ip_address, created_by, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSlot(row rowScanner) (*entity.LineupSlot, error) {
	var (
		slot      entity.LineupSlot
		userID    sql.NullInt64
		nonUserID sql.NullString
		ipAddress sql.NullString
	)

	err := row.Scan(
		&slot.ID,
		&slot.EventID,
		&slot.SlotNumber,
		&slot.SlotName,
		&userID,
		&nonUserID,
		&ipAddress,
		&slot.CreatedBy,
		&slot.CreatedAt,
		&slot.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if userID.Valid {
		slot.UserID = &userID.Int64
	}
	if nonUserID.Valid {
		slot.NonUserID = &nonUserID.String
	}
	if ipAddress.Valid {
		slot.IPAddress = &ipAddress.String
	}
	return &slot, nil
}

func (r *lineupSlotRepository) getOne(ctx context.Context, query string, args ...interface{}) (*entity.LineupSlot, error) {
	slot, err := scanSlot(conn(ctx, r.db).QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, entity.ErrSlotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get lineup slot: %w", err)
	}
	return slot, nil
}

func (r *lineupSlotRepository) Create(ctx context.Context, slot *entity.LineupSlot) error {
	return withTx(ctx, r.db, func(ctx context.Context) error {
		q := conn(ctx, r.db)

		// A pre-seeded "Open" row at the same number is taken over in place.
		claimed, err := scanSlot(q.QueryRowContext(ctx, `
			UPDATE lineup_slots
			SET slot_name = $1, user_id = $2, non_user_id = $3, ip_address = $4,
				created_by = $5, updated_at = NOW()
			WHERE event_id = $6 AND slot_number = $7 AND slot_name = $8
				AND user_id IS NULL AND non_user_id IS NULL
			RETURNING `+slotColumns,
			slot.SlotName, slot.UserID, slot.NonUserID, slot.IPAddress, slot.CreatedBy,
			slot.EventID, slot.SlotNumber, entity.OpenSlotName,
		))
		switch {
		case err == nil:
			*slot = *claimed
			return nil
		case !errors.Is(err, sql.ErrNoRows):
			if mapped := mapConstraintError(err); mapped != err {
				return mapped
			}
			return fmt.Errorf("failed to claim open lineup slot: %w", err)
		}

		err = q.QueryRowContext(ctx, `
			INSERT INTO lineup_slots (event_id, slot_number, slot_name, user_id, non_user_id, ip_address, created_by)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id, created_at, updated_at`,
			slot.EventID,
			slot.SlotNumber,
			slot.SlotName,
			slot.UserID,
			slot.NonUserID,
			slot.IPAddress,
			slot.CreatedBy,
		).Scan(&slot.ID, &slot.CreatedAt, &slot.UpdatedAt)
		if err != nil {
			if mapped := mapConstraintError(err); mapped != err {
				return mapped
			}
			return fmt.Errorf("failed to create lineup slot: %w", err)
		}

		return nil
	})
}

func (r *lineupSlotRepository) UpsertHostAssignment(ctx context.Context, slot *entity.LineupSlot) (*entity.LineupSlot, error) {
	var previous *entity.LineupSlot

	err := withTx(ctx, r.db, func(ctx context.Context) error {
		q := conn(ctx, r.db)

		existing, err := scanSlot(q.QueryRowContext(ctx,
			`SELECT `+slotColumns+` FROM lineup_slots WHERE event_id = $1 AND slot_number = $2 FOR UPDATE`,
			slot.EventID, slot.SlotNumber,
		))
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return r.Create(ctx, slot)
		case err != nil:
			return fmt.Errorf("failed to lock lineup slot: %w", err)
		}

		updated, err := scanSlot(q.QueryRowContext(ctx, `
			UPDATE lineup_slots
			SET slot_name = $1, user_id = NULL, non_user_id = NULL, ip_address = NULL,
				created_by = $2, updated_at = NOW()
			WHERE id = $3
			RETURNING `+slotColumns,
			slot.SlotName, slot.CreatedBy, existing.ID,
		))
		if err != nil {
			return fmt.Errorf("failed to overwrite lineup slot: %w", err)
		}

		previous = existing
		*slot = *updated
		return nil
	})
	if err != nil {
		return nil, err
	}
	return previous, nil
}

func (r *lineupSlotRepository) GetByID(ctx context.Context, id int64) (*entity.LineupSlot, error) {
	return r.getOne(ctx, `SELECT `+slotColumns+` FROM lineup_slots WHERE id = $1`, id)
}

func (r *lineupSlotRepository) GetForUpdate(ctx context.Context, id int64) (*entity.LineupSlot, error) {
	return r.getOne(ctx, `SELECT `+slotColumns+` FROM lineup_slots WHERE id = $1 FOR UPDATE`, id)
}

func (r *lineupSlotRepository) FindByUser(ctx context.Context, eventID, userID int64) (*entity.LineupSlot, error) {
	return r.getOne(ctx,
		`SELECT `+slotColumns+` FROM lineup_slots WHERE event_id = $1 AND user_id = $2`,
		eventID, userID,
	)
}

func (r *lineupSlotRepository) FindByNonUser(ctx context.Context, eventID int64, nonUserID string) (*entity.LineupSlot, error) {
	return r.getOne(ctx,
		`SELECT `+slotColumns+` FROM lineup_slots WHERE event_id = $1 AND non_user_id = $2`,
		eventID, nonUserID,
	)
}

func (r *lineupSlotRepository) ListByEvent(ctx context.Context, eventID int64) ([]*entity.LineupSlot, error) {
	query := `SELECT ` + slotColumns + ` FROM lineup_slots WHERE event_id = $1 ORDER BY slot_number ASC, id ASC`

	rows, err := conn(ctx, r.db).QueryContext(ctx, query, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to query lineup slots: %w", err)
	}
	defer rows.Close()

	slots := make([]*entity.LineupSlot, 0)
	for rows.Next() {
		slot, err := scanSlot(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan lineup slot: %w", err)
		}
		slots = append(slots, slot)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate lineup slots: %w", err)
	}

	return slots, nil
}

func (r *lineupSlotRepository) UpdateSlotNumber(ctx context.Context, id int64, slotNumber int) error {
	query := `UPDATE lineup_slots SET slot_number = $1, updated_at = NOW() WHERE id = $2`

	result, err := conn(ctx, r.db).ExecContext(ctx, query, slotNumber, id)
	if err != nil {
		if mapped := mapConstraintError(err); mapped != err {
			return mapped
		}
		return fmt.Errorf("failed to update slot number: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return entity.ErrSlotNotFound
	}

	return nil
}

func (r *lineupSlotRepository) Delete(ctx context.Context, id int64) error {
	result, err := conn(ctx, r.db).ExecContext(ctx, `DELETE FROM lineup_slots WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete lineup slot: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return entity.ErrSlotNotFound
	}

	return nil
}
