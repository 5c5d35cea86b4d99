package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/ds124wfegd/openmic-lineup/internal/entity"
	"github.com/lib/pq"
)

const (
	uniqueViolation = "23505"

	constraintEventSlot    = "lineup_slots_event_slot_key"
	constraintEventUser    = "lineup_slots_event_user_key"
	constraintEventNonUser = "lineup_slots_event_non_user_key"
)

type txKey struct{}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

type transactor struct {
	db *sql.DB
}

func NewTransactor(db *sql.DB) Transactor {
	return &transactor{db: db}
}

func (t *transactor) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, t.db, fn)
}

// withTx runs fn in a transaction carried by ctx. Nested calls join the
// outer transaction.
func withTx(ctx context.Context, db *sql.DB, fn func(ctx context.Context) error) error {
	if txFromContext(ctx) != nil {
		return fn(ctx)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	txCtx := context.WithValue(ctx, txKey{}, tx)
	if err := fn(txCtx); err != nil {
		_ = tx.Rollback()
		return err
	}
	// deferred constraints are checked here
	return mapConstraintError(tx.Commit())
}

func txFromContext(ctx context.Context) *sql.Tx {
	tx, _ := ctx.Value(txKey{}).(*sql.Tx)
	return tx
}

func conn(ctx context.Context, db *sql.DB) querier {
	if tx := txFromContext(ctx); tx != nil {
		return tx
	}
	return db
}

func isUniqueViolation(err error) (string, bool) {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return pqErr.Constraint, true
	}
	return "", false
}

// mapConstraintError turns lineup uniqueness violations into domain errors.
func mapConstraintError(err error) error {
	constraint, ok := isUniqueViolation(err)
	if !ok {
		return err
	}
	switch constraint {
	case constraintEventUser, constraintEventNonUser:
		return entity.ErrDuplicateSlot
	case constraintEventSlot:
		return entity.ErrSlotTaken
	default:
		return err
	}
}
