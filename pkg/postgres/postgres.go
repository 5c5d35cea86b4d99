package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ds124wfegd/openmic-lineup/config"
	"github.com/sirupsen/logrus"

	_ "github.com/lib/pq"
)

// advisory lock id serialising concurrent migration runs
const migrationLockID int64 = 734001

func DSN(cfg *config.DatabaseConfig) string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode,
	)
}

func NewPostgresDB(cfg *config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", DSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logrus.Info("Successfully connected to PostgreSQL")
	return db, nil
}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id BIGSERIAL PRIMARY KEY,
		email VARCHAR(255) UNIQUE NOT NULL,
		name VARCHAR(255) NOT NULL,
		telegram_id VARCHAR(100),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS venues (
		id BIGSERIAL PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		address TEXT NOT NULL DEFAULT '',
		timezone VARCHAR(64) NOT NULL DEFAULT 'UTC'
	)`,

	`CREATE TABLE IF NOT EXISTS events (
		id BIGSERIAL PRIMARY KEY,
		venue_id BIGINT NOT NULL REFERENCES venues(id),
		host_id BIGINT NOT NULL REFERENCES users(id),
		name VARCHAR(255) NOT NULL,
		start_time TIMESTAMPTZ NOT NULL,
		end_time TIMESTAMPTZ NOT NULL,
		slot_duration INTERVAL NOT NULL DEFAULT INTERVAL '10 minutes',
		setup_duration INTERVAL NOT NULL DEFAULT INTERVAL '0 minutes',
		active BOOLEAN NOT NULL DEFAULT TRUE,
		is_signup_open BOOLEAN NOT NULL DEFAULT TRUE,
		event_types TEXT[] NOT NULL DEFAULT '{}',
		image_url TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CONSTRAINT events_time_range CHECK (start_time < end_time)
	)`,

	`CREATE TABLE IF NOT EXISTS lineup_slots (
		id BIGSERIAL PRIMARY KEY,
		event_id BIGINT NOT NULL REFERENCES events(id),
		slot_number INTEGER NOT NULL CHECK (slot_number > 0),
		slot_name VARCHAR(255) NOT NULL DEFAULT 'Open',
		user_id BIGINT REFERENCES users(id),
		non_user_id VARCHAR(64),
		ip_address VARCHAR(64),
		created_by VARCHAR(128) NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CONSTRAINT lineup_slots_event_slot_key UNIQUE (event_id, slot_number) DEFERRABLE INITIALLY DEFERRED
	)`,

	`CREATE UNIQUE INDEX IF NOT EXISTS lineup_slots_event_user_key
		ON lineup_slots(event_id, user_id) WHERE user_id IS NOT NULL`,
	`CREATE UNIQUE INDEX IF NOT EXISTS lineup_slots_event_non_user_key
		ON lineup_slots(event_id, non_user_id) WHERE non_user_id IS NOT NULL`,

	`CREATE TABLE IF NOT EXISTS notification_preferences (
		user_id BIGINT PRIMARY KEY REFERENCES users(id),
		event_notifications BOOLEAN NOT NULL DEFAULT TRUE,
		lineup_notifications BOOLEAN NOT NULL DEFAULT TRUE,
		other_notifications BOOLEAN NOT NULL DEFAULT TRUE,
		external_notifications BOOLEAN NOT NULL DEFAULT FALSE,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS notifications (
		id BIGSERIAL PRIMARY KEY,
		user_id BIGINT NOT NULL REFERENCES users(id),
		type VARCHAR(32) NOT NULL,
		message TEXT NOT NULL,
		event_id BIGINT REFERENCES events(id),
		lineup_slot_id BIGINT,
		is_read BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	// Indexes
	`CREATE INDEX IF NOT EXISTS idx_lineup_slots_event_id ON lineup_slots(event_id, slot_number)`,
	`CREATE INDEX IF NOT EXISTS idx_notifications_user_id ON notifications(user_id, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_notifications_event_id ON notifications(event_id)`,
}

// RunMigrations applies the schema inside one transaction guarded by an
// advisory lock, so parallel instances starting together do not race.
func RunMigrations(db *sql.DB) error {
	ctx := context.Background()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin migration transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, migrationLockID); err != nil {
		return fmt.Errorf("failed to acquire migration lock: %w", err)
	}

	for _, migration := range migrations {
		if _, err := tx.ExecContext(ctx, migration); err != nil {
			return fmt.Errorf("failed to execute migration: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migrations: %w", err)
	}

	logrus.Info("Database migrations completed successfully")
	return nil
}
