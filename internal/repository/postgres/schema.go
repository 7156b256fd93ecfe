package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/dentallab-api/internal/model"
)

// schema is kept to the SQL subset shared by postgres and sqlite.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS laboratories (
		id UUID PRIMARY KEY,
		owner_subject TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		email TEXT NOT NULL DEFAULT '',
		phone TEXT NOT NULL DEFAULT '',
		address TEXT NOT NULL DEFAULT '',
		active BOOLEAN NOT NULL DEFAULT FALSE,
		brand_color TEXT NOT NULL DEFAULT '',
		logo_url TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS clinics (
		id UUID PRIMARY KEY,
		owner_subject TEXT UNIQUE,
		name TEXT NOT NULL,
		email TEXT NOT NULL DEFAULT '',
		phone TEXT NOT NULL DEFAULT '',
		address TEXT NOT NULL DEFAULT '',
		active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS services (
		id UUID PRIMARY KEY,
		lab_id UUID NOT NULL REFERENCES laboratories(id),
		name TEXT NOT NULL,
		material TEXT NOT NULL DEFAULT '',
		base_price NUMERIC(12,2) NOT NULL CHECK (base_price >= 0),
		lead_time_days INTEGER NOT NULL DEFAULT 0,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_services_lab ON services (lab_id)`,
	`CREATE TABLE IF NOT EXISTS price_tables (
		id UUID PRIMARY KEY,
		lab_id UUID NOT NULL REFERENCES laboratories(id),
		name TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS price_table_items (
		id UUID PRIMARY KEY,
		table_id UUID NOT NULL REFERENCES price_tables(id) ON DELETE CASCADE,
		service_id UUID NOT NULL REFERENCES services(id),
		price NUMERIC(12,2) NOT NULL CHECK (price >= 0),
		created_at TIMESTAMP NOT NULL,
		UNIQUE (table_id, service_id)
	)`,
	`CREATE TABLE IF NOT EXISTS lab_clinic_links (
		id UUID PRIMARY KEY,
		lab_id UUID NOT NULL REFERENCES laboratories(id),
		clinic_id UUID NOT NULL REFERENCES clinics(id),
		active BOOLEAN NOT NULL DEFAULT TRUE,
		price_table_id UUID REFERENCES price_tables(id),
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_links_active_pair ON lab_clinic_links (lab_id, clinic_id) WHERE active`,
	`CREATE TABLE IF NOT EXISTS invite_tokens (
		id UUID PRIMARY KEY,
		lab_id UUID NOT NULL REFERENCES laboratories(id),
		email TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL,
		expires_at TIMESTAMP NOT NULL,
		used BOOLEAN NOT NULL DEFAULT FALSE
	)`,
	`CREATE TABLE IF NOT EXISTS jobs (
		id UUID PRIMARY KEY,
		lab_id UUID NOT NULL REFERENCES laboratories(id),
		clinic_id UUID NOT NULL REFERENCES clinics(id),
		service_id UUID REFERENCES services(id),
		patient_name TEXT NOT NULL,
		teeth TEXT NOT NULL DEFAULT '',
		shade TEXT NOT NULL DEFAULT '',
		notes TEXT NOT NULL DEFAULT '',
		promised_date TIMESTAMP NOT NULL,
		status TEXT NOT NULL,
		final_price NUMERIC(12,2) NOT NULL CHECK (final_price >= 0),
		paid BOOLEAN NOT NULL DEFAULT FALSE,
		created_by TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_jobs_lab ON jobs (lab_id)`,
	`CREATE INDEX IF NOT EXISTS idx_jobs_clinic ON jobs (clinic_id)`,
	`CREATE TABLE IF NOT EXISTS job_attachments (
		id UUID PRIMARY KEY,
		job_id UUID NOT NULL REFERENCES jobs(id),
		file_name TEXT NOT NULL,
		content_type TEXT NOT NULL DEFAULT '',
		size_bytes BIGINT NOT NULL DEFAULT 0,
		storage_key TEXT NOT NULL,
		url TEXT NOT NULL,
		uploaded_by TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS job_messages (
		id UUID PRIMARY KEY,
		job_id UUID NOT NULL REFERENCES jobs(id),
		author_kind TEXT NOT NULL,
		author_id UUID NOT NULL,
		body TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS notifications (
		id UUID PRIMARY KEY,
		recipient_kind TEXT NOT NULL,
		recipient_id UUID NOT NULL,
		title TEXT NOT NULL,
		body TEXT NOT NULL DEFAULT '',
		link TEXT,
		is_read BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_notifications_recipient ON notifications (recipient_kind, recipient_id, is_read)`,
}

// Migrate creates any missing tables and indexes.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema statement %d: %w", i, err)
		}
	}
	return nil
}

// NormalizeLegacyStatuses rewrites historical status strings to their
// canonical values and returns the number of jobs touched.
func NormalizeLegacyStatuses(ctx context.Context, db *sqlx.DB) (int64, error) {
	var total int64
	for legacy, canonical := range model.LegacyStatusAliases() {
		result, err := db.ExecContext(ctx, db.Rebind(`UPDATE jobs SET status = ? WHERE status = ?`), string(canonical), legacy)
		if err != nil {
			return total, fmt.Errorf("failed to normalize status %s: %w", legacy, err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return total, fmt.Errorf("failed to get rows affected: %w", err)
		}
		total += n
	}
	return total, nil
}
