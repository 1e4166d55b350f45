package store

import (
	"context"
	"fmt"
)

// EnsureSchema creates the tables if they do not exist. Run at startup;
// every statement is idempotent.
func (s *Store) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS calls (
			id BIGSERIAL PRIMARY KEY,
			provider_call_id TEXT NOT NULL UNIQUE,
			from_number TEXT NOT NULL DEFAULT '',
			to_number TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT '',
			started_at TIMESTAMPTZ NOT NULL,
			ended_at TIMESTAMPTZ
		)`,
		`CREATE TABLE IF NOT EXISTS technicians (
			id BIGSERIAL PRIMARY KEY,
			name TEXT NOT NULL,
			phone TEXT NOT NULL DEFAULT '',
			email TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS technician_service_areas (
			id BIGSERIAL PRIMARY KEY,
			technician_id BIGINT NOT NULL REFERENCES technicians(id),
			zip_code TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_service_areas_zip ON technician_service_areas (zip_code)`,
		`CREATE TABLE IF NOT EXISTS technician_specialties (
			id BIGSERIAL PRIMARY KEY,
			technician_id BIGINT NOT NULL REFERENCES technicians(id),
			appliance_type TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_specialties_appliance ON technician_specialties (appliance_type)`,
		`CREATE TABLE IF NOT EXISTS availability_slots (
			id BIGSERIAL PRIMARY KEY,
			technician_id BIGINT NOT NULL REFERENCES technicians(id),
			start_time TIMESTAMPTZ NOT NULL,
			end_time TIMESTAMPTZ NOT NULL,
			is_booked BOOLEAN NOT NULL DEFAULT FALSE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_slots_start ON availability_slots (start_time) WHERE NOT is_booked`,
		`CREATE TABLE IF NOT EXISTS appointments (
			id BIGSERIAL PRIMARY KEY,
			call_id TEXT NOT NULL,
			customer_phone TEXT NOT NULL DEFAULT '',
			zip_code TEXT NOT NULL DEFAULT '',
			appliance_type TEXT NOT NULL DEFAULT '',
			symptom_summary TEXT NOT NULL DEFAULT '',
			error_codes TEXT NOT NULL DEFAULT '',
			is_urgent BOOLEAN NOT NULL DEFAULT FALSE,
			technician_id BIGINT NOT NULL REFERENCES technicians(id),
			start_time TIMESTAMPTZ NOT NULL,
			end_time TIMESTAMPTZ NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS upload_tokens (
			token TEXT PRIMARY KEY,
			call_id TEXT NOT NULL,
			email TEXT NOT NULL,
			appliance_type TEXT NOT NULL DEFAULT '',
			symptom_summary TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL,
			expires_at TIMESTAMPTZ NOT NULL,
			used_at TIMESTAMPTZ,
			image_path TEXT,
			analysis_summary TEXT,
			troubleshooting_tips TEXT,
			is_appliance_image BOOLEAN
		)`,
		`CREATE INDEX IF NOT EXISTS idx_upload_tokens_call ON upload_tokens (call_id, created_at DESC)`,
		`CREATE TABLE IF NOT EXISTS call_events (
			id BIGSERIAL PRIMARY KEY,
			call_id TEXT NOT NULL,
			event_type TEXT NOT NULL,
			payload JSONB NOT NULL DEFAULT '{}',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_call_events_call ON call_events (call_id, created_at)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
