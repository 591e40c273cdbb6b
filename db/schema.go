// ABOUTME: Database schema definitions and migrations
// ABOUTME: Creates bookings, CRM contacts, interaction log, and sync state tables
package db

import (
	"database/sql"
)

const schema = `
CREATE TABLE IF NOT EXISTS bookings (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	email TEXT NOT NULL,
	phone TEXT NOT NULL DEFAULT '',
	company TEXT NOT NULL DEFAULT '',
	inquiry TEXT NOT NULL DEFAULT '',
	start_at INTEGER NOT NULL,
	duration_minutes INTEGER NOT NULL CHECK(duration_minutes IN (15, 30, 45, 60)),
	status TEXT NOT NULL CHECK(status IN ('pending', 'confirmed', 'cancelled', 'completed', 'no_show')),
	confirmation_sent INTEGER NOT NULL DEFAULT 0,
	calendar_synced INTEGER NOT NULL DEFAULT 0,
	requires_manual_calendar_sync INTEGER NOT NULL DEFAULT 0,
	crm_synced INTEGER NOT NULL DEFAULT 0,
	requires_manual_crm_sync INTEGER NOT NULL DEFAULT 0,
	calendar_event_id TEXT NOT NULL DEFAULT '',
	crm_contact_id TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_bookings_start_at ON bookings(start_at);
CREATE INDEX IF NOT EXISTS idx_bookings_email_created ON bookings(email COLLATE NOCASE, created_at);

-- Two active bookings can never share a start time, even if two writers
-- race past the overlap check.
CREATE UNIQUE INDEX IF NOT EXISTS idx_bookings_active_start ON bookings(start_at) WHERE status != 'cancelled';

CREATE TABLE IF NOT EXISTS contacts (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	email TEXT NOT NULL,
	phone TEXT,
	company TEXT,
	notes TEXT,
	last_contacted_at DATETIME,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_contacts_email ON contacts(email COLLATE NOCASE);

CREATE TABLE IF NOT EXISTS interaction_log (
	id TEXT PRIMARY KEY,
	contact_id TEXT NOT NULL,
	booking_id TEXT,
	interaction_type TEXT NOT NULL CHECK(interaction_type IN ('booked', 'rescheduled', 'cancelled', 'status')),
	timestamp DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	notes TEXT,
	FOREIGN KEY (contact_id) REFERENCES contacts(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_interaction_log_contact ON interaction_log(contact_id);
CREATE INDEX IF NOT EXISTS idx_interaction_log_booking ON interaction_log(booking_id);
CREATE INDEX IF NOT EXISTS idx_interaction_log_timestamp ON interaction_log(timestamp DESC);

CREATE TABLE IF NOT EXISTS sync_state (
	service TEXT PRIMARY KEY,
	last_sync_time DATETIME,
	last_summary TEXT,
	status TEXT CHECK(status IN ('idle', 'syncing', 'error')),
	error_message TEXT,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

func InitSchema(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}
