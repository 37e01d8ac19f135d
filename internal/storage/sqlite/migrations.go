package sqlite

import "database/sql"

// schema sets up the database. It runs on startup to ensure tables exist.
const schema = `
CREATE TABLE IF NOT EXISTS contacts (
    id TEXT PRIMARY KEY,
    owner_id TEXT NOT NULL,
    first_name TEXT NOT NULL DEFAULT '',
    last_name TEXT NOT NULL DEFAULT '',
    job_title TEXT NOT NULL DEFAULT '',
    company TEXT NOT NULL DEFAULT '',
    email TEXT NOT NULL DEFAULT '',
    email_key TEXT NOT NULL DEFAULT '',
    phone TEXT NOT NULL DEFAULT '',
    website TEXT NOT NULL DEFAULT '',
    address TEXT NOT NULL DEFAULT '',
    notes TEXT NOT NULL DEFAULT '',
    card_image_ref TEXT NOT NULL DEFAULT '',
    logo_image_ref TEXT NOT NULL DEFAULT '',
    created_at INTEGER NOT NULL,
    scanned_at INTEGER
);

CREATE TABLE IF NOT EXISTS usage_counters (
    id TEXT PRIMARY KEY,
    owner_id TEXT NOT NULL,
    scans_count INTEGER NOT NULL DEFAULT 0 CHECK (scans_count >= 0),
    cycle_start INTEGER NOT NULL,
    cycle_end INTEGER NOT NULL,
    created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS profiles (
    owner_id TEXT PRIMARY KEY,
    tier TEXT NOT NULL DEFAULT 'starter',
    is_admin INTEGER NOT NULL DEFAULT 0,
    bonus_scans INTEGER NOT NULL DEFAULT 0,
    billing_cycle_end INTEGER NOT NULL DEFAULT 0,
    updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS dismissed_pairs (
    owner_id TEXT NOT NULL,
    pair_key TEXT NOT NULL,
    created_at INTEGER NOT NULL,
    PRIMARY KEY (owner_id, pair_key)
);

CREATE INDEX IF NOT EXISTS idx_contacts_owner_created ON contacts(owner_id, created_at);
CREATE INDEX IF NOT EXISTS idx_contacts_owner_email ON contacts(owner_id, email_key);
CREATE INDEX IF NOT EXISTS idx_usage_owner_created ON usage_counters(owner_id, created_at);
`

// runMigrations executes the schema setup.
func runMigrations(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}
