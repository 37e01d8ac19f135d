// Package postgres provides a PostgreSQL-backed implementation of the
// storage.Store interface on top of a pgx connection pool.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mmynk/cardscan/internal/models"
	"github.com/mmynk/cardscan/internal/storage"
)

var _ storage.Store = (*PostgresStore)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS contacts (
    id TEXT PRIMARY KEY,
    owner_id TEXT NOT NULL,
    first_name TEXT NOT NULL DEFAULT '',
    last_name TEXT NOT NULL DEFAULT '',
    job_title TEXT NOT NULL DEFAULT '',
    company TEXT NOT NULL DEFAULT '',
    email TEXT NOT NULL DEFAULT '',
    phone TEXT NOT NULL DEFAULT '',
    website TEXT NOT NULL DEFAULT '',
    address TEXT NOT NULL DEFAULT '',
    notes TEXT NOT NULL DEFAULT '',
    card_image_ref TEXT NOT NULL DEFAULT '',
    logo_image_ref TEXT NOT NULL DEFAULT '',
    created_at BIGINT NOT NULL,
    scanned_at BIGINT,
    seq BIGSERIAL
);

CREATE TABLE IF NOT EXISTS usage_counters (
    id TEXT PRIMARY KEY,
    owner_id TEXT NOT NULL,
    scans_count INTEGER NOT NULL DEFAULT 0 CHECK (scans_count >= 0),
    cycle_start BIGINT NOT NULL,
    cycle_end BIGINT NOT NULL,
    created_at BIGINT NOT NULL,
    seq BIGSERIAL
);

CREATE TABLE IF NOT EXISTS profiles (
    owner_id TEXT PRIMARY KEY,
    tier TEXT NOT NULL DEFAULT 'starter',
    is_admin BOOLEAN NOT NULL DEFAULT FALSE,
    bonus_scans INTEGER NOT NULL DEFAULT 0,
    billing_cycle_end BIGINT NOT NULL DEFAULT 0,
    updated_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS dismissed_pairs (
    owner_id TEXT NOT NULL,
    pair_key TEXT NOT NULL,
    created_at BIGINT NOT NULL,
    PRIMARY KEY (owner_id, pair_key)
);

CREATE INDEX IF NOT EXISTS idx_contacts_owner_created ON contacts(owner_id, created_at);
CREATE INDEX IF NOT EXISTS idx_contacts_owner_email ON contacts(owner_id, lower(btrim(email)));
CREATE INDEX IF NOT EXISTS idx_usage_owner_created ON usage_counters(owner_id, created_at);
`

// PostgresStore implements storage.Store using PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// New connects to the database at dsn and runs migrations.
func New(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

const contactColumns = `id, owner_id, first_name, last_name, job_title, company, email, phone,
	website, address, notes, card_image_ref, logo_image_ref, created_at, scanned_at`

func (s *PostgresStore) CreateContact(ctx context.Context, c *models.Contact) error {
	if c.OwnerID == "" {
		return fmt.Errorf("failed to insert contact: owner id is required")
	}
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.CreatedAt == 0 {
		c.CreatedAt = time.Now().Unix()
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO contacts (`+contactColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		c.ID, c.OwnerID, c.FirstName, c.LastName, c.JobTitle, c.Company, c.Email, c.Phone,
		c.Website, c.Address, c.Notes, c.CardImageRef, c.LogoImageRef, c.CreatedAt, nullableTime(c.ScannedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert contact: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetContact(ctx context.Context, ownerID, contactID string) (*models.Contact, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+contactColumns+` FROM contacts WHERE id = $1 AND owner_id = $2`,
		contactID, ownerID,
	)
	c, err := scanContact(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("contact %s: %w", contactID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get contact: %w", err)
	}
	return c, nil
}

func (s *PostgresStore) UpdateContact(ctx context.Context, c *models.Contact) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE contacts SET first_name = $1, last_name = $2, job_title = $3, company = $4, email = $5,
		 phone = $6, website = $7, address = $8, notes = $9, card_image_ref = $10, logo_image_ref = $11, scanned_at = $12
		 WHERE id = $13 AND owner_id = $14`,
		c.FirstName, c.LastName, c.JobTitle, c.Company, c.Email,
		c.Phone, c.Website, c.Address, c.Notes, c.CardImageRef, c.LogoImageRef, nullableTime(c.ScannedAt),
		c.ID, c.OwnerID,
	)
	if err != nil {
		return fmt.Errorf("failed to update contact: %w", err)
	}
	return expectOneRow(tag, "contact", c.ID)
}

func (s *PostgresStore) DeleteContact(ctx context.Context, ownerID, contactID string) error {
	tag, err := s.pool.Exec(ctx,
		"DELETE FROM contacts WHERE id = $1 AND owner_id = $2",
		contactID, ownerID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete contact: %w", err)
	}
	return expectOneRow(tag, "contact", contactID)
}

func (s *PostgresStore) FindContactsByEmail(ctx context.Context, ownerID, email string) ([]*models.Contact, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+contactColumns+` FROM contacts
		 WHERE owner_id = $1 AND lower(btrim(email)) = lower(btrim($2))
		 ORDER BY created_at DESC, seq DESC`,
		ownerID, email,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to find contacts by email: %w", err)
	}
	return collectContacts(rows)
}

func (s *PostgresStore) ListContacts(ctx context.Context, ownerID string, limit int) ([]*models.Contact, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+contactColumns+` FROM contacts
		 WHERE owner_id = $1
		 ORDER BY created_at DESC, seq DESC
		 LIMIT $2`,
		ownerID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list contacts: %w", err)
	}
	return collectContacts(rows)
}

func (s *PostgresStore) LatestUsage(ctx context.Context, ownerID string) (*models.UsageCounter, error) {
	u := &models.UsageCounter{}
	err := s.pool.QueryRow(ctx,
		`SELECT id, owner_id, scans_count, cycle_start, cycle_end, created_at
		 FROM usage_counters WHERE owner_id = $1
		 ORDER BY created_at DESC, seq DESC LIMIT 1`,
		ownerID,
	).Scan(&u.ID, &u.OwnerID, &u.ScansCount, &u.CycleStart, &u.CycleEnd, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get usage counter: %w", err)
	}
	return u, nil
}

func (s *PostgresStore) CreateUsage(ctx context.Context, u *models.UsageCounter) error {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	if u.CreatedAt == 0 {
		u.CreatedAt = time.Now().Unix()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO usage_counters (id, owner_id, scans_count, cycle_start, cycle_end, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		u.ID, u.OwnerID, u.ScansCount, u.CycleStart, u.CycleEnd, u.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert usage counter: %w", err)
	}
	return nil
}

func (s *PostgresStore) IncrementUsage(ctx context.Context, counterID string) error {
	tag, err := s.pool.Exec(ctx,
		"UPDATE usage_counters SET scans_count = scans_count + 1 WHERE id = $1",
		counterID,
	)
	if err != nil {
		return fmt.Errorf("failed to increment usage counter: %w", err)
	}
	return expectOneRow(tag, "usage counter", counterID)
}

func (s *PostgresStore) GetProfile(ctx context.Context, ownerID string) (*models.Profile, error) {
	p := &models.Profile{}
	var tier string
	err := s.pool.QueryRow(ctx,
		`SELECT owner_id, tier, is_admin, bonus_scans, billing_cycle_end, updated_at
		 FROM profiles WHERE owner_id = $1`,
		ownerID,
	).Scan(&p.OwnerID, &tier, &p.IsAdmin, &p.BonusScans, &p.BillingCycleEnd, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	p.Tier = models.ParseTier(tier)
	return p, nil
}

func (s *PostgresStore) UpsertProfile(ctx context.Context, p *models.Profile) error {
	if p.UpdatedAt == 0 {
		p.UpdatedAt = time.Now().Unix()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO profiles (owner_id, tier, is_admin, bonus_scans, billing_cycle_end, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (owner_id) DO UPDATE SET
		   tier = EXCLUDED.tier,
		   is_admin = EXCLUDED.is_admin,
		   bonus_scans = EXCLUDED.bonus_scans,
		   billing_cycle_end = EXCLUDED.billing_cycle_end,
		   updated_at = EXCLUDED.updated_at`,
		p.OwnerID, string(p.Tier), p.IsAdmin, p.BonusScans, p.BillingCycleEnd, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert profile: %w", err)
	}
	return nil
}

func (s *PostgresStore) SetSubscription(ctx context.Context, ownerID string, tier models.Tier, billingCycleEnd int64) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO profiles (owner_id, tier, billing_cycle_end, updated_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (owner_id) DO UPDATE SET
		   tier = EXCLUDED.tier,
		   billing_cycle_end = EXCLUDED.billing_cycle_end,
		   updated_at = EXCLUDED.updated_at`,
		ownerID, string(tier), billingCycleEnd, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to set subscription: %w", err)
	}
	return nil
}

func (s *PostgresStore) AddBonusScans(ctx context.Context, ownerID string, n int) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO profiles (owner_id, bonus_scans, updated_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (owner_id) DO UPDATE SET
		   bonus_scans = profiles.bonus_scans + EXCLUDED.bonus_scans,
		   updated_at = EXCLUDED.updated_at`,
		ownerID, n, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to add bonus scans: %w", err)
	}
	return nil
}

func (s *PostgresStore) DismissPair(ctx context.Context, ownerID, pairKey string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO dismissed_pairs (owner_id, pair_key, created_at) VALUES ($1, $2, $3)
		 ON CONFLICT (owner_id, pair_key) DO NOTHING`,
		ownerID, pairKey, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to dismiss pair: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListDismissed(ctx context.Context, ownerID string) (map[string]struct{}, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT pair_key FROM dismissed_pairs WHERE owner_id = $1",
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list dismissed pairs: %w", err)
	}
	keys, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to collect dismissed pairs: %w", err)
	}

	set := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		set[k] = struct{}{}
	}
	return set, nil
}

func scanContact(row pgx.Row) (*models.Contact, error) {
	c := &models.Contact{}
	var scannedAt *int64
	err := row.Scan(
		&c.ID, &c.OwnerID, &c.FirstName, &c.LastName, &c.JobTitle, &c.Company, &c.Email, &c.Phone,
		&c.Website, &c.Address, &c.Notes, &c.CardImageRef, &c.LogoImageRef, &c.CreatedAt, &scannedAt,
	)
	if err != nil {
		return nil, err
	}
	if scannedAt != nil {
		c.ScannedAt = *scannedAt
	}
	return c, nil
}

func collectContacts(rows pgx.Rows) ([]*models.Contact, error) {
	defer rows.Close()

	var contacts []*models.Contact
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan contact: %w", err)
		}
		contacts = append(contacts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate contacts: %w", err)
	}
	return contacts, nil
}

func expectOneRow(tag pgconn.CommandTag, kind, id string) error {
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, storage.ErrNotFound)
	}
	return nil
}

func nullableTime(ts int64) *int64 {
	if ts == 0 {
		return nil
	}
	return &ts
}
