package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/mmynk/cardscan/internal/models"
)

// GetProfile retrieves the owner's profile.
func (s *SQLiteStore) GetProfile(ctx context.Context, ownerID string) (*models.Profile, error) {
	p := &models.Profile{}
	var tier string
	err := s.db.QueryRowContext(ctx,
		`SELECT owner_id, tier, is_admin, bonus_scans, billing_cycle_end, updated_at
		 FROM profiles WHERE owner_id = ?`,
		ownerID,
	).Scan(&p.OwnerID, &tier, &p.IsAdmin, &p.BonusScans, &p.BillingCycleEnd, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil // Profile not found
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	p.Tier = models.ParseTier(tier)
	return p, nil
}

// UpsertProfile writes the full profile.
func (s *SQLiteStore) UpsertProfile(ctx context.Context, p *models.Profile) error {
	if p.UpdatedAt == 0 {
		p.UpdatedAt = time.Now().Unix()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO profiles (owner_id, tier, is_admin, bonus_scans, billing_cycle_end, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(owner_id) DO UPDATE SET
		   tier = excluded.tier,
		   is_admin = excluded.is_admin,
		   bonus_scans = excluded.bonus_scans,
		   billing_cycle_end = excluded.billing_cycle_end,
		   updated_at = excluded.updated_at`,
		p.OwnerID, string(p.Tier), p.IsAdmin, p.BonusScans, p.BillingCycleEnd, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert profile: %w", err)
	}
	return nil
}

// SetSubscription updates tier and billing cycle end.
func (s *SQLiteStore) SetSubscription(ctx context.Context, ownerID string, tier models.Tier, billingCycleEnd int64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO profiles (owner_id, tier, billing_cycle_end, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(owner_id) DO UPDATE SET
		   tier = excluded.tier,
		   billing_cycle_end = excluded.billing_cycle_end,
		   updated_at = excluded.updated_at`,
		ownerID, string(tier), billingCycleEnd, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to set subscription: %w", err)
	}
	return nil
}

// AddBonusScans grants n extra scans.
func (s *SQLiteStore) AddBonusScans(ctx context.Context, ownerID string, n int) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO profiles (owner_id, bonus_scans, updated_at)
		 VALUES (?, ?, ?)
		 ON CONFLICT(owner_id) DO UPDATE SET
		   bonus_scans = bonus_scans + excluded.bonus_scans,
		   updated_at = excluded.updated_at`,
		ownerID, n, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to add bonus scans: %w", err)
	}
	return nil
}
