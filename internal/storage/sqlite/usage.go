package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/cardscan/internal/models"
)

// LatestUsage returns the owner's most recently created counter.
func (s *SQLiteStore) LatestUsage(ctx context.Context, ownerID string) (*models.UsageCounter, error) {
	u := &models.UsageCounter{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, owner_id, scans_count, cycle_start, cycle_end, created_at
		 FROM usage_counters WHERE owner_id = ?
		 ORDER BY created_at DESC, rowid DESC LIMIT 1`,
		ownerID,
	).Scan(&u.ID, &u.OwnerID, &u.ScansCount, &u.CycleStart, &u.CycleEnd, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get usage counter: %w", err)
	}
	return u, nil
}

// CreateUsage persists a new usage counter.
func (s *SQLiteStore) CreateUsage(ctx context.Context, u *models.UsageCounter) error {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	if u.CreatedAt == 0 {
		u.CreatedAt = time.Now().Unix()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO usage_counters (id, owner_id, scans_count, cycle_start, cycle_end, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		u.ID, u.OwnerID, u.ScansCount, u.CycleStart, u.CycleEnd, u.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert usage counter: %w", err)
	}
	return nil
}

// IncrementUsage adds one scan to the counter.
func (s *SQLiteStore) IncrementUsage(ctx context.Context, counterID string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE usage_counters SET scans_count = scans_count + 1 WHERE id = ?",
		counterID,
	)
	if err != nil {
		return fmt.Errorf("failed to increment usage counter: %w", err)
	}
	return expectOneRow(res, "usage counter", counterID)
}
