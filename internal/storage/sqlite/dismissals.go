package sqlite

import (
	"context"
	"fmt"
	"time"
)

// DismissPair records a dismissed duplicate pair.
func (s *SQLiteStore) DismissPair(ctx context.Context, ownerID, pairKey string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO dismissed_pairs (owner_id, pair_key, created_at) VALUES (?, ?, ?)
		 ON CONFLICT(owner_id, pair_key) DO NOTHING`,
		ownerID, pairKey, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to dismiss pair: %w", err)
	}
	return nil
}

// ListDismissed returns the owner's dismissed pair keys.
func (s *SQLiteStore) ListDismissed(ctx context.Context, ownerID string) (map[string]struct{}, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT pair_key FROM dismissed_pairs WHERE owner_id = ?",
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list dismissed pairs: %w", err)
	}
	defer rows.Close()

	keys := make(map[string]struct{})
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("failed to scan dismissed pair: %w", err)
		}
		keys[key] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate dismissed pairs: %w", err)
	}
	return keys, nil
}
