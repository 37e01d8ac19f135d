// Package billing consumes subscription and coupon events from the billing
// notifier and keeps owner profiles in sync. It never touches usage counters.
package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mmynk/cardscan/internal/models"
)

const (
	SubjectSubscriptionUpdated = "billing.subscription.updated"
	SubjectCouponRedeemed      = "billing.coupon.redeemed"
)

// ErrInvalidEvent is returned for events that cannot be applied.
var ErrInvalidEvent = errors.New("invalid billing event")

// SubscriptionUpdated is published when an owner's plan or cycle changes.
type SubscriptionUpdated struct {
	OwnerID         string `json:"owner_id"`
	Tier            string `json:"tier"`
	BillingCycleEnd int64  `json:"billing_cycle_end"`
}

// CouponRedeemed is published when an owner redeems a bonus-scan coupon.
type CouponRedeemed struct {
	OwnerID    string `json:"owner_id"`
	BonusScans int    `json:"bonus_scans"`
}

// Store is the slice of the record store billing writes to.
type Store interface {
	SetSubscription(ctx context.Context, ownerID string, tier models.Tier, billingCycleEnd int64) error
	AddBonusScans(ctx context.Context, ownerID string, n int) error
}

// Handler applies decoded billing events to owner profiles.
type Handler struct {
	store Store
}

func NewHandler(store Store) *Handler {
	return &Handler{store: store}
}

// HandleSubscriptionUpdated applies a SubscriptionUpdated payload.
// Unknown tiers fall back to starter.
func (h *Handler) HandleSubscriptionUpdated(ctx context.Context, data []byte) error {
	var ev SubscriptionUpdated
	if err := json.Unmarshal(data, &ev); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	if strings.TrimSpace(ev.OwnerID) == "" {
		return fmt.Errorf("%w: owner_id is required", ErrInvalidEvent)
	}
	if ev.BillingCycleEnd < 0 {
		return fmt.Errorf("%w: negative billing_cycle_end", ErrInvalidEvent)
	}

	tier := models.ParseTier(ev.Tier)
	if !models.Tier(strings.ToLower(strings.TrimSpace(ev.Tier))).IsValid() {
		slog.Warn("Unknown tier in subscription event, using starter", "owner_id", ev.OwnerID, "tier", ev.Tier)
	}
	if err := h.store.SetSubscription(ctx, ev.OwnerID, tier, ev.BillingCycleEnd); err != nil {
		return fmt.Errorf("failed to update subscription: %w", err)
	}
	slog.Info("Subscription updated", "owner_id", ev.OwnerID, "tier", tier, "billing_cycle_end", ev.BillingCycleEnd)
	return nil
}

// HandleCouponRedeemed applies a CouponRedeemed payload.
func (h *Handler) HandleCouponRedeemed(ctx context.Context, data []byte) error {
	var ev CouponRedeemed
	if err := json.Unmarshal(data, &ev); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	if strings.TrimSpace(ev.OwnerID) == "" {
		return fmt.Errorf("%w: owner_id is required", ErrInvalidEvent)
	}
	if ev.BonusScans <= 0 {
		return fmt.Errorf("%w: bonus_scans must be positive", ErrInvalidEvent)
	}

	if err := h.store.AddBonusScans(ctx, ev.OwnerID, ev.BonusScans); err != nil {
		return fmt.Errorf("failed to add bonus scans: %w", err)
	}
	slog.Info("Bonus scans granted", "owner_id", ev.OwnerID, "bonus_scans", ev.BonusScans)
	return nil
}
