package billing

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/mmynk/cardscan/internal/models"
	"github.com/mmynk/cardscan/internal/storage/sqlite"
)

func newHandler(t *testing.T) (*Handler, *sqlite.SQLiteStore) {
	t.Helper()
	store, err := sqlite.New(filepath.Join(t.TempDir(), "billing.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return NewHandler(store), store
}

func TestHandleSubscriptionUpdated(t *testing.T) {
	h, store := newHandler(t)
	ctx := context.Background()

	err := h.HandleSubscriptionUpdated(ctx, []byte(`{"owner_id":"alice","tier":"Pro","billing_cycle_end":1900000000}`))
	if err != nil {
		t.Fatalf("HandleSubscriptionUpdated failed: %v", err)
	}
	p, err := store.GetProfile(ctx, "alice")
	if err != nil || p == nil {
		t.Fatalf("GetProfile = %v, %v", p, err)
	}
	if p.Tier != models.TierPro || p.BillingCycleEnd != 1900000000 {
		t.Errorf("unexpected profile: %+v", p)
	}
	if p.ScanLimit() != 500 {
		t.Errorf("ScanLimit = %d, want 500", p.ScanLimit())
	}

	// Unknown tiers downgrade to starter rather than failing.
	if err := h.HandleSubscriptionUpdated(ctx, []byte(`{"owner_id":"alice","tier":"platinum"}`)); err != nil {
		t.Fatalf("HandleSubscriptionUpdated failed: %v", err)
	}
	p, _ = store.GetProfile(ctx, "alice")
	if p.Tier != models.TierStarter {
		t.Errorf("Tier = %q, want starter", p.Tier)
	}
}

func TestHandleCouponRedeemed(t *testing.T) {
	h, store := newHandler(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := h.HandleCouponRedeemed(ctx, []byte(`{"owner_id":"bob","bonus_scans":25}`)); err != nil {
			t.Fatalf("HandleCouponRedeemed failed: %v", err)
		}
	}
	p, err := store.GetProfile(ctx, "bob")
	if err != nil || p == nil {
		t.Fatalf("GetProfile = %v, %v", p, err)
	}
	if p.BonusScans != 50 {
		t.Errorf("BonusScans = %d, want 50", p.BonusScans)
	}
	if p.ScanLimit() != 60 {
		t.Errorf("ScanLimit = %d, want starter 10 + 50 bonus", p.ScanLimit())
	}
}

func TestHandlers_RejectInvalidEvents(t *testing.T) {
	h, _ := newHandler(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		handle func(context.Context, []byte) error
		data   string
	}{
		{"subscription not json", h.HandleSubscriptionUpdated, `tier=pro`},
		{"subscription without owner", h.HandleSubscriptionUpdated, `{"tier":"pro"}`},
		{"subscription negative cycle", h.HandleSubscriptionUpdated, `{"owner_id":"a","billing_cycle_end":-1}`},
		{"coupon without owner", h.HandleCouponRedeemed, `{"bonus_scans":5}`},
		{"coupon zero scans", h.HandleCouponRedeemed, `{"owner_id":"a","bonus_scans":0}`},
		{"coupon wrong type", h.HandleCouponRedeemed, `{"owner_id":"a","bonus_scans":"many"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.handle(ctx, []byte(tt.data)); !errors.Is(err, ErrInvalidEvent) {
				t.Errorf("expected ErrInvalidEvent, got %v", err)
			}
		})
	}
}
