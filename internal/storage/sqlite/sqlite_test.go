package sqlite

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mmynk/cardscan/internal/models"
	"github.com/mmynk/cardscan/internal/storage"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	tempDir, err := os.MkdirTemp("", "cardscan-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(tempDir) })

	store, err := New(filepath.Join(tempDir, "test.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteStore_Contacts(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	t.Run("CreateContact generates ID and CreatedAt", func(t *testing.T) {
		c := &models.Contact{OwnerID: "owner-1", FirstName: "Ada", LastName: "Lovelace"}
		if err := store.CreateContact(ctx, c); err != nil {
			t.Fatalf("CreateContact failed: %v", err)
		}
		if c.ID == "" {
			t.Error("Expected contact ID to be generated")
		}
		if c.CreatedAt == 0 {
			t.Error("Expected CreatedAt to be set")
		}
	})

	t.Run("CreateContact requires owner", func(t *testing.T) {
		if err := store.CreateContact(ctx, &models.Contact{FirstName: "Nobody"}); err == nil {
			t.Error("Expected error for contact without owner")
		}
	})

	t.Run("GetContact round trips every field", func(t *testing.T) {
		original := &models.Contact{
			OwnerID:      "owner-1",
			FirstName:    "Grace",
			LastName:     "Hopper",
			JobTitle:     "Rear Admiral",
			Company:      "US Navy",
			Email:        "grace@navy.mil",
			Phone:        "+1 555 010 1234",
			Website:      "navy.mil",
			Address:      "Arlington, VA",
			Notes:        "met at the conference",
			CardImageRef: "cards/grace.jpg",
			ScannedAt:    time.Now().Add(-time.Hour).Unix(),
		}
		if err := store.CreateContact(ctx, original); err != nil {
			t.Fatalf("CreateContact failed: %v", err)
		}

		got, err := store.GetContact(ctx, "owner-1", original.ID)
		if err != nil {
			t.Fatalf("GetContact failed: %v", err)
		}
		if *got != *original {
			t.Errorf("GetContact = %+v, want %+v", got, original)
		}
	})

	t.Run("GetContact is scoped by owner", func(t *testing.T) {
		c := &models.Contact{OwnerID: "owner-1", FirstName: "Private"}
		if err := store.CreateContact(ctx, c); err != nil {
			t.Fatalf("CreateContact failed: %v", err)
		}
		_, err := store.GetContact(ctx, "owner-2", c.ID)
		if !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("FindContactsByEmail ignores case and whitespace", func(t *testing.T) {
		c := &models.Contact{OwnerID: "owner-3", Email: " a@x.com "}
		if err := store.CreateContact(ctx, c); err != nil {
			t.Fatalf("CreateContact failed: %v", err)
		}
		other := &models.Contact{OwnerID: "owner-4", Email: "a@x.com"}
		if err := store.CreateContact(ctx, other); err != nil {
			t.Fatalf("CreateContact failed: %v", err)
		}

		found, err := store.FindContactsByEmail(ctx, "owner-3", "A@X.com")
		if err != nil {
			t.Fatalf("FindContactsByEmail failed: %v", err)
		}
		if len(found) != 1 || found[0].ID != c.ID {
			t.Errorf("expected only %s, got %+v", c.ID, found)
		}
	})

	t.Run("FindContactsByEmail folds non-ASCII case", func(t *testing.T) {
		c := &models.Contact{OwnerID: "owner-10", Email: "ÉLODIE@Exemple.fr"}
		if err := store.CreateContact(ctx, c); err != nil {
			t.Fatalf("CreateContact failed: %v", err)
		}

		found, err := store.FindContactsByEmail(ctx, "owner-10", "élodie@exemple.fr")
		if err != nil {
			t.Fatalf("FindContactsByEmail failed: %v", err)
		}
		if len(found) != 1 || found[0].ID != c.ID {
			t.Fatalf("expected %s, got %+v", c.ID, found)
		}

		c.Email = "ÖRJAN@exemple.fr"
		if err := store.UpdateContact(ctx, c); err != nil {
			t.Fatalf("UpdateContact failed: %v", err)
		}
		found, err = store.FindContactsByEmail(ctx, "owner-10", "örjan@EXEMPLE.fr")
		if err != nil {
			t.Fatalf("FindContactsByEmail failed: %v", err)
		}
		if len(found) != 1 || found[0].ID != c.ID {
			t.Errorf("expected updated email to match, got %+v", found)
		}
	})

	t.Run("ListContacts honors the limit", func(t *testing.T) {
		for i := 0; i < 5; i++ {
			if err := store.CreateContact(ctx, &models.Contact{OwnerID: "owner-5"}); err != nil {
				t.Fatalf("CreateContact failed: %v", err)
			}
		}
		got, err := store.ListContacts(ctx, "owner-5", 3)
		if err != nil {
			t.Fatalf("ListContacts failed: %v", err)
		}
		if len(got) != 3 {
			t.Errorf("expected 3 contacts, got %d", len(got))
		}
	})

	t.Run("UpdateContact and DeleteContact", func(t *testing.T) {
		c := &models.Contact{OwnerID: "owner-6", FirstName: "Old"}
		if err := store.CreateContact(ctx, c); err != nil {
			t.Fatalf("CreateContact failed: %v", err)
		}
		c.FirstName = "New"
		if err := store.UpdateContact(ctx, c); err != nil {
			t.Fatalf("UpdateContact failed: %v", err)
		}
		got, err := store.GetContact(ctx, "owner-6", c.ID)
		if err != nil {
			t.Fatalf("GetContact failed: %v", err)
		}
		if got.FirstName != "New" {
			t.Errorf("FirstName = %q, want New", got.FirstName)
		}

		if err := store.DeleteContact(ctx, "owner-6", c.ID); err != nil {
			t.Fatalf("DeleteContact failed: %v", err)
		}
		if err := store.DeleteContact(ctx, "owner-6", c.ID); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("second delete: expected ErrNotFound, got %v", err)
		}
	})
}

func TestSQLiteStore_Usage(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	latest, err := store.LatestUsage(ctx, "owner-1")
	if err != nil {
		t.Fatalf("LatestUsage failed: %v", err)
	}
	if latest != nil {
		t.Fatalf("expected no counter, got %+v", latest)
	}

	now := time.Now().Unix()
	first := &models.UsageCounter{OwnerID: "owner-1", ScansCount: 1, CycleStart: now - 100, CycleEnd: now - 1, CreatedAt: now - 100}
	second := &models.UsageCounter{OwnerID: "owner-1", ScansCount: 1, CycleStart: now, CycleEnd: now + 1000, CreatedAt: now}
	for _, u := range []*models.UsageCounter{first, second} {
		if err := store.CreateUsage(ctx, u); err != nil {
			t.Fatalf("CreateUsage failed: %v", err)
		}
	}

	if err := store.IncrementUsage(ctx, second.ID); err != nil {
		t.Fatalf("IncrementUsage failed: %v", err)
	}

	latest, err = store.LatestUsage(ctx, "owner-1")
	if err != nil {
		t.Fatalf("LatestUsage failed: %v", err)
	}
	if latest.ID != second.ID {
		t.Errorf("latest = %s, want %s", latest.ID, second.ID)
	}
	if latest.ScansCount != 2 {
		t.Errorf("ScansCount = %d, want 2", latest.ScansCount)
	}

	if err := store.IncrementUsage(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSQLiteStore_Profiles(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	p, err := store.GetProfile(ctx, "owner-1")
	if err != nil {
		t.Fatalf("GetProfile failed: %v", err)
	}
	if p != nil {
		t.Fatalf("expected no profile, got %+v", p)
	}

	if err := store.UpsertProfile(ctx, &models.Profile{OwnerID: "owner-1", Tier: models.TierLite, IsAdmin: true}); err != nil {
		t.Fatalf("UpsertProfile failed: %v", err)
	}
	if err := store.AddBonusScans(ctx, "owner-1", 5); err != nil {
		t.Fatalf("AddBonusScans failed: %v", err)
	}
	if err := store.AddBonusScans(ctx, "owner-1", 3); err != nil {
		t.Fatalf("AddBonusScans failed: %v", err)
	}
	if err := store.SetSubscription(ctx, "owner-1", models.TierPro, 12345); err != nil {
		t.Fatalf("SetSubscription failed: %v", err)
	}

	p, err = store.GetProfile(ctx, "owner-1")
	if err != nil {
		t.Fatalf("GetProfile failed: %v", err)
	}
	if p.Tier != models.TierPro || !p.IsAdmin || p.BonusScans != 8 || p.BillingCycleEnd != 12345 {
		t.Errorf("unexpected profile: %+v", p)
	}

	// Bonus scans on an unknown owner create a starter profile.
	if err := store.AddBonusScans(ctx, "owner-2", 10); err != nil {
		t.Fatalf("AddBonusScans failed: %v", err)
	}
	p, err = store.GetProfile(ctx, "owner-2")
	if err != nil {
		t.Fatalf("GetProfile failed: %v", err)
	}
	if p.Tier != models.TierStarter || p.BonusScans != 10 {
		t.Errorf("unexpected profile: %+v", p)
	}
}

func TestSQLiteStore_Dismissals(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := store.DismissPair(ctx, "owner-1", "a:b"); err != nil {
			t.Fatalf("DismissPair failed: %v", err)
		}
	}
	keys, err := store.ListDismissed(ctx, "owner-1")
	if err != nil {
		t.Fatalf("ListDismissed failed: %v", err)
	}
	if _, ok := keys["a:b"]; !ok || len(keys) != 1 {
		t.Errorf("unexpected dismissed keys: %v", keys)
	}

	keys, err = store.ListDismissed(ctx, "owner-2")
	if err != nil {
		t.Fatalf("ListDismissed failed: %v", err)
	}
	if len(keys) != 0 {
		t.Errorf("expected no keys for other owner, got %v", keys)
	}
}
