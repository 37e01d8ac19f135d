// Package storage provides abstractions for persistent data storage.
package storage

import (
	"context"
	"errors"

	"github.com/mmynk/cardscan/internal/models"
)

// ErrNotFound is returned when a lookup by ID matches nothing.
var ErrNotFound = errors.New("not found")

// ContactStore holds contact records. Every method is scoped by owner.
type ContactStore interface {
	// CreateContact persists a new contact.
	// The ID and CreatedAt fields are populated by the store when empty.
	CreateContact(ctx context.Context, contact *models.Contact) error

	// GetContact retrieves one contact. Returns ErrNotFound when the contact
	// does not exist or belongs to another owner.
	GetContact(ctx context.Context, ownerID, contactID string) (*models.Contact, error)

	// UpdateContact overwrites the mutable fields of an existing contact.
	// OwnerID is never changed.
	UpdateContact(ctx context.Context, contact *models.Contact) error

	// DeleteContact removes a contact. Returns ErrNotFound when nothing was deleted.
	DeleteContact(ctx context.Context, ownerID, contactID string) error

	// FindContactsByEmail returns the owner's contacts whose email matches
	// exactly, ignoring case and surrounding whitespace.
	FindContactsByEmail(ctx context.Context, ownerID, email string) ([]*models.Contact, error)

	// ListContacts returns at most limit contacts, newest first.
	ListContacts(ctx context.Context, ownerID string, limit int) ([]*models.Contact, error)
}

// UsageStore holds usage counters.
type UsageStore interface {
	// LatestUsage returns the most recently created counter for the owner,
	// or nil when the owner has never scanned.
	LatestUsage(ctx context.Context, ownerID string) (*models.UsageCounter, error)

	// CreateUsage persists a new counter. ID and CreatedAt are populated when empty.
	CreateUsage(ctx context.Context, counter *models.UsageCounter) error

	// IncrementUsage adds one scan to an existing counter in place.
	IncrementUsage(ctx context.Context, counterID string) error
}

// ProfileStore holds owner profiles.
type ProfileStore interface {
	// GetProfile returns the owner's profile, or nil when none exists.
	GetProfile(ctx context.Context, ownerID string) (*models.Profile, error)

	// UpsertProfile writes every field of the profile.
	UpsertProfile(ctx context.Context, profile *models.Profile) error

	// SetSubscription changes tier and billing cycle end, leaving the admin
	// flag and bonus scans alone. Creates the profile when missing.
	SetSubscription(ctx context.Context, ownerID string, tier models.Tier, billingCycleEnd int64) error

	// AddBonusScans adds n bonus scans. Creates the profile when missing.
	AddBonusScans(ctx context.Context, ownerID string, n int) error
}

// DismissalStore remembers duplicate pairs the owner chose to keep apart.
type DismissalStore interface {
	// DismissPair records a canonical pair key. Dismissing twice is a no-op.
	DismissPair(ctx context.Context, ownerID, pairKey string) error

	// ListDismissed returns the set of dismissed pair keys.
	ListDismissed(ctx context.Context, ownerID string) (map[string]struct{}, error)
}

// Store defines the full storage surface.
// This abstraction allows swapping storage backends (SQLite, PostgreSQL)
// without changing the service layer.
type Store interface {
	ContactStore
	UsageStore
	ProfileStore
	DismissalStore

	// Close releases any resources held by the store.
	Close() error
}
