// Package dedupe decides whether a freshly scanned contact already exists in
// an owner's records, and reports duplicate pairs across the whole set.
//
// Single-record checks try, in order: an exact case-insensitive email lookup
// against the store, a digits-only phone substring match, and a name match
// (swap tolerant) confirmed by compatible company names. Only a bounded number
// of records is ever scanned.
package dedupe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mmynk/cardscan/internal/metrics"
	"github.com/mmynk/cardscan/internal/models"
)

// DefaultScanLimit bounds how many stored records a check considers.
const DefaultScanLimit = 1000

// ErrSameContact is returned when a merge names the same record twice.
var ErrSameContact = errors.New("cannot merge a contact with itself")

// Store is the slice of the record store the matcher needs.
type Store interface {
	FindContactsByEmail(ctx context.Context, ownerID, email string) ([]*models.Contact, error)
	ListContacts(ctx context.Context, ownerID string, limit int) ([]*models.Contact, error)
	GetContact(ctx context.Context, ownerID, contactID string) (*models.Contact, error)
	UpdateContact(ctx context.Context, contact *models.Contact) error
	DeleteContact(ctx context.Context, ownerID, contactID string) error
	DismissPair(ctx context.Context, ownerID, pairKey string) error
	ListDismissed(ctx context.Context, ownerID string) (map[string]struct{}, error)
}

// Matcher runs duplicate checks against a Store.
type Matcher struct {
	store     Store
	scanLimit int
	metrics   *metrics.Metrics
}

type Option func(*Matcher)

// WithScanLimit overrides DefaultScanLimit. Non-positive values are ignored.
func WithScanLimit(n int) Option {
	return func(m *Matcher) {
		if n > 0 {
			m.scanLimit = n
		}
	}
}

func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Matcher) {
		m.metrics = mt
	}
}

// NewMatcher creates a Matcher over store.
func NewMatcher(store Store, opts ...Option) *Matcher {
	m := &Matcher{
		store:     store,
		scanLimit: DefaultScanLimit,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// ScanLimit returns the configured record bound.
func (m *Matcher) ScanLimit() int {
	return m.scanLimit
}

// FindDuplicate returns the stored contact the candidate duplicates and the
// rule that matched, or (nil, RuleNone).
//
// Store failures are logged and reported as "no duplicate" so that a
// bookkeeping outage never blocks a save.
func (m *Matcher) FindDuplicate(ctx context.Context, candidate *models.Contact, ownerID string) (*models.Contact, Rule) {
	if IsEmailLike(candidate.Email) {
		hits, err := m.store.FindContactsByEmail(ctx, ownerID, NormalizeEmail(candidate.Email))
		if err != nil {
			slog.Warn("Duplicate check failed, treating as unique", "owner_id", ownerID, "step", "email", "error", err)
			return nil, RuleNone
		}
		for _, hit := range hits {
			if hit.ID != candidate.ID {
				m.metrics.IncrementDuplicate(string(RuleEmail))
				return hit, RuleEmail
			}
		}
	}

	records, err := m.store.ListContacts(ctx, ownerID, m.scanLimit)
	if err != nil {
		slog.Warn("Duplicate check failed, treating as unique", "owner_id", ownerID, "step", "scan", "error", err)
		return nil, RuleNone
	}

	for _, r := range records {
		if r.ID != candidate.ID && phonesMatch(candidate.Phone, r.Phone) {
			m.metrics.IncrementDuplicate(string(RulePhone))
			return r, RulePhone
		}
	}
	for _, r := range records {
		if r.ID != candidate.ID && namesMatch(candidate, r) && companiesCompatible(candidate.Company, r.Company) {
			m.metrics.IncrementDuplicate(string(RuleName))
			return r, RuleName
		}
	}
	return nil, RuleNone
}

// IsDuplicate reports whether candidate already exists among the owner's records.
func (m *Matcher) IsDuplicate(ctx context.Context, candidate *models.Contact, ownerID string) bool {
	match, _ := m.FindDuplicate(ctx, candidate, ownerID)
	return match != nil
}

// Report builds the owner's pending duplicate pairs, excluding dismissed ones.
func (m *Matcher) Report(ctx context.Context, ownerID string) (*Report, error) {
	records, err := m.store.ListContacts(ctx, ownerID, m.scanLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to list contacts: %w", err)
	}
	dismissed, err := m.store.ListDismissed(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list dismissed pairs: %w", err)
	}
	return &Report{
		OwnerID: ownerID,
		Pairs:   FindPairs(records, dismissed),
	}, nil
}

// Dismiss marks the pair (a, b) as not duplicates. Order does not matter.
func (m *Matcher) Dismiss(ctx context.Context, ownerID, a, b string) error {
	if a == b {
		return ErrSameContact
	}
	if err := m.store.DismissPair(ctx, ownerID, PairKey(a, b)); err != nil {
		return fmt.Errorf("failed to dismiss pair: %w", err)
	}
	return nil
}

// Merge folds removeID into keepID: blank fields of the kept record are filled
// from the removed one, then the removed record is deleted.
func (m *Matcher) Merge(ctx context.Context, ownerID, keepID, removeID string) (*models.Contact, error) {
	if keepID == removeID {
		return nil, ErrSameContact
	}
	keep, err := m.store.GetContact(ctx, ownerID, keepID)
	if err != nil {
		return nil, fmt.Errorf("failed to get kept contact: %w", err)
	}
	remove, err := m.store.GetContact(ctx, ownerID, removeID)
	if err != nil {
		return nil, fmt.Errorf("failed to get removed contact: %w", err)
	}

	keep.FillBlanks(remove)
	if err := m.store.UpdateContact(ctx, keep); err != nil {
		return nil, fmt.Errorf("failed to update kept contact: %w", err)
	}
	if err := m.store.DeleteContact(ctx, ownerID, removeID); err != nil {
		return nil, fmt.Errorf("failed to delete merged contact: %w", err)
	}
	return keep, nil
}
