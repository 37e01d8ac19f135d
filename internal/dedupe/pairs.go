package dedupe

import (
	"github.com/mmynk/cardscan/internal/models"
)

// PairKey returns the canonical key for a pair of contact IDs.
// PairKey(a, b) == PairKey(b, a).
func PairKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + ":" + b
}

// FindPairs compares every record with every other record and returns the
// pairs that match, skipping dismissed pair keys.
func FindPairs(records []*models.Contact, dismissed map[string]struct{}) []models.DuplicatePair {
	var pairs []models.DuplicatePair
	for i := 0; i < len(records); i++ {
		for j := i + 1; j < len(records); j++ {
			a, b := records[i], records[j]
			if a.ID == b.ID {
				continue
			}
			key := PairKey(a.ID, b.ID)
			if _, ok := dismissed[key]; ok {
				continue
			}
			rule := Match(a, b)
			if rule == RuleNone {
				continue
			}
			pairs = append(pairs, models.DuplicatePair{
				Key:    key,
				First:  a,
				Second: b,
				Rule:   string(rule),
			})
		}
	}
	return pairs
}

// Report is the pending set of duplicate pairs for one owner.
type Report struct {
	OwnerID string
	Pairs   []models.DuplicatePair
}

// Resolve drops every pair that references either side of a merge. The
// removed record is gone and the kept one has changed, so neither can stay
// in a pending pair.
func (r *Report) Resolve(keptID, removedID string) {
	kept := r.Pairs[:0]
	for _, p := range r.Pairs {
		if p.Involves(keptID) || p.Involves(removedID) {
			continue
		}
		kept = append(kept, p)
	}
	r.Pairs = kept
}

// Dismiss drops the pair with the given key.
func (r *Report) Dismiss(key string) {
	kept := r.Pairs[:0]
	for _, p := range r.Pairs {
		if p.Key != key {
			kept = append(kept, p)
		}
	}
	r.Pairs = kept
}
