package models

// UsageCounter tracks scans consumed by an owner in one billing cycle.
//
// At most one counter per owner is active: the one whose CycleEnd is in the
// future, or the most recently created one when none is. ScansCount never
// decreases and a new cycle always starts at zero.
type UsageCounter struct {
	// ID is the unique identifier for the counter (UUID format).
	ID string

	OwnerID    string
	ScansCount int

	// CycleStart and CycleEnd are Unix timestamps bounding the cycle.
	CycleStart int64
	CycleEnd   int64

	// CreatedAt orders counters when picking the most recent one.
	CreatedAt int64
}

// Active reports whether the cycle is still running at the given Unix time.
func (u *UsageCounter) Active(now int64) bool {
	return u.CycleEnd > now
}
