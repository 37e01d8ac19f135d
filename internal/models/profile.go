package models

// Profile holds the per-owner facts the quota gate reads.
//
// Profiles are written by the billing consumer (tier, cycle end, bonus scans)
// and read by everything else. They are created lazily, so a missing profile
// means a starter account.
type Profile struct {
	// OwnerID is the user this profile belongs to.
	OwnerID string

	Tier Tier

	// IsAdmin bypasses every usage limit.
	IsAdmin bool

	// BonusScans is added on top of the tier's scan limit. Granted by coupons.
	BonusScans int

	// BillingCycleEnd is the Unix timestamp at which the paid cycle ends.
	// Zero when unknown.
	BillingCycleEnd int64

	// UpdatedAt is the Unix timestamp of the last change.
	UpdatedAt int64
}

// ScanLimit is the tier limit plus bonus scans.
func (p *Profile) ScanLimit() int {
	return p.Tier.Limits().ScanLimit + p.BonusScans
}
