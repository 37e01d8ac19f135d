package models

import "strings"

// Tier is a subscription tier.
type Tier string

const (
	TierStarter  Tier = "starter"
	TierLite     Tier = "lite"
	TierStandard Tier = "standard"
	TierPro      Tier = "pro"
	TierTeam     Tier = "team"
)

// Limits is the fixed allowance bound to a tier.
type Limits struct {
	ScanLimit     int
	AllowExport   bool
	TeamMemberCap int
}

// TierLimits is the static tier table.
var TierLimits = map[Tier]Limits{
	TierStarter:  {ScanLimit: 10, AllowExport: false, TeamMemberCap: 1},
	TierLite:     {ScanLimit: 50, AllowExport: true, TeamMemberCap: 1},
	TierStandard: {ScanLimit: 150, AllowExport: true, TeamMemberCap: 1},
	TierPro:      {ScanLimit: 500, AllowExport: true, TeamMemberCap: 1},
	TierTeam:     {ScanLimit: 2000, AllowExport: true, TeamMemberCap: 10},
}

// ParseTier maps a free-form tier name onto a known tier.
// Unknown names resolve to TierStarter.
func ParseTier(s string) Tier {
	t := Tier(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := TierLimits[t]; ok {
		return t
	}
	return TierStarter
}

// IsValid reports whether t is in the tier table.
func (t Tier) IsValid() bool {
	_, ok := TierLimits[t]
	return ok
}

// Limits returns the allowance for t, falling back to the starter tier.
func (t Tier) Limits() Limits {
	if l, ok := TierLimits[t]; ok {
		return l
	}
	return TierLimits[TierStarter]
}
