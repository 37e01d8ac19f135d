// Package models defines the core domain models for cardscan.
//
// # Models
//
//   - Contact: a business card turned into a contact record, owned by one user
//   - UsageCounter: scans consumed by an owner within one billing cycle
//   - Profile: an owner's subscription tier, bonus scans and admin flag
//   - DuplicatePair: two contacts believed to be the same person (never stored)
//
// Relationships use ID strings instead of pointers. Timestamps are Unix
// seconds; zero means "unset" for optional timestamps.
//
// # Tiers
//
// Tier limits come from the static TierLimits table and are never computed.
// An unknown tier resolves to TierStarter so a bad billing event can only ever
// narrow an allowance.
package models
