package models

import "strings"

// Contact is a contact record produced from a scanned business card.
//
// Name, email and phone fields are free text. No format is enforced at this
// layer; normalization only happens inside duplicate matching.
type Contact struct {
	// ID is the unique identifier for the contact (UUID format).
	ID string

	// OwnerID is the user who scanned the card. Immutable once set.
	OwnerID string

	FirstName string
	LastName  string
	JobTitle  string
	Company   string
	Email     string
	Phone     string
	Website   string
	Address   string
	Notes     string

	// CardImageRef and LogoImageRef point at stored images of the card and the
	// cropped company logo. Both are optional.
	CardImageRef string
	LogoImageRef string

	// CreatedAt is the Unix timestamp when the record was persisted.
	CreatedAt int64

	// ScannedAt is the Unix timestamp of the capture, which may be earlier than
	// CreatedAt when a scan is saved later. Zero when unknown.
	ScannedAt int64
}

// FullName joins first and last name with a single space.
func (c *Contact) FullName() string {
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}

// FillBlanks copies every non-empty field of other into the matching empty
// field of c. ID, OwnerID and timestamps are left untouched.
func (c *Contact) FillBlanks(other *Contact) {
	fill := func(dst *string, src string) {
		if strings.TrimSpace(*dst) == "" && strings.TrimSpace(src) != "" {
			*dst = src
		}
	}
	fill(&c.FirstName, other.FirstName)
	fill(&c.LastName, other.LastName)
	fill(&c.JobTitle, other.JobTitle)
	fill(&c.Company, other.Company)
	fill(&c.Email, other.Email)
	fill(&c.Phone, other.Phone)
	fill(&c.Website, other.Website)
	fill(&c.Address, other.Address)
	fill(&c.Notes, other.Notes)
	fill(&c.CardImageRef, other.CardImageRef)
	fill(&c.LogoImageRef, other.LogoImageRef)
}

// DuplicatePair is two contacts the matcher believes refer to the same person.
// Pairs are recomputed on every report and never persisted.
type DuplicatePair struct {
	// Key is the canonical sorted pair key, see dedupe.PairKey.
	Key string

	First  *Contact
	Second *Contact

	// Rule names the matching rule that fired ("email", "phone", "name").
	Rule string
}

// Involves reports whether either side of the pair is the contact id.
func (p DuplicatePair) Involves(id string) bool {
	return p.First.ID == id || p.Second.ID == id
}
