package dedupe

import (
	"strings"

	"github.com/mmynk/cardscan/internal/models"
)

// Rule names the signal that identified a duplicate.
type Rule string

const (
	RuleNone  Rule = ""
	RuleEmail Rule = "email"
	RulePhone Rule = "phone"
	RuleName  Rule = "name"
)

// Match compares two contacts and returns the first rule that fires, in
// priority order: email, phone, then name confirmed by company.
func Match(candidate, existing *models.Contact) Rule {
	switch {
	case emailsMatch(candidate.Email, existing.Email):
		return RuleEmail
	case phonesMatch(candidate.Phone, existing.Phone):
		return RulePhone
	case namesMatch(candidate, existing) && companiesCompatible(candidate.Company, existing.Company):
		return RuleName
	}
	return RuleNone
}

func emailsMatch(a, b string) bool {
	if !IsEmailLike(a) || !IsEmailLike(b) {
		return false
	}
	return NormalizeEmail(a) == NormalizeEmail(b)
}

// phonesMatch accepts a country-code prefix or partial entry on either side.
func phonesMatch(a, b string) bool {
	da, db := NormalizePhone(a), NormalizePhone(b)
	if len(da) < minPhoneDigits || len(db) < minPhoneDigits {
		return false
	}
	return strings.Contains(da, db) || strings.Contains(db, da)
}

// namesMatch tolerates first and last name being swapped.
func namesMatch(a, b *models.Contact) bool {
	af, al := normalizeWord(a.FirstName), normalizeWord(a.LastName)
	bf, bl := normalizeWord(b.FirstName), normalizeWord(b.LastName)
	if af == "" || al == "" || bf == "" || bl == "" {
		return false
	}

	if af == bf && al == bl {
		return true
	}
	if af == bl && al == bf {
		return true
	}
	joined := af + al
	return len(joined) > minJoinedNameLen && joined == bf+bl
}

// companiesCompatible is true when either side is blank or one normalized
// company name contains the other.
func companiesCompatible(a, b string) bool {
	ca, cb := normalizeWord(a), normalizeWord(b)
	if ca == "" || cb == "" {
		return true
	}
	return strings.Contains(ca, cb) || strings.Contains(cb, ca)
}
