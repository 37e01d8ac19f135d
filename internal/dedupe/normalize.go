package dedupe

import (
	"regexp"
	"strings"
	"unicode"
)

const (
	// minPhoneDigits is the shortest normalized phone number that can match.
	minPhoneDigits = 7

	// minJoinedNameLen is the length a joined first+last name must exceed
	// before it counts as a match on its own.
	minJoinedNameLen = 5
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// NormalizeEmail lowercases and trims an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// IsEmailLike reports whether s looks like an email address after trimming.
func IsEmailLike(s string) bool {
	return emailPattern.MatchString(strings.TrimSpace(s))
}

// NormalizePhone keeps only the digits of a phone number.
//
//	NormalizePhone("+1 (555) 123-4567") // "15551234567"
func NormalizePhone(phone string) string {
	var b strings.Builder
	b.Grow(len(phone))
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// normalizeWord lowercases s and drops everything that is not a letter or digit.
// Used for names and company names.
func normalizeWord(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
