// Package classifier talks to the external image model that detects business
// cards in live frames and extracts contact fields from a captured still.
package classifier

import (
	"context"
	"errors"
	"strings"

	"github.com/mmynk/cardscan/internal/models"
)

var (
	// ErrMalformedResponse means the model answered but the answer could not
	// be used: not JSON, no candidates, or required fields missing.
	ErrMalformedResponse = errors.New("malformed classifier response")

	// ErrUnavailable covers transport failures and non-2xx statuses.
	ErrUnavailable = errors.New("classifier unavailable")
)

// Classifier is the image classifier contract.
type Classifier interface {
	// Classify reports whether a card is in frame and legible.
	Classify(ctx context.Context, image []byte) (Detection, error)

	// Extract reads contact fields from a full-resolution still.
	Extract(ctx context.Context, image []byte) (*ContactFields, error)
}

// Detection is the answer to "is a card present and legible in this frame?".
type Detection struct {
	CardPresent bool `json:"card_present"`
	IsSteady    bool `json:"is_steady"`
}

// Box is a bounding box [ymin, xmin, ymax, xmax] in a 0-1000 coordinate space.
type Box [4]int

// Valid reports whether every coordinate is in range and the box is not inverted.
func (b Box) Valid() bool {
	for _, v := range b {
		if v < 0 || v > 1000 {
			return false
		}
	}
	return b[0] <= b[2] && b[1] <= b[3]
}

// ContactFields are the scalar fields read off a card.
type ContactFields struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	JobTitle  string `json:"job_title"`
	Company   string `json:"company"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Website   string `json:"website"`
	Address   string `json:"address"`
	Notes     string `json:"notes"`

	// PhoneNormalized is Phone without spaces, dashes, dots or parentheses.
	PhoneNormalized string `json:"phone_normalized,omitempty"`

	LogoBox *Box `json:"logo_box,omitempty"`
	CardBox *Box `json:"card_box,omitempty"`
}

// Partial is true when the card yielded neither a full name nor any way to
// reach the person.
func (f *ContactFields) Partial() bool {
	hasName := strings.TrimSpace(f.FirstName) != "" && strings.TrimSpace(f.LastName) != ""
	hasChannel := strings.TrimSpace(f.Email) != "" || strings.TrimSpace(f.Phone) != ""
	return !hasName && !hasChannel
}

// Contact converts the fields into an unsaved contact for ownerID.
func (f *ContactFields) Contact(ownerID string) *models.Contact {
	phone := f.Phone
	if phone == "" {
		phone = f.PhoneNormalized
	}
	return &models.Contact{
		OwnerID:   ownerID,
		FirstName: strings.TrimSpace(f.FirstName),
		LastName:  strings.TrimSpace(f.LastName),
		JobTitle:  strings.TrimSpace(f.JobTitle),
		Company:   strings.TrimSpace(f.Company),
		Email:     strings.TrimSpace(f.Email),
		Phone:     strings.TrimSpace(phone),
		Website:   strings.TrimSpace(f.Website),
		Address:   strings.TrimSpace(f.Address),
		Notes:     strings.TrimSpace(f.Notes),
	}
}

// NormalizePhone strips spaces, dashes, dots and parentheses, keeping a leading '+'.
func NormalizePhone(phone string) string {
	var b strings.Builder
	for i, r := range strings.TrimSpace(phone) {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+' && i == 0:
			b.WriteRune(r)
		}
	}
	return b.String()
}
