package service

import (
	"strings"

	"github.com/mmynk/cardscan/internal/classifier"
	"github.com/mmynk/cardscan/internal/models"
	v1 "github.com/mmynk/cardscan/pkg/api/cardscanv1"
)

func contactToProto(c *models.Contact) *v1.Contact {
	if c == nil {
		return nil
	}
	return &v1.Contact{
		Id:           c.ID,
		FirstName:    c.FirstName,
		LastName:     c.LastName,
		JobTitle:     c.JobTitle,
		Company:      c.Company,
		Email:        c.Email,
		Phone:        c.Phone,
		Website:      c.Website,
		Address:      c.Address,
		Notes:        c.Notes,
		CardImageRef: c.CardImageRef,
		LogoImageRef: c.LogoImageRef,
		CreatedAt:    c.CreatedAt,
		ScannedAt:    c.ScannedAt,
	}
}

// contactFromProto builds an unsaved contact owned by ownerID. Client supplied
// ids and creation times are ignored.
func contactFromProto(c *v1.Contact, ownerID string) *models.Contact {
	return &models.Contact{
		OwnerID:      ownerID,
		FirstName:    strings.TrimSpace(c.FirstName),
		LastName:     strings.TrimSpace(c.LastName),
		JobTitle:     strings.TrimSpace(c.JobTitle),
		Company:      strings.TrimSpace(c.Company),
		Email:        strings.TrimSpace(c.Email),
		Phone:        strings.TrimSpace(c.Phone),
		Website:      strings.TrimSpace(c.Website),
		Address:      strings.TrimSpace(c.Address),
		Notes:        strings.TrimSpace(c.Notes),
		CardImageRef: c.CardImageRef,
		LogoImageRef: c.LogoImageRef,
		ScannedAt:    c.ScannedAt,
	}
}

func pairsToProto(pairs []models.DuplicatePair) []*v1.DuplicatePair {
	out := make([]*v1.DuplicatePair, 0, len(pairs))
	for _, p := range pairs {
		out = append(out, &v1.DuplicatePair{
			Key:    p.Key,
			First:  contactToProto(p.First),
			Second: contactToProto(p.Second),
			Rule:   p.Rule,
		})
	}
	return out
}

func boxToProto(b *classifier.Box) []int {
	if b == nil {
		return nil
	}
	return []int{b[0], b[1], b[2], b[3]}
}

// isEmpty is true when nothing identifying was captured.
func isEmpty(c *models.Contact) bool {
	return c.FirstName == "" && c.LastName == "" && c.Email == "" && c.Phone == "" && c.Company == ""
}
