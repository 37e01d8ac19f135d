package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/cardscan/internal/models"
	"github.com/mmynk/cardscan/internal/storage"
)

const contactColumns = `id, owner_id, first_name, last_name, job_title, company, email, phone,
	website, address, notes, card_image_ref, logo_image_ref, created_at, scanned_at`

// CreateContact persists a new contact to the database.
func (s *SQLiteStore) CreateContact(ctx context.Context, c *models.Contact) error {
	if c.OwnerID == "" {
		return fmt.Errorf("failed to insert contact: owner id is required")
	}
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.CreatedAt == 0 {
		c.CreatedAt = time.Now().Unix()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO contacts (`+contactColumns+`, email_key)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.OwnerID, c.FirstName, c.LastName, c.JobTitle, c.Company, c.Email, c.Phone,
		c.Website, c.Address, c.Notes, c.CardImageRef, c.LogoImageRef, c.CreatedAt, nullableTime(c.ScannedAt),
		emailKey(c.Email),
	)
	if err != nil {
		return fmt.Errorf("failed to insert contact: %w", err)
	}
	return nil
}

// GetContact retrieves a contact by ID within the owner's records.
func (s *SQLiteStore) GetContact(ctx context.Context, ownerID, contactID string) (*models.Contact, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+contactColumns+` FROM contacts WHERE id = ? AND owner_id = ?`,
		contactID, ownerID,
	)
	c, err := scanContact(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("contact %s: %w", contactID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get contact: %w", err)
	}
	return c, nil
}

// UpdateContact overwrites the mutable fields of a contact.
func (s *SQLiteStore) UpdateContact(ctx context.Context, c *models.Contact) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE contacts SET first_name = ?, last_name = ?, job_title = ?, company = ?, email = ?, email_key = ?,
		 phone = ?, website = ?, address = ?, notes = ?, card_image_ref = ?, logo_image_ref = ?, scanned_at = ?
		 WHERE id = ? AND owner_id = ?`,
		c.FirstName, c.LastName, c.JobTitle, c.Company, c.Email, emailKey(c.Email),
		c.Phone, c.Website, c.Address, c.Notes, c.CardImageRef, c.LogoImageRef, nullableTime(c.ScannedAt),
		c.ID, c.OwnerID,
	)
	if err != nil {
		return fmt.Errorf("failed to update contact: %w", err)
	}
	return expectOneRow(res, "contact", c.ID)
}

// DeleteContact removes a contact.
func (s *SQLiteStore) DeleteContact(ctx context.Context, ownerID, contactID string) error {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM contacts WHERE id = ? AND owner_id = ?",
		contactID, ownerID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete contact: %w", err)
	}
	return expectOneRow(res, "contact", contactID)
}

// emailKey is the lookup form of an email. SQLite's lower() only folds
// ASCII, so the key is computed here and stored next to the address.
func emailKey(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// FindContactsByEmail matches email case-insensitively within the owner's records.
func (s *SQLiteStore) FindContactsByEmail(ctx context.Context, ownerID, email string) ([]*models.Contact, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+contactColumns+` FROM contacts
		 WHERE owner_id = ? AND email_key = ?
		 ORDER BY created_at DESC, rowid DESC`,
		ownerID, emailKey(email),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to find contacts by email: %w", err)
	}
	return collectContacts(rows)
}

// ListContacts returns the owner's newest contacts, at most limit of them.
func (s *SQLiteStore) ListContacts(ctx context.Context, ownerID string, limit int) ([]*models.Contact, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+contactColumns+` FROM contacts
		 WHERE owner_id = ?
		 ORDER BY created_at DESC, rowid DESC
		 LIMIT ?`,
		ownerID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list contacts: %w", err)
	}
	return collectContacts(rows)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanContact(row rowScanner) (*models.Contact, error) {
	c := &models.Contact{}
	var scannedAt sql.NullInt64
	err := row.Scan(
		&c.ID, &c.OwnerID, &c.FirstName, &c.LastName, &c.JobTitle, &c.Company, &c.Email, &c.Phone,
		&c.Website, &c.Address, &c.Notes, &c.CardImageRef, &c.LogoImageRef, &c.CreatedAt, &scannedAt,
	)
	if err != nil {
		return nil, err
	}
	if scannedAt.Valid {
		c.ScannedAt = scannedAt.Int64
	}
	return c, nil
}

func collectContacts(rows *sql.Rows) ([]*models.Contact, error) {
	defer rows.Close()

	var contacts []*models.Contact
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan contact: %w", err)
		}
		contacts = append(contacts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate contacts: %w", err)
	}
	return contacts, nil
}

func expectOneRow(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, storage.ErrNotFound)
	}
	return nil
}
