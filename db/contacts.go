// ABOUTME: Contact database operations backing the local CRM
// ABOUTME: Email-keyed upsert, lookups, search, and last-contacted tracking
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/harperreed/consult/models"
)

const contactColumns = `id, name, email, phone, company, notes, last_contacted_at, created_at, updated_at`

// UpsertContactByEmail creates the contact or refreshes the non-empty fields
// of the existing one with the same email. The stored contact is written back into c.
func UpsertContactByEmail(ctx context.Context, db *sql.DB, c *models.Contact) error {
	if c == nil || strings.TrimSpace(c.Email) == "" {
		return fmt.Errorf("contact email is required")
	}
	email := strings.ToLower(strings.TrimSpace(c.Email))

	existing, err := GetContactByEmail(ctx, db, email)
	if err != nil && !errors.Is(err, ErrContactNotFound) {
		return err
	}

	now := time.Now().UTC()
	if existing == nil {
		c.ID = uuid.New()
		c.Email = email
		c.CreatedAt = now
		c.UpdatedAt = now

		_, err := db.ExecContext(ctx, `
			INSERT INTO contacts (`+contactColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, c.ID.String(), c.Name, c.Email, c.Phone, c.Company, c.Notes, c.LastContactedAt, c.CreatedAt, c.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to create contact: %w", err)
		}
		return nil
	}

	merged := *existing
	if c.Name != "" {
		merged.Name = c.Name
	}
	if c.Phone != "" {
		merged.Phone = c.Phone
	}
	if c.Company != "" {
		merged.Company = c.Company
	}
	if c.Notes != "" {
		merged.Notes = c.Notes
	}
	merged.UpdatedAt = now

	_, err = db.ExecContext(ctx, `
		UPDATE contacts
		SET name = ?, phone = ?, company = ?, notes = ?, updated_at = ?
		WHERE id = ?
	`, merged.Name, merged.Phone, merged.Company, merged.Notes, merged.UpdatedAt, merged.ID.String())
	if err != nil {
		return fmt.Errorf("failed to update contact: %w", err)
	}

	*c = merged
	return nil
}

func GetContact(ctx context.Context, db *sql.DB, id uuid.UUID) (*models.Contact, error) {
	row := db.QueryRowContext(ctx, `SELECT `+contactColumns+` FROM contacts WHERE id = ?`, id.String())
	return scanContactRow(row)
}

func GetContactByEmail(ctx context.Context, db *sql.DB, email string) (*models.Contact, error) {
	row := db.QueryRowContext(ctx, `SELECT `+contactColumns+` FROM contacts WHERE email = ? COLLATE NOCASE`,
		strings.ToLower(strings.TrimSpace(email)))
	return scanContactRow(row)
}

func FindContacts(ctx context.Context, db *sql.DB, query string, limit int) ([]models.Contact, error) {
	if limit <= 0 {
		limit = 10
	}

	var rows *sql.Rows
	var err error

	if query != "" {
		searchPattern := "%" + strings.ToLower(query) + "%"
		rows, err = db.QueryContext(ctx, `
			SELECT `+contactColumns+`
			FROM contacts
			WHERE LOWER(name) LIKE ? OR LOWER(email) LIKE ? OR LOWER(company) LIKE ?
			ORDER BY updated_at DESC
			LIMIT ?
		`, searchPattern, searchPattern, searchPattern, limit)
	} else {
		rows, err = db.QueryContext(ctx, `
			SELECT `+contactColumns+`
			FROM contacts
			ORDER BY updated_at DESC
			LIMIT ?
		`, limit)
	}
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var contacts []models.Contact
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, err
		}
		contacts = append(contacts, *c)
	}

	return contacts, rows.Err()
}

func UpdateContactLastContacted(ctx context.Context, db *sql.DB, contactID uuid.UUID, timestamp time.Time) error {
	_, err := db.ExecContext(ctx, `
		UPDATE contacts
		SET last_contacted_at = ?, updated_at = ?
		WHERE id = ?
	`, timestamp, time.Now().UTC(), contactID.String())

	return err
}

func scanContactRow(row *sql.Row) (*models.Contact, error) {
	c, err := scanContact(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrContactNotFound
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

func scanContact(row rowScanner) (*models.Contact, error) {
	var c models.Contact
	var id string
	var phone, company, notes sql.NullString
	var lastContacted sql.NullTime

	if err := row.Scan(&id, &c.Name, &c.Email, &phone, &company, &notes, &lastContacted, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}

	var err error
	c.ID, err = uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("invalid contact id %q: %w", id, err)
	}
	c.Phone = phone.String
	c.Company = company.String
	c.Notes = notes.String
	if lastContacted.Valid {
		t := lastContacted.Time
		c.LastContactedAt = &t
	}
	return &c, nil
}
