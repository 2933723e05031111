package services

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/edulink/edulink-backend/internal/models"
)

// PostgresIdentityResolver joins participant ids against the teachers and
// students tables. Only display fields come back; accounts themselves are
// managed by the auth service.
type PostgresIdentityResolver struct {
	db *sql.DB
}

func NewPostgresIdentityResolver(db *sql.DB) *PostgresIdentityResolver {
	return &PostgresIdentityResolver{db: db}
}

// ValidIdentity reports whether id parses as a user id and kind is known.
func ValidIdentity(id string, kind models.UserKind) bool {
	if !kind.Valid() {
		return false
	}
	_, err := uuid.Parse(id)
	return err == nil
}

// Resolve returns the display contact for an active teacher or student.
func (r *PostgresIdentityResolver) Resolve(ctx context.Context, id string, kind models.UserKind) (*models.Contact, error) {
	parsedID, err := uuid.Parse(id)
	if err != nil {
		return nil, ErrInvalidIdentity
	}

	var query string
	switch kind {
	case models.KindTeacher:
		query = `SELECT name, COALESCE(avatar_url, '') FROM teachers WHERE id = $1 AND is_active = TRUE`
	case models.KindStudent:
		query = `SELECT name, COALESCE(avatar_url, '') FROM students WHERE id = $1 AND is_active = TRUE`
	default:
		return nil, ErrInvalidIdentity
	}

	contact := &models.Contact{ID: id, Kind: kind}
	err = r.db.QueryRowContext(ctx, query, parsedID).Scan(&contact.Name, &contact.AvatarURL)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return contact, nil
}
