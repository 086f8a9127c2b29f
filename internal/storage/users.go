package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/parsea-dev/parsea/internal/common"
	"github.com/parsea-dev/parsea/internal/model"
)

// CreateUser inserts a new user. Email uniqueness is enforced by the schema;
// a collision surfaces as common.ErrDuplicateEntry.
func (s *SQLiteStorage) CreateUser(ctx context.Context, user *model.User) error {
	if user == nil {
		return fmt.Errorf("user cannot be nil")
	}
	if user.Email == "" {
		return fmt.Errorf("%w: email is required", common.ErrInvalidInput)
	}

	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, email, password_hash, business_name, tax_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		user.ID, strings.ToLower(user.Email), user.PasswordHash,
		user.BusinessName, user.TaxID, user.CreatedAt)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("%w: email %s", common.ErrDuplicateEntry, user.Email)
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetUserByEmail looks a user up by email, case-insensitively.
func (s *SQLiteStorage) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return s.getUser(ctx, `SELECT id, email, password_hash, business_name, tax_id, created_at
		FROM users WHERE email = ? COLLATE NOCASE`, strings.ToLower(email))
}

// GetUserByID looks a user up by ID.
func (s *SQLiteStorage) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	return s.getUser(ctx, `SELECT id, email, password_hash, business_name, tax_id, created_at
		FROM users WHERE id = ?`, id)
}

func (s *SQLiteStorage) getUser(ctx context.Context, query string, arg any) (*model.User, error) {
	var user model.User
	var businessName, taxID sql.NullString

	err := s.db.QueryRowContext(ctx, query, arg).Scan(&user.ID, &user.Email,
		&user.PasswordHash, &businessName, &taxID, &user.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: user", common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	user.BusinessName = businessName.String
	user.TaxID = taxID.String
	return &user, nil
}
