package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"artisan-storefront/internal/models"
)

// GetUserRole returns the role record for a user
func (s *Store) GetUserRole(ctx context.Context, userID string) (*models.UserRole, error) {
	var role models.UserRole
	err := s.db.GetContext(ctx, &role,
		"SELECT id, user_id, role, created_at, updated_at FROM user_roles WHERE user_id = $1", userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &role, nil
}

// UpsertUserRole creates or re-assigns the single role record of a user
func (s *Store) UpsertUserRole(ctx context.Context, userID string, role models.Role) (*models.UserRole, error) {
	query := `
		INSERT INTO user_roles (user_id, role)
		VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET role = EXCLUDED.role, updated_at = NOW()
		RETURNING id, user_id, role, created_at, updated_at`

	var out models.UserRole
	if err := s.db.GetContext(ctx, &out, query, userID, role); err != nil {
		return nil, fmt.Errorf("failed to upsert user role: %w", err)
	}
	return &out, nil
}

// ListCategories retrieves all categories
func (s *Store) ListCategories(ctx context.Context) ([]models.Category, error) {
	var categories []models.Category
	err := s.db.SelectContext(ctx, &categories,
		"SELECT id, name, description, image_ref, created_at FROM categories ORDER BY created_at, id")
	return categories, err
}

// CreateCategory creates a new category
func (s *Store) CreateCategory(ctx context.Context, c *models.Category) error {
	query := `
		INSERT INTO categories (name, description, image_ref)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`

	return s.db.GetContext(ctx, c, query, c.Name, c.Description, c.ImageRef)
}
