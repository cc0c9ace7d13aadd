package store

import (
	"context"
	"database/sql"
	"errors"

	"artisan-storefront/internal/models"

	"github.com/jmoiron/sqlx"
)

const cartColumns = "id, user_id, product_id, quantity, created_at, updated_at"

// ListCartEntries retrieves the cart of a user in insertion order
func (s *Store) ListCartEntries(ctx context.Context, userID string) ([]models.CartEntry, error) {
	var entries []models.CartEntry
	err := s.db.SelectContext(ctx, &entries,
		"SELECT "+cartColumns+" FROM cart_entries WHERE user_id = $1 ORDER BY created_at, id", userID)
	return entries, err
}

// GetCartEntry retrieves a cart entry by ID
func (s *Store) GetCartEntry(ctx context.Context, id string) (*models.CartEntry, error) {
	if !ValidID(id) {
		return nil, ErrNotFound
	}

	var entry models.CartEntry
	err := s.db.GetContext(ctx, &entry, "SELECT "+cartColumns+" FROM cart_entries WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// GetCartEntryByProduct retrieves the entry for a (user, product) pair
func (s *Store) GetCartEntryByProduct(ctx context.Context, userID, productID string) (*models.CartEntry, error) {
	if !ValidID(productID) {
		return nil, ErrNotFound
	}

	var entry models.CartEntry
	err := s.db.GetContext(ctx, &entry,
		"SELECT "+cartColumns+" FROM cart_entries WHERE user_id = $1 AND product_id = $2", userID, productID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// AddCartQuantity inserts the pair or increments the existing entry
func (s *Store) AddCartQuantity(ctx context.Context, userID, productID string, quantity int) (*models.CartEntry, error) {
	query := `
		INSERT INTO cart_entries (user_id, product_id, quantity)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, product_id)
		DO UPDATE SET quantity = cart_entries.quantity + EXCLUDED.quantity, updated_at = NOW()
		RETURNING ` + cartColumns

	var entry models.CartEntry
	if err := s.db.GetContext(ctx, &entry, query, userID, productID, quantity); err != nil {
		return nil, err
	}
	return &entry, nil
}

// SetCartQuantity overwrites the quantity of an entry
func (s *Store) SetCartQuantity(ctx context.Context, id string, quantity int) error {
	if !ValidID(id) {
		return ErrNotFound
	}

	res, err := s.db.ExecContext(ctx,
		"UPDATE cart_entries SET quantity = $1, updated_at = NOW() WHERE id = $2", quantity, id)
	if err != nil {
		return err
	}
	return expectAffected(res)
}

// DeleteCartEntry removes one entry
func (s *Store) DeleteCartEntry(ctx context.Context, id string) error {
	if !ValidID(id) {
		return ErrNotFound
	}

	res, err := s.db.ExecContext(ctx, "DELETE FROM cart_entries WHERE id = $1", id)
	if err != nil {
		return err
	}
	return expectAffected(res)
}

// ClearCart removes every entry of a user
func (s *Store) ClearCart(ctx context.Context, userID string) error {
	return clearCart(ctx, s.db, userID)
}

func clearCart(ctx context.Context, db sqlx.ExecerContext, userID string) error {
	_, err := db.ExecContext(ctx, "DELETE FROM cart_entries WHERE user_id = $1", userID)
	return err
}
