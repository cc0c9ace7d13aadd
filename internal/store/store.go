package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"artisan-storefront/internal/models"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

const productColumns = `id, name, description, price, image_ref, category, materials,
	dimensions, weight, in_stock, quantity, featured, artist_notes, created_at, updated_at`

// Store is the Postgres implementation of Repository
type Store struct {
	db *sqlx.DB
}

var _ Repository = (*Store)(nil)

// NewStore creates a new database store
func NewStore(databaseURL string, maxOpenConns int) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if maxOpenConns <= 0 {
		maxOpenConns = 25
	}
	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// InTx runs fn inside a database transaction
func (s *Store) InTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&pgTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

type pgTx struct {
	tx *sqlx.Tx
}

// GetProductForUpdate locks the product row until the transaction ends
func (t *pgTx) GetProductForUpdate(ctx context.Context, id string) (*models.Product, error) {
	if !ValidID(id) {
		return nil, ErrNotFound
	}

	var product models.Product
	err := t.tx.GetContext(ctx, &product,
		"SELECT "+productColumns+" FROM products WHERE id = $1 FOR UPDATE", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock product: %w", err)
	}
	return &product, nil
}

func (t *pgTx) UpdateProductStock(ctx context.Context, id string, quantity int) error {
	_, err := t.tx.ExecContext(ctx,
		"UPDATE products SET quantity = $1, in_stock = $1 > 0, updated_at = NOW() WHERE id = $2",
		quantity, id)
	if err != nil {
		return fmt.Errorf("failed to update stock: %w", err)
	}
	return nil
}

func (t *pgTx) CreateOrder(ctx context.Context, order *models.Order) error {
	return insertOrder(ctx, t.tx, order)
}

func (t *pgTx) ClearCart(ctx context.Context, userID string) error {
	return clearCart(ctx, t.tx, userID)
}
