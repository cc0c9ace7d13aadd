package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"artisan-storefront/internal/models"

	"github.com/jmoiron/sqlx"
)

// ListProducts returns one page of products, filtered by category or featured flag
func (s *Store) ListProducts(ctx context.Context, filter ProductFilter) ([]models.Product, error) {
	var (
		products []models.Product
		err      error
	)

	base := "SELECT " + productColumns + " FROM products"
	switch {
	case filter.Category != "":
		err = s.db.SelectContext(ctx, &products,
			base+" WHERE category = $1 ORDER BY created_at, id LIMIT $2", filter.Category, filter.Limit)
	case filter.Featured:
		err = s.db.SelectContext(ctx, &products,
			base+" WHERE featured = TRUE ORDER BY created_at, id LIMIT $1", filter.Limit)
	default:
		err = s.db.SelectContext(ctx, &products,
			base+" ORDER BY created_at, id LIMIT $1", filter.Limit)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	return products, nil
}

// SearchProducts matches text against the full-text index on product name
func (s *Store) SearchProducts(ctx context.Context, text, category string, limit int) ([]models.Product, error) {
	query := `
		SELECT ` + productColumns + `
		FROM products
		WHERE to_tsvector('simple', name) @@ plainto_tsquery('simple', $1)
		  AND ($2 = '' OR category = $2)
		ORDER BY ts_rank(to_tsvector('simple', name), plainto_tsquery('simple', $1)) DESC, created_at
		LIMIT $3`

	var products []models.Product
	if err := s.db.SelectContext(ctx, &products, query, text, category, limit); err != nil {
		return nil, fmt.Errorf("failed to search products: %w", err)
	}
	return products, nil
}

// GetProductByID retrieves a product by ID
func (s *Store) GetProductByID(ctx context.Context, id string) (*models.Product, error) {
	if !ValidID(id) {
		return nil, ErrNotFound
	}

	var product models.Product
	err := s.db.GetContext(ctx, &product, "SELECT "+productColumns+" FROM products WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// GetProductsByIDs retrieves multiple products by IDs; unknown ids are skipped
func (s *Store) GetProductsByIDs(ctx context.Context, ids []string) ([]models.Product, error) {
	valid := make([]string, 0, len(ids))
	for _, id := range ids {
		if ValidID(id) {
			valid = append(valid, id)
		}
	}
	if len(valid) == 0 {
		return []models.Product{}, nil
	}

	query, args, err := sqlx.In("SELECT "+productColumns+" FROM products WHERE id IN (?)", valid)
	if err != nil {
		return nil, err
	}
	query = s.db.Rebind(query)

	var products []models.Product
	err = s.db.SelectContext(ctx, &products, query, args...)
	return products, err
}

// HasProducts reports whether the catalog holds at least one product
func (s *Store) HasProducts(ctx context.Context) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists, "SELECT EXISTS(SELECT 1 FROM products)")
	return exists, err
}

// CreateProduct inserts a product and fills in its id and timestamps
func (s *Store) CreateProduct(ctx context.Context, p *models.Product) error {
	query := `
		INSERT INTO products (name, description, price, image_ref, category, materials,
			dimensions, weight, in_stock, quantity, featured, artist_notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, created_at, updated_at`

	return s.db.GetContext(ctx, p, query,
		p.Name, p.Description, p.Price, p.ImageRef, p.Category, p.Materials,
		p.Dimensions, p.Weight, p.InStock, p.Quantity, p.Featured, p.ArtistNotes)
}

// UpdateProduct overwrites every mutable product field
func (s *Store) UpdateProduct(ctx context.Context, p *models.Product) error {
	if !ValidID(p.ID) {
		return ErrNotFound
	}

	query := `
		UPDATE products SET name = $2, description = $3, price = $4, image_ref = $5, category = $6,
			materials = $7, dimensions = $8, weight = $9, in_stock = $10, quantity = $11,
			featured = $12, artist_notes = $13, updated_at = NOW()
		WHERE id = $1
		RETURNING created_at, updated_at`

	err := s.db.GetContext(ctx, p, query, p.ID,
		p.Name, p.Description, p.Price, p.ImageRef, p.Category, p.Materials,
		p.Dimensions, p.Weight, p.InStock, p.Quantity, p.Featured, p.ArtistNotes)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// DeleteProduct removes a product. Cart entries pointing at it are left in place.
func (s *Store) DeleteProduct(ctx context.Context, id string) error {
	if !ValidID(id) {
		return ErrNotFound
	}

	res, err := s.db.ExecContext(ctx, "DELETE FROM products WHERE id = $1", id)
	if err != nil {
		return err
	}
	return expectAffected(res)
}

func expectAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
