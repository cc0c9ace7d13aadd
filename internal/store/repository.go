package store

import (
	"context"
	"errors"

	"artisan-storefront/internal/models"

	"github.com/google/uuid"
)

// ErrNotFound is returned when an id does not resolve to a record
var ErrNotFound = errors.New("record not found")

// ProductFilter selects a page of products. Category takes precedence over Featured.
type ProductFilter struct {
	Category string
	Featured bool
	Limit    int
}

// Repository is the data access layer shared by every service
type Repository interface {
	GetUserRole(ctx context.Context, userID string) (*models.UserRole, error)
	UpsertUserRole(ctx context.Context, userID string, role models.Role) (*models.UserRole, error)

	ListProducts(ctx context.Context, filter ProductFilter) ([]models.Product, error)
	SearchProducts(ctx context.Context, text, category string, limit int) ([]models.Product, error)
	GetProductByID(ctx context.Context, id string) (*models.Product, error)
	GetProductsByIDs(ctx context.Context, ids []string) ([]models.Product, error)
	HasProducts(ctx context.Context) (bool, error)
	CreateProduct(ctx context.Context, product *models.Product) error
	UpdateProduct(ctx context.Context, product *models.Product) error
	DeleteProduct(ctx context.Context, id string) error

	ListCategories(ctx context.Context) ([]models.Category, error)
	CreateCategory(ctx context.Context, category *models.Category) error

	ListCartEntries(ctx context.Context, userID string) ([]models.CartEntry, error)
	GetCartEntry(ctx context.Context, id string) (*models.CartEntry, error)
	GetCartEntryByProduct(ctx context.Context, userID, productID string) (*models.CartEntry, error)
	AddCartQuantity(ctx context.Context, userID, productID string, quantity int) (*models.CartEntry, error)
	SetCartQuantity(ctx context.Context, id string, quantity int) error
	DeleteCartEntry(ctx context.Context, id string) error
	ClearCart(ctx context.Context, userID string) error

	ListOrdersByUser(ctx context.Context, userID string) ([]models.Order, error)
	GetOrderByID(ctx context.Context, id string) (*models.Order, error)

	// InTx runs fn in a single transaction. Nothing fn wrote survives if it returns an error.
	InTx(ctx context.Context, fn func(tx Tx) error) error

	Ping(ctx context.Context) error
	Close() error
}

// Tx is the write surface of the order placement transaction
type Tx interface {
	GetProductForUpdate(ctx context.Context, id string) (*models.Product, error)
	// UpdateProductStock sets quantity and derives in_stock from it.
	UpdateProductStock(ctx context.Context, id string, quantity int) error
	CreateOrder(ctx context.Context, order *models.Order) error
	ClearCart(ctx context.Context, userID string) error
}

// ValidID reports whether id has the shape of a store-assigned identifier
func ValidID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
