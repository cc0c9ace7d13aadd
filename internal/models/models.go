package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// Money values go over the wire as JSON numbers, not quoted strings
func init() {
	decimal.MarshalJSONWithoutQuotes = true
}

// Role is the coarse capability level attached to a user
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleCustomer Role = "customer"
)

// Valid reports whether r is a known role
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleCustomer
}

// UserRole maps an identity-provider user id to a role
type UserRole struct {
	ID        string    `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"userId"`
	Role      Role      `db:"role" json:"role"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// Product represents an artisan product in the catalog
type Product struct {
	ID          string          `db:"id" json:"id"`
	Name        string          `db:"name" json:"name"`
	Description string          `db:"description" json:"description"`
	Price       decimal.Decimal `db:"price" json:"price"`
	ImageRef    *string         `db:"image_ref" json:"imageRef,omitempty"`
	Category    string          `db:"category" json:"category"`
	Materials   pq.StringArray  `db:"materials" json:"materials"`
	Dimensions  *string         `db:"dimensions" json:"dimensions,omitempty"`
	Weight      *string         `db:"weight" json:"weight,omitempty"`
	InStock     bool            `db:"in_stock" json:"inStock"`
	Quantity    int             `db:"quantity" json:"quantity"`
	Featured    bool            `db:"featured" json:"featured"`
	ArtistNotes *string         `db:"artist_notes" json:"artistNotes,omitempty"`
	CreatedAt   time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time       `db:"updated_at" json:"updatedAt"`
}

// ProductView is a product enriched with its resolved image URL
type ProductView struct {
	Product
	ImageURL *string `json:"imageUrl"`
}

// Category is a loosely coupled taxonomy entry; products reference it by name
type Category struct {
	ID          string    `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Description string    `db:"description" json:"description"`
	ImageRef    *string   `db:"image_ref" json:"imageRef,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
}

// CategoryView is a category enriched with its resolved image URL
type CategoryView struct {
	Category
	ImageURL *string `json:"imageUrl"`
}

// CartEntry is a per-user, per-product pending purchase
type CartEntry struct {
	ID        string    `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"userId"`
	ProductID string    `db:"product_id" json:"productId"`
	Quantity  int       `db:"quantity" json:"quantity"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// CartLine is a cart entry joined with its product
type CartLine struct {
	CartEntry
	Product ProductView `json:"product"`
}

// OrderStatus is the fulfilment state of an order
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// PaymentStatus is stored only; it is never reconciled with a gateway
type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusPaid    PaymentStatus = "paid"
	PaymentStatusFailed  PaymentStatus = "failed"
)

// ShippingAddress is persisted as a JSON document
type ShippingAddress struct {
	Name    string `json:"name" binding:"required"`
	Street  string `json:"street" binding:"required"`
	City    string `json:"city" binding:"required"`
	State   string `json:"state" binding:"required"`
	ZipCode string `json:"zipCode" binding:"required"`
	Country string `json:"country" binding:"required"`
}

// Value implements driver.Valuer
func (a ShippingAddress) Value() (driver.Value, error) {
	return json.Marshal(a)
}

// Scan implements sql.Scanner
func (a *ShippingAddress) Scan(src interface{}) error {
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, a)
	case string:
		return json.Unmarshal([]byte(v), a)
	case nil:
		*a = ShippingAddress{}
		return nil
	default:
		return errors.New("unsupported shipping address type")
	}
}

// Order is an immutable snapshot of a checkout
type Order struct {
	ID              string          `db:"id" json:"id"`
	UserID          string          `db:"user_id" json:"userId"`
	Items           []OrderItem     `db:"-" json:"items"`
	TotalAmount     decimal.Decimal `db:"total_amount" json:"totalAmount"`
	Status          OrderStatus     `db:"status" json:"status"`
	ShippingAddress ShippingAddress `db:"shipping_address" json:"shippingAddress"`
	PaymentStatus   PaymentStatus   `db:"payment_status" json:"paymentStatus"`
	CreatedAt       time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updatedAt"`
}

// OrderItem carries the price and name captured at order time
type OrderItem struct {
	OrderID     string          `db:"order_id" json:"-"`
	Position    int             `db:"position" json:"-"`
	ProductID   string          `db:"product_id" json:"productId"`
	Quantity    int             `db:"quantity" json:"quantity"`
	Price       decimal.Decimal `db:"price" json:"price"`
	ProductName string          `db:"product_name" json:"productName"`
}
