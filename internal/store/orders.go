package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"artisan-storefront/internal/models"

	"github.com/jmoiron/sqlx"
)

const orderColumns = "id, user_id, total_amount, status, shipping_address, payment_status, created_at, updated_at"

// insertOrder writes the order row and its item snapshots
func insertOrder(ctx context.Context, db sqlx.ExtContext, order *models.Order) error {
	query := `
		INSERT INTO orders (user_id, total_amount, status, shipping_address, payment_status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at`

	if err := sqlx.GetContext(ctx, db, order, query,
		order.UserID, order.TotalAmount, order.Status, order.ShippingAddress, order.PaymentStatus); err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}

	for i := range order.Items {
		item := &order.Items[i]
		item.OrderID = order.ID
		item.Position = i
		_, err := db.ExecContext(ctx, `
			INSERT INTO order_items (order_id, position, product_id, quantity, price, product_name)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			item.OrderID, item.Position, item.ProductID, item.Quantity, item.Price, item.ProductName)
		if err != nil {
			return fmt.Errorf("failed to create order item: %w", err)
		}
	}

	return nil
}

// GetOrderByID retrieves an order with its items
func (s *Store) GetOrderByID(ctx context.Context, id string) (*models.Order, error) {
	if !ValidID(id) {
		return nil, ErrNotFound
	}

	var order models.Order
	err := s.db.GetContext(ctx, &order, "SELECT "+orderColumns+" FROM orders WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	items, err := s.getOrderItems(ctx, []string{order.ID})
	if err != nil {
		return nil, err
	}
	order.Items = items[order.ID]
	return &order, nil
}

// ListOrdersByUser retrieves orders for a user, most recent first
func (s *Store) ListOrdersByUser(ctx context.Context, userID string) ([]models.Order, error) {
	var orders []models.Order
	err := s.db.SelectContext(ctx, &orders,
		"SELECT "+orderColumns+" FROM orders WHERE user_id = $1 ORDER BY created_at DESC, id DESC", userID)
	if err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return orders, nil
	}

	ids := make([]string, len(orders))
	for i := range orders {
		ids[i] = orders[i].ID
	}

	items, err := s.getOrderItems(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range orders {
		orders[i].Items = items[orders[i].ID]
	}
	return orders, nil
}

func (s *Store) getOrderItems(ctx context.Context, orderIDs []string) (map[string][]models.OrderItem, error) {
	query, args, err := sqlx.In(`
		SELECT order_id, position, product_id, quantity, price, product_name
		FROM order_items WHERE order_id IN (?) ORDER BY order_id, position`, orderIDs)
	if err != nil {
		return nil, err
	}
	query = s.db.Rebind(query)

	var items []models.OrderItem
	if err := s.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, fmt.Errorf("failed to get order items: %w", err)
	}

	byOrder := make(map[string][]models.OrderItem, len(orderIDs))
	for _, item := range items {
		byOrder[item.OrderID] = append(byOrder[item.OrderID], item)
	}
	return byOrder, nil
}
