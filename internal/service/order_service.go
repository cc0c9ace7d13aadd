package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"artisan-storefront/config"
	"artisan-storefront/internal/models"
	"artisan-storefront/internal/store"
	"artisan-storefront/internal/util"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// OrderService handles order placement and order history
type OrderService struct {
	repo   store.Repository
	guard  CheckoutGuard
	events EventPublisher
	limits config.BusinessConfig
	logger *zap.Logger
}

// NewOrderService creates a new order service. guard may be nil, which disables
// idempotency keys and the checkout lock.
func NewOrderService(
	repo store.Repository,
	guard CheckoutGuard,
	events EventPublisher,
	limits config.BusinessConfig,
) *OrderService {
	return &OrderService{
		repo:   repo,
		guard:  guard,
		events: events,
		limits: limits,
		logger: util.Named("order"),
	}
}

// CreateOrderRequest represents a request to create an order
type CreateOrderRequest struct {
	Items           []OrderItemRequest     `json:"items"`
	ShippingAddress models.ShippingAddress `json:"shippingAddress"`
	IdempotencyKey  string                 `json:"-"`
}

// OrderItemRequest represents an item in an order
type OrderItemRequest struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

func validateRequest(req *CreateOrderRequest) error {
	if len(req.Items) == 0 {
		return validationError("order has no items")
	}
	for i, item := range req.Items {
		if strings.TrimSpace(item.ProductID) == "" {
			return validationError("item %d has no product", i+1)
		}
		if item.Quantity <= 0 || item.Quantity > MaxQuantity {
			return validationError("item %d quantity must be between 1 and %d", i+1, MaxQuantity)
		}
	}

	a := req.ShippingAddress
	fields := []struct{ name, value string }{
		{"name", a.Name},
		{"street", a.Street},
		{"city", a.City},
		{"state", a.State},
		{"zipCode", a.ZipCode},
		{"country", a.Country},
	}
	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			return validationError("shipping address %s is required", f.name)
		}
	}
	return nil
}

func checkoutLockKey(userID string) string {
	return "checkout:" + userID
}

// CreateOrder places an order for the caller and returns its id. Each line is validated
// against live stock and then decremented before the next line is read, all in one
// transaction; any failure leaves products, orders and the cart untouched.
func (s *OrderService) CreateOrder(ctx context.Context, req *CreateOrderRequest) (string, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.CreateOrder")
	defer span.End()

	userID, err := requireUser(ctx)
	if err != nil {
		return "", err
	}
	if err := validateRequest(req); err != nil {
		util.OrdersFailedTotal.WithLabelValues("invalid_request").Inc()
		return "", err
	}

	if s.guard != nil {
		token, err := s.guard.AcquireLock(ctx, checkoutLockKey(userID), s.limits.CheckoutLockTTL)
		if err != nil {
			return "", fmt.Errorf("failed to acquire checkout lock: %w", err)
		}
		if token == "" {
			util.OrdersFailedTotal.WithLabelValues("locked").Inc()
			return "", ErrCheckoutInProgress
		}
		defer func() {
			if err := s.guard.ReleaseLock(context.Background(), checkoutLockKey(userID), token); err != nil {
				s.logger.Warn("Failed to release checkout lock", zap.String("user_id", userID), zap.Error(err))
			}
		}()

		if req.IdempotencyKey != "" {
			orderID, found, err := s.guard.LookupOrder(ctx, userID, req.IdempotencyKey)
			if err != nil {
				return "", fmt.Errorf("failed to check idempotency: %w", err)
			}
			if found {
				util.OrdersReplayedTotal.Inc()
				s.logger.Info("Duplicate order request detected",
					zap.String("idempotency_key", req.IdempotencyKey),
					zap.String("order_id", orderID))
				return orderID, nil
			}
		}
	}

	start := time.Now()
	order := &models.Order{
		UserID:          userID,
		Status:          models.OrderStatusPending,
		ShippingAddress: req.ShippingAddress,
		PaymentStatus:   models.PaymentStatusPending,
	}

	err = s.repo.InTx(ctx, func(tx store.Tx) error {
		total := decimal.Zero
		items := make([]models.OrderItem, 0, len(req.Items))

		for _, line := range req.Items {
			product, err := tx.GetProductForUpdate(ctx, line.ProductID)
			if errors.Is(err, store.ErrNotFound) {
				return validationError("product %s not found", line.ProductID)
			}
			if err != nil {
				return fmt.Errorf("failed to get product: %w", err)
			}
			if !product.InStock || product.Quantity < line.Quantity {
				return validationError("insufficient stock for %s", product.Name)
			}

			price := product.Price
			total = total.Add(price.Mul(decimal.NewFromInt(int64(line.Quantity))))
			items = append(items, models.OrderItem{
				ProductID:   product.ID,
				Quantity:    line.Quantity,
				Price:       price,
				ProductName: product.Name,
			})

			if err := tx.UpdateProductStock(ctx, product.ID, product.Quantity-line.Quantity); err != nil {
				return fmt.Errorf("failed to update stock: %w", err)
			}
		}

		order.Items = items
		order.TotalAmount = total
		if err := tx.CreateOrder(ctx, order); err != nil {
			return fmt.Errorf("failed to create order: %w", err)
		}
		if err := tx.ClearCart(ctx, userID); err != nil {
			return fmt.Errorf("failed to clear cart: %w", err)
		}
		return nil
	})
	util.OrderPlacementLatency.Observe(time.Since(start).Seconds())

	if err != nil {
		util.RecordError(span, err)
		if errors.Is(err, ErrValidationFailed) {
			util.OrdersFailedTotal.WithLabelValues("validation").Inc()
			s.logger.Info("Order rejected", zap.String("user_id", userID), zap.Error(err))
			return "", err
		}
		util.OrdersFailedTotal.WithLabelValues("db_error").Inc()
		return "", err
	}

	util.OrdersPlacedTotal.Inc()
	s.logger.Info("Order placed",
		zap.String("order_id", order.ID),
		zap.String("user_id", userID),
		zap.String("total", order.TotalAmount.String()))

	if s.guard != nil && req.IdempotencyKey != "" {
		if err := s.guard.RememberOrder(ctx, userID, req.IdempotencyKey, order.ID, s.limits.IdempotencyTTL); err != nil {
			s.logger.Error("Failed to store idempotency key", zap.String("order_id", order.ID), zap.Error(err))
		}
	}

	s.publishOrderPlaced(ctx, order)
	return order.ID, nil
}

func (s *OrderService) publishOrderPlaced(ctx context.Context, order *models.Order) {
	items := make([]models.OrderItemData, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, models.OrderItemData{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.Price,
		})
	}

	event := &models.OrderPlacedEvent{
		BaseEvent:   newBaseEvent(models.EventTypeOrderPlaced),
		OrderID:     order.ID,
		UserID:      order.UserID,
		TotalAmount: order.TotalAmount,
		Items:       items,
	}
	if err := s.events.PublishOrderPlaced(ctx, event); err != nil {
		util.EventPublishFailedTotal.WithLabelValues(models.EventTypeOrderPlaced).Inc()
		s.logger.Error("Failed to publish OrderPlaced event", zap.String("order_id", order.ID), zap.Error(err))
	}
}

// ListOrders returns the caller's orders, most recent first. An anonymous caller has none.
func (s *OrderService) ListOrders(ctx context.Context) ([]models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.ListOrders")
	defer span.End()

	userID, err := requireUser(ctx)
	if err != nil {
		return []models.Order{}, nil
	}

	orders, err := s.repo.ListOrdersByUser(ctx, userID)
	if err != nil {
		util.RecordError(span, err)
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	if orders == nil {
		orders = []models.Order{}
	}
	return orders, nil
}

// GetOrder returns the order only when it exists and belongs to the caller, nil otherwise
func (s *OrderService) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.GetOrder")
	defer span.End()

	userID, err := requireUser(ctx)
	if err != nil {
		return nil, nil
	}

	order, err := s.repo.GetOrderByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		util.RecordError(span, err)
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	if order.UserID != userID {
		return nil, nil
	}
	return order, nil
}
