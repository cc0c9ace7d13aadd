package service

import (
	"context"
	"math"
	"testing"
	"time"

	"artisan-storefront/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func orderFor(items ...OrderItemRequest) *CreateOrderRequest {
	return &CreateOrderRequest{Items: items, ShippingAddress: testAddress()}
}

func TestCreateOrderFromCart(t *testing.T) {
	env := newTestEnv(t)
	p := env.addProduct(t, "Clay Vase", "Pottery", 85, 5)
	ctx := asUser("customer-1")

	_, err := env.cart.Add(ctx, p.ID, 3)
	require.NoError(t, err)

	orderID, err := env.orders.CreateOrder(ctx, orderFor(OrderItemRequest{ProductID: p.ID, Quantity: 3}))
	require.NoError(t, err)
	require.NotEmpty(t, orderID)

	stored, err := env.repo.GetProductByID(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, stored.Quantity)
	assert.True(t, stored.InStock)

	order, err := env.orders.GetOrder(ctx, orderID)
	require.NoError(t, err)
	require.NotNil(t, order)
	assert.True(t, order.TotalAmount.Equal(decimal.NewFromInt(3*85)))
	assert.Equal(t, models.OrderStatusPending, order.Status)
	assert.Equal(t, models.PaymentStatusPending, order.PaymentStatus)
	assert.Equal(t, testAddress(), order.ShippingAddress)

	lines, err := env.cart.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, lines)
}

func TestCreateOrderClearsWholeCart(t *testing.T) {
	env := newTestEnv(t)
	ordered := env.addProduct(t, "Clay Vase", "Pottery", 85, 5)
	other := env.addProduct(t, "Wool Scarf", "Textiles", 40, 5)
	ctx := asUser("customer-1")

	_, err := env.cart.Add(ctx, other.ID, 1)
	require.NoError(t, err)

	_, err = env.orders.CreateOrder(ctx, orderFor(OrderItemRequest{ProductID: ordered.ID, Quantity: 1}))
	require.NoError(t, err)

	lines, err := env.cart.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, lines)
	assert.Equal(t, 5, env.quantityOf(t, other.ID))
}

func TestCreateOrderLastUnitFlipsInStock(t *testing.T) {
	env := newTestEnv(t)
	p := env.addProduct(t, "Clay Vase", "Pottery", 85, 2)

	_, err := env.orders.CreateOrder(asUser("customer-1"), orderFor(OrderItemRequest{ProductID: p.ID, Quantity: 2}))
	require.NoError(t, err)

	stored, err := env.repo.GetProductByID(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, stored.Quantity)
	assert.False(t, stored.InStock)

	_, err = env.orders.CreateOrder(asUser("customer-2"), orderFor(OrderItemRequest{ProductID: p.ID, Quantity: 1}))
	assert.ErrorIs(t, err, ErrValidationFailed)
}

func TestCreateOrderInsufficientStockChangesNothing(t *testing.T) {
	env := newTestEnv(t)
	a := env.addProduct(t, "Clay Vase", "Pottery", 85, 5)
	b := env.addProduct(t, "Wool Scarf", "Textiles", 40, 1)
	ctx := asUser("customer-1")

	_, err := env.cart.Add(ctx, a.ID, 2)
	require.NoError(t, err)

	_, err = env.orders.CreateOrder(ctx, orderFor(
		OrderItemRequest{ProductID: a.ID, Quantity: 2},
		OrderItemRequest{ProductID: b.ID, Quantity: 2},
	))
	require.ErrorIs(t, err, ErrValidationFailed)
	assert.Contains(t, err.Error(), "Wool Scarf")

	assert.Equal(t, 5, env.quantityOf(t, a.ID), "the earlier line's decrement is rolled back")
	assert.Equal(t, 1, env.quantityOf(t, b.ID))

	lines, err := env.cart.List(ctx)
	require.NoError(t, err)
	assert.Len(t, lines, 1)

	orders, err := env.orders.ListOrders(ctx)
	require.NoError(t, err)
	assert.Empty(t, orders)
	assert.Empty(t, env.events.orders)
}

func TestCreateOrderDuplicateLinesSeeEarlierDecrement(t *testing.T) {
	env := newTestEnv(t)
	p := env.addProduct(t, "Clay Vase", "Pottery", 85, 3)
	ctx := asUser("customer-1")

	_, err := env.orders.CreateOrder(ctx, orderFor(
		OrderItemRequest{ProductID: p.ID, Quantity: 2},
		OrderItemRequest{ProductID: p.ID, Quantity: 2},
	))
	require.ErrorIs(t, err, ErrValidationFailed)

	stored, err := env.repo.GetProductByID(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, stored.Quantity)
	assert.True(t, stored.InStock)

	orders, err := env.orders.ListOrders(ctx)
	require.NoError(t, err)
	assert.Empty(t, orders)

	// the same lines fit when stock allows both
	orderID, err := env.orders.CreateOrder(ctx, orderFor(
		OrderItemRequest{ProductID: p.ID, Quantity: 1},
		OrderItemRequest{ProductID: p.ID, Quantity: 2},
	))
	require.NoError(t, err)
	assert.Equal(t, 0, env.quantityOf(t, p.ID))

	order, err := env.orders.GetOrder(ctx, orderID)
	require.NoError(t, err)
	require.Len(t, order.Items, 2)
}

func TestCreateOrderUnknownProduct(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.orders.CreateOrder(asUser("customer-1"), orderFor(OrderItemRequest{ProductID: uuid.NewString(), Quantity: 1}))
	assert.ErrorIs(t, err, ErrValidationFailed)
}

func TestCreateOrderRejectsBadRequests(t *testing.T) {
	env := newTestEnv(t)
	p := env.addProduct(t, "Clay Vase", "Pottery", 85, 3)

	_, err := env.orders.CreateOrder(anonymous(), orderFor(OrderItemRequest{ProductID: p.ID, Quantity: 1}))
	assert.ErrorIs(t, err, ErrAuthenticationRequired)

	_, err = env.orders.CreateOrder(asUser("customer-1"), orderFor())
	assert.ErrorIs(t, err, ErrValidationFailed)

	_, err = env.orders.CreateOrder(asUser("customer-1"), orderFor(OrderItemRequest{ProductID: p.ID, Quantity: 0}))
	assert.ErrorIs(t, err, ErrValidationFailed)

	for _, quantity := range []int{MaxQuantity + 1, math.MaxInt} {
		_, err = env.orders.CreateOrder(asUser("customer-1"), orderFor(OrderItemRequest{ProductID: p.ID, Quantity: quantity}))
		assert.ErrorIs(t, err, ErrValidationFailed, "quantity %d", quantity)
	}

	req := orderFor(OrderItemRequest{ProductID: p.ID, Quantity: 1})
	req.ShippingAddress.City = ""
	_, err = env.orders.CreateOrder(asUser("customer-1"), req)
	assert.ErrorIs(t, err, ErrValidationFailed)

	assert.Equal(t, 3, env.quantityOf(t, p.ID))
}

func TestOrderSnapshotSurvivesProductEdits(t *testing.T) {
	env := newTestEnv(t)
	a := env.addProduct(t, "Clay Vase", "Pottery", 85, 5)
	b := env.addProduct(t, "Wool Scarf", "Textiles", 40, 5)
	ctx := asUser("customer-1")

	orderID, err := env.orders.CreateOrder(ctx, orderFor(
		OrderItemRequest{ProductID: a.ID, Quantity: 2},
		OrderItemRequest{ProductID: b.ID, Quantity: 1},
	))
	require.NoError(t, err)

	in := vaseInput(9)
	in.Name = "Renamed Vase"
	in.Price = decimal.NewFromInt(500)
	_, err = env.catalog.Update(asAdmin(), a.ID, in)
	require.NoError(t, err)
	require.NoError(t, env.catalog.Delete(asAdmin(), b.ID))

	order, err := env.orders.GetOrder(ctx, orderID)
	require.NoError(t, err)
	require.Len(t, order.Items, 2)

	assert.Equal(t, "Clay Vase", order.Items[0].ProductName)
	assert.True(t, order.Items[0].Price.Equal(decimal.NewFromInt(85)))
	assert.Equal(t, "Wool Scarf", order.Items[1].ProductName)

	sum := decimal.Zero
	for _, item := range order.Items {
		sum = sum.Add(item.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	assert.True(t, order.TotalAmount.Equal(sum))
	assert.True(t, sum.Equal(decimal.NewFromInt(210)))
}

func TestOrderVisibility(t *testing.T) {
	env := newTestEnv(t)
	p := env.addProduct(t, "Clay Vase", "Pottery", 85, 10)
	owner := asUser("customer-1")

	first, err := env.orders.CreateOrder(owner, orderFor(OrderItemRequest{ProductID: p.ID, Quantity: 1}))
	require.NoError(t, err)
	second, err := env.orders.CreateOrder(owner, orderFor(OrderItemRequest{ProductID: p.ID, Quantity: 1}))
	require.NoError(t, err)

	orders, err := env.orders.ListOrders(owner)
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, second, orders[0].ID, "most recent first")
	assert.Equal(t, first, orders[1].ID)

	got, err := env.orders.GetOrder(asUser("customer-2"), first)
	require.NoError(t, err)
	assert.Nil(t, got, "another user's order is indistinguishable from a missing one")

	got, err = env.orders.GetOrder(owner, uuid.NewString())
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = env.orders.GetOrder(anonymous(), first)
	require.NoError(t, err)
	assert.Nil(t, got)

	orders, err = env.orders.ListOrders(anonymous())
	require.NoError(t, err)
	assert.NotNil(t, orders)
	assert.Empty(t, orders)
}

func TestIdempotencyKeyReplaysOrder(t *testing.T) {
	env := newTestEnv(t)
	p := env.addProduct(t, "Clay Vase", "Pottery", 85, 10)
	ctx := asUser("customer-1")

	req := orderFor(OrderItemRequest{ProductID: p.ID, Quantity: 2})
	req.IdempotencyKey = "checkout-42"

	first, err := env.orders.CreateOrder(ctx, req)
	require.NoError(t, err)
	again, err := env.orders.CreateOrder(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, first, again)
	assert.Equal(t, 8, env.quantityOf(t, p.ID))

	// keys are per user
	other, err := env.orders.CreateOrder(asUser("customer-2"), req)
	require.NoError(t, err)
	assert.NotEqual(t, first, other)

	env.redis.FastForward(2 * time.Hour)
	later, err := env.orders.CreateOrder(ctx, req)
	require.NoError(t, err)
	assert.NotEqual(t, first, later, "expired keys place a new order")
}

func TestConcurrentCheckoutIsRejected(t *testing.T) {
	env := newTestEnv(t)
	p := env.addProduct(t, "Clay Vase", "Pottery", 85, 10)

	token, err := env.guard.AcquireLock(context.Background(), checkoutLockKey("customer-1"), time.Minute)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	_, err = env.orders.CreateOrder(asUser("customer-1"), orderFor(OrderItemRequest{ProductID: p.ID, Quantity: 1}))
	assert.ErrorIs(t, err, ErrCheckoutInProgress)
	assert.Equal(t, 10, env.quantityOf(t, p.ID))

	require.NoError(t, env.guard.ReleaseLock(context.Background(), checkoutLockKey("customer-1"), token))
	_, err = env.orders.CreateOrder(asUser("customer-1"), orderFor(OrderItemRequest{ProductID: p.ID, Quantity: 1}))
	require.NoError(t, err)
}

func TestLockIsReleasedAfterFailure(t *testing.T) {
	env := newTestEnv(t)
	p := env.addProduct(t, "Clay Vase", "Pottery", 85, 1)
	ctx := asUser("customer-1")

	_, err := env.orders.CreateOrder(ctx, orderFor(OrderItemRequest{ProductID: p.ID, Quantity: 5}))
	require.ErrorIs(t, err, ErrValidationFailed)

	_, err = env.orders.CreateOrder(ctx, orderFor(OrderItemRequest{ProductID: p.ID, Quantity: 1}))
	assert.NoError(t, err)
}

func TestOrderPlacedEvent(t *testing.T) {
	env := newTestEnv(t)
	p := env.addProduct(t, "Clay Vase", "Pottery", 85, 5)

	orderID, err := env.orders.CreateOrder(asUser("customer-1"), orderFor(OrderItemRequest{ProductID: p.ID, Quantity: 2}))
	require.NoError(t, err)

	require.Len(t, env.events.orders, 1)
	event := env.events.orders[0]
	assert.Equal(t, models.EventTypeOrderPlaced, event.EventType)
	assert.Equal(t, orderID, event.OrderID)
	assert.True(t, event.TotalAmount.Equal(decimal.NewFromInt(170)))
	require.Len(t, event.Items, 1)
	assert.Equal(t, p.ID, event.Items[0].ProductID)
}

func TestOrderWithoutGuard(t *testing.T) {
	env := newTestEnv(t)
	env.events.err = errBroker
	orders := NewOrderService(env.repo, nil, env.events, testLimits())
	p := env.addProduct(t, "Clay Vase", "Pottery", 85, 5)

	req := orderFor(OrderItemRequest{ProductID: p.ID, Quantity: 1})
	req.IdempotencyKey = "ignored"
	_, err := orders.CreateOrder(asUser("customer-1"), req)
	require.NoError(t, err, "a failed publish does not fail the order")
	_, err = orders.CreateOrder(asUser("customer-1"), req)
	require.NoError(t, err)
	assert.Equal(t, 3, env.quantityOf(t, p.ID))
}

func TestAddressValidationNamesFirstBlankField(t *testing.T) {
	req := orderFor(OrderItemRequest{ProductID: uuid.NewString(), Quantity: 1})
	req.ShippingAddress = models.ShippingAddress{Street: "1 Kiln Lane", ZipCode: " "}

	for i := 0; i < 50; i++ {
		err := validateRequest(req)
		require.ErrorIs(t, err, ErrValidationFailed)
		assert.Contains(t, err.Error(), "shipping address name is required")
	}

	req.ShippingAddress.Name = "Ada"
	err := validateRequest(req)
	require.ErrorIs(t, err, ErrValidationFailed)
	assert.Contains(t, err.Error(), "shipping address city is required")
}
