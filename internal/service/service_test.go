package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"artisan-storefront/config"
	"artisan-storefront/internal/auth"
	"artisan-storefront/internal/blob"
	"artisan-storefront/internal/models"
	"artisan-storefront/internal/redisclient"
	"artisan-storefront/internal/store/memstore"

	"github.com/alicebob/miniredis/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

const adminID = "admin-1"

type fakePublisher struct {
	mu      sync.Mutex
	orders  []*models.OrderPlacedEvent
	changes []*models.ProductChangedEvent
	err     error
}

func (f *fakePublisher) PublishOrderPlaced(_ context.Context, e *models.OrderPlacedEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orders = append(f.orders, e)
	return f.err
}

func (f *fakePublisher) PublishProductChanged(_ context.Context, e *models.ProductChangedEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.changes = append(f.changes, e)
	return f.err
}

func (f *fakePublisher) changeTypes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.changes))
	for _, e := range f.changes {
		out = append(out, e.EventType)
	}
	return out
}

type testEnv struct {
	repo       *memstore.Store
	guard      *redisclient.Client
	redis      *miniredis.Miniredis
	events     *fakePublisher
	access     *AccessService
	catalog    *CatalogService
	categories *CategoryService
	cart       *CartService
	orders     *OrderService
}

func testLimits() config.BusinessConfig {
	return config.BusinessConfig{
		CatalogDefaultLimit: 50,
		CatalogMaxLimit:     100,
		SearchLimit:         20,
		IdempotencyTTL:      time.Hour,
		CheckoutLockTTL:     time.Minute,
	}
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	mr := miniredis.RunT(t)
	guard, err := redisclient.NewClient(mr.Addr(), "", 0)
	require.NoError(t, err)
	t.Cleanup(func() { guard.Close() })

	repo := memstore.New()
	images := blob.NewStore("http://cdn.test/images", "http://cdn.test/uploads", "test-secret", time.Minute)
	events := &fakePublisher{}
	access := NewAccessService(repo)

	_, err = access.BootstrapAdmin(context.Background(), adminID)
	require.NoError(t, err)

	return &testEnv{
		repo:       repo,
		guard:      guard,
		redis:      mr,
		events:     events,
		access:     access,
		catalog:    NewCatalogService(repo, access, images, events, testLimits()),
		categories: NewCategoryService(repo, access, images),
		cart:       NewCartService(repo, images),
		orders:     NewOrderService(repo, guard, events, testLimits()),
	}
}

func asUser(userID string) context.Context {
	return auth.WithUserID(context.Background(), userID)
}

func asAdmin() context.Context {
	return asUser(adminID)
}

func anonymous() context.Context {
	return context.Background()
}

// addProduct inserts a product directly, bypassing the admin check
func (e *testEnv) addProduct(t *testing.T, name, category string, price int64, quantity int) *models.Product {
	t.Helper()
	p := &models.Product{
		Name:     name,
		Price:    decimal.NewFromInt(price),
		Category: category,
		Quantity: quantity,
		InStock:  quantity > 0,
	}
	require.NoError(t, e.repo.CreateProduct(context.Background(), p))
	return p
}

func (e *testEnv) quantityOf(t *testing.T, id string) int {
	t.Helper()
	p, err := e.repo.GetProductByID(context.Background(), id)
	require.NoError(t, err)
	return p.Quantity
}

func testAddress() models.ShippingAddress {
	return models.ShippingAddress{
		Name:    "Ada Lovelace",
		Street:  "12 Kiln Lane",
		City:    "Stoke",
		State:   "Staffordshire",
		ZipCode: "ST1 1AA",
		Country: "UK",
	}
}

var errBroker = errors.New("broker unavailable")
