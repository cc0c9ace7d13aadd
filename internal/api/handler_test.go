package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"artisan-storefront/config"
	"artisan-storefront/internal/auth"
	"artisan-storefront/internal/blob"
	"artisan-storefront/internal/broker"
	"artisan-storefront/internal/models"
	"artisan-storefront/internal/redisclient"
	"artisan-storefront/internal/service"
	"artisan-storefront/internal/store/memstore"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testAdmin    = "admin-1"
	testCustomer = "customer-1"
)

type testServer struct {
	router *gin.Engine
	tokens *auth.TokenManager
	repo   *memstore.Store
}

type failingCheck struct{}

func (failingCheck) Ping(context.Context) error { return errors.New("down") }

func newTestServer(t *testing.T, extraChecks map[string]HealthChecker) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mr := miniredis.RunT(t)
	guard, err := redisclient.NewClient(mr.Addr(), "", 0)
	require.NoError(t, err)
	t.Cleanup(func() { guard.Close() })

	limits := config.BusinessConfig{
		CatalogDefaultLimit: 50,
		CatalogMaxLimit:     100,
		SearchLimit:         20,
		IdempotencyTTL:      time.Hour,
		CheckoutLockTTL:     time.Minute,
	}

	repo := memstore.New()
	images := blob.NewStore("http://cdn.test/images", "http://cdn.test/uploads", "secret", time.Minute)
	events := broker.NopPublisher{}
	svc := service.NewServices(repo, images, events, guard, limits)
	_, err = svc.Access.BootstrapAdmin(context.Background(), testAdmin)
	require.NoError(t, err)

	checks := map[string]HealthChecker{"database": repo, "redis": guard}
	for name, check := range extraChecks {
		checks[name] = check
	}

	tokens := auth.NewTokenManager("test-secret", "artisan-storefront", time.Hour)
	handler := NewHandler(svc, tokens, checks)
	router := gin.New()
	handler.SetupRoutes(router)

	return &testServer{router: router, tokens: tokens, repo: repo}
}

func (s *testServer) do(t *testing.T, method, path, userID string, body interface{}, headers ...string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		token, err := s.tokens.Issue(userID)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), out), w.Body.String())
}

func productBody(quantity int) gin.H {
	return gin.H{
		"name":      "Rustic Clay Vase",
		"price":     "85",
		"category":  "Pottery",
		"materials": []string{"Clay"},
		"quantity":  quantity,
		"inStock":   false,
	}
}

func shippingBody() gin.H {
	return gin.H{
		"name":    "Ada Lovelace",
		"street":  "12 Kiln Lane",
		"city":    "Stoke",
		"state":   "Staffordshire",
		"zipCode": "ST1 1AA",
		"country": "UK",
	}
}

func TestHealthAndReady(t *testing.T) {
	s := newTestServer(t, nil)

	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/health", "", nil).Code)
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/ready", "", nil).Code)

	broken := newTestServer(t, map[string]HealthChecker{"kafka": failingCheck{}})
	assert.Equal(t, http.StatusServiceUnavailable, broken.do(t, http.MethodGet, "/ready", "", nil).Code)
}

func TestInvalidTokenIsRejected(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.do(t, http.MethodGet, "/api/v1/products", "", nil, "Authorization", "Bearer not-a-token")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/products", "", nil, "Authorization", "Basic abc")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestMeEndpoints(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.do(t, http.MethodGet, "/api/v1/me", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "null", w.Body.String())

	var admin struct {
		IsAdmin bool `json:"isAdmin"`
	}
	w = s.do(t, http.MethodGet, "/api/v1/me/admin", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &admin)
	assert.False(t, admin.IsAdmin)

	w = s.do(t, http.MethodGet, "/api/v1/me/admin", testAdmin, nil)
	decode(t, w, &admin)
	assert.True(t, admin.IsAdmin)

	w = s.do(t, http.MethodPut, "/api/v1/admin/users/"+testCustomer+"/role", testCustomer, gin.H{"role": "admin"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(t, http.MethodPut, "/api/v1/admin/users/"+testCustomer+"/role", testAdmin, gin.H{"role": "owner"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = s.do(t, http.MethodPut, "/api/v1/admin/users/"+testCustomer+"/role", testAdmin, gin.H{"role": "admin"})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestProductAdminFlow(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.do(t, http.MethodPost, "/api/v1/products", "", productBody(3))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(t, http.MethodPost, "/api/v1/products", testCustomer, productBody(3))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(t, http.MethodPost, "/api/v1/products", testAdmin, productBody(3))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created models.ProductView
	decode(t, w, &created)
	assert.True(t, created.InStock)
	assert.True(t, created.Price.Equal(decimal.NewFromInt(85)))

	w = s.do(t, http.MethodGet, "/api/v1/products/"+created.ID, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"price":85,`)

	body := productBody(3)
	body["price"] = 10.005
	w = s.do(t, http.MethodPost, "/api/v1/products", testAdmin, body)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = s.do(t, http.MethodPut, "/api/v1/products/"+created.ID, testAdmin, productBody(0))
	require.Equal(t, http.StatusOK, w.Code)
	var updated models.ProductView
	decode(t, w, &updated)
	assert.False(t, updated.InStock)

	w = s.do(t, http.MethodPost, "/api/v1/products", testAdmin, gin.H{"name": "", "category": "Pottery"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = s.do(t, http.MethodDelete, "/api/v1/products/"+created.ID, testAdmin, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/products/"+created.ID, "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodDelete, "/api/v1/products/"+created.ID, testAdmin, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListAndSearchProducts(t *testing.T) {
	s := newTestServer(t, nil)

	for _, body := range []gin.H{productBody(2), {"name": "Wool Scarf", "price": 40, "category": "Textiles", "quantity": 1}} {
		w := s.do(t, http.MethodPost, "/api/v1/products", testAdmin, body)
		require.Equal(t, http.StatusCreated, w.Code)
	}

	var products []models.ProductView
	w := s.do(t, http.MethodGet, "/api/v1/products?category=Textiles", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &products)
	require.Len(t, products, 1)
	assert.Equal(t, "Wool Scarf", products[0].Name)

	w = s.do(t, http.MethodGet, "/api/v1/products?featured=maybe", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/products/search?q=vase", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &products)
	require.Len(t, products, 1)

	w = s.do(t, http.MethodGet, "/api/v1/products/search?q=", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "[]", w.Body.String())
}

func TestCategoriesAndUploads(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.do(t, http.MethodPost, "/api/v1/categories", testCustomer, gin.H{"name": "Glass"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(t, http.MethodPost, "/api/v1/categories", testAdmin, gin.H{"name": "Glass", "imageRef": "glass.png"})
	require.Equal(t, http.StatusCreated, w.Code)

	var categories []models.CategoryView
	w = s.do(t, http.MethodGet, "/api/v1/categories", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &categories)
	require.Len(t, categories, 1)
	require.NotNil(t, categories[0].ImageURL)
	assert.Equal(t, "http://cdn.test/images/glass.png", *categories[0].ImageURL)

	w = s.do(t, http.MethodPost, "/api/v1/uploads", testAdmin, nil)
	require.Equal(t, http.StatusCreated, w.Code)
	var target blob.UploadTarget
	decode(t, w, &target)
	assert.NotEmpty(t, target.ImageRef)
}

func TestCheckoutFlow(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.do(t, http.MethodPost, "/api/v1/products", testAdmin, productBody(5))
	require.Equal(t, http.StatusCreated, w.Code)
	var product models.ProductView
	decode(t, w, &product)

	w = s.do(t, http.MethodPost, "/api/v1/cart/items", "", gin.H{"productId": product.ID, "quantity": 1})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(t, http.MethodPost, "/api/v1/cart/items", testCustomer, gin.H{"productId": product.ID, "quantity": 9})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = s.do(t, http.MethodPost, "/api/v1/cart/items", testCustomer, gin.H{"productId": product.ID, "quantity": 3})
	require.Equal(t, http.StatusCreated, w.Code)
	var entry models.CartEntry
	decode(t, w, &entry)

	w = s.do(t, http.MethodPatch, "/api/v1/cart/items/"+entry.ID, "customer-2", gin.H{"quantity": 1})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodPatch, "/api/v1/cart/items/"+entry.ID, testCustomer, gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var lines []models.CartLine
	w = s.do(t, http.MethodGet, "/api/v1/cart", testCustomer, nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &lines)
	require.Len(t, lines, 1)
	assert.Equal(t, 3, lines[0].Quantity)

	order := gin.H{
		"items":           []gin.H{{"productId": product.ID, "quantity": 3}},
		"shippingAddress": shippingBody(),
	}

	incomplete := gin.H{"items": order["items"], "shippingAddress": gin.H{"name": "Ada"}}
	w = s.do(t, http.MethodPost, "/api/v1/orders", testCustomer, incomplete)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/api/v1/orders", testCustomer, order, "Idempotency-Key", "k-1")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var placed struct {
		OrderID string `json:"orderId"`
	}
	decode(t, w, &placed)
	require.NotEmpty(t, placed.OrderID)

	w = s.do(t, http.MethodPost, "/api/v1/orders", testCustomer, order, "Idempotency-Key", "k-1")
	require.Equal(t, http.StatusCreated, w.Code)
	var replayed struct {
		OrderID string `json:"orderId"`
	}
	decode(t, w, &replayed)
	assert.Equal(t, placed.OrderID, replayed.OrderID)

	w = s.do(t, http.MethodPost, "/api/v1/orders", testCustomer, order)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code, "only 2 units remain")

	w = s.do(t, http.MethodGet, "/api/v1/cart", testCustomer, nil)
	assert.Equal(t, "[]", w.Body.String())

	var got models.Order
	w = s.do(t, http.MethodGet, "/api/v1/orders/"+placed.OrderID, testCustomer, nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &got)
	assert.True(t, got.TotalAmount.Equal(decimal.NewFromInt(255)))
	require.Len(t, got.Items, 1)
	assert.Equal(t, "Rustic Clay Vase", got.Items[0].ProductName)

	w = s.do(t, http.MethodGet, "/api/v1/orders/"+placed.OrderID, "customer-2", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	var orders []models.Order
	w = s.do(t, http.MethodGet, "/api/v1/orders", testCustomer, nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &orders)
	assert.Len(t, orders, 1)

	w = s.do(t, http.MethodGet, "/api/v1/orders", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "[]", w.Body.String())
}

func TestCartRemoveAndClear(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.do(t, http.MethodPost, "/api/v1/products", testAdmin, productBody(5))
	require.Equal(t, http.StatusCreated, w.Code)
	var product models.ProductView
	decode(t, w, &product)

	w = s.do(t, http.MethodPost, "/api/v1/cart/items", testCustomer, gin.H{"productId": product.ID, "quantity": 1})
	require.Equal(t, http.StatusCreated, w.Code)
	var entry models.CartEntry
	decode(t, w, &entry)

	w = s.do(t, http.MethodPatch, "/api/v1/cart/items/"+entry.ID, testCustomer, gin.H{"quantity": 0})
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = s.do(t, http.MethodDelete, "/api/v1/cart/items/"+entry.ID, testCustomer, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodPost, "/api/v1/cart/items", testCustomer, gin.H{"productId": product.ID, "quantity": 2})
	require.Equal(t, http.StatusCreated, w.Code)

	w = s.do(t, http.MethodDelete, "/api/v1/cart", testCustomer, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/cart", testCustomer, nil)
	assert.Equal(t, "[]", w.Body.String())
}

func TestStatusFor(t *testing.T) {
	cases := map[error]int{
		service.ErrAuthenticationRequired: http.StatusUnauthorized,
		service.ErrAuthorizationDenied:    http.StatusForbidden,
		service.ErrNotFound:               http.StatusNotFound,
		service.ErrValidationFailed:       http.StatusUnprocessableEntity,
		service.ErrCheckoutInProgress:     http.StatusConflict,
		errors.New("boom"):                http.StatusInternalServerError,
	}
	for err, status := range cases {
		assert.Equal(t, status, statusFor(err), err.Error())
	}
}
