// Package memstore is an in-memory Repository for local development and tests.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode"

	"artisan-storefront/internal/models"
	"artisan-storefront/internal/store"

	"github.com/google/uuid"
)

type state struct {
	roles      map[string]models.UserRole // keyed by user id
	products   map[string]models.Product
	categories map[string]models.Category
	cart       map[string]models.CartEntry
	orders     map[string]models.Order
}

func newState() *state {
	return &state{
		roles:      make(map[string]models.UserRole),
		products:   make(map[string]models.Product),
		categories: make(map[string]models.Category),
		cart:       make(map[string]models.CartEntry),
		orders:     make(map[string]models.Order),
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.roles {
		c.roles[k] = v
	}
	for k, v := range s.products {
		c.products[k] = v
	}
	for k, v := range s.categories {
		c.categories[k] = v
	}
	for k, v := range s.cart {
		c.cart[k] = v
	}
	for k, v := range s.orders {
		c.orders[k] = v
	}
	return c
}

// Store keeps every collection in maps guarded by one mutex
type Store struct {
	mu   sync.RWMutex
	st   *state
	now  func() time.Time
	last time.Time
}

var _ store.Repository = (*Store)(nil)

// New creates an empty store
func New() *Store {
	return &Store{st: newState(), now: time.Now}
}

// tick returns a strictly increasing timestamp. Callers hold mu.
func (s *Store) tick() time.Time {
	t := s.now().UTC()
	if !t.After(s.last) {
		t = s.last.Add(time.Nanosecond)
	}
	s.last = t
	return t
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }

// InTx runs fn against a private copy and swaps it in only if fn succeeds
func (s *Store) InTx(ctx context.Context, fn func(tx store.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.st.clone()
	if err := fn(&memTx{parent: s, st: work}); err != nil {
		return err
	}
	s.st = work
	return nil
}

type memTx struct {
	parent *Store
	st     *state
}

func (t *memTx) GetProductForUpdate(_ context.Context, id string) (*models.Product, error) {
	p, ok := t.st.products[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return copyProduct(p), nil
}

func (t *memTx) UpdateProductStock(_ context.Context, id string, quantity int) error {
	p, ok := t.st.products[id]
	if !ok {
		return store.ErrNotFound
	}
	p.Quantity = quantity
	p.InStock = quantity > 0
	p.UpdatedAt = t.parent.tick()
	t.st.products[id] = p
	return nil
}

func (t *memTx) CreateOrder(_ context.Context, order *models.Order) error {
	now := t.parent.tick()
	order.ID = uuid.NewString()
	order.CreatedAt = now
	order.UpdatedAt = now

	items := make([]models.OrderItem, len(order.Items))
	for i, item := range order.Items {
		item.OrderID = order.ID
		item.Position = i
		items[i] = item
	}
	order.Items = items

	stored := *order
	stored.Items = append([]models.OrderItem(nil), items...)
	t.st.orders[order.ID] = stored
	return nil
}

func (t *memTx) ClearCart(_ context.Context, userID string) error {
	clearCart(t.st, userID)
	return nil
}

func clearCart(st *state, userID string) {
	for id, e := range st.cart {
		if e.UserID == userID {
			delete(st.cart, id)
		}
	}
}

// GetUserRole returns the role record for a user
func (s *Store) GetUserRole(_ context.Context, userID string) (*models.UserRole, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.st.roles[userID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &r, nil
}

// UpsertUserRole keeps at most one role record per user
func (s *Store) UpsertUserRole(_ context.Context, userID string, role models.Role) (*models.UserRole, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.tick()
	r, ok := s.st.roles[userID]
	if !ok {
		r = models.UserRole{ID: uuid.NewString(), UserID: userID, CreatedAt: now}
	}
	r.Role = role
	r.UpdatedAt = now
	s.st.roles[userID] = r
	return &r, nil
}

// ListProducts returns one page of products in creation order
func (s *Store) ListProducts(_ context.Context, filter store.ProductFilter) ([]models.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Product, 0)
	for _, p := range sortedProducts(s.st) {
		switch {
		case filter.Category != "":
			if p.Category != filter.Category {
				continue
			}
		case filter.Featured:
			if !p.Featured {
				continue
			}
		}
		out = append(out, *copyProduct(p))
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return out, nil
}

// SearchProducts matches every query term against the whole words of the product name
func (s *Store) SearchProducts(_ context.Context, text, category string, limit int) ([]models.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	terms := searchWords(text)
	out := make([]models.Product, 0)
	if len(terms) == 0 {
		return out, nil
	}

	for _, p := range sortedProducts(s.st) {
		if category != "" && p.Category != category {
			continue
		}
		if !matchesAll(searchWords(p.Name), terms) {
			continue
		}
		out = append(out, *copyProduct(p))
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// searchWords lowercases s and splits it on anything that is not a letter or digit
func searchWords(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func matchesAll(words, terms []string) bool {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	for _, term := range terms {
		if _, ok := set[term]; !ok {
			return false
		}
	}
	return true
}

// GetProductByID retrieves a product by ID
func (s *Store) GetProductByID(_ context.Context, id string) (*models.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.st.products[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return copyProduct(p), nil
}

// GetProductsByIDs retrieves multiple products; unknown ids are skipped
func (s *Store) GetProductsByIDs(_ context.Context, ids []string) ([]models.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Product, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		if p, ok := s.st.products[id]; ok {
			out = append(out, *copyProduct(p))
		}
	}
	return out, nil
}

func (s *Store) HasProducts(context.Context) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.st.products) > 0, nil
}

// CreateProduct assigns an id and timestamps
func (s *Store) CreateProduct(_ context.Context, p *models.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.tick()
	p.ID = uuid.NewString()
	p.CreatedAt = now
	p.UpdatedAt = now
	s.st.products[p.ID] = *copyProduct(*p)
	return nil
}

// UpdateProduct overwrites every mutable product field
func (s *Store) UpdateProduct(_ context.Context, p *models.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.st.products[p.ID]
	if !ok {
		return store.ErrNotFound
	}
	p.CreatedAt = existing.CreatedAt
	p.UpdatedAt = s.tick()
	s.st.products[p.ID] = *copyProduct(*p)
	return nil
}

func (s *Store) DeleteProduct(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.st.products[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.st.products, id)
	return nil
}

func (s *Store) ListCategories(context.Context) ([]models.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Category, 0, len(s.st.categories))
	for _, c := range s.st.categories {
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) CreateCategory(_ context.Context, c *models.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c.ID = uuid.NewString()
	c.CreatedAt = s.tick()
	s.st.categories[c.ID] = *c
	return nil
}

func (s *Store) ListCartEntries(_ context.Context, userID string) ([]models.CartEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.CartEntry, 0)
	for _, e := range s.st.cart {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) GetCartEntry(_ context.Context, id string) (*models.CartEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.st.cart[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &e, nil
}

func (s *Store) GetCartEntryByProduct(_ context.Context, userID, productID string) (*models.CartEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if e, ok := findCartEntry(s.st, userID, productID); ok {
		return &e, nil
	}
	return nil, store.ErrNotFound
}

func findCartEntry(st *state, userID, productID string) (models.CartEntry, bool) {
	for _, e := range st.cart {
		if e.UserID == userID && e.ProductID == productID {
			return e, true
		}
	}
	return models.CartEntry{}, false
}

// AddCartQuantity inserts the pair or increments the existing entry
func (s *Store) AddCartQuantity(_ context.Context, userID, productID string, quantity int) (*models.CartEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.tick()
	e, ok := findCartEntry(s.st, userID, productID)
	if ok {
		e.Quantity += quantity
	} else {
		e = models.CartEntry{
			ID:        uuid.NewString(),
			UserID:    userID,
			ProductID: productID,
			Quantity:  quantity,
			CreatedAt: now,
		}
	}
	e.UpdatedAt = now
	s.st.cart[e.ID] = e
	return &e, nil
}

func (s *Store) SetCartQuantity(_ context.Context, id string, quantity int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.st.cart[id]
	if !ok {
		return store.ErrNotFound
	}
	e.Quantity = quantity
	e.UpdatedAt = s.tick()
	s.st.cart[id] = e
	return nil
}

func (s *Store) DeleteCartEntry(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.st.cart[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.st.cart, id)
	return nil
}

func (s *Store) ClearCart(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	clearCart(s.st, userID)
	return nil
}

// ListOrdersByUser returns the orders of a user, most recent first
func (s *Store) ListOrdersByUser(_ context.Context, userID string) ([]models.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Order, 0)
	for _, o := range s.st.orders {
		if o.UserID == userID {
			out = append(out, copyOrder(o))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) GetOrderByID(_ context.Context, id string) (*models.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.st.orders[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	c := copyOrder(o)
	return &c, nil
}

func sortedProducts(st *state) []models.Product {
	out := make([]models.Product, 0, len(st.products))
	for _, p := range st.products {
		out = append(out, p)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func copyProduct(p models.Product) *models.Product {
	if p.Materials != nil {
		p.Materials = append([]string(nil), p.Materials...)
	}
	return &p
}

func copyOrder(o models.Order) models.Order {
	o.Items = append([]models.OrderItem(nil), o.Items...)
	return o
}
