package service

import (
	"context"
	"errors"
	"fmt"

	"artisan-storefront/internal/models"
	"artisan-storefront/internal/store"
	"artisan-storefront/internal/util"

	"go.uber.org/zap"
)

// CartService manages the caller's cart
type CartService struct {
	repo   store.Repository
	images ImageStore
	logger *zap.Logger
}

// NewCartService creates a new cart service
func NewCartService(repo store.Repository, images ImageStore) *CartService {
	return &CartService{repo: repo, images: images, logger: util.Named("cart")}
}

// ownedEntry hides entries of other users behind ErrNotFound
func (s *CartService) ownedEntry(ctx context.Context, userID, id string) (*models.CartEntry, error) {
	entry, err := s.repo.GetCartEntry(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cart entry: %w", err)
	}
	if entry.UserID != userID {
		return nil, ErrNotFound
	}
	return entry, nil
}

// Add puts quantity units of a product in the cart, merging with an existing entry
func (s *CartService) Add(ctx context.Context, productID string, quantity int) (*models.CartEntry, error) {
	ctx, span := util.StartSpan(ctx, "CartService.Add")
	defer span.End()

	userID, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	if quantity <= 0 || quantity > MaxQuantity {
		return nil, validationError("quantity must be between 1 and %d", MaxQuantity)
	}

	product, err := s.repo.GetProductByID(ctx, productID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		util.RecordError(span, err)
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	if !product.InStock {
		return nil, validationError("%s is out of stock", product.Name)
	}

	inCart := 0
	existing, err := s.repo.GetCartEntryByProduct(ctx, userID, productID)
	switch {
	case err == nil:
		inCart = existing.Quantity
	case !errors.Is(err, store.ErrNotFound):
		util.RecordError(span, err)
		return nil, fmt.Errorf("failed to get cart entry: %w", err)
	}
	if quantity > product.Quantity-inCart {
		return nil, validationError("only %d of %s available", product.Quantity, product.Name)
	}

	entry, err := s.repo.AddCartQuantity(ctx, userID, productID, quantity)
	if err != nil {
		util.RecordError(span, err)
		return nil, fmt.Errorf("failed to add to cart: %w", err)
	}

	util.CartOperationsTotal.WithLabelValues("add").Inc()
	s.logger.Debug("Cart entry added",
		zap.String("user_id", userID),
		zap.String("product_id", productID),
		zap.Int("quantity", entry.Quantity))
	return entry, nil
}

// UpdateQuantity overwrites an entry's quantity. A non-positive quantity removes the entry.
func (s *CartService) UpdateQuantity(ctx context.Context, id string, quantity int) error {
	ctx, span := util.StartSpan(ctx, "CartService.UpdateQuantity")
	defer span.End()

	userID, err := requireUser(ctx)
	if err != nil {
		return err
	}
	if quantity > MaxQuantity {
		return validationError("quantity must not exceed %d", MaxQuantity)
	}
	if _, err := s.ownedEntry(ctx, userID, id); err != nil {
		return err
	}

	if quantity <= 0 {
		err = s.repo.DeleteCartEntry(ctx, id)
	} else {
		err = s.repo.SetCartQuantity(ctx, id, quantity)
	}
	if errors.Is(err, store.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		util.RecordError(span, err)
		return fmt.Errorf("failed to update cart entry: %w", err)
	}

	util.CartOperationsTotal.WithLabelValues("update").Inc()
	return nil
}

// Remove deletes one of the caller's entries
func (s *CartService) Remove(ctx context.Context, id string) error {
	ctx, span := util.StartSpan(ctx, "CartService.Remove")
	defer span.End()

	userID, err := requireUser(ctx)
	if err != nil {
		return err
	}
	if _, err := s.ownedEntry(ctx, userID, id); err != nil {
		return err
	}

	if err := s.repo.DeleteCartEntry(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		util.RecordError(span, err)
		return fmt.Errorf("failed to remove cart entry: %w", err)
	}

	util.CartOperationsTotal.WithLabelValues("remove").Inc()
	return nil
}

// Clear empties the caller's cart
func (s *CartService) Clear(ctx context.Context) error {
	ctx, span := util.StartSpan(ctx, "CartService.Clear")
	defer span.End()

	userID, err := requireUser(ctx)
	if err != nil {
		return err
	}

	if err := s.repo.ClearCart(ctx, userID); err != nil {
		util.RecordError(span, err)
		return fmt.Errorf("failed to clear cart: %w", err)
	}

	util.CartOperationsTotal.WithLabelValues("clear").Inc()
	return nil
}

// List returns the caller's entries joined with their products. Entries whose product
// is gone are skipped. An anonymous caller has an empty cart.
func (s *CartService) List(ctx context.Context) ([]models.CartLine, error) {
	ctx, span := util.StartSpan(ctx, "CartService.List")
	defer span.End()

	lines := []models.CartLine{}

	userID, err := requireUser(ctx)
	if err != nil {
		return lines, nil
	}

	entries, err := s.repo.ListCartEntries(ctx, userID)
	if err != nil {
		util.RecordError(span, err)
		return nil, fmt.Errorf("failed to list cart: %w", err)
	}
	if len(entries) == 0 {
		return lines, nil
	}

	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.ProductID)
	}
	products, err := s.repo.GetProductsByIDs(ctx, ids)
	if err != nil {
		util.RecordError(span, err)
		return nil, fmt.Errorf("failed to load cart products: %w", err)
	}
	byID := make(map[string]models.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	for _, e := range entries {
		p, ok := byID[e.ProductID]
		if !ok {
			continue
		}
		lines = append(lines, models.CartLine{CartEntry: e, Product: viewProduct(s.images, p)})
	}
	return lines, nil
}
