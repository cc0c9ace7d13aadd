package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"artisan-storefront/config"
	"artisan-storefront/internal/blob"
	"artisan-storefront/internal/models"
	"artisan-storefront/internal/store"
	"artisan-storefront/internal/util"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CatalogService handles product reads and admin product management
type CatalogService struct {
	repo   store.Repository
	access *AccessService
	images ImageStore
	events EventPublisher
	limits config.BusinessConfig
	logger *zap.Logger
}

// NewCatalogService creates a new catalog service
func NewCatalogService(
	repo store.Repository,
	access *AccessService,
	images ImageStore,
	events EventPublisher,
	limits config.BusinessConfig,
) *CatalogService {
	return &CatalogService{
		repo:   repo,
		access: access,
		images: images,
		events: events,
		limits: limits,
		logger: util.Named("catalog"),
	}
}

// ListParams selects a page of products. Category wins over Featured.
type ListParams struct {
	Category string `form:"category"`
	Featured bool   `form:"featured"`
	Limit    int    `form:"limit"`
}

// ProductInput is the admin-editable shape of a product. InStock is accepted but
// ignored: stock is always derived from Quantity.
type ProductInput struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	ImageRef    *string         `json:"imageRef"`
	Category    string          `json:"category"`
	Materials   []string        `json:"materials"`
	Dimensions  *string         `json:"dimensions"`
	Weight      *string         `json:"weight"`
	InStock     *bool           `json:"inStock,omitempty"`
	Quantity    int             `json:"quantity"`
	Featured    bool            `json:"featured"`
	ArtistNotes *string         `json:"artistNotes"`
}

// maxPrice is the largest value NUMERIC(12,2) holds
var maxPrice = decimal.RequireFromString("9999999999.99")

func (in *ProductInput) validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return validationError("product name is required")
	}
	if strings.TrimSpace(in.Category) == "" {
		return validationError("product category is required")
	}
	if in.Price.IsNegative() {
		return validationError("price must not be negative")
	}
	if !in.Price.Equal(in.Price.Round(2)) {
		return validationError("price may have at most 2 decimal places")
	}
	if in.Price.GreaterThan(maxPrice) {
		return validationError("price must not exceed %s", maxPrice)
	}
	if in.Quantity < 0 || in.Quantity > MaxQuantity {
		return validationError("quantity must be between 0 and %d", MaxQuantity)
	}
	return nil
}

func (in *ProductInput) apply(p *models.Product) {
	p.Name = strings.TrimSpace(in.Name)
	p.Description = in.Description
	p.Price = in.Price
	p.ImageRef = in.ImageRef
	p.Category = strings.TrimSpace(in.Category)
	p.Materials = append([]string{}, in.Materials...)
	p.Dimensions = in.Dimensions
	p.Weight = in.Weight
	p.Quantity = in.Quantity
	p.InStock = in.Quantity > 0
	p.Featured = in.Featured
	p.ArtistNotes = in.ArtistNotes
}

func (s *CatalogService) clampLimit(limit int) int {
	if limit <= 0 {
		limit = s.limits.CatalogDefaultLimit
	}
	if s.limits.CatalogMaxLimit > 0 && limit > s.limits.CatalogMaxLimit {
		limit = s.limits.CatalogMaxLimit
	}
	return limit
}

// List returns a page of products filtered by category or featured flag
func (s *CatalogService) List(ctx context.Context, params ListParams) ([]models.ProductView, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.List")
	defer span.End()

	util.CatalogQueriesTotal.WithLabelValues("list").Inc()

	filter := store.ProductFilter{
		Category: strings.TrimSpace(params.Category),
		Featured: params.Featured,
		Limit:    s.clampLimit(params.Limit),
	}
	products, err := s.repo.ListProducts(ctx, filter)
	if err != nil {
		util.RecordError(span, err)
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	return viewProducts(s.images, products), nil
}

// Get returns a product or nil when the id does not resolve
func (s *CatalogService) Get(ctx context.Context, id string) (*models.ProductView, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.Get")
	defer span.End()

	util.CatalogQueriesTotal.WithLabelValues("get").Inc()

	p, err := s.repo.GetProductByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		util.RecordError(span, err)
		return nil, fmt.Errorf("failed to get product: %w", err)
	}

	view := viewProduct(s.images, *p)
	return &view, nil
}

// Search matches text against product names, optionally within one category
func (s *CatalogService) Search(ctx context.Context, text, category string) ([]models.ProductView, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.Search")
	defer span.End()

	util.CatalogQueriesTotal.WithLabelValues("search").Inc()

	text = strings.TrimSpace(text)
	if text == "" {
		return []models.ProductView{}, nil
	}

	products, err := s.repo.SearchProducts(ctx, text, strings.TrimSpace(category), s.limits.SearchLimit)
	if err != nil {
		util.RecordError(span, err)
		return nil, fmt.Errorf("failed to search products: %w", err)
	}
	return viewProducts(s.images, products), nil
}

// Create adds a product. Admin only.
func (s *CatalogService) Create(ctx context.Context, in ProductInput) (*models.ProductView, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.Create")
	defer span.End()

	if err := s.access.RequireAdmin(ctx); err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}

	p := &models.Product{}
	in.apply(p)
	if err := s.repo.CreateProduct(ctx, p); err != nil {
		util.RecordError(span, err)
		return nil, fmt.Errorf("failed to create product: %w", err)
	}

	util.CatalogWritesTotal.WithLabelValues("create").Inc()
	s.logger.Info("Product created", zap.String("product_id", p.ID), zap.String("name", p.Name))
	publishProductChanged(ctx, s.events, s.logger, models.EventTypeProductCreated, p)

	view := viewProduct(s.images, *p)
	return &view, nil
}

// Update overwrites the editable fields of a product. Admin only.
func (s *CatalogService) Update(ctx context.Context, id string, in ProductInput) (*models.ProductView, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.Update")
	defer span.End()

	if err := s.access.RequireAdmin(ctx); err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}

	p, err := s.repo.GetProductByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		util.RecordError(span, err)
		return nil, fmt.Errorf("failed to get product: %w", err)
	}

	in.apply(p)
	if err := s.repo.UpdateProduct(ctx, p); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		util.RecordError(span, err)
		return nil, fmt.Errorf("failed to update product: %w", err)
	}

	util.CatalogWritesTotal.WithLabelValues("update").Inc()
	s.logger.Info("Product updated", zap.String("product_id", p.ID))
	publishProductChanged(ctx, s.events, s.logger, models.EventTypeProductUpdated, p)

	view := viewProduct(s.images, *p)
	return &view, nil
}

// Delete removes a product. Admin only. Orders keep their snapshots.
func (s *CatalogService) Delete(ctx context.Context, id string) error {
	ctx, span := util.StartSpan(ctx, "CatalogService.Delete")
	defer span.End()

	if err := s.access.RequireAdmin(ctx); err != nil {
		return err
	}

	if err := s.repo.DeleteProduct(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		util.RecordError(span, err)
		return fmt.Errorf("failed to delete product: %w", err)
	}

	util.CatalogWritesTotal.WithLabelValues("delete").Inc()
	s.logger.Info("Product deleted", zap.String("product_id", id))
	publishProductChanged(ctx, s.events, s.logger, models.EventTypeProductDeleted, &models.Product{ID: id})
	return nil
}

// GenerateUploadURL issues a signed target for a new product image. Admin only.
func (s *CatalogService) GenerateUploadURL(ctx context.Context) (*blob.UploadTarget, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.GenerateUploadURL")
	defer span.End()

	if err := s.access.RequireAdmin(ctx); err != nil {
		return nil, err
	}

	target, err := s.images.IssueUploadTarget()
	if err != nil {
		util.RecordError(span, err)
		return nil, fmt.Errorf("failed to issue upload target: %w", err)
	}
	return target, nil
}

const (
	SeedResultExists  = "Data exists"
	SeedResultCreated = "Sample data initialized"
)

// SeedSampleData inserts a starter category and product into an empty catalog
func (s *CatalogService) SeedSampleData(ctx context.Context) (string, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.SeedSampleData")
	defer span.End()

	exists, err := s.repo.HasProducts(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to check catalog: %w", err)
	}
	if exists {
		return SeedResultExists, nil
	}

	category := &models.Category{
		Name:        "Pottery",
		Description: "Handcrafted ceramic pieces made with traditional techniques",
	}
	if err := s.repo.CreateCategory(ctx, category); err != nil {
		return "", fmt.Errorf("failed to create sample category: %w", err)
	}

	dimensions := "12\" H x 6\" W"
	weight := "2.5 lbs"
	notes := "Inspired by ancient pottery traditions, this vase celebrates the beauty of imperfection."
	product := &models.Product{
		Name:        "Rustic Clay Vase",
		Description: "A beautiful handcrafted vase with earthy tones and organic texture",
		Price:       decimal.NewFromInt(85),
		Category:    category.Name,
		Materials:   []string{"Clay", "Natural Glaze"},
		Dimensions:  &dimensions,
		Weight:      &weight,
		Quantity:    5,
		InStock:     true,
		Featured:    true,
		ArtistNotes: &notes,
	}
	if err := s.repo.CreateProduct(ctx, product); err != nil {
		return "", fmt.Errorf("failed to create sample product: %w", err)
	}

	s.logger.Info("Sample data initialized", zap.String("product_id", product.ID))
	return SeedResultCreated, nil
}
