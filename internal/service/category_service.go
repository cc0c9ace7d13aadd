package service

import (
	"context"
	"fmt"
	"strings"

	"artisan-storefront/internal/models"
	"artisan-storefront/internal/store"
	"artisan-storefront/internal/util"

	"go.uber.org/zap"
)

// CategoryService manages the category taxonomy
type CategoryService struct {
	repo   store.Repository
	access *AccessService
	images ImageStore
	logger *zap.Logger
}

// NewCategoryService creates a new category service
func NewCategoryService(repo store.Repository, access *AccessService, images ImageStore) *CategoryService {
	return &CategoryService{repo: repo, access: access, images: images, logger: util.Named("category")}
}

// CategoryInput is the admin-editable shape of a category
type CategoryInput struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	ImageRef    *string `json:"imageRef"`
}

// List returns every category with its resolved image URL
func (s *CategoryService) List(ctx context.Context) ([]models.CategoryView, error) {
	ctx, span := util.StartSpan(ctx, "CategoryService.List")
	defer span.End()

	util.CatalogQueriesTotal.WithLabelValues("categories").Inc()

	categories, err := s.repo.ListCategories(ctx)
	if err != nil {
		util.RecordError(span, err)
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}

	out := make([]models.CategoryView, 0, len(categories))
	for _, c := range categories {
		out = append(out, models.CategoryView{Category: c, ImageURL: s.images.ResolveURL(c.ImageRef)})
	}
	return out, nil
}

// Create adds a category. Admin only.
func (s *CategoryService) Create(ctx context.Context, in CategoryInput) (*models.CategoryView, error) {
	ctx, span := util.StartSpan(ctx, "CategoryService.Create")
	defer span.End()

	if err := s.access.RequireAdmin(ctx); err != nil {
		return nil, err
	}

	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, validationError("category name is required")
	}

	c := &models.Category{Name: name, Description: in.Description, ImageRef: in.ImageRef}
	if err := s.repo.CreateCategory(ctx, c); err != nil {
		util.RecordError(span, err)
		return nil, fmt.Errorf("failed to create category: %w", err)
	}

	util.CatalogWritesTotal.WithLabelValues("category_create").Inc()
	s.logger.Info("Category created", zap.String("category_id", c.ID), zap.String("name", c.Name))
	return &models.CategoryView{Category: *c, ImageURL: s.images.ResolveURL(c.ImageRef)}, nil
}
