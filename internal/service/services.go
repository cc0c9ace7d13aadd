package service

import (
	"artisan-storefront/config"
	"artisan-storefront/internal/store"
)

// Services wires every storefront service over one repository
type Services struct {
	Access     *AccessService
	Catalog    *CatalogService
	Categories *CategoryService
	Cart       *CartService
	Orders     *OrderService
}

// NewServices builds the service set. guard may be nil.
func NewServices(
	repo store.Repository,
	images ImageStore,
	events EventPublisher,
	guard CheckoutGuard,
	limits config.BusinessConfig,
) *Services {
	access := NewAccessService(repo)
	return &Services{
		Access:     access,
		Catalog:    NewCatalogService(repo, access, images, events, limits),
		Categories: NewCategoryService(repo, access, images),
		Cart:       NewCartService(repo, images),
		Orders:     NewOrderService(repo, guard, events, limits),
	}
}
