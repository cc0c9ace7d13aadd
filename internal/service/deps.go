package service

import (
	"context"
	"time"

	"artisan-storefront/internal/blob"
	"artisan-storefront/internal/models"
	"artisan-storefront/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ImageStore resolves image references and issues upload targets
type ImageStore interface {
	ResolveURL(ref *string) *string
	IssueUploadTarget() (*blob.UploadTarget, error)
}

// EventPublisher receives domain events after a write commits
type EventPublisher interface {
	PublishOrderPlaced(ctx context.Context, event *models.OrderPlacedEvent) error
	PublishProductChanged(ctx context.Context, event *models.ProductChangedEvent) error
}

// CheckoutGuard provides idempotency keys and a per-user checkout lock
type CheckoutGuard interface {
	LookupOrder(ctx context.Context, userID, key string) (string, bool, error)
	RememberOrder(ctx context.Context, userID, key, orderID string, ttl time.Duration) error
	AcquireLock(ctx context.Context, lockKey string, ttl time.Duration) (string, error)
	ReleaseLock(ctx context.Context, lockKey, token string) error
}

func newBaseEvent(eventType string) models.BaseEvent {
	return models.BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: time.Now(),
	}
}

// Publishing is best effort; the write has already committed.
func publishProductChanged(ctx context.Context, events EventPublisher, logger *zap.Logger, eventType string, p *models.Product) {
	event := &models.ProductChangedEvent{
		BaseEvent: newBaseEvent(eventType),
		ProductID: p.ID,
		Name:      p.Name,
		Category:  p.Category,
		Quantity:  p.Quantity,
		InStock:   p.InStock,
	}
	if err := events.PublishProductChanged(ctx, event); err != nil {
		util.EventPublishFailedTotal.WithLabelValues(eventType).Inc()
		logger.Error("Failed to publish product event",
			zap.String("type", eventType),
			zap.String("product_id", p.ID),
			zap.Error(err))
	}
}

func viewProduct(images ImageStore, p models.Product) models.ProductView {
	return models.ProductView{Product: p, ImageURL: images.ResolveURL(p.ImageRef)}
}

func viewProducts(images ImageStore, products []models.Product) []models.ProductView {
	out := make([]models.ProductView, 0, len(products))
	for _, p := range products {
		out = append(out, viewProduct(images, p))
	}
	return out
}
