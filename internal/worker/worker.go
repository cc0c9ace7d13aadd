package worker

import (
	"context"

	"artisan-storefront/internal/broker"
	"artisan-storefront/internal/models"
	"artisan-storefront/internal/util"

	"go.uber.org/zap"
)

// AuditWorker tails the storefront event topic and writes every event to the log
type AuditWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	logger       *zap.Logger
}

// NewAuditWorker creates a new audit worker
func NewAuditWorker(consumer *broker.Consumer, logger *zap.Logger) *AuditWorker {
	w := &AuditWorker{
		consumer:     consumer,
		eventHandler: broker.NewEventHandler(),
		logger:       logger,
	}

	w.eventHandler.OnOrderPlaced(w.handleOrderPlaced)
	w.eventHandler.OnProductChanged(w.handleProductChanged)
	return w
}

func (w *AuditWorker) handleOrderPlaced(_ context.Context, event *models.OrderPlacedEvent) error {
	util.EventsConsumedTotal.WithLabelValues(event.EventType).Inc()
	w.logger.Info("Order placed",
		zap.String("event_id", event.EventID),
		zap.String("order_id", event.OrderID),
		zap.String("user_id", event.UserID),
		zap.String("total", event.TotalAmount.String()),
		zap.Int("items", len(event.Items)),
		zap.Time("at", event.Timestamp))
	return nil
}

func (w *AuditWorker) handleProductChanged(_ context.Context, event *models.ProductChangedEvent) error {
	util.EventsConsumedTotal.WithLabelValues(event.EventType).Inc()
	w.logger.Info("Product changed",
		zap.String("event_id", event.EventID),
		zap.String("type", event.EventType),
		zap.String("product_id", event.ProductID),
		zap.String("name", event.Name),
		zap.Int("quantity", event.Quantity),
		zap.Bool("in_stock", event.InStock),
		zap.Time("at", event.Timestamp))
	return nil
}

// Start blocks until ctx is cancelled
func (w *AuditWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting audit worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *AuditWorker) Stop() error {
	w.logger.Info("Stopping audit worker")
	return w.consumer.Close()
}
