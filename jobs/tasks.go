package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/meridian-wms/meridian-wms/internal/catalog"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskAvailabilityWarmup pre-fills the availability cache for the
	// active catalogue.
	TaskAvailabilityWarmup = "stock:warmup"
	// TaskIdempotencyCleanup prunes expired idempotency keys.
	TaskIdempotencyCleanup = "idempotency:cleanup"
)

// WarmupPayload bounds how much of the catalogue a warmup run touches.
type WarmupPayload struct {
	Limit int `json:"limit"`
}

// NewAvailabilityWarmupTask constructs an Asynq task.
func NewAvailabilityWarmupTask(payload WarmupPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAvailabilityWarmup, data), nil
}

// CleanupPayload carries the retention window for idempotency keys.
type CleanupPayload struct {
	RetentionHours int `json:"retention_hours"`
}

// NewIdempotencyCleanupTask constructs an Asynq task.
func NewIdempotencyCleanupTask(payload CleanupPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIdempotencyCleanup, data), nil
}

// CatalogPort lists products whose availability should stay warm.
type CatalogPort interface {
	List(ctx context.Context, filter catalog.Filter) ([]catalog.Product, int, error)
}

// StockPort reads availability, warming the cache as a side effect.
type StockPort interface {
	Available(ctx context.Context, sku string) (float64, error)
}

// HandleAvailabilityWarmup builds the handler for TaskAvailabilityWarmup.
func HandleAvailabilityWarmup(products CatalogPort, stockPort StockPort, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload WarmupPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		active := true
		list, _, err := products.List(ctx, catalog.Filter{Active: &active, Limit: payload.Limit})
		if err != nil {
			return err
		}
		for _, product := range list {
			if _, err := stockPort.Available(ctx, product.SKU); err != nil {
				logger.Warn("warmup availability", slog.String("sku", product.SKU), slog.Any("error", err))
			}
		}
		logger.Info("availability warmup done", slog.Int("products", len(list)))
		return nil
	}
}

// IdempotencyPort prunes stored keys past their retention window.
type IdempotencyPort interface {
	Cleanup(ctx context.Context, olderThan time.Duration) error
}

// HandleIdempotencyCleanup builds the handler for TaskIdempotencyCleanup.
func HandleIdempotencyCleanup(store IdempotencyPort, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload CleanupPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		retention := time.Duration(payload.RetentionHours) * time.Hour
		if retention <= 0 {
			retention = 7 * 24 * time.Hour
		}
		if err := store.Cleanup(ctx, retention); err != nil {
			return err
		}
		logger.Info("idempotency cleanup done", slog.Duration("retention", retention))
		return nil
	}
}
