package ports

import (
	"context"

	"github.com/samirrijal/surveyplot/internal/core/domain"
)

// EventPublisher publishes domain events to a message broker.
type EventPublisher interface {
	PublishPlotSaved(ctx context.Context, event *domain.PlotEvent) error
	PublishPlotDeleted(ctx context.Context, event *domain.PlotEvent) error
	PublishImportRequested(ctx context.Context, req *domain.ImportRequest) error
	PublishImportCompleted(ctx context.Context, event *domain.ImportEvent) error
}

// EventSubscriber subscribes to domain events from a message broker.
type EventSubscriber interface {
	SubscribeImportRequests(ctx context.Context, handler func(ctx context.Context, req *domain.ImportRequest) error) error
}

// CacheService provides read-through caching.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
}
