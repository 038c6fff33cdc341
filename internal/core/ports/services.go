package ports

import (
	"context"

	"github.com/samirrijal/routemap/internal/core/domain"
)

// EventPublisher publishes overlay command batches to a message broker.
type EventPublisher interface {
	PublishCommands(ctx context.Context, batch *domain.CommandBatch) error
	PublishSelection(ctx context.Context, event *domain.SelectionEvent) error
}

// EventSubscriber subscribes to selection changes from a message broker.
type EventSubscriber interface {
	SubscribeSelections(ctx context.Context, handler func(ctx context.Context, event *domain.SelectionEvent) error) error
}

// CacheService provides read-through caching.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
}

// BatchCache is implemented by caches that can read many keys in one round trip.
// Missing keys are absent from the result.
type BatchCache interface {
	CacheService
	GetMany(ctx context.Context, keys []string) (map[string][]byte, error)
}

// CoordinateSource fetches the raw coordinate payload of one entity.
type CoordinateSource interface {
	FetchPayload(ctx context.Context, channel domain.Channel, fileID string) ([]byte, error)
}
