package ports

import (
	"context"
)

// DatasetSubscriber delivers notifications that the external dataset changed.
type DatasetSubscriber interface {
	SubscribeDatasetUpdates(ctx context.Context, handler func(ctx context.Context, version string) error) error
}

// CacheService provides read-through caching.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
}
