// internal/core/ports/cache.go
package ports

import (
	"context"
	"time"

	"github.com/ammerola/erp-admin/internal/core/domain"
)

// CacheRepository defines the interface for cache operations
type CacheRepository interface {
	Set(ctx context.Context, key string, value interface{}) error
	SetWithTTL(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Get(ctx context.Context, key string, dest interface{}) error
	Delete(ctx context.Context, keys ...string) error
	DeletePattern(ctx context.Context, pattern string) error
	Exists(ctx context.Context, keys ...string) (bool, error)

	// GetOrSet reads key into dest, calling fetch and storing its result on a miss
	GetOrSet(ctx context.Context, key string, dest interface{},
		fetch func() (interface{}, error), ttl time.Duration) error

	Increment(ctx context.Context, key string) (int64, error)
	SetNX(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error)
	TTL(ctx context.Context, key string) (time.Duration, error)
	Ping(ctx context.Context) error
}

// EventBus carries backup status changes from workers to API instances
type EventBus interface {
	PublishBackupEvent(ctx context.Context, event domain.BackupEvent) error
	// SubscribeBackupEvents delivers events until ctx is cancelled
	SubscribeBackupEvents(ctx context.Context) (<-chan domain.BackupEvent, error)
}
