package cache

import (
	"context"
	"errors"
	"time"
)

var (
	ErrCacheMiss = errors.New("cache: key not found")
)

// Service defines the key-value and pub/sub operations the mirror needs.
type Service interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Get(ctx context.Context, key string, dest interface{}) error
	Delete(ctx context.Context, keys ...string) error
	Exists(ctx context.Context, keys ...string) (bool, error)
	Publish(ctx context.Context, channel string, message interface{}) error
	SetAndPublish(ctx context.Context, key, channel string, value interface{}, expiration time.Duration) error
	Close() error
}
