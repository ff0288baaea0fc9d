package repository

import (
	"context"
	"time"

	"MT5Stream/internal/domain/models"
	"MT5Stream/internal/domain/repository"
	pkgcache "MT5Stream/pkg/cache"
)

// MessagePublisher is the part of the Kafka producer the publisher needs.
type MessagePublisher interface {
	Publish(ctx context.Context, topic string, key []byte, value interface{}) error
	Close() error
}

// KafkaTickPublisher writes every accepted tick to a topic, keyed by symbol
// so ticks of one symbol stay ordered within a partition.
type KafkaTickPublisher struct {
	producer MessagePublisher
	topic    string
}

// NewKafkaTickPublisher creates Kafka tick sink.
func NewKafkaTickPublisher(producer MessagePublisher, topic string) *KafkaTickPublisher {
	return &KafkaTickPublisher{producer: producer, topic: topic}
}

func (p *KafkaTickPublisher) Name() string { return "kafka" }

func (p *KafkaTickPublisher) Mirror(ctx context.Context, t models.Tick, payload []byte) error {
	return p.producer.Publish(ctx, p.topic, []byte(t.Symbol), payload)
}

func (p *KafkaTickPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

// Keys used by RedisTickMirror, relative to the cache prefix.
const (
	LatestTickKey   = "latest"
	TickChannelName = "ticks"
)

// RedisTickMirror keeps a copy of the latest tick in Redis and publishes
// every tick on a channel. The copy is write-only; the service never reads
// it back.
type RedisTickMirror struct {
	cache pkgcache.Service
	ttl   time.Duration
}

// NewRedisTickMirror creates Redis tick sink. A zero ttl keeps the key
// until it is overwritten.
func NewRedisTickMirror(cache pkgcache.Service, ttl time.Duration) *RedisTickMirror {
	return &RedisTickMirror{cache: cache, ttl: ttl}
}

func (m *RedisTickMirror) Name() string { return "redis" }

func (m *RedisTickMirror) Mirror(ctx context.Context, _ models.Tick, payload []byte) error {
	return m.cache.SetAndPublish(ctx, LatestTickKey, TickChannelName, payload, m.ttl)
}

func (m *RedisTickMirror) Close() error {
	if m.cache != nil {
		return m.cache.Close()
	}
	return nil
}

var (
	_ repository.TickSink = (*KafkaTickPublisher)(nil)
	_ repository.TickSink = (*RedisTickMirror)(nil)
)
