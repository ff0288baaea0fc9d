package di

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"MT5Stream/internal/domain/repository"
	"MT5Stream/internal/handler/api"
	mid "MT5Stream/internal/middleware"
	internalrepo "MT5Stream/internal/repository"
	"MT5Stream/internal/service/stream"
	"MT5Stream/internal/usecase"
	pkgcache "MT5Stream/pkg/cache"
	"MT5Stream/pkg/config"
	xhttp "MT5Stream/pkg/http"
	pkgkafka "MT5Stream/pkg/kafka"
	"MT5Stream/pkg/logger"
	"MT5Stream/pkg/metrics"
	"MT5Stream/pkg/server"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*logger.Logger, error) {
	l, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l.With(logger.String("env", cfg.Environment)), nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

func ProvideTickStore() repository.TickStore {
	return internalrepo.NewLatestTickStore()
}

func ProvideSubscriberRegistry() repository.SubscriberRegistry {
	return internalrepo.NewSubscriberRegistry()
}

// ProvideRedisCache connects to Redis when the mirror is enabled. It
// returns nil otherwise.
func ProvideRedisCache(cfg *config.Config) (*pkgcache.RedisCache, error) {
	if !cfg.Redis.Enabled {
		return nil, nil
	}
	c, err := pkgcache.NewRedisCache(
		pkgcache.WithRedisHost(cfg.Redis.Host),
		pkgcache.WithRedisPort(cfg.Redis.Port),
		pkgcache.WithRedisPassword(cfg.Redis.Password),
		pkgcache.WithRedisDB(cfg.Redis.DB),
		pkgcache.WithRedisPrefix(cfg.Redis.Prefix),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	return c, nil
}

// ProvideKafkaProducer creates a Kafka producer when a publish topic is
// configured. It returns nil otherwise.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.KafkaPublishEnabled() {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.WriteTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideTickSinks collects the enabled mirror sinks.
func ProvideTickSinks(cfg *config.Config, redis *pkgcache.RedisCache, producer *pkgkafka.Producer) []repository.TickSink {
	var sinks []repository.TickSink
	if redis != nil {
		sinks = append(sinks, internalrepo.NewRedisTickMirror(redis, cfg.Redis.TTL))
	}
	if producer != nil {
		sinks = append(sinks, internalrepo.NewKafkaTickPublisher(producer, cfg.Kafka.Topic))
	}
	return sinks
}

// ProvideMirrorPipeline builds the async pipeline in front of the sinks.
func ProvideMirrorPipeline(
	cfg *config.Config,
	m repository.Metrics,
	l *logger.Logger,
	sinks []repository.TickSink,
) *mid.MirrorPipeline {
	return mid.NewMirrorPipeline(m, sinks,
		mid.WithBufferSize(cfg.Stream.MirrorBuffer),
		mid.WithSinkTimeout(cfg.Kafka.Producer.WriteTimeout),
		mid.WithLogger(l),
	)
}

// ProvideBroadcaster creates the broadcaster use case.
func ProvideBroadcaster(
	cfg *config.Config,
	store repository.TickStore,
	registry repository.SubscriberRegistry,
	m repository.Metrics,
	l *logger.Logger,
	pipe *mid.MirrorPipeline,
) *usecase.Broadcaster {
	return usecase.NewBroadcaster(store, registry, m, l,
		usecase.WithMirror(pipe),
		usecase.WithSubscriberQueue(cfg.Stream.SubscriberQueue),
	)
}

// ProvideKafkaConsumer creates a Kafka consumer when an ingest topic is
// configured. It returns nil otherwise.
func ProvideKafkaConsumer(cfg *config.Config, l *logger.Logger) (*pkgkafka.Consumer, error) {
	if !cfg.KafkaIngestEnabled() {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(l,
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

// ProvideKafkaTicksHandler creates the handler for the ingest topic.
func ProvideKafkaTicksHandler(cfg *config.Config, bc *usecase.Broadcaster, l *logger.Logger) *usecase.KafkaTicksHandler {
	return usecase.NewKafkaTicksHandler(cfg.Kafka.IngestTopic, bc, l)
}

// ProvideHTTPServer creates the Echo server with all routes.
func ProvideHTTPServer(cfg *config.Config, l *logger.Logger, bc *usecase.Broadcaster) *xhttp.Server {
	handlers := xhttp.Handlers{
		api.NewTicksEchoHandler(l, bc, cfg.Server.WebhookAlias),
		api.NewStreamHandler(l, bc,
			stream.WithWriteWait(cfg.Stream.WriteWait),
			stream.WithPongWait(cfg.Stream.PongWait),
			stream.WithPingPeriod(cfg.Stream.PingPeriod),
			stream.WithMaxMessageSize(cfg.Stream.MaxMessageSize),
		),
	}

	metricsPath := ""
	if cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Path
	}
	return xhttp.NewServer(handlers, l,
		xhttp.WithHost(cfg.Server.Host),
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithCORS(cfg.Server.CORS),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithBodyLimit(cfg.Server.BodyLimit),
		xhttp.WithMetrics(metricsPath, prometheus.DefaultRegisterer, prometheus.DefaultGatherer),
	)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *logger.Logger,
	httpServer *xhttp.Server,
	pipe *mid.MirrorPipeline,
	consumer *pkgkafka.Consumer,
	kh *usecase.KafkaTicksHandler,
	sinks []repository.TickSink,
) *server.App {
	app := server.New(cfg, l, httpServer, pipe, sinks)
	if consumer != nil {
		app.SetConsumer(consumer, kh)
	}
	return app
}
