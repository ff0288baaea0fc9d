//go:build wireinject
// +build wireinject

package di

import (
	"MT5Stream/pkg/config"
	"MT5Stream/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,

		// Core state
		ProvideTickStore,
		ProvideSubscriberRegistry,

		// Infrastructure clients
		ProvideRedisCache,
		ProvideKafkaProducer,
		ProvideKafkaConsumer,

		// Mirror sinks
		ProvideTickSinks,
		ProvideMirrorPipeline,

		// Use cases
		ProvideBroadcaster,
		ProvideKafkaTicksHandler,

		// Transport
		ProvideHTTPServer,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
