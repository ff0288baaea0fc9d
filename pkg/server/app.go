package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"MT5Stream/internal/domain/repository"
	mid "MT5Stream/internal/middleware"
	"MT5Stream/internal/usecase"
	"MT5Stream/pkg/config"
	xhttp "MT5Stream/pkg/http"
	pkgkafka "MT5Stream/pkg/kafka"
	applogger "MT5Stream/pkg/logger"
)

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	log        *applogger.Logger
	httpServer *xhttp.Server
	pipe       *mid.MirrorPipeline
	sinks      []repository.TickSink
	consumer   *pkgkafka.Consumer
	kh         *usecase.KafkaTicksHandler
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	log *applogger.Logger,
	httpServer *xhttp.Server,
	pipe *mid.MirrorPipeline,
	sinks []repository.TickSink,
) *App {
	return &App{
		cfg:        cfg,
		log:        log,
		httpServer: httpServer,
		pipe:       pipe,
		sinks:      sinks,
	}
}

// SetConsumer enables Kafka ingestion through kh.
func (a *App) SetConsumer(consumer *pkgkafka.Consumer, kh *usecase.KafkaTicksHandler) {
	a.consumer = consumer
	a.kh = kh
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.RunContext(ctx)
}

// RunContext starts the application and blocks until ctx is done or the
// HTTP server fails.
func (a *App) RunContext(ctx context.Context) error {
	bg, cancel := context.WithCancel(context.WithoutCancel(ctx))
	defer cancel()

	a.pipe.Start(bg)
	if sinks := a.pipe.Sinks(); len(sinks) > 0 {
		a.log.Info("mirror pipeline started", applogger.Strings("sinks", sinks))
	}

	// Start consumer if configured
	if a.consumer != nil && a.kh != nil {
		a.consumer.RegisterHandler(a.kh)
		if err := a.consumer.Start(bg); err != nil {
			a.log.Error("kafka consumer error", applogger.Error(err))
			return err
		}
		a.log.Info("kafka consumer started", applogger.String("topic", a.kh.Topic()))
	}

	// Start HTTP server
	errCh := a.httpServer.Start()

	var runErr error
	select {
	case <-ctx.Done():
		a.log.Info("shutdown signal received")
	case err, ok := <-errCh:
		if ok && err != nil {
			runErr = err
		}
	}

	a.shutdown(bg)
	return runErr
}

// shutdown stops intake first, then drains the mirror and closes clients.
func (a *App) shutdown(ctx context.Context) {
	a.log.Info("shutting down...")

	if err := a.httpServer.Stop(ctx); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
	}

	// Stop consumer
	if a.consumer != nil {
		stopCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
		if err := a.consumer.Stop(stopCtx); err != nil {
			a.log.Warn("kafka consumer stop error", applogger.Error(err))
		}
		cancel()
	}

	a.pipe.Stop()

	for _, s := range a.sinks {
		if err := s.Close(); err != nil {
			a.log.Warn("sink close error", applogger.String("sink", s.Name()), applogger.Error(err))
		}
	}

	a.log.Info("shutdown complete")
}
