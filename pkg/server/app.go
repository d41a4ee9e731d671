package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"CoinPulse/internal/usecase"
	"CoinPulse/pkg/config"
	xhttp "CoinPulse/pkg/http"
	pkgkafka "CoinPulse/pkg/kafka"
	applogger "CoinPulse/pkg/logger"
)

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	logger     *applogger.Logger
	httpServer *xhttp.Server
	outcomes   *usecase.OutcomeLogger
	consumer   *pkgkafka.Consumer
	ingest     pkgkafka.MessageHandler
}

// New creates a new App instance with all dependencies. consumer and ingest may be nil.
func New(
	cfg *config.Config,
	l *applogger.Logger,
	httpServer *xhttp.Server,
	outcomes *usecase.OutcomeLogger,
	consumer *pkgkafka.Consumer,
	ingest pkgkafka.MessageHandler,
) *App {
	return &App{
		cfg:        cfg,
		logger:     l,
		httpServer: httpServer,
		outcomes:   outcomes,
		consumer:   consumer,
		ingest:     ingest,
	}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.RunContext(ctx)
}

// RunContext starts the application and blocks until ctx is done.
func (a *App) RunContext(ctx context.Context) error {
	a.outcomes.Start()
	a.logger.Info("outcome logger started",
		applogger.String("backend", a.cfg.Audit.Backend),
		applogger.Int("workers", a.cfg.Audit.Workers),
		applogger.Int("queue_size", a.cfg.Audit.QueueSize),
	)

	if a.consumer != nil && a.ingest != nil {
		a.consumer.RegisterHandler(a.ingest)
		if err := a.consumer.Start(); err != nil {
			a.logger.Error("kafka consumer error", applogger.Error(err))
		} else {
			a.logger.Info("kafka consumer started", applogger.String("topic", a.ingest.Topic()))
		}
	}

	if err := a.httpServer.Start(); err != nil {
		a.logger.Error("http server start error", applogger.Error(err))
		return err
	}
	a.logger.Info("coinpulse started",
		applogger.Int("port", a.cfg.Server.Port),
		applogger.String("cache_backend", a.cfg.Cache.Backend),
		applogger.Duration("cache_ttl_ms", a.cfg.Cache.TTL),
	)

	<-ctx.Done()
	a.logger.Info("shutdown signal received")
	return a.shutdown()
}

// shutdown stops intake first, then drains queued outcomes, then stops ingestion.
func (a *App) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.httpServer.ShutdownTimeout())
	defer cancel()

	if err := a.httpServer.Stop(ctx); err != nil {
		a.logger.Error("http shutdown error", applogger.Error(err))
	}

	if err := a.outcomes.Close(ctx); err != nil {
		a.logger.Warn("outcome logger drain error",
			applogger.Int("pending", a.outcomes.Pending()),
			applogger.Error(err),
		)
	}

	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			a.logger.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}

	a.logger.Info("shutdown complete")
	return nil
}
