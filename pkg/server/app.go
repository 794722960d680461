package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	domrepo "kisquote/internal/domain/repository"
	"kisquote/internal/usecase"
	"kisquote/pkg/config"
	xhttp "kisquote/pkg/http"
	xlogger "kisquote/pkg/logger"
)

// App ties the HTTP surface, the quote pipeline, and the backing store into
// one lifecycle: start, serve until signalled, drain, close.
type App struct {
	cfg        *config.Config
	logger     *xlogger.Logger
	handler    xhttp.Handler
	quotes     *usecase.QuoteService
	store      domrepo.PriceStore
	httpServer *xhttp.Server
}

// New assembles the application from its wired dependencies.
func New(
	cfg *config.Config,
	logger *xlogger.Logger,
	handler xhttp.Handler,
	quotes *usecase.QuoteService,
	store domrepo.PriceStore,
) *App {
	return &App{
		cfg:     cfg,
		logger:  logger,
		handler: handler,
		quotes:  quotes,
		store:   store,
	}
}

// Run starts the HTTP server and blocks until interrupted.
func (a *App) Run() error {
	a.httpServer = xhttp.NewServer(a.handler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
		xhttp.WithMetrics(a.cfg.Metrics.Enabled, a.cfg.Metrics.Path),
		xhttp.WithServerLogger(a.logger),
	)

	if err := a.httpServer.Start(); err != nil {
		a.logger.Error("http server start error", xlogger.Error(err))
		return err
	}
	a.logger.Info("server started",
		xlogger.Int("port", a.cfg.Server.Port),
		xlogger.String("store", a.cfg.Store.Type),
		xlogger.String("environment", a.cfg.Environment))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.logger.Info("shutdown signal received")
	return a.shutdown()
}

// shutdown stops accepting requests, drains pending cache writes, and
// closes the store.
func (a *App) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := a.httpServer.Stop(ctx); err != nil {
		a.logger.Error("http shutdown error", xlogger.Error(err))
	}

	a.quotes.Flush()

	if err := a.store.Close(); err != nil {
		a.logger.Warn("store close error", xlogger.Error(err))
	}

	a.logger.Info("shutdown complete")
	return nil
}
