//go:build wireinject
// +build wireinject

package di

import (
	"kisquote/pkg/config"
	"kisquote/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,
		ProvideCalendar,

		// Persistence
		ProvideStores,
		ProvidePriceStore,

		// Provider client and token lifecycle
		ProvideKISClient,
		ProvideTokenManager,

		// Use cases
		ProvideQuoteService,

		// HTTP surface
		ProvideHandler,
		ProvideApp,
	)
	return &server.App{}, nil
}
