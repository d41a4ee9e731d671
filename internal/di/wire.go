//go:build wireinject
// +build wireinject

package di

import (
	"CoinPulse/pkg/config"
	"CoinPulse/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, func(), error) {
	wire.Build(
		// Ambient
		ProvideLogger,
		ProvideMetrics,

		// Audit and cache backends
		ProvideAuditBackend,
		ProvideEntryStore,

		// Upstream and cache
		ProvidePriceSource,
		ProvideQuoteCache,

		// Use cases
		ProvideOutcomeLogger,
		ProvideQuoteService,
		ProvideDashboardAggregator,

		// Transport and application
		ProvideHTTPServer,
		ProvideApp,
	)
	return &server.App{}, nil, nil
}
