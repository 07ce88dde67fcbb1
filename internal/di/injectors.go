//go:build wireinject
// +build wireinject

package di

import (
	"bakso/internal"
	"bakso/internal/controllers"
	"bakso/internal/ledger"
	"bakso/internal/providers"
	"bakso/internal/realtime"
	"bakso/internal/services"
	"bakso/internal/structures"

	wire "github.com/google/wire"
)

func InitApp(cfg *structures.CliFlags) (*internal.App, error) {

	wire.Build(
		providers.NewConfigProvider,
		providers.NewLogProvider,
		providers.NewClockProvider,
		providers.NewMetricsProvider,
		providers.NewInstrumentedCacheProvider,

		realtime.NewTransport,
		NewPingLedger,
		ledger.NewZstdCompressor,
		ledger.NewFileManager,
		ledger.NewScheduler,
		services.NewTrackerService,
		controllers.NewApiController,
		controllers.NewHealthController,
		internal.InitRoutes,
		internal.NewHandler,
		internal.NewApp,
	)

	return nil, nil
}
