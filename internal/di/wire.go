//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"

	internalrepo "TradeSynth/internal/repository"
	"TradeSynth/pkg/config"
	"TradeSynth/pkg/logger"
	"TradeSynth/pkg/server"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Observability
		ProvideLogger,
		ProvideRegistry,
		ProvideMetrics,
		ProvideProgress,

		// Simulation
		ProvideEpisodeParams,
		ProvideFlowParams,
		ProvideEpisodeSampler,
		ProvideSimulator,
		ProvideDayGenerator,

		// Pipelines
		ProvideFeatureSpecs,
		ProvidePipelineOptions,

		// Status server
		ProvideStatusHandler,
		ProvideHTTPServer,

		ProvideApp,
	)
	return &server.App{}, nil
}

// InitializeBarStore connects to ClickHouse for the export command.
func InitializeBarStore(cfg *config.Config, l *logger.Logger) (*internalrepo.CHBarStore, error) {
	wire.Build(ProvideClickHouseClient, ProvideBarStore)
	return &internalrepo.CHBarStore{}, nil
}

// InitializeTradePublisher connects to Kafka for the publish command.
func InitializeTradePublisher(cfg *config.Config) (*internalrepo.TickPublisher, error) {
	wire.Build(ProvideKafkaProducer, ProvideTradePublisher)
	return &internalrepo.TickPublisher{}, nil
}
