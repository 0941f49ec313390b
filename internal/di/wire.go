//go:build wireinject
// +build wireinject

package di

import (
	"MarketSignal/pkg/config"
	"MarketSignal/pkg/server"

	"github.com/google/wire"
)

var infraSet = wire.NewSet(
	ProvideLogger,
	ProvideMetrics,
	ProvideClickHouseClient,
	ProvideRedis,
	ProvideMarketData,
	ProvideSnapshotStore,
	ProvideModelStore,
)

var coreSet = wire.NewSet(
	ProvideTrainer,
	ProvideAiService,
	ProvideBacktest,
	ProvideModelTraining,
	ProvideOutcomeLabeler,
)

// InitializeApp wires the serve command.
func InitializeApp(cfg *config.Config) (*server.App, func(), error) {
	wire.Build(
		infraSet,
		coreSet,
		ProvideResponseCache,
		ProvideSignalPipeline,
		ProvideHub,
		ProvideFeatureBuilder,
		ProvideEngine,
		ProvideAnalyticsUseCase,
		ProvideSnapshotRecorder,
		ProvideKafkaConsumer,
		ProvideHealthChecks,
		ProvideAPIHandler,
		ProvideLimiter,
		ProvideHTTPServer,
		ProvideApp,
	)
	return nil, nil, nil
}

// InitializeServices wires the one-shot train, backtest and label commands.
func InitializeServices(cfg *config.Config) (*Services, func(), error) {
	wire.Build(
		infraSet,
		coreSet,
		ProvideServices,
	)
	return nil, nil, nil
}
