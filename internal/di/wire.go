//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"

	"AlphaLab/pkg/config"
	"AlphaLab/pkg/server"
)

var storeSet = wire.NewSet(
	ProvideClickHouseClient,
	ProvideTables,
	ProvideMetrics,
	ProvideStore,
	ProvideFactorLab,
	ProvidePatternSearch,
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, func(), error) {
	wire.Build(
		storeSet,
		ProvideICStore,

		// Infrastructure clients
		ProvideKafkaProducer,
		ProvideLogger,
		ProvideKafkaConsumer,
		ProvideRedis,
		ProvideCache,
		ProvideCacheLoader,
		ProvideRedisQueue,

		// Publishers
		ProvideReportPublisher,
		ProvideJobPublisher,

		// Use cases
		ProvideJobSubmitter,
		ProvideEvaluationJobHandler,
		ProvideDailyScanJob,
		ProvideRateLimiter,
		ProvideScheduler,

		// HTTP
		ProvideCacheTTL,
		ProvideFactorHandler,
		ProvidePatternHandler,
		ProvideHealthHandler,
		ProvideHTTPServer,

		ProvideApp,
	)
	return nil, nil, nil
}

// InitializeCLI wires the storage-backed use cases for one-shot commands.
func InitializeCLI(cfg *config.Config) (*CLI, func(), error) {
	wire.Build(
		storeSet,
		ProvideCLILogger,
		wire.Struct(new(CLI), "*"),
	)
	return nil, nil, nil
}
