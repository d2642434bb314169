package main

import (
	"context"
	"time"

	"ohlc-streamer/src/config"
	datasource "ohlc-streamer/src/data_source"
	"ohlc-streamer/src/data_source/file"
	"ohlc-streamer/src/engine"
	"ohlc-streamer/src/helpers"
	"ohlc-streamer/src/interfaces"
	"ohlc-streamer/src/logger"
	"ohlc-streamer/src/models"
	"ohlc-streamer/src/storage"
	"ohlc-streamer/src/utils"
)

// -----------------------------------------------------------------------------

// setupDatabase opens the bar journal, or returns nil when it is disabled
func setupDatabase(ctx context.Context, config *models.MConfig, appLogger *logger.Logger) interfaces.IBarStore {
	store, err := storage.NewBarStore(config, appLogger)
	if err != nil {
		appLogger.Critical("Failed to init db: %v", err)
	}
	if store == nil {
		appLogger.Info("Bar journal disabled")
		return nil
	}

	err = helpers.RetryWithBackoff(ctx, appLogger, "database initialization", 3, time.Second, store.Initialize)
	if err != nil {
		appLogger.Critical("Failed to migrate db: %v", err)
	}
	return store
}

// -----------------------------------------------------------------------------

// setupEngine builds the aggregation engine and its optional heartbeat
func setupEngine(conf *config.Config, appLogger *logger.Logger) *engine.Engine {
	engineLogger := appLogger.Named("Engine")
	eng, err := engine.NewEngine(conf.MConfig, engineLogger)
	if err != nil {
		appLogger.Critical("Failed to init engine: %v", err)
	}

	if conf.Engine.Heartbeat {
		scheduler := utils.NewMarketScheduler(conf.DataSource.Symbols, appLogger.Named("MarketScheduler"))
		eng.SetHeartbeat(engine.NewHeartbeat(scheduler, conf.TimestampUnit()))
		appLogger.Info("Heartbeat enabled for %d symbols", len(conf.DataSource.Symbols))
	}
	return eng
}

// -----------------------------------------------------------------------------

// setupDataSources wraps the configured trade file in a manager
func setupDataSources(config *models.MConfig, appLogger *logger.Logger) *datasource.MultiSourceManager {
	appLogger.Info("Initializing data sources...")

	src := file.NewSource(config.DataSource, appLogger.Named("Source"))
	appLogger.Info("Added source: %s (%s)", src.Name(), config.DataSource.Path)

	return datasource.NewMultiSourceManager([]interfaces.ITradeSource{src}, appLogger.Named("Sources"))
}
