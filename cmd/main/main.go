package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"ohlc-streamer/src/config"
	"ohlc-streamer/src/hub"
	"ohlc-streamer/src/logger"
	"ohlc-streamer/src/models"
	"ohlc-streamer/src/server"
	"ohlc-streamer/src/storage"
)

const shutdownTimeout = 5 * time.Second

// -----------------------------------------------------------------------------

func main() {

	// 1. Parse command line flags
	configPath := flag.String("config", "config/default.yaml", "path to config file")
	flag.Parse()

	// 2. Load config
	conf, err := config.NewConfig(*configPath)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	// 3. Setup Logger
	appLogger := logger.NewLogger(conf.LogLevel, conf.Name)
	defer appLogger.Sync()

	// Lifecycle Management
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 4. Setup Components
	store := setupDatabase(ctx, conf.MConfig, appLogger)
	eng := setupEngine(conf, appLogger)
	multiSource := setupDataSources(conf.MConfig, appLogger)

	srv := server.NewServer(conf.MConfig, appLogger.Named("Server"))
	srv.SetStatusProvider(eng)
	if store != nil {
		srv.SetBarStore(store)
	}
	distribution := hub.NewHub(srv, conf.MConfig, appLogger.Named("Hub"))

	// 5. Pipeline channels: source -> engine -> hub (-> journal)
	trades := make(chan models.MTrade, conf.Pipeline.TradeBuffer)
	updates := make(chan models.MBarUpdate, conf.Pipeline.UpdateBuffer)

	var workers sync.WaitGroup

	if store != nil {
		bars := make(chan models.MBar, conf.Pipeline.UpdateBuffer)
		distribution.SetJournal(bars)
		journal := storage.NewJournal(store, conf.IdleTimeout(), appLogger.Named("Journal"))

		workers.Add(1)
		go func() {
			defer workers.Done()
			journal.Run(ctx, bars)
		}()
	}

	workers.Add(2)
	go func() {
		defer workers.Done()
		if err := eng.Run(ctx, trades, updates); err != nil {
			appLogger.Critical("Engine stopped: %v", err)
		}
	}()
	go func() {
		defer workers.Done()
		distribution.Run(ctx, updates)
	}()

	// 6. Start Servers
	grpcServer := startServers(srv, eng, multiSource, conf, appLogger)

	// 7. Start Sources
	var sourcesWg sync.WaitGroup
	if err := multiSource.Start(ctx, trades, &sourcesWg); err != nil {
		appLogger.Critical("Failed to start data sources: %v", err)
	}
	go func() {
		sourcesWg.Wait()
		appLogger.Info("All sources finished, closing trade channel")
		close(trades)
	}()

	appLogger.Info("Pipeline running, waiting for signal...")
	<-ctx.Done()

	// 8. Shutdown
	appLogger.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Stop(shutdownCtx); err != nil {
		appLogger.Warning("HTTP server shutdown: %v", err)
	}
	if grpcServer != nil {
		grpcServer.GracefulStop()
	}
	multiSource.Stop()

	workers.Wait()
	if store != nil {
		if err := store.Close(); err != nil {
			appLogger.Warning("Closing bar store: %v", err)
		}
	}
	appLogger.Info("Shutdown complete.")
}
