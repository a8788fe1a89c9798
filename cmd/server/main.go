package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/codyseavey/tcg-binder/internal/api"
	"github.com/codyseavey/tcg-binder/internal/config"
	"github.com/codyseavey/tcg-binder/internal/database"
	"github.com/codyseavey/tcg-binder/internal/logging"
	"github.com/codyseavey/tcg-binder/internal/services"
)

func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		logging.Sugar.Fatalf("Failed to load config: %v", err)
	}
	logging.Initialize(cfg.Log)
	defer logging.Sync()

	// Initialize database
	if err := database.Initialize(cfg.Storage.DBPath); err != nil {
		logging.Sugar.Fatalf("Failed to initialize database: %v", err)
	}

	// Initialize pricing pipeline: catalog client -> cached resolver -> throttled enricher
	priceCache, err := services.NewPriceCache(cfg.Pricing.CacheSize)
	if err != nil {
		logging.Sugar.Fatalf("Failed to create price cache: %v", err)
	}
	scryfallService := services.NewScryfallService(cfg.Pricing.ScryfallBaseURL)
	quoteService := services.NewPriceQuoteService(scryfallService, priceCache)
	enricher := services.NewPriceEnricher(quoteService, cfg.Pricing.FetchDelay())

	binderService := services.NewBinderService(database.GetDB(), enricher)
	scanStorage := services.NewScanStorage(cfg.Server.ScannedImagesDir)
	priceWorker := services.NewPriceWorker(binderService, quoteService, cfg.Pricing.RefreshEvery(), cfg.Pricing.WorkerBatchSize)

	// Create a cancellable context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start price worker in background with panic recovery
	go func() {
		for {
			func() {
				defer func() {
					if r := recover(); r != nil {
						logging.Sugar.Errorf("PANIC in price worker: %v - restarting in 30 seconds", r)
					}
				}()
				priceWorker.Start(ctx)
			}()

			select {
			case <-ctx.Done():
				return // Graceful shutdown
			case <-time.After(30 * time.Second):
				logging.Sugar.Info("Price worker restarting after panic recovery...")
			}
		}
	}()

	router := api.SetupRouter(cfg.Server.CORSOrigins, api.Services{
		Binders:     binderService,
		Quotes:      quoteService,
		Enricher:    enricher,
		PriceWorker: priceWorker,
		Scans:       scanStorage,
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	go func() {
		logging.Sugar.Infof("Starting server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Sugar.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logging.Sugar.Info("Shutting down server...")

	// Cancel the context to stop the price worker
	cancel()

	// Give outstanding requests a deadline to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Sugar.Warnf("Server forced to shutdown: %v", err)
	}

	logging.Sugar.Info("Server exited")
}
