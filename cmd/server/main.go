package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/sentinelproxy/sentinel/internal/api"
	"github.com/sentinelproxy/sentinel/internal/app"
	"github.com/sentinelproxy/sentinel/internal/config"
	"github.com/sentinelproxy/sentinel/internal/logger"
	"github.com/sentinelproxy/sentinel/internal/metrics"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load("")
	if err != nil {
		fmt.Printf("failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.Initialize(cfg.Logging)
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Cold-start ordering: connect stores -> cold cache load -> start
	// catalogue sync -> start cache-refresh -> listen.
	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal("failed to initialize application", zap.Error(err))
	}

	go a.Catalogue.Run(ctx, cfg.Catalogue.StartupDelay, cfg.Catalogue.SyncInterval)
	go a.PriceCache.Run(ctx, time.Hour)
	go reportGaugePeriodically(ctx, a)

	router := api.NewRouter(a, cfg.CORS)
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("sentinel server starting", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server failed to start", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulShutdown)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	log.Info("shutdown complete")
}

// reportGaugePeriodically keeps the running-cost and catalogue-staleness
// gauges fresh for scraping by sampling both every five seconds, so the
// catalogue age is read on a consistent cadence rather than per /metrics hit.
func reportGaugePeriodically(ctx context.Context, a *app.App) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			metrics.RunningCost.Set(a.Budget.Current())
			if last := a.Catalogue.LastSyncUnix(); last > 0 {
				metrics.CatalogueSyncAgeSeconds.Set(time.Since(time.Unix(last, 0)).Seconds())
			}
		}
	}
}
