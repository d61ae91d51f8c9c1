package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/yeremiapane/diner-app/archive"
	"github.com/yeremiapane/diner-app/config"
	"github.com/yeremiapane/diner-app/database"
	"github.com/yeremiapane/diner-app/docstore/backend"
	"github.com/yeremiapane/diner-app/feed"
	"github.com/yeremiapane/diner-app/router"
	"github.com/yeremiapane/diner-app/secrets"
	"github.com/yeremiapane/diner-app/services"
	"github.com/yeremiapane/diner-app/utils"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}

	log := utils.InitLogger(cfg.Log.Level, cfg.Log.Format)
	if cfg.HTTP.GinMode == gin.ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := config.InitDB(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	if err := database.Migrate(db, log); err != nil {
		log.Fatalf("Failed to AutoMigrate: %v", err)
	}
	if err := database.Seed(db, cfg.Admin, log); err != nil {
		log.Fatalf("Failed to seed database: %v", err)
	}

	ctx := context.Background()

	store, err := backend.Open(ctx, cfg, log)
	if err != nil {
		log.Fatalf("Failed to open document store: %v", err)
	}

	token, err := secrets.InternalToken(ctx, cfg.Functions, cfg.AWS)
	if err != nil {
		log.Fatalf("Failed to resolve internal token: %v", err)
	}
	if token == "" && (cfg.Functions.StatsURL != "" || cfg.Functions.ExportURL != "") {
		log.Warn("INTERNAL_TOKEN is empty; function endpoints are not authenticated")
	}

	hub := feed.NewHub(log)
	auditor := services.NewAuditor(store, log)

	var updater services.RatingUpdater
	if cfg.Functions.StatsURL != "" {
		updater = services.NewStatsClient(cfg.Functions.StatsURL, token, cfg.Functions.Timeout)
		log.WithField("url", cfg.Functions.StatsURL).Info("rating aggregates delegated to stats function")
	} else {
		updater = services.NewRatingAggregator(store, cfg.Aggregation.MaxAttempts, log)
	}

	var exporter services.Exporter
	if cfg.Functions.ExportURL != "" {
		exporter = services.NewExportClient(cfg.Functions.ExportURL, token, cfg.Functions.Timeout)
	} else {
		local := services.NewReviewExporter(store, nil, cfg.Export.Prefix, log)
		s3, err := archive.FromConfig(ctx, cfg)
		if err != nil {
			log.WithError(err).Warn("export archiving disabled")
		} else if s3 != nil {
			local.Archiver = s3
		}
		exporter = local
	}

	reviews := services.NewReviewService(db, store, updater, auditor, cfg.Functions.Timeout, log)

	r := router.SetupRouter(router.Deps{
		Config:   cfg,
		DB:       db,
		Log:      log,
		Tokens:   utils.NewTokenIssuer(cfg.Session.JWTSecret, cfg.Session.TokenTTL),
		Auditor:  auditor,
		Catalog:  services.NewCatalogService(db, store, log),
		Checkout: services.NewCheckoutService(db, auditor, hub, log),
		Orders:   services.NewOrderService(db, cfg.Orders.StatusPolicy, auditor, hub, log),
		Reviews:  reviews,
		Exporter: exporter,
		Hub:      hub,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTP.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Infof("Listening on port %s", cfg.HTTP.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("HTTP server shutdown")
	}

	// In-flight aggregate updates get the rest of the shutdown budget.
	done := make(chan struct{})
	go func() {
		reviews.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-shutdownCtx.Done():
		log.Warn("pending rating updates abandoned at shutdown")
	}

	hub.Close()
	if err := store.Close(shutdownCtx); err != nil {
		log.WithError(err).Warn("document store close")
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
