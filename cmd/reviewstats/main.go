// Command reviewstats serves the rating aggregate update function, either on
// AWS Lambda or as a standalone HTTP service.
package main

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/yeremiapane/diner-app/config"
	"github.com/yeremiapane/diner-app/docstore/backend"
	"github.com/yeremiapane/diner-app/functions"
	"github.com/yeremiapane/diner-app/secrets"
	"github.com/yeremiapane/diner-app/services"
	"github.com/yeremiapane/diner-app/utils"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}
	log := utils.InitLogger(cfg.Log.Level, cfg.Log.Format).WithField("function", "reviewstats")

	ctx := context.Background()
	store, err := backend.Open(ctx, cfg, log)
	if err != nil {
		log.Fatalf("Failed to open document store: %v", err)
	}
	defer store.Close(context.Background())

	token, err := secrets.InternalToken(ctx, cfg.Functions, cfg.AWS)
	if err != nil {
		log.Fatalf("Failed to resolve internal token: %v", err)
	}
	if token == "" {
		log.Warn("INTERNAL_TOKEN is empty; accepting unauthenticated requests")
	}

	agg := services.NewRatingAggregator(store, cfg.Aggregation.MaxAttempts, log)
	if err := functions.Serve("/", cfg.HTTP.Port, functions.StatsHandler(agg, token, log), log); err != nil {
		log.Fatalf("reviewstats: %v", err)
	}
}
