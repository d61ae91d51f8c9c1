// Command reviewexport serves the review export function. Exports are also
// archived to S3 when EXPORT_BUCKET is set.
package main

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/yeremiapane/diner-app/archive"
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
	log := utils.InitLogger(cfg.Log.Level, cfg.Log.Format).WithField("function", "reviewexport")

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

	exporter := services.NewReviewExporter(store, nil, cfg.Export.Prefix, log)
	s3, err := archive.FromConfig(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to configure export archive: %v", err)
	}
	if s3 != nil {
		exporter.Archiver = s3
		log.WithField("bucket", cfg.Export.Bucket).Info("archiving exports")
	}

	if err := functions.Serve("/", cfg.HTTP.Port, functions.ExportHandler(exporter, token, log), log); err != nil {
		log.Fatalf("reviewexport: %v", err)
	}
}
