// Package backend selects the docstore implementation from configuration.
package backend

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/yeremiapane/diner-app/config"
	"github.com/yeremiapane/diner-app/docstore"
	"github.com/yeremiapane/diner-app/docstore/dynamo"
	"github.com/yeremiapane/diner-app/docstore/memory"
	"github.com/yeremiapane/diner-app/docstore/mongo"
)

func Open(ctx context.Context, cfg config.Config, log logrus.FieldLogger) (docstore.Store, error) {
	switch cfg.DocStore.Driver {
	case "memory":
		log.Warn("using in-memory document store; reviews and audit logs are not persisted")
		return memory.New(), nil

	case "mongo":
		storage, err := mongo.New(mongo.Config{
			URI:      cfg.DocStore.MongoURI,
			Database: cfg.DocStore.MongoDatabase,
			Timeout:  cfg.DocStore.Timeout,
		})
		if err != nil {
			return nil, err
		}
		if err := storage.CreateIndexes(ctx); err != nil {
			log.WithError(err).Warn("failed to create mongodb indexes")
		}
		log.Info("connected to MongoDB")
		return storage, nil

	case "dynamodb":
		awsCfg, err := config.LoadAWS(ctx, cfg.AWS)
		if err != nil {
			return nil, err
		}
		store := dynamo.NewFromConfig(awsCfg, dynamo.Config{
			TablePrefix: cfg.DocStore.TablePrefix,
			Timeout:     cfg.DocStore.Timeout,
		})
		if err := store.Ping(ctx); err != nil {
			log.WithError(err).Warn("dynamodb item_stats table not reachable yet")
		}
		return store, nil
	}

	return nil, fmt.Errorf("unsupported document store driver %q", cfg.DocStore.Driver)
}
