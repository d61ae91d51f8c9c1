// Package mongo implements docstore on MongoDB.
package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/yeremiapane/diner-app/docstore"
)

const (
	reviewsCollection   = "reviews"
	itemStatsCollection = "item_stats"
	auditCollection     = "audit_logs"
)

type Config struct {
	URI      string
	Database string
	Timeout  time.Duration
}

// Storage owns the client and exposes one repository per collection.
type Storage struct {
	client   *mongo.Client
	database *mongo.Database
	config   Config

	*ReviewRepository
	*ItemStatsRepository
	*AuditLogRepository
}

var _ docstore.Store = (*Storage)(nil)

func New(cfg Config) (*Storage, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()

	clientOptions := options.Client().
		ApplyURI(cfg.URI).
		SetMaxPoolSize(20).
		SetMinPoolSize(2)

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	database := client.Database(cfg.Database)

	return &Storage{
		client:              client,
		database:            database,
		config:              cfg,
		ReviewRepository:    NewReviewRepository(database, cfg.Timeout),
		ItemStatsRepository: NewItemStatsRepository(database, cfg.Timeout),
		AuditLogRepository:  NewAuditLogRepository(database, cfg.Timeout),
	}, nil
}

func (s *Storage) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *Storage) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

// CreateIndexes covers the two review query shapes and the audit listing.
func (s *Storage) CreateIndexes(ctx context.Context) error {
	reviewIndexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "item_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "created_at", Value: -1}}},
	}
	if _, err := s.database.Collection(reviewsCollection).Indexes().CreateMany(ctx, reviewIndexes); err != nil {
		return fmt.Errorf("failed to create reviews indexes: %w", err)
	}

	auditIndexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "event", Value: 1}}},
	}
	if _, err := s.database.Collection(auditCollection).Indexes().CreateMany(ctx, auditIndexes); err != nil {
		return fmt.Errorf("failed to create audit_logs indexes: %w", err)
	}

	return nil
}
