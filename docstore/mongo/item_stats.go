package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/yeremiapane/diner-app/docstore"
	"github.com/yeremiapane/diner-app/models"
)

type ItemStatsRepository struct {
	collection *mongo.Collection
	timeout    time.Duration
}

func NewItemStatsRepository(db *mongo.Database, timeout time.Duration) *ItemStatsRepository {
	return &ItemStatsRepository{
		collection: db.Collection(itemStatsCollection),
		timeout:    timeout,
	}
}

func (r *ItemStatsRepository) GetItemStats(ctx context.Context, itemID string) (*models.ItemStats, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var st models.ItemStats
	err := r.collection.FindOne(ctx, bson.M{"_id": itemID}).Decode(&st)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, docstore.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get item stats %s: %w", itemID, err)
	}
	return &st, nil
}

func (r *ItemStatsRepository) ListItemStats(ctx context.Context, itemIDs []string) (map[string]models.ItemStats, error) {
	out := make(map[string]models.ItemStats, len(itemIDs))
	if len(itemIDs) == 0 {
		return out, nil
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	cursor, err := r.collection.Find(ctx, bson.M{"_id": bson.M{"$in": itemIDs}})
	if err != nil {
		return nil, fmt.Errorf("failed to list item stats: %w", err)
	}
	defer cursor.Close(ctx)

	var stats []models.ItemStats
	if err := cursor.All(ctx, &stats); err != nil {
		return nil, fmt.Errorf("failed to decode item stats: %w", err)
	}
	for _, st := range stats {
		out[st.ItemID] = st
	}
	return out, nil
}

// SwapItemStats is a conditional $set: unrelated fields on the document are
// merged, not replaced. The first write for an item is an upsert guarded by the
// absence of a version field, so a concurrent first write loses on the _id
// unique index.
func (r *ItemStatsRepository) SwapItemStats(ctx context.Context, next models.ItemStats, expectedVersion int64) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	update := bson.M{"$set": bson.M{
		"review_count": next.ReviewCount,
		"total_rating": next.TotalRating,
		"avg_rating":   next.AvgRating,
		"updated_at":   next.UpdatedAt,
		"version":      next.Version,
	}}

	if expectedVersion == 0 {
		filter := bson.M{"_id": next.ItemID, "version": bson.M{"$exists": false}}
		_, err := r.collection.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
		if mongo.IsDuplicateKeyError(err) {
			return docstore.ErrConflict
		}
		if err != nil {
			return fmt.Errorf("failed to create item stats %s: %w", next.ItemID, err)
		}
		return nil
	}

	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": next.ItemID, "version": expectedVersion}, update)
	if err != nil {
		return fmt.Errorf("failed to update item stats %s: %w", next.ItemID, err)
	}
	if res.MatchedCount == 0 {
		return docstore.ErrConflict
	}
	return nil
}
