package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yeremiapane/diner-app/docstore"
	"github.com/yeremiapane/diner-app/metrics"
	"github.com/yeremiapane/diner-app/models"
)

// RatingUpdater folds one rating into an item's aggregate. Implemented in
// process by RatingAggregator and over HTTP by StatsClient.
type RatingUpdater interface {
	UpdateRating(ctx context.Context, itemID, rating int) error
}

// RatingAggregator performs the read-modify-write on a single aggregate
// document with optimistic concurrency. Writers of the same item retry on
// version conflicts; different items never share state.
type RatingAggregator struct {
	Stats       docstore.StatsStore
	MaxAttempts int
	Backoff     time.Duration
	Log         logrus.FieldLogger
	Now         func() time.Time
}

func NewRatingAggregator(stats docstore.StatsStore, maxAttempts int, log logrus.FieldLogger) *RatingAggregator {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &RatingAggregator{
		Stats:       stats,
		MaxAttempts: maxAttempts,
		Backoff:     5 * time.Millisecond,
		Log:         log,
		Now:         time.Now,
	}
}

func (ra *RatingAggregator) UpdateRating(ctx context.Context, itemID, rating int) error {
	_, err := ra.Apply(ctx, itemID, rating)
	return err
}

// Apply returns the aggregate as written. Ratings outside [1,5] are rejected;
// clamping is the submitter's job.
func (ra *RatingAggregator) Apply(ctx context.Context, itemID, rating int) (models.ItemStats, error) {
	if rating < models.MinRating || rating > models.MaxRating {
		return models.ItemStats{}, ErrInvalidRating
	}

	key := strconv.Itoa(itemID)
	log := ra.Log.WithField("item_id", key)

	for attempt := 1; attempt <= ra.MaxAttempts; attempt++ {
		current, err := ra.Stats.GetItemStats(ctx, key)
		switch {
		case errors.Is(err, docstore.ErrNotFound):
			current = &models.ItemStats{ItemID: key}
		case err != nil:
			metrics.RatingUpdates.WithLabelValues("error").Inc()
			return models.ItemStats{}, fmt.Errorf("read aggregate for item %s: %w", key, err)
		}

		next := current.Fold(rating, ra.Now().UTC())
		next.ItemID = key

		err = ra.Stats.SwapItemStats(ctx, next, current.Version)
		if err == nil {
			metrics.RatingUpdates.WithLabelValues("ok").Inc()
			return next, nil
		}
		if !errors.Is(err, docstore.ErrConflict) {
			metrics.RatingUpdates.WithLabelValues("error").Inc()
			return models.ItemStats{}, fmt.Errorf("write aggregate for item %s: %w", key, err)
		}

		metrics.RatingUpdateConflicts.Inc()
		log.WithField("attempt", attempt).Debug("aggregate version conflict, retrying")

		if attempt < ra.MaxAttempts {
			select {
			case <-ctx.Done():
				metrics.RatingUpdates.WithLabelValues("error").Inc()
				return models.ItemStats{}, ctx.Err()
			case <-time.After(ra.Backoff * time.Duration(attempt)):
			}
		}
	}

	metrics.RatingUpdates.WithLabelValues("contended").Inc()
	return models.ItemStats{}, ErrAggregateContention
}
