package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/yeremiapane/diner-app/docstore"
	"github.com/yeremiapane/diner-app/metrics"
	"github.com/yeremiapane/diner-app/models"
)

type SubmitReview struct {
	Username string
	ItemID   int
	Rating   int
	Comment  string
	IP       string
}

// ReviewService accepts reviews and lists them.
//
// A review is persisted first. The aggregate update is then dispatched
// without waiting and the audit entry is appended; neither can undo the
// review. The aggregate is therefore only eventually consistent with the
// review collection, and a failed dispatch leaves it one review behind.
type ReviewService struct {
	DB       *gorm.DB
	Reviews  docstore.ReviewStore
	Updater  RatingUpdater
	Auditor  *Auditor
	Log      logrus.FieldLogger
	Timeout  time.Duration
	Now      func() time.Time
	inflight sync.WaitGroup
}

func NewReviewService(db *gorm.DB, reviews docstore.ReviewStore, updater RatingUpdater, auditor *Auditor, timeout time.Duration, log logrus.FieldLogger) *ReviewService {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &ReviewService{
		DB:      db,
		Reviews: reviews,
		Updater: updater,
		Auditor: auditor,
		Log:     log,
		Timeout: timeout,
		Now:     time.Now,
	}
}

// Submit clamps the rating into [1,5] rather than rejecting it, so a 0 is
// stored and aggregated as 1 and a 9 as 5. Comments are stored as given.
func (rs *ReviewService) Submit(ctx context.Context, in SubmitReview) (*models.Review, error) {
	var item models.MenuItem
	if err := rs.DB.WithContext(ctx).Select("id").First(&item, in.ItemID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUnknownMenuItem
		}
		return nil, fmt.Errorf("look up menu item %d: %w", in.ItemID, err)
	}

	review := &models.Review{
		ID:        uuid.NewString(),
		Username:  in.Username,
		ItemID:    in.ItemID,
		Rating:    models.ClampRating(in.Rating),
		Comment:   in.Comment,
		CreatedAt: rs.Now().UTC(),
	}

	if err := rs.Reviews.AddReview(ctx, review); err != nil {
		return nil, fmt.Errorf("save review: %w", err)
	}
	metrics.ReviewsSubmitted.Inc()

	rs.dispatchAggregate(review.ItemID, review.Rating)

	username := in.Username
	rs.Auditor.Record(ctx, models.AuditReviewCreated, &username, in.IP, map[string]interface{}{
		"review_id": review.ID,
		"item_id":   review.ItemID,
		"rating":    review.Rating,
	})

	return review, nil
}

func (rs *ReviewService) dispatchAggregate(itemID, rating int) {
	if rs.Updater == nil {
		return
	}

	rs.inflight.Add(1)
	go func() {
		defer rs.inflight.Done()

		ctx, cancel := context.WithTimeout(context.Background(), rs.Timeout)
		defer cancel()

		if err := rs.Updater.UpdateRating(ctx, itemID, rating); err != nil {
			metrics.BestEffortFailures.WithLabelValues("aggregate").Inc()
			rs.Log.WithError(err).WithField("item_id", itemID).Warn("rating aggregate update failed")
		}
	}()
}

// Wait blocks until every dispatched aggregate update has finished.
func (rs *ReviewService) Wait() {
	rs.inflight.Wait()
}

// List returns the newest reviews, newest first, optionally for one item.
func (rs *ReviewService) List(ctx context.Context, itemID *int, limit int) ([]models.Review, error) {
	var (
		reviews []models.Review
		err     error
	)
	if itemID != nil {
		reviews, err = rs.Reviews.ReviewsForItem(ctx, *itemID, limit)
	} else {
		reviews, err = rs.Reviews.RecentReviews(ctx, limit)
	}
	if err != nil {
		return nil, err
	}

	SortReviewsNewestFirst(reviews)
	if reviews == nil {
		reviews = []models.Review{}
	}
	return reviews, nil
}

func SortReviewsNewestFirst(reviews []models.Review) {
	sort.SliceStable(reviews, func(i, j int) bool {
		return reviews[i].CreatedAt.After(reviews[j].CreatedAt)
	})
}
