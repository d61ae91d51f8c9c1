package functions

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/yeremiapane/diner-app/models"
	"github.com/yeremiapane/diner-app/services"
)

type statsPayload struct {
	ItemID *int `json:"item_id"`
	Rating *int `json:"rating"`
}

type statsResult struct {
	OK          bool    `json:"ok"`
	ItemID      string  `json:"item_id"`
	ReviewCount int64   `json:"review_count"`
	AvgRating   float64 `json:"avg_rating"`
}

// StatsHandler folds one rating into an item aggregate. The rating must
// already be in [1,5]; out-of-range values are refused, not clamped.
func StatsHandler(agg *services.RatingAggregator, token string, log logrus.FieldLogger) Handler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return RequireToken(token, func(ctx context.Context, req Request) Response {
		if req.Method != http.MethodPost {
			return textResponse(http.StatusMethodNotAllowed, "Method not allowed")
		}

		var p statsPayload
		if len(req.Body) > 0 {
			if err := json.Unmarshal(req.Body, &p); err != nil {
				return textResponse(http.StatusBadRequest, "Invalid JSON body")
			}
		}
		if p.ItemID == nil || p.Rating == nil {
			return textResponse(http.StatusBadRequest, "Missing item_id or rating")
		}
		if *p.Rating < models.MinRating || *p.Rating > models.MaxRating {
			return textResponse(http.StatusBadRequest, "rating must be between 1 and 5")
		}

		stats, err := agg.Apply(ctx, *p.ItemID, *p.Rating)
		switch {
		case errors.Is(err, services.ErrAggregateContention):
			log.WithField("item_id", *p.ItemID).Warn("aggregate update gave up under contention")
			return textResponse(http.StatusServiceUnavailable, "Aggregate busy, try again")
		case err != nil:
			log.WithError(err).WithField("item_id", *p.ItemID).Error("aggregate update failed")
			return textResponse(http.StatusInternalServerError, "Aggregate update failed")
		}

		return jsonResponse(http.StatusOK, statsResult{
			OK:          true,
			ItemID:      strconv.Itoa(*p.ItemID),
			ReviewCount: stats.ReviewCount,
			AvgRating:   stats.AvgRating,
		})
	})
}
