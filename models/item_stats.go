package models

import (
	"math"
	"time"
)

// ItemStats is the rolling rating aggregate for one menu item, keyed by the
// item id rendered as a string. Version backs optimistic concurrency and is
// bumped on every successful write.
type ItemStats struct {
	ItemID      string    `bson:"_id" json:"item_id"`
	ReviewCount int64     `bson:"review_count" json:"review_count"`
	TotalRating int64     `bson:"total_rating" json:"total_rating"`
	AvgRating   float64   `bson:"avg_rating" json:"avg_rating"`
	UpdatedAt   time.Time `bson:"updated_at" json:"updated_at"`
	Version     int64     `bson:"version" json:"-"`
}

// Fold returns the aggregate with one more rating applied.
func (s ItemStats) Fold(rating int, now time.Time) ItemStats {
	next := s
	next.ReviewCount++
	next.TotalRating += int64(rating)
	next.AvgRating = RoundAverage(next.TotalRating, next.ReviewCount)
	next.UpdatedAt = now
	next.Version = s.Version + 1
	return next
}

// RoundAverage is total/count rounded to 3 decimal places (0 for an empty aggregate).
func RoundAverage(total, count int64) float64 {
	if count == 0 {
		return 0
	}
	return math.Round(float64(total)/float64(count)*1000) / 1000
}
