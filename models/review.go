package models

import "time"

const (
	MinRating = 1
	MaxRating = 5
)

// Review is an append-only document in the "reviews" collection.
type Review struct {
	ID        string    `bson:"_id" json:"id"`
	Username  string    `bson:"username" json:"username"`
	ItemID    int       `bson:"item_id" json:"item_id"`
	Rating    int       `bson:"rating" json:"rating"`
	Comment   string    `bson:"comment" json:"comment"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}

// ClampRating coerces any submitted rating into [MinRating, MaxRating].
func ClampRating(r int) int {
	if r < MinRating {
		return MinRating
	}
	if r > MaxRating {
		return MaxRating
	}
	return r
}
