// Package docstore defines the document side of the application: reviews,
// per-item rating aggregates and the audit log.
package docstore

import (
	"context"
	"errors"

	"github.com/yeremiapane/diner-app/models"
)

var (
	ErrNotFound = errors.New("document not found")
	// ErrConflict is returned by SwapItemStats when the stored version no
	// longer matches the expected one.
	ErrConflict = errors.New("document version conflict")
)

type ReviewStore interface {
	AddReview(ctx context.Context, review *models.Review) error
	// RecentReviews returns the newest reviews across all items, newest first.
	RecentReviews(ctx context.Context, limit int) ([]models.Review, error)
	// ReviewsForItem returns the newest reviews of one item, newest first.
	ReviewsForItem(ctx context.Context, itemID int, limit int) ([]models.Review, error)
}

type StatsStore interface {
	GetItemStats(ctx context.Context, itemID string) (*models.ItemStats, error)
	ListItemStats(ctx context.Context, itemIDs []string) (map[string]models.ItemStats, error)
	// SwapItemStats stores next only if the stored version equals expectedVersion
	// (0 meaning no aggregate exists yet). Fields not carried by ItemStats are
	// left untouched.
	SwapItemStats(ctx context.Context, next models.ItemStats, expectedVersion int64) error
}

type AuditStore interface {
	AppendAudit(ctx context.Context, entry *models.AuditLog) error
	RecentAudit(ctx context.Context, limit int) ([]models.AuditLog, error)
}

type Store interface {
	ReviewStore
	StatsStore
	AuditStore
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}
