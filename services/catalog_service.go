package services

import (
	"context"
	"fmt"
	"strconv"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/yeremiapane/diner-app/docstore"
	"github.com/yeremiapane/diner-app/metrics"
	"github.com/yeremiapane/diner-app/models"
)

// RatedMenuItem is a menu item merged with its rating aggregate. Items with no
// aggregate, or whose aggregate could not be read, carry zeros and
// HasRating=false.
type RatedMenuItem struct {
	models.MenuItem
	ReviewCount int64   `json:"review_count"`
	TotalRating int64   `json:"total_rating"`
	AvgRating   float64 `json:"avg_rating"`
	HasRating   bool    `json:"has_rating"`
}

type CatalogService struct {
	DB    *gorm.DB
	Stats docstore.StatsStore
	Log   logrus.FieldLogger
}

func NewCatalogService(db *gorm.DB, stats docstore.StatsStore, log logrus.FieldLogger) *CatalogService {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &CatalogService{DB: db, Stats: stats, Log: log}
}

// Items returns menu items by ascending id. limit <= 0 means all.
func (cs *CatalogService) Items(ctx context.Context, limit int) ([]models.MenuItem, error) {
	q := cs.DB.WithContext(ctx).Order("id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var items []models.MenuItem
	if err := q.Find(&items).Error; err != nil {
		return nil, fmt.Errorf("list menu items: %w", err)
	}
	return items, nil
}

// RatedItems merges menu items with their aggregates. A failing stats store
// degrades to "no rating yet"; only relational errors are returned.
func (cs *CatalogService) RatedItems(ctx context.Context, limit int) ([]RatedMenuItem, error) {
	items, err := cs.Items(ctx, limit)
	if err != nil {
		return nil, err
	}

	keys := make([]string, len(items))
	for i, it := range items {
		keys[i] = strconv.FormatUint(uint64(it.ID), 10)
	}

	stats := map[string]models.ItemStats{}
	if cs.Stats != nil && len(keys) > 0 {
		got, err := cs.Stats.ListItemStats(ctx, keys)
		if err != nil {
			metrics.BestEffortFailures.WithLabelValues("stats_read").Inc()
			cs.Log.WithError(err).Warn("rating stats unavailable, showing menu without ratings")
		} else {
			stats = got
		}
	}

	rated := make([]RatedMenuItem, len(items))
	for i, it := range items {
		rated[i] = RatedMenuItem{MenuItem: it}
		if s, ok := stats[keys[i]]; ok && s.ReviewCount > 0 {
			rated[i].ReviewCount = s.ReviewCount
			rated[i].TotalRating = s.TotalRating
			rated[i].AvgRating = s.AvgRating
			rated[i].HasRating = true
		}
	}
	return rated, nil
}
