package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeremiapane/diner-app/docstore"
	"github.com/yeremiapane/diner-app/docstore/memory"
	"github.com/yeremiapane/diner-app/models"
)

type downStats struct {
	docstore.StatsStore
}

func (downStats) ListItemStats(context.Context, []string) (map[string]models.ItemStats, error) {
	return nil, errors.New("connection refused")
}

func TestRatedItemsMergesStats(t *testing.T) {
	db := setupTestDB(t)
	store := memory.New()
	agg := NewRatingAggregator(store, 5, nil)
	_, err := agg.Apply(context.Background(), 2, 4)
	require.NoError(t, err)
	_, err = agg.Apply(context.Background(), 2, 5)
	require.NoError(t, err)

	rated, err := NewCatalogService(db, store, nil).RatedItems(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, rated, 4)

	assert.False(t, rated[0].HasRating)
	assert.Zero(t, rated[0].ReviewCount)

	assert.True(t, rated[1].HasRating)
	assert.Equal(t, int64(2), rated[1].ReviewCount)
	assert.Equal(t, int64(9), rated[1].TotalRating)
	assert.Equal(t, 4.5, rated[1].AvgRating)
}

func TestRatedItemsDegradesWhenStatsDown(t *testing.T) {
	db := setupTestDB(t)

	rated, err := NewCatalogService(db, downStats{}, nil).RatedItems(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, rated, 2)
	for _, r := range rated {
		assert.False(t, r.HasRating)
		assert.Zero(t, r.AvgRating)
	}
}
