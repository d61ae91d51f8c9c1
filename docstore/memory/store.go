// Package memory is an in-process docstore used for local development and tests.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/yeremiapane/diner-app/docstore"
	"github.com/yeremiapane/diner-app/models"
)

type Store struct {
	mu      sync.RWMutex
	reviews []models.Review
	stats   map[string]models.ItemStats
	audit   []models.AuditLog
}

var _ docstore.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		stats: make(map[string]models.ItemStats),
	}
}

func (s *Store) AddReview(_ context.Context, review *models.Review) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reviews = append(s.reviews, *review)
	return nil
}

func (s *Store) RecentReviews(_ context.Context, limit int) ([]models.Review, error) {
	s.mu.RLock()
	out := make([]models.Review, len(s.reviews))
	copy(out, s.reviews)
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) ReviewsForItem(_ context.Context, itemID int, limit int) ([]models.Review, error) {
	s.mu.RLock()
	var out []models.Review
	for _, r := range s.reviews {
		if r.ItemID == itemID {
			out = append(out, r)
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) GetItemStats(_ context.Context, itemID string) (*models.ItemStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.stats[itemID]
	if !ok {
		return nil, docstore.ErrNotFound
	}
	return &st, nil
}

func (s *Store) ListItemStats(_ context.Context, itemIDs []string) (map[string]models.ItemStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]models.ItemStats, len(itemIDs))
	for _, id := range itemIDs {
		if st, ok := s.stats[id]; ok {
			out[id] = st
		}
	}
	return out, nil
}

func (s *Store) SwapItemStats(_ context.Context, next models.ItemStats, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.stats[next.ItemID]
	if !ok && expectedVersion != 0 {
		return docstore.ErrConflict
	}
	if ok && current.Version != expectedVersion {
		return docstore.ErrConflict
	}
	s.stats[next.ItemID] = next
	return nil
}

func (s *Store) AppendAudit(_ context.Context, entry *models.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audit = append(s.audit, *entry)
	return nil
}

func (s *Store) RecentAudit(_ context.Context, limit int) ([]models.AuditLog, error) {
	s.mu.RLock()
	// reversed so entries sharing a timestamp stay newest first
	out := make([]models.AuditLog, 0, len(s.audit))
	for i := len(s.audit) - 1; i >= 0; i-- {
		out = append(out, s.audit[i])
	}
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close(context.Context) error { return nil }
