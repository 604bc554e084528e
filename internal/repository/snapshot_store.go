package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"SessionOverlay/internal/domain/models"
	domrepo "SessionOverlay/internal/domain/repository"
	"SessionOverlay/pkg/cache"
)

var _ domrepo.SnapshotStore = (*CacheSnapshotStore)(nil)

// CacheSnapshotStore keeps the last marker batch of every symbol in a cache.
type CacheSnapshotStore struct {
	c   cache.Service
	ttl time.Duration
}

func NewCacheSnapshotStore(c cache.Service, ttl time.Duration) *CacheSnapshotStore {
	return &CacheSnapshotStore{c: c, ttl: ttl}
}

func snapshotKey(symbol string) string { return cache.GenerateKey("snapshot", symbol) }

func (s *CacheSnapshotStore) Save(ctx context.Context, batch models.MarkerBatch) error {
	if err := s.c.Set(ctx, snapshotKey(batch.Symbol), batch, s.ttl); err != nil {
		return fmt.Errorf("save snapshot %s: %w", batch.Symbol, err)
	}
	return nil
}

// Load returns false when no batch was saved for symbol or it has expired.
func (s *CacheSnapshotStore) Load(ctx context.Context, symbol string) (models.MarkerBatch, bool, error) {
	var b models.MarkerBatch
	err := s.c.Get(ctx, snapshotKey(symbol), &b)
	switch {
	case err == nil:
		return b, true, nil
	case errors.Is(err, cache.ErrCacheMiss):
		return models.MarkerBatch{}, false, nil
	default:
		return models.MarkerBatch{}, false, fmt.Errorf("load snapshot %s: %w", symbol, err)
	}
}
