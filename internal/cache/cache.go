package cache

import (
	"context"
	"time"

	"mejaresto/internal/domain"
)

// CatalogCache holds resolved menu item snapshots so that hot items are not
// re-read from the store on every AddLine. Implementations must treat a miss
// and an error identically from the caller's point of view: the resolver
// always falls back to the repository.
type CatalogCache interface {
	GetMenuItem(ctx context.Context, key string) (*domain.MenuItem, bool, error)
	SetMenuItem(ctx context.Context, key string, item *domain.MenuItem, ttl time.Duration) error
	InvalidateMenuItem(ctx context.Context, key string) error
}

type NoopCatalogCache struct{}

func (NoopCatalogCache) GetMenuItem(_ context.Context, _ string) (*domain.MenuItem, bool, error) {
	return nil, false, nil
}

func (NoopCatalogCache) SetMenuItem(_ context.Context, _ string, _ *domain.MenuItem, _ time.Duration) error {
	return nil
}

func (NoopCatalogCache) InvalidateMenuItem(_ context.Context, _ string) error {
	return nil
}
