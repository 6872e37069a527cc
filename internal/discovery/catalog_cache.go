package discovery

import (
	"context"
	"time"

	"github.com/aleister1102/oerscout/internal/adapters"
	"github.com/aleister1102/oerscout/internal/common"
	"github.com/aleister1102/oerscout/internal/common/cache"
	"github.com/aleister1102/oerscout/internal/models"
	"github.com/rs/zerolog"
)

// DefaultCatalogTTL is how long a provider catalog stays cached.
const DefaultCatalogTTL = time.Hour

// AdapterProvider resolves the adapter for a source family.
type AdapterProvider interface {
	Get(t models.SourceType) (adapters.Adapter, error)
}

// CatalogCache keeps each provider's full candidate list for a while so repeated topic
// lookups do not rediscover it.
type CatalogCache struct {
	entries  *cache.TTLCache[string, []models.AssetCandidate]
	adapters AdapterProvider
	logger   zerolog.Logger
}

// NewCatalogCache creates a cache. ttl <= 0 selects DefaultCatalogTTL.
func NewCatalogCache(provider AdapterProvider, ttl time.Duration, logger zerolog.Logger) *CatalogCache {
	if ttl <= 0 {
		ttl = DefaultCatalogTTL
	}
	return &CatalogCache{
		entries:  cache.New[string, []models.AssetCandidate](ttl),
		adapters: provider,
		logger:   logger.With().Str("component", "CatalogCache").Logger(),
	}
}

// WithClock replaces the clock used for expiry.
func (c *CatalogCache) WithClock(now func() time.Time) *CatalogCache {
	c.entries.WithClock(now)
	return c
}

// Candidates returns the cached catalog of seed, discovering it when missing or expired.
// Failed discoveries are not cached.
func (c *CatalogCache) Candidates(ctx context.Context, seed models.SeedConfig) ([]models.AssetCandidate, error) {
	return c.entries.GetOrRefresh(ctx, seed.Name, func(ctx context.Context) ([]models.AssetCandidate, error) {
		adapter, err := c.adapters.Get(seed.Type)
		if err != nil {
			return nil, err
		}
		start := time.Now()
		candidates, err := adapter.DiscoverAssets(ctx, seed.SeedURL, seed.Config)
		if err != nil {
			return nil, common.WrapErrorf(err, "failed to list catalog of '%s'", seed.Name)
		}
		c.logger.Debug().
			Str("action", models.ActionDiscoverAssets).
			Str("provider", seed.Name).
			Int("candidates", len(candidates)).
			Dur("duration", time.Since(start)).
			Msg("Catalog refreshed")
		return candidates, nil
	})
}

// Invalidate drops one provider's catalog.
func (c *CatalogCache) Invalidate(provider string) {
	c.entries.Delete(provider)
}

// Clear drops every cached catalog.
func (c *CatalogCache) Clear() {
	c.entries.Clear()
}
