// Package adapters holds the per-source-family strategies that discover assets,
// validate their license and robots permissions, and map their table of contents.
package adapters

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"sync"

	"github.com/aleister1102/oerscout/internal/fetcher"
	"github.com/aleister1102/oerscout/internal/models"
	"github.com/aleister1102/oerscout/internal/urlhandler"
	"github.com/rs/zerolog"
)

// Adapter is implemented once per source family.
type Adapter interface {
	// Type returns the source family handled by the adapter.
	Type() models.SourceType
	// DiscoverAssets lists the assets reachable from a seed. cfg is the seed's free-form
	// config block and may be nil.
	DiscoverAssets(ctx context.Context, seedURL string, cfg map[string]interface{}) ([]models.AssetCandidate, error)
	// Validate checks robots permission and license for a candidate.
	Validate(ctx context.Context, candidate models.AssetCandidate, baseURL string) models.ValidationResult
	// MapToc returns the candidate's flattened TOC. No TOC found is an empty slice.
	MapToc(ctx context.Context, candidate models.AssetCandidate, baseURL string) ([]*models.TocNode, error)
}

// PageFetcher is the part of the polite fetcher used by adapters.
type PageFetcher interface {
	Fetch(ctx context.Context, rawURL string, opts fetcher.FetchOptions) *fetcher.Result
	FetchJSON(ctx context.Context, rawURL string, v interface{}) error
	CheckRobots(ctx context.Context, rawURL string) fetcher.RobotsResult
	Transport() http.RoundTripper
}

// Registry maps source types to adapters.
type Registry struct {
	mu       sync.RWMutex
	adapters map[models.SourceType]Adapter
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{adapters: make(map[models.SourceType]Adapter)}
}

// NewDefaultRegistry registers the four built-in adapters.
func NewDefaultRegistry(f PageFetcher, allowlist *urlhandler.DomainAllowlist, logger zerolog.Logger) *Registry {
	r := NewRegistry()
	r.Register(NewCatalogAPIAdapter(f, logger))
	r.Register(NewCuratedAdapter(f, logger))
	r.Register(NewSphinxAdapter(f, logger))
	r.Register(NewGenericAdapter(f, allowlist, logger))
	return r
}

// Register adds or replaces the adapter for its type.
func (r *Registry) Register(a Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[a.Type()] = a
}

// Get returns the adapter for t.
func (r *Registry) Get(t models.SourceType) (Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[t]
	if !ok {
		return nil, fmt.Errorf("no adapter registered for source type '%s'", t)
	}
	return a, nil
}

// Types lists the registered source types in sorted order.
func (r *Registry) Types() []models.SourceType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]models.SourceType, 0, len(r.adapters))
	for t := range r.adapters {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}
