package discovery

import (
	"context"
	"errors"
	"net/url"
	"testing"

	"github.com/aleister1102/oerscout/internal/adapters"
	"github.com/aleister1102/oerscout/internal/common"
	"github.com/aleister1102/oerscout/internal/config"
	"github.com/aleister1102/oerscout/internal/datastore"
	"github.com/aleister1102/oerscout/internal/models"
	"github.com/aleister1102/oerscout/internal/registry"
	"github.com/aleister1102/oerscout/internal/urlhandler"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	svc       *Service
	store     datastore.Store
	catalog   *fakeAdapter
	pages     *fakeAdapter
	allowlist *urlhandler.DomainAllowlist
}

func newDiscoveryFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	catalog := &fakeAdapter{typ: models.SourceTypeCatalogAPI, candidates: []models.AssetCandidate{
		{
			Slug: "intro-algorithms", Title: "Introduction to Algorithms", URL: "https://catalog.example.org/books/algorithms",
			Subjects: []string{"computer science", "algorithms"}, Description: "Common algorithms and their analysis.",
		},
		{
			Slug: "nursing", Title: "Fundamentals of Nursing", URL: "https://catalog.example.org/books/nursing",
			Subjects: []string{"nursing", "health"}, Description: "Patient care and clinical judgment.",
		},
	}}
	pages := &fakeAdapter{typ: models.SourceTypeGenericHTML}
	reg := adapters.NewRegistry()
	reg.Register(catalog)
	reg.Register(pages)

	st := datastore.NewMemoryStore()
	allowlist := urlhandler.NewDomainAllowlist([]string{"catalog.example.org"})
	scanner := registry.NewService(st, reg, nil, allowlist, zerolog.Nop())
	cfg := config.NewDefaultDiscoveryConfig()
	cfg.EnableWebSearch = false
	opts = append([]Option{WithCuratedSources(NewCuratedSources([]CuratedSource{}, nil, nil))}, opts...)
	svc := NewService(cfg, st, scanner, NewCatalogCache(reg, 0, zerolog.Nop()), []models.SeedConfig{catalogSeed()}, allowlist, zerolog.Nop(), opts...)
	return &fixture{svc: svc, store: st, catalog: catalog, pages: pages, allowlist: allowlist}
}

func TestFindOrCreate_CatalogThenStored(t *testing.T) {
	f := newDiscoveryFixture(t)
	ctx := context.Background()

	m, err := f.svc.FindOrCreate(ctx, "python data structures")
	require.NoError(t, err)
	assert.Equal(t, OriginCatalog, m.Origin)
	assert.True(t, m.Confident)
	assert.Equal(t, "intro-algorithms", m.Asset.Slug)
	assert.True(t, m.Asset.TocExtractionSuccess)
	assert.False(t, m.Asset.Active)
	assert.Len(t, m.Nodes, 3)
	assert.Greater(t, m.Score, DefaultMinScore)

	again, err := f.svc.FindOrCreate(ctx, "python data structures")
	require.NoError(t, err)
	assert.Equal(t, OriginStored, again.Origin)
	assert.Equal(t, m.Asset.ID, again.Asset.ID)
	assert.Len(t, again.Nodes, 3)
	assert.Equal(t, 1, f.catalog.discoverCalls)
	assert.Equal(t, 1, f.catalog.mapCalls)

	logs, err := f.store.ListScanLogs(ctx, datastore.ScanLogFilter{Action: models.ActionDynamicDiscover})
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, string(OriginStored), logs[1].Details["origin"])
}

func TestFindOrCreate_NoConfidentMatch(t *testing.T) {
	f := newDiscoveryFixture(t)
	_, err := f.svc.FindOrCreate(context.Background(), "java fundamentals")
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrNotFound))

	_, err = f.svc.FindOrCreate(context.Background(), "   ")
	assert.True(t, errors.Is(err, common.ErrInvalidInput))
}

func TestFindOrCreate_StoredAssetWithoutTocIsMapped(t *testing.T) {
	f := newDiscoveryFixture(t)
	ctx := context.Background()
	src, _, err := datastore.GetOrCreateSource(ctx, f.store, &models.Source{Name: "OpenCatalog", BaseURL: "https://catalog.example.org", Type: models.SourceTypeCatalogAPI})
	require.NoError(t, err)
	_, _, err = datastore.GetOrCreateAsset(ctx, f.store, &models.Asset{
		SourceID: src.ID, Slug: "calculus", Title: "Calculus", URL: "https://catalog.example.org/books/calculus",
		Subjects: []string{"mathematics"},
	})
	require.NoError(t, err)

	m, err := f.svc.FindOrCreate(ctx, "calculus limits")
	require.NoError(t, err)
	assert.Equal(t, OriginStored, m.Origin)
	assert.Equal(t, "calculus", m.Asset.Slug)
	assert.Len(t, m.Nodes, 3)
	assert.Equal(t, 1, f.catalog.mapCalls)
	assert.Zero(t, f.catalog.discoverCalls)
}

func TestFindOrCreate_CuratedSource(t *testing.T) {
	curated := NewCuratedSources([]CuratedSource{{
		Seed: models.SeedConfig{
			Name: "Widgetlang Guide", Type: models.SourceTypeGenericHTML,
			BaseURL: "https://guide.widgetlang.dev", SeedURL: "https://guide.widgetlang.dev/book/",
		},
		Keywords: []string{"widgetlang"},
	}}, nil, nil)
	f := newDiscoveryFixture(t, WithCuratedSources(curated))
	ctx := context.Background()

	assert.False(t, f.allowlist.IsAllowed("https://guide.widgetlang.dev/book/"))
	m, err := f.svc.FindOrCreate(ctx, "widgetlang closures")
	require.NoError(t, err)
	assert.Equal(t, OriginCurated, m.Origin)
	assert.Equal(t, "widgetlang-guide", m.Asset.Slug)
	assert.Len(t, m.Nodes, 3)
	require.NotNil(t, m.Seed)
	assert.Equal(t, "Widgetlang Guide", m.Seed.Name)
	assert.True(t, f.allowlist.IsAllowed("https://guide.widgetlang.dev/book/"))

	src, err := f.store.GetSourceByName(ctx, "Widgetlang Guide")
	require.NoError(t, err)
	assert.Equal(t, models.SourceTypeGenericHTML, src.Type)
}

func TestFindOrCreate_WebSearchFallback(t *testing.T) {
	docs := serve(t, map[string]string{
		"/docs/": `<html><head><title>Widget Framework</title></head><body><main>
			<a href="/docs/install">Install</a><a href="/docs/usage">Usage</a><a href="/docs/api">API</a>
		</main></body></html>`,
	})
	docsURL := localhostURL(docs.URL) + "/docs/"
	search := serve(t, map[string]string{
		"/html/": `<html><body>
			<a class="result__a" href="/l/?uddg=` + url.QueryEscape(localhostURL(docs.URL)+"/blog") + `">Widget news</a>
			<a class="result__a" href="/l/?uddg=` + url.QueryEscape(docsURL) + `">Widget Framework Docs</a>
		</body></html>`,
	})

	f := newTestFetcher(t)
	st := datastore.NewMemoryStore()
	reg := adapters.NewDefaultRegistry(f, nil, zerolog.Nop())
	scanner := registry.NewService(st, reg, f, nil, zerolog.Nop())
	cfg := config.NewDefaultDiscoveryConfig()
	svc := NewService(cfg, st, scanner, NewCatalogCache(reg, 0, zerolog.Nop()), nil, nil, zerolog.Nop(),
		WithCuratedSources(NewCuratedSources([]CuratedSource{}, nil, nil)),
		WithWebSearcher(NewWebSearcher(f, search.URL+"/html/?q={query}", zerolog.Nop())))

	m, err := svc.FindOrCreate(context.Background(), "widget framework")
	require.NoError(t, err)
	assert.Equal(t, OriginWebSearch, m.Origin)
	assert.False(t, m.Confident)
	assert.Equal(t, "widget-framework-docs", m.Asset.Slug)
	assert.Equal(t, docsURL, m.Asset.URL)
	assert.Equal(t, []string{"Install", "Usage", "API"}, []string{m.Nodes[0].Title, m.Nodes[1].Title, m.Nodes[2].Title})
	assert.Equal(t, adapters.TocStrategyHeuristic, m.Asset.Metadata["toc_strategy"])

	src, err := st.GetSourceByName(context.Background(), "localhost")
	require.NoError(t, err)
	assert.Equal(t, models.SourceTypeGenericHTML, src.Type)
}
