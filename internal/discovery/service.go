package discovery

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/aleister1102/oerscout/internal/adapters"
	"github.com/aleister1102/oerscout/internal/common"
	"github.com/aleister1102/oerscout/internal/config"
	"github.com/aleister1102/oerscout/internal/datastore"
	"github.com/aleister1102/oerscout/internal/models"
	"github.com/aleister1102/oerscout/internal/registry"
	"github.com/aleister1102/oerscout/internal/urlhandler"
	"github.com/rs/zerolog"
)

// Origin names the stage that produced a match.
type Origin string

const (
	OriginStored    Origin = "stored"
	OriginCatalog   Origin = "catalog"
	OriginCurated   Origin = "curated"
	OriginWebSearch Origin = "web_search"
)

// Match is the asset selected for a topic together with its TOC.
type Match struct {
	Asset  *models.Asset      `json:"asset"`
	Nodes  []*models.TocNode  `json:"nodes"`
	Score  float64            `json:"score"`
	Origin Origin             `json:"origin"`
	Seed   *models.SeedConfig `json:"seed,omitempty"`

	// Confident is false for web search hits, whose structure is a best-effort guess.
	Confident bool `json:"confident"`
}

// Scanner persists and maps one candidate.
type Scanner interface {
	ScanCandidate(ctx context.Context, seed models.SeedConfig, candidate models.AssetCandidate, opts registry.ScanOptions) (*models.Asset, error)
}

// Option customizes a Service.
type Option func(*Service)

// WithCuratedSources replaces the curated source matcher.
func WithCuratedSources(c *CuratedSources) Option {
	return func(s *Service) { s.curated = c }
}

// WithWebSearcher enables the web search fallback with w.
func WithWebSearcher(w *WebSearcher) Option {
	return func(s *Service) { s.web = w }
}

// WithScorer replaces the topic scorer.
func WithScorer(scorer *Scorer) Option {
	return func(s *Service) { s.scorer = scorer }
}

// Service implements find-or-create for free-text topics.
type Service struct {
	cfg       config.DiscoveryConfig
	store     datastore.Store
	scanner   Scanner
	catalog   *CatalogCache
	curated   *CuratedSources
	web       *WebSearcher
	scorer    *Scorer
	seeds     []models.SeedConfig
	allowlist *urlhandler.DomainAllowlist
	logger    zerolog.Logger
}

// NewService creates the discovery service. seeds are the providers whose catalogs are
// searched; only catalog and curated course seeds are listed, since crawling seeds are too
// expensive to enumerate per lookup.
func NewService(cfg config.DiscoveryConfig, st datastore.Store, scanner Scanner, catalog *CatalogCache, seeds []models.SeedConfig, allowlist *urlhandler.DomainAllowlist, logger zerolog.Logger, opts ...Option) *Service {
	if cfg.MinScore <= 0 {
		cfg.MinScore = DefaultMinScore
	}
	s := &Service{
		cfg:       cfg,
		store:     st,
		scanner:   scanner,
		catalog:   catalog,
		scorer:    NewScorer(),
		seeds:     seeds,
		allowlist: allowlist,
		logger:    logger.With().Str("component", "DiscoveryService").Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.curated == nil {
		s.curated = NewCuratedSources(nil, nil, s.scorer)
	}
	return s
}

// FindOrCreate returns the best asset for topic, trying stored assets, provider
// catalogs, curated sources and finally web search. The selected asset is persisted and
// its TOC mapped when not stored yet. It returns an error wrapping common.ErrNotFound
// when no stage produces a match.
func (s *Service) FindOrCreate(ctx context.Context, topic string) (*Match, error) {
	topic = strings.TrimSpace(topic)
	if len(keywordTokens(topic)) == 0 {
		return nil, common.WrapError(common.ErrInvalidInput, "topic is empty")
	}
	start := time.Now()

	stages := []struct {
		origin Origin
		run    func(context.Context, string) (*Match, error)
	}{
		{OriginStored, s.fromStore},
		{OriginCatalog, s.fromCatalog},
		{OriginCurated, s.fromCurated},
		{OriginWebSearch, s.fromWebSearch},
	}
	for _, stage := range stages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		match, err := stage.run(ctx, topic)
		if err != nil {
			s.logger.Warn().Err(err).Str("topic", topic).Str("stage", string(stage.origin)).Msg("Discovery stage failed")
			continue
		}
		if match == nil {
			continue
		}
		s.record(ctx, topic, match, time.Since(start))
		return match, nil
	}

	s.logger.Info().Str("action", models.ActionDynamicDiscover).Str("topic", topic).Msg("No source found for topic")
	return nil, common.WrapErrorf(common.ErrNotFound, "no source found for topic '%s'", topic)
}

func (s *Service) fromStore(ctx context.Context, topic string) (*Match, error) {
	assets, err := s.store.ListAssets(ctx, datastore.AssetFilter{})
	if err != nil {
		return nil, err
	}
	var best *models.Asset
	var bestScore float64
	for _, a := range assets {
		if score := s.scorer.Score(topic, CandidateFromAsset(a)); score > bestScore {
			best, bestScore = a, score
		}
	}
	if best == nil || bestScore < s.cfg.MinScore {
		return nil, nil
	}

	nodes, err := s.store.ListTocNodes(ctx, best.ID)
	if err != nil {
		return nil, err
	}
	match := &Match{Asset: best, Nodes: nodes, Score: bestScore, Origin: OriginStored, Confident: true}
	if len(nodes) > 0 {
		return match, nil
	}

	source, err := s.store.GetSource(ctx, best.SourceID)
	if err != nil {
		return nil, err
	}
	seed := seedFromSource(source)
	return s.materialize(ctx, seed, best.ToCandidate(), bestScore, OriginStored, true)
}

func (s *Service) fromCatalog(ctx context.Context, topic string) (*Match, error) {
	var (
		best     ScoredCandidate
		bestSeed models.SeedConfig
		found    bool
	)
	for _, seed := range s.seeds {
		if seed.Type != models.SourceTypeCatalogAPI && seed.Type != models.SourceTypeCuratedCourse {
			continue
		}
		candidates, err := s.catalog.Candidates(ctx, seed)
		if err != nil {
			s.logger.Warn().Err(err).Str("provider", seed.Name).Msg("Catalog unavailable")
			continue
		}
		ranked := s.scorer.Rank(topic, candidates)
		if len(ranked) > 0 && (!found || ranked[0].Score > best.Score) {
			best, bestSeed, found = ranked[0], seed, true
		}
	}
	if !found || best.Score < s.cfg.MinScore {
		return nil, nil
	}
	return s.materialize(ctx, bestSeed, best.Candidate, best.Score, OriginCatalog, true)
}

func (s *Service) fromCurated(ctx context.Context, topic string) (*Match, error) {
	matches := s.curated.Match(topic)
	if len(matches) == 0 || matches[0].Score < s.cfg.MinScore {
		return nil, nil
	}
	chosen := matches[0]
	seed := chosen.Source.Seed
	if domain, err := urlhandler.RegistrableDomain(seed.BaseURL); err == nil && s.allowlist != nil {
		s.allowlist.Add(domain)
	}

	candidate := chosen.Source.Candidate()
	if seed.Type != models.SourceTypeGenericHTML {
		candidates, err := s.catalog.Candidates(ctx, seed)
		if err != nil {
			return nil, err
		}
		if len(candidates) == 0 {
			return nil, nil
		}
		candidate = s.scorer.Rank(topic, candidates)[0].Candidate
	}
	return s.materialize(ctx, seed, candidate, chosen.Score, OriginCurated, true)
}

func (s *Service) fromWebSearch(ctx context.Context, topic string) (*Match, error) {
	if !s.cfg.EnableWebSearch || s.web == nil {
		return nil, nil
	}
	hits, err := s.web.Search(ctx, topic)
	if err != nil {
		return nil, err
	}
	hit, ok := FirstDocLike(hits)
	if !ok {
		return nil, nil
	}

	domain, err := urlhandler.RegistrableDomain(hit.URL)
	if err != nil {
		return nil, err
	}
	seed := models.SeedConfig{
		Name:        domain,
		Type:        models.SourceTypeGenericHTML,
		BaseURL:     originOf(hit.URL),
		SeedURL:     hit.URL,
		Description: fmt.Sprintf("Found by web search for '%s'", topic),
	}
	slug := adapters.Slugify(hit.Title)
	if slug == "" {
		slug = adapters.Slugify(domain)
	}
	meta := map[string]interface{}{
		"toc_strategy": adapters.TocStrategyHeuristic,
		"search_query": topic,
	}
	if s.cfg.MaxHeuristicNodes > 0 {
		meta["max_nodes"] = s.cfg.MaxHeuristicNodes
	}
	candidate := models.AssetCandidate{Slug: slug, Title: hit.Title, URL: hit.URL, Metadata: meta}
	return s.materialize(ctx, seed, candidate, 0, OriginWebSearch, false)
}

// materialize persists candidate through the scanner, reusing a stored TOC when one
// exists, and loads the resulting nodes.
func (s *Service) materialize(ctx context.Context, seed models.SeedConfig, candidate models.AssetCandidate, score float64, origin Origin, confident bool) (*Match, error) {
	asset, err := s.scanner.ScanCandidate(ctx, seed, candidate, registry.ScanOptions{ResumeMode: true})
	if err != nil {
		return nil, err
	}
	nodes, err := s.store.ListTocNodes(ctx, asset.ID)
	if err != nil {
		return nil, err
	}
	return &Match{Asset: asset, Nodes: nodes, Score: score, Origin: origin, Seed: &seed, Confident: confident}, nil
}

func (s *Service) record(ctx context.Context, topic string, m *Match, elapsed time.Duration) {
	details := map[string]interface{}{
		"topic":       topic,
		"origin":      string(m.Origin),
		"score":       m.Score,
		"nodes":       len(m.Nodes),
		"confident":   m.Confident,
		"duration_ms": elapsed.Milliseconds(),
	}
	s.logger.Info().
		Str("action", models.ActionDynamicDiscover).
		Str("source_id", m.Asset.SourceID).
		Str("asset_id", m.Asset.ID).
		Str("url", m.Asset.URL).
		Interface("details", details).
		Msg("Topic matched")
	entry := &models.ScanLog{
		SourceID: m.Asset.SourceID,
		AssetID:  m.Asset.ID,
		Action:   models.ActionDynamicDiscover,
		Status:   models.LogStatusSuccess,
		Message:  fmt.Sprintf("topic '%s' matched '%s'", topic, m.Asset.Title),
		Details:  details,
	}
	if err := s.store.AppendScanLog(ctx, entry); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to append discovery log")
	}
}

func seedFromSource(src *models.Source) models.SeedConfig {
	return models.SeedConfig{
		Name:               src.Name,
		Type:               src.Type,
		BaseURL:            src.BaseURL,
		SeedURL:            src.BaseURL,
		Description:        src.Description,
		RateLimitPerMinute: src.RateLimitPerMinute,
	}
}

func originOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return rawURL
	}
	return u.Scheme + "://" + u.Host
}
