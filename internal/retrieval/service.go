package retrieval

import (
	"context"
	"errors"
	"time"

	"github.com/aleister1102/oerscout/internal/common/batchprocessor"
	"github.com/aleister1102/oerscout/internal/common/contextutils"
	"github.com/aleister1102/oerscout/internal/config"
	"github.com/aleister1102/oerscout/internal/models"
	"github.com/rs/zerolog"
)

var errNoContent = errors.New("no content extracted")

// Option configures a Service.
type Option func(*Service)

// WithSleeper replaces the pause between retrieval batches, mainly for tests.
func WithSleeper(sleep contextutils.SleepFunc) Option {
	return func(s *Service) {
		s.batches.WithSleeper(sleep)
	}
}

// Service retrieves node content in small polite batches.
type Service struct {
	extractor *Extractor
	batches   *batchprocessor.BatchProcessor
	logger    zerolog.Logger
}

// NewService wires an extractor and a batch processor sized from cfg.
func NewService(f PageFetcher, cfg config.RetrievalConfig, logger zerolog.Logger, opts ...Option) *Service {
	bpCfg := batchprocessor.DefaultBatchProcessorConfig()
	if cfg.Concurrency > 0 {
		bpCfg.BatchSize = cfg.Concurrency
	}
	bpCfg.InterBatchDelay = cfg.BatchDelay()
	if cfg.BatchTimeoutSecs > 0 {
		bpCfg.BatchTimeout = cfg.BatchTimeout()
	}

	s := &Service{
		extractor: NewExtractor(f, cfg, logger),
		batches:   batchprocessor.NewBatchProcessor(bpCfg, logger),
		logger:    logger.With().Str("component", "RetrievalService").Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ExtractContentFromURL extracts a single page. See Extractor.ExtractContentFromURL.
func (s *Service) ExtractContentFromURL(ctx context.Context, rawURL string, hints SelectorHints) *models.ExtractedContent {
	return s.extractor.ExtractContentFromURL(ctx, rawURL, hints)
}

// RetrieveNodesContent extracts the page behind every node that has a URL. Results
// keep node order; nodes whose page could not be extracted are left out.
func (s *Service) RetrieveNodesContent(ctx context.Context, nodes []*models.TocNode, asset *models.Asset) []*models.ExtractedContent {
	return s.RetrieveSelected(ctx, nodes, nodes, asset)
}

// RetrieveSelected is RetrieveNodesContent for a subset of an asset's outline. Section
// paths are resolved against the whole outline so ancestors left out of selected still
// appear in them.
func (s *Service) RetrieveSelected(ctx context.Context, outline, selected []*models.TocNode, asset *models.Asset) []*models.ExtractedContent {
	var (
		hints       SelectorHints
		sourceTitle string
	)
	if asset != nil {
		hints = HintsFromMetadata(asset.Metadata)
		sourceTitle = asset.Title
	}

	paths := SectionPaths(outline)
	work := make([]*models.TocNode, 0, len(selected))
	for _, n := range selected {
		if n != nil && n.URL != "" {
			work = append(work, n)
		}
	}
	if len(work) == 0 {
		return []*models.ExtractedContent{}
	}

	start := time.Now()
	outcomes := batchprocessor.Process(ctx, s.batches, work, func(ctx context.Context, n *models.TocNode) (*models.ExtractedContent, error) {
		content := s.extractor.ExtractContentFromURL(ctx, n.URL, hints)
		if content == nil {
			return nil, errNoContent
		}
		content.NodeID = n.ID
		content.SortOrder = n.SortOrder
		content.SourceTitle = sourceTitle
		content.SectionPath = paths[n]
		return content, nil
	})

	results := make([]*models.ExtractedContent, 0, len(outcomes))
	failed := 0
	for _, o := range outcomes {
		if o.Err != nil {
			failed++
			continue
		}
		results = append(results, o.Value)
	}

	event := s.logger.Info()
	if failed > 0 {
		event = s.logger.Warn()
	}
	event.
		Int("requested", len(work)).
		Int("retrieved", len(results)).
		Int("failed", failed).
		Dur("duration", time.Since(start)).
		Msg("Node content retrieval finished")
	return results
}

// SectionPaths maps each node to the titles from its top-level ancestor down to
// itself. Parents are found by ParentID, or by ParentSlug before persistence.
func SectionPaths(nodes []*models.TocNode) map[*models.TocNode][]string {
	byID := make(map[string]*models.TocNode, len(nodes))
	bySlug := make(map[string]*models.TocNode, len(nodes))
	for _, n := range nodes {
		if n == nil {
			continue
		}
		if n.ID != "" {
			byID[n.ID] = n
		}
		if n.Slug != "" {
			bySlug[n.Slug] = n
		}
	}

	parentOf := func(n *models.TocNode) *models.TocNode {
		if n.ParentID != nil {
			if p, ok := byID[*n.ParentID]; ok {
				return p
			}
		}
		if n.ParentSlug != "" {
			return bySlug[n.ParentSlug]
		}
		return nil
	}

	paths := make(map[*models.TocNode][]string, len(nodes))
	for _, n := range nodes {
		if n == nil {
			continue
		}
		var reversed []string
		for cur, hops := n, 0; cur != nil && hops <= len(nodes); cur, hops = parentOf(cur), hops+1 {
			reversed = append(reversed, cur.Title)
		}
		path := make([]string, len(reversed))
		for i, title := range reversed {
			path[len(reversed)-1-i] = title
		}
		paths[n] = path
	}
	return paths
}
