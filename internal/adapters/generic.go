package adapters

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/aleister1102/oerscout/internal/common"
	"github.com/aleister1102/oerscout/internal/htmlutil"
	"github.com/aleister1102/oerscout/internal/models"
	"github.com/aleister1102/oerscout/internal/urlhandler"
	"github.com/gocolly/colly/v2"
	"github.com/rs/zerolog"
)

const (
	genericMaxDepth        = 5
	genericDefaultMaxPages = 20
	genericRequestTimeout  = 2 * time.Minute
)

// Selector keys accepted in a seed config and carried on candidate metadata.
const (
	keyTocSelector     = "toc_selector"
	keyItemSelector    = "item_selector"
	keyLinkSelector    = "link_selector"
	keyContentSelector = "content_selector"
	keyTitleSelector   = "title_selector"
	keyNavSelectors    = "nav_selectors"
	keyTocStrategy     = "toc_strategy"
	keyMaxNodes        = "max_nodes"
)

// TocStrategyHeuristic in a candidate's "toc_strategy" metadata makes MapToc use
// HeuristicToc. On-demand discovery sets it for web search hits.
const TocStrategyHeuristic = "heuristic"

// GenericSelectors are the CSS selectors used by the generic adapter.
type GenericSelectors struct {
	TocContainer string
	Item         string
	Link         string
	Content      string
	Title        string
	Nav          []string
}

// DefaultGenericSelectors returns selectors that fit most hand-written sites.
func DefaultGenericSelectors() GenericSelectors {
	return GenericSelectors{
		TocContainer: "#toc, .toc, nav.toc, .table-of-contents, #TableOfContents, [role='doc-toc']",
		Item:         "li",
		Link:         "a",
		Content:      "main, article, [role='main'], #content, .content, .main-content",
		Title:        "h1, title",
		Nav:          []string{"nav a", ".sidebar a", "#sidebar a", "aside a", ".menu a"},
	}
}

// selectorsFrom overlays selectors found in opts onto the defaults.
func selectorsFrom(opts Options) GenericSelectors {
	s := DefaultGenericSelectors()
	s.TocContainer = opts.String(keyTocSelector, s.TocContainer)
	s.Item = opts.String(keyItemSelector, s.Item)
	s.Link = opts.String(keyLinkSelector, s.Link)
	s.Content = opts.String(keyContentSelector, s.Content)
	s.Title = opts.String(keyTitleSelector, s.Title)
	if nav := opts.Strings(keyNavSelectors); len(nav) > 0 {
		s.Nav = nav
	}
	return s
}

// selectorMetadata copies configured selector overrides so MapToc sees them later.
func selectorMetadata(opts Options) map[string]interface{} {
	meta := make(map[string]interface{})
	for _, key := range []string{keyTocSelector, keyItemSelector, keyLinkSelector, keyContentSelector, keyTitleSelector} {
		if v := opts.String(key, ""); v != "" {
			meta[key] = v
		}
	}
	if nav := opts.Strings(keyNavSelectors); len(nav) > 0 {
		items := make([]interface{}, 0, len(nav))
		for _, n := range nav {
			items = append(items, n)
		}
		meta[keyNavSelectors] = items
	}
	return meta
}

// GenericAdapter discovers pages by walking same-domain links from a seed and maps
// TOCs with selector heuristics.
type GenericAdapter struct {
	Base
	allowlist *urlhandler.DomainAllowlist
}

// NewGenericAdapter creates the generic adapter. A nil or empty allowlist admits
// every host.
func NewGenericAdapter(f PageFetcher, allowlist *urlhandler.DomainAllowlist, logger zerolog.Logger) *GenericAdapter {
	return &GenericAdapter{
		Base:      newBase(f, logger, "GenericAdapter"),
		allowlist: allowlist,
	}
}

// Type implements Adapter.
func (a *GenericAdapter) Type() models.SourceType {
	return models.SourceTypeGenericHTML
}

// linkFilter decides which discovered links become candidates.
type linkFilter struct {
	seedURL   string
	allowlist *urlhandler.DomainAllowlist
	include   *regexp.Regexp
	exclude   []*regexp.Regexp
}

func (lf linkFilter) accept(abs string) bool {
	if !urlhandler.SameHost(abs, lf.seedURL) {
		return false
	}
	if !lf.allowlist.IsEmpty() && !lf.allowlist.IsAllowed(abs) {
		return false
	}
	if lf.include != nil && !lf.include.MatchString(abs) {
		return false
	}
	for _, re := range lf.exclude {
		if re.MatchString(abs) {
			return false
		}
	}
	return true
}

func newLinkFilter(seedURL string, opts Options, allowlist *urlhandler.DomainAllowlist) (linkFilter, error) {
	lf := linkFilter{seedURL: seedURL, allowlist: allowlist}
	if p := opts.String("link_pattern", ""); p != "" {
		re, err := regexp.Compile(p)
		if err != nil {
			return lf, common.NewValidationError("link_pattern", p, err.Error())
		}
		lf.include = re
	}
	for _, p := range opts.Strings("exclude_patterns") {
		re, err := regexp.Compile(p)
		if err != nil {
			return lf, common.NewValidationError("exclude_patterns", p, err.Error())
		}
		lf.exclude = append(lf.exclude, re)
	}
	return lf, nil
}

// DiscoverAssets visits the seed page through the polite transport and turns each
// qualifying same-domain link into a candidate. With no qualifying link the seed page
// itself is the only asset.
func (a *GenericAdapter) DiscoverAssets(ctx context.Context, seedURL string, cfg map[string]interface{}) ([]models.AssetCandidate, error) {
	opts := Options(cfg)
	maxPages := opts.Int("max_pages", genericDefaultMaxPages)
	filter, err := newLinkFilter(seedURL, opts, a.allowlist)
	if err != nil {
		return nil, err
	}
	normalizedSeed, err := urlhandler.NormalizeURL(seedURL)
	if err != nil {
		return nil, common.NewValidationError("seed_url", seedURL, err.Error())
	}
	meta := selectorMetadata(opts)

	c := colly.NewCollector(
		colly.StdlibContext(ctx),
		colly.MaxDepth(1),
		colly.IgnoreRobotsTxt(),
	)
	c.WithTransport(a.fetcher.Transport())
	c.SetRequestTimeout(genericRequestTimeout)

	var (
		mu         sync.Mutex
		seedTitle  string
		visitErr   error
		seen       = map[string]bool{normalizedSeed: true}
		slugs      = make(map[string]int)
		candidates []models.AssetCandidate
	)

	c.OnHTML("title", func(e *colly.HTMLElement) {
		mu.Lock()
		defer mu.Unlock()
		if seedTitle == "" {
			seedTitle = htmlutil.CleanText(e.Text)
		}
	})

	c.OnHTML("a[href]", func(e *colly.HTMLElement) {
		href := e.Attr("href")
		if htmlutil.IsExcludedHref(href) {
			return
		}
		abs := e.Request.AbsoluteURL(href)
		if abs == "" {
			return
		}
		normalized, err := urlhandler.NormalizeURL(abs)
		if err != nil || !filter.accept(normalized) {
			return
		}

		mu.Lock()
		defer mu.Unlock()
		if len(candidates) >= maxPages || seen[normalized] {
			return
		}
		seen[normalized] = true

		title := htmlutil.CleanText(e.Text)
		if title == "" {
			title = strings.TrimSpace(e.Attr("title"))
		}
		if title == "" {
			title = pathLabel(normalized)
		}
		candidates = append(candidates, models.AssetCandidate{
			Slug:     uniqueCandidateSlug(Slugify(title), slugs),
			Title:    title,
			URL:      normalized,
			Metadata: copyMetadata(meta),
		})
	})

	c.OnError(func(r *colly.Response, err error) {
		mu.Lock()
		defer mu.Unlock()
		visitErr = fmt.Errorf("visit %s failed with status %d: %w", r.Request.URL, r.StatusCode, err)
	})

	if err := c.Visit(normalizedSeed); err != nil && visitErr == nil {
		visitErr = err
	}
	c.Wait()

	if len(candidates) == 0 {
		if visitErr != nil {
			return nil, common.WrapErrorf(visitErr, "failed to discover links from '%s'", seedURL)
		}
		title := seedTitle
		if title == "" {
			title, _ = urlhandler.Hostname(seedURL)
		}
		a.logger.Info().Str("url", seedURL).Msg("No qualifying links, using seed page as the single asset")
		return []models.AssetCandidate{{
			Slug:     Slugify(title),
			Title:    title,
			URL:      normalizedSeed,
			Metadata: meta,
		}}, nil
	}

	a.logger.Info().Str("action", "discover_assets").Str("url", seedURL).Int("assets", len(candidates)).Msg("Generic discovery finished")
	return candidates, nil
}

func uniqueCandidateSlug(slug string, used map[string]int) string {
	if slug == "" {
		slug = "page"
	}
	used[slug]++
	if used[slug] == 1 {
		return slug
	}
	return fmt.Sprintf("%s-%d", slug, used[slug])
}

func copyMetadata(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// pathLabel turns the last path segment of rawURL into a readable label.
func pathLabel(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	last := segments[len(segments)-1]
	last = strings.TrimSuffix(last, ".html")
	last = strings.NewReplacer("-", " ", "_", " ").Replace(last)
	if last == "" {
		return u.Hostname()
	}
	return last
}

// Validate implements Adapter.
func (a *GenericAdapter) Validate(ctx context.Context, candidate models.AssetCandidate, baseURL string) models.ValidationResult {
	return a.ValidateCommon(ctx, candidate)
}

// MapToc tries a TOC container, then headings with ids in the content area, then the
// first navigation selector that yields links.
func (a *GenericAdapter) MapToc(ctx context.Context, candidate models.AssetCandidate, baseURL string) ([]*models.TocNode, error) {
	doc, res, err := a.FetchDocument(ctx, candidate.URL)
	if err != nil {
		a.logger.Warn().Str("action", "map_toc").Str("url", candidate.URL).Int("status", res.Status).Err(err).Msg("Page fetch failed")
		return []*models.TocNode{}, nil
	}
	opts := Options(candidate.Metadata)
	pageURL := res.FinalURL
	if opts.String(keyTocStrategy, "") == TocStrategyHeuristic {
		flat := HeuristicToc(doc, pageURL, candidate.Slug)
		if limit := opts.Int(keyMaxNodes, 0); limit > 0 && len(flat) > limit {
			flat = flat[:limit]
		}
		a.logger.Debug().Str("strategy", TocStrategyHeuristic).Str("url", candidate.URL).Int("nodes", len(flat)).Msg("TOC mapped")
		return flat, nil
	}
	selectors := selectorsFrom(opts)

	strategies := []struct {
		name string
		run  func(*goquery.Document, string, GenericSelectors) []*models.TocNode
	}{
		{"toc_container", tocContainerNodes},
		{"content_headings", contentHeadingNodes},
		{"navigation", navigationNodes},
	}
	for _, s := range strategies {
		roots := s.run(doc, pageURL, selectors)
		if len(roots) == 0 {
			continue
		}
		slugTree(roots, candidate.Slug)
		flat := headingDepths(FlattenTree(roots))
		a.logger.Debug().Str("strategy", s.name).Str("url", candidate.URL).Int("nodes", len(flat)).Msg("TOC mapped")
		return flat, nil
	}
	return []*models.TocNode{}, nil
}

// tocContainerNodes parses the first nested list inside the TOC container. A
// container without lists falls back to its items' links at depth 0.
func tocContainerNodes(doc *goquery.Document, pageURL string, s GenericSelectors) []*models.TocNode {
	container := doc.Find(s.TocContainer).First()
	if container.Length() == 0 {
		return nil
	}
	list := container.Filter("ul, ol")
	if list.Length() == 0 {
		list = container.Find("ul, ol").First()
	}
	if roots := htmlutil.ParseNestedList(list, pageURL, 0, genericMaxDepth); len(roots) > 0 {
		return roots
	}

	var roots []*models.TocNode
	container.Find(s.Item).Each(func(_ int, item *goquery.Selection) {
		link := item.Find(s.Link).First()
		if link.Length() == 0 && item.Is(s.Link) {
			link = item
		}
		href := link.AttrOr("href", "")
		title := htmlutil.Text(link)
		if title == "" || htmlutil.IsExcludedHref(href) {
			return
		}
		roots = append(roots, &models.TocNode{Title: title, URL: ResolveURL(href, pageURL)})
	})
	return roots
}

// headingLevelKey holds the heading level of nodes built from content headings.
const headingLevelKey = "heading_level"

// contentHeadingNodes nests h2..h6 headings carrying an id under the nearest
// preceding heading of a lower level.
func contentHeadingNodes(doc *goquery.Document, pageURL string, s GenericSelectors) []*models.TocNode {
	content := doc.Find(s.Content).First()
	if content.Length() == 0 {
		return nil
	}
	var roots []*models.TocNode
	var stack []*models.TocNode
	var levels []int
	for _, h := range htmlutil.ExtractHeadings(content, 2, 3, 4, 5, 6) {
		if h.ID == "" {
			continue
		}
		node := &models.TocNode{
			Title:    h.Text,
			URL:      ResolveURL("#"+h.ID, pageURL),
			Metadata: map[string]interface{}{headingLevelKey: h.Level},
		}
		for len(levels) > 0 && levels[len(levels)-1] >= h.Level {
			stack = stack[:len(stack)-1]
			levels = levels[:len(levels)-1]
		}
		if len(stack) == 0 {
			roots = append(roots, node)
		} else {
			parent := stack[len(stack)-1]
			parent.Children = append(parent.Children, node)
		}
		stack = append(stack, node)
		levels = append(levels, h.Level)
	}
	return roots
}

// headingDepths sets the depth of heading-derived nodes from their level, h2 at
// depth 0, whatever their nesting. Other nodes are left as flattened.
func headingDepths(flat []*models.TocNode) []*models.TocNode {
	for _, n := range flat {
		level, ok := n.Metadata[headingLevelKey].(int)
		if !ok {
			continue
		}
		depth := level - 2
		if depth < 0 {
			depth = 0
		}
		n.Depth = depth
		n.NodeType = models.NodeTypeForDepth(depth)
	}
	return flat
}

// navigationNodes returns the links of the first nav selector that has any, flat.
func navigationNodes(doc *goquery.Document, pageURL string, s GenericSelectors) []*models.TocNode {
	for _, selector := range s.Nav {
		links := htmlutil.ExtractLinks(doc.Find(selector), pageURL)
		if len(links) == 0 {
			continue
		}
		seen := make(map[string]bool)
		var roots []*models.TocNode
		for _, l := range links {
			if l.Text == "" || seen[l.URL] {
				continue
			}
			seen[l.URL] = true
			roots = append(roots, &models.TocNode{Title: l.Text, URL: l.URL})
		}
		if len(roots) > 0 {
			return roots
		}
	}
	return nil
}
