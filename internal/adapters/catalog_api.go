package adapters

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/aleister1102/oerscout/internal/common"
	"github.com/aleister1102/oerscout/internal/fetcher"
	"github.com/aleister1102/oerscout/internal/htmlutil"
	"github.com/aleister1102/oerscout/internal/models"
	"github.com/rs/zerolog"
)

const (
	defaultStateMarker     = "window.__PRELOADED_STATE__ ="
	defaultCatalogBookPath = "/books/{slug}/pages/1-introduction"
	defaultCatalogPagePath = "/books/{slug}/pages/{page}"
	catalogAssertedConf    = 0.95
	treeSearchDepth        = 5
)

// knownStatePaths are tried before the recursive search for tree.contents.
var knownStatePaths = [][]string{
	{"content", "book"},
	{"content"},
	{"book"},
	{},
}

// typeHints maps explicit node type hints found in embedded state to node types.
var typeHints = map[string]models.NodeType{
	"part":       models.NodeTypePart,
	"unit":       models.NodeTypePart,
	"chapter":    models.NodeTypeChapter,
	"section":    models.NodeTypeSection,
	"subsection": models.NodeTypeSubsection,
	"page":       models.NodeTypePage,
	"eoc":        models.NodeTypeOther,
	"eob":        models.NodeTypeOther,
	"appendix":   models.NodeTypeOther,
}

// catalogResponse is the JSON catalog listing.
type catalogResponse struct {
	Items []catalogItem `json:"items"`
}

type catalogItem struct {
	ID             interface{}      `json:"id"`
	Title          string           `json:"title"`
	Slug           string           `json:"slug"`
	BookState      string           `json:"book_state"`
	Description    string           `json:"description"`
	Subjects       []catalogSubject `json:"book_subjects"`
	Categories     []catalogSubject `json:"book_categories"`
	LicenseName    string           `json:"license_name"`
	LicenseURL     string           `json:"license_url"`
	WebviewRexLink string           `json:"webview_rex_link"`
	Meta           struct {
		Slug string `json:"slug"`
	} `json:"meta"`
}

type catalogSubject struct {
	SubjectName  string `json:"subject_name"`
	CategoryName string `json:"subject_category"`
}

// CatalogAPIAdapter discovers books from a JSON catalog endpoint and maps their TOC
// from the state object embedded in the reader page.
type CatalogAPIAdapter struct {
	Base
	StateMarker string
}

// NewCatalogAPIAdapter creates the catalog adapter.
func NewCatalogAPIAdapter(f PageFetcher, logger zerolog.Logger) *CatalogAPIAdapter {
	return &CatalogAPIAdapter{
		Base:        newBase(f, logger, "CatalogAPIAdapter"),
		StateMarker: defaultStateMarker,
	}
}

// Type implements Adapter.
func (a *CatalogAPIAdapter) Type() models.SourceType {
	return models.SourceTypeCatalogAPI
}

// DiscoverAssets fetches the catalog and keeps live entries only.
func (a *CatalogAPIAdapter) DiscoverAssets(ctx context.Context, seedURL string, cfg map[string]interface{}) ([]models.AssetCandidate, error) {
	opts := Options(cfg)
	liveState := opts.String("live_state", "live")
	bookPath := opts.String("book_path", defaultCatalogBookPath)
	baseURL := opts.String("base_url", originOf(seedURL))
	defaultLicense := opts.String("license_name", "")
	defaultLicenseURL := opts.String("license_url", "")

	var catalog catalogResponse
	if err := a.fetcher.FetchJSON(ctx, seedURL, &catalog); err != nil {
		return nil, common.WrapErrorf(err, "failed to fetch catalog '%s'", seedURL)
	}

	candidates := make([]models.AssetCandidate, 0, len(catalog.Items))
	skipped := 0
	for _, item := range catalog.Items {
		if !strings.EqualFold(item.BookState, liveState) {
			skipped++
			continue
		}
		slug := item.Slug
		if slug == "" {
			slug = item.Meta.Slug
		}
		if slug == "" {
			slug = Slugify(item.Title)
		}
		if slug == "" {
			skipped++
			continue
		}

		pageURL := item.WebviewRexLink
		if pageURL == "" {
			pageURL = ResolveURL(strings.ReplaceAll(bookPath, "{slug}", slug), baseURL)
		}

		licenseName, licenseURL := item.LicenseName, item.LicenseURL
		if licenseName == "" {
			licenseName, licenseURL = defaultLicense, defaultLicenseURL
		}
		var confidence float64
		if licenseName != "" {
			confidence = catalogAssertedConf
		}

		candidates = append(candidates, models.AssetCandidate{
			Slug:              slug,
			Title:             htmlutil.CleanText(item.Title),
			URL:               pageURL,
			Description:       fragmentText(item.Description),
			Subjects:          item.subjects(),
			LicenseName:       licenseName,
			LicenseURL:        licenseURL,
			LicenseConfidence: confidence,
			Metadata: map[string]interface{}{
				"catalog_id": fmt.Sprint(item.ID),
				"book_state": item.BookState,
				"book_slug":  slug,
			},
		})
	}

	a.logger.Info().
		Str("action", "discover_assets").
		Str("url", seedURL).
		Int("live", len(candidates)).
		Int("skipped", skipped).
		Msg("Catalog discovery finished")
	return candidates, nil
}

func (item catalogItem) subjects() []string {
	seen := make(map[string]bool)
	var out []string
	add := func(s string) {
		s = strings.TrimSpace(s)
		if s == "" || seen[strings.ToLower(s)] {
			return
		}
		seen[strings.ToLower(s)] = true
		out = append(out, s)
	}
	for _, s := range item.Subjects {
		add(s.SubjectName)
		add(s.CategoryName)
	}
	for _, s := range item.Categories {
		add(s.SubjectName)
		add(s.CategoryName)
	}
	return out
}

// Validate runs the shared checks; the catalog's asserted license wins over any
// weaker detection.
func (a *CatalogAPIAdapter) Validate(ctx context.Context, candidate models.AssetCandidate, baseURL string) models.ValidationResult {
	return a.ValidateCommon(ctx, candidate)
}

// MapToc parses the embedded state object of the book page.
func (a *CatalogAPIAdapter) MapToc(ctx context.Context, candidate models.AssetCandidate, baseURL string) ([]*models.TocNode, error) {
	res := a.fetcher.Fetch(ctx, candidate.URL, fetcher.FetchOptions{})
	if !res.OK {
		a.logger.Warn().Str("action", "map_toc").Str("url", candidate.URL).Str("error", res.Error).Msg("Book page fetch failed")
		return []*models.TocNode{}, nil
	}

	contents, err := a.treeContents(res.Text())
	if err != nil {
		a.logger.Warn().Str("action", "map_toc").Str("url", candidate.URL).Err(err).Msg("Embedded state not usable")
		return []*models.TocNode{}, nil
	}

	bookSlug := candidate.MetadataString("book_slug")
	if bookSlug == "" {
		bookSlug = candidate.Slug
	}
	if baseURL == "" {
		baseURL = originOf(candidate.URL)
	}
	w := &stateWalker{assetSlug: candidate.Slug, bookSlug: bookSlug, baseURL: baseURL}
	roots := w.walk(contents, 0)
	flat := FlattenTree(roots)

	a.logger.Debug().Str("action", "map_toc").Str("asset", candidate.Slug).Int("nodes", len(flat)).Msg("Mapped TOC from embedded state")
	return flat, nil
}

// treeContents extracts the state object and locates its tree.contents array.
func (a *CatalogAPIAdapter) treeContents(page string) ([]Value, error) {
	raw, err := ExtractAssignedObject(page, a.StateMarker)
	if err != nil {
		return nil, err
	}
	state, err := ParseValue([]byte(raw))
	if err != nil {
		return nil, common.WrapError(err, "failed to parse embedded state")
	}

	holder, found := Value{}, false
	for _, path := range knownStatePaths {
		if v, ok := state.Path(path...); ok && HasTreeContents(v) {
			holder, found = v, true
			break
		}
	}
	if !found {
		holder, found = FindObject(state, HasTreeContents, treeSearchDepth)
	}
	if !found {
		return nil, common.WrapError(common.ErrNotFound, "tree.contents not found in embedded state")
	}
	contents, _ := holder.Path("tree", "contents")
	return contents.Array, nil
}

type stateWalker struct {
	assetSlug string
	bookSlug  string
	baseURL   string
	order     int
}

func (w *stateWalker) walk(entries []Value, depth int) []*models.TocNode {
	var nodes []*models.TocNode
	for _, entry := range entries {
		if entry.Kind != KindObject {
			continue
		}
		title := fragmentText(entry.StringField("title", "name"))
		if title == "" {
			continue
		}
		pageSlug := entry.StringField("slug")
		w.order++

		label := pageSlug
		if label == "" {
			label = title
		}
		node := &models.TocNode{
			Slug:     nodeSlug(w.assetSlug, label, strconv.Itoa(w.order)),
			Title:    title,
			NodeType: nodeTypeFromHint(entry, depth),
			Depth:    depth,
		}
		if id := entry.StringField("id"); id != "" {
			node.Metadata = map[string]interface{}{"source_id": id}
		}

		children, _ := entry.Get("contents")
		if pageSlug != "" && !children.IsArray() {
			path := strings.NewReplacer("{slug}", w.bookSlug, "{page}", pageSlug).Replace(defaultCatalogPagePath)
			node.URL = ResolveURL(path, w.baseURL)
		}
		if children.IsArray() {
			node.Children = w.walk(children.Array, depth+1)
		}
		nodes = append(nodes, node)
	}
	return nodes
}

func nodeTypeFromHint(entry Value, depth int) models.NodeType {
	for _, key := range []string{"toc_target_type", "type", "node_type"} {
		hint := strings.ToLower(entry.StringField(key))
		if t, ok := typeHints[hint]; ok {
			return t
		}
	}
	return models.NodeTypeForDepth(depth)
}

// fragmentText strips markup from an HTML fragment such as a catalog description or
// a title carrying numbering spans.
func fragmentText(s string) string {
	if !strings.Contains(s, "<") {
		return htmlutil.CleanText(s)
	}
	doc, err := htmlutil.ParseString(s)
	if err != nil {
		return htmlutil.CleanText(s)
	}
	parts := make([]string, 0)
	doc.Find("body").Contents().Each(func(_ int, sel *goquery.Selection) {
		if t := htmlutil.Text(sel); t != "" {
			parts = append(parts, t)
		}
	})
	return htmlutil.CleanText(strings.Join(parts, " "))
}
