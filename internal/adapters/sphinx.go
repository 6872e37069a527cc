package adapters

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/aleister1102/oerscout/internal/fetcher"
	"github.com/aleister1102/oerscout/internal/htmlutil"
	"github.com/aleister1102/oerscout/internal/models"
	"github.com/aleister1102/oerscout/internal/urlhandler"
	"github.com/rs/zerolog"
)

const (
	familyPython   = "python"
	sphinxMaxDepth = 5
)

// DocSection is a top-level section of a documentation family.
type DocSection struct {
	Path  string
	Title string
}

// DocFamily describes a well-known documentation site with fixed versions and
// sections.
type DocFamily struct {
	Name       string
	Root       string
	Versions   []string
	Sections   []DocSection
	Subjects   []string
	License    string
	LicenseURL string
}

// PythonDocs is the Python documentation family.
var PythonDocs = DocFamily{
	Name:     familyPython,
	Root:     "https://docs.python.org/",
	Versions: []string{"3.13", "3.12", "3.11", "3.10"},
	Sections: []DocSection{
		{Path: "tutorial/index.html", Title: "The Python Tutorial"},
		{Path: "library/index.html", Title: "The Python Standard Library"},
		{Path: "reference/index.html", Title: "The Python Language Reference"},
		{Path: "howto/index.html", Title: "Python HOWTOs"},
		{Path: "using/index.html", Title: "Python Setup and Usage"},
	},
	Subjects:   []string{"programming", "python", "computer science"},
	License:    "PSF License",
	LicenseURL: "https://docs.python.org/3/license.html",
}

var (
	versionSelectors = []string{
		"select#version-switcher option[value]",
		".version_switcher_placeholder select option[value]",
		"select.version-switcher option[value]",
		"#version-select option[value]",
		".rst-other-versions dl:first-of-type dd a[href]",
	}
	docContainerSelectors = []string{
		".toctree-wrapper",
		".sphinxsidebarwrapper",
		".wy-menu-vertical",
		".bd-docs-nav",
		".bd-sidebar nav",
		"nav[role='navigation']",
		"[role='navigation']",
		"nav",
	}
	toctreeLevelRegex = regexp.MustCompile(`\btoctree-l(\d+)\b`)
)

// SphinxAdapter handles documentation generated by Sphinx and similar tools.
type SphinxAdapter struct {
	Base
	Families map[string]DocFamily
}

// NewSphinxAdapter creates the documentation adapter.
func NewSphinxAdapter(f PageFetcher, logger zerolog.Logger) *SphinxAdapter {
	return &SphinxAdapter{
		Base:     newBase(f, logger, "SphinxAdapter"),
		Families: map[string]DocFamily{familyPython: PythonDocs},
	}
}

// Type implements Adapter.
func (a *SphinxAdapter) Type() models.SourceType {
	return models.SourceTypeSphinxDocs
}

// DiscoverAssets probes the versions of a known family, or looks for a version
// selector on the seed page and otherwise treats the page as a single asset.
func (a *SphinxAdapter) DiscoverAssets(ctx context.Context, seedURL string, cfg map[string]interface{}) ([]models.AssetCandidate, error) {
	opts := Options(cfg)
	if family, ok := a.familyFor(seedURL, opts); ok {
		if versions := opts.Strings("versions"); len(versions) > 0 {
			family.Versions = versions
		}
		return a.discoverFamily(ctx, family), nil
	}
	return a.discoverGeneric(ctx, seedURL)
}

func (a *SphinxAdapter) familyFor(seedURL string, opts Options) (DocFamily, bool) {
	if name := opts.String("family", ""); name != "" {
		f, ok := a.Families[strings.ToLower(name)]
		return f, ok
	}
	for _, f := range a.Families {
		if urlhandler.SameHost(seedURL, f.Root) {
			return f, true
		}
	}
	return DocFamily{}, false
}

func (a *SphinxAdapter) discoverFamily(ctx context.Context, family DocFamily) []models.AssetCandidate {
	var candidates []models.AssetCandidate
	for _, version := range family.Versions {
		versionURL := ResolveURL(version+"/", family.Root)
		res := a.fetcher.Fetch(ctx, versionURL, fetcher.FetchOptions{})
		if !res.OK {
			a.logger.Debug().Str("version", version).Int("status", res.Status).Msg("Version not available, skipping")
			continue
		}
		title := strings.ToUpper(family.Name[:1]) + family.Name[1:] + " " + version + " Documentation"
		candidates = append(candidates, models.AssetCandidate{
			Slug:              Slugify(family.Name + " " + strings.ReplaceAll(version, ".", "-")),
			Title:             title,
			URL:               versionURL,
			Subjects:          append([]string(nil), family.Subjects...),
			LicenseName:       family.License,
			LicenseURL:        family.LicenseURL,
			LicenseConfidence: 0.85,
			Metadata: map[string]interface{}{
				"family":  family.Name,
				"version": version,
			},
		})
	}
	a.logger.Info().Str("family", family.Name).Int("versions", len(candidates)).Msg("Documentation versions discovered")
	return candidates
}

func (a *SphinxAdapter) discoverGeneric(ctx context.Context, seedURL string) ([]models.AssetCandidate, error) {
	doc, res, err := a.FetchDocument(ctx, seedURL)
	if err != nil {
		return nil, err
	}
	pageURL := res.FinalURL
	siteTitle := docTitle(doc.Selection)
	if siteTitle == "" {
		siteTitle, _ = urlhandler.Hostname(pageURL)
	}

	seen := make(map[string]bool)
	var candidates []models.AssetCandidate
	if options, selector := htmlutil.FirstMatch(doc.Selection, versionSelectors); options != nil {
		doc.Find(selector).Each(func(_ int, opt *goquery.Selection) {
			target := opt.AttrOr("value", opt.AttrOr("href", ""))
			label := htmlutil.Text(opt)
			if target == "" || label == "" || htmlutil.IsExcludedHref(target) {
				return
			}
			versionURL := ResolveURL(target, pageURL)
			if !urlhandler.SameHost(versionURL, pageURL) || seen[versionURL] {
				return
			}
			seen[versionURL] = true
			candidates = append(candidates, models.AssetCandidate{
				Slug:     Slugify(siteTitle + " " + label),
				Title:    siteTitle + " (" + label + ")",
				URL:      versionURL,
				Metadata: map[string]interface{}{"version": label},
			})
		})
	}

	if len(candidates) == 0 {
		candidates = append(candidates, models.AssetCandidate{
			Slug:        Slugify(siteTitle),
			Title:       siteTitle,
			URL:         pageURL,
			Description: htmlutil.MetaContent(doc.Selection, "description"),
		})
	}
	a.logger.Info().Str("url", seedURL).Int("assets", len(candidates)).Msg("Documentation assets discovered")
	return candidates, nil
}

// docTitle returns the project name Sphinx appends to page titles, or the page title.
func docTitle(doc *goquery.Selection) string {
	title := htmlutil.Text(doc.Find("title").First())
	for _, sep := range []string{" — ", " - ", " | "} {
		if i := strings.LastIndex(title, sep); i > 0 {
			return strings.TrimSpace(title[i+len(sep):])
		}
	}
	if title == "" {
		title = htmlutil.PageTitle(doc)
	}
	return title
}

// Validate implements Adapter.
func (a *SphinxAdapter) Validate(ctx context.Context, candidate models.AssetCandidate, baseURL string) models.ValidationResult {
	return a.ValidateCommon(ctx, candidate)
}

// MapToc implements Adapter.
func (a *SphinxAdapter) MapToc(ctx context.Context, candidate models.AssetCandidate, baseURL string) ([]*models.TocNode, error) {
	var roots []*models.TocNode
	if family, ok := a.Families[candidate.MetadataString("family")]; ok {
		roots = a.mapFamily(ctx, family, candidate)
	} else {
		roots = a.mapGeneric(ctx, candidate)
	}
	if len(roots) == 0 {
		return []*models.TocNode{}, nil
	}
	slugTree(roots, candidate.Slug)
	return FlattenTree(roots), nil
}

// mapFamily fetches every fixed section page and parses its toctree by class level.
func (a *SphinxAdapter) mapFamily(ctx context.Context, family DocFamily, candidate models.AssetCandidate) []*models.TocNode {
	var roots []*models.TocNode
	for _, section := range family.Sections {
		sectionURL := ResolveURL(section.Path, candidate.URL)
		doc, res, err := a.FetchDocument(ctx, sectionURL)
		if err != nil {
			a.logger.Warn().Str("section", section.Title).Str("url", sectionURL).Int("status", res.Status).Err(err).Msg("Section fetch failed, skipping")
			continue
		}
		root := &models.TocNode{
			Title:    section.Title,
			URL:      sectionURL,
			NodeType: models.NodeTypePart,
		}
		root.Children = toctreeNodes(doc.Selection, res.FinalURL)
		roots = append(roots, root)
	}
	return roots
}

// toctreeNodes builds a tree from li.toctree-l{n} items, skipping external links
// and titles already seen.
func toctreeNodes(doc *goquery.Selection, pageURL string) []*models.TocNode {
	var roots []*models.TocNode
	stack := make(map[int]*models.TocNode)
	seen := make(map[string]bool)

	doc.Find(".toctree-wrapper li[class*='toctree-l']").Each(func(_ int, li *goquery.Selection) {
		m := toctreeLevelRegex.FindStringSubmatch(li.AttrOr("class", ""))
		if m == nil {
			return
		}
		level, _ := strconv.Atoi(m[1])
		if level < 1 || level > sphinxMaxDepth {
			return
		}
		link := li.ChildrenFiltered("a").First()
		href, ok := link.Attr("href")
		if !ok || htmlutil.IsExcludedHref(href) || link.HasClass("external") || urlhandler.IsExternal(href, pageURL) {
			return
		}
		title := htmlutil.Text(link)
		key := strings.ToLower(title)
		if title == "" || seen[key] {
			return
		}
		seen[key] = true

		node := &models.TocNode{
			Title:    title,
			URL:      ResolveURL(href, pageURL),
			NodeType: models.NodeTypeForDepth(level - 1),
		}
		for l := range stack {
			if l >= level {
				delete(stack, l)
			}
		}
		if parent, ok := stack[level-1]; ok && level > 1 {
			parent.Children = append(parent.Children, node)
		} else {
			roots = append(roots, node)
		}
		stack[level] = node
	})
	return roots
}

// mapGeneric tries the container selectors in order and parses the nested lists of
// the first one that yields nodes.
func (a *SphinxAdapter) mapGeneric(ctx context.Context, candidate models.AssetCandidate) []*models.TocNode {
	doc, res, err := a.FetchDocument(ctx, candidate.URL)
	if err != nil {
		a.logger.Warn().Str("action", "map_toc").Str("url", candidate.URL).Int("status", res.Status).Err(err).Msg("Documentation page fetch failed")
		return nil
	}
	for _, selector := range docContainerSelectors {
		var roots []*models.TocNode
		doc.Find(selector).Each(func(_ int, container *goquery.Selection) {
			list := container.Find("ul, ol").First()
			roots = append(roots, htmlutil.ParseNestedList(list, res.FinalURL, 0, sphinxMaxDepth)...)
		})
		if len(roots) > 0 {
			a.logger.Debug().Str("selector", selector).Int("roots", len(roots)).Msg("Documentation TOC container found")
			return roots
		}
	}
	return nil
}
