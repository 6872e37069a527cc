package adapters

import (
	"context"
	"regexp"
	"strconv"

	"github.com/PuerkitoBio/goquery"
	"github.com/aleister1102/oerscout/internal/htmlutil"
	"github.com/aleister1102/oerscout/internal/models"
	"github.com/rs/zerolog"
)

const curatedMaxDepth = 4

// CuratedCourse is one hand-maintained catalog entry.
type CuratedCourse struct {
	Slug        string
	Title       string
	URL         string
	Description string
	Subjects    []string
}

// DefaultCuratedCourses is the built-in course catalog.
var DefaultCuratedCourses = []CuratedCourse{
	{
		Slug:        "6-0001-intro-cs-python",
		Title:       "Introduction to Computer Science and Programming in Python",
		URL:         "https://ocw.mit.edu/courses/6-0001-introduction-to-computer-science-and-programming-in-python-fall-2016/",
		Description: "Introduction to computer science as a tool to solve real-world analytical problems using Python.",
		Subjects:    []string{"computer science", "programming", "python"},
	},
	{
		Slug:        "6-006-intro-algorithms",
		Title:       "Introduction to Algorithms",
		URL:         "https://ocw.mit.edu/courses/6-006-introduction-to-algorithms-spring-2020/",
		Description: "Mathematical modeling of computational problems, common algorithms, algorithmic paradigms and data structures.",
		Subjects:    []string{"computer science", "algorithms", "data structures"},
	},
	{
		Slug:        "18-06-linear-algebra",
		Title:       "Linear Algebra",
		URL:         "https://ocw.mit.edu/courses/18-06-linear-algebra-spring-2010/",
		Description: "Matrix theory and linear algebra with applications to differential equations and statistics.",
		Subjects:    []string{"mathematics", "linear algebra"},
	},
	{
		Slug:        "18-01-single-variable-calculus",
		Title:       "Single Variable Calculus",
		URL:         "https://ocw.mit.edu/courses/18-01sc-single-variable-calculus-fall-2010/",
		Description: "Differentiation and integration of functions of one variable, with applications.",
		Subjects:    []string{"mathematics", "calculus"},
	},
	{
		Slug:        "8-01-classical-mechanics",
		Title:       "Classical Mechanics",
		URL:         "https://ocw.mit.edu/courses/8-01sc-classical-mechanics-fall-2016/",
		Description: "Newtonian mechanics, kinematics, work and energy, momentum and rotational motion.",
		Subjects:    []string{"physics", "mechanics"},
	},
}

var (
	defaultNavSelectors = []string{
		"#course-nav",
		"nav.course-nav",
		".course-nav",
		"#left-nav",
		"nav[aria-label='Course']",
		".sidebar nav",
		"nav",
	}
	defaultIndexKeywords = regexp.MustCompile(`(?i)\b(lecture|assignment|reading|exam|problem set|recitation|video|notes)s?\b`)
	defaultIndexURL      = regexp.MustCompile(`(?i)/pages/(lecture|assignment|reading|exam|problem-set|recitation|video|notes)[^/]*/?$`)
	resourceLinkSelector = `a[href$=".pdf"], a[href*="/resources/"]`
)

// CuratedAdapter serves a fixed course catalog and maps each course by scraping its
// navigation, expanding index pages into their listed resources.
type CuratedAdapter struct {
	Base
	Courses       []CuratedCourse
	LicenseName   string
	LicenseURL    string
	NavSelectors  []string
	IndexKeywords *regexp.Regexp
	IndexURL      *regexp.Regexp
}

// NewCuratedAdapter creates the curated adapter with the built-in catalog.
func NewCuratedAdapter(f PageFetcher, logger zerolog.Logger) *CuratedAdapter {
	return &CuratedAdapter{
		Base:          newBase(f, logger, "CuratedAdapter"),
		Courses:       DefaultCuratedCourses,
		LicenseName:   "CC BY-NC-SA 4.0",
		LicenseURL:    "https://creativecommons.org/licenses/by-nc-sa/4.0/",
		NavSelectors:  defaultNavSelectors,
		IndexKeywords: defaultIndexKeywords,
		IndexURL:      defaultIndexURL,
	}
}

// Type implements Adapter.
func (a *CuratedAdapter) Type() models.SourceType {
	return models.SourceTypeCuratedCourse
}

// DiscoverAssets returns the fixed catalog. A "courses" list in cfg replaces it.
func (a *CuratedAdapter) DiscoverAssets(ctx context.Context, seedURL string, cfg map[string]interface{}) ([]models.AssetCandidate, error) {
	opts := Options(cfg)
	courses := a.Courses
	if configured := coursesFromOptions(opts); len(configured) > 0 {
		courses = configured
	}
	licenseName := opts.String("license_name", a.LicenseName)
	licenseURL := opts.String("license_url", a.LicenseURL)

	candidates := make([]models.AssetCandidate, 0, len(courses))
	for _, c := range courses {
		slug := c.Slug
		if slug == "" {
			slug = Slugify(c.Title)
		}
		candidates = append(candidates, models.AssetCandidate{
			Slug:              slug,
			Title:             c.Title,
			URL:               c.URL,
			Description:       c.Description,
			Subjects:          append([]string(nil), c.Subjects...),
			LicenseName:       licenseName,
			LicenseURL:        licenseURL,
			LicenseConfidence: 0.9,
			Metadata:          map[string]interface{}{"catalog": "curated"},
		})
	}
	a.logger.Debug().Str("action", "discover_assets").Int("courses", len(candidates)).Msg("Curated catalog listed")
	return candidates, nil
}

func coursesFromOptions(opts Options) []CuratedCourse {
	var courses []CuratedCourse
	for _, m := range opts.Maps("courses") {
		o := Options(m)
		c := CuratedCourse{
			Slug:        o.String("slug", ""),
			Title:       o.String("title", ""),
			URL:         o.String("url", ""),
			Description: o.String("description", ""),
			Subjects:    o.Strings("subjects"),
		}
		if c.Title != "" && c.URL != "" {
			courses = append(courses, c)
		}
	}
	return courses
}

// Validate implements Adapter.
func (a *CuratedAdapter) Validate(ctx context.Context, candidate models.AssetCandidate, baseURL string) models.ValidationResult {
	return a.ValidateCommon(ctx, candidate)
}

// MapToc scrapes the course navigation. Without navigation the page headings are
// used, and failing that a single node for the course page itself.
func (a *CuratedAdapter) MapToc(ctx context.Context, candidate models.AssetCandidate, baseURL string) ([]*models.TocNode, error) {
	doc, res, err := a.FetchDocument(ctx, candidate.URL)
	if err != nil {
		a.logger.Warn().Str("action", "map_toc").Str("url", candidate.URL).Int("status", res.Status).Err(err).Msg("Course page fetch failed")
		return []*models.TocNode{}, nil
	}
	pageURL := res.FinalURL

	var roots []*models.TocNode
	if nav, selector := htmlutil.FirstMatch(doc.Selection, a.NavSelectors); nav != nil {
		list := nav.Find("ul, ol").First()
		roots = htmlutil.ParseNestedList(list, pageURL, 0, curatedMaxDepth)
		a.logger.Debug().Str("selector", selector).Int("roots", len(roots)).Msg("Navigation container found")
	}

	if len(roots) > 0 {
		slugTree(roots, candidate.Slug)
		flat := a.expandIndexNodes(ctx, FlattenTree(roots), candidate.Slug)
		return flat, nil
	}

	roots = headingNodes(doc.Selection, pageURL)
	if len(roots) == 0 {
		a.logger.Debug().Str("url", candidate.URL).Msg("No navigation or headings, using synthetic root")
		roots = []*models.TocNode{{
			Title:    candidate.Title,
			URL:      candidate.URL,
			NodeType: models.NodeTypeChapter,
		}}
	}
	slugTree(roots, candidate.Slug)
	return FlattenTree(roots), nil
}

func (a *CuratedAdapter) isIndexNode(n *models.TocNode) bool {
	return n.URL != "" && a.IndexKeywords.MatchString(n.Title) && a.IndexURL.MatchString(n.URL)
}

// expandIndexNodes replaces each leaf index node with the rows of the table on its
// page. Children take the index node's place, depth and parent. Their slugs are
// deduplicated against every other node, and sort order is renumbered afterwards.
func (a *CuratedAdapter) expandIndexNodes(ctx context.Context, flat []*models.TocNode, assetSlug string) []*models.TocNode {
	hasChildren := make(map[string]bool, len(flat))
	for _, n := range flat {
		if n.ParentSlug != "" {
			hasChildren[n.ParentSlug] = true
		}
	}

	out := make([]*models.TocNode, 0, len(flat))
	slugs := models.NewSlugSet(flat)
	expanded := 0
	for _, n := range flat {
		if hasChildren[n.Slug] || !a.isIndexNode(n) {
			out = append(out, n)
			continue
		}
		children := a.indexChildren(ctx, n, assetSlug)
		if len(children) == 0 {
			out = append(out, n)
			continue
		}
		for _, c := range children {
			c.Slug = slugs.Unique(c.Slug, len(out))
			out = append(out, c)
		}
		expanded++
	}

	for i, n := range out {
		n.SortOrder = i
	}
	if expanded > 0 {
		a.logger.Debug().Str("asset", assetSlug).Int("expanded", expanded).Int("nodes", len(out)).Msg("Index nodes expanded")
	}
	return out
}

// indexChildren fetches an index page and turns its table rows into nodes.
func (a *CuratedAdapter) indexChildren(ctx context.Context, index *models.TocNode, assetSlug string) []*models.TocNode {
	doc, res, err := a.FetchDocument(ctx, index.URL)
	if err != nil {
		a.logger.Warn().Str("url", index.URL).Int("status", res.Status).Err(err).Msg("Index page fetch failed, keeping node")
		return nil
	}

	var children []*models.TocNode
	doc.Find("table").First().Each(func(_ int, table *goquery.Selection) {
		for i, row := range htmlutil.TableRows(table, true) {
			title := richerCell(row)
			if title == "" {
				continue
			}
			link := row.Find(resourceLinkSelector).First()
			if link.Length() == 0 {
				link = row.Find("a[href]").First()
			}
			childURL := index.URL
			if href, ok := link.Attr("href"); ok && !htmlutil.IsExcludedHref(href) {
				childURL = ResolveURL(href, res.FinalURL)
			}
			children = append(children, &models.TocNode{
				Slug:       nodeSlug(index.Slug, title, strconv.Itoa(i+1)),
				Title:      title,
				URL:        childURL,
				NodeType:   index.NodeType,
				Depth:      index.Depth,
				ParentSlug: index.ParentSlug,
				Metadata:   map[string]interface{}{"expanded_from": index.Title, "row": i},
			})
		}
	})
	return children
}

// richerCell returns the longer text of a row's first two cells.
func richerCell(row *goquery.Selection) string {
	cells := row.ChildrenFiltered("td, th")
	best := ""
	cells.Slice(0, minInt(2, cells.Length())).Each(func(_ int, c *goquery.Selection) {
		if t := htmlutil.Text(c); len(t) > len(best) {
			best = t
		}
	})
	return best
}

// headingNodes builds a two-level tree from h2/h3 headings in the main content.
func headingNodes(doc *goquery.Selection, pageURL string) []*models.TocNode {
	content, _ := htmlutil.FirstMatch(doc, []string{"main", "article", "#main-content", "#content", ".content", "body"})
	if content == nil {
		return nil
	}
	var roots []*models.TocNode
	for _, h := range htmlutil.ExtractHeadings(content, 2, 3) {
		node := &models.TocNode{Title: h.Text, URL: pageURL}
		if h.ID != "" {
			node.URL = pageURL + "#" + h.ID
		}
		if h.Level == 3 && len(roots) > 0 {
			parent := roots[len(roots)-1]
			node.NodeType = models.NodeTypeSection
			parent.Children = append(parent.Children, node)
			continue
		}
		node.NodeType = models.NodeTypeChapter
		roots = append(roots, node)
	}
	return roots
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
