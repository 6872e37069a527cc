// Package retrieval fetches and cleans the pages behind TOC nodes and derives
// citation metadata for them.
package retrieval

import (
	"context"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/PuerkitoBio/goquery"
	"github.com/aleister1102/oerscout/internal/adapters"
	"github.com/aleister1102/oerscout/internal/config"
	"github.com/aleister1102/oerscout/internal/fetcher"
	"github.com/aleister1102/oerscout/internal/htmlutil"
	"github.com/aleister1102/oerscout/internal/models"
	"github.com/aleister1102/oerscout/internal/urlhandler"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
)

var (
	// DefaultContentSelectors locate the content area when no hint matches.
	DefaultContentSelectors = []string{
		"main", "article", "[role='main']", "#main-content", "#content", ".content",
		".main-content", "div.body", ".document",
	}

	// DefaultExcludeSelectors are stripped before anything is extracted.
	DefaultExcludeSelectors = []string{
		"script", "style", "noscript", "template", "iframe", "form",
		"nav", "aside", "header", "footer",
		".sidebar", ".sphinxsidebar", ".related", ".breadcrumb", ".breadcrumbs",
		".toc", "#toc", ".headerlink", ".footnotes", ".note", ".admonition.note",
		".os-teacher", "[role='navigation']", "[aria-hidden='true']",
	}
)

const (
	keyContentSelector = "content_selector"
	keyTitleSelector   = "title_selector"
	keyExcludeSelector = "exclude_selector"
)

// PageFetcher is the part of the polite fetcher used for retrieval.
type PageFetcher interface {
	Fetch(ctx context.Context, rawURL string, opts fetcher.FetchOptions) *fetcher.Result
}

// SelectorHints steer extraction towards a source's content markup. Content
// selectors are tried before DefaultContentSelectors; Exclude adds to
// DefaultExcludeSelectors.
type SelectorHints struct {
	Content []string
	Title   string
	Exclude []string
}

// HintsFromMetadata reads hints from an asset's metadata, which carries the seed
// config keys content_selector, title_selector and exclude_selector.
func HintsFromMetadata(meta map[string]interface{}) SelectorHints {
	opts := adapters.Options(meta)
	return SelectorHints{
		Content: opts.Strings(keyContentSelector),
		Title:   opts.String(keyTitleSelector, ""),
		Exclude: opts.Strings(keyExcludeSelector),
	}
}

// Extractor turns a page into ExtractedContent.
type Extractor struct {
	fetcher      PageFetcher
	minParagraph int
	sanitizer    *bluemonday.Policy
	markdown     *converter.Converter
	logger       zerolog.Logger
}

// NewExtractor creates an extractor using cfg.MinParagraphLength.
func NewExtractor(f PageFetcher, cfg config.RetrievalConfig, logger zerolog.Logger) *Extractor {
	return &Extractor{
		fetcher:      f,
		minParagraph: cfg.MinParagraphLength,
		sanitizer:    bluemonday.UGCPolicy(),
		markdown: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(),
			),
		),
		logger: logger.With().Str("component", "ContentExtractor").Logger(),
	}
}

// ExtractContentFromURL fetches rawURL and extracts its content area. It returns nil
// when the fetch fails, the page cannot be parsed or no content area is found.
func (e *Extractor) ExtractContentFromURL(ctx context.Context, rawURL string, hints SelectorHints) *models.ExtractedContent {
	res := e.fetcher.Fetch(ctx, rawURL, fetcher.FetchOptions{Accept: "text/html,application/xhtml+xml"})
	if !res.OK {
		e.logger.Warn().Str("url", rawURL).Int("status", res.Status).Str("error", res.Error).Msg("Content fetch failed")
		return nil
	}
	doc, err := htmlutil.Parse(res.Body)
	if err != nil {
		e.logger.Warn().Err(err).Str("url", rawURL).Msg("Failed to parse content page")
		return nil
	}

	pageURL := res.FinalURL
	if pageURL == "" {
		pageURL = rawURL
	}
	content := e.extractDocument(ctx, doc, pageURL, hints)
	if content == nil {
		e.logger.Debug().Str("url", rawURL).Msg("No content area found")
		return nil
	}
	content.URL = rawURL
	return content
}

func (e *Extractor) extractDocument(ctx context.Context, doc *goquery.Document, pageURL string, hints SelectorHints) *models.ExtractedContent {
	title := ""
	if hints.Title != "" {
		title = htmlutil.Text(doc.Find(hints.Title).First())
	}
	pageTitle := htmlutil.PageTitle(doc.Selection)

	doc.Find(strings.Join(append(append([]string{}, DefaultExcludeSelectors...), hints.Exclude...), ", ")).Remove()

	area, _ := htmlutil.FirstMatch(doc.Selection, append(append([]string{}, hints.Content...), DefaultContentSelectors...))
	if area == nil {
		return nil
	}
	if title == "" {
		title = htmlutil.Text(area.Find("h1").First())
	}
	if title == "" {
		title = pageTitle
	}

	out := &models.ExtractedContent{
		Title:      title,
		Headings:   []string{},
		Paragraphs: []string{},
		Figures:    []models.Figure{},
	}
	for _, h := range htmlutil.ExtractHeadings(area) {
		out.Headings = append(out.Headings, h.Text)
	}
	area.Find("p").Each(func(_ int, p *goquery.Selection) {
		text := htmlutil.Text(p)
		if len([]rune(text)) < e.minParagraph {
			return
		}
		out.Paragraphs = append(out.Paragraphs, text)
	})
	out.Figures = extractFigures(area, pageURL)
	out.Text = strings.Join(out.Paragraphs, "\n\n")

	if html, err := area.Html(); err == nil {
		md, err := e.markdown.ConvertString(e.sanitizer.Sanitize(html), converter.WithDomain(pageURL), converter.WithContext(ctx))
		if err != nil {
			e.logger.Debug().Err(err).Str("url", pageURL).Msg("Markdown conversion failed")
		} else {
			out.Markdown = strings.TrimSpace(md)
		}
	}
	return out
}

// extractFigures returns captioned figures first, then images outside any figure.
// Every image URL is absolute and appears once.
func extractFigures(area *goquery.Selection, pageURL string) []models.Figure {
	figures := []models.Figure{}
	seen := make(map[string]bool)

	add := func(img *goquery.Selection, caption string) {
		src := strings.TrimSpace(img.AttrOr("src", img.AttrOr("data-src", "")))
		if src == "" || strings.HasPrefix(src, "data:") {
			return
		}
		abs := urlhandler.MustResolve(src, pageURL)
		if seen[abs] {
			return
		}
		seen[abs] = true
		figures = append(figures, models.Figure{
			URL:     abs,
			Alt:     strings.TrimSpace(img.AttrOr("alt", "")),
			Caption: caption,
		})
	}

	area.Find("figure").Each(func(_ int, fig *goquery.Selection) {
		caption := htmlutil.Text(fig.Find("figcaption, .os-caption, .caption").First())
		fig.Find("img").Each(func(_ int, img *goquery.Selection) {
			add(img, caption)
		})
	})
	area.Find("img").Each(func(_ int, img *goquery.Selection) {
		if img.ParentsFiltered("figure").Length() > 0 {
			return
		}
		add(img, "")
	})
	return figures
}
