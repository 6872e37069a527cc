package discovery

import (
	"context"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/aleister1102/oerscout/internal/common"
	"github.com/aleister1102/oerscout/internal/fetcher"
	"github.com/aleister1102/oerscout/internal/htmlutil"
	"github.com/aleister1102/oerscout/internal/urlhandler"
	"github.com/rs/zerolog"
)

// DefaultSearchURLTemplate is the HTML search endpoint used by the web fallback.
const DefaultSearchURLTemplate = "https://html.duckduckgo.com/html/?q={query}"

// PageFetcher fetches raw pages.
type PageFetcher interface {
	Fetch(ctx context.Context, rawURL string, opts fetcher.FetchOptions) *fetcher.Result
}

// SearchHit is one organic result of a web search.
type SearchHit struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

var (
	docHostPrefixes = []string{"docs.", "doc.", "developer.", "developers.", "learn.", "dev.", "wiki.", "book.", "guide."}
	docHostSuffixes = []string{".readthedocs.io", ".gitbook.io", ".github.io"}
	docPathMarkers  = []string{"/docs", "/doc/", "/documentation", "/guide", "/tutorial", "/manual", "/learn", "/book"}
)

// LooksLikeDocs reports whether rawURL has the shape of a documentation site.
func LooksLikeDocs(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return false
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	for _, p := range docHostPrefixes {
		if strings.HasPrefix(host, p) {
			return true
		}
	}
	for _, s := range docHostSuffixes {
		if strings.HasSuffix(host, s) {
			return true
		}
	}
	path := strings.ToLower(u.Path)
	for _, m := range docPathMarkers {
		if strings.Contains(path, m) {
			return true
		}
	}
	return false
}

// FirstDocLike returns the first hit that looks like documentation.
func FirstDocLike(hits []SearchHit) (SearchHit, bool) {
	for _, h := range hits {
		if LooksLikeDocs(h.URL) {
			return h, true
		}
	}
	return SearchHit{}, false
}

// WebSearcher queries an HTML search results page.
type WebSearcher struct {
	fetcher  PageFetcher
	template string
	logger   zerolog.Logger
}

// NewWebSearcher creates a searcher. template must contain "{query}"; an empty
// template selects DefaultSearchURLTemplate.
func NewWebSearcher(f PageFetcher, template string, logger zerolog.Logger) *WebSearcher {
	if strings.TrimSpace(template) == "" {
		template = DefaultSearchURLTemplate
	}
	return &WebSearcher{
		fetcher:  f,
		template: template,
		logger:   logger.With().Str("component", "WebSearcher").Logger(),
	}
}

// Search returns the organic results for query in page order, deduplicated by URL.
// Links back to the search engine itself are dropped.
func (w *WebSearcher) Search(ctx context.Context, query string) ([]SearchHit, error) {
	searchURL := strings.ReplaceAll(w.template, "{query}", url.QueryEscape(strings.TrimSpace(query)))
	res := w.fetcher.Fetch(ctx, searchURL, fetcher.FetchOptions{Accept: "text/html"})
	if !res.OK {
		return nil, common.WrapErrorf(res.Err(), "web search for '%s' failed", query)
	}
	doc, err := htmlutil.Parse(res.Body)
	if err != nil {
		return nil, common.WrapError(err, "failed to parse search results")
	}

	links := doc.Find(".result__a")
	if links.Length() == 0 {
		links = doc.Find("a[href]")
	}
	seen := make(map[string]bool)
	var hits []SearchHit
	links.Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		target := unwrapRedirect(urlhandler.MustResolve(href, res.FinalURL))
		title := htmlutil.Text(a)
		if title == "" || seen[target] || !strings.HasPrefix(target, "http") || urlhandler.SameHost(target, res.FinalURL) {
			return
		}
		seen[target] = true
		hits = append(hits, SearchHit{Title: title, URL: target})
	})
	w.logger.Debug().Str("query", query).Int("hits", len(hits)).Msg("Web search completed")
	return hits, nil
}

// unwrapRedirect follows the "uddg" or "url" parameter search engines use to wrap
// outbound links.
func unwrapRedirect(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	q := u.Query()
	for _, key := range []string{"uddg", "url", "q"} {
		if target := q.Get(key); strings.HasPrefix(target, "http") {
			return target
		}
	}
	return rawURL
}
