package discovery

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/aleister1102/oerscout/internal/config"
	"github.com/aleister1102/oerscout/internal/fetcher"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFetcher(t *testing.T) *fetcher.Fetcher {
	t.Helper()
	cfg := config.NewDefaultFetcherConfig()
	cfg.DefaultRatePerMinute = 6000
	cfg.TimeoutSecs = 5
	noWait := func(ctx context.Context, _ time.Duration) error { return ctx.Err() }
	return fetcher.New(cfg, zerolog.Nop(), fetcher.WithSleeper(noWait))
}

// serve answers path -> HTML; everything else, robots.txt included, is 404.
func serve(t *testing.T, pages map[string]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := pages[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

// localhostURL rewrites an httptest URL so its hostname differs from the search server's.
func localhostURL(raw string) string {
	return strings.Replace(raw, "127.0.0.1", "localhost", 1)
}

func searchPage(hits map[string]string, order []string) string {
	var b strings.Builder
	b.WriteString(`<html><body><a href="/settings">Settings</a>`)
	for _, title := range order {
		b.WriteString(`<div class="result"><a class="result__a" href="/l/?uddg=` + url.QueryEscape(hits[title]) + `">` + title + `</a></div>`)
	}
	b.WriteString(`</body></html>`)
	return b.String()
}

func TestWebSearcher_Search(t *testing.T) {
	hits := map[string]string{
		"Widget blog":           "https://blog.example.com/widgets",
		"Widget Framework Docs": "https://docs.example.com/widgets/",
	}
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/html/" {
			http.NotFound(w, r)
			return
		}
		gotQuery = r.URL.Query().Get("q")
		_, _ = w.Write([]byte(searchPage(hits, []string{"Widget blog", "Widget Framework Docs", "Widget blog"})))
	}))
	t.Cleanup(srv.Close)

	w := NewWebSearcher(newTestFetcher(t), srv.URL+"/html/?q={query}", zerolog.Nop())
	got, err := w.Search(context.Background(), "widget framework")
	require.NoError(t, err)
	assert.Equal(t, "widget framework", gotQuery)
	require.Len(t, got, 2)
	assert.Equal(t, SearchHit{Title: "Widget blog", URL: "https://blog.example.com/widgets"}, got[0])

	hit, ok := FirstDocLike(got)
	require.True(t, ok)
	assert.Equal(t, "Widget Framework Docs", hit.Title)
}

func TestWebSearcher_FallsBackToPlainLinks(t *testing.T) {
	srv := serve(t, map[string]string{
		"/search": `<html><body><a href="/next">Next page</a><a href="https://learn.example.net/course">Learn widgets</a></body></html>`,
	})
	w := NewWebSearcher(newTestFetcher(t), srv.URL+"/search?q={query}", zerolog.Nop())
	got, err := w.Search(context.Background(), "widgets")
	require.NoError(t, err)
	assert.Equal(t, []SearchHit{{Title: "Learn widgets", URL: "https://learn.example.net/course"}}, got)
}

func TestWebSearcher_FetchFailure(t *testing.T) {
	srv := serve(t, nil)
	w := NewWebSearcher(newTestFetcher(t), srv.URL+"/missing?q={query}", zerolog.Nop())
	_, err := w.Search(context.Background(), "widgets")
	assert.Error(t, err)
}

func TestLooksLikeDocs(t *testing.T) {
	tests := []struct {
		url  string
		want bool
	}{
		{"https://docs.python.org/3/", true},
		{"https://developer.mozilla.org/en-US/", true},
		{"https://learn.microsoft.com/", true},
		{"https://flask.readthedocs.io/en/latest/", true},
		{"https://example.com/docs/intro", true},
		{"https://example.com/tutorial/part-1", true},
		{"https://www.example.com/pricing", false},
		{"https://blog.example.com/widgets", false},
		{"not a url", false},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			assert.Equal(t, tt.want, LooksLikeDocs(tt.url))
		})
	}
}
