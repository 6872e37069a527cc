package retrieval

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aleister1102/oerscout/internal/config"
	"github.com/aleister1102/oerscout/internal/fetcher"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const chapterPage = `<html><head><title>Calculus | Open Books</title><script>alert("x")</script></head>
<body>
<header><h1>Open Books</h1></header>
<nav><p>Table of contents with enough words to count as a paragraph.</p></nav>
<main>
  <h1>1.2 Functions</h1>
  <p>A function assigns exactly one output to every input in its domain.</p>
  <p>Short.</p>
  <h2>Definition</h2>
  <div class="note"><p>Teachers may want to skip this note in a first reading.</p></div>
  <figure><img src="/img/f1.png" alt="graph of f"><figcaption>Figure 1.1 A graph</figcaption></figure>
  <h3>Examples</h3>
  <p>The squaring function maps every real number to its square.</p>
  <img src="img/plot.png" alt="plot">
  <img src="/img/f1.png" alt="duplicate">
</main>
<footer><p>Licensed under a Creative Commons Attribution license.</p></footer>
</body></html>`

func newTestFetcher(t *testing.T) *fetcher.Fetcher {
	t.Helper()
	cfg := config.NewDefaultFetcherConfig()
	cfg.DefaultRatePerMinute = 6000
	cfg.TimeoutSecs = 5
	cfg.Retries = 1
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

func TestExtractContentFromURL(t *testing.T) {
	srv := serve(t, map[string]string{"/book/1-2.html": chapterPage})
	e := NewExtractor(newTestFetcher(t), config.NewDefaultRetrievalConfig(), zerolog.Nop())

	got := e.ExtractContentFromURL(context.Background(), srv.URL+"/book/1-2.html", SelectorHints{})
	require.NotNil(t, got)

	assert.Equal(t, srv.URL+"/book/1-2.html", got.URL)
	assert.Equal(t, "1.2 Functions", got.Title)
	assert.Equal(t, []string{"1.2 Functions", "Definition", "Examples"}, got.Headings)
	assert.Equal(t, []string{
		"A function assigns exactly one output to every input in its domain.",
		"The squaring function maps every real number to its square.",
	}, got.Paragraphs)
	assert.Contains(t, got.Text, "exactly one output")

	require.Len(t, got.Figures, 2)
	assert.Equal(t, srv.URL+"/img/f1.png", got.Figures[0].URL)
	assert.Equal(t, "graph of f", got.Figures[0].Alt)
	assert.Equal(t, "Figure 1.1 A graph", got.Figures[0].Caption)
	assert.Equal(t, srv.URL+"/book/img/plot.png", got.Figures[1].URL)
	assert.Empty(t, got.Figures[1].Caption)

	assert.Contains(t, got.Markdown, "# 1.2 Functions")
	assert.Contains(t, got.Markdown, "## Definition")
	assert.NotContains(t, got.Markdown, "alert")
	assert.NotContains(t, got.Markdown, "Teachers may want")
	assert.NotContains(t, got.Markdown, "Creative Commons")
}

func TestExtractContentFromURL_Hints(t *testing.T) {
	srv := serve(t, map[string]string{
		"/page": `<html><body>
			<main><p>Navigation chrome that happens to live inside main.</p></main>
			<div id="chapter-body"><span class="chapter-title">Limits</span>
			<p>A limit describes the value a function approaches near a point.</p>
			<div class="margin-box"><p>Try the interactive widget on the companion site.</p></div></div>
		</body></html>`,
	})
	e := NewExtractor(newTestFetcher(t), config.NewDefaultRetrievalConfig(), zerolog.Nop())

	hints := HintsFromMetadata(map[string]interface{}{
		"content_selector": "#chapter-body",
		"title_selector":   ".chapter-title",
		"exclude_selector": []interface{}{".margin-box"},
	})
	assert.Equal(t, SelectorHints{Content: []string{"#chapter-body"}, Title: ".chapter-title", Exclude: []string{".margin-box"}}, hints)

	got := e.ExtractContentFromURL(context.Background(), srv.URL+"/page", hints)
	require.NotNil(t, got)
	assert.Equal(t, "Limits", got.Title)
	assert.Equal(t, []string{"A limit describes the value a function approaches near a point."}, got.Paragraphs)
}

func TestExtractContentFromURL_MinParagraphLength(t *testing.T) {
	srv := serve(t, map[string]string{"/book/1-2.html": chapterPage})
	cfg := config.NewDefaultRetrievalConfig()
	cfg.MinParagraphLength = 0
	e := NewExtractor(newTestFetcher(t), cfg, zerolog.Nop())

	got := e.ExtractContentFromURL(context.Background(), srv.URL+"/book/1-2.html", SelectorHints{})
	require.NotNil(t, got)
	assert.Contains(t, got.Paragraphs, "Short.")
}

func TestExtractContentFromURL_ReturnsNil(t *testing.T) {
	srv := serve(t, map[string]string{
		"/bare": `<html><body><div><p>Loose text with no recognisable content container.</p></div></body></html>`,
	})
	e := NewExtractor(newTestFetcher(t), config.NewDefaultRetrievalConfig(), zerolog.Nop())

	tests := []struct {
		name string
		path string
	}{
		{"fetch failure", "/missing"},
		{"no content area", "/bare"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Nil(t, e.ExtractContentFromURL(context.Background(), srv.URL+tt.path, SelectorHints{}))
		})
	}
}
