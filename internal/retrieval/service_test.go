package retrieval

import (
	"context"
	"testing"
	"time"

	"github.com/aleister1102/oerscout/internal/config"
	"github.com/aleister1102/oerscout/internal/models"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sectionPage(title string) string {
	return `<html><body><main><h1>` + title + `</h1>
		<p>This section develops ` + title + ` with worked examples and exercises.</p></main></body></html>`
}

func strPtr(s string) *string { return &s }

func TestRetrieveNodesContent(t *testing.T) {
	srv := serve(t, map[string]string{
		"/1-1": sectionPage("1.1 Sets"),
		"/1-2": sectionPage("1.2 Functions"),
		"/1-4": sectionPage("1.4 Graphs"),
	})

	var sleeps []time.Duration
	sleeper := func(ctx context.Context, d time.Duration) error {
		sleeps = append(sleeps, d)
		return ctx.Err()
	}
	svc := NewService(newTestFetcher(t), config.NewDefaultRetrievalConfig(), zerolog.Nop(), WithSleeper(sleeper))

	nodes := []*models.TocNode{
		{ID: "n1", Slug: "ch1", Title: "Chapter 1 Functions", SortOrder: 0},
		{ID: "n2", Slug: "ch1-1", Title: "1.1 Sets", URL: srv.URL + "/1-1", ParentID: strPtr("n1"), Depth: 1, SortOrder: 1},
		{ID: "n3", Slug: "ch1-2", Title: "1.2 Functions", URL: srv.URL + "/1-2", ParentID: strPtr("n1"), Depth: 1, SortOrder: 2},
		{ID: "n4", Slug: "ch1-3", Title: "1.3 Missing", URL: srv.URL + "/missing", ParentID: strPtr("n1"), Depth: 1, SortOrder: 3},
		{ID: "n5", Slug: "ch1-4", Title: "1.4 Graphs", URL: srv.URL + "/1-4", ParentSlug: "ch1", Depth: 1, SortOrder: 4},
	}
	asset := &models.Asset{Title: "Calculus Volume 1"}

	got := svc.RetrieveNodesContent(context.Background(), nodes, asset)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"n2", "n3", "n5"}, []string{got[0].NodeID, got[1].NodeID, got[2].NodeID})
	assert.Equal(t, []string{"Chapter 1 Functions", "1.2 Functions"}, got[1].SectionPath)
	assert.Equal(t, []string{"Chapter 1 Functions", "1.4 Graphs"}, got[2].SectionPath)
	assert.Equal(t, "Calculus Volume 1", got[0].SourceTitle)
	assert.Equal(t, 4, got[2].SortOrder)

	assert.Equal(t, []time.Duration{500 * time.Millisecond}, sleeps)

	display := FormatCitationsDisplay(BuildCitations(got))
	assert.Equal(t, "Based on Calculus Volume 1, Sections 1.1, 1.2, 1.4", display)
}

func TestRetrieveNodesContent_NothingToFetch(t *testing.T) {
	svc := NewService(newTestFetcher(t), config.NewDefaultRetrievalConfig(), zerolog.Nop())
	got := svc.RetrieveNodesContent(context.Background(), []*models.TocNode{{Title: "No URL"}}, nil)
	assert.Empty(t, got)
}

func TestSectionPaths(t *testing.T) {
	nodes := []*models.TocNode{
		{Slug: "a", Title: "Part A"},
		{Slug: "a-1", Title: "Chapter 1", ParentSlug: "a"},
		{Slug: "a-1-1", Title: "1.1 Intro", ParentSlug: "a-1"},
		{Slug: "loop", Title: "Loop", ParentSlug: "loop"},
	}
	paths := SectionPaths(nodes)
	assert.Equal(t, []string{"Part A"}, paths[nodes[0]])
	assert.Equal(t, []string{"Part A", "Chapter 1", "1.1 Intro"}, paths[nodes[2]])
	assert.Equal(t, "Loop", paths[nodes[3]][len(paths[nodes[3]])-1])
}

func TestRetrieveSelected_KeepsAncestorPath(t *testing.T) {
	srv := serve(t, map[string]string{"/1-2": sectionPage("1.2 Functions")})
	noWait := func(ctx context.Context, _ time.Duration) error { return ctx.Err() }
	svc := NewService(newTestFetcher(t), config.NewDefaultRetrievalConfig(), zerolog.Nop(), WithSleeper(noWait))

	outline := []*models.TocNode{
		{ID: "n1", Slug: "ch1", Title: "Chapter 1", URL: srv.URL + "/ch1"},
		{ID: "n2", Slug: "ch1-2", Title: "1.2 Functions", URL: srv.URL + "/1-2", ParentID: strPtr("n1"), Depth: 1, SortOrder: 1},
	}
	got := svc.RetrieveSelected(context.Background(), outline, outline[1:], &models.Asset{Title: "Calculus"})
	require.Len(t, got, 1)
	assert.Equal(t, []string{"Chapter 1", "1.2 Functions"}, got[0].SectionPath)
	assert.Equal(t, "Based on Calculus, Section 1.2", FormatCitationsDisplay(BuildCitations(got)))
}
