package datastore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/aleister1102/oerscout/internal/config"
	"github.com/aleister1102/oerscout/internal/models"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStores(t *testing.T) map[string]Store {
	t.Helper()
	sqliteStore, err := NewSQLiteStore(filepath.Join(t.TempDir(), "db", "catalog.db"), 2, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqliteStore.Close() })
	return map[string]Store{
		"memory": NewMemoryStore(),
		"sqlite": sqliteStore,
	}
}

func TestStore_SourcesAndAssets(t *testing.T) {
	for name, st := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, err := st.GetSourceByName(ctx, "openstax")
			assert.True(t, IsNotFound(err))

			src, created, err := GetOrCreateSource(ctx, st, &models.Source{Name: "openstax", BaseURL: "https://openstax.org", Type: models.SourceTypeCatalogAPI})
			require.NoError(t, err)
			assert.True(t, created)
			assert.NotEmpty(t, src.ID)
			assert.Equal(t, models.ScanStatusIdle, src.ScanStatus)

			byID, err := st.GetSource(ctx, src.ID)
			require.NoError(t, err)
			assert.Equal(t, "openstax", byID.Name)
			_, err = st.GetSource(ctx, "missing")
			assert.True(t, IsNotFound(err))

			again, created, err := GetOrCreateSource(ctx, st, &models.Source{Name: "openstax"})
			require.NoError(t, err)
			assert.False(t, created)
			assert.Equal(t, src.ID, again.ID)

			src.ScanStatus = models.ScanStatusFailed
			src.ScanError = "boom"
			require.NoError(t, st.UpdateSource(ctx, src))
			got, err := st.GetSourceByName(ctx, "openstax")
			require.NoError(t, err)
			assert.Equal(t, models.ScanStatusFailed, got.ScanStatus)
			assert.Equal(t, "boom", got.ScanError)

			asset, created, err := GetOrCreateAsset(ctx, st, &models.Asset{
				SourceID: src.ID, Slug: "calculus", Title: "Calculus", URL: "https://openstax.org/books/calculus",
				Active: true, Subjects: []string{"math"}, Metadata: map[string]interface{}{"book_slug": "calculus"},
			})
			require.NoError(t, err)
			assert.True(t, created)
			assert.False(t, asset.Active)

			asset.TocExtractionSuccess = true
			asset.TocStats = &models.TocStats{TotalNodes: 3, Chapters: 1, Sections: 2, MaxDepth: 1}
			report := models.NewValidationResult()
			report.AddWarning(models.IssueNoLicense, "none")
			asset.ValidationReport = &report
			require.NoError(t, st.UpdateAsset(ctx, asset))

			loaded, err := st.GetAsset(ctx, asset.ID)
			require.NoError(t, err)
			assert.True(t, loaded.TocExtractionSuccess)
			assert.Equal(t, 3, loaded.TocStats.TotalNodes)
			assert.True(t, loaded.ValidationReport.HasIssue(models.IssueNoLicense))
			assert.Equal(t, []string{"math"}, loaded.Subjects)
			assert.Equal(t, "calculus", loaded.Metadata["book_slug"])

			bySlug, err := st.GetAssetBySlug(ctx, src.ID, "calculus")
			require.NoError(t, err)
			assert.Equal(t, asset.ID, bySlug.ID)

			_, err = st.GetAsset(ctx, "missing")
			assert.True(t, IsNotFound(err))
			assert.True(t, IsNotFound(st.UpdateAsset(ctx, &models.Asset{ID: "missing"})))

			_, _, err = GetOrCreateAsset(ctx, st, &models.Asset{SourceID: src.ID, Slug: "physics", Title: "Physics", URL: "https://openstax.org/books/physics"})
			require.NoError(t, err)
			loaded.Active = true
			require.NoError(t, st.UpdateAsset(ctx, loaded))

			all, err := st.ListAssets(ctx, AssetFilter{SourceID: src.ID})
			require.NoError(t, err)
			assert.Len(t, all, 2)
			active, err := st.ListAssets(ctx, AssetFilter{ActiveOnly: true})
			require.NoError(t, err)
			require.Len(t, active, 1)
			assert.Equal(t, "calculus", active[0].Slug)
		})
	}
}

func TestStore_ReplaceTocNodes(t *testing.T) {
	for name, st := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			tree := []*models.TocNode{
				{Slug: "c1", Title: "Chapter 1", Children: []*models.TocNode{
					{Slug: "s11", Title: "Section 1.1", Metadata: map[string]interface{}{"page": "p1"}},
					{Slug: "s12", Title: "Section 1.2"},
				}},
				{Slug: "c2", Title: "Chapter 2"},
			}
			flat := models.FlattenTree(tree)
			require.NoError(t, st.ReplaceTocNodes(ctx, "asset-1", flat))

			nodes, err := st.ListTocNodes(ctx, "asset-1")
			require.NoError(t, err)
			require.Len(t, nodes, 4)
			assert.Equal(t, []string{"c1", "s11", "s12", "c2"}, []string{nodes[0].Slug, nodes[1].Slug, nodes[2].Slug, nodes[3].Slug})
			require.NotNil(t, nodes[1].ParentID)
			assert.Equal(t, nodes[0].ID, *nodes[1].ParentID)
			assert.Nil(t, nodes[3].ParentID)
			assert.Equal(t, "p1", nodes[1].Metadata["page"])

			rebuilt := models.BuildTree(nodes)
			require.Len(t, rebuilt, 2)
			assert.Len(t, rebuilt[0].Children, 2)

			require.NoError(t, st.ReplaceTocNodes(ctx, "asset-1", models.FlattenTree([]*models.TocNode{{Slug: "only", Title: "Only"}})))
			nodes, err = st.ListTocNodes(ctx, "asset-1")
			require.NoError(t, err)
			require.Len(t, nodes, 1)
			assert.Equal(t, "only", nodes[0].Slug)

			require.NoError(t, st.ReplaceTocNodes(ctx, "asset-1", nil))
			nodes, err = st.ListTocNodes(ctx, "asset-1")
			require.NoError(t, err)
			assert.Empty(t, nodes)
		})
	}
}

func TestStore_ScanLogs(t *testing.T) {
	for name, st := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for _, l := range []*models.ScanLog{
				{SourceID: "s1", Action: models.ActionScanSource, Status: models.LogStatusStarted, Message: "start"},
				{SourceID: "s1", AssetID: "a1", Action: models.ActionScanAsset, Status: models.LogStatusSuccess, Details: map[string]interface{}{"nodes": float64(3)}},
				{SourceID: "s2", Action: models.ActionScanSource, Status: models.LogStatusError, Message: "fail"},
			} {
				require.NoError(t, st.AppendScanLog(ctx, l))
				assert.NotEmpty(t, l.ID)
			}

			logs, err := st.ListScanLogs(ctx, ScanLogFilter{SourceID: "s1"})
			require.NoError(t, err)
			require.Len(t, logs, 2)
			assert.Equal(t, "start", logs[0].Message)
			assert.Equal(t, float64(3), logs[1].Details["nodes"])

			logs, err = st.ListScanLogs(ctx, ScanLogFilter{Action: models.ActionScanSource, Limit: 1})
			require.NoError(t, err)
			require.Len(t, logs, 1)
			assert.Equal(t, "fail", logs[0].Message)
		})
	}
}

func TestNew(t *testing.T) {
	st, err := New(config.StoreConfig{Driver: "memory"}, zerolog.Nop())
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, st)

	st, err = New(config.StoreConfig{Driver: "SQLite", SQLitePath: filepath.Join(t.TempDir(), "x.db")}, zerolog.Nop())
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, st)
	require.NoError(t, st.Close())

	_, err = New(config.StoreConfig{Driver: "postgres"}, zerolog.Nop())
	assert.Error(t, err)
}
