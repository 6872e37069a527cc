package models

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func node(slug string, children ...*TocNode) *TocNode {
	return &TocNode{Slug: slug, Title: "Title " + slug, Children: children}
}

func slugs(nodes []*TocNode) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.Slug
	}
	return out
}

func sampleTrees() map[string][]*TocNode {
	return map[string][]*TocNode{
		"single root": {node("a")},
		"flat list":   {node("a"), node("b"), node("c")},
		"nested": {
			node("ch1", node("s1", node("ss1"), node("ss2")), node("s2")),
			node("ch2"),
			node("ch3", node("s3")),
		},
		"deep chain": {node("l0", node("l1", node("l2", node("l3", node("l4")))))},
	}
}

func TestFlattenTree_PreOrderAndSortOrder(t *testing.T) {
	roots := sampleTrees()["nested"]
	flat := FlattenTree(roots)

	assert.Equal(t, []string{"ch1", "s1", "ss1", "ss2", "s2", "ch2", "ch3", "s3"}, slugs(flat))
	for i, n := range flat {
		assert.Equal(t, i, n.SortOrder)
		assert.Nil(t, n.Children)
	}
	assert.Equal(t, 2, flat[2].Depth)
	assert.Equal(t, "s1", flat[2].ParentSlug)
	assert.Equal(t, "", flat[0].ParentSlug)
	assert.Equal(t, NodeTypeChapter, flat[0].NodeType)
	assert.Equal(t, NodeTypeSection, flat[1].NodeType)
	assert.Equal(t, NodeTypeSubsection, flat[2].NodeType)

	// the input tree is left untouched
	assert.Len(t, roots[0].Children, 2)
}

func TestFlattenTree_RoundTripThroughBuildTree(t *testing.T) {
	for name, roots := range sampleTrees() {
		t.Run(name, func(t *testing.T) {
			flat := FlattenTree(roots)
			rebuilt := BuildTree(flat)
			again := FlattenTree(rebuilt)
			require.Len(t, again, len(flat))
			for i := range flat {
				assert.Equal(t, flat[i].Slug, again[i].Slug)
				assert.Equal(t, flat[i].Depth, again[i].Depth)
				assert.Equal(t, flat[i].SortOrder, again[i].SortOrder)
				assert.Equal(t, flat[i].ParentSlug, again[i].ParentSlug)
			}
		})
	}
}

func TestBuildTree_UsesParentIDs(t *testing.T) {
	flat := FlattenTree(sampleTrees()["nested"])
	ids := make(map[string]string)
	for i, n := range flat {
		n.ID = fmt.Sprintf("id-%d", i)
		ids[n.Slug] = n.ID
	}
	for _, n := range flat {
		if n.ParentSlug != "" {
			pid := ids[n.ParentSlug]
			n.ParentID = &pid
			n.ParentSlug = ""
		}
	}

	// shuffle storage order; BuildTree must rely on SortOrder
	reversed := make([]*TocNode, len(flat))
	for i, n := range flat {
		reversed[len(flat)-1-i] = n
	}

	roots := BuildTree(reversed)
	require.Len(t, roots, 3)
	assert.Equal(t, "ch1", roots[0].Slug)
	require.Len(t, roots[0].Children, 2)
	assert.Equal(t, []string{"ss1", "ss2"}, slugs(roots[0].Children[0].Children))
}

func TestBuildTree_FallsBackToDepth(t *testing.T) {
	flat := []*TocNode{
		{Slug: "a", Depth: 0, SortOrder: 0},
		{Slug: "b", Depth: 1, SortOrder: 1},
		{Slug: "c", Depth: 2, SortOrder: 2},
		{Slug: "d", Depth: 1, SortOrder: 3},
		{Slug: "e", Depth: 0, SortOrder: 4},
	}
	roots := BuildTree(flat)
	require.Len(t, roots, 2)
	assert.Equal(t, []string{"b", "d"}, slugs(roots[0].Children))
	assert.Equal(t, []string{"c"}, slugs(roots[0].Children[0].Children))
}

func TestFlattenTree_DeduplicatesSlugs(t *testing.T) {
	flat := FlattenTree([]*TocNode{node("intro"), node("intro"), node("intro"), node("")})
	assert.Equal(t, []string{"intro", "intro-2", "intro-3", "node-3"}, slugs(flat))
}

func TestSlugSet_Unique(t *testing.T) {
	set := NewSlugSet(FlattenTree([]*TocNode{node("intro"), node("intro")}))
	assert.Equal(t, "intro-3", set.Unique("intro", 2))
	assert.Equal(t, "summary", set.Unique("summary", 3))
	assert.Equal(t, "summary-2", set.Unique("summary", 4))
	assert.Equal(t, "node-5", set.Unique("", 5))
}

func TestComputeTocStats(t *testing.T) {
	flat := FlattenTree(sampleTrees()["nested"])
	stats := ComputeTocStats(flat)
	assert.Equal(t, TocStats{TotalNodes: 8, Chapters: 3, Sections: 3, MaxDepth: 2}, stats)
}

func TestAncestorTitles(t *testing.T) {
	flat := FlattenTree(sampleTrees()["nested"])
	assert.Equal(t, []string{"Title ch1", "Title s1"}, AncestorTitles(flat, flat[2]))
	assert.Empty(t, AncestorTitles(flat, flat[0]))
}
