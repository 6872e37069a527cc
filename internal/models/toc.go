package models

import (
	"fmt"
	"sort"
)

// NodeType classifies a TOC entry.
type NodeType string

const (
	NodeTypeChapter    NodeType = "chapter"
	NodeTypeSection    NodeType = "section"
	NodeTypeSubsection NodeType = "subsection"
	NodeTypePart       NodeType = "part"
	NodeTypePage       NodeType = "page"
	NodeTypeOther      NodeType = "other"
)

// NodeTypeForDepth is the default type for a node when the source gives no hint.
func NodeTypeForDepth(depth int) NodeType {
	switch {
	case depth <= 0:
		return NodeTypeChapter
	case depth == 1:
		return NodeTypeSection
	default:
		return NodeTypeSubsection
	}
}

// TocNode is one entry of an asset's table of contents. In memory it forms a tree via
// Children; once flattened, parent linkage is carried by ParentSlug (before persistence)
// and ParentID (after persistence).
type TocNode struct {
	ID         string                 `json:"id,omitempty"`
	AssetID    string                 `json:"asset_id,omitempty"`
	ParentID   *string                `json:"parent_id,omitempty"`
	ParentSlug string                 `json:"parent_slug,omitempty"`
	Slug       string                 `json:"slug"`
	Title      string                 `json:"title"`
	URL        string                 `json:"url,omitempty"`
	NodeType   NodeType               `json:"node_type"`
	Depth      int                    `json:"depth"`
	SortOrder  int                    `json:"sort_order"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
	Children   []*TocNode             `json:"children,omitempty"`
}

// TocStats summarises a TOC.
type TocStats struct {
	TotalNodes int `json:"total_nodes"`
	Chapters   int `json:"chapters"`
	Sections   int `json:"sections"`
	MaxDepth   int `json:"max_depth"`
}

// FlattenTree walks roots in pre-order and returns copies of every node with Children
// dropped, Depth set from tree position, SortOrder numbered from 0 and ParentSlug
// pointing at the enclosing node. Duplicate slugs get a numeric suffix so slugs stay
// unique within the asset.
func FlattenTree(roots []*TocNode) []*TocNode {
	out := make([]*TocNode, 0, countNodes(roots))
	seen := make(map[string]int)

	var walk func(nodes []*TocNode, depth int, parentSlug string)
	walk = func(nodes []*TocNode, depth int, parentSlug string) {
		for _, n := range nodes {
			if n == nil {
				continue
			}
			flat := *n
			flat.Children = nil
			flat.Depth = depth
			flat.ParentSlug = parentSlug
			flat.ParentID = nil
			flat.SortOrder = len(out)
			flat.Slug = uniqueSlug(n.Slug, len(out), seen)
			if flat.NodeType == "" {
				flat.NodeType = NodeTypeForDepth(depth)
			}
			out = append(out, &flat)
			walk(n.Children, depth+1, flat.Slug)
		}
	}
	walk(roots, 0, "")
	return out
}

// SlugSet hands out slugs unique within one asset, using the same suffix scheme as
// FlattenTree.
type SlugSet map[string]int

// NewSlugSet reserves the slugs already taken by nodes.
func NewSlugSet(nodes []*TocNode) SlugSet {
	set := make(SlugSet, len(nodes))
	for _, n := range nodes {
		if n != nil && n.Slug != "" {
			set[n.Slug]++
		}
	}
	return set
}

// Unique returns slug, or slug with a numeric suffix when it is already taken, and
// reserves the result. An empty slug becomes node-<order>.
func (s SlugSet) Unique(slug string, order int) string {
	return uniqueSlug(slug, order, s)
}

func uniqueSlug(slug string, order int, seen map[string]int) string {
	if slug == "" {
		slug = fmt.Sprintf("node-%d", order)
	}
	n := seen[slug]
	seen[slug] = n + 1
	if n == 0 {
		return slug
	}
	candidate := fmt.Sprintf("%s-%d", slug, n+1)
	for seen[candidate] > 0 {
		n++
		candidate = fmt.Sprintf("%s-%d", slug, n+1)
	}
	seen[candidate] = 1
	return candidate
}

func countNodes(nodes []*TocNode) int {
	total := 0
	for _, n := range nodes {
		if n == nil {
			continue
		}
		total += 1 + countNodes(n.Children)
	}
	return total
}

// BuildTree rebuilds the tree from flattened nodes. Nodes are ordered by SortOrder and
// attached to their parent by ParentID, then ParentSlug; a node whose parent cannot be
// found is attached to the nearest preceding node one level shallower, or becomes a
// root. The returned nodes are copies; the input is not modified.
func BuildTree(flat []*TocNode) []*TocNode {
	sorted := make([]*TocNode, 0, len(flat))
	for _, n := range flat {
		if n == nil {
			continue
		}
		c := *n
		c.Children = nil
		sorted = append(sorted, &c)
	}
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].SortOrder < sorted[j].SortOrder })

	byID := make(map[string]*TocNode, len(sorted))
	bySlug := make(map[string]*TocNode, len(sorted))
	var roots []*TocNode
	var stack []*TocNode

	for _, n := range sorted {
		var parent *TocNode
		if n.ParentID != nil {
			parent = byID[*n.ParentID]
		}
		if parent == nil && n.ParentSlug != "" {
			parent = bySlug[n.ParentSlug]
		}
		if parent == nil && n.Depth > 0 {
			for i := len(stack) - 1; i >= 0; i-- {
				if stack[i].Depth == n.Depth-1 {
					parent = stack[i]
					break
				}
			}
		}

		if parent == nil {
			roots = append(roots, n)
		} else {
			parent.Children = append(parent.Children, n)
		}

		for len(stack) > 0 && stack[len(stack)-1].Depth >= n.Depth {
			stack = stack[:len(stack)-1]
		}
		stack = append(stack, n)

		if n.ID != "" {
			byID[n.ID] = n
		}
		bySlug[n.Slug] = n
	}
	return roots
}

// ComputeTocStats counts top-level entries as chapters, second-level entries as
// sections and records the maximum depth of flattened nodes.
func ComputeTocStats(flat []*TocNode) TocStats {
	stats := TocStats{TotalNodes: len(flat)}
	for _, n := range flat {
		switch n.Depth {
		case 0:
			stats.Chapters++
		case 1:
			stats.Sections++
		}
		if n.Depth > stats.MaxDepth {
			stats.MaxDepth = n.Depth
		}
	}
	return stats
}

// AncestorTitles returns the titles of node's ancestors, root first, resolved through
// the flattened list.
func AncestorTitles(flat []*TocNode, node *TocNode) []string {
	byID := make(map[string]*TocNode, len(flat))
	bySlug := make(map[string]*TocNode, len(flat))
	for _, n := range flat {
		if n.ID != "" {
			byID[n.ID] = n
		}
		bySlug[n.Slug] = n
	}

	var path []string
	cur := node
	for guard := 0; cur != nil && guard < len(flat)+1; guard++ {
		var parent *TocNode
		if cur.ParentID != nil {
			parent = byID[*cur.ParentID]
		}
		if parent == nil && cur.ParentSlug != "" {
			parent = bySlug[cur.ParentSlug]
		}
		if parent == nil {
			break
		}
		path = append([]string{parent.Title}, path...)
		cur = parent
	}
	return path
}
