package htmlutil

import (
	"github.com/PuerkitoBio/goquery"
	"github.com/aleister1102/oerscout/internal/models"
	"github.com/aleister1102/oerscout/internal/urlhandler"
)

// ParseNestedList converts a <ul>/<ol> and its nested lists into TOC nodes.
// Each direct <li> becomes a node titled by its first link (or its own text),
// with children taken from lists nested directly inside the item. Recursion stops
// once depth reaches maxDepth; maxDepth <= 0 means unlimited. Items without a
// title are skipped but their children are kept at the same depth.
func ParseNestedList(list *goquery.Selection, base string, depth, maxDepth int) []*models.TocNode {
	if list == nil || list.Length() == 0 {
		return nil
	}
	if maxDepth > 0 && depth >= maxDepth {
		return nil
	}

	var nodes []*models.TocNode
	list.First().ChildrenFiltered("li").Each(func(_ int, li *goquery.Selection) {
		title, href := itemLabel(li)
		nested := li.ChildrenFiltered("ul, ol")
		if nested.Length() == 0 {
			nested = li.ChildrenFiltered("div, nav").ChildrenFiltered("ul, ol")
		}

		if title == "" {
			nodes = append(nodes, ParseNestedList(nested, base, depth, maxDepth)...)
			return
		}

		node := &models.TocNode{
			Title:    title,
			Depth:    depth,
			NodeType: models.NodeTypeForDepth(depth),
		}
		if href != "" && !IsExcludedHref(href) {
			node.URL = urlhandler.MustResolve(href, base)
		}
		nested.Each(func(_ int, sub *goquery.Selection) {
			node.Children = append(node.Children, ParseNestedList(sub, base, depth+1, maxDepth)...)
		})
		nodes = append(nodes, node)
	})
	return nodes
}

// itemLabel finds the title and href of a list item, ignoring nested lists.
func itemLabel(li *goquery.Selection) (string, string) {
	link := li.ChildrenFiltered("a").First()
	if link.Length() == 0 {
		link = li.ChildrenFiltered(":not(ul):not(ol)").Find("a").First()
	}
	if link.Length() > 0 {
		if title := Text(link); title != "" {
			return title, link.AttrOr("href", "")
		}
	}
	return OwnText(li), ""
}
