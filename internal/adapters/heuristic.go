package adapters

import (
	"github.com/PuerkitoBio/goquery"
	"github.com/aleister1102/oerscout/internal/htmlutil"
	"github.com/aleister1102/oerscout/internal/models"
	"github.com/aleister1102/oerscout/internal/urlhandler"
)

// HeuristicTocLimit caps the nodes returned by HeuristicToc.
const HeuristicTocLimit = 50

// minContentLinks is the number of links a main-content area needs before it is
// taken as a link index.
const minContentLinks = 3

var (
	mainContentSelectors = []string{"main", "article", "[role='main']", "#content", ".content"}
	sidebarSelectors     = []string{"nav", "aside", ".sidebar", "#sidebar", ".toc"}
	// platformListSelectors cover the navigation lists of common doc generators:
	// Sphinx, Read the Docs, MkDocs Material, Docusaurus and GitBook.
	platformListSelectors = []string{".toctree-wrapper", ".wy-menu-vertical", ".md-nav", ".menu__list", ".summary"}
)

// HeuristicToc extracts a best-effort TOC from an arbitrary page: links in the main
// content, then nav and sidebar links, then doc-generator list conventions, then
// headings. At most HeuristicTocLimit nodes are returned, flattened.
func HeuristicToc(doc *goquery.Document, pageURL, slugPrefix string) []*models.TocNode {
	if doc == nil {
		return []*models.TocNode{}
	}
	var roots []*models.TocNode
	if content, _ := htmlutil.FirstMatch(doc.Selection, mainContentSelectors); content != nil {
		if nodes := sameHostLinkNodes(content, pageURL); len(nodes) >= minContentLinks {
			roots = nodes
		}
	}
	if len(roots) == 0 {
		for _, selector := range sidebarSelectors {
			if roots = sameHostLinkNodes(doc.Find(selector), pageURL); len(roots) > 0 {
				break
			}
		}
	}
	if len(roots) == 0 {
		for _, selector := range platformListSelectors {
			list := doc.Find(selector).Find("ul, ol").First()
			if roots = htmlutil.ParseNestedList(list, pageURL, 0, genericMaxDepth); len(roots) > 0 {
				break
			}
		}
	}
	if len(roots) == 0 {
		roots = contentHeadingNodes(doc, pageURL, GenericSelectors{Content: "body"})
	}
	if len(roots) == 0 {
		return []*models.TocNode{}
	}

	roots = capNodes(roots, HeuristicTocLimit)
	slugTree(roots, slugPrefix)
	return FlattenTree(roots)
}

func sameHostLinkNodes(sel *goquery.Selection, pageURL string) []*models.TocNode {
	seen := make(map[string]bool)
	var nodes []*models.TocNode
	for _, l := range htmlutil.ExtractLinks(sel, pageURL) {
		if l.Text == "" || seen[l.URL] || !urlhandler.SameHost(l.URL, pageURL) {
			continue
		}
		seen[l.URL] = true
		nodes = append(nodes, &models.TocNode{Title: l.Text, URL: l.URL})
	}
	return nodes
}
