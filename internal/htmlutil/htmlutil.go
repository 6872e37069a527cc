// Package htmlutil wraps goquery with the extraction helpers shared by the
// source adapters, discovery and content retrieval.
package htmlutil

import (
	"bytes"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/aleister1102/oerscout/internal/common"
	"github.com/aleister1102/oerscout/internal/urlhandler"
)

var whitespaceRegex = regexp.MustCompile(`\s+`)

// Parse parses an HTML document.
func Parse(body []byte) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, common.WrapError(err, "failed to parse HTML")
	}
	return doc, nil
}

// ParseString parses an HTML string.
func ParseString(html string) (*goquery.Document, error) {
	return Parse([]byte(html))
}

// CleanText collapses runs of whitespace and trims the result.
func CleanText(s string) string {
	return strings.TrimSpace(whitespaceRegex.ReplaceAllString(s, " "))
}

// Text returns the cleaned text content of sel.
func Text(sel *goquery.Selection) string {
	return CleanText(sel.Text())
}

// OwnText returns the cleaned text of sel without any nested lists.
func OwnText(sel *goquery.Selection) string {
	clone := sel.Clone()
	clone.Find("ul, ol").Remove()
	return CleanText(clone.Text())
}

// Link is an anchor with its resolved target.
type Link struct {
	Text string
	Href string
	URL  string
}

// IsExcludedHref reports whether href is a same-page fragment or a non-navigable
// scheme (javascript:, mailto:, tel:).
func IsExcludedHref(href string) bool {
	h := strings.ToLower(strings.TrimSpace(href))
	if h == "" || strings.HasPrefix(h, "#") {
		return true
	}
	for _, prefix := range []string{"javascript:", "mailto:", "tel:", "data:"} {
		if strings.HasPrefix(h, prefix) {
			return true
		}
	}
	return false
}

// ExtractLinks returns every navigable anchor under sel (sel itself included when it
// is an anchor), in document order, with href resolved against base.
func ExtractLinks(sel *goquery.Selection, base string) []Link {
	var links []Link
	anchors := sel.Find("a[href]").AddSelection(sel.Filter("a[href]"))
	anchors.Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		if IsExcludedHref(href) {
			return
		}
		resolved, err := urlhandler.ResolveURL(href, base)
		if err != nil {
			return
		}
		links = append(links, Link{
			Text: Text(a),
			Href: strings.TrimSpace(href),
			URL:  resolved,
		})
	})
	return links
}

// Heading is an h1..h6 element.
type Heading struct {
	Level int
	Text  string
	ID    string
}

// HeadingLevel returns 1..6 for heading elements, 0 otherwise.
func HeadingLevel(sel *goquery.Selection) int {
	name := goquery.NodeName(sel)
	if len(name) == 2 && name[0] == 'h' {
		if n, err := strconv.Atoi(name[1:]); err == nil && n >= 1 && n <= 6 {
			return n
		}
	}
	return 0
}

// ExtractHeadings returns headings of the given levels under sel in document
// order. No levels means all six. Empty headings are skipped.
func ExtractHeadings(sel *goquery.Selection, levels ...int) []Heading {
	if len(levels) == 0 {
		levels = []int{1, 2, 3, 4, 5, 6}
	}
	selectors := make([]string, 0, len(levels))
	for _, l := range levels {
		selectors = append(selectors, "h"+strconv.Itoa(l))
	}

	var headings []Heading
	sel.Find(strings.Join(selectors, ", ")).Each(func(_ int, h *goquery.Selection) {
		text := Text(h)
		if text == "" {
			return
		}
		id, _ := h.Attr("id")
		headings = append(headings, Heading{Level: HeadingLevel(h), Text: text, ID: id})
	})
	return headings
}

// FirstMatch returns the first selector in order that matches anything under root,
// together with the selector. It returns nil when none match.
func FirstMatch(root *goquery.Selection, selectors []string) (*goquery.Selection, string) {
	for _, s := range selectors {
		if s == "" {
			continue
		}
		if found := root.Find(s); found.Length() > 0 {
			return found.First(), s
		}
	}
	return nil, ""
}

// TableRows returns the body rows of table. When skipHeader is set, rows inside
// <thead> and a leading row made only of <th> cells are dropped.
func TableRows(table *goquery.Selection, skipHeader bool) []*goquery.Selection {
	var rows []*goquery.Selection
	table.Find("tr").Each(func(i int, tr *goquery.Selection) {
		if skipHeader {
			if tr.ParentsFiltered("thead").Length() > 0 {
				return
			}
			if len(rows) == 0 && tr.Find("td").Length() == 0 && tr.Find("th").Length() > 0 {
				return
			}
		}
		rows = append(rows, tr)
	})
	return rows
}

// MetaContent returns the content of <meta name=name> or <meta property=name>.
func MetaContent(doc *goquery.Selection, name string) string {
	selector := `meta[name="` + name + `"], meta[property="` + name + `"]`
	return strings.TrimSpace(doc.Find(selector).First().AttrOr("content", ""))
}

// PageTitle returns the first non-empty h1, falling back to <title>.
func PageTitle(doc *goquery.Selection) string {
	if h1 := Text(doc.Find("h1").First()); h1 != "" {
		return h1
	}
	return Text(doc.Find("title").First())
}
