package htmlutil

import (
	"testing"

	"github.com/aleister1102/oerscout/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tocPage = `<html><head><title>Algebra | Docs</title>
<meta name="license" content="CC BY 4.0"></head>
<body>
<nav id="toc">
  <ul>
    <li><a href="ch1.html">Chapter 1</a>
      <ul>
        <li><a href="ch1.html#s1">1.1 Sets</a></li>
        <li><a href="/abs/ch1-2">1.2 Numbers</a>
          <ol><li><a href="ch1-2a.html">1.2.1 Integers</a></li></ol>
        </li>
      </ul>
    </li>
    <li><span>Chapter 2</span></li>
    <li><a href="javascript:void(0)">Print</a></li>
  </ul>
</nav>
<main>
  <h1>Algebra</h1>
  <h2 id="intro">Introduction</h2>
  <p>Text</p>
  <h3>Details</h3>
  <h2></h2>
  <a href="#top">Top</a>
  <a href="mailto:x@example.org">Mail</a>
  <a href="https://other.example.org/x">External</a>
</main>
<table id="lectures">
  <thead><tr><th>#</th><th>Topic</th></tr></thead>
  <tbody>
    <tr><td>1</td><td>Intro</td></tr>
    <tr><td>2</td><td>Limits</td></tr>
  </tbody>
</table>
<table id="plain">
  <tr><th>Week</th><th>Reading</th></tr>
  <tr><td>1</td><td>Ch 1</td></tr>
</table>
</body></html>`


func TestCleanText(t *testing.T) {
	assert.Equal(t, "a b c", CleanText("  a \n\t b   c "))
	assert.Equal(t, "", CleanText("   "))
}

func TestIsExcludedHref(t *testing.T) {
	for _, href := range []string{"", "#", "#top", "javascript:void(0)", "MAILTO:a@b", "tel:123"} {
		assert.True(t, IsExcludedHref(href), href)
	}
	for _, href := range []string{"/a", "page.html", "https://x.org/#frag"} {
		assert.False(t, IsExcludedHref(href), href)
	}
}

func TestExtractLinks(t *testing.T) {
	doc, err := ParseString(tocPage)
	require.NoError(t, err)

	links := ExtractLinks(doc.Find("main"), "https://docs.example.org/algebra/index.html")
	require.Len(t, links, 1)
	assert.Equal(t, "External", links[0].Text)
	assert.Equal(t, "https://other.example.org/x", links[0].URL)

	navLinks := ExtractLinks(doc.Find("nav a"), "https://docs.example.org/algebra/index.html")
	require.Len(t, navLinks, 4)
	assert.Equal(t, "https://docs.example.org/algebra/ch1.html", navLinks[0].URL)
	assert.Equal(t, "https://docs.example.org/abs/ch1-2", navLinks[2].URL)
}

func TestExtractHeadings(t *testing.T) {
	doc, err := ParseString(tocPage)
	require.NoError(t, err)

	all := ExtractHeadings(doc.Selection)
	require.Len(t, all, 3)
	assert.Equal(t, Heading{Level: 1, Text: "Algebra"}, all[0])
	assert.Equal(t, Heading{Level: 2, Text: "Introduction", ID: "intro"}, all[1])
	assert.Equal(t, 3, all[2].Level)

	h2 := ExtractHeadings(doc.Selection, 2)
	require.Len(t, h2, 1)
	assert.Equal(t, "intro", h2[0].ID)
}

func TestParseNestedList(t *testing.T) {
	doc, err := ParseString(tocPage)
	require.NoError(t, err)
	base := "https://docs.example.org/algebra/"

	nodes := ParseNestedList(doc.Find("#toc > ul"), base, 0, 0)
	require.Len(t, nodes, 3)

	ch1 := nodes[0]
	assert.Equal(t, "Chapter 1", ch1.Title)
	assert.Equal(t, base+"ch1.html", ch1.URL)
	assert.Equal(t, models.NodeTypeChapter, ch1.NodeType)
	require.Len(t, ch1.Children, 2)
	assert.Equal(t, "1.2 Numbers", ch1.Children[1].Title)
	assert.Equal(t, 1, ch1.Children[1].Depth)
	require.Len(t, ch1.Children[1].Children, 1)
	assert.Equal(t, models.NodeTypeSubsection, ch1.Children[1].Children[0].NodeType)

	assert.Equal(t, "Chapter 2", nodes[1].Title)
	assert.Empty(t, nodes[1].URL)
	assert.Equal(t, "Print", nodes[2].Title)
	assert.Empty(t, nodes[2].URL, "non-navigable links keep the title only")

	shallow := ParseNestedList(doc.Find("#toc > ul"), base, 0, 2)
	assert.Empty(t, shallow[0].Children[1].Children, "maxDepth stops recursion")

	assert.Nil(t, ParseNestedList(doc.Find("#missing"), base, 0, 0))
}

func TestParseNestedList_UntitledItemsLiftChildren(t *testing.T) {
	doc, err := ParseString(`<ul><li><ul><li><a href="/a">A</a></li></ul></li></ul>`)
	require.NoError(t, err)
	nodes := ParseNestedList(doc.Find("ul").First(), "https://x.org/", 0, 0)
	require.Len(t, nodes, 1)
	assert.Equal(t, "A", nodes[0].Title)
	assert.Equal(t, 0, nodes[0].Depth)
}

func TestTableRows(t *testing.T) {
	doc, err := ParseString(tocPage)
	require.NoError(t, err)

	rows := TableRows(doc.Find("#lectures"), true)
	require.Len(t, rows, 2)
	assert.Equal(t, "Limits", Text(rows[1].Find("td").Eq(1)))

	plain := TableRows(doc.Find("#plain"), true)
	require.Len(t, plain, 1)
	assert.Len(t, TableRows(doc.Find("#plain"), false), 2)
}

func TestFirstMatch(t *testing.T) {
	doc, err := ParseString(tocPage)
	require.NoError(t, err)

	sel, matched := FirstMatch(doc.Selection, []string{".sidebar", "", "#toc", "main"})
	require.NotNil(t, sel)
	assert.Equal(t, "#toc", matched)

	sel, matched = FirstMatch(doc.Selection, []string{".nothing"})
	assert.Nil(t, sel)
	assert.Empty(t, matched)
}

func TestMetaAndTitle(t *testing.T) {
	doc, err := ParseString(tocPage)
	require.NoError(t, err)

	assert.Equal(t, "CC BY 4.0", MetaContent(doc.Selection, "license"))
	assert.Equal(t, "Algebra", PageTitle(doc.Selection))

	noH1, err := ParseString(`<html><head><title> Only  Title </title></head><body></body></html>`)
	require.NoError(t, err)
	assert.Equal(t, "Only Title", PageTitle(noH1.Selection))
}

func TestOwnText(t *testing.T) {
	doc, err := ParseString(`<ul><li>Parent <ul><li>Child</li></ul></li></ul>`)
	require.NoError(t, err)
	assert.Equal(t, "Parent", OwnText(doc.Find("li").First()))
}
