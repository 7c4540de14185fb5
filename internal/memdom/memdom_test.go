package memdom_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pageflow/backend/internal/engine"
	"pageflow/backend/internal/memdom"
)

const samplePage = `<!DOCTYPE html>
<html>
<head><title> Catalog — Shop </title></head>
<body>
  <div id="catalog" class="products grid">
    <div class="card" data-pf-rect="10,20,200,150" data-sku="A-1">Shoes <b>49</b></div>
    <div class="card" data-sku="A-2">Socks 5</div>
    <div class="card promo" style="display: none">Hidden deal</div>
  </div>
  <aside hidden>tracking pixel</aside>
  <script>var leak = "not page text";</script>
</body>
</html>`

func parseSample(t *testing.T) *memdom.Document {
	t.Helper()
	doc, err := memdom.Parse(samplePage, "https://shop.example/catalog")
	require.NoError(t, err)
	return doc
}

func TestParseBasics(t *testing.T) {
	doc := parseSample(t)

	assert.Equal(t, "Catalog — Shop", doc.Title())
	assert.Equal(t, "https://shop.example/catalog", doc.URL())
	require.NotNil(t, doc.Root())
	assert.Equal(t, "html", doc.Root().Tag())
	require.NotNil(t, doc.Body())
	assert.Equal(t, "body", doc.Body().Tag())
}

func TestParseGeometryAnnotations(t *testing.T) {
	doc := parseSample(t)

	annotated := doc.Query(`[data-sku="A-1"]`)
	require.Len(t, annotated, 1)
	assert.Equal(t, engine.Rect{X: 10, Y: 20, Width: 200, Height: 150}, annotated[0].Rect())

	// Unannotated elements get a nominal rendered box.
	plain := doc.Query(`[data-sku="A-2"]`)
	require.Len(t, plain, 1)
	assert.Equal(t, engine.Rect{Width: 1, Height: 1}, plain[0].Rect())
}

func TestParseHiddenHints(t *testing.T) {
	doc := parseSample(t)

	styled := doc.Query(".promo")
	require.Len(t, styled, 1)
	assert.True(t, styled[0].Hidden(), "inline display:none hides the element")

	attr := doc.Query("aside")
	require.Len(t, attr, 1)
	assert.True(t, attr[0].Hidden(), "the hidden attribute hides the element")

	visible := doc.Query(`[data-sku="A-1"]`)
	require.Len(t, visible, 1)
	assert.False(t, visible[0].Hidden())
}

func TestParsedTextSkipsScripts(t *testing.T) {
	doc := parseSample(t)

	body := doc.Body()
	assert.NotContains(t, body.Text(), "not page text")
	assert.Contains(t, body.Text(), "Shoes 49")
}

func TestRectAnnotationNotExposedAsAttribute(t *testing.T) {
	doc := parseSample(t)

	cards := doc.Query(`[data-sku="A-1"]`)
	require.Len(t, cards, 1)
	_, ok := cards[0].Attr(memdom.RectAttr)
	assert.False(t, ok, "geometry annotations are consumed by the parser")

	var names []string
	for _, a := range cards[0].Attrs() {
		names = append(names, a.Name)
	}
	assert.Equal(t, []string{"class", "data-sku"}, names, "document order preserved")
}

func TestRectAnnotationStrippedFromMarkup(t *testing.T) {
	doc := parseSample(t)

	// Inner markup feeds extraction samples, so descendant annotations must
	// not survive there either.
	container := doc.Query("#catalog")
	require.Len(t, container, 1)
	assert.NotContains(t, container[0].HTML(), memdom.RectAttr)
	assert.Contains(t, container[0].HTML(), `data-sku="A-1"`, "page attributes stay intact")

	body := doc.Body()
	require.NotNil(t, body)
	assert.NotContains(t, body.HTML(), memdom.RectAttr)
}

func TestParsedInnerHTMLPreserved(t *testing.T) {
	doc := parseSample(t)

	cards := doc.Query(`[data-sku="A-1"]`)
	require.Len(t, cards, 1)
	assert.Contains(t, cards[0].HTML(), "<b>49</b>")
}

func TestNodeHiddenPropagatesFromAncestor(t *testing.T) {
	child := memdom.NewNode("span").SetText("x")
	memdom.NewNode("div").Append(child).SetHidden(true)
	assert.True(t, child.Hidden())
}

func TestBodyOnDetachedRoot(t *testing.T) {
	doc := memdom.NewDocument(memdom.NewNode("body"), "https://x/")
	require.NotNil(t, doc.Body())
	assert.Equal(t, "body", doc.Body().Tag())

	headless := memdom.NewDocument(memdom.NewNode("div"), "https://x/")
	assert.Nil(t, headless.Body())
}

func TestQueryCompound(t *testing.T) {
	doc := parseSample(t)

	tests := []struct {
		selector string
		want     int
	}{
		{"#catalog", 1},
		{".card", 3},
		{".card.promo", 1},
		{"div.card", 3},
		{"span.card", 0},
		{"div", 4},
		{`[data-sku]`, 2},
		{`[data-sku="A-2"]`, 1},
		{`[data-sku="A-9"]`, 0},
		{`[class*="grid"]`, 1},
		{`.card:contains("Socks")`, 1},
		{"#catalog > .card", 3},
		{"#catalog > div:nth-child(2)", 1},
		{"#nope > .card", 0},
		{"div ~ span", 0}, // outside the grammar
		{"", 0},
	}
	for _, tt := range tests {
		assert.Len(t, doc.Query(tt.selector), tt.want, "Query(%q)", tt.selector)
	}
}

func TestQueryNthChildPicksPosition(t *testing.T) {
	doc := parseSample(t)

	matches := doc.Query("#catalog > div:nth-child(2)")
	require.Len(t, matches, 1)
	sku, ok := matches[0].Attr("data-sku")
	require.True(t, ok)
	assert.Equal(t, "A-2", sku)
}

func TestQuerySplitsCombinatorOutsideQuotesOnly(t *testing.T) {
	more := memdom.NewNode("button").SetText("more >")
	arrow := memdom.NewNode("div", engine.Attr{Name: "data-label", Value: "a > b"})
	body := memdom.NewNode("body").Append(more, arrow)
	doc := memdom.NewDocument(memdom.NewNode("html").Append(body), "https://x/")

	assert.Len(t, doc.Query(`button:contains("more >")`), 1,
		"a quoted '>' is text, not a combinator")
	assert.Len(t, doc.Query(`[data-label="a > b"]`), 1)
	assert.Len(t, doc.Query(`body > button`), 1, "an unquoted '>' still combines")
}

func TestQueryUnescapesIdentifiers(t *testing.T) {
	node := memdom.NewNode("div", engine.Attr{Name: "id", Value: "form:email"})
	root := memdom.NewNode("html").Append(memdom.NewNode("body").Append(node))
	doc := memdom.NewDocument(root, "https://x/")

	matches := doc.Query(`#form\:email`)
	require.Len(t, matches, 1)
	assert.Equal(t, engine.Element(node), matches[0])
}
