package engine_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pageflow/backend/internal/engine"
	"pageflow/backend/internal/memdom"
)

func docWith(nodes ...*memdom.Node) *memdom.Document {
	body := memdom.NewNode("body").Append(nodes...)
	root := memdom.NewNode("html").Append(body)
	return memdom.NewDocument(root, "https://shop.example/")
}

func TestSynthesizePreferenceOrder(t *testing.T) {
	tests := []struct {
		name string
		node *memdom.Node
		want string
	}{
		{
			name: "id wins over everything",
			node: memdom.NewNode("div",
				engine.Attr{Name: "id", Value: "hero"},
				engine.Attr{Name: "data-block", Value: "main"},
				engine.Attr{Name: "class", Value: "wide tall"}),
			want: "#hero",
		},
		{
			name: "first data attribute in document order",
			node: memdom.NewNode("div",
				engine.Attr{Name: "data-sku", Value: "A-100"},
				engine.Attr{Name: "data-color", Value: "red"},
				engine.Attr{Name: "class", Value: "tile"}),
			want: `[data-sku="A-100"]`,
		},
		{
			name: "at most two classes",
			node: memdom.NewNode("div",
				engine.Attr{Name: "class", Value: "btn primary large wide"}),
			want: ".btn.primary",
		},
		{
			name: "tag refined by name",
			node: memdom.NewNode("input",
				engine.Attr{Name: "type", Value: "text"},
				engine.Attr{Name: "name", Value: "email"}),
			want: `input[name="email"]`,
		},
		{
			name: "tag refined by placeholder",
			node: memdom.NewNode("input",
				engine.Attr{Name: "placeholder", Value: "Search..."}),
			want: `input[placeholder="Search..."]`,
		},
		{
			name: "link refined by href token",
			node: memdom.NewNode("a",
				engine.Attr{Name: "href", Value: "/products/shoes?page=2"}),
			want: `a[href*="shoes"]`,
		},
		{
			name: "short text pseudo qualifier",
			node: memdom.NewNode("button").SetText("Buy now"),
			want: `button:contains("Buy now")`,
		},
		{
			name: "bare tag when nothing else helps",
			node: memdom.NewNode("section").SetText(
				"a long paragraph of descriptive text well past the qualifier limit"),
			want: "section",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := docWith(tt.node)
			syn := engine.NewSynthesizer(doc)
			assert.Equal(t, tt.want, syn.Synthesize(tt.node))
		})
	}
}

func TestSynthesizeIsMemoized(t *testing.T) {
	node := memdom.NewNode("button").SetText("Buy now")
	doc := docWith(node)
	syn := engine.NewSynthesizer(doc)

	first := syn.Synthesize(node)
	// Mutating the element does not change the cached result.
	node.SetText("Something else entirely that is much longer")
	second := syn.Synthesize(node)
	assert.Equal(t, first, second)

	syn.Reset()
	third := syn.Synthesize(node)
	assert.NotEqual(t, first, third)
}

func TestUniquenessRepairParentPrefix(t *testing.T) {
	// Two .price spans under differently-identified parents: the parent
	// prefix is enough to disambiguate.
	target := memdom.NewNode("span", engine.Attr{Name: "class", Value: "price"})
	box := memdom.NewNode("div", engine.Attr{Name: "id", Value: "featured"}).Append(target)
	other := memdom.NewNode("div", engine.Attr{Name: "id", Value: "related"}).Append(
		memdom.NewNode("span", engine.Attr{Name: "class", Value: "price"}))
	doc := docWith(box, other)

	syn := engine.NewSynthesizer(doc)
	sel := syn.Synthesize(target)
	assert.Equal(t, "#featured > .price", sel)
	require.Len(t, doc.Query(sel), 1)
}

func TestUniquenessRepairFallsBackToNthChild(t *testing.T) {
	// Identical siblings under one parent: only a positional qualifier can
	// tell them apart.
	first := memdom.NewNode("li", engine.Attr{Name: "class", Value: "entry"})
	second := memdom.NewNode("li", engine.Attr{Name: "class", Value: "entry"})
	third := memdom.NewNode("li", engine.Attr{Name: "class", Value: "entry"})
	list := memdom.NewNode("ul", engine.Attr{Name: "id", Value: "menu"}).Append(first, second, third)
	doc := docWith(list)

	syn := engine.NewSynthesizer(doc)
	assert.Equal(t, "#menu > li:nth-child(2)", syn.Synthesize(second))

	matches := doc.Query("#menu > li:nth-child(2)")
	require.Len(t, matches, 1)
	assert.Equal(t, engine.Element(second), matches[0])
}

func TestUniquenessRepairWithAngleBracketText(t *testing.T) {
	// Short link text like "more >" carries the combinator character; the
	// ambiguity check must still see both candidates and repair the selector.
	target := memdom.NewNode("button").SetText("more >")
	one := memdom.NewNode("div", engine.Attr{Name: "id", Value: "one"}).Append(target)
	two := memdom.NewNode("div", engine.Attr{Name: "id", Value: "two"}).Append(
		memdom.NewNode("button").SetText("more >"))
	doc := docWith(one, two)

	syn := engine.NewSynthesizer(doc)
	sel := syn.Synthesize(target)
	assert.Equal(t, `#one > button:contains("more >")`, sel)
	require.Len(t, doc.Query(sel), 1)
}

func TestSynthesizeEscapesIdentifiers(t *testing.T) {
	node := memdom.NewNode("div", engine.Attr{Name: "id", Value: "form:email"})
	doc := docWith(node)
	syn := engine.NewSynthesizer(doc)

	sel := syn.Synthesize(node)
	assert.Equal(t, `#form\:email`, sel)
	require.Len(t, doc.Query(sel), 1)
}

func TestSynthesizeNilAndDetached(t *testing.T) {
	syn := engine.NewSynthesizer(nil)
	assert.Empty(t, syn.Synthesize(nil))

	detached := memdom.NewNode("em")
	assert.Equal(t, "em", syn.Synthesize(detached))
}

func TestEscapeIdent(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"simple", "simple"},
		{"with space", `with\ space`},
		{"a:b", `a\:b`},
		{"1abc", `\31 abc`},
		{"-", `\-`},
		{"ünïcode", "ünïcode"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, engine.EscapeIdent(tt.in), "EscapeIdent(%q)", tt.in)
	}
}
