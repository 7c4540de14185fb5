// Package memdom is an in-memory document model implementing the engine's
// Element/Document capability interfaces. The live recorder bridge rebuilds
// one from page HTML snapshots; tests construct documents directly.
package memdom

import (
	"bytes"
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"pageflow/backend/internal/engine"
)

// Node is one document element. Nodes are compared by pointer identity,
// which is what the engine's selector cache and selection window key on.
type Node struct {
	tag      string
	attrs    []engine.Attr
	parent   *Node
	children []*Node
	text     []string // direct text chunks
	inner    string   // inner markup; synthesized lazily for built nodes
	rect     engine.Rect
	hidden   bool
}

// NewNode builds a detached element. Attributes keep their given order; the
// engine's data-attribute preference depends on it.
func NewNode(tag string, attrs ...engine.Attr) *Node {
	n := &Node{
		tag:   strings.ToLower(tag),
		attrs: attrs,
		// Built nodes are assumed rendered until told otherwise.
		rect: engine.Rect{Width: 1, Height: 1},
	}
	return n
}

// Append attaches children and returns the receiver for chaining.
func (n *Node) Append(children ...*Node) *Node {
	for _, c := range children {
		c.parent = n
		n.children = append(n.children, c)
	}
	return n
}

// SetText replaces the node's direct text content.
func (n *Node) SetText(text string) *Node {
	n.text = []string{text}
	return n
}

// SetRect sets the rendered bounding box.
func (n *Node) SetRect(r engine.Rect) *Node {
	n.rect = r
	return n
}

// SetHidden marks the node styled away (display:none/visibility:hidden).
func (n *Node) SetHidden(hidden bool) *Node {
	n.hidden = hidden
	return n
}

func (n *Node) Tag() string { return n.tag }

func (n *Node) ID() string {
	v, _ := n.Attr("id")
	return v
}

func (n *Node) Attr(name string) (string, bool) {
	for _, a := range n.attrs {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}

func (n *Node) Attrs() []engine.Attr {
	return n.attrs
}

func (n *Node) Classes() []string {
	v, ok := n.Attr("class")
	if !ok {
		return nil
	}
	return strings.Fields(v)
}

func (n *Node) Parent() engine.Element {
	if n.parent == nil {
		return nil
	}
	return n.parent
}

func (n *Node) Children() []engine.Element {
	if len(n.children) == 0 {
		return nil
	}
	out := make([]engine.Element, len(n.children))
	for i, c := range n.children {
		out[i] = c
	}
	return out
}

func (n *Node) Text() string {
	var b strings.Builder
	n.collectText(&b)
	return strings.Join(strings.Fields(b.String()), " ")
}

func (n *Node) collectText(b *strings.Builder) {
	// Script and style text is markup plumbing, not page text.
	if n.tag == "script" || n.tag == "style" {
		return
	}
	for _, t := range n.text {
		b.WriteString(t)
		b.WriteByte(' ')
	}
	for _, c := range n.children {
		c.collectText(b)
	}
}

func (n *Node) HTML() string {
	if n.inner != "" {
		return n.inner
	}
	var b strings.Builder
	for _, t := range n.text {
		b.WriteString(t)
	}
	for _, c := range n.children {
		c.render(&b)
	}
	return b.String()
}

func (n *Node) render(b *strings.Builder) {
	b.WriteByte('<')
	b.WriteString(n.tag)
	for _, a := range n.attrs {
		b.WriteByte(' ')
		b.WriteString(a.Name)
		b.WriteString(`="`)
		b.WriteString(a.Value)
		b.WriteByte('"')
	}
	b.WriteByte('>')
	b.WriteString(n.HTML())
	b.WriteString("</")
	b.WriteString(n.tag)
	b.WriteByte('>')
}

func (n *Node) Rect() engine.Rect { return n.rect }

// Hidden reports whether the node or any ancestor is styled away.
func (n *Node) Hidden() bool {
	for p := n; p != nil; p = p.parent {
		if p.hidden {
			return true
		}
	}
	return false
}

// Document is a page snapshot the engine records against.
type Document struct {
	root    *Node
	url     string
	title   string
	metrics engine.PageMetrics
}

// NewDocument wraps a built node tree.
func NewDocument(root *Node, url string) *Document {
	return &Document{root: root, url: url}
}

// SetTitle sets the page title.
func (d *Document) SetTitle(title string) *Document {
	d.title = title
	return d
}

// SetMetrics sets the scroll/viewport geometry.
func (d *Document) SetMetrics(m engine.PageMetrics) *Document {
	d.metrics = m
	return d
}

func (d *Document) Root() engine.Element {
	if d.root == nil {
		return nil
	}
	return d.root
}

func (d *Document) Body() engine.Element {
	if d.root == nil {
		return nil
	}
	if d.root.tag == "body" {
		return d.root
	}
	var body *Node
	walk(d.root, func(n *Node) {
		if body == nil && n.tag == "body" {
			body = n
		}
	})
	if body == nil {
		return nil
	}
	return body
}

func (d *Document) URL() string   { return d.url }
func (d *Document) Title() string { return d.title }

func (d *Document) Metrics() engine.PageMetrics { return d.metrics }

func walk(n *Node, fn func(*Node)) {
	fn(n)
	for _, c := range n.children {
		walk(c, fn)
	}
}

// RectAttr is the attribute the live bridge annotates element geometry with
// before serializing a snapshot: "x,y,width,height" in viewport pixels.
const RectAttr = "data-pf-rect"

// Parse builds a document from serialized page HTML. Geometry comes from
// RectAttr annotations when present; unannotated elements are assumed
// rendered with a nominal 1x1 box so visibility checks depend only on style
// hints the markup carries. The annotations are consumed entirely: they show
// up in neither Attrs nor rendered markup.
func Parse(rawHTML, url string) (*Document, error) {
	root, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return nil, err
	}
	rects := stripRectAnnotations(root)

	doc := &Document{url: url}
	var convert func(src *html.Node, parent *Node)
	convert = func(src *html.Node, parent *Node) {
		switch src.Type {
		case html.TextNode:
			if parent != nil && strings.TrimSpace(src.Data) != "" {
				parent.text = append(parent.text, src.Data)
			}
		case html.ElementNode:
			n := fromHTMLNode(src, rects)
			if parent == nil {
				doc.root = n
			} else {
				parent.Append(n)
			}
			if n.tag == "title" && src.FirstChild != nil {
				doc.title = strings.TrimSpace(src.FirstChild.Data)
			}
			for c := src.FirstChild; c != nil; c = c.NextSibling {
				convert(c, n)
			}
			return
		}
		for c := src.FirstChild; c != nil; c = c.NextSibling {
			convert(c, parent)
		}
	}
	convert(root, nil)
	return doc, nil
}

// stripRectAnnotations removes the bridge's geometry attributes from the
// parsed tree, returning the collected boxes. Stripping before conversion
// keeps the annotations out of the rendered inner markup too.
func stripRectAnnotations(root *html.Node) map[*html.Node]engine.Rect {
	rects := make(map[*html.Node]engine.Rect)
	var strip func(*html.Node)
	strip = func(n *html.Node) {
		if n.Type == html.ElementNode {
			kept := n.Attr[:0]
			for _, a := range n.Attr {
				if strings.ToLower(a.Key) == RectAttr {
					rects[n] = parseRect(a.Val)
					continue
				}
				kept = append(kept, a)
			}
			n.Attr = kept
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			strip(c)
		}
	}
	strip(root)
	return rects
}

func fromHTMLNode(src *html.Node, rects map[*html.Node]engine.Rect) *Node {
	n := &Node{
		tag:  strings.ToLower(src.Data),
		rect: engine.Rect{Width: 1, Height: 1},
	}
	if r, ok := rects[src]; ok {
		n.rect = r
	}
	for _, a := range src.Attr {
		name := strings.ToLower(a.Key)
		switch name {
		case "hidden":
			n.hidden = true
		case "style":
			if styleHides(a.Val) {
				n.hidden = true
			}
		}
		n.attrs = append(n.attrs, engine.Attr{Name: name, Value: a.Val})
	}
	n.inner = renderChildren(src)
	return n
}

func styleHides(style string) bool {
	style = strings.ReplaceAll(strings.ToLower(style), " ", "")
	return strings.Contains(style, "display:none") || strings.Contains(style, "visibility:hidden")
}

func parseRect(v string) engine.Rect {
	parts := strings.Split(v, ",")
	if len(parts) != 4 {
		return engine.Rect{Width: 1, Height: 1}
	}
	vals := make([]float64, 4)
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return engine.Rect{Width: 1, Height: 1}
		}
		vals[i] = f
	}
	return engine.Rect{X: vals[0], Y: vals[1], Width: vals[2], Height: vals[3]}
}

func renderChildren(src *html.Node) string {
	var buf bytes.Buffer
	for c := src.FirstChild; c != nil; c = c.NextSibling {
		html.Render(&buf, c)
	}
	return buf.String()
}
