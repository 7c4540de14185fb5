package engine

// The engine never talks to a real browser. It consumes a document through
// the capability interfaces below; internal/memdom provides the concrete
// implementation, rebuilt from page snapshots by the live recorder bridge
// and constructed directly by tests.

// Attr is one element attribute in document order.
type Attr struct {
	Name  string
	Value string
}

// Rect is an element bounding box in viewport coordinates.
type Rect struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// Element is a read-only view of one document element.
//
// Implementations must be comparable by identity (pointer receivers): the
// selector cache and the selection window key on the interface value itself,
// not on element content.
type Element interface {
	// Tag returns the lower-case tag name.
	Tag() string
	// ID returns the id attribute, or "".
	ID() string
	// Attr returns a single attribute value.
	Attr(name string) (string, bool)
	// Attrs returns all attributes in document order.
	Attrs() []Attr
	// Classes returns the class list in declaration order.
	Classes() []string
	// Parent returns the parent element, or nil at the root.
	Parent() Element
	// Children returns element children only, in document order.
	Children() []Element
	// Text returns the subtree text content, whitespace-collapsed.
	Text() string
	// HTML returns the inner markup of the element.
	HTML() string
	// Rect returns the rendered bounding box. A zero-area rect means the
	// element takes no space on the page.
	Rect() Rect
	// Hidden reports whether the element or an ancestor is styled
	// display:none or visibility:hidden.
	Hidden() bool
}

// PageMetrics is the scroll/viewport geometry of the document at a point
// in time.
type PageMetrics struct {
	ScrollX        float64
	ScrollY        float64
	ViewportWidth  int
	ViewportHeight int
	DocumentHeight int
}

// Document is a read-only view of the page the engine is recording.
type Document interface {
	// Root returns the document root element.
	Root() Element
	// Body returns the body element, or nil if the document has none.
	Body() Element
	// Query returns all elements matching a selector. Only the selector
	// subset emitted by the synthesizer needs to resolve; anything the
	// implementation cannot parse returns no matches.
	Query(selector string) []Element
	// URL returns the page URL.
	URL() string
	// Title returns the page title, or "".
	Title() string
	// Metrics returns the current scroll and viewport geometry.
	Metrics() PageMetrics
}

// IsRoot reports whether el is the document root or body. Root elements are
// recorded as actions but excluded from the selection window used for
// pattern detection.
func IsRoot(el Element) bool {
	if el == nil {
		return true
	}
	switch el.Tag() {
	case "html", "body", "#document":
		return true
	}
	return el.Parent() == nil
}
