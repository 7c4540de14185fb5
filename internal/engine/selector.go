package engine

import (
	"fmt"
	"strings"
	"unicode"
)

// EscapeFunc escapes a string for use as a CSS identifier. The formatting
// concern is pluggable so a different selector dialect can swap it out.
type EscapeFunc func(string) string

// Synthesizer derives a locator string for an element, memoized per element
// reference for the lifetime of a recording session. Selectors are a
// best-effort locator for human review, not a uniqueness guarantee.
type Synthesizer struct {
	doc    Document
	escape EscapeFunc
	cache  map[Element]string
}

// NewSynthesizer builds a synthesizer resolving uniqueness against doc.
func NewSynthesizer(doc Document) *Synthesizer {
	return &Synthesizer{
		doc:    doc,
		escape: EscapeIdent,
		cache:  make(map[Element]string),
	}
}

// SetEscape overrides the identifier escaping function.
func (s *Synthesizer) SetEscape(fn EscapeFunc) {
	if fn != nil {
		s.escape = fn
	}
}

// SetDocument swaps the document the synthesizer resolves against. The cache
// is kept: entries are keyed by element identity, so elements from a replaced
// document simply never match again.
func (s *Synthesizer) SetDocument(doc Document) {
	s.doc = doc
}

// Reset drops the selector cache. Called on session stop so cached entries
// never outlive the session.
func (s *Synthesizer) Reset() {
	s.cache = make(map[Element]string)
}

// Synthesize returns a locator string for el. The result is deterministic
// for a given element and document state. Any failure while inspecting the
// element degrades to the bare tag name rather than propagating.
func (s *Synthesizer) Synthesize(el Element) string {
	if el == nil {
		return ""
	}
	if sel, ok := s.cache[el]; ok {
		return sel
	}
	sel := s.synthesize(el)
	s.cache[el] = sel
	return sel
}

func (s *Synthesizer) synthesize(el Element) (sel string) {
	defer func() {
		// A detached element or a malformed attribute must never take the
		// capture path down with it.
		if r := recover(); r != nil {
			sel = safeTag(el)
		}
	}()

	candidate := s.candidate(el)
	return s.ensureUnique(el, candidate)
}

// candidate picks the strongest locator the element's own attributes allow,
// in fixed preference order: id, first data-attribute, up to two classes,
// then a refined tag name.
func (s *Synthesizer) candidate(el Element) string {
	if id := strings.TrimSpace(el.ID()); id != "" {
		return "#" + s.escape(id)
	}

	for _, a := range el.Attrs() {
		if strings.HasPrefix(a.Name, "data-") {
			return fmt.Sprintf("[%s=\"%s\"]", a.Name, escapeAttrValue(a.Value))
		}
	}

	if classes := el.Classes(); len(classes) > 0 {
		// Two classes keep specificity bounded on class-heavy markup.
		if len(classes) > 2 {
			classes = classes[:2]
		}
		var b strings.Builder
		for _, c := range classes {
			b.WriteByte('.')
			b.WriteString(s.escape(c))
		}
		return b.String()
	}

	return s.refinedTag(el)
}

// refinedTag qualifies a bare tag name with whichever semantic attribute the
// element carries first: name, placeholder, title, an href-derived token, or
// a short visible text match.
func (s *Synthesizer) refinedTag(el Element) string {
	tag := strings.ToLower(el.Tag())

	for _, name := range []string{"name", "placeholder", "title"} {
		if v, ok := el.Attr(name); ok && strings.TrimSpace(v) != "" {
			return fmt.Sprintf("%s[%s=\"%s\"]", tag, name, escapeAttrValue(strings.TrimSpace(v)))
		}
	}

	if href, ok := el.Attr("href"); ok {
		if token := hrefToken(href); token != "" {
			return fmt.Sprintf("%s[href*=\"%s\"]", tag, escapeAttrValue(token))
		}
	}

	if text := collapseSpace(el.Text()); text != "" && len([]rune(text)) < 20 {
		return fmt.Sprintf("%s:contains(\"%s\")", tag, escapeAttrValue(text))
	}

	return tag
}

// ensureUnique resolves candidate against the live document and, if it is
// ambiguous, escalates: first a derived parent prefix, then a positional
// qualifier. Both steps are bounded; the result is never empty.
func (s *Synthesizer) ensureUnique(el Element, candidate string) string {
	if s.doc == nil || len(s.doc.Query(candidate)) <= 1 {
		return candidate
	}

	parent := el.Parent()
	if parent == nil {
		return candidate
	}

	parentSel := s.parentSelector(parent)
	prefixed := parentSel + " > " + candidate
	if len(s.doc.Query(prefixed)) <= 1 {
		return prefixed
	}

	// Still ambiguous: replace the leaf with a positional qualifier.
	if idx := siblingIndex(el, parent); idx > 0 {
		return fmt.Sprintf("%s > %s:nth-child(%d)", parentSel, strings.ToLower(el.Tag()), idx)
	}
	return prefixed
}

// parentSelector derives a one-step selector for the parent: id, first
// class, or tag name.
func (s *Synthesizer) parentSelector(parent Element) string {
	if id := strings.TrimSpace(parent.ID()); id != "" {
		return "#" + s.escape(id)
	}
	if classes := parent.Classes(); len(classes) > 0 {
		return "." + s.escape(classes[0])
	}
	return strings.ToLower(parent.Tag())
}

// siblingIndex returns the 1-based position of el among all element children
// of parent, or 0 when el is not found.
func siblingIndex(el, parent Element) int {
	for i, child := range parent.Children() {
		if child == el {
			return i + 1
		}
	}
	return 0
}

func safeTag(el Element) string {
	defer func() { recover() }()
	if tag := strings.ToLower(el.Tag()); tag != "" {
		return tag
	}
	return "*"
}

// hrefToken extracts the last meaningful path segment of a link target.
func hrefToken(href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "javascript:") {
		return ""
	}
	if i := strings.IndexAny(href, "?#"); i >= 0 {
		href = href[:i]
	}
	// Drop the scheme and host for absolute URLs.
	if i := strings.Index(href, "://"); i >= 0 {
		rest := href[i+3:]
		if j := strings.IndexByte(rest, '/'); j >= 0 {
			href = rest[j:]
		} else {
			return ""
		}
	}
	segments := strings.Split(href, "/")
	for i := len(segments) - 1; i >= 0; i-- {
		if seg := strings.TrimSpace(segments[i]); seg != "" {
			return truncate(seg, 50)
		}
	}
	return ""
}

// EscapeIdent implements the CSS.escape serialization algorithm for
// identifiers (CSSOM §serialize-an-identifier).
func EscapeIdent(s string) string {
	var b strings.Builder
	runes := []rune(s)
	for i, r := range runes {
		switch {
		case r == 0:
			b.WriteRune(unicode.ReplacementChar)
		case r < 0x20 || r == 0x7f:
			fmt.Fprintf(&b, "\\%x ", r)
		case i == 0 && r >= '0' && r <= '9':
			fmt.Fprintf(&b, "\\%x ", r)
		case i == 1 && r >= '0' && r <= '9' && runes[0] == '-':
			fmt.Fprintf(&b, "\\%x ", r)
		case i == 0 && r == '-' && len(runes) == 1:
			b.WriteString("\\-")
		case r >= 0x80 || r == '-' || r == '_' ||
			(r >= '0' && r <= '9') || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z'):
			b.WriteRune(r)
		default:
			b.WriteByte('\\')
			b.WriteRune(r)
		}
	}
	return b.String()
}

// escapeAttrValue escapes a string for inclusion in a double-quoted
// attribute selector value.
func escapeAttrValue(v string) string {
	v = strings.ReplaceAll(v, "\\", "\\\\")
	v = strings.ReplaceAll(v, "\"", "\\\"")
	v = strings.ReplaceAll(v, "\n", " ")
	return v
}
